package build

import (
	"context"
	"time"

	"git.home.luguber.info/inful/docrun/internal/config"
	"git.home.luguber.info/inful/docrun/internal/runner"
	"git.home.luguber.info/inful/docrun/internal/submodule"
)

// BuildService is the canonical interface for executing a docrun pipeline.
type BuildService interface {
	// Run executes lock → validate → copy → generate.
	// Returns a BuildResult with detailed outcomes and any error encountered.
	Run(ctx context.Context, req BuildRequest) (*BuildResult, error)
}

// BuildRequest contains all inputs required to execute a run.
type BuildRequest struct {
	// Config is the loaded configuration for this run.
	Config *config.Config

	// Options provides optional behavior modifiers.
	Options BuildOptions
}

// BuildOptions provides optional configuration for run behavior.
type BuildOptions struct {
	// ValidateOnly stops after the dependency checks.
	ValidateOnly bool

	// DryRun validates and assembles the generator command without copying or running.
	DryRun bool
}

// Step names a pipeline step.
type Step string

const (
	StepLock     Step = "lock"
	StepValidate Step = "validate"
	StepCopy     Step = "copy"
	StepGenerate Step = "generate"
)

// BuildResult contains the outcome of a run.
type BuildResult struct {
	// RunID correlates log lines of one run.
	RunID string

	// Status indicates overall outcome.
	Status BuildStatus

	// FailedStep is the step that aborted the run, empty on success.
	FailedStep Step

	// Declaration is the parsed submodule entry, when the declaration file parsed.
	Declaration *submodule.Declaration

	// CopiedBytes is the size of the copied config file.
	CopiedBytes int64

	// Command is the assembled generator invocation.
	Command runner.Command

	// ExitCode of the generator; -1 when it did not run or did not exit.
	ExitCode int

	// Stdout is the generator's captured standard output.
	Stdout string

	// Duration is the total execution time.
	Duration time.Duration

	// StartTime is when the run started.
	StartTime time.Time

	// EndTime is when the run completed.
	EndTime time.Time
}

// BuildStatus represents the outcome of a run.
type BuildStatus string

const (
	// BuildStatusSuccess indicates every requested step completed.
	BuildStatusSuccess BuildStatus = "success"

	// BuildStatusFailed indicates a step failed.
	BuildStatusFailed BuildStatus = "failed"

	// BuildStatusCancelled indicates the run was cancelled.
	BuildStatusCancelled BuildStatus = "cancelled"
)

// IsSuccess returns true if the run completed successfully.
func (s BuildStatus) IsSuccess() bool {
	return s == BuildStatusSuccess
}
