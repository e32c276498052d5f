package build

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/docrun/internal/config"
	derrors "git.home.luguber.info/inful/docrun/internal/errors"
	"git.home.luguber.info/inful/docrun/internal/logfields"
	"git.home.luguber.info/inful/docrun/internal/metrics"
	"git.home.luguber.info/inful/docrun/internal/observability"
	"git.home.luguber.info/inful/docrun/internal/runner"
	"git.home.luguber.info/inful/docrun/internal/submodule"
	"git.home.luguber.info/inful/docrun/internal/workspace"
)

// DependencyVerifier checks the submodule preconditions.
type DependencyVerifier interface {
	Verify(ctx context.Context) (*submodule.Result, error)
}

// VerifierFactory creates a DependencyVerifier for a root and dependency config.
type VerifierFactory func(root string, cfg config.DependencyConfig) DependencyVerifier

// CommandRunner executes the generator command.
type CommandRunner interface {
	Run(ctx context.Context, cmd runner.Command) (*runner.Result, error)
}

// DefaultBuildService is the standard implementation of BuildService.
type DefaultBuildService struct {
	workspace       *workspace.Manager
	verifierFactory VerifierFactory
	runner          CommandRunner
	recorder        metrics.Recorder
	out             io.Writer
	newRunID        func() string
}

// NewBuildService creates a DefaultBuildService operating on ws.
func NewBuildService(ws *workspace.Manager) *DefaultBuildService {
	return &DefaultBuildService{
		workspace: ws,
		verifierFactory: func(root string, cfg config.DependencyConfig) DependencyVerifier {
			return submodule.NewVerifier(root, cfg)
		},
		runner:   runner.New(),
		recorder: metrics.NoopRecorder{},
		out:      os.Stdout,
		newRunID: uuid.NewString,
	}
}

// WithVerifierFactory allows injecting a custom dependency verifier (for testing).
func (s *DefaultBuildService) WithVerifierFactory(f VerifierFactory) *DefaultBuildService {
	s.verifierFactory = f
	return s
}

// WithRunner allows injecting a custom command runner.
func (s *DefaultBuildService) WithRunner(r CommandRunner) *DefaultBuildService {
	s.runner = r
	return s
}

// WithRecorder sets the metrics recorder.
func (s *DefaultBuildService) WithRecorder(r metrics.Recorder) *DefaultBuildService {
	if r == nil {
		r = metrics.NoopRecorder{}
	}
	s.recorder = r
	return s
}

// WithOutput sets where user-facing progress messages are printed.
func (s *DefaultBuildService) WithOutput(w io.Writer) *DefaultBuildService {
	if w == nil {
		w = io.Discard
	}
	s.out = w
	return s
}

// Run executes the pipeline. Steps run strictly in order and the first failure
// aborts the rest.
func (s *DefaultBuildService) Run(ctx context.Context, req BuildRequest) (*BuildResult, error) {
	startTime := time.Now()
	result := &BuildResult{
		RunID:     s.newRunID(),
		StartTime: startTime,
		ExitCode:  -1,
	}
	ctx = observability.WithRunID(ctx, result.RunID)

	if req.Config == nil {
		return s.fail(ctx, result, "", derrors.InternalError("config required", nil))
	}
	cfg := req.Config
	root := s.workspace.Root()

	observability.InfoContext(ctx, "Starting run", logfields.Path(root),
		slog.Bool("validate_only", req.Options.ValidateOnly),
		slog.Bool("dry_run", req.Options.DryRun))

	// Step 1: lock the root, only when the run will write into it
	if !req.Options.ValidateOnly && !req.Options.DryRun {
		var unlock func()
		if err := s.step(ctx, StepLock, func(ctx context.Context) error {
			var err error
			unlock, err = s.workspace.Lock(ctx)
			return err
		}); err != nil {
			return s.fail(ctx, result, StepLock, err)
		}
		defer unlock()
	}

	// Step 2: validate the dependency
	if err := s.step(ctx, StepValidate, func(ctx context.Context) error {
		res, err := s.verifierFactory(root, cfg.Dependency).Verify(ctx)
		if err != nil {
			return err
		}
		result.Declaration = res.Declaration
		s.printf("'%s' submodule verified.\n", cfg.Dependency.Directory)
		return nil
	}); err != nil {
		return s.fail(ctx, result, StepValidate, err)
	}

	if req.Options.ValidateOnly {
		return s.succeed(ctx, result, metrics.RunOutcomeSuccess), nil
	}

	cmd, err := GeneratorCommand(cfg.Generator, root)
	if err != nil {
		return s.fail(ctx, result, StepGenerate, err)
	}
	result.Command = cmd

	if req.Options.DryRun {
		s.printf("Would copy %s to %s\n", cfg.Copy.Source, cfg.Copy.Destination)
		s.printf("Would run: %s\n", cmd.String())
		return s.succeed(ctx, result, metrics.RunOutcomeDryRun), nil
	}

	// Step 3: copy the generator config into the submodule
	if err := s.step(ctx, StepCopy, func(ctx context.Context) error {
		n, err := s.workspace.CopyFile(cfg.Copy.Source, cfg.Copy.Destination)
		if err != nil {
			return err
		}
		result.CopiedBytes = n
		s.recorder.SetCopiedBytes(n)
		dst := s.workspace.Resolve(cfg.Copy.Destination)
		observability.InfoContext(ctx, "Copied config file",
			logfields.Source(s.workspace.Resolve(cfg.Copy.Source)), logfields.Destination(dst))
		s.printf("Copied config file to: %s\n", dst)
		return nil
	}); err != nil {
		return s.fail(ctx, result, StepCopy, err)
	}

	// Step 4: run the documentation generator
	if err := s.step(ctx, StepGenerate, func(ctx context.Context) error {
		s.printf("\nRunning: %s\n", cmd.String())
		res, err := s.runner.Run(ctx, cmd)
		if res != nil {
			result.ExitCode = res.ExitCode
			result.Stdout = res.Stdout
			s.recorder.SetCommandExitCode(res.ExitCode)
		}
		return err
	}); err != nil {
		if result.ExitCode == -1 {
			s.recorder.SetCommandExitCode(-1)
		}
		return s.fail(ctx, result, StepGenerate, err)
	}

	return s.succeed(ctx, result, metrics.RunOutcomeSuccess), nil
}

// step runs fn with step context, recording duration and outcome.
func (s *DefaultBuildService) step(ctx context.Context, step Step, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		s.recorder.IncStepResult(string(step), metrics.ResultCanceled)
		return err
	}

	stepCtx := observability.WithStep(ctx, string(step))
	start := time.Now()
	observability.DebugContext(stepCtx, "Step started")

	err := fn(stepCtx)
	elapsed := time.Since(start)
	s.recorder.ObserveStepDuration(string(step), elapsed)

	switch {
	case err == nil:
		s.recorder.IncStepResult(string(step), metrics.ResultSuccess)
		observability.DebugContext(stepCtx, "Step completed", logfields.DurationMS(float64(elapsed.Milliseconds())))
	case ctx.Err() != nil:
		s.recorder.IncStepResult(string(step), metrics.ResultCanceled)
	default:
		s.recorder.IncStepResult(string(step), metrics.ResultFatal)
		observability.ErrorContext(stepCtx, "Step failed", logfields.Error(err))
	}
	return err
}

func (s *DefaultBuildService) succeed(ctx context.Context, result *BuildResult, outcome metrics.RunOutcomeLabel) *BuildResult {
	result.Status = BuildStatusSuccess
	s.finish(result, outcome)
	observability.InfoContext(ctx, "Run completed",
		logfields.DurationMS(float64(result.Duration.Milliseconds())))
	return result
}

func (s *DefaultBuildService) fail(ctx context.Context, result *BuildResult, step Step, err error) (*BuildResult, error) {
	result.FailedStep = step
	outcome := metrics.RunOutcomeFailed
	result.Status = BuildStatusFailed
	if ctx.Err() != nil {
		outcome = metrics.RunOutcomeCanceled
		result.Status = BuildStatusCancelled
	}
	s.finish(result, outcome)
	return result, err
}

func (s *DefaultBuildService) finish(result *BuildResult, outcome metrics.RunOutcomeLabel) {
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	s.recorder.ObserveRunDuration(result.Duration)
	s.recorder.IncRunOutcome(outcome)
}

func (s *DefaultBuildService) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(s.out, format, args...)
}
