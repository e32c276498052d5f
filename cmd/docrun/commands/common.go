package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/docrun/internal/build"
	"git.home.luguber.info/inful/docrun/internal/config"
	"git.home.luguber.info/inful/docrun/internal/logfields"
	"git.home.luguber.info/inful/docrun/internal/metrics"
	"git.home.luguber.info/inful/docrun/internal/workspace"
)

// LogLevelEnv overrides the log level chosen by --verbose.
const LogLevelEnv = "DOCRUN_LOG_LEVEL"

// Global context passed to subcommands.
type Global struct {
	Context context.Context
	Logger  *slog.Logger
}

func (g *Global) ctx() context.Context {
	if g == nil || g.Context == nil {
		return context.Background()
	}
	return g.Context
}

// CLI definition & global flags.
type CLI struct {
	Config      string           `short:"c" help:"Configuration file path, relative to the root (default: docrun.yaml in the root, optional)"`
	Root        string           `short:"C" help:"Repository root the run operates in" default:"." type:"path"`
	Verbose     bool             `short:"v" help:"Enable verbose logging"`
	MetricsFile string           `name:"metrics-file" help:"Write Prometheus metrics in textfile format to this path after each run"`
	Version     kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build    BuildCmd    `cmd:"" default:"withargs" help:"Verify the submodule, copy the generator config and run the documentation generator"`
	Validate ValidateCmd `cmd:"" help:"Only verify the documentation submodule is present and declared"`
	Init     InitCmd     `cmd:"" help:"Write a default configuration file"`
	Watch    WatchCmd    `cmd:"" help:"Build, then rebuild whenever the source generator config changes"`

	// Stdout receives user-facing messages. Defaults to os.Stdout.
	Stdout io.Writer `kong:"-"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(c.Verbose)}))
	slog.SetDefault(logger)
	return nil
}

// parseLogLevel picks the level from DOCRUN_LOG_LEVEL, falling back to the verbose flag.
func parseLogLevel(verbose bool) slog.Level {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(LogLevelEnv))) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func (c *CLI) stdout() io.Writer {
	if c.Stdout == nil {
		return os.Stdout
	}
	return c.Stdout
}

func (c *CLI) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.stdout(), format, args...)
}

// configPath returns the config file to load and whether it must exist.
// Relative paths resolve against the root like every other configured path.
func (c *CLI) configPath(root string) (string, bool) {
	switch {
	case c.Config == "":
		return filepath.Join(root, config.DefaultFileName), false
	case filepath.IsAbs(c.Config):
		return c.Config, true
	default:
		return filepath.Join(root, c.Config), true
	}
}

// session holds everything a command needs to run the pipeline.
type session struct {
	cli         *CLI
	cfg         *config.Config
	ws          *workspace.Manager
	recorder    *metrics.PrometheusRecorder
	metricsFile string
}

// prepare resolves the root, loads .env and the configuration.
func (c *CLI) prepare() (*session, error) {
	ws, err := workspace.NewManager(c.Root)
	if err != nil {
		return nil, err
	}

	envFile, err := config.LoadEnvFile(ws.Root())
	if err != nil {
		return nil, err
	}
	if envFile != "" {
		slog.Debug("Loaded environment file", logfields.Path(envFile))
	}

	cfgPath, required := c.configPath(ws.Root())
	cfg, err := config.Load(cfgPath, required)
	if err != nil {
		return nil, err
	}
	slog.Debug("Configuration loaded", logfields.Path(cfgPath))

	s := &session{cli: c, cfg: cfg, ws: ws}
	switch {
	case c.MetricsFile != "":
		s.metricsFile = c.MetricsFile
	case cfg.Metrics.Textfile != "":
		s.metricsFile = ws.Resolve(cfg.Metrics.Textfile)
	}
	if s.metricsFile != "" {
		s.recorder = metrics.NewPrometheusRecorder(nil)
	}
	return s, nil
}

func (s *session) service() *build.DefaultBuildService {
	svc := build.NewBuildService(s.ws).WithOutput(s.cli.stdout())
	if s.recorder != nil {
		svc.WithRecorder(s.recorder)
	}
	return svc
}

// run executes one pipeline run and flushes metrics afterwards.
func (s *session) run(ctx context.Context, opts build.BuildOptions) (*build.BuildResult, error) {
	result, err := s.service().Run(ctx, build.BuildRequest{Config: s.cfg, Options: opts})
	s.flushMetrics()
	return result, err
}

func (s *session) flushMetrics() {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.WriteTextfile(s.metricsFile); err != nil {
		slog.Warn("Failed to write metrics textfile", logfields.Path(s.metricsFile), logfields.Error(err))
		return
	}
	slog.Debug("Metrics written", logfields.Path(s.metricsFile))
}
