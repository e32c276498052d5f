package build

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docrun/internal/config"
	derrors "git.home.luguber.info/inful/docrun/internal/errors"
	"git.home.luguber.info/inful/docrun/internal/metrics"
	"git.home.luguber.info/inful/docrun/internal/runner"
	"git.home.luguber.info/inful/docrun/internal/submodule"
	"git.home.luguber.info/inful/docrun/internal/workspace"
)

const testGitmodules = "[submodule \"overte\"]\n\tpath = overte\n\turl = https://github.com/overte-org/overte.git\n"

// mockRunner is a test double for CommandRunner.
type mockRunner struct {
	calls  []runner.Command
	result *runner.Result
	err    error
}

func (m *mockRunner) Run(_ context.Context, cmd runner.Command) (*runner.Result, error) {
	m.calls = append(m.calls, cmd)
	return m.result, m.err
}

type rootFixture struct {
	noDir         bool
	noDeclaration bool
	declaration   string
	noSource      bool
}

func newRoot(t *testing.T, f rootFixture) *workspace.Manager {
	t.Helper()
	root := t.TempDir()
	if !f.noDir {
		require.NoError(t, os.MkdirAll(filepath.Join(root, "overte", "tools", "jsdoc"), 0o750))
	}
	if !f.noDeclaration {
		decl := f.declaration
		if decl == "" {
			decl = testGitmodules
		}
		require.NoError(t, os.WriteFile(filepath.Join(root, ".gitmodules"), []byte(decl), 0o600))
	}
	if !f.noSource {
		require.NoError(t, os.WriteFile(filepath.Join(root, "overte-tsd-config.json"), []byte(`{"plugins":["tsd"]}`), 0o600))
	}
	ws, err := workspace.NewManager(root)
	require.NoError(t, err)
	return ws
}

func newService(ws *workspace.Manager, r CommandRunner) (*DefaultBuildService, *bytes.Buffer) {
	var out bytes.Buffer
	svc := NewBuildService(ws).WithRunner(r).WithOutput(&out)
	svc.newRunID = func() string { return "test-run" }
	return svc, &out
}

func TestBuildStatus_IsSuccess(t *testing.T) {
	tests := []struct {
		status   BuildStatus
		expected bool
	}{
		{BuildStatusSuccess, true},
		{BuildStatusFailed, false},
		{BuildStatusCancelled, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsSuccess(); got != tt.expected {
				t.Errorf("IsSuccess() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestRun_NilConfig(t *testing.T) {
	svc, _ := newService(newRoot(t, rootFixture{}), &mockRunner{})
	result, err := svc.Run(context.Background(), BuildRequest{})
	require.Error(t, err)
	require.Equal(t, BuildStatusFailed, result.Status)
}

func TestRun_Success(t *testing.T) {
	ws := newRoot(t, rootFixture{})
	mr := &mockRunner{result: &runner.Result{Stdout: "generated\n", ExitCode: 0}}
	svc, out := newService(ws, mr)

	result, err := svc.Run(context.Background(), BuildRequest{Config: config.Default()})
	require.NoError(t, err)
	require.Equal(t, BuildStatusSuccess, result.Status)
	require.Equal(t, "test-run", result.RunID)
	require.Equal(t, 0, result.ExitCode)
	require.Equal(t, "generated\n", result.Stdout)
	require.NotNil(t, result.Declaration)

	src, err := os.ReadFile(ws.Resolve("overte-tsd-config.json"))
	require.NoError(t, err)
	dst, err := os.ReadFile(ws.Resolve("overte/tools/jsdoc/overte-tsd-config.json"))
	require.NoError(t, err)
	require.Equal(t, src, dst)
	require.Equal(t, int64(len(src)), result.CopiedBytes)

	require.Len(t, mr.calls, 1)
	require.Equal(t, ws.Root(), mr.calls[0].Dir)
	require.Equal(t, []string{
		"npx", "jsdoc", "overte/tools/jsdoc/root.js",
		"-r", "overte/tools/jsdoc/api-mainpage.md",
		"-c", "overte/tools/jsdoc/overte-tsd-config.json",
		"-d", "dist",
	}, mr.calls[0].Args)

	printed := out.String()
	require.Contains(t, printed, "'overte' submodule verified.")
	require.Contains(t, printed, "Copied config file to: "+ws.Resolve("overte/tools/jsdoc/overte-tsd-config.json"))
	require.Contains(t, printed, "Running: npx jsdoc")
}

func TestRun_ValidationFailureAbortsLaterSteps(t *testing.T) {
	tests := []struct {
		name    string
		fixture rootFixture
		wantErr error
	}{
		{"directory missing", rootFixture{noDir: true}, submodule.ErrDirectoryMissing},
		{"declaration missing", rootFixture{noDeclaration: true}, submodule.ErrDeclarationMissing},
		{"marker absent", rootFixture{declaration: "[submodule \"other\"]\n"}, submodule.ErrMarkerAbsent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := newRoot(t, tt.fixture)
			mr := &mockRunner{result: &runner.Result{}}
			svc, out := newService(ws, mr)

			result, err := svc.Run(context.Background(), BuildRequest{Config: config.Default()})
			require.ErrorIs(t, err, tt.wantErr)
			require.True(t, derrors.IsCategory(err, derrors.CategoryDependency))
			require.Equal(t, BuildStatusFailed, result.Status)
			require.Equal(t, StepValidate, result.FailedStep)
			require.Empty(t, mr.calls, "generator must not run")
			require.NotContains(t, out.String(), "Copied config file")

			_, statErr := os.Stat(ws.Resolve("overte/tools/jsdoc/overte-tsd-config.json"))
			require.True(t, os.IsNotExist(statErr), "config must not be copied")
		})
	}
}

func TestRun_CopyFailureAbortsGenerate(t *testing.T) {
	ws := newRoot(t, rootFixture{noSource: true})
	mr := &mockRunner{result: &runner.Result{}}
	svc, _ := newService(ws, mr)

	result, err := svc.Run(context.Background(), BuildRequest{Config: config.Default()})
	require.Error(t, err)
	require.True(t, derrors.IsCategory(err, derrors.CategoryFileSystem))
	require.Equal(t, StepCopy, result.FailedStep)
	require.Empty(t, mr.calls)
}

func TestRun_GeneratorFailure(t *testing.T) {
	ws := newRoot(t, rootFixture{})
	cmdErr := derrors.CommandFailed("npx jsdoc", 2, errors.New("exit status 2"))
	mr := &mockRunner{result: &runner.Result{ExitCode: 2}, err: cmdErr}
	svc, out := newService(ws, mr)

	result, err := svc.Run(context.Background(), BuildRequest{Config: config.Default()})
	require.ErrorIs(t, err, cmdErr)
	require.Equal(t, BuildStatusFailed, result.Status)
	require.Equal(t, StepGenerate, result.FailedStep)
	require.Equal(t, 2, result.ExitCode)
	require.NotContains(t, out.String(), "completed")
}

func TestRun_ValidateOnly(t *testing.T) {
	ws := newRoot(t, rootFixture{})
	mr := &mockRunner{}
	svc, _ := newService(ws, mr)

	result, err := svc.Run(context.Background(), BuildRequest{Config: config.Default(), Options: BuildOptions{ValidateOnly: true}})
	require.NoError(t, err)
	require.True(t, result.Status.IsSuccess())
	require.Empty(t, mr.calls)
	_, statErr := os.Stat(ws.Resolve("overte/tools/jsdoc/overte-tsd-config.json"))
	require.True(t, os.IsNotExist(statErr))
}

func TestRun_DryRun(t *testing.T) {
	ws := newRoot(t, rootFixture{})
	mr := &mockRunner{}
	svc, out := newService(ws, mr)

	result, err := svc.Run(context.Background(), BuildRequest{Config: config.Default(), Options: BuildOptions{DryRun: true}})
	require.NoError(t, err)
	require.True(t, result.Status.IsSuccess())
	require.Empty(t, mr.calls)
	require.Contains(t, out.String(), "Would run: npx jsdoc overte/tools/jsdoc/root.js")
	_, statErr := os.Stat(ws.Resolve("overte/tools/jsdoc/overte-tsd-config.json"))
	require.True(t, os.IsNotExist(statErr))
}

func TestRun_Cancelled(t *testing.T) {
	ws := newRoot(t, rootFixture{})
	mr := &mockRunner{}
	svc, _ := newService(ws, mr)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := svc.Run(ctx, BuildRequest{Config: config.Default()})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, BuildStatusCancelled, result.Status)
	require.Empty(t, mr.calls)
}

func TestRun_LockHeld(t *testing.T) {
	t.Setenv("TMPDIR", t.TempDir())
	ws := newRoot(t, rootFixture{})
	unlock, err := ws.Lock(context.Background())
	require.NoError(t, err)
	defer unlock()

	other, err := workspace.NewManager(ws.Root())
	require.NoError(t, err)
	svc, _ := newService(other, &mockRunner{})

	result, err := svc.Run(context.Background(), BuildRequest{Config: config.Default()})
	require.True(t, derrors.IsCategory(err, derrors.CategoryLock))
	require.Equal(t, StepLock, result.FailedStep)
}

func TestRun_ReadOnlyModesSkipLock(t *testing.T) {
	t.Setenv("TMPDIR", t.TempDir())
	ws := newRoot(t, rootFixture{})
	unlock, err := ws.Lock(context.Background())
	require.NoError(t, err)
	defer unlock()

	for _, opts := range []BuildOptions{{ValidateOnly: true}, {DryRun: true}} {
		svc, _ := newService(ws, &mockRunner{})
		result, err := svc.Run(context.Background(), BuildRequest{Config: config.Default(), Options: opts})
		require.NoError(t, err)
		require.True(t, result.Status.IsSuccess())
	}
}

func TestRun_LeavesNoLockFileInRoot(t *testing.T) {
	t.Setenv("TMPDIR", t.TempDir())

	tests := []struct {
		name    string
		fixture rootFixture
		options BuildOptions
	}{
		{"full run", rootFixture{}, BuildOptions{}},
		{"validate only", rootFixture{}, BuildOptions{ValidateOnly: true}},
		{"dry run", rootFixture{}, BuildOptions{DryRun: true}},
		{"dependency missing", rootFixture{noDir: true}, BuildOptions{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := newRoot(t, tt.fixture)
			before, err := os.ReadDir(ws.Root())
			require.NoError(t, err)

			svc, _ := newService(ws, &mockRunner{result: &runner.Result{}})
			_, _ = svc.Run(context.Background(), BuildRequest{Config: config.Default(), Options: tt.options})

			after, err := os.ReadDir(ws.Root())
			require.NoError(t, err)
			require.Equal(t, entryNames(before), entryNames(after))
			require.NotContains(t, ws.LockPath(), ws.Root())
		})
	}
}

func entryNames(entries []os.DirEntry) []string {
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestRun_RealGenerator(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	// sh -c '<script>' <entry> -r <readme> -c <config> -d <out>: $0 is the entry, $6 the output dir
	tests := []struct {
		name     string
		script   string
		wantErr  bool
		wantExit int
	}{
		{"success writes output", `mkdir -p "$6" && echo "$0" > "$6/index.txt" && echo built`, false, 0},
		{"non-zero exit", `echo "jsdoc: bad config" 1>&2; exit 4`, true, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := newRoot(t, rootFixture{})
			cfg := config.Default()
			cfg.Generator.Executable = "sh -c '" + strings.ReplaceAll(tt.script, "'", `'\''`) + "'"

			var relayed bytes.Buffer
			svc, _ := newService(ws, runner.New().WithOutput(&relayed, &relayed))

			result, err := svc.Run(context.Background(), BuildRequest{Config: cfg})
			require.Equal(t, tt.wantExit, result.ExitCode)
			if tt.wantErr {
				require.Error(t, err)
				require.True(t, derrors.IsCategory(err, derrors.CategoryCommand))
				require.Contains(t, relayed.String(), "jsdoc: bad config")
				return
			}
			require.NoError(t, err)
			require.Equal(t, "built\n", result.Stdout)
			index, err := os.ReadFile(ws.Resolve("dist/index.txt"))
			require.NoError(t, err)
			require.Equal(t, "overte/tools/jsdoc/root.js\n", string(index))
		})
	}
}

func TestGeneratorCommand(t *testing.T) {
	gen := config.Default().Generator
	gen.Executable = `node "tools/my jsdoc.js"`
	gen.ExtraArgs = []string{"--pedantic"}

	cmd, err := GeneratorCommand(gen, "/work")
	require.NoError(t, err)
	require.Equal(t, "/work", cmd.Dir)
	require.Equal(t, []string{
		"node", "tools/my jsdoc.js", "overte/tools/jsdoc/root.js",
		"-r", "overte/tools/jsdoc/api-mainpage.md",
		"-c", "overte/tools/jsdoc/overte-tsd-config.json",
		"-d", "dist", "--pedantic",
	}, cmd.Args)

	gen.Executable = `node "unterminated`
	_, err = GeneratorCommand(gen, "/work")
	require.True(t, derrors.IsCategory(err, derrors.CategoryValidation))
}

// recordingRecorder captures step and run outcomes.
type recordingRecorder struct {
	metrics.NoopRecorder
	steps    []string
	outcomes []metrics.RunOutcomeLabel
	exitCode *int
}

func (r *recordingRecorder) IncStepResult(step string, result metrics.ResultLabel) {
	r.steps = append(r.steps, step+":"+string(result))
}

func (r *recordingRecorder) IncRunOutcome(outcome metrics.RunOutcomeLabel) {
	r.outcomes = append(r.outcomes, outcome)
}

func (r *recordingRecorder) SetCommandExitCode(code int) {
	r.exitCode = &code
}

func TestRun_RecordsMetrics(t *testing.T) {
	tests := []struct {
		name        string
		fixture     rootFixture
		runnerErr   error
		options     BuildOptions
		wantSteps   []string
		wantOutcome metrics.RunOutcomeLabel
	}{
		{
			name:        "success",
			wantSteps:   []string{"lock:success", "validate:success", "copy:success", "generate:success"},
			wantOutcome: metrics.RunOutcomeSuccess,
		},
		{
			name:        "validation failure",
			fixture:     rootFixture{noDir: true},
			wantSteps:   []string{"lock:success", "validate:fatal"},
			wantOutcome: metrics.RunOutcomeFailed,
		},
		{
			name:        "generator failure",
			runnerErr:   derrors.CommandFailed("npx jsdoc", 1, errors.New("exit status 1")),
			wantSteps:   []string{"lock:success", "validate:success", "copy:success", "generate:fatal"},
			wantOutcome: metrics.RunOutcomeFailed,
		},
		{
			name:        "dry run",
			options:     BuildOptions{DryRun: true},
			wantSteps:   []string{"validate:success"},
			wantOutcome: metrics.RunOutcomeDryRun,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := newRoot(t, tt.fixture)
			rec := &recordingRecorder{}
			mr := &mockRunner{result: &runner.Result{}, err: tt.runnerErr}
			svc, _ := newService(ws, mr)
			svc.WithRecorder(rec)

			_, _ = svc.Run(context.Background(), BuildRequest{Config: config.Default(), Options: tt.options})
			require.Equal(t, tt.wantSteps, rec.steps)
			require.Equal(t, []metrics.RunOutcomeLabel{tt.wantOutcome}, rec.outcomes)
		})
	}
}

func TestGeneratorCommand_BlankFieldsKeepFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docrun.yaml")
	require.NoError(t, os.WriteFile(path, []byte("generator:\n  readme: \"\"\n  config: \"\"\n  output_dir: \"\"\n"), 0o600))
	cfg, err := config.Load(path, true)
	require.NoError(t, err)

	cmd, err := GeneratorCommand(cfg.Generator, "/work")
	require.NoError(t, err)
	require.Equal(t, []string{
		"npx", "jsdoc", config.DefaultEntry,
		"-r", config.DefaultReadme,
		"-c", config.DefaultGeneratorConfig,
		"-d", config.DefaultOutputDir,
	}, cmd.Args)
}
