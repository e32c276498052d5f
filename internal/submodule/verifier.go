package submodule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	gitconfig "github.com/go-git/go-git/v5/config"

	"git.home.luguber.info/inful/docrun/internal/config"
	derrors "git.home.luguber.info/inful/docrun/internal/errors"
	"git.home.luguber.info/inful/docrun/internal/logfields"
	"git.home.luguber.info/inful/docrun/internal/observability"
)

// Names of the individual checks, used in error context and metrics labels.
const (
	CheckDirectory   = "directory"
	CheckDeclaration = "declaration"
	CheckMarker      = "marker"
)

var (
	ErrDirectoryMissing   = errors.New("dependency directory does not exist")
	ErrDeclarationMissing = errors.New("submodule declaration file not found")
	ErrMarkerAbsent       = errors.New("dependency is not declared as a git submodule")
)

// Declaration is the parsed .gitmodules entry matching the dependency, when one exists.
type Declaration struct {
	Name   string
	Path   string
	URL    string
	Branch string
}

// Result describes a successful verification.
type Result struct {
	Directory       string // absolute
	DeclarationFile string // absolute
	Declaration     *Declaration
}

// Verifier checks a single dependency under a fixed root.
type Verifier struct {
	root string
	cfg  config.DependencyConfig
}

// NewVerifier creates a verifier for the dependency described by cfg, resolved against root.
func NewVerifier(root string, cfg config.DependencyConfig) *Verifier {
	return &Verifier{root: root, cfg: cfg}
}

// Verify runs the directory, declaration and marker checks in order.
func (v *Verifier) Verify(ctx context.Context) (*Result, error) {
	dir := filepath.Join(v.root, v.cfg.Directory)
	declPath := filepath.Join(v.root, v.cfg.DeclarationFile)

	if st, err := os.Stat(dir); err != nil || !st.IsDir() {
		cause := fmt.Errorf("%w: '%s'", ErrDirectoryMissing, v.cfg.Directory)
		if err == nil {
			cause = fmt.Errorf("%w: '%s' is not a directory", ErrDirectoryMissing, v.cfg.Directory)
		}
		return nil, derrors.DependencyCheckFailed(CheckDirectory, dir, cause)
	}

	if _, err := os.Stat(declPath); err != nil {
		return nil, derrors.DependencyCheckFailed(CheckDeclaration, declPath,
			fmt.Errorf("%w: %s", ErrDeclarationMissing, v.cfg.DeclarationFile))
	}

	data, err := os.ReadFile(declPath)
	if err != nil {
		return nil, derrors.DependencyCheckFailed(CheckDeclaration, declPath, err)
	}

	if !strings.Contains(string(data), v.cfg.Marker) {
		return nil, derrors.DependencyCheckFailed(CheckMarker, declPath,
			fmt.Errorf("%w: '%s' (%s not found in %s)", ErrMarkerAbsent, v.cfg.Directory, v.cfg.Marker, v.cfg.DeclarationFile))
	}

	result := &Result{Directory: dir, DeclarationFile: declPath}
	decl, perr := v.lookupDeclaration(data)
	switch {
	case perr != nil:
		observability.WarnContext(ctx, "Could not parse submodule declaration file",
			logfields.Path(declPath), logfields.Error(perr))
	case decl != nil:
		result.Declaration = decl
		observability.DebugContext(ctx, "Submodule declaration found",
			logfields.Submodule(decl.Name), logfields.Path(decl.Path), logfields.URL(decl.URL),
			slog.String("branch", decl.Branch))
	default:
		observability.DebugContext(ctx, "Marker present but no parsed submodule entry matches the dependency directory",
			logfields.Path(v.cfg.Directory))
	}

	return result, nil
}

// lookupDeclaration parses the declaration file as .gitmodules and returns the
// entry whose path (or name) matches the dependency directory.
func (v *Verifier) lookupDeclaration(data []byte) (*Declaration, error) {
	modules := gitconfig.NewModules()
	if err := modules.Unmarshal(data); err != nil {
		return nil, err
	}

	want := filepath.ToSlash(filepath.Clean(v.cfg.Directory))
	for name, sm := range modules.Submodules {
		if sm.Path != want && name != want {
			continue
		}
		if err := sm.Validate(); err != nil {
			return nil, fmt.Errorf("submodule %q: %w", name, err)
		}
		return &Declaration{Name: name, Path: sm.Path, URL: sm.URL, Branch: sm.Branch}, nil
	}
	return nil, nil
}
