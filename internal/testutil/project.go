// Package testutil provides fixtures for tests that need a repository root
// laid out the way docrun expects.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/docrun/internal/config"
)

// DefaultGitmodules declares the default dependency as a submodule.
const DefaultGitmodules = "[submodule \"overte\"]\n\tpath = overte\n\turl = https://github.com/overte-org/overte.git\n"

// ProjectBuilder provides a fluent interface for creating repository roots in tests.
type ProjectBuilder struct {
	t           *testing.T
	cfg         *config.Config
	gitmodules  *string
	skipDepDir  bool
	skipSource  bool
	source      string
	files       map[string]string
	writeConfig bool
}

// NewProjectBuilder starts from the default configuration with every
// precondition satisfied.
func NewProjectBuilder(t *testing.T) *ProjectBuilder {
	t.Helper()
	decl := DefaultGitmodules
	return &ProjectBuilder{
		t:          t,
		cfg:        config.Default(),
		gitmodules: &decl,
		source:     `{"opts":{}}`,
		files:      make(map[string]string),
	}
}

// WithoutDependencyDir omits the submodule directory.
func (pb *ProjectBuilder) WithoutDependencyDir() *ProjectBuilder {
	pb.skipDepDir = true
	return pb
}

// WithoutDeclaration omits the declaration file.
func (pb *ProjectBuilder) WithoutDeclaration() *ProjectBuilder {
	pb.gitmodules = nil
	return pb
}

// WithDeclaration replaces the declaration file contents.
func (pb *ProjectBuilder) WithDeclaration(content string) *ProjectBuilder {
	pb.gitmodules = &content
	return pb
}

// WithSource replaces the source config contents.
func (pb *ProjectBuilder) WithSource(content string) *ProjectBuilder {
	pb.source = content
	pb.skipSource = false
	return pb
}

// WithoutSource omits the source config.
func (pb *ProjectBuilder) WithoutSource() *ProjectBuilder {
	pb.skipSource = true
	return pb
}

// WithGenerator sets the generator executable and writes the config file.
func (pb *ProjectBuilder) WithGenerator(executable string) *ProjectBuilder {
	pb.cfg.Generator.Executable = executable
	pb.writeConfig = true
	return pb
}

// WithFile adds an arbitrary file relative to the root.
func (pb *ProjectBuilder) WithFile(rel, content string) *ProjectBuilder {
	pb.files[rel] = content
	return pb
}

// Config returns the configuration the project was built for.
func (pb *ProjectBuilder) Config() *config.Config {
	return pb.cfg
}

// Build creates the project in a fresh temp directory and returns its root.
func (pb *ProjectBuilder) Build() string {
	pb.t.Helper()
	root := pb.t.TempDir()

	if !pb.skipDepDir {
		pb.mkdir(root, filepath.Dir(pb.cfg.Copy.Destination))
	}
	if pb.gitmodules != nil {
		pb.write(root, pb.cfg.Dependency.DeclarationFile, *pb.gitmodules)
	}
	if !pb.skipSource {
		pb.write(root, pb.cfg.Copy.Source, pb.source)
	}
	for rel, content := range pb.files {
		pb.write(root, rel, content)
	}
	if pb.writeConfig {
		data, err := yaml.Marshal(pb.cfg)
		if err != nil {
			pb.t.Fatalf("Failed to marshal config: %v", err)
		}
		pb.write(root, config.DefaultFileName, string(data))
	}
	return root
}

func (pb *ProjectBuilder) mkdir(root, rel string) {
	pb.t.Helper()
	if err := os.MkdirAll(filepath.Join(root, rel), 0o750); err != nil {
		pb.t.Fatalf("Failed to create %s: %v", rel, err)
	}
}

func (pb *ProjectBuilder) write(root, rel, content string) {
	pb.t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		pb.t.Fatalf("Failed to create parent of %s: %v", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		pb.t.Fatalf("Failed to write %s: %v", rel, err)
	}
}
