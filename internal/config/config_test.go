package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	derrors "git.home.luguber.info/inful/docrun/internal/errors"
)

func TestLoad_MissingOptionalFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), DefaultFileName), false)
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
	require.Equal(t, `[submodule "overte"]`, cfg.Dependency.Marker)
	require.Equal(t, "overte/tools/jsdoc/overte-tsd-config.json", cfg.Copy.Destination)
}

func TestLoad_MissingRequiredFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), true)
	require.Error(t, err)
	require.True(t, derrors.IsCategory(err, derrors.CategoryConfig))
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docrun.yaml")
	content := `
dependency:
  directory: vendor/engine
  marker: '[submodule "vendor/engine"]'
generator:
  output_dir: public
  extra_args: ["--verbose"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path, true)
	require.NoError(t, err)
	require.Equal(t, "vendor/engine", cfg.Dependency.Directory)
	require.Equal(t, DefaultDeclarationFile, cfg.Dependency.DeclarationFile)
	require.Equal(t, "public", cfg.Generator.OutputDir)
	require.Equal(t, DefaultExecutable, cfg.Generator.Executable)
	require.Equal(t, []string{"--verbose"}, cfg.Generator.ExtraArgs)
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("DOCRUN_TEST_OUT", "build/docs")
	path := filepath.Join(t.TempDir(), "docrun.yaml")
	require.NoError(t, os.WriteFile(path, []byte("generator:\n  output_dir: ${DOCRUN_TEST_OUT}\n"), 0o600))

	cfg, err := Load(path, true)
	require.NoError(t, err)
	require.Equal(t, "build/docs", cfg.Generator.OutputDir)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docrun.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dependency: [unclosed"), 0o600))

	_, err := Load(path, true)
	require.Error(t, err)
	require.True(t, derrors.IsCategory(err, derrors.CategoryConfig))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"absolute dependency dir", func(c *Config) { c.Dependency.Directory = "/etc" }, "dependency.directory"},
		{"escaping destination", func(c *Config) { c.Copy.Destination = "../outside.json" }, "copy.destination"},
		{"blank marker", func(c *Config) { c.Dependency.Marker = "  " }, "dependency.marker"},
		{"blank executable", func(c *Config) { c.Generator.Executable = "" }, "generator.executable"},
		{"copy onto itself", func(c *Config) { c.Copy.Destination = c.Copy.Source }, "copy.destination"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			de, ok := derrors.As(err)
			require.True(t, ok)
			require.Equal(t, derrors.CategoryValidation, de.Category)
			require.Equal(t, tt.field, de.Context["field"])
		})
	}

	require.NoError(t, Default().Validate())
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)

	require.NoError(t, Init(path, false))
	cfg, err := Load(path, true)
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)

	err = Init(path, false)
	require.Error(t, err, "existing file must not be overwritten without force")
	require.NoError(t, Init(path, true))
}

func TestLoadEnvFile(t *testing.T) {
	root := t.TempDir()

	loaded, err := LoadEnvFile(root)
	require.NoError(t, err)
	require.Empty(t, loaded)

	t.Setenv("DOCRUN_PRESET", "kept")
	require.NoError(t, os.WriteFile(filepath.Join(root, ".env"), []byte("DOCRUN_FROM_FILE=loaded\nDOCRUN_PRESET=overwritten\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("DOCRUN_FROM_FILE") })

	loaded, err = LoadEnvFile(root)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, ".env"), loaded)
	require.Equal(t, "loaded", os.Getenv("DOCRUN_FROM_FILE"))
	require.Equal(t, "kept", os.Getenv("DOCRUN_PRESET"))
}
