package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	derrors "git.home.luguber.info/inful/docrun/internal/errors"
)

// DefaultFileName is the configuration file looked up in the root when --config is not given.
const DefaultFileName = "docrun.yaml"

// Config represents the orchestrator configuration. All paths are relative to the root.
type Config struct {
	Dependency DependencyConfig `yaml:"dependency"`
	Copy       CopyConfig       `yaml:"copy"`
	Generator  GeneratorConfig  `yaml:"generator"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// DependencyConfig names the submodule that must be present before a run.
type DependencyConfig struct {
	Directory       string `yaml:"directory"`
	DeclarationFile string `yaml:"declaration_file"`
	Marker          string `yaml:"marker"`
}

// CopyConfig is the single file copied into the submodule before generation.
type CopyConfig struct {
	Source      string `yaml:"source"`
	Destination string `yaml:"destination"`
}

// GeneratorConfig describes the documentation generator invocation.
type GeneratorConfig struct {
	Executable string   `yaml:"executable"` // may contain several words, e.g. "npx jsdoc"
	Entry      string   `yaml:"entry"`
	Readme     string   `yaml:"readme"`
	Config     string   `yaml:"config"`
	OutputDir  string   `yaml:"output_dir"`
	ExtraArgs  []string `yaml:"extra_args,omitempty"`
}

// MetricsConfig controls the optional Prometheus textfile output.
type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty"`
}

// Load reads configuration from configPath. When the file does not exist and
// required is false, built-in defaults are returned instead.
func Load(configPath string, required bool) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if required {
			return nil, derrors.ConfigNotFound(configPath)
		}
		return Default(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, derrors.ConfigInvalid(configPath, fmt.Errorf("failed to read config file: %w", err))
	}

	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, derrors.ConfigInvalid(configPath, fmt.Errorf("failed to unmarshal config: %w", err))
	}

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Init writes the default configuration to configPath.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return derrors.ValidationFailed("config", fmt.Sprintf("configuration file already exists: %s (use --force to overwrite)", configPath))
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return derrors.InternalError("failed to marshal config", err)
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return derrors.ConfigInvalid(configPath, fmt.Errorf("failed to write config file: %w", err))
	}
	return nil
}
