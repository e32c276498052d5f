package config

// Built-in defaults: the overte submodule and its JSDoc toolchain.
const (
	DefaultDependencyDir   = "overte"
	DefaultDeclarationFile = ".gitmodules"
	DefaultMarker          = `[submodule "overte"]`
	DefaultSourceConfig    = "overte-tsd-config.json"
	DefaultDestConfig      = "overte/tools/jsdoc/overte-tsd-config.json"
	DefaultExecutable      = "npx jsdoc"
	DefaultEntry           = "overte/tools/jsdoc/root.js"
	DefaultReadme          = "overte/tools/jsdoc/api-mainpage.md"
	DefaultGeneratorConfig = "overte/tools/jsdoc/overte-tsd-config.json"
	DefaultOutputDir       = "dist"
)

// Default returns a fully populated configuration.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults fills every empty field with its built-in default.
func applyDefaults(cfg *Config) {
	setDefault(&cfg.Dependency.Directory, DefaultDependencyDir)
	setDefault(&cfg.Dependency.DeclarationFile, DefaultDeclarationFile)
	setDefault(&cfg.Dependency.Marker, DefaultMarker)
	setDefault(&cfg.Copy.Source, DefaultSourceConfig)
	setDefault(&cfg.Copy.Destination, DefaultDestConfig)
	setDefault(&cfg.Generator.Executable, DefaultExecutable)
	setDefault(&cfg.Generator.Entry, DefaultEntry)
	setDefault(&cfg.Generator.Readme, DefaultReadme)
	setDefault(&cfg.Generator.Config, DefaultGeneratorConfig)
	setDefault(&cfg.Generator.OutputDir, DefaultOutputDir)
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}
