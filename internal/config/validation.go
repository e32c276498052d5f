package config

import (
	"path/filepath"
	"strings"

	derrors "git.home.luguber.info/inful/docrun/internal/errors"
)

// Validate checks that the configuration can drive a run. Filesystem paths
// touched by the orchestrator itself must stay inside the root.
func (c *Config) Validate() error {
	rooted := []struct {
		field, value string
	}{
		{"dependency.directory", c.Dependency.Directory},
		{"dependency.declaration_file", c.Dependency.DeclarationFile},
		{"copy.source", c.Copy.Source},
		{"copy.destination", c.Copy.Destination},
	}
	for _, p := range rooted {
		if err := validateRootedPath(p.field, p.value); err != nil {
			return err
		}
	}

	if strings.TrimSpace(c.Dependency.Marker) == "" {
		return derrors.ValidationFailed("dependency.marker", "must not be empty")
	}
	if strings.TrimSpace(c.Generator.Executable) == "" {
		return derrors.ValidationFailed("generator.executable", "must not be empty")
	}
	if filepath.Clean(c.Copy.Source) == filepath.Clean(c.Copy.Destination) {
		return derrors.ValidationFailed("copy.destination", "must differ from copy.source")
	}
	return nil
}

func validateRootedPath(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return derrors.ValidationFailed(field, "must not be empty")
	}
	if !filepath.IsLocal(value) {
		return derrors.ValidationFailed(field, "must be a relative path inside the root")
	}
	return nil
}
