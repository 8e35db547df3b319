package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	ferrors "git.home.luguber.info/inful/wikibuilder/internal/foundation/errors"
)

// Validate checks the configuration for values that would make a build
// impossible. It does not require directories to exist; see CheckPaths.
func (c *Config) Validate() error {
	if strings.ContainsAny(c.DefaultExt, `/\`) {
		return ferrors.ValidationError("default_ext must be a bare extension").
			WithContext("default_ext", c.DefaultExt).Build()
	}
	if c.Workers < 0 {
		return ferrors.ValidationError("workers must not be negative").
			WithContext("workers", c.Workers).Build()
	}
	if c.Serve.Port < 0 || c.Serve.Port > 65535 {
		return ferrors.ValidationError("serve.port out of range").
			WithContext("port", c.Serve.Port).Build()
	}
	if c.Watch.FullRebuildInterval < 0 {
		return ferrors.ValidationError("watch.full_rebuild_interval must not be negative").Build()
	}
	src, dst := c.SourceDir(), c.DestinationDir()
	if src == dst {
		return ferrors.ConfigError("source and destination must differ").
			WithContext("path", src).Build()
	}
	if rel, err := filepath.Rel(src, dst); err == nil && !strings.HasPrefix(rel, "..") {
		return ferrors.ConfigError("destination must not be inside source").
			WithContext("path", dst).Build()
	}
	return nil
}

// CheckPaths verifies that the source and theme directories exist.
// It runs before any document is processed.
func (c *Config) CheckPaths() error {
	checks := []struct {
		name string
		path string
	}{
		{"source", c.SourceDir()},
		{"theme", c.ThemeDir()},
	}
	for _, chk := range checks {
		info, err := os.Stat(chk.path)
		if err != nil {
			return ferrors.ConfigError(fmt.Sprintf("%s directory not found", chk.name)).
				WithContext("path", chk.path).WithCause(err).Build()
		}
		if !info.IsDir() {
			return ferrors.ConfigError(fmt.Sprintf("%s path is not a directory", chk.name)).
				WithContext("path", chk.path).Build()
		}
	}
	return nil
}
