package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/wikibuilder/internal/foundation/errors"
)

// DefaultFileName is the configuration file looked up when none is given.
const DefaultFileName = "_config.yml"

// Config represents the site configuration. A Config value is created once per
// invocation and passed explicitly to every component that needs it.
type Config struct {
	URL         string `yaml:"url"`
	Title       string `yaml:"title"`
	Keywords    string `yaml:"keywords"`
	Description string `yaml:"description"`
	Author      string `yaml:"author"`
	Root        string `yaml:"root"`

	Source      string `yaml:"source"`
	Destination string `yaml:"destination"`
	ThemesDir   string `yaml:"themes_dir"`
	Theme       string `yaml:"theme"`
	DefaultExt  string `yaml:"default_ext"`

	// Markdown lists renderer extension names. When empty, Pygments decides
	// between the minimal and the extended set.
	Markdown   []string `yaml:"markdown"`
	Pygments   *bool    `yaml:"pygments"`
	UnsafeHTML bool     `yaml:"unsafe_html"`
	Sanitize   bool     `yaml:"sanitize"`

	IncludeDrafts bool  `yaml:"include_drafts"`
	Workers       int   `yaml:"workers"`
	Shuffle       bool  `yaml:"shuffle"`
	ShuffleSeed   int64 `yaml:"shuffle_seed"`

	LogLevel    LogLevel  `yaml:"log_level"`
	LogFormat   LogFormat `yaml:"log_format"`
	MetricsFile string    `yaml:"metrics_file"`

	Watch WatchConfig `yaml:"watch"`
	Serve ServeConfig `yaml:"serve"`

	// Params collects unrecognized top-level keys; they are exposed to templates under "site".
	Params map[string]any `yaml:",inline"`

	// baseDir is the directory relative paths are resolved against.
	baseDir string
}

// WatchConfig tunes the incremental rebuild loop.
type WatchConfig struct {
	QueueSize           int           `yaml:"queue_size"`
	Coalesce            time.Duration `yaml:"coalesce"`
	FullRebuildInterval time.Duration `yaml:"full_rebuild_interval"`
}

// ServeConfig configures the local preview server.
type ServeConfig struct {
	Port int `yaml:"port"`
}

// Load reads the configuration file at configPath, applies defaults and validates it.
//
// Environment files (.env, .env.local) next to the configuration are loaded
// first without overriding variables already set, then ${VAR} references in
// the file are expanded.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "resolve configuration path").Fatal().Build()
	}
	baseDir := filepath.Dir(absPath)

	loadEnvFiles(baseDir)

	data, err := os.ReadFile(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ferrors.ConfigError("configuration file not found").WithContext("path", configPath).Build()
		}
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "read configuration file").Fatal().
			WithContext("path", configPath).Build()
	}

	cfg, err := Parse([]byte(os.ExpandEnv(string(data))))
	if err != nil {
		return nil, err
	}
	cfg.baseDir = baseDir

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes configuration YAML and applies defaults. It does not touch the
// filesystem; relative paths resolve against the working directory until
// SetBaseDir is called.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "invalid configuration YAML").Fatal().Build()
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// Default returns a configuration with every default applied, rooted at baseDir.
func Default(baseDir string) *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	cfg.baseDir = baseDir
	return cfg
}

// SetBaseDir sets the directory relative paths are resolved against.
func (c *Config) SetBaseDir(dir string) { c.baseDir = dir }

// BaseDir returns the directory relative paths are resolved against.
func (c *Config) BaseDir() string { return c.baseDir }

// SourceDir returns the absolute source directory.
func (c *Config) SourceDir() string { return c.resolve(c.Source) }

// DestinationDir returns the absolute destination directory.
func (c *Config) DestinationDir() string { return c.resolve(c.Destination) }

// ThemeDir returns the absolute directory of the configured theme.
func (c *Config) ThemeDir() string { return c.resolve(filepath.Join(c.ThemesDir, c.Theme)) }

// Ext returns the document extension including the leading dot.
func (c *Config) Ext() string { return "." + strings.TrimPrefix(c.DefaultExt, ".") }

func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	base := c.baseDir
	if base == "" {
		base, _ = os.Getwd()
	}
	return filepath.Join(base, p)
}

// SiteVars returns the site settings exposed to templates as "site".
// Trailing slashes are stripped from url and root so templates can join paths with "/".
func (c *Config) SiteVars() map[string]any {
	vars := make(map[string]any, len(c.Params)+8)
	for k, v := range c.Params {
		vars[k] = v
	}
	vars["url"] = strings.TrimSuffix(c.URL, "/")
	vars["title"] = c.Title
	vars["keywords"] = c.Keywords
	vars["description"] = c.Description
	vars["author"] = c.Author
	vars["root"] = strings.TrimSuffix(c.Root, "/")
	vars["theme"] = c.Theme
	vars["default_ext"] = strings.TrimPrefix(c.DefaultExt, ".")
	return vars
}

func loadEnvFiles(dir string) {
	for _, name := range []string{".env", ".env.local"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err != nil {
			continue
		}
		// godotenv.Load never overrides variables already present in the environment.
		if err := godotenv.Load(p); err != nil {
			fmt.Fprintf(os.Stderr, "Note: could not load %s: %v\n", p, err)
		}
	}
}
