package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/wikibuilder/internal/foundation/errors"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte("title: Wiki\n"))
	require.NoError(t, err)

	assert.Equal(t, "Wiki", cfg.Title)
	assert.Equal(t, DefaultSource, cfg.Source)
	assert.Equal(t, DefaultDestination, cfg.Destination)
	assert.Equal(t, DefaultThemesDir, cfg.ThemesDir)
	assert.Equal(t, DefaultTheme, cfg.Theme)
	assert.Equal(t, "md", cfg.DefaultExt)
	assert.Equal(t, ".md", cfg.Ext())
	assert.Equal(t, "/", cfg.Root)
	assert.Equal(t, DefaultPort, cfg.Serve.Port)
	assert.Equal(t, DefaultQueueSize, cfg.Watch.QueueSize)
	assert.Equal(t, time.Duration(0), cfg.Watch.Coalesce)
	assert.Equal(t, LogLevelInfo, cfg.LogLevel)
	assert.Equal(t, LogFormatText, cfg.LogFormat)
}

func TestParseFullConfig(t *testing.T) {
	cfg, err := Parse([]byte(`
url: https://wiki.example.com/
root: /docs/
default_ext: .markdown
markdown: [gfm, toc]
workers: 4
log_level: WARNING
log_format: json
watch:
  queue_size: 8
  coalesce: 250ms
  full_rebuild_interval: 1h
serve:
  port: 9000
analytics: UA-1
`))
	require.NoError(t, err)

	assert.Equal(t, "https://wiki.example.com", cfg.URL)
	assert.Equal(t, "markdown", cfg.DefaultExt)
	assert.Equal(t, []string{"gfm", "toc"}, cfg.MarkdownExtensions())
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, LogLevelWarn, cfg.LogLevel)
	assert.Equal(t, LogFormatJSON, cfg.LogFormat)
	assert.Equal(t, 8, cfg.Watch.QueueSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Watch.Coalesce)
	assert.Equal(t, time.Hour, cfg.Watch.FullRebuildInterval)
	assert.Equal(t, 9000, cfg.Serve.Port)
	assert.Equal(t, "UA-1", cfg.Params["analytics"])

	site := cfg.SiteVars()
	assert.Equal(t, "https://wiki.example.com", site["url"])
	assert.Equal(t, "/docs", site["root"])
	assert.Equal(t, "UA-1", site["analytics"])
}

func TestParseInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("title: [unterminated\n"))
	require.Error(t, err)
	assert.True(t, ferrors.IsConfigError(err))
}

func TestMarkdownExtensionsLegacySwitch(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want []string
	}{
		{"default enables extended set", "title: x\n", []string{"fenced_code", "extra", "toc"}},
		{"pygments off", "pygments: false\n", []string{"fenced_code"}},
		{"explicit list wins", "pygments: false\nmarkdown: [table]\n", []string{"table"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.yaml))
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.MarkdownExtensions())
		})
	}
}

func TestLoadResolvesPathsAgainstConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFileName)
	writeFile(t, path, "title: Wiki\nsource: notes\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "notes"), cfg.SourceDir())
	assert.Equal(t, filepath.Join(dir, "output"), cfg.DestinationDir())
	assert.Equal(t, filepath.Join(dir, "themes", "simple"), cfg.ThemeDir())
}

func TestLoadExpandsEnvAndDotenv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".env"), "WIKIBUILDER_TEST_AUTHOR=dotenv\nWIKIBUILDER_TEST_TITLE=from-file\n")
	writeFile(t, filepath.Join(dir, DefaultFileName), "title: ${WIKIBUILDER_TEST_TITLE}\nauthor: ${WIKIBUILDER_TEST_AUTHOR}\n")
	t.Setenv("WIKIBUILDER_TEST_TITLE", "from-env")
	t.Cleanup(func() { _ = os.Unsetenv("WIKIBUILDER_TEST_AUTHOR") })

	cfg, err := Load(filepath.Join(dir, DefaultFileName))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Title, "existing environment wins over .env")
	assert.Equal(t, "dotenv", cfg.Author)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
	assert.True(t, ferrors.IsConfigError(err))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		category ferrors.ErrorCategory
	}{
		{"same source and destination", func(c *Config) { c.Destination = c.Source }, ferrors.CategoryConfig},
		{"destination inside source", func(c *Config) { c.Destination = "content/out" }, ferrors.CategoryConfig},
		{"negative workers", func(c *Config) { c.Workers = -1 }, ferrors.CategoryValidation},
		{"bad port", func(c *Config) { c.Serve.Port = 70000 }, ferrors.CategoryValidation},
		{"extension with slash", func(c *Config) { c.DefaultExt = "a/b" }, ferrors.CategoryValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default(t.TempDir())
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, tt.category, ferrors.GetCategory(err))
		})
	}

	require.NoError(t, Default(t.TempDir()).Validate())
}

func TestCheckPaths(t *testing.T) {
	dir := t.TempDir()
	cfg := Default(dir)

	err := cfg.CheckPaths()
	require.Error(t, err)
	assert.True(t, ferrors.IsConfigError(err))

	require.NoError(t, os.MkdirAll(cfg.SourceDir(), 0o750))
	err = cfg.CheckPaths()
	require.Error(t, err, "theme still missing")

	require.NoError(t, os.MkdirAll(cfg.ThemeDir(), 0o750))
	require.NoError(t, cfg.CheckPaths())
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "site", DefaultFileName)
	require.NoError(t, Init(path, false))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "My Wiki", cfg.Title)
	assert.Equal(t, []string{"fenced_code", "extra", "toc"}, cfg.MarkdownExtensions())

	err = Init(path, false)
	require.Error(t, err)
	assert.True(t, ferrors.IsConfigError(err))

	require.NoError(t, Init(path, true))
}

func TestSlogLevel(t *testing.T) {
	t.Setenv("WIKIBUILDER_LOG_LEVEL", "")
	assert.Equal(t, slog.LevelDebug, LogLevelError.SlogLevel(true))
	assert.Equal(t, slog.LevelWarn, LogLevelWarn.SlogLevel(false))
	assert.Equal(t, slog.LevelInfo, LogLevel("bogus").SlogLevel(false))

	t.Setenv("WIKIBUILDER_LOG_LEVEL", "error")
	assert.Equal(t, slog.LevelError, LogLevelInfo.SlogLevel(false))
}

func TestNormalizeLogLevel(t *testing.T) {
	assert.Equal(t, LogLevelDebug, NormalizeLogLevel("  DEBUG "))
	assert.Equal(t, LogLevelWarn, NormalizeLogLevel("warning"))
	assert.Equal(t, LogLevelInfo, NormalizeLogLevel(""))
	assert.Equal(t, LogFormatJSON, NormalizeLogFormat("JSON"))
	assert.Equal(t, LogFormatText, NormalizeLogFormat("xml"))
}
