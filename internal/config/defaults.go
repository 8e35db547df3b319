package config

import (
	"strings"
)

// Default values mirror the layout produced by "wikibuilder init".
const (
	DefaultSource      = "content"
	DefaultDestination = "output"
	DefaultThemesDir   = "themes"
	DefaultTheme       = "simple"
	DefaultExt         = "md"
	DefaultRoot        = "/"
	DefaultPort        = 8000
	DefaultQueueSize   = 64
)

// ApplyDefaults fills unset fields. It is idempotent.
func (c *Config) ApplyDefaults() {
	if c.Source == "" {
		c.Source = DefaultSource
	}
	if c.Destination == "" {
		c.Destination = DefaultDestination
	}
	if c.ThemesDir == "" {
		c.ThemesDir = DefaultThemesDir
	}
	if c.Theme == "" {
		c.Theme = DefaultTheme
	}
	c.DefaultExt = strings.TrimPrefix(strings.TrimSpace(c.DefaultExt), ".")
	if c.DefaultExt == "" {
		c.DefaultExt = DefaultExt
	}
	if c.Root == "" {
		c.Root = DefaultRoot
	}
	c.URL = strings.TrimSuffix(c.URL, "/")
	if c.Pygments == nil {
		on := true
		c.Pygments = &on
	}
	if c.Workers < 0 {
		c.Workers = 0
	}
	c.LogLevel = NormalizeLogLevel(string(c.LogLevel))
	c.LogFormat = NormalizeLogFormat(string(c.LogFormat))
	if c.Watch.QueueSize <= 0 {
		c.Watch.QueueSize = DefaultQueueSize
	}
	if c.Watch.Coalesce < 0 {
		c.Watch.Coalesce = 0
	}
	if c.Serve.Port == 0 {
		c.Serve.Port = DefaultPort
	}
}

// MarkdownExtensions returns the renderer extension names to enable.
// An explicit markdown list wins; otherwise fenced code is always on and
// pygments adds the extended set.
func (c *Config) MarkdownExtensions() []string {
	if len(c.Markdown) > 0 {
		return append([]string(nil), c.Markdown...)
	}
	exts := []string{"fenced_code"}
	if c.Pygments == nil || *c.Pygments {
		exts = append(exts, "extra", "toc")
	}
	return exts
}
