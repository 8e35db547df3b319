package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	}
}

func newProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"_config.yml":              "title: Wiki\nurl: http://wiki.example.com/\n",
		"themes/simple/index.html": `<h1>{{.site.title}}</h1>`,
		"themes/simple/page.html":  `<title>{{.page.title}}</title>{{.page.content}}`,
		"content/linux/intro.md":   "---\ntitle: Intro\n---\n# Intro\n",
		"content/linux/broken.md":  "no frontmatter here\n",
	})
	return dir
}

type result struct {
	code   int
	stdout string
	stderr string
}

func execute(t *testing.T, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func TestGenerateCommand(t *testing.T) {
	dir := newProject(t)
	res := execute(t, "-C", filepath.Join(dir, "_config.yml"), "generate", "--workers", "2")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "generated")

	page, err := os.ReadFile(filepath.Join(dir, "output", "linux", "intro.html"))
	require.NoError(t, err)
	assert.Contains(t, string(page), "<title>Intro</title>")
	assert.FileExists(t, filepath.Join(dir, "output", "index.html"))
	assert.FileExists(t, filepath.Join(dir, "output", "build-report.json"))
	assert.NoFileExists(t, filepath.Join(dir, "output", "linux", "broken.html"))
}

func TestGenerateMissingConfig(t *testing.T) {
	res := execute(t, "-C", filepath.Join(t.TempDir(), "_config.yml"), "generate")
	assert.Equal(t, 7, res.code)
	assert.Contains(t, res.stderr, "configuration file not found")
}

func TestGenerateMissingTheme(t *testing.T) {
	dir := newProject(t)
	require.NoError(t, os.RemoveAll(filepath.Join(dir, "themes")))
	res := execute(t, "-C", filepath.Join(dir, "_config.yml"), "generate")
	assert.Equal(t, 7, res.code)
}

func TestInitCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "_config.yml")

	res := execute(t, "-C", path, "init")
	require.Equal(t, 0, res.code, res.stderr)
	assert.FileExists(t, path)

	res = execute(t, "-C", path, "init")
	assert.Equal(t, 7, res.code)

	res = execute(t, "-C", path, "init", "--force")
	assert.Equal(t, 0, res.code)
}

func TestNewCommand(t *testing.T) {
	dir := newProject(t)
	cfg := filepath.Join(dir, "_config.yml")

	res := execute(t, "-C", cfg, "new", "-c", "linux", "-t", "Kernel Tuning Notes")
	require.Equal(t, 0, res.code, res.stderr)

	created := filepath.Join(dir, "content", "linux", "kernel-tuning-notes.md")
	data, err := os.ReadFile(created)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "---\n"))
	assert.Contains(t, string(data), `title: "Kernel Tuning Notes"`)

	require.NoError(t, os.WriteFile(created, []byte("edited"), 0o600))
	res = execute(t, "-C", cfg, "new", "-c", "linux", "-t", "Kernel Tuning Notes")
	assert.Equal(t, 0, res.code)
	assert.Contains(t, res.stderr, "File exists")
	data, err = os.ReadFile(created)
	require.NoError(t, err)
	assert.Equal(t, "edited", string(data))
}

func TestNewCommandExplicitFile(t *testing.T) {
	dir := newProject(t)
	res := execute(t, "-C", filepath.Join(dir, "_config.yml"), "new", "-c", "net", "-t", "DNS", "-f", "dns-notes.md")
	require.Equal(t, 0, res.code, res.stderr)
	assert.FileExists(t, filepath.Join(dir, "content", "net", "dns-notes.md"))
}

func TestNewCommandRejectsEscape(t *testing.T) {
	dir := newProject(t)
	res := execute(t, "-C", filepath.Join(dir, "_config.yml"), "new", "-c", "..", "-t", "Out")
	assert.Equal(t, 2, res.code)
}

func TestUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "no command", args: nil},
		{name: "unknown command", args: []string{"publish"}},
		{name: "new without title", args: []string{"new", "-c", "linux"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, 2, execute(t, tt.args...).code)
		})
	}
}
