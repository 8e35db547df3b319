package output

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	root := t.TempDir()
	tests := []struct {
		rel     string
		wantErr bool
	}{
		{"index.html", false},
		{"linux/intro.html", false},
		{"a/../b.html", false},
		{"../escape.html", true},
		{"..", true},
		{"", true},
		{"/abs.html", true},
	}
	for _, tt := range tests {
		_, err := Resolve(root, tt.rel)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrPathEscapes, tt.rel)
		} else {
			assert.NoError(t, err, tt.rel)
		}
	}
}

func TestWriteAtomic(t *testing.T) {
	root := t.TempDir()

	full, err := WriteAtomic(root, "linux/intro.html", []byte("one"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "linux", "intro.html"), full)

	_, err = WriteAtomic(root, "linux/intro.html", []byte("two"))
	require.NoError(t, err)

	data, err := os.ReadFile(full)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	entries, err := os.ReadDir(filepath.Join(root, "linux"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestWriteNew(t *testing.T) {
	root := t.TempDir()

	_, err := WriteNew(root, "content/linux/intro.md", []byte("first"))
	require.NoError(t, err)

	_, err = WriteNew(root, "content/linux/intro.md", []byte("second"))
	assert.ErrorIs(t, err, ErrExists)

	data, err := os.ReadFile(filepath.Join(root, "content", "linux", "intro.md"))
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
}

func TestCopyDir(t *testing.T) {
	src := filepath.Join(t.TempDir(), "static")
	dst := filepath.Join(t.TempDir(), "out", "static")
	for _, rel := range []string{"css/main.css", "js/app.js", ".DS_Store", ".cache/x"} {
		p := filepath.Join(src, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, []byte(rel), 0o600))
	}

	n, err := CopyDir(src, dst)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.FileExists(t, filepath.Join(dst, "css", "main.css"))
	assert.FileExists(t, filepath.Join(dst, "js", "app.js"))
	assert.NoFileExists(t, filepath.Join(dst, ".DS_Store"))
	assert.NoDirExists(t, filepath.Join(dst, ".cache"))

	n, err = CopyDir(filepath.Join(t.TempDir(), "missing"), dst)
	require.NoError(t, err)
	assert.Zero(t, n)
}
