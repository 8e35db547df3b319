package page

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/wikibuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/wikibuilder/internal/frontmatter"
)

func TestParseDocument(t *testing.T) {
	raw := []byte("---\ntitle: \"Intro\"\ndate: 2020-01-01 00:00\n---\nHello")
	doc, err := ParseDocument(raw, "linux/intro.md", testParser())
	require.NoError(t, err)
	assert.Equal(t, "Intro", doc.Meta.Title)
	assert.Equal(t, "Hello", string(doc.Body))
	assert.Equal(t, "linux", doc.Meta.Category)
}

func TestParseDocument_FormatErrors(t *testing.T) {
	for _, raw := range []string{"no delimiters", "---\ntitle: x\n"} {
		_, err := ParseDocument([]byte(raw), "a.md", testParser())
		require.Error(t, err)
		assert.True(t, ferrors.IsFormatError(err), "got %v", err)
	}

	_, err := ParseDocument([]byte("---\ntitle: x\n"), "a.md", testParser())
	assert.ErrorIs(t, err, frontmatter.ErrMissingClosingDelimiter)
}

func TestParseDocument_MissingTitleIsMetadataError(t *testing.T) {
	_, err := ParseDocument([]byte("---\ndate: 2020-01-01\n---\nbody"), "a.md", testParser())
	require.Error(t, err)
	assert.True(t, ferrors.IsMetadataError(err))
	assert.False(t, ferrors.IsFormatError(err))
}

func TestNewDocumentParsesBack(t *testing.T) {
	date := time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC)
	raw, err := NewDocument("Kernel Notes", date, "")
	require.NoError(t, err)

	doc, err := ParseDocument(raw, "linux/kernel-notes.md", testParser())
	require.NoError(t, err)
	assert.Equal(t, "Kernel Notes", doc.Meta.Title)
	assert.Equal(t, DefaultLayout, doc.Meta.Layout)
	assert.True(t, date.Equal(doc.Meta.Date), "got %v", doc.Meta.Date)
}
