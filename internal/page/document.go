package page

import (
	ferrors "git.home.luguber.info/inful/wikibuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/wikibuilder/internal/frontmatter"
)

// Document is a parsed source document: metadata plus the unrendered body.
type Document struct {
	Meta         Metadata
	Body         []byte
	Deprecations []Deprecation
}

// ParseDocument extracts and parses the metadata block of raw. relPath is the
// document's path relative to the source root and feeds the derived fields.
// Delimiter problems are format errors; block content problems are metadata errors.
func ParseDocument(raw []byte, relPath string, p Parser) (Document, error) {
	derived := Derive(relPath)

	block, body, err := frontmatter.Extract(raw)
	if err != nil {
		return Document{}, ferrors.WrapError(err, ferrors.CategoryFormat, "malformed metadata delimiters").
			WithContext("path", derived.Source).Build()
	}

	meta, deps, err := p.Parse(block, derived)
	if err != nil {
		return Document{}, err
	}
	return Document{Meta: meta, Body: body, Deprecations: deps}, nil
}
