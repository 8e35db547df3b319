// Package tags builds the tag index used to compute related pages.
package tags

import (
	"context"
	"iter"
	"log/slog"

	"git.home.luguber.info/inful/wikibuilder/internal/docs"
	ferrors "git.home.luguber.info/inful/wikibuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/wikibuilder/internal/logfields"
	"git.home.luguber.info/inful/wikibuilder/internal/page"
)

// Failure records a document skipped while indexing.
type Failure struct {
	Path string
	Err  error
}

// Index maps a tag to the pages carrying it, in discovery order.
// It is read-only after Build and safe for concurrent readers.
type Index struct {
	byTag map[string][]page.Metadata
	pages map[string]page.Metadata
}

// Options controls which documents enter the index.
type Options struct {
	Parser        page.Parser
	IncludeDrafts bool
	Logger        *slog.Logger
}

// Build runs a metadata-only pass over seq. Documents that fail to read or
// parse are skipped and returned as failures; drafts are skipped unless
// IncludeDrafts is set. A sequence error that is not tied to a document
// (such as a missing source root) aborts the pass.
func Build(ctx context.Context, seq iter.Seq2[docs.SourceDocument, error], opts Options) (*Index, []Failure, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	idx := New()
	var failures []Failure

	for doc, err := range seq {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, failures, ctxErr
		}
		if err != nil {
			if doc.RelPath == "" && ferrors.IsFatal(err) {
				return nil, failures, err
			}
			failures = append(failures, Failure{Path: doc.RelPath, Err: err})
			continue
		}

		meta, err := parseMetadata(doc, opts.Parser)
		if err != nil {
			logger.Debug("Skipping document in tag index", logfields.Path(doc.RelPath), logfields.Error(err))
			failures = append(failures, Failure{Path: doc.RelPath, Err: err})
			continue
		}
		if meta.Draft && !opts.IncludeDrafts {
			continue
		}
		idx.Add(meta)
	}

	logger.Debug("Tag index built", logfields.Count(len(idx.pages)), slog.Int("tags", len(idx.byTag)))
	return idx, failures, nil
}

// New returns an empty index.
func New() *Index {
	return &Index{
		byTag: make(map[string][]page.Metadata),
		pages: make(map[string]page.Metadata),
	}
}

// Add appends meta under each of its tags. It must not be called once the
// index is shared with readers.
func (idx *Index) Add(meta page.Metadata) {
	idx.pages[meta.Source] = meta
	for _, tag := range meta.Tags {
		idx.byTag[tag] = append(idx.byTag[tag], meta)
	}
}

// Relations returns the pages sharing a tag with meta. Tags are visited in
// meta's own order; meta itself is excluded and later duplicates are dropped.
func (idx *Index) Relations(meta page.Metadata) []page.Metadata {
	if idx == nil {
		return nil
	}
	seen := map[string]struct{}{meta.Source: {}}
	var out []page.Metadata
	for _, tag := range meta.Tags {
		for _, other := range idx.byTag[tag] {
			if _, dup := seen[other.Source]; dup {
				continue
			}
			seen[other.Source] = struct{}{}
			out = append(out, other)
		}
	}
	return out
}

// Tagged returns the pages carrying tag.
func (idx *Index) Tagged(tag string) []page.Metadata {
	if idx == nil {
		return nil
	}
	return idx.byTag[tag]
}

// Tags returns the number of distinct tags.
func (idx *Index) Tags() int {
	if idx == nil {
		return 0
	}
	return len(idx.byTag)
}

// Pages returns the indexed metadata keyed by source path.
func (idx *Index) Pages() map[string]page.Metadata {
	if idx == nil {
		return nil
	}
	return idx.pages
}

func parseMetadata(doc docs.SourceDocument, p page.Parser) (page.Metadata, error) {
	raw, err := doc.Read()
	if err != nil {
		return page.Metadata{}, err
	}
	parsed, err := page.ParseDocument(raw, doc.RelPath, p)
	if err != nil {
		return page.Metadata{}, err
	}
	return parsed.Meta, nil
}
