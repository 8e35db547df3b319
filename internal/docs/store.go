package docs

import (
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	derrors "git.home.luguber.info/inful/wikibuilder/internal/docs/errors"
	ferrors "git.home.luguber.info/inful/wikibuilder/internal/foundation/errors"
)

// SourceDocument identifies one document below the source root.
type SourceDocument struct {
	Path    string // Absolute path to the file
	RelPath string // Path relative to the source root, slash separated
}

// Read loads the document content.
func (d SourceDocument) Read() ([]byte, error) {
	content, err := os.ReadFile(d.Path)
	if err != nil {
		return nil, ferrors.WrapError(fmt.Errorf("%w: %w", derrors.ErrReadFailed, err), ferrors.CategoryFileSystem, "read source document").
			WithContext("path", d.RelPath).Build()
	}
	return content, nil
}

// Store enumerates documents under a source root.
type Store struct {
	root string
	ext  string
}

// NewStore creates a store for root accepting files with extension ext
// (given with or without the leading dot).
func NewStore(root, ext string) *Store {
	return &Store{
		root: filepath.Clean(root),
		ext:  "." + strings.TrimPrefix(ext, "."),
	}
}

// Root returns the source root.
func (s *Store) Root() string { return s.root }

// Ext returns the accepted extension including the leading dot.
func (s *Store) Ext() string { return s.ext }

// Enumerate returns a lazy sequence over the documents in lexicographic path
// order. Every range over the sequence walks the tree again.
//
// A missing or non-directory root is yielded as a configuration error and ends
// the sequence. Errors below the root are yielded as filesystem errors; the
// walk continues unless the consumer stops.
func (s *Store) Enumerate() iter.Seq2[SourceDocument, error] {
	return func(yield func(SourceDocument, error) bool) {
		if err := s.checkRoot(); err != nil {
			yield(SourceDocument{}, err)
			return
		}

		_ = filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == s.root {
					return err
				}
				walkErr := ferrors.WrapError(fmt.Errorf("%w: %w", derrors.ErrWalkFailed, err), ferrors.CategoryFileSystem, "walk source directory").
					WithContext("path", path).Build()
				if !yield(SourceDocument{}, walkErr) {
					return fs.SkipAll
				}
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if path == s.root {
				return nil
			}

			if isHidden(d.Name()) {
				if d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() || !s.hasExt(d.Name()) {
				return nil
			}

			rel, err := filepath.Rel(s.root, path)
			if err != nil {
				return nil
			}
			if !yield(SourceDocument{Path: path, RelPath: filepath.ToSlash(rel)}, nil) {
				return fs.SkipAll
			}
			return nil
		})
	}
}

// Document builds the SourceDocument for an absolute path inside the root.
// ok is false when the path is outside the root, hidden, or has another extension.
func (s *Store) Document(path string) (SourceDocument, bool) {
	path = filepath.Clean(path)
	rel, err := filepath.Rel(s.root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return SourceDocument{}, false
	}
	rel = filepath.ToSlash(rel)
	for _, seg := range strings.Split(rel, "/") {
		if isHidden(seg) {
			return SourceDocument{}, false
		}
	}
	if !s.hasExt(path) {
		return SourceDocument{}, false
	}
	return SourceDocument{Path: path, RelPath: rel}, true
}

// Collect drains seq. A fatal error ends it and is returned as err; other
// errors, such as an unreadable subdirectory, are returned in skipped while
// the remaining documents are still collected.
func Collect(seq iter.Seq2[SourceDocument, error]) (documents []SourceDocument, skipped []error, err error) {
	for doc, err := range seq {
		if err != nil {
			if ferrors.IsFatal(err) {
				return documents, skipped, err
			}
			skipped = append(skipped, err)
			continue
		}
		documents = append(documents, doc)
	}
	return documents, skipped, nil
}

// ErrorPath returns the path recorded on a classified enumeration error,
// relative to root when it lies inside it.
func ErrorPath(root string, err error) string {
	ce, ok := ferrors.AsClassified(err)
	if !ok {
		return ""
	}
	p, ok := ce.Context().GetString("path")
	if !ok {
		return ""
	}
	if rel, relErr := filepath.Rel(root, p); relErr == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return p
}

func (s *Store) checkRoot() error {
	info, err := os.Stat(s.root)
	if err != nil {
		return ferrors.ConfigError("source directory not found").
			WithContext("path", s.root).WithCause(fmt.Errorf("%w: %w", derrors.ErrSourceNotFound, err)).Build()
	}
	if !info.IsDir() {
		return ferrors.ConfigError("source path is not a directory").
			WithContext("path", s.root).WithCause(derrors.ErrSourceNotDirectory).Build()
	}
	return nil
}

func (s *Store) hasExt(name string) bool {
	return filepath.Ext(name) == s.ext
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
