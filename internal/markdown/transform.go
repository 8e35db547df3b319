package markdown

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

// docLinkTransformer rewrites relative links to source documents so they
// point at the generated pages.
type docLinkTransformer struct {
	ext string
}

func newDocLinkTransformer(ext string) parser.ASTTransformer {
	return &docLinkTransformer{ext: ext}
}

func (t *docLinkTransformer) Transform(node *ast.Document, _ text.Reader, _ parser.Context) {
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if link, ok := n.(*ast.Link); ok {
			link.Destination = RewriteDocLink(link.Destination, t.ext)
		}
		return ast.WalkContinue, nil
	})
}

// DefaultExt is the document extension used when none is configured.
const DefaultExt = ".md"

// normalizeExt returns ext with a leading dot, or DefaultExt when empty.
func normalizeExt(ext string) string {
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if ext == "" {
		return DefaultExt
	}
	return "." + ext
}

// RewriteDocLink swaps the trailing document extension ext for .html on
// relative destinations, keeping any query or fragment. Absolute URLs are
// returned unchanged.
func RewriteDocLink(dest []byte, ext string) []byte {
	ext = normalizeExt(ext)
	if !IsRelativeDocLink(string(dest), ext) {
		return dest
	}
	cut := len(dest)
	if i := bytes.IndexAny(dest, "?#"); i >= 0 {
		cut = i
	}
	out := make([]byte, 0, len(dest)+2)
	out = append(out, bytes.TrimSuffix(dest[:cut], []byte(ext))...)
	out = append(out, ".html"...)
	return append(out, dest[cut:]...)
}

// IsRelativeDocLink reports whether dest is a relative link to a document
// with extension ext.
func IsRelativeDocLink(dest, ext string) bool {
	ext = normalizeExt(ext)
	u, err := url.Parse(dest)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return false
	}
	return len(u.Path) > len(ext) && strings.HasSuffix(u.Path, ext)
}
