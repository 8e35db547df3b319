// Package markdown renders document bodies to HTML and inspects their links.
package markdown

import (
	"net/url"
	"path"
	"sort"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

// ExtractLinks parses a Markdown body and extracts link-like constructs.
// Destinations are reported as written, before any rewriting.
func ExtractLinks(body []byte) []Link {
	md := goldmark.New()
	ctx := parser.NewContext()
	root := md.Parser().Parse(text.NewReader(body), parser.WithContext(ctx))

	links := make([]Link, 0)
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *gmast.AutoLink:
			links = append(links, Link{Kind: LinkKindAuto, Destination: string(node.URL(body))})
		case *gmast.Image:
			links = append(links, Link{Kind: LinkKindImage, Destination: string(node.Destination)})
		case *gmast.Link:
			links = append(links, Link{Kind: LinkKindInline, Destination: string(node.Destination)})
		}
		return gmast.WalkContinue, nil
	})

	// Reference definitions live in the parse context, not in the AST.
	refs := ctx.References()
	sort.Slice(refs, func(i, j int) bool {
		return string(refs[i].Label()) < string(refs[j].Label())
	})
	for _, ref := range refs {
		links = append(links, Link{Kind: LinkKindReferenceDefinition, Destination: string(ref.Destination())})
	}
	return links
}

// DocumentTargets returns the source paths, relative to the source root, of
// the documents that body links to. category is the directory of the linking
// document and ext the document extension. Links escaping the root are
// dropped.
func DocumentTargets(body []byte, category, ext string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, l := range ExtractLinks(body) {
		if l.Kind != LinkKindInline || !IsRelativeDocLink(l.Destination, ext) {
			continue
		}
		u, err := url.Parse(l.Destination)
		if err != nil {
			continue
		}
		var target string
		if path.IsAbs(u.Path) {
			target = path.Clean(u.Path[1:])
		} else {
			target = path.Join(category, u.Path)
		}
		if target == ".." || len(target) > 2 && target[:3] == "../" {
			continue
		}
		if _, dup := seen[target]; dup {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}
