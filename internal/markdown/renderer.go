package markdown

import (
	"bytes"
	"slices"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"

	ferrors "git.home.luguber.info/inful/wikibuilder/internal/foundation/errors"
)

// Options selects the renderer features.
type Options struct {
	// Extensions names the enabled extensions. Names may carry a
	// parenthesized argument list ("toc(title=Contents)"), which is ignored.
	Extensions []string
	// Unsafe passes raw HTML in documents through to the output.
	Unsafe bool
	// Sanitize filters the rendered HTML through a user-content policy.
	Sanitize bool
	// DocExt is the source document extension whose relative links are
	// rewritten to .html. Empty means DefaultExt.
	DocExt string
}

// Renderer converts document bodies to HTML. It is safe for concurrent use.
type Renderer struct {
	md        goldmark.Markdown
	sanitizer *bluemonday.Policy
}

type extensionSetter func(*buildState)

type buildState struct {
	extenders     []goldmark.Extender
	parserOptions []parser.Option
}

func add(exts ...goldmark.Extender) extensionSetter {
	return func(s *buildState) {
		for _, e := range exts {
			if !slices.Contains(s.extenders, e) {
				s.extenders = append(s.extenders, e)
			}
		}
	}
}

var knownExtensions = map[string]extensionSetter{
	// CommonMark already parses fenced code blocks and goldmark marks them
	// with a language-* class, so both are accepted without extra setup.
	"fenced_code": func(*buildState) {},
	"codehilite":  func(*buildState) {},

	"extra":           add(extension.Table, extension.Footnote, extension.DefinitionList, extension.Strikethrough),
	"gfm":             add(extension.GFM),
	"table":           add(extension.Table),
	"tables":          add(extension.Table),
	"strikethrough":   add(extension.Strikethrough),
	"linkify":         add(extension.Linkify),
	"tasklist":        add(extension.TaskList),
	"footnote":        add(extension.Footnote),
	"footnotes":       add(extension.Footnote),
	"definition_list": add(extension.DefinitionList),
	"def_list":        add(extension.DefinitionList),
	"typographer":     add(extension.Typographer),
	"toc": func(s *buildState) {
		s.parserOptions = append(s.parserOptions, parser.WithAutoHeadingID())
	},
}

// KnownExtensions returns the accepted extension names in sorted order.
func KnownExtensions() []string {
	names := make([]string, 0, len(knownExtensions))
	for name := range knownExtensions {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// New builds a renderer. An unknown extension name is a configuration error.
func New(opts Options) (*Renderer, error) {
	state := &buildState{}
	for _, raw := range opts.Extensions {
		name := extensionName(raw)
		setter, ok := knownExtensions[name]
		if !ok {
			return nil, ferrors.ConfigError("unknown markdown extension").
				WithContext("extension", raw).Build()
		}
		setter(state)
	}

	if slices.Contains(state.extenders, goldmark.Extender(extension.GFM)) {
		// GFM already bundles these; registering them twice duplicates parsers.
		state.extenders = slices.DeleteFunc(state.extenders, func(e goldmark.Extender) bool {
			return e == extension.Table || e == extension.Strikethrough || e == extension.Linkify || e == extension.TaskList
		})
	}

	var rendererOptions []goldmark.Option
	if opts.Unsafe {
		rendererOptions = append(rendererOptions, goldmark.WithRendererOptions(html.WithUnsafe()))
	}

	parserOptions := append(state.parserOptions,
		parser.WithASTTransformers(util.Prioritized(newDocLinkTransformer(opts.DocExt), 100)),
	)

	md := goldmark.New(append([]goldmark.Option{
		goldmark.WithExtensions(state.extenders...),
		goldmark.WithParserOptions(parserOptions...),
	}, rendererOptions...)...)

	r := &Renderer{md: md}
	if opts.Sanitize {
		policy := bluemonday.UGCPolicy()
		// Keep heading anchors and code language classes.
		policy.AllowAttrs("id").OnElements("h1", "h2", "h3", "h4", "h5", "h6")
		policy.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("code")
		r.sanitizer = policy
	}
	return r, nil
}

// Render converts body to HTML.
func (r *Renderer) Render(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.md.Convert(body, &buf); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryRender, "markdown conversion failed").Build()
	}
	if r.sanitizer != nil {
		return r.sanitizer.SanitizeBytes(buf.Bytes()), nil
	}
	return buf.Bytes(), nil
}

func extensionName(raw string) string {
	name := strings.TrimSpace(raw)
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = name[:i]
	}
	name = strings.TrimPrefix(name, "markdown.extensions.")
	return strings.ToLower(strings.TrimSpace(name))
}
