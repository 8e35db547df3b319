package generate

import (
	"context"
	"html/template"
	"log/slog"
	"maps"
	"time"

	"git.home.luguber.info/inful/wikibuilder/internal/docs"
	ferrors "git.home.luguber.info/inful/wikibuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/wikibuilder/internal/logfields"
	"git.home.luguber.info/inful/wikibuilder/internal/markdown"
	"git.home.luguber.info/inful/wikibuilder/internal/metrics"
	"git.home.luguber.info/inful/wikibuilder/internal/output"
	"git.home.luguber.info/inful/wikibuilder/internal/page"
	"git.home.luguber.info/inful/wikibuilder/internal/tags"
)

// RenderedPage is the result of running one document through the pipeline.
type RenderedPage struct {
	Meta       page.Metadata
	Body       []byte // rendered body HTML
	HTML       []byte // final page after templating
	Relations  []page.Metadata
	OutputPath string // absolute path of the written file
}

// Outcome classifies the result of GeneratePage.
type Outcome int

const (
	OutcomeGenerated Outcome = iota
	OutcomeDraft
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeGenerated:
		return "generated"
	case OutcomeDraft:
		return "draft"
	default:
		return "failed"
	}
}

// GeneratePage runs the single-document pipeline: read, parse, draft check,
// body rendering, relations, templating and the atomic write.
//
// A returned error is either document scoped (OutcomeFailed) or build fatal;
// callers distinguish the two with ferrors.IsFatal.
func (s *Scheduler) GeneratePage(ctx context.Context, doc docs.SourceDocument, index *tags.Index, includeDrafts bool) (RenderedPage, Outcome, error) {
	if err := ctx.Err(); err != nil {
		return RenderedPage{}, OutcomeFailed, err
	}
	start := time.Now()
	defer func() { s.recorder.ObserveRenderDuration(time.Since(start)) }()

	raw, err := doc.Read()
	if err != nil {
		return RenderedPage{}, OutcomeFailed, err
	}
	parsed, err := page.ParseDocument(raw, doc.RelPath, s.opts.Parser)
	if err != nil {
		return RenderedPage{}, OutcomeFailed, err
	}
	meta := parsed.Meta
	for _, dep := range parsed.Deprecations {
		s.logger.Warn("Deprecated metadata value", logfields.Path(meta.Source), slog.String("detail", dep.String()))
	}

	if meta.Draft && !includeDrafts {
		return RenderedPage{Meta: meta}, OutcomeDraft, nil
	}

	body := parsed.Body
	if meta.Render {
		body, err = s.body.Render(parsed.Body)
		if err != nil {
			return RenderedPage{}, OutcomeFailed, ferrors.WrapError(err, ferrors.CategoryRender, "render document body").
				WithContext("path", meta.Source).Build()
		}
		s.checkLinks(parsed.Body, meta)
	}

	relations := index.Relations(meta)
	html, err := s.tpl.Render(meta.Layout, s.pageVars(meta, body, relations))
	if err != nil {
		if classified, ok := ferrors.AsClassified(err); ok {
			return RenderedPage{}, OutcomeFailed, classified.WithContext("path", meta.Source).WithContext("layout", meta.Layout)
		}
		return RenderedPage{}, OutcomeFailed, ferrors.WrapError(err, ferrors.CategoryTemplate, "render page template").
			WithContext("path", meta.Source).WithContext("layout", meta.Layout).Build()
	}

	full, err := output.WriteAtomic(s.opts.Destination, meta.OutputPath(), html)
	if err != nil {
		return RenderedPage{}, OutcomeFailed, ferrors.WrapError(err, ferrors.CategoryFileSystem, "write page").
			WithContext("path", meta.Source).Build()
	}

	return RenderedPage{
		Meta:       meta,
		Body:       body,
		HTML:       html,
		Relations:  relations,
		OutputPath: full,
	}, OutcomeGenerated, nil
}

// pageVars assembles the template variables. Extra keys are merged before
// the typed fields so typed fields win.
func (s *Scheduler) pageVars(meta page.Metadata, body []byte, relations []page.Metadata) map[string]any {
	pageVars := meta.TemplateVars()
	// #nosec G203 -- body is renderer output; raw HTML is governed by the unsafe/sanitize options.
	pageVars["content"] = template.HTML(body)
	related := make([]map[string]any, 0, len(relations))
	for _, r := range relations {
		related = append(related, r.TemplateVars())
	}
	pageVars["relation"] = related

	siteVars := make(map[string]any, len(s.opts.Site))
	maps.Copy(siteVars, s.opts.Site)

	return map[string]any{
		"site": siteVars,
		"page": pageVars,
	}
}

// checkLinks warns about relative links to documents that are not part of the build.
func (s *Scheduler) checkLinks(body []byte, meta page.Metadata) {
	known := s.known.Load()
	if known == nil {
		return
	}
	for _, target := range markdown.DocumentTargets(body, meta.Category, s.opts.DocExt) {
		if _, ok := (*known)[target]; !ok {
			s.logger.Warn("Link to unknown document", logfields.Path(meta.Source), slog.String("target", target))
		}
	}
}

func (o Outcome) documentResult() metrics.DocumentResult {
	switch o {
	case OutcomeGenerated:
		return metrics.DocumentGenerated
	case OutcomeDraft:
		return metrics.DocumentDraft
	default:
		return metrics.DocumentFailed
	}
}
