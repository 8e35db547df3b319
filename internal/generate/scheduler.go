// Package generate renders documents in parallel and aggregates the results.
package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/wikibuilder/internal/docs"
	ferrors "git.home.luguber.info/inful/wikibuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/wikibuilder/internal/logfields"
	"git.home.luguber.info/inful/wikibuilder/internal/metrics"
	"git.home.luguber.info/inful/wikibuilder/internal/page"
	"git.home.luguber.info/inful/wikibuilder/internal/tags"
)

// BodyRenderer converts a document body to HTML.
type BodyRenderer interface {
	Render(body []byte) ([]byte, error)
}

// TemplateRenderer executes a named theme template.
type TemplateRenderer interface {
	Render(name string, vars map[string]any) ([]byte, error)
}

// Options configures a Scheduler.
type Options struct {
	// Workers bounds the pool; zero means runtime.GOMAXPROCS(0).
	Workers int
	// Shuffle randomizes bucket assignment using Seed. Without it documents
	// are dealt round-robin by index.
	Shuffle bool
	Seed    int64

	// DocExt is the source document extension, used to resolve links
	// between documents.
	DocExt string

	Parser      page.Parser
	Site        map[string]any
	Destination string

	Logger   *slog.Logger
	Recorder metrics.Recorder
}

// Scheduler partitions documents over a fixed pool of workers.
type Scheduler struct {
	opts     Options
	body     BodyRenderer
	tpl      TemplateRenderer
	logger   *slog.Logger
	recorder metrics.Recorder
	known    atomic.Pointer[map[string]struct{}]
}

// NewScheduler creates a scheduler using body and tpl for rendering.
func NewScheduler(body BodyRenderer, tpl TemplateRenderer, opts Options) *Scheduler {
	s := &Scheduler{opts: opts, body: body, tpl: tpl, logger: opts.Logger, recorder: opts.Recorder}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.recorder == nil {
		s.recorder = metrics.NoopRecorder{}
	}
	return s
}

// SetKnownDocuments sets the source paths used to flag links to missing
// documents. Nil disables the check.
func (s *Scheduler) SetKnownDocuments(paths []string) {
	if paths == nil {
		s.known.Store(nil)
		return
	}
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}
	s.known.Store(&set)
}

// WorkerCount returns the pool size used for n documents.
func (s *Scheduler) WorkerCount(n int) int {
	w := s.opts.Workers
	if w <= 0 {
		w = runtime.GOMAXPROCS(0)
	}
	return max(min(w, n), 0)
}

type bucketResult struct {
	worker    int
	pages     []RenderedPage
	generated int
	drafts    int
	failures  []Failure
}

// Generate renders docs and writes one page per included document.
//
// Document-scoped failures are recorded in the report and never abort the
// run. A build-fatal error (a missing or broken template) cancels the
// remaining work and is returned together with the partial report.
// Cancelling ctx stops workers from starting new documents.
func (s *Scheduler) Generate(ctx context.Context, documents []docs.SourceDocument, index *tags.Index, includeDrafts bool) ([]RenderedPage, *Report, error) {
	report := newReport()
	logger := s.logger.With(logfields.BuildID(report.BuildID))

	known := make([]string, 0, len(documents))
	for _, d := range documents {
		known = append(known, d.RelPath)
	}
	s.SetKnownDocuments(known)

	buckets := s.partition(documents)
	report.Workers = len(buckets)
	s.recorder.SetWorkers(len(buckets))
	logger.Info("Generating documents", logfields.Count(len(documents)), slog.Int("workers", len(buckets)))

	results := make(chan bucketResult, len(buckets))
	var pages []RenderedPage
	done := make(chan struct{})
	go func() {
		defer close(done)
		for res := range results {
			pages = append(pages, res.pages...)
			report.merge(res)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	for i, bucket := range buckets {
		g.Go(func() error {
			res := bucketResult{worker: i}
			defer func() { results <- res }()
			return s.runBucket(gctx, logger.With(logfields.Worker(i)), bucket, index, includeDrafts, &res)
		})
	}
	err := g.Wait()
	close(results)
	<-done

	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		report.Canceled = true
	}
	report.Finish()
	s.recorder.IncBuildOutcome(report.Outcome())
	logger.Info("Generation finished", slog.String("summary", report.Summary()))
	return pages, report, err
}

func (s *Scheduler) runBucket(ctx context.Context, logger *slog.Logger, bucket []docs.SourceDocument, index *tags.Index, includeDrafts bool, res *bucketResult) error {
	for _, doc := range bucket {
		if err := ctx.Err(); err != nil {
			return err
		}
		rendered, outcome, err := s.safeGeneratePage(ctx, doc, index, includeDrafts)
		if !errors.Is(err, context.Canceled) {
			s.recorder.IncDocumentResult(outcome.documentResult())
		}
		switch {
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			return err
		case err != nil && ferrors.IsFatal(err):
			logger.Error("Build-fatal error", logfields.Path(doc.RelPath), logfields.Error(err))
			res.failures = append(res.failures, Failure{Path: doc.RelPath, Err: err})
			return err
		case err != nil:
			logger.Warn("Document failed", logfields.Path(doc.RelPath), logfields.Category(string(ferrors.GetCategory(err))), logfields.Error(err))
			res.failures = append(res.failures, Failure{Path: doc.RelPath, Err: err})
		case outcome == OutcomeDraft:
			logger.Debug("Draft excluded", logfields.Path(doc.RelPath))
			res.drafts++
		default:
			logger.Debug("Document generated", logfields.Path(doc.RelPath), logfields.Layout(rendered.Meta.Layout))
			res.generated++
			res.pages = append(res.pages, rendered)
		}
	}
	return nil
}

// safeGeneratePage turns a panic in one document into a failure of that document.
func (s *Scheduler) safeGeneratePage(ctx context.Context, doc docs.SourceDocument, index *tags.Index, includeDrafts bool) (rendered RenderedPage, outcome Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			rendered, outcome = RenderedPage{}, OutcomeFailed
			err = ferrors.NewError(ferrors.CategoryInternal, "panic while generating document").
				WithCause(fmt.Errorf("%v", r)).WithContext("path", doc.RelPath).Build()
		}
	}()
	start := time.Now()
	rendered, outcome, err = s.GeneratePage(ctx, doc, index, includeDrafts)
	if err == nil && outcome == OutcomeGenerated {
		s.logger.Debug("Rendered", logfields.Path(doc.RelPath), logfields.DurationMS(float64(time.Since(start).Microseconds())/1000))
	}
	return rendered, outcome, err
}

// partition deals documents into W = min(workers, N) disjoint buckets.
func (s *Scheduler) partition(documents []docs.SourceDocument) [][]docs.SourceDocument {
	w := s.WorkerCount(len(documents))
	if w == 0 {
		return nil
	}
	order := make([]int, len(documents))
	for i := range order {
		order[i] = i
	}
	if s.opts.Shuffle {
		// #nosec G404 -- shuffling only balances load.
		order = rand.New(rand.NewSource(s.opts.Seed)).Perm(len(documents))
	}
	buckets := make([][]docs.SourceDocument, w)
	for i, idx := range order {
		buckets[i%w] = append(buckets[i%w], documents[idx])
	}
	return buckets
}
