// Package site wires the document pipeline into full and incremental builds.
package site

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/wikibuilder/internal/catalog"
	"git.home.luguber.info/inful/wikibuilder/internal/config"
	"git.home.luguber.info/inful/wikibuilder/internal/docs"
	ferrors "git.home.luguber.info/inful/wikibuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/wikibuilder/internal/generate"
	"git.home.luguber.info/inful/wikibuilder/internal/logfields"
	"git.home.luguber.info/inful/wikibuilder/internal/markdown"
	"git.home.luguber.info/inful/wikibuilder/internal/metrics"
	"git.home.luguber.info/inful/wikibuilder/internal/output"
	"git.home.luguber.info/inful/wikibuilder/internal/page"
	"git.home.luguber.info/inful/wikibuilder/internal/tags"
	"git.home.luguber.info/inful/wikibuilder/internal/templates"
)

// Stage names used for logging and metrics.
const (
	StageIndex    = "index"
	StageGenerate = "generate"
	StageCatalog  = "catalog"
	StageAssets   = "assets"
)

// StaticDir is the theme directory copied verbatim into the destination.
const StaticDir = "static"

// Builder runs builds for one configuration.
type Builder struct {
	cfg       *config.Config
	logger    *slog.Logger
	recorder  metrics.Recorder
	registry  *prom.Registry
	buildTime time.Time

	store     *docs.Store
	engine    *templates.Engine
	scheduler *generate.Scheduler
	lock      *DestinationLock
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(b *Builder) { b.recorder = r }
}

// WithRegistry sets the registry dumped to the configured metrics file after a build.
func WithRegistry(reg *prom.Registry) Option {
	return func(b *Builder) { b.registry = reg }
}

// WithBuildTime fixes the date assigned to documents without one.
func WithBuildTime(t time.Time) Option {
	return func(b *Builder) { b.buildTime = t }
}

// NewBuilder validates the renderer settings and prepares the pipeline.
// No filesystem checks happen here; they run at the start of every build.
func NewBuilder(cfg *config.Config, opts ...Option) (*Builder, error) {
	b := &Builder{cfg: cfg, logger: slog.Default(), recorder: metrics.NoopRecorder{}}
	for _, o := range opts {
		o(b)
	}

	renderer, err := markdown.New(markdown.Options{
		Extensions: cfg.MarkdownExtensions(),
		Unsafe:     cfg.UnsafeHTML,
		Sanitize:   cfg.Sanitize,
		DocExt:     cfg.Ext(),
	})
	if err != nil {
		return nil, err
	}
	engine, err := templates.New(cfg.ThemeDir())
	if err != nil {
		return nil, err
	}

	b.store = docs.NewStore(cfg.SourceDir(), cfg.DefaultExt)
	b.engine = engine
	b.lock = NewDestinationLock(cfg.DestinationDir())
	b.scheduler = generate.NewScheduler(renderer, engine, generate.Options{
		Workers:     cfg.Workers,
		Shuffle:     cfg.Shuffle,
		Seed:        cfg.ShuffleSeed,
		DocExt:      cfg.Ext(),
		Parser:      b.parser(),
		Site:        cfg.SiteVars(),
		Destination: cfg.DestinationDir(),
		Logger:      b.logger,
		Recorder:    b.recorder,
	})
	return b, nil
}

// Config returns the configuration the builder was created with.
func (b *Builder) Config() *config.Config { return b.cfg }

// Store returns the document store.
func (b *Builder) Store() *docs.Store { return b.store }

// Lock takes the destination lock. A lock held by another process is a
// configuration error.
func (b *Builder) Lock(ctx context.Context) error { return b.lock.Acquire(ctx) }

// Unlock releases the destination lock.
func (b *Builder) Unlock() error { return b.lock.Release() }

func (b *Builder) parser() page.Parser {
	return page.Parser{BuildTime: b.buildTime}
}

// preflight validates paths and the theme before any document is processed
// and ensures the destination root exists.
func (b *Builder) preflight() error {
	if err := b.cfg.CheckPaths(); err != nil {
		return err
	}
	if _, err := b.engine.Lookup(catalog.IndexTemplate); err != nil {
		return err
	}
	if err := os.MkdirAll(b.cfg.DestinationDir(), 0o750); err != nil {
		return ferrors.FileSystemError("create destination directory").Fatal().
			WithContext("path", b.cfg.DestinationDir()).WithCause(err).Build()
	}
	return nil
}

// Generate runs a full build: tag index, parallel generation, catalog page,
// static assets and the persisted report. Document failures are reported,
// not returned; the returned error is build fatal.
func (b *Builder) Generate(ctx context.Context) (*generate.Report, error) {
	start := time.Now()
	if err := b.preflight(); err != nil {
		return nil, err
	}
	b.engine.Purge()

	stageStart := time.Now()
	index, _, err := b.buildIndex(ctx)
	if err != nil {
		return nil, err
	}
	documents, skipped, err := docs.Collect(b.store.Enumerate())
	if err != nil {
		return nil, err
	}
	b.observeStage(StageIndex, stageStart)

	stageStart = time.Now()
	pages, report, err := b.scheduler.Generate(ctx, documents, index, b.cfg.IncludeDrafts)
	b.observeStage(StageGenerate, stageStart)
	logger := b.logger.With(logfields.BuildID(report.BuildID))
	for _, skipErr := range skipped {
		path := docs.ErrorPath(b.store.Root(), skipErr)
		logger.Warn("Skipped unreadable source path", logfields.Path(path), logfields.Error(skipErr))
		report.AddFailure(path, skipErr)
	}
	if err != nil {
		report.Finish()
		b.persistReport(logger, report)
		return report, err
	}

	stageStart = time.Now()
	published := make(map[string]page.Metadata, len(pages))
	for _, p := range pages {
		published[p.Meta.Source] = p.Meta
	}
	if err := b.writeCatalog(published); err != nil {
		return report, err
	}
	b.observeStage(StageCatalog, stageStart)

	stageStart = time.Now()
	if err := b.copyAssets(logger); err != nil {
		return report, err
	}
	b.observeStage(StageAssets, stageStart)

	report.Start = start
	report.Finish()
	b.recorder.ObserveBuildDuration(report.Duration())
	b.persistReport(logger, report)
	b.writeMetrics(logger)

	logger.Info("Build complete",
		logfields.Count(report.Generated),
		slog.Int("drafts", report.Drafts),
		slog.Int("failed", report.Failed),
		logfields.DurationMS(float64(report.Duration().Milliseconds())))
	return report, nil
}

// RegeneratePage runs the single-document pipeline for the document at
// absPath outside the worker pool. Paths that are not source documents are
// ignored. Document errors are returned as-is.
func (b *Builder) RegeneratePage(ctx context.Context, absPath string) error {
	doc, ok := b.store.Document(absPath)
	if !ok {
		return nil
	}
	// Theme files are not watched; reload them so edits show up on the next change.
	b.engine.Purge()
	index, _, err := b.buildIndex(ctx)
	if err != nil {
		return err
	}
	// Documents created since the last full build are valid link targets.
	documents, _, err := docs.Collect(b.store.Enumerate())
	if err != nil {
		return err
	}
	known := make([]string, 0, len(documents))
	for _, d := range documents {
		known = append(known, d.RelPath)
	}
	b.scheduler.SetKnownDocuments(known)

	rendered, outcome, err := b.scheduler.GeneratePage(ctx, doc, index, b.cfg.IncludeDrafts)
	if err != nil {
		return err
	}
	if outcome == generate.OutcomeDraft {
		b.logger.Debug("Draft not regenerated", logfields.Path(doc.RelPath))
		return nil
	}
	b.logger.Info("Regenerated page", logfields.Path(doc.RelPath), slog.String("output", rendered.OutputPath))
	return nil
}

// RegenerateCatalog reruns the metadata pass over the whole tree and rewrites
// the catalog page.
func (b *Builder) RegenerateCatalog(ctx context.Context) error {
	index, _, err := b.buildIndex(ctx)
	if err != nil {
		return err
	}
	if err := b.writeCatalog(index.Pages()); err != nil {
		return err
	}
	b.logger.Debug("Catalog regenerated", logfields.Count(len(index.Pages())))
	return nil
}

func (b *Builder) buildIndex(ctx context.Context) (*tags.Index, []tags.Failure, error) {
	return tags.Build(ctx, b.store.Enumerate(), tags.Options{
		Parser:        b.parser(),
		IncludeDrafts: b.cfg.IncludeDrafts,
		Logger:        b.logger,
	})
}

func (b *Builder) writeCatalog(pages map[string]page.Metadata) error {
	tree := catalog.Build(pages, b.cfg.DefaultExt)
	catalog.Sort(tree)
	html, err := catalog.Render(tree, b.engine, b.cfg.SiteVars())
	if err != nil {
		return err
	}
	if _, err := output.WriteAtomic(b.cfg.DestinationDir(), "index.html", html); err != nil {
		return ferrors.FileSystemError("write catalog page").Fatal().
			WithContext("path", filepath.Join(b.cfg.DestinationDir(), "index.html")).WithCause(err).Build()
	}
	return nil
}

func (b *Builder) copyAssets(logger *slog.Logger) error {
	src := filepath.Join(b.cfg.ThemeDir(), StaticDir)
	n, err := output.CopyDir(src, filepath.Join(b.cfg.DestinationDir(), StaticDir))
	if err != nil {
		return ferrors.FileSystemError("copy theme assets").Fatal().
			WithContext("path", src).WithCause(err).Build()
	}
	logger.Debug("Copied theme assets", logfields.Count(n))
	return nil
}

func (b *Builder) persistReport(logger *slog.Logger, report *generate.Report) {
	if err := report.Persist(b.cfg.DestinationDir()); err != nil {
		logger.Warn("Failed to persist build report", logfields.Error(err))
	}
}

func (b *Builder) writeMetrics(logger *slog.Logger) {
	if b.cfg.MetricsFile == "" || b.registry == nil {
		return
	}
	path := b.cfg.MetricsFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(b.cfg.BaseDir(), path)
	}
	if err := metrics.WriteTextfile(b.registry, path); err != nil {
		logger.Warn("Failed to write metrics file", logfields.Path(path), logfields.Error(err))
	}
}

func (b *Builder) observeStage(stage string, start time.Time) {
	d := time.Since(start)
	b.recorder.ObserveStageDuration(stage, d)
	b.logger.Debug("Stage finished", logfields.Stage(stage), logfields.DurationMS(float64(d.Microseconds())/1000))
}
