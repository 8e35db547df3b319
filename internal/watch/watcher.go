// Package watch regenerates pages incrementally as source documents change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/wikibuilder/internal/docs"
	"git.home.luguber.info/inful/wikibuilder/internal/generate"
	"git.home.luguber.info/inful/wikibuilder/internal/logfields"
	"git.home.luguber.info/inful/wikibuilder/internal/metrics"
)

// DefaultQueueSize bounds the event queue when Options.QueueSize is unset.
const DefaultQueueSize = 64

// Rebuilder performs the rebuild steps. site.Builder implements it.
type Rebuilder interface {
	RegeneratePage(ctx context.Context, absPath string) error
	RegenerateCatalog(ctx context.Context) error
	Generate(ctx context.Context) (*generate.Report, error)
}

// Event is one queued change. Full requests a complete rebuild.
type Event struct {
	Path string
	Op   fsnotify.Op
	Full bool
}

// Result describes a finished rebuild.
type Result struct {
	Kind  metrics.RebuildKind
	Paths []string
	Err   error
}

// Options tunes a Watcher.
type Options struct {
	// QueueSize bounds pending events; a full queue blocks the event reader.
	QueueSize int
	// Coalesce batches events arriving within the window into one rebuild.
	// Zero rebuilds once per event.
	Coalesce time.Duration
	// FullRebuildInterval schedules periodic full rebuilds; zero disables them.
	FullRebuildInterval time.Duration
	// OnRebuilt is called on the rebuild goroutine after every rebuild.
	OnRebuilt func(Result)

	Logger   *slog.Logger
	Recorder metrics.Recorder
}

// Watcher observes a source tree and feeds changes to a single sequential
// rebuild loop.
type Watcher struct {
	store     *docs.Store
	rebuilder Rebuilder
	opts      Options
	logger    *slog.Logger
	recorder  metrics.Recorder

	queue chan Event
	ready chan struct{}
	once  sync.Once
}

// New creates a watcher for the documents of store.
func New(store *docs.Store, rebuilder Rebuilder, opts Options) *Watcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	w := &Watcher{
		store:     store,
		rebuilder: rebuilder,
		opts:      opts,
		logger:    opts.Logger,
		recorder:  opts.Recorder,
		queue:     make(chan Event, opts.QueueSize),
		ready:     make(chan struct{}),
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	if w.recorder == nil {
		w.recorder = metrics.NoopRecorder{}
	}
	return w
}

// Ready is closed once the filesystem subscription is in place.
func (w *Watcher) Ready() <-chan struct{} { return w.ready }

// Run watches until ctx is cancelled. Cancellation is a normal shutdown and
// returns nil; an error means the subscription could not be set up.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	defer func() { _ = fsw.Close() }()

	if err := w.addDirsRecursive(fsw, w.store.Root()); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if w.opts.FullRebuildInterval > 0 {
		sched, err := w.schedulePeriodic(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = sched.Shutdown() }()
	}

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		w.rebuildLoop(ctx)
	}()

	w.logger.Info("Watching for changes", logfields.Path(w.store.Root()))
	w.once.Do(func() { close(w.ready) })

	defer func() {
		cancel()
		<-loopDone
	}()
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Shutting down watcher")
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleFileEvent(ctx, fsw, ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Watcher error", logfields.Error(err))
		}
	}
}

// Enqueue adds ev to the queue, blocking while it is full.
func (w *Watcher) Enqueue(ctx context.Context, ev Event) error {
	select {
	case w.queue <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Watcher) schedulePeriodic(ctx context.Context) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(w.opts.FullRebuildInterval),
		gocron.NewTask(func() {
			_ = w.Enqueue(ctx, Event{Full: true})
		}),
		gocron.WithName("full-rebuild"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("failed to create periodic rebuild job: %w", err)
	}
	sched.Start()
	w.logger.Info("Scheduled periodic full rebuild", slog.Duration("interval", w.opts.FullRebuildInterval))
	return sched, nil
}

func (w *Watcher) handleFileEvent(ctx context.Context, fsw *fsnotify.Watcher, ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
		return
	}
	if ev.Has(fsnotify.Create) {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			if isHidden(filepath.Base(ev.Name)) {
				return
			}
			_ = w.addDirsRecursive(fsw, ev.Name)
			w.enqueueExisting(ctx, ev.Name)
			return
		}
	}
	if _, ok := w.store.Document(ev.Name); !ok {
		return
	}
	w.logger.Debug("File change detected", logfields.Path(ev.Name), logfields.Event(ev.Op.String()))
	_ = w.Enqueue(ctx, Event{Path: ev.Name, Op: ev.Op})
}

// enqueueExisting queues the documents of a directory that appeared after
// watching started; moving a directory in produces no per-file events.
func (w *Watcher) enqueueExisting(ctx context.Context, dir string) {
	_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != dir && isHidden(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := w.store.Document(path); ok {
			_ = w.Enqueue(ctx, Event{Path: path, Op: fsnotify.Create})
		}
		return nil
	})
}

func (w *Watcher) rebuildLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-w.queue:
			batch := []Event{ev}
			if w.opts.Coalesce > 0 {
				batch = w.collect(ctx, batch)
			}
			w.process(ctx, batch)
		}
	}
}

// collect gathers events arriving within the coalescing window.
func (w *Watcher) collect(ctx context.Context, batch []Event) []Event {
	timer := time.NewTimer(w.opts.Coalesce)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return batch
		case <-timer.C:
			return batch
		case ev := <-w.queue:
			batch = append(batch, ev)
		}
	}
}

func (w *Watcher) process(ctx context.Context, batch []Event) {
	for _, ev := range batch {
		if ev.Full {
			w.fullRebuild(ctx)
			return
		}
	}

	seen := make(map[string]struct{}, len(batch))
	var paths []string
	for _, ev := range batch {
		if _, dup := seen[ev.Path]; dup {
			continue
		}
		seen[ev.Path] = struct{}{}
		paths = append(paths, ev.Path)
	}

	var errs []error
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			w.logger.Debug("Document removed; skipping page", logfields.Path(p))
			continue
		}
		err := w.rebuilder.RegeneratePage(ctx, p)
		w.recorder.IncRebuild(metrics.RebuildPage, err == nil)
		if err != nil {
			w.logger.Warn("Regenerate failed", logfields.Path(p), logfields.Error(err))
			errs = append(errs, err)
		}
	}
	w.notify(Result{Kind: metrics.RebuildPage, Paths: paths, Err: errors.Join(errs...)})

	err := w.rebuilder.RegenerateCatalog(ctx)
	w.recorder.IncRebuild(metrics.RebuildCatalog, err == nil)
	if err != nil {
		w.logger.Warn("Catalog rebuild failed", logfields.Error(err))
	}
	w.notify(Result{Kind: metrics.RebuildCatalog, Paths: paths, Err: err})
}

func (w *Watcher) fullRebuild(ctx context.Context) {
	w.logger.Info("Running full rebuild")
	report, err := w.rebuilder.Generate(ctx)
	w.recorder.IncRebuild(metrics.RebuildFull, err == nil)
	if err != nil {
		w.logger.Warn("Full rebuild failed", logfields.Error(err))
	} else if report != nil {
		w.logger.Info("Full rebuild finished", slog.String("summary", report.Summary()))
	}
	w.notify(Result{Kind: metrics.RebuildFull, Err: err})
}

func (w *Watcher) notify(r Result) {
	if w.opts.OnRebuilt != nil {
		w.opts.OnRebuilt(r)
	}
}

func (w *Watcher) addDirsRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return fmt.Errorf("watch %s: %w", root, err)
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			w.logger.Warn("Watch add failed", logfields.Path(path), logfields.Error(err))
		}
		return nil
	})
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
