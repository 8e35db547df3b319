package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/wikibuilder/internal/docs"
	"git.home.luguber.info/inful/wikibuilder/internal/generate"
	"git.home.luguber.info/inful/wikibuilder/internal/metrics"
)

type fakeRebuilder struct {
	mu       sync.Mutex
	calls    []string
	pageErr  error
	catalogs int
	fulls    int
}

func (f *fakeRebuilder) RegeneratePage(_ context.Context, absPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "page:"+filepath.Base(absPath))
	return f.pageErr
}

func (f *fakeRebuilder) RegenerateCatalog(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "catalog")
	f.catalogs++
	return nil
}

func (f *fakeRebuilder) Generate(context.Context) (*generate.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "full")
	f.fulls++
	return nil, nil
}

func (f *fakeRebuilder) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type resultLog struct {
	mu      sync.Mutex
	results []Result
}

func (r *resultLog) add(res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *resultLog) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.results)
}

func touch(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func startLoop(t *testing.T, w *Watcher) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.rebuildLoop(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return ctx
}

func TestProcessOneRebuildPerEvent(t *testing.T) {
	root := t.TempDir()
	a, b := filepath.Join(root, "a.md"), filepath.Join(root, "b.md")
	touch(t, a, "x")
	touch(t, b, "x")

	rb := &fakeRebuilder{}
	log := &resultLog{}
	w := New(docs.NewStore(root, "md"), rb, Options{OnRebuilt: log.add})
	ctx := startLoop(t, w)

	require.NoError(t, w.Enqueue(ctx, Event{Path: a, Op: fsnotify.Write}))
	require.NoError(t, w.Enqueue(ctx, Event{Path: b, Op: fsnotify.Write}))

	assert.Eventually(t, func() bool { return log.count() == 4 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"page:a.md", "catalog", "page:b.md", "catalog"}, rb.snapshot())
}

func TestProcessRemovedFileOnlyRebuildsCatalog(t *testing.T) {
	root := t.TempDir()
	rb := &fakeRebuilder{}
	log := &resultLog{}
	w := New(docs.NewStore(root, "md"), rb, Options{OnRebuilt: log.add})
	ctx := startLoop(t, w)

	require.NoError(t, w.Enqueue(ctx, Event{Path: filepath.Join(root, "gone.md"), Op: fsnotify.Remove}))

	assert.Eventually(t, func() bool { return log.count() == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"catalog"}, rb.snapshot())
}

func TestProcessCoalescesWithinWindow(t *testing.T) {
	root := t.TempDir()
	a, b := filepath.Join(root, "a.md"), filepath.Join(root, "b.md")
	touch(t, a, "x")
	touch(t, b, "x")

	rb := &fakeRebuilder{}
	log := &resultLog{}
	w := New(docs.NewStore(root, "md"), rb, Options{Coalesce: 200 * time.Millisecond, OnRebuilt: log.add})

	ctx := context.Background()
	for _, p := range []string{a, b, a, a} {
		require.NoError(t, w.Enqueue(ctx, Event{Path: p, Op: fsnotify.Write}))
	}
	startLoop(t, w)

	assert.Eventually(t, func() bool { return log.count() == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"page:a.md", "page:b.md", "catalog"}, rb.snapshot())
}

func TestProcessPageErrorsAreNotFatal(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a.md")
	touch(t, a, "x")

	rb := &fakeRebuilder{pageErr: errors.New("bad frontmatter")}
	log := &resultLog{}
	w := New(docs.NewStore(root, "md"), rb, Options{OnRebuilt: log.add})
	ctx := startLoop(t, w)

	require.NoError(t, w.Enqueue(ctx, Event{Path: a, Op: fsnotify.Write}))
	assert.Eventually(t, func() bool { return log.count() == 2 }, 2*time.Second, 10*time.Millisecond)

	log.mu.Lock()
	defer log.mu.Unlock()
	assert.Equal(t, metrics.RebuildPage, log.results[0].Kind)
	assert.Error(t, log.results[0].Err)
	assert.Equal(t, metrics.RebuildCatalog, log.results[1].Kind)
	assert.NoError(t, log.results[1].Err)
}

func TestFullRebuildEvent(t *testing.T) {
	rb := &fakeRebuilder{}
	log := &resultLog{}
	w := New(docs.NewStore(t.TempDir(), "md"), rb, Options{OnRebuilt: log.add})
	ctx := startLoop(t, w)

	require.NoError(t, w.Enqueue(ctx, Event{Full: true}))
	assert.Eventually(t, func() bool { return log.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"full"}, rb.snapshot())
}

func TestEnqueueBlocksWhenFull(t *testing.T) {
	w := New(docs.NewStore(t.TempDir(), "md"), &fakeRebuilder{}, Options{QueueSize: 1})
	require.NoError(t, w.Enqueue(context.Background(), Event{Path: "a.md"}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, w.Enqueue(ctx, Event{Path: "b.md"}), context.DeadlineExceeded)
}

func TestRunReactsToFilesystemEvents(t *testing.T) {
	root := t.TempDir()
	rb := &fakeRebuilder{}
	log := &resultLog{}
	w := New(docs.NewStore(root, "md"), rb, Options{OnRebuilt: log.add})

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- w.Run(ctx) }()

	select {
	case <-w.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not start")
	}

	touch(t, filepath.Join(root, "ignored.txt"), "x")
	touch(t, filepath.Join(root, ".hidden.md"), "x")
	touch(t, filepath.Join(root, "page.md"), "---\ntitle: P\n---\n")

	assert.Eventually(t, func() bool {
		for _, c := range rb.snapshot() {
			if c == "page:page.md" {
				return true
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "linux"), 0o750))
	time.Sleep(100 * time.Millisecond)
	touch(t, filepath.Join(root, "linux", "intro.md"), "---\ntitle: I\n---\n")

	assert.Eventually(t, func() bool {
		for _, c := range rb.snapshot() {
			if c == "page:intro.md" {
				return true
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-runErr)

	for _, c := range rb.snapshot() {
		assert.NotEqual(t, "page:ignored.txt", c)
		assert.NotEqual(t, "page:.hidden.md", c)
	}
}

func TestRunPeriodicFullRebuild(t *testing.T) {
	rb := &fakeRebuilder{}
	w := New(docs.NewStore(t.TempDir(), "md"), rb, Options{FullRebuildInterval: 100 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- w.Run(ctx) }()

	assert.Eventually(t, func() bool {
		rb.mu.Lock()
		defer rb.mu.Unlock()
		return rb.fulls >= 1
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-runErr)
}

func TestRunMissingRoot(t *testing.T) {
	w := New(docs.NewStore(filepath.Join(t.TempDir(), "missing"), "md"), &fakeRebuilder{}, Options{})
	assert.Error(t, w.Run(context.Background()))
}
