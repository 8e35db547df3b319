package preview

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/wikibuilder/internal/metrics"
	"git.home.luguber.info/inful/wikibuilder/internal/watch"
)

// readUntil reads SSE lines until one contains want or the deadline passes.
func readUntil(t *testing.T, r *bufio.Reader, want string) bool {
	t.Helper()
	found := make(chan bool, 1)
	go func() {
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				found <- false
				return
			}
			if strings.Contains(line, want) {
				found <- true
				return
			}
		}
	}()
	select {
	case ok := <-found:
		return ok
	case <-time.After(2 * time.Second):
		return false
	}
}

// serveHub starts a test server for h. Cleanups run in reverse, so clients
// registered later are disconnected before the hub shuts down and the server
// closes.
func serveHub(t *testing.T, h http.Handler, shutdown func()) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	t.Cleanup(shutdown)
	return server
}

func connect(t *testing.T, url string) *bufio.Reader {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	r := bufio.NewReader(resp.Body)
	require.True(t, readUntil(t, r, ": connected"))
	return r
}

func TestLiveReloadInitialTokenReplayed(t *testing.T) {
	hub := NewLiveReloadHub(nil)
	hub.Broadcast("7")
	server := serveHub(t, hub, hub.Shutdown)

	r := connect(t, server.URL)
	assert.True(t, readUntil(t, r, `"build":"7"`))
}

func TestLiveReloadBroadcast(t *testing.T) {
	hub := NewLiveReloadHub(nil)
	server := serveHub(t, hub, hub.Shutdown)

	r := connect(t, server.URL)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	hub.Broadcast("42")
	assert.True(t, readUntil(t, r, `"build":"42"`))
}

func TestLiveReloadShutdownRejectsClients(t *testing.T) {
	hub := NewLiveReloadHub(nil)
	hub.Shutdown()

	rec := httptest.NewRecorder()
	hub.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/livereload", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	hub.Broadcast("1")
	hub.Shutdown()
}

func TestNotifySkipsPageResults(t *testing.T) {
	s := New(t.TempDir(), Options{})
	defer s.hub.Shutdown()

	assert.Equal(t, "0", s.hub.lastToken)

	s.Notify(watch.Result{Kind: metrics.RebuildPage})
	assert.Equal(t, "0", s.hub.lastToken)

	s.Notify(watch.Result{Kind: metrics.RebuildCatalog})
	assert.Equal(t, "1", s.hub.lastToken)

	s.Notify(watch.Result{Kind: metrics.RebuildFull, Err: errors.New("boom")})
	assert.Equal(t, "error:2", s.hub.lastToken)
}

func TestFirstRebuildReachesEarlyClients(t *testing.T) {
	s := New(t.TempDir(), Options{})
	server := serveHub(t, s.Handler(), s.Hub().Shutdown)

	r := connect(t, server.URL+"/livereload")
	require.True(t, readUntil(t, r, `"build":"0"`))
	require.Eventually(t, func() bool { return s.Hub().Clients() == 1 }, time.Second, 10*time.Millisecond)

	s.Notify(watch.Result{Kind: metrics.RebuildCatalog})
	assert.True(t, readUntil(t, r, `"build":"1"`))
}

func TestHandlerRoutes(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("<h1>Wiki</h1>"), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "linux"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(root, "linux", "intro.html"), []byte("intro"), 0o600))

	reg := prom.NewRegistry()
	metrics.NewPrometheusRecorder(reg).SetWorkers(3)

	tests := []struct {
		name     string
		registry *prom.Registry
		path     string
		status   int
		contains string
	}{
		{name: "catalog", path: "/", status: http.StatusOK, contains: "<h1>Wiki</h1>"},
		{name: "page", path: "/linux/intro.html", status: http.StatusOK, contains: "intro"},
		{name: "missing", path: "/nope.html", status: http.StatusNotFound},
		{name: "script", path: "/livereload.js", status: http.StatusOK, contains: "EventSource('/livereload')"},
		{name: "metrics disabled", path: "/metrics", status: http.StatusNotFound},
		{name: "metrics", registry: reg, path: "/metrics", status: http.StatusOK, contains: "wikibuilder_workers 3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(root, Options{Registry: tt.registry})
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.status, rec.Code)
			if tt.contains != "" {
				body, _ := io.ReadAll(rec.Body)
				assert.Contains(t, string(body), tt.contains)
			}
		})
	}
}

type blockingRunner struct{ started chan struct{} }

func (b *blockingRunner) Run(ctx context.Context) error {
	close(b.started)
	<-ctx.Done()
	return nil
}

type failingRunner struct{}

func (failingRunner) Run(context.Context) error { return errors.New("watch failed") }

func TestRunServesUntilCancelled(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("home"), 0o600))

	s := New(root, Options{Port: 0})
	require.NoError(t, s.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	runner := &blockingRunner{started: make(chan struct{})}
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, runner) }()

	<-runner.started
	resp, err := http.Get("http://" + s.Addr().String() + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "home", string(body))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRunStopsWhenRunnerFails(t *testing.T) {
	s := New(t.TempDir(), Options{Port: 0})
	err := s.Run(context.Background(), failingRunner{})
	assert.EqualError(t, err, "watch failed")
}
