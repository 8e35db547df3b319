// Package preview serves a generated site locally and reloads browsers after
// each rebuild.
package preview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/wikibuilder/internal/logfields"
	"git.home.luguber.info/inful/wikibuilder/internal/metrics"
	"git.home.luguber.info/inful/wikibuilder/internal/watch"
)

const (
	DefaultHost     = "127.0.0.1"
	shutdownTimeout = 5 * time.Second
	baselineToken   = "0"
)

// Runner is the background work tied to the server lifetime, normally a
// *watch.Watcher.
type Runner interface {
	Run(ctx context.Context) error
}

// Options configures a Server.
type Options struct {
	Host string
	Port int
	// Registry, when set, is exposed at /metrics.
	Registry *prom.Registry
	Logger   *slog.Logger
}

// Server serves the destination tree with live reload.
type Server struct {
	root     string
	opts     Options
	logger   *slog.Logger
	hub      *LiveReloadHub
	builds   atomic.Uint64
	listener net.Listener
}

// New creates a server for the files under root.
func New(root string, opts Options) *Server {
	if opts.Host == "" {
		opts.Host = DefaultHost
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{root: root, opts: opts, logger: logger, hub: NewLiveReloadHub(logger)}
	// Clients connecting before the first rebuild take this as their
	// baseline, so the first rebuild token triggers a reload.
	s.hub.Broadcast(baselineToken)
	return s
}

// Hub returns the live reload hub.
func (s *Server) Hub() *LiveReloadHub { return s.hub }

// Handler returns the HTTP routes of the preview server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/livereload", s.hub)
	mux.HandleFunc("/livereload.js", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		_, _ = w.Write([]byte(LiveReloadScript))
	})
	if s.opts.Registry != nil {
		mux.Handle("/metrics", metrics.HTTPHandler(s.opts.Registry))
	}
	mux.Handle("/", noCache(http.FileServer(http.Dir(s.root))))
	return mux
}

func noCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// Notify broadcasts a reload after catalog and full rebuilds. Page results
// are skipped because a catalog rebuild always follows them.
func (s *Server) Notify(r watch.Result) {
	if r.Kind == metrics.RebuildPage {
		return
	}
	token := strconv.FormatUint(s.builds.Add(1), 10)
	if r.Err != nil {
		token = "error:" + token
	}
	s.hub.Broadcast(token)
}

// Listen binds the listening socket. Run calls it when it has not been
// called already.
func (s *Server) Listen() error {
	if s.listener != nil {
		return nil
	}
	addr := net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.listener = ln
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Run serves until ctx is cancelled, running runner alongside. A runner
// failure stops the server.
func (s *Server) Run(ctx context.Context, runner Runner) error {
	if err := s.Listen(); err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("Preview server listening", slog.String("url", "http://"+s.listener.Addr().String()))
		if err := srv.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("preview server: %w", err)
		}
		return nil
	})
	if runner != nil {
		g.Go(func() error { return runner.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("Shutting down preview server")
		s.hub.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("HTTP server shutdown error", logfields.Error(err))
		}
		return nil
	})
	return g.Wait()
}
