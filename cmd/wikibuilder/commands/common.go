package commands

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/wikibuilder/internal/config"
	"git.home.luguber.info/inful/wikibuilder/internal/logfields"
	"git.home.luguber.info/inful/wikibuilder/internal/metrics"
	"git.home.luguber.info/inful/wikibuilder/internal/site"
)

// Global carries process state shared by every command.
type Global struct {
	Ctx    context.Context
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"C" help:"Configuration file path" default:"_config.yml" type:"path"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Generate GenerateCmd `cmd:"" help:"Generate the site from the source directory"`
	Watch    WatchCmd    `cmd:"" help:"Regenerate pages as source documents change"`
	Serve    ServeCmd    `cmd:"" help:"Serve the generated site with live reload"`
	New      NewCmd      `cmd:"" help:"Create a new source document"`
	Init     InitCmd     `cmd:"" help:"Write an example configuration file"`
}

// AfterApply installs a default logger before any configuration is read.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply(g *Global) error {
	g.Logger = config.NewLogger(g.Stderr, nil, c.Verbose)
	slog.SetDefault(g.Logger)
	return nil
}

// session is a loaded configuration with its logger and, when a metrics file
// is configured, a Prometheus registry.
type session struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prom.Registry
	recorder metrics.Recorder
}

func loadSession(g *Global, root *CLI) (*session, error) {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return nil, err
	}
	logger := config.NewLogger(g.Stderr, cfg, root.Verbose)
	slog.SetDefault(logger)
	g.Logger = logger
	return &session{cfg: cfg, logger: logger, recorder: metrics.NoopRecorder{}}, nil
}

// withRegistry enables Prometheus metrics for the session.
func (s *session) withRegistry() {
	if s.registry != nil {
		return
	}
	s.registry = prom.NewRegistry()
	s.recorder = metrics.NewPrometheusRecorder(s.registry)
}

func (s *session) builder() (*site.Builder, error) {
	if s.cfg.MetricsFile != "" {
		s.withRegistry()
	}
	return site.NewBuilder(s.cfg,
		site.WithLogger(s.logger),
		site.WithRecorder(s.recorder),
		site.WithRegistry(s.registry),
	)
}

// locked runs fn while holding the destination lock.
func locked(ctx context.Context, b *site.Builder, logger *slog.Logger, fn func() error) error {
	if err := b.Lock(ctx); err != nil {
		return err
	}
	defer func() {
		if err := b.Unlock(); err != nil {
			logger.Warn("Failed to release destination lock", logfields.Error(err))
		}
	}()
	return fn()
}

func stdoutOr(w io.Writer) io.Writer {
	if w == nil {
		return os.Stdout
	}
	return w
}
