package commands

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/wikibuilder/internal/site"
	"git.home.luguber.info/inful/wikibuilder/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Drafts bool `help:"Include documents marked as drafts"`
}

func (c *WatchCmd) Run(g *Global, root *CLI) error {
	s, err := loadSession(g, root)
	if err != nil {
		return err
	}
	if c.Drafts {
		s.cfg.IncludeDrafts = true
	}
	b, err := s.builder()
	if err != nil {
		return err
	}
	return locked(g.Ctx, b, s.logger, func() error {
		if err := initialBuild(g.Ctx, b, s.logger); err != nil {
			return err
		}
		return newWatcher(s, b, nil).Run(g.Ctx)
	})
}

func newWatcher(s *session, b *site.Builder, onRebuilt func(watch.Result)) *watch.Watcher {
	return watch.New(b.Store(), b, watch.Options{
		QueueSize:           s.cfg.Watch.QueueSize,
		Coalesce:            s.cfg.Watch.Coalesce,
		FullRebuildInterval: s.cfg.Watch.FullRebuildInterval,
		OnRebuilt:           onRebuilt,
		Logger:              s.logger,
		Recorder:            s.recorder,
	})
}

// initialBuild brings the destination up to date before watching. Only
// build-scoped errors stop the command.
func initialBuild(ctx context.Context, b *site.Builder, logger *slog.Logger) error {
	report, err := b.Generate(ctx)
	if err != nil {
		return err
	}
	logger.Info("Initial build finished", slog.String("summary", report.Summary()))
	return nil
}
