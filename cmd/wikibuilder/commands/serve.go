package commands

import (
	"git.home.luguber.info/inful/wikibuilder/internal/preview"
)

// ServeCmd implements the 'serve' command.
type ServeCmd struct {
	Port   int    `short:"p" help:"Port to listen on (defaults to serve.port)"`
	Host   string `help:"Interface to bind" default:"127.0.0.1"`
	Drafts bool   `help:"Include documents marked as drafts"`
}

func (c *ServeCmd) Run(g *Global, root *CLI) error {
	s, err := loadSession(g, root)
	if err != nil {
		return err
	}
	if c.Drafts {
		s.cfg.IncludeDrafts = true
	}
	if c.Port > 0 {
		s.cfg.Serve.Port = c.Port
	}
	s.withRegistry()
	b, err := s.builder()
	if err != nil {
		return err
	}

	srv := preview.New(s.cfg.DestinationDir(), preview.Options{
		Host:     c.Host,
		Port:     s.cfg.Serve.Port,
		Registry: s.registry,
		Logger:   s.logger,
	})
	return locked(g.Ctx, b, s.logger, func() error {
		if err := initialBuild(g.Ctx, b, s.logger); err != nil {
			return err
		}
		return srv.Run(g.Ctx, newWatcher(s, b, srv.Notify))
	})
}
