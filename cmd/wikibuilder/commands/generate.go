package commands

import (
	"fmt"

	"git.home.luguber.info/inful/wikibuilder/internal/generate"
	"git.home.luguber.info/inful/wikibuilder/internal/logfields"
)

// GenerateCmd implements the 'generate' command.
type GenerateCmd struct {
	Drafts  bool `help:"Include documents marked as drafts"`
	Workers int  `short:"w" help:"Number of parallel workers (0 uses the CPU count)"`
}

func (c *GenerateCmd) Run(g *Global, root *CLI) error {
	s, err := loadSession(g, root)
	if err != nil {
		return err
	}
	if c.Drafts {
		s.cfg.IncludeDrafts = true
	}
	if c.Workers > 0 {
		s.cfg.Workers = c.Workers
	}

	b, err := s.builder()
	if err != nil {
		return err
	}

	var report *generate.Report
	err = locked(g.Ctx, b, s.logger, func() error {
		var genErr error
		report, genErr = b.Generate(g.Ctx)
		return genErr
	})
	if err != nil {
		return err
	}

	out := stdoutOr(g.Stdout)
	_, _ = fmt.Fprintln(out, report.Summary())
	for _, f := range report.Failures {
		s.logger.Warn("Document failed", logfields.Path(f.Path), logfields.Error(f.Err))
	}
	_, _ = fmt.Fprintf(out, "Site written to %s\n", s.cfg.DestinationDir())
	return nil
}
