package commands

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	ferrors "git.home.luguber.info/inful/wikibuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/wikibuilder/internal/logfields"
	"git.home.luguber.info/inful/wikibuilder/internal/output"
	"git.home.luguber.info/inful/wikibuilder/internal/page"
)

// NewCmd implements the 'new' command.
type NewCmd struct {
	Category string `short:"c" required:"" help:"Category (directory under the source root)"`
	Title    string `short:"t" required:"" help:"Document title"`
	File     string `short:"f" help:"File name (defaults to the title in lower case with '-' for spaces)"`
	Layout   string `help:"Layout recorded in the metadata" default:"page"`
}

func (c *NewCmd) Run(g *Global, root *CLI) error {
	s, err := loadSession(g, root)
	if err != nil {
		return err
	}
	title := strings.TrimSpace(c.Title)
	if title == "" {
		return ferrors.ValidationError("title must not be empty").Build()
	}
	name := c.File
	if name == "" {
		name = page.DefaultFilename(title, s.cfg.DefaultExt)
	}
	rel := path.Join(strings.Trim(c.Category, "/"), name)

	body, err := page.NewDocument(title, time.Now(), c.Layout)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInternal, "compose document").Build()
	}

	full, err := output.WriteNew(s.cfg.SourceDir(), rel, body)
	switch {
	case errors.Is(err, output.ErrExists):
		s.logger.Warn("File exists, not overwritten", logfields.Path(filepath.Join(s.cfg.SourceDir(), filepath.FromSlash(rel))))
		return nil
	case errors.Is(err, output.ErrPathEscapes):
		return ferrors.ValidationError("document path escapes the source directory").
			WithContext("path", rel).Build()
	case err != nil:
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "create document").
			WithContext("path", rel).Build()
	}
	_, _ = fmt.Fprintf(stdoutOr(g.Stdout), "Created %s\n", full)
	return nil
}
