// Package templates loads theme layouts and renders pages through html/template.
package templates

import (
	"bytes"
	"errors"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	ferrors "git.home.luguber.info/inful/wikibuilder/internal/foundation/errors"
)

// Ext is the file extension of theme templates.
const Ext = ".html"

// PartialPrefix marks theme files parsed alongside every layout so layouts
// can invoke them with {{template "_header.html" .}}.
const PartialPrefix = "_"

const defaultCacheSize = 32

// Engine renders named theme templates. Templates are loaded on first use and
// cached. It is safe for concurrent use.
type Engine struct {
	dir   string
	funcs template.FuncMap
	cache *lru.Cache[string, *template.Template]
}

// New creates an engine reading templates from dir.
func New(dir string) (*Engine, error) {
	cache, err := lru.New[string, *template.Template](defaultCacheSize)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryInternal, "create template cache").Build()
	}
	return &Engine{dir: dir, funcs: FuncMap(), cache: cache}, nil
}

// Dir returns the template directory.
func (e *Engine) Dir() string { return e.dir }

// Has reports whether a template file for name exists.
func (e *Engine) Has(name string) bool {
	info, err := os.Stat(e.file(name))
	return err == nil && !info.IsDir()
}

// Lookup returns the parsed template for name ("page" loads page.html).
// A missing or unparsable template is a build-fatal template error.
func (e *Engine) Lookup(name string) (*template.Template, error) {
	name = strings.TrimSuffix(name, Ext)
	if tpl, ok := e.cache.Get(name); ok {
		return tpl, nil
	}

	file := e.file(name)
	src, err := os.ReadFile(file)
	if err != nil {
		msg := "unable to read template"
		if errors.Is(err, fs.ErrNotExist) {
			msg = "template not found"
		}
		return nil, ferrors.TemplateError(msg).
			WithContext("template", filepath.Base(file)).WithCause(err).Build()
	}

	tpl := template.New(filepath.Base(file)).Funcs(e.funcs)
	if err := e.parsePartials(tpl); err != nil {
		return nil, err
	}
	if _, err := tpl.Parse(string(src)); err != nil {
		return nil, ferrors.TemplateError("unable to parse template").
			WithContext("template", filepath.Base(file)).WithCause(err).Build()
	}

	e.cache.Add(name, tpl)
	return tpl, nil
}

// Render executes the template for name with vars. Lookup failures are
// build-fatal; execution failures are errors of the rendered document.
func (e *Engine) Render(name string, vars map[string]any) ([]byte, error) {
	tpl, err := e.Lookup(name)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, vars); err != nil {
		// Execution fails on the data of one document; the template itself is sound.
		return nil, ferrors.NewError(ferrors.CategoryTemplate, "unable to execute template").
			WithContext("template", tpl.Name()).WithCause(err).Build()
	}
	return buf.Bytes(), nil
}

// Purge drops every cached template so edits to the theme are picked up.
func (e *Engine) Purge() { e.cache.Purge() }

func (e *Engine) file(name string) string {
	return filepath.Join(e.dir, strings.TrimSuffix(name, Ext)+Ext)
}

func (e *Engine) parsePartials(tpl *template.Template) error {
	matches, err := filepath.Glob(filepath.Join(e.dir, PartialPrefix+"*"+Ext))
	if err != nil {
		return ferrors.TemplateError("invalid template directory").
			WithContext("path", e.dir).WithCause(err).Build()
	}
	for _, m := range matches {
		src, err := os.ReadFile(m)
		if err != nil {
			return ferrors.TemplateError("unable to read partial").
				WithContext("template", filepath.Base(m)).WithCause(err).Build()
		}
		if _, err := tpl.New(filepath.Base(m)).Parse(string(src)); err != nil {
			return ferrors.TemplateError("unable to parse partial").
				WithContext("template", filepath.Base(m)).WithCause(err).Build()
		}
	}
	return nil
}
