package page

import (
	"maps"
	"strings"
	"time"

	"git.home.luguber.info/inful/wikibuilder/internal/frontmatter"
)

// TemplateVars returns the page variables exposed to templates as "page".
// Extra keys are merged first so typed fields always win on a name clash.
func (m Metadata) TemplateVars() map[string]any {
	vars := make(map[string]any, len(m.Extra)+12)
	maps.Copy(vars, m.Extra)

	tags := m.Tags
	if tags == nil {
		tags = []string{}
	}
	vars["title"] = m.Title
	vars["date"] = m.Date
	vars["layout"] = m.Layout
	vars["draft"] = m.Draft
	vars["render"] = m.Render
	vars["tag"] = tags
	vars["tags"] = tags
	vars["category"] = m.Category
	vars["name"] = m.Name
	vars["filename"] = m.Filename
	vars["source"] = m.Source
	vars["url"] = m.OutputPath()
	return vars
}

// DefaultFilename derives a source file name from a title: lower-cased,
// whitespace runs joined with '-', plus the document extension.
func DefaultFilename(title, ext string) string {
	slug := strings.ToLower(strings.Join(strings.Fields(title), "-"))
	return slug + "." + strings.TrimPrefix(ext, ".")
}

// NewDocument renders the skeleton of a new source document.
func NewDocument(title string, date time.Time, layout string) ([]byte, error) {
	if layout == "" {
		layout = DefaultLayout
	}
	return frontmatter.Compose([]frontmatter.Field{
		{Key: "title", Value: title},
		{Key: "date", Value: date},
		{Key: "layout", Value: layout},
	}, []byte("\n\n"))
}
