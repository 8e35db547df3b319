package catalog

import (
	"maps"
)

// IndexTemplate is the template rendered for the catalog page.
const IndexTemplate = "index"

// TemplateRenderer executes a named theme template.
type TemplateRenderer interface {
	Render(name string, vars map[string]any) ([]byte, error)
}

// Render executes the index template with the sorted tree exposed as
// site.structure. site is not modified.
func Render(tree *Node, engine TemplateRenderer, site map[string]any) ([]byte, error) {
	siteVars := make(map[string]any, len(site)+1)
	maps.Copy(siteVars, site)
	siteVars["structure"] = tree
	return engine.Render(IndexTemplate, map[string]any{"site": siteVars})
}
