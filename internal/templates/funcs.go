package templates

import (
	"fmt"
	"html/template"
	"strings"
	"time"
)

var stringDateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	time.RFC3339,
}

// FuncMap returns the helpers available to theme templates.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"rfc3339": RFC3339,
		"lower":   strings.ToLower,
		"join":    join,
		"safe":    func(s string) template.HTML { return template.HTML(s) }, // #nosec G203 -- theme authors opt in explicitly.
	}
}

// RFC3339 formats a time, or a date string in one of the metadata layouts,
// as RFC 3339. Unparsable strings are returned unchanged.
func RFC3339(v any) string {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.Format(time.RFC3339)
	case *time.Time:
		if t == nil || t.IsZero() {
			return ""
		}
		return t.Format(time.RFC3339)
	case string:
		for _, layout := range stringDateLayouts {
			if parsed, err := time.ParseInLocation(layout, t, time.Local); err == nil {
				return parsed.Format(time.RFC3339)
			}
		}
		return t
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func join(sep string, v any) string {
	switch items := v.(type) {
	case []string:
		return strings.Join(items, sep)
	case []any:
		parts := make([]string, 0, len(items))
		for _, it := range items {
			parts = append(parts, fmt.Sprint(it))
		}
		return strings.Join(parts, sep)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
