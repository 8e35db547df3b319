package page

import (
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	ferrors "git.home.luguber.info/inful/wikibuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/wikibuilder/internal/frontmatter"
)

// DefaultLayout is used when a document does not name one.
const DefaultLayout = "page"

// Metadata is the parsed, validated metadata of one document.
// It is produced once per document per build and never mutated afterwards.
type Metadata struct {
	Title  string
	Date   time.Time
	Layout string
	Draft  bool
	Render bool
	Tags   []string

	// Derived from the document location.
	Source   string // path relative to the source root, slash separated; identity key
	Category string // parent directory relative to the source root, "" at top level
	Name     string // file name without extension
	Filename string // destination file name (extension swapped to .html)

	// Extra holds unrecognized keys as decoded from YAML.
	Extra map[string]any
}

// OutputPath returns the destination path relative to the destination root.
func (m Metadata) OutputPath() string {
	return path.Join(m.Category, m.Filename)
}

// HasTag reports whether the page carries tag.
func (m Metadata) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Derived holds the fields computed from a document's path.
type Derived struct {
	Source   string
	Category string
	Name     string
	Filename string
}

// Derive computes Derived for a slash-separated path relative to the source root.
func Derive(relPath string) Derived {
	relPath = path.Clean(strings.ReplaceAll(relPath, "\\", "/"))
	dir, file := path.Split(relPath)
	category := strings.TrimSuffix(dir, "/")
	name := strings.TrimSuffix(file, path.Ext(file))
	return Derived{
		Source:   relPath,
		Category: category,
		Name:     name,
		Filename: name + ".html",
	}
}

// Deprecation signals that a metadata value was accepted but rewritten.
type Deprecation struct {
	Field       string
	Value       string
	Replacement string
}

func (d Deprecation) String() string {
	return fmt.Sprintf("%s %q is deprecated, use %q", d.Field, d.Value, d.Replacement)
}

// NormalizeLayout maps a raw layout value to the template name to use.
// An empty value selects DefaultLayout. The legacy value "post" maps to
// "page" and reports deprecated=true.
func NormalizeLayout(raw string) (layout string, deprecated bool) {
	raw = strings.TrimSpace(raw)
	switch raw {
	case "":
		return DefaultLayout, false
	case "post":
		return DefaultLayout, true
	default:
		return raw, false
	}
}

// recognized keys; "tags" is accepted as an alias of "tag".
const (
	keyTitle  = "title"
	keyDate   = "date"
	keyLayout = "layout"
	keyDraft  = "draft"
	keyRender = "render"
	keyTag    = "tag"
	keyTags   = "tags"
)

var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// Parser decodes metadata blocks. The zero value is usable; BuildTime then
// defaults to the moment of each Parse call.
type Parser struct {
	// BuildTime is the date assigned to documents without a date field.
	BuildTime time.Time
	// Location is used for dates without a zone. Defaults to time.Local.
	Location *time.Location
}

// ParseMetadata parses block with the zero Parser.
func ParseMetadata(block []byte, derived Derived) (Metadata, []Deprecation, error) {
	return Parser{}.Parse(block, derived)
}

// Parse decodes block and merges derived into the result.
//
// Errors are classified as metadata errors: invalid YAML, a non-mapping
// block, a missing or empty title, or a recognized field with the wrong type.
func (p Parser) Parse(block []byte, derived Derived) (Metadata, []Deprecation, error) {
	fields, err := frontmatter.ParseYAML(block)
	if err != nil {
		return Metadata{}, nil, ferrors.WrapError(err, ferrors.CategoryMetadata, "invalid metadata block").
			WithContext("path", derived.Source).Build()
	}

	meta := Metadata{
		Layout:   DefaultLayout,
		Render:   true,
		Source:   derived.Source,
		Category: derived.Category,
		Name:     derived.Name,
		Filename: derived.Filename,
	}
	var deprecations []Deprecation

	fail := func(msg string) error {
		return ferrors.MetadataError(msg).WithContext("path", derived.Source).Build()
	}

	title, ok := fields[keyTitle]
	if !ok || title == nil {
		return Metadata{}, nil, fail("missing required field 'title'")
	}
	meta.Title = strings.TrimSpace(fmt.Sprint(title))
	if meta.Title == "" {
		return Metadata{}, nil, fail("field 'title' must not be empty")
	}

	meta.Date = p.buildTime()
	if raw, ok := fields[keyDate]; ok && raw != nil {
		d, err := p.parseDate(raw)
		if err != nil {
			return Metadata{}, nil, ferrors.WrapError(err, ferrors.CategoryMetadata, "invalid field 'date'").
				WithContext("path", derived.Source).Build()
		}
		meta.Date = d
	}

	if raw, ok := fields[keyLayout]; ok && raw != nil {
		layout, deprecated := NormalizeLayout(fmt.Sprint(raw))
		if deprecated {
			deprecations = append(deprecations, Deprecation{Field: keyLayout, Value: fmt.Sprint(raw), Replacement: layout})
		}
		meta.Layout = layout
	}

	if meta.Draft, err = boolField(fields, keyDraft, false); err != nil {
		return Metadata{}, nil, fail(err.Error())
	}
	if meta.Render, err = boolField(fields, keyRender, true); err != nil {
		return Metadata{}, nil, fail(err.Error())
	}

	for _, key := range []string{keyTag, keyTags} {
		raw, ok := fields[key]
		if !ok || raw == nil {
			continue
		}
		tags, err := NormalizeTags(raw)
		if err != nil {
			return Metadata{}, nil, fail(fmt.Sprintf("field '%s': %v", key, err))
		}
		meta.Tags = mergeTags(meta.Tags, tags)
	}

	for k, v := range fields {
		switch k {
		case keyTitle, keyDate, keyLayout, keyDraft, keyRender, keyTag, keyTags:
			continue
		}
		if meta.Extra == nil {
			meta.Extra = make(map[string]any)
		}
		meta.Extra[k] = v
	}

	return meta, deprecations, nil
}

func (p Parser) buildTime() time.Time {
	if p.BuildTime.IsZero() {
		return time.Now()
	}
	return p.BuildTime
}

func (p Parser) location() *time.Location {
	if p.Location == nil {
		return time.Local
	}
	return p.Location
}

func (p Parser) parseDate(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		// YAML decodes unquoted timestamps without a zone as UTC. Read them
		// as wall clock time so they agree with the string forms.
		if v.Location() == time.UTC {
			return time.Date(v.Year(), v.Month(), v.Day(), v.Hour(), v.Minute(), v.Second(), v.Nanosecond(), p.location()), nil
		}
		return v, nil
	case string:
		loc := p.location()
		s := strings.TrimSpace(v)
		for _, layout := range dateLayouts {
			if t, err := time.ParseInLocation(layout, s, loc); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("cannot parse %q as a date", v)
	default:
		return time.Time{}, fmt.Errorf("unsupported date value %v (%T)", raw, raw)
	}
}

func boolField(fields map[string]any, key string, def bool) (bool, error) {
	raw, ok := fields[key]
	if !ok || raw == nil {
		return def, nil
	}
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return def, fmt.Errorf("field '%s' must be a boolean, got %q", key, v)
		}
		return b, nil
	default:
		return def, fmt.Errorf("field '%s' must be a boolean, got %v", key, raw)
	}
}

// NormalizeTags converts a tag value into an ordered set. A string is split on
// commas; a list contributes one tag per scalar item. Items are trimmed, empty
// items dropped and duplicates removed keeping the first occurrence.
func NormalizeTags(raw any) ([]string, error) {
	var items []string
	switch v := raw.(type) {
	case string:
		items = strings.Split(v, ",")
	case []any:
		for _, item := range v {
			switch item.(type) {
			case map[string]any, []any:
				return nil, fmt.Errorf("tag items must be scalars, got %v", item)
			}
			if item != nil {
				items = append(items, fmt.Sprint(item))
			}
		}
	case []string:
		items = v
	default:
		items = []string{fmt.Sprint(v)}
	}
	return mergeTags(nil, items), nil
}

func mergeTags(dst, src []string) []string {
	for _, t := range src {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		dup := false
		for _, existing := range dst {
			if existing == t {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, t)
		}
	}
	return dst
}
