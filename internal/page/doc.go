// Package page turns a raw metadata block into typed page Metadata.
//
// Recognized keys (title, date, layout, draft, render, tag) are decoded into
// struct fields and validated; every other key is kept verbatim in
// Metadata.Extra and only merged into template variables when a page is
// rendered. Fields derived from the document's location (category, filename)
// are attached by the caller through Derived.
package page
