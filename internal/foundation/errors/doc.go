// Package errors provides foundational, type-safe error primitives used across wikibuilder.
//
// Errors are classified by category (what went wrong) and severity (how far the
// failure reaches). The build pipeline relies on that split to decide whether a
// failure stays scoped to one document or aborts the whole build:
//
//   - CategoryFormat, CategoryMetadata, CategoryRender: one document is skipped and reported.
//   - CategoryTemplate, CategoryConfig: the build stops before (or while) writing output.
//   - CategoryFileSystem: per-document unless raised for the destination root.
//
// Example usage:
//
//	err := errors.MetadataError("missing required field 'title'").
//		WithContext("path", relPath).
//		WithCause(yamlErr).
//		Build()
package errors
