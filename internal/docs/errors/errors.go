package errors

// Package errors provides sentinel errors for source document enumeration.
// They are wrapped by classified errors so callers can match either the
// category or the precise cause.

import "errors"

var (
	// ErrSourceNotFound indicates the configured source root does not exist.
	ErrSourceNotFound = errors.New("source directory not found")

	// ErrSourceNotDirectory indicates the configured source root is a file.
	ErrSourceNotDirectory = errors.New("source path is not a directory")

	// ErrWalkFailed indicates filesystem traversal below the source root failed.
	ErrWalkFailed = errors.New("source directory walk failed")

	// ErrReadFailed indicates reading a discovered document failed.
	ErrReadFailed = errors.New("source document read failed")
)
