package registry

import "errors"

var (
	// ErrNotFound is returned when a project path has no row.
	ErrNotFound = errors.New("project not found")

	// ErrAmbiguousName is returned by FindByDisplayName when more than
	// one project shares the queried display name. The caller — not
	// the Registry — decides how to resolve it.
	ErrAmbiguousName = errors.New("ambiguous project name")

	// ErrUnknownAdapter is returned when an adapter name outside
	// AllowedAdapters is configured.
	ErrUnknownAdapter = errors.New("unknown adapter")
)
