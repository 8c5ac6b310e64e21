package store

import "errors"

// Sentinel errors mapped to JSON-RPC codes at the RPC boundary and to
// process exit codes at the CLI boundary.
var (
	// ErrInvalidArgument covers empty summaries, unknown clients, and
	// malformed input that yields no summary.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNoActiveSession is returned when an append is attempted with
	// no running session.
	ErrNoActiveSession = errors.New("no active session")

	// ErrStorageCapExceeded is raised after compaction fails to
	// recover enough space.
	ErrStorageCapExceeded = errors.New("storage cap exceeded")

	// ErrTransientLocked indicates the store was locked after
	// exhausting the bounded retry policy.
	ErrTransientLocked = errors.New("store transiently locked")
)
