package csvfile

import "errors"

// Connector-specific errors.
var (
	// ErrNoSource indicates neither an accounts file nor a change log is configured.
	ErrNoSource = errors.New("csvfile: accounts or changelog path is required")

	// ErrUnknownEncoding indicates an unsupported text encoding name.
	ErrUnknownEncoding = errors.New("csvfile: unknown encoding")

	// ErrMissingUIDColumn indicates the accounts header lacks the uid column.
	ErrMissingUIDColumn = errors.New("csvfile: uid column not found in header")

	// ErrBadEntry indicates a malformed change log line.
	ErrBadEntry = errors.New("csvfile: malformed changelog entry")
)
