package domain

import "errors"

// Sentinel errors. Callers wrap them with context and match with errors.Is.
var (
	// ErrNotFound is returned for unknown resources, identities and tokens.
	ErrNotFound = errors.New("not found")

	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput marks bad configuration or malformed deltas.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown connector, workflow or target type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrSyncInProgress indicates a sync is already running for the resource.
	ErrSyncInProgress = errors.New("sync in progress")

	// ErrUnauthorized indicates the run context lacks a required authority.
	ErrUnauthorized = errors.New("unauthorized")

	// Reconciliation.

	// ErrMissingAccountIDMapping indicates the resource has no usable
	// account-id mapping. Fatal for a sync run.
	ErrMissingAccountIDMapping = errors.New("missing account-id mapping")

	// ErrAmbiguousMatch indicates more than one local identity matched a delta
	// under the IGNORE conflict policy.
	ErrAmbiguousMatch = errors.New("more than one match")

	// ErrCannotEvaluate indicates a derived attribute could not be evaluated.
	ErrCannotEvaluate = errors.New("cannot evaluate derived attribute")

	// Connectors and tokens.

	// ErrConnectorUnavailable indicates the connector could not be reached or
	// its change stream failed. Fatal for a sync run.
	ErrConnectorUnavailable = errors.New("connector unavailable")

	ErrConnectorClosed = errors.New("connector closed")

	// ErrInvalidToken indicates a sync token could not be decoded.
	ErrInvalidToken = errors.New("invalid sync token")

	// ErrTokenPersistence indicates the new sync token could not be stored.
	// Fatal for a sync run.
	ErrTokenPersistence = errors.New("sync token persistence failed")
)
