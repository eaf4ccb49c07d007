package driven

import (
	"context"

	"github.com/custodia-labs/idsync/internal/core/domain"
)

// DeltaHandler receives one delta. Returning false stops the stream.
type DeltaHandler func(delta domain.Delta) bool

// Connector reads account deltas from one external resource.
type Connector interface {
	Type() string

	// Resource is the name of the resource the connector was opened for.
	Resource() string

	Capabilities() ConnectorCapabilities

	// Validate checks that the configured sources are reachable.
	Validate(ctx context.Context) error

	// Sync streams every change after token to handler, in emission order.
	// A nil token streams the change log from the beginning.
	Sync(ctx context.Context, objectClass string, token *domain.SyncToken, handler DeltaHandler) error

	// GetAllObjects streams every current object as a CREATE_OR_UPDATE delta.
	GetAllObjects(ctx context.Context, objectClass string, handler DeltaHandler) error

	// LatestSyncToken returns the token marking the end of the change stream.
	LatestSyncToken(ctx context.Context, objectClass string) (*domain.SyncToken, error)

	// Watch signals whenever the change stream may have new entries.
	// Only available if SupportsWatch is true. The channel closes with ctx.
	Watch(ctx context.Context) (<-chan struct{}, error)

	// Close stops watchers. Later calls return ErrConnectorClosed.
	Close() error
}

// ConnectorCapabilities tells the engine which sync modes a connector serves.
type ConnectorCapabilities struct {
	// SupportsIncremental means Sync and LatestSyncToken work.
	SupportsIncremental bool

	// SupportsFullReconciliation means GetAllObjects works.
	SupportsFullReconciliation bool

	SupportsWatch      bool
	SupportsValidation bool
}
