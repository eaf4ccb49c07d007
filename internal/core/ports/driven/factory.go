package driven

import (
	"context"

	"github.com/custodia-labs/idsync/internal/core/domain"
)

// ConnectorBuilder opens a connector for a resource.
type ConnectorBuilder func(resource domain.Resource) (Connector, error)

// ConnectorFactory maps a resource's connector type to a builder.
type ConnectorFactory interface {
	// Create opens the connector of a resource. An unregistered type
	// yields ErrUnsupportedType.
	Create(ctx context.Context, resource domain.Resource) (Connector, error)

	// Register binds a connector type to a builder, replacing any
	// previous binding.
	Register(connectorType string, builder ConnectorBuilder)

	// SupportedTypes lists registered connector types in sorted order.
	SupportedTypes() []string
}
