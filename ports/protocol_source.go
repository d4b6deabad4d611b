package ports

import (
	"context"

	"pvqc/domain/core"
	"pvqc/domain/protocol"
)

// ProtocolSource supplies raw protocol definition documents to the registry.
// Implementations do not validate: structural validation is the registry's
// job so every source is held to the same rules.
type ProtocolSource interface {
	Fetch(ctx context.Context, id core.ProtocolID, version string) (*protocol.Definition, error)
	List(ctx context.Context) ([]*protocol.Definition, error)
}
