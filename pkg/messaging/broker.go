package messaging

import (
	"context"
)

// ChannelChanges is the single multiplexed channel carrying change events for
// every watched collection.
const ChannelChanges = "registry.changes"

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}
