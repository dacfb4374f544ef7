package alarm

import "context"

// Publisher defines the interface for publishing alarm messages.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Close() error
}
