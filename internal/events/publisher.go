package events

import "context"

// Publisher is the outbound half of the event pipe; satisfied by the
// Redis publisher.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}
