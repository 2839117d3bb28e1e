package events

import "context"

// Subscriber is the inbound half of the event pipe; satisfied by the
// Redis subscriber and consumed by the WebSocket bridge.
type Subscriber interface {
	Subscribe(ctx context.Context, channels []string, handler func(channel string, payload []byte)) error
}
