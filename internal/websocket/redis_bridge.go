package websocket

import (
	"context"

	"livepoll/internal/events"
)

// RedisBridge relays pub/sub messages into the hub so that events
// published by any instance reach this instance's WebSocket clients.
type RedisBridge struct {
	subscriber events.Subscriber
	hub        *Hub
}

func NewRedisBridge(subscriber events.Subscriber, hub *Hub) *RedisBridge {
	return &RedisBridge{subscriber: subscriber, hub: hub}
}

// Run blocks relaying messages until ctx is cancelled. channels may
// contain patterns; the hub is keyed by the concrete channel each
// message arrived on.
func (b *RedisBridge) Run(ctx context.Context, channels []string) error {
	return b.subscriber.Subscribe(ctx, channels, func(channel string, payload []byte) {
		b.hub.Broadcast(channel, payload)
	})
}
