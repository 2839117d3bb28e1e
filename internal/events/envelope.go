package events

import (
	"encoding/json"
	"time"
)

// Envelope is the wire shape of a relayed outbox event. Subscribers
// treat it as a refetch hint keyed on aggregate, not as state.
type Envelope struct {
	EventType     string          `json:"event_type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}
