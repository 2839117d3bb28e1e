package outbox

import (
	"context"
	"encoding/json"
	"time"

	"livepoll/internal/events"
	"livepoll/internal/repository"
)

// Processor drains pending outbox rows and relays them to Redis.
// Delivery is at-least-once: a row is only marked processed after the
// publish succeeds, so subscribers must tolerate duplicates.
type Processor struct {
	repo       repository.EventRepository
	publisher  events.Publisher
	resolver   events.ChannelResolver
	clock      func() time.Time
	batchSize  int
	interval   time.Duration
	maxRetries int
}

func NewProcessor(repo repository.EventRepository, publisher events.Publisher, resolver events.ChannelResolver, batchSize int, interval time.Duration, maxRetries int) *Processor {
	return &Processor{
		repo:       repo,
		publisher:  publisher,
		resolver:   resolver,
		clock:      time.Now,
		batchSize:  batchSize,
		interval:   interval,
		maxRetries: maxRetries,
	}
}

func (p *Processor) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch relays one batch of pending events. Exposed so tests
// can drive the processor without the ticker.
func (p *Processor) ProcessBatch(ctx context.Context) {
	eventsBatch, err := p.repo.GetPendingOutboxEvents(ctx, p.batchSize)
	if err != nil || len(eventsBatch) == 0 {
		return
	}

	for _, e := range eventsBatch {
		if e.RetryCount >= p.maxRetries {
			_ = p.repo.MarkOutboxEventFailed(ctx, e.ID, p.clock().Add(time.Hour), "max retries exceeded")
			continue
		}

		env := events.Envelope{
			EventType:     e.EventType,
			AggregateType: e.AggregateType,
			AggregateID:   e.AggregateID.String(),
			OccurredAt:    e.CreatedAt.UTC(),
			Payload:       json.RawMessage(e.Payload),
		}
		payload, err := json.Marshal(env)
		if err != nil {
			_ = p.repo.MarkOutboxEventFailed(ctx, e.ID, p.clock().Add(time.Minute), err.Error())
			continue
		}

		published := true
		for _, channel := range p.resolver.ResolveChannels(env) {
			if err := p.publisher.Publish(ctx, channel, payload); err != nil {
				_ = p.repo.MarkOutboxEventFailed(ctx, e.ID, p.clock().Add(time.Minute), err.Error())
				published = false
				break
			}
		}
		if !published {
			continue
		}

		_ = p.repo.MarkOutboxEventProcessed(ctx, e.ID)
	}
}
