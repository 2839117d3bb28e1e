package services

import (
	"context"
	"encoding/json"
	"time"

	"livepoll/internal/domain/event"
	"livepoll/internal/events"
	"livepoll/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EventPublisher writes domain events to the outbox table for reliable delivery
type EventPublisher struct {
	eventRepo repository.EventRepository
}

func NewEventPublisher(eventRepo repository.EventRepository) *EventPublisher {
	return &EventPublisher{eventRepo: eventRepo}
}

// PublishPollCreated creates an outbox event for a new poll
func (p *EventPublisher) PublishPollCreated(ctx context.Context, tx *gorm.DB, pollID, ownerID uuid.UUID, title string) error {
	payload := events.PollCreatedPayload{
		PollID:  pollID.String(),
		OwnerID: ownerID.String(),
		Title:   title,
	}
	return p.saveToOutbox(ctx, tx, events.EventTypePollCreated, events.AggregateTypePoll, pollID, payload)
}

// PublishPollDeleted creates an outbox event for a deleted poll
func (p *EventPublisher) PublishPollDeleted(ctx context.Context, tx *gorm.DB, pollID, ownerID uuid.UUID) error {
	payload := events.PollDeletedPayload{
		PollID:  pollID.String(),
		OwnerID: ownerID.String(),
	}
	return p.saveToOutbox(ctx, tx, events.EventTypePollDeleted, events.AggregateTypePoll, pollID, payload)
}

// PublishPollVoted creates an outbox event for a cast or changed vote
func (p *EventPublisher) PublishPollVoted(ctx context.Context, tx *gorm.DB, pollID, optionID, userID uuid.UUID, revote bool) error {
	payload := events.PollVotedPayload{
		PollID:   pollID.String(),
		OptionID: optionID.String(),
		UserID:   userID.String(),
		Revote:   revote,
	}
	return p.saveToOutbox(ctx, tx, events.EventTypePollVoted, events.AggregateTypePoll, pollID, payload)
}

// PublishVoteRetracted creates an outbox event for a retracted vote
func (p *EventPublisher) PublishVoteRetracted(ctx context.Context, tx *gorm.DB, pollID, userID uuid.UUID) error {
	payload := events.PollVoteRetractedPayload{
		PollID: pollID.String(),
		UserID: userID.String(),
	}
	return p.saveToOutbox(ctx, tx, events.EventTypePollVoteRetracted, events.AggregateTypePoll, pollID, payload)
}

// PublishUserRegistered creates an outbox event for a new account
func (p *EventPublisher) PublishUserRegistered(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error {
	return p.saveToOutbox(ctx, tx, events.EventTypeUserRegistered, events.AggregateTypeUser, userID, events.UserEventPayload{UserID: userID.String()})
}

// PublishPasswordChanged creates an outbox event after a password update
func (p *EventPublisher) PublishPasswordChanged(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error {
	return p.saveToOutbox(ctx, tx, events.EventTypeUserPasswordChanged, events.AggregateTypeUser, userID, events.UserEventPayload{UserID: userID.String()})
}

// PublishLoggedOutAll creates an outbox event after a global sign-out
func (p *EventPublisher) PublishLoggedOutAll(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error {
	return p.saveToOutbox(ctx, tx, events.EventTypeUserLoggedOutAll, events.AggregateTypeUser, userID, events.UserEventPayload{UserID: userID.String()})
}

// saveToOutbox serializes the event and creates an outbox record, inside
// the given transaction when one is supplied.
func (p *EventPublisher) saveToOutbox(ctx context.Context, tx *gorm.DB, eventType, aggregateType string, aggregateID uuid.UUID, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	outboxEvent := &event.OutboxEvent{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       string(data),
		CreatedAt:     time.Now(),
	}

	repo := p.eventRepo
	if tx != nil {
		repo = repository.NewEventRepository(tx)
	}
	return repo.CreateOutboxEvent(ctx, outboxEvent)
}
