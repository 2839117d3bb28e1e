package repository

import (
	"context"
	"errors"
	"time"

	"livepoll/internal/domain/event"
	livepoll_errors "livepoll/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresEventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) EventRepository {
	return &PostgresEventRepository{db: db}
}

func (r *PostgresEventRepository) CreateOutboxEvent(ctx context.Context, e *event.OutboxEvent) error {
	res := r.db.WithContext(ctx).Create(e)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return livepoll_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresEventRepository) GetOutboxEventByID(ctx context.Context, id uuid.UUID) (event.OutboxEvent, error) {
	var e event.OutboxEvent
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return event.OutboxEvent{}, livepoll_errors.ErrNotFound
		}
		return event.OutboxEvent{}, err
	}
	return e, nil
}

func (r *PostgresEventRepository) GetPendingOutboxEvents(ctx context.Context, limit int) ([]event.OutboxEvent, error) {
	var events []event.OutboxEvent
	q := r.db.WithContext(ctx).
		Where("processed_at IS NULL AND (next_retry_at IS NULL OR next_retry_at <= NOW())")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Order("created_at ASC").Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *PostgresEventRepository) MarkOutboxEventProcessed(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&event.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"processed_at":  time.Now(),
			"error_message": nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return livepoll_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresEventRepository) MarkOutboxEventFailed(ctx context.Context, id uuid.UUID, nextRetryAt time.Time, errorMessage string) error {
	res := r.db.WithContext(ctx).
		Model(&event.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"retry_count":   gorm.Expr("retry_count + 1"),
			"next_retry_at": nextRetryAt,
			"error_message": errorMessage,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return livepoll_errors.ErrNotFound
	}
	return nil
}
