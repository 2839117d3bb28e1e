package repository

import (
	"context"
	"errors"
	"time"

	"livepoll/internal/domain/poll"
	livepoll_errors "livepoll/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresPollRepository struct {
	db *gorm.DB
}

func NewPollRepository(db *gorm.DB) PollRepository {
	return &PostgresPollRepository{db: db}
}

func (r *PostgresPollRepository) CreatePoll(ctx context.Context, p *poll.Poll) error {
	res := r.db.WithContext(ctx).Create(p)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return livepoll_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresPollRepository) CreateOptions(ctx context.Context, opts []poll.Option) error {
	if len(opts) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&opts).Error
}

func (r *PostgresPollRepository) GetPollByID(ctx context.Context, id uuid.UUID) (poll.Poll, error) {
	var p poll.Poll
	err := r.db.WithContext(ctx).
		Preload("Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("poll_options.position ASC")
		}).
		Where("id = ?", id).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return poll.Poll{}, livepoll_errors.ErrNotFound
		}
		return poll.Poll{}, err
	}
	return p, nil
}

func (r *PostgresPollRepository) ListPolls(ctx context.Context, page, limit int) ([]poll.Poll, int64, error) {
	var polls []poll.Poll
	var total int64

	q := r.db.WithContext(ctx).Model(&poll.Poll{})

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit

	if err := q.
		Preload("Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("poll_options.position ASC")
		}).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&polls).Error; err != nil {
		return nil, 0, err
	}

	return polls, total, nil
}

func (r *PostgresPollRepository) DeletePoll(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&poll.Poll{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return livepoll_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresPollRepository) GetOptionByID(ctx context.Context, id uuid.UUID) (poll.Option, error) {
	var o poll.Option
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return poll.Option{}, livepoll_errors.ErrNotFound
		}
		return poll.Option{}, err
	}
	return o, nil
}

func (r *PostgresPollRepository) GetVote(ctx context.Context, pollID, userID uuid.UUID) (poll.Vote, error) {
	var v poll.Vote
	err := r.db.WithContext(ctx).
		Where("poll_id = ? AND user_id = ?", pollID, userID).
		First(&v).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return poll.Vote{}, livepoll_errors.ErrNotFound
		}
		return poll.Vote{}, err
	}
	return v, nil
}

func (r *PostgresPollRepository) CreateVote(ctx context.Context, v *poll.Vote) error {
	res := r.db.WithContext(ctx).Create(v)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return livepoll_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresPollRepository) UpdateVoteOption(ctx context.Context, voteID, optionID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&poll.Vote{}).
		Where("id = ?", voteID).
		Updates(map[string]interface{}{
			"option_id":  optionID,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return livepoll_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresPollRepository) DeleteVote(ctx context.Context, pollID, userID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Delete(&poll.Vote{}, "poll_id = ? AND user_id = ?", pollID, userID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return livepoll_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresPollRepository) DeleteVotesByPoll(ctx context.Context, pollID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Delete(&poll.Vote{}, "poll_id = ?", pollID).Error
}

func (r *PostgresPollRepository) DeleteOptionsByPoll(ctx context.Context, pollID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Delete(&poll.Option{}, "poll_id = ?", pollID).Error
}

func (r *PostgresPollRepository) CountVotes(ctx context.Context, pollIDs []uuid.UUID) ([]poll.VoteCount, error) {
	if len(pollIDs) == 0 {
		return nil, nil
	}
	var counts []poll.VoteCount
	err := r.db.WithContext(ctx).
		Model(&poll.Vote{}).
		Select("poll_id, option_id, COUNT(*) as count").
		Where("poll_id IN ?", pollIDs).
		Group("poll_id, option_id").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}
