package services

import (
	"context"
	"errors"
	"time"

	"livepoll/internal/domain/poll"
	"livepoll/internal/proxy"
	"livepoll/internal/repository"
	livepoll_errors "livepoll/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type VoteService struct {
	db       *gorm.DB
	pollRepo repository.PollRepository
	access   *proxy.AccessControl
	events   *EventPublisher
}

func NewVoteService(db *gorm.DB, pollRepo repository.PollRepository, access *proxy.AccessControl, events *EventPublisher) *VoteService {
	return &VoteService{
		db:       db,
		pollRepo: pollRepo,
		access:   access,
		events:   events,
	}
}

// CastVote records the user's choice in the poll: first vote inserts a
// row, a later vote updates the row's option in place. The lookup and
// the insert are a check-then-act sequence, so two concurrent first
// votes can both see "no existing row"; the unique (poll_id, user_id)
// constraint rejects the loser's insert and the cast is retried once
// as an update against the winner's row.
func (s *VoteService) CastVote(ctx context.Context, userID, pollID, optionID uuid.UUID) error {
	if s.access != nil {
		if err := s.access.CanVote(ctx, userID, userID, pollID); err != nil {
			return err
		}
	}

	opt, err := s.pollRepo.GetOptionByID(ctx, optionID)
	if err != nil {
		if errors.Is(err, livepoll_errors.ErrNotFound) {
			return livepoll_errors.ErrInvalidInput
		}
		return err
	}
	if opt.PollID != pollID {
		return livepoll_errors.ErrInvalidInput
	}

	err = s.castOnce(ctx, userID, pollID, optionID)
	if errors.Is(err, livepoll_errors.ErrAlreadyExists) {
		// Lost the first-vote race; the row exists now, so a second
		// pass takes the update path.
		err = s.castOnce(ctx, userID, pollID, optionID)
		if errors.Is(err, livepoll_errors.ErrAlreadyExists) {
			return livepoll_errors.ErrConflict
		}
	}
	return err
}

// RetractVote deletes the user's own vote row. Retracting a vote that
// was never cast reports not-found.
func (s *VoteService) RetractVote(ctx context.Context, userID, pollID uuid.UUID) error {
	if s.access != nil {
		if err := s.access.CanVote(ctx, userID, userID, pollID); err != nil {
			return err
		}
	}

	return s.inTx(ctx, func(tx *gorm.DB, repo repository.PollRepository) error {
		if err := repo.DeleteVote(ctx, pollID, userID); err != nil {
			return err
		}
		if s.events != nil {
			return s.events.PublishVoteRetracted(ctx, tx, pollID, userID)
		}
		return nil
	})
}

// castOnce runs one check-then-act attempt in its own transaction.
// A lost insert race surfaces as ErrAlreadyExists after the whole
// attempt rolls back, leaving the retry to a fresh transaction.
func (s *VoteService) castOnce(ctx context.Context, userID, pollID, optionID uuid.UUID) error {
	return s.inTx(ctx, func(tx *gorm.DB, repo repository.PollRepository) error {
		existing, err := repo.GetVote(ctx, pollID, userID)
		if err == nil {
			if existing.OptionID == optionID {
				// Same choice again; nothing to change or announce.
				return nil
			}
			if err := repo.UpdateVoteOption(ctx, existing.ID, optionID); err != nil {
				return err
			}
			if s.events != nil {
				return s.events.PublishPollVoted(ctx, tx, pollID, optionID, userID, true)
			}
			return nil
		}
		if !errors.Is(err, livepoll_errors.ErrNotFound) {
			return err
		}

		now := time.Now()
		v := &poll.Vote{
			ID:        uuid.New(),
			PollID:    pollID,
			UserID:    userID,
			OptionID:  optionID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := repo.CreateVote(ctx, v); err != nil {
			return err
		}
		if s.events != nil {
			return s.events.PublishPollVoted(ctx, tx, pollID, optionID, userID, false)
		}
		return nil
	})
}

func (s *VoteService) inTx(ctx context.Context, fn func(tx *gorm.DB, repo repository.PollRepository) error) error {
	if s.db == nil {
		return fn(nil, s.pollRepo)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(tx, repository.NewPollRepository(tx))
	})
}
