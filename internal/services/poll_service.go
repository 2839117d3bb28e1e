package services

import (
	"context"
	"strings"
	"time"

	"livepoll/internal/domain/poll"
	"livepoll/internal/proxy"
	"livepoll/internal/repository"
	livepoll_errors "livepoll/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	TitleMaxLen  = 200
	OptionMaxLen = 100
	MinOptions   = 2
	MaxOptions   = 10
	DefaultLimit = 20
	MaxLimit     = 100
)

type PollService struct {
	db       *gorm.DB
	pollRepo repository.PollRepository
	access   *proxy.AccessControl
	events   *EventPublisher
}

// NewPollService wires the poll use-cases. db may be nil in tests, in
// which case operations run without transactional scope against the
// injected repository.
func NewPollService(db *gorm.DB, pollRepo repository.PollRepository, access *proxy.AccessControl, events *EventPublisher) *PollService {
	return &PollService{
		db:       db,
		pollRepo: pollRepo,
		access:   access,
		events:   events,
	}
}

type CreatePollInput struct {
	Title   string
	Options []string
}

type OptionView struct {
	ID       string  `json:"id"`
	Text     string  `json:"text"`
	Position int     `json:"position"`
	Votes    int64   `json:"votes"`
	Percent  float64 `json:"percent"`
}

type PollView struct {
	ID         string       `json:"id"`
	Title      string       `json:"title"`
	OwnerID    string       `json:"owner_id"`
	CreatedAt  time.Time    `json:"created_at"`
	TotalVotes int64        `json:"total_votes"`
	Options    []OptionView `json:"options"`
}

type PollListView struct {
	Polls []PollView `json:"polls"`
	Total int64      `json:"total"`
	Page  int        `json:"page"`
	Limit int        `json:"limit"`
}

// CreatePoll validates the input before any store call, then inserts
// the poll and its options in a single transaction together with the
// poll.created outbox event.
func (s *PollService) CreatePoll(ctx context.Context, ownerID uuid.UUID, in CreatePollInput) (PollView, error) {
	title, options, err := validateCreatePoll(in)
	if err != nil {
		return PollView{}, err
	}

	if s.access != nil {
		if err := s.access.CanCreatePoll(ctx, ownerID); err != nil {
			return PollView{}, err
		}
	}

	now := time.Now()
	p := poll.Poll{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	opts := make([]poll.Option, 0, len(options))
	for i, text := range options {
		opts = append(opts, poll.Option{
			ID:         uuid.New(),
			PollID:     p.ID,
			OptionText: text,
			Position:   i,
		})
	}

	err = s.inTx(ctx, func(tx *gorm.DB, repo repository.PollRepository) error {
		if err := repo.CreatePoll(ctx, &p); err != nil {
			return err
		}
		if err := repo.CreateOptions(ctx, opts); err != nil {
			return err
		}
		if s.events != nil {
			return s.events.PublishPollCreated(ctx, tx, p.ID, ownerID, title)
		}
		return nil
	})
	if err != nil {
		return PollView{}, err
	}

	p.Options = opts
	return buildPollView(p, nil), nil
}

// ListPolls returns polls newest-first with their options and
// re-derived tallies.
func (s *PollService) ListPolls(ctx context.Context, page, limit int) (PollListView, error) {
	if s.access != nil {
		if err := s.access.CanReadPolls(ctx); err != nil {
			return PollListView{}, err
		}
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	polls, total, err := s.pollRepo.ListPolls(ctx, page, limit)
	if err != nil {
		return PollListView{}, err
	}

	ids := make([]uuid.UUID, 0, len(polls))
	for _, p := range polls {
		ids = append(ids, p.ID)
	}
	counts, err := s.pollRepo.CountVotes(ctx, ids)
	if err != nil {
		return PollListView{}, err
	}

	views := make([]PollView, 0, len(polls))
	for _, p := range polls {
		views = append(views, buildPollView(p, counts))
	}

	return PollListView{
		Polls: views,
		Total: total,
		Page:  page,
		Limit: limit,
	}, nil
}

// GetPoll returns one poll with options and tallies.
func (s *PollService) GetPoll(ctx context.Context, id uuid.UUID) (PollView, error) {
	if s.access != nil {
		if err := s.access.CanReadPolls(ctx); err != nil {
			return PollView{}, err
		}
	}

	p, err := s.pollRepo.GetPollByID(ctx, id)
	if err != nil {
		return PollView{}, err
	}

	counts, err := s.pollRepo.CountVotes(ctx, []uuid.UUID{p.ID})
	if err != nil {
		return PollView{}, err
	}

	return buildPollView(p, counts), nil
}

// DeletePoll removes a poll with its options and votes. Owner-only.
// The dependent rows would fall to the schema's cascades anyway; the
// explicit deletes keep the store's row counts honest even when the
// cascade constraints are absent, and the transaction makes the three
// deletes atomic.
func (s *PollService) DeletePoll(ctx context.Context, actorID, pollID uuid.UUID) error {
	if s.access != nil {
		if err := s.access.CanManagePoll(ctx, actorID, pollID); err != nil {
			return err
		}
	}

	return s.inTx(ctx, func(tx *gorm.DB, repo repository.PollRepository) error {
		if err := repo.DeleteVotesByPoll(ctx, pollID); err != nil {
			return err
		}
		if err := repo.DeleteOptionsByPoll(ctx, pollID); err != nil {
			return err
		}
		if err := repo.DeletePoll(ctx, pollID); err != nil {
			return err
		}
		if s.events != nil {
			return s.events.PublishPollDeleted(ctx, tx, pollID, actorID)
		}
		return nil
	})
}

func (s *PollService) inTx(ctx context.Context, fn func(tx *gorm.DB, repo repository.PollRepository) error) error {
	if s.db == nil {
		return fn(nil, s.pollRepo)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(tx, repository.NewPollRepository(tx))
	})
}

func validateCreatePoll(in CreatePollInput) (string, []string, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" || len(title) > TitleMaxLen {
		return "", nil, livepoll_errors.ErrInvalidInput
	}

	if len(in.Options) < MinOptions || len(in.Options) > MaxOptions {
		return "", nil, livepoll_errors.ErrInvalidInput
	}

	options := make([]string, 0, len(in.Options))
	for _, raw := range in.Options {
		text := strings.TrimSpace(raw)
		if text == "" || len(text) > OptionMaxLen {
			return "", nil, livepoll_errors.ErrInvalidInput
		}
		options = append(options, text)
	}

	return title, options, nil
}

// buildPollView assembles the derived tallies for one poll. Counts are
// the grouped rows of the vote-count query; percentage is count/total
// on a 0-100 scale, 0 when the poll has no votes.
func buildPollView(p poll.Poll, counts []poll.VoteCount) PollView {
	byOption := make(map[uuid.UUID]int64)
	var total int64
	for _, c := range counts {
		if c.PollID != p.ID {
			continue
		}
		byOption[c.OptionID] = c.Count
		total += c.Count
	}

	options := make([]OptionView, 0, len(p.Options))
	for _, o := range p.Options {
		votes := byOption[o.ID]
		percent := 0.0
		if total > 0 {
			percent = float64(votes) / float64(total) * 100
		}
		options = append(options, OptionView{
			ID:       o.ID.String(),
			Text:     o.OptionText,
			Position: o.Position,
			Votes:    votes,
			Percent:  percent,
		})
	}

	return PollView{
		ID:         p.ID.String(),
		Title:      p.Title,
		OwnerID:    p.OwnerID.String(),
		CreatedAt:  p.CreatedAt,
		TotalVotes: total,
		Options:    options,
	}
}
