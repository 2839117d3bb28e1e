package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"livepoll/internal/domain/event"
	"livepoll/internal/domain/poll"
	"livepoll/internal/domain/user"
)

type UserRepository interface {
	Create(ctx context.Context, u *user.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
	GetUserByUsername(ctx context.Context, username string) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) error
	UpdatePasswordHash(ctx context.Context, userID uuid.UUID, passwordHash string) error

	CreateSession(ctx context.Context, s *user.UserSession) error
	GetSessionByID(ctx context.Context, sessionID uuid.UUID) (user.UserSession, error)
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (user.UserSession, error)
	GetUserSessions(ctx context.Context, userID uuid.UUID) ([]user.UserSession, error)
	RevokeSession(ctx context.Context, sessionID uuid.UUID) error
	RevokeAllUserSessions(ctx context.Context, userID uuid.UUID) error
	RevokeOtherUserSessions(ctx context.Context, userID, keepSessionID uuid.UUID) error
	CleanExpiredSessions(ctx context.Context) error

	CreateRecoveryToken(ctx context.Context, t *user.RecoveryToken) error
	GetRecoveryTokenByHash(ctx context.Context, tokenHash string) (user.RecoveryToken, error)
	ConsumeRecoveryToken(ctx context.Context, id uuid.UUID, consumedAt time.Time) error
	InvalidateUserRecoveryTokens(ctx context.Context, userID uuid.UUID) error
}

type PollRepository interface {
	CreatePoll(ctx context.Context, p *poll.Poll) error
	CreateOptions(ctx context.Context, opts []poll.Option) error
	GetPollByID(ctx context.Context, id uuid.UUID) (poll.Poll, error)
	ListPolls(ctx context.Context, page, limit int) ([]poll.Poll, int64, error)
	DeletePoll(ctx context.Context, id uuid.UUID) error

	GetOptionByID(ctx context.Context, id uuid.UUID) (poll.Option, error)

	GetVote(ctx context.Context, pollID, userID uuid.UUID) (poll.Vote, error)
	CreateVote(ctx context.Context, v *poll.Vote) error
	UpdateVoteOption(ctx context.Context, voteID, optionID uuid.UUID) error
	DeleteVote(ctx context.Context, pollID, userID uuid.UUID) error
	DeleteVotesByPoll(ctx context.Context, pollID uuid.UUID) error
	DeleteOptionsByPoll(ctx context.Context, pollID uuid.UUID) error

	CountVotes(ctx context.Context, pollIDs []uuid.UUID) ([]poll.VoteCount, error)
}

type EventRepository interface {
	CreateOutboxEvent(ctx context.Context, e *event.OutboxEvent) error
	GetOutboxEventByID(ctx context.Context, id uuid.UUID) (event.OutboxEvent, error)
	GetPendingOutboxEvents(ctx context.Context, limit int) ([]event.OutboxEvent, error)
	MarkOutboxEventProcessed(ctx context.Context, id uuid.UUID) error
	MarkOutboxEventFailed(ctx context.Context, id uuid.UUID, nextRetryAt time.Time, errorMessage string) error
}

// Repositories bundles the postgres implementations over one gorm handle.
// Services that need transactional scope call WithTx inside db.Transaction.
type Repositories struct {
	Users  UserRepository
	Polls  PollRepository
	Events EventRepository
}

func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Users:  NewUserRepository(db),
		Polls:  NewPollRepository(db),
		Events: NewEventRepository(db),
	}
}

// WithTx returns a bundle bound to the given transaction handle.
func (r *Repositories) WithTx(tx *gorm.DB) *Repositories {
	return NewRepositories(tx)
}
