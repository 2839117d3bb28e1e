package poll

import (
	"time"

	"github.com/google/uuid"
)

// Poll represents the polls table
type Poll struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	OwnerID   uuid.UUID `gorm:"type:uuid;not null;index"`
	Title     string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"default:now();index:idx_polls_created_at,sort:desc"`
	UpdatedAt time.Time `gorm:"default:now()"`

	// Relationships
	Options []Option `gorm:"constraint:OnDelete:CASCADE"`
}

// Option represents the poll_options table
type Option struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	PollID     uuid.UUID `gorm:"type:uuid;not null;index"`
	OptionText string    `gorm:"not null"`
	Position   int       `gorm:"not null;default:0"`
}

// Vote represents the votes table. The composite unique index on
// (poll_id, user_id) is the authoritative one-vote-per-user guarantee;
// callers racing on first vote rely on it, not on application checks.
type Vote struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	PollID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_votes_poll_user"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_votes_poll_user"`
	OptionID  uuid.UUID `gorm:"type:uuid;not null;index"`
	CreatedAt time.Time `gorm:"default:now()"`
	UpdatedAt time.Time `gorm:"default:now()"`
}

// VoteCount is one row of the grouped vote-count query. Derived,
// never persisted; tallies are recomputed on every read.
type VoteCount struct {
	PollID   uuid.UUID
	OptionID uuid.UUID
	Count    int64
}

func (Poll) TableName() string {
	return "polls"
}

func (Option) TableName() string {
	return "poll_options"
}

func (Vote) TableName() string {
	return "votes"
}
