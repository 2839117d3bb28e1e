package user

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// User represents the users table
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	Email        string    `gorm:"type:citext;uniqueIndex;not null"`
	Username     string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	DisplayName  string
	IsActive     bool      `gorm:"default:true"`
	CreatedAt    time.Time `gorm:"default:now()"`
	UpdatedAt    time.Time `gorm:"default:now()"`

	// Relationships
	Sessions []UserSession `gorm:"constraint:OnDelete:CASCADE"`
}

// UserSession represents the user_sessions table. One row per issued
// refresh token; rotation revokes the old row and inserts a new one.
type UserSession struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	UserID           uuid.UUID `gorm:"type:uuid;not null;index"`
	RefreshTokenHash string    `gorm:"uniqueIndex;not null"`
	UserAgent        string
	ExpiresAt        time.Time `gorm:"not null"`
	IsRevoked        bool      `gorm:"default:false"`
	CreatedAt        time.Time `gorm:"default:now()"`
}

// RecoveryToken represents the recovery_tokens table. Single-use,
// short-lived tokens backing the password recovery flow. Only the
// SHA-256 hash of the token is stored.
type RecoveryToken struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;index"`
	TokenHash  string    `gorm:"uniqueIndex;not null"`
	ExpiresAt  time.Time `gorm:"not null"`
	ConsumedAt sql.NullTime
	CreatedAt  time.Time `gorm:"default:now()"`
}

func (User) TableName() string {
	return "users"
}

func (UserSession) TableName() string {
	return "user_sessions"
}

func (RecoveryToken) TableName() string {
	return "recovery_tokens"
}
