package repository

import (
	"context"
	"errors"
	"time"

	"livepoll/internal/domain/user"
	livepoll_errors "livepoll/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresUserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) Create(ctx context.Context, u *user.User) error {
	res := r.db.WithContext(ctx).Create(u)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return livepoll_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresUserRepository) GetUserByID(ctx context.Context, id uuid.UUID) (user.User, error) {
	var u user.User
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return user.User{}, livepoll_errors.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}

func (r *PostgresUserRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User
	err := r.db.WithContext(ctx).
		Where("email = ?", email).
		First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return user.User{}, livepoll_errors.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}

func (r *PostgresUserRepository) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	var u user.User
	err := r.db.WithContext(ctx).
		Where("username = ?", username).
		First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return user.User{}, livepoll_errors.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}

func (r *PostgresUserRepository) UpdateUser(ctx context.Context, u user.User) error {
	res := r.db.WithContext(ctx).Save(&u)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return livepoll_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresUserRepository) UpdatePasswordHash(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	res := r.db.WithContext(ctx).
		Model(&user.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"password_hash": passwordHash,
			"updated_at":    time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return livepoll_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresUserRepository) CreateSession(ctx context.Context, s *user.UserSession) error {
	res := r.db.WithContext(ctx).Create(s)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return livepoll_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresUserRepository) GetSessionByID(ctx context.Context, sessionID uuid.UUID) (user.UserSession, error) {
	var s user.UserSession
	err := r.db.WithContext(ctx).
		Where("id = ?", sessionID).
		First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return user.UserSession{}, livepoll_errors.ErrNotFound
		}
		return user.UserSession{}, err
	}
	return s, nil
}

func (r *PostgresUserRepository) GetSessionByTokenHash(ctx context.Context, tokenHash string) (user.UserSession, error) {
	var s user.UserSession
	err := r.db.WithContext(ctx).
		Where("refresh_token_hash = ?", tokenHash).
		First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return user.UserSession{}, livepoll_errors.ErrNotFound
		}
		return user.UserSession{}, err
	}
	return s, nil
}

func (r *PostgresUserRepository) GetUserSessions(ctx context.Context, userID uuid.UUID) ([]user.UserSession, error) {
	var sessions []user.UserSession
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_revoked = false AND expires_at > NOW()", userID).
		Order("created_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *PostgresUserRepository) RevokeSession(ctx context.Context, sessionID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&user.UserSession{}).
		Where("id = ?", sessionID).
		Update("is_revoked", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return livepoll_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresUserRepository) RevokeAllUserSessions(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&user.UserSession{}).
		Where("user_id = ? AND is_revoked = false", userID).
		Update("is_revoked", true).Error
}

func (r *PostgresUserRepository) RevokeOtherUserSessions(ctx context.Context, userID, keepSessionID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&user.UserSession{}).
		Where("user_id = ? AND id <> ? AND is_revoked = false", userID, keepSessionID).
		Update("is_revoked", true).Error
}

func (r *PostgresUserRepository) CleanExpiredSessions(ctx context.Context) error {
	return r.db.WithContext(ctx).
		Delete(&user.UserSession{}, "expires_at < NOW()").Error
}

func (r *PostgresUserRepository) CreateRecoveryToken(ctx context.Context, t *user.RecoveryToken) error {
	res := r.db.WithContext(ctx).Create(t)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return livepoll_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresUserRepository) GetRecoveryTokenByHash(ctx context.Context, tokenHash string) (user.RecoveryToken, error) {
	var t user.RecoveryToken
	err := r.db.WithContext(ctx).
		Where("token_hash = ?", tokenHash).
		First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return user.RecoveryToken{}, livepoll_errors.ErrNotFound
		}
		return user.RecoveryToken{}, err
	}
	return t, nil
}

func (r *PostgresUserRepository) ConsumeRecoveryToken(ctx context.Context, id uuid.UUID, consumedAt time.Time) error {
	// Guarded update so a token can only be consumed once even under
	// concurrent recovery attempts.
	res := r.db.WithContext(ctx).
		Model(&user.RecoveryToken{}).
		Where("id = ? AND consumed_at IS NULL", id).
		Update("consumed_at", consumedAt)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return livepoll_errors.ErrRecoveryExpired
	}
	return nil
}

func (r *PostgresUserRepository) InvalidateUserRecoveryTokens(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&user.RecoveryToken{}).
		Where("user_id = ? AND consumed_at IS NULL", userID).
		Update("consumed_at", time.Now()).Error
}
