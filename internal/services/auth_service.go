package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"livepoll/config"
	"livepoll/internal/domain/user"
	"livepoll/internal/repository"
	livepoll_errors "livepoll/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	userRepo    repository.UserRepository
	events      *EventPublisher
	jwtSecret   []byte
	accessTTL   time.Duration
	refreshTTL  time.Duration
	recoveryTTL time.Duration
}

func NewAuthService(userRepo repository.UserRepository, events *EventPublisher, cfg *config.Config) *AuthService {
	return &AuthService{
		userRepo:    userRepo,
		events:      events,
		jwtSecret:   []byte(cfg.JWTSecret),
		accessTTL:   time.Duration(cfg.JWTExpiryMin) * time.Minute,
		refreshTTL:  time.Duration(cfg.RefreshExpiryDays) * 24 * time.Hour,
		recoveryTTL: time.Duration(cfg.RecoveryExpiryMin) * time.Minute,
	}
}

type RegisterInput struct {
	Email       string
	Username    string
	Password    string
	DisplayName string
}

type LoginInput struct {
	Identity string
	Password string
}

type RefreshInput struct {
	SessionID    string
	RefreshToken string
}

// RecoverInput carries the token pair from a password-recovery link.
type RecoverInput struct {
	AccessToken  string
	RefreshToken string
}

type AuthResponse struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token,omitempty"`
	ExpiresIn    int64    `json:"expires_in"`
	SessionID    string   `json:"session_id"`
	User         UserInfo `json:"user"`
}

// ForgotResponse is the recovery token pair minted by PasswordForgot.
// Handing it to the account owner is the mail system's concern.
type ForgotResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type UserInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Username    string `json:"username"`
	Email       string `json:"email"`
}

type SessionInfo struct {
	ID        string    `json:"id"`
	UserAgent string    `json:"user_agent,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	IsRevoked bool      `json:"is_revoked"`
}

// SessionProbe answers "who am I" for an authenticated caller.
type SessionProbe struct {
	Session SessionInfo `json:"session"`
	User    UserInfo    `json:"user"`
}

type AccessClaims struct {
	UserID    string `json:"sub"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (AuthResponse, error) {
	if err := validateRegister(in); err != nil {
		return AuthResponse{}, err
	}

	if err := s.ensureIdentityAvailable(ctx, in); err != nil {
		return AuthResponse{}, err
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return AuthResponse{}, err
	}

	displayName := in.DisplayName
	if displayName == "" {
		displayName = in.Username
	}

	newUser := &user.User{
		ID:           uuid.New(),
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: hash,
		DisplayName:  displayName,
		IsActive:     true,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	if err := s.userRepo.Create(ctx, newUser); err != nil {
		return AuthResponse{}, err
	}

	if s.events != nil {
		_ = s.events.PublishUserRegistered(ctx, nil, newUser.ID)
	}

	return s.issueSession(ctx, *newUser)
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (AuthResponse, error) {
	if err := validateLogin(in); err != nil {
		return AuthResponse{}, err
	}

	u, err := s.getUserByIdentity(ctx, in.Identity)
	if err != nil {
		if errors.Is(err, livepoll_errors.ErrNotFound) {
			return AuthResponse{}, livepoll_errors.ErrUnauthorized
		}
		return AuthResponse{}, err
	}

	if !u.IsActive {
		return AuthResponse{}, livepoll_errors.ErrForbidden
	}

	if err := comparePassword(u.PasswordHash, in.Password); err != nil {
		return AuthResponse{}, livepoll_errors.ErrUnauthorized
	}

	return s.issueSession(ctx, u)
}

func (s *AuthService) Refresh(ctx context.Context, in RefreshInput) (AuthResponse, error) {
	if in.SessionID == "" || in.RefreshToken == "" {
		return AuthResponse{}, livepoll_errors.ErrInvalidInput
	}

	sessionID, err := uuid.Parse(in.SessionID)
	if err != nil {
		return AuthResponse{}, livepoll_errors.ErrInvalidInput
	}

	session, err := s.userRepo.GetSessionByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, livepoll_errors.ErrNotFound) {
			return AuthResponse{}, livepoll_errors.ErrUnauthorized
		}
		return AuthResponse{}, err
	}

	if session.IsRevoked || time.Now().After(session.ExpiresAt) {
		return AuthResponse{}, livepoll_errors.ErrUnauthorized
	}

	if !s.compareRefreshToken(session.RefreshTokenHash, in.RefreshToken) {
		// A mismatched token against a live session is a reuse signal;
		// kill the session rather than leave it open.
		_ = s.userRepo.RevokeSession(ctx, session.ID)
		return AuthResponse{}, livepoll_errors.ErrUnauthorized
	}

	u, err := s.userRepo.GetUserByID(ctx, session.UserID)
	if err != nil {
		return AuthResponse{}, err
	}
	if !u.IsActive {
		return AuthResponse{}, livepoll_errors.ErrForbidden
	}

	// Rotation: the old session row is revoked and a fresh one issued.
	if err := s.userRepo.RevokeSession(ctx, session.ID); err != nil {
		return AuthResponse{}, err
	}

	return s.issueSession(ctx, u)
}

func (s *AuthService) Logout(ctx context.Context, sessionID uuid.UUID) error {
	if sessionID == uuid.Nil {
		return livepoll_errors.ErrInvalidInput
	}
	return s.userRepo.RevokeSession(ctx, sessionID)
}

func (s *AuthService) LogoutAll(ctx context.Context, userID uuid.UUID) error {
	if err := s.userRepo.RevokeAllUserSessions(ctx, userID); err != nil {
		return err
	}
	if s.events != nil {
		_ = s.events.PublishLoggedOutAll(ctx, nil, userID)
	}
	return nil
}

// Session is the initial probe of an authenticated caller's lifecycle:
// it resolves the current session and its user in one call.
func (s *AuthService) Session(ctx context.Context, userID, sessionID uuid.UUID) (SessionProbe, error) {
	session, err := s.ValidateSession(ctx, sessionID, userID)
	if err != nil {
		return SessionProbe{}, err
	}

	u, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return SessionProbe{}, err
	}

	return SessionProbe{
		Session: toSessionInfo(session),
		User:    toUserInfo(u),
	}, nil
}

func (s *AuthService) Sessions(ctx context.Context, userID uuid.UUID) ([]SessionInfo, error) {
	sessions, err := s.userRepo.GetUserSessions(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := make([]SessionInfo, 0, len(sessions))
	for _, session := range sessions {
		result = append(result, toSessionInfo(session))
	}

	return result, nil
}

// PasswordForgot mints a single-use recovery token pair for the given
// identity. Unknown identities succeed with an empty response so the
// endpoint does not confirm which accounts exist.
func (s *AuthService) PasswordForgot(ctx context.Context, identity string) (ForgotResponse, error) {
	if identity == "" {
		return ForgotResponse{}, livepoll_errors.ErrInvalidInput
	}

	u, err := s.getUserByIdentity(ctx, identity)
	if err != nil {
		if errors.Is(err, livepoll_errors.ErrNotFound) {
			return ForgotResponse{}, nil
		}
		return ForgotResponse{}, err
	}

	// Any earlier outstanding link dies when a new one is requested.
	if err := s.userRepo.InvalidateUserRecoveryTokens(ctx, u.ID); err != nil {
		return ForgotResponse{}, err
	}

	accessPart, err := generateToken(32)
	if err != nil {
		return ForgotResponse{}, err
	}
	refreshPart, err := generateToken(32)
	if err != nil {
		return ForgotResponse{}, err
	}

	expiresAt := time.Now().Add(s.recoveryTTL)
	token := &user.RecoveryToken{
		ID:        uuid.New(),
		UserID:    u.ID,
		TokenHash: hashRecoveryPair(accessPart, refreshPart),
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
	if err := s.userRepo.CreateRecoveryToken(ctx, token); err != nil {
		return ForgotResponse{}, err
	}

	return ForgotResponse{
		AccessToken:  accessPart,
		RefreshToken: refreshPart,
		ExpiresAt:    expiresAt,
	}, nil
}

// PasswordRecover exchanges a recovery token pair for a live session.
// A missing, unknown, expired, or already-consumed pair yields
// ErrRecoveryExpired and no session is created.
func (s *AuthService) PasswordRecover(ctx context.Context, in RecoverInput) (AuthResponse, error) {
	if in.AccessToken == "" || in.RefreshToken == "" {
		return AuthResponse{}, livepoll_errors.ErrRecoveryExpired
	}

	token, err := s.userRepo.GetRecoveryTokenByHash(ctx, hashRecoveryPair(in.AccessToken, in.RefreshToken))
	if err != nil {
		if errors.Is(err, livepoll_errors.ErrNotFound) {
			return AuthResponse{}, livepoll_errors.ErrRecoveryExpired
		}
		return AuthResponse{}, err
	}

	if token.ConsumedAt.Valid || time.Now().After(token.ExpiresAt) {
		return AuthResponse{}, livepoll_errors.ErrRecoveryExpired
	}

	if err := s.userRepo.ConsumeRecoveryToken(ctx, token.ID, time.Now()); err != nil {
		return AuthResponse{}, err
	}

	u, err := s.userRepo.GetUserByID(ctx, token.UserID)
	if err != nil {
		return AuthResponse{}, err
	}
	if !u.IsActive {
		return AuthResponse{}, livepoll_errors.ErrForbidden
	}

	return s.issueSession(ctx, u)
}

// UpdatePassword changes the caller's password, keeps the current
// session alive, and revokes every other session and outstanding
// recovery link.
func (s *AuthService) UpdatePassword(ctx context.Context, userID, sessionID uuid.UUID, newPassword string) error {
	if len(newPassword) < 8 {
		return livepoll_errors.ErrInvalidInput
	}

	hash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}

	if err := s.userRepo.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return err
	}

	if err := s.userRepo.RevokeOtherUserSessions(ctx, userID, sessionID); err != nil {
		return err
	}
	if err := s.userRepo.InvalidateUserRecoveryTokens(ctx, userID); err != nil {
		return err
	}

	if s.events != nil {
		_ = s.events.PublishPasswordChanged(ctx, nil, userID)
	}

	return nil
}

func (s *AuthService) ParseAccessToken(tokenString string) (AccessClaims, error) {
	if tokenString == "" {
		return AccessClaims{}, livepoll_errors.ErrUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, livepoll_errors.ErrUnauthorized
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return AccessClaims{}, livepoll_errors.ErrUnauthorized
	}

	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok || !parsed.Valid {
		return AccessClaims{}, livepoll_errors.ErrUnauthorized
	}

	return *claims, nil
}

func (s *AuthService) ValidateSession(ctx context.Context, sessionID uuid.UUID, userID uuid.UUID) (user.UserSession, error) {
	session, err := s.userRepo.GetSessionByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, livepoll_errors.ErrNotFound) {
			return user.UserSession{}, livepoll_errors.ErrUnauthorized
		}
		return user.UserSession{}, err
	}
	if session.UserID != userID {
		return user.UserSession{}, livepoll_errors.ErrUnauthorized
	}
	if session.IsRevoked || time.Now().After(session.ExpiresAt) {
		return user.UserSession{}, livepoll_errors.ErrUnauthorized
	}
	return session, nil
}

func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, livepoll_errors.ErrInvalidInput):
		return 400
	case errors.Is(err, livepoll_errors.ErrRecoveryExpired):
		return 401
	case errors.Is(err, livepoll_errors.ErrUnauthorized):
		return 401
	case errors.Is(err, livepoll_errors.ErrForbidden):
		return 403
	case errors.Is(err, livepoll_errors.ErrNotFound):
		return 404
	case errors.Is(err, livepoll_errors.ErrAlreadyExists), errors.Is(err, livepoll_errors.ErrConflict):
		return 409
	case errors.Is(err, livepoll_errors.ErrRateLimited):
		return 429
	case errors.Is(err, livepoll_errors.ErrServiceUnavailable):
		return 503
	default:
		return 500
	}
}

// ErrorCode maps a sentinel error to the stable machine-readable code
// surfaced in error responses.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, livepoll_errors.ErrRecoveryExpired):
		return "OTP_EXPIRED"
	case errors.Is(err, livepoll_errors.ErrInvalidInput):
		return "INVALID_INPUT"
	case errors.Is(err, livepoll_errors.ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, livepoll_errors.ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, livepoll_errors.ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, livepoll_errors.ErrAlreadyExists):
		return "ALREADY_EXISTS"
	case errors.Is(err, livepoll_errors.ErrConflict):
		return "CONFLICT"
	case errors.Is(err, livepoll_errors.ErrRateLimited):
		return "RATE_LIMITED"
	case errors.Is(err, livepoll_errors.ErrServiceUnavailable):
		return "UNAVAILABLE"
	default:
		return "INTERNAL"
	}
}

type ctxKey string

var userIDKey ctxKey = "user_id"
var sessionIDKey ctxKey = "session_id"

func WithUserSessionContext(ctx context.Context, userID, sessionID uuid.UUID) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	ctx = context.WithValue(ctx, sessionIDKey, sessionID)
	return ctx
}

func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	value := ctx.Value(userIDKey)
	if value == nil {
		return uuid.Nil, false
	}
	userID, ok := value.(uuid.UUID)
	return userID, ok
}

func SessionIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	value := ctx.Value(sessionIDKey)
	if value == nil {
		return uuid.Nil, false
	}
	sessionID, ok := value.(uuid.UUID)
	return sessionID, ok
}

// issueSession creates a session row, a rotated refresh token, and a
// signed access token for the given user.
func (s *AuthService) issueSession(ctx context.Context, u user.User) (AuthResponse, error) {
	refreshToken, err := generateToken(32)
	if err != nil {
		return AuthResponse{}, err
	}

	createdAt := time.Now()
	session := &user.UserSession{
		ID:               uuid.New(),
		UserID:           u.ID,
		RefreshTokenHash: s.hashRefreshToken(refreshToken),
		ExpiresAt:        createdAt.Add(s.refreshTTL),
		CreatedAt:        createdAt,
	}

	if err := s.userRepo.CreateSession(ctx, session); err != nil {
		return AuthResponse{}, err
	}

	accessToken, expiresIn, err := s.newAccessToken(u.ID, session.ID)
	if err != nil {
		return AuthResponse{}, err
	}

	return AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    expiresIn,
		SessionID:    session.ID.String(),
		User:         toUserInfo(u),
	}, nil
}

func (s *AuthService) ensureIdentityAvailable(ctx context.Context, in RegisterInput) error {
	if _, err := s.userRepo.GetUserByEmail(ctx, in.Email); err == nil {
		return livepoll_errors.ErrAlreadyExists
	} else if !errors.Is(err, livepoll_errors.ErrNotFound) {
		return err
	}

	if _, err := s.userRepo.GetUserByUsername(ctx, in.Username); err == nil {
		return livepoll_errors.ErrAlreadyExists
	} else if !errors.Is(err, livepoll_errors.ErrNotFound) {
		return err
	}

	return nil
}

func (s *AuthService) getUserByIdentity(ctx context.Context, identity string) (user.User, error) {
	if identity == "" {
		return user.User{}, livepoll_errors.ErrInvalidInput
	}

	if strings.Contains(identity, "@") {
		u, err := s.userRepo.GetUserByEmail(ctx, identity)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, livepoll_errors.ErrNotFound) {
			return user.User{}, err
		}
	}

	u, err := s.userRepo.GetUserByUsername(ctx, identity)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, livepoll_errors.ErrNotFound) {
		return user.User{}, err
	}

	return user.User{}, livepoll_errors.ErrNotFound
}

func (s *AuthService) newAccessToken(userID, sessionID uuid.UUID) (string, int64, error) {
	now := time.Now()
	expiresAt := now.Add(s.accessTTL)

	claims := AccessClaims{
		UserID:    userID.String(),
		SessionID: sessionID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", 0, err
	}

	return signed, int64(s.accessTTL.Seconds()), nil
}

func (s *AuthService) hashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *AuthService) compareRefreshToken(hash, token string) bool {
	computed := s.hashRefreshToken(token)
	return subtle.ConstantTimeCompare([]byte(hash), []byte(computed)) == 1
}

// hashRecoveryPair binds both halves of the recovery pair into the
// stored digest so neither half alone can be replayed.
func hashRecoveryPair(accessPart, refreshPart string) string {
	sum := sha256.Sum256([]byte(accessPart + "." + refreshPart))
	return hex.EncodeToString(sum[:])
}

func validateRegister(in RegisterInput) error {
	if in.Email == "" || in.Username == "" || in.Password == "" {
		return livepoll_errors.ErrInvalidInput
	}
	if !strings.Contains(in.Email, "@") {
		return livepoll_errors.ErrInvalidInput
	}
	if len(in.Password) < 8 {
		return livepoll_errors.ErrInvalidInput
	}
	return nil
}

func validateLogin(in LoginInput) error {
	if in.Identity == "" || in.Password == "" {
		return livepoll_errors.ErrInvalidInput
	}
	return nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func comparePassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

func generateToken(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func toUserInfo(u user.User) UserInfo {
	return UserInfo{
		ID:          u.ID.String(),
		DisplayName: u.DisplayName,
		Username:    u.Username,
		Email:       u.Email,
	}
}

func toSessionInfo(s user.UserSession) SessionInfo {
	return SessionInfo{
		ID:        s.ID.String(),
		UserAgent: s.UserAgent,
		ExpiresAt: s.ExpiresAt,
		CreatedAt: s.CreatedAt,
		IsRevoked: s.IsRevoked,
	}
}
