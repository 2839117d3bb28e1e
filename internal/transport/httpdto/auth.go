package httpdto

// RegisterRequest is used for POST /v1/auth/register
type RegisterRequest struct {
	Email       string `json:"email" binding:"required"`
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"display_name,omitempty"`
}

// LoginRequest is used for POST /v1/auth/login
type LoginRequest struct {
	Identity string `json:"identity" binding:"required"` // email or username
	Password string `json:"password" binding:"required"`
}

// RefreshRequest is used for POST /v1/auth/refresh
type RefreshRequest struct {
	SessionID    string `json:"session_id" binding:"required"`
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// AuthResponse is returned by register, login, refresh, and recover.
type AuthResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token,omitempty"`
	ExpiresIn    int64       `json:"expires_in"`
	SessionID    string      `json:"session_id"`
	User         AuthUserDTO `json:"user"`
}

// AuthUserDTO represents the authenticated user in API responses
type AuthUserDTO struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Username    string `json:"username"`
	Email       string `json:"email"`
}

// PasswordForgotRequest is used for POST /v1/auth/password/forgot
type PasswordForgotRequest struct {
	Identity string `json:"identity" binding:"required"`
}

// PasswordRecoverRequest carries the token pair from a recovery link.
// Used for POST /v1/auth/password/recover.
type PasswordRecoverRequest struct {
	AccessToken  string `json:"access_token" binding:"required"`
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// PasswordUpdateRequest is used for POST /v1/auth/password/update
type PasswordUpdateRequest struct {
	NewPassword string `json:"new_password" binding:"required"`
}

// SessionsResponse is returned when listing sessions
type SessionsResponse struct {
	Sessions []SessionDTO `json:"sessions"`
}

// SessionDTO represents a user session in API responses
type SessionDTO struct {
	ID        string `json:"id"`
	UserAgent string `json:"user_agent,omitempty"`
	ExpiresAt string `json:"expires_at"`
	CreatedAt string `json:"created_at"`
	IsCurrent bool   `json:"is_current,omitempty"`
}
