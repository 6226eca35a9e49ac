package identity

import (
	"errors"
	"time"
)

var (
	ErrUserExists   = errors.New("user already exists")
	ErrUserNotFound = errors.New("user not found")
	ErrTokenInvalid = errors.New("invalid or expired refresh token")
)

type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// RefreshToken is the opaque long-lived credential. It is stored server-side
// and rotated on every refresh.
type RefreshToken struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
}
