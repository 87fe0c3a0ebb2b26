package models

import (
	"time"

	"github.com/google/uuid"
)

// EmailVerificationToken represents a pending email verification.
// Only the SHA-256 hash of the token is stored.
type EmailVerificationToken struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	TokenHash string
	Email     string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// IsExpired reports whether the token is past its expiry.
func (t *EmailVerificationToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

// IsUsed reports whether the token was already consumed.
func (t *EmailVerificationToken) IsUsed() bool {
	return t.UsedAt != nil
}
