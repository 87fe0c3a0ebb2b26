package models

import (
	"time"

	"github.com/google/uuid"
)

// Account represents a platform account holder and the security state the
// authentication engine mutates: failed-attempt tracking, temporary lockout,
// risk classification, and review flagging.
type Account struct {
	ID            uuid.UUID
	Email         string
	PasswordHash  string
	Phone         *string
	IsActive      bool
	EmailVerified bool

	// Brute-force lockout state (persisted; the live counter store is
	// authoritative for "locked now", these fields survive restarts)
	FailedLoginAttempts int
	LockedUntil         *time.Time

	// Risk classification and the limits derived from it
	RiskLevel        RiskLevel
	DailyTxLimit     int64
	MonthlyTxLimit   int64
	RiskAssessedBy   *string
	RiskAssessedAt   *time.Time
	RiskNotes        *string
	FlaggedForReview bool
	FlagReason       *string
	FlaggedAt        *time.Time

	// Optional TOTP second factor (base32 secret, empty when not enrolled)
	TwoFactorSecret *string

	LastLoginAt        *time.Time
	LastLoginIP        *string
	LastLoginUserAgent *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsLockedOut reports whether the persisted lockout window is still open.
func (a *Account) IsLockedOut(now time.Time) bool {
	return a.LockedUntil != nil && a.LockedUntil.After(now)
}

// TwoFactorEnabled reports whether the account has a TOTP secret enrolled.
func (a *Account) TwoFactorEnabled() bool {
	return a.TwoFactorSecret != nil && *a.TwoFactorSecret != ""
}

// CanAuthenticate reports whether the account is in a state that permits
// login at all, independent of credentials.
func (a *Account) CanAuthenticate(now time.Time) bool {
	return a.IsActive && !a.IsLockedOut(now) && a.RiskLevel != RiskRestricted
}
