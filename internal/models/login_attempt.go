package models

import (
	"time"

	"github.com/google/uuid"
)

// Failure reasons recorded on login attempts
const (
	FailureReasonInvalidInput     = "invalid_input"
	FailureReasonUnknownAccount   = "unknown_account"
	FailureReasonBadPassword      = "bad_password"
	FailureReasonBadTOTP          = "bad_totp_code"
	FailureReasonAccountInactive  = "account_inactive"
	FailureReasonAccountLocked    = "account_locked"
	FailureReasonRiskRestricted   = "risk_restricted"
)

// LoginAttempt is an immutable audit record of a single authentication
// attempt. Records are created once and never mutated; retention is handled
// by the cleanup worker via ExpiresAt.
type LoginAttempt struct {
	ID            uuid.UUID
	AccountID     *uuid.UUID // nil when the email is unknown
	Email         *string
	IPAddress     string
	UserAgent     string
	DeviceSummary string // parsed browser/OS summary, for forensics
	Reason        string
	AttemptNumber int // sequence number within the tracking window
	Success       bool
	CreatedBy     string // actor attribution, "system" for the engine
	CreatedAt     time.Time
	ExpiresAt     time.Time
}
