package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fintrust/identity/internal/cache"
	"github.com/fintrust/identity/internal/metrics"
	"github.com/fintrust/identity/internal/models"
	"github.com/fintrust/identity/internal/repositories"
	"github.com/fintrust/identity/pkg/logger"
	"github.com/google/uuid"
	"github.com/mssola/useragent"
)

// BruteForceAccountRepository defines the account operations the guard needs
type BruteForceAccountRepository interface {
	RecordFailedLogin(ctx context.Context, email string, threshold int, lockedUntil time.Time) (*models.Account, error)
	ResetFailedLogins(ctx context.Context, email string) error
}

// BruteForceAttemptRepository defines the audit-trail operations the guard needs
type BruteForceAttemptRepository interface {
	Record(ctx context.Context, attempt *models.LoginAttempt) error
	CountFailuresByEmail(ctx context.Context, email string, since time.Time) (int, error)
	CountFailuresByIP(ctx context.Context, ip string, since time.Time) (int, error)
}

// RiskEscalator raises an account's risk classification, never lowering it
type RiskEscalator interface {
	EscalateTo(ctx context.Context, accountID uuid.UUID, floor models.RiskLevel, by string, notes string) error
}

// BruteForceConfig holds the guard's thresholds
type BruteForceConfig struct {
	Enabled          bool
	MaxFailedAttempts int
	LockoutDuration  time.Duration
	AttemptRetention time.Duration
}

// BruteForceService tracks failed logins per account identity and locks the
// identity out once the threshold is reached. The live counter decides
// "locked right now"; the persisted audit trail holds the history.
type BruteForceService struct {
	store    cache.CounterStore
	accounts BruteForceAccountRepository
	attempts BruteForceAttemptRepository
	risk     RiskEscalator
	audit    *logger.AuditLogger
	config   BruteForceConfig
	logger   *slog.Logger
}

// NewBruteForceService creates a new BruteForceService
func NewBruteForceService(
	store cache.CounterStore,
	accounts BruteForceAccountRepository,
	attempts BruteForceAttemptRepository,
	risk RiskEscalator,
	audit *logger.AuditLogger,
	config BruteForceConfig,
	log *slog.Logger,
) *BruteForceService {
	return &BruteForceService{
		store:    store,
		accounts: accounts,
		attempts: attempts,
		risk:     risk,
		audit:    audit,
		config:   config,
		logger:   log,
	}
}

// IsLocked reports whether the identity is currently locked out. A counter
// read failure counts as locked: when the tracking state is unavailable the
// guard refuses rather than waving attackers through.
func (s *BruteForceService) IsLocked(ctx context.Context, identity string) bool {
	if !s.config.Enabled {
		return false
	}

	key := cache.FailedAttemptsKey(repositories.NormalizeEmail(identity))
	count, err := s.store.Count(ctx, key)
	if err != nil {
		s.logger.Error("failed-attempt counter read failed, treating identity as locked",
			slog.String("email", logger.SanitizedEmail(identity)),
			slog.Any("error", err))
		return true
	}
	return count >= s.config.MaxFailedAttempts
}

// RecordFailure registers a failed attempt against the identity: it bumps the
// live counter, appends an audit record carrying the new sequence number, and
// updates the persisted account state when the identity matches one. Audit
// and account write failures are logged and swallowed so the attempt outcome
// already decided for the caller is not disturbed.
func (s *BruteForceService) RecordFailure(ctx context.Context, identity, ip, userAgent, reason string) (int, error) {
	normalized := repositories.NormalizeEmail(identity)

	if !s.config.Enabled {
		s.recordAttempt(ctx, nil, normalized, ip, userAgent, reason, 0)
		return 0, nil
	}

	attemptNumber, err := s.store.Increment(ctx, cache.FailedAttemptsKey(normalized), s.config.LockoutDuration)
	if err != nil {
		s.recordAttempt(ctx, nil, normalized, ip, userAgent, reason, 0)
		return 0, fmt.Errorf("failed to increment failed-attempt counter: %w", err)
	}

	account := s.updateAccountState(ctx, normalized, ip, userAgent)

	var accountID *uuid.UUID
	if account != nil {
		accountID = &account.ID
	}
	s.recordAttempt(ctx, accountID, normalized, ip, userAgent, reason, attemptNumber)

	return attemptNumber, nil
}

// updateAccountState mirrors the failure onto the persisted account row and
// handles the side effects of crossing the threshold. Returns nil when no
// account exists for the identity.
func (s *BruteForceService) updateAccountState(ctx context.Context, normalized, ip, userAgent string) *models.Account {
	lockedUntil := time.Now().Add(s.config.LockoutDuration)
	account, err := s.accounts.RecordFailedLogin(ctx, normalized, s.config.MaxFailedAttempts, lockedUntil)
	if err != nil {
		if err != models.ErrNotFound {
			s.logger.Error("failed to persist failed-login count",
				slog.String("email", logger.SanitizedEmail(normalized)),
				slog.Any("error", err))
		}
		return nil
	}

	if account.FailedLoginAttempts == s.config.MaxFailedAttempts {
		metrics.Lockouts.Inc()
		s.audit.LogAuthAttempt(logger.AuditEvent{
			EventType:     "account_locked",
			AccountID:     account.ID.String(),
			IPAddress:     ip,
			UserAgent:     userAgent,
			Success:       false,
			FailureReason: fmt.Sprintf("locked after %d failed attempts", account.FailedLoginAttempts),
		})

		notes := fmt.Sprintf("automatic escalation: account locked after %d failed login attempts", account.FailedLoginAttempts)
		if err := s.risk.EscalateTo(ctx, account.ID, models.RiskMedium, "system", notes); err != nil {
			s.logger.Error("failed to escalate risk after lockout",
				slog.String("account_id", account.ID.String()),
				slog.Any("error", err))
		}
	}

	return account
}

func (s *BruteForceService) recordAttempt(ctx context.Context, accountID *uuid.UUID, normalized, ip, userAgent, reason string, attemptNumber int) {
	email := normalized
	attempt := &models.LoginAttempt{
		AccountID:     accountID,
		Email:         &email,
		IPAddress:     ip,
		UserAgent:     userAgent,
		DeviceSummary: SummarizeDevice(userAgent),
		Reason:        reason,
		AttemptNumber: attemptNumber,
		Success:       false,
		CreatedBy:     "system",
		ExpiresAt:     time.Now().Add(s.config.AttemptRetention),
	}

	if err := s.attempts.Record(ctx, attempt); err != nil {
		s.logger.Error("failed to record login attempt",
			slog.String("email", logger.SanitizedEmail(normalized)),
			slog.Any("error", err))
	}
}

// RecordSuccess appends a successful attempt to the audit trail.
func (s *BruteForceService) RecordSuccess(ctx context.Context, accountID uuid.UUID, identity, ip, userAgent string) {
	normalized := repositories.NormalizeEmail(identity)
	attempt := &models.LoginAttempt{
		AccountID:     &accountID,
		Email:         &normalized,
		IPAddress:     ip,
		UserAgent:     userAgent,
		DeviceSummary: SummarizeDevice(userAgent),
		Success:       true,
		CreatedBy:     "system",
		ExpiresAt:     time.Now().Add(s.config.AttemptRetention),
	}

	if err := s.attempts.Record(ctx, attempt); err != nil {
		s.logger.Error("failed to record successful login attempt",
			slog.String("email", logger.SanitizedEmail(normalized)),
			slog.Any("error", err))
	}
}

// Reset clears the live counter and the persisted count and lockout together
// after a successful authentication.
func (s *BruteForceService) Reset(ctx context.Context, identity string) error {
	normalized := repositories.NormalizeEmail(identity)

	if err := s.store.Reset(ctx, cache.FailedAttemptsKey(normalized)); err != nil {
		return fmt.Errorf("failed to reset failed-attempt counter: %w", err)
	}

	if err := s.accounts.ResetFailedLogins(ctx, normalized); err != nil && err != models.ErrNotFound {
		return fmt.Errorf("failed to reset persisted failed-login state: %w", err)
	}
	return nil
}

// CountRecentFailures reports failures for the identity from the audit trail.
// Independent of the live counter: the trail keeps history past counter expiry.
func (s *BruteForceService) CountRecentFailures(ctx context.Context, identity string, window time.Duration) (int, error) {
	return s.attempts.CountFailuresByEmail(ctx, repositories.NormalizeEmail(identity), time.Now().Add(-window))
}

// IsSourceBlocked reports whether a source IP has exceeded maxAttempts
// failures within the window, across all identities. Fails closed on error.
func (s *BruteForceService) IsSourceBlocked(ctx context.Context, ip string, maxAttempts int, window time.Duration) bool {
	count, err := s.attempts.CountFailuresByIP(ctx, ip, time.Now().Add(-window))
	if err != nil {
		s.logger.Error("failed to count failures by IP, blocking source",
			slog.String("ip_address", ip),
			slog.Any("error", err))
		return true
	}
	return count >= maxAttempts
}

// SummarizeDevice condenses a raw User-Agent into a short browser/OS summary
// for the audit trail.
func SummarizeDevice(rawUA string) string {
	if rawUA == "" {
		return "unknown"
	}

	ua := useragent.New(rawUA)
	name, version := ua.Browser()
	if name == "" {
		return "unknown"
	}
	if ua.Bot() {
		return fmt.Sprintf("bot: %s", name)
	}
	summary := name
	if version != "" {
		summary = fmt.Sprintf("%s %s", name, version)
	}
	if os := ua.OS(); os != "" {
		summary = fmt.Sprintf("%s on %s", summary, os)
	}
	return summary
}
