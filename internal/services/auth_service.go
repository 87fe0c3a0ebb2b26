package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"time"
	"unicode/utf8"

	"github.com/fintrust/identity/internal/auth"
	"github.com/fintrust/identity/internal/metrics"
	"github.com/fintrust/identity/internal/models"
	"github.com/fintrust/identity/internal/repositories"
	pkgauth "github.com/fintrust/identity/pkg/auth"
	pkglogger "github.com/fintrust/identity/pkg/logger"
	"github.com/google/uuid"
)

const maxEmailLength = 254

// Non-enumerating messages returned to callers. Unknown account, wrong
// password and bad second-factor code all produce the same text.
const (
	msgInvalidCredentials = "invalid email or password"
	msgRateLimited        = "too many attempts, please try again later"
	msgAccountLocked      = "account temporarily locked due to repeated failures"
	msgAccountDisabled    = "account is deactivated, contact support"
	msgRiskRestricted     = "account access is restricted, contact support"
)

// AuthAccountRepository defines the account operations the orchestrator needs
type AuthAccountRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	CreateSerializable(ctx context.Context, account *models.Account) (*models.Account, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, ip, userAgent string) error
}

// LoginRateLimiter gates requests per (endpoint, identity) pair
type LoginRateLimiter interface {
	IsLimited(ctx context.Context, endpoint, identity string) bool
	RecordRequest(ctx context.Context, endpoint, identity string) error
}

// LockoutGuard tracks failed attempts per account identity
type LockoutGuard interface {
	IsLocked(ctx context.Context, identity string) bool
	RecordFailure(ctx context.Context, identity, ip, userAgent, reason string) (int, error)
	RecordSuccess(ctx context.Context, accountID uuid.UUID, identity, ip, userAgent string)
	Reset(ctx context.Context, identity string) error
}

// VerificationSender issues an email-verification token for a new account
type VerificationSender interface {
	SendVerification(ctx context.Context, account *models.Account) error
}

// AuthResult is the outcome contract of a login attempt.
type AuthResult struct {
	Success        bool
	Message        string
	FailedAttempts int
	AccountLocked  bool
	RetryAfter     time.Duration
	AccessToken    string
	RefreshToken   string
	Account        *models.Account
}

// AuthService sequences the security checks around authentication: rate
// limit, lockout, credential verification, account state, second factor and
// risk gate, with a fixed anti-timing delay on every failure path.
type AuthService struct {
	accounts     AuthAccountRepository
	rateLimiter  LoginRateLimiter
	guard        LockoutGuard
	verification VerificationSender
	tokens       *auth.TokenManager
	totp         *auth.TOTPManager
	delay        *auth.TimingDelay
	audit        *pkglogger.AuditLogger
	lockout      time.Duration
	logger       *slog.Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(
	accounts AuthAccountRepository,
	rateLimiter LoginRateLimiter,
	guard LockoutGuard,
	verification VerificationSender,
	tokens *auth.TokenManager,
	totp *auth.TOTPManager,
	delay *auth.TimingDelay,
	audit *pkglogger.AuditLogger,
	lockout time.Duration,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		accounts:     accounts,
		rateLimiter:  rateLimiter,
		guard:        guard,
		verification: verification,
		tokens:       tokens,
		totp:         totp,
		delay:        delay,
		audit:        audit,
		lockout:      lockout,
		logger:       logger,
	}
}

// Login authenticates an account. The check order is fixed: rate limit on
// the source IP, lockout on the target identity, input shape, credentials,
// account state, second factor, risk gate. Every failure path passes through
// the same fixed delay so response time does not reveal which check failed.
func (s *AuthService) Login(ctx context.Context, email, password, totpCode, ip, userAgent string) (*AuthResult, error) {
	start := time.Now()
	normalized := repositories.NormalizeEmail(email)

	if s.rateLimiter.IsLimited(ctx, "login", ip) {
		metrics.LoginAttempts.WithLabelValues("rate_limited").Inc()
		return &AuthResult{Message: msgRateLimited, RetryAfter: time.Minute}, models.ErrRateLimited
	}
	_ = s.rateLimiter.RecordRequest(ctx, "login", ip)

	if s.guard.IsLocked(ctx, normalized) {
		metrics.LoginAttempts.WithLabelValues("locked").Inc()
		s.audit.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_blocked",
			IPAddress:     ip,
			UserAgent:     userAgent,
			FailureReason: models.FailureReasonAccountLocked,
		})
		return &AuthResult{
			Message:       msgAccountLocked,
			AccountLocked: true,
			RetryAfter:    s.lockout,
		}, models.ErrAccountLocked
	}

	if !validCredentialShape(normalized, password) {
		return s.failLogin(ctx, start, normalized, ip, userAgent, models.FailureReasonInvalidInput)
	}

	account, err := s.accounts.GetByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return s.failLogin(ctx, start, normalized, ip, userAgent, models.FailureReasonUnknownAccount)
		}
		s.logger.Error("failed to load account for login", slog.Any("error", err))
		s.delay.WaitFrom(start, false)
		return &AuthResult{Message: msgInvalidCredentials}, models.ErrInternalServer
	}

	if err := pkgauth.ComparePassword(account.PasswordHash, password); err != nil {
		return s.failLogin(ctx, start, normalized, ip, userAgent, models.FailureReasonBadPassword)
	}

	if !account.IsActive {
		result, _ := s.failLogin(ctx, start, normalized, ip, userAgent, models.FailureReasonAccountInactive)
		result.Message = msgAccountDisabled
		metrics.LoginAttempts.WithLabelValues("inactive").Inc()
		return result, models.ErrAccountDisabled
	}

	if account.TwoFactorEnabled() {
		if totpCode == "" || !s.totp.ValidateCode(*account.TwoFactorSecret, totpCode) {
			return s.failLogin(ctx, start, normalized, ip, userAgent, models.FailureReasonBadTOTP)
		}
	}

	if account.RiskLevel == models.RiskRestricted {
		result, _ := s.failLogin(ctx, start, normalized, ip, userAgent, models.FailureReasonRiskRestricted)
		result.Message = msgRiskRestricted
		metrics.LoginAttempts.WithLabelValues("restricted").Inc()
		return result, models.ErrRiskRestricted
	}

	return s.succeedLogin(ctx, account, normalized, ip, userAgent)
}

// failLogin registers the failure with the guard, applies the anti-timing
// delay and returns the generic result. The guard's side effects (counter,
// audit record, persisted account state) happen before the delay so the
// lockout is already in force when the response goes out.
func (s *AuthService) failLogin(ctx context.Context, start time.Time, normalized, ip, userAgent, reason string) (*AuthResult, error) {
	attemptNumber, err := s.guard.RecordFailure(ctx, normalized, ip, userAgent, reason)
	if err != nil {
		s.logger.Error("failed to record login failure", slog.Any("error", err))
	}

	metrics.LoginAttempts.WithLabelValues("invalid_credentials").Inc()
	s.delay.WaitFrom(start, false)

	return &AuthResult{
		Message:        msgInvalidCredentials,
		FailedAttempts: attemptNumber,
		AccountLocked:  s.guard.IsLocked(ctx, normalized),
	}, models.ErrInvalidCredentials
}

func (s *AuthService) succeedLogin(ctx context.Context, account *models.Account, normalized, ip, userAgent string) (*AuthResult, error) {
	if err := s.guard.Reset(ctx, normalized); err != nil {
		s.logger.Error("failed to reset lockout state after successful login",
			slog.String("account_id", account.ID.String()),
			slog.Any("error", err))
	}

	if err := s.accounts.UpdateLastLogin(ctx, account.ID, ip, userAgent); err != nil {
		s.logger.Error("failed to update last-login metadata",
			slog.String("account_id", account.ID.String()),
			slog.Any("error", err))
	}

	s.guard.RecordSuccess(ctx, account.ID, normalized, ip, userAgent)

	accessToken, err := s.tokens.GenerateAccessToken(account.ID, account.Email)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.Any("error", err))
		return &AuthResult{Message: "authentication failed"}, models.ErrInternalServer
	}
	refreshToken, err := s.tokens.GenerateRefreshToken(account.ID, account.Email)
	if err != nil {
		s.logger.Error("failed to generate refresh token", slog.Any("error", err))
		return &AuthResult{Message: "authentication failed"}, models.ErrInternalServer
	}

	metrics.LoginAttempts.WithLabelValues("success").Inc()
	s.audit.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		AccountID: account.ID.String(),
		IPAddress: ip,
		UserAgent: userAgent,
		Success:   true,
	})
	s.logger.Info("account logged in", slog.String("account_id", account.ID.String()))

	return &AuthResult{
		Success:      true,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Account:      account,
	}, nil
}

// Refresh exchanges a valid refresh token for a new token pair. The account
// state is re-checked so a deactivation, lockout or risk restriction applied
// since login cuts the session short.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	claims, err := s.tokens.ValidateToken(refreshToken)
	if err != nil || claims.Type != "refresh" {
		return &AuthResult{Message: "invalid refresh token"}, models.ErrUnauthorized
	}

	account, err := s.accounts.GetByEmail(ctx, claims.Email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return &AuthResult{Message: "invalid refresh token"}, models.ErrUnauthorized
		}
		s.logger.Error("failed to load account for token refresh", slog.Any("error", err))
		return &AuthResult{Message: "invalid refresh token"}, models.ErrInternalServer
	}

	if !account.CanAuthenticate(time.Now()) {
		return &AuthResult{Message: "invalid refresh token"}, models.ErrUnauthorized
	}

	accessToken, err := s.tokens.GenerateAccessToken(account.ID, account.Email)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.Any("error", err))
		return &AuthResult{Message: "authentication failed"}, models.ErrInternalServer
	}
	newRefreshToken, err := s.tokens.GenerateRefreshToken(account.ID, account.Email)
	if err != nil {
		s.logger.Error("failed to generate refresh token", slog.Any("error", err))
		return &AuthResult{Message: "authentication failed"}, models.ErrInternalServer
	}

	return &AuthResult{
		Success:      true,
		AccessToken:  accessToken,
		RefreshToken: newRefreshToken,
		Account:      account,
	}, nil
}

// Register creates an account with baseline defaults: Low risk, zero failed
// attempts, unverified email. The duplicate check and insert run under a
// serializable transaction; of N concurrent registrations for one email,
// exactly one succeeds.
func (s *AuthService) Register(ctx context.Context, email, password, ip string) (*models.Account, error) {
	normalized := repositories.NormalizeEmail(email)

	if s.rateLimiter.IsLimited(ctx, "register", ip) {
		metrics.Registrations.WithLabelValues("rate_limited").Inc()
		return nil, models.ErrRateLimited
	}
	_ = s.rateLimiter.RecordRequest(ctx, "register", ip)

	if s.guard.IsLocked(ctx, normalized) {
		metrics.Registrations.WithLabelValues("locked").Inc()
		return nil, models.ErrAccountLocked
	}

	if _, err := mail.ParseAddress(normalized); err != nil || len(normalized) > maxEmailLength {
		return nil, fmt.Errorf("%w: invalid email address", models.ErrBadRequest)
	}
	if err := pkgauth.ValidatePassword(password); err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrBadRequest, err.Error())
	}

	passwordHash, err := pkgauth.HashPassword(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	account, err := s.accounts.CreateSerializable(ctx, &models.Account{
		Email:        normalized,
		PasswordHash: passwordHash,
		IsActive:     true,
		RiskLevel:    models.RiskLow,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			metrics.Registrations.WithLabelValues("duplicate").Inc()
			return nil, models.ErrEmailTaken
		}
		s.logger.Error("failed to create account", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.verification.SendVerification(ctx, account); err != nil {
		// Verification can be re-requested; registration already succeeded.
		s.logger.Error("failed to send verification email",
			slog.String("account_id", account.ID.String()),
			slog.Any("error", err))
	}

	metrics.Registrations.WithLabelValues("success").Inc()
	s.audit.LogAccountAction("account_registered", account.ID.String(), ip, nil)
	s.logger.Info("account registered", slog.String("account_id", account.ID.String()))

	return account, nil
}

// validCredentialShape rejects inputs that cannot possibly match a stored
// credential before any lookup work happens.
func validCredentialShape(email, password string) bool {
	if email == "" || password == "" {
		return false
	}
	if len(email) > maxEmailLength || len(password) > pkgauth.MaxPasswordLen {
		return false
	}
	return utf8.ValidString(email) && utf8.ValidString(password)
}
