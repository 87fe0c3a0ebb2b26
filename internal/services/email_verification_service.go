package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fintrust/identity/internal/models"
	pkglogger "github.com/fintrust/identity/pkg/logger"
	"github.com/google/uuid"
)

// EmailVerificationRepository defines the interface for verification token storage
type EmailVerificationRepository interface {
	Create(ctx context.Context, accountID uuid.UUID, tokenHash, email string, expiresAt time.Time) (*models.EmailVerificationToken, error)
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.EmailVerificationToken, error)
	MarkAsUsed(ctx context.Context, id uuid.UUID) error
	DeleteByAccountID(ctx context.Context, accountID uuid.UUID) error
	GetPendingByEmail(ctx context.Context, email string) (*models.EmailVerificationToken, error)
}

// VerificationAccountRepository defines the account operations verification needs
type VerificationAccountRepository interface {
	MarkEmailVerified(ctx context.Context, id uuid.UUID) error
}

// EmailVerificationService issues and redeems email verification tokens.
// Only the SHA-256 hash of a token is stored; the plain token travels in the
// email link and is re-hashed on redemption.
type EmailVerificationService struct {
	tokens         EmailVerificationRepository
	accounts       VerificationAccountRepository
	emailService   EmailService
	logger         *slog.Logger
	tokenExpiry    time.Duration
	resendCooldown time.Duration
}

// NewEmailVerificationService creates a new EmailVerificationService
func NewEmailVerificationService(
	tokens EmailVerificationRepository,
	accounts VerificationAccountRepository,
	emailService EmailService,
	logger *slog.Logger,
	tokenExpiry time.Duration,
) *EmailVerificationService {
	return &EmailVerificationService{
		tokens:         tokens,
		accounts:       accounts,
		emailService:   emailService,
		logger:         logger,
		tokenExpiry:    tokenExpiry,
		resendCooldown: 20 * time.Minute,
	}
}

// SendVerification generates a token for the account and emails the link.
// Implements the orchestrator's VerificationSender.
func (s *EmailVerificationService) SendVerification(ctx context.Context, account *models.Account) error {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}
	plainToken := base64.URLEncoding.EncodeToString(tokenBytes)

	hash := sha256.Sum256([]byte(plainToken))
	tokenHash := hex.EncodeToString(hash[:])
	expiresAt := time.Now().Add(s.tokenExpiry)

	if _, err := s.tokens.Create(ctx, account.ID, tokenHash, account.Email, expiresAt); err != nil {
		return fmt.Errorf("failed to create verification token: %w", err)
	}

	if err := s.emailService.SendVerificationEmail(ctx, account.Email, plainToken, expiresAt); err != nil {
		return fmt.Errorf("failed to send verification email: %w", err)
	}

	s.logger.Info("verification email queued",
		slog.String("account_id", account.ID.String()),
		slog.String("email", pkglogger.SanitizedEmail(account.Email)))
	return nil
}

// VerifyEmail redeems a token and marks the account's email verified.
// Unknown, used and expired tokens all return the same ErrUnauthorized.
func (s *EmailVerificationService) VerifyEmail(ctx context.Context, plainToken string) (uuid.UUID, error) {
	if plainToken == "" {
		return uuid.Nil, models.ErrUnauthorized
	}

	hash := sha256.Sum256([]byte(plainToken))
	tokenHash := hex.EncodeToString(hash[:])

	token, err := s.tokens.GetByTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return uuid.Nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to retrieve verification token", slog.Any("error", err))
		return uuid.Nil, models.ErrInternalServer
	}

	if token.IsUsed() || token.IsExpired() {
		s.logger.Info("verification token rejected",
			slog.String("token_id", token.ID.String()),
			slog.Bool("used", token.IsUsed()),
			slog.Bool("expired", token.IsExpired()))
		return uuid.Nil, models.ErrUnauthorized
	}

	if err := s.tokens.MarkAsUsed(ctx, token.ID); err != nil {
		s.logger.Error("failed to mark token as used",
			slog.String("token_id", token.ID.String()),
			slog.Any("error", err))
		return uuid.Nil, models.ErrInternalServer
	}

	if err := s.accounts.MarkEmailVerified(ctx, token.AccountID); err != nil {
		s.logger.Error("failed to mark email verified",
			slog.String("account_id", token.AccountID.String()),
			slog.Any("error", err))
		return uuid.Nil, models.ErrInternalServer
	}

	s.logger.Info("email verified",
		slog.String("account_id", token.AccountID.String()))
	return token.AccountID, nil
}

// ResendVerification re-issues the verification email when the cooldown has
// passed. Always reports success to the caller: whether an account or a
// pending token exists must not be observable.
func (s *EmailVerificationService) ResendVerification(ctx context.Context, email string) error {
	existing, err := s.tokens.GetPendingByEmail(ctx, email)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check for pending verification token", slog.Any("error", err))
		return nil
	}
	if existing == nil {
		return nil
	}

	if time.Since(existing.CreatedAt) < s.resendCooldown {
		s.logger.Info("verification resend within cooldown, skipping",
			slog.String("account_id", existing.AccountID.String()))
		return nil
	}

	if err := s.tokens.DeleteByAccountID(ctx, existing.AccountID); err != nil {
		s.logger.Error("failed to delete stale verification tokens", slog.Any("error", err))
	}

	return s.SendVerification(ctx, &models.Account{ID: existing.AccountID, Email: existing.Email})
}
