package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fintrust/identity/internal/metrics"
	"github.com/fintrust/identity/internal/models"
	"github.com/google/uuid"
)

// RiskAccountRepository defines the account operations the risk engine needs
type RiskAccountRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	SetRiskLevel(ctx context.Context, id uuid.UUID, level models.RiskLevel, limits models.TransactionLimits, assessedBy string, notes *string) error
	EscalateRisk(ctx context.Context, id uuid.UUID, floor models.RiskLevel, limits models.TransactionLimits, by string, notes *string) error
	SetReviewFlag(ctx context.Context, id uuid.UUID, reason, flaggedBy string) error
	ClearReviewFlag(ctx context.Context, id uuid.UUID) error
}

// PrimaryRoleResolver resolves the account's most privileged active role
type PrimaryRoleResolver interface {
	PrimaryRole(ctx context.Context, accountID uuid.UUID) (*models.Role, error)
}

// RiskConfig holds risk engine settings
type RiskConfig struct {
	// ClientDailyCeiling caps the daily limit of accounts whose primary role
	// is in the client category, regardless of risk classification.
	ClientDailyCeiling int64
}

// RiskService owns the risk classification of accounts and the transaction
// limits derived from it. Level and limits always change in the same update.
type RiskService struct {
	accounts RiskAccountRepository
	roles    PrimaryRoleResolver
	config   RiskConfig
	logger   *slog.Logger
}

// NewRiskService creates a new RiskService
func NewRiskService(accounts RiskAccountRepository, roles PrimaryRoleResolver, config RiskConfig, logger *slog.Logger) *RiskService {
	return &RiskService{
		accounts: accounts,
		roles:    roles,
		config:   config,
		logger:   logger,
	}
}

// SetRiskLevel assigns an explicit classification and the limits from the
// limit table in a single update. Used by administrative re-assessment.
func (s *RiskService) SetRiskLevel(ctx context.Context, accountID uuid.UUID, level models.RiskLevel, assessedBy, notes string) error {
	if !level.Valid() {
		return fmt.Errorf("%w: unknown risk level %d", models.ErrBadRequest, level)
	}

	var notesPtr *string
	if notes != "" {
		notesPtr = &notes
	}

	limits := models.LimitsForRisk(level)
	if err := s.accounts.SetRiskLevel(ctx, accountID, level, limits, assessedBy, notesPtr); err != nil {
		return fmt.Errorf("failed to set risk level: %w", err)
	}

	s.logger.Info("risk level assigned",
		slog.String("account_id", accountID.String()),
		slog.String("risk_level", level.String()),
		slog.Int64("daily_limit", limits.Daily),
		slog.String("assessed_by", assessedBy))
	return nil
}

// EscalateTo raises the classification to floor when the current level is
// lower. Escalation never downgrades: concurrent escalations settle on the
// highest requested level.
func (s *RiskService) EscalateTo(ctx context.Context, accountID uuid.UUID, floor models.RiskLevel, by string, notes string) error {
	if !floor.Valid() {
		return fmt.Errorf("%w: unknown risk level %d", models.ErrBadRequest, floor)
	}

	var notesPtr *string
	if notes != "" {
		notesPtr = &notes
	}

	limits := models.LimitsForRisk(floor)
	if err := s.accounts.EscalateRisk(ctx, accountID, floor, limits, by, notesPtr); err != nil {
		return fmt.Errorf("failed to escalate risk: %w", err)
	}

	metrics.RiskEscalations.WithLabelValues(by).Inc()
	s.logger.Warn("risk escalated",
		slog.String("account_id", accountID.String()),
		slog.String("floor", floor.String()),
		slog.String("by", by))
	return nil
}

// FlagForReview marks the account for manual review and raises the
// classification to at least Medium. An account already at High or above
// keeps its level; flagging never lowers risk.
func (s *RiskService) FlagForReview(ctx context.Context, accountID uuid.UUID, reason, flaggedBy string) error {
	if err := s.accounts.SetReviewFlag(ctx, accountID, reason, flaggedBy); err != nil {
		return fmt.Errorf("failed to flag account for review: %w", err)
	}

	notes := fmt.Sprintf("escalated on review flag: %s", reason)
	if err := s.EscalateTo(ctx, accountID, models.RiskMedium, flaggedBy, notes); err != nil {
		return err
	}

	s.logger.Warn("account flagged for review",
		slog.String("account_id", accountID.String()),
		slog.String("reason", reason),
		slog.String("flagged_by", flaggedBy))
	return nil
}

// ClearFlag removes the review flag. The risk classification is left alone;
// lowering it takes an explicit re-assessment via SetRiskLevel.
func (s *RiskService) ClearFlag(ctx context.Context, accountID uuid.UUID, clearedBy string) error {
	if err := s.accounts.ClearReviewFlag(ctx, accountID); err != nil {
		return fmt.Errorf("failed to clear review flag: %w", err)
	}

	s.logger.Info("review flag cleared",
		slog.String("account_id", accountID.String()),
		slog.String("cleared_by", clearedBy))
	return nil
}

// CanTransact decides whether the account may execute a transaction of the
// given amount today. Restricted or flagged accounts may not transact at
// all. Otherwise the amount must not exceed the effective daily limit:
// the risk-level limit, capped by the client ceiling when the account's
// primary role is a client role. An amount exactly at the limit is allowed.
func (s *RiskService) CanTransact(ctx context.Context, account *models.Account, amount int64) (bool, error) {
	if account == nil {
		return false, models.ErrBadRequest
	}
	if amount < 0 {
		return false, fmt.Errorf("%w: negative amount", models.ErrBadRequest)
	}
	if account.RiskLevel == models.RiskRestricted || account.FlaggedForReview {
		return false, nil
	}

	limit := models.LimitsForRisk(account.RiskLevel).Daily

	primary, err := s.roles.PrimaryRole(ctx, account.ID)
	if err != nil {
		return false, fmt.Errorf("failed to resolve primary role: %w", err)
	}
	if primary.Category == models.RoleCategoryClient && s.config.ClientDailyCeiling < limit {
		limit = s.config.ClientDailyCeiling
	}

	return amount <= limit, nil
}
