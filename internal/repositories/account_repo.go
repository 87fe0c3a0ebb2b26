package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fintrust/identity/internal/database"
	"github.com/fintrust/identity/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const accountColumns = `
	id, email, password_hash, phone, is_active, email_verified,
	failed_login_attempts, locked_until,
	risk_level, daily_tx_limit, monthly_tx_limit,
	risk_assessed_by, risk_assessed_at, risk_notes,
	flagged_for_review, flag_reason, flagged_at,
	two_factor_secret, last_login_at, last_login_ip, last_login_user_agent,
	created_at, updated_at`

// AccountRepository handles database operations for accounts
type AccountRepository struct {
	db   *database.DB
	pool *pgxpool.Pool
}

func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{db: db, pool: db.Pool}
}

// rowScanner interface for scanning rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanAccountRow handles nullable fields and populates an Account model from a database row
func scanAccountRow(scanner rowScanner) (*models.Account, error) {
	var account models.Account
	var riskLevel int16

	err := scanner.Scan(
		&account.ID, &account.Email, &account.PasswordHash, &account.Phone,
		&account.IsActive, &account.EmailVerified,
		&account.FailedLoginAttempts, &account.LockedUntil,
		&riskLevel, &account.DailyTxLimit, &account.MonthlyTxLimit,
		&account.RiskAssessedBy, &account.RiskAssessedAt, &account.RiskNotes,
		&account.FlaggedForReview, &account.FlagReason, &account.FlaggedAt,
		&account.TwoFactorSecret, &account.LastLoginAt, &account.LastLoginIP, &account.LastLoginUserAgent,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	account.RiskLevel = models.RiskLevel(riskLevel)
	return &account, nil
}

// NormalizeEmail canonicalizes an email for lookups and counter keys.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccountRow(r.pool.QueryRow(ctx, query, id))
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	return scanAccountRow(r.pool.QueryRow(ctx, query, NormalizeEmail(email)))
}

// CreateTx inserts a new account inside the caller's transaction. Used by
// registration, which runs the existence check and insert under serializable
// isolation.
func (r *AccountRepository) CreateTx(ctx context.Context, tx pgx.Tx, account *models.Account) (*models.Account, error) {
	query := `
		INSERT INTO accounts (email, password_hash, phone, is_active, email_verified, risk_level, daily_tx_limit, monthly_tx_limit)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + accountColumns

	limits := models.LimitsForRisk(account.RiskLevel)
	return scanAccountRow(tx.QueryRow(ctx, query,
		NormalizeEmail(account.Email),
		account.PasswordHash,
		account.Phone,
		account.IsActive,
		account.EmailVerified,
		int16(account.RiskLevel),
		limits.Daily,
		limits.Monthly,
	))
}

// CreateSerializable runs the duplicate check and insert under serializable
// isolation so two concurrent registrations of the same email cannot both
// pass the check. The unique index on email backstops the transaction; its
// violation surfaces as ErrConflict either way.
func (r *AccountRepository) CreateSerializable(ctx context.Context, account *models.Account) (*models.Account, error) {
	var created *models.Account
	err := r.db.WithSerializableTransaction(ctx, func(tx pgx.Tx) error {
		exists, err := r.ExistsByEmailTx(ctx, tx, account.Email)
		if err != nil {
			return err
		}
		if exists {
			return models.ErrConflict
		}
		created, err = r.CreateTx(ctx, tx, account)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ExistsByEmailTx checks for an existing account inside the caller's transaction.
func (r *AccountRepository) ExistsByEmailTx(ctx context.Context, tx pgx.Tx, email string) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE email = $1)`, NormalizeEmail(email)).Scan(&exists)
	if err != nil {
		return false, database.MapPostgresError(err)
	}
	return exists, nil
}

// RecordFailedLogin increments the persisted failed-attempt count and, when
// the new count reaches the threshold, sets locked_until in the same
// statement so the two fields can never drift apart.
func (r *AccountRepository) RecordFailedLogin(ctx context.Context, email string, threshold int, lockedUntil time.Time) (*models.Account, error) {
	query := `
		UPDATE accounts
		SET failed_login_attempts = failed_login_attempts + 1,
		    locked_until = CASE WHEN failed_login_attempts + 1 >= $2 THEN $3 ELSE locked_until END,
		    updated_at = NOW()
		WHERE email = $1
		RETURNING ` + accountColumns

	return scanAccountRow(r.pool.QueryRow(ctx, query, NormalizeEmail(email), threshold, lockedUntil))
}

// ResetFailedLogins clears the failed-attempt count and the lockout
// timestamp in one statement (never one without the other).
func (r *AccountRepository) ResetFailedLogins(ctx context.Context, email string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE accounts
		SET failed_login_attempts = 0, locked_until = NULL, updated_at = NOW()
		WHERE email = $1
	`, NormalizeEmail(email))
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// UpdateLastLogin records last-login metadata after a successful authentication.
func (r *AccountRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID, ip, userAgent string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE accounts
		SET last_login_at = NOW(), last_login_ip = $2, last_login_user_agent = $3, updated_at = NOW()
		WHERE id = $1
	`, id, ip, userAgent)
	return database.MapPostgresError(err)
}

// SetRiskLevel writes the classification, its assessment metadata and the
// derived limits in a single statement. Used for explicit administrative
// re-assessment; automated paths go through EscalateRisk.
func (r *AccountRepository) SetRiskLevel(ctx context.Context, id uuid.UUID, level models.RiskLevel, limits models.TransactionLimits, assessedBy string, notes *string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE accounts
		SET risk_level = $2, daily_tx_limit = $3, monthly_tx_limit = $4,
		    risk_assessed_by = $5, risk_assessed_at = NOW(), risk_notes = $6,
		    updated_at = NOW()
		WHERE id = $1
	`, id, int16(level), limits.Daily, limits.Monthly, assessedBy, notes)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// EscalateRisk raises the classification to floor if the current level is
// lower. The guard in the WHERE clause makes concurrent escalations safe:
// a higher level already in place is never overwritten.
func (r *AccountRepository) EscalateRisk(ctx context.Context, id uuid.UUID, floor models.RiskLevel, limits models.TransactionLimits, by string, notes *string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE accounts
		SET risk_level = $2, daily_tx_limit = $3, monthly_tx_limit = $4,
		    risk_assessed_by = $5, risk_assessed_at = NOW(), risk_notes = $6,
		    updated_at = NOW()
		WHERE id = $1 AND risk_level < $2
	`, id, int16(floor), limits.Daily, limits.Monthly, by, notes)
	return database.MapPostgresError(err)
}

// SetReviewFlag marks the account for manual review.
func (r *AccountRepository) SetReviewFlag(ctx context.Context, id uuid.UUID, reason, flaggedBy string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE accounts
		SET flagged_for_review = TRUE, flag_reason = $2, flagged_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`, id, fmt.Sprintf("%s (by %s)", reason, flaggedBy))
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ClearReviewFlag clears the flag without touching the risk classification.
func (r *AccountRepository) ClearReviewFlag(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE accounts
		SET flagged_for_review = FALSE, flag_reason = NULL, flagged_at = NULL, updated_at = NOW()
		WHERE id = $1
	`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// MarkEmailVerified flips the verification flag after token confirmation.
func (r *AccountRepository) MarkEmailVerified(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE accounts SET email_verified = TRUE, updated_at = NOW() WHERE id = $1
	`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// SetTwoFactorSecret stores (or clears, with nil) the TOTP secret.
func (r *AccountRepository) SetTwoFactorSecret(ctx context.Context, id uuid.UUID, secret *string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE accounts SET two_factor_secret = $2, updated_at = NOW() WHERE id = $1
	`, id, secret)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
