package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/fintrust/identity/internal/database"
	"github.com/fintrust/identity/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const verificationColumns = `id, account_id, token_hash, email, expires_at, used_at, created_at`

// EmailVerificationRepository stores verification token hashes. The plain
// token never touches the database.
type EmailVerificationRepository struct {
	pool *pgxpool.Pool
}

func NewEmailVerificationRepository(db *database.DB) *EmailVerificationRepository {
	return &EmailVerificationRepository{pool: db.Pool}
}

func scanVerificationRow(row rowScanner) (*models.EmailVerificationToken, error) {
	var token models.EmailVerificationToken
	err := row.Scan(
		&token.ID, &token.AccountID, &token.TokenHash, &token.Email,
		&token.ExpiresAt, &token.UsedAt, &token.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &token, nil
}

// Create stores a new verification token hash for an account.
func (r *EmailVerificationRepository) Create(ctx context.Context, accountID uuid.UUID, tokenHash, email string, expiresAt time.Time) (*models.EmailVerificationToken, error) {
	query := `
		INSERT INTO email_verification_tokens (account_id, token_hash, email, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + verificationColumns

	token, err := scanVerificationRow(r.pool.QueryRow(ctx, query, accountID, tokenHash, email, expiresAt))
	if err != nil {
		return nil, fmt.Errorf("failed to create email verification token: %w", err)
	}
	return token, nil
}

// GetByTokenHash looks up a token by the hash of its plain value.
func (r *EmailVerificationRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.EmailVerificationToken, error) {
	query := `SELECT ` + verificationColumns + ` FROM email_verification_tokens WHERE token_hash = $1`
	return scanVerificationRow(r.pool.QueryRow(ctx, query, tokenHash))
}

// GetPendingByEmail returns the newest unused, unexpired token for an email.
func (r *EmailVerificationRepository) GetPendingByEmail(ctx context.Context, email string) (*models.EmailVerificationToken, error) {
	query := `
		SELECT ` + verificationColumns + `
		FROM email_verification_tokens
		WHERE email = $1 AND used_at IS NULL AND expires_at > NOW()
		ORDER BY created_at DESC
		LIMIT 1`
	return scanVerificationRow(r.pool.QueryRow(ctx, query, email))
}

// MarkAsUsed consumes a token. A token already redeemed stays redeemed, so
// the update only matches unused rows.
func (r *EmailVerificationRepository) MarkAsUsed(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE email_verification_tokens
		SET used_at = NOW()
		WHERE id = $1 AND used_at IS NULL`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark token as used: %w", err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// DeleteByAccountID invalidates every outstanding token for an account.
func (r *EmailVerificationRepository) DeleteByAccountID(ctx context.Context, accountID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM email_verification_tokens WHERE account_id = $1`, accountID)
	if err != nil {
		return fmt.Errorf("failed to delete tokens for account: %w", err)
	}
	return nil
}

// CleanupExpired purges tokens expired for longer than the retention window.
func (r *EmailVerificationRepository) CleanupExpired(ctx context.Context) (int64, error) {
	query := `
		DELETE FROM email_verification_tokens
		WHERE expires_at < NOW() - INTERVAL '30 days'`

	result, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired tokens: %w", err)
	}
	return result.RowsAffected(), nil
}
