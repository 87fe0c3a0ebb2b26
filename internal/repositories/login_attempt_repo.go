package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/fintrust/identity/internal/database"
	"github.com/fintrust/identity/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LoginAttemptRepository handles database operations for the login audit trail.
// Records are append-only; nothing here mutates an existing attempt.
type LoginAttemptRepository struct {
	pool *pgxpool.Pool
}

func NewLoginAttemptRepository(db *database.DB) *LoginAttemptRepository {
	return &LoginAttemptRepository{pool: db.Pool}
}

func scanAttemptRow(scanner rowScanner) (*models.LoginAttempt, error) {
	var attempt models.LoginAttempt
	err := scanner.Scan(
		&attempt.ID, &attempt.AccountID, &attempt.Email,
		&attempt.IPAddress, &attempt.UserAgent, &attempt.DeviceSummary,
		&attempt.Reason, &attempt.AttemptNumber, &attempt.Success,
		&attempt.CreatedBy, &attempt.CreatedAt, &attempt.ExpiresAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &attempt, nil
}

// Record appends a login attempt to the audit trail.
func (r *LoginAttemptRepository) Record(ctx context.Context, attempt *models.LoginAttempt) error {
	query := `
		INSERT INTO login_attempts (account_id, email, ip_address, user_agent, device_summary, reason, attempt_number, success, created_by, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	createdBy := attempt.CreatedBy
	if createdBy == "" {
		createdBy = "system"
	}

	_, err := r.pool.Exec(ctx, query,
		attempt.AccountID,
		attempt.Email,
		attempt.IPAddress,
		attempt.UserAgent,
		attempt.DeviceSummary,
		attempt.Reason,
		attempt.AttemptNumber,
		attempt.Success,
		createdBy,
		attempt.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record login attempt: %w", err)
	}
	return nil
}

// CountFailuresByEmail returns the number of failed attempts for an email
// within a time window.
func (r *LoginAttemptRepository) CountFailuresByEmail(ctx context.Context, email string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM login_attempts
		WHERE email = $1 AND success = false AND created_at >= $2
	`

	var count int
	err := r.pool.QueryRow(ctx, query, NormalizeEmail(email), since).Scan(&count)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

// CountFailuresByIP returns the number of failed attempts from a source IP
// within a time window.
func (r *LoginAttemptRepository) CountFailuresByIP(ctx context.Context, ipAddress string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM login_attempts
		WHERE ip_address = $1 AND success = false AND created_at >= $2
	`

	var count int
	err := r.pool.QueryRow(ctx, query, ipAddress, since).Scan(&count)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

// ListRecentByEmail returns the most recent attempts for an email, newest first.
func (r *LoginAttemptRepository) ListRecentByEmail(ctx context.Context, email string, since time.Time, limit int) ([]*models.LoginAttempt, error) {
	query := `
		SELECT id, account_id, email, ip_address, user_agent, device_summary, reason, attempt_number, success, created_by, created_at, expires_at
		FROM login_attempts
		WHERE email = $1 AND created_at >= $2
		ORDER BY created_at DESC
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, NormalizeEmail(email), since, limit)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	attempts := make([]*models.LoginAttempt, 0)
	for rows.Next() {
		attempt, err := scanAttemptRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan login attempt: %w", err)
		}
		attempts = append(attempts, attempt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating login attempt rows: %w", err)
	}
	return attempts, nil
}

// LastSuccessAt returns the timestamp of the most recent successful login
// for an email, nil when there is none.
func (r *LoginAttemptRepository) LastSuccessAt(ctx context.Context, email string) (*time.Time, error) {
	query := `
		SELECT created_at FROM login_attempts
		WHERE email = $1 AND success = true
		ORDER BY created_at DESC
		LIMIT 1
	`

	var successAt time.Time
	err := r.pool.QueryRow(ctx, query, NormalizeEmail(email)).Scan(&successAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &successAt, nil
}

// DeleteExpired removes attempts past their retention deadline.
func (r *LoginAttemptRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM login_attempts WHERE expires_at <= CURRENT_TIMESTAMP`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired login attempts: %w", err)
	}
	return tag.RowsAffected(), nil
}
