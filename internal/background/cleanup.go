package background

import (
	"context"
	"log/slog"
	"time"
)

// ExpiredRecordCleaner removes rows whose retention window has passed
type ExpiredRecordCleaner interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// ExpiredAssignmentDeactivator deactivates role grants past their expiry
type ExpiredAssignmentDeactivator interface {
	DeactivateExpired(ctx context.Context) (int64, error)
}

// ExpiredTokenCleaner removes verification tokens past their expiry
type ExpiredTokenCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// CounterPurger drops counter windows that have already expired
type CounterPurger interface {
	PurgeExpired() int
}

// CleanupManager periodically removes expired audit rows, role grants,
// verification tokens and in-memory counter windows.
type CleanupManager struct {
	attempts    ExpiredRecordCleaner
	assignments ExpiredAssignmentDeactivator
	tokens      ExpiredTokenCleaner
	counters    CounterPurger
	logger      *slog.Logger
	interval    time.Duration
	stopCh      chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(
	attempts ExpiredRecordCleaner,
	assignments ExpiredAssignmentDeactivator,
	tokens ExpiredTokenCleaner,
	counters CounterPurger,
	logger *slog.Logger,
	interval time.Duration,
) *CleanupManager {
	return &CleanupManager{
		attempts:    attempts,
		assignments: assignments,
		tokens:      tokens,
		counters:    counters,
		logger:      logger,
		interval:    interval,
		stopCh:      make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if n, err := cm.attempts.DeleteExpired(cleanupCtx); err != nil {
		cm.logger.Error("failed to delete expired login attempts", slog.Any("error", err))
	} else if n > 0 {
		cm.logger.Info("deleted expired login attempts", slog.Int64("rows_deleted", n))
	}

	if n, err := cm.assignments.DeactivateExpired(cleanupCtx); err != nil {
		cm.logger.Error("failed to deactivate expired role assignments", slog.Any("error", err))
	} else if n > 0 {
		cm.logger.Info("deactivated expired role assignments", slog.Int64("rows_updated", n))
	}

	if n, err := cm.tokens.CleanupExpired(cleanupCtx); err != nil {
		cm.logger.Error("failed to cleanup expired verification tokens", slog.Any("error", err))
	} else if n > 0 {
		cm.logger.Info("deleted expired verification tokens", slog.Int64("rows_deleted", n))
	}

	if n := cm.counters.PurgeExpired(); n > 0 {
		cm.logger.Info("purged expired counter windows", slog.Int("windows", n))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
