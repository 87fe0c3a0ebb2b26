package integration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintrust/identity/internal/models"
	"github.com/fintrust/identity/internal/repositories"
)

var testDB *TestDB

func TestMain(m *testing.M) {
	ctx := context.Background()

	db, err := SetupTestDatabase(ctx)
	if err != nil {
		panic("failed to set up test database: " + err.Error())
	}
	testDB = db

	code := m.Run()

	testDB.Teardown(ctx)
	if code != 0 {
		panic("integration tests failed")
	}
}

func resetDB(t *testing.T) {
	t.Helper()
	require.NoError(t, testDB.CleanupTables(context.Background()))
}

func TestConcurrentRegistration_ExactlyOneSucceeds(t *testing.T) {
	resetDB(t)
	ctx := context.Background()
	repo := repositories.NewAccountRepository(testDB.DB)

	const workers = 10
	results := make(chan error, workers)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.CreateSerializable(ctx, &models.Account{
				Email:        "race@example.com",
				PasswordHash: "x",
				IsActive:     true,
				RiskLevel:    models.RiskLow,
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successes, conflicts := 0, 0
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, models.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, successes, "exactly one registration wins")
	assert.Equal(t, workers-1, conflicts)

	var count int
	require.NoError(t, testDB.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM accounts WHERE email = 'race@example.com'`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestRecordFailedLogin_LocksAtThresholdAtomically(t *testing.T) {
	resetDB(t)
	ctx := context.Background()
	repo := repositories.NewAccountRepository(testDB.DB)

	_, err := SeedAccount(ctx, testDB.Pool, "lockme@example.com", "TestPassword123!")
	require.NoError(t, err)

	lockedUntil := time.Now().Add(30 * time.Minute)

	for i := 1; i <= 4; i++ {
		account, err := repo.RecordFailedLogin(ctx, "lockme@example.com", 5, lockedUntil)
		require.NoError(t, err)
		assert.Equal(t, i, account.FailedLoginAttempts)
		assert.Nil(t, account.LockedUntil, "no lockout below the threshold")
	}

	account, err := repo.RecordFailedLogin(ctx, "lockme@example.com", 5, lockedUntil)
	require.NoError(t, err)
	assert.Equal(t, 5, account.FailedLoginAttempts)
	require.NotNil(t, account.LockedUntil, "count and lockout land in the same statement")
	assert.WithinDuration(t, lockedUntil, *account.LockedUntil, time.Second)

	require.NoError(t, repo.ResetFailedLogins(ctx, "lockme@example.com"))
	account, err = repo.GetByEmail(ctx, "lockme@example.com")
	require.NoError(t, err)
	assert.Zero(t, account.FailedLoginAttempts)
	assert.Nil(t, account.LockedUntil, "reset clears both fields together")
}

func TestEscalateRisk_NeverDowngrades(t *testing.T) {
	resetDB(t)
	ctx := context.Background()
	repo := repositories.NewAccountRepository(testDB.DB)

	account, err := SeedAccount(ctx, testDB.Pool, "risky@example.com", "TestPassword123!")
	require.NoError(t, err)

	high := models.LimitsForRisk(models.RiskHigh)
	require.NoError(t, repo.EscalateRisk(ctx, account.ID, models.RiskHigh, high, "system", nil))

	// A later escalation to a lower floor is a no-op.
	medium := models.LimitsForRisk(models.RiskMedium)
	require.NoError(t, repo.EscalateRisk(ctx, account.ID, models.RiskMedium, medium, "system", nil))

	got, err := repo.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RiskHigh, got.RiskLevel)
	assert.Equal(t, high.Daily, got.DailyTxLimit)
	assert.Equal(t, high.Monthly, got.MonthlyTxLimit)
}

func TestAssignRole_ReactivatesInsteadOfDuplicating(t *testing.T) {
	resetDB(t)
	ctx := context.Background()
	roles := repositories.NewRoleRepository(testDB.DB)

	account, err := SeedAccount(ctx, testDB.Pool, "roles@example.com", "TestPassword123!")
	require.NoError(t, err)

	investor, err := roles.GetRoleByName(ctx, models.RoleInvestor)
	require.NoError(t, err)

	require.NoError(t, roles.AssignRole(ctx, account.ID, investor.ID, "admin", nil))
	require.NoError(t, roles.DeactivateAssignment(ctx, account.ID, investor.ID))
	require.NoError(t, roles.AssignRole(ctx, account.ID, investor.ID, "admin", nil))

	assignments, err := roles.ListAssignments(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, assignments, 1, "reassignment reactivates the existing row")
	assert.True(t, assignments[0].IsActive)
}
