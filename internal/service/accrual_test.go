package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashvault/mining-server/internal/models"
	"github.com/hashvault/mining-server/internal/repository"
	"github.com/hashvault/mining-server/internal/service"
	"github.com/hashvault/mining-server/internal/utils"
)

// seedUnitHolding creates an active unit holding with the accrual cursor
// a given duration in the past. MonthlyProfit 1440 works out to $2/hour.
func seedUnitHolding(t *testing.T, repo repository.Repository, userID string, monthlyProfit float64, lastAccrual time.Time) string {
	holding := &models.UnitHolding{
		UserID:        userID,
		MachineID:     "machine-1",
		MachineName:   "Antminer S19",
		Price:         1000,
		MonthlyProfit: monthlyProfit,
		Status:        models.HoldingActive,
		LastAccrualAt: lastAccrual,
		AssignedAt:    lastAccrual,
	}
	require.NoError(t, repo.CreateUnitHoldings(context.Background(), []*models.UnitHolding{holding}))
	return holding.ID
}

func seedShareHolding(t *testing.T, repo repository.Repository, userID string, shareCount int, profitPerShare float64, lastAccrual time.Time) string {
	holding := &models.ShareHolding{
		UserID:         userID,
		MachineID:      "machine-2",
		ShareCount:     shareCount,
		PricePerShare:  50,
		ProfitPerShare: profitPerShare,
		Status:         models.HoldingActive,
		LastAccrualAt:  lastAccrual,
		PurchasedAt:    lastAccrual,
	}
	require.NoError(t, repo.CreateShareHolding(context.Background(), holding))
	return holding.ID
}

func TestAccrualCreditsElapsedHours(t *testing.T) {
	svc, repo := newTestService(t)
	userID := createUser(t, repo)
	holdingID := seedUnitHolding(t, repo, userID, 1440, time.Now().UTC().Add(-3*time.Hour))

	summary, err := svc.RunAccrualTick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Credited)
	assert.InDelta(t, 6.0, summary.Profit, 1e-9)

	balance, err := repo.GetBalance(context.Background(), userID)
	require.NoError(t, err)
	assert.InDelta(t, 6.0, balance.MiningBalance, 1e-9)
	assert.Zero(t, balance.AdminBalance)

	holding, err := repo.GetUnitHolding(context.Background(), holdingID)
	require.NoError(t, err)
	assert.InDelta(t, 6.0, holding.AccruedProfit, 1e-9)
	assert.WithinDuration(t, time.Now().UTC(), holding.LastAccrualAt, 5*time.Second)

	txs, err := repo.ListTransactions(context.Background(), repository.TransactionFilter{
		UserID: userID,
		Kind:   models.TxKindUnitProfit,
	})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, 3, txs[0].Periods)
	assertBalanceInvariant(t, repo, userID)
}

func TestAccrualIdempotentWithinPeriod(t *testing.T) {
	svc, repo := newTestService(t)
	userID := createUser(t, repo)
	holdingID := seedUnitHolding(t, repo, userID, 1440, time.Now().UTC().Add(-3*time.Hour))

	_, err := svc.RunAccrualTick(context.Background())
	require.NoError(t, err)
	first, err := repo.GetUnitHolding(context.Background(), holdingID)
	require.NoError(t, err)

	// A second tick in the same hour credits nothing and the cursor
	// never moves backwards.
	summary, err := svc.RunAccrualTick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)
	assert.Zero(t, summary.Credited)
	assert.Zero(t, summary.Profit)

	balance, err := repo.GetBalance(context.Background(), userID)
	require.NoError(t, err)
	assert.InDelta(t, 6.0, balance.MiningBalance, 1e-9)

	second, err := repo.GetUnitHolding(context.Background(), holdingID)
	require.NoError(t, err)
	assert.False(t, second.LastAccrualAt.Before(first.LastAccrualAt))
}

func TestAccrualSkipsRecentAndInactiveHoldings(t *testing.T) {
	svc, repo := newTestService(t)
	userID := createUser(t, repo)

	seedUnitHolding(t, repo, userID, 1440, time.Now().UTC().Add(-30*time.Minute))
	staleID := seedUnitHolding(t, repo, userID, 1440, time.Now().UTC().Add(-2*time.Hour))
	stale, err := repo.GetUnitHolding(context.Background(), staleID)
	require.NoError(t, err)
	stale.Status = models.HoldingInactive
	require.NoError(t, repo.SaveUnitHolding(context.Background(), stale))

	summary, err := svc.RunAccrualTick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Skipped)
	assert.Zero(t, summary.Credited)

	balance, err := repo.GetOrCreateBalance(context.Background(), userID)
	require.NoError(t, err)
	assert.Zero(t, balance.MiningBalance)
}

func TestAccrualSharesScaleWithCount(t *testing.T) {
	svc, repo := newTestService(t)
	userID := createUser(t, repo)
	holdingID := seedShareHolding(t, repo, userID, 10, 720, time.Now().UTC().Add(-2*time.Hour))

	summary, err := svc.RunAccrualTick(context.Background())
	require.NoError(t, err)
	// 10 shares * $1/hour * 2 hours.
	assert.InDelta(t, 20.0, summary.Profit, 1e-9)

	holding, err := repo.GetShareHolding(context.Background(), holdingID)
	require.NoError(t, err)
	assert.InDelta(t, 20.0, holding.TotalProfitEarned, 1e-9)

	txs, err := repo.ListTransactions(context.Background(), repository.TransactionFilter{
		UserID: userID,
		Kind:   models.TxKindShareProfit,
	})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, 2, txs[0].Periods)
	assert.Equal(t, 10, txs[0].Quantity)
}

// failingRepo fails the Nth Atomically call to simulate a holding whose
// settlement cannot commit.
type failingRepo struct {
	*repository.MemoryRepository
	calls  int
	failOn int
}

func (r *failingRepo) Atomically(ctx context.Context, fn func(repository.Store) error) error {
	r.calls++
	if r.calls == r.failOn {
		return assert.AnError
	}
	return r.MemoryRepository.Atomically(ctx, fn)
}

func TestAccrualMakesForwardProgressPastFailures(t *testing.T) {
	base := repository.NewMemoryRepository()
	repo := &failingRepo{MemoryRepository: base, failOn: 1}
	svc := service.NewDefaultService(repo, utils.NewLogger(), nil, "test-secret")

	userA := createUser(t, base)
	userB := createUser(t, base)
	seedUnitHolding(t, base, userA, 1440, time.Now().UTC().Add(-2*time.Hour))
	seedUnitHolding(t, base, userB, 1440, time.Now().UTC().Add(-2*time.Hour))

	summary, err := svc.RunAccrualTick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Credited)

	// Exactly one of the two users got credited; the failed holding's
	// cursor did not move, so the next tick catches it up.
	summary, err = svc.RunAccrualTick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Credited)
	assert.Equal(t, 1, summary.Skipped)

	balA, err := base.GetOrCreateBalance(context.Background(), userA)
	require.NoError(t, err)
	balB, err := base.GetOrCreateBalance(context.Background(), userB)
	require.NoError(t, err)
	assert.InDelta(t, 8.0, balA.MiningBalance+balB.MiningBalance, 1e-9)
}

func TestGetAccrualStatus(t *testing.T) {
	svc, repo := newTestService(t)
	userID := createUser(t, repo)
	holdingID := seedUnitHolding(t, repo, userID, 1440, time.Now().UTC().Add(-2*time.Hour))

	status, err := svc.GetAccrualStatus(context.Background(), holdingID)
	require.NoError(t, err)
	assert.Equal(t, holdingID, status.HoldingID)
	assert.Equal(t, models.HoldingActive, status.HoldingStatus)
	assert.Equal(t, 2, status.HoursSinceLastAccrual)
}
