package service

import (
	"context"
	"fmt"
	"time"

	"github.com/hashvault/mining-server/internal/apperrors"
	"github.com/hashvault/mining-server/internal/metrics"
	"github.com/hashvault/mining-server/internal/models"
	"github.com/hashvault/mining-server/internal/repository"
)

// hoursPerMonth converts a monthly profit figure to an hourly rate.
// 30 days * 24 hours.
const hoursPerMonth = 720

// AccrualResult records the outcome of one holding in a tick.
type AccrualResult struct {
	HoldingID string  `json:"holdingId"`
	Kind      string  `json:"kind"`
	Periods   int     `json:"periods"`
	Profit    float64 `json:"profit"`
	Err       string  `json:"error,omitempty"`
}

// TickSummary aggregates one accrual sweep.
type TickSummary struct {
	Processed int             `json:"processed"`
	Credited  int             `json:"credited"`
	Skipped   int             `json:"skipped"`
	Failed    int             `json:"failed"`
	Profit    float64         `json:"profit"`
	Results   []AccrualResult `json:"results"`
}

// RunAccrualTick credits mining profit to every active holding that has
// at least one full hour outstanding. Each holding is its own atomic
// unit: the holding is re-read inside the transaction, profit is
// credited to the mining bucket, and the accrual cursor moves forward,
// all or nothing. A failed holding is logged and skipped; it catches up
// on a later tick because the cursor only moves on success.
func (s *DefaultService) RunAccrualTick(ctx context.Context) (*TickSummary, error) {
	units, err := s.repo.ListActiveUnitHoldings(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing unit holdings: %w", err)
	}
	shares, err := s.repo.ListActiveShareHoldings(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing share holdings: %w", err)
	}

	summary := &TickSummary{}
	now := time.Now().UTC()

	for _, h := range units {
		res := s.accrueUnit(ctx, h.ID, now)
		summary.add(res)
	}
	for _, h := range shares {
		res := s.accrueShares(ctx, h.ID, now)
		summary.add(res)
	}

	metrics.AccrualTicks.Inc()
	metrics.AccrualProfit.Add(summary.Profit)
	s.log.Info("accrual tick: processed=%d credited=%d skipped=%d failed=%d profit=%.2f",
		summary.Processed, summary.Credited, summary.Skipped, summary.Failed, summary.Profit)
	return summary, nil
}

func (sum *TickSummary) add(res AccrualResult) {
	sum.Processed++
	switch {
	case res.Err != "":
		sum.Failed++
	case res.Profit > 0:
		sum.Credited++
		sum.Profit += res.Profit
	default:
		sum.Skipped++
	}
	sum.Results = append(sum.Results, res)
}

func (s *DefaultService) accrueUnit(ctx context.Context, holdingID string, now time.Time) AccrualResult {
	res := AccrualResult{HoldingID: holdingID, Kind: models.TxKindUnitProfit}
	err := s.repo.Atomically(ctx, func(store repository.Store) error {
		holding, err := store.GetUnitHolding(ctx, holdingID)
		if err != nil {
			return fmt.Errorf("error getting holding: %w", err)
		}
		// Sold or removed between the listing and this unit: not an
		// error, just nothing to do.
		if holding == nil || holding.Status != models.HoldingActive {
			return nil
		}

		periods := int(now.Sub(holding.LastAccrualAt) / time.Hour)
		if periods < 1 {
			return nil
		}

		profit := holding.MonthlyProfit / hoursPerMonth * float64(periods)

		balance, err := store.GetOrCreateBalance(ctx, holding.UserID)
		if err != nil {
			return fmt.Errorf("error getting balance: %w", err)
		}
		before := balance.TotalBalance
		balance.MiningBalance += profit
		balance.Recompute(now)
		if err := store.SaveBalance(ctx, balance); err != nil {
			return fmt.Errorf("error saving balance: %w", err)
		}

		holding.AccruedProfit += profit
		holding.LastAccrualAt = now
		if err := store.SaveUnitHolding(ctx, holding); err != nil {
			return fmt.Errorf("error saving holding: %w", err)
		}

		tx := &models.Transaction{
			UserID:        holding.UserID,
			Amount:        profit,
			Kind:          models.TxKindUnitProfit,
			Status:        models.TxStatusCompleted,
			BalanceBefore: before,
			BalanceAfter:  balance.TotalBalance,
			MachineID:     holding.MachineID,
			MachineName:   holding.MachineName,
			Periods:       periods,
			Detail:        fmt.Sprintf("Mining profit for %s over %d hour(s)", holding.MachineName, periods),
			CreatedAt:     now,
		}
		if err := store.CreateTransaction(ctx, tx); err != nil {
			return fmt.Errorf("error writing transaction: %w", err)
		}

		res.Periods = periods
		res.Profit = profit
		return nil
	})
	if err != nil {
		res.Err = err.Error()
		metrics.AccrualFailures.Inc()
		s.log.WithField("holdingId", holdingID).Errorf("unit accrual failed: %v", err)
	} else if res.Profit > 0 {
		metrics.Transactions.WithLabelValues(models.TxKindUnitProfit).Inc()
	}
	return res
}

func (s *DefaultService) accrueShares(ctx context.Context, holdingID string, now time.Time) AccrualResult {
	res := AccrualResult{HoldingID: holdingID, Kind: models.TxKindShareProfit}
	err := s.repo.Atomically(ctx, func(store repository.Store) error {
		holding, err := store.GetShareHolding(ctx, holdingID)
		if err != nil {
			return fmt.Errorf("error getting holding: %w", err)
		}
		if holding == nil || holding.Status != models.HoldingActive {
			return nil
		}

		periods := int(now.Sub(holding.LastAccrualAt) / time.Hour)
		if periods < 1 {
			return nil
		}

		profit := float64(holding.ShareCount) * holding.ProfitPerShare / hoursPerMonth * float64(periods)

		balance, err := store.GetOrCreateBalance(ctx, holding.UserID)
		if err != nil {
			return fmt.Errorf("error getting balance: %w", err)
		}
		before := balance.TotalBalance
		balance.MiningBalance += profit
		balance.Recompute(now)
		if err := store.SaveBalance(ctx, balance); err != nil {
			return fmt.Errorf("error saving balance: %w", err)
		}

		machine, err := store.GetMachine(ctx, holding.MachineID)
		if err != nil {
			return fmt.Errorf("error getting machine: %w", err)
		}
		machineName := ""
		if machine != nil {
			machineName = machine.Name
		}

		holding.TotalProfitEarned += profit
		holding.LastAccrualAt = now
		if err := store.SaveShareHolding(ctx, holding); err != nil {
			return fmt.Errorf("error saving holding: %w", err)
		}

		tx := &models.Transaction{
			UserID:        holding.UserID,
			Amount:        profit,
			Kind:          models.TxKindShareProfit,
			Status:        models.TxStatusCompleted,
			BalanceBefore: before,
			BalanceAfter:  balance.TotalBalance,
			MachineID:     holding.MachineID,
			MachineName:   machineName,
			Quantity:      holding.ShareCount,
			Periods:       periods,
			Detail:        fmt.Sprintf("Mining profit for %d share(s) over %d hour(s)", holding.ShareCount, periods),
			CreatedAt:     now,
		}
		if err := store.CreateTransaction(ctx, tx); err != nil {
			return fmt.Errorf("error writing transaction: %w", err)
		}

		res.Periods = periods
		res.Profit = profit
		return nil
	})
	if err != nil {
		res.Err = err.Error()
		metrics.AccrualFailures.Inc()
		s.log.WithField("holdingId", holdingID).Errorf("share accrual failed: %v", err)
	} else if res.Profit > 0 {
		metrics.Transactions.WithLabelValues(models.TxKindShareProfit).Inc()
	}
	return res
}

// GetAccrualStatus reports when a holding last accrued and how much it
// has earned. Unit holdings are checked first, then share holdings.
func (s *DefaultService) GetAccrualStatus(ctx context.Context, holdingID string) (*models.AccrualStatusResponse, error) {
	now := time.Now().UTC()

	unit, err := s.repo.GetUnitHolding(ctx, holdingID)
	if err != nil {
		return nil, fmt.Errorf("error getting holding: %w", err)
	}
	if unit != nil {
		return &models.AccrualStatusResponse{
			Status:                "success",
			HoldingID:             unit.ID,
			MachineName:           unit.MachineName,
			HoldingStatus:         unit.Status,
			LastAccrualAt:         unit.LastAccrualAt.Format(time.RFC3339),
			HoursSinceLastAccrual: int(now.Sub(unit.LastAccrualAt) / time.Hour),
			AccruedProfit:         unit.AccruedProfit,
		}, nil
	}

	share, err := s.repo.GetShareHolding(ctx, holdingID)
	if err != nil {
		return nil, fmt.Errorf("error getting holding: %w", err)
	}
	if share == nil {
		return nil, apperrors.NotFound("holding %s not found", holdingID)
	}

	machineName := ""
	if machine, err := s.repo.GetMachine(ctx, share.MachineID); err == nil && machine != nil {
		machineName = machine.Name
	}
	return &models.AccrualStatusResponse{
		Status:                "success",
		HoldingID:             share.ID,
		MachineName:           machineName,
		HoldingStatus:         share.Status,
		LastAccrualAt:         share.LastAccrualAt.Format(time.RFC3339),
		HoursSinceLastAccrual: int(now.Sub(share.LastAccrualAt) / time.Hour),
		AccruedProfit:         share.TotalProfitEarned,
	}, nil
}
