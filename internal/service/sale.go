package service

import (
	"context"
	"fmt"
	"time"

	"github.com/hashvault/mining-server/internal/apperrors"
	"github.com/hashvault/mining-server/internal/metrics"
	"github.com/hashvault/mining-server/internal/models"
	"github.com/hashvault/mining-server/internal/notify"
	"github.com/hashvault/mining-server/internal/repository"
)

// Selling returns 90% of the original value to the admin bucket; the
// remaining 10% is a retained deduction and is not moved anywhere.
const saleReturnRate = 0.9

// SellUnit sells a whole machine back to the platform. The holding is
// flipped to inactive, never hard-deleted, so its audit trail survives.
func (s *DefaultService) SellUnit(ctx context.Context, holdingID string) (*models.SellUnitResponse, error) {
	var resp *models.SellUnitResponse
	err := s.repo.Atomically(ctx, func(store repository.Store) error {
		holding, err := store.GetUnitHolding(ctx, holdingID)
		if err != nil {
			return fmt.Errorf("error getting holding: %w", err)
		}
		if holding == nil {
			return apperrors.NotFound("holding %s not found", holdingID)
		}
		if holding.Status != models.HoldingActive {
			return apperrors.InvalidState("cannot sell inactive holding %s", holdingID)
		}

		originalPrice := holding.Price
		sellingPrice := originalPrice * saleReturnRate
		deduction := originalPrice - sellingPrice

		balance, err := store.GetOrCreateBalance(ctx, holding.UserID)
		if err != nil {
			return fmt.Errorf("error getting balance: %w", err)
		}

		now := time.Now().UTC()
		before := balance.TotalBalance
		balance.AdminBalance += sellingPrice
		balance.Recompute(now)
		if err := store.SaveBalance(ctx, balance); err != nil {
			return fmt.Errorf("error saving balance: %w", err)
		}

		holding.Status = models.HoldingInactive
		if err := store.SaveUnitHolding(ctx, holding); err != nil {
			return fmt.Errorf("error saving holding: %w", err)
		}

		tx := &models.Transaction{
			UserID:        holding.UserID,
			Amount:        sellingPrice,
			Kind:          models.TxKindUnitSale,
			Status:        models.TxStatusCompleted,
			BalanceBefore: before,
			BalanceAfter:  balance.TotalBalance,
			MachineID:     holding.MachineID,
			MachineName:   holding.MachineName,
			Quantity:      1,
			PricePerUnit:  originalPrice,
			Detail:        fmt.Sprintf("Sale of %s: original %.2f, deduction %.2f, proceeds %.2f", holding.MachineName, originalPrice, deduction, sellingPrice),
			CreatedAt:     now,
		}
		if err := store.CreateTransaction(ctx, tx); err != nil {
			return fmt.Errorf("error writing transaction: %w", err)
		}

		resp = &models.SellUnitResponse{
			Status:      "success",
			Transaction: tx,
			Balance:     balance,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.Transactions.WithLabelValues(models.TxKindUnitSale).Inc()
	s.notifier.Publish(notify.Event{
		UserID: resp.Transaction.UserID,
		Kind:   notify.EventUnitSale,
		Payload: map[string]interface{}{
			"machineName": resp.Transaction.MachineName,
			"proceeds":    resp.Transaction.Amount,
			"newBalance":  resp.Balance.TotalBalance,
		},
	})
	return resp, nil
}

// SellShares sells part or all of a share holding. Sold shares return to
// the machine's available pool; a partial sale reduces the stake in
// place, a full sale flips the holding to inactive.
func (s *DefaultService) SellShares(ctx context.Context, holdingID string, shareCount int) (*models.SellSharesResponse, error) {
	if shareCount < 1 {
		return nil, apperrors.Validation("shareCount must be at least 1")
	}

	var resp *models.SellSharesResponse
	err := s.repo.Atomically(ctx, func(store repository.Store) error {
		holding, err := store.GetShareHolding(ctx, holdingID)
		if err != nil {
			return fmt.Errorf("error getting holding: %w", err)
		}
		if holding == nil {
			return apperrors.NotFound("holding %s not found", holdingID)
		}
		if holding.Status != models.HoldingActive {
			return apperrors.InvalidState("cannot sell inactive holding %s", holdingID)
		}
		if shareCount > holding.ShareCount {
			return apperrors.InvalidState("holding has %d shares, cannot sell %d", holding.ShareCount, shareCount)
		}

		machine, err := store.GetMachine(ctx, holding.MachineID)
		if err != nil {
			return fmt.Errorf("error getting machine: %w", err)
		}
		if machine == nil {
			return apperrors.NotFound("machine %s not found", holding.MachineID)
		}

		originalValue := holding.PricePerShare * float64(shareCount)
		sellingPrice := originalValue * saleReturnRate
		deduction := originalValue - sellingPrice

		balance, err := store.GetOrCreateBalance(ctx, holding.UserID)
		if err != nil {
			return fmt.Errorf("error getting balance: %w", err)
		}

		now := time.Now().UTC()
		before := balance.TotalBalance
		balance.AdminBalance += sellingPrice
		balance.Recompute(now)
		if err := store.SaveBalance(ctx, balance); err != nil {
			return fmt.Errorf("error saving balance: %w", err)
		}

		// Sold shares go back into the pool so availability keeps
		// matching totalShares minus active stakes.
		machine.AvailableShares += shareCount
		if err := store.SaveMachine(ctx, machine); err != nil {
			return fmt.Errorf("error saving machine: %w", err)
		}

		if shareCount == holding.ShareCount {
			holding.ShareCount = 0
			holding.TotalInvestment = 0
			holding.Status = models.HoldingInactive
		} else {
			holding.ShareCount -= shareCount
			holding.TotalInvestment = holding.PricePerShare * float64(holding.ShareCount)
		}
		if err := store.SaveShareHolding(ctx, holding); err != nil {
			return fmt.Errorf("error saving holding: %w", err)
		}

		tx := &models.Transaction{
			UserID:        holding.UserID,
			Amount:        sellingPrice,
			Kind:          models.TxKindShareSale,
			Status:        models.TxStatusCompleted,
			BalanceBefore: before,
			BalanceAfter:  balance.TotalBalance,
			MachineID:     machine.ID,
			MachineName:   machine.Name,
			Quantity:      shareCount,
			PricePerUnit:  holding.PricePerShare,
			Detail:        fmt.Sprintf("Sale of %d shares of %s: original %.2f, deduction %.2f, proceeds %.2f", shareCount, machine.Name, originalValue, deduction, sellingPrice),
			CreatedAt:     now,
		}
		if err := store.CreateTransaction(ctx, tx); err != nil {
			return fmt.Errorf("error writing transaction: %w", err)
		}

		resp = &models.SellSharesResponse{
			Status:      "success",
			Transaction: tx,
			Holding:     holding,
			Balance:     balance,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.Transactions.WithLabelValues(models.TxKindShareSale).Inc()
	s.notifier.Publish(notify.Event{
		UserID: resp.Transaction.UserID,
		Kind:   notify.EventShareSale,
		Payload: map[string]interface{}{
			"machineName": resp.Transaction.MachineName,
			"shareCount":  shareCount,
			"proceeds":    resp.Transaction.Amount,
			"newBalance":  resp.Balance.TotalBalance,
		},
	})
	return resp, nil
}
