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

// PurchaseUnits buys whole machine instances. The cost is debited from
// the admin bucket; each unit gets its own holding with the machine terms
// snapshotted so later catalog edits don't change the customer's terms.
func (s *DefaultService) PurchaseUnits(ctx context.Context, userID, machineID string, quantity int) (*models.PurchaseUnitsResponse, error) {
	if quantity < 1 {
		return nil, apperrors.Validation("quantity must be at least 1")
	}

	var resp *models.PurchaseUnitsResponse
	err := s.repo.Atomically(ctx, func(store repository.Store) error {
		user, err := store.GetUserByID(ctx, userID)
		if err != nil {
			return fmt.Errorf("error getting user: %w", err)
		}
		if user == nil {
			return apperrors.NotFound("user %s not found", userID)
		}

		machine, err := store.GetMachine(ctx, machineID)
		if err != nil {
			return fmt.Errorf("error getting machine: %w", err)
		}
		if machine == nil {
			return apperrors.NotFound("machine %s not found", machineID)
		}

		balance, err := store.GetOrCreateBalance(ctx, userID)
		if err != nil {
			return fmt.Errorf("error getting balance: %w", err)
		}

		cost := machine.Price * float64(quantity)
		if balance.TotalBalance < cost {
			return apperrors.InsufficientFunds("purchase requires %.2f, available %.2f", cost, balance.TotalBalance)
		}

		now := time.Now().UTC()
		before := balance.TotalBalance
		balance.AdminBalance -= cost
		balance.Recompute(now)
		if err := store.SaveBalance(ctx, balance); err != nil {
			return fmt.Errorf("error saving balance: %w", err)
		}

		holdings := make([]*models.UnitHolding, 0, quantity)
		for i := 0; i < quantity; i++ {
			holdings = append(holdings, &models.UnitHolding{
				UserID:           userID,
				MachineID:        machine.ID,
				MachineName:      machine.Name,
				Price:            machine.Price,
				MonthlyProfit:    machine.MonthlyProfit,
				PowerConsumption: machine.PowerConsumption,
				Hashrate:         machine.Hashrate,
				Status:           models.HoldingActive,
				LastAccrualAt:    now,
				AssignedAt:       now,
			})
		}
		if err := store.CreateUnitHoldings(ctx, holdings); err != nil {
			return fmt.Errorf("error creating holdings: %w", err)
		}

		tx := &models.Transaction{
			UserID:        userID,
			Amount:        cost,
			Kind:          models.TxKindUnitPurchase,
			Status:        models.TxStatusCompleted,
			BalanceBefore: before,
			BalanceAfter:  balance.TotalBalance,
			MachineID:     machine.ID,
			MachineName:   machine.Name,
			Quantity:      quantity,
			PricePerUnit:  machine.Price,
			Detail:        fmt.Sprintf("Purchase of %d x %s", quantity, machine.Name),
			CreatedAt:     now,
		}
		if err := store.CreateTransaction(ctx, tx); err != nil {
			return fmt.Errorf("error writing transaction: %w", err)
		}

		out := make([]models.UnitHolding, len(holdings))
		for i, h := range holdings {
			out[i] = *h
		}
		resp = &models.PurchaseUnitsResponse{
			Status:      "success",
			Transaction: tx,
			Holdings:    out,
			Balance:     balance,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.Transactions.WithLabelValues(models.TxKindUnitPurchase).Inc()
	s.notifier.Publish(notify.Event{
		UserID: userID,
		Kind:   notify.EventUnitPurchase,
		Payload: map[string]interface{}{
			"machineName": resp.Transaction.MachineName,
			"quantity":    quantity,
			"totalCost":   resp.Transaction.Amount,
			"newBalance":  resp.Balance.TotalBalance,
		},
	})
	return resp, nil
}

// PurchaseShares buys a fractional stake in a share-based machine.
// Availability is re-read and decremented inside the atomic unit so two
// concurrent purchases cannot oversell the pool.
func (s *DefaultService) PurchaseShares(ctx context.Context, userID, machineID string, shareCount int) (*models.PurchaseSharesResponse, error) {
	if shareCount < 1 {
		return nil, apperrors.Validation("shareCount must be at least 1")
	}

	var resp *models.PurchaseSharesResponse
	err := s.repo.Atomically(ctx, func(store repository.Store) error {
		user, err := store.GetUserByID(ctx, userID)
		if err != nil {
			return fmt.Errorf("error getting user: %w", err)
		}
		if user == nil {
			return apperrors.NotFound("user %s not found", userID)
		}

		machine, err := store.GetMachine(ctx, machineID)
		if err != nil {
			return fmt.Errorf("error getting machine: %w", err)
		}
		if machine == nil {
			return apperrors.NotFound("machine %s not found", machineID)
		}
		if !machine.ShareBased {
			return apperrors.InvalidState("machine %s is not share-based", machineID)
		}

		if shareCount > machine.AvailableShares {
			return apperrors.InsufficientShares("only %d shares available", machine.AvailableShares)
		}

		balance, err := store.GetOrCreateBalance(ctx, userID)
		if err != nil {
			return fmt.Errorf("error getting balance: %w", err)
		}

		cost := float64(shareCount) * machine.SharePrice
		if balance.TotalBalance < cost {
			return apperrors.InsufficientFunds("purchase requires %.2f, available %.2f", cost, balance.TotalBalance)
		}

		now := time.Now().UTC()
		before := balance.TotalBalance

		machine.AvailableShares -= shareCount
		if err := store.SaveMachine(ctx, machine); err != nil {
			return fmt.Errorf("error saving machine: %w", err)
		}

		balance.AdminBalance -= cost
		balance.Recompute(now)
		if err := store.SaveBalance(ctx, balance); err != nil {
			return fmt.Errorf("error saving balance: %w", err)
		}

		holding, err := store.FindActiveShareHolding(ctx, userID, machineID)
		if err != nil {
			return fmt.Errorf("error finding holding: %w", err)
		}
		if holding != nil {
			holding.ShareCount += shareCount
			holding.TotalInvestment += cost
			if err := store.SaveShareHolding(ctx, holding); err != nil {
				return fmt.Errorf("error saving holding: %w", err)
			}
		} else {
			holding = &models.ShareHolding{
				UserID:          userID,
				MachineID:       machine.ID,
				ShareCount:      shareCount,
				PricePerShare:   machine.SharePrice,
				ProfitPerShare:  machine.ProfitPerShare,
				TotalInvestment: cost,
				Status:          models.HoldingActive,
				LastAccrualAt:   now,
				PurchasedAt:     now,
			}
			if err := store.CreateShareHolding(ctx, holding); err != nil {
				return fmt.Errorf("error creating holding: %w", err)
			}
		}

		tx := &models.Transaction{
			UserID:        userID,
			Amount:        cost,
			Kind:          models.TxKindSharePurchase,
			Status:        models.TxStatusCompleted,
			BalanceBefore: before,
			BalanceAfter:  balance.TotalBalance,
			MachineID:     machine.ID,
			MachineName:   machine.Name,
			Quantity:      shareCount,
			PricePerUnit:  machine.SharePrice,
			Detail:        fmt.Sprintf("Purchase of %d shares of %s", shareCount, machine.Name),
			CreatedAt:     now,
		}
		if err := store.CreateTransaction(ctx, tx); err != nil {
			return fmt.Errorf("error writing transaction: %w", err)
		}

		resp = &models.PurchaseSharesResponse{
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

	metrics.Transactions.WithLabelValues(models.TxKindSharePurchase).Inc()
	s.notifier.Publish(notify.Event{
		UserID: userID,
		Kind:   notify.EventSharePurchase,
		Payload: map[string]interface{}{
			"machineName": resp.Transaction.MachineName,
			"shareCount":  shareCount,
			"totalCost":   resp.Transaction.Amount,
			"newBalance":  resp.Balance.TotalBalance,
		},
	})
	return resp, nil
}
