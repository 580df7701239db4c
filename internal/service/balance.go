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

// GetBalance returns the user's balance, creating a zeroed one on first
// access.
func (s *DefaultService) GetBalance(ctx context.Context, userID string) (*models.BalanceResponse, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}
	if user == nil {
		return nil, apperrors.NotFound("user %s not found", userID)
	}

	balance, err := s.repo.GetOrCreateBalance(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting balance: %w", err)
	}

	return &models.BalanceResponse{Status: "success", Balance: balance}, nil
}

// CreditBalance deposits funds into one of a user's buckets. Admin-only;
// the acting admin is recorded on the transaction.
func (s *DefaultService) CreditBalance(ctx context.Context, adminID string, req models.CreditBalanceRequest) (*models.TransactionResponse, error) {
	if req.Amount <= 0 {
		return nil, apperrors.Validation("amount must be positive")
	}
	if req.Bucket != models.BucketAdmin && req.Bucket != models.BucketMining {
		return nil, apperrors.Validation("bucket must be %q or %q", models.BucketAdmin, models.BucketMining)
	}

	var resp *models.TransactionResponse
	err := s.repo.Atomically(ctx, func(store repository.Store) error {
		user, err := store.GetUserByID(ctx, req.UserID)
		if err != nil {
			return fmt.Errorf("error getting user: %w", err)
		}
		if user == nil {
			return apperrors.NotFound("user %s not found", req.UserID)
		}

		balance, err := store.GetOrCreateBalance(ctx, req.UserID)
		if err != nil {
			return fmt.Errorf("error getting balance: %w", err)
		}

		now := time.Now().UTC()
		before := balance.TotalBalance
		if req.Bucket == models.BucketMining {
			balance.MiningBalance += req.Amount
		} else {
			balance.AdminBalance += req.Amount
		}
		balance.Recompute(now)
		if err := store.SaveBalance(ctx, balance); err != nil {
			return fmt.Errorf("error saving balance: %w", err)
		}

		tx := &models.Transaction{
			UserID:        req.UserID,
			Amount:        req.Amount,
			Kind:          models.TxKindCredit,
			Status:        models.TxStatusCompleted,
			BalanceBefore: before,
			BalanceAfter:  balance.TotalBalance,
			Detail:        fmt.Sprintf("Credit of %.2f to %s bucket", req.Amount, req.Bucket),
			ProcessedBy:   adminID,
			CreatedAt:     now,
		}
		if err := store.CreateTransaction(ctx, tx); err != nil {
			return fmt.Errorf("error writing transaction: %w", err)
		}

		resp = &models.TransactionResponse{Status: "success", Transaction: tx}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.Transactions.WithLabelValues(models.TxKindCredit).Inc()
	s.notifier.Publish(notify.Event{
		UserID: req.UserID,
		Kind:   notify.EventBalanceCredit,
		Payload: map[string]interface{}{
			"amount": req.Amount,
			"bucket": req.Bucket,
		},
	})
	return resp, nil
}

// GetHoldings lists a user's unit and share holdings, active and
// inactive.
func (s *DefaultService) GetHoldings(ctx context.Context, userID string) (*models.HoldingsResponse, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}
	if user == nil {
		return nil, apperrors.NotFound("user %s not found", userID)
	}

	units, err := s.repo.ListUnitHoldingsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing unit holdings: %w", err)
	}
	shares, err := s.repo.ListShareHoldingsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing share holdings: %w", err)
	}

	return &models.HoldingsResponse{
		Status:        "success",
		UnitHoldings:  units,
		ShareHoldings: shares,
	}, nil
}

// GetTransactions returns transaction history filtered by user, kind and
// status, newest first.
func (s *DefaultService) GetTransactions(ctx context.Context, filter repository.TransactionFilter) (*models.TransactionListResponse, error) {
	txs, err := s.repo.ListTransactions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("error listing transactions: %w", err)
	}
	return &models.TransactionListResponse{
		Status:       "success",
		Transactions: txs,
		Total:        len(txs),
	}, nil
}
