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

// RequestWithdrawal records a pending withdrawal. No funds move and
// nothing is reserved until an admin approves; the balance is checked
// again at decision time.
func (s *DefaultService) RequestWithdrawal(ctx context.Context, userID string, amount float64) (*models.TransactionResponse, error) {
	if amount <= 0 {
		return nil, apperrors.Validation("amount must be positive")
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}
	if user == nil {
		return nil, apperrors.NotFound("user %s not found", userID)
	}

	balance, err := s.repo.GetBalance(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting balance: %w", err)
	}
	if balance == nil {
		return nil, apperrors.NotFound("no balance for user %s", userID)
	}
	if amount > balance.TotalBalance {
		return nil, apperrors.InsufficientFunds("balance %.2f is less than requested %.2f", balance.TotalBalance, amount)
	}

	tx := &models.Transaction{
		UserID:        userID,
		Amount:        amount,
		Kind:          models.TxKindWithdrawal,
		Status:        models.TxStatusPending,
		BalanceBefore: balance.TotalBalance,
		BalanceAfter:  balance.TotalBalance - amount,
		Detail:        fmt.Sprintf("Withdrawal request for %.2f", amount),
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.repo.CreateTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("error writing transaction: %w", err)
	}

	metrics.Transactions.WithLabelValues(models.TxKindWithdrawal).Inc()
	s.notifier.Publish(notify.Event{
		UserID: userID,
		Kind:   notify.EventWithdrawalRequest,
		Payload: map[string]interface{}{
			"amount":        amount,
			"transactionId": tx.ID,
		},
	})
	return &models.TransactionResponse{Status: "success", Transaction: tx}, nil
}

// DecideWithdrawal resolves a pending withdrawal. Approval re-validates
// the balance and drains the mining bucket first, then the admin bucket.
// The status flip is one-way; a decided withdrawal cannot be decided
// again.
func (s *DefaultService) DecideWithdrawal(ctx context.Context, transactionID, adminID, action, comment string) (*models.TransactionResponse, error) {
	if action != models.TxStatusApproved && action != models.TxStatusRejected {
		return nil, apperrors.Validation("action must be %q or %q", models.TxStatusApproved, models.TxStatusRejected)
	}

	var resp *models.TransactionResponse
	err := s.repo.Atomically(ctx, func(store repository.Store) error {
		tx, err := store.GetTransaction(ctx, transactionID)
		if err != nil {
			return fmt.Errorf("error getting transaction: %w", err)
		}
		if tx == nil {
			return apperrors.NotFound("transaction %s not found", transactionID)
		}
		if tx.Kind != models.TxKindWithdrawal {
			return apperrors.InvalidState("transaction %s is not a withdrawal", transactionID)
		}
		if tx.Status != models.TxStatusPending {
			return apperrors.InvalidState("withdrawal %s already %s", transactionID, tx.Status)
		}

		now := time.Now().UTC()
		if action == models.TxStatusApproved {
			balance, err := store.GetOrCreateBalance(ctx, tx.UserID)
			if err != nil {
				return fmt.Errorf("error getting balance: %w", err)
			}
			if tx.Amount > balance.TotalBalance {
				return apperrors.InsufficientFunds("balance %.2f is less than withdrawal %.2f", balance.TotalBalance, tx.Amount)
			}

			// Take from mining earnings first, top up from the
			// admin bucket.
			remaining := tx.Amount
			fromMining := remaining
			if fromMining > balance.MiningBalance {
				fromMining = balance.MiningBalance
			}
			balance.MiningBalance -= fromMining
			balance.AdminBalance -= remaining - fromMining
			balance.Recompute(now)
			if err := store.SaveBalance(ctx, balance); err != nil {
				return fmt.Errorf("error saving balance: %w", err)
			}
		}

		tx.Status = action
		tx.AdminComment = comment
		tx.ProcessedBy = adminID
		tx.ProcessedAt = &now
		if err := store.UpdateTransactionStatus(ctx, tx); err != nil {
			return fmt.Errorf("error updating transaction: %w", err)
		}

		resp = &models.TransactionResponse{Status: "success", Transaction: tx}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Publish(notify.Event{
		UserID: resp.Transaction.UserID,
		Kind:   notify.EventWithdrawalDecision,
		Payload: map[string]interface{}{
			"transactionId": transactionID,
			"decision":      action,
			"amount":        resp.Transaction.Amount,
		},
	})
	return resp, nil
}
