package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/hashvault/mining-server/internal/models"
)

// PostgresRepository implements the Repository interface using PostgreSQL.
// Atomic units run as serializable transactions; row locks on the
// contended records (balances, machines, holdings) keep conflict aborts
// rare, and aborts that do happen are retried by Atomically.
type PostgresRepository struct {
	pgStore
	db    *sqlx.DB
	retry RetryPolicy
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sqlx.DB, retry RetryPolicy) *PostgresRepository {
	return &PostgresRepository{
		pgStore: pgStore{q: db},
		db:      db,
		retry:   retry,
	}
}

// Atomically runs fn inside a serializable transaction, retrying the
// whole unit on serialization failures and deadlocks up to the retry
// budget. Validation errors returned by fn roll the unit back and are
// surfaced immediately without retry.
func (r *PostgresRepository) Atomically(ctx context.Context, fn func(Store) error) error {
	return RunWithRetry(ctx, r.retry, isWriteConflict, func() error {
		tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
		if err != nil {
			return fmt.Errorf("begin atomic unit: %w", err)
		}

		if err := fn(&pgStore{q: tx, inTx: true}); err != nil {
			tx.Rollback()
			return err
		}

		return tx.Commit()
	})
}

// isWriteConflict reports whether err is a Postgres serialization
// failure (40001) or deadlock (40P01), the two aborts that a fresh
// attempt can resolve.
func isWriteConflict(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}

// pgStore implements Store over either a live connection or a
// transaction. Reads inside a transaction take row locks.
type pgStore struct {
	q    sqlx.ExtContext
	inTx bool
}

func (s *pgStore) lock() string {
	if s.inTx {
		return " FOR UPDATE"
	}
	return ""
}

// User repository methods
func (s *pgStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	query := `
		INSERT INTO users (id, email, name, password, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.q.ExecContext(ctx, query,
		user.ID, user.Email, user.Name, user.Password, user.Role, user.CreatedAt, user.UpdatedAt)
	return err
}

func (s *pgStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := sqlx.GetContext(ctx, s.q, &user, `SELECT * FROM users WHERE email = $1`, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, err
	}
	return &user, nil
}

func (s *pgStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := sqlx.GetContext(ctx, s.q, &user, `SELECT * FROM users WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// Balance repository methods
func (s *pgStore) GetBalance(ctx context.Context, userID string) (*models.Balance, error) {
	var balance models.Balance
	query := `SELECT * FROM balances WHERE user_id = $1` + s.lock()
	err := sqlx.GetContext(ctx, s.q, &balance, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &balance, nil
}

func (s *pgStore) GetOrCreateBalance(ctx context.Context, userID string) (*models.Balance, error) {
	// ON CONFLICT DO NOTHING makes concurrent first access safe: exactly
	// one row exists per user afterward.
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO balances (user_id, admin_balance, mining_balance, total_balance, last_updated)
		VALUES ($1, 0, 0, 0, $2)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	return s.GetBalance(ctx, userID)
}

func (s *pgStore) SaveBalance(ctx context.Context, balance *models.Balance) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE balances
		SET admin_balance = $2, mining_balance = $3, total_balance = $4, last_updated = $5
		WHERE user_id = $1
	`, balance.UserID, balance.AdminBalance, balance.MiningBalance, balance.TotalBalance, balance.LastUpdated)
	return err
}

// Catalog repository methods
func (s *pgStore) CreateMachine(ctx context.Context, machine *models.MiningMachine) error {
	if machine.ID == "" {
		machine.ID = uuid.New().String()
	}
	machine.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO machines (id, name, hashrate, power_consumption, price, coins_mined,
			monthly_profit, description, share_based, share_price, total_shares,
			available_shares, profit_per_share, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := s.q.ExecContext(ctx, query,
		machine.ID, machine.Name, machine.Hashrate, machine.PowerConsumption, machine.Price,
		machine.CoinsMined, machine.MonthlyProfit, machine.Description, machine.ShareBased,
		machine.SharePrice, machine.TotalShares, machine.AvailableShares, machine.ProfitPerShare,
		machine.CreatedAt)
	return err
}

func (s *pgStore) GetMachine(ctx context.Context, id string) (*models.MiningMachine, error) {
	var machine models.MiningMachine
	query := `SELECT * FROM machines WHERE id = $1` + s.lock()
	err := sqlx.GetContext(ctx, s.q, &machine, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &machine, nil
}

func (s *pgStore) ListMachines(ctx context.Context) ([]models.MiningMachine, error) {
	var machines []models.MiningMachine
	err := sqlx.SelectContext(ctx, s.q, &machines, `SELECT * FROM machines ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	return machines, nil
}

func (s *pgStore) SaveMachine(ctx context.Context, machine *models.MiningMachine) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE machines
		SET name = $2, hashrate = $3, power_consumption = $4, price = $5, coins_mined = $6,
			monthly_profit = $7, description = $8, share_based = $9, share_price = $10,
			total_shares = $11, available_shares = $12, profit_per_share = $13
		WHERE id = $1
	`, machine.ID, machine.Name, machine.Hashrate, machine.PowerConsumption, machine.Price,
		machine.CoinsMined, machine.MonthlyProfit, machine.Description, machine.ShareBased,
		machine.SharePrice, machine.TotalShares, machine.AvailableShares, machine.ProfitPerShare)
	return err
}

// Unit holding repository methods
func (s *pgStore) CreateUnitHoldings(ctx context.Context, holdings []*models.UnitHolding) error {
	query := `
		INSERT INTO unit_holdings (id, user_id, machine_id, machine_name, price, monthly_profit,
			power_consumption, hashrate, status, accrued_profit, last_accrual_at, assigned_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	for _, h := range holdings {
		if h.ID == "" {
			h.ID = uuid.New().String()
		}
		_, err := s.q.ExecContext(ctx, query,
			h.ID, h.UserID, h.MachineID, h.MachineName, h.Price, h.MonthlyProfit,
			h.PowerConsumption, h.Hashrate, h.Status, h.AccruedProfit, h.LastAccrualAt, h.AssignedAt)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *pgStore) GetUnitHolding(ctx context.Context, id string) (*models.UnitHolding, error) {
	var holding models.UnitHolding
	query := `SELECT * FROM unit_holdings WHERE id = $1` + s.lock()
	err := sqlx.GetContext(ctx, s.q, &holding, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &holding, nil
}

func (s *pgStore) ListUnitHoldingsByUser(ctx context.Context, userID string) ([]models.UnitHolding, error) {
	var holdings []models.UnitHolding
	err := sqlx.SelectContext(ctx, s.q, &holdings,
		`SELECT * FROM unit_holdings WHERE user_id = $1 ORDER BY assigned_at`, userID)
	if err != nil {
		return nil, err
	}
	return holdings, nil
}

func (s *pgStore) ListActiveUnitHoldings(ctx context.Context) ([]models.UnitHolding, error) {
	var holdings []models.UnitHolding
	err := sqlx.SelectContext(ctx, s.q, &holdings,
		`SELECT * FROM unit_holdings WHERE status = $1 ORDER BY assigned_at`, models.HoldingActive)
	if err != nil {
		return nil, err
	}
	return holdings, nil
}

func (s *pgStore) SaveUnitHolding(ctx context.Context, holding *models.UnitHolding) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE unit_holdings
		SET status = $2, accrued_profit = $3, last_accrual_at = $4
		WHERE id = $1
	`, holding.ID, holding.Status, holding.AccruedProfit, holding.LastAccrualAt)
	return err
}

// Share holding repository methods
func (s *pgStore) CreateShareHolding(ctx context.Context, holding *models.ShareHolding) error {
	if holding.ID == "" {
		holding.ID = uuid.New().String()
	}
	query := `
		INSERT INTO share_holdings (id, user_id, machine_id, share_count, price_per_share,
			profit_per_share, total_investment, total_profit_earned, status, last_accrual_at, purchased_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.q.ExecContext(ctx, query,
		holding.ID, holding.UserID, holding.MachineID, holding.ShareCount, holding.PricePerShare,
		holding.ProfitPerShare, holding.TotalInvestment, holding.TotalProfitEarned, holding.Status,
		holding.LastAccrualAt, holding.PurchasedAt)
	return err
}

func (s *pgStore) GetShareHolding(ctx context.Context, id string) (*models.ShareHolding, error) {
	var holding models.ShareHolding
	query := `SELECT * FROM share_holdings WHERE id = $1` + s.lock()
	err := sqlx.GetContext(ctx, s.q, &holding, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &holding, nil
}

func (s *pgStore) FindActiveShareHolding(ctx context.Context, userID, machineID string) (*models.ShareHolding, error) {
	var holding models.ShareHolding
	query := `
		SELECT * FROM share_holdings
		WHERE user_id = $1 AND machine_id = $2 AND status = $3` + s.lock()
	err := sqlx.GetContext(ctx, s.q, &holding, query, userID, machineID, models.HoldingActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &holding, nil
}

func (s *pgStore) ListShareHoldingsByUser(ctx context.Context, userID string) ([]models.ShareHolding, error) {
	var holdings []models.ShareHolding
	err := sqlx.SelectContext(ctx, s.q, &holdings,
		`SELECT * FROM share_holdings WHERE user_id = $1 ORDER BY purchased_at`, userID)
	if err != nil {
		return nil, err
	}
	return holdings, nil
}

func (s *pgStore) ListActiveShareHoldings(ctx context.Context) ([]models.ShareHolding, error) {
	var holdings []models.ShareHolding
	err := sqlx.SelectContext(ctx, s.q, &holdings,
		`SELECT * FROM share_holdings WHERE status = $1 ORDER BY purchased_at`, models.HoldingActive)
	if err != nil {
		return nil, err
	}
	return holdings, nil
}

func (s *pgStore) SumActiveShareCount(ctx context.Context, machineID string) (int, error) {
	var total int
	err := sqlx.GetContext(ctx, s.q, &total, `
		SELECT COALESCE(SUM(share_count), 0) FROM share_holdings
		WHERE machine_id = $1 AND status = $2
	`, machineID, models.HoldingActive)
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (s *pgStore) SaveShareHolding(ctx context.Context, holding *models.ShareHolding) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE share_holdings
		SET share_count = $2, total_investment = $3, total_profit_earned = $4,
			status = $5, last_accrual_at = $6
		WHERE id = $1
	`, holding.ID, holding.ShareCount, holding.TotalInvestment, holding.TotalProfitEarned,
		holding.Status, holding.LastAccrualAt)
	return err
}

// Transaction log repository methods
func (s *pgStore) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO transactions (id, user_id, amount, kind, status, balance_before, balance_after,
			machine_id, machine_name, quantity, price_per_unit, periods, detail, admin_comment,
			processed_by, processed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err := s.q.ExecContext(ctx, query,
		tx.ID, tx.UserID, tx.Amount, tx.Kind, tx.Status, tx.BalanceBefore, tx.BalanceAfter,
		tx.MachineID, tx.MachineName, tx.Quantity, tx.PricePerUnit, tx.Periods, tx.Detail,
		tx.AdminComment, tx.ProcessedBy, tx.ProcessedAt, tx.CreatedAt)
	return err
}

func (s *pgStore) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	var tx models.Transaction
	query := `SELECT * FROM transactions WHERE id = $1` + s.lock()
	err := sqlx.GetContext(ctx, s.q, &tx, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &tx, nil
}

// UpdateTransactionStatus applies the one-way pending transition of a
// withdrawal record. All other transaction fields are immutable.
func (s *pgStore) UpdateTransactionStatus(ctx context.Context, tx *models.Transaction) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE transactions
		SET status = $2, admin_comment = $3, processed_by = $4, processed_at = $5
		WHERE id = $1
	`, tx.ID, tx.Status, tx.AdminComment, tx.ProcessedBy, tx.ProcessedAt)
	return err
}

func (s *pgStore) ListTransactions(ctx context.Context, filter TransactionFilter) ([]models.Transaction, error) {
	query := `SELECT * FROM transactions WHERE 1=1`
	args := []interface{}{}

	if filter.UserID != "" {
		args = append(args, filter.UserID)
		query += fmt.Sprintf(" AND user_id = $%d", len(args))
	}
	if filter.Kind != "" {
		args = append(args, filter.Kind)
		query += fmt.Sprintf(" AND kind = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	var txs []models.Transaction
	err := sqlx.SelectContext(ctx, s.q, &txs, query, args...)
	if err != nil {
		return nil, err
	}
	return txs, nil
}
