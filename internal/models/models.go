package models

import (
	"time"
)

// Transaction kinds
const (
	TxKindWithdrawal    = "withdrawal"
	TxKindCredit        = "credit"
	TxKindUnitPurchase  = "unit_purchase"
	TxKindUnitSale      = "unit_sale"
	TxKindSharePurchase = "share_purchase"
	TxKindShareSale     = "share_sale"
	TxKindShareProfit   = "share_profit"
	TxKindUnitProfit    = "unit_profit"
)

// Transaction statuses
const (
	TxStatusPending   = "pending"
	TxStatusCompleted = "completed"
	TxStatusApproved  = "approved"
	TxStatusRejected  = "rejected"
)

// Holding statuses
const (
	HoldingActive   = "active"
	HoldingInactive = "inactive"
)

// Balance buckets
const (
	BucketAdmin  = "admin"
	BucketMining = "mining"
)

// User roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a platform account
type User struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	Name      string    `db:"name" json:"name"`
	Password  string    `db:"password" json:"-"` // Password hash, not returned in JSON
	Role      string    `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Balance holds a user's funds split into two buckets. TotalBalance is
// always the sum of the two buckets and is recomputed on every write.
type Balance struct {
	UserID        string    `db:"user_id" json:"userId"`
	AdminBalance  float64   `db:"admin_balance" json:"adminBalance"`
	MiningBalance float64   `db:"mining_balance" json:"miningBalance"`
	TotalBalance  float64   `db:"total_balance" json:"totalBalance"`
	LastUpdated   time.Time `db:"last_updated" json:"lastUpdated"`
}

// Recompute keeps TotalBalance consistent with the buckets.
func (b *Balance) Recompute(now time.Time) {
	b.TotalBalance = b.AdminBalance + b.MiningBalance
	b.LastUpdated = now
}

// MiningMachine is a catalog entry. Share economics apply only when
// ShareBased is set.
type MiningMachine struct {
	ID               string    `db:"id" json:"id"`
	Name             string    `db:"name" json:"name"`
	Hashrate         string    `db:"hashrate" json:"hashrate"`
	PowerConsumption float64   `db:"power_consumption" json:"powerConsumption"`
	Price            float64   `db:"price" json:"price"`
	CoinsMined       string    `db:"coins_mined" json:"coinsMined"`
	MonthlyProfit    float64   `db:"monthly_profit" json:"monthlyProfit"`
	Description      string    `db:"description" json:"description"`
	ShareBased       bool      `db:"share_based" json:"shareBased"`
	SharePrice       float64   `db:"share_price" json:"sharePrice,omitempty"`
	TotalShares      int       `db:"total_shares" json:"totalShares,omitempty"`
	AvailableShares  int       `db:"available_shares" json:"availableShares,omitempty"`
	ProfitPerShare   float64   `db:"profit_per_share" json:"profitPerShare,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
}

// UnitHolding is one whole machine owned by a user. Machine terms are
// copied at purchase time so later catalog edits don't change a
// customer's terms.
type UnitHolding struct {
	ID               string    `db:"id" json:"id"`
	UserID           string    `db:"user_id" json:"userId"`
	MachineID        string    `db:"machine_id" json:"machineId"`
	MachineName      string    `db:"machine_name" json:"machineName"`
	Price            float64   `db:"price" json:"price"`
	MonthlyProfit    float64   `db:"monthly_profit" json:"monthlyProfit"`
	PowerConsumption float64   `db:"power_consumption" json:"powerConsumption"`
	Hashrate         string    `db:"hashrate" json:"hashrate"`
	Status           string    `db:"status" json:"status"`
	AccruedProfit    float64   `db:"accrued_profit" json:"accruedProfit"`
	LastAccrualAt    time.Time `db:"last_accrual_at" json:"lastAccrualAt"`
	AssignedAt       time.Time `db:"assigned_at" json:"assignedAt"`
}

// ShareHolding is a fractional stake in a share-based catalog machine.
// Share availability lives on the catalog machine; per-share economics
// are snapshotted at purchase.
type ShareHolding struct {
	ID                string    `db:"id" json:"id"`
	UserID            string    `db:"user_id" json:"userId"`
	MachineID         string    `db:"machine_id" json:"machineId"`
	ShareCount        int       `db:"share_count" json:"shareCount"`
	PricePerShare     float64   `db:"price_per_share" json:"pricePerShare"`
	ProfitPerShare    float64   `db:"profit_per_share" json:"profitPerShare"`
	TotalInvestment   float64   `db:"total_investment" json:"totalInvestment"`
	TotalProfitEarned float64   `db:"total_profit_earned" json:"totalProfitEarned"`
	Status            string    `db:"status" json:"status"`
	LastAccrualAt     time.Time `db:"last_accrual_at" json:"lastAccrualAt"`
	PurchasedAt       time.Time `db:"purchased_at" json:"purchasedAt"`
}

// Transaction is the append-only audit record for every balance-affecting
// event. Records are immutable once written except for the single
// pending -> approved|rejected transition used by withdrawals.
type Transaction struct {
	ID            string     `db:"id" json:"id"`
	UserID        string     `db:"user_id" json:"userId"`
	Amount        float64    `db:"amount" json:"amount"`
	Kind          string     `db:"kind" json:"kind"`
	Status        string     `db:"status" json:"status"`
	BalanceBefore float64    `db:"balance_before" json:"balanceBefore"`
	BalanceAfter  float64    `db:"balance_after" json:"balanceAfter"`
	MachineID     string     `db:"machine_id" json:"machineId,omitempty"`
	MachineName   string     `db:"machine_name" json:"machineName,omitempty"`
	Quantity      int        `db:"quantity" json:"quantity,omitempty"`
	PricePerUnit  float64    `db:"price_per_unit" json:"pricePerUnit,omitempty"`
	Periods       int        `db:"periods" json:"periods,omitempty"`
	Detail        string     `db:"detail" json:"detail,omitempty"`
	AdminComment  string     `db:"admin_comment" json:"adminComment,omitempty"`
	ProcessedBy   string     `db:"processed_by" json:"processedBy,omitempty"`
	ProcessedAt   *time.Time `db:"processed_at" json:"processedAt,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
}
