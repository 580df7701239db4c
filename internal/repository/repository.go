package repository

import (
	"context"

	"github.com/hashvault/mining-server/internal/models"
)

// TransactionFilter narrows transaction-log queries. Zero-valued fields
// are ignored.
type TransactionFilter struct {
	UserID string
	Kind   string
	Status string
	Limit  int
	Offset int
}

// Store defines the data-access surface. Getters return (nil, nil) when
// the record does not exist. Inside an atomic unit the same methods read
// current state under the unit's isolation; writes staged through a unit
// become visible only when the unit commits.
type Store interface {
	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// Balance operations
	GetBalance(ctx context.Context, userID string) (*models.Balance, error)
	GetOrCreateBalance(ctx context.Context, userID string) (*models.Balance, error)
	SaveBalance(ctx context.Context, balance *models.Balance) error

	// Catalog operations
	CreateMachine(ctx context.Context, machine *models.MiningMachine) error
	GetMachine(ctx context.Context, id string) (*models.MiningMachine, error)
	ListMachines(ctx context.Context) ([]models.MiningMachine, error)
	SaveMachine(ctx context.Context, machine *models.MiningMachine) error

	// Unit holding operations
	CreateUnitHoldings(ctx context.Context, holdings []*models.UnitHolding) error
	GetUnitHolding(ctx context.Context, id string) (*models.UnitHolding, error)
	ListUnitHoldingsByUser(ctx context.Context, userID string) ([]models.UnitHolding, error)
	ListActiveUnitHoldings(ctx context.Context) ([]models.UnitHolding, error)
	SaveUnitHolding(ctx context.Context, holding *models.UnitHolding) error

	// Share holding operations
	CreateShareHolding(ctx context.Context, holding *models.ShareHolding) error
	GetShareHolding(ctx context.Context, id string) (*models.ShareHolding, error)
	FindActiveShareHolding(ctx context.Context, userID, machineID string) (*models.ShareHolding, error)
	ListShareHoldingsByUser(ctx context.Context, userID string) ([]models.ShareHolding, error)
	ListActiveShareHoldings(ctx context.Context) ([]models.ShareHolding, error)
	SumActiveShareCount(ctx context.Context, machineID string) (int, error)
	SaveShareHolding(ctx context.Context, holding *models.ShareHolding) error

	// Transaction log operations
	CreateTransaction(ctx context.Context, tx *models.Transaction) error
	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
	UpdateTransactionStatus(ctx context.Context, tx *models.Transaction) error
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]models.Transaction, error)
}

// Repository is a Store that can also execute all-or-nothing units of
// work spanning multiple entities. The unit either commits every staged
// write or none; on write conflict the whole unit is retried from
// scratch within a bounded budget and then fails with a Conflict error.
type Repository interface {
	Store
	Atomically(ctx context.Context, fn func(Store) error) error
}
