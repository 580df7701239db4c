package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hashvault/mining-server/internal/models"
)

// MemoryRepository is an in-memory Repository with the same semantics as
// the Postgres implementation. Atomic units run against a snapshot of the
// state that replaces the live state only on success, so a failed unit
// leaves no partial writes. Units serialize on a single mutex, which
// trivially satisfies the oversell ordering guarantee. Used by tests and
// available as a standalone backend for local development.
type MemoryRepository struct {
	mu    sync.RWMutex
	state *memState
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{state: newMemState()}
}

// Atomically runs fn against a snapshot and swaps it in on success.
func (r *MemoryRepository) Atomically(ctx context.Context, fn func(Store) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := r.state.clone()
	if err := fn(&memStore{state: snapshot}); err != nil {
		return err
	}
	r.state = snapshot
	return nil
}

func (r *MemoryRepository) CreateUser(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&memStore{state: r.state}).CreateUser(ctx, user)
}

func (r *MemoryRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return (&memStore{state: r.state}).GetUserByEmail(ctx, email)
}

func (r *MemoryRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return (&memStore{state: r.state}).GetUserByID(ctx, id)
}

func (r *MemoryRepository) GetBalance(ctx context.Context, userID string) (*models.Balance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return (&memStore{state: r.state}).GetBalance(ctx, userID)
}

func (r *MemoryRepository) GetOrCreateBalance(ctx context.Context, userID string) (*models.Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&memStore{state: r.state}).GetOrCreateBalance(ctx, userID)
}

func (r *MemoryRepository) SaveBalance(ctx context.Context, balance *models.Balance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&memStore{state: r.state}).SaveBalance(ctx, balance)
}

func (r *MemoryRepository) CreateMachine(ctx context.Context, machine *models.MiningMachine) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&memStore{state: r.state}).CreateMachine(ctx, machine)
}

func (r *MemoryRepository) GetMachine(ctx context.Context, id string) (*models.MiningMachine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return (&memStore{state: r.state}).GetMachine(ctx, id)
}

func (r *MemoryRepository) ListMachines(ctx context.Context) ([]models.MiningMachine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return (&memStore{state: r.state}).ListMachines(ctx)
}

func (r *MemoryRepository) SaveMachine(ctx context.Context, machine *models.MiningMachine) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&memStore{state: r.state}).SaveMachine(ctx, machine)
}

func (r *MemoryRepository) CreateUnitHoldings(ctx context.Context, holdings []*models.UnitHolding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&memStore{state: r.state}).CreateUnitHoldings(ctx, holdings)
}

func (r *MemoryRepository) GetUnitHolding(ctx context.Context, id string) (*models.UnitHolding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return (&memStore{state: r.state}).GetUnitHolding(ctx, id)
}

func (r *MemoryRepository) ListUnitHoldingsByUser(ctx context.Context, userID string) ([]models.UnitHolding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return (&memStore{state: r.state}).ListUnitHoldingsByUser(ctx, userID)
}

func (r *MemoryRepository) ListActiveUnitHoldings(ctx context.Context) ([]models.UnitHolding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return (&memStore{state: r.state}).ListActiveUnitHoldings(ctx)
}

func (r *MemoryRepository) SaveUnitHolding(ctx context.Context, holding *models.UnitHolding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&memStore{state: r.state}).SaveUnitHolding(ctx, holding)
}

func (r *MemoryRepository) CreateShareHolding(ctx context.Context, holding *models.ShareHolding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&memStore{state: r.state}).CreateShareHolding(ctx, holding)
}

func (r *MemoryRepository) GetShareHolding(ctx context.Context, id string) (*models.ShareHolding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return (&memStore{state: r.state}).GetShareHolding(ctx, id)
}

func (r *MemoryRepository) FindActiveShareHolding(ctx context.Context, userID, machineID string) (*models.ShareHolding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return (&memStore{state: r.state}).FindActiveShareHolding(ctx, userID, machineID)
}

func (r *MemoryRepository) ListShareHoldingsByUser(ctx context.Context, userID string) ([]models.ShareHolding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return (&memStore{state: r.state}).ListShareHoldingsByUser(ctx, userID)
}

func (r *MemoryRepository) ListActiveShareHoldings(ctx context.Context) ([]models.ShareHolding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return (&memStore{state: r.state}).ListActiveShareHoldings(ctx)
}

func (r *MemoryRepository) SumActiveShareCount(ctx context.Context, machineID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return (&memStore{state: r.state}).SumActiveShareCount(ctx, machineID)
}

func (r *MemoryRepository) SaveShareHolding(ctx context.Context, holding *models.ShareHolding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&memStore{state: r.state}).SaveShareHolding(ctx, holding)
}

func (r *MemoryRepository) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&memStore{state: r.state}).CreateTransaction(ctx, tx)
}

func (r *MemoryRepository) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return (&memStore{state: r.state}).GetTransaction(ctx, id)
}

func (r *MemoryRepository) UpdateTransactionStatus(ctx context.Context, tx *models.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&memStore{state: r.state}).UpdateTransactionStatus(ctx, tx)
}

func (r *MemoryRepository) ListTransactions(ctx context.Context, filter TransactionFilter) ([]models.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return (&memStore{state: r.state}).ListTransactions(ctx, filter)
}

// memState holds all records. txOrder preserves append order of the
// transaction log.
type memState struct {
	users         map[string]*models.User
	balances      map[string]*models.Balance
	machines      map[string]*models.MiningMachine
	unitHoldings  map[string]*models.UnitHolding
	shareHoldings map[string]*models.ShareHolding
	transactions  map[string]*models.Transaction
	txOrder       []string
}

func newMemState() *memState {
	return &memState{
		users:         make(map[string]*models.User),
		balances:      make(map[string]*models.Balance),
		machines:      make(map[string]*models.MiningMachine),
		unitHoldings:  make(map[string]*models.UnitHolding),
		shareHoldings: make(map[string]*models.ShareHolding),
		transactions:  make(map[string]*models.Transaction),
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.users {
		c.users[k] = copyUser(v)
	}
	for k, v := range s.balances {
		c.balances[k] = copyBalance(v)
	}
	for k, v := range s.machines {
		c.machines[k] = copyMachine(v)
	}
	for k, v := range s.unitHoldings {
		c.unitHoldings[k] = copyUnitHolding(v)
	}
	for k, v := range s.shareHoldings {
		c.shareHoldings[k] = copyShareHolding(v)
	}
	for k, v := range s.transactions {
		c.transactions[k] = copyTransaction(v)
	}
	c.txOrder = append([]string(nil), s.txOrder...)
	return c
}

func copyUser(u *models.User) *models.User {
	c := *u
	return &c
}

func copyBalance(b *models.Balance) *models.Balance {
	c := *b
	return &c
}

func copyMachine(m *models.MiningMachine) *models.MiningMachine {
	c := *m
	return &c
}

func copyUnitHolding(h *models.UnitHolding) *models.UnitHolding {
	c := *h
	return &c
}

func copyShareHolding(h *models.ShareHolding) *models.ShareHolding {
	c := *h
	return &c
}

func copyTransaction(t *models.Transaction) *models.Transaction {
	c := *t
	if t.ProcessedAt != nil {
		at := *t.ProcessedAt
		c.ProcessedAt = &at
	}
	return &c
}

// memStore implements Store over a memState. Getters return copies so a
// caller's mutations only land through an explicit Save.
type memStore struct {
	state *memState
}

func (s *memStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	s.state.users[user.ID] = copyUser(user)
	return nil
}

func (s *memStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range s.state.users {
		if u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, nil
}

func (s *memStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := s.state.users[id]; ok {
		return copyUser(u), nil
	}
	return nil, nil
}

func (s *memStore) GetBalance(ctx context.Context, userID string) (*models.Balance, error) {
	if b, ok := s.state.balances[userID]; ok {
		return copyBalance(b), nil
	}
	return nil, nil
}

func (s *memStore) GetOrCreateBalance(ctx context.Context, userID string) (*models.Balance, error) {
	if b, ok := s.state.balances[userID]; ok {
		return copyBalance(b), nil
	}
	b := &models.Balance{UserID: userID, LastUpdated: time.Now().UTC()}
	s.state.balances[userID] = copyBalance(b)
	return b, nil
}

func (s *memStore) SaveBalance(ctx context.Context, balance *models.Balance) error {
	s.state.balances[balance.UserID] = copyBalance(balance)
	return nil
}

func (s *memStore) CreateMachine(ctx context.Context, machine *models.MiningMachine) error {
	if machine.ID == "" {
		machine.ID = uuid.New().String()
	}
	machine.CreatedAt = time.Now().UTC()
	s.state.machines[machine.ID] = copyMachine(machine)
	return nil
}

func (s *memStore) GetMachine(ctx context.Context, id string) (*models.MiningMachine, error) {
	if m, ok := s.state.machines[id]; ok {
		return copyMachine(m), nil
	}
	return nil, nil
}

func (s *memStore) ListMachines(ctx context.Context) ([]models.MiningMachine, error) {
	machines := make([]models.MiningMachine, 0, len(s.state.machines))
	for _, m := range s.state.machines {
		machines = append(machines, *copyMachine(m))
	}
	sort.Slice(machines, func(i, j int) bool {
		if machines[i].CreatedAt.Equal(machines[j].CreatedAt) {
			return machines[i].ID < machines[j].ID
		}
		return machines[i].CreatedAt.Before(machines[j].CreatedAt)
	})
	return machines, nil
}

func (s *memStore) SaveMachine(ctx context.Context, machine *models.MiningMachine) error {
	s.state.machines[machine.ID] = copyMachine(machine)
	return nil
}

func (s *memStore) CreateUnitHoldings(ctx context.Context, holdings []*models.UnitHolding) error {
	for _, h := range holdings {
		if h.ID == "" {
			h.ID = uuid.New().String()
		}
		s.state.unitHoldings[h.ID] = copyUnitHolding(h)
	}
	return nil
}

func (s *memStore) GetUnitHolding(ctx context.Context, id string) (*models.UnitHolding, error) {
	if h, ok := s.state.unitHoldings[id]; ok {
		return copyUnitHolding(h), nil
	}
	return nil, nil
}

func (s *memStore) ListUnitHoldingsByUser(ctx context.Context, userID string) ([]models.UnitHolding, error) {
	var holdings []models.UnitHolding
	for _, h := range s.state.unitHoldings {
		if h.UserID == userID {
			holdings = append(holdings, *copyUnitHolding(h))
		}
	}
	sortUnitHoldings(holdings)
	return holdings, nil
}

func (s *memStore) ListActiveUnitHoldings(ctx context.Context) ([]models.UnitHolding, error) {
	var holdings []models.UnitHolding
	for _, h := range s.state.unitHoldings {
		if h.Status == models.HoldingActive {
			holdings = append(holdings, *copyUnitHolding(h))
		}
	}
	sortUnitHoldings(holdings)
	return holdings, nil
}

func sortUnitHoldings(holdings []models.UnitHolding) {
	sort.Slice(holdings, func(i, j int) bool {
		if holdings[i].AssignedAt.Equal(holdings[j].AssignedAt) {
			return holdings[i].ID < holdings[j].ID
		}
		return holdings[i].AssignedAt.Before(holdings[j].AssignedAt)
	})
}

func (s *memStore) SaveUnitHolding(ctx context.Context, holding *models.UnitHolding) error {
	s.state.unitHoldings[holding.ID] = copyUnitHolding(holding)
	return nil
}

func (s *memStore) CreateShareHolding(ctx context.Context, holding *models.ShareHolding) error {
	if holding.ID == "" {
		holding.ID = uuid.New().String()
	}
	s.state.shareHoldings[holding.ID] = copyShareHolding(holding)
	return nil
}

func (s *memStore) GetShareHolding(ctx context.Context, id string) (*models.ShareHolding, error) {
	if h, ok := s.state.shareHoldings[id]; ok {
		return copyShareHolding(h), nil
	}
	return nil, nil
}

func (s *memStore) FindActiveShareHolding(ctx context.Context, userID, machineID string) (*models.ShareHolding, error) {
	for _, h := range s.state.shareHoldings {
		if h.UserID == userID && h.MachineID == machineID && h.Status == models.HoldingActive {
			return copyShareHolding(h), nil
		}
	}
	return nil, nil
}

func (s *memStore) ListShareHoldingsByUser(ctx context.Context, userID string) ([]models.ShareHolding, error) {
	var holdings []models.ShareHolding
	for _, h := range s.state.shareHoldings {
		if h.UserID == userID {
			holdings = append(holdings, *copyShareHolding(h))
		}
	}
	sortShareHoldings(holdings)
	return holdings, nil
}

func (s *memStore) ListActiveShareHoldings(ctx context.Context) ([]models.ShareHolding, error) {
	var holdings []models.ShareHolding
	for _, h := range s.state.shareHoldings {
		if h.Status == models.HoldingActive {
			holdings = append(holdings, *copyShareHolding(h))
		}
	}
	sortShareHoldings(holdings)
	return holdings, nil
}

func sortShareHoldings(holdings []models.ShareHolding) {
	sort.Slice(holdings, func(i, j int) bool {
		if holdings[i].PurchasedAt.Equal(holdings[j].PurchasedAt) {
			return holdings[i].ID < holdings[j].ID
		}
		return holdings[i].PurchasedAt.Before(holdings[j].PurchasedAt)
	})
}

func (s *memStore) SumActiveShareCount(ctx context.Context, machineID string) (int, error) {
	total := 0
	for _, h := range s.state.shareHoldings {
		if h.MachineID == machineID && h.Status == models.HoldingActive {
			total += h.ShareCount
		}
	}
	return total, nil
}

func (s *memStore) SaveShareHolding(ctx context.Context, holding *models.ShareHolding) error {
	s.state.shareHoldings[holding.ID] = copyShareHolding(holding)
	return nil
}

func (s *memStore) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	s.state.transactions[tx.ID] = copyTransaction(tx)
	s.state.txOrder = append(s.state.txOrder, tx.ID)
	return nil
}

func (s *memStore) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	if t, ok := s.state.transactions[id]; ok {
		return copyTransaction(t), nil
	}
	return nil, nil
}

func (s *memStore) UpdateTransactionStatus(ctx context.Context, tx *models.Transaction) error {
	existing, ok := s.state.transactions[tx.ID]
	if !ok {
		return nil
	}
	existing.Status = tx.Status
	existing.AdminComment = tx.AdminComment
	existing.ProcessedBy = tx.ProcessedBy
	if tx.ProcessedAt != nil {
		at := *tx.ProcessedAt
		existing.ProcessedAt = &at
	}
	return nil
}

func (s *memStore) ListTransactions(ctx context.Context, filter TransactionFilter) ([]models.Transaction, error) {
	var txs []models.Transaction
	skipped := 0
	// Newest first, like the SQL implementation.
	for i := len(s.state.txOrder) - 1; i >= 0; i-- {
		t := s.state.transactions[s.state.txOrder[i]]
		if filter.UserID != "" && t.UserID != filter.UserID {
			continue
		}
		if filter.Kind != "" && t.Kind != filter.Kind {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		txs = append(txs, *copyTransaction(t))
		if filter.Limit > 0 && len(txs) >= filter.Limit {
			break
		}
	}
	return txs, nil
}
