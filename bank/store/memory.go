// Package store provides an in-memory bank.Store implementation for
// tests and local development.
//
// WithTx runs the unit against a deep copy of the state and swaps it in
// on success, so a failing unit leaves nothing behind - the same
// all-or-nothing visibility the SQLite store gets from real
// transactions.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hamropay/ledger-engine/bank"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Memory struct {
	mu    sync.RWMutex
	state *state
}

type ownerType struct {
	Owner bank.UserID
	Type  bank.AccountType
}

// state holds all records. Transactions keep insertion order so that
// newest-first paging is stable when creation times collide.
type state struct {
	accounts  map[bank.AccountID]bank.Account
	byOwner   map[ownerType]bank.AccountID
	txs       []bank.Transaction
	txIndex   map[bank.TransactionID]int
	keyIndex  map[string]int
	entries   []bank.LedgerEntry
}

func NewMemory() *Memory {
	return &Memory{state: newState()}
}

func newState() *state {
	return &state{
		accounts: make(map[bank.AccountID]bank.Account),
		byOwner:  make(map[ownerType]bank.AccountID),
		txIndex:  make(map[bank.TransactionID]int),
		keyIndex: make(map[string]int),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.byOwner {
		c.byOwner[k] = v
	}
	c.txs = append([]bank.Transaction(nil), s.txs...)
	for k, v := range s.txIndex {
		c.txIndex[k] = v
	}
	for k, v := range s.keyIndex {
		c.keyIndex[k] = v
	}
	c.entries = append([]bank.LedgerEntry(nil), s.entries...)
	return c
}

// =============================================================================
// ACCOUNT STORE
// =============================================================================

func (m *Memory) CreateAccount(_ context.Context, account *bank.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := ownerType{Owner: account.OwnerID, Type: account.Type}
	if _, exists := m.state.byOwner[key]; exists {
		return bank.ErrAccountExists
	}
	m.state.accounts[account.ID] = *account
	m.state.byOwner[key] = account.ID
	return nil
}

func (m *Memory) GetAccount(_ context.Context, id bank.AccountID) (*bank.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getAccount(id)
}

func (s *state) getAccount(id bank.AccountID) (*bank.Account, error) {
	account, ok := s.accounts[id]
	if !ok {
		return nil, nil
	}
	return &account, nil
}

func (m *Memory) AccountsByOwner(_ context.Context, ownerID bank.UserID) ([]bank.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var accounts []bank.Account
	for _, a := range m.state.accounts {
		if a.OwnerID == ownerID {
			accounts = append(accounts, a)
		}
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].CreatedAt.Before(accounts[j].CreatedAt)
	})
	return accounts, nil
}

func (m *Memory) UpdateAccountStatus(_ context.Context, id bank.AccountID, status bank.AccountStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.state.accounts[id]
	if !ok {
		return bank.ErrAccountNotFound
	}
	account.Status = status
	account.UpdatedAt = time.Now().UTC()
	m.state.accounts[id] = account
	return nil
}

// =============================================================================
// TRANSACTION STORE
// =============================================================================

func (m *Memory) CreateTransaction(ctx context.Context, tx *bank.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.createTransaction(tx)
}

func (s *state) createTransaction(tx *bank.Transaction) error {
	// Uniqueness is enforced here, at the storage layer, so concurrent
	// submissions of one key cannot both insert.
	if _, exists := s.keyIndex[tx.IdempotencyKey]; exists {
		return bank.ErrDuplicateIdempotencyKey
	}
	s.txs = append(s.txs, *tx)
	s.txIndex[tx.ID] = len(s.txs) - 1
	s.keyIndex[tx.IdempotencyKey] = len(s.txs) - 1
	return nil
}

func (m *Memory) GetTransaction(_ context.Context, id bank.TransactionID) (*bank.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getTransaction(id)
}

func (s *state) getTransaction(id bank.TransactionID) (*bank.Transaction, error) {
	i, ok := s.txIndex[id]
	if !ok {
		return nil, nil
	}
	tx := s.txs[i]
	return &tx, nil
}

func (m *Memory) GetTransactionByKey(_ context.Context, key string) (*bank.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getTransactionByKey(key)
}

func (s *state) getTransactionByKey(key string) (*bank.Transaction, error) {
	i, ok := s.keyIndex[key]
	if !ok {
		return nil, nil
	}
	tx := s.txs[i]
	return &tx, nil
}

func (m *Memory) UpdateTransactionStatus(_ context.Context, id bank.TransactionID, status bank.TransactionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.updateTransactionStatus(id, status)
}

func (s *state) updateTransactionStatus(id bank.TransactionID, status bank.TransactionStatus) error {
	i, ok := s.txIndex[id]
	if !ok {
		return bank.ErrTransactionNotFound
	}
	s.txs[i].Status = status
	s.txs[i].UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) TransactionsByAccount(_ context.Context, accountID bank.AccountID, filter bank.HistoryFilter) ([]bank.Transaction, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.transactionsByAccount(accountID, filter)
}

func (s *state) transactionsByAccount(accountID bank.AccountID, filter bank.HistoryFilter) ([]bank.Transaction, int, error) {
	var matches []bank.Transaction
	for _, tx := range s.txs {
		if tx.FromAccountID != accountID && tx.ToAccountID != accountID {
			continue
		}
		if filter.From != nil && tx.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && tx.CreatedAt.After(*filter.To) {
			continue
		}
		matches = append(matches, tx)
	}

	// Newest first; later inserts win ties.
	for i, j := 0, len(matches)-1; i < j; i, j = i+1, j-1 {
		matches[i], matches[j] = matches[j], matches[i]
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})

	total := len(matches)
	skip := (filter.Page - 1) * filter.Limit
	if skip >= total {
		return nil, total, nil
	}
	end := skip + filter.Limit
	if end > total {
		end = total
	}
	return matches[skip:end], total, nil
}

// =============================================================================
// LEDGER STORE
// =============================================================================

func (m *Memory) AppendEntry(_ context.Context, entry bank.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.entries = append(m.state.entries, entry)
	return nil
}

func (m *Memory) EntriesByAccount(_ context.Context, accountID bank.AccountID) ([]bank.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var entries []bank.LedgerEntry
	for _, e := range m.state.entries {
		if e.AccountID == accountID {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func (m *Memory) EntriesByTransaction(_ context.Context, txID bank.TransactionID) ([]bank.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var entries []bank.LedgerEntry
	for _, e := range m.state.entries {
		if e.TransactionID == txID {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func (m *Memory) UpdateEntry(context.Context, bank.LedgerEntry) error {
	return bank.ErrLedgerImmutable
}

func (m *Memory) DeleteEntry(context.Context, bank.EntryID) error {
	return bank.ErrLedgerImmutable
}

func (m *Memory) DeleteEntriesByTransaction(context.Context, bank.TransactionID) error {
	return bank.ErrLedgerImmutable
}

// =============================================================================
// ATOMIC UNIT
// =============================================================================

// WithTx runs fn against a copy of the state. The copy replaces the
// live state only if fn succeeds.
func (m *Memory) WithTx(ctx context.Context, fn func(s bank.TxStore) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	staged := m.state.clone()
	if err := fn(&memTx{state: staged}); err != nil {
		return err
	}
	m.state = staged
	return nil
}

// memTx is the TxStore view over the staged state. No locking: the
// parent holds the write lock for the whole unit.
type memTx struct {
	state *state
}

func (t *memTx) CreateTransaction(_ context.Context, tx *bank.Transaction) error {
	return t.state.createTransaction(tx)
}

func (t *memTx) GetTransaction(_ context.Context, id bank.TransactionID) (*bank.Transaction, error) {
	return t.state.getTransaction(id)
}

func (t *memTx) GetTransactionByKey(_ context.Context, key string) (*bank.Transaction, error) {
	return t.state.getTransactionByKey(key)
}

func (t *memTx) UpdateTransactionStatus(_ context.Context, id bank.TransactionID, status bank.TransactionStatus) error {
	return t.state.updateTransactionStatus(id, status)
}

func (t *memTx) TransactionsByAccount(_ context.Context, accountID bank.AccountID, filter bank.HistoryFilter) ([]bank.Transaction, int, error) {
	return t.state.transactionsByAccount(accountID, filter)
}

func (t *memTx) AppendEntry(_ context.Context, entry bank.LedgerEntry) error {
	t.state.entries = append(t.state.entries, entry)
	return nil
}

func (t *memTx) EntriesByAccount(_ context.Context, accountID bank.AccountID) ([]bank.LedgerEntry, error) {
	var entries []bank.LedgerEntry
	for _, e := range t.state.entries {
		if e.AccountID == accountID {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func (t *memTx) EntriesByTransaction(_ context.Context, txID bank.TransactionID) ([]bank.LedgerEntry, error) {
	var entries []bank.LedgerEntry
	for _, e := range t.state.entries {
		if e.TransactionID == txID {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func (t *memTx) UpdateEntry(context.Context, bank.LedgerEntry) error {
	return bank.ErrLedgerImmutable
}

func (t *memTx) DeleteEntry(context.Context, bank.EntryID) error {
	return bank.ErrLedgerImmutable
}

func (t *memTx) DeleteEntriesByTransaction(context.Context, bank.TransactionID) error {
	return bank.ErrLedgerImmutable
}
