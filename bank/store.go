/*
store.go - Persistence interfaces

PURPOSE:
  Defines what the engine needs from storage. Implementations:
  - bank/store:   in-memory (tests/dev)
  - store/sqlite: SQLite (production path)

CRITICAL CONTRACTS:
  1. CreateTransaction MUST surface an idempotency-key uniqueness
     violation as ErrDuplicateIdempotencyKey. The constraint lives in
     the storage engine; an application-level pre-check alone is a
     check-then-act race under concurrency.
  2. UpdateEntry / DeleteEntry / DeleteEntriesByTransaction MUST fail
     with ErrLedgerImmutable and have zero effect. The guard lives in
     the adapter, not in caller discipline.
  3. WithTx applies the whole unit with all-or-nothing visibility. A
     concurrent reader must never observe a partial transfer.
*/
package bank

import (
	"context"
	"time"
)

// =============================================================================
// HISTORY FILTER
// =============================================================================

// HistoryFilter bounds and pages a history query. Nil From/To means
// unbounded on that side; both bounds are inclusive.
type HistoryFilter struct {
	From  *time.Time
	To    *time.Time
	Page  int
	Limit int
}

// =============================================================================
// STORE INTERFACES
// =============================================================================

// AccountStore persists account identity and status. Balances are never
// stored here; they are derived from the ledger.
type AccountStore interface {
	// CreateAccount inserts a new account. Returns ErrAccountExists if
	// the owner already has an account of the same type.
	CreateAccount(ctx context.Context, account *Account) error

	// GetAccount returns the account or (nil, nil) when unknown.
	GetAccount(ctx context.Context, id AccountID) (*Account, error)

	// AccountsByOwner returns all accounts owned by the user.
	AccountsByOwner(ctx context.Context, ownerID UserID) ([]Account, error)

	// UpdateAccountStatus mutates account status (freeze/close). The
	// engine never calls this; it exists for account-management
	// collaborators.
	UpdateAccountStatus(ctx context.Context, id AccountID, status AccountStatus) error
}

// TransactionStore persists transfer records.
type TransactionStore interface {
	// CreateTransaction inserts a transaction. Returns
	// ErrDuplicateIdempotencyKey when the key is already taken; this is
	// the authoritative conflict signal under concurrency.
	CreateTransaction(ctx context.Context, tx *Transaction) error

	// GetTransaction returns the transaction or (nil, nil) when unknown.
	GetTransaction(ctx context.Context, id TransactionID) (*Transaction, error)

	// GetTransactionByKey returns the transaction carrying the
	// idempotency key, or (nil, nil). Used as the friendly fast-path
	// rejection before the atomic unit.
	GetTransactionByKey(ctx context.Context, key string) (*Transaction, error)

	// UpdateTransactionStatus advances a transaction's status.
	UpdateTransactionStatus(ctx context.Context, id TransactionID, status TransactionStatus) error

	// TransactionsByAccount returns one page of transactions where the
	// account is source or destination, newest first, plus the total
	// count matching the filter (ignoring pagination).
	TransactionsByAccount(ctx context.Context, accountID AccountID, filter HistoryFilter) ([]Transaction, int, error)
}

// LedgerStore persists the append-only double-entry ledger.
type LedgerStore interface {
	// AppendEntry inserts a ledger entry. This is the ONLY write.
	AppendEntry(ctx context.Context, entry LedgerEntry) error

	// EntriesByAccount returns all entries for an account, oldest first.
	EntriesByAccount(ctx context.Context, accountID AccountID) ([]LedgerEntry, error)

	// EntriesByTransaction returns the entries of one transaction.
	EntriesByTransaction(ctx context.Context, txID TransactionID) ([]LedgerEntry, error)

	// UpdateEntry always fails with ErrLedgerImmutable.
	UpdateEntry(ctx context.Context, entry LedgerEntry) error

	// DeleteEntry always fails with ErrLedgerImmutable.
	DeleteEntry(ctx context.Context, id EntryID) error

	// DeleteEntriesByTransaction always fails with ErrLedgerImmutable.
	DeleteEntriesByTransaction(ctx context.Context, txID TransactionID) error
}

// TxStore is the slice of the store visible inside an atomic unit.
type TxStore interface {
	TransactionStore
	LedgerStore
}

// Store is the full persistence surface the engine is wired with.
type Store interface {
	AccountStore
	TransactionStore
	LedgerStore

	// WithTx runs fn inside a storage transaction. If fn returns an
	// error the whole unit is discarded and that error is returned
	// unchanged; otherwise the unit commits atomically.
	WithTx(ctx context.Context, fn func(s TxStore) error) error
}
