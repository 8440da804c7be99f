/*
Package sqlite provides the SQLite-backed implementation of the bank
storage interfaces.

PURPOSE:
  Implements bank.Store using database/sql + mattn/go-sqlite3. The same
  patterns apply to PostgreSQL with minor dialect changes.

APPEND-ONLY ENFORCEMENT (two layers):
  1. Adapter: UpdateEntry / DeleteEntry / DeleteEntriesByTransaction
     return bank.ErrLedgerImmutable without touching the database.
  2. Schema: BEFORE UPDATE / BEFORE DELETE triggers on ledger_entries
     abort with 'ledger entries are immutable', so even raw SQL cannot
     rewrite history.

IDEMPOTENCY:
  transactions.idempotency_key carries a UNIQUE constraint. A violation
  during the atomic unit maps to bank.ErrDuplicateIdempotencyKey - this
  is the authoritative duplicate signal; the engine's pre-read is only a
  friendly fast path.

MIGRATIONS:
  Versioned SQL migrations are embedded and applied on New() with
  golang-migrate (iofs source, sqlite3 driver).

WAL MODE:
  The database is opened with WAL for better read concurrency. A
  sync.RWMutex serializes writers on top of SQLite's single-writer
  model.

USAGE:
  store, err := sqlite.New(":memory:")
  ...
  engine := bank.NewEngine(store, notifier, logger)
*/
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/hamropay/ledger-engine/bank"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// timeLayout is fixed-width RFC3339 with nanoseconds so stored strings
// compare lexicographically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements bank.Store on SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the database at dbPath and applies pending
// migrations. Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One pooled connection: SQLite is single-writer, and ":memory:"
	// databases exist per connection.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// dbtx is satisfied by both *sql.DB and *sql.Tx, so every query helper
// works inside and outside the atomic unit.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// ACCOUNT STORE
// =============================================================================

func (s *Store) CreateAccount(ctx context.Context, account *bank.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO accounts
		(id, owner_id, owner_email, type, currency, status, system_account, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		account.ID,
		account.OwnerID,
		account.OwnerEmail,
		account.Type,
		account.Currency,
		account.Status,
		account.SystemAccount,
		account.CreatedAt.UTC().Format(timeLayout),
		account.UpdatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		if isUniqueViolation(err, "accounts.owner_id") {
			return bank.ErrAccountExists
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, id bank.AccountID) (*bank.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, owner_email, type, currency, status, system_account, created_at, updated_at
		FROM accounts WHERE id = ?
	`, id)

	account, err := scanAccount(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (s *Store) AccountsByOwner(ctx context.Context, ownerID bank.UserID) ([]bank.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, owner_email, type, currency, status, system_account, created_at, updated_at
		FROM accounts WHERE owner_id = ?
		ORDER BY created_at ASC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []bank.Account
	for rows.Next() {
		account, err := scanAccount(rows.Scan)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *account)
	}
	return accounts, rows.Err()
}

func (s *Store) UpdateAccountStatus(ctx context.Context, id bank.AccountID, status bank.AccountStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE accounts SET status = ?, updated_at = ? WHERE id = ?",
		status, time.Now().UTC().Format(timeLayout), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update account status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return bank.ErrAccountNotFound
	}
	return nil
}

func scanAccount(scan func(dest ...any) error) (*bank.Account, error) {
	var (
		account              bank.Account
		createdAt, updatedAt string
	)
	if err := scan(
		&account.ID, &account.OwnerID, &account.OwnerEmail, &account.Type,
		&account.Currency, &account.Status, &account.SystemAccount,
		&createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if account.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse account created_at: %w", err)
	}
	if account.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse account updated_at: %w", err)
	}
	return &account, nil
}

// =============================================================================
// TRANSACTION STORE
// =============================================================================

func (s *Store) CreateTransaction(ctx context.Context, tx *bank.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createTransaction(ctx, s.db, tx)
}

func createTransaction(ctx context.Context, q dbtx, tx *bank.Transaction) error {
	query := `
		INSERT INTO transactions
		(id, from_account_id, to_account_id, amount, status, idempotency_key, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query,
		tx.ID,
		tx.FromAccountID,
		tx.ToAccountID,
		tx.Amount.String(),
		tx.Status,
		tx.IdempotencyKey,
		tx.CreatedAt.UTC().Format(timeLayout),
		tx.UpdatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		if isUniqueViolation(err, "idempotency_key") {
			return bank.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (s *Store) GetTransaction(ctx context.Context, id bank.TransactionID) (*bank.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getTransactionWhere(ctx, s.db, "id = ?", id)
}

func (s *Store) GetTransactionByKey(ctx context.Context, key string) (*bank.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getTransactionWhere(ctx, s.db, "idempotency_key = ?", key)
}

func getTransactionWhere(ctx context.Context, q dbtx, where string, arg any) (*bank.Transaction, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, from_account_id, to_account_id, amount, status, idempotency_key, created_at, updated_at
		FROM transactions WHERE `+where, arg)

	tx, err := scanTransaction(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (s *Store) UpdateTransactionStatus(ctx context.Context, id bank.TransactionID, status bank.TransactionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateTransactionStatus(ctx, s.db, id, status)
}

func updateTransactionStatus(ctx context.Context, q dbtx, id bank.TransactionID, status bank.TransactionStatus) error {
	res, err := q.ExecContext(ctx,
		"UPDATE transactions SET status = ?, updated_at = ? WHERE id = ?",
		status, time.Now().UTC().Format(timeLayout), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return bank.ErrTransactionNotFound
	}
	return nil
}

func (s *Store) TransactionsByAccount(ctx context.Context, accountID bank.AccountID, filter bank.HistoryFilter) ([]bank.Transaction, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where := "(from_account_id = ? OR to_account_id = ?)"
	args := []any{accountID, accountID}
	if filter.From != nil {
		where += " AND created_at >= ?"
		args = append(args, filter.From.UTC().Format(timeLayout))
	}
	if filter.To != nil {
		where += " AND created_at <= ?"
		args = append(args, filter.To.UTC().Format(timeLayout))
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transactions WHERE "+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	query := `
		SELECT id, from_account_id, to_account_id, amount, status, idempotency_key, created_at, updated_at
		FROM transactions
		WHERE ` + where + `
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?
	`
	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []bank.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		txs = append(txs, *tx)
	}
	return txs, total, rows.Err()
}

func scanTransaction(scan func(dest ...any) error) (*bank.Transaction, error) {
	var (
		tx                           bank.Transaction
		amount, createdAt, updatedAt string
	)
	if err := scan(
		&tx.ID, &tx.FromAccountID, &tx.ToAccountID, &amount,
		&tx.Status, &tx.IdempotencyKey, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if tx.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("failed to parse transaction amount: %w", err)
	}
	if tx.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse transaction created_at: %w", err)
	}
	if tx.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse transaction updated_at: %w", err)
	}
	return &tx, nil
}

// =============================================================================
// LEDGER STORE
// =============================================================================

func (s *Store) AppendEntry(ctx context.Context, entry bank.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendEntry(ctx, s.db, entry)
}

func appendEntry(ctx context.Context, q dbtx, entry bank.LedgerEntry) error {
	query := `
		INSERT INTO ledger_entries (id, account_id, transaction_id, entry_type, amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query,
		entry.ID,
		entry.AccountID,
		entry.TransactionID,
		entry.EntryType,
		entry.Amount.String(),
		entry.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

func (s *Store) EntriesByAccount(ctx context.Context, accountID bank.AccountID) ([]bank.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryEntries(ctx, s.db, "account_id = ?", accountID)
}

func (s *Store) EntriesByTransaction(ctx context.Context, txID bank.TransactionID) ([]bank.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryEntries(ctx, s.db, "transaction_id = ?", txID)
}

func queryEntries(ctx context.Context, q dbtx, where string, arg any) ([]bank.LedgerEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, account_id, transaction_id, entry_type, amount, created_at
		FROM ledger_entries
		WHERE `+where+`
		ORDER BY created_at ASC, rowid ASC
	`, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []bank.LedgerEntry
	for rows.Next() {
		var (
			entry             bank.LedgerEntry
			amount, createdAt string
		)
		if err := rows.Scan(&entry.ID, &entry.AccountID, &entry.TransactionID,
			&entry.EntryType, &amount, &createdAt); err != nil {
			return nil, err
		}
		if entry.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("failed to parse entry amount: %w", err)
		}
		if entry.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse entry created_at: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// UpdateEntry refuses to touch the ledger. The schema triggers are the
// second line of defense against raw SQL.
func (s *Store) UpdateEntry(context.Context, bank.LedgerEntry) error {
	return bank.ErrLedgerImmutable
}

// DeleteEntry refuses to touch the ledger.
func (s *Store) DeleteEntry(context.Context, bank.EntryID) error {
	return bank.ErrLedgerImmutable
}

// DeleteEntriesByTransaction refuses to touch the ledger.
func (s *Store) DeleteEntriesByTransaction(context.Context, bank.TransactionID) error {
	return bank.ErrLedgerImmutable
}

// =============================================================================
// ATOMIC UNIT
// =============================================================================

// WithTx executes fn inside a database transaction. If fn fails the
// transaction rolls back and fn's error is returned unchanged.
func (s *Store) WithTx(ctx context.Context, fn func(store bank.TxStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore is the TxStore view bound to one *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

func (t *txStore) CreateTransaction(ctx context.Context, tx *bank.Transaction) error {
	return createTransaction(ctx, t.tx, tx)
}

func (t *txStore) GetTransaction(ctx context.Context, id bank.TransactionID) (*bank.Transaction, error) {
	return getTransactionWhere(ctx, t.tx, "id = ?", id)
}

func (t *txStore) GetTransactionByKey(ctx context.Context, key string) (*bank.Transaction, error) {
	return getTransactionWhere(ctx, t.tx, "idempotency_key = ?", key)
}

func (t *txStore) UpdateTransactionStatus(ctx context.Context, id bank.TransactionID, status bank.TransactionStatus) error {
	return updateTransactionStatus(ctx, t.tx, id, status)
}

func (t *txStore) TransactionsByAccount(context.Context, bank.AccountID, bank.HistoryFilter) ([]bank.Transaction, int, error) {
	// History is a read path that never runs inside the atomic unit.
	return nil, 0, errors.New("history query not supported inside a transaction")
}

func (t *txStore) AppendEntry(ctx context.Context, entry bank.LedgerEntry) error {
	return appendEntry(ctx, t.tx, entry)
}

func (t *txStore) EntriesByAccount(ctx context.Context, accountID bank.AccountID) ([]bank.LedgerEntry, error) {
	return queryEntries(ctx, t.tx, "account_id = ?", accountID)
}

func (t *txStore) EntriesByTransaction(ctx context.Context, txID bank.TransactionID) ([]bank.LedgerEntry, error) {
	return queryEntries(ctx, t.tx, "transaction_id = ?", txID)
}

func (t *txStore) UpdateEntry(context.Context, bank.LedgerEntry) error {
	return bank.ErrLedgerImmutable
}

func (t *txStore) DeleteEntry(context.Context, bank.EntryID) error {
	return bank.ErrLedgerImmutable
}

func (t *txStore) DeleteEntriesByTransaction(context.Context, bank.TransactionID) error {
	return bank.ErrLedgerImmutable
}

// =============================================================================
// HELPERS
// =============================================================================

func isUniqueViolation(err error, constraint string) bool {
	return err != nil &&
		strings.Contains(err.Error(), "UNIQUE constraint failed") &&
		strings.Contains(err.Error(), constraint)
}
