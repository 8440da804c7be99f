package sqlite_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamropay/ledger-engine/bank"
	"github.com/hamropay/ledger-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testAccount(id, owner string, typ bank.AccountType) *bank.Account {
	now := time.Now().UTC()
	return &bank.Account{
		ID:         bank.AccountID(id),
		OwnerID:    bank.UserID(owner),
		OwnerEmail: owner + "@example.com",
		Type:       typ,
		Currency:   bank.CurrencyNPR,
		Status:     bank.AccountActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func testTransaction(id, key string, from, to bank.AccountID, createdAt time.Time) *bank.Transaction {
	return &bank.Transaction{
		ID:             bank.TransactionID(id),
		FromAccountID:  from,
		ToAccountID:    to,
		Amount:         decimal.RequireFromString("10.50"),
		Status:         bank.TxCompleted,
		IdempotencyKey: key,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}
}

func testEntry(id string, account bank.AccountID, txID bank.TransactionID, typ bank.EntryType) bank.LedgerEntry {
	return bank.LedgerEntry{
		ID:            bank.EntryID(id),
		AccountID:     account,
		TransactionID: txID,
		EntryType:     typ,
		Amount:        decimal.RequireFromString("10.50"),
		CreatedAt:     time.Now().UTC(),
	}
}

// seedAccounts satisfies the foreign keys on transactions and
// ledger_entries. Each account gets its own owner so the
// (owner, type) uniqueness rule stays out of the way.
func seedAccounts(t *testing.T, store *sqlite.Store, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, store.CreateAccount(context.Background(),
			testAccount(id, "owner-of-"+id, bank.AccountSavings)))
	}
}

// seedTransaction inserts a transaction row for entries to reference.
func seedTransaction(t *testing.T, store *sqlite.Store, id, key string, from, to bank.AccountID) {
	t.Helper()
	require.NoError(t, store.CreateTransaction(context.Background(),
		testTransaction(id, key, from, to, time.Now().UTC())))
}

// =============================================================================
// ACCOUNT TESTS
// =============================================================================

func TestStore_AccountRoundTrip(t *testing.T) {
	// GIVEN: An account written to the store
	// WHEN: It is read back by id and by owner
	// THEN: All fields survive, including the system flag and timestamps

	store := newTestStore(t)
	ctx := context.Background()

	account := testAccount("acc-1", "alice", bank.AccountSavings)
	account.SystemAccount = true
	require.NoError(t, store.CreateAccount(ctx, account))

	got, err := store.GetAccount(ctx, "acc-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, account.OwnerID, got.OwnerID)
	assert.Equal(t, account.OwnerEmail, got.OwnerEmail)
	assert.True(t, got.SystemAccount)
	assert.True(t, got.CreatedAt.Equal(account.CreatedAt))

	list, err := store.AccountsByOwner(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, bank.AccountID("acc-1"), list[0].ID)

	missing, err := store.GetAccount(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing, "unknown id reads as nil, not an error")
}

func TestStore_AccountUniquePerOwnerAndType(t *testing.T) {
	// GIVEN: Alice has a savings account
	// WHEN: A second savings account for Alice is inserted
	// THEN: The UNIQUE(owner_id, type) index rejects it

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateAccount(ctx, testAccount("acc-1", "alice", bank.AccountSavings)))

	err := store.CreateAccount(ctx, testAccount("acc-2", "alice", bank.AccountSavings))
	assert.ErrorIs(t, err, bank.ErrAccountExists)

	// A different type is fine.
	assert.NoError(t, store.CreateAccount(ctx, testAccount("acc-3", "alice", bank.AccountCurrent)))
}

func TestStore_UpdateAccountStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateAccount(ctx, testAccount("acc-1", "alice", bank.AccountSavings)))
	require.NoError(t, store.UpdateAccountStatus(ctx, "acc-1", bank.AccountFrozen))

	got, err := store.GetAccount(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, bank.AccountFrozen, got.Status)

	err = store.UpdateAccountStatus(ctx, "nope", bank.AccountFrozen)
	assert.ErrorIs(t, err, bank.ErrAccountNotFound)
}

// =============================================================================
// TRANSACTION TESTS
// =============================================================================

func TestStore_TransactionRoundTripAndKeyLookup(t *testing.T) {
	// GIVEN: A stored transaction
	// WHEN: Read by id and by idempotency key
	// THEN: The decimal amount and timestamps survive exactly

	store := newTestStore(t)
	ctx := context.Background()
	seedAccounts(t, store, "acc-1", "acc-2")

	created := time.Date(2026, time.May, 1, 8, 30, 0, 123456789, time.UTC)
	tx := testTransaction("tx-1", "key-1", "acc-1", "acc-2", created)
	require.NoError(t, store.CreateTransaction(ctx, tx))

	byID, err := store.GetTransaction(ctx, "tx-1")
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.True(t, byID.Amount.Equal(decimal.RequireFromString("10.50")))
	assert.True(t, byID.CreatedAt.Equal(created))

	byKey, err := store.GetTransactionByKey(ctx, "key-1")
	require.NoError(t, err)
	require.NotNil(t, byKey)
	assert.Equal(t, bank.TransactionID("tx-1"), byKey.ID)

	missing, err := store.GetTransactionByKey(ctx, "unused")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_IdempotencyKeyUnique(t *testing.T) {
	// GIVEN: A transaction under key "k"
	// WHEN: A second transaction reuses the key
	// THEN: The UNIQUE constraint maps to the duplicate-key error

	store := newTestStore(t)
	ctx := context.Background()
	seedAccounts(t, store, "a", "b")

	now := time.Now().UTC()
	require.NoError(t, store.CreateTransaction(ctx, testTransaction("tx-1", "k", "a", "b", now)))

	err := store.CreateTransaction(ctx, testTransaction("tx-2", "k", "a", "b", now))
	assert.ErrorIs(t, err, bank.ErrDuplicateIdempotencyKey)

	// The same constraint fires inside the atomic unit.
	err = store.WithTx(ctx, func(s bank.TxStore) error {
		return s.CreateTransaction(ctx, testTransaction("tx-3", "k", "a", "b", now))
	})
	assert.ErrorIs(t, err, bank.ErrDuplicateIdempotencyKey)
}

func TestStore_TransactionsByAccountPaging(t *testing.T) {
	// GIVEN: 7 transactions touching acc-1, one per day
	// WHEN: Pages of 3 are requested, newest first
	// THEN: Stable ordering, correct totals, date bounds honored

	store := newTestStore(t)
	ctx := context.Background()
	seedAccounts(t, store, "acc-1", "acc-2", "acc-3", "acc-4")

	base := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		tx := testTransaction(
			fmt.Sprintf("tx-%d", i), fmt.Sprintf("key-%d", i),
			"acc-1", "acc-2", base.AddDate(0, 0, i),
		)
		require.NoError(t, store.CreateTransaction(ctx, tx))
	}
	// Unrelated traffic is excluded.
	require.NoError(t, store.CreateTransaction(ctx,
		testTransaction("other", "key-other", "acc-3", "acc-4", base)))

	txs, total, err := store.TransactionsByAccount(ctx, "acc-1", bank.HistoryFilter{Page: 1, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	require.Len(t, txs, 3)
	assert.Equal(t, bank.TransactionID("tx-6"), txs[0].ID)
	assert.Equal(t, bank.TransactionID("tx-4"), txs[2].ID)

	txs, _, err = store.TransactionsByAccount(ctx, "acc-1", bank.HistoryFilter{Page: 3, Limit: 3})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, bank.TransactionID("tx-0"), txs[0].ID)

	from := base.AddDate(0, 0, 2)
	to := base.AddDate(0, 0, 4)
	txs, total, err = store.TransactionsByAccount(ctx, "acc-1",
		bank.HistoryFilter{Page: 1, Limit: 10, From: &from, To: &to})
	require.NoError(t, err)
	assert.Equal(t, 3, total, "bounds are inclusive on both ends")
	require.Len(t, txs, 3)
	assert.Equal(t, bank.TransactionID("tx-4"), txs[0].ID)
	assert.Equal(t, bank.TransactionID("tx-2"), txs[2].ID)
}

// =============================================================================
// LEDGER IMMUTABILITY TESTS
// =============================================================================

func TestStore_LedgerMutationRejectedByAdapter(t *testing.T) {
	// GIVEN: A stored ledger entry
	// WHEN: Update/delete methods are called
	// THEN: ErrLedgerImmutable without touching the database

	store := newTestStore(t)
	ctx := context.Background()
	seedAccounts(t, store, "acc-1", "acc-2")
	seedTransaction(t, store, "tx-1", "k-1", "acc-1", "acc-2")

	entry := testEntry("e-1", "acc-1", "tx-1", bank.EntryCredit)
	require.NoError(t, store.AppendEntry(ctx, entry))

	assert.ErrorIs(t, store.UpdateEntry(ctx, entry), bank.ErrLedgerImmutable)
	assert.ErrorIs(t, store.DeleteEntry(ctx, "e-1"), bank.ErrLedgerImmutable)
	assert.ErrorIs(t, store.DeleteEntriesByTransaction(ctx, "tx-1"), bank.ErrLedgerImmutable)

	err := store.WithTx(ctx, func(s bank.TxStore) error {
		return s.UpdateEntry(ctx, entry)
	})
	assert.ErrorIs(t, err, bank.ErrLedgerImmutable)

	entries, err := store.EntriesByAccount(ctx, "acc-1")
	require.NoError(t, err)
	assert.Len(t, entries, 1, "entry must still be there")
}

func TestStore_LedgerMutationRejectedBySchemaTriggers(t *testing.T) {
	// GIVEN: An entry written through the store, in a file-backed database
	// WHEN: Raw SQL bypasses the adapter and tries UPDATE / DELETE
	// THEN: The BEFORE UPDATE/DELETE triggers abort the statements

	path := filepath.Join(t.TempDir(), "ledger.db")
	store, err := sqlite.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	seedAccounts(t, store, "acc-1", "acc-2")
	seedTransaction(t, store, "tx-1", "k-1", "acc-1", "acc-2")
	require.NoError(t, store.AppendEntry(ctx, testEntry("e-1", "acc-1", "tx-1", bank.EntryDebit)))

	raw, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })

	_, err = raw.ExecContext(ctx, "UPDATE ledger_entries SET amount = '999' WHERE id = 'e-1'")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ledger entries are immutable")

	_, err = raw.ExecContext(ctx, "DELETE FROM ledger_entries WHERE id = 'e-1'")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ledger entries are immutable")

	var amount string
	require.NoError(t, raw.QueryRowContext(ctx,
		"SELECT amount FROM ledger_entries WHERE id = 'e-1'").Scan(&amount))
	assert.Equal(t, "10.5", amount)
}

// =============================================================================
// ATOMIC UNIT TESTS
// =============================================================================

func TestStore_WithTxRollsBackOnError(t *testing.T) {
	// GIVEN: A unit that writes a transaction and a ledger entry, then fails
	// WHEN: WithTx returns fn's error
	// THEN: Neither write is visible afterwards

	store := newTestStore(t)
	ctx := context.Background()
	seedAccounts(t, store, "a", "b")
	boom := errors.New("boom")

	now := time.Now().UTC()
	err := store.WithTx(ctx, func(s bank.TxStore) error {
		if err := s.CreateTransaction(ctx, testTransaction("tx-1", "k-1", "a", "b", now)); err != nil {
			return err
		}
		if err := s.AppendEntry(ctx, testEntry("e-1", "a", "tx-1", bank.EntryDebit)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom, "fn's error must surface unchanged")

	tx, err := store.GetTransaction(ctx, "tx-1")
	require.NoError(t, err)
	assert.Nil(t, tx)

	entries, err := store.EntriesByAccount(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, entries)

	// And the key is free for reuse.
	assert.NoError(t, store.CreateTransaction(ctx, testTransaction("tx-2", "k-1", "a", "b", now)))
}

func TestStore_WithTxCommitsCompleteUnit(t *testing.T) {
	// GIVEN: The full transfer unit: pending tx, debit, credit, completed
	// WHEN: The unit succeeds
	// THEN: All four effects are visible together

	store := newTestStore(t)
	ctx := context.Background()
	seedAccounts(t, store, "a", "b")

	now := time.Now().UTC()
	tx := testTransaction("tx-1", "k-1", "a", "b", now)
	tx.Status = bank.TxPending

	err := store.WithTx(ctx, func(s bank.TxStore) error {
		if err := s.CreateTransaction(ctx, tx); err != nil {
			return err
		}
		if err := s.AppendEntry(ctx, testEntry("e-1", "a", "tx-1", bank.EntryDebit)); err != nil {
			return err
		}
		if err := s.AppendEntry(ctx, testEntry("e-2", "b", "tx-1", bank.EntryCredit)); err != nil {
			return err
		}
		return s.UpdateTransactionStatus(ctx, "tx-1", bank.TxCompleted)
	})
	require.NoError(t, err)

	got, err := store.GetTransaction(ctx, "tx-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, bank.TxCompleted, got.Status)

	entries, err := store.EntriesByTransaction(ctx, "tx-1")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
