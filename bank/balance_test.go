package bank_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamropay/ledger-engine/bank"
	memstore "github.com/hamropay/ledger-engine/bank/store"
)

func appendEntry(t *testing.T, store *memstore.Memory, account bank.AccountID, typ bank.EntryType, amount string) {
	t.Helper()
	err := store.AppendEntry(context.Background(), bank.LedgerEntry{
		ID:            bank.EntryID(string(account) + "-" + amount + "-" + string(typ)),
		AccountID:     account,
		TransactionID: "tx",
		EntryType:     typ,
		Amount:        decimal.RequireFromString(amount),
		CreatedAt:     time.Now().UTC(),
	})
	require.NoError(t, err)
}

func TestBalance_EmptyLedgerIsZero(t *testing.T) {
	// GIVEN: An account with no ledger entries
	// WHEN: Its balance is computed
	// THEN: Zero, not an error

	store := memstore.NewMemory()
	calc := bank.NewCalculator(store)

	b, err := calc.Balance(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.True(t, b.IsZero())
}

func TestBalance_SumsCreditsMinusDebits(t *testing.T) {
	// GIVEN: A mix of credits and debits
	// WHEN: The balance is computed
	// THEN: balance = sum(credits) - sum(debits), exact decimal arithmetic

	store := memstore.NewMemory()
	calc := bank.NewCalculator(store)

	appendEntry(t, store, "acc-1", bank.EntryCredit, "100.10")
	appendEntry(t, store, "acc-1", bank.EntryCredit, "0.20")
	appendEntry(t, store, "acc-1", bank.EntryDebit, "0.30")
	appendEntry(t, store, "acc-2", bank.EntryCredit, "999") // other account, ignored

	b, err := calc.Balance(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.True(t, b.Equal(decimal.RequireFromString("100")), "got %s", b)
}

func TestBalance_NegativeWhenDebitsExceedCredits(t *testing.T) {
	// GIVEN: More debited than credited (a system account issuing value)
	// WHEN: The balance is computed
	// THEN: The negative result is reported as-is

	store := memstore.NewMemory()
	calc := bank.NewCalculator(store)

	appendEntry(t, store, "treasury", bank.EntryDebit, "5000")
	appendEntry(t, store, "treasury", bank.EntryCredit, "1200")

	b, err := calc.Balance(context.Background(), "treasury")
	require.NoError(t, err)
	assert.True(t, b.Equal(decimal.NewFromInt(-3800)))
}

func TestBalance_NoFloatDrift(t *testing.T) {
	// GIVEN: Many small entries that would drift under float64
	// WHEN: 1000 credits of 0.1 and 1000 debits of 0.1 are summed
	// THEN: The balance is exactly zero

	store := memstore.NewMemory()
	calc := bank.NewCalculator(store)

	tenth := decimal.RequireFromString("0.1")
	for i := 0; i < 1000; i++ {
		require.NoError(t, store.AppendEntry(context.Background(), bank.LedgerEntry{
			AccountID: "acc-1", TransactionID: "tx",
			EntryType: bank.EntryCredit, Amount: tenth,
		}))
		require.NoError(t, store.AppendEntry(context.Background(), bank.LedgerEntry{
			AccountID: "acc-1", TransactionID: "tx",
			EntryType: bank.EntryDebit, Amount: tenth,
		}))
	}

	b, err := calc.Balance(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.True(t, b.IsZero(), "decimal arithmetic must not drift, got %s", b)
}

func TestLedger_MutationAlwaysRejected(t *testing.T) {
	// GIVEN: Any ledger entry
	// WHEN: Update or delete is attempted through the store interface
	// THEN: The immutability error, unconditionally

	store := memstore.NewMemory()
	ctx := context.Background()

	appendEntry(t, store, "acc-1", bank.EntryCredit, "10")

	err := store.UpdateEntry(ctx, bank.LedgerEntry{ID: "e-1"})
	assert.ErrorIs(t, err, bank.ErrLedgerImmutable)
	assert.True(t, bank.IsImmutabilityViolation(err))

	assert.ErrorIs(t, store.DeleteEntry(ctx, "e-1"), bank.ErrLedgerImmutable)
	assert.ErrorIs(t, store.DeleteEntriesByTransaction(ctx, "tx"), bank.ErrLedgerImmutable)

	// The same holds inside an atomic unit.
	err = store.WithTx(ctx, func(s bank.TxStore) error {
		return s.DeleteEntry(ctx, "e-1")
	})
	assert.ErrorIs(t, err, bank.ErrLedgerImmutable)
}
