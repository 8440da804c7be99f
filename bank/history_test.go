package bank_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamropay/ledger-engine/bank"
	memstore "github.com/hamropay/ledger-engine/bank/store"
)

// insertTx writes a completed transaction record with a fixed creation
// time, bypassing the engine, so paging and date filters are
// deterministic.
func insertTx(t *testing.T, store *memstore.Memory, id string, from, to bank.AccountID, createdAt time.Time) {
	t.Helper()
	err := store.WithTx(context.Background(), func(s bank.TxStore) error {
		return s.CreateTransaction(context.Background(), &bank.Transaction{
			ID:             bank.TransactionID(id),
			FromAccountID:  from,
			ToAccountID:    to,
			Amount:         decimal.NewFromInt(10),
			Status:         bank.TxCompleted,
			IdempotencyKey: id,
			CreatedAt:      createdAt,
			UpdatedAt:      createdAt,
		})
	})
	require.NoError(t, err)
}

func TestHistory_PaginatesNewestFirst(t *testing.T) {
	// GIVEN: 12 transactions touching Alice's account, one per day
	// WHEN: Page 1 with limit 5 is requested
	// THEN: The 5 newest rows, pagination {page:1 limit:5 total:12 pages:3}

	engine, store := newTestEngine(t)
	ctx := context.Background()

	alice, aliceID := openAccount(t, engine, "alice", bank.AccountSavings)
	bob, _ := openAccount(t, engine, "bob", bank.AccountSavings)

	base := time.Date(2026, time.January, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		insertTx(t, store, fmt.Sprintf("tx-%02d", i), alice.ID, bob.ID, base.AddDate(0, 0, i))
	}

	page, err := engine.History(ctx, alice.ID, bank.HistoryFilter{Page: 1, Limit: 5}, aliceID)
	require.NoError(t, err)

	require.Len(t, page.History, 5)
	assert.Equal(t, bank.TransactionID("tx-11"), page.History[0].ID)
	assert.Equal(t, bank.TransactionID("tx-07"), page.History[4].ID)
	assert.Equal(t, bank.Pagination{Page: 1, Limit: 5, Total: 12, Pages: 3}, page.Pagination)

	// Last page holds the remainder.
	page, err = engine.History(ctx, alice.ID, bank.HistoryFilter{Page: 3, Limit: 5}, aliceID)
	require.NoError(t, err)
	require.Len(t, page.History, 2)
	assert.Equal(t, bank.TransactionID("tx-00"), page.History[1].ID)

	// Pages beyond the end are empty, not an error.
	page, err = engine.History(ctx, alice.ID, bank.HistoryFilter{Page: 9, Limit: 5}, aliceID)
	require.NoError(t, err)
	assert.Empty(t, page.History)
	assert.Equal(t, 12, page.Pagination.Total)
}

func TestHistory_DefaultsAndEmptyResult(t *testing.T) {
	// GIVEN: No transactions
	// WHEN: History is requested with zero/negative paging values
	// THEN: Page and limit normalize to 1/10, total and pages are 0

	engine, _ := newTestEngine(t)

	alice, aliceID := openAccount(t, engine, "alice", bank.AccountSavings)

	page, err := engine.History(context.Background(), alice.ID, bank.HistoryFilter{Page: -3, Limit: 0}, aliceID)
	require.NoError(t, err)

	assert.Empty(t, page.History)
	assert.Equal(t, bank.Pagination{Page: 1, Limit: 10, Total: 0, Pages: 0}, page.Pagination)
}

func TestHistory_IncludesBothDirections(t *testing.T) {
	// GIVEN: Transfers where Alice is source in one and destination in another
	// WHEN: Alice's history is requested
	// THEN: Both rows appear

	engine, store := newTestEngine(t)

	alice, aliceID := openAccount(t, engine, "alice", bank.AccountSavings)
	bob, _ := openAccount(t, engine, "bob", bank.AccountSavings)

	base := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	insertTx(t, store, "out", alice.ID, bob.ID, base)
	insertTx(t, store, "in", bob.ID, alice.ID, base.Add(time.Hour))

	page, err := engine.History(context.Background(), alice.ID, bank.HistoryFilter{}, aliceID)
	require.NoError(t, err)

	require.Len(t, page.History, 2)
	assert.Equal(t, bank.TransactionID("in"), page.History[0].ID)
	assert.Equal(t, bank.TransactionID("out"), page.History[1].ID)
}

func TestHistory_DateBoundsAreInclusive(t *testing.T) {
	// GIVEN: Transactions on March 1, 2 and 3
	// WHEN: The range [March 1, March 2] is requested
	// THEN: March 1 and 2 are included, March 3 is not

	engine, store := newTestEngine(t)

	alice, aliceID := openAccount(t, engine, "alice", bank.AccountSavings)
	bob, _ := openAccount(t, engine, "bob", bank.AccountSavings)

	day := func(d int) time.Time {
		return time.Date(2026, time.March, d, 0, 0, 0, 0, time.UTC)
	}
	insertTx(t, store, "mar-1", alice.ID, bob.ID, day(1))
	insertTx(t, store, "mar-2", alice.ID, bob.ID, day(2))
	insertTx(t, store, "mar-3", alice.ID, bob.ID, day(3))

	from, to := day(1), day(2)
	page, err := engine.History(context.Background(), alice.ID, bank.HistoryFilter{From: &from, To: &to}, aliceID)
	require.NoError(t, err)

	require.Len(t, page.History, 2)
	assert.Equal(t, bank.TransactionID("mar-2"), page.History[0].ID)
	assert.Equal(t, bank.TransactionID("mar-1"), page.History[1].ID)
	assert.Equal(t, 2, page.Pagination.Total, "total reflects the filtered count")
}

func TestHistory_EnrichesCounterpartSummaries(t *testing.T) {
	// GIVEN: A transfer between Alice and Bob, plus one whose counterpart
	//        account no longer resolves
	// WHEN: History is requested
	// THEN: Known accounts get compact summaries, unknown ones are nil

	engine, store := newTestEngine(t)

	alice, aliceID := openAccount(t, engine, "alice", bank.AccountSavings)
	bob, _ := openAccount(t, engine, "bob", bank.AccountCurrent)

	base := time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)
	insertTx(t, store, "known", alice.ID, bob.ID, base)
	insertTx(t, store, "orphan", "vanished", alice.ID, base.Add(time.Hour))

	page, err := engine.History(context.Background(), alice.ID, bank.HistoryFilter{}, aliceID)
	require.NoError(t, err)
	require.Len(t, page.History, 2)

	orphan := page.History[0]
	assert.Nil(t, orphan.FromAccount, "unresolvable counterpart renders as nil")
	require.NotNil(t, orphan.ToAccount)
	assert.Equal(t, alice.ID, orphan.ToAccount.ID)

	known := page.History[1]
	require.NotNil(t, known.FromAccount)
	require.NotNil(t, known.ToAccount)
	assert.Equal(t, bank.AccountCurrent, known.ToAccount.Type)
	assert.Equal(t, "10", known.Amount)
}

func TestHistory_RequiresOwnership(t *testing.T) {
	// GIVEN: Alice's account
	// WHEN: Bob or an anonymous caller requests its history
	// THEN: Unauthorized

	engine, _ := newTestEngine(t)
	ctx := context.Background()

	alice, _ := openAccount(t, engine, "alice", bank.AccountSavings)
	_, bobID := openAccount(t, engine, "bob", bank.AccountSavings)

	_, err := engine.History(ctx, alice.ID, bank.HistoryFilter{}, bobID)
	assert.ErrorIs(t, err, bank.ErrUnauthorized)

	_, err = engine.History(ctx, alice.ID, bank.HistoryFilter{}, bank.Identity{})
	assert.ErrorIs(t, err, bank.ErrUnauthorized)
}
