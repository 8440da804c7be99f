/*
balance.go - Derived balance calculation

PURPOSE:
  Computes an account's balance by folding its ledger entries:
  sum(credits) - sum(debits). Zero when no entries exist.

  There is deliberately no special-casing of negative results. A
  negative balance cannot arise from the engine's own writes (the
  insufficient-balance precondition prevents it) except for system
  accounts, whose balance goes negative as value is issued into the
  system. The calculator stays a pure aggregation either way.
*/
package bank

import (
	"context"

	"github.com/shopspring/decimal"
)

// Calculator derives balances from the ledger. It holds no state and
// performs no writes.
type Calculator struct {
	ledger LedgerStore
}

func NewCalculator(ledger LedgerStore) *Calculator {
	return &Calculator{ledger: ledger}
}

// Balance returns sum(credit amounts) - sum(debit amounts) over all
// entries for the account. Returns zero when no entries exist.
func (c *Calculator) Balance(ctx context.Context, accountID AccountID) (decimal.Decimal, error) {
	entries, err := c.ledger.EntriesByAccount(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}

	balance := decimal.Zero
	for _, e := range entries {
		balance = balance.Add(e.Delta())
	}
	return balance, nil
}
