/*
Package bank provides the core money-transfer engine.

PURPOSE:
  This package contains the domain types and algorithms for moving value
  between accounts: an immutable double-entry ledger, derived balances,
  idempotent transfers, and the paginated history query. Persistence lives
  behind the Store interfaces (store.go); HTTP lives in api/.

KEY CONCEPTS IN THIS FILE (types.go):
  - Account:     identity, owner, currency, status; balance is NEVER stored
  - Transaction: one transfer attempt, keyed by a unique idempotency key
  - LedgerEntry: one immutable debit or credit tied to one transaction
  - Identity:    the verified caller (user id + owned account ids)

DESIGN PRINCIPLES:
  1. Derived balance: balance = sum(credits) - sum(debits), always computed
  2. Double-entry: every completed transfer = one debit + one matching credit
  3. Immutability: ledger entries are never updated or deleted
  4. Precision: decimal.Decimal for money, never floats

SEE ALSO:
  - transfer.go: the Transfer Engine (atomic unit, preconditions)
  - balance.go:  balance calculation from ledger entries
  - history.go:  paginated transaction history
  - store.go:    persistence interfaces
*/
package bank

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type AccountID string
type TransactionID string
type EntryID string
type UserID string

// =============================================================================
// ACCOUNT
// =============================================================================

type AccountType string

const (
	AccountSavings AccountType = "savings"
	AccountCurrent AccountType = "current"
)

type Currency string

const (
	CurrencyNPR Currency = "NPR"
	CurrencyINR Currency = "INR"
	CurrencyUSD Currency = "USD"
)

type AccountStatus string

const (
	AccountActive AccountStatus = "active"
	AccountFrozen AccountStatus = "frozen"
	AccountClosed AccountStatus = "closed"
)

// Account holds identity and status only. There is no balance field:
// balance is derived from the ledger so there is no second source of
// truth to drift.
type Account struct {
	ID      AccountID
	OwnerID UserID

	// OwnerEmail is denormalized from the identity service at account
	// creation so the post-commit notification hook does not need a
	// directory lookup.
	OwnerEmail string

	Type     AccountType
	Currency Currency
	Status   AccountStatus

	// SystemAccount marks a privileged account allowed to originate
	// initial/seed transfers. Write-once at creation, hidden from
	// normal API reads.
	SystemAccount bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Active reports whether the account can participate in transfers.
func (a *Account) Active() bool {
	return a.Status == AccountActive
}

// Summary is the compact account projection attached to history results.
type Summary struct {
	ID       AccountID   `json:"id"`
	Type     AccountType `json:"type"`
	Currency Currency    `json:"currency"`
}

func (a *Account) Summary() Summary {
	return Summary{ID: a.ID, Type: a.Type, Currency: a.Currency}
}

// =============================================================================
// TRANSACTION - One transfer attempt
// =============================================================================

type TransactionStatus string

const (
	TxPending   TransactionStatus = "pending"
	TxCompleted TransactionStatus = "completed"
	TxFailed    TransactionStatus = "failed"
	TxReversed  TransactionStatus = "reversed"
)

// Transaction records a transfer of Amount from FromAccountID to
// ToAccountID. It is created as pending inside the atomic unit and
// advanced to completed once both ledger entries are durably written.
// failed and reversed are reachable states in the data model but are
// produced by out-of-scope collaborators (manual reversal), never by
// the engine itself.
type Transaction struct {
	ID            TransactionID
	FromAccountID AccountID
	ToAccountID   AccountID
	Amount        decimal.Decimal
	Status        TransactionStatus

	// IdempotencyKey is caller-supplied and unique across all
	// transactions. The storage layer's uniqueness constraint is the
	// authoritative duplicate guard under concurrency.
	IdempotencyKey string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// LEDGER ENTRY - Immutable debit/credit record
// =============================================================================

type EntryType string

const (
	EntryDebit  EntryType = "debit"
	EntryCredit EntryType = "credit"
)

// LedgerEntry belongs to exactly one account and one transaction.
// Entries are append-only: no code path may update or delete one.
type LedgerEntry struct {
	ID            EntryID
	AccountID     AccountID
	TransactionID TransactionID
	EntryType     EntryType
	Amount        decimal.Decimal
	CreatedAt     time.Time
}

// Delta is the signed effect of the entry on its account's balance.
func (e LedgerEntry) Delta() decimal.Decimal {
	if e.EntryType == EntryDebit {
		return e.Amount.Neg()
	}
	return e.Amount
}

// =============================================================================
// IDENTITY - Verified caller, supplied by the upstream auth collaborator
// =============================================================================

// Identity is what the identity collaborator hands the engine: the
// authenticated user and the accounts that user owns. A zero Identity
// (or one with no accounts) is treated as unauthorized.
type Identity struct {
	UserID     UserID
	AccountIDs []AccountID
}

// Owns reports whether the caller owns the given account.
func (id Identity) Owns(accountID AccountID) bool {
	for _, a := range id.AccountIDs {
		if a == accountID {
			return true
		}
	}
	return false
}

// Known reports whether the identity carries any usable claim.
func (id Identity) Known() bool {
	return id.UserID != "" && len(id.AccountIDs) > 0
}
