/*
errors.go - Centralized error types for the transfer engine

PURPOSE:
  All domain errors in one place. Each error belongs to a stable,
  machine-checkable kind; the API layer maps kinds to HTTP statuses.

ERROR KINDS:
  validation         bad input, unknown account, same-account transfer
  authorization      caller does not own the source account / not system
  conflict           duplicate idempotency key (any prior status)
  insufficient-funds derived balance below the requested amount
  immutability       attempted ledger mutation
  internal           unexpected storage failure inside the atomic unit

USAGE:
  if errors.Is(err, bank.ErrInsufficientBalance) { ... }
  if bank.IsConflict(err) { w.WriteHeader(http.StatusConflict) }
*/
package bank

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidFromAccount is returned when the source account id does
	// not resolve to an existing account.
	ErrInvalidFromAccount = errors.New("invalid from account")

	// ErrInvalidToAccount is returned when the destination account id
	// does not resolve to an existing account.
	ErrInvalidToAccount = errors.New("invalid to account")

	// ErrUnauthorized is returned when the caller does not own the
	// source account, or carries no usable identity at all.
	ErrUnauthorized = errors.New("unauthorized access")

	// ErrNotSystemAccount is returned by the initial-transaction path
	// when the source account is missing or not flagged as a system
	// account.
	ErrNotSystemAccount = errors.New("invalid system account")

	// ErrSameAccount is returned when source and destination are the
	// same account.
	ErrSameAccount = errors.New("cannot transfer to the same account")

	// ErrDuplicateIdempotencyKey is the conflict root: some transaction
	// already carries the submitted key. Prefer matching the structured
	// DuplicateTransactionError for the prior status.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrInsufficientBalance is returned when the source account's
	// derived balance is below the requested amount.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrLedgerImmutable is returned by any attempt to update or delete
	// a ledger entry. Enforced by the storage layer, not caller
	// discipline.
	ErrLedgerImmutable = errors.New("ledger is immutable")

	// ErrAccountExists is returned when creating a second account for
	// the same (owner, type) pair.
	ErrAccountExists = errors.New("account already exists for this owner and type")

	// ErrAccountNotFound is returned by account reads for unknown ids.
	ErrAccountNotFound = errors.New("account not found")

	// ErrTransactionNotFound is returned by transaction reads for
	// unknown ids.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrInvalidAmount is returned when the requested amount is not a
	// positive decimal.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrMissingIdempotencyKey is returned when no key was supplied.
	ErrMissingIdempotencyKey = errors.New("idempotency key is required")

	// ErrInvalidAccountType is returned when opening an account with an
	// unknown type.
	ErrInvalidAccountType = errors.New("invalid account type")

	// ErrInvalidCurrency is returned when opening an account with an
	// unknown currency.
	ErrInvalidCurrency = errors.New("invalid currency")

	// ErrAccountNotActive is the root for status rejections; match the
	// structured InactiveAccountError for the offending side.
	ErrAccountNotActive = errors.New("account is not active")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// DuplicateTransactionError reports an idempotency-key collision together
// with the prior transaction's status, so callers can tell "already done"
// from "still running" from "retry with a new key".
type DuplicateTransactionError struct {
	Key    string
	Status TransactionStatus
}

func (e *DuplicateTransactionError) Error() string {
	switch e.Status {
	case TxCompleted:
		return "transaction already completed"
	case TxPending:
		return "transaction is still pending"
	case TxFailed:
		return "transaction failed, retry with a new idempotency key"
	default:
		return fmt.Sprintf("transaction with this idempotency key already exists (status %s)", e.Status)
	}
}

func (e *DuplicateTransactionError) Unwrap() error {
	return ErrDuplicateIdempotencyKey
}

// InactiveAccountError names the offending side when a transfer is
// rejected for account status.
type InactiveAccountError struct {
	Side      string // "from" or "to"
	AccountID AccountID
	Status    AccountStatus
}

func (e *InactiveAccountError) Error() string {
	return fmt.Sprintf("%s account is not active", e.Side)
}

func (e *InactiveAccountError) Unwrap() error {
	return ErrAccountNotActive
}

// InsufficientBalanceError reports the shortfall.
type InsufficientBalanceError struct {
	AccountID AccountID
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: available %s, requested %s",
		e.Available.String(), e.Requested.String())
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// =============================================================================
// ERROR KIND PREDICATES
// =============================================================================

// IsValidation reports bad or missing input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidFromAccount) ||
		errors.Is(err, ErrInvalidToAccount) ||
		errors.Is(err, ErrSameAccount) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrMissingIdempotencyKey) ||
		errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrTransactionNotFound) ||
		errors.Is(err, ErrInvalidAccountType) ||
		errors.Is(err, ErrInvalidCurrency) ||
		errors.Is(err, ErrAccountNotActive)
}

// IsAuthorization reports a caller that may not perform the operation.
func IsAuthorization(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrNotSystemAccount)
}

// IsConflict reports an idempotency-key collision or a uniqueness clash.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateIdempotencyKey) ||
		errors.Is(err, ErrAccountExists)
}

// IsInsufficientFunds reports a balance shortfall.
func IsInsufficientFunds(err error) bool {
	return errors.Is(err, ErrInsufficientBalance)
}

// IsImmutabilityViolation reports an attempted ledger mutation.
func IsImmutabilityViolation(err error) bool {
	return errors.Is(err, ErrLedgerImmutable)
}
