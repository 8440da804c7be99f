/*
transfer.go - The Transfer Engine

PURPOSE:
  Safely moves value between two accounts with exactly-once semantics.
  A transfer is one transaction record plus two matching ledger entries
  (double-entry), written inside a single atomic unit.

PRECONDITIONS (checked in order, each failing fast):
  1. Both account ids resolve to existing accounts
  2. Caller owns the source account (initial transfers: source must be
     a system account instead)
  3. Source != destination
  4. Idempotency key unused (status-specific rejection otherwise)
  5. Both accounts active
  6. Source balance >= amount (skipped for initial transfers: that is
     how value enters the system, the system account goes negative)

ATOMIC UNIT:
  insert Transaction(pending)
  -> insert debit entry on source
  -> insert credit entry on destination
  -> update Transaction(completed)
  Any failure discards the whole unit; the triggering error is
  re-raised unchanged. The idempotency-key UNIQUE constraint inside the
  unit is the authoritative duplicate guard; the pre-check above is only
  the friendly fast path.

AFTER COMMIT:
  Two notification attempts (one per owner), fire-and-forget. Failures
  are logged and never surface to the caller.

SEE ALSO:
  - balance.go: derived balance used by precondition 6
  - store.go:   the WithTx contract the unit relies on
*/
package bank

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TransferRequest is the input to both transfer entry points.
type TransferRequest struct {
	FromAccountID  AccountID
	ToAccountID    AccountID
	Amount         decimal.Decimal
	IdempotencyKey string
}

// Engine coordinates accounts, the ledger, and transaction records. It
// holds injected handles; there are no package-level singletons.
type Engine struct {
	store    Store
	calc     *Calculator
	notifier Notifier
	log      *zap.Logger
}

func NewEngine(store Store, notifier Notifier, log *zap.Logger) *Engine {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		store:    store,
		calc:     NewCalculator(store),
		notifier: notifier,
		log:      log,
	}
}

// Calculator exposes the engine's balance calculator for read paths.
func (e *Engine) Calculator() *Calculator {
	return e.calc
}

// CreateTransfer moves amount from the caller's account to another
// account. Returns the completed transaction on success.
func (e *Engine) CreateTransfer(ctx context.Context, req TransferRequest, caller Identity) (*Transaction, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	from, err := e.store.GetAccount(ctx, req.FromAccountID)
	if err != nil {
		return nil, err
	}
	if from == nil {
		return nil, ErrInvalidFromAccount
	}
	to, err := e.store.GetAccount(ctx, req.ToAccountID)
	if err != nil {
		return nil, err
	}
	if to == nil {
		return nil, ErrInvalidToAccount
	}

	if !caller.Known() || !caller.Owns(from.ID) {
		return nil, ErrUnauthorized
	}

	if from.ID == to.ID {
		return nil, ErrSameAccount
	}

	if err := e.checkIdempotencyKey(ctx, req.IdempotencyKey); err != nil {
		return nil, err
	}

	if err := checkActive(from, to); err != nil {
		return nil, err
	}

	balance, err := e.calc.Balance(ctx, from.ID)
	if err != nil {
		return nil, err
	}
	if balance.LessThan(req.Amount) {
		return nil, &InsufficientBalanceError{
			AccountID: from.ID,
			Available: balance,
			Requested: req.Amount,
		}
	}

	return e.commit(ctx, req, from, to)
}

// CreateInitialTransfer seeds the first transfer into a newly opened
// account from a designated system account. The ownership check is
// replaced by the systemAccount flag, and the balance precondition is
// skipped: the system account's derived balance goes negative as value
// is issued.
func (e *Engine) CreateInitialTransfer(ctx context.Context, req TransferRequest) (*Transaction, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	from, err := e.store.GetAccount(ctx, req.FromAccountID)
	if err != nil {
		return nil, err
	}
	if from == nil || !from.SystemAccount {
		return nil, ErrNotSystemAccount
	}
	to, err := e.store.GetAccount(ctx, req.ToAccountID)
	if err != nil {
		return nil, err
	}
	if to == nil {
		return nil, ErrInvalidToAccount
	}

	if from.ID == to.ID {
		return nil, ErrSameAccount
	}

	if err := e.checkIdempotencyKey(ctx, req.IdempotencyKey); err != nil {
		return nil, err
	}

	if err := checkActive(from, to); err != nil {
		return nil, err
	}

	return e.commit(ctx, req, from, to)
}

// GetTransfer returns a transaction with its ledger entries. The caller
// must own one of the two accounts involved.
func (e *Engine) GetTransfer(ctx context.Context, id TransactionID, caller Identity) (*Transaction, []LedgerEntry, error) {
	tx, err := e.store.GetTransaction(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if tx == nil {
		return nil, nil, ErrTransactionNotFound
	}
	if !caller.Known() || (!caller.Owns(tx.FromAccountID) && !caller.Owns(tx.ToAccountID)) {
		return nil, nil, ErrUnauthorized
	}

	entries, err := e.store.EntriesByTransaction(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return tx, entries, nil
}

// =============================================================================
// INTERNALS
// =============================================================================

func validateRequest(req TransferRequest) error {
	if req.IdempotencyKey == "" {
		return ErrMissingIdempotencyKey
	}
	if !req.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// checkIdempotencyKey is the fast-path rejection with a status-specific
// message. The UNIQUE constraint inside the atomic unit remains the
// authoritative guard; two concurrent submissions of the same key get
// exactly one completed transfer.
func (e *Engine) checkIdempotencyKey(ctx context.Context, key string) error {
	existing, err := e.store.GetTransactionByKey(ctx, key)
	if err != nil {
		return err
	}
	if existing != nil {
		return &DuplicateTransactionError{Key: key, Status: existing.Status}
	}
	return nil
}

func checkActive(from, to *Account) error {
	if !from.Active() {
		return &InactiveAccountError{Side: "from", AccountID: from.ID, Status: from.Status}
	}
	if !to.Active() {
		return &InactiveAccountError{Side: "to", AccountID: to.ID, Status: to.Status}
	}
	return nil
}

// commit runs the atomic unit and, on success, dispatches notifications.
func (e *Engine) commit(ctx context.Context, req TransferRequest, from, to *Account) (*Transaction, error) {
	now := time.Now().UTC()
	tx := &Transaction{
		ID:             TransactionID(uuid.NewString()),
		FromAccountID:  from.ID,
		ToAccountID:    to.ID,
		Amount:         req.Amount,
		Status:         TxPending,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := e.store.WithTx(ctx, func(s TxStore) error {
		if err := s.CreateTransaction(ctx, tx); err != nil {
			return err
		}
		debit := LedgerEntry{
			ID:            EntryID(uuid.NewString()),
			AccountID:     from.ID,
			TransactionID: tx.ID,
			EntryType:     EntryDebit,
			Amount:        req.Amount,
			CreatedAt:     now,
		}
		if err := s.AppendEntry(ctx, debit); err != nil {
			return err
		}
		credit := LedgerEntry{
			ID:            EntryID(uuid.NewString()),
			AccountID:     to.ID,
			TransactionID: tx.ID,
			EntryType:     EntryCredit,
			Amount:        req.Amount,
			CreatedAt:     now,
		}
		if err := s.AppendEntry(ctx, credit); err != nil {
			return err
		}
		return s.UpdateTransactionStatus(ctx, tx.ID, TxCompleted)
	})
	if err != nil {
		return nil, err
	}
	tx.Status = TxCompleted

	e.log.Info("transfer completed",
		zap.String("transaction_id", string(tx.ID)),
		zap.String("from_account", string(from.ID)),
		zap.String("to_account", string(to.ID)),
		zap.String("amount", req.Amount.String()),
	)

	e.dispatchNotifications(from, to, req.Amount)
	return tx, nil
}

// dispatchNotifications fires one attempt per account owner. It runs in
// the background against a fresh context: the request may already be
// done and the transfer is already durable.
func (e *Engine) dispatchNotifications(from, to *Account, amount decimal.Decimal) {
	debitBody := fmt.Sprintf("Your transaction of %s %s to account %s has been processed.",
		from.Currency, amount.String(), to.ID)
	creditBody := fmt.Sprintf("You received a transaction of %s %s from account %s.",
		to.Currency, amount.String(), from.ID)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := e.notifier.Notify(ctx, from.OwnerEmail, "Transaction Notification", debitBody); err != nil {
			e.log.Warn("debit notification failed",
				zap.String("recipient", from.OwnerEmail), zap.Error(err))
		}
		if err := e.notifier.Notify(ctx, to.OwnerEmail, "Transaction Notification", creditBody); err != nil {
			e.log.Warn("credit notification failed",
				zap.String("recipient", to.OwnerEmail), zap.Error(err))
		}
	}()
}
