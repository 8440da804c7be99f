/*
accounts.go - Account Registry operations

PURPOSE:
  Opening accounts and reading them with their derived balance. At most
  one account per (owner, type) pair; the store's uniqueness constraint
  backs the rule. Accounts are never physically deleted here - status
  transitions (freeze/close) belong to account-management collaborators.
*/
package bank

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OpenAccountRequest is the input to OpenAccount. SystemAccount is
// write-once: it can only be set at creation, by a system caller.
type OpenAccountRequest struct {
	OwnerID       UserID
	OwnerEmail    string
	Type          AccountType
	Currency      Currency
	SystemAccount bool
}

// AccountWithBalance pairs an account with its computed balance.
type AccountWithBalance struct {
	Account Account
	Balance decimal.Decimal
}

// OpenAccount creates an active account for the owner. Returns
// ErrAccountExists when the owner already has an account of this type.
func (e *Engine) OpenAccount(ctx context.Context, req OpenAccountRequest) (*Account, error) {
	if req.OwnerID == "" {
		return nil, ErrUnauthorized
	}
	switch req.Type {
	case AccountSavings, AccountCurrent:
	default:
		return nil, ErrInvalidAccountType
	}
	switch req.Currency {
	case CurrencyNPR, CurrencyINR, CurrencyUSD:
	case "":
		req.Currency = CurrencyNPR
	default:
		return nil, ErrInvalidCurrency
	}

	now := time.Now().UTC()
	account := &Account{
		ID:            AccountID(uuid.NewString()),
		OwnerID:       req.OwnerID,
		OwnerEmail:    req.OwnerEmail,
		Type:          req.Type,
		Currency:      req.Currency,
		Status:        AccountActive,
		SystemAccount: req.SystemAccount,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := e.store.CreateAccount(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// AccountBalance returns the derived balance of one account owned by
// the caller.
func (e *Engine) AccountBalance(ctx context.Context, accountID AccountID, caller Identity) (decimal.Decimal, error) {
	account, err := e.store.GetAccount(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	if account == nil {
		return decimal.Zero, ErrAccountNotFound
	}
	if !caller.Known() || !caller.Owns(accountID) {
		return decimal.Zero, ErrUnauthorized
	}
	return e.calc.Balance(ctx, accountID)
}

// AccountsForOwner lists the caller's accounts, each with its derived
// balance.
func (e *Engine) AccountsForOwner(ctx context.Context, ownerID UserID) ([]AccountWithBalance, error) {
	if ownerID == "" {
		return nil, ErrUnauthorized
	}
	accounts, err := e.store.AccountsByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	result := make([]AccountWithBalance, 0, len(accounts))
	for _, account := range accounts {
		balance, err := e.calc.Balance(ctx, account.ID)
		if err != nil {
			return nil, err
		}
		result = append(result, AccountWithBalance{Account: account, Balance: balance})
	}
	return result, nil
}

// ResolveIdentity builds the caller's Identity from the account
// registry. This stands in for the upstream identity collaborator: the
// user id arrives verified from the auth gateway, and the owned account
// list is derived here.
func (e *Engine) ResolveIdentity(ctx context.Context, userID UserID) (Identity, error) {
	if userID == "" {
		return Identity{}, ErrUnauthorized
	}
	accounts, err := e.store.AccountsByOwner(ctx, userID)
	if err != nil {
		return Identity{}, err
	}
	ids := make([]AccountID, 0, len(accounts))
	for _, a := range accounts {
		ids = append(ids, a.ID)
	}
	return Identity{UserID: userID, AccountIDs: ids}, nil
}
