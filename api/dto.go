/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for the HTTP contract, decoupled from the domain
  model. Amounts travel as decimal strings or numbers (shopspring
  decimal accepts both) and are always rendered back as strings.

NOTE:
  AccountDTO never carries the systemAccount flag: it is write-once at
  creation and hidden from normal reads.
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/hamropay/ledger-engine/bank"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// OpenAccountRequest opens an account for the authenticated caller.
type OpenAccountRequest struct {
	Type          string `json:"type"`
	Currency      string `json:"currency"`
	Email         string `json:"email"`
	SystemAccount bool   `json:"systemAccount,omitempty"`
}

// CreateTransferRequest is the body of POST /api/transactions and
// POST /api/transactions/initial.
type CreateTransferRequest struct {
	FromAccountID  string          `json:"fromAccountId"`
	ToAccountID    string          `json:"toAccountId"`
	Amount         decimal.Decimal `json:"amount"`
	IdempotencyKey string          `json:"idempotencyKey"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// AccountDTO is an account with its derived balance.
type AccountDTO struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	Balance   string    `json:"balance"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BalanceDTO is the single-balance response.
type BalanceDTO struct {
	AccountID string `json:"accountId"`
	Balance   string `json:"balance"`
}

// TransactionDTO is a transfer record in API responses.
type TransactionDTO struct {
	ID            string    `json:"id"`
	FromAccountID string    `json:"fromAccountId"`
	ToAccountID   string    `json:"toAccountId"`
	Amount        string    `json:"amount"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// LedgerEntryDTO is one immutable ledger entry.
type LedgerEntryDTO struct {
	ID            string    `json:"id"`
	AccountID     string    `json:"accountId"`
	TransactionID string    `json:"transactionId"`
	EntryType     string    `json:"entryType"`
	Amount        string    `json:"amount"`
	CreatedAt     time.Time `json:"createdAt"`
}

// TransactionDetailDTO pairs a transaction with its two entries.
type TransactionDetailDTO struct {
	Transaction TransactionDTO   `json:"transaction"`
	Entries     []LedgerEntryDTO `json:"entries"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toAccountDTO(a bank.Account, balance decimal.Decimal) AccountDTO {
	return AccountDTO{
		ID:        string(a.ID),
		Type:      string(a.Type),
		Currency:  string(a.Currency),
		Status:    string(a.Status),
		Balance:   balance.String(),
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func toTransactionDTO(tx *bank.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:            string(tx.ID),
		FromAccountID: string(tx.FromAccountID),
		ToAccountID:   string(tx.ToAccountID),
		Amount:        tx.Amount.String(),
		Status:        string(tx.Status),
		CreatedAt:     tx.CreatedAt,
		UpdatedAt:     tx.UpdatedAt,
	}
}

func toEntryDTOs(entries []bank.LedgerEntry) []LedgerEntryDTO {
	dtos := make([]LedgerEntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, LedgerEntryDTO{
			ID:            string(e.ID),
			AccountID:     string(e.AccountID),
			TransactionID: string(e.TransactionID),
			EntryType:     string(e.EntryType),
			Amount:        e.Amount.String(),
			CreatedAt:     e.CreatedAt,
		})
	}
	return dtos
}
