/*
history.go - Paginated transaction history

PURPOSE:
  Read path over the transaction records for one account, in either
  direction (source or destination), newest first, with optional
  inclusive creation-time bounds. Each row is enriched with compact
  summaries of both counterpart accounts.

AUTHORIZATION:
  Identical to the transfer ownership check: the caller must own the
  queried account.
*/
package bank

import (
	"context"
	"time"
)

const defaultHistoryLimit = 10

// HistoryItem is one transaction enriched with counterpart summaries.
// A summary is nil when the counterpart account no longer resolves.
type HistoryItem struct {
	ID          TransactionID     `json:"id"`
	FromAccount *Summary          `json:"fromAccount"`
	ToAccount   *Summary          `json:"toAccount"`
	Amount      string            `json:"amount"`
	Status      TransactionStatus `json:"status"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// Pagination describes the page returned and the full result size.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// HistoryPage is one page of history plus pagination metadata.
type HistoryPage struct {
	History    []HistoryItem `json:"history"`
	Pagination Pagination    `json:"pagination"`
}

// History returns one page of the account's transaction history. Page
// and limit are normalized to sane values; date bounds are optional and
// inclusive (malformed date strings never reach this layer - the API
// drops them during parsing rather than erroring).
func (e *Engine) History(ctx context.Context, accountID AccountID, filter HistoryFilter, caller Identity) (*HistoryPage, error) {
	if !caller.Known() || !caller.Owns(accountID) {
		return nil, ErrUnauthorized
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = defaultHistoryLimit
	}

	txs, total, err := e.store.TransactionsByAccount(ctx, accountID, filter)
	if err != nil {
		return nil, err
	}

	// One lookup per distinct counterpart account on this page.
	summaries := make(map[AccountID]*Summary)
	lookup := func(id AccountID) (*Summary, error) {
		if s, ok := summaries[id]; ok {
			return s, nil
		}
		account, err := e.store.GetAccount(ctx, id)
		if err != nil {
			return nil, err
		}
		var s *Summary
		if account != nil {
			sum := account.Summary()
			s = &sum
		}
		summaries[id] = s
		return s, nil
	}

	items := make([]HistoryItem, 0, len(txs))
	for _, tx := range txs {
		from, err := lookup(tx.FromAccountID)
		if err != nil {
			return nil, err
		}
		to, err := lookup(tx.ToAccountID)
		if err != nil {
			return nil, err
		}
		items = append(items, HistoryItem{
			ID:          tx.ID,
			FromAccount: from,
			ToAccount:   to,
			Amount:      tx.Amount.String(),
			Status:      tx.Status,
			CreatedAt:   tx.CreatedAt,
			UpdatedAt:   tx.UpdatedAt,
		})
	}

	pages := 0
	if total > 0 {
		pages = (total + filter.Limit - 1) / filter.Limit
	}

	return &HistoryPage{
		History: items,
		Pagination: Pagination{
			Page:  filter.Page,
			Limit: filter.Limit,
			Total: total,
			Pages: pages,
		},
	}, nil
}
