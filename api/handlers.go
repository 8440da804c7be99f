/*
handlers.go - HTTP API handlers for the ledger engine

PURPOSE:
  Exposes the transfer engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Accounts:
    POST   /api/accounts                    Open an account
    GET    /api/accounts                    List the caller's accounts
    GET    /api/accounts/{id}/balance       Derived balance
    GET    /api/accounts/{id}/transactions  Paginated transfer history

  Transactions:
    POST   /api/transactions                Create a transfer
    GET    /api/transactions/{id}           Transfer with ledger entries
    POST   /api/transactions/initial        Seed value from a system account

AUTHENTICATION:
  Callers identify themselves with the X-User-Id header. The identity
  middleware resolves the header to the caller's account set; handlers
  pass the resolved identity to the engine, which enforces ownership.
  The initial-transaction route additionally requires the
  X-System-User: true header.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, insufficient balance
  - 401: Unauthorized (ownership violations)
  - 403: Missing system-user privilege
  - 404: Account or transaction not found
  - 409: Conflict (duplicate idempotency key)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hamropay/ledger-engine/bank"
)

// Handler holds all dependencies for the HTTP API.
type Handler struct {
	Engine *bank.Engine
	Log    *zap.Logger
}

// NewHandler creates a handler backed by the given engine.
func NewHandler(engine *bank.Engine, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{Engine: engine, Log: log}
}

// =============================================================================
// IDENTITY MIDDLEWARE
// =============================================================================

type contextKey string

const identityKey contextKey = "identity"

// withIdentity resolves the X-User-Id header into a caller identity.
// Requests without the header proceed with an empty identity; the
// engine rejects operations that require ownership.
func (h *Handler) withIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-Id")
		if userID == "" {
			next.ServeHTTP(w, r)
			return
		}
		identity, err := h.Engine.ResolveIdentity(r.Context(), bank.UserID(userID))
		if err != nil {
			h.writeError(w, http.StatusInternalServerError, err)
			return
		}
		ctx := context.WithValue(r.Context(), identityKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireSystemCaller gates routes reserved for system operators.
func (h *Handler) requireSystemCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-System-User") != "true" {
			h.writeError(w, http.StatusForbidden, errors.New("system privileges required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func callerFrom(r *http.Request) bank.Identity {
	if identity, ok := r.Context().Value(identityKey).(bank.Identity); ok {
		return identity
	}
	return bank.Identity{}
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// OpenAccount handles POST /api/accounts.
func (h *Handler) OpenAccount(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		h.writeError(w, http.StatusUnauthorized, bank.ErrUnauthorized)
		return
	}

	var req OpenAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	if req.SystemAccount && r.Header.Get("X-System-User") != "true" {
		h.writeError(w, http.StatusForbidden, errors.New("system privileges required"))
		return
	}

	account, err := h.Engine.OpenAccount(r.Context(), bank.OpenAccountRequest{
		OwnerID:       bank.UserID(userID),
		OwnerEmail:    req.Email,
		Type:          bank.AccountType(req.Type),
		Currency:      bank.Currency(req.Currency),
		SystemAccount: req.SystemAccount,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toAccountDTO(*account, decimal.Zero))
}

// ListAccounts handles GET /api/accounts.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		h.writeError(w, http.StatusUnauthorized, bank.ErrUnauthorized)
		return
	}

	accounts, err := h.Engine.AccountsForOwner(r.Context(), bank.UserID(userID))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	dtos := make([]AccountDTO, 0, len(accounts))
	for _, a := range accounts {
		dtos = append(dtos, toAccountDTO(a.Account, a.Balance))
	}
	h.writeJSON(w, http.StatusOK, dtos)
}

// GetBalance handles GET /api/accounts/{id}/balance.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	accountID := bank.AccountID(chi.URLParam(r, "id"))

	balance, err := h.Engine.AccountBalance(r.Context(), accountID, callerFrom(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, BalanceDTO{
		AccountID: string(accountID),
		Balance:   balance.String(),
	})
}

// GetHistory handles GET /api/accounts/{id}/transactions.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	accountID := bank.AccountID(chi.URLParam(r, "id"))
	filter := parseHistoryFilter(r)

	page, err := h.Engine.History(r.Context(), accountID, filter, callerFrom(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, page)
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

// CreateTransfer handles POST /api/transactions.
func (h *Handler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req CreateTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	tx, err := h.Engine.CreateTransfer(r.Context(), bank.TransferRequest{
		FromAccountID:  bank.AccountID(req.FromAccountID),
		ToAccountID:    bank.AccountID(req.ToAccountID),
		Amount:         req.Amount,
		IdempotencyKey: req.IdempotencyKey,
	}, callerFrom(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

// CreateInitialTransfer handles POST /api/transactions/initial.
func (h *Handler) CreateInitialTransfer(w http.ResponseWriter, r *http.Request) {
	var req CreateTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	tx, err := h.Engine.CreateInitialTransfer(r.Context(), bank.TransferRequest{
		FromAccountID:  bank.AccountID(req.FromAccountID),
		ToAccountID:    bank.AccountID(req.ToAccountID),
		Amount:         req.Amount,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

// GetTransfer handles GET /api/transactions/{id}.
func (h *Handler) GetTransfer(w http.ResponseWriter, r *http.Request) {
	id := bank.TransactionID(chi.URLParam(r, "id"))

	tx, entries, err := h.Engine.GetTransfer(r.Context(), id, callerFrom(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, TransactionDetailDTO{
		Transaction: toTransactionDTO(tx),
		Entries:     toEntryDTOs(entries),
	})
}

// =============================================================================
// QUERY PARSING
// =============================================================================

// parseHistoryFilter extracts pagination and date-range parameters.
// Malformed dates are ignored rather than rejected, so a bad filter
// degrades to an unfiltered history.
func parseHistoryFilter(r *http.Request) bank.HistoryFilter {
	q := r.URL.Query()

	var filter bank.HistoryFilter
	if page, err := strconv.Atoi(q.Get("page")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		filter.Limit = limit
	}
	if from, ok := parseDate(q.Get("fromDate")); ok {
		filter.From = &from
	}
	if to, ok := parseDate(q.Get("toDate")); ok {
		filter.To = &to
	}
	return filter
}

func parseDate(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

// writeDomainError maps domain error kinds to HTTP statuses. Not-found
// checks run before the validation predicate, which also matches them.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, bank.ErrAccountNotFound), errors.Is(err, bank.ErrTransactionNotFound):
		h.writeError(w, http.StatusNotFound, err)
	case bank.IsAuthorization(err):
		h.writeError(w, http.StatusUnauthorized, err)
	case bank.IsConflict(err):
		h.writeError(w, http.StatusConflict, err)
	case bank.IsInsufficientFunds(err), bank.IsValidation(err):
		h.writeError(w, http.StatusBadRequest, err)
	default:
		h.Log.Error("request failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, errors.New("internal server error"))
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Log.Error("failed to encode response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, ErrorResponse{Error: err.Error()})
}
