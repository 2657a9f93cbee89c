package rbac

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/wondrousdigital/gateway/pkg/accounts"
	"github.com/wondrousdigital/gateway/pkg/httputil"
	"github.com/wondrousdigital/gateway/pkg/middleware"
)

// AccountReader is the read side of accounts.Store used by the account routes
type AccountReader interface {
	GetAccount(ctx context.Context, id uuid.UUID) (*accounts.Account, error)
	GetAccountBySlug(ctx context.Context, slug string) (*accounts.Account, error)
	GetMembership(ctx context.Context, userID, accountID uuid.UUID) (*accounts.MembershipRecord, error)
}

// AccountHandlers serves account reads guarded by account:read
type AccountHandlers struct {
	store      AccountReader
	checker    *Checker
	middleware *PermissionMiddleware
}

// NewAccountHandlers creates account handlers
func NewAccountHandlers(store AccountReader, checker *Checker, pm *PermissionMiddleware) *AccountHandlers {
	return &AccountHandlers{
		store:      store,
		checker:    checker,
		middleware: pm,
	}
}

// RegisterRoutes registers the account routes. The slug route is registered
// first so "by-slug" is never read as an account id.
func (h *AccountHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/accounts/by-slug/{slug}", h.GetAccountBySlug).Methods("GET")
	router.Handle("/api/accounts/{account_id}",
		h.middleware.RequirePermission(AccountRead)(http.HandlerFunc(h.GetAccount))).Methods("GET")
	router.HandleFunc("/api/accounts/{account_id}/membership", h.GetMyMembership).Methods("GET")
}

// GetAccount returns the account named by {account_id}
func (h *AccountHandlers) GetAccount(w http.ResponseWriter, r *http.Request) {
	accountID, ok := httputil.ParsePathUUIDOrError(w, r, AccountIDVar, "invalid account id")
	if !ok {
		return
	}

	account, err := h.store.GetAccount(r.Context(), accountID)
	if errors.Is(err, accounts.ErrNotFound) {
		httputil.WriteNotFoundError(w, "account not found")
		return
	}
	if err != nil {
		httputil.WriteServiceUnavailable(w, "account lookup failed")
		return
	}

	httputil.WriteSuccess(w, account)
}

// GetAccountBySlug returns the account with {slug}. An account the user
// cannot read answers 404 like a missing one.
func (h *AccountHandlers) GetAccountBySlug(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	account, err := h.store.GetAccountBySlug(r.Context(), mux.Vars(r)["slug"])
	if errors.Is(err, accounts.ErrNotFound) {
		httputil.WriteNotFoundError(w, "account not found")
		return
	}
	if err != nil {
		httputil.WriteServiceUnavailable(w, "account lookup failed")
		return
	}

	if !h.checker.HasPermission(r.Context(), user.ID, account.ID, AccountRead) {
		httputil.WriteNotFoundError(w, "account not found")
		return
	}

	httputil.WriteSuccess(w, account)
}

// GetMyMembership returns the session user's own membership in {account_id}
func (h *AccountHandlers) GetMyMembership(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	accountID, ok := httputil.ParsePathUUIDOrError(w, r, AccountIDVar, "invalid account id")
	if !ok {
		return
	}

	record, err := h.store.GetMembership(r.Context(), user.ID, accountID)
	if errors.Is(err, accounts.ErrNotFound) {
		httputil.WriteNotFoundError(w, "membership not found")
		return
	}
	if err != nil {
		httputil.WriteServiceUnavailable(w, "membership lookup failed")
		return
	}

	httputil.WriteSuccess(w, record)
}
