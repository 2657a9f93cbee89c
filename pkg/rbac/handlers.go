package rbac

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/wondrousdigital/gateway/pkg/accounts"
	"github.com/wondrousdigital/gateway/pkg/httputil"
	"github.com/wondrousdigital/gateway/pkg/middleware"
)

// Handlers provides HTTP handlers for RBAC queries
type Handlers struct {
	resolver *Resolver
	checker  *Checker
}

// NewHandlers creates new RBAC handlers
func NewHandlers(resolver *Resolver, checker *Checker) *Handlers {
	return &Handlers{
		resolver: resolver,
		checker:  checker,
	}
}

// RegisterRoutes registers all RBAC routes. The router is expected to run
// behind middleware.RequireSession.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/me/role", h.GetMyRole).Methods("GET")
	router.HandleFunc("/api/accounts/{account_id}/permissions/{permission}", h.CheckPermission).Methods("GET")
}

// RoleResponse is the body of GET /api/me/role
type RoleResponse struct {
	IsAdmin     bool          `json:"is_admin"`
	IsStaff     bool          `json:"is_staff"`
	HighestRole accounts.Role `json:"highest_role"`
}

// GetMyRole reports the platform standing and highest role of the session user
func (h *Handlers) GetMyRole(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	status, err := h.resolver.ResolveRole(r.Context(), user.ID)
	if err != nil {
		httputil.WriteServiceUnavailable(w, "role lookup failed")
		return
	}
	highest, err := h.resolver.ResolveHighestRole(r.Context(), user.ID)
	if err != nil {
		httputil.WriteServiceUnavailable(w, "role lookup failed")
		return
	}

	httputil.WriteSuccess(w, RoleResponse{
		IsAdmin:     status.IsAdmin,
		IsStaff:     status.IsStaff,
		HighestRole: highest,
	})
}

// CheckPermission evaluates one permission for the session user in an account
func (h *Handlers) CheckPermission(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	accountID, ok := httputil.ParsePathUUIDOrError(w, r, AccountIDVar, "invalid account id")
	if !ok {
		return
	}
	perm, err := ParsePermission(mux.Vars(r)["permission"])
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	// Backend detail stays in the server log
	result, err := h.checker.Evaluate(r.Context(), user.ID, accountID, perm)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrLookupFailed) {
			status = http.StatusServiceUnavailable
		}
		httputil.WriteErrorMessage(w, status, "permission lookup failed")
		return
	}

	httputil.WriteSuccess(w, result)
}
