package rbac

import (
	"net/http"

	"github.com/wondrousdigital/gateway/pkg/httputil"
	"github.com/wondrousdigital/gateway/pkg/middleware"
)

// AccountIDVar is the mux route variable holding the account scope
const AccountIDVar = "account_id"

// PermissionMiddleware provides middleware for permission checking
type PermissionMiddleware struct {
	checker *Checker
}

// NewPermissionMiddleware creates a new permission middleware
func NewPermissionMiddleware(checker *Checker) *PermissionMiddleware {
	return &PermissionMiddleware{
		checker: checker,
	}
}

// RequirePermission creates middleware that requires perm in the account named
// by the {account_id} route variable. The session user must already be in the
// request context.
func (pm *PermissionMiddleware) RequirePermission(perm Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := middleware.GetUser(r)
			if user == nil {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}

			accountID, ok := httputil.ParsePathUUIDOrError(w, r, AccountIDVar, "invalid account id")
			if !ok {
				return
			}

			if err := pm.checker.RequirePermission(r.Context(), user.ID, accountID, perm); err != nil {
				httputil.WriteForbidden(w, err.Error())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
