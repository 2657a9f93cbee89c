package rbac

import (
	"database/sql"

	"github.com/gorilla/mux"
	"github.com/wondrousdigital/gateway/pkg/audit"
	"github.com/wondrousdigital/gateway/pkg/observability"
)

// Manager manages all RBAC components
type Manager struct {
	store    *Store
	resolver *Resolver
	checker  *Checker
	handlers *Handlers
	accounts *AccountHandlers
}

// NewManager creates a new RBAC manager reading from db. metrics may be nil.
func NewManager(db *sql.DB, logger *observability.Logger, metrics *observability.Metrics) *Manager {
	store := NewStore(db)
	resolver := NewResolver(store, logger)
	checker := NewChecker(resolver, store, logger).WithMetrics(metrics)
	pm := NewPermissionMiddleware(checker)

	return &Manager{
		store:    store,
		resolver: resolver,
		checker:  checker,
		handlers: NewHandlers(resolver, checker),
		accounts: NewAccountHandlers(store, checker, pm),
	}
}

// WithAudit records denied and failed permission checks into a
func (m *Manager) WithAudit(a audit.Logger) *Manager {
	m.checker.WithAudit(a)
	return m
}

// RegisterRoutes registers RBAC routes with a router
func (m *Manager) RegisterRoutes(router *mux.Router) {
	m.handlers.RegisterRoutes(router)
	m.accounts.RegisterRoutes(router)
}

// GetStore returns the RBAC store
func (m *Manager) GetStore() *Store {
	return m.store
}

// GetResolver returns the role resolver
func (m *Manager) GetResolver() *Resolver {
	return m.resolver
}

// GetChecker returns the permission checker
func (m *Manager) GetChecker() *Checker {
	return m.checker
}
