package rbac

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/wondrousdigital/gateway/pkg/accounts"
	"github.com/wondrousdigital/gateway/pkg/audit"
	"github.com/wondrousdigital/gateway/pkg/observability"
)

var errBackendDown = errors.New("connection refused")

// memoryStore is an in-memory MembershipLister, GrantStore and AccountReader backed by
// DefaultRolePermissions
type memoryStore struct {
	mu          sync.Mutex
	memberships []accounts.MembershipRecord
	rolePerms   map[accounts.Role][]Permission
	accountRows map[uuid.UUID]*accounts.Account
	listErr     error
	grantErr    error
	accountErr  error
	listCalls   int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		rolePerms:   DefaultRolePermissions(),
		accountRows: map[uuid.UUID]*accounts.Account{},
	}
}

func (s *memoryStore) addAccount(account *accounts.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accountRows[account.ID] = account
}

func (s *memoryStore) GetAccount(ctx context.Context, id uuid.UUID) (*accounts.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.accountErr != nil {
		return nil, s.accountErr
	}
	if account, ok := s.accountRows[id]; ok {
		return account, nil
	}
	return nil, accounts.ErrNotFound
}

func (s *memoryStore) GetAccountBySlug(ctx context.Context, slug string) (*accounts.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.accountErr != nil {
		return nil, s.accountErr
	}
	for _, account := range s.accountRows {
		if account.Slug == slug {
			return account, nil
		}
	}
	return nil, accounts.ErrNotFound
}

func (s *memoryStore) GetMembership(ctx context.Context, userID, accountID uuid.UUID) (*accounts.MembershipRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.accountErr != nil {
		return nil, s.accountErr
	}
	for _, m := range s.memberships {
		if m.UserID == userID && m.AccountID == accountID {
			record := m
			return &record, nil
		}
	}
	return nil, accounts.ErrNotFound
}

func (s *memoryStore) add(userID, accountID uuid.UUID, role accounts.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memberships = append(s.memberships, accounts.MembershipRecord{
		UserID:    userID,
		AccountID: accountID,
		Role:      role,
	})
}

func (s *memoryStore) ListMemberships(ctx context.Context, userID uuid.UUID) ([]accounts.MembershipRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []accounts.MembershipRecord
	for _, m := range s.memberships {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memoryStore) GetGrant(ctx context.Context, userID, accountID uuid.UUID, perm Permission) (*Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.grantErr != nil {
		return nil, s.grantErr
	}
	for _, m := range s.memberships {
		if m.UserID != userID || m.AccountID != accountID {
			continue
		}
		grant := &Grant{AccountID: m.AccountID, Role: m.Role}
		for _, p := range s.rolePerms[m.Role] {
			if p == perm {
				grant.Granted = true
			}
		}
		return grant, nil
	}
	return nil, accounts.ErrNotFound
}

func quietLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func newTestChecker(store *memoryStore) *Checker {
	resolver := NewResolver(store, quietLogger())
	return NewChecker(resolver, store, quietLogger())
}

// auditRecorder is an in-memory audit.Logger
type auditRecorder struct {
	mu     sync.Mutex
	events []*audit.Event
}

func (a *auditRecorder) Log(_ context.Context, event *audit.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return nil
}

func (a *auditRecorder) Close() error { return nil }
