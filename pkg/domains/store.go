package domains

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/wondrousdigital/gateway/pkg/accounts"
)

// Store resolves hosts to projects. Implementations return ErrNotFound when no
// row matches and ErrAmbiguousMatch when more than one does; every other
// failure wraps ErrLookupFailed. Archived projects never match.
type Store interface {
	// ProjectBySlug finds the live project with the given slug
	ProjectBySlug(ctx context.Context, slug string) (*accounts.Project, error)

	// ProjectByVerifiedDomain finds the live project owning a verified domain
	ProjectByVerifiedDomain(ctx context.Context, domain string) (*accounts.Project, error)

	// ReservedRootProject finds the live project serving a reserved root
	// domain: its account holds a reserved domain permission for the domain
	// and the project has the domain verified.
	ReservedRootProject(ctx context.Context, domain string) (*accounts.Project, error)
}

const projectColumns = `p.id, p.account_id, p.name, p.slug, p.archived_at, p.created_at`

// PostgresStore implements Store over PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL domain store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// ProjectBySlug implements Store
func (s *PostgresStore) ProjectBySlug(ctx context.Context, slug string) (*accounts.Project, error) {
	query := `
		SELECT ` + projectColumns + `
		FROM projects p
		WHERE p.slug = $1 AND p.archived_at IS NULL
		LIMIT 2
	`
	return s.queryOne(ctx, "project by slug", query, slug)
}

// ProjectByVerifiedDomain implements Store
func (s *PostgresStore) ProjectByVerifiedDomain(ctx context.Context, domain string) (*accounts.Project, error) {
	query := `
		SELECT ` + projectColumns + `
		FROM project_domains d
		JOIN projects p ON p.id = d.project_id
		WHERE d.domain = $1 AND d.verified AND p.archived_at IS NULL
		LIMIT 2
	`
	return s.queryOne(ctx, "project by domain", query, domain)
}

// ReservedRootProject implements Store
func (s *PostgresStore) ReservedRootProject(ctx context.Context, domain string) (*accounts.Project, error) {
	query := `
		SELECT ` + projectColumns + `
		FROM reserved_domain_permissions r
		JOIN projects p ON p.account_id = r.account_id
		JOIN project_domains d ON d.project_id = p.id
		WHERE r.domain = $1 AND d.domain = $1 AND d.verified AND p.archived_at IS NULL
		LIMIT 2
	`
	return s.queryOne(ctx, "reserved root project", query, domain)
}

func (s *PostgresStore) queryOne(ctx context.Context, what, query string, arg string) (*accounts.Project, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q: %v", ErrLookupFailed, what, arg, err)
	}
	defer rows.Close()

	var found *accounts.Project
	for rows.Next() {
		if found != nil {
			return nil, fmt.Errorf("%w: %s %q", ErrAmbiguousMatch, what, arg)
		}
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %s %q: %v", ErrLookupFailed, what, arg, err)
		}
		found = project
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s %q: %v", ErrLookupFailed, what, arg, err)
	}
	if found == nil {
		return nil, ErrNotFound
	}

	return found, nil
}

func scanProject(scanner interface {
	Scan(dest ...interface{}) error
}) (*accounts.Project, error) {
	project := &accounts.Project{}
	var archivedAt sql.NullTime
	err := scanner.Scan(
		&project.ID,
		&project.AccountID,
		&project.Name,
		&project.Slug,
		&archivedAt,
		&project.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if archivedAt.Valid {
		t := archivedAt.Time
		project.ArchivedAt = &t
	}
	return project, nil
}

// IsLookupFailure reports whether err is a backend failure rather than a
// definite answer
func IsLookupFailure(err error) bool {
	return err != nil && !errors.Is(err, ErrNotFound)
}
