package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const defaultAuditTable = "audit_logs"

// Repository persists audit entries to Postgres.
type Repository struct {
	db    *sql.DB
	table string
}

// RepositoryOption customizes the repository.
type RepositoryOption func(*Repository)

// WithAuditTable overrides the audit table name.
func WithAuditTable(table string) RepositoryOption {
	return func(r *Repository) {
		if table != "" {
			r.table = table
		}
	}
}

// NewRepository constructs an audit repository.
func NewRepository(db *sql.DB, opts ...RepositoryOption) *Repository {
	if db == nil {
		return nil
	}
	repo := &Repository{db: db, table: defaultAuditTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// Log fills in entry defaults and inserts the row.
func (r *Repository) Log(ctx context.Context, entry Entry) error {
	if r == nil || r.db == nil {
		return errors.New("audit repository: nil db")
	}
	if entry.ID == "" {
		entry.ID = newEntryID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.MetadataDigest == "" {
		entry.MetadataDigest = digest(entry.Metadata)
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id, tenant_id, actor, role, action, object_type, object_id, site_id,
	metadata, metadata_digest, ip, user_agent, created_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
)`, r.table)
	if _, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.TenantID, entry.Actor, entry.Role, entry.Action,
		entry.ObjectType, entry.ObjectID, entry.SiteID,
		entry.Metadata, entry.MetadataDigest, entry.IP, entry.UserAgent, entry.CreatedAt); err != nil {
		return fmt.Errorf("audit repository: insert: %w", err)
	}
	return nil
}
