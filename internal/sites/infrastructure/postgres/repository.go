package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sites "sitewatch-cloud/internal/sites/domain"
)

const defaultSitesTable = "sites"

// SiteRepository is a Postgres implementation for sites.
type SiteRepository struct {
	db    *sql.DB
	table string
}

// NewSiteRepository constructs a repository.
func NewSiteRepository(db *sql.DB, opts ...SiteOption) *SiteRepository {
	repo := &SiteRepository{db: db, table: defaultSitesTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// SiteOption configures the repository.
type SiteOption func(*SiteRepository)

// WithSitesTable overrides the default table name.
func WithSitesTable(table string) SiteOption {
	return func(repo *SiteRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Get loads a site by id. A missing site returns nil, nil.
func (r *SiteRepository) Get(ctx context.Context, siteID string) (*sites.Site, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("site repo: nil db")
	}
	if siteID == "" {
		return nil, errors.New("site repo: empty site id")
	}

	query := fmt.Sprintf(`
SELECT site_id, tenant_id, name, timezone, region, created_at, updated_at
FROM %s
WHERE site_id = $1
LIMIT 1`, r.table)

	var site sites.Site
	if err := r.db.QueryRowContext(ctx, query, siteID).Scan(
		&site.SiteID,
		&site.TenantID,
		&site.Name,
		&site.Timezone,
		&site.Region,
		&site.CreatedAt,
		&site.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	site.CreatedAt = site.CreatedAt.UTC()
	site.UpdatedAt = site.UpdatedAt.UTC()
	return &site, nil
}

// ListByTenant loads every site owned by a tenant, name ascending.
func (r *SiteRepository) ListByTenant(ctx context.Context, tenantID string) ([]sites.Site, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("site repo: nil db")
	}
	if tenantID == "" {
		return nil, errors.New("site repo: empty tenant id")
	}

	query := fmt.Sprintf(`
SELECT site_id, tenant_id, name, timezone, region, created_at, updated_at
FROM %s
WHERE tenant_id = $1
ORDER BY name ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]sites.Site, 0)
	for rows.Next() {
		var site sites.Site
		if err := rows.Scan(
			&site.SiteID,
			&site.TenantID,
			&site.Name,
			&site.Timezone,
			&site.Region,
			&site.CreatedAt,
			&site.UpdatedAt,
		); err != nil {
			return nil, err
		}
		site.CreatedAt = site.CreatedAt.UTC()
		site.UpdatedAt = site.UpdatedAt.UTC()
		out = append(out, site)
	}
	return out, rows.Err()
}

// Save upserts a site.
func (r *SiteRepository) Save(ctx context.Context, site *sites.Site) error {
	if r == nil || r.db == nil {
		return errors.New("site repo: nil db")
	}
	if site == nil {
		return errors.New("site repo: nil site")
	}
	if err := site.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	site_id,
	tenant_id,
	name,
	timezone,
	region
) VALUES (
	$1, $2, $3, $4, $5
)
ON CONFLICT (site_id)
DO UPDATE SET
	tenant_id = EXCLUDED.tenant_id,
	name = EXCLUDED.name,
	timezone = EXCLUDED.timezone,
	region = EXCLUDED.region,
	updated_at = NOW()`, r.table)

	_, err := r.db.ExecContext(
		ctx,
		query,
		site.SiteID,
		site.TenantID,
		site.Name,
		site.Timezone,
		site.Region,
	)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if site.CreatedAt.IsZero() {
		site.CreatedAt = now
	}
	site.UpdatedAt = now
	return nil
}
