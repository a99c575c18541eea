package auth

import (
	"context"
	"database/sql"
	"errors"
)

var (
	// ErrTenantMismatch indicates the site belongs to a different tenant.
	ErrTenantMismatch = errors.New("tenant mismatch")
	// ErrNotFound indicates the site is not registered.
	ErrNotFound = errors.New("resource not found")
)

// SiteTenantChecker validates site tenant ownership.
type SiteTenantChecker interface {
	EnsureSiteTenant(ctx context.Context, tenantID, siteID string) error
}

// SiteChecker checks site ownership against the sites registry.
type SiteChecker struct {
	db *sql.DB
}

// NewSiteChecker constructs a SiteChecker.
func NewSiteChecker(db *sql.DB) *SiteChecker {
	if db == nil {
		return nil
	}
	return &SiteChecker{db: db}
}

// EnsureSiteTenant verifies the site belongs to the tenant. Missing
// identifiers skip the check so unscoped internal callers keep working.
func (c *SiteChecker) EnsureSiteTenant(ctx context.Context, tenantID, siteID string) error {
	if c == nil || c.db == nil {
		return nil
	}
	if tenantID == "" || siteID == "" {
		return nil
	}
	var owner string
	err := c.db.QueryRowContext(ctx, "SELECT tenant_id FROM sites WHERE site_id = $1", siteID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if owner != tenantID {
		return ErrTenantMismatch
	}
	return nil
}
