package sites

import (
	"context"
	"errors"
	"time"
)

// Site is one monitored location. Devices report against a site; replay and
// access checks are scoped by it.
type Site struct {
	SiteID    string    `json:"site_id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	Timezone  string    `json:"timezone"`
	Region    string    `json:"region"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks site invariants.
func (s Site) Validate() error {
	if s.SiteID == "" {
		return errors.New("site: empty site id")
	}
	if s.TenantID == "" {
		return errors.New("site: empty tenant id")
	}
	if s.Name == "" {
		return errors.New("site: empty name")
	}
	return nil
}

// SiteRepository manages site persistence.
type SiteRepository interface {
	Get(ctx context.Context, siteID string) (*Site, error)
	ListByTenant(ctx context.Context, tenantID string) ([]Site, error)
	Save(ctx context.Context, site *Site) error
}
