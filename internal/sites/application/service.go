package application

import (
	"context"
	"errors"

	sites "sitewatch-cloud/internal/sites/domain"
)

// SiteService provides the site registry commands.
type SiteService struct {
	repo sites.SiteRepository
}

// NewSiteService constructs a site service.
func NewSiteService(repo sites.SiteRepository) (*SiteService, error) {
	if repo == nil {
		return nil, errors.New("site service: nil repository")
	}
	return &SiteService{repo: repo}, nil
}

// UpsertSite validates and saves a site.
func (s *SiteService) UpsertSite(ctx context.Context, site *sites.Site) error {
	if site == nil {
		return errors.New("site service: nil site")
	}
	if err := site.Validate(); err != nil {
		return err
	}
	return s.repo.Save(ctx, site)
}

// ListSites returns the tenant's sites.
func (s *SiteService) ListSites(ctx context.Context, tenantID string) ([]sites.Site, error) {
	if tenantID == "" {
		return nil, errors.New("site service: empty tenant id")
	}
	return s.repo.ListByTenant(ctx, tenantID)
}
