package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"sitewatch-cloud/internal/auth"
	siteapp "sitewatch-cloud/internal/sites/application"
	sites "sitewatch-cloud/internal/sites/domain"
)

type stubSiteRepo struct {
	sites map[string]sites.Site
}

func newStubSiteRepo() *stubSiteRepo {
	return &stubSiteRepo{sites: make(map[string]sites.Site)}
}

func (s *stubSiteRepo) Get(_ context.Context, siteID string) (*sites.Site, error) {
	site, ok := s.sites[siteID]
	if !ok {
		return nil, nil
	}
	return &site, nil
}

func (s *stubSiteRepo) ListByTenant(_ context.Context, tenantID string) ([]sites.Site, error) {
	out := make([]sites.Site, 0)
	for _, site := range s.sites {
		if site.TenantID == tenantID {
			out = append(out, site)
		}
	}
	return out, nil
}

func (s *stubSiteRepo) Save(_ context.Context, site *sites.Site) error {
	s.sites[site.SiteID] = *site
	return nil
}

func newTestSiteHandler(t *testing.T, repo sites.SiteRepository) *SiteHandler {
	t.Helper()
	service, err := siteapp.NewSiteService(repo)
	if err != nil {
		t.Fatalf("new site service: %v", err)
	}
	handler, err := NewSiteHandler(service, nil)
	if err != nil {
		t.Fatalf("new site handler: %v", err)
	}
	return handler
}

func identityRequest(method, target, body, tenantID string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	ctx := auth.WithIdentity(req.Context(), tenantID, auth.RoleOperator, "user-1")
	return req.WithContext(ctx)
}

func TestSiteUpsertAndList(t *testing.T) {
	repo := newStubSiteRepo()
	handler := newTestSiteHandler(t, repo)

	body := `{"site_id":"site-1","name":"North Field","timezone":"UTC","region":"eu"}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, identityRequest(http.MethodPost, "/api/v1/sites", body, "tenant-a"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	stored := repo.sites["site-1"]
	if stored.TenantID != "tenant-a" {
		t.Fatalf("expected tenant from identity, got %q", stored.TenantID)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, identityRequest(http.MethodGet, "/api/v1/sites", "", "tenant-a"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Sites []sites.Site `json:"sites"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Sites) != 1 || resp.Sites[0].Name != "North Field" {
		t.Fatalf("expected stored site listed, got %+v", resp.Sites)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, identityRequest(http.MethodGet, "/api/v1/sites", "", "tenant-b"))
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Sites) != 0 {
		t.Fatalf("expected other tenants to see nothing, got %+v", resp.Sites)
	}
}

func TestSiteUpsertRejectsInvalid(t *testing.T) {
	handler := newTestSiteHandler(t, newStubSiteRepo())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, identityRequest(http.MethodPost, "/api/v1/sites", `{"name":"No ID"}`, "tenant-a"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing site id, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, identityRequest(http.MethodPost, "/api/v1/sites", `{"broken`, "tenant-a"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad json, got %d", rec.Code)
	}
}

func TestSiteRequiresIdentity(t *testing.T) {
	handler := newTestSiteHandler(t, newStubSiteRepo())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sites", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", rec.Code)
	}
}
