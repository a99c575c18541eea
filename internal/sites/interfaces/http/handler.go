package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"sitewatch-cloud/internal/auth"
	siteapp "sitewatch-cloud/internal/sites/application"
	sites "sitewatch-cloud/internal/sites/domain"
)

// SiteHandler serves the site registry under /api/v1/sites.
type SiteHandler struct {
	service *siteapp.SiteService
	logger  *log.Logger
}

// NewSiteHandler constructs a site handler.
func NewSiteHandler(service *siteapp.SiteService, logger *log.Logger) (*SiteHandler, error) {
	if service == nil {
		return nil, errors.New("site handler: nil service")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &SiteHandler{service: service, logger: logger}, nil
}

// ServeHTTP handles GET and POST /api/v1/sites. The tenant always comes from
// the authenticated identity, never from the request body.
func (h *SiteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.handleList(w, r)
	case http.MethodPost:
		h.handleUpsert(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *SiteHandler) handleList(w http.ResponseWriter, r *http.Request) {
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	list, err := h.service.ListSites(r.Context(), tenantID)
	if err != nil {
		h.logger.Printf("site handler: list error: %v", err)
		http.Error(w, "list sites error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		Sites []sites.Site `json:"sites"`
	}{Sites: list})
}

type upsertSiteRequest struct {
	SiteID   string `json:"site_id"`
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
	Region   string `json:"region"`
}

func (h *SiteHandler) handleUpsert(w http.ResponseWriter, r *http.Request) {
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req upsertSiteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	site := sites.Site{
		SiteID:   req.SiteID,
		TenantID: tenantID,
		Name:     req.Name,
		Timezone: req.Timezone,
		Region:   req.Region,
	}
	if err := h.service.UpsertSite(r.Context(), &site); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(site)
}
