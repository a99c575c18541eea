package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"sitewatch-cloud/internal/audit"
	"sitewatch-cloud/internal/auth"
	"sitewatch-cloud/internal/export"
	"sitewatch-cloud/internal/observability/metrics"
	replayapp "sitewatch-cloud/internal/replay/application"
	replay "sitewatch-cloud/internal/replay/domain"
)

// ReplayHandler serves reconstructed replay sequences and their report
// exports under /api/v1/sites/{site}/replay.
type ReplayHandler struct {
	service     *replayapp.Service
	siteChecker auth.SiteTenantChecker
	auditor     audit.Logger
	logger      *log.Logger
}

// NewReplayHandler constructs a replay handler.
func NewReplayHandler(service *replayapp.Service, siteChecker auth.SiteTenantChecker, auditor audit.Logger, logger *log.Logger) (*ReplayHandler, error) {
	if service == nil {
		return nil, errors.New("replay handler: nil service")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &ReplayHandler{service: service, siteChecker: siteChecker, auditor: auditor, logger: logger}, nil
}

// ServeHTTP handles GET /api/v1/sites/{site}/replay and
// GET /api/v1/sites/{site}/replay/export.{xlsx|pdf}.
func (h *ReplayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.service == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	siteID, rest, ok := splitReplayPath(r.URL.Path)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if err := h.ensureSiteAccess(r, siteID); err != nil {
		writeSiteAccessError(w, err)
		return
	}

	programID := r.URL.Query().Get("program_id")
	if programID == "" {
		http.Error(w, "program_id is required", http.StatusBadRequest)
		return
	}

	opts, err := parseOptions(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	switch rest {
	case "":
		h.handleSequence(w, r, siteID, programID, opts)
	case "export.xlsx":
		h.handleExport(w, r, siteID, programID, opts, "xlsx")
	case "export.pdf":
		h.handleExport(w, r, siteID, programID, opts, "pdf")
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *ReplayHandler) handleSequence(w http.ResponseWriter, r *http.Request, siteID, programID string, opts replayapp.Options) {
	sequence, err := h.service.BuildSequence(r.Context(), siteID, programID, opts)
	if err != nil {
		if errors.Is(err, replay.ErrInvalidDensity) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Printf("replay handler: build error: %v", err)
		http.Error(w, "build sequence error", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		SiteID    string                         `json:"site_id"`
		ProgramID string                         `json:"program_id"`
		Length    int                            `json:"length"`
		Snapshots []replay.ReconstructedSnapshot `json:"snapshots"`
	}{SiteID: siteID, ProgramID: programID, Length: len(sequence), Snapshots: sequence})
}

func (h *ReplayHandler) handleExport(w http.ResponseWriter, r *http.Request, siteID, programID string, opts replayapp.Options, format string) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveExport(format, result, time.Since(start))
	}()

	sequence, err := h.service.BuildSequence(r.Context(), siteID, programID, opts)
	if err != nil {
		result = metrics.ResultError
		h.logger.Printf("replay handler: export build error: %v", err)
		http.Error(w, "build sequence error", http.StatusBadGateway)
		return
	}

	var data []byte
	var contentType string
	switch format {
	case "xlsx":
		data, err = export.BuildReplayXLSX(siteID, programID, sequence)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "pdf":
		data, err = export.BuildReplayPDF(siteID, programID, sequence)
		contentType = "application/pdf"
	}
	if err != nil {
		result = metrics.ResultError
		h.logger.Printf("replay handler: render %s error: %v", format, err)
		http.Error(w, "render export error", http.StatusInternalServerError)
		return
	}

	h.auditExport(r, siteID, programID, format, len(sequence))

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="replay-`+siteID+`.`+format+`"`)
	_, _ = w.Write(data)
}

func (h *ReplayHandler) auditExport(r *http.Request, siteID, programID, format string, length int) {
	if h.auditor == nil {
		return
	}
	meta, _ := json.Marshal(map[string]any{
		"program_id": programID,
		"format":     format,
		"snapshots":  length,
	})
	entry := audit.Entry{
		TenantID:   auth.TenantIDFromContext(r.Context()),
		Actor:      auth.SubjectFromContext(r.Context()),
		Role:       string(auth.RoleFromContext(r.Context())),
		Action:     "replay.export",
		ObjectType: "site_replay",
		ObjectID:   siteID,
		SiteID:     siteID,
		Metadata:   meta,
		IP:         audit.ClientIP(r),
		UserAgent:  r.UserAgent(),
	}
	if err := h.auditor.Log(r.Context(), entry); err != nil {
		h.logger.Printf("replay handler: audit error: %v", err)
	}
}

func (h *ReplayHandler) ensureSiteAccess(r *http.Request, siteID string) error {
	if h.siteChecker == nil {
		return nil
	}
	return h.siteChecker.EnsureSiteTenant(r.Context(), auth.TenantIDFromContext(r.Context()), siteID)
}

func writeSiteAccessError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrNotFound):
		http.Error(w, "site not found", http.StatusNotFound)
	case errors.Is(err, auth.ErrTenantMismatch):
		http.Error(w, "forbidden", http.StatusForbidden)
	default:
		http.Error(w, "site check error", http.StatusInternalServerError)
	}
}

// parseOptions reads aggregated / snapshots_per_day query params.
func parseOptions(r *http.Request) (replayapp.Options, error) {
	opts := replayapp.Options{}
	if raw := r.URL.Query().Get("aggregated"); raw != "" {
		aggregated, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, errors.New("aggregated must be a boolean")
		}
		opts.Aggregated = aggregated
	}
	if raw := r.URL.Query().Get("snapshots_per_day"); raw != "" {
		perDay, err := strconv.Atoi(raw)
		if err != nil || perDay < 1 {
			return opts, errors.New("snapshots_per_day must be a positive integer")
		}
		opts.SnapshotsPerDay = perDay
	}
	return opts, nil
}

// splitReplayPath extracts the site id and trailing segment from
// /api/v1/sites/{site}/replay[/...].
func splitReplayPath(path string) (siteID, rest string, ok bool) {
	const prefix = "/api/v1/sites/"
	if !strings.HasPrefix(path, prefix) {
		return "", "", false
	}
	trimmed := strings.TrimPrefix(path, prefix)
	parts := strings.SplitN(trimmed, "/", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] != "replay" {
		return "", "", false
	}
	if len(parts) == 3 {
		return parts[0], parts[2], true
	}
	return parts[0], "", true
}
