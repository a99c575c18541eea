package device

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"sitewatch-cloud/internal/observability/metrics"
	snapshots "sitewatch-cloud/internal/snapshots/domain"
)

// IngestHandler accepts wake-round snapshot uploads from devices or the
// field gateway.
type IngestHandler struct {
	repo   snapshots.SnapshotRepository
	logger *log.Logger
}

// NewIngestHandler constructs an ingest handler.
func NewIngestHandler(repo snapshots.SnapshotRepository, logger *log.Logger) (*IngestHandler, error) {
	if repo == nil {
		return nil, errors.New("device ingest: nil repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &IngestHandler{repo: repo, logger: logger}, nil
}

type ingestSnapshot struct {
	SiteID         string          `json:"site_id"`
	ProgramID      string          `json:"program_id"`
	WakeRoundStart string          `json:"wake_round_start"`
	Devices        json.RawMessage `json:"devices"`
}

type ingestRequest struct {
	Snapshots []ingestSnapshot `json:"snapshots"`
}

// ServeHTTP handles POST /ingest/devices/snapshot.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveIngest(metrics.TransportHTTP, result, time.Since(start))
	}()

	if r.Method != http.MethodPost {
		result = metrics.ResultError
		metrics.IncIngestError("method_not_allowed")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.repo == nil {
		result = metrics.ResultError
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Printf("device ingest: read body error: %v", err)
		result = metrics.ResultError
		metrics.IncIngestError("read_body")
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	rows, err := decodeIngestBody(body)
	if err != nil {
		h.logger.Printf("device ingest: decode error: %v", err)
		result = metrics.ResultError
		metrics.IncIngestError("invalid_json")
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if len(rows) == 0 {
		result = metrics.ResultError
		metrics.IncIngestError("empty_batch")
		http.Error(w, "empty batch", http.StatusBadRequest)
		return
	}

	if err := h.repo.InsertSnapshots(r.Context(), rows); err != nil {
		h.logger.Printf("device ingest: insert error: %v", err)
		result = metrics.ResultError
		metrics.IncIngestError("insert_error")
		http.Error(w, "insert error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]int{"accepted": len(rows)})
}

// decodeIngestBody accepts either a single snapshot object or a batch
// wrapper. Snapshot payloads stay opaque; a payload that later fails to
// decode must not block the rest of the sequence, so it is stored as-is.
func decodeIngestBody(body []byte) ([]snapshots.RawSnapshot, error) {
	var batch ingestRequest
	if err := json.Unmarshal(body, &batch); err != nil {
		return nil, err
	}
	items := batch.Snapshots
	if items == nil {
		var single ingestSnapshot
		if err := json.Unmarshal(body, &single); err != nil {
			return nil, err
		}
		items = []ingestSnapshot{single}
	}

	rows := make([]snapshots.RawSnapshot, 0, len(items))
	for _, item := range items {
		if item.SiteID == "" || item.ProgramID == "" || item.WakeRoundStart == "" {
			return nil, errors.New("snapshot missing site_id, program_id or wake_round_start")
		}
		rows = append(rows, snapshots.RawSnapshot{
			ID:             uuid.NewString(),
			SiteID:         item.SiteID,
			ProgramID:      item.ProgramID,
			WakeRoundStart: item.WakeRoundStart,
			Payload:        item.Devices,
		})
	}
	return rows, nil
}
