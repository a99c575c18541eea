package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"sitewatch-cloud/internal/audit"
	"sitewatch-cloud/internal/auth"
	"sitewatch-cloud/internal/observability/metrics"
	replayapp "sitewatch-cloud/internal/replay/application"
	replay "sitewatch-cloud/internal/replay/domain"
	"sitewatch-cloud/internal/replay/playback"
)

// Session couples one built sequence with its playback controller and the
// SSE subscribers watching it. Playback state is owned here exclusively and
// thrown away with the session.
type Session struct {
	ID        string
	SiteID    string
	ProgramID string

	controller *playback.Controller
	sequence   []replay.ReconstructedSnapshot

	mu          sync.Mutex
	subscribers map[chan []byte]struct{}
	lastIndex   int
}

func (s *Session) subscribe() chan []byte {
	ch := make(chan []byte, 16)
	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()
	return ch
}

// unsubscribe removes a subscriber but never closes its channel: a broadcast
// that snapshotted the subscriber set before the removal may still be
// sending, and the stream reader exits on request-context cancellation
// anyway.
func (s *Session) unsubscribe(ch chan []byte) {
	s.mu.Lock()
	delete(s.subscribers, ch)
	s.mu.Unlock()
}

// broadcast fans a view update out to every subscriber. Slow consumers drop
// updates instead of blocking the controller.
func (s *Session) broadcast(view playback.View) {
	payload, err := json.Marshal(view)
	if err != nil {
		return
	}
	s.mu.Lock()
	if view.IsPlaying && view.CurrentIndex == s.lastIndex+1 {
		metrics.IncPlaybackTick()
	}
	s.lastIndex = view.CurrentIndex
	targets := make([]chan []byte, 0, len(s.subscribers))
	for ch := range s.subscribers {
		targets = append(targets, ch)
	}
	s.mu.Unlock()
	for _, ch := range targets {
		select {
		case ch <- payload:
		default:
		}
	}
}

// SessionHandler manages playback sessions over HTTP: creation, control
// verbs, and an SSE stream of view changes.
type SessionHandler struct {
	service     *replayapp.Service
	scheduler   playback.Scheduler
	siteChecker auth.SiteTenantChecker
	auditor     audit.Logger
	logger      *log.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionHandler constructs a session handler.
func NewSessionHandler(service *replayapp.Service, scheduler playback.Scheduler, siteChecker auth.SiteTenantChecker, auditor audit.Logger, logger *log.Logger) (*SessionHandler, error) {
	if service == nil {
		return nil, errors.New("session handler: nil service")
	}
	if scheduler == nil {
		scheduler = playback.TimerScheduler{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &SessionHandler{
		service:     service,
		scheduler:   scheduler,
		siteChecker: siteChecker,
		auditor:     auditor,
		logger:      logger,
		sessions:    make(map[string]*Session),
	}, nil
}

// ServeHTTP handles /api/v1/replay/sessions and subroutes.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	const prefix = "/api/v1/replay/sessions"
	switch {
	case r.URL.Path == prefix:
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleCreate(w, r)
	case strings.HasPrefix(r.URL.Path, prefix+"/"):
		h.handleSession(w, r, strings.TrimPrefix(r.URL.Path, prefix+"/"))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type createSessionRequest struct {
	SiteID          string `json:"site_id"`
	ProgramID       string `json:"program_id"`
	Aggregated      bool   `json:"aggregated"`
	SnapshotsPerDay int    `json:"snapshots_per_day"`
}

type sessionResponse struct {
	SessionID string        `json:"session_id"`
	SiteID    string        `json:"site_id"`
	ProgramID string        `json:"program_id"`
	Length    int           `json:"length"`
	Speeds    []string      `json:"speeds"`
	View      playback.View `json:"view"`
}

func (h *SessionHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.SiteID == "" || req.ProgramID == "" {
		http.Error(w, "site_id and program_id are required", http.StatusBadRequest)
		return
	}
	if req.SnapshotsPerDay < 0 {
		http.Error(w, "snapshots_per_day must be positive", http.StatusBadRequest)
		return
	}

	if h.siteChecker != nil {
		if err := h.siteChecker.EnsureSiteTenant(r.Context(), auth.TenantIDFromContext(r.Context()), req.SiteID); err != nil {
			writeSiteAccessError(w, err)
			return
		}
	}

	sequence, err := h.service.BuildSequence(r.Context(), req.SiteID, req.ProgramID, replayapp.Options{
		Aggregated:      req.Aggregated,
		SnapshotsPerDay: req.SnapshotsPerDay,
	})
	if err != nil {
		h.logger.Printf("session handler: build error: %v", err)
		http.Error(w, "build sequence error", http.StatusBadGateway)
		return
	}

	cfg := h.service.Config()
	controller, err := playback.NewController(h.scheduler, cfg.SpeedMenu(), cfg.Transition(), len(sequence))
	if err != nil {
		h.logger.Printf("session handler: controller error: %v", err)
		http.Error(w, "controller error", http.StatusInternalServerError)
		return
	}

	session := &Session{
		ID:          uuid.NewString(),
		SiteID:      req.SiteID,
		ProgramID:   req.ProgramID,
		controller:  controller,
		sequence:    sequence,
		subscribers: make(map[chan []byte]struct{}),
	}
	controller.SetListener(session.broadcast)

	h.mu.Lock()
	h.sessions[session.ID] = session
	h.mu.Unlock()
	metrics.IncPlaybackSessions()

	h.auditCreate(r, session, len(sequence))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(sessionResponse{
		SessionID: session.ID,
		SiteID:    session.SiteID,
		ProgramID: session.ProgramID,
		Length:    len(sequence),
		Speeds:    controller.Speeds(),
		View:      controller.View(),
	})
}

func (h *SessionHandler) handleSession(w http.ResponseWriter, r *http.Request, rest string) {
	parts := strings.SplitN(rest, "/", 2)
	session := h.lookup(parts[0])
	if session == nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		h.writeView(w, session)
	case action == "" && r.Method == http.MethodDelete:
		h.closeSession(session)
		w.WriteHeader(http.StatusNoContent)
	case action == "stream" && r.Method == http.MethodGet:
		h.handleStream(w, r, session)
	case action == "snapshot" && r.Method == http.MethodGet:
		h.writeCurrentSnapshot(w, session)
	case r.Method == http.MethodPost:
		h.handleControl(w, r, session, action)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type seekRequest struct {
	Index int `json:"index"`
}

type speedRequest struct {
	Label string `json:"label"`
}

func (h *SessionHandler) handleControl(w http.ResponseWriter, r *http.Request, session *Session, action string) {
	switch action {
	case "play":
		session.controller.Play()
	case "pause":
		session.controller.Pause()
	case "next":
		session.controller.Next()
	case "previous":
		session.controller.Previous()
	case "skip-to-start":
		session.controller.SkipToStart()
	case "skip-to-end":
		session.controller.SkipToEnd()
	case "seek":
		var req seekRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		// Out-of-range targets clamp; they are not errors.
		session.controller.Seek(req.Index)
	case "speed":
		var req speedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if err := session.controller.SetSpeed(req.Label); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	h.writeView(w, session)
}

func (h *SessionHandler) handleStream(w http.ResponseWriter, r *http.Request, session *Session) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := session.subscribe()
	defer session.unsubscribe(ch)

	initial, _ := json.Marshal(session.controller.View())
	_, _ = w.Write([]byte("event: view\ndata: "))
	_, _ = w.Write(initial)
	_, _ = w.Write([]byte("\n\n"))
	flusher.Flush()

	notify := r.Context().Done()
	for {
		select {
		case payload := <-ch:
			_, _ = w.Write([]byte("event: view\ndata: "))
			_, _ = w.Write(payload)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		case <-notify:
			return
		}
	}
}

func (h *SessionHandler) writeView(w http.ResponseWriter, session *Session) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(sessionResponse{
		SessionID: session.ID,
		SiteID:    session.SiteID,
		ProgramID: session.ProgramID,
		Length:    len(session.sequence),
		Speeds:    session.controller.Speeds(),
		View:      session.controller.View(),
	})
}

func (h *SessionHandler) writeCurrentSnapshot(w http.ResponseWriter, session *Session) {
	view := session.controller.View()
	if len(session.sequence) == 0 {
		http.Error(w, "empty sequence", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(session.sequence[view.CurrentIndex])
}

func (h *SessionHandler) lookup(id string) *Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sessions[id]
}

func (h *SessionHandler) closeSession(session *Session) {
	h.mu.Lock()
	_, present := h.sessions[session.ID]
	delete(h.sessions, session.ID)
	h.mu.Unlock()
	if !present {
		return
	}
	session.controller.Close()
	metrics.DecPlaybackSessions()
}

// Close shuts down every open session.
func (h *SessionHandler) Close() {
	h.mu.Lock()
	sessions := make([]*Session, 0, len(h.sessions))
	for _, session := range h.sessions {
		sessions = append(sessions, session)
	}
	h.mu.Unlock()
	for _, session := range sessions {
		h.closeSession(session)
	}
}

func (h *SessionHandler) auditCreate(r *http.Request, session *Session, length int) {
	if h.auditor == nil {
		return
	}
	meta, _ := json.Marshal(map[string]any{
		"program_id": session.ProgramID,
		"snapshots":  length,
	})
	entry := audit.Entry{
		TenantID:   auth.TenantIDFromContext(r.Context()),
		Actor:      auth.SubjectFromContext(r.Context()),
		Role:       string(auth.RoleFromContext(r.Context())),
		Action:     "replay.session.create",
		ObjectType: "replay_session",
		ObjectID:   session.ID,
		SiteID:     session.SiteID,
		Metadata:   meta,
		IP:         audit.ClientIP(r),
		UserAgent:  r.UserAgent(),
	}
	if err := h.auditor.Log(r.Context(), entry); err != nil {
		h.logger.Printf("session handler: audit error: %v", err)
	}
}
