package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	replayapp "sitewatch-cloud/internal/replay/application"
	sessionhttp "sitewatch-cloud/internal/replay/interfaces/http"
	"sitewatch-cloud/internal/replay/playback"
	snapshots "sitewatch-cloud/internal/snapshots/domain"
)

type stubSource struct {
	rows []snapshots.RawSnapshot
}

func (s *stubSource) SnapshotsForSite(_ context.Context, _, _ string) ([]snapshots.RawSnapshot, error) {
	return s.rows, nil
}

func testRows(count int) []snapshots.RawSnapshot {
	rows := make([]snapshots.RawSnapshot, 0, count)
	for i := 0; i < count; i++ {
		rows = append(rows, snapshots.RawSnapshot{
			ID:             fmt.Sprintf("r%d", i),
			SiteID:         "site-1",
			ProgramID:      "program-1",
			WakeRoundStart: fmt.Sprintf("2026-03-01T%02d:00:00.000Z", i),
			Payload:        json.RawMessage(`[{"device_id":"D1","position":{"x":1,"y":1}}]`),
		})
	}
	return rows
}

func TestLoggingMiddlewarePreservesFlusher(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)

	flushed := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "no flusher", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("ok"))
		flusher.Flush()
		flushed = true
	})

	server := httptest.NewServer(loggingMiddleware(inner, logger))
	defer server.Close()

	resp, err := http.Get(server.URL + "/ping")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !flushed {
		t.Fatal("expected handler to reach Flush")
	}
	if !strings.Contains(buf.String(), "GET /ping 200") {
		t.Fatalf("expected access log line, got %q", buf.String())
	}
}

func TestSessionStreamThroughMiddleware(t *testing.T) {
	service, err := replayapp.NewService(&stubSource{rows: testRows(3)}, replayapp.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	sessionHandler, err := sessionhttp.NewSessionHandler(service, playback.TimerScheduler{}, nil, nil, nil)
	if err != nil {
		t.Fatalf("new session handler: %v", err)
	}
	t.Cleanup(sessionHandler.Close)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/replay/sessions", sessionHandler)
	mux.Handle("/api/v1/replay/sessions/", sessionHandler)

	server := httptest.NewServer(loggingMiddleware(mux, log.New(io.Discard, "", 0)))
	defer server.Close()

	body := strings.NewReader(`{"site_id":"site-1","program_id":"program-1"}`)
	resp, err := http.Post(server.URL+"/api/v1/replay/sessions", "application/json", body)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	var created struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/v1/replay/sessions/"+created.SessionID+"/stream", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	stream, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer stream.Body.Close()
	if stream.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", stream.StatusCode)
	}
	if got := stream.Header.Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("expected event stream content type, got %q", got)
	}

	reader := bufio.NewReader(stream.Body)
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read event: %v", err)
	}
	if !strings.HasPrefix(line, "event: view") {
		t.Fatalf("expected view event, got %q", line)
	}
}
