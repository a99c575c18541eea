package auth

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func signedGatewayRequest(secret []byte, timestamp, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/ingest/devices/snapshot", strings.NewReader(body))
	req.Header.Set(HeaderGatewayTimestamp, timestamp)
	req.Header.Set(HeaderGatewaySignature, SignGatewayPayload(secret, timestamp, []byte(body)))
	return req
}

func TestGatewayAuthValidSignature(t *testing.T) {
	secret := []byte("gateway-secret")
	mw := NewGatewayAuth(secret, 5*time.Minute)

	var seenBody string
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		seenBody = string(body)
		w.WriteHeader(http.StatusAccepted)
	}))

	body := `{"site_id":"site-1"}`
	timestamp := fmt.Sprintf("%d", time.Now().Unix())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, signedGatewayRequest(secret, timestamp, body))

	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", resp.Code, resp.Body.String())
	}
	if seenBody != body {
		t.Fatalf("expected body rewound for handler, got %q", seenBody)
	}
}

func TestGatewayAuthMissingHeaders(t *testing.T) {
	mw := NewGatewayAuth([]byte("gateway-secret"), 5*time.Minute)
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodPost, "/ingest/devices/snapshot", strings.NewReader("{}"))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestGatewayAuthWrongSignature(t *testing.T) {
	mw := NewGatewayAuth([]byte("gateway-secret"), 5*time.Minute)
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	req := signedGatewayRequest([]byte("other-secret"), fmt.Sprintf("%d", time.Now().Unix()), "{}")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestGatewayAuthStaleTimestamp(t *testing.T) {
	secret := []byte("gateway-secret")
	mw := NewGatewayAuth(secret, time.Minute)
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	stale := fmt.Sprintf("%d", time.Now().Add(-10*time.Minute).Unix())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, signedGatewayRequest(secret, stale, "{}"))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for stale timestamp, got %d", resp.Code)
	}
}
