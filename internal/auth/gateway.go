package auth

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Site gateways have no per-device tokens; they sign each snapshot upload
// with an HMAC over the send time and the request body instead.
const (
	HeaderGatewayTimestamp = "X-Sitewatch-Timestamp"
	HeaderGatewaySignature = "X-Sitewatch-Signature"
)

// GatewayAuth rejects ingest requests whose signature is missing, stale,
// or does not match the shared gateway secret.
type GatewayAuth struct {
	secret  []byte
	maxSkew time.Duration
}

// NewGatewayAuth constructs gateway signature middleware. A maxSkew of
// zero disables the timestamp freshness check.
func NewGatewayAuth(secret []byte, maxSkew time.Duration) *GatewayAuth {
	return &GatewayAuth{secret: secret, maxSkew: maxSkew}
}

// Wrap verifies the gateway signature before handing the request on. The
// body is consumed for verification and rewound for the next handler.
func (g *GatewayAuth) Wrap(next http.Handler) http.Handler {
	if g == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(g.secret) == 0 {
			http.Error(w, "gateway auth not configured", http.StatusUnauthorized)
			return
		}
		timestamp := strings.TrimSpace(r.Header.Get(HeaderGatewayTimestamp))
		signature := strings.TrimSpace(r.Header.Get(HeaderGatewaySignature))
		if timestamp == "" || signature == "" {
			http.Error(w, "missing gateway signature", http.StatusUnauthorized)
			return
		}
		sent, err := strconv.ParseInt(timestamp, 10, 64)
		if err != nil {
			http.Error(w, "invalid gateway timestamp", http.StatusUnauthorized)
			return
		}
		if g.maxSkew > 0 {
			skew := time.Since(time.Unix(sent, 0))
			if skew < 0 {
				skew = -skew
			}
			if skew > g.maxSkew {
				http.Error(w, "gateway signature expired", http.StatusUnauthorized)
				return
			}
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "read body error", http.StatusBadRequest)
			return
		}
		_ = r.Body.Close()

		expected := SignGatewayPayload(g.secret, timestamp, body)
		if !hmac.Equal([]byte(strings.ToLower(signature)), []byte(expected)) {
			http.Error(w, "invalid gateway signature", http.StatusUnauthorized)
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}

// SignGatewayPayload computes the hex signature a gateway attaches to an
// upload: HMAC-SHA256 over the unix timestamp, a newline, and the body.
func SignGatewayPayload(secret []byte, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write([]byte(timestamp))
	_, _ = mac.Write([]byte("\n"))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
