package audit

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Entry records one operator-visible action against the dashboard: who
// performed it, under which tenant, and which replay object it touched.
type Entry struct {
	ID             string
	TenantID       string
	Actor          string
	Role           string
	Action         string
	ObjectType     string
	ObjectID       string
	SiteID         string
	Metadata       json.RawMessage
	MetadataDigest string
	IP             string
	UserAgent      string
	CreatedAt      time.Time
}

// Logger persists audit entries.
type Logger interface {
	Log(ctx context.Context, entry Entry) error
}

func newEntryID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return "audit-" + hex.EncodeToString(buf)
}

// digest pins the metadata content so a row edit is detectable later.
func digest(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
