package snapshots

import (
	"context"
	"encoding/json"
	"time"
)

// WakeRoundLayout is the canonical timestamp format for wake rounds.
// Fixed-width so that lexicographic order matches chronological order and the
// first ten characters are the calendar date.
const WakeRoundLayout = "2006-01-02T15:04:05.000Z"

// RawSnapshot is one stored wake-round row for a (site, program) pair.
// The payload is kept opaque here; decoding happens at the reconstruction
// boundary so a corrupt payload never blocks storage or transport.
type RawSnapshot struct {
	ID             string          `json:"id"`
	SiteID         string          `json:"site_id"`
	ProgramID      string          `json:"program_id"`
	WakeRoundStart string          `json:"wake_round_start"`
	Payload        json.RawMessage `json:"payload"`
}

// WakeRoundTime parses the wake round timestamp. Returns false when the
// stored value does not parse; callers fall back to string comparison.
func (s RawSnapshot) WakeRoundTime() (time.Time, bool) {
	if s.WakeRoundStart == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(WakeRoundLayout, s.WakeRoundStart); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s.WakeRoundStart); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// Position is a device's reported location. Coordinates arrive independently;
// a device is displayable only once both have been seen.
type Position struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

// DeviceState is one device's attributes at an instant. Every field except
// DeviceID is optional on input; nil means the device did not report it in
// this round.
type DeviceState struct {
	DeviceID             string    `json:"device_id"`
	DeviceCode           *string   `json:"device_code"`
	DeviceName           *string   `json:"device_name"`
	Position             *Position `json:"position"`
	Status               *string   `json:"status"`
	LastSeenAt           *string   `json:"last_seen_at"`
	BatteryHealthPercent *float64  `json:"battery_health_percent"`

	Temperature   *float64 `json:"temperature"`
	Humidity      *float64 `json:"humidity"`
	Pressure      *float64 `json:"pressure"`
	GasResistance *float64 `json:"gas_resistance"`

	LatestScore   *float64 `json:"latest_score"`
	ScoreVelocity *float64 `json:"score_velocity"`
}

// HasPosition reports whether both coordinates are known.
func (d DeviceState) HasPosition() bool {
	return d.Position != nil && d.Position.X != nil && d.Position.Y != nil
}

// SnapshotRepository persists raw wake-round snapshots.
type SnapshotRepository interface {
	InsertSnapshots(ctx context.Context, rows []RawSnapshot) error
}

// SnapshotSource loads the raw snapshot rows for one (site, program) pair.
// Implementations do not guarantee order or uniqueness; consumers sort.
type SnapshotSource interface {
	SnapshotsForSite(ctx context.Context, siteID, programID string) ([]RawSnapshot, error)
}
