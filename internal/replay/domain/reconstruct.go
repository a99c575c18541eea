package replay

import (
	"encoding/json"
	"sort"

	snapshots "sitewatch-cloud/internal/snapshots/domain"
)

// ReconstructedSnapshot is one wake round with its device roster completed
// via carry-forward. When the stored payload could not be decoded the row is
// passed through with its original payload and an empty roster.
type ReconstructedSnapshot struct {
	ID             string                  `json:"id"`
	SiteID         string                  `json:"site_id"`
	ProgramID      string                  `json:"program_id"`
	WakeRoundStart string                  `json:"wake_round_start"`
	Devices        []snapshots.DeviceState `json:"devices"`
	Payload        json.RawMessage         `json:"payload,omitempty"`
}

const defaultDeviceStatus = "active"

// Reconstruct sorts raw wake rounds by time and completes each roster by
// carrying forward the last known state per device. Source order is never
// trusted; an already-sorted input keeps its relative order for equal
// timestamps. Rosters include only devices that have reported both
// coordinates at least once, and each roster reflects the round's own
// updates, not a lagged view.
func Reconstruct(raw []snapshots.RawSnapshot) []ReconstructedSnapshot {
	ordered := make([]snapshots.RawSnapshot, len(raw))
	copy(ordered, raw)
	sort.SliceStable(ordered, func(i, j int) bool {
		return wakeRoundBefore(ordered[i], ordered[j])
	})

	// Last known state per device, for the duration of this call only.
	cache := make(map[string]snapshots.DeviceState)
	order := make([]string, 0)

	out := make([]ReconstructedSnapshot, 0, len(ordered))
	for _, row := range ordered {
		devices, err := snapshots.DecodeDevicePayload(row.Payload)
		if err != nil {
			// Recoverable-local: keep the corrupt row as-is and continue.
			out = append(out, ReconstructedSnapshot{
				ID:             row.ID,
				SiteID:         row.SiteID,
				ProgramID:      row.ProgramID,
				WakeRoundStart: row.WakeRoundStart,
				Payload:        row.Payload,
			})
			continue
		}

		for _, incoming := range devices {
			known, seen := cache[incoming.DeviceID]
			if !seen {
				order = append(order, incoming.DeviceID)
			}
			cache[incoming.DeviceID] = mergeDeviceState(known, incoming)
		}

		out = append(out, ReconstructedSnapshot{
			ID:             row.ID,
			SiteID:         row.SiteID,
			ProgramID:      row.ProgramID,
			WakeRoundStart: row.WakeRoundStart,
			Devices:        roster(cache, order),
		})
	}
	return out
}

// mergeDeviceState overlays present fields from incoming onto known. A field
// is present whenever it was not null/absent; empty string and zero values
// overwrite. Position coordinates merge independently so a round that
// reports only one axis does not discard the other.
func mergeDeviceState(known, incoming snapshots.DeviceState) snapshots.DeviceState {
	known.DeviceID = incoming.DeviceID
	if incoming.DeviceCode != nil {
		known.DeviceCode = incoming.DeviceCode
	}
	if incoming.DeviceName != nil {
		known.DeviceName = incoming.DeviceName
	}
	if incoming.Position != nil {
		var merged snapshots.Position
		if known.Position != nil {
			merged = *known.Position
		}
		if incoming.Position.X != nil {
			merged.X = incoming.Position.X
		}
		if incoming.Position.Y != nil {
			merged.Y = incoming.Position.Y
		}
		known.Position = &merged
	}
	if incoming.Status != nil {
		known.Status = incoming.Status
	}
	if incoming.LastSeenAt != nil {
		known.LastSeenAt = incoming.LastSeenAt
	}
	if incoming.BatteryHealthPercent != nil {
		known.BatteryHealthPercent = incoming.BatteryHealthPercent
	}
	if incoming.Temperature != nil {
		known.Temperature = incoming.Temperature
	}
	if incoming.Humidity != nil {
		known.Humidity = incoming.Humidity
	}
	if incoming.Pressure != nil {
		known.Pressure = incoming.Pressure
	}
	if incoming.GasResistance != nil {
		known.GasResistance = incoming.GasResistance
	}
	if incoming.LatestScore != nil {
		known.LatestScore = incoming.LatestScore
	}
	if incoming.ScoreVelocity != nil {
		known.ScoreVelocity = incoming.ScoreVelocity
	}
	return known
}

// roster copies the displayable devices out of the cache in first-seen order.
// Devices without a complete position stay invisible even when other
// telemetry is cached.
func roster(cache map[string]snapshots.DeviceState, order []string) []snapshots.DeviceState {
	devices := make([]snapshots.DeviceState, 0, len(cache))
	for _, deviceID := range order {
		state := cache[deviceID]
		if !state.HasPosition() {
			continue
		}
		if state.Status == nil {
			status := defaultDeviceStatus
			state.Status = &status
		}
		devices = append(devices, state)
	}
	return devices
}

func wakeRoundBefore(a, b snapshots.RawSnapshot) bool {
	at, aok := a.WakeRoundTime()
	bt, bok := b.WakeRoundTime()
	if aok && bok {
		return at.Before(bt)
	}
	return a.WakeRoundStart < b.WakeRoundStart
}
