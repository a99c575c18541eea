package snapshots

import (
	"encoding/json"
	"errors"
)

// ErrUndecodablePayload marks a wake-round payload that matches neither
// accepted encoding.
var ErrUndecodablePayload = errors.New("snapshots: undecodable device payload")

// DecodeDevicePayload normalizes the two accepted device payload encodings
// into one device list. Devices arrive either as a bare JSON array or as an
// object carrying a "devices" field; both occur in stored history. Entries
// without a device_id are dropped rather than failing the row.
func DecodeDevicePayload(payload json.RawMessage) ([]DeviceState, error) {
	if len(payload) == 0 {
		return nil, ErrUndecodablePayload
	}

	var devices []DeviceState
	if err := json.Unmarshal(payload, &devices); err == nil && devices != nil {
		return dropUnkeyed(devices), nil
	}

	var wrapped struct {
		Devices []DeviceState `json:"devices"`
	}
	if err := json.Unmarshal(payload, &wrapped); err != nil || wrapped.Devices == nil {
		return nil, ErrUndecodablePayload
	}
	return dropUnkeyed(wrapped.Devices), nil
}

func dropUnkeyed(devices []DeviceState) []DeviceState {
	kept := devices[:0]
	for _, device := range devices {
		if device.DeviceID == "" {
			continue
		}
		kept = append(kept, device)
	}
	return kept
}
