package device

import (
	"encoding/json"
	"fmt"
)

// DecodeDevices parses a GET /api/devices body into a replacement metadata map.
//
// Disabled devices are dropped. The remaining devices are keyed by their
// stringified id; when the hub lists an id twice the later entry wins.
//
// Parameters:
//   - body: Raw response body, expected to be a JSON array of device objects
//
// Returns:
//   - map[string]Metadata: Enabled devices keyed by id (never nil on success)
//   - error: Wrapped ErrMalformedDeviceList if the body is not a device array
func DecodeDevices(body []byte) (map[string]Metadata, error) {
	var list []Metadata
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedDeviceList, err)
	}
	if list == nil {
		// "null" decodes without error but is not a device list.
		return nil, fmt.Errorf("%w: expected array", ErrMalformedDeviceList)
	}

	devices := make(map[string]Metadata, len(list))
	for _, m := range list {
		if !m.Enabled {
			continue
		}
		devices[m.ID] = m
	}
	return devices, nil
}
