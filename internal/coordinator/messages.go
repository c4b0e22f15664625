package coordinator

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/smarthome-bridge/internal/device"
)

// Stream message types.
const (
	MessageDeviceUpdate  = "device_update"
	MessageInitialStates = "initial_states"
)

// stateEntry is one (device, state) pair carried by a stream message.
type stateEntry struct {
	DeviceID string
	State    device.LiveState
}

// message is a decoded stream frame.
type message struct {
	Type    string
	Entries []stateEntry

	// Skipped counts initial_states entries that were individually unusable.
	Skipped int
}

type rawEntry struct {
	DeviceID json.RawMessage `json:"device_id"`
	State    json.RawMessage `json:"state"`
}

type rawMessage struct {
	Type     string          `json:"type"`
	DeviceID json.RawMessage `json:"device_id"`
	State    json.RawMessage `json:"state"`
	States   []rawEntry      `json:"states"`
}

// decodeMessage parses one stream frame.
//
// A frame that is not a JSON object, lacks a type, or is a device_update
// without a usable device_id or state object is malformed. Within an
// initial_states batch each entry stands on its own: bad entries are counted
// in Skipped and the rest are returned. Unknown types decode successfully
// with no entries so the caller can ignore them.
func decodeMessage(frame []byte) (message, error) {
	var raw rawMessage
	if err := json.Unmarshal(frame, &raw); err != nil {
		return message{}, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	if raw.Type == "" {
		return message{}, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	}

	msg := message{Type: raw.Type}
	switch raw.Type {
	case MessageDeviceUpdate:
		entry, err := decodeEntry(raw.DeviceID, raw.State)
		if err != nil {
			return message{}, err
		}
		msg.Entries = []stateEntry{entry}

	case MessageInitialStates:
		if raw.States == nil {
			return message{}, fmt.Errorf("%w: initial_states without states", ErrMalformedMessage)
		}
		msg.Entries = make([]stateEntry, 0, len(raw.States))
		for _, re := range raw.States {
			entry, err := decodeEntry(re.DeviceID, re.State)
			if err != nil {
				msg.Skipped++
				continue
			}
			msg.Entries = append(msg.Entries, entry)
		}
	}
	return msg, nil
}

// decodeEntry validates one (device_id, state) pair. A null state is stored
// as an empty object; a missing or non-object state is malformed.
func decodeEntry(rawID, rawState json.RawMessage) (stateEntry, error) {
	id, err := device.DecodeID(rawID)
	if err != nil {
		return stateEntry{}, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	if len(rawState) == 0 {
		return stateEntry{}, fmt.Errorf("%w: device %s: missing state", ErrMalformedMessage, id)
	}
	if bytes.Equal(bytes.TrimSpace(rawState), []byte("null")) {
		return stateEntry{DeviceID: id, State: device.LiveState{}}, nil
	}

	var state map[string]any
	if err := json.Unmarshal(rawState, &state); err != nil {
		return stateEntry{}, fmt.Errorf("%w: device %s: state is not an object", ErrMalformedMessage, id)
	}
	return stateEntry{DeviceID: id, State: device.LiveState(state)}, nil
}
