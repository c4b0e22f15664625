package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/smarthome-bridge/internal/device"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200

	// maxQueryParamLen limits path and query parameter length.
	maxQueryParamLen = 100

	// historyRecordTimeout bounds recording a command in state history.
	historyRecordTimeout = 5 * time.Second
)

// DeviceResponse is one device with its live state and entity ids.
type DeviceResponse struct {
	Device   device.Metadata  `json:"device"`
	State    device.LiveState `json:"state"`
	Entities []string         `json:"entities"`
}

// handleListDevices returns every enabled device, optionally filtered by
// ?device_type=.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	deviceType := r.URL.Query().Get("device_type")
	if len(deviceType) > maxQueryParamLen {
		writeBadRequest(w, "device_type exceeds maximum length")
		return
	}

	devices := s.coord.Devices()
	out := make([]DeviceResponse, 0, len(devices))
	for _, m := range devices {
		if deviceType != "" && m.DeviceType != deviceType {
			continue
		}
		out = append(out, s.deviceResponse(m))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": out,
		"count":   len(out),
	})
}

// handleGetDevice returns one device.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	m, ok := s.lookupDevice(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.deviceResponse(m))
}

// handleGetDeviceState returns the raw live state of one device.
func (s *Server) handleGetDeviceState(w http.ResponseWriter, r *http.Request) {
	m, ok := s.lookupDevice(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": m.ID,
		"state":     s.coord.LiveState(m.ID),
	})
}

// handleSetDeviceState forwards a raw partial state to the hub.
//
// The cache is not touched: the new state arrives over the stream and is
// pushed to WebSocket clients from there.
func (s *Server) handleSetDeviceState(w http.ResponseWriter, r *http.Request) {
	m, ok := s.lookupDevice(w, r)
	if !ok {
		return
	}

	var partial map[string]any
	if err := json.NewDecoder(r.Body).Decode(&partial); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(partial) == 0 {
		writeBadRequest(w, "state must be a non-empty object")
		return
	}

	if err := s.coord.SendCommand(r.Context(), m.ID, partial); err != nil {
		writeHubError(w, "hub rejected command: "+err.Error())
		return
	}

	s.recordCommand(r.Context(), m.ID, partial)
	s.logger.Info("device command sent", "device_id", m.ID, "fields", len(partial))

	writeJSON(w, http.StatusAccepted, map[string]any{
		"device_id": m.ID,
		"status":    "accepted",
		"message":   "command sent, state update will follow via WebSocket",
	})
}

// recordCommand stores a sent partial in state history. Failures are logged only.
func (s *Server) recordCommand(ctx context.Context, deviceID string, partial map[string]any) {
	if s.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyRecordTimeout)
	defer cancel()
	if err := s.history.RecordStateChange(ctx, deviceID, device.LiveState(partial), device.StateHistorySourceCommand); err != nil {
		s.logger.Warn("failed to record command history", "device_id", deviceID, "error", err)
	}
}

// handleGetDeviceHistory returns state history entries for a device.
func (s *Server) handleGetDeviceHistory(w http.ResponseWriter, r *http.Request) {
	m, ok := s.lookupDevice(w, r)
	if !ok {
		return
	}

	limit, err := parseHistoryLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	since, err := parseSinceParam(r.URL.Query().Get("since"))
	if err != nil {
		writeBadRequest(w, "invalid since timestamp")
		return
	}

	if s.history == nil {
		writeUnavailable(w, "state history unavailable")
		return
	}

	entries, err := s.history.GetHistory(r.Context(), m.ID, limit)
	if err != nil {
		s.logger.Error("failed to load device history", "device_id", m.ID, "error", err)
		writeInternalError(w, "failed to load device history")
		return
	}

	if !since.IsZero() {
		filtered := entries[:0]
		for _, entry := range entries {
			if entry.CreatedAt.After(since) {
				filtered = append(filtered, entry)
			}
		}
		entries = filtered
	}
	if entries == nil {
		entries = []device.StateHistoryEntry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": m.ID,
		"history":   entries,
		"count":     len(entries),
	})
}

// lookupDevice resolves {id} or writes the error response.
func (s *Server) lookupDevice(w http.ResponseWriter, r *http.Request) (device.Metadata, bool) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxQueryParamLen {
		writeBadRequest(w, "invalid device ID")
		return device.Metadata{}, false
	}
	m, ok := s.coord.Metadata(id)
	if !ok {
		writeNotFound(w, "device not found")
		return device.Metadata{}, false
	}
	return m, true
}

func (s *Server) deviceResponse(m device.Metadata) DeviceResponse {
	ents := s.entities.ByDevice(m.ID)
	ids := make([]string, 0, len(ents))
	for _, e := range ents {
		ids = append(ids, e.ID())
	}
	return DeviceResponse{
		Device:   m,
		State:    s.coord.LiveState(m.ID),
		Entities: ids,
	}
}

// parseHistoryLimit parses ?limit= with a default and an upper bound.
func parseHistoryLimit(raw string) (int, error) {
	if raw == "" {
		return defaultHistoryLimit, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("invalid limit")
	}
	if limit > maxHistoryLimit {
		return 0, fmt.Errorf("limit exceeds maximum")
	}
	return limit, nil
}

// parseSinceParam parses the since parameter as RFC3339/RFC3339Nano.
func parseSinceParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}
