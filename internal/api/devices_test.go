package api

import (
	"errors"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nerrad567/smarthome-bridge/internal/device"
)

func TestListDevices(t *testing.T) {
	srv, coord, _ := testServer(t)
	coord.setLive("1", device.LiveState{"state": true})

	w := doRequest(t, srv.Handler(), http.MethodGet, "/api/v1/devices", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	got := decodeBody[struct {
		Devices []struct {
			Device   map[string]any `json:"device"`
			State    map[string]any `json:"state"`
			Entities []string       `json:"entities"`
		} `json:"devices"`
		Count int `json:"count"`
	}](t, w)

	if got.Count != 3 || len(got.Devices) != 3 {
		t.Fatalf("count = %d, devices = %d, want 3", got.Count, len(got.Devices))
	}
	first := got.Devices[0]
	if first.Device["id"] != "1" || first.Device["device_type"] != device.TypeSwitch {
		t.Errorf("first device = %v", first.Device)
	}
	if first.State["state"] != true {
		t.Errorf("first state = %v, want state:true", first.State)
	}
	if diff := cmp.Diff([]string{"casait_1_u1"}, first.Entities); diff != "" {
		t.Errorf("entities mismatch (-want +got):\n%s", diff)
	}
}

func TestListDevices_FilterByType(t *testing.T) {
	srv, _, _ := testServer(t)

	w := doRequest(t, srv.Handler(), http.MethodGet, "/api/v1/devices?device_type=blind", "")
	got := decodeBody[struct {
		Count int `json:"count"`
	}](t, w)
	if got.Count != 1 {
		t.Errorf("count = %d, want 1", got.Count)
	}
}

func TestGetDevice(t *testing.T) {
	srv, _, _ := testServer(t)
	router := srv.Handler()

	w := doRequest(t, router, http.MethodGet, "/api/v1/devices/2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	w = doRequest(t, router, http.MethodGet, "/api/v1/devices/99", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown device status = %d, want 404", w.Code)
	}
	if got := decodeBody[Error](t, w).Code; got != ErrCodeNotFound {
		t.Errorf("code = %q, want %q", got, ErrCodeNotFound)
	}
}

func TestGetDeviceState(t *testing.T) {
	srv, coord, _ := testServer(t)
	coord.setLive("2", device.LiveState{"position": float64(40), "moving": "stop"})

	w := doRequest(t, srv.Handler(), http.MethodGet, "/api/v1/devices/2/state", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	got := decodeBody[map[string]any](t, w)
	want := map[string]any{
		"device_id": "2",
		"state":     map[string]any{"position": float64(40), "moving": "stop"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("state mismatch (-want +got):\n%s", diff)
	}
}

func TestSetDeviceState(t *testing.T) {
	srv, coord, history := testServer(t)

	w := doRequest(t, srv.Handler(), http.MethodPut, "/api/v1/devices/1/state", `{"state":true}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	want := []sentCommand{{ID: "1", Partial: map[string]any{"state": true}}}
	if diff := cmp.Diff(want, coord.sentCommands()); diff != "" {
		t.Errorf("sent mismatch (-want +got):\n%s", diff)
	}

	// The cache is untouched until the stream reports the change.
	if len(coord.LiveState("1")) != 0 {
		t.Errorf("live state changed by command: %v", coord.LiveState("1"))
	}

	if len(history.entries) != 1 || history.entries[0].Source != device.StateHistorySourceCommand {
		t.Errorf("history = %+v, want one command entry", history.entries)
	}
}

func TestSetDeviceState_Errors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       string
		sendErr    error
		wantStatus int
	}{
		{name: "unknown device", path: "/api/v1/devices/99/state", body: `{"state":true}`, wantStatus: http.StatusNotFound},
		{name: "invalid json", path: "/api/v1/devices/1/state", body: `{`, wantStatus: http.StatusBadRequest},
		{name: "empty object", path: "/api/v1/devices/1/state", body: `{}`, wantStatus: http.StatusBadRequest},
		{name: "not an object", path: "/api/v1/devices/1/state", body: `[1]`, wantStatus: http.StatusBadRequest},
		{name: "hub failure", path: "/api/v1/devices/1/state", body: `{"state":true}`, sendErr: errors.New("hub down"), wantStatus: http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, coord, history := testServer(t)
			coord.sendErr = tt.sendErr

			w := doRequest(t, srv.Handler(), http.MethodPut, tt.path, tt.body)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if len(history.entries) != 0 {
				t.Errorf("history recorded on failure: %+v", history.entries)
			}
		})
	}
}

func TestGetDeviceHistory(t *testing.T) {
	srv, _, history := testServer(t)
	router := srv.Handler()

	for _, body := range []string{`{"state":true}`, `{"state":false}`} {
		if w := doRequest(t, router, http.MethodPut, "/api/v1/devices/1/state", body); w.Code != http.StatusAccepted {
			t.Fatalf("PUT status = %d", w.Code)
		}
	}
	if len(history.entries) != 2 {
		t.Fatalf("recorded %d entries, want 2", len(history.entries))
	}

	w := doRequest(t, router, http.MethodGet, "/api/v1/devices/1/history?limit=1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	got := decodeBody[struct {
		DeviceID string                     `json:"device_id"`
		History  []device.StateHistoryEntry `json:"history"`
		Count    int                        `json:"count"`
	}](t, w)
	if got.Count != 1 || got.History[0].State["state"] != false {
		t.Errorf("history = %+v, want newest entry only", got)
	}
}

func TestGetDeviceHistory_Errors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		noHistory  bool
		getErr     error
		wantStatus int
	}{
		{name: "unknown device", path: "/api/v1/devices/99/history", wantStatus: http.StatusNotFound},
		{name: "bad limit", path: "/api/v1/devices/1/history?limit=abc", wantStatus: http.StatusBadRequest},
		{name: "limit too large", path: "/api/v1/devices/1/history?limit=1000", wantStatus: http.StatusBadRequest},
		{name: "bad since", path: "/api/v1/devices/1/history?since=yesterday", wantStatus: http.StatusBadRequest},
		{name: "no repository", path: "/api/v1/devices/1/history", noHistory: true, wantStatus: http.StatusServiceUnavailable},
		{name: "repository error", path: "/api/v1/devices/1/history", getErr: errors.New("disk"), wantStatus: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _, history := testServer(t)
			history.getErr = tt.getErr
			if tt.noHistory {
				srv.history = nil
			}

			w := doRequest(t, srv.Handler(), http.MethodGet, tt.path, "")
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestParseHistoryLimit(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{raw: "", want: defaultHistoryLimit},
		{raw: "10", want: 10},
		{raw: "200", want: 200},
		{raw: "201", wantErr: true},
		{raw: "0", wantErr: true},
		{raw: "-1", wantErr: true},
		{raw: "x", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseHistoryLimit(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseHistoryLimit(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseHistoryLimit(%q) = %d, want %d", tt.raw, got, tt.want)
			}
		})
	}
}
