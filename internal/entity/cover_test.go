package entity

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nerrad567/smarthome-bridge/internal/device"
)

func TestCover_Features(t *testing.T) {
	plain := meta("6", device.TypeBlind)
	positional := meta("7", device.TypeBlind)
	positional.CanUsePositions = true

	up := newFakeUpstream(plain, positional)
	if diff := cmp.Diff([]string{ActionOpen, ActionClose, ActionStop}, buildOne(t, up, plain, Options{}).Actions()); diff != "" {
		t.Errorf("plain actions mismatch (-want +got):\n%s", diff)
	}
	want := []string{ActionSetPosition}
	if diff := cmp.Diff(want, buildOne(t, up, positional, Options{}).Actions()); diff != "" {
		t.Errorf("positional actions mismatch (-want +got):\n%s", diff)
	}
}

func TestCover_Position(t *testing.T) {
	tests := []struct {
		name       string
		live       device.LiveState
		wantPos    any
		wantClosed any
	}{
		{"unknown", device.LiveState{}, nil, nil},
		{"stopped", device.LiveState{"position": float64(-1)}, nil, nil},
		{"closed", device.LiveState{"position": float64(0)}, 0, true},
		{"half", device.LiveState{"position": float64(50)}, 50, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := meta("6", device.TypeBlind)
			up := newFakeUpstream(m)
			e := buildOne(t, up, m, Options{})
			up.setLive("6", tt.live)

			st := e.State()
			if st.Attributes["position"] != tt.wantPos {
				t.Errorf("position = %v, want %v", st.Attributes["position"], tt.wantPos)
			}
			if st.Attributes["is_closed"] != tt.wantClosed {
				t.Errorf("is_closed = %v, want %v", st.Attributes["is_closed"], tt.wantClosed)
			}
		})
	}
}

func TestCover_Movement(t *testing.T) {
	tests := []struct {
		name        string
		positional  bool
		moving      bool
		current     float64
		target      float64
		wantOpening bool
		wantClosing bool
	}{
		{"idle", false, false, 0, 100, false, false},
		{"plain opening", false, true, 0, 100, true, false},
		{"plain closing", false, true, 0, 0, false, true},
		{"positional opening", true, true, 20, 60, true, false},
		{"positional closing", true, true, 80, 30, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := meta("6", device.TypeBlind)
			m.CanUsePositions = tt.positional
			m.Attributes = device.Attributes{"moving": tt.moving, "current_position": tt.current}
			up := newFakeUpstream(m)
			e := buildOne(t, up, m, Options{})
			up.setLive("6", device.LiveState{"position": tt.target})

			st := e.State()
			if st.Attributes["is_opening"] != tt.wantOpening {
				t.Errorf("is_opening = %v, want %v", st.Attributes["is_opening"], tt.wantOpening)
			}
			if st.Attributes["is_closing"] != tt.wantClosing {
				t.Errorf("is_closing = %v, want %v", st.Attributes["is_closing"], tt.wantClosing)
			}
		})
	}
}

func TestCover_Commands(t *testing.T) {
	m := meta("6", device.TypeBlind)
	m.CanUsePositions = true
	up := newFakeUpstream(m)
	e := buildOne(t, up, m, Options{})
	ctx := context.Background()

	tests := []struct {
		action string
		params map[string]any
		want   int
	}{
		{ActionOpen, nil, 100},
		{ActionClose, nil, 0},
		{ActionStop, nil, -1},
		{ActionSetPosition, map[string]any{"position": float64(42)}, 42},
	}
	for _, tt := range tests {
		if err := e.Do(ctx, tt.action, tt.params); err != nil {
			t.Fatalf("Do(%s) error = %v", tt.action, err)
		}
		if diff := cmp.Diff(map[string]any{"position": tt.want}, up.lastSent(t).Partial); diff != "" {
			t.Errorf("Do(%s) payload mismatch (-want +got):\n%s", tt.action, diff)
		}
	}

	if err := e.Do(ctx, ActionSetPosition, map[string]any{"position": float64(101)}); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("set_position 101 error = %v, want ErrInvalidParams", err)
	}
	if err := e.Do(ctx, ActionSetPosition, nil); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("set_position without position error = %v, want ErrInvalidParams", err)
	}
}

func TestCover_SetPositionUnsupported(t *testing.T) {
	m := meta("6", device.TypeBlind)
	up := newFakeUpstream(m)
	e := buildOne(t, up, m, Options{})

	err := e.Do(context.Background(), ActionSetPosition, map[string]any{"position": float64(50)})
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("Do() error = %v, want ErrUnsupported", err)
	}
}
