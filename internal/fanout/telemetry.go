package fanout

import (
	"context"
	"time"

	"github.com/nerrad567/smarthome-bridge/internal/infrastructure/influxdb"
)

// PointWriter queues entity readings. *influxdb.Client satisfies it.
type PointWriter interface {
	WriteEntityValue(v influxdb.EntityValue, ts time.Time)
}

// Telemetry writes each entity's numeric value to InfluxDB when it changes.
// Unavailable entities and entities without a value are skipped.
type Telemetry struct {
	w        PointWriter
	entities StateLister
	seen     *tracker
	now      func() time.Time
	logger   Logger
}

// NewTelemetry creates a telemetry mirror.
func NewTelemetry(w PointWriter, entities StateLister) *Telemetry {
	return &Telemetry{
		w:        w,
		entities: entities,
		seen:     newTracker(),
		now:      time.Now,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the mirror.
func (t *Telemetry) SetLogger(logger Logger) {
	t.logger = logger
}

// Sync writes one point per changed value.
func (t *Telemetry) Sync(_ context.Context) {
	ts := t.now()
	written := 0
	for _, st := range t.entities.States() {
		if !st.Available || st.Value == nil {
			continue
		}
		if !t.seen.changed(st.EntityID, *st.Value) {
			continue
		}

		class, _ := st.Attributes["device_class"].(string)
		unit, _ := st.Attributes["unit"].(string)
		t.w.WriteEntityValue(influxdb.EntityValue{
			Kind:     string(st.Kind),
			EntityID: st.EntityID,
			DeviceID: st.DeviceID,
			Value:    *st.Value,
			Class:    class,
			Unit:     unit,
		}, ts)
		written++
	}
	if written > 0 {
		t.logger.Debug("telemetry points queued", "count", written)
	}
}
