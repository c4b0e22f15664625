package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// EntityValue is one numeric reading of an entity.
type EntityValue struct {
	// Kind becomes the measurement name (light, cover, sensor, ...).
	Kind     string
	EntityID string
	DeviceID string
	Value    float64

	// Class is the sensor device class, empty for other kinds.
	Class string
	Unit  string
}

// WriteEntityValue queues one entity reading. The write is non-blocking;
// failures surface through the SetOnError callback.
func (c *Client) WriteEntityValue(v EntityValue, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(entityPoint(v, ts))
}

// entityPoint builds the point for an entity reading.
//
// Tags: entity_id, device_id and, when set, device_class and unit.
// Field: value.
func entityPoint(v EntityValue, ts time.Time) *write.Point {
	tags := map[string]string{
		"entity_id": v.EntityID,
		"device_id": v.DeviceID,
	}
	if v.Class != "" {
		tags["device_class"] = v.Class
	}
	if v.Unit != "" {
		tags["unit"] = v.Unit
	}
	return write.NewPoint(v.Kind, tags, map[string]any{"value": v.Value}, ts)
}

// WritePoint writes a custom point stamped now.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}
