package entity

import (
	"context"

	"github.com/nerrad567/smarthome-bridge/internal/device"
)

// SensorClass is the measured quantity of a sensor.
type SensorClass string

// Sensor classes.
const (
	SensorTemperature SensorClass = "temperature"
	SensorHumidity    SensorClass = "humidity"
	SensorIlluminance SensorClass = "illuminance"
	SensorGeneric     SensorClass = ""
)

// 1-Wire identifiers that select a sensor class.
const (
	onewireDS2438Temp = "DS2438TEMP"
	onewireDS18XB20   = "DS18XB20"
	onewireHIH4030    = "HIH4030"
	onewireHIH5030    = "HIH5030"
	onewireTEPT5600   = "TEPT5600"
)

// classifySensor picks the class and fixed unit from 1-Wire metadata.
// Generic sensors take their unit from live state instead.
func classifySensor(m device.Metadata) (SensorClass, string) {
	switch {
	case m.OnewireConversionType == onewireDS2438Temp, m.OnewireType == onewireDS18XB20:
		return SensorTemperature, "°C"
	case m.OnewireConversionType == onewireHIH4030, m.OnewireConversionType == onewireHIH5030:
		return SensorHumidity, "%"
	case m.OnewireConversionType == onewireTEPT5600:
		return SensorIlluminance, "lx"
	default:
		return SensorGeneric, ""
	}
}

// Sensor is a read-only measurement taken from the "value" field.
type Sensor struct {
	base
	class SensorClass
	unit  string
}

// Class returns the sensor class.
func (s *Sensor) Class() SensorClass { return s.class }

// State reports value, unit and device_class.
func (s *Sensor) State() State {
	st := s.live()
	unit := s.unit
	if s.class == SensorGeneric {
		unit, _ = st.String("unit")
	}
	attrs := map[string]any{
		"device_class": string(s.class),
		"unit":         unit,
		"state_class":  "measurement",
		"value":        st["value"],
	}

	value, ok := st.Number("value")
	if !ok {
		return s.project(nil, attrs)
	}
	return s.project(floatPtr(value), attrs)
}

// Actions returns nothing.
func (s *Sensor) Actions() []string { return nil }

// Do always fails; sensors accept no actions.
func (s *Sensor) Do(_ context.Context, action string, _ map[string]any) error {
	return unknownAction(s, action)
}
