// Package entity projects hub devices into typed entities.
//
// An entity is a read-only view over the coordinator's cache plus the
// commands the device accepts. Each device_type maps to one builder:
//
//	switch         → Switch (two Ports on digital modules)
//	pushbutton     → Switch, or Button when PushbuttonMode is "button"
//	rgb_led        → Light
//	dimmer         → Dimmer (kind light)
//	blind          → Cover
//	sensor         → Sensor (class from 1-Wire metadata)
//	binary_sensor  → BinarySensor (two read-only Ports on digital modules)
//
// Device types without a builder get no entity.
//
// Commands are sent through Upstream.SendCommand and never modify the
// cache; an entity's State changes only when the hub echoes the change
// back over the stream.
//
// The Registry builds the whole entity set from one metadata snapshot.
// Devices that appear later need an explicit Reload.
package entity
