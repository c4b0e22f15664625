package device

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"strconv"
	"strings"
)

// Device types reported by the hub in the device_type field.
const (
	TypeSwitch       = "switch"
	TypePushbutton   = "pushbutton"
	TypeRGBLED       = "rgb_led"
	TypeDimmer       = "dimmer"
	TypeBlind        = "blind"
	TypeSensor       = "sensor"
	TypeBinarySensor = "binary_sensor"
)

// ModuleTypeDigital marks a dual-port digital module (port_a / port_b).
const ModuleTypeDigital = "digital"

// Attributes is a free-form JSON object as reported by the hub.
//
// The accessors below never panic on a missing key or an unexpected type;
// they report ok=false instead.
type Attributes map[string]any

// LiveState is the unparsed state object last reported for one device.
// Its schema depends on the device type and is opaque to the cache.
type LiveState = Attributes

// Bool returns the boolean stored under key.
func (a Attributes) Bool(key string) (bool, bool) {
	v, ok := a[key].(bool)
	return v, ok
}

// Number returns the numeric value stored under key.
func (a Attributes) Number(key string) (float64, bool) {
	switch v := a[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Int returns the numeric value under key rounded to the nearest integer.
func (a Attributes) Int(key string) (int, bool) {
	f, ok := a.Number(key)
	if !ok {
		return 0, false
	}
	return int(math.Round(f)), true
}

// String returns the string stored under key.
func (a Attributes) String(key string) (string, bool) {
	v, ok := a[key].(string)
	return v, ok
}

// Object returns the nested object stored under key.
func (a Attributes) Object(key string) (Attributes, bool) {
	v, ok := a[key].(map[string]any)
	return Attributes(v), ok
}

// Strings returns the list of strings stored under key, skipping non-string items.
func (a Attributes) Strings(key string) ([]string, bool) {
	raw, ok := a[key].([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out, true
}

// Clone returns a shallow copy. Nested values are shared.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return Attributes{}
	}
	return maps.Clone(a)
}

// Metadata describes one device as listed by GET /api/devices.
//
// The well-known fields are lifted into typed fields; everything the hub
// sends (including fields this package does not know) stays in Attributes.
type Metadata struct {
	// ID is the stringified hub identifier, used as the cache key.
	ID string

	// UUID is the hub's stable device UUID, used for entity unique ids.
	UUID string

	Name       string
	DeviceType string
	Enabled    bool

	// ModuleType selects sub-kinds, e.g. "digital" for dual-port modules.
	ModuleType string

	// CanUsePositions is true for blinds that accept absolute positions.
	CanUsePositions bool

	// OnewireConversionType and OnewireType classify 1-Wire sensors.
	OnewireConversionType string
	OnewireType           string

	// Attributes holds the complete object as received.
	Attributes Attributes
}

// IsDigital reports whether the device is a dual-port digital module.
func (m Metadata) IsDigital() bool {
	return m.ModuleType == ModuleTypeDigital
}

// UnmarshalJSON decodes a hub device object. The id may be a JSON string or
// number; a missing enabled field counts as enabled.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("%w: device is null", ErrMalformedDeviceList)
	}

	var key struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &key); err != nil {
		return err
	}
	id, err := DecodeID(key.ID)
	if err != nil {
		return err
	}

	attrs := Attributes(raw)
	*m = Metadata{ID: id, Enabled: true, Attributes: attrs}
	m.UUID, _ = attrs.String("uuid")
	m.Name, _ = attrs.String("name")
	m.DeviceType, _ = attrs.String("device_type")
	if enabled, ok := attrs.Bool("enabled"); ok {
		m.Enabled = enabled
	}
	m.ModuleType, _ = attrs.String("module_type")
	m.CanUsePositions, _ = attrs.Bool("can_use_positions")
	m.OnewireConversionType, _ = attrs.String("onewire_conversion_type")
	m.OnewireType, _ = attrs.String("onewire_type")
	return nil
}

// MarshalJSON emits the object as received with the id normalised to a string.
func (m Metadata) MarshalJSON() ([]byte, error) {
	out := m.Attributes.Clone()
	out["id"] = m.ID
	out["name"] = m.Name
	out["device_type"] = m.DeviceType
	out["enabled"] = m.Enabled
	return json.Marshal(map[string]any(out))
}

// NormalizeID converts a hub device identifier into its cache key.
//
// Numbers are formatted without exponent or trailing zeros, so 7 and 7.0
// both become "7"; integer json.Number values keep their exact digits.
// Strings are used as-is after trimming whitespace.
//
// Parameters:
//   - v: Decoded JSON value of an id or device_id field
//
// Returns:
//   - string: Cache key
//   - error: ErrInvalidID if v is absent, empty, or not a string/number
func NormalizeID(v any) (string, error) {
	switch id := v.(type) {
	case string:
		id = strings.TrimSpace(id)
		if id == "" {
			return "", fmt.Errorf("%w: empty", ErrInvalidID)
		}
		return id, nil
	case float64:
		if math.IsNaN(id) || math.IsInf(id, 0) {
			return "", fmt.Errorf("%w: %v", ErrInvalidID, id)
		}
		return strconv.FormatFloat(id, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(id), nil
	case int64:
		return strconv.FormatInt(id, 10), nil
	case json.Number:
		return numberID(id)
	case nil:
		return "", fmt.Errorf("%w: missing", ErrInvalidID)
	default:
		return "", fmt.Errorf("%w: unsupported type %T", ErrInvalidID, v)
	}
}

// DecodeID normalises a raw JSON id. Numbers are read as json.Number so
// integer ids keep every digit.
func DecodeID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("%w: missing", ErrInvalidID)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidID, err)
	}
	return NormalizeID(v)
}

// numberID formats a JSON number. Integer literals are used verbatim; other
// forms go through float formatting so 7.0 and 7 agree.
func numberID(n json.Number) (string, error) {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if s == "" || s == "-" {
			return "", fmt.Errorf("%w: %q", ErrInvalidID, s)
		}
		return s, nil
	}
	f, err := n.Float64()
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return NormalizeID(f)
}
