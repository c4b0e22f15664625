package entity

import (
	"context"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Light actions beyond turn_on / turn_off.
const (
	ActionSetAnimationSpeed = "set_animation_speed"
	ActionSetColors         = "set_colors"
)

const (
	// colorSlots is the length of the colors array the hub expects.
	colorSlots = 5
	blackHex   = "000000"
)

// Light is an RGB LED strip: on/off, brightness 0..255, a list of five
// colours and a named animation.
type Light struct {
	base

	// effects maps hub animation names to display names.
	effects map[string]string
}

// State reports is_on, brightness, rgb_color, colors, effect, effect_list.
// Readings are nil until the device has reported any state.
func (l *Light) State() State {
	st := l.live()
	attrs := map[string]any{
		"is_on":       nil,
		"brightness":  nil,
		"rgb_color":   nil,
		"colors":      nil,
		"effect":      nil,
		"effect_list": l.EffectList(),
	}
	if len(st) == 0 {
		return l.project(nil, attrs)
	}

	on, _ := st.Bool("state")
	attrs["is_on"] = on

	brightness, _ := st.Int("brightness")
	attrs["brightness"] = brightness

	colors := normalizeColors(st)
	if len(colors) > 0 {
		attrs["colors"] = colors
		if rgb, ok := hexToRGB(colors[0]); ok {
			attrs["rgb_color"] = rgb
		}
	}

	if animation, ok := st.String("animation"); ok {
		if display, known := l.effects[animation]; known {
			attrs["effect"] = display
		}
	}
	if speed, ok := st.Int("animation_speed"); ok {
		attrs["animation_speed"] = speed
	}

	return l.project(floatPtr(float64(brightness)), attrs)
}

// EffectList returns the display names of all known animations, sorted.
func (l *Light) EffectList() []string {
	return slices.Sorted(maps.Values(l.effects))
}

// Actions returns turn_on, turn_off, set_animation_speed and set_colors.
func (l *Light) Actions() []string {
	return []string{ActionTurnOn, ActionTurnOff, ActionSetAnimationSpeed, ActionSetColors}
}

// Do performs a light action.
//
// turn_on accepts optional brightness (0..255), rgb_color ([r,g,b]) and
// effect (display or animation name). set_animation_speed requires speed
// (1..255). set_colors requires color1 and accepts color2..color5.
func (l *Light) Do(ctx context.Context, action string, params map[string]any) error {
	switch action {
	case ActionTurnOn:
		partial, err := l.turnOnPayload(params)
		if err != nil {
			return err
		}
		return l.send(ctx, partial)
	case ActionTurnOff:
		return l.send(ctx, map[string]any{"state": false})
	case ActionSetAnimationSpeed:
		speed, ok, err := intParam(params, "speed", 1, 255)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: speed is required", ErrInvalidParams)
		}
		return l.send(ctx, map[string]any{"animation_speed": speed})
	case ActionSetColors:
		colors, err := l.mergeColors(params)
		if err != nil {
			return err
		}
		return l.send(ctx, map[string]any{"colors": colors})
	default:
		return unknownAction(l, action)
	}
}

func (l *Light) turnOnPayload(params map[string]any) (map[string]any, error) {
	partial := map[string]any{"state": true}

	brightness, ok, err := intParam(params, "brightness", 0, 255)
	if err != nil {
		return nil, err
	}
	if ok {
		partial["brightness"] = brightness
	}

	rgb, ok, err := rgbParam(params, "rgb_color")
	if err != nil {
		return nil, err
	}
	if ok {
		colors := []string{rgbToHex(rgb)}
		for len(colors) < colorSlots {
			colors = append(colors, blackHex)
		}
		partial["colors"] = colors
	}

	effect, ok, err := stringParam(params, "effect")
	if err != nil {
		return nil, err
	}
	if ok {
		animation, known := l.animationFor(effect)
		if !known {
			return nil, fmt.Errorf("%w: unknown effect %q", ErrInvalidParams, effect)
		}
		partial["animation"] = animation
	}
	return partial, nil
}

// animationFor resolves a display name or an animation name to the
// animation name the hub expects.
func (l *Light) animationFor(effect string) (string, bool) {
	if _, ok := l.effects[effect]; ok {
		return effect, true
	}
	for animation, display := range l.effects {
		if display == effect {
			return animation, true
		}
	}
	return "", false
}

// mergeColors overlays color1..color5 onto the current colours.
func (l *Light) mergeColors(params map[string]any) ([]string, error) {
	if _, ok := params["color1"]; !ok {
		return nil, fmt.Errorf("%w: color1 is required", ErrInvalidParams)
	}

	colors := normalizeColors(l.live())
	for len(colors) < colorSlots {
		colors = append(colors, blackHex)
	}
	colors = colors[:colorSlots]

	for i := range colorSlots {
		rgb, ok, err := rgbParam(params, "color"+strconv.Itoa(i+1))
		if err != nil {
			return nil, err
		}
		if ok {
			colors[i] = rgbToHex(rgb)
		}
	}
	return colors, nil
}

// Dimmer is a dimmable output with value 0..100, projected as brightness 0..255.
type Dimmer struct {
	base
}

// State reports is_on and brightness.
func (d *Dimmer) State() State {
	st := d.live()
	on, _ := st.Bool("state")
	attrs := map[string]any{"is_on": on, "brightness": nil}

	value, ok := st.Number("value")
	if !ok {
		return d.project(nil, attrs)
	}
	brightness := percentToBrightness(value)
	attrs["brightness"] = brightness
	attrs["value"] = value
	return d.project(floatPtr(float64(brightness)), attrs)
}

// Actions returns turn_on and turn_off.
func (d *Dimmer) Actions() []string {
	return []string{ActionTurnOn, ActionTurnOff}
}

// Do sends {"state": true, "value": pct} or {"state": false}.
func (d *Dimmer) Do(ctx context.Context, action string, params map[string]any) error {
	switch action {
	case ActionTurnOn:
		partial := map[string]any{"state": true}
		brightness, ok, err := intParam(params, "brightness", 0, 255)
		if err != nil {
			return err
		}
		if ok {
			partial["value"] = brightnessToPercent(brightness)
		}
		return d.send(ctx, partial)
	case ActionTurnOff:
		return d.send(ctx, map[string]any{"state": false})
	default:
		return unknownAction(d, action)
	}
}

func percentToBrightness(pct float64) int {
	return int(math.Round(math.Max(0, math.Min(100, pct)) * 255 / 100))
}

func brightnessToPercent(brightness int) int {
	return int(math.Round(float64(brightness) * 100 / 255))
}

// normalizeColors returns the colors list with any 0x prefix stripped.
func normalizeColors(st map[string]any) []string {
	raw, ok := st["colors"].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			continue
		}
		s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
		out = append(out, strings.ToLower(s))
	}
	return out
}

func hexToRGB(hex string) ([3]int, bool) {
	var rgb [3]int
	if len(hex) < 6 {
		return rgb, false
	}
	for i := range 3 {
		n, err := strconv.ParseUint(hex[i*2:i*2+2], 16, 8)
		if err != nil {
			return rgb, false
		}
		rgb[i] = int(n)
	}
	return rgb, true
}

func rgbToHex(rgb [3]int) string {
	return fmt.Sprintf("%02x%02x%02x", rgb[0], rgb[1], rgb[2])
}
