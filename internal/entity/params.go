package entity

import (
	"fmt"
	"math"
)

// intParam reads an integer parameter in [lo, hi].
// JSON numbers arrive as float64 and must be integral.
func intParam(params map[string]any, key string, lo, hi int) (int, bool, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return 0, false, nil
	}

	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case int:
		f = float64(v)
	default:
		return 0, true, fmt.Errorf("%w: %s must be a number", ErrInvalidParams, key)
	}
	if f != math.Trunc(f) {
		return 0, true, fmt.Errorf("%w: %s must be an integer", ErrInvalidParams, key)
	}
	n := int(f)
	if n < lo || n > hi {
		return 0, true, fmt.Errorf("%w: %s must be between %d and %d", ErrInvalidParams, key, lo, hi)
	}
	return n, true, nil
}

// rgbParam reads an [r, g, b] parameter with components in 0..255.
func rgbParam(params map[string]any, key string) ([3]int, bool, error) {
	var rgb [3]int

	raw, ok := params[key]
	if !ok || raw == nil {
		return rgb, false, nil
	}

	var items []any
	switch v := raw.(type) {
	case []any:
		items = v
	case []int:
		for _, n := range v {
			items = append(items, n)
		}
	default:
		return rgb, true, fmt.Errorf("%w: %s must be a list of 3 numbers", ErrInvalidParams, key)
	}
	if len(items) != 3 {
		return rgb, true, fmt.Errorf("%w: %s must have exactly 3 components", ErrInvalidParams, key)
	}

	for i, item := range items {
		n, _, err := intParam(map[string]any{key: item}, key, 0, 255)
		if err != nil {
			return rgb, true, err
		}
		rgb[i] = n
	}
	return rgb, true, nil
}

// stringParam reads a non-empty string parameter.
func stringParam(params map[string]any, key string) (string, bool, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return "", false, nil
	}
	s, isString := raw.(string)
	if !isString || s == "" {
		return "", true, fmt.Errorf("%w: %s must be a non-empty string", ErrInvalidParams, key)
	}
	return s, true, nil
}
