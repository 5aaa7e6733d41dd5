package actions

import (
	"strconv"
	"strings"

	"podscrub/internal/services"
)

// Params arrive as loosely typed maps: in-process callers pass native Go
// values, the IPC passthrough decodes JSON (numbers as float64, sometimes
// strings). The helpers below absorb both shapes.

func stringParam(params map[string]any, keys ...string) (string, bool) {
	for _, key := range keys {
		raw, ok := params[key]
		if !ok {
			continue
		}
		if value, ok := raw.(string); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed, true
			}
		}
	}
	return "", false
}

// presentString reports whether the key carries a string at all, so callers
// can tell an explicit "" (clear the field) from an absent key (leave it).
func presentString(params map[string]any, key string) (string, bool) {
	raw, ok := params[key]
	if !ok {
		return "", false
	}
	value, ok := raw.(string)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(value), true
}

func requireString(params map[string]any, op string, keys ...string) (string, error) {
	if value, ok := stringParam(params, keys...); ok {
		return value, nil
	}
	return "", services.Wrap(services.ErrValidation, "actions", op, keys[0]+" required", nil)
}

func intParam(params map[string]any, key string) (int, bool) {
	value, ok := int64Param(params, key)
	if !ok {
		return 0, false
	}
	return int(value), true
}

func int64Param(params map[string]any, key string) (int64, bool) {
	raw, ok := params[key]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func floatParam(params map[string]any, key string) (float64, bool) {
	raw, ok := params[key]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func mapParam(params map[string]any, key string) (map[string]any, bool) {
	raw, ok := params[key]
	if !ok {
		return nil, false
	}
	value, ok := raw.(map[string]any)
	if !ok || value == nil {
		return nil, false
	}
	return value, true
}
