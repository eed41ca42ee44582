package config

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// SafeInt parses a loosely typed value as an integer. Values below minimum are
// clamped up to minimum; anything unparseable yields def. Floats truncate
// toward zero and bools count as 0 or 1.
func SafeInt(value any, def, minimum int) int {
	parsed, ok := parseInt(value)
	if !ok {
		return def
	}
	if parsed < minimum {
		return minimum
	}
	return parsed
}

// SafeFloat parses a loosely typed value as a float. Values below minimum are
// clamped up to minimum; anything unparseable, NaN or infinite yields def.
func SafeFloat(value any, def, minimum float64) float64 {
	parsed, ok := parseFloat(value)
	if !ok || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return def
	}
	if parsed < minimum {
		return minimum
	}
	return parsed
}

func parseInt(value any) (int, bool) {
	switch v := value.(type) {
	case nil:
		return 0, false
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case int:
		return v, true
	case int8:
		return int(v), true
	case int16:
		return int(v), true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case uint:
		return int(v), true
	case uint8:
		return int(v), true
	case uint16:
		return int(v), true
	case uint32:
		return int(v), true
	case uint64:
		if v > math.MaxInt {
			return 0, false
		}
		return int(v), true
	case float32:
		return floatToInt(float64(v))
	case float64:
		return floatToInt(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n), true
		}
		return 0, false
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func floatToInt(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	f = math.Trunc(f)
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int(f), true
}

func parseFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case nil:
		return 0, false
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		if n, ok := parseInt(value); ok {
			return float64(n), true
		}
		return 0, false
	}
}
