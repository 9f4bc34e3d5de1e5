// Package jsonutil prepares values for upload and export. Clean strips empty
// members, normalizes timestamps to RFC 3339 and collapses integral floats,
// matching what the serving stores expect of the exported documents.
package jsonutil

import (
	"math"
	"time"

	json "github.com/goccy/go-json"
)

// Clean returns a copy of v suitable for serialization:
//   - nil values, empty strings, empty maps and empty slices are dropped from
//     maps and slices
//   - time.Time values become RFC 3339 strings
//   - floats holding an integral value become int64
//
// Scalars pass through unchanged. The input is never modified.
func Clean(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case float64:
		return cleanFloat(val)
	case float32:
		return cleanFloat(float64(val))
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			c := Clean(item)
			if isEmpty(c) {
				continue
			}
			out[k] = c
		}
		return out
	case []any:
		out := make([]any, 0, len(val))
		for _, item := range val {
			c := Clean(item)
			if isEmpty(c) {
				continue
			}
			out = append(out, c)
		}
		return out
	default:
		return v
	}
}

// Marshal serializes Clean(v) without escaping or trailing newline.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(Clean(v))
}

// MarshalIndent serializes Clean(v) with two-space indentation, the format
// used for local file export.
func MarshalIndent(v any) ([]byte, error) {
	return json.MarshalIndent(Clean(v), "", "  ")
}

// cleanFloat collapses integral floats to int64. Only values within the
// exactly-representable integer range of a float64 convert; anything larger
// would overflow or lose precision in the conversion, so it stays a float64.
func cleanFloat(f float64) any {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return f
}

// isEmpty reports whether a cleaned value should be dropped from its parent.
func isEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case map[string]any:
		return len(val) == 0
	case []any:
		return len(val) == 0
	default:
		return false
	}
}
