// Package schema implements structural schema inference over semi-structured
// records. It walks nested record values depth-first and accumulates one
// FieldType per dot-delimited field path, unifying conflicting observations
// into mixed types and tracking nullability across records.
package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind is the inferred type tag for a field path.
type Kind string

const (
	KindString  Kind = "string"
	KindInteger Kind = "integer"
	KindFloat   Kind = "float"
	KindBoolean Kind = "boolean"
	KindNull    Kind = "null"
	KindObject  Kind = "object"
	KindArray   Kind = "array"
	KindMixed   Kind = "mixed"

	// KindUnknown marks an array whose element type could not be determined
	// because every observed instance was empty. It is the identity element
	// of the merge: unknown unified with any kind yields that kind.
	KindUnknown Kind = "unknown"
)

// Record is one semi-structured input instance. Values are scalars
// (string/number/bool/nil), nested Records, or []any sequences of either.
type Record = map[string]any

// FieldType describes the unified type of one field path.
// Observed is populated only when Type is KindMixed and lists the distinct
// concrete kinds seen across all records, sorted for deterministic output.
type FieldType struct {
	Type     Kind   `json:"type"`
	Nullable bool   `json:"nullable"`
	Observed []Kind `json:"observedTypes,omitempty"`
}

// Descriptor maps dot-delimited field paths to their inferred FieldType.
// Array elements collapse to a shared "name[]" path so the descriptor size
// is independent of record count.
type Descriptor map[string]FieldType

// ErrInvalidInput is returned when a top-level value is not record-shaped or
// a nested mapping does not use string keys.
var ErrInvalidInput = errors.New("schema: invalid input")

// fieldAcc is the running accumulator for one field path. The merge is
// commutative and associative: kinds form a set union, presence counts add.
type fieldAcc struct {
	kinds      map[Kind]struct{} // concrete kinds observed, never including unknown
	sawUnknown bool              // an empty-array element marker was observed
	seenIn     int               // number of records in which the path appeared
}

// Infer computes the unified Descriptor for a sequence of records.
// Every element must be record-shaped (a map with string keys); a scalar or
// sequence top-level value fails with ErrInvalidInput and no partial result.
// An empty input yields an empty Descriptor.
//
// Example:
//
//	desc, err := schema.Infer([]any{
//	    map[string]any{"a": int64(1)},
//	    map[string]any{"a": "x"},
//	})
//	// desc["a"].Type == schema.KindMixed
func Infer(records []any) (Descriptor, error) {
	accs := make(map[string]*fieldAcc)

	for i, rec := range records {
		m, ok := rec.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: record %d must be an object, got %T", ErrInvalidInput, i, rec)
		}

		// Collect this record's observations first so that a path observed
		// several times within one record (array elements) still counts as
		// present exactly once for nullability purposes.
		local := make(map[string]*fieldAcc)
		if err := walkObject(m, "", local); err != nil {
			return nil, err
		}

		for path, l := range local {
			a, ok := accs[path]
			if !ok {
				a = &fieldAcc{kinds: make(map[Kind]struct{})}
				accs[path] = a
			}
			for k := range l.kinds {
				a.kinds[k] = struct{}{}
			}
			a.sawUnknown = a.sawUnknown || l.sawUnknown
			a.seenIn++
		}
	}

	desc := make(Descriptor, len(accs))
	for path, a := range accs {
		desc[path] = a.fieldType(len(records))
	}
	return desc, nil
}

// InferRecords is a convenience wrapper for callers that already hold typed
// records, such as query-result or NDJSON readers.
func InferRecords(records []Record) (Descriptor, error) {
	vs := make([]any, len(records))
	for i, r := range records {
		vs[i] = r
	}
	return Infer(vs)
}

// fieldType resolves the accumulated observations into a FieldType.
func (a *fieldAcc) fieldType(total int) FieldType {
	ft := FieldType{Nullable: a.seenIn < total}

	switch len(a.kinds) {
	case 0:
		ft.Type = KindUnknown
	case 1:
		for k := range a.kinds {
			ft.Type = k
		}
	default:
		ft.Type = KindMixed
		ft.Observed = make([]Kind, 0, len(a.kinds))
		for k := range a.kinds {
			ft.Observed = append(ft.Observed, k)
		}
		sort.Slice(ft.Observed, func(i, j int) bool { return ft.Observed[i] < ft.Observed[j] })
	}
	return ft
}

// walkObject records the observations of one mapping's fields into local.
func walkObject(m map[string]any, path string, local map[string]*fieldAcc) error {
	for key, v := range m {
		if err := walkValue(v, joinPath(path, key), local); err != nil {
			return err
		}
	}
	return nil
}

// walkValue classifies one value and recurses into composites.
func walkValue(v any, path string, local map[string]*fieldAcc) error {
	switch val := v.(type) {
	case map[string]any:
		if len(val) == 0 {
			note(local, path, KindObject)
			return nil
		}
		return walkObject(val, path, local)
	case []any:
		elemPath := path + "[]"
		if len(val) == 0 {
			noteUnknown(local, elemPath)
			return nil
		}
		for _, e := range val {
			if err := walkValue(e, elemPath, local); err != nil {
				return err
			}
		}
		return nil
	default:
		kind, err := scalarKind(v)
		if err != nil {
			return fmt.Errorf("%w: field %q: %v", ErrInvalidInput, path, err)
		}
		note(local, path, kind)
		return nil
	}
}

// scalarKind classifies a leaf value. Integral and floating numeric Go types
// map to distinct kinds so that record sources which preserve the token form
// (NDJSON readers, SQL scanners) produce precise schemas.
func scalarKind(v any) (Kind, error) {
	switch v.(type) {
	case nil:
		return KindNull, nil
	case string:
		return KindString, nil
	case bool:
		return KindBoolean, nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return KindInteger, nil
	case float32, float64:
		return KindFloat, nil
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}

func note(local map[string]*fieldAcc, path string, kind Kind) {
	a, ok := local[path]
	if !ok {
		a = &fieldAcc{kinds: make(map[Kind]struct{})}
		local[path] = a
	}
	a.kinds[kind] = struct{}{}
}

func noteUnknown(local map[string]*fieldAcc, path string) {
	a, ok := local[path]
	if !ok {
		a = &fieldAcc{kinds: make(map[Kind]struct{})}
		local[path] = a
	}
	a.sawUnknown = true
}

func joinPath(parent, key string) string {
	if parent == "" {
		return key
	}
	var sb strings.Builder
	sb.Grow(len(parent) + 1 + len(key))
	sb.WriteString(parent)
	sb.WriteByte('.')
	sb.WriteString(key)
	return sb.String()
}
