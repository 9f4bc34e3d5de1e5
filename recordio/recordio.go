// Package recordio decodes newline-delimited JSON into schema records.
// It preserves the numeric token form: an integer literal decodes to int64
// and a fractional literal to float64, so downstream schema inference can
// distinguish the two.
package recordio

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/gurre/multidata/schema"
	"github.com/valyala/fastjson"
)

// maxLineBytes bounds a single NDJSON line. Lines beyond this are treated as
// corrupt input rather than silently truncated.
const maxLineBytes = 16 * 1024 * 1024

// DecodeLine parses one JSON line into a Record. The top-level value must be
// an object; anything else fails with schema.ErrInvalidInput.
//
// Example:
//
//	rec, err := recordio.DecodeLine([]byte(`{"id": 1, "name": "a"}`))
func DecodeLine(line []byte) (schema.Record, error) {
	var p fastjson.Parser
	return decodeLine(&p, line)
}

func decodeLine(p *fastjson.Parser, line []byte) (schema.Record, error) {
	v, err := p.ParseBytes(line)
	if err != nil {
		return nil, fmt.Errorf("failed to parse record line: %w", err)
	}
	if v.Type() != fastjson.TypeObject {
		return nil, fmt.Errorf("%w: line must be a JSON object, got %s", schema.ErrInvalidInput, v.Type())
	}
	rec, err := valueToAny(v)
	if err != nil {
		return nil, err
	}
	return rec.(map[string]any), nil
}

// ReadAll reads every non-blank line from r and decodes each into a Record.
// The result is typed []any so it can be handed straight to schema.Infer.
func ReadAll(r io.Reader) ([]any, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var p fastjson.Parser
	records := make([]any, 0, 64)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		rec, err := decodeLine(&p, line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	return records, nil
}

// valueToAny converts a parsed fastjson value into plain Go values.
func valueToAny(v *fastjson.Value) (any, error) {
	switch v.Type() {
	case fastjson.TypeObject:
		o, err := v.Object()
		if err != nil {
			return nil, err
		}
		m := make(map[string]any, o.Len())
		var visitErr error
		o.Visit(func(key []byte, item *fastjson.Value) {
			if visitErr != nil {
				return
			}
			child, err := valueToAny(item)
			if err != nil {
				visitErr = err
				return
			}
			m[string(key)] = child
		})
		if visitErr != nil {
			return nil, visitErr
		}
		return m, nil
	case fastjson.TypeArray:
		items, err := v.Array()
		if err != nil {
			return nil, err
		}
		out := make([]any, len(items))
		for i, item := range items {
			child, err := valueToAny(item)
			if err != nil {
				return nil, err
			}
			out[i] = child
		}
		return out, nil
	case fastjson.TypeString:
		b, err := v.StringBytes()
		if err != nil {
			return nil, err
		}
		return string(b), nil
	case fastjson.TypeNumber:
		if i, err := v.Int64(); err == nil {
			return i, nil
		}
		return v.Float64()
	case fastjson.TypeTrue:
		return true, nil
	case fastjson.TypeFalse:
		return false, nil
	case fastjson.TypeNull:
		return nil, nil
	}
	return nil, fmt.Errorf("unexpected JSON value type %s", v.Type())
}
