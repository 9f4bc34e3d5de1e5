package s3store

import (
	"bytes"
	"context"
	"testing"

	"github.com/gurre/multidata/schema"
)

// mockStreamer implements s3streamer.Streamer over in-memory NDJSON data.
type mockStreamer struct {
	data []byte
}

func (m *mockStreamer) Stream(ctx context.Context, bucket, key string, offset int64, fn func([]byte, int64) error) error {
	var pos int64
	for _, line := range bytes.Split(m.data, []byte("\n")) {
		if err := fn(line, pos); err != nil {
			return err
		}
		pos += int64(len(line)) + 1
	}
	return nil
}

func TestStreamRecords(t *testing.T) {
	streamer := &mockStreamer{data: []byte(`{"id": 1, "name": "a"}
{"id": 2, "name": "b"}`)}
	store := NewStore(newMockS3Client(), streamer, discardLogger())

	var got []schema.Record
	err := store.StreamRecords(context.Background(), "bucket", "data.ndjson", func(rec schema.Record) error {
		got = append(got, rec)
		return nil
	})
	if err != nil {
		t.Fatalf("StreamRecords failed: %v", err)
	}
	if len(got) != 2 || got[1]["name"] != "b" {
		t.Errorf("got %v, want two records", got)
	}
}

func TestStreamRecordsWithoutStreamer(t *testing.T) {
	store := NewStore(newMockS3Client(), nil, discardLogger())
	err := store.StreamRecords(context.Background(), "bucket", "k", func(schema.Record) error { return nil })
	if err == nil {
		t.Error("expected error when no streamer is configured")
	}
}

func TestInferSchema(t *testing.T) {
	streamer := &mockStreamer{data: []byte(`{"a": 1}
{"a": "x", "b": true}`)}
	store := NewStore(newMockS3Client(), streamer, discardLogger())

	desc, err := store.InferSchema(context.Background(), "bucket", "data.ndjson")
	if err != nil {
		t.Fatalf("InferSchema failed: %v", err)
	}
	if desc["a"].Type != schema.KindMixed {
		t.Errorf("got %+v at a, want mixed", desc["a"])
	}
	if !desc["b"].Nullable {
		t.Errorf("got %+v at b, want nullable", desc["b"])
	}
}
