package s3store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// mockS3Client implements the aws.S3Client interface for testing
type mockS3Client struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMockS3Client() *mockS3Client {
	return &mockS3Client{data: make(map[string][]byte)}
}

func (m *mockS3Client) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.data[*params.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(newByteReader(data))}, nil
}

func (m *mockS3Client) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.data[*params.Key] = body
	m.mu.Unlock()
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[*params.Key]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

type byteReader struct {
	data   []byte
	offset int
}

func newByteReader(data []byte) *byteReader { return &byteReader{data: data} }

func (r *byteReader) Read(p []byte) (int, error) {
	if r.offset >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.offset:])
	r.offset += n
	return n, nil
}

func discardLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestPutAndGetJSON(t *testing.T) {
	client := newMockS3Client()
	store := NewStore(client, nil, discardLogger())
	ctx := context.Background()

	in := map[string]any{"name": "a", "count": int64(3), "empty": ""}
	if err := store.PutJSON(ctx, "bucket", "exports/a.json", in); err != nil {
		t.Fatalf("PutJSON failed: %v", err)
	}

	var out map[string]any
	if err := store.GetJSON(ctx, "bucket", "exports/a.json", &out); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if out["name"] != "a" {
		t.Errorf("got %v, want name=a", out)
	}
	if _, ok := out["empty"]; ok {
		t.Errorf("empty members must be dropped during upload, got %v", out)
	}
}

func TestGetJSONMissingKey(t *testing.T) {
	store := NewStore(newMockS3Client(), nil, discardLogger())
	var out map[string]any
	if err := store.GetJSON(context.Background(), "bucket", "missing", &out); err == nil {
		t.Error("expected error for missing key, got nil")
	}
}

func TestExists(t *testing.T) {
	client := newMockS3Client()
	client.data["raw/present.json"] = []byte("{}")
	store := NewStore(client, nil, discardLogger())
	ctx := context.Background()

	ok, err := store.Exists(ctx, "bucket", "raw/present.json")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !ok {
		t.Error("expected present object to exist")
	}

	ok, err = store.Exists(ctx, "bucket", "raw/absent.json")
	if err != nil {
		t.Fatalf("Exists failed for absent key: %v", err)
	}
	if ok {
		t.Error("expected absent object to not exist")
	}
}

// headFailingS3Client forces HeadObject to fail with a non-404 error.
type headFailingS3Client struct {
	*mockS3Client
}

func (m *headFailingS3Client) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	return nil, fmt.Errorf("access denied")
}

func TestExistsPropagatesOtherErrors(t *testing.T) {
	client := &headFailingS3Client{mockS3Client: newMockS3Client()}
	store := NewStore(client, nil, discardLogger())

	if _, err := store.Exists(context.Background(), "bucket", "any"); err == nil {
		t.Fatal("expected non-404 head errors to propagate")
	}
}

func TestDownload(t *testing.T) {
	client := newMockS3Client()
	client.data["raw/file.txt"] = []byte("payload")
	store := NewStore(client, nil, discardLogger())

	path := filepath.Join(t.TempDir(), "nested", "file.txt")
	if err := store.Download(context.Background(), "bucket", "raw/file.txt", path); err != nil {
		t.Fatalf("Download failed: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read downloaded file: %v", err)
	}
	if string(got) != "payload" {
		t.Errorf("got %q, want payload", got)
	}
}

func TestUploadAll(t *testing.T) {
	client := newMockS3Client()
	store := NewStore(client, nil, discardLogger())

	objects := []Object{
		{Name: "a.json", Data: map[string]any{"id": int64(1)}},
		{Name: "b.json", Data: map[string]any{"id": int64(2)}},
		{Name: "skipped.json", Data: nil},
	}
	if err := store.UploadAll(context.Background(), "bucket", "prefix", objects, 4); err != nil {
		t.Fatalf("UploadAll failed: %v", err)
	}

	for _, key := range []string{"prefix/a.json", "prefix/b.json"} {
		if _, ok := client.data[key]; !ok {
			t.Errorf("expected uploaded object %s", key)
		}
	}
	if _, ok := client.data["prefix/skipped.json"]; ok {
		t.Error("nil payloads must not be uploaded")
	}
}

// failingS3Client rejects a specific key to exercise partial-failure handling.
type failingS3Client struct {
	*mockS3Client
	failKey string
}

func (m *failingS3Client) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if *params.Key == m.failKey {
		return nil, fmt.Errorf("simulated upload failure")
	}
	return m.mockS3Client.PutObject(ctx, params, optFns...)
}

func TestUploadAllPartialFailure(t *testing.T) {
	client := &failingS3Client{mockS3Client: newMockS3Client(), failKey: "prefix/bad.json"}
	store := NewStore(client, nil, discardLogger())

	objects := []Object{
		{Name: "good.json", Data: map[string]any{"id": int64(1)}},
		{Name: "bad.json", Data: map[string]any{"id": int64(2)}},
	}
	err := store.UploadAll(context.Background(), "bucket", "prefix", objects, 2)
	if err == nil {
		t.Fatal("expected joined error for failed upload, got nil")
	}
	if _, ok := client.data["prefix/good.json"]; !ok {
		t.Error("remaining uploads must continue after a failure")
	}
}
