// Package s3store implements JSON upload and download helpers on top of S3,
// plus streaming record reads for schema inference over stored NDJSON data.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	json "github.com/goccy/go-json"
	"github.com/gurre/multidata/aws"
	"github.com/gurre/multidata/jsonutil"
	"github.com/gurre/multidata/metrics"
	"github.com/gurre/multidata/recordio"
	"github.com/gurre/multidata/schema"
	"github.com/gurre/s3streamer"
)

// Object pairs an object name with its JSON-serializable payload for batch
// uploads. Objects with a nil Data are skipped.
type Object struct {
	Name string
	Data any
}

// Store provides JSON object operations against a single S3 endpoint.
// Example:
//
//	client := s3.NewFromConfig(cfg)
//	store := s3store.NewStore(aws.NewS3Client(client), s3streamer.NewS3Streamer(client), nil)
//	err := store.PutJSON(ctx, "my-bucket", "exports/latest.json", payload)
type Store struct {
	client   aws.S3Client
	streamer s3streamer.Streamer
	log      *slog.Logger
}

// NewStore creates a Store. The streamer may be nil when StreamRecords is not
// needed; a nil logger falls back to slog.Default().
func NewStore(client aws.S3Client, streamer s3streamer.Streamer, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{client: client, streamer: streamer, log: log}
}

// PutJSON serializes v through jsonutil and uploads it to bucket/key.
func (s *Store) PutJSON(ctx context.Context, bucket, key string, v any) error {
	body, err := jsonutil.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal object for %s: %w", key, err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s to bucket %s: %w", key, bucket, err)
	}
	return nil
}

// GetJSON downloads bucket/key and decodes the JSON body into out.
func (s *Store) GetJSON(ctx context.Context, bucket, key string, out any) error {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		return fmt.Errorf("failed to download %s from bucket %s: %w", key, bucket, err)
	}
	if resp.Body == nil {
		return fmt.Errorf("response body is nil for %s", key)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

// Exists reports whether bucket/key exists, using a metadata-only request.
func (s *Store) Exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check %s in bucket %s: %w", key, bucket, err)
	}
	return true, nil
}

// Download copies bucket/key into a local file, creating parent directories.
func (s *Store) Download(ctx context.Context, bucket, key, path string) error {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		return fmt.Errorf("failed to download %s from bucket %s: %w", key, bucket, err)
	}
	if resp.Body == nil {
		return fmt.Errorf("response body is nil for %s", key)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// UploadAll uploads every object under bucket/prefix concurrently with the
// given number of workers. Objects with nil payloads are logged and skipped.
// Individual upload failures do not stop the remaining uploads; all failures
// are joined into the returned error.
func (s *Store) UploadAll(ctx context.Context, bucket, prefix string, objects []Object, workers int) error {
	if workers < 1 {
		workers = 1
	}

	run := metrics.NewRun()
	tasks := make(chan Object)
	errs := make([]error, 0, len(objects))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for obj := range tasks {
				key := prefix + "/" + obj.Name
				if err := s.PutJSON(ctx, bucket, key, obj.Data); err != nil {
					run.ItemFailed()
					s.log.Error("failed to upload object", "key", key, "error", err)
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
					continue
				}
				run.ItemProcessed()
			}
		}()
	}

	for _, obj := range objects {
		if obj.Data == nil {
			s.log.Warn("no data for object, skipping upload", "name", obj.Name)
			continue
		}
		select {
		case tasks <- obj:
		case <-ctx.Done():
			close(tasks)
			wg.Wait()
			return ctx.Err()
		}
	}
	close(tasks)
	wg.Wait()

	report := run.Report()
	s.log.Info("upload completed", "bucket", bucket, "prefix", prefix,
		"uploaded", report.Items, "failed", report.Failed, "duration", report.Duration)
	return errors.Join(errs...)
}

// StreamRecords streams an NDJSON object line by line, decoding each line
// into a Record and passing it to fn. It requires the Store to be built with
// a streamer. Returning an error from fn stops the stream.
func (s *Store) StreamRecords(ctx context.Context, bucket, key string, fn func(schema.Record) error) error {
	if s.streamer == nil {
		return fmt.Errorf("store has no streamer configured")
	}

	err := s.streamer.Stream(ctx, bucket, key, 0, func(line []byte, byteOffset int64) error {
		if len(line) == 0 {
			return nil
		}
		rec, err := recordio.DecodeLine(line)
		if err != nil {
			return fmt.Errorf("offset %d: %w", byteOffset, err)
		}
		return fn(rec)
	})
	if err != nil {
		return fmt.Errorf("failed to stream %s from bucket %s: %w", key, bucket, err)
	}
	return nil
}

// InferSchema streams an NDJSON object, collects its records and infers
// their unified schema.
func (s *Store) InferSchema(ctx context.Context, bucket, key string) (schema.Descriptor, error) {
	records := make([]any, 0, 256)
	err := s.StreamRecords(ctx, bucket, key, func(rec schema.Record) error {
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return schema.Infer(records)
}
