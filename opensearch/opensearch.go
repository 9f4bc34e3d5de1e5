// Package opensearch implements batch upload and query helpers over an
// OpenSearch cluster. Bulk uploads are chunked into size-capped batches so a
// single request never exceeds the cluster's payload limit.
package opensearch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gurre/multidata/jsonutil"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

// DefaultMaxBatchBytes caps one bulk request body at 10 MiB.
const DefaultMaxBatchBytes = 10 * 1024 * 1024

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("opensearch: document not found")

// Handler provides document operations against one OpenSearch cluster.
// It talks through the opensearchapi request types, so any Transport works:
// a real *opensearch.Client in production, a stub in tests.
//
// Example:
//
//	client, err := opensearchclient.NewClient(opensearchclient.Config{
//	    Addresses: []string{"https://search.example.com"},
//	})
//	h := opensearch.NewHandler(client, "vehicles", nil)
type Handler struct {
	transport opensearchapi.Transport
	index     string
	log       *slog.Logger
}

// NewHandler creates a Handler with a default index. A nil logger falls back
// to slog.Default().
func NewHandler(transport opensearchapi.Transport, index string, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{transport: transport, index: index, log: log}
}

// BulkOptions tune one BulkUpload call.
type BulkOptions struct {
	Index         string // target index, defaults to the handler's index
	MaxBatchBytes int    // per-request body cap, defaults to DefaultMaxBatchBytes
	RecreateIndex bool   // drop and recreate the index before uploading
}

// BulkStats summarizes one BulkUpload call.
type BulkStats struct {
	Succeeded int      // documents indexed successfully
	Failed    int      // documents rejected by the cluster
	Oversized []string // document IDs skipped because one document exceeded the cap
}

// BulkUpload indexes all documents, keyed by document ID, in size-capped
// batches. Documents larger than the cap are skipped and reported in the
// stats. Batches are built in sorted ID order so runs are reproducible.
func (h *Handler) BulkUpload(ctx context.Context, docs map[string]any, opts BulkOptions) (BulkStats, error) {
	index := opts.Index
	if index == "" {
		index = h.index
	}
	maxBytes := opts.MaxBatchBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBatchBytes
	}

	if opts.RecreateIndex {
		if err := h.CreateIndex(ctx, index, 1, 1); err != nil {
			return BulkStats{}, err
		}
	}

	batches, oversized, err := buildBatches(index, docs, maxBytes)
	if err != nil {
		return BulkStats{}, err
	}

	stats := BulkStats{Oversized: oversized}
	stats.Failed += len(oversized)
	for _, id := range oversized {
		h.log.Error("document exceeds max batch size, skipping", "id", id, "index", index)
	}

	for _, batch := range batches {
		succeeded, failed, err := h.sendBulk(ctx, batch)
		if err != nil {
			return stats, err
		}
		stats.Succeeded += succeeded
		stats.Failed += failed
		h.log.Info("bulk batch indexed", "succeeded", succeeded, "failed", failed)
	}

	h.log.Info("bulk upload completed", "succeeded", stats.Succeeded, "failed", stats.Failed)
	return stats, nil
}

// buildBatches renders the bulk request bodies. It is pure so the chunking
// behavior is testable without a cluster.
func buildBatches(index string, docs map[string]any, maxBytes int) (batches [][]byte, oversized []string, err error) {
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var current bytes.Buffer
	for _, id := range ids {
		payload, err := jsonutil.Marshal(docs[id])
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal document %s: %w", id, err)
		}
		action, err := json.Marshal(map[string]any{
			"index": map[string]string{"_index": index, "_id": id},
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal bulk action for %s: %w", id, err)
		}

		entry := len(action) + len(payload) + 2
		if entry > maxBytes {
			oversized = append(oversized, id)
			continue
		}
		if current.Len() > 0 && current.Len()+entry > maxBytes {
			batches = append(batches, append([]byte(nil), current.Bytes()...))
			current.Reset()
		}
		current.Write(action)
		current.WriteByte('\n')
		current.Write(payload)
		current.WriteByte('\n')
	}
	if current.Len() > 0 {
		batches = append(batches, append([]byte(nil), current.Bytes()...))
	}
	return batches, oversized, nil
}

// bulkResponse is the subset of the bulk API response needed for counting.
type bulkResponse struct {
	Errors bool                  `json:"errors"`
	Items  []map[string]bulkItem `json:"items"`
}

type bulkItem struct {
	Status int             `json:"status"`
	Error  json.RawMessage `json:"error"`
}

func (h *Handler) sendBulk(ctx context.Context, body []byte) (succeeded, failed int, err error) {
	req := opensearchapi.BulkRequest{Body: bytes.NewReader(body)}
	res, err := req.Do(ctx, h.transport)
	if err != nil {
		return 0, 0, fmt.Errorf("bulk request failed: %w", err)
	}

	var parsed bulkResponse
	if err := decodeResponse(res, &parsed); err != nil {
		return 0, 0, err
	}

	for _, item := range parsed.Items {
		for _, result := range item {
			if result.Status >= 200 && result.Status < 300 {
				succeeded++
			} else {
				failed++
			}
		}
	}
	return succeeded, failed, nil
}

// CreateIndex deletes any existing index of the same name and creates a new
// one with the given shard and replica counts.
func (h *Handler) CreateIndex(ctx context.Context, name string, shards, replicas int) error {
	// Delete first; a missing index is fine, any other failure is not.
	delRes, err := (opensearchapi.IndicesDeleteRequest{Index: []string{name}}).Do(ctx, h.transport)
	if err != nil {
		return fmt.Errorf("failed to delete index %s: %w", name, err)
	}
	_ = delRes.Body.Close()
	if delRes.IsError() && delRes.StatusCode != 404 {
		return fmt.Errorf("failed to delete index %s: %s", name, delRes.Status())
	}

	settings := map[string]any{
		"settings": map[string]any{
			"index": map[string]any{
				"number_of_shards":   shards,
				"number_of_replicas": replicas,
			},
		},
	}
	body, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal index settings: %w", err)
	}

	res, err := (opensearchapi.IndicesCreateRequest{Index: name, Body: bytes.NewReader(body)}).Do(ctx, h.transport)
	if err != nil {
		return fmt.Errorf("failed to create index %s: %w", name, err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return fmt.Errorf("failed to create index %s: %s", name, res.Status())
	}
	return nil
}

// Search runs a query against the index. The keepAlive duration, when
// nonzero, opens a scroll context; follow up with Scroll.
func (h *Handler) Search(ctx context.Context, index string, query map[string]any, keepAlive time.Duration) (map[string]any, error) {
	if index == "" {
		index = h.index
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	req := opensearchapi.SearchRequest{
		Index:  []string{index},
		Body:   bytes.NewReader(body),
		Scroll: keepAlive,
	}
	res, err := req.Do(ctx, h.transport)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}

	var out map[string]any
	if err := decodeResponse(res, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Scroll fetches the next batch of a scrolling search.
func (h *Handler) Scroll(ctx context.Context, scrollID string, keepAlive time.Duration) (map[string]any, error) {
	req := opensearchapi.ScrollRequest{ScrollID: scrollID, Scroll: keepAlive}
	res, err := req.Do(ctx, h.transport)
	if err != nil {
		return nil, fmt.Errorf("scroll request failed: %w", err)
	}

	var out map[string]any
	if err := decodeResponse(res, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetDocument returns the source of one document by ID, or ErrNotFound.
func (h *Handler) GetDocument(ctx context.Context, id string) (map[string]any, error) {
	req := opensearchapi.GetRequest{Index: h.index, DocumentID: id}
	res, err := req.Do(ctx, h.transport)
	if err != nil {
		return nil, fmt.Errorf("get request failed: %w", err)
	}
	if res.StatusCode == 404 {
		_ = res.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	var out struct {
		Source map[string]any `json:"_source"`
	}
	if err := decodeResponse(res, &out); err != nil {
		return nil, err
	}
	return out.Source, nil
}

// UpdateDocument sets one field of a document and reports whether the
// document was actually updated.
func (h *Handler) UpdateDocument(ctx context.Context, id, field string, value any) (bool, error) {
	body, err := json.Marshal(map[string]any{"doc": map[string]any{field: value}})
	if err != nil {
		return false, fmt.Errorf("failed to marshal update: %w", err)
	}

	req := opensearchapi.UpdateRequest{Index: h.index, DocumentID: id, Body: bytes.NewReader(body)}
	res, err := req.Do(ctx, h.transport)
	if err != nil {
		return false, fmt.Errorf("update request failed: %w", err)
	}

	var out struct {
		Result string `json:"result"`
	}
	if err := decodeResponse(res, &out); err != nil {
		return false, err
	}
	return out.Result == "updated", nil
}

// DocumentFields fetches selected fields for a set of documents by ID,
// keyed by document ID.
func (h *Handler) DocumentFields(ctx context.Context, ids, fields []string, size int) (map[string]map[string]any, error) {
	if size <= 0 {
		size = 10000
	}
	query := map[string]any{
		"_source": fields,
		"query":   map[string]any{"ids": map[string]any{"values": ids}},
		"size":    size,
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	req := opensearchapi.SearchRequest{Index: []string{h.index}, Body: bytes.NewReader(body)}
	res, err := req.Do(ctx, h.transport)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}

	var out struct {
		Hits struct {
			Hits []struct {
				ID     string         `json:"_id"`
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := decodeResponse(res, &out); err != nil {
		return nil, err
	}

	results := make(map[string]map[string]any, len(out.Hits.Hits))
	for _, hit := range out.Hits.Hits {
		results[hit.ID] = hit.Source
	}
	return results, nil
}

// decodeResponse closes the response body and decodes it into out, turning
// error statuses into errors.
func decodeResponse(res *opensearchapi.Response, out any) error {
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return fmt.Errorf("opensearch request failed: %s", res.Status())
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
