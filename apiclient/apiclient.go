// Package apiclient fetches JSON documents from authenticated HTTP APIs.
package apiclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
)

// ErrAPI is returned when the remote API responds with a non-success status.
var ErrAPI = errors.New("apiclient: request failed")

// Client calls JSON APIs with bearer token authentication.
type Client struct {
	httpClient *http.Client
	log        *slog.Logger
}

// NewClient creates a Client. A nil httpClient gets a 30 second timeout
// default, and a nil logger falls back to slog.Default().
func NewClient(httpClient *http.Client, log *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{httpClient: httpClient, log: log}
}

// InvokeJSON performs a GET against url and decodes the JSON response into a
// generic value. An empty authToken skips the Authorization header.
func (c *Client) InvokeJSON(ctx context.Context, url, authToken string) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		c.log.Error("api request failed", "url", url, "status", res.StatusCode)
		return nil, fmt.Errorf("%w: %s returned status %d: %s", ErrAPI, url, res.StatusCode, body)
	}

	var out any
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response from %s: %w", url, err)
	}
	c.log.Debug("api request completed", "url", url, "status", res.StatusCode)
	return out, nil
}
