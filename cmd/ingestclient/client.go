package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Client calls the transcript insights HTTP API.
type Client struct {
	baseURL  string
	tenantID string
	http     *http.Client
}

// APIError is a non-2xx response from the service.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Detail)
}

// NewClient creates a client for the service at baseURL acting as tenantID.
func NewClient(baseURL, tenantID string, timeout time.Duration) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		tenantID: tenantID,
		http:     &http.Client{Timeout: timeout},
	}
}

// Ingest submits a transcript and returns the decoded acknowledgment.
func (c *Client) Ingest(ctx context.Context, conversationID, text string) (map[string]any, error) {
	body, err := json.Marshal(map[string]string{
		"conversation_id": conversationID,
		"text":            text,
	})
	if err != nil {
		return nil, errors.Wrap(err, "encode request")
	}
	return c.do(ctx, http.MethodPost, "/ingest", body)
}

// Result fetches a processed record.
func (c *Client) Result(ctx context.Context, conversationID string) (map[string]any, error) {
	return c.do(ctx, http.MethodGet, "/results/"+url.PathEscape(conversationID), nil)
}

// Rescore requests a re-evaluation of a processed record.
func (c *Client) Rescore(ctx context.Context, conversationID string) (map[string]any, error) {
	return c.do(ctx, http.MethodPost, "/rescore/"+url.PathEscape(conversationID), nil)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (map[string]any, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("X-Tenant-ID", c.tenantID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Detail: errorDetail(resp.Body)}
	}

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, errors.Wrapf(err, "decode %s response", path)
	}
	return decoded, nil
}

// errorDetail extracts the JSON detail field of an error body, falling back to
// the trimmed raw body for plain-text errors.
func errorDetail(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return ""
	}
	var decoded struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(raw, &decoded) == nil && decoded.Detail != "" {
		return decoded.Detail
	}
	return strings.TrimSpace(string(raw))
}
