// Package persist is the low-level HTTP client for the remote persistence
// service. It speaks the insert/query/health contract and maps transport
// failures into typed errors the classification layer understands.
// Transport-level connection retries live here; classification-aware retry
// belongs to the caller.
package persist

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	defaultHTTPTimeout      = 30 * time.Second
	defaultMaxRetries       = 3
	defaultRetryBackoffBase = 150 * time.Millisecond

	idempotencyHeader = "Idempotency-Key"
)

// Client issues requests against the persistence service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	logger     *log.Logger
}

// Option configures a new Client.
type Option func(*Client)

// WithHTTPClient injects a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout overrides the per-request timeout on the default http.Client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithMaxRetries adjusts the transport-level retry budget.
func WithMaxRetries(max int) Option {
	return func(c *Client) {
		if max >= 0 {
			c.maxRetries = max
		}
	}
}

// WithLogger injects a custom logger (defaults to log.Default()).
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New constructs a persistence client. The base URL is normalized by
// stripping a trailing slash.
func New(baseURL string, opts ...Option) *Client {
	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		maxRetries: defaultMaxRetries,
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if client.logger == nil {
		client.logger = log.Default()
	}
	return client
}

// BaseURL returns the normalized service URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Close releases pooled transport connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

type insertRequest struct {
	Database   string           `json:"database" msgpack:"database"`
	Collection string           `json:"collection" msgpack:"collection"`
	Data       []map[string]any `json:"data" msgpack:"data"`
	Validate   bool             `json:"validate" msgpack:"validate"`
}

// InsertResult is the remote acknowledgement of a batch insert.
type InsertResult struct {
	InsertedCount int  `json:"inserted_count"`
	Success       bool `json:"success"`
}

// QueryRequest describes a filtered read against one collection.
type QueryRequest struct {
	Database   string         `json:"database"`
	Collection string         `json:"collection"`
	Filter     map[string]any `json:"filter"`
	Sort       map[string]int `json:"sort,omitempty"`
	Limit      int            `json:"limit,omitempty"`
	Fields     []string       `json:"fields,omitempty"`
}

// QueryResult carries the matched documents. Data stays nil when the remote
// response omits the key; callers treat that as empty.
type QueryResult struct {
	Data  []map[string]any `json:"data"`
	Count int              `json:"count"`
}

// Insert writes a batch of records to database/collection and returns the
// remote-reported inserted count. The request carries an idempotency key
// derived from the batch content so a retry after an ambiguous timeout
// cannot double-write.
func (c *Client) Insert(ctx context.Context, database, collection string, records []map[string]any, validate bool) (*InsertResult, error) {
	req := insertRequest{
		Database:   database,
		Collection: collection,
		Data:       records,
		Validate:   validate,
	}
	key, err := batchKey(req)
	if err != nil {
		return nil, fmt.Errorf("persist: derive idempotency key: %w", err)
	}
	var result InsertResult
	if err := c.do(ctx, "insert", http.MethodPost, "/insert", req, &result, key); err != nil {
		return nil, err
	}
	return &result, nil
}

// InsertOne writes a single record; sugar for a one-element Insert batch.
func (c *Client) InsertOne(ctx context.Context, database, collection string, record map[string]any, validate bool) (*InsertResult, error) {
	return c.Insert(ctx, database, collection, []map[string]any{record}, validate)
}

// Query runs a filtered read and returns the matched documents.
func (c *Client) Query(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	var result QueryResult
	if err := c.do(ctx, "query", http.MethodPost, "/query", req, &result, ""); err != nil {
		return nil, err
	}
	return &result, nil
}

// Health probes the service health endpoint and returns the raw payload.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	var result map[string]any
	if err := c.do(ctx, "health", http.MethodGet, "/health", nil, &result, ""); err != nil {
		return nil, err
	}
	return result, nil
}

// batchKey hashes the canonical msgpack encoding of an insert request. The
// same batch always yields the same key, across transport retries and across
// repeated calls with identical content.
func batchKey(req insertRequest) (string, error) {
	encoded, err := msgpack.Marshal(req)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:]), nil
}

// do issues one logical request. Connection-level failures are retried with
// doubling backoff; timeouts and HTTP errors are returned to the caller
// unretried, typed for classification.
func (c *Client) do(ctx context.Context, op, method, path string, payload, result any, idemKey string) error {
	var body []byte
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("persist: encode %s request: %w", op, err)
		}
		body = encoded
	}

	backoff := defaultRetryBackoffBase
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return fmt.Errorf("persist: build %s request: %w", op, err)
		}
		if body != nil {
			httpReq.Header.Set("Content-Type", "application/json")
		}
		if idemKey != "" {
			httpReq.Header.Set(idempotencyHeader, idemKey)
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var urlErr *url.Error
			if errors.As(err, &urlErr) && urlErr.Timeout() {
				return &TimeoutError{Op: op, Timeout: c.httpClient.Timeout, Err: urlErr.Err}
			}
			lastErr = &ConnError{Op: op, Err: err}
			if attempt < c.maxRetries {
				c.logger.Printf("persist: %s attempt %d failed, retrying: %v", op, attempt+1, err)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(backoff):
					backoff *= 2
				}
				continue
			}
			return lastErr
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("persist: read %s response: %w", op, readErr)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &APIError{Op: op, Status: resp.StatusCode, Body: string(respBody)}
		}
		if result != nil {
			if err := json.Unmarshal(respBody, result); err != nil {
				return fmt.Errorf("persist: decode %s response: %w", op, err)
			}
		}
		return nil
	}
	return lastErr
}
