// Package ingest exposes the resilient ingestion adapter applications use
// to persist market data through the remote persistence service. Writes are
// routed by target kind, protected by a storage circuit breaker, and retried
// according to the error classification policy; read paths degrade to empty
// results instead of failing the ingestion loop.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"tickvault/pkg/breaker"
	"tickvault/pkg/errclass"
	"tickvault/pkg/persist"
)

// Payloader is the capability every persistable record implements.
type Payloader interface {
	// Payload renders the record as a wire payload for the remote service.
	Payload() map[string]any
}

// ErrUnsupportedRecord marks inputs that do not implement Payloader. Write
// skips such records; strict callers can pre-check with AsPayload.
var ErrUnsupportedRecord = errors.New("ingest: record does not implement Payloader")

// AsPayload converts a record, returning ErrUnsupportedRecord when the value
// lacks the Payloader capability.
func AsPayload(record any) (map[string]any, error) {
	p, ok := record.(Payloader)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedRecord, record)
	}
	return p.Payload(), nil
}

// Gap is a missing stretch in an otherwise regular candle series.
type Gap struct {
	Start    time.Time
	End      time.Time
	Symbol   string
	Interval string
}

// Checkpointer receives best-effort notifications about successful writes so
// operators can inspect ingestion progress out of band.
type Checkpointer interface {
	RecordWrite(ctx context.Context, target, symbol string, timestampMs int64) error
}

// Config carries the environment-level knobs for the adapter. All fields
// are opaque to this package beyond defaulting.
type Config struct {
	BaseURL    string
	Database   string
	Timeout    time.Duration
	MaxRetries int
}

const (
	defaultDatabase  = "marketdata"
	defaultBatchSize = 500
)

// Adapter is the top-level ingestion facade. It owns the connection
// lifecycle of its persistence client; individual operations auto-connect.
// Write/Query/HealthCheck may run concurrently, but Disconnect must not race
// in-flight operations.
type Adapter struct {
	cfg Config

	mu        sync.Mutex
	client    *persist.Client
	connected bool

	brk        *breaker.Breaker
	retryer    *errclass.Retryer
	stats      *errclass.Collector
	checkpoint Checkpointer
}

// AdapterOption customises a new Adapter.
type AdapterOption func(*Adapter)

// WithCheckpointer wires a write checkpoint sink.
func WithCheckpointer(cp Checkpointer) AdapterOption {
	return func(a *Adapter) { a.checkpoint = cp }
}

// WithBreaker replaces the default storage breaker.
func WithBreaker(b *breaker.Breaker) AdapterOption {
	return func(a *Adapter) {
		if b != nil {
			a.brk = b
		}
	}
}

// New constructs an ingestion adapter. No connection is made until Connect
// or the first operation.
func New(cfg Config, opts ...AdapterOption) *Adapter {
	if cfg.Database == "" {
		cfg.Database = defaultDatabase
	}
	a := &Adapter{
		cfg:   cfg,
		stats: errclass.NewCollector(),
	}
	a.brk = breaker.NewStorageBreaker("api", breaker.WithExpectedError(isStorageFailure))
	for _, opt := range opts {
		opt(a)
	}
	a.retryer = errclass.NewRetryer(errclass.WithStats(a.stats))
	return a
}

// isStorageFailure reports whether an error should count toward opening the
// storage circuit. Client-side rejections (4xx other than 429) are the
// caller's problem, not a sign of a dying backend.
func isStorageFailure(err error) bool {
	var timeoutErr *persist.TimeoutError
	var connErr *persist.ConnError
	if errors.As(err, &timeoutErr) || errors.As(err, &connErr) {
		return true
	}
	var apiErr *persist.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500 || apiErr.Status == 429
	}
	return false
}

// Connect establishes the persistence client and verifies service health.
// Idempotent; concurrent callers are serialized internally.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.connected {
		return nil
	}
	client := persist.New(a.cfg.BaseURL,
		persist.WithTimeout(a.cfg.Timeout),
		persist.WithMaxRetries(a.cfg.MaxRetries),
	)
	health, err := client.Health(ctx)
	if err != nil {
		return fmt.Errorf("ingest: connect to persistence service: %w", err)
	}
	if status, _ := health["status"].(string); status != "healthy" {
		return fmt.Errorf("ingest: persistence service reported status %q", health["status"])
	}
	a.client = client
	a.connected = true
	logx.WithContext(ctx).Infof("ingest: connected to persistence service url=%s database=%s", client.BaseURL(), a.cfg.Database)
	return nil
}

// Disconnect closes and discards the client handle. Idempotent; close-time
// errors are logged and swallowed.
func (a *Adapter) Disconnect() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.connected {
		return
	}
	if err := a.client.Close(); err != nil {
		logx.Errorf("ingest: close persistence client: %v", err)
	}
	a.client = nil
	a.connected = false
}

// Connected reports whether the adapter currently holds a live client.
func (a *Adapter) Connected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected
}

// Stats returns the session error-classification snapshot.
func (a *Adapter) Stats() errclass.Snapshot { return a.stats.Snapshot() }

// BreakerStats returns the storage breaker snapshot.
func (a *Adapter) BreakerStats() breaker.Stats { return a.brk.Stats() }

func (a *Adapter) ensureConnected(ctx context.Context) (*persist.Client, error) {
	if err := a.Connect(ctx); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.client, nil
}

// Write persists records to the target collection and returns the
// remote-reported inserted count. Empty input returns 0 without connecting.
// Records lacking the Payloader capability are skipped with a warning, never
// fatal. Write failures are raised to the caller.
func (a *Adapter) Write(ctx context.Context, records []any, target string, batchSize int) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	client, err := a.ensureConnected(ctx)
	if err != nil {
		return 0, err
	}

	payloads := make([]map[string]any, 0, len(records))
	skipped := 0
	for _, record := range records {
		payload, err := AsPayload(record)
		if err != nil {
			skipped++
			logx.WithContext(ctx).Errorf("ingest: skip record target=%s err=%v", target, err)
			continue
		}
		payloads = append(payloads, payload)
	}
	kind := ParseTarget(target)
	if skipped > 0 {
		recordsSkipped.Add(float64(skipped))
		logx.WithContext(ctx).Infof("ingest: write target=%s skipped=%d convertible=%d", target, skipped, len(payloads))
	}
	if len(payloads) == 0 {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	total := 0
	for start := 0; start < len(payloads); start += batchSize {
		end := start + batchSize
		if end > len(payloads) {
			end = len(payloads)
		}
		inserted, err := a.insertForKind(ctx, client, kind, payloads[start:end])
		if err != nil {
			writeFailures.WithLabelValues(string(errclass.Classify(err))).Inc()
			return total, fmt.Errorf("ingest: write %s: %w", target, err)
		}
		total += inserted
	}
	writesTotal.WithLabelValues(kind.Kind.String()).Inc()
	recordsInserted.WithLabelValues(kind.Kind.String()).Add(float64(total))
	a.recordCheckpoint(ctx, kind, payloads)
	return total, nil
}

// insertForKind routes a batch to the kind-specific insert path.
func (a *Adapter) insertForKind(ctx context.Context, client *persist.Client, kind DataKind, batch []map[string]any) (int, error) {
	switch kind.Kind {
	case KindCandles:
		return a.insertBatch(ctx, client, kind.Name, batch, true)
	case KindTrades:
		return a.insertBatch(ctx, client, kind.Name, batch, true)
	case KindFunding:
		return a.insertBatch(ctx, client, kind.Name, batch, true)
	default:
		// Unknown schema: let the remote service accept it as-is.
		return a.insertBatch(ctx, client, kind.Name, batch, false)
	}
}

// insertBatch runs one insert through the retry loop and the storage
// breaker. The persistence client's idempotency key makes the retries safe
// under timeout ambiguity.
func (a *Adapter) insertBatch(ctx context.Context, client *persist.Client, collection string, batch []map[string]any, validate bool) (int, error) {
	var inserted int
	err := a.retryer.Do(ctx, func() error {
		return a.brk.Call(ctx, func(ctx context.Context) error {
			result, err := client.Insert(ctx, a.cfg.Database, collection, batch, validate)
			if err != nil {
				return err
			}
			inserted = result.InsertedCount
			return nil
		})
	})
	stats := a.brk.Stats()
	breakerState.WithLabelValues(stats.Name).Set(float64(stats.State))
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func (a *Adapter) recordCheckpoint(ctx context.Context, kind DataKind, payloads []map[string]any) {
	if a.checkpoint == nil {
		return
	}
	field := kind.TimestampField()
	var newest int64
	symbol := kind.Symbol
	for _, payload := range payloads {
		ts, ok := toInt64(payload[field])
		if !ok {
			continue
		}
		if ts > newest {
			newest = ts
			if symbol == "" {
				symbol, _ = payload["symbol"].(string)
			}
		}
	}
	if newest == 0 {
		return
	}
	if err := a.checkpoint.RecordWrite(ctx, kind.Name, symbol, newest); err != nil {
		logx.WithContext(ctx).Errorf("ingest: record checkpoint target=%s err=%v", kind.Name, err)
	}
}

// QueryLatest returns the most recent records for a target, optionally
// filtered by symbol. Read-path failures are logged and degrade to an empty
// slice; stale-empty beats crashing the ingestion loop.
func (a *Adapter) QueryLatest(ctx context.Context, target, symbol string, limit int) []map[string]any {
	client, err := a.ensureConnected(ctx)
	if err != nil {
		logx.WithContext(ctx).Errorf("ingest: query latest target=%s err=%v", target, err)
		return []map[string]any{}
	}
	if limit <= 0 {
		limit = 1
	}
	kind := ParseTarget(target)
	filter := map[string]any{}
	if symbol != "" {
		filter["symbol"] = symbol
	}
	result, err := client.Query(ctx, persist.QueryRequest{
		Database:   a.cfg.Database,
		Collection: kind.Name,
		Filter:     filter,
		Sort:       map[string]int{kind.TimestampField(): -1},
		Limit:      limit,
	})
	if err != nil {
		logx.WithContext(ctx).Errorf("ingest: query latest target=%s symbol=%s err=%v", target, symbol, err)
		return []map[string]any{}
	}
	if result.Data == nil {
		return []map[string]any{}
	}
	return result.Data
}

// FindGaps scans a candle target for missing bars between start and end.
// Non-candle targets yield an empty result by policy, and any failure during
// the scan degrades to empty as well.
func (a *Adapter) FindGaps(ctx context.Context, target string, start, end time.Time, interval, symbol string) []Gap {
	kind := ParseTarget(target)
	if kind.Kind != KindCandles {
		return []Gap{}
	}
	if interval == "" {
		interval = kind.Interval
	}
	client, err := a.ensureConnected(ctx)
	if err != nil {
		logx.WithContext(ctx).Errorf("ingest: find gaps target=%s err=%v", target, err)
		return []Gap{}
	}

	field := kind.TimestampField()
	filter := map[string]any{
		field: map[string]any{"$gte": start.UnixMilli(), "$lte": end.UnixMilli()},
	}
	if symbol != "" {
		filter["symbol"] = symbol
	}
	result, err := client.Query(ctx, persist.QueryRequest{
		Database:   a.cfg.Database,
		Collection: kind.Name,
		Filter:     filter,
		Sort:       map[string]int{field: 1},
		Fields:     []string{field},
	})
	if err != nil {
		logx.WithContext(ctx).Errorf("ingest: find gaps target=%s symbol=%s err=%v", target, symbol, err)
		return []Gap{}
	}

	timestamps := make([]int64, 0, len(result.Data))
	for _, row := range result.Data {
		if ts, ok := toInt64(row[field]); ok {
			timestamps = append(timestamps, ts)
		}
	}
	step := IntervalDuration(interval).Milliseconds()
	gaps := []Gap{}
	for i := 0; i+1 < len(timestamps); i++ {
		expected := timestamps[i] + step
		next := timestamps[i+1]
		if next > expected {
			gaps = append(gaps, Gap{
				Start:    time.UnixMilli(expected).UTC(),
				End:      time.UnixMilli(next).UTC(),
				Symbol:   symbol,
				Interval: interval,
			})
		}
	}
	if len(gaps) > 0 {
		gapsDetected.Add(float64(len(gaps)))
	}
	return gaps
}

// HealthCheck probes the remote service, auto-connecting first.
func (a *Adapter) HealthCheck(ctx context.Context) (map[string]any, error) {
	client, err := a.ensureConnected(ctx)
	if err != nil {
		return nil, err
	}
	return client.Health(ctx)
}

func toInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case float64:
		return int64(t), true
	case float32:
		return int64(t), true
	default:
		return 0, false
	}
}
