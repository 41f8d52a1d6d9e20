package persist

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// mockService is a minimal in-memory persistence service.
type mockService struct {
	mu          sync.Mutex
	inserts     []insertRequest
	idemKeys    []string
	queryResp   string
	healthResp  string
	insertCode  int
	failHealth  bool
	healthDelay time.Duration
}

func newMockService() *mockService {
	return &mockService{
		queryResp:  `{"data":[{"symbol":"BTCUSDT","timestamp":1700000000000}],"count":1}`,
		healthResp: `{"status":"healthy","uptime_seconds":12}`,
		insertCode: http.StatusOK,
	}
}

func (m *mockService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/insert", func(w http.ResponseWriter, r *http.Request) {
		var req insertRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		m.mu.Lock()
		m.inserts = append(m.inserts, req)
		m.idemKeys = append(m.idemKeys, r.Header.Get("Idempotency-Key"))
		code := m.insertCode
		m.mu.Unlock()
		if code != http.StatusOK {
			w.WriteHeader(code)
			_, _ = w.Write([]byte(`{"success":false,"error":"insert rejected"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(InsertResult{InsertedCount: len(req.Data), Success: true})
	})
	mux.HandleFunc("/query", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(m.queryResp))
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if m.healthDelay > 0 {
			time.Sleep(m.healthDelay)
		}
		if m.failHealth {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unhealthy"}`))
			return
		}
		_, _ = w.Write([]byte(m.healthResp))
	})
	return mux
}

func TestClientInsert(t *testing.T) {
	svc := newMockService()
	server := httptest.NewServer(svc.handler())
	defer server.Close()

	client := New(server.URL)
	records := []map[string]any{
		{"symbol": "BTCUSDT", "timestamp": int64(1700000000000), "close": 42000.5},
		{"symbol": "BTCUSDT", "timestamp": int64(1700000900000), "close": 42010.0},
	}
	result, err := client.Insert(context.Background(), "marketdata", "kline_15m", records, true)
	require.NoError(t, err)
	require.Equal(t, 2, result.InsertedCount)
	require.True(t, result.Success)

	require.Len(t, svc.inserts, 1)
	require.Equal(t, "marketdata", svc.inserts[0].Database)
	require.Equal(t, "kline_15m", svc.inserts[0].Collection)
	require.True(t, svc.inserts[0].Validate)
	require.NotEmpty(t, svc.idemKeys[0])
}

func TestClientInsertIdempotencyKeyStable(t *testing.T) {
	svc := newMockService()
	server := httptest.NewServer(svc.handler())
	defer server.Close()

	client := New(server.URL)
	records := []map[string]any{{"symbol": "ETHUSDT", "timestamp": int64(1700000000000)}}

	_, err := client.Insert(context.Background(), "marketdata", "kline_1h", records, true)
	require.NoError(t, err)
	_, err = client.Insert(context.Background(), "marketdata", "kline_1h", records, true)
	require.NoError(t, err)

	require.Len(t, svc.idemKeys, 2)
	require.Equal(t, svc.idemKeys[0], svc.idemKeys[1])

	// Different content must yield a different key.
	_, err = client.Insert(context.Background(), "marketdata", "kline_1h",
		[]map[string]any{{"symbol": "ETHUSDT", "timestamp": int64(1700003600000)}}, true)
	require.NoError(t, err)
	require.NotEqual(t, svc.idemKeys[0], svc.idemKeys[2])
}

func TestClientInsertOne(t *testing.T) {
	svc := newMockService()
	server := httptest.NewServer(svc.handler())
	defer server.Close()

	client := New(server.URL)
	result, err := client.InsertOne(context.Background(), "marketdata", "trades_BTCUSDT",
		map[string]any{"symbol": "BTCUSDT", "price": 42000.0}, false)
	require.NoError(t, err)
	require.Equal(t, 1, result.InsertedCount)
	require.Len(t, svc.inserts[0].Data, 1)
	require.False(t, svc.inserts[0].Validate)
}

func TestClientQuery(t *testing.T) {
	svc := newMockService()
	server := httptest.NewServer(svc.handler())
	defer server.Close()

	client := New(server.URL)
	result, err := client.Query(context.Background(), QueryRequest{
		Database:   "marketdata",
		Collection: "kline_15m",
		Filter:     map[string]any{"symbol": "BTCUSDT"},
		Sort:       map[string]int{"timestamp": -1},
		Limit:      1,
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.Count)
	require.Len(t, result.Data, 1)
	require.Equal(t, "BTCUSDT", result.Data[0]["symbol"])
}

func TestClientQueryMissingDataKey(t *testing.T) {
	svc := newMockService()
	svc.queryResp = `{"count":0}`
	server := httptest.NewServer(svc.handler())
	defer server.Close()

	client := New(server.URL)
	result, err := client.Query(context.Background(), QueryRequest{
		Database: "marketdata", Collection: "kline_15m", Filter: map[string]any{},
	})
	require.NoError(t, err)
	require.Nil(t, result.Data)
	require.Equal(t, 0, result.Count)
}

func TestClientHealth(t *testing.T) {
	svc := newMockService()
	server := httptest.NewServer(svc.handler())
	defer server.Close()

	client := New(server.URL + "/") // trailing slash must be stripped
	require.Equal(t, server.URL, client.BaseURL())

	health, err := client.Health(context.Background())
	require.NoError(t, err)
	require.Equal(t, "healthy", health["status"])
}

func TestClientAPIError(t *testing.T) {
	svc := newMockService()
	svc.insertCode = http.StatusConflict
	server := httptest.NewServer(svc.handler())
	defer server.Close()

	client := New(server.URL)
	_, err := client.Insert(context.Background(), "marketdata", "kline_15m",
		[]map[string]any{{"symbol": "BTCUSDT"}}, true)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusConflict, apiErr.Status)
	require.Contains(t, apiErr.Error(), "duplicate key")

	// A rejected status must not be retried at the transport level.
	require.Len(t, svc.inserts, 1)
}

func TestClientTimeoutError(t *testing.T) {
	svc := newMockService()
	svc.healthDelay = 300 * time.Millisecond
	server := httptest.NewServer(svc.handler())
	defer server.Close()

	client := New(server.URL, WithTimeout(50*time.Millisecond), WithMaxRetries(0))
	_, err := client.Health(context.Background())
	require.Error(t, err)

	var timeoutErr *TimeoutError
	require.True(t, errors.As(err, &timeoutErr))
	require.Contains(t, timeoutErr.Error(), "network timeout")
}

func TestClientConnError(t *testing.T) {
	server := httptest.NewServer(newMockService().handler())
	server.Close() // nothing is listening anymore

	client := New(server.URL, WithMaxRetries(1))
	_, err := client.Health(context.Background())
	require.Error(t, err)

	var connErr *ConnError
	require.True(t, errors.As(err, &connErr))
	require.Contains(t, connErr.Error(), "connection failed")
}

func TestClientContextCancellation(t *testing.T) {
	svc := newMockService()
	svc.healthDelay = time.Second
	server := httptest.NewServer(svc.handler())
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	client := New(server.URL)
	_, err := client.Health(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
