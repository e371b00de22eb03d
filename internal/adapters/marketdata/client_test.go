package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spotChecklist/internal/domain"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// mockTicker implements ports.TickerSource with canned values.
type mockTicker struct {
	price  float64
	volume float64
	err    error
}

func (m *mockTicker) SpotTicker(ctx context.Context) (float64, float64, error) {
	return m.price, m.volume, m.err
}

func jsonServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestClient(t *testing.T, cfg Config) *Client {
	t.Helper()
	cfg.Logger = &mockLogger{}
	cfg.Timeout = 2 * time.Second
	if cfg.MaxTries == 0 {
		cfg.MaxTries = 1
	}
	client, err := New(cfg)
	require.NoError(t, err)
	return client
}

func TestNew_RequiresLogger(t *testing.T) {
	client, err := New(Config{})
	assert.Error(t, err)
	assert.Nil(t, client)
}

func TestFetch_MergesAllSources(t *testing.T) {
	rsi := jsonServer(t, `{"rsi":{"h1":38.5,"h4":41.2,"d1":55.0}}`)
	macd := jsonServer(t, `{"macd":{"h1":{"hist":-3.1},"h4":{"hist":12.4,"flattening":true},"d1":{"hist":85.0}}}`)
	market := jsonServer(t, `{"funding":-0.004,"oiTrend":"falling","nearSupport":true}`)
	volume := jsonServer(t, `{"spot24h":1.28e9,"futures24h":1.31e9}`)
	price := jsonServer(t, `{"price":64250.5}`)

	client := newTestClient(t, Config{
		RSIURL:    rsi.URL,
		MACDURL:   macd.URL,
		MarketURL: market.URL,
		VolumeURL: volume.URL,
		PriceURL:  price.URL,
	})

	snap := client.Fetch(context.Background(), domain.IndicatorSnapshot{})

	assert.Equal(t, 38.5, snap.RSI1h)
	assert.Equal(t, 41.2, snap.RSI4h)
	assert.Equal(t, 55.0, snap.RSI1d)
	assert.Equal(t, -3.1, snap.MACDHist1h)
	assert.Equal(t, 12.4, snap.MACDHist4h)
	assert.True(t, snap.MACD4hFlattening)
	assert.Equal(t, 85.0, snap.MACDHist1d)
	assert.Equal(t, -0.004, snap.FundingRate)
	assert.Equal(t, domain.OIFalling, snap.OITrend)
	assert.True(t, snap.NearSupport)
	assert.Equal(t, 1.28e9, snap.SpotVolume24h)
	assert.Equal(t, 1.31e9, snap.FuturesVolume24h)
	assert.Equal(t, 64250.5, snap.Price)
}

func TestFetch_FailedSourceKeepsPreviousValues(t *testing.T) {
	rsi := jsonServer(t, `{"rsi":{"h1":40.0,"h4":42.0,"d1":50.0}}`)
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(down.Close)

	client := newTestClient(t, Config{RSIURL: rsi.URL, MACDURL: down.URL})

	prev := domain.IndicatorSnapshot{MACDHist4h: 7.7, MACD4hFlattening: true, Price: 61000}
	snap := client.Fetch(context.Background(), prev)

	assert.Equal(t, 40.0, snap.RSI1h)
	assert.Equal(t, 7.7, snap.MACDHist4h, "failed source keeps the previous value")
	assert.True(t, snap.MACD4hFlattening)
	assert.Equal(t, 61000.0, snap.Price)
}

func TestFetch_MissingFieldsKeepPreviousValues(t *testing.T) {
	// h4 omitted entirely, d1 present: only d1 may change.
	rsi := jsonServer(t, `{"rsi":{"d1":58.0}}`)
	client := newTestClient(t, Config{RSIURL: rsi.URL})

	prev := domain.IndicatorSnapshot{RSI1h: 33, RSI4h: 44, RSI1d: 50}
	snap := client.Fetch(context.Background(), prev)

	assert.Equal(t, 33.0, snap.RSI1h)
	assert.Equal(t, 44.0, snap.RSI4h)
	assert.Equal(t, 58.0, snap.RSI1d)
}

func TestFetch_UnknownOITrendIgnored(t *testing.T) {
	market := jsonServer(t, `{"funding":-0.001,"oiTrend":"sideways"}`)
	client := newTestClient(t, Config{MarketURL: market.URL})

	prev := domain.IndicatorSnapshot{OITrend: domain.OIFlat, Price: 1}
	snap := client.Fetch(context.Background(), prev)

	assert.Equal(t, -0.001, snap.FundingRate)
	assert.Equal(t, domain.OIFlat, snap.OITrend, "unrecognized trend keeps the previous one")
}

func TestFetch_MalformedPayloadKeepsPrevious(t *testing.T) {
	var calls atomic.Int32
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"rsi":`))
	}))
	t.Cleanup(bad.Close)

	client := newTestClient(t, Config{RSIURL: bad.URL, MaxTries: 3})

	prev := domain.IndicatorSnapshot{RSI1h: 36, Price: 1}
	snap := client.Fetch(context.Background(), prev)

	assert.Equal(t, 36.0, snap.RSI1h)
	assert.Equal(t, int32(1), calls.Load(), "malformed payloads are not retried")
}

func TestFetch_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	flaky := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"price":50000}`))
	}))
	t.Cleanup(flaky.Close)

	client := newTestClient(t, Config{PriceURL: flaky.URL, MaxTries: 3})

	snap := client.Fetch(context.Background(), domain.IndicatorSnapshot{RSI1h: 1})
	assert.Equal(t, 50000.0, snap.Price)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetch_SendsBearerToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"price":100}`))
	}))
	t.Cleanup(server.Close)

	client := newTestClient(t, Config{PriceURL: server.URL, APIToken: "secret-token"})
	client.Fetch(context.Background(), domain.IndicatorSnapshot{})

	assert.Equal(t, "Bearer secret-token", gotAuth)
}

func TestFetch_TickerFallback(t *testing.T) {
	client := newTestClient(t, Config{Ticker: &mockTicker{price: 64000, volume: 2.5e9}})

	snap := client.Fetch(context.Background(), domain.IndicatorSnapshot{RSI1h: 1})

	assert.Equal(t, 64000.0, snap.Price)
	assert.Equal(t, 2.5e9, snap.SpotVolume24h, "ticker volume fills in when no volume source is configured")
}

func TestFetch_PriceSourceBeatsTicker(t *testing.T) {
	price := jsonServer(t, `{"price":70000}`)
	client := newTestClient(t, Config{PriceURL: price.URL, Ticker: &mockTicker{price: 64000, volume: 1}})

	snap := client.Fetch(context.Background(), domain.IndicatorSnapshot{RSI1h: 1})
	assert.Equal(t, 70000.0, snap.Price)
}

func TestFetch_DemoSnapshotWhenEmptyHanded(t *testing.T) {
	client := newTestClient(t, Config{})

	snap := client.Fetch(context.Background(), domain.IndicatorSnapshot{SupportRequired: true})

	demo := domain.DemoSnapshot()
	assert.Equal(t, demo.Price, snap.Price)
	assert.Equal(t, demo.RSI1h, snap.RSI1h)
	assert.True(t, snap.SupportRequired, "toggle survives the demo substitution")
}

func TestFetch_NoDemoWhenPreviousDataExists(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(down.Close)

	client := newTestClient(t, Config{RSIURL: down.URL})

	prev := domain.IndicatorSnapshot{RSI1h: 41, Price: 59000}
	snap := client.Fetch(context.Background(), prev)

	assert.Equal(t, prev, snap, "a populated previous snapshot is kept as-is")
}
