// Package marketdata assembles indicator snapshots from up to five
// independently configured JSON endpoints. Each source is fetched
// concurrently and is independently fault-tolerant: a failing, slow or
// silent source keeps the previous snapshot's values for its fields and
// never aborts the overall refresh.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"

	"spotChecklist/internal/domain"
	"spotChecklist/internal/ports"
)

const (
	defaultTimeout  = 5 * time.Second
	defaultMaxTries = 3
)

// Config holds the five optional endpoints plus shared fetch settings.
type Config struct {
	RSIURL    string // {"rsi":{"h1","h4","d1"}}
	MACDURL   string // {"macd":{"h1":{"hist"},"h4":{"hist","flattening"},"d1":{"hist"}}}
	MarketURL string // {"funding","oiTrend","nearSupport"}
	VolumeURL string // {"spot24h","futures24h"}
	PriceURL  string // {"price"}

	APIToken string        // Optional bearer token sent to every endpoint
	Timeout  time.Duration // Per-attempt budget; defaults to 5s
	MaxTries uint          // Per-source attempts; defaults to 3

	// Ticker is an optional exchange fallback for price (and spot volume)
	// used when PriceURL is not configured.
	Ticker ports.TickerSource

	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client

	Logger ports.Logger
}

// Client implements the ports.SnapshotSource interface over HTTP.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     ports.Logger
}

// New creates a new market data client.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for market data client")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxTries == 0 {
		cfg.MaxTries = defaultMaxTries
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{cfg: cfg, httpClient: httpClient, logger: cfg.Logger}, nil
}

// Payload shapes. Pointer fields distinguish a missing JSON field from a
// zero value; missing fields keep the previous snapshot's value.

type rsiPayload struct {
	RSI *struct {
		H1 *float64 `json:"h1"`
		H4 *float64 `json:"h4"`
		D1 *float64 `json:"d1"`
	} `json:"rsi"`
}

type macdPayload struct {
	MACD *struct {
		H1 *struct {
			Hist *float64 `json:"hist"`
		} `json:"h1"`
		H4 *struct {
			Hist       *float64 `json:"hist"`
			Flattening *bool    `json:"flattening"`
		} `json:"h4"`
		D1 *struct {
			Hist *float64 `json:"hist"`
		} `json:"d1"`
	} `json:"macd"`
}

type marketPayload struct {
	Funding     *float64 `json:"funding"`
	OITrend     *string  `json:"oiTrend"`
	NearSupport *bool    `json:"nearSupport"`
}

type volumePayload struct {
	Spot24h    *float64 `json:"spot24h"`
	Futures24h *float64 `json:"futures24h"`
}

type pricePayload struct {
	Price *float64 `json:"price"`
}

// Fetch assembles a new snapshot by querying every configured source
// concurrently. When nothing is configured or reachable and prev carries no
// data yet, the built-in demo snapshot is substituted so the checklist
// surface stays populated.
func (c *Client) Fetch(ctx context.Context, prev domain.IndicatorSnapshot) domain.IndicatorSnapshot {
	next := prev

	var (
		mu   sync.Mutex
		hits int
	)
	// merge applies one source's result under the lock.
	merge := func(apply func()) {
		mu.Lock()
		defer mu.Unlock()
		hits++
		apply()
	}

	g, gctx := errgroup.WithContext(ctx)

	if c.cfg.RSIURL != "" {
		g.Go(func() error {
			var p rsiPayload
			if err := c.getJSON(gctx, c.cfg.RSIURL, &p); err != nil {
				c.logger.Warn(gctx, "RSI source failed, keeping previous values", map[string]interface{}{"error": err.Error()})
				return nil
			}
			merge(func() {
				if p.RSI == nil {
					return
				}
				if p.RSI.H1 != nil {
					next.RSI1h = *p.RSI.H1
				}
				if p.RSI.H4 != nil {
					next.RSI4h = *p.RSI.H4
				}
				if p.RSI.D1 != nil {
					next.RSI1d = *p.RSI.D1
				}
			})
			return nil
		})
	}

	if c.cfg.MACDURL != "" {
		g.Go(func() error {
			var p macdPayload
			if err := c.getJSON(gctx, c.cfg.MACDURL, &p); err != nil {
				c.logger.Warn(gctx, "MACD source failed, keeping previous values", map[string]interface{}{"error": err.Error()})
				return nil
			}
			merge(func() {
				if p.MACD == nil {
					return
				}
				if p.MACD.H1 != nil && p.MACD.H1.Hist != nil {
					next.MACDHist1h = *p.MACD.H1.Hist
				}
				if p.MACD.H4 != nil {
					if p.MACD.H4.Hist != nil {
						next.MACDHist4h = *p.MACD.H4.Hist
					}
					if p.MACD.H4.Flattening != nil {
						next.MACD4hFlattening = *p.MACD.H4.Flattening
					}
				}
				if p.MACD.D1 != nil && p.MACD.D1.Hist != nil {
					next.MACDHist1d = *p.MACD.D1.Hist
				}
			})
			return nil
		})
	}

	if c.cfg.MarketURL != "" {
		g.Go(func() error {
			var p marketPayload
			if err := c.getJSON(gctx, c.cfg.MarketURL, &p); err != nil {
				c.logger.Warn(gctx, "Market source failed, keeping previous values", map[string]interface{}{"error": err.Error()})
				return nil
			}
			merge(func() {
				if p.Funding != nil {
					next.FundingRate = *p.Funding
				}
				if p.OITrend != nil {
					switch trend := domain.OITrend(*p.OITrend); trend {
					case domain.OIRising, domain.OIFlat, domain.OIFalling:
						next.OITrend = trend
					}
				}
				if p.NearSupport != nil {
					next.NearSupport = *p.NearSupport
				}
			})
			return nil
		})
	}

	if c.cfg.VolumeURL != "" {
		g.Go(func() error {
			var p volumePayload
			if err := c.getJSON(gctx, c.cfg.VolumeURL, &p); err != nil {
				c.logger.Warn(gctx, "Volume source failed, keeping previous values", map[string]interface{}{"error": err.Error()})
				return nil
			}
			merge(func() {
				if p.Spot24h != nil {
					next.SpotVolume24h = *p.Spot24h
				}
				if p.Futures24h != nil {
					next.FuturesVolume24h = *p.Futures24h
				}
			})
			return nil
		})
	}

	switch {
	case c.cfg.PriceURL != "":
		g.Go(func() error {
			var p pricePayload
			if err := c.getJSON(gctx, c.cfg.PriceURL, &p); err != nil {
				c.logger.Warn(gctx, "Price source failed, keeping previous value", map[string]interface{}{"error": err.Error()})
				return nil
			}
			merge(func() {
				if p.Price != nil {
					next.Price = *p.Price
				}
			})
			return nil
		})
	case c.cfg.Ticker != nil:
		g.Go(func() error {
			price, quoteVolume, err := c.cfg.Ticker.SpotTicker(gctx)
			if err != nil {
				c.logger.Warn(gctx, "Ticker fallback failed, keeping previous price", map[string]interface{}{"error": err.Error()})
				return nil
			}
			merge(func() {
				next.Price = price
				if c.cfg.VolumeURL == "" && quoteVolume > 0 {
					next.SpotVolume24h = quoteVolume
				}
			})
			return nil
		})
	}

	_ = g.Wait() // Source goroutines swallow their own errors

	if hits == 0 && prev.IsZero() {
		c.logger.Warn(ctx, "No market data source yielded data, using demo snapshot")
		demo := domain.DemoSnapshot()
		demo.SupportRequired = prev.SupportRequired
		return demo
	}
	return next
}

// getJSON fetches url and decodes the body into out, retrying transient
// failures with exponential backoff. Malformed payloads are not retried.
func (c *Client) getJSON(ctx context.Context, url string, out interface{}) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		if c.cfg.APIToken != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return struct{}{}, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return struct{}{}, fmt.Errorf("source %s returned status %d: %w", url, resp.StatusCode, ports.ErrSourceUnavailable)
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return struct{}{}, backoff.Permanent(fmt.Errorf("decoding response from %s: %w", url, ports.ErrMalformedPayload))
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(c.cfg.MaxTries))
	return err
}
