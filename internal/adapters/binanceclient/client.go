package binanceclient

import (
	"context"
	"fmt"
	"strconv"

	"github.com/adshao/go-binance/v2"

	"spotChecklist/internal/ports"
)

// Client implements the ports.TickerSource interface using the go-binance
// library. It reads public spot ticker data only: no API keys, no order
// endpoints. Used as a price/volume fallback when the dedicated endpoints
// are not configured.
type Client struct {
	api    *binance.Client
	symbol string
	logger ports.Logger
}

// Config holds configuration specific to the Binance ticker adapter.
type Config struct {
	Symbol string // Trading symbol, e.g. "BTCUSDT"
	Logger ports.Logger
}

// New creates a new Binance ticker adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance ticker client")
	}
	if cfg.Symbol == "" {
		return nil, fmt.Errorf("symbol is required for Binance ticker client: %w", ports.ErrConfigurationError)
	}
	// Public endpoints only, so no credentials.
	return &Client{api: binance.NewClient("", ""), symbol: cfg.Symbol, logger: cfg.Logger}, nil
}

// SpotTicker returns the last trade price and the 24h quote volume for the
// configured symbol.
func (c *Client) SpotTicker(ctx context.Context) (float64, float64, error) {
	stats, err := c.api.NewListPriceChangeStatsService().Symbol(c.symbol).Do(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to fetch 24h ticker for %s: %w", c.symbol, err)
	}
	if len(stats) == 0 {
		return 0, 0, fmt.Errorf("no ticker returned for %s: %w", c.symbol, ports.ErrSourceUnavailable)
	}

	price, err := strconv.ParseFloat(stats[0].LastPrice, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to parse last price %q for %s: %w", stats[0].LastPrice, c.symbol, err)
	}
	quoteVolume, err := strconv.ParseFloat(stats[0].QuoteVolume, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to parse quote volume %q for %s: %w", stats[0].QuoteVolume, c.symbol, err)
	}

	c.logger.Debug(ctx, "Fetched spot ticker", map[string]interface{}{
		"symbol": c.symbol,
		"price":  price,
		"volume": quoteVolume,
	})
	return price, quoteVolume, nil
}
