// Package gecko is the REST client for the GeckoTerminal API, which serves
// recent trades for the monitored pool.
package gecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/trendbot/internal/domain"
)

// Config holds the feed client parameters.
type Config struct {
	// BaseURL is the API root, e.g. "https://api.geckoterminal.com/api/v2".
	BaseURL string
	// Network is the GeckoTerminal network slug, e.g. "base".
	Network string
	// PoolAddress is the monitored pool contract address.
	PoolAddress string
	// TokenAddress is the from-token leg used for latest-price lookups.
	TokenAddress string
	// MinVolumeUSD filters out dust trades server-side.
	MinVolumeUSD decimal.Decimal
}

// Client is the GeckoTerminal REST client.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates a feed client with a default 30-second HTTP timeout.
func NewClient(cfg Config) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// RecentTrades returns the pool's recent trades, newest first, as reported
// by the API. Trades with unparseable prices are skipped.
func (c *Client) RecentTrades(ctx context.Context) ([]domain.PoolTrade, error) {
	params := url.Values{}
	params.Set("trade_volume_in_usd_greater_than", c.cfg.MinVolumeUSD.String())

	path := fmt.Sprintf("/networks/%s/pools/%s/trades?%s",
		url.PathEscape(c.cfg.Network), url.PathEscape(c.cfg.PoolAddress), params.Encode())

	body, err := c.doGet(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("gecko: get trades: %w", err)
	}

	var resp APITradesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("gecko: decode trades: %w", err)
	}

	trades := make([]domain.PoolTrade, 0, len(resp.Data))
	for i := range resp.Data {
		trade, convErr := resp.Data[i].ToDomainTrade()
		if convErr != nil {
			continue
		}
		trades = append(trades, trade)
	}
	return trades, nil
}

// LatestPrice returns the price of the newest trade on the monitored token
// leg.
func (c *Client) LatestPrice(ctx context.Context) (decimal.Decimal, error) {
	trades, err := c.RecentTrades(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	for _, t := range trades {
		if strings.EqualFold(t.FromToken, c.cfg.TokenAddress) {
			return t.PriceUSD, nil
		}
	}
	return decimal.Zero, fmt.Errorf("gecko: no recent trade for token %s", c.cfg.TokenAddress)
}

// doGet performs a GET against the API and returns the response body.
func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
