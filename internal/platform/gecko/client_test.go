package gecko

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wethAddr = "0x4200000000000000000000000000000000000006"
const usdcAddr = "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913"

const tradesPayload = `{
  "data": [
    {
      "id": "3",
      "type": "trade",
      "attributes": {
        "block_timestamp": "2025-06-01T12:00:30Z",
        "from_token_address": "0x4200000000000000000000000000000000000006",
        "price_from_in_usd": "2643.21"
      }
    },
    {
      "id": "2",
      "type": "trade",
      "attributes": {
        "block_timestamp": "2025-06-01T12:00:10Z",
        "from_token_address": "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913",
        "price_from_in_usd": "0.9999"
      }
    },
    {
      "id": "1",
      "type": "trade",
      "attributes": {
        "block_timestamp": "2025-06-01T11:59:55Z",
        "from_token_address": "0x4200000000000000000000000000000000000006",
        "price_from_in_usd": "2641.05"
      }
    }
  ]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL:      srv.URL,
		Network:      "base",
		PoolAddress:  "0xpool",
		TokenAddress: wethAddr,
		MinVolumeUSD: decimal.Zero,
	})
}

func TestRecentTrades(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/networks/base/pools/0xpool/trades", r.URL.Path)
		assert.Equal(t, "0", r.URL.Query().Get("trade_volume_in_usd_greater_than"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(tradesPayload))
	})

	trades, err := client.RecentTrades(context.Background())

	require.NoError(t, err)
	require.Len(t, trades, 3)
	assert.True(t, trades[0].PriceUSD.Equal(decimal.RequireFromString("2643.21")))
	assert.Equal(t, wethAddr, trades[0].FromToken)
	assert.Equal(t, usdcAddr, trades[1].FromToken)
	assert.False(t, trades[0].Timestamp.IsZero())
}

func TestRecentTrades_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})

	_, err := client.RecentTrades(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestRecentTrades_SkipsUnparseablePrices(t *testing.T) {
	payload := `{"data":[{"id":"1","type":"trade","attributes":{"block_timestamp":"2025-06-01T12:00:00Z","from_token_address":"0x4200000000000000000000000000000000000006","price_from_in_usd":"not-a-number"}}]}`
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload))
	})

	trades, err := client.RecentTrades(context.Background())

	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestLatestPrice_FiltersToMonitoredToken(t *testing.T) {
	// Newest trade is on the monitored leg here; swap the order so the
	// newest overall trade belongs to the other leg.
	payload := `{
	  "data": [
	    {"id":"2","type":"trade","attributes":{"block_timestamp":"2025-06-01T12:00:10Z","from_token_address":"0x833589fcd6edb6e08f4c7c32d4f71b54bda02913","price_from_in_usd":"0.9999"}},
	    {"id":"1","type":"trade","attributes":{"block_timestamp":"2025-06-01T11:59:55Z","from_token_address":"0x4200000000000000000000000000000000000006","price_from_in_usd":"2641.05"}}
	  ]
	}`
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload))
	})

	price, err := client.LatestPrice(context.Background())

	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("2641.05")))
}

func TestLatestPrice_NoTradeForToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	})

	_, err := client.LatestPrice(context.Background())

	assert.Error(t, err)
}
