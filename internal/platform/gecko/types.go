package gecko

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/trendbot/internal/domain"
)

// APITradesResponse is the GeckoTerminal trades envelope.
type APITradesResponse struct {
	Data []APITrade `json:"data"`
}

// APITrade is one trade resource as returned by the GeckoTerminal API.
// Prices arrive as strings to preserve precision.
type APITrade struct {
	ID         string             `json:"id"`
	Type       string             `json:"type"`
	Attributes APITradeAttributes `json:"attributes"`
}

// APITradeAttributes holds the trade fields the bot consumes.
type APITradeAttributes struct {
	BlockTimestamp   string `json:"block_timestamp"`
	FromTokenAddress string `json:"from_token_address"`
	ToTokenAddress   string `json:"to_token_address"`
	PriceFromInUSD   string `json:"price_from_in_usd"`
	PriceToInUSD     string `json:"price_to_in_usd"`
	VolumeInUSD      string `json:"volume_in_usd"`
}

// ToDomainTrade converts an API trade into the domain representation.
// Trades with an unparseable price are dropped by the caller.
func (a APITrade) ToDomainTrade() (domain.PoolTrade, error) {
	price, err := decimal.NewFromString(a.Attributes.PriceFromInUSD)
	if err != nil {
		return domain.PoolTrade{}, err
	}

	ts, err := time.Parse(time.RFC3339, a.Attributes.BlockTimestamp)
	if err != nil {
		// The timestamp is informational only; a zero value is acceptable.
		ts = time.Time{}
	}

	return domain.PoolTrade{
		PriceUSD:  price,
		FromToken: a.Attributes.FromTokenAddress,
		Timestamp: ts,
	}, nil
}
