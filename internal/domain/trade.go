package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PoolTrade is one trade observed on the monitored pool, as reported by the
// price feed. FromToken identifies which leg of the pair was sold; the
// strategy only considers trades where the monitored token is the from leg.
type PoolTrade struct {
	PriceUSD  decimal.Decimal
	FromToken string
	Timestamp time.Time
}

// TradeRecord is one completed round trip, written to the trade history log
// exactly once when a position closes. Records are never mutated.
type TradeRecord struct {
	ID         string
	Kind       PositionKind
	EntryPrice decimal.Decimal
	ExitPrice  decimal.Decimal
	EntryTime  time.Time
	ExitTime   time.Time
	Duration   string
	PnL        decimal.Decimal
	PnLPercent decimal.Decimal
	OpenTxRef  string
	CloseTxRef string
}
