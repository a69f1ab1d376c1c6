package domain

import "github.com/shopspring/decimal"

// TrendDirection classifies recent price movement over the lookback window.
type TrendDirection string

const (
	TrendUp       TrendDirection = "up"
	TrendDown     TrendDirection = "down"
	TrendSideways TrendDirection = "sideways"
)

// TrendResult is the outcome of one trend analysis. It is recomputed every
// poll cycle and never persisted.
type TrendResult struct {
	Direction      TrendDirection
	ChangeAbsolute decimal.Decimal
	ChangePercent  decimal.Decimal
	// LatestPrice is the newest observed sample, or the open position's
	// entry price when no fresh sample exists.
	LatestPrice decimal.Decimal
}
