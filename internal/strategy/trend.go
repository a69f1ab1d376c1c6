// Package strategy holds the trend analyzer and the position lifecycle
// engine: trend classification, the open/close/hold policy, transactional
// execution with revert diagnosis, and P&L accounting.
package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/trendbot/internal/domain"
)

// DefaultTrendThreshold is the trend classification threshold in percent.
var DefaultTrendThreshold = decimal.RequireFromString("0.03")

// AnalyzeTrend classifies the movement across an oldest-first price window.
// The percent change between the oldest and newest sample is compared
// against threshold (in percent): above it the trend is up, below its
// negation down, otherwise sideways.
//
// Fewer than two samples always yields sideways: with one sample the latest
// price is that sample, with none it falls back to fallbackPrice (the open
// position's entry price, or zero when flat).
func AnalyzeTrend(prices []decimal.Decimal, threshold, fallbackPrice decimal.Decimal) domain.TrendResult {
	if len(prices) == 0 {
		return domain.TrendResult{
			Direction:   domain.TrendSideways,
			LatestPrice: fallbackPrice,
		}
	}
	if len(prices) == 1 {
		return domain.TrendResult{
			Direction:   domain.TrendSideways,
			LatestPrice: prices[0],
		}
	}

	oldest := prices[0]
	newest := prices[len(prices)-1]
	change := newest.Sub(oldest)

	var pct decimal.Decimal
	if !oldest.IsZero() {
		pct = change.Div(oldest).Mul(decimal.NewFromInt(100))
	}

	direction := domain.TrendSideways
	switch {
	case pct.GreaterThan(threshold):
		direction = domain.TrendUp
	case pct.LessThan(threshold.Neg()):
		direction = domain.TrendDown
	}

	return domain.TrendResult{
		Direction:      direction,
		ChangeAbsolute: change,
		ChangePercent:  pct,
		LatestPrice:    newest,
	}
}
