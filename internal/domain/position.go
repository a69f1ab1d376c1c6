// Package domain defines the core types shared across the bot: the durable
// position record, trend analysis results, trade history rows, the error
// taxonomy, and the ports implemented by external collaborators.
package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PositionKind tags which side of the market the single tracked position is
// on. The schema allows extension, but the current policy only ever produces
// KindLong.
type PositionKind string

const (
	KindNone PositionKind = "none"
	KindLong PositionKind = "long"
)

// PositionState is the single durable record of the bot's on-chain exposure.
// Exactly one instance exists; it is mutated only by the strategy engine and
// persisted synchronously after every mutation.
//
// Invariant: Kind == KindNone implies EntryPrice and PositionSize are zero,
// EntryTime is nil, and OpenTxRef is empty.
type PositionState struct {
	Kind          PositionKind    `json:"kind"`
	EntryPrice    decimal.Decimal `json:"entry_price"`
	EntryTime     *time.Time      `json:"entry_time"`
	OpenTxRef     string          `json:"open_tx_ref"`
	PositionSize  decimal.Decimal `json:"position_size"`
	CumulativePnL decimal.Decimal `json:"cumulative_pnl"`
}

// IsOpen reports whether a position is currently held.
func (p PositionState) IsOpen() bool {
	return p.Kind != KindNone
}

// Flat returns the state after a close: all position fields zeroed, the
// cumulative P&L carried over.
func (p PositionState) Flat() PositionState {
	return PositionState{
		Kind:          KindNone,
		EntryPrice:    decimal.Zero,
		EntryTime:     nil,
		OpenTxRef:     "",
		PositionSize:  decimal.Zero,
		CumulativePnL: p.CumulativePnL,
	}
}

// PnLRatio returns the fractional gain of the open position at the given
// price, e.g. 0.10 for a 10% gain on a long. Zero when no position is open
// or the entry price is zero.
func (p PositionState) PnLRatio(price decimal.Decimal) decimal.Decimal {
	if !p.IsOpen() || p.EntryPrice.IsZero() {
		return decimal.Zero
	}
	// Only longs are produced today; a short would invert the ratio.
	return price.Sub(p.EntryPrice).Div(p.EntryPrice)
}

// UnrealizedPnL returns the notional profit or loss of the open position at
// the given price.
func (p PositionState) UnrealizedPnL(price decimal.Decimal) decimal.Decimal {
	return p.PnLRatio(price).Mul(p.PositionSize)
}

// Duration returns how long the position has been open, as of now.
func (p PositionState) Duration(now time.Time) time.Duration {
	if p.EntryTime == nil {
		return 0
	}
	return now.Sub(*p.EntryTime)
}

// FormatDuration renders a duration the way operators read it in
// notifications: "2h 13m", "4m 09s", "37s".
func FormatDuration(d time.Duration) string {
	seconds := int(d.Seconds())
	if seconds < 0 {
		seconds = 0
	}
	minutes := seconds / 60
	hours := minutes / 60
	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes%60)
	case minutes > 0:
		return fmt.Sprintf("%dm %02ds", minutes, seconds%60)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
