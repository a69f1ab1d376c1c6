package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// PriceFeed supplies recent trades for the monitored pool, newest first, and
// a single latest-price lookup for status reports and manual closes.
type PriceFeed interface {
	RecentTrades(ctx context.Context) ([]PoolTrade, error)
	LatestPrice(ctx context.Context) (decimal.Decimal, error)
}

// ExecutionGateway submits transactions against the on-chain strategy
// contract and waits for confirmation. Every method returns the transaction
// hash on success; failures come back as *TradeExecutionError.
type ExecutionGateway interface {
	// OpenLong opens the leveraged long.
	OpenLong(ctx context.Context) (txRef string, err error)
	// CloseLong unwinds the open long.
	CloseLong(ctx context.Context) (txRef string, err error)
	// Diagnose submits the contract's diagnostic call. Invoked only after an
	// on-chain revert; its own failure is reported, never escalated.
	Diagnose(ctx context.Context) (txRef string, err error)
	// WithdrawAll sweeps all funds to the owner. Operator command only.
	WithdrawAll(ctx context.Context) (txRef string, err error)
	// PositionSize re-queries the contract's borrow balances and returns the
	// notional size in USD. prev is returned when neither leg carries a
	// borrow or the query fails upstream of a useful answer.
	PositionSize(ctx context.Context, latestPrice, prev decimal.Decimal) (decimal.Decimal, error)
}

// PositionStore is the durable single-record home of PositionState.
type PositionStore interface {
	// Load reads the persisted state. A missing file yields the zero state
	// and a nil error; an unreadable or corrupt file yields the zero state
	// and an error wrapping ErrStaleState. The returned state is usable
	// either way and the condition is never fatal.
	Load() (PositionState, error)
	// Save atomically overwrites the record. A partially written file must
	// never be observable.
	Save(state PositionState) error
	// Current returns the in-memory authoritative copy.
	Current() PositionState
}

// Broadcaster delivers human-readable events to operators. Delivery is
// best-effort; failures never affect the strategy outcome.
type Broadcaster interface {
	Broadcast(ctx context.Context, message string)
}

// TradeLog appends completed round trips to the trade history. Write
// failures are logged and reported, never fatal.
type TradeLog interface {
	Append(record TradeRecord) error
}
