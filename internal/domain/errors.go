package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrFeedUnavailable marks a transient price-feed failure. The cycle is
	// skipped and retried on the next poll; no state changes.
	ErrFeedUnavailable = errors.New("price feed unavailable")

	// ErrStaleState marks a state file that could not be read at startup.
	// The bot proceeds from the zero state; never fatal.
	ErrStaleState = errors.New("position state unreadable")

	// ErrConfirmTimeout marks a transaction whose confirmation wait expired.
	// The transaction may still land; operators reconcile via diagnostics.
	ErrConfirmTimeout = errors.New("confirmation wait timed out")
)

// TradeExecutionError wraps any failure to submit or confirm an on-chain
// transaction. It never propagates past the strategy engine boundary; the
// engine converts it into a hold / skip decision and a broadcast.
type TradeExecutionError struct {
	Op       string // "open", "close", "withdraw", "diagnose"
	TxRef    string // transaction hash when the submission got that far
	Reverted bool   // the transaction was mined but reverted on-chain
	Err      error
}

func (e *TradeExecutionError) Error() string {
	if e.TxRef != "" {
		return fmt.Sprintf("trade execution: %s (tx %s): %v", e.Op, e.TxRef, e.Err)
	}
	return fmt.Sprintf("trade execution: %s: %v", e.Op, e.Err)
}

func (e *TradeExecutionError) Unwrap() error { return e.Err }

// AsTradeExecutionError extracts a TradeExecutionError from an error chain.
func AsTradeExecutionError(err error) (*TradeExecutionError, bool) {
	var te *TradeExecutionError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
