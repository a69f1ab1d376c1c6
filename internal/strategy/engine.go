package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/trendbot/internal/domain"
)

// Config holds the strategy engine parameters.
type Config struct {
	// TokenAddress is the from-token leg the analyzer watches (e.g. WETH).
	TokenAddress string
	// SampleWindow caps how many recent trades feed the analyzer.
	SampleWindow int
	// TrendThreshold is the classification threshold in percent.
	TrendThreshold decimal.Decimal
}

// Engine owns the position lifecycle. It evaluates one poll cycle at a time:
// classify the trend, decide open/close/hold, drive the execution gateway,
// and keep the durable position record in sync. The engine is the only
// writer of PositionState; its mutex also serializes the operator command
// path against the poll-driven path.
type Engine struct {
	cfg      Config
	store    domain.PositionStore
	gateway  domain.ExecutionGateway
	feed     domain.PriceFeed
	notifier domain.Broadcaster
	trades   domain.TradeLog
	logger   *slog.Logger

	mu sync.Mutex

	now   func() time.Time
	newID func() string
}

// NewEngine creates an Engine with all collaborators wired.
func NewEngine(
	cfg Config,
	store domain.PositionStore,
	gateway domain.ExecutionGateway,
	feed domain.PriceFeed,
	notifier domain.Broadcaster,
	trades domain.TradeLog,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		cfg:      cfg,
		store:    store,
		gateway:  gateway,
		feed:     feed,
		notifier: notifier,
		trades:   trades,
		logger:   logger.With(slog.String("component", "strategy")),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// RunCycle executes one full poll iteration: fetch, analyze, decide,
// execute, persist. It never returns an error that should stop the poll
// loop; every failure ends in a broadcast and a safe hold/skip decision.
func (e *Engine) RunCycle(ctx context.Context) error {
	poolTrades, err := e.feed.RecentTrades(ctx)
	if err != nil {
		e.logger.ErrorContext(ctx, "price fetch failed", slog.String("error", err.Error()))
		e.notifier.Broadcast(ctx, fmt.Sprintf("🚨 Main loop error: %v", err))
		return fmt.Errorf("strategy: fetch prices: %w", domain.ErrFeedUnavailable)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	prices := e.selectPrices(poolTrades)

	cur := e.store.Current()
	fallback := decimal.Zero
	if cur.IsOpen() {
		fallback = cur.EntryPrice
	}

	trend := AnalyzeTrend(prices, e.cfg.TrendThreshold, fallback)
	e.logger.InfoContext(ctx, "trend analyzed",
		slog.Int("samples", len(prices)),
		slog.String("direction", string(trend.Direction)),
		slog.String("change_pct", trend.ChangePercent.StringFixed(4)),
		slog.String("latest_price", trend.LatestPrice.String()),
	)

	if cur.IsOpen() {
		e.logger.InfoContext(ctx, "open position",
			slog.String("kind", string(cur.Kind)),
			slog.String("entry_price", cur.EntryPrice.String()),
			slog.String("size", cur.PositionSize.StringFixed(2)),
			slog.String("unrealized_pnl", cur.UnrealizedPnL(trend.LatestPrice).StringFixed(2)),
			slog.String("duration", domain.FormatDuration(cur.Duration(e.now()))),
		)
	}

	e.evaluateLocked(ctx, trend)
	return nil
}

// selectPrices filters the raw feed to the monitored token leg, keeps the
// most recent SampleWindow trades, and reverses them to oldest-first.
func (e *Engine) selectPrices(trades []domain.PoolTrade) []decimal.Decimal {
	newest := make([]decimal.Decimal, 0, e.cfg.SampleWindow)
	for _, t := range trades {
		if !strings.EqualFold(t.FromToken, e.cfg.TokenAddress) {
			continue
		}
		newest = append(newest, t.PriceUSD)
		if len(newest) == e.cfg.SampleWindow {
			break
		}
	}

	prices := make([]decimal.Decimal, len(newest))
	for i, p := range newest {
		prices[len(newest)-1-i] = p
	}
	return prices
}

// evaluateLocked applies the transition table for one cycle. Caller holds
// the engine mutex.
func (e *Engine) evaluateLocked(ctx context.Context, trend domain.TrendResult) {
	if trend.Direction == domain.TrendSideways {
		e.logger.DebugContext(ctx, "holding, movement not significant")
		return
	}

	cur := e.store.Current()

	if trend.Direction == domain.TrendDown && cur.Kind == domain.KindLong {
		e.notifier.Broadcast(ctx, "📉 Trend reversed. Closing current LONG position.")
		if !e.closeLocked(ctx, trend.LatestPrice, "strategy") {
			// Never open on top of an unresolved close.
			e.notifier.Broadcast(ctx, "⚠️ Failed to close position, skipping new trade.")
			return
		}
	}

	if trend.Direction == domain.TrendUp && !e.store.Current().IsOpen() {
		e.openLocked(ctx, trend.LatestPrice)
	}
}

// openLocked opens a long at the given price. Caller holds the engine mutex
// and has verified no position is open.
func (e *Engine) openLocked(ctx context.Context, price decimal.Decimal) {
	e.notifier.Broadcast(ctx, "📈 Trend is UP. Opening LONG position...")

	txRef, err := e.gateway.OpenLong(ctx)
	if err != nil {
		e.reportExecutionFailure(ctx, "opening position", err)
		return
	}

	now := e.now().UTC()
	prev := e.store.Current()

	size, sizeErr := e.gateway.PositionSize(ctx, price, prev.PositionSize)
	if sizeErr != nil {
		e.logger.WarnContext(ctx, "position size query failed, keeping previous value",
			slog.String("error", sizeErr.Error()),
		)
		e.notifier.Broadcast(ctx, fmt.Sprintf("⚠️ Could not get position size: %v", sizeErr))
		size = prev.PositionSize
	}

	state := domain.PositionState{
		Kind:          domain.KindLong,
		EntryPrice:    price,
		EntryTime:     &now,
		OpenTxRef:     txRef,
		PositionSize:  size,
		CumulativePnL: prev.CumulativePnL,
	}
	e.persistLocked(ctx, state)

	e.notifier.Broadcast(ctx, fmt.Sprintf(
		"🟢 LONG position opened\nEntry price: $%s\nPosition size: $%s\nTx: %s",
		price.StringFixed(2), size.StringFixed(2), txRef,
	))
	e.logger.InfoContext(ctx, "position opened",
		slog.String("entry_price", price.String()),
		slog.String("size", size.StringFixed(2)),
		slog.String("tx", txRef),
	)
}

// closeLocked unwinds the open position at exitPrice. It reports success
// when there is nothing to close; no transaction is submitted in that case.
// Caller holds the engine mutex.
func (e *Engine) closeLocked(ctx context.Context, exitPrice decimal.Decimal, trigger string) bool {
	cur := e.store.Current()
	if !cur.IsOpen() {
		return true
	}

	e.notifier.Broadcast(ctx, fmt.Sprintf(
		"⏳ Closing %s position... (triggered by %s)",
		strings.ToUpper(string(cur.Kind)), trigger,
	))

	txRef, err := e.gateway.CloseLong(ctx)
	if err != nil {
		e.reportExecutionFailure(ctx, "closing position", err)
		return false
	}

	exitTime := e.now().UTC()
	ratio := cur.PnLRatio(exitPrice)
	pnl := ratio.Mul(cur.PositionSize)
	pnlPercent := ratio.Mul(decimal.NewFromInt(100))

	state := cur.Flat()
	state.CumulativePnL = cur.CumulativePnL.Add(pnl)
	e.persistLocked(ctx, state)

	icon := "✅"
	if pnl.IsNegative() {
		icon = "🔻"
	}
	e.notifier.Broadcast(ctx, fmt.Sprintf(
		"%s Position closed\nKind: %s\nP&L: $%s (%s%%)\nRunning P&L: $%s\nClose tx: %s",
		icon, strings.ToUpper(string(cur.Kind)),
		pnl.StringFixed(2), pnlPercent.StringFixed(2),
		state.CumulativePnL.StringFixed(2), txRef,
	))
	e.logger.InfoContext(ctx, "position closed",
		slog.String("exit_price", exitPrice.String()),
		slog.String("pnl", pnl.StringFixed(2)),
		slog.String("cumulative_pnl", state.CumulativePnL.StringFixed(2)),
		slog.String("tx", txRef),
	)

	record := domain.TradeRecord{
		ID:         e.newID(),
		Kind:       cur.Kind,
		EntryPrice: cur.EntryPrice,
		ExitPrice:  exitPrice,
		ExitTime:   exitTime,
		PnL:        pnl,
		PnLPercent: pnlPercent,
		OpenTxRef:  cur.OpenTxRef,
		CloseTxRef: txRef,
	}
	if cur.EntryTime != nil {
		record.EntryTime = *cur.EntryTime
		record.Duration = domain.FormatDuration(exitTime.Sub(*cur.EntryTime))
	}
	if err := e.trades.Append(record); err != nil {
		e.logger.ErrorContext(ctx, "trade log append failed", slog.String("error", err.Error()))
	}

	return true
}

// persistLocked updates the authoritative record. A write failure keeps the
// in-memory state and is reported; the next successful save repairs
// durability.
func (e *Engine) persistLocked(ctx context.Context, state domain.PositionState) {
	if err := e.store.Save(state); err != nil {
		e.logger.ErrorContext(ctx, "position state save failed", slog.String("error", err.Error()))
		e.notifier.Broadcast(ctx, fmt.Sprintf("⚠️ Could not persist position state: %v", err))
	}
}

// reportExecutionFailure broadcasts a trade execution failure and, when the
// transaction reverted on-chain, runs the best-effort diagnostic.
func (e *Engine) reportExecutionFailure(ctx context.Context, action string, err error) {
	e.logger.ErrorContext(ctx, "trade execution failed",
		slog.String("action", action),
		slog.String("error", err.Error()),
	)
	e.notifier.Broadcast(ctx, fmt.Sprintf("❌ Error %s: %v", action, err))

	te, ok := domain.AsTradeExecutionError(err)
	if !ok || !te.Reverted || te.TxRef == "" {
		// Diagnosis needs a mined transaction to point at; a revert detected
		// at submission time has no hash to inspect.
		return
	}

	e.notifier.Broadcast(ctx, fmt.Sprintf(
		"🚨 Transaction reverted\nTx: %s\nRunning on-chain diagnosis...", te.TxRef,
	))
	diagTx, diagErr := e.gateway.Diagnose(ctx)
	if diagErr != nil {
		e.notifier.Broadcast(ctx, fmt.Sprintf("❌ Error running diagnosis: %v", diagErr))
		return
	}
	e.notifier.Broadcast(ctx, fmt.Sprintf("🔍 Diagnostic transaction confirmed: %s", diagTx))
}

// HandleStatusQuery builds the operator status report: running P&L and, when
// a position is open, entry vs. current price, size, duration, and
// unrealized P&L at the latest feed price.
func (e *Engine) HandleStatusQuery(ctx context.Context) (string, error) {
	e.mu.Lock()
	cur := e.store.Current()
	e.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "📈 Running P&L: $%s\n", cur.CumulativePnL.StringFixed(2))

	if !cur.IsOpen() {
		b.WriteString("⚪️ No active position.")
		return b.String(), nil
	}

	price, err := e.feed.LatestPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("strategy: status price lookup: %w", err)
	}

	pnl := cur.UnrealizedPnL(price)
	pnlPercent := cur.PnLRatio(price).Mul(decimal.NewFromInt(100))
	icon := "💹"
	if pnl.IsNegative() {
		icon = "📉"
	}
	fmt.Fprintf(&b, "Current position: %s\n", strings.ToUpper(string(cur.Kind)))
	fmt.Fprintf(&b, "Entry price: $%s\n", cur.EntryPrice.StringFixed(4))
	fmt.Fprintf(&b, "Current price: $%s\n", price.StringFixed(4))
	fmt.Fprintf(&b, "Position size: $%s\n", cur.PositionSize.StringFixed(2))
	fmt.Fprintf(&b, "Duration: %s\n", domain.FormatDuration(cur.Duration(e.now())))
	fmt.Fprintf(&b, "%s Unrealized P&L: $%s (%s%%)", icon, pnl.StringFixed(2), pnlPercent.StringFixed(2))
	return b.String(), nil
}

// HandleCloseCommand runs the operator shutdown sequence: close any open
// position at the latest feed price, then, only if closing succeeded, sweep
// all funds to the owner. It shares the engine mutex with the poll path, so
// the two can never race over the position record.
func (e *Engine) HandleCloseCommand(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.notifier.Broadcast(ctx, "✅ Received /close command. Initiating shutdown sequence...")

	closed := false
	if !e.store.Current().IsOpen() {
		e.notifier.Broadcast(ctx, "No active position to close. Proceeding to withdraw...")
		closed = true
	} else {
		price, err := e.feed.LatestPrice(ctx)
		if err != nil {
			e.notifier.Broadcast(ctx, fmt.Sprintf(
				"❌ Could not fetch price to close position: %v. Aborting.", err,
			))
			return fmt.Errorf("strategy: close command price lookup: %w", err)
		}
		closed = e.closeLocked(ctx, price, "manual /close")
	}

	if !closed {
		e.notifier.Broadcast(ctx, "❌ Position close failed. Aborting withdrawal.")
		return fmt.Errorf("strategy: close command: position close failed")
	}

	e.notifier.Broadcast(ctx, "⏳ Attempting to withdraw all funds from contract...")
	txRef, err := e.gateway.WithdrawAll(ctx)
	if err != nil {
		e.reportExecutionFailure(ctx, "withdrawing funds", err)
		return fmt.Errorf("strategy: close command withdraw: %w", err)
	}
	e.notifier.Broadcast(ctx, fmt.Sprintf(
		"✅ Withdrawal successful. All funds sent to the owner's wallet.\nTx: %s", txRef,
	))
	return nil
}
