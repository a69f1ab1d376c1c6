// Package app provides the top-level application lifecycle management for
// the trend bot. It wires together all dependencies (state store, execution
// gateway, price feed, notifications, strategy engine, pipeline) and runs
// them until shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/trendbot/internal/config"
	"github.com/alanyoungcy/trendbot/internal/pipeline"
	"github.com/alanyoungcy/trendbot/internal/strategy"
)

// App is the root application object. It owns the configuration, logger,
// and a list of cleanup functions that are called in reverse order on
// shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, starts the poll
// loop and the operator command listener, and blocks until the context is
// cancelled.
func (a *App) Run(ctx context.Context) error {
	deps, cleanup, err := Wire(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	// Recover whatever position survived the last run before trading.
	state, err := deps.Store.Load()
	if err != nil {
		a.logger.WarnContext(ctx, "stale position state, continuing from zero",
			slog.String("error", err.Error()),
		)
	}
	a.logger.InfoContext(ctx, "position state recovered",
		slog.String("kind", string(state.Kind)),
		slog.String("cumulative_pnl", state.CumulativePnL.StringFixed(2)),
	)

	engine := strategy.NewEngine(
		strategy.Config{
			TokenAddress:   a.cfg.Feed.TokenAddress,
			SampleWindow:   a.cfg.Strategy.SampleWindow,
			TrendThreshold: deps.TrendThreshold,
		},
		deps.Store, deps.Gateway, deps.Feed, deps.Notifier, deps.TradeLog,
		a.logger,
	)

	var commands pipeline.CommandSource
	if deps.Listener != nil {
		deps.Listener.OnCommand("status", func(ctx context.Context) (string, error) {
			return engine.HandleStatusQuery(ctx)
		})
		deps.Listener.OnCommand("close", func(ctx context.Context) (string, error) {
			if err := engine.HandleCloseCommand(ctx); err != nil {
				return "", err
			}
			return "Shutdown sequence finished.", nil
		})
		commands = deps.Listener
	}

	deps.Notifier.Broadcast(ctx,
		"🤖 Trading bot started\nMonitoring for opportunities...\n\n"+
			"Available commands:\n/status - current P&L and position\n/close - close position and withdraw all funds")

	orch := pipeline.NewOrchestrator(engine, commands, a.cfg.Strategy.PollInterval.Duration, a.logger)
	return orch.Run(ctx)
}

// Close tears down all resources in reverse registration order. It is safe
// to call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
