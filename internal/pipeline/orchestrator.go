// Package pipeline schedules the bot's long-running loops: the poll-driven
// strategy cycle and the operator command listener.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Cycler runs one poll iteration to completion.
type Cycler interface {
	RunCycle(ctx context.Context) error
}

// CommandSource blocks on operator input until the context is cancelled.
type CommandSource interface {
	Run(ctx context.Context) error
}

// Orchestrator owns the bot's goroutines. The poll loop runs one cycle at a
// time with the delay measured from the end of the previous cycle, so
// cycles never overlap; the command source runs as a sibling.
type Orchestrator struct {
	engine   Cycler
	commands CommandSource
	interval time.Duration
	logger   *slog.Logger
}

// NewOrchestrator creates an Orchestrator. commands may be nil when no
// operator channel is configured.
func NewOrchestrator(engine Cycler, commands CommandSource, interval time.Duration, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		engine:   engine,
		commands: commands,
		interval: interval,
		logger:   logger.With(slog.String("component", "pipeline")),
	}
}

// Run starts the loops and blocks until the context is cancelled. A cycle
// error is logged and the loop continues; only cancellation ends Run.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.InfoContext(ctx, "pipeline starting",
		slog.Duration("poll_interval", o.interval),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := o.pollLoop(ctx)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("pipeline: poll loop: %w", err)
	})

	if o.commands != nil {
		g.Go(func() error {
			err := o.commands.Run(ctx)
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return fmt.Errorf("pipeline: command listener: %w", err)
		})
	}

	err := g.Wait()
	if err != nil {
		o.logger.Error("pipeline stopped with error", slog.String("error", err.Error()))
		return err
	}

	o.logger.Info("pipeline stopped cleanly")
	return nil
}

// pollLoop runs cycles back to back, sleeping the configured interval after
// each one finishes. The wait is never wall-clock aligned.
func (o *Orchestrator) pollLoop(ctx context.Context) error {
	for {
		if err := o.engine.RunCycle(ctx); err != nil {
			// Every cycle failure has already been broadcast; keep polling.
			o.logger.WarnContext(ctx, "cycle failed",
				slog.String("error", err.Error()),
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(o.interval):
		}
	}
}
