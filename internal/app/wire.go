package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/trendbot/internal/config"
	"github.com/alanyoungcy/trendbot/internal/domain"
	"github.com/alanyoungcy/trendbot/internal/notify"
	"github.com/alanyoungcy/trendbot/internal/platform/chain"
	"github.com/alanyoungcy/trendbot/internal/platform/gecko"
	"github.com/alanyoungcy/trendbot/internal/store/file"
	"github.com/alanyoungcy/trendbot/internal/tradelog"
)

// Dependencies bundles every domain-level dependency the application needs
// to operate. It is constructed by Wire and torn down by the returned
// cleanup function.
type Dependencies struct {
	Store    domain.PositionStore
	Gateway  domain.ExecutionGateway
	Feed     domain.PriceFeed
	TradeLog domain.TradeLog
	Notifier *notify.Notifier
	// Listener is nil when no Telegram token is configured.
	Listener *notify.TelegramListener

	TrendThreshold decimal.Decimal
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Execution gateway ---
	gasPrice, err := cfg.Chain.GasPriceWei()
	if err != nil {
		return nil, nil, fmt.Errorf("wire: %w", err)
	}
	gateway, err := chain.New(ctx, chain.Config{
		RPCURL:          cfg.Chain.RPCURL,
		PrivateKey:      cfg.Wallet.PrivateKey,
		ContractAddress: cfg.Chain.ContractAddress,
		MWETHAddress:    cfg.Chain.MWETHAddress,
		MUSDCAddress:    cfg.Chain.MUSDCAddress,
		ChainID:         cfg.Chain.ChainID,
		GasLimit:        cfg.Chain.GasLimit,
		GasPriceWei:     gasPrice,
		ConfirmTimeout:  cfg.Chain.ConfirmTimeout.Duration,
	}, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: chain gateway: %w", err)
	}
	closers = append(closers, gateway.Close)
	deps.Gateway = gateway

	// --- Price feed ---
	minVolume, err := cfg.Feed.MinVolume()
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: %w", err)
	}
	deps.Feed = gecko.NewClient(gecko.Config{
		BaseURL:      cfg.Feed.BaseURL,
		Network:      cfg.Feed.Network,
		PoolAddress:  cfg.Feed.PoolAddress,
		TokenAddress: cfg.Feed.TokenAddress,
		MinVolumeUSD: minVolume,
	})

	// --- Durable state and trade history ---
	deps.Store = file.NewPositionStore(cfg.State.Path, logger)
	deps.TradeLog = tradelog.NewCSVLog(cfg.TradeLog.Path, logger)

	// --- Notifications and operator commands ---
	var senders []notify.Sender
	if cfg.Telegram.Token != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Telegram.Token, cfg.Telegram.ChatIDs))
		deps.Listener = notify.NewTelegramListener(cfg.Telegram.Token, cfg.Telegram.ChatIDs, logger)
		logger.Info("telegram channel configured",
			slog.Int("recipients", len(cfg.Telegram.ChatIDs)),
		)
	} else {
		logger.Info("telegram token not set, running without operator channel")
	}
	if cfg.Discord.WebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Discord.WebhookURL))
		logger.Info("discord channel configured")
	}
	deps.Notifier = notify.NewNotifier(senders, logger)

	// --- Strategy parameters ---
	threshold, err := cfg.Strategy.TrendThreshold()
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: %w", err)
	}
	deps.TrendThreshold = threshold

	return deps, cleanup, nil
}
