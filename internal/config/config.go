// Package config defines the top-level configuration for the trend bot and
// provides validation helpers.
package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by TRENDBOT_* environment
// variables.
type Config struct {
	Wallet   WalletConfig   `toml:"wallet"`
	Chain    ChainConfig    `toml:"chain"`
	Feed     FeedConfig     `toml:"feed"`
	Strategy StrategyConfig `toml:"strategy"`
	State    StateConfig    `toml:"state"`
	TradeLog TradeLogConfig `toml:"trade_log"`
	Telegram TelegramConfig `toml:"telegram"`
	Discord  DiscordConfig  `toml:"discord"`
	LogLevel string         `toml:"log_level"`
}

// WalletConfig holds the transacting wallet credentials.
type WalletConfig struct {
	PrivateKey string `toml:"private_key"`
}

// ChainConfig holds JSON-RPC and contract parameters.
type ChainConfig struct {
	RPCURL          string   `toml:"rpc_url"`
	ContractAddress string   `toml:"contract_address"`
	MWETHAddress    string   `toml:"mweth_address"`
	MUSDCAddress    string   `toml:"musdc_address"`
	ChainID         int64    `toml:"chain_id"`
	GasLimit        uint64   `toml:"gas_limit"`
	GasPriceGwei    string   `toml:"gas_price_gwei"`
	ConfirmTimeout  duration `toml:"confirm_timeout"`
}

// GasPriceWei converts the configured gwei price to wei.
func (c ChainConfig) GasPriceWei() (*big.Int, error) {
	gwei, err := decimal.NewFromString(c.GasPriceGwei)
	if err != nil {
		return nil, fmt.Errorf("config: gas_price_gwei %q: %w", c.GasPriceGwei, err)
	}
	return gwei.Mul(decimal.New(1, 9)).BigInt(), nil
}

// FeedConfig holds the GeckoTerminal price feed parameters.
type FeedConfig struct {
	BaseURL      string `toml:"base_url"`
	Network      string `toml:"network"`
	PoolAddress  string `toml:"pool_address"`
	TokenAddress string `toml:"token_address"`
	MinVolumeUSD string `toml:"min_volume_usd"`
}

// MinVolume returns the dust-trade filter as a decimal.
func (c FeedConfig) MinVolume() (decimal.Decimal, error) {
	v, err := decimal.NewFromString(c.MinVolumeUSD)
	if err != nil {
		return decimal.Zero, fmt.Errorf("config: min_volume_usd %q: %w", c.MinVolumeUSD, err)
	}
	return v, nil
}

// StrategyConfig holds trend classification and scheduling parameters.
type StrategyConfig struct {
	TrendThresholdPct string   `toml:"trend_threshold_pct"`
	SampleWindow      int      `toml:"sample_window"`
	PollInterval      duration `toml:"poll_interval"`
}

// TrendThreshold returns the classification threshold in percent.
func (c StrategyConfig) TrendThreshold() (decimal.Decimal, error) {
	v, err := decimal.NewFromString(c.TrendThresholdPct)
	if err != nil {
		return decimal.Zero, fmt.Errorf("config: trend_threshold_pct %q: %w", c.TrendThresholdPct, err)
	}
	return v, nil
}

// StateConfig holds the position state file location.
type StateConfig struct {
	Path string `toml:"path"`
}

// TradeLogConfig holds the trade history file location.
type TradeLogConfig struct {
	Path string `toml:"path"`
}

// TelegramConfig holds the operator notification channel credentials. An
// empty token disables Telegram entirely; the bot then runs headless with
// log output only.
type TelegramConfig struct {
	Token   string   `toml:"token"`
	ChatIDs []string `toml:"chat_ids"`
}

// DiscordConfig holds an optional secondary notification channel. An empty
// webhook URL disables Discord delivery.
type DiscordConfig struct {
	WebhookURL string `toml:"webhook_url"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "7.5s", "2m").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns the built-in configuration: the WETH/USDC pool on Base
// with the parameters the bot has always traded with.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			MWETHAddress:   "0x628ff693426583D9a7FB391E54366292F509D457",
			MUSDCAddress:   "0xEdc817A28E8B93B03976FBd4a3dDBc9f7D176c22",
			ChainID:        8453,
			GasLimit:       3_000_000,
			GasPriceGwei:   "0.1",
			ConfirmTimeout: duration{2 * time.Minute},
		},
		Feed: FeedConfig{
			BaseURL:      "https://api.geckoterminal.com/api/v2",
			Network:      "base",
			PoolAddress:  "0xb2cc224c1c9fee385f8ad6a55b4d94e92359dc59",
			TokenAddress: "0x4200000000000000000000000000000000000006",
			MinVolumeUSD: "0",
		},
		Strategy: StrategyConfig{
			TrendThresholdPct: "0.03",
			SampleWindow:      20,
			PollInterval:      duration{7500 * time.Millisecond},
		},
		State:    StateConfig{Path: "position.json"},
		TradeLog: TradeLogConfig{Path: "trading_log.csv"},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and
// returns a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Wallet.PrivateKey == "" {
		errs = append(errs, "wallet: private_key must be set")
	}

	if c.Chain.RPCURL == "" {
		errs = append(errs, "chain: rpc_url must not be empty")
	}
	if c.Chain.ContractAddress == "" {
		errs = append(errs, "chain: contract_address must not be empty")
	}
	if c.Chain.ChainID <= 0 {
		errs = append(errs, "chain: chain_id must be positive")
	}
	if c.Chain.GasLimit == 0 {
		errs = append(errs, "chain: gas_limit must be positive")
	}
	if _, err := c.Chain.GasPriceWei(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Chain.ConfirmTimeout.Duration <= 0 {
		errs = append(errs, "chain: confirm_timeout must be positive")
	}

	if c.Feed.BaseURL == "" {
		errs = append(errs, "feed: base_url must not be empty")
	}
	if c.Feed.PoolAddress == "" {
		errs = append(errs, "feed: pool_address must not be empty")
	}
	if c.Feed.TokenAddress == "" {
		errs = append(errs, "feed: token_address must not be empty")
	}
	if _, err := c.Feed.MinVolume(); err != nil {
		errs = append(errs, err.Error())
	}

	if threshold, err := c.Strategy.TrendThreshold(); err != nil {
		errs = append(errs, err.Error())
	} else if threshold.IsNegative() {
		errs = append(errs, "strategy: trend_threshold_pct must not be negative")
	}
	if c.Strategy.SampleWindow < 2 {
		errs = append(errs, "strategy: sample_window must be at least 2")
	}
	if c.Strategy.PollInterval.Duration <= 0 {
		errs = append(errs, "strategy: poll_interval must be positive")
	}

	if c.State.Path == "" {
		errs = append(errs, "state: path must not be empty")
	}
	if c.TradeLog.Path == "" {
		errs = append(errs, "trade_log: path must not be empty")
	}

	if c.Telegram.Token != "" && len(c.Telegram.ChatIDs) == 0 {
		errs = append(errs, "telegram: chat_ids must be set when token is set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
