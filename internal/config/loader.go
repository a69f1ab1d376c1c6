package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies TRENDBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known TRENDBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "TRENDBOT_WALLET_PRIVATE_KEY")

	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "TRENDBOT_CHAIN_RPC_URL")
	setStr(&cfg.Chain.ContractAddress, "TRENDBOT_CHAIN_CONTRACT_ADDRESS")
	setStr(&cfg.Chain.MWETHAddress, "TRENDBOT_CHAIN_MWETH_ADDRESS")
	setStr(&cfg.Chain.MUSDCAddress, "TRENDBOT_CHAIN_MUSDC_ADDRESS")
	setInt64(&cfg.Chain.ChainID, "TRENDBOT_CHAIN_CHAIN_ID")
	setUint64(&cfg.Chain.GasLimit, "TRENDBOT_CHAIN_GAS_LIMIT")
	setStr(&cfg.Chain.GasPriceGwei, "TRENDBOT_CHAIN_GAS_PRICE_GWEI")
	setDuration(&cfg.Chain.ConfirmTimeout, "TRENDBOT_CHAIN_CONFIRM_TIMEOUT")

	// ── Feed ──
	setStr(&cfg.Feed.BaseURL, "TRENDBOT_FEED_BASE_URL")
	setStr(&cfg.Feed.Network, "TRENDBOT_FEED_NETWORK")
	setStr(&cfg.Feed.PoolAddress, "TRENDBOT_FEED_POOL_ADDRESS")
	setStr(&cfg.Feed.TokenAddress, "TRENDBOT_FEED_TOKEN_ADDRESS")
	setStr(&cfg.Feed.MinVolumeUSD, "TRENDBOT_FEED_MIN_VOLUME_USD")

	// ── Strategy ──
	setStr(&cfg.Strategy.TrendThresholdPct, "TRENDBOT_STRATEGY_TREND_THRESHOLD_PCT")
	setInt(&cfg.Strategy.SampleWindow, "TRENDBOT_STRATEGY_SAMPLE_WINDOW")
	setDuration(&cfg.Strategy.PollInterval, "TRENDBOT_STRATEGY_POLL_INTERVAL")

	// ── Files ──
	setStr(&cfg.State.Path, "TRENDBOT_STATE_PATH")
	setStr(&cfg.TradeLog.Path, "TRENDBOT_TRADE_LOG_PATH")

	// ── Telegram ──
	setStr(&cfg.Telegram.Token, "TRENDBOT_TELEGRAM_TOKEN")
	setStringSlice(&cfg.Telegram.ChatIDs, "TRENDBOT_TELEGRAM_CHAT_IDS")

	// ── Discord ──
	setStr(&cfg.Discord.WebhookURL, "TRENDBOT_DISCORD_WEBHOOK_URL")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "TRENDBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		*dst = out
	}
}
