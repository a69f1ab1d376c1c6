package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// validConfig returns a Config that passes Validate, built from defaults.
func validConfig() Config {
	cfg := Defaults()
	cfg.Wallet.PrivateKey = "0xabc123"
	cfg.Chain.RPCURL = "https://mainnet.base.org"
	cfg.Chain.ContractAddress = "0x00000000000000000000000000000000000000aa"
	return cfg
}

func TestLoad_MergesFileOverDefaults(t *testing.T) {
	path := writeConfigFile(t, `
log_level = "debug"

[wallet]
private_key = "0xdeadbeef"

[chain]
rpc_url = "https://rpc.example.org"
contract_address = "0x00000000000000000000000000000000000000aa"

[strategy]
trend_threshold_pct = "0.05"
poll_interval = "10s"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	// File values win.
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "0xdeadbeef", cfg.Wallet.PrivateKey)
	assert.Equal(t, "https://rpc.example.org", cfg.Chain.RPCURL)
	assert.Equal(t, "0.05", cfg.Strategy.TrendThresholdPct)
	assert.Equal(t, 10*time.Second, cfg.Strategy.PollInterval.Duration)

	// Untouched fields keep their defaults.
	assert.Equal(t, int64(8453), cfg.Chain.ChainID)
	assert.Equal(t, uint64(3_000_000), cfg.Chain.GasLimit)
	assert.Equal(t, 20, cfg.Strategy.SampleWindow)
	assert.Equal(t, "position.json", cfg.State.Path)
	assert.Equal(t, "trading_log.csv", cfg.TradeLog.Path)
	assert.Equal(t, "base", cfg.Feed.Network)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
[wallet]
private_key = "from-file"

[chain]
rpc_url = "https://file.example.org"
`)

	t.Setenv("TRENDBOT_WALLET_PRIVATE_KEY", "from-env")
	t.Setenv("TRENDBOT_CHAIN_CHAIN_ID", "10")
	t.Setenv("TRENDBOT_CHAIN_GAS_LIMIT", "500000")
	t.Setenv("TRENDBOT_STRATEGY_POLL_INTERVAL", "30s")
	t.Setenv("TRENDBOT_TELEGRAM_CHAT_IDS", " 111 , 222 ,")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Wallet.PrivateKey)
	assert.Equal(t, "https://file.example.org", cfg.Chain.RPCURL, "env must not clobber unset keys")
	assert.Equal(t, int64(10), cfg.Chain.ChainID)
	assert.Equal(t, uint64(500_000), cfg.Chain.GasLimit)
	assert.Equal(t, 30*time.Second, cfg.Strategy.PollInterval.Duration)
	assert.Equal(t, []string{"111", "222"}, cfg.Telegram.ChatIDs)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestValidate_AcceptsCompleteConfig(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Wallet.PrivateKey = ""
	cfg.Chain.RPCURL = ""
	cfg.Strategy.SampleWindow = 1

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "private_key")
	assert.Contains(t, err.Error(), "rpc_url")
	assert.Contains(t, err.Error(), "sample_window")
}

func TestValidate_RejectsBadNumericStrings(t *testing.T) {
	cfg := validConfig()
	cfg.Chain.GasPriceGwei = "cheap"
	cfg.Strategy.TrendThresholdPct = "-0.5"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gas_price_gwei")
	assert.Contains(t, err.Error(), "trend_threshold_pct must not be negative")
}

func TestValidate_TelegramTokenRequiresChatIDs(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.Token = "bot123:token"
	cfg.Telegram.ChatIDs = nil

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat_ids")
}

func TestGasPriceWei(t *testing.T) {
	cfg := ChainConfig{GasPriceGwei: "0.1"}
	wei, err := cfg.GasPriceWei()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100_000_000), wei)
}

func TestRedactedConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.Token = "bot123:secret"
	cfg.Telegram.ChatIDs = []string{"111"}
	cfg.Discord.WebhookURL = "https://discord.com/api/webhooks/1/abc"

	red := RedactedConfig(&cfg)

	assert.Equal(t, "***", red.Wallet.PrivateKey)
	assert.Equal(t, "***", red.Telegram.Token)
	assert.Equal(t, "***", red.Discord.WebhookURL)

	// Non-secret fields survive and the original is untouched.
	assert.Equal(t, cfg.Chain.RPCURL, red.Chain.RPCURL)
	assert.Equal(t, "bot123:secret", cfg.Telegram.Token)

	red.Telegram.ChatIDs[0] = "mutated"
	assert.Equal(t, "111", cfg.Telegram.ChatIDs[0], "redacted copy must not alias the original slice")
}

func TestDuration_TextRoundTrip(t *testing.T) {
	d := duration{7500 * time.Millisecond}

	text, err := d.MarshalText()
	require.NoError(t, err)

	var parsed duration
	require.NoError(t, parsed.UnmarshalText(text))
	assert.Equal(t, d.Duration, parsed.Duration)
}
