package file

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/trendbot/internal/domain"
)

func newStore(t *testing.T) (*PositionStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "position.json")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewPositionStore(path, logger), path
}

func TestLoad_MissingFile(t *testing.T) {
	store, _ := newStore(t)

	state, err := store.Load()

	require.NoError(t, err)
	assert.Equal(t, domain.KindNone, state.Kind)
	assert.True(t, state.CumulativePnL.IsZero())
}

func TestLoad_CorruptFile(t *testing.T) {
	store, path := newStore(t)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	state, err := store.Load()

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStaleState)
	assert.Equal(t, domain.KindNone, state.Kind, "zero state must be usable despite the error")
	assert.Equal(t, domain.KindNone, store.Current().Kind)
}

func TestLoad_UnreadableFile(t *testing.T) {
	store, path := newStore(t)
	// A directory at the state path makes the read itself fail.
	require.NoError(t, os.Mkdir(path, 0o755))

	state, err := store.Load()

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStaleState)
	assert.Equal(t, domain.KindNone, state.Kind)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	store, _ := newStore(t)

	entryTime := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	saved := domain.PositionState{
		Kind:          domain.KindLong,
		EntryPrice:    decimal.RequireFromString("2641.1234567890123456"),
		EntryTime:     &entryTime,
		OpenTxRef:     "0xabc123",
		PositionSize:  decimal.RequireFromString("1053.77"),
		CumulativePnL: decimal.RequireFromString("-12.345"),
	}
	require.NoError(t, store.Save(saved))

	// A fresh store sees only what is on disk.
	fresh := NewPositionStore(store.path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	state, err := fresh.Load()
	require.NoError(t, err)

	assert.Equal(t, saved.Kind, state.Kind)
	assert.True(t, saved.EntryPrice.Equal(state.EntryPrice), "entry price must round-trip exactly, got %s", state.EntryPrice)
	assert.Equal(t, saved.EntryPrice.String(), state.EntryPrice.String())
	require.NotNil(t, state.EntryTime)
	assert.True(t, saved.EntryTime.Equal(*state.EntryTime))
	assert.Equal(t, saved.OpenTxRef, state.OpenTxRef)
	assert.True(t, saved.PositionSize.Equal(state.PositionSize))
	assert.True(t, saved.CumulativePnL.Equal(state.CumulativePnL))
}

func TestSaveLoad_SaveOfLoadIsNoOp(t *testing.T) {
	store, path := newStore(t)

	state, err := store.Load()
	require.NoError(t, err)
	require.NoError(t, store.Save(state))

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, store.Save(store.Current()))
	after, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, string(before), string(after))
}

func TestLoad_EnforcesNoneInvariant(t *testing.T) {
	store, path := newStore(t)
	// A record violating the none-state invariant, e.g. hand-edited.
	raw := `{"kind":"none","entry_price":"50","entry_time":"2025-01-01T00:00:00Z","open_tx_ref":"0xdead","position_size":"10","cumulative_pnl":"77.5"}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	state, err := store.Load()

	require.NoError(t, err)
	assert.Equal(t, domain.KindNone, state.Kind)
	assert.True(t, state.EntryPrice.IsZero())
	assert.True(t, state.PositionSize.IsZero())
	assert.Nil(t, state.EntryTime)
	assert.Empty(t, state.OpenTxRef)
	assert.True(t, state.CumulativePnL.Equal(decimal.RequireFromString("77.5")), "cumulative P&L survives")
}

func TestSave_LeavesNoTempFiles(t *testing.T) {
	store, path := newStore(t)

	require.NoError(t, store.Save(domain.PositionState{}.Flat()))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(path), entries[0].Name())
}

func TestCurrent_TracksLastSave(t *testing.T) {
	store, _ := newStore(t)

	state := domain.PositionState{}.Flat()
	state.CumulativePnL = decimal.RequireFromString("5")
	require.NoError(t, store.Save(state))

	assert.True(t, store.Current().CumulativePnL.Equal(decimal.RequireFromString("5")))
}
