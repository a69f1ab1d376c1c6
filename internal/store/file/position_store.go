// Package file implements the durable single-record position store on top
// of a JSON file with atomic overwrite semantics.
package file

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/alanyoungcy/trendbot/internal/domain"
)

// PositionStore implements domain.PositionStore backed by a single JSON
// file. Saves write to a temp file in the same directory and rename it over
// the record, so a partially written file is never observable.
type PositionStore struct {
	path   string
	logger *slog.Logger

	mu    sync.RWMutex
	state domain.PositionState
}

// NewPositionStore creates a store persisting to path. No I/O happens until
// Load or Save.
func NewPositionStore(path string, logger *slog.Logger) *PositionStore {
	return &PositionStore{
		path:   path,
		logger: logger.With(slog.String("component", "position_store")),
		state:  zeroState(),
	}
}

func zeroState() domain.PositionState {
	return domain.PositionState{}.Flat()
}

// Load reads the persisted record into memory. A missing file is a clean
// first start. A file that exists but cannot be read or parsed is a
// recoverable condition: the zero state is adopted and an error wrapping
// domain.ErrStaleState returned so the caller can report it; the returned
// state is usable either way.
func (s *PositionStore) Load() (domain.PositionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Info("no previous position state, starting fresh",
			slog.String("path", s.path),
		)
		s.state = zeroState()
		return s.state, nil
	}
	if err != nil {
		s.logger.Warn("position state unreadable, starting fresh",
			slog.String("path", s.path),
			slog.String("error", err.Error()),
		)
		s.state = zeroState()
		return s.state, fmt.Errorf("store/file: read %s: %w: %v", s.path, domain.ErrStaleState, err)
	}

	var state domain.PositionState
	if err := json.Unmarshal(data, &state); err != nil {
		s.logger.Warn("position state corrupt, starting fresh",
			slog.String("path", s.path),
			slog.String("error", err.Error()),
		)
		s.state = zeroState()
		return s.state, fmt.Errorf("store/file: parse %s: %w: %v", s.path, domain.ErrStaleState, err)
	}

	if state.Kind == "" {
		state.Kind = domain.KindNone
	}
	// Enforce the none-state invariant on whatever was on disk.
	if state.Kind == domain.KindNone {
		cum := state.CumulativePnL
		state = zeroState()
		state.CumulativePnL = cum
	}

	s.state = state
	s.logger.Info("loaded previous position state",
		slog.String("kind", string(state.Kind)),
		slog.String("cumulative_pnl", state.CumulativePnL.StringFixed(2)),
	)
	return s.state, nil
}

// Save atomically overwrites the record and adopts state as the in-memory
// authoritative copy. The in-memory copy is updated even when the disk
// write fails, so the process can continue and the next successful save
// repairs durability.
func (s *PositionStore) Save(state domain.PositionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = state

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("store/file: marshal position state: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("store/file: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("store/file: write position state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("store/file: sync position state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store/file: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store/file: replace position state: %w", err)
	}
	return nil
}

// Current returns the in-memory authoritative copy.
func (s *PositionStore) Current() domain.PositionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}
