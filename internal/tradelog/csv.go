// Package tradelog appends completed round trips to an append-only CSV
// history file.
package tradelog

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/alanyoungcy/trendbot/internal/domain"
)

var header = []string{
	"id", "kind", "entry_price", "exit_price", "entry_time", "exit_time",
	"duration", "pnl", "pnl_percent", "open_tx", "close_tx",
}

// CSVLog implements domain.TradeLog on a local CSV file. The header row is
// written when the file is first created. Rows are flushed per append so a
// crash loses at most the row being written.
type CSVLog struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewCSVLog creates a trade log writing to path.
func NewCSVLog(path string, logger *slog.Logger) *CSVLog {
	return &CSVLog{
		path:   path,
		logger: logger.With(slog.String("component", "tradelog")),
	}
}

// Append writes one record. Errors are returned for the caller to report;
// they are never treated as fatal anywhere in the bot.
func (l *CSVLog) Append(record domain.TradeRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("tradelog: open %s: %w", l.path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("tradelog: stat %s: %w", l.path, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("tradelog: write header: %w", err)
		}
	}

	row := []string{
		record.ID,
		string(record.Kind),
		record.EntryPrice.String(),
		record.ExitPrice.String(),
		record.EntryTime.UTC().Format(time.RFC3339),
		record.ExitTime.UTC().Format(time.RFC3339),
		record.Duration,
		record.PnL.StringFixed(2),
		record.PnLPercent.StringFixed(2),
		record.OpenTxRef,
		record.CloseTxRef,
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("tradelog: write row: %w", err)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("tradelog: flush: %w", err)
	}

	l.logger.Info("trade logged",
		slog.String("id", record.ID),
		slog.String("pnl", record.PnL.StringFixed(2)),
	)
	return nil
}
