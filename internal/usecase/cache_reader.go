package usecase

import (
	"context"
	"sort"

	"CandleVault/internal/domain/models"
	domrepo "CandleVault/internal/domain/repository"
	xlogger "CandleVault/pkg/logger"
)

// CacheReader reads the most recent candle window for an instrument from the
// store, strictly before an until-timestamp.
type CacheReader struct {
	store  domrepo.CandleStore
	logger *xlogger.Logger
}

func NewCacheReader(store domrepo.CandleStore, logger *xlogger.Logger) *CacheReader {
	return &CacheReader{store: store, logger: logger}
}

// Read returns up to limit candles with timestamp < until (epoch ms),
// ascending by timestamp. Store errors are logged and yield an empty slice;
// the validation stages downstream decide what to do about missing data.
func (r *CacheReader) Read(ctx context.Context, exchange, ticker string, tf domrepo.Timeframe, limit int, until int64) []models.Candle {
	rows, err := r.store.FindBefore(ctx, exchange, ticker, tf, until)
	if err != nil {
		r.logger.Error("cache read failed",
			xlogger.String("ticker", ticker),
			xlogger.String("timeframe", string(tf)),
			xlogger.Error(err))
		return nil
	}

	// Store returns newest-first; keep the limit most recent, then restore
	// chronological order for gap analysis.
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Timestamp < rows[j].Timestamp })

	r.logger.Debug("cache window read",
		xlogger.String("ticker", ticker),
		xlogger.String("timeframe", string(tf)),
		xlogger.Int("candles", len(rows)),
		xlogger.Int64("until", until))

	return rows
}
