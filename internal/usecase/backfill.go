package usecase

import (
	"context"
	"errors"
	"fmt"

	"CandleVault/internal/domain/models"
	domrepo "CandleVault/internal/domain/repository"
	"CandleVault/pkg/keylock"
	xlogger "CandleVault/pkg/logger"
	"CandleVault/pkg/util"
)

const (
	// maxValidationAttempts bounds the validate/backfill loop per resolve.
	maxValidationAttempts = 2
	// maxGapReloadAttempts bounds the gap-targeted reload inside one backfill.
	maxGapReloadAttempts = 3
)

var (
	// ErrInactiveInstrument marks a ticker whose loader produced zero new
	// candles: delisted, brand new, or otherwise unusable. Definitive, not
	// transient.
	ErrInactiveInstrument = errors.New("instrument inactive")

	// ErrValidationExhausted marks a ticker that still fails count or gap
	// validation after all backfill attempts.
	ErrValidationExhausted = errors.New("validation attempts exhausted")
)

// BackfillEvent describes a completed loader invocation, published for
// downstream consumers tracking cache churn.
type BackfillEvent struct {
	Exchange  string `json:"exchange"`
	Ticker    string `json:"ticker"`
	Timeframe string `json:"timeframe"`
	Kind      string `json:"kind"` // "full" or "gaps"
	Loaded    int    `json:"loaded"`
}

// BackfillEventSink receives backfill events. Implementations must be safe
// for concurrent use.
type BackfillEventSink interface {
	PublishBackfill(ctx context.Context, ev BackfillEvent) error
}

// BackfillCoordinator resolves a validated candle window for one instrument,
// backfilling through the loader when the cache is short or gapped. Backfills
// for the same (ticker, timeframe, exchange) are serialized via a per-key
// mutex so concurrent callers never trigger duplicate upstream loads: late
// arrivals block on the mutex, then re-read the cache the earlier backfill
// just repaired.
type BackfillCoordinator struct {
	reader  *CacheReader
	loader  domrepo.CandleLoader
	locks   *keylock.Registry
	events  BackfillEventSink
	logger  *xlogger.Logger
	metrics domrepo.Metrics
}

func NewBackfillCoordinator(
	reader *CacheReader,
	loader domrepo.CandleLoader,
	locks *keylock.Registry,
	events BackfillEventSink,
	logger *xlogger.Logger,
	metrics domrepo.Metrics,
) *BackfillCoordinator {
	return &BackfillCoordinator{
		reader:  reader,
		loader:  loader,
		locks:   locks,
		events:  events,
		logger:  logger,
		metrics: metrics,
	}
}

// Resolve returns the validated candle window for one instrument. The error
// is ErrInactiveInstrument or ErrValidationExhausted for definitive
// per-instrument outcomes; anything else is transient (store/loader failure).
func (c *BackfillCoordinator) Resolve(ctx context.Context, exchange, ticker string, tf domrepo.Timeframe, period, untilDate string) ([]models.Candle, error) {
	expected, err := ExpectedCount(tf, period)
	if err != nil {
		return nil, fmt.Errorf("expected count for %s: %w", ticker, err)
	}

	untilTime, ok := util.ParseTime(untilDate)
	if !ok {
		return nil, fmt.Errorf("parse until date %q for %s", untilDate, ticker)
	}
	until := untilTime.UnixMilli()

	candles := c.reader.Read(ctx, exchange, ticker, tf, expected, until)
	countRes := ValidateCount(candles, expected, tf)
	gapRep, err := DetectGaps(candles, tf)
	if err != nil {
		return nil, fmt.Errorf("gap detection for %s: %w", ticker, err)
	}

	for attempt := 1; attempt <= maxValidationAttempts; attempt++ {
		if countRes.Valid && gapRep.Valid {
			c.metrics.RecordResolution("valid")
			c.logger.Debug("candles validated",
				xlogger.String("ticker", ticker),
				xlogger.Int("candles", len(candles)),
				xlogger.Int("attempt", attempt))
			return candles, nil
		}

		if !countRes.Valid {
			c.logger.Debug("count validation failed",
				xlogger.String("ticker", ticker),
				xlogger.Int("attempt", attempt),
				xlogger.String("reason", countRes.Reason))
		}
		if !gapRep.Valid {
			c.logger.Debug("gap validation failed",
				xlogger.String("ticker", ticker),
				xlogger.Int("attempt", attempt),
				xlogger.String("reason", gapRep.Reason))
			c.metrics.RecordGaps(ticker, len(gapRep.Gaps), gapRep.TotalMissing())
		}

		// No backfill on the final attempt: a ticker that still fails after
		// a completed backfill cycle is treated as unusable.
		if attempt == maxValidationAttempts {
			c.metrics.RecordResolution("exhausted")
			return nil, fmt.Errorf("%w for %s: %s / %s", ErrValidationExhausted, ticker, countRes.Reason, gapRep.Reason)
		}

		loaded, kind, err := c.backfillLocked(ctx, exchange, ticker, tf, period, untilDate, expected, until, gapRep)
		if err != nil {
			c.metrics.RecordResolution("error")
			return nil, fmt.Errorf("backfill %s: %w", ticker, err)
		}
		if loaded == 0 {
			c.metrics.RecordResolution("inactive")
			return nil, fmt.Errorf("%w: %s", ErrInactiveInstrument, ticker)
		}

		if c.events != nil {
			if perr := c.events.PublishBackfill(ctx, BackfillEvent{
				Exchange:  exchange,
				Ticker:    ticker,
				Timeframe: string(tf),
				Kind:      kind,
				Loaded:    loaded,
			}); perr != nil {
				c.logger.Warn("backfill event publish failed",
					xlogger.String("ticker", ticker),
					xlogger.Error(perr))
			}
		}

		candles = c.reader.Read(ctx, exchange, ticker, tf, expected, until)
		countRes = ValidateCount(candles, expected, tf)
		gapRep, err = DetectGaps(candles, tf)
		if err != nil {
			return nil, fmt.Errorf("gap detection for %s: %w", ticker, err)
		}
	}

	c.metrics.RecordResolution("exhausted")
	return nil, fmt.Errorf("%w for %s", ErrValidationExhausted, ticker)
}

// backfillLocked runs one backfill cycle under the per-key mutex. Gap
// problems get the gap-targeted reload; a pure count shortfall gets a single
// full-range reload.
func (c *BackfillCoordinator) backfillLocked(ctx context.Context, exchange, ticker string, tf domrepo.Timeframe, period, untilDate string, expected int, until int64, gapRep models.GapReport) (int, string, error) {
	key := ticker + ":" + string(tf) + ":" + exchange
	lock := c.locks.Get(key)
	lock.Lock()
	defer lock.Unlock()

	c.logger.Debug("backfill lock acquired", xlogger.String("key", key))

	if !gapRep.Valid && len(gapRep.Gaps) > 0 {
		loaded, err := c.reloadForGaps(ctx, exchange, ticker, tf, period, untilDate, expected, until)
		return loaded, "gaps", err
	}

	c.metrics.RecordLoaderCall("full")
	loaded, err := c.loader.LoadAndSaveCandles(ctx, exchange, ticker, untilDate, tf, period)
	return loaded, "full", err
}

// reloadForGaps reloads the full range up to maxGapReloadAttempts times,
// stopping early once the series is contiguous again. Persisting gaps are
// logged and left for the outer validation loop; their repair is best-effort.
func (c *BackfillCoordinator) reloadForGaps(ctx context.Context, exchange, ticker string, tf domrepo.Timeframe, period, untilDate string, expected int, until int64) (int, error) {
	total := 0
	for attempt := 1; attempt <= maxGapReloadAttempts; attempt++ {
		c.metrics.RecordLoaderCall("gaps")
		loaded, err := c.loader.LoadAndSaveCandles(ctx, exchange, ticker, untilDate, tf, period)
		if err != nil {
			return total, err
		}
		if loaded == 0 {
			c.logger.Warn("gap reload produced no candles",
				xlogger.String("ticker", ticker),
				xlogger.Int("attempt", attempt))
			continue
		}
		total += loaded

		reloaded := c.reader.Read(ctx, exchange, ticker, tf, expected, until)
		rep, err := DetectGaps(reloaded, tf)
		if err != nil {
			return total, err
		}
		if rep.Valid {
			c.logger.Debug("gaps repaired",
				xlogger.String("ticker", ticker),
				xlogger.Int("attempt", attempt),
				xlogger.Int("loaded", total))
			return total, nil
		}
		c.logger.Warn("gaps persist after reload",
			xlogger.String("ticker", ticker),
			xlogger.Int("attempt", attempt),
			xlogger.String("reason", rep.Reason))
	}
	return total, nil
}
