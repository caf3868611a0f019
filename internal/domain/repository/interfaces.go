package repository

import (
	"context"

	"CandleVault/internal/domain/models"
)

// CandleStore provides read access to the persistent candle cache. The
// service never writes candles directly; rows are created only by the
// loader collaborator.
type CandleStore interface {
	// FindBefore returns every cached candle for (exchange, ticker,
	// timeframe) with timestamp strictly below until (epoch ms), ordered
	// descending by timestamp. The caller applies its own limit.
	FindBefore(ctx context.Context, exchange, ticker string, tf Timeframe, until int64) ([]models.Candle, error)
	Health(ctx context.Context) error
}

// CandleLoader backfills missing candles from the upstream source into the
// store. A zero count with a nil error is a definitive "inactive instrument"
// signal, not a transient failure.
type CandleLoader interface {
	LoadAndSaveCandles(ctx context.Context, exchange, ticker, untilDate string, tf Timeframe, period string) (int, error)
}

// TickerSource lists the eligible instrument universe.
type TickerSource interface {
	ListValidTickers(ctx context.Context, minVolume float64, sorted bool) ([]string, error)
}

// Metrics records operational metrics for the candle pipeline.
type Metrics interface {
	RecordResolution(outcome string)
	RecordLoaderCall(kind string)
	RecordGaps(ticker string, gaps, missing int)
	RecordDropped(reason string)
	RecordLatency(op string, seconds float64)
}
