package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"CandleVault/internal/domain/models"
	domrepo "CandleVault/internal/domain/repository"
	xlogger "CandleVault/pkg/logger"
)

const (
	defaultMaxWorkers   = 5
	defaultBatchTimeout = 10 * time.Minute
)

// MultiInstrumentOrchestrator fans one resolve pipeline out per instrument
// inside a bounded worker pool. Instruments are fully isolated: one ticker
// failing, timing out, or coming back inactive never aborts the batch.
type MultiInstrumentOrchestrator struct {
	coordinator *BackfillCoordinator
	logger      *xlogger.Logger
	metrics     domrepo.Metrics
	maxWorkers  int
	timeout     time.Duration
}

// OrchestratorOption configures MultiInstrumentOrchestrator.
type OrchestratorOption func(*MultiInstrumentOrchestrator)

// WithMaxWorkers caps the worker pool size.
func WithMaxWorkers(n int) OrchestratorOption {
	return func(o *MultiInstrumentOrchestrator) {
		if n > 0 {
			o.maxWorkers = n
		}
	}
}

// WithBatchTimeout caps how long a whole batch may run.
func WithBatchTimeout(d time.Duration) OrchestratorOption {
	return func(o *MultiInstrumentOrchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

func NewMultiInstrumentOrchestrator(coordinator *BackfillCoordinator, logger *xlogger.Logger, metrics domrepo.Metrics, opts ...OrchestratorOption) *MultiInstrumentOrchestrator {
	o := &MultiInstrumentOrchestrator{
		coordinator: coordinator,
		logger:      logger,
		metrics:     metrics,
		maxWorkers:  defaultMaxWorkers,
		timeout:     defaultBatchTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ResolveAll resolves every ticker concurrently and returns only those that
// produced a non-empty validated window. On batch deadline, tickers already
// resolved are kept; in-flight ones are cancelled through the context and
// simply absent from the result.
func (o *MultiInstrumentOrchestrator) ResolveAll(ctx context.Context, exchange string, tickers []string, untilDate string, tf domrepo.Timeframe, period string) map[string][]models.Candle {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	workers := o.maxWorkers
	if len(tickers) < workers {
		workers = len(tickers)
	}
	sem := make(chan struct{}, workers)

	var (
		mu     sync.Mutex
		result = make(map[string][]models.Candle, len(tickers))
		wg     sync.WaitGroup
	)

	o.logger.Info("resolving batch",
		xlogger.Int("tickers", len(tickers)),
		xlogger.Int("workers", workers),
		xlogger.String("timeframe", string(tf)),
		xlogger.String("period", period))

dispatch:
	for _, ticker := range tickers {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			o.logger.Warn("batch deadline hit, abandoning remaining tickers",
				xlogger.String("ticker", ticker))
			break dispatch
		}

		wg.Add(1)
		go func(ticker string) {
			defer wg.Done()
			defer func() { <-sem }()

			taskStart := time.Now()
			candles, err := o.coordinator.Resolve(ctx, exchange, ticker, tf, period, untilDate)
			o.metrics.RecordLatency("resolve", time.Since(taskStart).Seconds())

			switch {
			case err == nil && len(candles) > 0:
				mu.Lock()
				result[ticker] = candles
				mu.Unlock()
				o.logger.Debug("ticker resolved",
					xlogger.String("ticker", ticker),
					xlogger.Int("candles", len(candles)),
					xlogger.Duration("took", time.Since(taskStart)))
			case errors.Is(err, ErrInactiveInstrument), errors.Is(err, ErrValidationExhausted):
				o.logger.Warn("ticker skipped",
					xlogger.String("ticker", ticker),
					xlogger.Error(err))
			case err != nil:
				o.logger.Error("ticker resolution failed",
					xlogger.String("ticker", ticker),
					xlogger.Error(err))
			default:
				o.logger.Warn("ticker returned no candles", xlogger.String("ticker", ticker))
			}
		}(ticker)
	}

	wg.Wait()

	o.logger.Info("batch resolved",
		xlogger.Int("resolved", len(result)),
		xlogger.Int("requested", len(tickers)),
		xlogger.Duration("took", time.Since(start)))
	o.metrics.RecordLatency("resolve_all", time.Since(start).Seconds())

	return result
}
