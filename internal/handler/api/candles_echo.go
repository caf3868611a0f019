package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	models "CandleVault/internal/domain/models"
	domrepo "CandleVault/internal/domain/repository"
	"CandleVault/internal/usecase"
	"CandleVault/pkg/cache"
	xhttp "CandleVault/pkg/http"
	xlogger "CandleVault/pkg/logger"
	"CandleVault/pkg/util"

	"github.com/labstack/echo/v4"
)

const (
	tickerFetchAttempts = 3
	minVolumeUnit       = 1_000_000.0 // request minVolume is in millions
)

// CandlesHandler serves the batch validated-candles endpoint.
type CandlesHandler struct {
	logger    *xlogger.Logger
	orch      *usecase.MultiInstrumentOrchestrator
	recon     *usecase.CrossInstrumentReconciler
	tickers   domrepo.TickerSource
	respCache  cache.Service // nil disables response caching
	benchmark  string
	cacheTTL   time.Duration
	retryDelay time.Duration // base backoff for ticker universe fetches
}

func NewCandlesHandler(
	logger *xlogger.Logger,
	orch *usecase.MultiInstrumentOrchestrator,
	recon *usecase.CrossInstrumentReconciler,
	tickers domrepo.TickerSource,
	respCache cache.Service,
	benchmark string,
	cacheTTL time.Duration,
) *CandlesHandler {
	return &CandlesHandler{
		logger:     logger,
		orch:       orch,
		recon:      recon,
		tickers:    tickers,
		respCache:  respCache,
		benchmark:  benchmark,
		cacheTTL:   cacheTTL,
		retryDelay: time.Second,
	}
}

func (h *CandlesHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/candles")
	g.POST("/validated", h.Validated)
}

// Validated resolves, validates, and reconciles candle windows for a batch of
// tickers. Instruments that cannot be made complete and contiguous are absent
// from the response, never an error.
func (h *CandlesHandler) Validated(c echo.Context) error {
	req := &models.ValidatedCandlesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	ctx := c.Request().Context()
	tf := domrepo.Timeframe(req.Timeframe)
	minVolume := req.MinVolume * minVolumeUnit

	untilDate := req.UntilDate
	if untilDate == "" {
		untilDate = startOfTodayUTC()
	}

	// Resolve the working ticker set. An explicit list gets the benchmark
	// appended for cross-validation; an empty list means the whole eligible
	// universe from the ticker source.
	var (
		toProcess []string
		requested []string // non-nil when the caller named tickers
	)
	if len(req.Tickers) > 0 {
		requested = append(requested, req.Tickers...)
		toProcess = append(toProcess, req.Tickers...)
		if !containsTicker(toProcess, h.benchmark) {
			toProcess = append(toProcess, h.benchmark)
			h.logger.Debug("benchmark appended for reconciliation",
				xlogger.String("benchmark", h.benchmark))
		}
	} else {
		universe, err := h.listTickersWithRetry(ctx, minVolume, req.Sorted)
		if err != nil {
			h.logger.Error("ticker universe fetch failed", xlogger.Error(err))
			return xhttp.ServiceUnavailableResponse(c, "ticker universe temporarily unavailable")
		}
		toProcess = excludeTickers(universe, req.ExcludeTickers)
	}

	if len(toProcess) == 0 {
		return xhttp.BadRequestResponse(c, []xhttp.ValidationError{{
			Code:    "ERR_EMPTY_TICKERS",
			Field:   "tickers",
			Message: "no tickers to process",
		}})
	}

	cacheKey := h.cacheKey(req, tf, untilDate, toProcess)
	if req.UseCache && h.respCache != nil {
		var cached models.ValidatedCandlesResponse
		if err := h.respCache.Get(ctx, cacheKey, &cached); err == nil {
			h.logger.Debug("validated batch served from cache",
				xlogger.Int("tickers", len(cached)))
			return xhttp.SuccessResponse(c, cached)
		}
	}

	resolved := h.orch.ResolveAll(ctx, req.Exchange, toProcess, untilDate, tf, req.Period)
	reconciled := h.recon.Reconcile(resolved)

	final := reconciled
	if requested != nil {
		// Strip the auto-appended benchmark (and anything else the caller
		// did not ask for).
		final = make(models.ValidatedCandlesResponse, len(requested))
		for _, t := range requested {
			if candles, ok := reconciled[t]; ok {
				final[t] = candles
			}
		}
	}

	if req.UseCache && h.respCache != nil && len(final) > 0 {
		if err := h.respCache.Set(ctx, cacheKey, final, h.cacheTTL); err != nil {
			h.logger.Warn("validated batch cache write failed", xlogger.Error(err))
		}
	}

	h.logger.Info("validated batch served",
		xlogger.Int("tickers", len(final)),
		xlogger.Int("requested", len(toProcess)))
	return xhttp.SuccessResponse(c, models.ValidatedCandlesResponse(final))
}

// listTickersWithRetry fetches the eligible universe with exponential backoff
// (1s, 2s, 4s). Exhausted retries fail the whole batch.
func (h *CandlesHandler) listTickersWithRetry(ctx context.Context, minVolume float64, sorted bool) ([]string, error) {
	var lastErr error
	for attempt := 1; attempt <= tickerFetchAttempts; attempt++ {
		tickers, err := h.tickers.ListValidTickers(ctx, minVolume, sorted)
		if err == nil {
			return tickers, nil
		}
		lastErr = err
		h.logger.Warn("ticker fetch failed",
			xlogger.Int("attempt", attempt),
			xlogger.Error(err))

		if attempt == tickerFetchAttempts {
			break
		}
		delay := h.retryDelay << (attempt - 1)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("list tickers after %d attempts: %w", tickerFetchAttempts, lastErr)
}

func (h *CandlesHandler) cacheKey(req *models.ValidatedCandlesRequest, tf domrepo.Timeframe, untilDate string, tickers []string) string {
	base := cache.GenerateKeyWithParams("candles:validated",
		req.Exchange, string(tf), req.Period, untilDate, req.MinVolume, req.Sorted)
	return base + ":" + cache.HashKey(strings.Join(tickers, ","))
}

func startOfTodayUTC() string {
	now := time.Now().UTC()
	day, _ := util.AlignFromTo(now, now, "1D")
	return day.Format("2006-01-02T15:04:05Z")
}

func containsTicker(tickers []string, t string) bool {
	for _, x := range tickers {
		if x == t {
			return true
		}
	}
	return false
}

func excludeTickers(tickers, exclude []string) []string {
	if len(exclude) == 0 {
		return tickers
	}
	drop := make(map[string]struct{}, len(exclude))
	for _, t := range exclude {
		drop[t] = struct{}{}
	}
	kept := make([]string, 0, len(tickers))
	for _, t := range tickers {
		if _, ok := drop[t]; !ok {
			kept = append(kept, t)
		}
	}
	return kept
}
