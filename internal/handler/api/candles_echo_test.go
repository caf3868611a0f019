package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"CandleVault/internal/domain/models"
	domrepo "CandleVault/internal/domain/repository"
	"CandleVault/internal/usecase"
	"CandleVault/pkg/keylock"
	xlogger "CandleVault/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	benchmark     = "BTC-USDT-SWAP"
	untilDate     = "2024-06-01T00:00:00Z"
	candlesInTest = 720 // 1H bars in one month
)

var until = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

type memStore struct {
	mu   sync.Mutex
	rows map[string][]models.Candle
}

func (s *memStore) put(ticker string, rows []models.Candle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[ticker] = rows
}

func (s *memStore) FindBefore(_ context.Context, _, ticker string, _ domrepo.Timeframe, until int64) ([]models.Candle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.rows[ticker]
	out := make([]models.Candle, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		if rows[i].Timestamp < until {
			out = append(out, rows[i])
		}
	}
	return out, nil
}

func (s *memStore) Health(context.Context) error { return nil }

type inactiveLoader struct{}

func (inactiveLoader) LoadAndSaveCandles(context.Context, string, string, string, domrepo.Timeframe, string) (int, error) {
	return 0, nil
}

type stubTickers struct {
	mu        sync.Mutex
	tickers   []string
	err       error // returned while calls <= failUntil
	failUntil int
	minVolume float64
	calls     int
}

func (s *stubTickers) ListValidTickers(_ context.Context, minVolume float64, _ bool) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.minVolume = minVolume
	if s.calls <= s.failUntil {
		return nil, s.err
	}
	return s.tickers, nil
}

func (s *stubTickers) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type nilMetrics struct{}

func (nilMetrics) RecordResolution(string)       {}
func (nilMetrics) RecordLoaderCall(string)       {}
func (nilMetrics) RecordGaps(string, int, int)   {}
func (nilMetrics) RecordDropped(string)          {}
func (nilMetrics) RecordLatency(string, float64) {}

func series(ticker string, n int) []models.Candle {
	step := int64(time.Hour / time.Millisecond)
	out := make([]models.Candle, n)
	for i := 0; i < n; i++ {
		out[i] = models.Candle{
			Ticker:    ticker,
			Timeframe: "1H",
			Exchange:  "OKX",
			Timestamp: until - int64(n-i)*step,
			Open:      1, High: 2, Low: 0.5, Close: 1.5, Volume: 10,
		}
	}
	return out
}

func newTestHandler(t *testing.T, store *memStore, tickers *stubTickers) *CandlesHandler {
	t.Helper()
	logger, err := xlogger.New(&xlogger.Config{Level: "error", Format: "console", Output: "stderr"})
	require.NoError(t, err)

	reader := usecase.NewCacheReader(store, logger)
	coord := usecase.NewBackfillCoordinator(reader, inactiveLoader{}, keylock.New(4), nil, logger, nilMetrics{})
	orch := usecase.NewMultiInstrumentOrchestrator(coord, logger, nilMetrics{}, usecase.WithMaxWorkers(3))
	recon := usecase.NewCrossInstrumentReconciler(logger, nilMetrics{})
	return NewCandlesHandler(logger, orch, recon, tickers, nil, benchmark, time.Minute)
}

func postValidated(t *testing.T, h *CandlesHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/candles/validated", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	require.NoError(t, h.Validated(e.NewContext(req, rec)))
	return rec
}

type validatedResponse struct {
	Status int                             `json:"status"`
	Data   models.ValidatedCandlesResponse `json:"data"`
}

func TestValidatedStripsAutoAppendedBenchmark(t *testing.T) {
	store := &memStore{rows: make(map[string][]models.Candle)}
	store.put("ETH-USDT-SWAP", series("ETH-USDT-SWAP", candlesInTest))
	store.put(benchmark, series(benchmark, candlesInTest))
	h := newTestHandler(t, store, &stubTickers{})

	rec := postValidated(t, h, `{
		"exchange": "OKX",
		"timeframe": "1H",
		"period": "month",
		"untilDate": "`+untilDate+`",
		"tickers": ["ETH-USDT-SWAP"]
	}`)

	var res validatedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Contains(t, res.Data, "ETH-USDT-SWAP")
	assert.NotContains(t, res.Data, benchmark)
	assert.Len(t, res.Data["ETH-USDT-SWAP"], candlesInTest)
}

func TestValidatedBenchmarkRequestedExplicitly(t *testing.T) {
	store := &memStore{rows: make(map[string][]models.Candle)}
	store.put(benchmark, series(benchmark, candlesInTest))
	h := newTestHandler(t, store, &stubTickers{})

	rec := postValidated(t, h, `{
		"exchange": "OKX",
		"timeframe": "1H",
		"period": "month",
		"untilDate": "`+untilDate+`",
		"tickers": ["`+benchmark+`"]
	}`)

	var res validatedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Contains(t, res.Data, benchmark)
}

func TestValidatedUniverseWithExclusions(t *testing.T) {
	store := &memStore{rows: make(map[string][]models.Candle)}
	store.put("AAA-USDT-SWAP", series("AAA-USDT-SWAP", candlesInTest))
	store.put("BBB-USDT-SWAP", series("BBB-USDT-SWAP", candlesInTest))
	src := &stubTickers{tickers: []string{"AAA-USDT-SWAP", "BBB-USDT-SWAP"}}
	h := newTestHandler(t, store, src)

	rec := postValidated(t, h, `{
		"exchange": "OKX",
		"timeframe": "1H",
		"period": "month",
		"untilDate": "`+untilDate+`",
		"minVolume": 10,
		"excludeTickers": ["BBB-USDT-SWAP"]
	}`)

	var res validatedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Contains(t, res.Data, "AAA-USDT-SWAP")
	assert.NotContains(t, res.Data, "BBB-USDT-SWAP")
	// minVolume arrives in millions and is scaled before hitting the source
	assert.Equal(t, 10_000_000.0, src.minVolume)
}

func TestValidatedRejectsInvalidTimeframe(t *testing.T) {
	h := newTestHandler(t, &memStore{rows: make(map[string][]models.Candle)}, &stubTickers{})

	rec := postValidated(t, h, `{
		"exchange": "OKX",
		"timeframe": "2H",
		"period": "month",
		"tickers": ["ETH-USDT-SWAP"]
	}`)

	var res struct {
		Status int `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, http.StatusBadRequest, res.Status)
}

func TestValidatedEmptyUniverseIsBadRequest(t *testing.T) {
	src := &stubTickers{tickers: []string{"AAA-USDT-SWAP"}}
	h := newTestHandler(t, &memStore{rows: make(map[string][]models.Candle)}, src)

	rec := postValidated(t, h, `{
		"exchange": "OKX",
		"timeframe": "1H",
		"period": "month",
		"untilDate": "`+untilDate+`",
		"excludeTickers": ["AAA-USDT-SWAP"]
	}`)

	var res struct {
		Status int `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, http.StatusBadRequest, res.Status)
}

func TestValidatedUniverseFetchExhaustsRetries(t *testing.T) {
	src := &stubTickers{err: errors.New("universe unavailable"), failUntil: 99}
	h := newTestHandler(t, &memStore{rows: make(map[string][]models.Candle)}, src)
	h.retryDelay = time.Millisecond

	rec := postValidated(t, h, `{
		"exchange": "OKX",
		"timeframe": "1H",
		"period": "month",
		"untilDate": "`+untilDate+`"
	}`)

	var res struct {
		Status int `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, http.StatusServiceUnavailable, res.Status)
	assert.Equal(t, 3, src.callCount())
}

func TestValidatedUniverseFetchRecoversOnRetry(t *testing.T) {
	store := &memStore{rows: make(map[string][]models.Candle)}
	store.put("AAA-USDT-SWAP", series("AAA-USDT-SWAP", candlesInTest))
	src := &stubTickers{
		tickers:   []string{"AAA-USDT-SWAP"},
		err:       errors.New("universe flaky"),
		failUntil: 2, // first two attempts fail, third succeeds
	}
	h := newTestHandler(t, store, src)
	h.retryDelay = time.Millisecond

	rec := postValidated(t, h, `{
		"exchange": "OKX",
		"timeframe": "1H",
		"period": "month",
		"untilDate": "`+untilDate+`"
	}`)

	var res validatedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Contains(t, res.Data, "AAA-USDT-SWAP")
	assert.Equal(t, 3, src.callCount())
}
