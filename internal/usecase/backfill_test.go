package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"CandleVault/internal/domain/models"
	domrepo "CandleVault/internal/domain/repository"
	"CandleVault/pkg/keylock"
	xlogger "CandleVault/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUntilDate = "2024-06-01T00:00:00Z"

var testUntil = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

func testLogger(t *testing.T) *xlogger.Logger {
	t.Helper()
	l, err := xlogger.New(&xlogger.Config{Level: "error", Format: "console", Output: "stderr"})
	require.NoError(t, err)
	return l
}

// makeSeries builds n contiguous candles ending one step before until.
func makeSeries(ticker string, tf domrepo.Timeframe, n int, until int64) []models.Candle {
	step, _ := tf.DurationMillis()
	out := make([]models.Candle, n)
	for i := 0; i < n; i++ {
		out[i] = models.Candle{
			Ticker:    ticker,
			Timeframe: string(tf),
			Exchange:  "OKX",
			Timestamp: until - int64(n-i)*step,
			Open:      1, High: 2, Low: 0.5, Close: 1.5, Volume: 10,
		}
	}
	return out
}

// dropRange returns a copy of series without indices [from, to).
func dropRange(series []models.Candle, from, to int) []models.Candle {
	out := make([]models.Candle, 0, len(series)-(to-from))
	out = append(out, series[:from]...)
	out = append(out, series[to:]...)
	return out
}

type fakeStore struct {
	mu   sync.Mutex
	rows map[string][]models.Candle // ascending per ticker
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string][]models.Candle)}
}

func (s *fakeStore) put(ticker string, rows []models.Candle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[ticker] = rows
}

func (s *fakeStore) FindBefore(_ context.Context, _, ticker string, _ domrepo.Timeframe, until int64) ([]models.Candle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.rows[ticker]
	out := make([]models.Candle, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- { // newest first, like the real store
		if rows[i].Timestamp < until {
			out = append(out, rows[i])
		}
	}
	return out, nil
}

func (s *fakeStore) Health(context.Context) error { return nil }

type fakeLoader struct {
	mu    sync.Mutex
	calls int
	fn    func(ticker string) (int, error)
}

func (l *fakeLoader) LoadAndSaveCandles(_ context.Context, _, ticker, _ string, _ domrepo.Timeframe, _ string) (int, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	if l.fn == nil {
		return 0, nil
	}
	return l.fn(ticker)
}

func (l *fakeLoader) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

type noopMetrics struct{}

func (noopMetrics) RecordResolution(string)       {}
func (noopMetrics) RecordLoaderCall(string)       {}
func (noopMetrics) RecordGaps(string, int, int)   {}
func (noopMetrics) RecordDropped(string)          {}
func (noopMetrics) RecordLatency(string, float64) {}

type captureSink struct {
	mu     sync.Mutex
	events []BackfillEvent
}

func (s *captureSink) PublishBackfill(_ context.Context, ev BackfillEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *captureSink) all() []BackfillEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]BackfillEvent(nil), s.events...)
}

func newTestCoordinator(t *testing.T, store *fakeStore, loader *fakeLoader, sink BackfillEventSink) *BackfillCoordinator {
	t.Helper()
	reader := NewCacheReader(store, testLogger(t))
	return NewBackfillCoordinator(reader, loader, keylock.New(4), sink, testLogger(t), noopMetrics{})
}

func TestResolveValidCacheSkipsLoader(t *testing.T) {
	store := newFakeStore()
	store.put("BTC-USDT-SWAP", makeSeries("BTC-USDT-SWAP", domrepo.TF1H, 720, testUntil))
	loader := &fakeLoader{}
	coord := newTestCoordinator(t, store, loader, nil)

	candles, err := coord.Resolve(context.Background(), "OKX", "BTC-USDT-SWAP", domrepo.TF1H, "month", testUntilDate)
	require.NoError(t, err)
	assert.Len(t, candles, 720)
	assert.Equal(t, 0, loader.callCount())

	// second resolve against a warm cache must also be loader-free
	_, err = coord.Resolve(context.Background(), "OKX", "BTC-USDT-SWAP", domrepo.TF1H, "month", testUntilDate)
	require.NoError(t, err)
	assert.Equal(t, 0, loader.callCount())
}

func TestResolveBackfillsShortCache(t *testing.T) {
	store := newFakeStore()
	store.put("ETH-USDT-SWAP", makeSeries("ETH-USDT-SWAP", domrepo.TF1H, 600, testUntil))
	sink := &captureSink{}
	loader := &fakeLoader{fn: func(ticker string) (int, error) {
		store.put(ticker, makeSeries(ticker, domrepo.TF1H, 720, testUntil))
		return 120, nil
	}}
	coord := newTestCoordinator(t, store, loader, sink)

	candles, err := coord.Resolve(context.Background(), "OKX", "ETH-USDT-SWAP", domrepo.TF1H, "month", testUntilDate)
	require.NoError(t, err)
	assert.Len(t, candles, 720)
	assert.Equal(t, 1, loader.callCount())

	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, "full", events[0].Kind)
	assert.Equal(t, 120, events[0].Loaded)
	assert.Equal(t, "ETH-USDT-SWAP", events[0].Ticker)
}

func TestResolveInactiveInstrument(t *testing.T) {
	store := newFakeStore()
	loader := &fakeLoader{} // zero loaded, nil error
	coord := newTestCoordinator(t, store, loader, nil)

	_, err := coord.Resolve(context.Background(), "OKX", "DEAD-USDT-SWAP", domrepo.TF1H, "month", testUntilDate)
	assert.ErrorIs(t, err, ErrInactiveInstrument)
	assert.Equal(t, 1, loader.callCount())
}

func TestResolveExhaustedWhenBackfillDoesNotHelp(t *testing.T) {
	store := newFakeStore()
	store.put("THIN-USDT-SWAP", makeSeries("THIN-USDT-SWAP", domrepo.TF1H, 600, testUntil))
	loader := &fakeLoader{fn: func(string) (int, error) {
		return 10, nil // claims rows but the cache stays short
	}}
	coord := newTestCoordinator(t, store, loader, nil)

	_, err := coord.Resolve(context.Background(), "OKX", "THIN-USDT-SWAP", domrepo.TF1H, "month", testUntilDate)
	assert.ErrorIs(t, err, ErrValidationExhausted)
	assert.Equal(t, 1, loader.callCount())
}

func TestResolveRepairsGaps(t *testing.T) {
	full := makeSeries("SOL-USDT-SWAP", domrepo.TF1H, 720, testUntil)
	store := newFakeStore()
	store.put("SOL-USDT-SWAP", dropRange(full, 300, 305)) // count ok, series gapped
	sink := &captureSink{}
	loader := &fakeLoader{fn: func(ticker string) (int, error) {
		store.put(ticker, full)
		return 5, nil
	}}
	coord := newTestCoordinator(t, store, loader, sink)

	candles, err := coord.Resolve(context.Background(), "OKX", "SOL-USDT-SWAP", domrepo.TF1H, "month", testUntilDate)
	require.NoError(t, err)
	assert.Len(t, candles, 720)
	assert.Equal(t, 1, loader.callCount())

	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, "gaps", events[0].Kind)
}

func TestResolveRejectsBadUntilDate(t *testing.T) {
	coord := newTestCoordinator(t, newFakeStore(), &fakeLoader{}, nil)
	_, err := coord.Resolve(context.Background(), "OKX", "BTC-USDT-SWAP", domrepo.TF1H, "month", "not-a-date")
	assert.Error(t, err)
}

func TestResolveRejectsInvalidTimeframe(t *testing.T) {
	coord := newTestCoordinator(t, newFakeStore(), &fakeLoader{}, nil)
	_, err := coord.Resolve(context.Background(), "OKX", "BTC-USDT-SWAP", domrepo.Timeframe("2H"), "month", testUntilDate)
	assert.ErrorIs(t, err, domrepo.ErrInvalidTimeframe)
}

func TestResolveSerializesLoaderPerInstrument(t *testing.T) {
	store := newFakeStore()
	store.put("XRP-USDT-SWAP", makeSeries("XRP-USDT-SWAP", domrepo.TF1H, 600, testUntil))

	var (
		mu      sync.Mutex
		current int
		peak    int
	)
	loader := &fakeLoader{fn: func(ticker string) (int, error) {
		mu.Lock()
		current++
		if current > peak {
			peak = current
		}
		mu.Unlock()

		time.Sleep(10 * time.Millisecond)
		store.put(ticker, makeSeries(ticker, domrepo.TF1H, 720, testUntil))

		mu.Lock()
		current--
		mu.Unlock()
		return 120, nil
	}}
	coord := newTestCoordinator(t, store, loader, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			candles, err := coord.Resolve(context.Background(), "OKX", "XRP-USDT-SWAP", domrepo.TF1H, "month", testUntilDate)
			assert.NoError(t, err)
			assert.Len(t, candles, 720)
		}()
	}
	wg.Wait()

	// backfills for one (ticker, timeframe, exchange) key must serialize:
	// never more than one loader call in flight
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, peak)
	assert.GreaterOrEqual(t, loader.callCount(), 1)
}
