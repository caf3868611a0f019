package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	domrepo "CandleVault/internal/domain/repository"

	"github.com/stretchr/testify/assert"
)

func TestResolveAllKeepsOnlyResolvedTickers(t *testing.T) {
	store := newFakeStore()
	store.put("AAA-USDT-SWAP", makeSeries("AAA-USDT-SWAP", domrepo.TF1H, 720, testUntil))
	store.put("BBB-USDT-SWAP", makeSeries("BBB-USDT-SWAP", domrepo.TF1H, 720, testUntil))
	loader := &fakeLoader{} // anything not cached comes back inactive
	coord := newTestCoordinator(t, store, loader, nil)
	orch := NewMultiInstrumentOrchestrator(coord, testLogger(t), noopMetrics{}, WithMaxWorkers(3))

	result := orch.ResolveAll(context.Background(), "OKX",
		[]string{"AAA-USDT-SWAP", "BBB-USDT-SWAP", "DEAD-USDT-SWAP"},
		testUntilDate, domrepo.TF1H, "month")

	assert.Len(t, result, 2)
	assert.Contains(t, result, "AAA-USDT-SWAP")
	assert.Contains(t, result, "BBB-USDT-SWAP")
	assert.NotContains(t, result, "DEAD-USDT-SWAP")
}

func TestResolveAllEmptyBatch(t *testing.T) {
	coord := newTestCoordinator(t, newFakeStore(), &fakeLoader{}, nil)
	orch := NewMultiInstrumentOrchestrator(coord, testLogger(t), noopMetrics{})

	result := orch.ResolveAll(context.Background(), "OKX", nil, testUntilDate, domrepo.TF1H, "month")
	assert.Empty(t, result)
}

func TestResolveAllBoundsConcurrency(t *testing.T) {
	var (
		mu      sync.Mutex
		current int
		peak    int
	)
	loader := &fakeLoader{fn: func(string) (int, error) {
		mu.Lock()
		current++
		if current > peak {
			peak = current
		}
		mu.Unlock()

		time.Sleep(20 * time.Millisecond)

		mu.Lock()
		current--
		mu.Unlock()
		return 0, nil // inactive, one loader call per ticker
	}}
	coord := newTestCoordinator(t, newFakeStore(), loader, nil)
	orch := NewMultiInstrumentOrchestrator(coord, testLogger(t), noopMetrics{}, WithMaxWorkers(2))

	tickers := []string{"A", "B", "C", "D", "E", "F"}
	result := orch.ResolveAll(context.Background(), "OKX", tickers, testUntilDate, domrepo.TF1H, "month")

	assert.Empty(t, result)
	assert.Equal(t, len(tickers), loader.callCount())
	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, peak, 2)
}

func TestResolveAllHonorsBatchTimeout(t *testing.T) {
	block := make(chan struct{})
	loader := &fakeLoader{fn: func(string) (int, error) {
		<-block
		return 0, nil
	}}
	coord := newTestCoordinator(t, newFakeStore(), loader, nil)
	orch := NewMultiInstrumentOrchestrator(coord, testLogger(t), noopMetrics{},
		WithMaxWorkers(1), WithBatchTimeout(50*time.Millisecond))

	done := make(chan struct{})
	go func() {
		defer close(done)
		orch.ResolveAll(context.Background(), "OKX", []string{"A", "B", "C"}, testUntilDate, domrepo.TF1H, "month")
	}()

	// The first worker is stuck; the deadline must stop dispatch so ResolveAll
	// returns once that worker is released.
	time.Sleep(100 * time.Millisecond)
	close(block)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ResolveAll did not return after batch timeout")
	}
	assert.LessOrEqual(t, loader.callCount(), 2)
}
