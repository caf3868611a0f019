package keylock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetReturnsSameMutexForSameKey(t *testing.T) {
	r := New(8)
	a := r.Get("BTC-USDT-SWAP:1H:OKX")
	b := r.Get("BTC-USDT-SWAP:1H:OKX")
	assert.Same(t, a, b)
}

func TestGetReturnsDistinctMutexesForDistinctKeys(t *testing.T) {
	r := New(8)
	a := r.Get("BTC-USDT-SWAP:1H:OKX")
	b := r.Get("ETH-USDT-SWAP:1H:OKX")
	assert.NotSame(t, a, b)
	assert.Equal(t, 2, r.Len())
}

func TestZeroShardsClampedToOne(t *testing.T) {
	r := New(0)
	assert.NotNil(t, r.Get("k"))
	assert.Equal(t, 1, r.Len())
}

func TestLockSerializesCriticalSection(t *testing.T) {
	r := New(4)
	var (
		wg      sync.WaitGroup
		counter int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l := r.Get("shared")
			l.Lock()
			counter++
			l.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, counter)
	assert.Equal(t, 1, r.Len())
}

func TestConcurrentGetSingleMutexPerKey(t *testing.T) {
	r := New(4)
	var wg sync.WaitGroup
	results := make([]*sync.Mutex, 50)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.Get("same-key")
		}(i)
	}
	wg.Wait()
	for _, m := range results[1:] {
		assert.Same(t, results[0], m)
	}
}
