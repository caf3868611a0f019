package keylock

import (
	"hash/fnv"
	"sync"
)

// Registry hands out one mutex per string key so that concurrent backfills
// for the same (ticker, timeframe, exchange) serialize instead of issuing
// duplicate upstream calls. Keys are spread over a fixed number of shards;
// each shard keeps its own key map, which bounds contention while keeping
// lookups O(1). Key maps grow with distinct keys ever seen, but cardinality
// is low (ticker x timeframe x exchange).
type Registry struct {
	shards []shard
}

type shard struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

// New creates a registry with the given shard count (minimum 1).
func New(shards int) *Registry {
	if shards < 1 {
		shards = 1
	}
	r := &Registry{shards: make([]shard, shards)}
	for i := range r.shards {
		r.shards[i].m = make(map[string]*sync.Mutex)
	}
	return r
}

// Get returns the mutex for key, creating it on first use.
func (r *Registry) Get(key string) *sync.Mutex {
	s := &r.shards[r.shardFor(key)]
	s.mu.Lock()
	l, ok := s.m[key]
	if !ok {
		l = &sync.Mutex{}
		s.m[key] = l
	}
	s.mu.Unlock()
	return l
}

// Len reports the total number of distinct keys seen.
func (r *Registry) Len() int {
	n := 0
	for i := range r.shards {
		r.shards[i].mu.Lock()
		n += len(r.shards[i].m)
		r.shards[i].mu.Unlock()
	}
	return n
}

func (r *Registry) shardFor(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(r.shards)))
}
