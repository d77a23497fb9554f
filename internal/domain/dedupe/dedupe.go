// Package dedupe tracks stream message IDs so a redelivered reading is
// scored once.
package dedupe

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultMaxSize = 100000

// Deduper records seen message IDs.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// It returns true if id was already seen.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so a reading that could not be queued is retried.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// NewInMemoryDeduper creates an in-memory deduper. A positive max size keeps
// the most recently used IDs; otherwise every ID is kept.
func NewInMemoryDeduper(opts ...Option) Deduper {
	cfg := config{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxSize <= 0 {
		return &unboundedDeduper{seen: make(map[string]struct{})}
	}
	cache, err := lru.New[string, struct{}](cfg.maxSize)
	if err != nil {
		// lru only rejects non-positive sizes.
		panic(err)
	}
	return &lruDeduper{cache: cache}
}

type lruDeduper struct {
	cache *lru.Cache[string, struct{}]
}

func (d *lruDeduper) SeenAndRecord(_ context.Context, id string) bool {
	seen, _ := d.cache.ContainsOrAdd(id, struct{}{})
	return seen
}

func (d *lruDeduper) Unrecord(_ context.Context, id string) { d.cache.Remove(id) }

func (d *lruDeduper) Size() int64 { return int64(d.cache.Len()) }

type unboundedDeduper struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func (d *unboundedDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[id]; ok {
		return true
	}
	d.seen[id] = struct{}{}
	return false
}

func (d *unboundedDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, id)
}

func (d *unboundedDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.seen))
}
