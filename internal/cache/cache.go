// Package cache provides a decompressed-brick cache: a ristretto-backed
// LRU-ish cache keyed by logical box, so repeated access to the same
// destination brick across a pipeline's operations doesn't pay
// decompression cost more than once per eviction window.
package cache

import (
	"fmt"
	"sync/atomic"

	"github.com/dgraph-io/ristretto"

	"github.com/janelia-flyem/recospark/box"
	"github.com/janelia-flyem/recospark/internal/common/logger"
	"github.com/janelia-flyem/recospark/volume"
)

// BrickCache caches decompressed volume.Buffers keyed by a brick's
// logical box. Cost is charged in bytes of decompressed voxel data, so
// MaxCost bounds total decompressed memory rather than entry count.
type BrickCache struct {
	cache     *ristretto.Cache
	hits      int64
	misses    int64
	evictions int64
}

// NewBrickCache builds a cache admitting up to maxCostBytes worth of
// decompressed voxel data.
func NewBrickCache(maxCostBytes int64) (*BrickCache, error) {
	bc := &BrickCache{}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxCostBytes / 10,
		MaxCost:     maxCostBytes,
		BufferItems: 64,
		OnEvict: func(item *ristretto.Item) {
			atomic.AddInt64(&bc.evictions, 1)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	bc.cache = c
	return bc, nil
}

// Key derives a cache key from a brick's logical box lo/hi corners and
// its default (or explicit) co-location hash, so distinct source
// bricks feeding the same destination never collide.
func Key(logical box.Box, hash int64) string {
	return fmt.Sprintf("%s-%s-%x", logical.Lo, logical.Hi, hash)
}

// Get returns the cached buffer for key, if present.
func (bc *BrickCache) Get(key string) (volume.Buffer, bool) {
	v, found := bc.cache.Get(key)
	if !found {
		atomic.AddInt64(&bc.misses, 1)
		return volume.Buffer{}, false
	}
	vol, ok := v.(volume.Buffer)
	if !ok {
		atomic.AddInt64(&bc.misses, 1)
		return volume.Buffer{}, false
	}
	atomic.AddInt64(&bc.hits, 1)
	logger.Debug("cache: hit %s", key)
	return vol, true
}

// Set stores vol under key, charging len(vol.Data) bytes against
// MaxCost.
func (bc *BrickCache) Set(key string, vol volume.Buffer) {
	bc.cache.Set(key, vol, int64(len(vol.Data)))
}

// Wait blocks until all pending Set calls have been applied; tests
// that assert on cache contents immediately after Set should call this
// first, since ristretto applies writes asynchronously.
func (bc *BrickCache) Wait() {
	bc.cache.Wait()
}

// Close releases the cache's background goroutines.
func (bc *BrickCache) Close() {
	bc.cache.Close()
}

// Metrics reports cumulative cache counters.
type Metrics struct {
	Hits      int64
	Misses    int64
	Evictions int64
}

func (bc *BrickCache) Metrics() Metrics {
	return Metrics{
		Hits:      atomic.LoadInt64(&bc.hits),
		Misses:    atomic.LoadInt64(&bc.misses),
		Evictions: atomic.LoadInt64(&bc.evictions),
	}
}
