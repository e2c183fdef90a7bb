package cache

import (
	"context"
	"fmt"

	"github.com/janelia-flyem/recospark/box"
	"github.com/janelia-flyem/recospark/volume"
)

// CachingAccessor fronts a volume.Accessor with a BrickCache, keyed by
// the requested box. A repeated fetch of an identical box is served
// from memory without a second round-trip to the volume service.
type CachingAccessor struct {
	inner volume.Accessor
	cache *BrickCache
}

// WrapAccessor returns inner fronted by bc.
func WrapAccessor(inner volume.Accessor, bc *BrickCache) *CachingAccessor {
	return &CachingAccessor{inner: inner, cache: bc}
}

// BoxKey derives the cache key for a fetched box.
func BoxKey(b box.Box) string {
	return fmt.Sprintf("%s-%s", b.Lo, b.Hi)
}

// Get implements volume.Accessor. A miss is fetched from the inner
// accessor and stored; errors are never cached.
func (c *CachingAccessor) Get(ctx context.Context, b box.Box) (volume.Buffer, error) {
	key := BoxKey(b)
	if vol, ok := c.cache.Get(key); ok {
		return vol, nil
	}
	vol, err := c.inner.Get(ctx, b)
	if err != nil {
		return volume.Buffer{}, err
	}
	c.cache.Set(key, vol)
	return vol, nil
}
