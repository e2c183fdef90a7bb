package collection

import (
	"context"
	"sync"
)

// Map applies fn to every element of c, partition by partition under
// c's Runtime, and returns a new collection with the same partitioning.
func Map[T, U any](ctx context.Context, c *Collection[T], fn func(T) (U, error)) (*Collection[U], error) {
	out := make([][]U, c.NumPartitions())
	err := c.rt.RunPartitions(ctx, c.NumPartitions(), func(ctx context.Context, p int) error {
		in := c.partitions[p]
		res := make([]U, len(in))
		for i, v := range in {
			u, err := fn(v)
			if err != nil {
				return err
			}
			res[i] = u
		}
		out[p] = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FromPartitions(c.rt, out), nil
}

// FlatMap applies fn to every element of c and flattens the results,
// preserving partitioning (each input partition maps to one output
// partition, possibly of different length).
func FlatMap[T, U any](ctx context.Context, c *Collection[T], fn func(T) ([]U, error)) (*Collection[U], error) {
	out := make([][]U, c.NumPartitions())
	err := c.rt.RunPartitions(ctx, c.NumPartitions(), func(ctx context.Context, p int) error {
		in := c.partitions[p]
		var res []U
		for _, v := range in {
			us, err := fn(v)
			if err != nil {
				return err
			}
			res = append(res, us...)
		}
		out[p] = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FromPartitions(c.rt, out), nil
}

// Filter keeps only elements for which fn returns true.
func Filter[T any](ctx context.Context, c *Collection[T], fn func(T) bool) (*Collection[T], error) {
	out := make([][]T, c.NumPartitions())
	err := c.rt.RunPartitions(ctx, c.NumPartitions(), func(ctx context.Context, p int) error {
		in := c.partitions[p]
		res := make([]T, 0, len(in))
		for _, v := range in {
			if fn(v) {
				res = append(res, v)
			}
		}
		out[p] = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FromPartitions(c.rt, out), nil
}

// MapPartitions applies fn once per whole partition, letting callers
// amortize per-partition setup (e.g. opening a connection once per
// partition instead of once per element); the primitive the shuffle
// core uses to batch fragment assembly.
func MapPartitions[T, U any](ctx context.Context, c *Collection[T], fn func([]T) ([]U, error)) (*Collection[U], error) {
	out := make([][]U, c.NumPartitions())
	err := c.rt.RunPartitions(ctx, c.NumPartitions(), func(ctx context.Context, p int) error {
		res, err := fn(c.partitions[p])
		if err != nil {
			return err
		}
		out[p] = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FromPartitions(c.rt, out), nil
}

// Foreach invokes fn once per element for side effects, discarding
// results. The first error encountered (from any partition) is
// returned once every in-flight partition has finished.
func Foreach[T any](ctx context.Context, c *Collection[T], fn func(T) error) error {
	return c.rt.RunPartitions(ctx, c.NumPartitions(), func(ctx context.Context, p int) error {
		for _, v := range c.partitions[p] {
			if err := fn(v); err != nil {
				return err
			}
		}
		return nil
	})
}

// KV is a keyed element of a collection passed to GroupByKey. Hash
// carries an optional caller-assigned co-location hash, read only when
// HasHash is set, letting callers force records destined for the same
// output brick onto the same shuffle bucket even when their keys
// differ; groups without one are dealt round-robin across the output
// partitions in first-arrival order.
type KV[K comparable, V any] struct {
	Key     K
	Hash    int64
	HasHash bool
	Value   V
}

// Group is the output of GroupByKey: a key and all values shuffled to
// it, in arrival order (which, across partitions, is unspecified).
type Group[K comparable, V any] struct {
	Key    K
	Values []V
}

// GroupByKey shuffles c so that every KV sharing a Key ends up in the
// same output Group, then spreads the resulting groups across
// numPartitions output partitions. When a KV carries HasHash, its Hash
// (rather than round-robin assignment) picks the output partition, forcing
// every group that shares a hash onto the same partition even when
// their keys differ; the co-location a custom destination hash is
// for. This is a barrier operation: every input partition must be read
// before any output group is complete, so it always runs to completion
// before returning, regardless of c's Runtime.
func GroupByKey[K comparable, V any](ctx context.Context, c *Collection[KV[K, V]], numPartitions int) (*Collection[Group[K, V]], error) {
	type bucket struct {
		key     K
		hash    int64
		hasHash bool
		values  []V
	}
	var mu sync.Mutex
	buckets := make(map[K]*bucket)
	// Arrival order of first sight per key, so that keys without an
	// explicit hash get a stable (not map-iteration-order) partition
	// assignment under the sequential runtime.
	var order []K

	err := c.rt.RunPartitions(ctx, c.NumPartitions(), func(ctx context.Context, p int) error {
		local := make(map[K]*bucket)
		var localOrder []K
		for _, kv := range c.partitions[p] {
			b, ok := local[kv.Key]
			if !ok {
				b = &bucket{key: kv.Key, hash: kv.Hash, hasHash: kv.HasHash}
				local[kv.Key] = b
				localOrder = append(localOrder, kv.Key)
			}
			b.values = append(b.values, kv.Value)
		}
		mu.Lock()
		defer mu.Unlock()
		for _, k := range localOrder {
			lb := local[k]
			gb, ok := buckets[k]
			if !ok {
				buckets[k] = lb
				order = append(order, k)
				continue
			}
			gb.values = append(gb.values, lb.values...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if numPartitions < 1 {
		numPartitions = 1
	}
	parts := make([][]Group[K, V], numPartitions)
	next := 0
	for _, k := range order {
		b := buckets[k]
		g := Group[K, V]{Key: b.key, Values: b.values}
		var dest int
		if b.hasHash {
			dest = int(uint64(b.hash) % uint64(numPartitions))
		} else {
			dest = next % numPartitions
			next++
		}
		parts[dest] = append(parts[dest], g)
	}
	return FromPartitions(c.rt, parts), nil
}

// Values drops the key from every KV, keeping only the values.
func Values[K comparable, V any](ctx context.Context, c *Collection[KV[K, V]]) (*Collection[V], error) {
	return Map(ctx, c, func(kv KV[K, V]) (V, error) { return kv.Value, nil })
}
