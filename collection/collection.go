// Package collection implements the eight-operation parallel collection
// abstraction the regridding core runs against:
// Map, FlatMap, Filter, MapPartitions, GroupByKey, Values, Persist, and
// Unpersist, plus Foreach. Two Runtimes are provided: a Sequential
// runtime (single goroutine, for tests and small jobs) and a WorkerPool
// runtime (a bounded goroutine pool over golang.org/x/sync/errgroup,
// modeling "a true parallel backend executing partitions on a pool of
// workers"). Within a partition, work is sequential; across partitions,
// work is independent with no shared mutable state.
package collection

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Runtime executes n independent units of partition work, invoking fn
// once per partition index in [0, n). Implementations must wait for
// every invocation to finish (or the first error, for WorkerPool) and
// must not share mutable state across invocations.
type Runtime interface {
	RunPartitions(ctx context.Context, n int, fn func(ctx context.Context, partition int) error) error
}

// sequentialRuntime runs every partition inline, in order, on the
// calling goroutine; the "single-worker sequential backend for
// testing and small jobs".
type sequentialRuntime struct{}

// Sequential returns the single-worker backend.
func Sequential() Runtime { return sequentialRuntime{} }

func (sequentialRuntime) RunPartitions(ctx context.Context, n int, fn func(context.Context, int) error) error {
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(ctx, i); err != nil {
			return err
		}
	}
	return nil
}

// workerPoolRuntime bounds concurrency to a fixed number of workers via
// errgroup.SetLimit, modeling "a pool of workers" rather than one
// goroutine per partition.
type workerPoolRuntime struct {
	workers int
}

// WorkerPool returns a Runtime that runs partitions across a bounded
// pool of workers goroutines.
func WorkerPool(workers int) Runtime {
	if workers < 1 {
		workers = 1
	}
	return workerPoolRuntime{workers: workers}
}

func (w workerPoolRuntime) RunPartitions(ctx context.Context, n int, fn func(context.Context, int) error) error {
	jobID := uuid.NewString()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.workers)

	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			return runPartitionTraced(gctx, jobID, i, fn)
		})
	}
	return g.Wait()
}

// Collection holds data partitioned for execution under a Runtime.
// Partitions are independent slices; no ordering is guaranteed across
// partitions.
type Collection[T any] struct {
	rt         Runtime
	partitions [][]T
	persisted  bool
}

// New partitions items into numPartitions roughly equal-length slices
// and binds them to rt.
func New[T any](rt Runtime, items []T, numPartitions int) *Collection[T] {
	if numPartitions < 1 {
		numPartitions = 1
	}
	return &Collection[T]{rt: rt, partitions: splitEven(items, numPartitions)}
}

// FromPartitions wraps already-partitioned data directly.
func FromPartitions[T any](rt Runtime, partitions [][]T) *Collection[T] {
	return &Collection[T]{rt: rt, partitions: partitions}
}

// NumPartitions reports the current partition count.
func (c *Collection[T]) NumPartitions() int { return len(c.partitions) }

// Runtime returns the collection's execution backend.
func (c *Collection[T]) Runtime() Runtime { return c.rt }

// Collect flattens all partitions into a single slice. Order across
// partitions is unspecified; order within a partition is preserved.
func (c *Collection[T]) Collect() []T {
	var total int
	for _, p := range c.partitions {
		total += len(p)
	}
	out := make([]T, 0, total)
	for _, p := range c.partitions {
		out = append(out, p...)
	}
	return out
}

// Persist pins the collection so later operations can reuse it without
// recomputation. Collections in this in-memory implementation are
// already fully computed, so Persist only sets the persisted flag;
// Unpersist releases the backing partitions whether or not Persist was
// called.
func (c *Collection[T]) Persist() *Collection[T] {
	c.persisted = true
	return c
}

// Unpersist releases the collection's backing partitions.
func (c *Collection[T]) Unpersist() {
	c.partitions = nil
	c.persisted = false
}

func splitEven[T any](items []T, numPartitions int) [][]T {
	parts := make([][]T, numPartitions)
	if len(items) == 0 {
		return parts
	}
	base := len(items) / numPartitions
	rem := len(items) % numPartitions
	idx := 0
	for i := 0; i < numPartitions; i++ {
		size := base
		if i < rem {
			size++
		}
		parts[i] = items[idx : idx+size]
		idx += size
	}
	return parts
}
