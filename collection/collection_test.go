package collection

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapSequential(t *testing.T) {
	c := New(Sequential(), []int{1, 2, 3, 4}, 2)
	out, err := Map(context.Background(), c, func(v int) (int, error) { return v * v, nil })
	require.NoError(t, err)

	got := out.Collect()
	sort.Ints(got)
	assert.Equal(t, []int{1, 4, 9, 16}, got)
}

func TestMapWorkerPoolPropagatesError(t *testing.T) {
	c := New(WorkerPool(4), []int{1, 2, 3, 4, 5}, 5)
	boom := errors.New("boom")
	_, err := Map(context.Background(), c, func(v int) (int, error) {
		if v == 3 {
			return 0, boom
		}
		return v, nil
	})
	require.ErrorIs(t, err, boom)
}

func TestFlatMapExpandsAndFilterShrinks(t *testing.T) {
	c := New(Sequential(), []int{1, 2, 3}, 1)
	expanded, err := FlatMap(context.Background(), c, func(v int) ([]int, error) {
		return []int{v, v}, nil
	})
	require.NoError(t, err)
	assert.Len(t, expanded.Collect(), 6)

	evens, err := Filter(context.Background(), expanded, func(v int) bool { return v%2 == 0 })
	require.NoError(t, err)
	for _, v := range evens.Collect() {
		assert.Zero(t, v%2, "filter let an odd value through: %d", v)
	}
}

func TestMapPartitionsSeesWholePartition(t *testing.T) {
	c := New(Sequential(), []int{1, 2, 3, 4}, 2)
	sums, err := MapPartitions(context.Background(), c, func(part []int) ([]int, error) {
		var sum int
		for _, v := range part {
			sum += v
		}
		return []int{sum}, nil
	})
	require.NoError(t, err)

	var total int
	for _, s := range sums.Collect() {
		total += s
	}
	assert.Equal(t, 10, total)
}

func TestForeachVisitsEveryElement(t *testing.T) {
	c := New(WorkerPool(3), []int{1, 2, 3, 4, 5}, 5)
	var count int32
	err := Foreach(context.Background(), c, func(v int) error {
		atomic.AddInt32(&count, 1)
		return nil
	})
	require.NoError(t, err)
	assert.EqualValues(t, 5, atomic.LoadInt32(&count))
}

func TestGroupByKeyGroupsAcrossPartitions(t *testing.T) {
	kvs := []KV[string, int]{
		{Key: "a", Value: 1},
		{Key: "b", Value: 2},
		{Key: "a", Value: 3},
		{Key: "b", Value: 4},
		{Key: "a", Value: 5},
	}
	c := New(Sequential(), kvs, 3)
	grouped, err := GroupByKey(context.Background(), c, 2)
	require.NoError(t, err)

	sums := map[string]int{}
	for _, g := range grouped.Collect() {
		for _, v := range g.Values {
			sums[g.Key] += v
		}
	}
	assert.Equal(t, map[string]int{"a": 9, "b": 6}, sums)
}

func TestGroupByKeyHonorsExplicitHashForCoLocation(t *testing.T) {
	kvs := []KV[string, int]{
		{Key: "x", Hash: 7, HasHash: true, Value: 1},
		{Key: "y", Hash: 7, HasHash: true, Value: 2},
	}
	c := New(Sequential(), kvs, 1)
	grouped, err := GroupByKey(context.Background(), c, 4)
	require.NoError(t, err)
	require.Equal(t, 4, grouped.NumPartitions())

	hostPartition := -1
	total := 0
	for p, part := range grouped.partitions {
		for _, g := range part {
			total += len(g.Values)
			if hostPartition == -1 {
				hostPartition = p
			} else {
				require.Equal(t, hostPartition, p,
					"distinct keys sharing a hash must land on the same partition")
			}
		}
	}
	assert.Equal(t, 2, total)
}

func TestGroupByKeyAssignmentIsStable(t *testing.T) {
	kvs := []KV[string, int]{
		{Key: "a", Value: 1},
		{Key: "b", Value: 2},
		{Key: "c", Value: 3},
		{Key: "d", Value: 4},
	}
	first, err := GroupByKey(context.Background(), New(Sequential(), kvs, 2), 3)
	require.NoError(t, err)
	second, err := GroupByKey(context.Background(), New(Sequential(), kvs, 2), 3)
	require.NoError(t, err)
	assert.Equal(t, first.partitions, second.partitions,
		"same input must produce the same partition assignment")
}

func TestValuesDropsKeys(t *testing.T) {
	kvs := []KV[string, int]{{Key: "a", Value: 1}, {Key: "b", Value: 2}}
	c := New(Sequential(), kvs, 1)
	vals, err := Values(context.Background(), c)
	require.NoError(t, err)

	got := vals.Collect()
	sort.Ints(got)
	assert.Equal(t, []int{1, 2}, got)
}

func TestPersistUnpersist(t *testing.T) {
	c := New(Sequential(), []int{1, 2, 3}, 1)
	c.Persist()
	assert.True(t, c.persisted)
	c.Unpersist()
	assert.Empty(t, c.Collect())
}
