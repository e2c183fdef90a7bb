package regrid

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/janelia-flyem/recospark/box"
	"github.com/janelia-flyem/recospark/brick"
	"github.com/janelia-flyem/recospark/collection"
	"github.com/janelia-flyem/recospark/grid"
	"github.com/janelia-flyem/recospark/internal/metrics"
)

// listStore is the slice of *redis.Client this package actually needs.
// Depending on the interface rather than *redis.Client directly keeps
// the shuffle unit-testable against an in-memory fake without a live
// server, while *redis.Client satisfies it unmodified.
type listStore interface {
	RPush(ctx context.Context, key string, values ...any) *redis.IntCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisShuffle is a cross-process GroupByKey backend for the fragment
// shuffle: fragments are pushed, compressed, onto Redis lists bucketed
// by DestinationHash, so every fragment for one destination lands on
// the same bucket regardless of which worker process produced it:
// co-location across a pool of separate OS processes rather than
// goroutines. Within a bucket, fragments are further grouped by their
// exact FragmentKey, since distinct destinations can share a bucket.
type RedisShuffle struct {
	client     listStore
	keyPrefix  string
	numBuckets int
}

// NewRedisShuffle builds a shuffle bound to client, bucketing fragments
// into numBuckets Redis lists under keyPrefix.
func NewRedisShuffle(client *redis.Client, keyPrefix string, numBuckets int) *RedisShuffle {
	return newRedisShuffle(client, keyPrefix, numBuckets)
}

func newRedisShuffle(client listStore, keyPrefix string, numBuckets int) *RedisShuffle {
	if numBuckets < 1 {
		numBuckets = 1
	}
	return &RedisShuffle{client: client, keyPrefix: keyPrefix, numBuckets: numBuckets}
}

func (s *RedisShuffle) bucketKey(jobID string, hash int64) string {
	bucket := uint64(hash) % uint64(s.numBuckets)
	return fmt.Sprintf("%s:%s:%d", s.keyPrefix, jobID, bucket)
}

// Push sends one fragment to the bucket its hash selects.
func (s *RedisShuffle) Push(ctx context.Context, jobID string, kv collection.KV[FragmentKey, *brick.Brick]) error {
	payload, err := kv.Value.MarshalBinary()
	if err != nil {
		return fmt.Errorf("regrid: redis shuffle: marshaling fragment: %w", err)
	}
	entry := make([]byte, 24+len(payload))
	putVec3(entry, kv.Key.LogicalBoxLo)
	copy(entry[24:], payload)

	if err := s.client.RPush(ctx, s.bucketKey(jobID, kv.Hash), entry).Err(); err != nil {
		return fmt.Errorf("regrid: redis shuffle: RPush: %w", err)
	}
	return nil
}

// Drain reads back every bucket for jobID, regroups fragments by their
// exact FragmentKey within each bucket, deletes the buckets, and
// returns the groups with one partition per non-empty bucket, under
// the Sequential runtime.
func (s *RedisShuffle) Drain(ctx context.Context, jobID string) (*collection.Collection[collection.Group[FragmentKey, *brick.Brick]], error) {
	partitions := make([][]collection.Group[FragmentKey, *brick.Brick], 0, s.numBuckets)

	for bucket := 0; bucket < s.numBuckets; bucket++ {
		key := fmt.Sprintf("%s:%s:%d", s.keyPrefix, jobID, bucket)
		entries, err := s.client.LRange(ctx, key, 0, -1).Result()
		if err != nil {
			return nil, fmt.Errorf("regrid: redis shuffle: LRange %s: %w", key, err)
		}
		if len(entries) == 0 {
			continue
		}

		groups := make(map[box.Vec3]*collection.Group[FragmentKey, *brick.Brick])
		for _, raw := range entries {
			data := []byte(raw)
			if len(data) < 24 {
				return nil, fmt.Errorf("regrid: redis shuffle: truncated entry in %s", key)
			}
			lo := readVec3b(data)
			var frag brick.Brick
			if err := frag.UnmarshalBinary(data[24:]); err != nil {
				return nil, fmt.Errorf("regrid: redis shuffle: decoding fragment: %w", err)
			}
			g, ok := groups[lo]
			if !ok {
				g = &collection.Group[FragmentKey, *brick.Brick]{Key: FragmentKey{LogicalBoxLo: lo}}
				groups[lo] = g
			}
			g.Values = append(g.Values, &frag)
		}

		part := make([]collection.Group[FragmentKey, *brick.Brick], 0, len(groups))
		for _, g := range groups {
			part = append(part, *g)
		}
		partitions = append(partitions, part)

		if err := s.client.Del(ctx, key).Err(); err != nil {
			return nil, fmt.Errorf("regrid: redis shuffle: Del %s: %w", key, err)
		}
	}

	return collection.FromPartitions[collection.Group[FragmentKey, *brick.Brick]](collection.Sequential(), partitions), nil
}

func putVec3(out []byte, v box.Vec3) {
	binary.LittleEndian.PutUint64(out[0:8], uint64(v[0]))
	binary.LittleEndian.PutUint64(out[8:16], uint64(v[1]))
	binary.LittleEndian.PutUint64(out[16:24], uint64(v[2]))
}

func readVec3b(data []byte) box.Vec3 {
	return box.Vec3{
		int64(binary.LittleEndian.Uint64(data[0:8])),
		int64(binary.LittleEndian.Uint64(data[8:16])),
		int64(binary.LittleEndian.Uint64(data[16:24])),
	}
}

// RealignDistributed is Realign's counterpart using shuffle (a
// RedisShuffle) instead of collection.GroupByKey, demonstrating the
// distributed backend that runs alongside the in-process
// worker pool: the split phase runs under bricks' collection.Runtime
// and the shuffle barrier itself crosses Redis; assembly runs over
// Drain's result, so it is sequential whatever bricks' Runtime is.
// obs, if non-nil, observes fragment counts and assembly outcomes.
func RealignDistributed(ctx context.Context, jobID string, bricks *collection.Collection[*brick.Brick], g1 grid.Grid, shuffle *RedisShuffle, obs *metrics.Metrics) (*collection.Collection[*brick.Brick], error) {
	err := collection.Foreach(ctx, bricks, func(s *brick.Brick) error {
		fragments, err := Split(ctx, s, g1)
		if err != nil {
			return err
		}
		obs.AddSplitFragments(len(fragments))
		for _, frag := range fragments {
			if err := shuffle.Push(ctx, jobID, frag); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	grouped, err := shuffle.Drain(ctx, jobID)
	if err != nil {
		return nil, err
	}

	return collection.FlatMap(ctx, grouped, func(group collection.Group[FragmentKey, *brick.Brick]) ([]*brick.Brick, error) {
		dest, err := Assemble(ctx, group.Key.LogicalBoxLo, g1.BlockShape, group.Values)
		if err != nil {
			return nil, err
		}
		obs.ObserveAssemble(dest == nil)
		if dest == nil {
			obs.ObserveDropped("halo_only", 1)
			return nil, nil
		}
		return []*brick.Brick{dest}, nil
	})
}
