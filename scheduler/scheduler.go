// Package scheduler indexes pending messages by the block at which they expire. Each block owns a bucket of bounded
// size so that sweeping any single block costs at most a fixed amount of work.
package scheduler

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"sort"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"

	"pkg.world.dev/world-engine/messaging/kv"
	"pkg.world.dev/world-engine/messaging/types"
)

const (
	keyPrefix = "timeouts/"
	// indexKey holds the sorted heights that currently own a non-empty bucket.
	indexKey = "timeouts_index"
)

var ErrBucketFull = eris.New("timeout bucket is full")

func key(block uint64) string {
	bz := make([]byte, 8) //nolint:gomnd // uint64
	binary.BigEndian.PutUint64(bz, block)
	return keyPrefix + hex.EncodeToString(bz)
}

// Scheduler reads and writes timeout buckets through whatever kv.ReadWriter the caller is working in.
type Scheduler struct {
	capacity int
}

func New(capacity int) *Scheduler {
	return &Scheduler{capacity: capacity}
}

// Bucket returns the ids scheduled to expire at block, in scheduling order.
func (s *Scheduler) Bucket(ctx context.Context, r kv.Reader, block uint64) ([]types.MessageID, error) {
	bz, ok, err := r.Get(ctx, key(block))
	if err != nil || !ok {
		return nil, err
	}
	var ids []types.MessageID
	if err := json.Unmarshal(bz, &ids); err != nil {
		return nil, eris.Wrapf(err, "malformed timeout bucket for block %d", block)
	}
	return ids, nil
}

func (s *Scheduler) write(ctx context.Context, rw kv.ReadWriter, block uint64, ids []types.MessageID) error {
	if len(ids) == 0 {
		rw.Delete(key(block))
		return s.unindex(ctx, rw, block)
	}
	bz, err := json.Marshal(ids)
	if err != nil {
		return eris.Wrap(err, "")
	}
	rw.Set(key(block), bz)
	return s.index(ctx, rw, block)
}

func (s *Scheduler) heights(ctx context.Context, r kv.Reader) ([]uint64, error) {
	bz, ok, err := r.Get(ctx, indexKey)
	if err != nil || !ok {
		return nil, err
	}
	var heights []uint64
	if err := json.Unmarshal(bz, &heights); err != nil {
		return nil, eris.Wrap(err, "malformed timeout index")
	}
	return heights, nil
}

func (s *Scheduler) writeHeights(w kv.Writer, heights []uint64) error {
	if len(heights) == 0 {
		w.Delete(indexKey)
		return nil
	}
	bz, err := json.Marshal(heights)
	if err != nil {
		return eris.Wrap(err, "")
	}
	w.Set(indexKey, bz)
	return nil
}

func (s *Scheduler) index(ctx context.Context, rw kv.ReadWriter, block uint64) error {
	heights, err := s.heights(ctx, rw)
	if err != nil {
		return err
	}
	i := sort.Search(len(heights), func(i int) bool { return heights[i] >= block })
	if i < len(heights) && heights[i] == block {
		return nil
	}
	heights = append(heights, 0)
	copy(heights[i+1:], heights[i:])
	heights[i] = block
	return s.writeHeights(rw, heights)
}

func (s *Scheduler) unindex(ctx context.Context, rw kv.ReadWriter, block uint64) error {
	heights, err := s.heights(ctx, rw)
	if err != nil {
		return err
	}
	i := sort.Search(len(heights), func(i int) bool { return heights[i] >= block })
	if i == len(heights) || heights[i] != block {
		return nil
	}
	return s.writeHeights(rw, append(heights[:i], heights[i+1:]...))
}

// Due returns, in ascending order, the heights in [from, to] whose bucket is not empty.
func (s *Scheduler) Due(ctx context.Context, r kv.Reader, from, to uint64) ([]uint64, error) {
	heights, err := s.heights(ctx, r)
	if err != nil {
		return nil, err
	}
	start := sort.Search(len(heights), func(i int) bool { return heights[i] >= from })
	end := sort.Search(len(heights), func(i int) bool { return heights[i] > to })
	if start >= end {
		return nil, nil
	}
	return heights[start:end], nil
}

// HasCapacity reports whether one more id can be scheduled at block.
func (s *Scheduler) HasCapacity(ctx context.Context, r kv.Reader, block uint64) (bool, error) {
	ids, err := s.Bucket(ctx, r, block)
	if err != nil {
		return false, err
	}
	return len(ids) < s.capacity, nil
}

// Schedule appends id to the bucket for block. A full bucket is never grown; the call fails with ErrBucketFull and
// the bucket is left as it was.
func (s *Scheduler) Schedule(ctx context.Context, rw kv.ReadWriter, block uint64, id types.MessageID) error {
	ids, err := s.Bucket(ctx, rw, block)
	if err != nil {
		return err
	}
	if len(ids) >= s.capacity {
		return eris.Wrapf(ErrBucketFull, "block %d already holds %d timeouts", block, len(ids))
	}
	return s.write(ctx, rw, block, append(ids, id))
}

// Unschedule removes id from the bucket for block. It reports whether the id was found.
func (s *Scheduler) Unschedule(ctx context.Context, rw kv.ReadWriter, block uint64, id types.MessageID) (bool, error) {
	ids, err := s.Bucket(ctx, rw, block)
	if err != nil {
		return false, err
	}
	for i, scheduled := range ids {
		if scheduled != id {
			continue
		}
		remaining := append(ids[:i:i], ids[i+1:]...)
		return true, s.write(ctx, rw, block, remaining)
	}
	return false, nil
}

// Sweep returns and clears the bucket for block. Sweeping the same block again returns nothing.
func (s *Scheduler) Sweep(ctx context.Context, rw kv.ReadWriter, block uint64) ([]types.MessageID, error) {
	ids, err := s.Bucket(ctx, rw, block)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if err := s.write(ctx, rw, block, nil); err != nil {
		return nil, err
	}
	return ids, nil
}
