package scheduler_test

import (
	"context"
	"testing"

	"pkg.world.dev/world-engine/assert"
	"pkg.world.dev/world-engine/messaging/kv"
	"pkg.world.dev/world-engine/messaging/scheduler"
	"pkg.world.dev/world-engine/messaging/types"
)

func newBatchForTest(t *testing.T) *kv.Batch {
	s, err := kv.NewStore(kv.NewMemBackend(), 0)
	assert.NilError(t, err)
	return s.NewBatch()
}

func TestFullBucketRefusesWithoutCorruption(t *testing.T) {
	ctx := context.Background()
	batch := newBatchForTest(t)
	sched := scheduler.New(2)

	assert.NilError(t, sched.Schedule(ctx, batch, 10, 1))
	assert.NilError(t, sched.Schedule(ctx, batch, 10, 2))

	ok, err := sched.HasCapacity(ctx, batch, 10)
	assert.NilError(t, err)
	assert.Check(t, !ok)

	err = sched.Schedule(ctx, batch, 10, 3)
	assert.ErrorIs(t, err, scheduler.ErrBucketFull)

	ids, err := sched.Bucket(ctx, batch, 10)
	assert.NilError(t, err)
	assert.DeepEqual(t, []types.MessageID{1, 2}, ids)

	// Other blocks are unaffected.
	assert.NilError(t, sched.Schedule(ctx, batch, 11, 3))
}

func TestSweepIsOncePerBlock(t *testing.T) {
	ctx := context.Background()
	batch := newBatchForTest(t)
	sched := scheduler.New(8)

	assert.NilError(t, sched.Schedule(ctx, batch, 5, 1))
	assert.NilError(t, sched.Schedule(ctx, batch, 5, 2))
	assert.NilError(t, sched.Schedule(ctx, batch, 6, 3))

	ids, err := sched.Sweep(ctx, batch, 5)
	assert.NilError(t, err)
	assert.DeepEqual(t, []types.MessageID{1, 2}, ids)

	ids, err = sched.Sweep(ctx, batch, 5)
	assert.NilError(t, err)
	assert.Equal(t, 0, len(ids))

	ids, err = sched.Bucket(ctx, batch, 6)
	assert.NilError(t, err)
	assert.DeepEqual(t, []types.MessageID{3}, ids)
}

func TestUnscheduleRemovesOneEntry(t *testing.T) {
	ctx := context.Background()
	batch := newBatchForTest(t)
	sched := scheduler.New(4)

	for _, id := range []types.MessageID{1, 2, 3} {
		assert.NilError(t, sched.Schedule(ctx, batch, 20, id))
	}

	found, err := sched.Unschedule(ctx, batch, 20, 2)
	assert.NilError(t, err)
	assert.Check(t, found)

	found, err = sched.Unschedule(ctx, batch, 20, 2)
	assert.NilError(t, err)
	assert.Check(t, !found)

	ids, err := sched.Bucket(ctx, batch, 20)
	assert.NilError(t, err)
	assert.DeepEqual(t, []types.MessageID{1, 3}, ids)

	// Freed capacity can be reused.
	assert.NilError(t, sched.Schedule(ctx, batch, 20, 4))
	assert.NilError(t, sched.Schedule(ctx, batch, 20, 5))
	assert.ErrorIs(t, sched.Schedule(ctx, batch, 20, 6), scheduler.ErrBucketFull)
}

func TestDueListsOnlyOccupiedHeights(t *testing.T) {
	ctx := context.Background()
	batch := newBatchForTest(t)
	sched := scheduler.New(4)

	assert.NilError(t, sched.Schedule(ctx, batch, 1_000_000, 1))
	assert.NilError(t, sched.Schedule(ctx, batch, 7, 2))
	assert.NilError(t, sched.Schedule(ctx, batch, 7, 3))
	assert.NilError(t, sched.Schedule(ctx, batch, 30, 4))

	due, err := sched.Due(ctx, batch, 1, 1_000_000)
	assert.NilError(t, err)
	assert.DeepEqual(t, []uint64{7, 30, 1_000_000}, due)

	due, err = sched.Due(ctx, batch, 8, 30)
	assert.NilError(t, err)
	assert.DeepEqual(t, []uint64{30}, due)

	// Emptied buckets leave the index.
	_, err = sched.Unschedule(ctx, batch, 30, 4)
	assert.NilError(t, err)
	_, err = sched.Sweep(ctx, batch, 7)
	assert.NilError(t, err)
	due, err = sched.Due(ctx, batch, 0, 1_000_000)
	assert.NilError(t, err)
	assert.DeepEqual(t, []uint64{1_000_000}, due)
}
