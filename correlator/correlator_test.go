package correlator_test

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"pkg.world.dev/world-engine/assert"
	"pkg.world.dev/world-engine/messaging/correlator"
	"pkg.world.dev/world-engine/messaging/kv"
	"pkg.world.dev/world-engine/messaging/types"
)

func newBatchForTest(t *testing.T) *kv.Batch {
	s, err := kv.NewStore(kv.NewMemBackend(), 0)
	assert.NilError(t, err)
	return s.NewBatch()
}

func TestResolveConsumesTheEntry(t *testing.T) {
	ctx := context.Background()
	batch := newBatchForTest(t)
	handle := types.QueryHandle(9)

	assert.NilError(t, correlator.Register(ctx, batch, handle, 4))

	id, ok, err := correlator.Resolve(ctx, batch, handle)
	assert.NilError(t, err)
	assert.Check(t, ok)
	assert.Equal(t, types.MessageID(4), id)

	_, ok, err = correlator.Resolve(ctx, batch, handle)
	assert.NilError(t, err)
	assert.Check(t, !ok)
}

func TestDuplicateHandleIsRefused(t *testing.T) {
	ctx := context.Background()
	batch := newBatchForTest(t)
	handle := types.CommitmentHandle(common.HexToHash("0xabcdef"))

	assert.NilError(t, correlator.Register(ctx, batch, handle, 1))
	err := correlator.Register(ctx, batch, handle, 2)
	assert.ErrorIs(t, err, correlator.ErrHandleExists)

	// The original mapping is untouched.
	id, ok, err := correlator.Lookup(ctx, batch, handle)
	assert.NilError(t, err)
	assert.Check(t, ok)
	assert.Equal(t, types.MessageID(1), id)
}

func TestUnknownHandleResolvesToNothing(t *testing.T) {
	_, ok, err := correlator.Resolve(context.Background(), newBatchForTest(t), types.QueryHandle(1))
	assert.NilError(t, err)
	assert.Check(t, !ok)
}
