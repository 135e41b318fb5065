package messaging

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"pkg.world.dev/world-engine/messaging/correlator"
	"pkg.world.dev/world-engine/messaging/kv"
	msglog "pkg.world.dev/world-engine/messaging/log"
	"pkg.world.dev/world-engine/messaging/statsd"
	"pkg.world.dev/world-engine/messaging/store"
	"pkg.world.dev/world-engine/messaging/types"
)

// AdvanceBlock moves the engine to height, timing out every message that expires on the way. Only heights with a
// non-empty timeout bucket are visited, and the whole jump is persisted in one batch. Heights that do not increase
// are rejected with ErrStaleBlock.
func (e *Engine) AdvanceBlock(ctx context.Context, height uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer statsd.EmitBlockStat(time.Now(), "advance")

	if height <= e.block {
		return eris.Wrapf(ErrStaleBlock, "height %d is not after block %d", height, e.block)
	}
	batch := e.store.NewBatch()
	defer batch.Discard()

	due, err := e.scheduler.Due(ctx, batch, e.block+1, height)
	if err != nil {
		return err
	}
	swept := make([][]types.MessageID, len(due))
	var handles []types.Handle
	for i, block := range due {
		ids, resolved, err := e.sweep(ctx, batch, block)
		if err != nil {
			return err
		}
		swept[i] = ids
		handles = append(handles, resolved...)
	}
	saveBlock(batch, height)
	if err := batch.Commit(ctx); err != nil {
		return eris.Wrapf(err, "failed to persist block %d", height)
	}

	msglog.Events(&e.logger, zerolog.DebugLevel, e.block, e.receipts.Pending())
	for i, block := range due {
		e.block = block
		e.receipts.AdvanceTo(block)
		e.recordSweep(swept[i])
	}
	e.block = height
	e.callbackWeight = 0
	e.receipts.AdvanceTo(height)
	for _, handle := range handles {
		e.router.Resolved(handle)
	}

	msglog.CreateBlockLogger(&e.logger, height).Debug().Int("expiring_blocks", len(due)).Msg("advanced block")
	statsd.Gauge("block", float64(e.block))
	return nil
}

// OnTimeoutSweep times out every message still pending in the bucket of block. The bucket is emptied, so sweeping
// the same block twice does nothing the second time. Blocks after the current one cannot be swept.
func (e *Engine) OnTimeoutSweep(ctx context.Context, block uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer statsd.EmitBlockStat(time.Now(), "sweep")

	if block > e.block {
		return eris.Errorf("cannot sweep block %d ahead of current block %d", block, e.block)
	}
	batch := e.store.NewBatch()
	defer batch.Discard()

	ids, handles, err := e.sweep(ctx, batch, block)
	if err != nil {
		return err
	}
	if err := batch.Commit(ctx); err != nil {
		return eris.Wrapf(err, "failed to persist sweep of block %d", block)
	}
	for _, handle := range handles {
		e.router.Resolved(handle)
	}
	e.recordSweep(ids)
	return nil
}

// sweep times out the pending messages of the bucket of block and returns their ids and transport handles.
func (e *Engine) sweep(ctx context.Context, batch *kv.Batch, block uint64) (
	[]types.MessageID, []types.Handle, error,
) {
	bucket, err := e.scheduler.Sweep(ctx, batch, block)
	if err != nil {
		return nil, nil, err
	}
	timedOut := make([]types.MessageID, 0, len(bucket))
	handles := make([]types.Handle, 0, len(bucket))
	for _, id := range bucket {
		msg, ok, err := store.Get(ctx, batch, id)
		if err != nil {
			return nil, nil, err
		}
		if !ok || msg.Status() != types.StatusPending {
			e.logger.Warn().Uint64("message_id", uint64(id)).Uint64("block", block).
				Msg("timeout bucket referenced a message that is not pending")
			continue
		}
		if _, _, err := correlator.Resolve(ctx, batch, msg.Handle()); err != nil {
			return nil, nil, err
		}
		expired, err := types.Expire(msg)
		if err != nil {
			return nil, nil, err
		}
		if err := store.Put(batch, id, expired); err != nil {
			return nil, nil, err
		}
		timedOut = append(timedOut, id)
		handles = append(handles, msg.Handle())
	}
	return timedOut, handles, nil
}

func (e *Engine) recordSweep(ids []types.MessageID) {
	if len(ids) == 0 {
		return
	}
	e.record(types.Event{Kind: types.EventQueriesTimedOut, IDs: ids})
	statsd.Count("messages.timed_out", int64(len(ids)))
}
