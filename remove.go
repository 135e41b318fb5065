package messaging

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rotisserie/eris"

	"pkg.world.dev/world-engine/messaging/deposit"
	"pkg.world.dev/world-engine/messaging/statsd"
	"pkg.world.dev/world-engine/messaging/store"
	"pkg.world.dev/world-engine/messaging/types"
)

// Remove erases a completed or timed out message owned by origin and releases its deposits.
func (e *Engine) Remove(ctx context.Context, origin common.Address, id types.MessageID) error {
	return e.RemoveMany(ctx, origin, []types.MessageID{id})
}

// RemoveMany erases every message in ids. All ids are validated before anything changes: if one of them is
// unknown, listed twice, owned by someone else or still pending, nothing is removed.
func (e *Engine) RemoveMany(ctx context.Context, origin common.Address, ids []types.MessageID) (err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if uint64(len(ids)) > e.cfg.MaxRemovals {
		return eris.Wrapf(ErrTooManyMessages, "%d ids exceed %d", len(ids), e.cfg.MaxRemovals)
	}

	batch := e.store.NewBatch()
	defer batch.Discard()

	removed := make([]types.Message, 0, len(ids))
	seen := make(map[types.MessageID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return eris.Wrapf(ErrMessageNotFound, "message %d is listed twice", id)
		}
		seen[id] = struct{}{}

		msg, ok, err := store.Get(ctx, batch, id)
		if err != nil {
			return err
		}
		if !ok {
			return eris.Wrapf(ErrMessageNotFound, "message %d", id)
		}
		if msg.Head().Origin != origin {
			return eris.Wrapf(ErrBadOrigin, "message %d", id)
		}
		if msg.Status() == types.StatusPending {
			return eris.Wrapf(ErrRequestPending, "message %d", id)
		}
		removed = append(removed, msg)
	}

	journal := e.ledger.Begin()
	defer func() {
		if err == nil {
			return
		}
		if revertErr := journal.Revert(); revertErr != nil {
			e.logger.Error().Err(revertErr).Msg("failed to revert deposit releases")
		}
	}()
	for i, msg := range removed {
		messageDeposit, callbackDeposit := types.Deposits(msg)
		if err = journal.Release(deposit.ReasonMessaging, origin, messageDeposit); err != nil {
			return eris.Wrapf(err, "message %d", ids[i])
		}
		if err = journal.Release(deposit.ReasonCallbackGas, origin, callbackDeposit); err != nil {
			return eris.Wrapf(err, "message %d", ids[i])
		}
		store.Delete(batch, ids[i])
	}
	if err = e.ledger.Save(batch); err != nil {
		return err
	}
	if err = batch.Commit(ctx); err != nil {
		return eris.Wrap(err, "failed to persist removal")
	}
	journal.Commit()

	for _, id := range ids {
		e.record(types.Event{Kind: types.EventRemoved, ID: id, Origin: origin})
	}
	statsd.Count("messages.removed", int64(len(ids)))
	return nil
}
