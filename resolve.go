package messaging

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"pkg.world.dev/world-engine/messaging/callback"
	"pkg.world.dev/world-engine/messaging/correlator"
	"pkg.world.dev/world-engine/messaging/deposit"
	"pkg.world.dev/world-engine/messaging/kv"
	msglog "pkg.world.dev/world-engine/messaging/log"
	"pkg.world.dev/world-engine/messaging/statsd"
	"pkg.world.dev/world-engine/messaging/store"
	"pkg.world.dev/world-engine/messaging/types"
)

// OnResponse delivers the response to the request identified by handle. Unknown or already resolved handles are
// ignored, so a duplicate or late delivery has no effect. Callback failures are recorded as events and never
// returned.
func (e *Engine) OnResponse(ctx context.Context, handle types.Handle, response []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer statsd.EmitBlockStat(time.Now(), "response")

	if uint64(len(response)) > e.cfg.MaxResponseLen {
		return eris.Wrapf(ErrResponseTooLarge, "response of %d bytes exceeds %d", len(response), e.cfg.MaxResponseLen)
	}

	batch := e.store.NewBatch()
	defer batch.Discard()

	id, msg, ok, err := e.resolve(ctx, batch, handle)
	if err != nil || !ok {
		return err
	}
	completed, err := types.Complete(msg, response)
	if err != nil {
		return err
	}
	head := msg.Head()
	received := types.Event{Kind: responseEventKind(msg), ID: id, Origin: head.Origin, Handle: handle}

	if head.Callback == nil || !e.fitsCallbackAllowance(head.Callback.GasLimit) {
		if err := store.Put(batch, id, completed); err != nil {
			return err
		}
		if err := batch.Commit(ctx); err != nil {
			return eris.Wrap(err, "failed to persist response")
		}
		e.router.Resolved(handle)
		e.record(received)
		if head.Callback != nil {
			e.record(types.Event{Kind: types.EventCallbackSkipped, ID: id, Origin: head.Origin, Callback: head.Callback})
			statsd.Incr("callbacks.skipped")
		}
		statsd.Incr("messages.completed", "transport:"+msg.Transport().String())
		return nil
	}

	// The row goes before any third-party code runs. A redelivery can then never find the message again, whatever
	// happens to the callback. The message deposit goes with the row.
	messageDeposit, _ := types.Deposits(msg)
	journal := e.ledger.Begin()
	if err := journal.Release(deposit.ReasonMessaging, head.Origin, messageDeposit); err != nil {
		return err
	}
	store.Delete(batch, id)
	if err := e.ledger.Save(batch); err != nil {
		_ = journal.Revert()
		return err
	}
	if err := batch.Commit(ctx); err != nil {
		if revertErr := journal.Revert(); revertErr != nil {
			e.logger.Error().Err(revertErr).Uint64("message_id", uint64(id)).Msg("failed to revert deposit release")
		}
		return eris.Wrap(err, "failed to persist response")
	}
	journal.Commit()
	e.router.Resolved(handle)
	e.record(received)
	statsd.Incr("messages.completed", "transport:"+msg.Transport().String())

	e.runCallback(ctx, id, completed)
	return nil
}

// runCallback executes the callback of a completed message whose row has already been erased, then settles its
// callback deposit.
func (e *Engine) runCallback(ctx context.Context, id types.MessageID, msg types.Message) {
	head := msg.Head()
	cb := *head.Callback
	_, callbackDeposit := types.Deposits(msg)
	logger := msglog.CreateMessageLogger(&e.logger, id)

	result := e.executor.Execute(ctx, head.Origin, id, cb, types.ResponseOf(msg))
	e.callbackWeight += result.WeightUsed
	if result.Failed() {
		e.record(types.Event{
			Kind: types.EventCallbackFailed, ID: id, Origin: head.Origin, Callback: &cb,
			WeightUsed: result.WeightUsed, Error: result.Err.Error(),
		})
		statsd.Incr("callbacks.failed")
	} else {
		e.record(types.Event{
			Kind: types.EventCallbackExecuted, ID: id, Origin: head.Origin, Callback: &cb,
			WeightUsed: result.WeightUsed,
		})
		statsd.Incr("callbacks.executed")
	}

	_, err := callback.Settle(e.ledger, e.weightToFee, head.Origin, callbackDeposit, cb.GasLimit, result.WeightUsed)
	if err != nil {
		e.record(types.Event{Kind: types.EventWeightRefundErrored, ID: id, Origin: head.Origin, Error: err.Error()})
		logger.Warn().Err(err).Msg("failed to settle callback fees")
	}
	if err := e.saveLedger(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to persist deposit holds after settlement")
	}
}

func (e *Engine) saveLedger(ctx context.Context) error {
	batch := e.store.NewBatch()
	defer batch.Discard()
	if err := e.ledger.Save(batch); err != nil {
		return err
	}
	return batch.Commit(ctx)
}

func (e *Engine) fitsCallbackAllowance(gasLimit types.Weight) bool {
	limit := types.Weight(e.cfg.MaxCallbackWeightPerBlock)
	return e.callbackWeight <= limit && gasLimit <= limit-e.callbackWeight
}

// OnTransportTimeout is called by a transport that expired the request identified by handle on its own. Like
// OnResponse it ignores unknown handles.
func (e *Engine) OnTransportTimeout(ctx context.Context, handle types.Handle) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	batch := e.store.NewBatch()
	defer batch.Discard()

	id, msg, ok, err := e.resolve(ctx, batch, handle)
	if err != nil || !ok {
		return err
	}
	expired, err := types.Expire(msg)
	if err != nil {
		return err
	}
	if err := store.Put(batch, id, expired); err != nil {
		return err
	}
	if err := batch.Commit(ctx); err != nil {
		return eris.Wrap(err, "failed to persist timeout")
	}
	e.router.Resolved(handle)
	if msg.Transport() == types.TransportXcm {
		e.record(types.Event{Kind: types.EventQueriesTimedOut, IDs: []types.MessageID{id}, Handle: handle})
	} else {
		e.record(types.Event{Kind: types.EventIsmpTimedOut, ID: id, Origin: msg.Head().Origin, Handle: handle})
	}
	statsd.Incr("messages.timed_out", "transport:"+msg.Transport().String())
	return nil
}

// resolve consumes the correlation entry of handle and takes the message out of its timeout bucket. It reports
// ok == false when the handle is unknown.
func (e *Engine) resolve(ctx context.Context, batch *kv.Batch, handle types.Handle) (
	types.MessageID, types.Message, bool, error,
) {
	id, ok, err := correlator.Resolve(ctx, batch, handle)
	if err != nil {
		return 0, nil, false, err
	}
	if !ok {
		e.logger.Debug().Str("handle", handle.String()).Msg("ignoring delivery for unknown handle")
		statsd.Incr("deliveries.ignored")
		return 0, nil, false, nil
	}
	msg, ok, err := store.Get(ctx, batch, id)
	if err != nil {
		return 0, nil, false, err
	}
	if !ok || msg.Status() != types.StatusPending {
		return 0, nil, false, eris.Errorf("handle %s resolved to message %d which is not pending", handle, id)
	}
	if _, err := e.scheduler.Unschedule(ctx, batch, msg.Head().Expiry, id); err != nil {
		return 0, nil, false, err
	}
	return id, msg, true, nil
}

func responseEventKind(msg types.Message) types.EventKind {
	if req, ok := msg.(types.IsmpRequest); ok {
		if req.Method == types.IsmpGet {
			return types.EventIsmpGetResponseReceived
		}
		return types.EventIsmpPostResponseReceived
	}
	return types.EventXcmResponseReceived
}
