package messaging

import (
	"context"
	"errors"
	"time"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"pkg.world.dev/world-engine/messaging/correlator"
	"pkg.world.dev/world-engine/messaging/deposit"
	msglog "pkg.world.dev/world-engine/messaging/log"
	"pkg.world.dev/world-engine/messaging/router"
	"pkg.world.dev/world-engine/messaging/scheduler"
	"pkg.world.dev/world-engine/messaging/sequence"
	"pkg.world.dev/world-engine/messaging/statsd"
	"pkg.world.dev/world-engine/messaging/store"
	"pkg.world.dev/world-engine/messaging/types"
)

// Get sends a GET request over the post-style transport.
func (e *Engine) Get(
	ctx context.Context, origin common.Address, req types.GetRequest, fee math.Int, cb *types.Callback,
) (types.MessageID, error) {
	return e.Send(ctx, origin, req, fee, cb)
}

// Post sends a POST request over the post-style transport.
func (e *Engine) Post(
	ctx context.Context, origin common.Address, req types.PostRequest, fee math.Int, cb *types.Callback,
) (types.MessageID, error) {
	return e.Send(ctx, origin, req, fee, cb)
}

// OpenQuery opens a query against responder over the query-style transport.
func (e *Engine) OpenQuery(
	ctx context.Context, origin common.Address, responder types.Location, timeout uint64, cb *types.Callback,
) (types.MessageID, error) {
	return e.Send(ctx, origin, types.QueryRequest{Responder: responder, TimeoutBlock: timeout}, math.ZeroInt(), cb)
}

// Send dispatches req on behalf of origin and tracks it as a pending message. Either every effect of the send is
// applied or none is: on error no deposit stays held, no index entry exists and the id is handed back.
func (e *Engine) Send(
	ctx context.Context, origin common.Address, req types.Request, fee math.Int, cb *types.Callback,
) (id types.MessageID, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer statsd.EmitBlockStat(time.Now(), "send")

	if fee.IsNil() {
		fee = math.ZeroInt()
	}
	expiry := req.Timeout()
	if expiry <= e.block {
		return 0, eris.Wrapf(ErrFutureTimeoutMandatory, "timeout %d is not after block %d", expiry, e.block)
	}
	if err = e.validateRequest(req); err != nil {
		return 0, err
	}

	batch := e.store.NewBatch()
	defer batch.Discard()

	// Check the bucket before anything irreversible, such as the dispatch, happens.
	hasCapacity, err := e.scheduler.HasCapacity(ctx, batch, expiry)
	if err != nil {
		return 0, err
	}
	if !hasCapacity {
		return 0, eris.Wrapf(ErrMaxMessageTimeoutPerBlockReached, "block %d", expiry)
	}

	allocated, err := e.seq.Next()
	if errors.Is(err, sequence.ErrExhausted) {
		return 0, eris.Wrap(ErrSequenceExhausted, "")
	} else if err != nil {
		return 0, err
	}
	journal := e.ledger.Begin()
	defer func() {
		if err == nil {
			return
		}
		if revertErr := journal.Revert(); revertErr != nil {
			e.logger.Error().Err(revertErr).Uint64("message_id", uint64(allocated)).Msg("failed to revert deposits")
		}
		e.seq.Unwind(allocated)
	}()

	messageDeposit := e.pricing.MessageDeposit(req.Transport(), req.OffChainSize())
	if err = journal.Hold(deposit.ReasonMessaging, origin, messageDeposit); err != nil {
		return 0, ledgerError(err)
	}
	callbackDeposit := math.ZeroInt()
	prepaidWeight := types.Weight(e.cfg.ResponseWeight)
	if cb != nil {
		callbackDeposit = e.weightToFee(cb.GasLimit)
		if err = journal.Hold(deposit.ReasonCallbackGas, origin, callbackDeposit); err != nil {
			return 0, ledgerError(err)
		}
		prepaidWeight += types.Weight(e.cfg.CallbackExecutionWeight)
	}
	if err = journal.WithdrawNow(origin, e.weightToFee(prepaidWeight)); err != nil {
		return 0, ledgerError(err)
	}

	ticket, err := e.router.Dispatch(ctx, origin, req, fee)
	if errors.Is(err, router.ErrOriginConversionFailed) {
		return 0, eris.Wrap(ErrOriginConversionFailed, err.Error())
	} else if err != nil {
		return 0, eris.Wrap(ErrDispatchFailed, err.Error())
	}

	head := types.Header{
		Origin:          origin,
		MessageDeposit:  messageDeposit,
		CallbackDeposit: callbackDeposit,
		Expiry:          expiry,
	}
	if cb != nil {
		registered := *cb
		head.Callback = &registered
	}
	msg, err := pendingMessage(req, head, ticket)
	if err != nil {
		return 0, err
	}

	id = allocated
	if err = correlator.Register(ctx, batch, ticket.Handle, id); errors.Is(err, correlator.ErrHandleExists) {
		return 0, eris.Wrap(ErrHandleExists, err.Error())
	} else if err != nil {
		return 0, err
	}
	if err = e.scheduler.Schedule(ctx, batch, expiry, id); errors.Is(err, scheduler.ErrBucketFull) {
		return 0, eris.Wrap(ErrMaxMessageTimeoutPerBlockReached, err.Error())
	} else if err != nil {
		return 0, err
	}
	if err = store.Put(batch, id, msg); err != nil {
		return 0, err
	}
	if err = e.ledger.Save(batch); err != nil {
		return 0, err
	}
	e.seq.Save(batch)
	if err = batch.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "failed to persist message")
	}
	journal.Commit()

	e.record(types.Event{Kind: types.EventMessageSent, ID: id, Origin: origin, Handle: ticket.Handle})
	statsd.Incr("messages.sent", "transport:"+req.Transport().String())
	msglog.Message(&e.logger, zerolog.DebugLevel, id, msg)
	return id, nil
}

func pendingMessage(req types.Request, head types.Header, ticket router.Ticket) (types.Message, error) {
	switch req.(type) {
	case types.GetRequest:
		return types.IsmpRequest{Header: head, Method: types.IsmpGet, Commitment: ticket.Commitment}, nil
	case types.PostRequest:
		return types.IsmpRequest{Header: head, Method: types.IsmpPost, Commitment: ticket.Commitment}, nil
	case types.QueryRequest:
		return types.XcmQuery{Header: head, QueryID: ticket.QueryID}, nil
	default:
		return nil, eris.Wrapf(ErrInvalidRequest, "unsupported request type %T", req)
	}
}

func (e *Engine) validateRequest(req types.Request) error {
	switch r := req.(type) {
	case types.GetRequest:
		if uint64(len(r.Context)) > e.cfg.MaxContextLen {
			return eris.Wrapf(ErrInvalidRequest, "context of %d bytes exceeds %d", len(r.Context), e.cfg.MaxContextLen)
		}
		if uint64(len(r.Keys)) > e.cfg.MaxKeys {
			return eris.Wrapf(ErrInvalidRequest, "%d keys exceed %d", len(r.Keys), e.cfg.MaxKeys)
		}
		for i, key := range r.Keys {
			if uint64(len(key)) > e.cfg.MaxKeyLen {
				return eris.Wrapf(ErrInvalidRequest, "key %d of %d bytes exceeds %d", i, len(key), e.cfg.MaxKeyLen)
			}
		}
	case types.PostRequest:
		if uint64(len(r.Data)) > e.cfg.MaxDataLen {
			return eris.Wrapf(ErrInvalidRequest, "data of %d bytes exceeds %d", len(r.Data), e.cfg.MaxDataLen)
		}
	case types.QueryRequest:
		if r.Responder == "" {
			return eris.Wrap(ErrInvalidRequest, "query responder must not be empty")
		}
	default:
		return eris.Wrapf(ErrInvalidRequest, "unsupported request type %T", req)
	}
	return nil
}

func ledgerError(err error) error {
	if errors.Is(err, deposit.ErrInsufficientBalance) {
		return eris.Wrap(ErrInsufficientBalance, err.Error())
	}
	return err
}
