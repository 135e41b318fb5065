package messaging

import (
	"context"

	"github.com/rotisserie/eris"

	"pkg.world.dev/world-engine/messaging/store"
	"pkg.world.dev/world-engine/messaging/types"
)

// PollStatus reports the status of id. Ids that were never allocated or have been removed are StatusNotFound.
func (e *Engine) PollStatus(ctx context.Context, id types.MessageID) (types.Status, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return store.Status(ctx, e.store, id)
}

// GetResponse returns the response payload of a completed message and nil for every other status.
func (e *Engine) GetResponse(ctx context.Context, id types.MessageID) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	msg, ok, err := store.Get(ctx, e.store, id)
	if err != nil || !ok {
		return nil, err
	}
	return types.ResponseOf(msg), nil
}

// Message returns the stored message for id.
func (e *Engine) Message(ctx context.Context, id types.MessageID) (types.Message, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	msg, ok, err := store.Get(ctx, e.store, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, eris.Wrapf(ErrMessageNotFound, "message %d", id)
	}
	return msg, nil
}

// Events returns the events recorded during a finished block.
func (e *Engine) Events(block uint64) ([]types.Event, error) {
	return e.receipts.EventsForBlock(block)
}

// PendingEvents returns the events recorded so far in the current block.
func (e *Engine) PendingEvents() []types.Event {
	return e.receipts.Pending()
}
