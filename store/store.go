// Package store is the authoritative map from message id to message state.
package store

import (
	"context"
	"encoding/hex"

	"pkg.world.dev/world-engine/messaging/kv"
	"pkg.world.dev/world-engine/messaging/types"
)

const keyPrefix = "msg/"

func key(id types.MessageID) string {
	return keyPrefix + hex.EncodeToString(id.Bytes())
}

// Get loads the message stored under id.
func Get(ctx context.Context, r kv.Reader, id types.MessageID) (types.Message, bool, error) {
	bz, ok, err := r.Get(ctx, key(id))
	if err != nil || !ok {
		return nil, false, err
	}
	msg, err := types.UnmarshalMessage(bz)
	if err != nil {
		return nil, false, err
	}
	return msg, true, nil
}

// Put writes msg under id, replacing whatever was stored.
func Put(w kv.Writer, id types.MessageID, msg types.Message) error {
	bz, err := types.MarshalMessage(msg)
	if err != nil {
		return err
	}
	w.Set(key(id), bz)
	return nil
}

func Delete(w kv.Writer, id types.MessageID) {
	w.Delete(key(id))
}

// Status is the caller-visible status of id. Unknown ids are StatusNotFound.
func Status(ctx context.Context, r kv.Reader, id types.MessageID) (types.Status, error) {
	msg, ok, err := Get(ctx, r, id)
	if err != nil {
		return types.StatusNotFound, err
	}
	if !ok {
		return types.StatusNotFound, nil
	}
	return msg.Status(), nil
}
