// Package correlator maps transport-issued handles back to the message that dispatched them. An entry exists only
// while its message is pending and is consumed by the first resolution.
package correlator

import (
	"context"

	"github.com/rotisserie/eris"

	"pkg.world.dev/world-engine/messaging/kv"
	"pkg.world.dev/world-engine/messaging/types"
)

const keyPrefix = "corr/"

var ErrHandleExists = eris.New("correlation handle is already registered")

func key(h types.Handle) string {
	return keyPrefix + string(h)
}

// Register maps handle to id. Handles are issued uniquely by transports, so a collision means a transport bug and
// is refused rather than overwritten.
func Register(ctx context.Context, rw kv.ReadWriter, handle types.Handle, id types.MessageID) error {
	_, ok, err := rw.Get(ctx, key(handle))
	if err != nil {
		return err
	}
	if ok {
		return eris.Wrapf(ErrHandleExists, "handle %s", handle)
	}
	rw.Set(key(handle), id.Bytes())
	return nil
}

// Lookup returns the id registered for handle without consuming it.
func Lookup(ctx context.Context, r kv.Reader, handle types.Handle) (types.MessageID, bool, error) {
	bz, ok, err := r.Get(ctx, key(handle))
	if err != nil || !ok {
		return 0, false, err
	}
	id, valid := types.MessageIDFromBytes(bz)
	if !valid {
		return 0, false, eris.Errorf("malformed correlation entry for handle %s", handle)
	}
	return id, true, nil
}

// Resolve removes and returns the id registered for handle. A second call for the same handle reports ok == false.
func Resolve(ctx context.Context, rw kv.ReadWriter, handle types.Handle) (types.MessageID, bool, error) {
	id, ok, err := Lookup(ctx, rw, handle)
	if err != nil || !ok {
		return 0, false, err
	}
	rw.Delete(key(handle))
	return id, true, nil
}
