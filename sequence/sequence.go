// Package sequence allocates message ids from a single process-wide counter.
package sequence

import (
	"context"
	"encoding/binary"
	"math"
	"sync/atomic"

	"github.com/rotisserie/eris"

	"pkg.world.dev/world-engine/messaging/kv"
	"pkg.world.dev/world-engine/messaging/types"
)

const storageKey = "seq/next_message_id"

var ErrExhausted = eris.New("message id sequence is exhausted")

// Sequence hands out strictly increasing message ids. It never wraps: once the last id has been allocated every
// further call to Next fails.
type Sequence struct {
	next      atomic.Uint64
	exhausted atomic.Bool
}

// New returns a sequence whose first id is next.
func New(next uint64) *Sequence {
	s := &Sequence{}
	s.next.Store(next)
	return s
}

// Load restores a sequence from storage, starting at zero if nothing was saved.
func Load(ctx context.Context, r kv.Reader) (*Sequence, error) {
	bz, ok, err := r.Get(ctx, storageKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return New(0), nil
	}
	if len(bz) != 9 { //nolint:gomnd // flag byte + uint64
		return nil, eris.Errorf("malformed sequence state of length %d", len(bz))
	}
	s := New(binary.BigEndian.Uint64(bz[1:]))
	s.exhausted.Store(bz[0] == 1)
	return s, nil
}

// Next allocates an id.
func (s *Sequence) Next() (types.MessageID, error) {
	for {
		if s.exhausted.Load() {
			return 0, eris.Wrap(ErrExhausted, "")
		}
		curr := s.next.Load()
		if curr == math.MaxUint64 {
			// The last id is handed out; the counter cannot move past it.
			if s.exhausted.CompareAndSwap(false, true) {
				return types.MessageID(curr), nil
			}
			continue
		}
		if s.next.CompareAndSwap(curr, curr+1) {
			return types.MessageID(curr), nil
		}
	}
}

// Unwind gives back id if it is the most recently allocated one. It is used to roll back a failed send so that
// the id space has no gaps caused by rejected requests. It reports whether the id was given back.
func (s *Sequence) Unwind(id types.MessageID) bool {
	if uint64(id) == math.MaxUint64 {
		return s.exhausted.CompareAndSwap(true, false)
	}
	return s.next.CompareAndSwap(uint64(id)+1, uint64(id))
}

// Peek returns the id the next call to Next would return.
func (s *Sequence) Peek() uint64 {
	return s.next.Load()
}

// Save writes the counter into w.
func (s *Sequence) Save(w kv.Writer) {
	bz := make([]byte, 9) //nolint:gomnd // flag byte + uint64
	if s.exhausted.Load() {
		bz[0] = 1
	}
	binary.BigEndian.PutUint64(bz[1:], s.next.Load())
	w.Set(storageKey, bz)
}
