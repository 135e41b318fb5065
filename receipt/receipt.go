// Package receipt keeps the events the engine records for a number of blocks. Events can only be added to the
// current block; earlier blocks are read only and are discarded once they fall out of the window.
package receipt

import (
	"errors"
	"sync"

	"github.com/rotisserie/eris"

	"pkg.world.dev/world-engine/messaging/types"
)

var (
	ErrBlockHasNotBeenProcessed = errors.New("block is still in progress")
	ErrOldBlockHasBeenDiscarded = errors.New("the requested block has been discarded due to age")
)

// History is a ring buffer of per-block event lists.
type History struct {
	mu            sync.RWMutex
	currBlock     uint64
	blocksToStore uint64
	history       [][]types.Event
}

// NewHistory creates a History positioned at currentBlock that remembers blocksToStore finished blocks.
func NewHistory(currentBlock uint64, blocksToStore int) *History {
	if blocksToStore < 0 {
		blocksToStore = 0
	}
	// Add an extra slot for the current block.
	size := uint64(blocksToStore) + 1
	return &History{
		currBlock:     currentBlock,
		blocksToStore: size,
		history:       make([][]types.Event, size),
	}
}

func (h *History) Size() uint64 {
	return h.blocksToStore
}

func (h *History) CurrentBlock() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.currBlock
}

// NextBlock finishes the current block and starts recording into the next one.
func (h *History) NextBlock() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.currBlock++
	h.history[h.currBlock%h.blocksToStore] = nil
}

// AdvanceTo finishes every block before block and starts recording into block. Blocks skipped on the way have no
// events. A jump past the whole window clears it. Targets at or before the current block are ignored.
func (h *History) AdvanceTo(block uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if block <= h.currBlock {
		return
	}
	if block-h.currBlock >= h.blocksToStore {
		h.currBlock = block
		h.history = make([][]types.Event, h.blocksToStore)
		return
	}
	for h.currBlock < block {
		h.currBlock++
		h.history[h.currBlock%h.blocksToStore] = nil
	}
}

// Add records ev against the current block.
func (h *History) Add(ev types.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ev.Block = h.currBlock
	slot := h.currBlock % h.blocksToStore
	h.history[slot] = append(h.history[slot], ev)
}

// Pending returns the events recorded so far in the current block.
func (h *History) Pending() []types.Event {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return clone(h.history[h.currBlock%h.blocksToStore])
}

// EventsForBlock returns the events of a finished block. The current block, future blocks and blocks that have
// fallen out of the window are errors.
func (h *History) EventsForBlock(block uint64) ([]types.Event, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.currBlock <= block {
		return nil, eris.Wrap(ErrBlockHasNotBeenProcessed, "")
	}
	if h.currBlock-block >= h.blocksToStore {
		return nil, eris.Wrap(ErrOldBlockHasBeenDiscarded, "")
	}
	return clone(h.history[block%h.blocksToStore]), nil
}

func clone(events []types.Event) []types.Event {
	out := make([]types.Event, len(events))
	copy(out, events)
	return out
}
