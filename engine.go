// Package messaging is an asynchronous cross-chain messaging engine. Callers send requests over a query-style or a
// post-style transport and later poll for the response; transports deliver responses and timeouts back into the
// engine, which runs any registered callback exactly once and keeps deposits accounted for until the caller
// removes the message.
//
// Every public method runs to completion under the engine lock, so operations are applied one at a time in the
// order they are called.
package messaging

import (
	"context"
	"encoding/binary"
	"sync"

	"cosmossdk.io/math"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pkg.world.dev/world-engine/messaging/callback"
	"pkg.world.dev/world-engine/messaging/deposit"
	"pkg.world.dev/world-engine/messaging/kv"
	msglog "pkg.world.dev/world-engine/messaging/log"
	"pkg.world.dev/world-engine/messaging/pricing"
	"pkg.world.dev/world-engine/messaging/receipt"
	"pkg.world.dev/world-engine/messaging/router"
	"pkg.world.dev/world-engine/messaging/scheduler"
	"pkg.world.dev/world-engine/messaging/sequence"
	"pkg.world.dev/world-engine/messaging/types"
)

const blockKey = "engine/block"

type Engine struct {
	mu sync.Mutex

	cfg       Config
	logger    zerolog.Logger
	store     *kv.Store
	seq       *sequence.Sequence
	scheduler *scheduler.Scheduler
	ledger    *deposit.Ledger
	pricing   pricing.Pricing
	router    *router.Router
	executor  *callback.Executor
	receipts  *receipt.History

	routerOpts []router.Option

	// block is the current block height.
	block uint64
	// callbackWeight is the callback weight spent in the current block.
	callbackWeight types.Weight
}

// New creates an engine that holds deposits through asset and runs callbacks on vm.
func New(ctx context.Context, cfg Config, asset deposit.Asset, vm callback.VM, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:       cfg,
		logger:    log.Logger,
		scheduler: scheduler.New(int(cfg.MaxTimeoutsPerBlock)),
		ledger:    deposit.NewLedger(asset, cfg.feeSink()),
		pricing:   pricing.NewByteFee(cfg.OnChainByteFee, cfg.OffChainByteFee, cfg.FeePerWeight),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With().Str("component", "messaging").Logger()

	if e.store == nil {
		store, err := kv.NewStore(kv.NewMemBackend(), kv.DefaultCacheSize)
		if err != nil {
			return nil, err
		}
		e.store = store
	}
	seq, err := sequence.Load(ctx, e.store)
	if err != nil {
		return nil, eris.Wrap(err, "failed to load message id sequence")
	}
	e.seq = seq
	if err := e.ledger.Load(ctx, e.store); err != nil {
		return nil, eris.Wrap(err, "failed to load deposit holds")
	}
	bz, ok, err := e.store.Get(ctx, blockKey)
	switch {
	case err != nil:
		return nil, eris.Wrap(err, "failed to load block height")
	case ok && len(bz) == 8: //nolint:gomnd // uint64
		e.block = binary.BigEndian.Uint64(bz)
	case ok:
		return nil, eris.Errorf("malformed block height of %d bytes", len(bz))
	default:
		batch := e.store.NewBatch()
		saveBlock(batch, e.block)
		if err := batch.Commit(ctx); err != nil {
			return nil, eris.Wrap(err, "failed to persist start block")
		}
	}

	e.router = router.New(e.routerOpts...)
	e.executor = callback.NewExecutor(vm, callback.WithLogger(e.logger))
	e.receipts = receipt.NewHistory(e.block, cfg.ReceiptHistorySize)

	e.logger.Info().
		Uint64("block", e.block).
		Uint64("next_message_id", e.seq.Peek()).
		Msg("messaging engine ready")
	msglog.Engine(&e.logger, zerolog.DebugLevel, e)
	return e, nil
}

// CurrentBlock is the height of the block the engine is processing.
func (e *Engine) CurrentBlock() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.block
}

func (e *Engine) Limits() map[string]uint64 {
	return e.cfg.Limits()
}

func (e *Engine) Config() Config {
	return e.cfg
}

// Ledger exposes the deposit books for auditing.
func (e *Engine) Ledger() *deposit.Ledger {
	return e.ledger
}

func (e *Engine) Logger() *zerolog.Logger {
	return &e.logger
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Close()
}

func saveBlock(w kv.Writer, height uint64) {
	bz := make([]byte, 8) //nolint:gomnd // uint64
	binary.BigEndian.PutUint64(bz, height)
	w.Set(blockKey, bz)
}

func (e *Engine) weightToFee(w types.Weight) math.Int {
	return e.pricing.WeightToFee(w)
}

func (e *Engine) record(ev types.Event) {
	e.receipts.Add(ev)
	e.logger.Debug().
		Str("event", string(ev.Kind)).
		Uint64("message_id", uint64(ev.ID)).
		Uint64("block", e.block).
		Msg("recorded event")
}
