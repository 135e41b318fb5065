// Package driver advances the engine one block per tick of a clock. A node without a consensus layer uses it as the
// block-advance hook that sweeps expired timeouts.
package driver

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const DefaultBlockTime = time.Second

// Advancer is the part of the engine the driver moves forward.
type Advancer interface {
	CurrentBlock() uint64
	AdvanceBlock(ctx context.Context, height uint64) error
}

type Driver struct {
	engine    Advancer
	clock     clock.Clock
	blockTime time.Duration
	logger    zerolog.Logger
	blockDone chan<- uint64
	running   chan struct{}
}

type Option func(*Driver)

// WithClock replaces the wall clock, usually with clock.NewMock() in tests.
func WithClock(c clock.Clock) Option {
	return func(d *Driver) {
		d.clock = c
	}
}

func WithBlockTime(blockTime time.Duration) Option {
	return func(d *Driver) {
		if blockTime > 0 {
			d.blockTime = blockTime
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(d *Driver) {
		d.logger = logger
	}
}

// WithBlockDone sends the height of every block once it has been applied.
func WithBlockDone(ch chan<- uint64) Option {
	return func(d *Driver) {
		d.blockDone = ch
	}
}

func New(engine Advancer, opts ...Option) *Driver {
	d := &Driver{
		engine:    engine,
		clock:     clock.New(),
		blockTime: DefaultBlockTime,
		logger:    log.Logger,
		running:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With().Str("component", "driver").Logger()
	return d
}

// Running is closed once Run has started its ticker.
func (d *Driver) Running() <-chan struct{} {
	return d.running
}

// Run advances the engine on every tick until ctx is done. A failed block stops the driver and is returned.
func (d *Driver) Run(ctx context.Context) error {
	ticker := d.clock.Ticker(d.blockTime)
	defer ticker.Stop()
	close(d.running)
	d.logger.Info().Dur("block_time", d.blockTime).Msg("block driver started")

	for {
		select {
		case <-ctx.Done():
			d.logger.Info().Uint64("block", d.engine.CurrentBlock()).Msg("block driver stopped")
			return nil
		case <-ticker.C:
			if err := d.Step(ctx); err != nil {
				return err
			}
		}
	}
}

// Step advances the engine by exactly one block.
func (d *Driver) Step(ctx context.Context) error {
	next := d.engine.CurrentBlock() + 1
	if err := d.engine.AdvanceBlock(ctx, next); err != nil {
		return eris.Wrapf(err, "failed to advance to block %d", next)
	}
	d.logger.Debug().Uint64("block", next).Msg("advanced block")
	if d.blockDone != nil {
		select {
		case d.blockDone <- next:
		case <-ctx.Done():
		}
	}
	return nil
}
