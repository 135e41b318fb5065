package messaging

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pkg.world.dev/world-engine/messaging/kv"
	"pkg.world.dev/world-engine/messaging/pricing"
	"pkg.world.dev/world-engine/messaging/router"
	"pkg.world.dev/world-engine/messaging/types"
)

// Option configures an Engine.
type Option func(*Engine)

// WithStore persists engine state in store. Without it the engine keeps state in memory.
func WithStore(store *kv.Store) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithPricing replaces the byte-fee pricing derived from Config.
func WithPricing(p pricing.Pricing) Option {
	return func(e *Engine) {
		e.pricing = p
	}
}

func WithQueryTransport(t router.QueryTransport) Option {
	return func(e *Engine) {
		e.routerOpts = append(e.routerOpts, router.WithQueryTransport(t))
	}
}

func WithPostTransport(t router.PostTransport) Option {
	return func(e *Engine) {
		e.routerOpts = append(e.routerOpts, router.WithPostTransport(t))
	}
}

// WithOriginConverter sets how origins are turned into querier locations for the query transport.
func WithOriginConverter(c router.OriginConverter) Option {
	return func(e *Engine) {
		e.routerOpts = append(e.routerOpts, router.WithOriginConverter(c))
	}
}

// WithNotifyLocation sets the location query responses are delivered to.
func WithNotifyLocation(loc types.Location) Option {
	return func(e *Engine) {
		e.routerOpts = append(e.routerOpts, router.WithNotifyLocation(loc))
	}
}

// WithStartBlock sets the block height of a fresh engine. It is ignored when the store already holds a height.
func WithStartBlock(height uint64) Option {
	return func(e *Engine) {
		e.block = height
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithPrettyLog() Option {
	return func(e *Engine) {
		e.logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
