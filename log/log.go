// Package log renders engine state into structured zerolog events.
package log

import (
	"github.com/rs/zerolog"

	"pkg.world.dev/world-engine/messaging/types"
)

// Loggable is anything that can describe its limits and progress.
type Loggable interface {
	CurrentBlock() uint64
	Limits() map[string]uint64
}

func loadMessageIntoEvent(zeroLoggerEvent *zerolog.Event, id types.MessageID, msg types.Message) *zerolog.Event {
	head := msg.Head()
	zeroLoggerEvent.Uint64("message_id", uint64(id))
	zeroLoggerEvent.Str("status", msg.Status().String())
	zeroLoggerEvent.Str("transport", msg.Transport().String())
	zeroLoggerEvent.Str("handle", msg.Handle().String())
	zeroLoggerEvent.Str("origin", head.Origin.Hex())
	zeroLoggerEvent.Uint64("expiry", head.Expiry)
	messageDeposit, callbackDeposit := types.Deposits(msg)
	zeroLoggerEvent.Str("message_deposit", messageDeposit.String())
	zeroLoggerEvent.Str("callback_deposit", callbackDeposit.String())
	if head.Callback != nil {
		dict := zerolog.Dict().
			Str("destination", head.Callback.Destination.Hex()).
			Str("encoding", head.Callback.Encoding.String()).
			Uint64("gas_limit", uint64(head.Callback.GasLimit))
		zeroLoggerEvent.Dict("callback", dict)
	}
	return zeroLoggerEvent
}

func loadEventIntoArrayLogger(ev types.Event, arrayLogger *zerolog.Array) *zerolog.Array {
	dict := zerolog.Dict().
		Str("kind", string(ev.Kind)).
		Uint64("block", ev.Block).
		Uint64("message_id", uint64(ev.ID))
	if ev.Error != "" {
		dict = dict.Str("error", ev.Error)
	}
	if len(ev.IDs) > 0 {
		ids := zerolog.Arr()
		for _, id := range ev.IDs {
			ids = ids.Uint64(uint64(id))
		}
		dict = dict.Array("ids", ids)
	}
	return arrayLogger.Dict(dict)
}

// Message logs every field of a message.
func Message(logger *zerolog.Logger, level zerolog.Level, id types.MessageID, msg types.Message) {
	loadMessageIntoEvent(logger.WithLevel(level), id, msg).Send()
}

// Events logs the events recorded for a block.
func Events(logger *zerolog.Logger, level zerolog.Level, block uint64, events []types.Event) {
	zeroLoggerEvent := logger.WithLevel(level)
	zeroLoggerEvent.Uint64("block", block)
	zeroLoggerEvent.Int("total_events", len(events))
	arrayLogger := zerolog.Arr()
	for _, ev := range events {
		arrayLogger = loadEventIntoArrayLogger(ev, arrayLogger)
	}
	zeroLoggerEvent.Array("events", arrayLogger).Send()
}

// Engine logs the limits and the current block of an engine.
func Engine(logger *zerolog.Logger, level zerolog.Level, target Loggable) {
	zeroLoggerEvent := logger.WithLevel(level)
	zeroLoggerEvent.Uint64("current_block", target.CurrentBlock())
	dict := zerolog.Dict()
	for name, limit := range target.Limits() {
		dict = dict.Uint64(name, limit)
	}
	zeroLoggerEvent.Dict("limits", dict).Send()
}

// CreateMessageLogger creates a sub logger with the entry {"message_id": id}.
func CreateMessageLogger(logger *zerolog.Logger, id types.MessageID) *zerolog.Logger {
	newLogger := logger.With().Uint64("message_id", uint64(id)).Logger()
	return &newLogger
}

// CreateBlockLogger creates a sub logger with the entry {"block": block}.
func CreateBlockLogger(logger *zerolog.Logger, block uint64) *zerolog.Logger {
	newLogger := logger.With().Uint64("block", block).Logger()
	return &newLogger
}
