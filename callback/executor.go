// Package callback runs the contract callbacks attached to messages. A callback is third-party code: whatever it
// does, the executor reports the outcome as a value and never lets a failure escape into the caller.
package callback

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pkg.world.dev/world-engine/messaging/types"
)

var ErrPanicked = eris.New("callback panicked")

// CallInfo is what the VM reports about a finished call.
type CallInfo struct {
	// ActualWeight is the weight the call consumed, if the VM measured it.
	ActualWeight *types.Weight
}

// VM executes contract calls.
type VM interface {
	Call(
		ctx context.Context,
		caller, destination common.Address,
		input []byte,
		gasLimit types.Weight,
	) (CallInfo, error)
}

// Result is the outcome of one callback attempt.
type Result struct {
	// WeightUsed is the weight charged for the attempt. It never exceeds the callback's gas limit.
	WeightUsed types.Weight
	// Err is the reason the callback failed, or nil.
	Err error
}

func (r Result) Failed() bool {
	return r.Err != nil
}

type Executor struct {
	vm     VM
	logger zerolog.Logger
}

type Option func(*Executor)

func WithLogger(logger zerolog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

func NewExecutor(vm VM, opts ...Option) *Executor {
	e := &Executor{
		vm:     vm,
		logger: log.Logger.With().Str("component", "callback").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute invokes cb with response on behalf of origin. A failed call, or one whose usage the VM did not report, is
// charged the full gas limit.
func (e *Executor) Execute(
	ctx context.Context,
	origin common.Address,
	id types.MessageID,
	cb types.Callback,
	response []byte,
) Result {
	input, err := EncodeInput(cb.Encoding, cb.Selector, id, response)
	if err != nil {
		return Result{WeightUsed: cb.GasLimit, Err: err}
	}

	info, err := e.call(ctx, origin, cb, input)
	result := Result{WeightUsed: cb.GasLimit, Err: err}
	if err == nil && info.ActualWeight != nil && *info.ActualWeight < cb.GasLimit {
		result.WeightUsed = *info.ActualWeight
	}

	e.logger.Debug().
		Uint64("message_id", uint64(id)).
		Str("destination", cb.Destination.Hex()).
		Uint64("gas_limit", uint64(cb.GasLimit)).
		Uint64("weight_used", uint64(result.WeightUsed)).
		Err(result.Err).
		Msg("executed callback")
	return result
}

func (e *Executor) call(ctx context.Context, origin common.Address, cb types.Callback, input []byte) (
	info CallInfo, err error,
) {
	defer func() {
		if r := recover(); r != nil {
			info = CallInfo{}
			err = eris.Wrap(ErrPanicked, fmt.Sprint(r))
		}
	}()
	return e.vm.Call(ctx, origin, cb.Destination, input, cb.GasLimit)
}
