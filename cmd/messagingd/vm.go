package main

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/rs/zerolog"

	"pkg.world.dev/world-engine/messaging/callback"
	"pkg.world.dev/world-engine/messaging/types"
)

// devVM stands in for a contract runtime. It logs every callback input and reports that half of the gas limit was
// used, so refunds show up in the node's balances.
type devVM struct {
	logger zerolog.Logger
}

var _ callback.VM = devVM{}

func newDevVM(logger zerolog.Logger) devVM {
	return devVM{logger: logger.With().Str("component", "dev_vm").Logger()}
}

func (v devVM) Call(_ context.Context, caller, destination common.Address, input []byte, gasLimit types.Weight) (
	callback.CallInfo, error,
) {
	v.logger.Info().
		Str("caller", caller.Hex()).
		Str("destination", destination.Hex()).
		Str("input", hexutil.Encode(input)).
		Msg("callback invoked")
	used := gasLimit / 2 //nolint:gomnd // half
	return callback.CallInfo{ActualWeight: &used}, nil
}
