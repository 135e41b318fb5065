package callback_test

import (
	"context"
	"errors"
	"testing"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"pkg.world.dev/world-engine/assert"
	"pkg.world.dev/world-engine/messaging/callback"
	"pkg.world.dev/world-engine/messaging/deposit"
	"pkg.world.dev/world-engine/messaging/types"
)

var (
	origin      = common.HexToAddress("0x0123")
	destination = common.HexToAddress("0xdead")
	sink        = common.HexToAddress("0xfee")
)

type fakeVM struct {
	calls  int
	input  []byte
	info   callback.CallInfo
	err    error
	panics bool
}

func (f *fakeVM) Call(_ context.Context, _, _ common.Address, input []byte, _ types.Weight) (
	callback.CallInfo, error,
) {
	f.calls++
	f.input = input
	if f.panics {
		panic("contract trapped")
	}
	return f.info, f.err
}

func weight(w types.Weight) *types.Weight {
	return &w
}

func newCallback(limit types.Weight) types.Callback {
	return types.NewCallback(destination, types.NativeBinary, testSelector, limit)
}

func TestExecuteReportsActualWeight(t *testing.T) {
	vm := &fakeVM{info: callback.CallInfo{ActualWeight: weight(40)}}
	exec := callback.NewExecutor(vm)

	res := exec.Execute(context.Background(), origin, 7, newCallback(100), []byte("hello"))
	assert.NilError(t, res.Err)
	assert.Check(t, !res.Failed())
	assert.Equal(t, types.Weight(40), res.WeightUsed)
	assert.Equal(t, 1, vm.calls)

	want, err := callback.EncodeInput(types.NativeBinary, testSelector, 7, []byte("hello"))
	assert.NilError(t, err)
	assert.DeepEqual(t, want, vm.input)
}

func TestExecuteChargesFullLimitWhenUsageIsUnknown(t *testing.T) {
	exec := callback.NewExecutor(&fakeVM{})
	res := exec.Execute(context.Background(), origin, 1, newCallback(100), nil)
	assert.NilError(t, res.Err)
	assert.Equal(t, types.Weight(100), res.WeightUsed)
}

func TestExecuteCapsReportedWeightAtLimit(t *testing.T) {
	exec := callback.NewExecutor(&fakeVM{info: callback.CallInfo{ActualWeight: weight(1000)}})
	res := exec.Execute(context.Background(), origin, 1, newCallback(100), nil)
	assert.Equal(t, types.Weight(100), res.WeightUsed)
}

func TestExecuteCapturesFailures(t *testing.T) {
	reverted := errors.New("execution reverted")
	exec := callback.NewExecutor(&fakeVM{err: reverted, info: callback.CallInfo{ActualWeight: weight(10)}})
	res := exec.Execute(context.Background(), origin, 1, newCallback(100), nil)
	assert.Check(t, res.Failed())
	assert.ErrorIs(t, res.Err, reverted)
	assert.Equal(t, types.Weight(100), res.WeightUsed)
}

func TestExecuteCapturesPanics(t *testing.T) {
	vm := &fakeVM{panics: true}
	exec := callback.NewExecutor(vm)
	res := exec.Execute(context.Background(), origin, 1, newCallback(100), nil)
	assert.ErrorIs(t, res.Err, callback.ErrPanicked)
	assert.Equal(t, types.Weight(100), res.WeightUsed)
	assert.Equal(t, 1, vm.calls)
}

func TestSettleRefundsUnusedWeight(t *testing.T) {
	bank := deposit.NewBank()
	bank.Mint(origin, math.NewInt(1000))
	ledger := deposit.NewLedger(bank, sink)
	weightToFee := func(w types.Weight) math.Int { return math.NewIntFromUint64(uint64(w) * 2) }

	// A gas limit of 100 held as 200.
	assert.NilError(t, ledger.Hold(deposit.ReasonCallbackGas, origin, math.NewInt(200)))

	s, err := callback.Settle(ledger, weightToFee, origin, math.NewInt(200), 100, 30)
	assert.NilError(t, err)
	assert.Equal(t, "60", s.Charged.String())
	assert.Equal(t, "140", s.Refunded.String())

	assert.Equal(t, "0", ledger.Held(origin, deposit.ReasonCallbackGas).String())
	assert.Equal(t, "940", bank.Balance(origin).String())
	assert.Equal(t, "60", bank.Balance(sink).String())
}

func TestSettleChargesEverythingForFullUsage(t *testing.T) {
	bank := deposit.NewBank()
	bank.Mint(origin, math.NewInt(200))
	ledger := deposit.NewLedger(bank, sink)
	weightToFee := func(w types.Weight) math.Int { return math.NewIntFromUint64(uint64(w) * 2) }
	assert.NilError(t, ledger.Hold(deposit.ReasonCallbackGas, origin, math.NewInt(200)))

	s, err := callback.Settle(ledger, weightToFee, origin, math.NewInt(200), 100, 100)
	assert.NilError(t, err)
	assert.Equal(t, "200", s.Charged.String())
	assert.Equal(t, "0", s.Refunded.String())
	assert.Equal(t, "0", bank.Balance(origin).String())
	assert.Equal(t, "200", bank.Balance(sink).String())
}
