package callback

import (
	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"pkg.world.dev/world-engine/messaging/deposit"
	"pkg.world.dev/world-engine/messaging/types"
)

// Fees is the part of the ledger Settle drives.
type Fees interface {
	Release(reason deposit.Reason, account common.Address, amount math.Int) error
	WithdrawNow(account common.Address, amount math.Int) error
}

// Settlement splits a callback deposit into the part paid for execution and the part returned.
type Settlement struct {
	Charged  math.Int
	Refunded math.Int
}

// Settle releases the whole callback deposit held for origin and then withdraws the fee of the weight the callback
// actually used. held is the deposit taken when the message was sent; weightToFee prices the unused weight.
func Settle(
	fees Fees,
	weightToFee func(types.Weight) math.Int,
	origin common.Address,
	held math.Int,
	gasLimit, used types.Weight,
) (Settlement, error) {
	if held.IsNil() {
		held = math.ZeroInt()
	}
	refund := weightToFee(gasLimit.SaturatingSub(used))
	if refund.GT(held) {
		refund = held
	}
	s := Settlement{Charged: held.Sub(refund), Refunded: refund}

	if err := fees.Release(deposit.ReasonCallbackGas, origin, held); err != nil {
		return s, err
	}
	if err := fees.WithdrawNow(origin, s.Charged); err != nil {
		return s, err
	}
	return s, nil
}
