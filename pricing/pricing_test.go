package pricing_test

import (
	"testing"

	"pkg.world.dev/world-engine/assert"
	"pkg.world.dev/world-engine/messaging/pricing"
	"pkg.world.dev/world-engine/messaging/types"
)

func TestMessageDepositChargesBothByteFees(t *testing.T) {
	fees := pricing.NewByteFee(10, 5, 2)

	// 128 row + 8 timeout + 40 commitment entry = 176 on-chain bytes.
	assert.Equal(t, 176, pricing.OnChainBytes(types.TransportIsmp))
	assert.Equal(t, "1760", fees.MessageDeposit(types.TransportIsmp, 0).String())
	assert.Equal(t, "1810", fees.MessageDeposit(types.TransportIsmp, 10).String())

	// 128 + 8 + 16 = 152.
	assert.Equal(t, 152, pricing.OnChainBytes(types.TransportXcm))
	assert.Equal(t, "1520", fees.MessageDeposit(types.TransportXcm, 0).String())
}

func TestWeightToFee(t *testing.T) {
	fees := pricing.NewByteFee(0, 0, 3)
	assert.Equal(t, "0", fees.WeightToFee(0).String())
	assert.Equal(t, "300", fees.WeightToFee(100).String())
}

func TestZeroValueIsFree(t *testing.T) {
	var fees pricing.ByteFee
	assert.Equal(t, "0", fees.MessageDeposit(types.TransportXcm, 100).String())
	assert.Equal(t, "0", fees.WeightToFee(100).String())
}
