// Package pricing turns storage footprints and execution weight into amounts.
package pricing

import (
	"cosmossdk.io/math"

	"pkg.world.dev/world-engine/messaging/types"
)

// Storage footprint, in bytes, of the state one message keeps on chain.
const (
	// MessageRowBytes bounds the encoded size of a message row excluding any response payload: origin, callback,
	// two deposits, expiry and correlation data.
	MessageRowBytes = 128
	// TimeoutEntryBytes is the size of one id in a timeout bucket.
	TimeoutEntryBytes = 8
	// CommitmentEntryBytes is a correlation entry keyed by a 32 byte commitment.
	CommitmentEntryBytes = 32 + 8
	// QueryEntryBytes is a correlation entry keyed by a query id.
	QueryEntryBytes = 8 + 8
)

// Pricing computes the amounts the engine holds and charges.
type Pricing interface {
	// MessageDeposit is the deposit held for the lifetime of a message sent over transport whose request keeps
	// offChainBytes outside of engine state.
	MessageDeposit(transport types.Transport, offChainBytes int) math.Int
	// WeightToFee converts execution weight into an amount.
	WeightToFee(weight types.Weight) math.Int
}

// ByteFee prices storage per byte and execution per unit of weight.
type ByteFee struct {
	OnChainByteFee  math.Int
	OffChainByteFee math.Int
	FeePerWeight    math.Int
}

var _ Pricing = ByteFee{}

func NewByteFee(onChain, offChain, perWeight uint64) ByteFee {
	return ByteFee{
		OnChainByteFee:  math.NewIntFromUint64(onChain),
		OffChainByteFee: math.NewIntFromUint64(offChain),
		FeePerWeight:    math.NewIntFromUint64(perWeight),
	}
}

// OnChainBytes is the number of bytes of engine state a message sent over transport occupies.
func OnChainBytes(transport types.Transport) int {
	entry := 0
	switch transport {
	case types.TransportIsmp:
		entry = CommitmentEntryBytes
	case types.TransportXcm:
		entry = QueryEntryBytes
	}
	return MessageRowBytes + TimeoutEntryBytes + entry
}

func (b ByteFee) MessageDeposit(transport types.Transport, offChainBytes int) math.Int {
	onChain := math.NewInt(int64(OnChainBytes(transport))).Mul(orZero(b.OnChainByteFee))
	if offChainBytes <= 0 {
		return onChain
	}
	return onChain.Add(math.NewInt(int64(offChainBytes)).Mul(orZero(b.OffChainByteFee)))
}

func (b ByteFee) WeightToFee(weight types.Weight) math.Int {
	return math.NewIntFromUint64(uint64(weight)).Mul(orZero(b.FeePerWeight))
}

func orZero(i math.Int) math.Int {
	if i.IsNil() {
		return math.ZeroInt()
	}
	return i
}
