package types

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// MessageID identifies a message for its whole lifetime. IDs are allocated by a single sequence and are never reused.
type MessageID uint64

// Bytes returns the big-endian encoding of the id, used for ordered storage keys.
func (id MessageID) Bytes() []byte {
	bz := make([]byte, 8) //nolint:gomnd // uint64
	binary.BigEndian.PutUint64(bz, uint64(id))
	return bz
}

func (id MessageID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// MessageIDFromBytes is the inverse of MessageID.Bytes.
func MessageIDFromBytes(bz []byte) (MessageID, bool) {
	if len(bz) != 8 { //nolint:gomnd // uint64
		return 0, false
	}
	return MessageID(binary.BigEndian.Uint64(bz)), true
}

// Weight is an amount of execution resources, used both as a callback gas limit and as the unit priced by
// pricing.WeightToFee.
type Weight uint64

// SaturatingSub returns w - other, or zero when other is larger.
func (w Weight) SaturatingSub(other Weight) Weight {
	if other >= w {
		return 0
	}
	return w - other
}

// QueryID is the identifier a query-style transport assigns to an open query.
type QueryID uint64

// Handle is the opaque correlation key a transport hands back for a dispatched request. The engine never looks
// inside it; it only uses it to find the originating message when a response or timeout arrives.
type Handle string

const (
	commitmentHandlePrefix = "ismp/"
	queryHandlePrefix      = "xcm/"
)

// CommitmentHandle is the handle of a post-style request identified by its commitment.
func CommitmentHandle(commitment common.Hash) Handle {
	return Handle(commitmentHandlePrefix + commitment.Hex())
}

// QueryHandle is the handle of a query-style request identified by its query id.
func QueryHandle(id QueryID) Handle {
	return Handle(queryHandlePrefix + strconv.FormatUint(uint64(id), 10))
}

func (h Handle) String() string {
	return string(h)
}

// Commitment returns the commitment of a handle made by CommitmentHandle.
func (h Handle) Commitment() (common.Hash, bool) {
	hex, ok := strings.CutPrefix(string(h), commitmentHandlePrefix)
	if !ok || len(hex) != 2+2*common.HashLength {
		return common.Hash{}, false
	}
	return common.HexToHash(hex), true
}

// QueryID returns the query id of a handle made by QueryHandle.
func (h Handle) QueryID() (QueryID, bool) {
	digits, ok := strings.CutPrefix(string(h), queryHandlePrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0, false
	}
	return QueryID(id), true
}
