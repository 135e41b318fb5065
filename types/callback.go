package types

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
)

// Encoding selects how a response is encoded before it is handed to a callback destination.
type Encoding uint8

const (
	// NativeBinary is the runtime's native length-prefixed little-endian encoding.
	NativeBinary Encoding = iota
	// AbiEncoded is Solidity ABI encoding, for EVM contract destinations.
	AbiEncoded
)

func (e Encoding) String() string {
	switch e {
	case NativeBinary:
		return "native"
	case AbiEncoded:
		return "abi"
	default:
		return "unknown"
	}
}

// Selector is the 4 byte function selector prefixed to callback input.
type Selector [4]byte

func (s Selector) MarshalJSON() ([]byte, error) {
	return json.Marshal(hexutil.Bytes(s[:]))
}

func (s *Selector) UnmarshalJSON(bz []byte) error {
	var raw hexutil.Bytes
	if err := json.Unmarshal(bz, &raw); err != nil {
		return eris.Wrap(err, "")
	}
	if len(raw) != len(s) {
		return eris.Errorf("selector must be %d bytes, got %d", len(s), len(raw))
	}
	copy(s[:], raw)
	return nil
}

// Callback describes exactly one future invocation of a contract, performed when the message it is attached to
// resolves with a response.
type Callback struct {
	Destination common.Address `json:"destination"`
	Encoding    Encoding       `json:"encoding"`
	Selector    Selector       `json:"selector"`
	// GasLimit is the prepaid budget for the invocation. It is held as a CallbackGas deposit until the callback
	// settles.
	GasLimit Weight `json:"gasLimit"`
}

func NewCallback(destination common.Address, encoding Encoding, selector Selector, gasLimit Weight) Callback {
	return Callback{
		Destination: destination,
		Encoding:    encoding,
		Selector:    selector,
		GasLimit:    gasLimit,
	}
}
