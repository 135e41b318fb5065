package callback

import (
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/rotisserie/eris"

	"pkg.world.dev/world-engine/messaging/types"
)

var ErrUnknownEncoding = eris.New("unknown callback encoding")

var abiResponseArgs abi.Arguments

func init() {
	uint64Type, err := abi.NewType("uint64", "", nil)
	if err != nil {
		panic(err)
	}
	bytesType, err := abi.NewType("bytes", "", nil)
	if err != nil {
		panic(err)
	}
	abiResponseArgs = abi.Arguments{
		{Name: "id", Type: uint64Type},
		{Name: "response", Type: bytesType},
	}
}

// EncodeInput builds the input a callback destination receives: the selector followed by the message id and the
// response, encoded as requested.
func EncodeInput(encoding types.Encoding, selector types.Selector, id types.MessageID, response []byte) ([]byte, error) {
	switch encoding {
	case types.NativeBinary:
		return encodeNative(selector, id, response), nil
	case types.AbiEncoded:
		return encodeABI(selector, id, response)
	default:
		return nil, eris.Wrapf(ErrUnknownEncoding, "encoding %d", encoding)
	}
}

func encodeABI(selector types.Selector, id types.MessageID, response []byte) ([]byte, error) {
	if response == nil {
		response = []byte{}
	}
	packed, err := abiResponseArgs.Pack(uint64(id), response)
	if err != nil {
		return nil, eris.Wrap(err, "failed to abi encode callback input")
	}
	return append(selector[:], packed...), nil
}

// encodeNative writes the id as a little-endian uint64 and the response as a compact-length-prefixed byte string.
func encodeNative(selector types.Selector, id types.MessageID, response []byte) []byte {
	out := make([]byte, 0, len(selector)+8+5+len(response)) //nolint:gomnd // id + max short length prefix
	out = append(out, selector[:]...)
	out = binary.LittleEndian.AppendUint64(out, uint64(id))
	out = appendCompactLen(out, uint64(len(response)))
	return append(out, response...)
}

// appendCompactLen appends n in the runtime's compact integer form. The two low bits of the first byte select the
// mode: single byte, two bytes, four bytes, or a length-prefixed big integer.
func appendCompactLen(out []byte, n uint64) []byte {
	switch {
	case n < 1<<6:
		return append(out, byte(n<<2))
	case n < 1<<14:
		return binary.LittleEndian.AppendUint16(out, uint16(n<<2)|0b01)
	case n < 1<<30:
		return binary.LittleEndian.AppendUint32(out, uint32(n<<2)|0b10)
	default:
		le := new(big.Int).SetUint64(n).Bytes()
		// big.Int bytes are big-endian
		for i, j := 0, len(le)-1; i < j; i, j = i+1, j-1 {
			le[i], le[j] = le[j], le[i]
		}
		out = append(out, byte((len(le)-4)<<2)|0b11) //nolint:gomnd // length is stored minus four
		return append(out, le...)
	}
}
