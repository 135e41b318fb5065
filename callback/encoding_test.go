package callback_test

import (
	"encoding/hex"
	"testing"

	"gotest.tools/v3/golden"

	"pkg.world.dev/world-engine/assert"
	"pkg.world.dev/world-engine/messaging/callback"
	"pkg.world.dev/world-engine/messaging/types"
)

var testSelector = types.Selector{0x01, 0x02, 0x03, 0x04}

func counting(n int) []byte {
	bz := make([]byte, n)
	for i := range bz {
		bz[i] = byte(i)
	}
	return bz
}

func TestEncodeInputGolden(t *testing.T) {
	cases := []struct {
		name     string
		encoding types.Encoding
		id       types.MessageID
		response []byte
	}{
		{"native_hello", types.NativeBinary, 7, []byte("hello")},
		{"native_empty", types.NativeBinary, 0, nil},
		{"native_two_byte_length", types.NativeBinary, 1<<40 + 3, counting(100)},
		{"abi_hello", types.AbiEncoded, 7, []byte("hello")},
		{"abi_empty", types.AbiEncoded, 0, nil},
		{"abi_multi_word", types.AbiEncoded, 1<<40 + 3, counting(100)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input, err := callback.EncodeInput(tc.encoding, testSelector, tc.id, tc.response)
			assert.NilError(t, err)
			golden.AssertBytes(t, []byte(hex.EncodeToString(input)), tc.name+".golden")
		})
	}
}

func TestEncodeInputRejectsUnknownEncoding(t *testing.T) {
	_, err := callback.EncodeInput(types.Encoding(9), testSelector, 1, nil)
	assert.ErrorIs(t, err, callback.ErrUnknownEncoding)
}
