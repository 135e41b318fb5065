package types_test

import (
	"testing"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/goccy/go-json"

	"pkg.world.dev/world-engine/assert"
	"pkg.world.dev/world-engine/messaging/types"
)

func header(cb *types.Callback) types.Header {
	return types.Header{
		Origin:          common.HexToAddress("0xa11ce"),
		Callback:        cb,
		MessageDeposit:  math.NewInt(1_840),
		CallbackDeposit: math.NewInt(500),
		Expiry:          110,
	}
}

func TestCompleteAndExpireOnlyApplyToPending(t *testing.T) {
	commitment := common.HexToHash("0x01")
	req := types.IsmpRequest{Header: header(nil), Method: types.IsmpPost, Commitment: commitment}

	done, err := types.Complete(req, []byte("pong"))
	assert.NilError(t, err)
	assert.Equal(t, types.StatusComplete, done.Status())
	assert.Equal(t, "pong", string(types.ResponseOf(done)))
	assert.Equal(t, req.Handle(), done.Handle())

	_, err = types.Complete(done, []byte("again"))
	assert.ErrorIs(t, err, types.ErrNotPending)
	_, err = types.Expire(done)
	assert.ErrorIs(t, err, types.ErrNotPending)

	query := types.XcmQuery{Header: header(nil), QueryID: 9}
	expired, err := types.Expire(query)
	assert.NilError(t, err)
	assert.Equal(t, types.StatusTimeout, expired.Status())
	assert.Equal(t, types.TransportXcm, expired.Transport())
	assert.Equal(t, types.Handle("xcm/9"), expired.Handle())
	assert.Equal(t, 0, len(types.ResponseOf(expired)))
}

func TestMessageEncodingKeepsVariant(t *testing.T) {
	cb := types.NewCallback(common.HexToAddress("0xc0ffee"), types.NativeBinary, types.Selector{1, 2, 3, 4}, 900)
	messages := []types.Message{
		types.IsmpRequest{Header: header(&cb), Method: types.IsmpGet, Commitment: common.HexToHash("0xaa")},
		types.IsmpResponse{Header: header(nil), Method: types.IsmpPost, Response: []byte("r")},
		types.IsmpTimeout{Header: header(nil), Commitment: common.HexToHash("0xbb")},
		types.XcmQuery{Header: header(&cb), QueryID: 3},
		types.XcmResponse{Header: header(nil), QueryID: 4, Response: []byte{0, 1}},
		types.XcmTimeout{Header: header(nil), QueryID: 5},
	}
	for _, msg := range messages {
		bz, err := types.MarshalMessage(msg)
		assert.NilError(t, err)
		decoded, err := types.UnmarshalMessage(bz)
		assert.NilError(t, err)

		assert.Equal(t, msg.Status(), decoded.Status())
		assert.Equal(t, msg.Transport(), decoded.Transport())
		assert.Equal(t, msg.Handle(), decoded.Handle())
		assert.Equal(t, string(types.ResponseOf(msg)), string(types.ResponseOf(decoded)))

		head := decoded.Head()
		assert.Equal(t, "1840", head.MessageDeposit.String())
		assert.Equal(t, uint64(110), head.Expiry)
		if msg.Head().Callback != nil {
			assert.Equal(t, cb, *head.Callback)
		}
	}

	_, err := types.UnmarshalMessage([]byte(`{"kind":"carrier_pigeon","body":{}}`))
	assert.Check(t, err != nil)
}

func TestDepositsTreatUnsetAsZero(t *testing.T) {
	m, c := types.Deposits(types.XcmQuery{})
	assert.Equal(t, "0", m.String())
	assert.Equal(t, "0", c.String())
}

func TestStatusJSON(t *testing.T) {
	bz, err := json.Marshal(types.StatusTimeout)
	assert.NilError(t, err)
	assert.Equal(t, `"Timeout"`, string(bz))

	var s types.Status
	assert.NilError(t, json.Unmarshal([]byte(`"Complete"`), &s))
	assert.Equal(t, types.StatusComplete, s)
	assert.True(t, s.IsTerminal())
	assert.False(t, types.StatusPending.IsTerminal())

	assert.Check(t, json.Unmarshal([]byte(`"Lost"`), &s) != nil)
}

func TestWeightSaturatingSub(t *testing.T) {
	assert.Equal(t, types.Weight(3), types.Weight(10).SaturatingSub(7))
	assert.Equal(t, types.Weight(0), types.Weight(7).SaturatingSub(10))
}

func TestMessageIDBytes(t *testing.T) {
	id := types.MessageID(0x0102)
	back, ok := types.MessageIDFromBytes(id.Bytes())
	assert.True(t, ok)
	assert.Equal(t, id, back)
	_, ok = types.MessageIDFromBytes([]byte{1})
	assert.False(t, ok)
}

func TestHandleParsing(t *testing.T) {
	commitment := common.HexToHash("0xabc")
	got, ok := types.CommitmentHandle(commitment).Commitment()
	assert.True(t, ok)
	assert.Equal(t, commitment, got)
	_, ok = types.CommitmentHandle(commitment).QueryID()
	assert.Check(t, !ok)

	id, ok := types.QueryHandle(42).QueryID()
	assert.True(t, ok)
	assert.Equal(t, types.QueryID(42), id)
	_, ok = types.QueryHandle(42).Commitment()
	assert.Check(t, !ok)

	_, ok = types.Handle("xcm/forty-two").QueryID()
	assert.Check(t, !ok)
	_, ok = types.Handle("ismp/0x12").Commitment()
	assert.Check(t, !ok)
}
