package sign

import (
	"crypto/ecdsa"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
)

var ErrUnknownCall = eris.New("unknown call kind")

// CallKind names the engine operation a Call asks for.
type CallKind string

const (
	CallGet    CallKind = "get"
	CallPost   CallKind = "post"
	CallQuery  CallKind = "query"
	CallRemove CallKind = "remove"
)

// Call is a request made on behalf of Origin. Body is the JSON encoded request; it is signed as is.
type Call struct {
	Kind   CallKind       `json:"kind"`
	Origin common.Address `json:"origin"`
	Body   hexutil.Bytes  `json:"body"`
	// Nonce must increase with every call of the same origin.
	Nonce     uint64        `json:"nonce"`
	Signature hexutil.Bytes `json:"signature,omitempty"`
}

func UnmarshalCall(bz []byte) (*Call, error) {
	c := &Call{}
	if err := json.Unmarshal(bz, c); err != nil {
		return nil, eris.Wrap(err, "")
	}
	return c, nil
}

// NewCall encodes body and signs the call with pk. The origin is the address of pk.
func NewCall(pk *ecdsa.PrivateKey, kind CallKind, nonce uint64, body any) (*Call, error) {
	bz, err := json.Marshal(body)
	if err != nil {
		return nil, eris.Wrap(err, "")
	}
	c := &Call{Kind: kind, Origin: crypto.PubkeyToAddress(pk.PublicKey), Body: bz, Nonce: nonce}
	hash, err := c.hash()
	if err != nil {
		return nil, err
	}
	if c.Signature, err = crypto.Sign(hash, pk); err != nil {
		return nil, eris.Wrap(err, "")
	}
	return c, nil
}

func (c *Call) Marshal() ([]byte, error) {
	bz, err := json.Marshal(c)
	return bz, eris.Wrap(err, "")
}

// Verify checks that the call was signed by its origin.
func (c *Call) Verify() error {
	hash, err := c.hash()
	if err != nil {
		return err
	}
	pub, err := crypto.SigToPub(hash, c.Signature)
	if err != nil {
		return eris.Wrap(ErrSignatureValidationFailed, err.Error())
	}
	if addr := crypto.PubkeyToAddress(*pub); addr != c.Origin {
		return eris.Wrapf(ErrSignatureValidationFailed, "signed by %s, not %s", addr, c.Origin)
	}
	return nil
}

func (c *Call) hash() ([]byte, error) {
	switch c.Kind {
	case CallGet, CallPost, CallQuery, CallRemove:
	default:
		return nil, eris.Wrapf(ErrUnknownCall, "%q", c.Kind)
	}
	hash := crypto.NewKeccakState()
	for _, part := range [][]byte{
		[]byte(c.Kind),
		c.Origin.Bytes(),
		[]byte(strconv.FormatUint(c.Nonce, 10)),
		c.Body,
	} {
		if _, err := hash.Write(part); err != nil {
			return nil, eris.Wrap(err, "")
		}
	}
	return hash.Sum(nil), nil
}
