// Package sign allows a relayer running out of process to sign the responses and timeouts it delivers, and the
// engine's API to verify them.
package sign

import (
	"crypto/ecdsa"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"

	"pkg.world.dev/world-engine/messaging/types"
)

var (
	// ErrSignatureValidationFailed is returned when a signature does not belong to the expected signer.
	ErrSignatureValidationFailed = eris.New("signature validation failed")
	ErrUnknownKind               = eris.New("unknown delivery kind")
)

// Kind says what a delivery reports.
type Kind string

const (
	KindResponse Kind = "response"
	KindTimeout  Kind = "timeout"
)

// Delivery is a response or a timeout for the request identified by Handle.
type Delivery struct {
	Kind     Kind          `json:"kind"`
	Handle   types.Handle  `json:"handle"`
	Response hexutil.Bytes `json:"response,omitempty"`
	// Nonce must increase with every delivery of the same relayer.
	Nonce     uint64        `json:"nonce"`
	Signature hexutil.Bytes `json:"signature,omitempty"`
}

// Unmarshal decodes a delivery. Verify must still be called to check its signature.
func Unmarshal(bz []byte) (*Delivery, error) {
	d := &Delivery{}
	if err := json.Unmarshal(bz, d); err != nil {
		return nil, eris.Wrap(err, "")
	}
	return d, nil
}

// NewDelivery builds a delivery and signs it with pk.
func NewDelivery(pk *ecdsa.PrivateKey, kind Kind, handle types.Handle, response []byte, nonce uint64) (
	*Delivery, error,
) {
	d := &Delivery{Kind: kind, Handle: handle, Response: response, Nonce: nonce}
	if err := d.Sign(pk); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Delivery) Sign(pk *ecdsa.PrivateKey) error {
	hash, err := d.hash()
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(hash, pk)
	if err != nil {
		return eris.Wrap(err, "")
	}
	d.Signature = sig
	return nil
}

func (d *Delivery) Marshal() ([]byte, error) {
	bz, err := json.Marshal(d)
	return bz, eris.Wrap(err, "")
}

// Signer recovers the address that signed the delivery.
func (d *Delivery) Signer() (common.Address, error) {
	hash, err := d.hash()
	if err != nil {
		return common.Address{}, err
	}
	pub, err := crypto.SigToPub(hash, d.Signature)
	if err != nil {
		return common.Address{}, eris.Wrap(ErrSignatureValidationFailed, err.Error())
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Verify checks that signer signed the delivery.
func (d *Delivery) Verify(signer common.Address) error {
	addr, err := d.Signer()
	if err != nil {
		return err
	}
	if addr != signer {
		return eris.Wrapf(ErrSignatureValidationFailed, "signed by %s", addr)
	}
	return nil
}

func (d *Delivery) hash() ([]byte, error) {
	if d.Kind != KindResponse && d.Kind != KindTimeout {
		return nil, eris.Wrapf(ErrUnknownKind, "%q", d.Kind)
	}
	hash := crypto.NewKeccakState()
	for _, part := range [][]byte{
		[]byte(d.Kind),
		[]byte(d.Handle),
		[]byte(strconv.FormatUint(d.Nonce, 10)),
		d.Response,
	} {
		if _, err := hash.Write(part); err != nil {
			return nil, eris.Wrap(err, "")
		}
	}
	return hash.Sum(nil), nil
}
