package types

import (
	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
)

var ErrNotPending = eris.New("message is not pending")

// IsmpMethod distinguishes the two request shapes of the post-style transport.
type IsmpMethod uint8

const (
	IsmpGet IsmpMethod = iota
	IsmpPost
)

// Header is the state every message variant carries regardless of transport or status.
type Header struct {
	Origin   common.Address `json:"origin"`
	Callback *Callback      `json:"callback,omitempty"`
	// MessageDeposit is held under the Messaging reason for the lifetime of the row.
	MessageDeposit math.Int `json:"messageDeposit"`
	// CallbackDeposit is held under the CallbackGas reason while a callback is outstanding. Zero without one.
	CallbackDeposit math.Int `json:"callbackDeposit"`
	// Expiry is the block whose timeout bucket holds the message while it is pending.
	Expiry uint64 `json:"expiry"`
}

func (h Header) Head() Header { return h }

// Message is the sum type of all message states. The concrete variants are IsmpRequest, IsmpResponse,
// IsmpTimeout, XcmQuery, XcmResponse and XcmTimeout; switch on them exhaustively.
type Message interface {
	Head() Header
	Status() Status
	Transport() Transport
	Handle() Handle
	isMessage()
}

// IsmpRequest is a pending post-style request.
type IsmpRequest struct {
	Header
	Method     IsmpMethod  `json:"method"`
	Commitment common.Hash `json:"commitment"`
}

// IsmpResponse is a post-style request that received its response.
type IsmpResponse struct {
	Header
	Method     IsmpMethod  `json:"method"`
	Commitment common.Hash `json:"commitment"`
	Response   []byte      `json:"response"`
}

// IsmpTimeout is a post-style request that expired before a response arrived.
type IsmpTimeout struct {
	Header
	Method     IsmpMethod  `json:"method"`
	Commitment common.Hash `json:"commitment"`
}

// XcmQuery is a pending query-style request.
type XcmQuery struct {
	Header
	QueryID QueryID `json:"queryId"`
}

// XcmResponse is a query that received its response.
type XcmResponse struct {
	Header
	QueryID  QueryID `json:"queryId"`
	Response []byte  `json:"response"`
}

// XcmTimeout is a query that expired before a response arrived.
type XcmTimeout struct {
	Header
	QueryID QueryID `json:"queryId"`
}

func (IsmpRequest) isMessage()  {}
func (IsmpResponse) isMessage() {}
func (IsmpTimeout) isMessage()  {}
func (XcmQuery) isMessage()     {}
func (XcmResponse) isMessage()  {}
func (XcmTimeout) isMessage()   {}

func (IsmpRequest) Status() Status  { return StatusPending }
func (IsmpResponse) Status() Status { return StatusComplete }
func (IsmpTimeout) Status() Status  { return StatusTimeout }
func (XcmQuery) Status() Status     { return StatusPending }
func (XcmResponse) Status() Status  { return StatusComplete }
func (XcmTimeout) Status() Status   { return StatusTimeout }

func (IsmpRequest) Transport() Transport  { return TransportIsmp }
func (IsmpResponse) Transport() Transport { return TransportIsmp }
func (IsmpTimeout) Transport() Transport  { return TransportIsmp }
func (XcmQuery) Transport() Transport     { return TransportXcm }
func (XcmResponse) Transport() Transport  { return TransportXcm }
func (XcmTimeout) Transport() Transport   { return TransportXcm }

func (m IsmpRequest) Handle() Handle  { return CommitmentHandle(m.Commitment) }
func (m IsmpResponse) Handle() Handle { return CommitmentHandle(m.Commitment) }
func (m IsmpTimeout) Handle() Handle  { return CommitmentHandle(m.Commitment) }
func (m XcmQuery) Handle() Handle     { return QueryHandle(m.QueryID) }
func (m XcmResponse) Handle() Handle  { return QueryHandle(m.QueryID) }
func (m XcmTimeout) Handle() Handle   { return QueryHandle(m.QueryID) }

// Complete transitions a pending message to its response variant.
func Complete(m Message, response []byte) (Message, error) {
	switch msg := m.(type) {
	case IsmpRequest:
		return IsmpResponse{Header: msg.Header, Method: msg.Method, Commitment: msg.Commitment, Response: response}, nil
	case XcmQuery:
		return XcmResponse{Header: msg.Header, QueryID: msg.QueryID, Response: response}, nil
	case IsmpResponse, IsmpTimeout, XcmResponse, XcmTimeout:
		return nil, eris.Wrapf(ErrNotPending, "cannot complete message in status %s", m.Status())
	default:
		return nil, eris.Errorf("unknown message variant %T", m)
	}
}

// Expire transitions a pending message to its timeout variant.
func Expire(m Message) (Message, error) {
	switch msg := m.(type) {
	case IsmpRequest:
		return IsmpTimeout{Header: msg.Header, Method: msg.Method, Commitment: msg.Commitment}, nil
	case XcmQuery:
		return XcmTimeout{Header: msg.Header, QueryID: msg.QueryID}, nil
	case IsmpResponse, IsmpTimeout, XcmResponse, XcmTimeout:
		return nil, eris.Wrapf(ErrNotPending, "cannot expire message in status %s", m.Status())
	default:
		return nil, eris.Errorf("unknown message variant %T", m)
	}
}

// ResponseOf returns the stored response payload, or nil for anything that is not complete.
func ResponseOf(m Message) []byte {
	switch msg := m.(type) {
	case IsmpResponse:
		return msg.Response
	case XcmResponse:
		return msg.Response
	default:
		return nil
	}
}

// Deposits returns the message deposit and the callback deposit still held for the message.
func Deposits(m Message) (math.Int, math.Int) {
	h := m.Head()
	return orZero(h.MessageDeposit), orZero(h.CallbackDeposit)
}

func orZero(i math.Int) math.Int {
	if i.IsNil() {
		return math.ZeroInt()
	}
	return i
}

const (
	kindIsmpRequest  = "ismp_request"
	kindIsmpResponse = "ismp_response"
	kindIsmpTimeout  = "ismp_timeout"
	kindXcmQuery     = "xcm_query"
	kindXcmResponse  = "xcm_response"
	kindXcmTimeout   = "xcm_timeout"
)

type envelope struct {
	Kind string          `json:"kind"`
	Body json.RawMessage `json:"body"`
}

// MarshalMessage encodes a message together with its variant tag.
func MarshalMessage(m Message) ([]byte, error) {
	var kind string
	switch m.(type) {
	case IsmpRequest:
		kind = kindIsmpRequest
	case IsmpResponse:
		kind = kindIsmpResponse
	case IsmpTimeout:
		kind = kindIsmpTimeout
	case XcmQuery:
		kind = kindXcmQuery
	case XcmResponse:
		kind = kindXcmResponse
	case XcmTimeout:
		kind = kindXcmTimeout
	default:
		return nil, eris.Errorf("unknown message variant %T", m)
	}
	body, err := json.Marshal(m)
	if err != nil {
		return nil, eris.Wrap(err, "")
	}
	bz, err := json.Marshal(envelope{Kind: kind, Body: body})
	if err != nil {
		return nil, eris.Wrap(err, "")
	}
	return bz, nil
}

// UnmarshalMessage decodes a message produced by MarshalMessage.
func UnmarshalMessage(bz []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(bz, &env); err != nil {
		return nil, eris.Wrap(err, "")
	}
	switch env.Kind {
	case kindIsmpRequest:
		return decodeBody[IsmpRequest](env.Body)
	case kindIsmpResponse:
		return decodeBody[IsmpResponse](env.Body)
	case kindIsmpTimeout:
		return decodeBody[IsmpTimeout](env.Body)
	case kindXcmQuery:
		return decodeBody[XcmQuery](env.Body)
	case kindXcmResponse:
		return decodeBody[XcmResponse](env.Body)
	case kindXcmTimeout:
		return decodeBody[XcmTimeout](env.Body)
	default:
		return nil, eris.Errorf("unknown message kind %q", env.Kind)
	}
}

func decodeBody[T Message](body []byte) (Message, error) {
	var msg T
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, eris.Wrap(err, "")
	}
	return msg, nil
}
