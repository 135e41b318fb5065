package types

// Transport names the protocol a request travels over.
type Transport uint8

const (
	// TransportIsmp is the post-style transport. Requests are correlated by commitment.
	TransportIsmp Transport = iota + 1
	// TransportXcm is the query-style transport. Requests are correlated by query id.
	TransportXcm
)

func (t Transport) String() string {
	switch t {
	case TransportIsmp:
		return "ismp"
	case TransportXcm:
		return "xcm"
	default:
		return "unknown"
	}
}

// Request is something a caller asks the engine to send. The concrete request types are GetRequest, PostRequest
// and QueryRequest.
type Request interface {
	// Transport selects the transport the request is routed to.
	Transport() Transport
	// Timeout is the block height at which the request expires if no response has arrived.
	Timeout() uint64
	// OffChainSize is the number of request bytes the transport keeps outside of engine state.
	OffChainSize() int
}

// Location is an encoded cross-consensus location, opaque to the engine.
type Location string

// GetRequest reads storage keys of a remote state machine at a given height.
type GetRequest struct {
	Destination  uint32   `json:"destination"`
	Height       uint64   `json:"height"`
	Keys         [][]byte `json:"keys"`
	Context      []byte   `json:"context"`
	TimeoutBlock uint64   `json:"timeout"`
}

func (GetRequest) Transport() Transport { return TransportIsmp }

func (r GetRequest) Timeout() uint64 { return r.TimeoutBlock }

func (r GetRequest) OffChainSize() int {
	size := len(r.Context)
	for _, k := range r.Keys {
		size += len(k)
	}
	return size
}

// PostRequest delivers arbitrary data to a remote state machine.
type PostRequest struct {
	Destination  uint32 `json:"destination"`
	Data         []byte `json:"data"`
	TimeoutBlock uint64 `json:"timeout"`
}

func (PostRequest) Transport() Transport { return TransportIsmp }

func (r PostRequest) Timeout() uint64 { return r.TimeoutBlock }

func (r PostRequest) OffChainSize() int { return len(r.Data) }

// QueryRequest opens a query against a responder location. The response is delivered back to the engine
// through the query transport's notify target.
type QueryRequest struct {
	Responder    Location `json:"responder"`
	TimeoutBlock uint64   `json:"timeout"`
}

func (QueryRequest) Transport() Transport { return TransportXcm }

func (r QueryRequest) Timeout() uint64 { return r.TimeoutBlock }

func (r QueryRequest) OffChainSize() int { return len(r.Responder) }
