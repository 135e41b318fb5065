package router

import (
	"context"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rotisserie/eris"

	"pkg.world.dev/world-engine/messaging/types"
)

var (
	ErrOriginConversionFailed = eris.New("failed to convert origin to a transport location")
	ErrNoTransport            = eris.New("no transport registered for request")
	ErrUnsupportedRequest     = eris.New("unsupported request type")
)

// FeeMetadata travels with a post-style request so the transport can attribute its relayer fee.
type FeeMetadata struct {
	Payer common.Address
	Fee   math.Int
}

// QueryTransport is a query-style transport.
type QueryTransport interface {
	// Open starts a query against responder. The answer is delivered to notify and the query expires at timeout.
	Open(ctx context.Context, responder, notify types.Location, timeout uint64, querier types.Location) (
		types.QueryID, error)
}

// PostTransport is a post-style transport. req is a types.GetRequest or a types.PostRequest.
type PostTransport interface {
	Dispatch(ctx context.Context, req types.Request, meta FeeMetadata) (common.Hash, error)
}

// Forgetter is implemented by transports that keep per-request state until the engine is done with the request.
type Forgetter interface {
	Forget(handle types.Handle)
}

// OriginConverter maps an account to the location a query-style transport uses to identify the querier.
type OriginConverter interface {
	Convert(origin common.Address) (types.Location, error)
}

// OriginConverterFunc adapts a function to OriginConverter.
type OriginConverterFunc func(origin common.Address) (types.Location, error)

func (f OriginConverterFunc) Convert(origin common.Address) (types.Location, error) {
	return f(origin)
}

// Ticket identifies a dispatched request. Handle is always set; Commitment is set for post-style requests and
// QueryID for query-style ones.
type Ticket struct {
	Handle     types.Handle
	Commitment common.Hash
	QueryID    types.QueryID
}

type Router struct {
	query   QueryTransport
	post    PostTransport
	origins OriginConverter
	notify  types.Location
}

type Option func(*Router)

func WithQueryTransport(t QueryTransport) Option {
	return func(r *Router) {
		r.query = t
	}
}

func WithPostTransport(t PostTransport) Option {
	return func(r *Router) {
		r.post = t
	}
}

func WithOriginConverter(c OriginConverter) Option {
	return func(r *Router) {
		r.origins = c
	}
}

// WithNotifyLocation sets the location query responses are delivered to.
func WithNotifyLocation(loc types.Location) Option {
	return func(r *Router) {
		r.notify = loc
	}
}

func New(opts ...Option) *Router {
	r := &Router{
		origins: OriginConverterFunc(AccountLocation),
		notify:  "here",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AccountLocation is the default origin conversion: the account as a 20 byte key junction of the local chain.
func AccountLocation(origin common.Address) (types.Location, error) {
	if origin == (common.Address{}) {
		return "", eris.New("the zero address has no location")
	}
	return types.Location("account20/" + origin.Hex()), nil
}

// Dispatch sends req over the transport it names and returns the ticket identifying it.
func (r *Router) Dispatch(ctx context.Context, origin common.Address, req types.Request, fee math.Int) (
	Ticket, error,
) {
	switch req := req.(type) {
	case types.QueryRequest:
		if r.query == nil {
			return Ticket{}, eris.Wrapf(ErrNoTransport, "transport %s", req.Transport())
		}
		querier, err := r.origins.Convert(origin)
		if err != nil {
			return Ticket{}, eris.Wrap(ErrOriginConversionFailed, err.Error())
		}
		id, err := r.query.Open(ctx, req.Responder, r.notify, req.TimeoutBlock, querier)
		if err != nil {
			return Ticket{}, eris.Wrap(err, "failed to open query")
		}
		return Ticket{Handle: types.QueryHandle(id), QueryID: id}, nil
	case types.GetRequest, types.PostRequest:
		if r.post == nil {
			return Ticket{}, eris.Wrapf(ErrNoTransport, "transport %s", req.Transport())
		}
		commitment, err := r.post.Dispatch(ctx, req, FeeMetadata{Payer: origin, Fee: fee})
		if err != nil {
			return Ticket{}, eris.Wrap(err, "failed to dispatch request")
		}
		return Ticket{Handle: types.CommitmentHandle(commitment), Commitment: commitment}, nil
	default:
		return Ticket{}, eris.Wrapf(ErrUnsupportedRequest, "%T", req)
	}
}

// Resolved tells the transport that issued handle that the engine has applied its response or timeout.
func (r *Router) Resolved(handle types.Handle) {
	var t any
	if _, ok := handle.Commitment(); ok {
		t = r.post
	} else if _, ok := handle.QueryID(); ok {
		t = r.query
	}
	if f, ok := t.(Forgetter); ok {
		f.Forget(handle)
	}
}
