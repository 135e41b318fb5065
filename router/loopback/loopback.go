// Package loopback provides in-process transports. Nothing leaves the process: dispatched requests are recorded so
// a test or a development node can answer them by calling back into the engine.
package loopback

import (
	"context"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/rotisserie/eris"

	"pkg.world.dev/world-engine/messaging/router"
	"pkg.world.dev/world-engine/messaging/types"
)

// commitmentPreimage is the rlp-encoded form hashed into a request commitment. The nonce keeps two identical
// requests from sharing a commitment.
type commitmentPreimage struct {
	Method      uint8
	Nonce       uint64
	Destination uint32
	Height      uint64
	Keys        [][]byte
	Context     []byte
	Data        []byte
	Timeout     uint64
}

// Dispatched is a request the post transport has accepted.
type Dispatched struct {
	Commitment common.Hash
	Request    types.Request
	Meta       router.FeeMetadata
}

// Post is a post-style transport.
type Post struct {
	mu       sync.Mutex
	nonce    uint64
	requests map[common.Hash]Dispatched
	// Err, when set, fails every dispatch.
	Err error
}

var _ router.PostTransport = &Post{}

func NewPost() *Post {
	return &Post{requests: map[common.Hash]Dispatched{}}
}

func (p *Post) Dispatch(_ context.Context, req types.Request, meta router.FeeMetadata) (common.Hash, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return common.Hash{}, p.Err
	}

	pre := commitmentPreimage{Nonce: p.nonce, Timeout: req.Timeout()}
	switch r := req.(type) {
	case types.GetRequest:
		pre.Method = uint8(types.IsmpGet)
		pre.Destination, pre.Height, pre.Keys, pre.Context = r.Destination, r.Height, r.Keys, r.Context
	case types.PostRequest:
		pre.Method = uint8(types.IsmpPost)
		pre.Destination, pre.Data = r.Destination, r.Data
	default:
		return common.Hash{}, eris.Wrapf(router.ErrUnsupportedRequest, "%T", req)
	}
	bz, err := rlp.EncodeToBytes(pre)
	if err != nil {
		return common.Hash{}, eris.Wrap(err, "")
	}
	commitment := crypto.Keccak256Hash(bz)
	p.nonce++
	p.requests[commitment] = Dispatched{Commitment: commitment, Request: req, Meta: meta}
	return commitment, nil
}

// Requests returns every dispatched request, ordered by commitment.
func (p *Post) Requests() []Dispatched {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Dispatched, 0, len(p.requests))
	for _, d := range p.requests {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Commitment.Cmp(out[j].Commitment) < 0
	})
	return out
}

var _ router.Forgetter = &Post{}

// Forget drops a request once the engine has resolved it. Handles of other transports are ignored.
func (p *Post) Forget(handle types.Handle) {
	commitment, ok := handle.Commitment()
	if !ok {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.requests, commitment)
}

// OpenQuery is a query the query transport has accepted.
type OpenQuery struct {
	ID        types.QueryID
	Responder types.Location
	Notify    types.Location
	Querier   types.Location
	Timeout   uint64
}

// Query is a query-style transport.
type Query struct {
	mu     sync.Mutex
	nextID types.QueryID
	open   map[types.QueryID]OpenQuery
	// Err, when set, fails every open.
	Err error
}

var _ router.QueryTransport = &Query{}

func NewQuery() *Query {
	return &Query{open: map[types.QueryID]OpenQuery{}}
}

func (q *Query) Open(_ context.Context, responder, notify types.Location, timeout uint64, querier types.Location) (
	types.QueryID, error,
) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.Err != nil {
		return 0, q.Err
	}
	id := q.nextID
	q.nextID++
	q.open[id] = OpenQuery{ID: id, Responder: responder, Notify: notify, Querier: querier, Timeout: timeout}
	return id, nil
}

// Queries returns every open query in id order.
func (q *Query) Queries() []OpenQuery {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]OpenQuery, 0, len(q.open))
	for _, o := range q.open {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

var _ router.Forgetter = &Query{}

func (q *Query) Forget(handle types.Handle) {
	id, ok := handle.QueryID()
	if !ok {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.open, id)
}
