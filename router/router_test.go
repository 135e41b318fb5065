package router_test

import (
	"context"
	"errors"
	"testing"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"pkg.world.dev/world-engine/assert"
	"pkg.world.dev/world-engine/messaging/router"
	"pkg.world.dev/world-engine/messaging/router/loopback"
	"pkg.world.dev/world-engine/messaging/types"
)

var origin = common.HexToAddress("0x0abc")

func TestQueryRequestsGetQueryHandles(t *testing.T) {
	query := loopback.NewQuery()
	rtr := router.New(router.WithQueryTransport(query), router.WithNotifyLocation("engine"))

	ticket, err := rtr.Dispatch(context.Background(), origin,
		types.QueryRequest{Responder: "relay/1000", TimeoutBlock: 50}, math.ZeroInt())
	assert.NilError(t, err)
	assert.Equal(t, types.QueryHandle(0), ticket.Handle)
	assert.Equal(t, types.QueryID(0), ticket.QueryID)

	open := query.Queries()
	assert.Equal(t, 1, len(open))
	assert.Equal(t, types.Location("relay/1000"), open[0].Responder)
	assert.Equal(t, types.Location("engine"), open[0].Notify)
	assert.Equal(t, uint64(50), open[0].Timeout)
	assert.Equal(t, types.Location("account20/"+origin.Hex()), open[0].Querier)
}

func TestOriginConversionFailureAbortsDispatch(t *testing.T) {
	query := loopback.NewQuery()
	rtr := router.New(
		router.WithQueryTransport(query),
		router.WithOriginConverter(router.OriginConverterFunc(func(common.Address) (types.Location, error) {
			return "", errors.New("no junction for account")
		})),
	)

	_, err := rtr.Dispatch(context.Background(), origin, types.QueryRequest{TimeoutBlock: 5}, math.ZeroInt())
	assert.ErrorIs(t, err, router.ErrOriginConversionFailed)
	assert.Equal(t, 0, len(query.Queries()))
}

func TestPostRequestsGetCommitmentHandles(t *testing.T) {
	post := loopback.NewPost()
	rtr := router.New(router.WithPostTransport(post))

	req := types.PostRequest{Destination: 2000, Data: []byte("ping"), TimeoutBlock: 9}
	first, err := rtr.Dispatch(context.Background(), origin, req, math.NewInt(3))
	assert.NilError(t, err)
	second, err := rtr.Dispatch(context.Background(), origin, req, math.NewInt(3))
	assert.NilError(t, err)
	assert.Check(t, first.Handle != second.Handle, "identical requests must not share a commitment")
	assert.Equal(t, types.CommitmentHandle(first.Commitment), first.Handle)

	dispatched := post.Requests()
	assert.Equal(t, 2, len(dispatched))
	for _, d := range dispatched {
		assert.Equal(t, origin, d.Meta.Payer)
		assert.Equal(t, "3", d.Meta.Fee.String())
	}
}

func TestMissingTransportIsAnError(t *testing.T) {
	rtr := router.New()
	_, err := rtr.Dispatch(context.Background(), origin, types.GetRequest{TimeoutBlock: 1}, math.ZeroInt())
	assert.ErrorIs(t, err, router.ErrNoTransport)
	_, err = rtr.Dispatch(context.Background(), origin, types.QueryRequest{TimeoutBlock: 1}, math.ZeroInt())
	assert.ErrorIs(t, err, router.ErrNoTransport)
}

func TestTransportErrorsPropagate(t *testing.T) {
	post := loopback.NewPost()
	post.Err = errors.New("relayer offline")
	rtr := router.New(router.WithPostTransport(post))
	_, err := rtr.Dispatch(context.Background(), origin, types.GetRequest{TimeoutBlock: 1}, math.ZeroInt())
	assert.ErrorIs(t, err, post.Err)
}

func TestResolvedReachesTheIssuingTransport(t *testing.T) {
	post := loopback.NewPost()
	query := loopback.NewQuery()
	rtr := router.New(router.WithPostTransport(post), router.WithQueryTransport(query))
	ctx := context.Background()

	posted, err := rtr.Dispatch(ctx, origin, types.PostRequest{Data: []byte("ping"), TimeoutBlock: 9}, math.ZeroInt())
	assert.NilError(t, err)
	queried, err := rtr.Dispatch(ctx, origin, types.QueryRequest{Responder: "relay/1000", TimeoutBlock: 9},
		math.ZeroInt())
	assert.NilError(t, err)

	rtr.Resolved(queried.Handle)
	assert.Equal(t, 0, len(query.Queries()))
	assert.Equal(t, 1, len(post.Requests()))

	rtr.Resolved(posted.Handle)
	assert.Equal(t, 0, len(post.Requests()))

	// Unknown handles and missing transports are ignored.
	rtr.Resolved("nonsense")
	router.New().Resolved(posted.Handle)
}
