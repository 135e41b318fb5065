package server

import (
	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"

	"pkg.world.dev/world-engine/messaging/sign"
	"pkg.world.dev/world-engine/messaging/types"
)

// GetBody is the body of a get call.
type GetBody struct {
	Destination uint32          `json:"destination"`
	Height      uint64          `json:"height"`
	Keys        []hexutil.Bytes `json:"keys"`
	Context     hexutil.Bytes   `json:"context"`
	Timeout     uint64          `json:"timeout"`
	Fee         math.Int        `json:"fee"`
	Callback    *types.Callback `json:"callback,omitempty"`
}

// PostBody is the body of a post call.
type PostBody struct {
	Destination uint32          `json:"destination"`
	Data        hexutil.Bytes   `json:"data"`
	Timeout     uint64          `json:"timeout"`
	Fee         math.Int        `json:"fee"`
	Callback    *types.Callback `json:"callback,omitempty"`
}

// QueryBody is the body of a query call.
type QueryBody struct {
	Responder types.Location  `json:"responder"`
	Timeout   uint64          `json:"timeout"`
	Callback  *types.Callback `json:"callback,omitempty"`
}

// RemoveBody is the body of a remove call.
type RemoveBody struct {
	IDs []types.MessageID `json:"ids"`
}

type SendReply struct {
	ID types.MessageID `json:"id"`
}

type RemoveReply struct {
	Removed []types.MessageID `json:"removed"`
}

func (s *Server) postGet(c *fiber.Ctx) error {
	call, err := s.decodeCall(c, sign.CallGet)
	if err != nil {
		return err
	}
	var body GetBody
	if err := decodeBody(call, &body); err != nil {
		return err
	}
	keys := make([][]byte, len(body.Keys))
	for i, k := range body.Keys {
		keys[i] = k
	}
	req := types.GetRequest{
		Destination:  body.Destination,
		Height:       body.Height,
		Keys:         keys,
		Context:      body.Context,
		TimeoutBlock: body.Timeout,
	}
	id, err := s.engine.Get(c.UserContext(), call.Origin, req, body.Fee, body.Callback)
	if err != nil {
		return engineError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(SendReply{ID: id})
}

func (s *Server) postPost(c *fiber.Ctx) error {
	call, err := s.decodeCall(c, sign.CallPost)
	if err != nil {
		return err
	}
	var body PostBody
	if err := decodeBody(call, &body); err != nil {
		return err
	}
	req := types.PostRequest{Destination: body.Destination, Data: body.Data, TimeoutBlock: body.Timeout}
	id, err := s.engine.Post(c.UserContext(), call.Origin, req, body.Fee, body.Callback)
	if err != nil {
		return engineError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(SendReply{ID: id})
}

func (s *Server) postQuery(c *fiber.Ctx) error {
	call, err := s.decodeCall(c, sign.CallQuery)
	if err != nil {
		return err
	}
	var body QueryBody
	if err := decodeBody(call, &body); err != nil {
		return err
	}
	id, err := s.engine.OpenQuery(c.UserContext(), call.Origin, body.Responder, body.Timeout, body.Callback)
	if err != nil {
		return engineError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(SendReply{ID: id})
}

func (s *Server) postRemove(c *fiber.Ctx) error {
	call, err := s.decodeCall(c, sign.CallRemove)
	if err != nil {
		return err
	}
	var body RemoveBody
	if err := decodeBody(call, &body); err != nil {
		return err
	}
	if len(body.IDs) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "Bad Request - ids are required")
	}
	if err := s.engine.RemoveMany(c.UserContext(), call.Origin, body.IDs); err != nil {
		return engineError(err)
	}
	return c.JSON(RemoveReply{Removed: body.IDs})
}

// decodeCall parses the body of a call endpoint and checks that its origin signed it. Unsigned calls are only
// accepted when the server allows them.
func (s *Server) decodeCall(c *fiber.Ctx, kind sign.CallKind) (*sign.Call, error) {
	call, err := sign.UnmarshalCall(c.Body())
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Bad Request - unparseable body")
	}
	if call.Kind == "" {
		call.Kind = kind
	}
	if call.Kind != kind {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Bad Request - call kind does not match endpoint")
	}
	if len(call.Signature) == 0 {
		if !s.allowUnsigned {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "call must be signed by its origin")
		}
		return call, nil
	}
	if err := call.Verify(); err != nil {
		return nil, fiber.NewError(fiber.StatusUnauthorized, err.Error())
	}
	s.nonceMu.Lock()
	defer s.nonceMu.Unlock()
	if call.Nonce <= s.callNonces[call.Origin] {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "invalid nonce")
	}
	s.callNonces[call.Origin] = call.Nonce
	return call, nil
}

func decodeBody(call *sign.Call, v any) error {
	if err := json.Unmarshal(call.Body, v); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Bad Request - malformed call body")
	}
	return nil
}
