package server

import (
	"errors"
	"strconv"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gofiber/fiber/v2"

	"pkg.world.dev/world-engine/messaging"
	"pkg.world.dev/world-engine/messaging/receipt"
	"pkg.world.dev/world-engine/messaging/sign"
	"pkg.world.dev/world-engine/messaging/types"
)

type HealthReply struct {
	IsServerRunning bool   `json:"isServerRunning"`
	Block           uint64 `json:"block"`
}

type StatusReply struct {
	ID     types.MessageID `json:"id"`
	Status types.Status    `json:"status"`
}

type ResponseReply struct {
	ID       types.MessageID `json:"id"`
	Status   types.Status    `json:"status"`
	Response hexutil.Bytes   `json:"response"`
}

type EventsReply struct {
	Block  uint64        `json:"block"`
	Events []types.Event `json:"events"`
}

func (s *Server) getHealth(c *fiber.Ctx) error {
	return c.JSON(HealthReply{IsServerRunning: true, Block: s.engine.CurrentBlock()})
}

func (s *Server) getLimits(c *fiber.Ctx) error {
	return c.JSON(s.engine.Limits())
}

func (s *Server) getMessage(c *fiber.Ctx) error {
	id, err := messageID(c)
	if err != nil {
		return err
	}
	msg, err := s.engine.Message(c.UserContext(), id)
	if err != nil {
		return engineError(err)
	}
	bz, err := types.MarshalMessage(msg)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(bz)
}

func (s *Server) getStatus(c *fiber.Ctx) error {
	id, err := messageID(c)
	if err != nil {
		return err
	}
	status, err := s.engine.PollStatus(c.UserContext(), id)
	if err != nil {
		return engineError(err)
	}
	return c.JSON(StatusReply{ID: id, Status: status})
}

func (s *Server) getResponse(c *fiber.Ctx) error {
	id, err := messageID(c)
	if err != nil {
		return err
	}
	status, err := s.engine.PollStatus(c.UserContext(), id)
	if err != nil {
		return engineError(err)
	}
	response, err := s.engine.GetResponse(c.UserContext(), id)
	if err != nil {
		return engineError(err)
	}
	if response == nil {
		response = []byte{}
	}
	return c.JSON(ResponseReply{ID: id, Status: status, Response: response})
}

func (s *Server) getEvents(c *fiber.Ctx) error {
	block, err := strconv.ParseUint(c.Params("block"), 10, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "block must be an unsigned integer")
	}
	events, err := s.engine.Events(block)
	if err != nil {
		return engineError(err)
	}
	return c.JSON(EventsReply{Block: block, Events: events})
}

func (s *Server) getPendingEvents(c *fiber.Ctx) error {
	return c.JSON(EventsReply{Block: s.engine.CurrentBlock(), Events: s.engine.PendingEvents()})
}

func (s *Server) postResponse(c *fiber.Ctx) error {
	req, err := s.decodeDelivery(c, sign.KindResponse)
	if err != nil {
		return err
	}
	if err := s.engine.OnResponse(c.UserContext(), req.Handle, req.Response); err != nil {
		return engineError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) postTimeout(c *fiber.Ctx) error {
	req, err := s.decodeDelivery(c, sign.KindTimeout)
	if err != nil {
		return err
	}
	if err := s.engine.OnTransportTimeout(c.UserContext(), req.Handle); err != nil {
		return engineError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// decodeDelivery parses the body of a delivery endpoint and, when a relayer is configured, authenticates it.
func (s *Server) decodeDelivery(c *fiber.Ctx, kind sign.Kind) (*sign.Delivery, error) {
	req, err := sign.Unmarshal(c.Body())
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Bad Request - unparseable body")
	}
	if req.Handle == "" {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Bad Request - handle is required")
	}
	if req.Kind == "" {
		req.Kind = kind
	}
	if req.Kind != kind {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Bad Request - delivery kind does not match endpoint")
	}
	if s.relayer == nil {
		return req, nil
	}
	if err := req.Verify(*s.relayer); err != nil {
		return nil, fiber.NewError(fiber.StatusUnauthorized, err.Error())
	}
	s.nonceMu.Lock()
	defer s.nonceMu.Unlock()
	if req.Nonce <= s.lastNonce {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "invalid nonce")
	}
	s.lastNonce = req.Nonce
	return req, nil
}

func messageID(c *fiber.Ctx) (types.MessageID, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "message id must be an unsigned integer")
	}
	return types.MessageID(id), nil
}

// engineError picks the status code for an engine error.
func engineError(err error) error {
	switch {
	case errors.Is(err, messaging.ErrMessageNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, messaging.ErrBadOrigin):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case errors.Is(err, messaging.ErrRequestPending):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, messaging.ErrResponseTooLarge),
		errors.Is(err, messaging.ErrInvalidRequest),
		errors.Is(err, messaging.ErrFutureTimeoutMandatory),
		errors.Is(err, messaging.ErrMaxMessageTimeoutPerBlockReached),
		errors.Is(err, messaging.ErrInsufficientBalance),
		errors.Is(err, messaging.ErrTooManyMessages),
		errors.Is(err, receipt.ErrBlockHasNotBeenProcessed),
		errors.Is(err, receipt.ErrOldBlockHasBeenDiscarded):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		return err
	}
}
