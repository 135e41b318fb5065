// Package server exposes the engine over HTTP: lookups and signed calls for callers, and two delivery endpoints for
// transports that run out of process.
package server

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pkg.world.dev/world-engine/messaging/types"
)

const DefaultPort = "4050"

// Engine is the part of the messaging engine the server calls.
type Engine interface {
	CurrentBlock() uint64
	Limits() map[string]uint64
	PollStatus(ctx context.Context, id types.MessageID) (types.Status, error)
	GetResponse(ctx context.Context, id types.MessageID) ([]byte, error)
	Message(ctx context.Context, id types.MessageID) (types.Message, error)
	Events(block uint64) ([]types.Event, error)
	PendingEvents() []types.Event
	OnResponse(ctx context.Context, handle types.Handle, response []byte) error
	OnTransportTimeout(ctx context.Context, handle types.Handle) error
	Get(ctx context.Context, origin common.Address, req types.GetRequest, fee math.Int, cb *types.Callback) (
		types.MessageID, error)
	Post(ctx context.Context, origin common.Address, req types.PostRequest, fee math.Int, cb *types.Callback) (
		types.MessageID, error)
	OpenQuery(ctx context.Context, origin common.Address, responder types.Location, timeout uint64,
		cb *types.Callback) (types.MessageID, error)
	RemoveMany(ctx context.Context, origin common.Address, ids []types.MessageID) error
}

type Server struct {
	engine  Engine
	app     *fiber.App
	port    string
	logger  zerolog.Logger
	running atomic.Bool

	disableDelivery bool
	disableCalls    bool
	allowUnsigned   bool

	// relayer, when set, must sign every delivery.
	relayer    *common.Address
	nonceMu    sync.Mutex
	lastNonce  uint64
	callNonces map[common.Address]uint64
}

type Option func(*Server)

// WithRelayer only accepts deliveries signed by relayer with increasing nonces.
func WithRelayer(relayer common.Address) Option {
	return func(s *Server) {
		s.relayer = &relayer
	}
}

func WithPort(port string) Option {
	return func(s *Server) {
		s.port = port
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// DisableDelivery removes the transport delivery endpoints, leaving a read-only API.
func DisableDelivery() Option {
	return func(s *Server) {
		s.disableDelivery = true
	}
}

// DisableCalls removes the endpoints that send and remove messages.
func DisableCalls() Option {
	return func(s *Server) {
		s.disableCalls = true
	}
}

// AllowUnsignedCalls accepts calls without a signature, trusting the origin they name. Only for development.
func AllowUnsignedCalls() Option {
	return func(s *Server) {
		s.allowUnsigned = true
	}
}

func New(engine Engine, opts ...Option) *Server {
	s := &Server{
		engine:     engine,
		port:       DefaultPort,
		logger:     log.Logger,
		callNonces: map[common.Address]uint64{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "server").Logger()
	s.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler:          ErrorHandler,
	})
	s.registerHandlers()
	return s
}

func (s *Server) registerHandlers() {
	s.app.Get("/health", s.getHealth)
	s.app.Get("/limits", s.getLimits)

	s.app.Get("/messages/:id", s.getMessage)
	s.app.Get("/messages/:id/status", s.getStatus)
	s.app.Get("/messages/:id/response", s.getResponse)

	s.app.Get("/events/pending", s.getPendingEvents)
	s.app.Get("/events/:block", s.getEvents)

	if !s.disableCalls {
		s.app.Post("/messages/get", s.postGet)
		s.app.Post("/messages/post", s.postPost)
		s.app.Post("/messages/query", s.postQuery)
		s.app.Post("/messages/remove", s.postRemove)
	}

	if !s.disableDelivery {
		s.app.Post("/deliver/response", s.postResponse)
		s.app.Post("/deliver/timeout", s.postTimeout)
	}
}

// App exposes the fiber app, mostly so tests can drive it with App().Test.
func (s *Server) App() *fiber.App {
	return s.app
}

// Serve blocks until the server is shut down.
func (s *Server) Serve() error {
	s.running.Store(true)
	defer s.running.Store(false)
	s.logger.Info().Str("port", s.port).Msg("serving messaging api")
	if err := s.app.Listen(":" + s.port); err != nil {
		return eris.Wrap(err, "")
	}
	return nil
}

func (s *Server) IsRunning() bool {
	return s.running.Load()
}

func (s *Server) Shutdown() error {
	s.logger.Info().Msg("shutting down messaging api")
	if err := s.app.Shutdown(); err != nil {
		return eris.Wrap(err, "")
	}
	return nil
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// ErrorHandler writes every error as a JSON body. Errors that are not fiber errors are internal.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return c.Status(code).JSON(ErrorResponse{Error: err.Error()})
}
