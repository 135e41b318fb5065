package messaging

import (
	errorsmod "cosmossdk.io/errors"
)

// Codespace is the ABCI codespace every engine error is registered under.
const Codespace = "messaging"

var (
	ErrOriginConversionFailed           = errorsmod.Register(Codespace, 2, "origin conversion failed")
	ErrFutureTimeoutMandatory           = errorsmod.Register(Codespace, 3, "timeout must be in the future")
	ErrMaxMessageTimeoutPerBlockReached = errorsmod.Register(Codespace, 4, "max message timeouts per block reached")
	ErrInsufficientBalance              = errorsmod.Register(Codespace, 5, "insufficient balance")
	ErrMessageNotFound                  = errorsmod.Register(Codespace, 6, "message not found")
	ErrRequestPending                   = errorsmod.Register(Codespace, 7, "request is still pending")
	ErrTooManyMessages                  = errorsmod.Register(Codespace, 8, "too many messages")
	ErrBadOrigin                        = errorsmod.Register(Codespace, 9, "caller does not own the message")
	ErrInvalidRequest                   = errorsmod.Register(Codespace, 10, "invalid request")
	ErrResponseTooLarge                 = errorsmod.Register(Codespace, 11, "response exceeds max response length")
	ErrDispatchFailed                   = errorsmod.Register(Codespace, 12, "transport dispatch failed")
	ErrSequenceExhausted                = errorsmod.Register(Codespace, 13, "message id sequence exhausted")
	ErrHandleExists                     = errorsmod.Register(Codespace, 14, "correlation handle already registered")
	ErrStaleBlock                       = errorsmod.Register(Codespace, 15, "block height must increase")
	ErrInvalidConfig                    = errorsmod.Register(Codespace, 16, "invalid configuration")
)
