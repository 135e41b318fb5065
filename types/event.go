package types

import "github.com/ethereum/go-ethereum/common"

// EventKind names an outcome the engine records.
type EventKind string

const (
	EventMessageSent              EventKind = "MessageSent"
	EventIsmpGetResponseReceived  EventKind = "IsmpGetResponseReceived"
	EventIsmpPostResponseReceived EventKind = "IsmpPostResponseReceived"
	EventXcmResponseReceived      EventKind = "XcmResponseReceived"
	EventIsmpTimedOut             EventKind = "IsmpTimedOut"
	EventQueriesTimedOut          EventKind = "QueriesTimedOut"
	EventCallbackExecuted         EventKind = "CallbackExecuted"
	EventCallbackFailed           EventKind = "CallbackFailed"
	EventCallbackSkipped          EventKind = "CallbackSkipped"
	EventWeightRefundErrored      EventKind = "WeightRefundErrored"
	EventRemoved                  EventKind = "Removed"
)

// Event is one recorded outcome. Only the fields relevant to Kind are set.
type Event struct {
	Kind   EventKind      `json:"kind"`
	Block  uint64         `json:"block"`
	ID     MessageID      `json:"id"`
	Origin common.Address `json:"origin"`
	// IDs lists every message a sweep timed out.
	IDs        []MessageID `json:"ids,omitempty"`
	Handle     Handle      `json:"handle,omitempty"`
	Callback   *Callback   `json:"callback,omitempty"`
	WeightUsed Weight      `json:"weightUsed,omitempty"`
	Error      string      `json:"error,omitempty"`
}
