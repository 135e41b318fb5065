package deposit

// Reason names why funds are held. Holds for different reasons are tracked separately so each can be released on its
// own schedule.
type Reason uint8

const (
	// ReasonMessaging covers the storage a message occupies: its row and its index entries.
	ReasonMessaging Reason = iota
	// ReasonCallbackGas covers the worst-case cost of executing a message's callback.
	ReasonCallbackGas
)

var reasons = []Reason{ReasonMessaging, ReasonCallbackGas}

func (r Reason) String() string {
	switch r {
	case ReasonMessaging:
		return "messaging"
	case ReasonCallbackGas:
		return "callback_gas"
	default:
		return "unknown"
	}
}
