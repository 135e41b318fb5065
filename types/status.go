package types

import (
	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
)

// Status is the caller-visible state of a message.
type Status uint8

const (
	StatusNotFound Status = iota
	StatusPending
	StatusComplete
	StatusTimeout
)

var statusNames = map[Status]string{
	StatusNotFound: "NotFound",
	StatusPending:  "Pending",
	StatusComplete: "Complete",
	StatusTimeout:  "Timeout",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "Unknown"
}

// IsTerminal reports whether a message in this status may be removed.
func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusTimeout
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(bz []byte) error {
	var name string
	if err := json.Unmarshal(bz, &name); err != nil {
		return eris.Wrap(err, "")
	}
	for status, n := range statusNames {
		if n == name {
			*s = status
			return nil
		}
	}
	return eris.Errorf("unknown message status %q", name)
}
