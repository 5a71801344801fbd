package campaign

// EventType tags an event on the campaign stream.
type EventType int

const (
	// EventProgress carries a new overall percentage
	EventProgress EventType = iota

	// EventStatus carries a user-facing status message without moving
	// the percentage
	EventStatus

	// EventSuccess terminates the stream: the campaign completed
	EventSuccess

	// EventError terminates the stream: the campaign failed
	EventError
)

func (t EventType) String() string {
	switch t {
	case EventProgress:
		return "progress"
	case EventStatus:
		return "status"
	case EventSuccess:
		return "success"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one entry on a campaign's ordered event stream. A campaign
// emits any number of progress and status events followed by exactly one
// terminal event (success or error), after which the stream is closed.
//
// Percent is monotonically non-decreasing across the stream's lifetime.
type Event struct {
	Type    EventType
	Percent int
	Message string

	// Err is set on EventError only
	Err error
}

// Terminal reports whether the event ends the campaign.
func (e Event) Terminal() bool {
	return e.Type == EventSuccess || e.Type == EventError
}
