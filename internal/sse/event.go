package sse

// EventType tags a normalized stream event.
type EventType int

const (
	EventContent EventType = iota
	EventDone
	EventError
)

func (t EventType) String() string {
	switch t {
	case EventContent:
		return "content"
	case EventDone:
		return "done"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one unit of the normalized analysis stream. A well-formed stream
// is zero or more content events followed by exactly one done or error event.
type Event struct {
	Type    EventType
	Text    string
	Message string
}

func Content(text string) Event { return Event{Type: EventContent, Text: text} }

func Done() Event { return Event{Type: EventDone} }

func Failure(message string) Event { return Event{Type: EventError, Message: message} }

// Terminal reports whether no further events may follow e.
func (e Event) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}
