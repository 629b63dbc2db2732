package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// WireFrame is the JSON body of one relay data frame.
type WireFrame struct {
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
	Done    bool   `json:"done"`
}

// PingFrame is the heartbeat comment; data-only decoders skip it.
const PingFrame = ": ping\n\n"

// FrameFor maps an event to its wire representation.
func FrameFor(ev Event) WireFrame {
	switch ev.Type {
	case EventDone:
		return WireFrame{Done: true}
	case EventError:
		return WireFrame{Error: ev.Message, Done: true}
	default:
		return WireFrame{Content: ev.Text}
	}
}

// WriteEvent writes ev as a single `data: {...}\n\n` frame.
func WriteEvent(w io.Writer, ev Event) error {
	b, err := json.Marshal(FrameFor(ev))
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	buf := make([]byte, 0, len(b)+8)
	buf = append(buf, "data: "...)
	buf = append(buf, b...)
	buf = append(buf, '\n', '\n')
	_, err = w.Write(buf)
	return err
}

func WritePing(w io.Writer) error {
	_, err := io.WriteString(w, PingFrame)
	return err
}

// ParseWireLine decodes one line of the relay stream on the client side.
// ok is false for comments, blank lines and empty content frames. A data
// payload that is not JSON is passed through as content.
func ParseWireLine(raw []byte) (ev Event, ok bool) {
	line := strings.TrimRight(string(raw), "\r\n")
	if !strings.HasPrefix(line, "data:") {
		return Event{}, false
	}
	payload := strings.TrimPrefix(line, "data:")
	payload = strings.TrimPrefix(payload, " ")
	var frame WireFrame
	if err := json.Unmarshal([]byte(payload), &frame); err != nil {
		if payload == "" {
			return Event{}, false
		}
		return Content(payload), true
	}
	if frame.Done {
		if frame.Error != "" {
			return Failure(frame.Error), true
		}
		return Done(), true
	}
	if frame.Error != "" {
		return Failure(frame.Error), true
	}
	if frame.Content == "" {
		return Event{}, false
	}
	return Content(frame.Content), true
}
