package panel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"grammarrelay/internal/bus"
)

var ErrBusClosed = errors.New("subscription closed")

// LineSink prints analysis progress as plain text, chunk by chunk.
type LineSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewLineSink(w io.Writer) *LineSink {
	return &LineSink{w: w}
}

func (s *LineSink) Handle(msg bus.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch msg.Topic {
	case bus.TopicStarted:
		fmt.Fprintf(s.w, "Analyzing: %s\n\n", preview(msg.Text, 60))
	case bus.TopicChunk:
		io.WriteString(s.w, msg.Chunk)
	case bus.TopicCompleted:
		io.WriteString(s.w, "\n")
	case bus.TopicError:
		fmt.Fprintf(s.w, "\nerror: %s\n", msg.Error)
	}
}

// Run handles messages until a completed or error message arrives and
// returns it.
func (s *LineSink) Run(ctx context.Context, sub *bus.Subscription) (bus.Message, error) {
	for {
		select {
		case <-ctx.Done():
			return bus.Message{}, ctx.Err()
		case msg, ok := <-sub.C():
			if !ok {
				return bus.Message{}, ErrBusClosed
			}
			s.Handle(msg)
			if msg.Topic == bus.TopicCompleted || msg.Topic == bus.TopicError {
				return msg, nil
			}
		}
	}
}
