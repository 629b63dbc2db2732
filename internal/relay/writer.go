package relay

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"grammarrelay/internal/sse"
)

var errStreamClosed = errors.New("stream already terminated")

// streamWriter serializes data frames and heartbeats onto one response so a
// ping can never land inside a frame, and refuses writes after the terminal
// event.
type streamWriter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	closed  bool
	sent    int
}

func newStreamWriter(w http.ResponseWriter, f http.Flusher) *streamWriter {
	return &streamWriter{w: w, flusher: f}
}

func (s *streamWriter) Event(ev sse.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errStreamClosed
	}
	if err := sse.WriteEvent(s.w, ev); err != nil {
		s.closed = true
		return err
	}
	s.flusher.Flush()
	if ev.Type == sse.EventContent {
		s.sent++
	}
	if ev.Terminal() {
		s.closed = true
	}
	return nil
}

func (s *streamWriter) Ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errStreamClosed
	}
	if err := sse.WritePing(s.w); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// ContentSent reports how many content frames reached the client.
func (s *streamWriter) ContentSent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent
}

// startHeartbeat pings every interval until the returned stop func is
// called. stop waits for the ticker goroutine so nothing is written after
// the handler returns.
func (s *streamWriter) startHeartbeat(interval time.Duration) (stop func()) {
	quit := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := s.Ping(); err != nil {
					return
				}
			case <-quit:
				return
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			close(quit)
			<-exited
		})
	}
}
