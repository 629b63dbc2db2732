package sse

import (
	"context"
	"errors"
	"io"
	"log/slog"
)

const (
	eventBufferSize = 128
	readBufferSize  = 32 * 1024
)

// StartEventPump reads an upstream event-stream body and emits normalized
// events. The event channel always ends with exactly one terminal event
// unless ctx is canceled first; the error channel then reports the read or
// context error (nil on a clean end of stream).
func StartEventPump(ctx context.Context, body io.Reader, logger *slog.Logger) (<-chan Event, <-chan error) {
	out := make(chan Event, eventBufferSize)
	done := make(chan error, 1)
	if logger == nil {
		logger = slog.Default()
	}
	go func() {
		defer close(out)
		dec := NewDecoder(func(line []byte, err error) {
			logger.Debug("dropping undecodable upstream line", "line", truncate(string(line), 200), "error", err)
		})
		emit := func(events []Event) bool {
			for _, ev := range events {
				select {
				case out <- ev:
				case <-ctx.Done():
					return false
				}
			}
			return true
		}
		buf := make([]byte, readBufferSize)
		for {
			n, err := body.Read(buf)
			if n > 0 {
				if !emit(dec.Feed(buf[:n])) {
					done <- ctx.Err()
					return
				}
				if dec.Finished() {
					done <- nil
					return
				}
			}
			if errors.Is(err, io.EOF) {
				if !emit(dec.Finish()) {
					done <- ctx.Err()
					return
				}
				done <- nil
				return
			}
			if err != nil {
				if ctx.Err() != nil {
					done <- ctx.Err()
					return
				}
				emit([]Event{Failure("upstream read failed: " + err.Error())})
				done <- err
				return
			}
		}
	}()
	return out, done
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
