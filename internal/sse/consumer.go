package sse

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

// CollectResult holds the aggregated content of a stream consumed to
// completion (non-streaming use case).
type CollectResult struct {
	Text  string
	Error string
}

// CollectStream fully consumes an upstream event-stream body and concatenates
// its content deltas.
func CollectStream(ctx context.Context, body io.Reader, logger *slog.Logger) (CollectResult, error) {
	events, done := StartEventPump(ctx, body, logger)
	var text strings.Builder
	res := CollectResult{}
	for ev := range events {
		switch ev.Type {
		case EventContent:
			text.WriteString(ev.Text)
		case EventError:
			res.Error = ev.Message
		}
	}
	res.Text = text.String()
	return res, <-done
}
