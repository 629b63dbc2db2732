package bridge

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"grammarrelay/internal/analysis"
	"grammarrelay/internal/bus"
	"grammarrelay/internal/config"
	"grammarrelay/internal/sse"
	"grammarrelay/internal/store"
	"grammarrelay/internal/upstream/transport"
)

const (
	DefaultTimeout = 30 * time.Second

	msgConnectionFailed = "connection failed"
	msgTimedOut         = "analysis timed out"
	msgCanceled         = "analysis canceled"

	maxFrameBytes = 1 << 20
)

var ErrBusy = errors.New("analysis already in progress")

// TransportError reports a failed or timed out relay connection.
type TransportError struct {
	Message string
	Err     error
}

func (e *TransportError) Error() string { return e.Message }
func (e *TransportError) Unwrap() error { return e.Err }

// StreamError is an error frame sent by the relay.
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string { return e.Message }

// Bridge runs one analysis against the relay and republishes its progress
// on the bus.
type Bridge struct {
	settings *store.SettingsStore
	history  *store.HistoryStore
	bus      *bus.Bus
	doer     transport.Doer
	timeout  time.Duration
	logger   *slog.Logger
	running  atomic.Bool
}

type Option func(*Bridge)

func WithDoer(d transport.Doer) Option {
	return func(b *Bridge) { b.doer = d }
}

func WithTimeout(d time.Duration) Option {
	return func(b *Bridge) { b.timeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) { b.logger = l }
}

func New(settings *store.SettingsStore, history *store.HistoryStore, events *bus.Bus, opts ...Option) *Bridge {
	b := &Bridge{
		settings: settings,
		history:  history,
		bus:      events,
		timeout:  DefaultTimeout,
		logger:   config.Logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.doer == nil {
		// The overall deadline comes from the request context.
		b.doer = transport.New(0, "")
	}
	b.logger = b.logger.With("component", "bridge")
	return b
}

// Running reports whether an analysis is in flight.
func (b *Bridge) Running() bool { return b.running.Load() }

// Analyze validates text against the stored word bounds, streams the
// relay's analysis and records it in history. Every outcome other than
// ErrBusy is also published on the bus.
func (b *Bridge) Analyze(ctx context.Context, text string) error {
	if !b.running.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer b.running.Store(false)

	settings, err := b.settings.Get()
	if err != nil {
		b.bus.Publish(bus.Failed("failed to load settings"))
		return fmt.Errorf("load settings: %w", err)
	}
	if err := checkLength(text, settings); err != nil {
		b.bus.Publish(bus.Failed(err.Error()))
		return err
	}

	b.bus.Publish(bus.Started(text))
	result, err := b.stream(ctx, settings.APIURL, text)
	if err != nil {
		b.logger.Warn("analysis failed", "error", err)
		b.bus.Publish(bus.Failed(err.Error()))
		return err
	}
	if _, err := b.history.Append(store.HistoryItem{Text: text, Result: result}); err != nil {
		b.logger.Warn("failed to save history", "error", err)
	}
	b.bus.Publish(bus.Completed(text, result))
	return nil
}

func checkLength(text string, s store.Settings) error {
	n := analysis.CountWords(text)
	if n < s.MinWords {
		return &analysis.InputError{
			Message: fmt.Sprintf("text too short, at least %d words required", s.MinWords),
			Count:   n, Min: s.MinWords, Max: s.MaxWords,
		}
	}
	if n > s.MaxWords {
		return &analysis.InputError{
			Message: fmt.Sprintf("text too long, at most %d words supported", s.MaxWords),
			Count:   n, Min: s.MinWords, Max: s.MaxWords,
		}
	}
	return nil
}

func analyzeURL(apiURL, text string) string {
	if apiURL == "" {
		apiURL = store.DefaultAPIURL
	}
	return strings.TrimRight(apiURL, "/") + "/api/analyze?text=" + url.QueryEscape(text)
}

func (b *Bridge) stream(ctx context.Context, apiURL, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, analyzeURL(apiURL, text), nil)
	if err != nil {
		return "", &TransportError{Message: msgConnectionFailed, Err: err}
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := b.doer.Do(req)
	if err != nil {
		return "", b.transportError(ctx, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &TransportError{Message: msgConnectionFailed, Err: fmt.Errorf("relay returned status %d", resp.StatusCode)}
	}

	var result strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameBytes)
	for scanner.Scan() {
		ev, ok := sse.ParseWireLine(scanner.Bytes())
		if !ok {
			continue
		}
		switch ev.Type {
		case sse.EventContent:
			result.WriteString(ev.Text)
			b.bus.Publish(bus.Chunk(ev.Text))
		case sse.EventDone:
			return result.String(), nil
		case sse.EventError:
			return "", &StreamError{Message: ev.Message}
		}
	}
	if err := scanner.Err(); err != nil {
		return "", b.transportError(ctx, err)
	}
	if ctx.Err() != nil {
		return "", b.transportError(ctx, ctx.Err())
	}
	// The relay closed the stream without a terminal frame.
	return "", &TransportError{Message: msgConnectionFailed, Err: errors.New("stream ended without done frame")}
}

func (b *Bridge) transportError(ctx context.Context, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return &TransportError{Message: msgTimedOut, Err: err}
	case errors.Is(ctx.Err(), context.Canceled):
		return &TransportError{Message: msgCanceled, Err: err}
	default:
		return &TransportError{Message: msgConnectionFailed, Err: err}
	}
}
