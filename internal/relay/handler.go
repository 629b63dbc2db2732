package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"grammarrelay/internal/analysis"
	"grammarrelay/internal/config"
	"grammarrelay/internal/sse"
	"grammarrelay/internal/util"
)

const maxBodyBytes = 1 << 20

// Upstream opens the model's event stream for a prompt.
type Upstream interface {
	Stream(ctx context.Context, prompt string) (*http.Response, error)
}

type Options struct {
	MinWords          int
	MaxWords          int
	HeartbeatInterval time.Duration
	MockDelay         time.Duration
}

func OptionsFromConfig(cfg config.RelayConfig) Options {
	return Options{
		MinWords:          cfg.MinWords,
		MaxWords:          cfg.MaxWords,
		HeartbeatInterval: cfg.HeartbeatInterval,
		MockDelay:         cfg.MockDelay,
	}
}

// Handler serves one analysis request as one streamed response.
type Handler struct {
	upstream Upstream
	opts     Options
	logger   *slog.Logger
}

func NewHandler(up Upstream, opts Options, logger *slog.Logger) *Handler {
	if opts.MinWords <= 0 {
		opts.MinWords = config.DefaultMinWords
	}
	if opts.MaxWords <= 0 {
		opts.MaxWords = config.DefaultMaxWords
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = config.DefaultHeartbeatInterval
	}
	if logger == nil {
		logger = config.Logger
	}
	return &Handler{upstream: up, opts: opts, logger: logger.With("component", "relay")}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		util.WriteJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return
	}
	text, err := requestText(r)
	if err != nil {
		util.WriteJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	if err := analysis.ValidateWordCount(text, h.opts.MinWords, h.opts.MaxWords); err != nil {
		util.WriteJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	logger := h.logger.With("request_id", middleware.GetReqID(r.Context()), "words", analysis.CountWords(text))

	if v := r.URL.Query().Get("stream"); v == "false" || v == "0" {
		h.serveCollected(w, r, text, logger)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		logger.Error("response writer cannot stream")
		util.WriteJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   "analysis service unavailable",
			"details": "streaming unsupported",
		})
		return
	}
	hdr := w.Header()
	hdr.Set("Content-Type", "text/event-stream; charset=utf-8")
	hdr.Set("Cache-Control", "no-cache, no-transform")
	hdr.Set("Connection", "keep-alive")
	hdr.Set("X-Accel-Buffering", "no")
	hdr.Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sw := newStreamWriter(w, flusher)
	stop := sw.startHeartbeat(h.opts.HeartbeatInterval)
	defer stop()

	h.relay(r.Context(), sw, analysis.BuildPrompt(text), logger)
}

// relay streams the upstream analysis, or the simulated one when upstream
// cannot deliver a stream before any content was sent.
func (h *Handler) relay(ctx context.Context, sw *streamWriter, prompt string, logger *slog.Logger) {
	resp, err := h.upstream.Stream(ctx, prompt)
	if err != nil {
		logger.Warn("upstream unavailable, streaming simulated analysis", "error", err)
		h.simulate(ctx, sw, prompt)
		return
	}
	defer resp.Body.Close()

	events, done := sse.StartEventPump(ctx, resp.Body, logger)
	for ev := range events {
		if ev.Type == sse.EventError && sw.ContentSent() == 0 {
			logger.Warn("upstream stream failed before content, streaming simulated analysis", "error", ev.Message)
			<-done
			h.simulate(ctx, sw, prompt)
			return
		}
		if err := sw.Event(ev); err != nil {
			logger.Info("client stream closed", "error", err)
			break
		}
	}
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("upstream stream ended with error", "error", err)
	}
}

// simulate emits the mock analysis one character at a time and always ends
// with Done.
func (h *Handler) simulate(ctx context.Context, sw *streamWriter, prompt string) {
	report := analysis.MockAnalysis(analysis.ExtractText(prompt))
	for _, r := range report {
		if err := sw.Event(sse.Content(string(r))); err != nil {
			return
		}
		if err := sleep(ctx, h.opts.MockDelay); err != nil {
			return
		}
	}
	_ = sw.Event(sse.Done())
}

func (h *Handler) serveCollected(w http.ResponseWriter, r *http.Request, text string, logger *slog.Logger) {
	prompt := analysis.BuildPrompt(text)
	resp, err := h.upstream.Stream(r.Context(), prompt)
	if err != nil {
		logger.Warn("upstream unavailable, returning simulated analysis", "error", err)
		util.WriteJSON(w, http.StatusOK, map[string]any{"result": analysis.MockAnalysis(text), "simulated": true})
		return
	}
	defer resp.Body.Close()
	res, err := sse.CollectStream(r.Context(), resp.Body, logger)
	if err != nil || (res.Error != "" && res.Text == "") {
		logger.Warn("upstream collect failed, returning simulated analysis", "error", err, "upstream_error", res.Error)
		util.WriteJSON(w, http.StatusOK, map[string]any{"result": analysis.MockAnalysis(text), "simulated": true})
		return
	}
	out := map[string]any{"result": res.Text, "simulated": false}
	if res.Error != "" {
		// Partial content: the result is truncated.
		logger.Warn("upstream failed after partial content", "upstream_error", res.Error)
		out["error"] = res.Error
	}
	util.WriteJSON(w, http.StatusOK, out)
}

func requestText(r *http.Request) (string, error) {
	text := r.URL.Query().Get("text")
	if r.Method == http.MethodPost {
		mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		switch mt {
		case "application/json", "":
			var body struct {
				Text string `json:"text"`
			}
			if r.Body != nil {
				if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
					return "", errors.New("invalid json body")
				}
			}
			if body.Text != "" {
				text = body.Text
			}
		default:
			if v := r.PostFormValue("text"); v != "" {
				text = v
			}
		}
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New("missing text parameter")
	}
	return text, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
