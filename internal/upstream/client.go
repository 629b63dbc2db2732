package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"grammarrelay/internal/config"
	"grammarrelay/internal/upstream/transport"
)

const maxErrorDetail = 512

// Client opens streaming chat completions against one configured endpoint.
type Client struct {
	cfg    config.UpstreamConfig
	doer   transport.Doer
	logger *slog.Logger
}

func NewClient(cfg config.UpstreamConfig, doer transport.Doer, logger *slog.Logger) *Client {
	if doer == nil {
		doer = transport.New(cfg.Timeout, cfg.Fingerprint)
	}
	if logger == nil {
		logger = config.Logger
	}
	return &Client{cfg: cfg, doer: doer, logger: logger.With("component", "upstream")}
}

// HasCredential reports whether Stream can be attempted at all.
func (c *Client) HasCredential() bool {
	return c.cfg.HasCredential()
}

// BuildRequest returns the chat-completion body sent for prompt.
func (c *Client) BuildRequest(prompt string) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Stream:      true,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}
}

// Stream posts prompt upstream and returns the response once it is known to
// be a successful event stream. The body is already decoded from any
// Content-Encoding; the caller closes it. Every failure is an *Error.
func (c *Client) Stream(ctx context.Context, prompt string) (*http.Response, error) {
	if !c.HasCredential() {
		return nil, &Error{Kind: KindCredential, Err: ErrNoCredential}
	}
	payload, err := json.Marshal(c.BuildRequest(prompt))
	if err != nil {
		return nil, &Error{Kind: KindTransport, Detail: "encode request", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, &Error{Kind: KindTransport, Detail: "build request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Accept-Encoding", acceptEncoding)

	if c.cfg.Verbose {
		c.logger.Debug("upstream request", "url", c.cfg.URL, "model", c.cfg.Model, "prompt_bytes", len(prompt))
	}
	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Err: err}
	}
	if c.cfg.Verbose {
		c.logger.Debug("upstream response",
			"status", resp.StatusCode,
			"content_type", resp.Header.Get("Content-Type"),
			"content_encoding", resp.Header.Get("Content-Encoding"))
	}

	body, err := decodeBody(resp.Body, resp.Header.Get("Content-Encoding"))
	if err != nil {
		_ = resp.Body.Close()
		return nil, &Error{Kind: KindEncoding, Status: resp.StatusCode, Err: err}
	}
	resp.Body = body

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := readDetail(resp.Body)
		_ = resp.Body.Close()
		return nil, &Error{Kind: KindStatus, Status: resp.StatusCode, Detail: detail}
	}
	if ct := resp.Header.Get("Content-Type"); !isEventStream(ct) {
		_ = resp.Body.Close()
		return nil, &Error{Kind: KindContentType, Status: resp.StatusCode, Detail: fmt.Sprintf("unexpected content type %q", ct)}
	}
	return resp, nil
}

func isEventStream(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.EqualFold(mt, "text/event-stream")
}

func readDetail(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorDetail))
	return strings.TrimSpace(string(b))
}
