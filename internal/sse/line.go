package sse

import (
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const doneSentinel = "[DONE]"

// LineResult is the normalized parse result for one upstream SSE line.
type LineResult struct {
	// Parsed is true for data lines, including the [DONE] sentinel.
	Parsed       bool
	Stop         bool
	Content      string
	ErrorMessage string
	// Dropped carries the JSON error of a data line that could not be decoded.
	Dropped error
}

type upstreamEnvelope struct {
	openai.ChatCompletionStreamResponse
	Error json.RawMessage `json:"error,omitempty"`
}

// ParseUpstreamLine parses one line of a chat-completion event stream.
// Comments, blank lines and non-data fields yield an unparsed result.
func ParseUpstreamLine(raw []byte) LineResult {
	line := strings.TrimSpace(string(raw))
	if line == "" || !strings.HasPrefix(line, "data:") {
		return LineResult{}
	}
	payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
	if payload == doneSentinel {
		return LineResult{Parsed: true, Stop: true}
	}
	var env upstreamEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return LineResult{Dropped: err}
	}
	if msg := upstreamErrorMessage(env.Error); msg != "" {
		return LineResult{Parsed: true, Stop: true, ErrorMessage: msg}
	}
	res := LineResult{Parsed: true}
	if len(env.Choices) > 0 {
		res.Content = env.Choices[0].Delta.Content
	}
	return res
}

func upstreamErrorMessage(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var obj struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.Message != "" {
			return obj.Message
		}
		if obj.Type != "" {
			return obj.Type
		}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		return s
	}
	return fmt.Sprintf("upstream error: %s", string(raw))
}
