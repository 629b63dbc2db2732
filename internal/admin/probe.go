package admin

import (
	"context"
	"errors"
	"net/http"
	"time"

	"grammarrelay/internal/analysis"
	"grammarrelay/internal/config"
	"grammarrelay/internal/sse"
	"grammarrelay/internal/upstream"
)

const (
	probeText    = "This is a short sentence to check the connection."
	probeTimeout = 30 * time.Second
	previewRunes = 120
)

// testUpstream sends one real analysis request upstream and reports how it
// went, without the simulated fallback.
func (h *Handler) testUpstream(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()
	start := time.Now()
	result := map[string]any{"success": false}

	resp, err := h.Upstream.Stream(ctx, analysis.BuildPrompt(probeText))
	if err != nil {
		result["elapsed_ms"] = time.Since(start).Milliseconds()
		result["message"] = err.Error()
		var upErr *upstream.Error
		if errors.As(err, &upErr) {
			result["kind"] = string(upErr.Kind)
			if upErr.Status != 0 {
				result["status"] = upErr.Status
			}
		}
		config.Logger.Warn("upstream probe failed", "error", err)
		writeJSON(w, http.StatusOK, result)
		return
	}
	defer resp.Body.Close()

	res, err := sse.CollectStream(ctx, resp.Body, config.Logger)
	result["elapsed_ms"] = time.Since(start).Milliseconds()
	switch {
	case err != nil:
		result["message"] = err.Error()
	case res.Error != "":
		result["message"] = res.Error
	case res.Text == "":
		result["message"] = "upstream returned no content"
	default:
		result["success"] = true
		result["message"] = "ok"
		result["preview"] = preview(res.Text, previewRunes)
	}
	writeJSON(w, http.StatusOK, result)
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
