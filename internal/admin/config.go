package admin

import (
	"net/http"
)

func (h *Handler) getConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"config":     redactedConfig(h.Config),
		"simulated":  !h.Config.Upstream.HasCredential(),
		"api_routes": []string{"/analyze", "/api/analyze"},
	})
}
