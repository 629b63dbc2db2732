package admin

import (
	"github.com/go-chi/chi/v5"

	"grammarrelay/internal/config"
	"grammarrelay/internal/relay"
)

type Handler struct {
	Config   *config.Config
	Upstream relay.Upstream
}

// RegisterRoutes mounts the operator endpoints. Callers guard r with the
// access key.
func RegisterRoutes(r chi.Router, h *Handler) {
	r.Get("/config", h.getConfig)
	r.Post("/test", h.testUpstream)
}
