package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"grammarrelay/internal/admin"
	"grammarrelay/internal/auth"
	"grammarrelay/internal/config"
	"grammarrelay/internal/relay"
	"grammarrelay/internal/upstream"
)

type App struct {
	Config   *config.Config
	Upstream relay.Upstream
	Router   chi.Router
}

// NewApp wires the relay against the configured upstream endpoint.
func NewApp(cfg *config.Config) *App {
	if cfg == nil {
		cfg = config.Default()
	}
	up := upstream.NewClient(cfg.Upstream, nil, config.Logger)
	if !up.HasCredential() {
		config.Logger.Warn("OPENAI_API_KEY is not set, every analysis will use the simulated report")
	}
	return NewAppWithUpstream(cfg, up)
}

func NewAppWithUpstream(cfg *config.Config, up relay.Upstream) *App {
	app := &App{Config: cfg, Upstream: up}
	app.Router = app.routes()
	return app
}

func (a *App) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(config.Logger))
	r.Use(middleware.Recoverer)
	r.Use(relay.CORS)

	r.Get("/healthz", healthz)
	r.Head("/healthz", healthz)
	r.Get("/readyz", healthz)
	r.Head("/readyz", healthz)

	analyze := relay.NewHandler(a.Upstream, relay.OptionsFromConfig(a.Config.Relay), config.Logger)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireAccessKey(a.Config.Relay.AccessKey))
		pr.Handle("/analyze", analyze)
		pr.Handle("/api/analyze", analyze)
	})
	// Operator endpoints exist only behind a configured key.
	if a.Config.Relay.AccessKey != "" {
		r.Route("/admin", func(ar chi.Router) {
			ar.Use(auth.RequireAccessKey(a.Config.Relay.AccessKey))
			admin.RegisterRoutes(ar, &admin.Handler{Config: a.Config, Upstream: a.Upstream})
		})
	}
	return r
}

func healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write([]byte("ok"))
	}
}

func accessLog(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("request",
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start))
		})
	}
}
