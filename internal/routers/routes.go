package routers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"signaling/internal/handlers"
	"signaling/internal/metrics"
)

// NewRouter assembles the service's HTTP surface. The websocket endpoint
// skips the request timeout: signaling sockets are long-lived.
func NewRouter(h *handlers.Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization"},
		AllowCredentials: false,
	}))
	r.Use(metrics.Middleware("signaling"))

	r.Get("/health", h.Health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.With(middleware.Timeout(60 * time.Second)).Group(func(r chi.Router) {
			r.Get("/webrtc/config", h.GetWebRTCConfig)
			r.Get("/room/{roomId}/status", h.GetRoomStatus)
		})
		r.Get("/signaling/ws", h.SignalingWS)
	})

	return r
}
