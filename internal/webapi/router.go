// Package webapi is the Room Client host's admin/debug HTTP surface:
// health checks, process metrics, and a room-state debug dump, fronted by
// rate limiting and panic recovery the way the chat server's own API
// layer is.
package webapi

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pion/logging"

	"roomclient/internal/room"
)

// Server is the admin/debug HTTP surface wrapping one RoomClient.
type Server struct {
	router *chi.Mux
}

// NewServer builds the router: health/metrics/debug endpoints behind
// structured logging, panic recovery, and per-IP rate limiting.
func NewServer(client *room.RoomClient, trustedProxyCIDRs []string, rateLimitRequests int, rateLimitWindow time.Duration, log logging.LeveledLogger) (*Server, error) {
	ipResolver, err := NewClientIPResolver(trustedProxyCIDRs)
	if err != nil {
		return nil, fmt.Errorf("initializing client IP resolver: %w", err)
	}
	limiter := NewRateLimiter(rateLimitRequests, rateLimitWindow)

	health := &healthHandler{client: client}
	debug := &debugHandler{client: client}

	r := chi.NewRouter()
	r.Use(slogRequestLogger)
	r.Use(recoveryMiddleware(log))
	r.Use(limiter.Middleware(ipResolver))

	r.Get("/healthz", health.Check)
	r.Get("/metrics", metricsHandler)
	r.Get("/debug/room", debug.Room)

	return &Server{router: r}, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func slogRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
			"remote", r.RemoteAddr,
		)
	})
}
