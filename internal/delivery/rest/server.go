// Path: internal/delivery/rest/server.go
package rest

import (
	"context"
	"net/http"
	"time"

	"viral-scout/internal/events"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// requestTimeout bounds every route except runs and the event stream.
const requestTimeout = 30 * time.Second

// Server is the HTTP server for the history and run API.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

// NewServer creates and configures a new API server.
func NewServer(port string, service runService, broker *events.Broker, logger *zap.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:        ":" + port,
			Handler:     NewRouter(NewHandlers(service, broker, logger)),
			ReadTimeout: 5 * time.Second,
			// No WriteTimeout: runs and the event stream are long-lived.
			IdleTimeout: 60 * time.Second,
		},
		logger: logger,
	}
}

// NewRouter mounts every route on a chi router.
func NewRouter(h *Handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		r.Route("/history", func(r chi.Router) {
			r.Get("/", h.ListHistory)
			r.Post("/", h.SaveItem)
			r.Delete("/", h.ClearHistory)
			r.Get("/stats", h.Stats)
			r.Get("/export.csv", h.ExportHistory)
			r.Get("/{id}", h.GetRecord)
			r.Delete("/{id}", h.DeleteRecord)
			r.Delete("/{id}/terms/{term}", h.RemoveTerm)
		})
		r.Get("/runs/last", h.LastRun)
	})

	r.Post("/runs", h.StartRun)
	r.Get("/runs/events", h.RunEvents)
	return r
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("API server starting", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
