package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/opensource-finance/tally/internal/domain"
)

// Server serves the Tally HTTP API.
type Server struct {
	router *chi.Mux
	server *http.Server
	config domain.ServerConfig
}

// NewServer wires the handler and routes. scanner may be nil, in which case
// POST /reminders/scan calls the service directly without a lease.
func NewServer(cfg domain.ServerConfig, service Service, scanner Scanner, repo domain.Repository, cache domain.Cache, bus domain.EventBus, version string) *Server {
	handler := NewHandler(service, scanner, repo, cache, bus, version)
	router := chi.NewRouter()

	// Recover sits outside tracing so a panic still ends the span.
	router.Use(
		CORSMiddleware,
		RecoverMiddleware,
		TracingMiddleware,
		LoggingMiddleware,
		middleware.RealIP,
		middleware.Compress(5),
	)

	// Health checks skip the request timeout so a slow store shows up as degraded
	// rather than as a 504.
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))

		// Credit risk
		r.Get("/risk", handler.ListRisk)
		r.Get("/risk/rules", handler.ListRiskRules)
		r.Put("/risk/rules", handler.ReplaceRiskRules)
		r.Get("/risk/{clientID}", handler.GetClientRisk)

		// Reminders
		r.Get("/reminders/suggestions", handler.ReminderSuggestions)
		r.Post("/reminders/scan", handler.ScanReminders)

		// Anomalies
		r.Post("/anomalies/check", handler.CheckSale)

		// Analytics
		r.Get("/insights", handler.Insights)
		r.Get("/forecast", handler.Forecast)
		r.Get("/vip", handler.ListVIP)
		r.Get("/vip/{clientID}", handler.GetClientVIP)
		r.Get("/coaching", handler.Coaching)
	})

	return &Server{router: router, config: cfg}
}

// Start listens until Shutdown. It returns http.ErrServerClosed after a
// clean shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.config.Host, s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout:      time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router exposes the mux to tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}
