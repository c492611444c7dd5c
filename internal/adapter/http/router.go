package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/vblaha/saldo/internal/adapter/http/handler"
	"github.com/vblaha/saldo/internal/adapter/http/middleware"
	"github.com/vblaha/saldo/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	LedgerHandler    *handler.LedgerHandler
	AuditHandler     *handler.AuditHandler
	AnomalyHandler   *handler.AnomalyHandler
	HealthHandler    *handler.HealthHandler
	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration
	RateLimiter      *middleware.RateLimiter
	Logger           zerolog.Logger
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Metrics)
	r.Use(middleware.Recovery)

	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health and metrics endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Idempotency middleware for mutating requests
		if cfg.IdempotencyStore != nil {
			idempotencyMiddleware := middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL)
			r.Use(idempotencyMiddleware.Wrap)
		}

		// Transactions
		r.Route("/transactions", func(r chi.Router) {
			r.Post("/", cfg.LedgerHandler.Book)
			r.Get("/{id}", cfg.LedgerHandler.Get)
			r.Post("/{id}/storno", cfg.LedgerHandler.Storno)
			r.Get("/{id}/export", cfg.LedgerHandler.Export)
		})

		// Proposals
		r.Route("/proposals", func(r chi.Router) {
			r.Post("/", cfg.LedgerHandler.Propose)
			r.Get("/", cfg.LedgerHandler.ListProposals)
			r.Get("/{id}", cfg.LedgerHandler.GetProposal)
			r.Post("/{id}/approve", cfg.LedgerHandler.Approve)
			r.Post("/{id}/reject", cfg.LedgerHandler.Reject)
		})

		// Trial balance and integrity
		r.Get("/trial-balance", cfg.LedgerHandler.TrialBalance)
		r.Get("/integrity", cfg.LedgerHandler.VerifyIntegrity)

		// Audit trail
		r.Route("/audit", func(r chi.Router) {
			r.Get("/", cfg.AuditHandler.Query)
			r.Get("/verify", cfg.AuditHandler.VerifyChain)
		})

		// Out-of-band anomaly screening
		r.Route("/anomaly", func(r chi.Router) {
			r.Post("/check", cfg.AnomalyHandler.Check)
			r.Post("/batch", cfg.AnomalyHandler.CheckBatch)
		})
	})

	return r
}
