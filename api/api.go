// Package api exposes the escrow ledger and the dispatch subsystem over
// HTTP using chi.
//
// Ledger errors map onto status codes: validation 400, not found 404,
// invalid state or concurrency conflict 409, precondition failed 412,
// anything else 500. The API does no authentication.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/debnit/MsmeBazaar-sub000/engine"
	"github.com/debnit/MsmeBazaar-sub000/ledger"
)

// API wires the HTTP handlers to the ledger service and the engine.
type API struct {
	ledger *ledger.Service
	eng    *engine.Engine
	logger *slog.Logger

	allowedOrigins []string
	requestTimeout time.Duration
}

// Option configures the API.
type Option func(*API)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *API) { a.logger = l }
}

// WithCORS allows cross-origin calls from the given origins.
func WithCORS(origins ...string) Option {
	return func(a *API) { a.allowedOrigins = origins }
}

// WithRequestTimeout bounds each request. Zero disables the bound.
func WithRequestTimeout(d time.Duration) Option {
	return func(a *API) { a.requestTimeout = d }
}

// New creates an API.
func New(svc *ledger.Service, eng *engine.Engine, opts ...Option) *API {
	a := &API{
		ledger:         svc,
		eng:            eng,
		logger:         slog.Default(),
		requestTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler returns the assembled router.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(a.logRequests)
	r.Use(middleware.Recoverer)
	if a.requestTimeout > 0 {
		r.Use(middleware.Timeout(a.requestTimeout))
	}
	if len(a.allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: a.allowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", a.health)
	r.Get("/stats", a.stats)

	r.Route("/escrows", func(r chi.Router) {
		r.Post("/", a.createEscrow)
		r.Route("/{escrowID}", func(r chi.Router) {
			r.Get("/", a.getEscrow)
			r.Get("/transactions", a.listTransactions)
			r.Post("/fund", a.fundEscrow)
			r.Post("/milestones", a.addMilestone)
			r.Post("/release", a.releaseEscrow)
			r.Post("/refund", a.refundEscrow)
		})
	})
	r.Post("/milestones/{milestoneID}/complete", a.completeMilestone)

	r.Route("/jobs", func(r chi.Router) {
		r.Get("/", a.listJobs)
		r.Get("/{jobID}", a.getJob)
		r.Delete("/{jobID}", a.cancelJob)
	})

	r.Route("/dlq", func(r chi.Router) {
		r.Get("/", a.listDLQ)
		r.Get("/{entryID}", a.getDLQ)
		r.Post("/{entryID}/replay", a.replayDLQ)
	})

	return r
}

func (a *API) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		a.logger.InfoContext(r.Context(), "http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
