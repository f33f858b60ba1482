package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/javieronasis1-eng/administracion-rentas/internal/log"
	"github.com/javieronasis1-eng/administracion-rentas/internal/middleware/ratelimit"
	"github.com/javieronasis1-eng/administracion-rentas/internal/middleware/security"
	"github.com/javieronasis1-eng/administracion-rentas/internal/middleware/trace"
	"github.com/javieronasis1-eng/administracion-rentas/internal/services"
)

// Options tune the server. Zero values fall back to defaults.
type Options struct {
	Logger             *log.Logger
	RateLimitPerMinute int
	// Ready reports whether startup reconciliation finished.
	Ready func() bool
	// SyncWait bounds how long ?wait=true blocks on the remote write.
	SyncWait time.Duration
	// Now is the clock used for default months. Defaults to the ledger clock.
	Now func() time.Time
}

type Server struct {
	http.Server
	ledger   *services.LedgerService
	limiter  *ratelimit.Limiter
	tracer   *trace.Middleware
	ready    func() bool
	syncWait time.Duration
	now      func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, ledger *services.LedgerService, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	if opts.Ready == nil {
		opts.Ready = func() bool { return true }
	}
	if opts.SyncWait <= 0 {
		opts.SyncWait = 10 * time.Second
	}
	if opts.Now == nil {
		opts.Now = ledger.Now
	}

	s := &Server{
		ledger:   ledger,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		tracer:   trace.NewMiddleware(extractClientIP),
		ready:    opts.Ready,
		syncWait: opts.SyncWait,
		now:      opts.Now,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(log.Middleware(opts.Logger.WithComponent(log.ComponentHTTP)))
	r.Use(s.tracer.Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.limiter.Middleware(extractClientIP, true, s.handleRateLimited))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("route not found").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, CodeInvalidRequest, "method not allowed").Write(w)
	})

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Get("/ledger", s.handleLedger)
		r.Get("/dashboard", s.handleDashboard)
		r.Get("/summary/current", s.handleCurrentSummary)
		r.Get("/summary/revenue", s.handleRevenue)
		r.Get("/sync/status", s.handleSyncStatus)
		r.Post("/sync/push", s.handlePushAll)

		r.Route("/units/{category}/{id}", func(r chi.Router) {
			r.Get("/", s.handleUnit)
			r.Get("/history", s.handleUnitHistory)
			r.Put("/occupied", s.handleSetOccupied)
			r.Put("/occupant", s.handleRenameOccupant)
			r.Put("/rent", s.handleSetRent)
			r.Put("/selected-month", s.handleSelectMonth)

			r.Route("/payments/{month}", func(r chi.Router) {
				r.Put("/paid", s.handleSetPaid)
				r.Put("/date", s.handleSetPaidDate)
				r.Put("/notes", s.handleSetNotes)
				r.Delete("/", s.handleDeletePayment)
			})
		})

		r.Route("/services", func(r chi.Router) {
			r.Get("/", s.handleServices)
			r.Get("/totals", s.handleServiceTotals)
			r.Delete("/id/{serviceID}", s.handleDeleteServiceByID)
			r.Post("/{category}", s.handleAddService)
			r.Delete("/{category}/{index}", s.handleDeleteService)
		})
	})

	s.Server = http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	slog.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldComponent, log.ComponentRateLimit,
		log.FieldClientIP, extractClientIP(r),
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, CodeRateLimited, "rate limit exceeded, try again later").Write(w)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.ready() {
		ErrorResponse(http.StatusServiceUnavailable, CodeUnavailable, "ledger not loaded yet").Write(w)
		return
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}
