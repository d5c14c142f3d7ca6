package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"paisable/internal/auth"
	"paisable/internal/cache"
	applog "paisable/internal/log"
	"paisable/internal/middleware/ratelimit"
	"paisable/internal/middleware/security"
	"paisable/internal/middleware/trace"
	"paisable/internal/services"
)

// Services are the application services the handlers call into.
type Services struct {
	Transactions *services.TransactionService
	Insights     *services.InsightsService
	Categories   *services.CategoryService
	Receipts     *services.ReceiptService
	Recurring    *services.RecurringService
	Budgets      *services.BudgetService
	Auth         *auth.Service
}

// Options tune the server; zero values use defaults.
type Options struct {
	Logger    *applog.Logger
	RateLimit ratelimit.Config
	// UploadsDir serves locally stored receipt images under /uploads when set.
	UploadsDir string
	// Ready reports whether the backing store is reachable.
	Ready func(ctx context.Context) error
	// TrustedProxies are CIDRs whose forwarding headers are believed.
	TrustedProxies []string
}

type Server struct {
	http.Server
	svc      Services
	opts     Options
	logger   *applog.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	caches   *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, svc Services, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	if opts.RateLimit.RequestsPerMinute == 0 {
		opts.RateLimit = ratelimit.DefaultConfig()
	}

	s := &Server{
		svc:      svc,
		opts:     opts,
		logger:   logger.WithComponent(applog.ComponentHTTP),
		limiter:  ratelimit.NewLimiter(opts.RateLimit),
		detector: security.NewDetector(),
		caches:   cache.NewManager(),
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			s.logger.Warn("Ignoring trusted proxy", "cidr", cidr, "error", err)
		}
	}
	s.tracer = trace.NewMiddleware(logger.WithComponent(applog.ComponentTrace), s.detector.ExtractClientIP)

	if svc.Insights != nil {
		for _, c := range svc.Insights.Caches() {
			s.caches.Register(c)
		}
	}
	s.caches.StartCleanup(10 * time.Minute)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.tracer.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.detector.Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("Route not found").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "Method not allowed").Write(w)
	})

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	if s.opts.UploadsDir != "" {
		files := http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.opts.UploadsDir)))
		r.With(security.StaticAssetMiddleware(3600)).Get("/uploads/*", files.ServeHTTP)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
				"client_ip", s.detector.ExtractClientIP(r), "path", r.URL.Path)
			ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.").Write(w)
		}))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.handleRegister)
			r.Post("/login", s.handleLogin)
			r.With(s.svc.Auth.Middleware).Get("/me", s.handleMe)
			r.With(s.svc.Auth.Middleware).Put("/setup", s.handleCompleteSetup)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.svc.Auth.Middleware)

			r.Route("/transactions", func(r chi.Router) {
				r.Get("/", s.handleListTransactions)
				r.Post("/", s.handleCreateTransaction)
				r.Get("/summary", s.handleSummary)
				r.Get("/charts", s.handleCharts)
				r.Get("/categories", s.handleListCategories)
				r.Delete("/category", s.handleDeleteCategory)
				r.Get("/export", s.handleExport)
				r.Get("/{id}", s.handleGetTransaction)
				r.Put("/{id}", s.handleUpdateTransaction)
				r.Delete("/{id}", s.handleDeleteTransaction)
			})

			r.Route("/receipts", func(r chi.Router) {
				r.Get("/", s.handleListReceipts)
				r.Post("/upload", s.handleUploadReceipt)
				r.Post("/save-transaction", s.handleSaveReceiptTransaction)
				r.Get("/{id}", s.handleGetReceipt)
			})

			r.Route("/recurring", func(r chi.Router) {
				r.Get("/", s.handleListRecurring)
				r.Post("/", s.handleCreateRecurring)
				r.Put("/{id}", s.handleUpdateRecurring)
				r.Delete("/{id}", s.handleDeleteRecurring)
			})

			r.Route("/budgets", func(r chi.Router) {
				r.Get("/", s.handleListBudgets)
				r.Post("/", s.handleCreateBudget)
				r.Put("/{id}", s.handleUpdateBudget)
				r.Delete("/{id}", s.handleDeleteBudget)
			})
		})
	})
	return r
}

// Shutdown stops background cleanup and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.opts.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.opts.Ready(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", "error", err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// ownerID is set by the auth middleware on every protected route.
func ownerID(r *http.Request) string {
	id, _ := auth.OwnerFromContext(r.Context())
	return id
}
