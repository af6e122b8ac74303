package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"donutmatrix/native/program"
	"donutmatrix/native/registry"
	"donutmatrix/native/swap/simulator"
	"donutmatrix/observability"
	"donutmatrix/services/matrixd/storage"
)

// Config defines HTTP server parameters.
type Config struct {
	ListenAddress     string
	RequestsPerSecond float64
	Burst             int
}

// Runtime bundles the collaborators served over HTTP.
type Runtime struct {
	Program  *program.Program
	Registry *registry.Registry
	Journal  *storage.Journal
	Auth     *Authenticator
	// Simulated enables the dev funding endpoint when set.
	Simulated *simulator.Ledger
	Logger    *slog.Logger
}

// Server exposes the program operations, read models and the signal journal.
type Server struct {
	cfg      Config
	program  *program.Program
	registry *registry.Registry
	journal  *storage.Journal
	auth     *Authenticator
	sim      *simulator.Ledger
	limiter  *RateLimiter
	logger   *slog.Logger

	// opMu serialises program operations; the program itself is single-threaded.
	opMu sync.Mutex
}

// New constructs a new HTTP server.
func New(cfg Config, rt Runtime) (*Server, error) {
	switch {
	case rt.Program == nil:
		return nil, fmt.Errorf("program required")
	case rt.Registry == nil:
		return nil, fmt.Errorf("registry required")
	case rt.Journal == nil:
		return nil, fmt.Errorf("journal required")
	case rt.Auth == nil:
		return nil, fmt.Errorf("admin authenticator required")
	}
	logger := rt.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:      cfg,
		program:  rt.Program,
		registry: rt.Registry,
		journal:  rt.Journal,
		auth:     rt.Auth,
		sim:      rt.Simulated,
		limiter:  NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst),
		logger:   logger.With("component", "http"),
	}, nil
}

// Handler builds the routed, instrumented handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.observe)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(v chi.Router) {
		v.Use(s.limiter.Middleware)
		v.Get("/ledger", s.handleLedger)
		v.Get("/weeks/{week}", s.handleWeek)
		v.Get("/quote", s.handleQuote)
		v.Get("/participants/{owner}", s.handleParticipant)
		v.Get("/participants/{owner}/claimable", s.handleClaimable)
		v.Get("/signals", s.handleSignals)
		v.Post("/register", s.handleRegister)
		v.Post("/claim", s.handleClaim)
	})

	r.Route("/admin", func(a chi.Router) {
		a.Use(s.auth.Middleware)
		a.Post("/initialize", s.handleInitialize)
		a.Post("/airdrop/start", s.handleStartAirdrop)
		a.Post("/epoch/roll", s.handleRoll)
		if s.sim != nil {
			a.Post("/simulated/fund", s.handleFund)
		}
	})
	return otelhttp.NewHandler(r, "matrixd")
}

// Run starts the HTTP server and blocks until context cancellation.
func (s *Server) Run(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("server not configured")
	}
	srv := &http.Server{
		Addr:              s.cfg.ListenAddress,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("http server listening", "addr", s.cfg.ListenAddress)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen and serve: %w", err)
	}
	return nil
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		done := observability.API().Track()
		defer done()
		started := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		observability.API().Observe(routePattern(r), status, time.Since(started))
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return ""
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorResponse{Error: message, Kind: kind})
}

// statusFor maps a program error onto its HTTP status.
func statusFor(err error) (int, program.ErrorKind) {
	kind := program.Kind(err)
	switch kind {
	case program.KindNone:
		return http.StatusOK, kind
	case program.KindAuthorization:
		return http.StatusForbidden, kind
	case program.KindValidation:
		return http.StatusBadRequest, kind
	case program.KindArithmetic:
		return http.StatusUnprocessableEntity, kind
	case program.KindExternalCall:
		return http.StatusBadGateway, kind
	case program.KindState:
		if errors.Is(err, program.ErrNotRegistered) || errors.Is(err, program.ErrNotInitialized) {
			return http.StatusNotFound, kind
		}
		return http.StatusConflict, kind
	default:
		return http.StatusInternalServerError, kind
	}
}

func (s *Server) writeProgramError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := statusFor(err)
	message := err.Error()
	if kind == program.KindInternal {
		s.logger.Error("request failed", "route", routePattern(r), "error", err)
		message = "internal error"
	}
	writeError(w, status, string(kind), message)
}
