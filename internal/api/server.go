// Package api exposes the token service over HTTP.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/shopspring/decimal"

	"github.com/lugondev/swapforge/internal/common"
	"github.com/lugondev/swapforge/internal/config"
	"github.com/lugondev/swapforge/internal/fee"
	"github.com/lugondev/swapforge/internal/metadata"
	"github.com/lugondev/swapforge/internal/metrics"
	"github.com/lugondev/swapforge/internal/rate"
	"github.com/lugondev/swapforge/internal/storage"
	"github.com/lugondev/swapforge/internal/tokenflow"
	"github.com/lugondev/swapforge/internal/txbuilder"
	"github.com/lugondev/swapforge/internal/walletrecord"
)

// TokenService runs token creation.
type TokenService interface {
	PrepareCreate(ctx context.Context, req txbuilder.CreateTokenRequest) (*txbuilder.CreateTokenResult, error)
	AddSupply(ctx context.Context, req tokenflow.AddSupplyRequest) (*tokenflow.AddSupplyResult, error)
	Cancel(ctx context.Context, walletKey, mintKey, reason string) (*storage.TokenStateModel, error)
	Status(ctx context.Context, mintKey string) (*storage.TokenStateModel, error)
}

// PaymentService builds fee payments and quotes.
type PaymentService interface {
	BuildPayment(ctx context.Context, req txbuilder.PaymentRequest) (*txbuilder.PaymentResult, error)
	Quote(o fee.Options) (decimal.Decimal, uint64)
}

// WalletService reads and writes wallet records.
type WalletService interface {
	FindWalletByAddress(ctx context.Context, address string) (*storage.WalletModel, error)
	RecordTokenCreated(ctx context.Context, ev walletrecord.TokenCreated) (*storage.WalletModel, error)
	RecordActivity(ctx context.Context, address, kind, reference, signature string) (*storage.ActivityModel, error)
	ListTokens(ctx context.Context, address string, limit, offset int) ([]*storage.TokenModel, error)
	ListActivity(ctx context.Context, address, kind string, limit, offset int) ([]*storage.ActivityModel, error)
}

// MetadataService uploads token metadata.
type MetadataService interface {
	Upload(ctx context.Context, logo []byte, contentType string, md metadata.Metadata) (string, error)
}

// Pinger reports backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services behind the handlers. Metrics, MetricsHandler,
// Uploads, Limiter and Health are optional.
type Deps struct {
	Tokens   TokenService
	Payments PaymentService
	Wallets  WalletService
	Metadata MetadataService
	Health   Pinger

	Metrics        metrics.Metrics
	MetricsHandler http.Handler
	// Uploads serves locally stored metadata under /uploads.
	Uploads http.Handler
	Limiter rate.Limiter
	// LogoMaxSide bounds resized logos.
	LogoMaxSide int
	// LogoSourceMaxSide bounds the images accepted for resizing.
	LogoSourceMaxSide int
}

// Server is the HTTP front of the service.
type Server struct {
	common.LoggerMixin
	deps         Deps
	cfg          config.ServerConfig
	maxBodyBytes int64
	metrics      metrics.Metrics
	limiter      rate.Limiter
	router       chi.Router
}

// NewServer builds the router.
func NewServer(deps Deps, cfg config.ServerConfig) *Server {
	s := &Server{
		LoggerMixin:  common.NewLoggerMixin(),
		deps:         deps,
		cfg:          cfg,
		maxBodyBytes: cfg.MaxBodyBytes,
		metrics:      deps.Metrics,
		limiter:      deps.Limiter,
	}
	if s.maxBodyBytes <= 0 {
		s.maxBodyBytes = 8 << 20
	}
	if s.metrics == nil {
		s.metrics = metrics.NewNoopMetrics()
	}
	if s.limiter == nil {
		s.limiter = rate.NoLimiter{}
	}
	s.router = s.routes()
	return s
}

// WithLogger sets the logger.
func (s *Server) WithLogger(logger *slog.Logger) *Server {
	s.SetLogger(logger)
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Not found", Kind: "not_found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "Method not allowed", Kind: "method_not_allowed"})
	})

	r.Get("/healthz", s.handleHealth)
	if s.deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", s.deps.MetricsHandler)
	}
	if s.deps.Uploads != nil {
		r.Handle("/uploads/*", http.StripPrefix("/uploads", s.deps.Uploads))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(s.rateLimit)

		r.Post("/token-create", s.handleCreateToken)
		r.Post("/token/token", s.handleCreateToken)
		r.Post("/token-add-supplier", s.handleAddSupply)
		r.Post("/payment", s.handlePayment)
		r.Post("/token/metadata/create", s.handleCreateMetadata)
		r.Post("/token/image/resize", s.handleResizeImage)
		r.Get("/token/fee", s.handleFee)
		r.Get("/token/status/{mint}", s.handleStatus)
		r.Post("/token/cancel", s.handleCancel)

		r.Post("/wallet/token/update", s.handleWalletTokenUpdate)
		r.Post("/wallet/activity", s.handleRecordActivity)
		r.Get("/wallet/{address}", s.handleGetWallet)
		r.Get("/wallet/{address}/tokens", s.handleListTokens)
		r.Get("/wallet/{address}/activity", s.handleListActivity)
	})
	return r
}

// logRequests logs one line per request and records request metrics.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		ctx := r.Context()
		s.metrics.IncrementCounter(ctx, metrics.MetricHTTPRequests, 1)
		s.metrics.RecordHistogram(ctx, metrics.MetricHTTPRequestSeconds, elapsed.Seconds())

		level := slog.LevelInfo
		if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
			level = slog.LevelDebug
		}
		s.GetLogger().Log(ctx, level, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", elapsed,
			"remote", r.RemoteAddr,
			"request_id", middleware.GetReqID(ctx),
		)
	})
}

// rateLimit applies the per-client limiter, keyed by the client address
// RealIP resolved.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodOptions && !s.limiter.Allow(clientIP(r)) {
			s.metrics.IncrementCounter(r.Context(), metrics.MetricHTTPRateLimited, 1)
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "Too many requests", Kind: kindRateLimited})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.deps.Health.Ping(ctx); err != nil {
			s.GetLogger().Warn("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// sweeper is implemented by limiters that keep per-client state.
type sweeper interface {
	Sweep(idle time.Duration) int
}

const (
	sweepInterval = time.Minute
	sweepIdle     = 10 * time.Minute
)

// Serve listens on the configured address until ctx is done, then shuts
// down gracefully within the configured timeout.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.WriteTimeout,
	}

	if sw, ok := s.limiter.(sweeper); ok {
		go func() {
			ticker := time.NewTicker(sweepInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if n := sw.Sweep(sweepIdle); n > 0 {
						s.GetLogger().Debug("rate limiter swept", "removed", n)
					}
				}
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		s.GetLogger().Info("http server listening", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	s.GetLogger().Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
