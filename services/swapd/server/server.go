package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"swaplace/gateway/auth"
	"swaplace/gateway/middleware"
	"swaplace/native/swaplace"
	"swaplace/native/tokens"
	"swaplace/services/swapd/api"
	"swaplace/services/swapd/ledger"
)

const (
	RateLimitRead  = "read"
	RateLimitWrite = "write"
	// RateLimitSignature is applied by client IP before signatures are checked.
	RateLimitSignature = "signature"

	maxRequestBody = 1 << 20
)

var errBadRequest = errors.New("bad request")

// Config defines HTTP server parameters.
type Config struct {
	ListenAddress   string
	ShutdownTimeout time.Duration
}

// Server exposes the ledger over HTTP.
type Server struct {
	cfg     Config
	ledger  *ledger.Ledger
	auth    *auth.Authenticator
	limiter *middleware.RateLimiter
	logger  *slog.Logger
}

// New constructs a new HTTP server. limiter may be nil.
func New(cfg Config, l *ledger.Ledger, authenticator *auth.Authenticator, limiter *middleware.RateLimiter, logger *slog.Logger) (*Server, error) {
	if l == nil {
		return nil, fmt.Errorf("ledger required")
	}
	if authenticator == nil {
		return nil, fmt.Errorf("authenticator required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	return &Server{cfg: cfg, ledger: l, auth: authenticator, limiter: limiter, logger: logger}, nil
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Observability(s.logger))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Group(func(read chi.Router) {
			s.limit(read, RateLimitRead)
			read.Get("/engine", s.handleEngine)
			read.Get("/swaps/total", s.handleTotal)
			read.Get("/swaps/{id}", s.handleGetSwap)
			read.Get("/accounts/{address}", s.handleAccount)
			read.Get("/tokens/{address}/balance/{holder}", s.handleTokenBalance)
			read.Get("/tokens/{address}/owner/{id}", s.handleTokenOwner)
			read.Post("/codec/config/encode", s.handleConfigEncode)
			read.Post("/codec/config/decode", s.handleConfigDecode)
			read.Post("/codec/asset/encode", s.handleAssetEncode)
			read.Post("/codec/asset/decode", s.handleAssetDecode)
		})
		v1.Group(func(write chi.Router) {
			s.limit(write, RateLimitSignature)
			write.Use(s.auth.VerifyMiddleware(s.writeAuthError))
			s.limit(write, RateLimitWrite)
			write.Use(s.auth.RecordMiddleware(s.writeAuthError))
			write.Post("/swaps", s.handleCreateSwap)
			write.Post("/swaps/{id}/accept", s.handleAcceptSwap)
			write.Post("/swaps/{id}/cancel", s.handleCancelSwap)
			write.Post("/tokens/{address}/approve", s.handleApprove)
			write.Post("/tokens/{address}/approval-for-all", s.handleApprovalForAll)
		})
	})
	return otelhttp.NewHandler(r, "swapd")
}

func (s *Server) limit(r chi.Router, key string) {
	if s.limiter != nil {
		r.Use(s.limiter.Middleware(key))
	}
}

// Run starts the HTTP server and blocks until context cancellation.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddress,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("http server listening", slog.String("addr", s.cfg.ListenAddress))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen and serve: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.StatusResponse{Status: "ok"})
}

// statusFor maps a failure onto its HTTP status.
func statusFor(err error) (int, swaplace.ErrorClass) {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, swaplace.ClassValidation
	case errors.Is(err, ledger.ErrUnknownToken), errors.Is(err, tokens.ErrNonexistentToken):
		return http.StatusNotFound, swaplace.ClassValidation
	case errors.Is(err, ledger.ErrUnsupportedCall):
		return http.StatusBadRequest, swaplace.ClassValidation
	}
	class := swaplace.Classify(err)
	switch class {
	case swaplace.ClassValidation:
		return http.StatusBadRequest, class
	case swaplace.ClassUnauthorized:
		return http.StatusForbidden, class
	case swaplace.ClassTemporal:
		return http.StatusConflict, class
	case swaplace.ClassPaused:
		return http.StatusServiceUnavailable, class
	case swaplace.ClassQuota:
		return http.StatusTooManyRequests, class
	default:
		return http.StatusUnprocessableEntity, class
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, class := statusFor(err)
	s.logger.Warn("request failed",
		slog.String("route", r.URL.Path),
		slog.Int("status", status),
		slog.String("class", string(class)),
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		slog.String("error", err.Error()))
	writeJSON(w, status, api.ErrorResponse{Error: err.Error(), Class: string(class)})
}

func (s *Server) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	status, class := http.StatusUnauthorized, "authentication"
	if errors.Is(err, auth.ErrReplayCacheFull) {
		status, class = http.StatusServiceUnavailable, "unavailable"
		w.Header().Set("Retry-After", strconv.Itoa(int(s.auth.Skew().Seconds())))
	}
	s.logger.Warn("authentication failed",
		slog.String("route", r.URL.Path),
		slog.Int("status", status),
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		slog.String("error", err.Error()))
	writeJSON(w, status, api.ErrorResponse{Error: err.Error(), Class: class})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: invalid payload: %v", errBadRequest, err)
	}
	return nil
}
