package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"telegram-channel-subscription/internal/infra/logging"
	"telegram-channel-subscription/internal/usecase"
)

// SweepTrigger is what the manual sweep endpoint needs from the worker.
type SweepTrigger interface {
	RunOnce(ctx context.Context) (*usecase.SweepReport, error)
}

// Server is the admin API: recovery statistics, failed-delivery listing and
// manual recovery triggers. All routes except login and health are behind
// the JWT middleware.
type Server struct {
	recovery  usecase.RecoveryUseCase
	stats     usecase.StatsUseCase
	payments  usecase.PaymentUseCase
	worker    SweepTrigger
	auth      *AuthManager
	adminPass string
	log       *zerolog.Logger
}

func NewServer(
	recovery usecase.RecoveryUseCase,
	stats usecase.StatsUseCase,
	payments usecase.PaymentUseCase,
	worker SweepTrigger,
	auth *AuthManager,
	adminPass string,
	logger *zerolog.Logger,
) *Server {
	srvLog := logger.With().Str("component", "AdminAPI").Logger()
	return &Server{
		recovery:  recovery,
		stats:     stats,
		payments:  payments,
		worker:    worker,
		auth:      auth,
		adminPass: adminPass,
		log:       &srvLog,
	}
}

// Router builds the chi routing tree.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(s.traceID, s.requestLog, s.recoverPanic)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Get("/recovery/stats", s.handleRecoveryStats)
			r.Get("/recovery/failed", s.handleFailedDeliveries)
			r.Get("/recovery/payments/{id}/attempts", s.handleDeliveryAttempts)
			r.Post("/recovery/sweep", s.handleSweep)
			r.Post("/recovery/payments", s.handleRecoverBatch)
			r.Post("/recovery/payments/{id}", s.handleRecoverPayment)
			r.Post("/payments/{id}/confirm", s.handleConfirmPayment)
		})
	})
	return r
}

// ===== middleware =====

func (s *Server) traceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithTraceID(r.Context(), uuid.NewString())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := logging.With(r.Context(), s.log)
		start := time.Now()
		ww := &respWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(ww, r)
		l.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.status).
			Dur("duration", time.Since(start)).
			Msg("http_request")
	})
}

func (s *Server) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("handler panic")
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.auth.ParseFromRequest(r); err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
