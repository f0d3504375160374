// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/rehearsal/internal/adapters/repository"
	service "github.com/okian/rehearsal/internal/app"
	"github.com/okian/rehearsal/internal/domain/availability"
	"github.com/okian/rehearsal/internal/domain/types"
	"github.com/okian/rehearsal/pkg/logger"
	"github.com/okian/rehearsal/pkg/metrics"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers.
type Dependencies interface {
	OptimalTimes(ctx context.Context, requesterID, groupID string) (types.OptimalTimes, error)
	RequestRefresh(ctx context.Context, requesterID, groupID string) error
	JoinGroup(ctx context.Context, requesterID, groupID, userID string) error
	SetAvailability(ctx context.Context, requesterID, userID string, records []availability.Record) error
	Health(ctx context.Context) error
}

// Server wires HTTP routes for the business API.
type Server struct {
	auth   *authenticator
	logger logger.Logger

	healthHandler       *HealthHandler
	statsHandler        *StatsHandler
	optimalTimesHandler *OptimalTimesHandler
	membersHandler      *MembersHandler
	availabilityHandler *AvailabilityHandler
}

// NewServer creates a new API server with all handlers. When deps also
// reports statistics, GET /stats serves them.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		logger:        logger.Get(),
		healthHandler: NewHealthHandler(deps),
	}
	if p, ok := deps.(StatsProvider); ok {
		s.statsHandler = NewStatsHandler(p)
	}
	for _, opt := range opts {
		opt(s)
	}

	s.optimalTimesHandler = NewOptimalTimesHandler(deps, s.fail)
	s.membersHandler = NewMembersHandler(deps, s.fail)
	s.availabilityHandler = NewAvailabilityHandler(deps, s.fail)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	if s.statsHandler != nil {
		mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	}

	mux.HandleFunc("GET /groups/{groupID}/optimal-times",
		MetricsMiddleware(s.RequireUser(s.optimalTimesHandler.HandleGet), "optimal_times"))
	mux.HandleFunc("POST /groups/{groupID}/optimal-times/refresh",
		MetricsMiddleware(s.RequireUser(s.optimalTimesHandler.HandleRefresh), "optimal_times_refresh"))
	mux.HandleFunc("PUT /groups/{groupID}/members/{userID}",
		MetricsMiddleware(s.RequireUser(s.membersHandler.HandleJoin), "members"))
	mux.HandleFunc("PUT /users/{userID}/availability",
		MetricsMiddleware(s.RequireUser(s.availabilityHandler.HandlePut), "availability"))
}

// failFunc writes err to w as a JSON error response.
type failFunc func(w http.ResponseWriter, r *http.Request, err error)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil && status < http.StatusInternalServerError {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// fail maps err to a status code, logs server-side failures and writes the
// error body.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", status),
			logger.Error(err))
	}
	writeError(w, status, code, err)
}

// classify translates error kinds into HTTP status codes.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, availability.ErrInvalidInterval):
		return http.StatusUnprocessableEntity, "invalid_interval"
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, repository.ErrInvalidID),
		errors.Is(err, availability.ErrInvalidClock):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, repository.ErrUnavailable),
		errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
