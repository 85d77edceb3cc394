package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/dealscout/internal/domain"
	"github.com/kailas-cloud/dealscout/internal/domain/candidate"
	"github.com/kailas-cloud/dealscout/internal/logger"
	healthuc "github.com/kailas-cloud/dealscout/internal/usecase/health"
	"github.com/kailas-cloud/dealscout/internal/usecase/rollup"
)

// CandidateFinder runs a rollup search.
type CandidateFinder interface {
	FindCandidates(ctx context.Context, c candidate.Criteria, opts rollup.Options) (rollup.Outcome, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server serves the rollup HTTP API.
type Server struct {
	finder        CandidateFinder
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(finder CandidateFinder, health HealthChecker, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		finder: finder,
		health: health,
		logger: logger,
	}
	s.errorHandlers = []errorHandler{
		validationHandler,
		sentinelHandler(domain.ErrRetrieval, http.StatusBadGateway, domain.ErrRetrieval.Error()),
	}
	return s
}

// FindCandidates handles POST /api/v1/rollups/candidates.
func (s *Server) FindCandidates(w http.ResponseWriter, r *http.Request) {
	params, err := bindFindCandidatesParams(r)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	criteria, err := decodeCriteria(r)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	opts := rollup.Options{}
	if params.K != nil {
		opts.K = *params.K
	}
	if params.Summary != nil {
		opts.Summary = *params.Summary
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	out, err := s.finder.FindCandidates(ctx, criteria, opts)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if usage.Used {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens))
	}

	resp := CandidatesResponse{Candidates: out.Candidates, Summary: out.Summary}
	if resp.Candidates == nil {
		resp.Candidates = []candidate.Result{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// validationHandler returns 400 with the offending field in the message.
func validationHandler(w http.ResponseWriter, err error) bool {
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		return false
	}
	writeError(w, http.StatusBadRequest, ve.Error())
	return true
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
// The client only ever sees msg, never the wrapped cause.
func sentinelHandler(sentinel error, status int, msg string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContextOr(r.Context(), s.logger)
	for _, h := range s.errorHandlers {
		if h(w, err) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}
