package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"variatio/adapters/report"
	"variatio/app"
	"variatio/domain/core"
	"variatio/domain/experiment"
	"variatio/domain/metric"
	"variatio/internal/config"
	"variatio/internal/errors"
	"variatio/ports"
)

// AnalyzeRequest carries the input tables and the analysis plan
type AnalyzeRequest struct {
	Events      experiment.EventTable      `json:"events"`
	Allocations experiment.AllocationTable `json:"allocations"`
	Properties  *experiment.PropertyTable  `json:"properties,omitempty"`
	Plan        app.Plan                   `json:"plan"`
}

// AnalyzeResponse is the outcome of one analysis
type AnalyzeResponse struct {
	SessionID     string          `json:"session_id"`
	ControlArm    string          `json:"control_arm"`
	TreatmentArms []string        `json:"treatment_arms"`
	Mode          string          `json:"mode"`
	Metrics       []metric.Metric `json:"metrics"`
	Report        string          `json:"report_markdown"`
	Persisted     bool            `json:"persisted"`
}

// SessionResponse is a stored session with its metrics
type SessionResponse struct {
	Session ports.SessionRecord `json:"session"`
	Metrics []metric.Metric    `json:"metrics"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Server exposes analyses over HTTP
type Server struct {
	router   *chi.Mux
	analysis config.AnalysisConfig
	repo     ports.MetricRepository
	renderer *report.Renderer
	metrics  *serverMetrics
	logger   *zap.Logger
}

// NewServer creates the HTTP API. repo may be nil, which disables
// persistence and the session lookup route.
func NewServer(analysis config.AnalysisConfig, repo ports.MetricRepository, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		router:   chi.NewRouter(),
		analysis: analysis,
		repo:     repo,
		renderer: report.NewRenderer(analysis.SignificanceLevel),
		metrics:  newServerMetrics(),
		logger:   logger,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(5 * time.Minute))
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/analyses", s.handleAnalyze)
		r.Get("/sessions/{id}/metrics", s.handleSessionMetrics)
	})
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on addr until ctx is cancelled
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() { s.metrics.analysisDuration.Observe(time.Since(start).Seconds()) }()

	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.metrics.analysesTotal.WithLabelValues("invalid").Inc()
		s.writeError(w, errors.WithCode(errors.CodeInvalidInput, err))
		return
	}
	if err := req.Plan.Validate(); err != nil {
		s.metrics.analysesTotal.WithLabelValues("invalid").Inc()
		s.writeError(w, errors.WithCode(errors.CodeInvalidInput, err))
		return
	}

	opts, err := req.Plan.Options(s.analysis.Mode, s.analysis.Correction)
	if err != nil {
		s.metrics.analysesTotal.WithLabelValues("invalid").Inc()
		s.writeError(w, errors.WithCode(errors.CodeInvalidInput, err))
		return
	}
	opts = append(opts,
		app.WithAdjusterOptions(s.analysis.AdjusterOptions()),
		app.WithParallelism(s.analysis.Parallelism),
		app.WithLogger(s.logger))

	session, err := app.NewSession(app.SessionInput{
		Events:      req.Events,
		Allocations: req.Allocations,
		Properties:  req.Properties,
		ControlArm:  req.Plan.ControlArm,
	}, opts...)
	if err != nil {
		s.countFailure(err)
		s.writeError(w, err)
		return
	}

	computed, err := session.ComputeAll(r.Context(), req.Plan.Metrics)
	if err != nil {
		s.countFailure(err)
		s.writeError(w, err)
		return
	}
	for _, m := range computed {
		s.metrics.metricsComputed.WithLabelValues(string(m.Result.Method())).Inc()
		if m.Result.Degraded() {
			s.metrics.degradedFits.Inc()
		}
	}

	resp := AnalyzeResponse{
		SessionID:     session.ID().String(),
		ControlArm:    session.ControlArm(),
		TreatmentArms: session.TreatmentArms(),
		Mode:          session.Mode().String(),
		Metrics:       computed,
		Report:        s.renderer.Markdown(computed),
	}

	if s.repo != nil {
		record := ports.SessionRecord{
			ID:            session.ID(),
			ControlArm:    session.ControlArm(),
			TreatmentArms: session.TreatmentArms(),
			Mode:          session.Mode().String(),
			Correction:    string(computedCorrection(computed)),
			CreatedAt:     time.Now().UTC(),
		}
		if err := s.repo.SaveSession(r.Context(), record, computed); err != nil {
			s.metrics.analysesTotal.WithLabelValues("error").Inc()
			s.writeError(w, err)
			return
		}
		resp.Persisted = true
	}

	s.metrics.analysesTotal.WithLabelValues("ok").Inc()
	s.logger.Info("analysis completed",
		zap.String("session", resp.SessionID),
		zap.Int("metrics", len(computed)),
		zap.Duration("elapsed", time.Since(start)))
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleSessionMetrics(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "persistence is not configured", Code: errors.CodeDatabaseError})
		return
	}

	id, err := core.ParseSessionID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, errors.WithCode(errors.CodeInvalidInput, err))
		return
	}

	record, err := s.repo.GetSession(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	metrics, err := s.repo.ListBySession(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{Session: *record, Metrics: metrics})
}

func (s *Server) countFailure(err error) {
	if statusFor(err) < http.StatusInternalServerError {
		s.metrics.analysesTotal.WithLabelValues("invalid").Inc()
		return
	}
	s.metrics.analysesTotal.WithLabelValues("error").Inc()
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Code: errors.GetCode(err)})
}

func statusFor(err error) int {
	switch errors.GetCode(err) {
	case errors.CodeInvalidInput:
		return http.StatusBadRequest
	case errors.CodeSchemaError, errors.CodeInvalidAttribute, errors.CodeUnsupportedOperation:
		return http.StatusUnprocessableEntity
	case errors.CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func computedCorrection(metrics []metric.Metric) metric.Correction {
	if len(metrics) == 0 {
		return metric.CorrectionNone
	}
	return metrics[0].Result.Correction()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
