// Package apiserver exposes the reliability platform over HTTP. Handlers
// are a thin shell: they parse and validate input, call one engine, and
// render its result. All domain decisions live in the engines.
package apiserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/config"
	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/models"
	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/storage"
	"github.com/HARIHARANk2007/AI-Assisted-Reliability-Error-Budget-Platform/pkg/telemetry"
)

// Store is the storage surface the handlers use directly; everything else
// goes through an engine.
type Store interface {
	CreateService(ctx context.Context, svc *models.Service) error
	ServiceByID(ctx context.Context, id int64) (*models.Service, error)
	ServiceByName(ctx context.Context, name string) (*models.Service, error)
	ListServices(ctx context.Context, activeOnly bool, offset, limit int) ([]models.Service, error)
	CountServices(ctx context.Context, activeOnly bool) (int64, error)
	ActiveServices(ctx context.Context) ([]models.Service, error)
	UpdateService(ctx context.Context, id int64, patch storage.ServicePatch) (*models.Service, error)
	DeactivateService(ctx context.Context, id int64) error
	SLOTargets(ctx context.Context, serviceID int64, activeOnly bool) ([]models.SLOTarget, error)
	SystemConfigByKey(ctx context.Context, key string) (*models.SystemConfig, error)
	ListSystemConfig(ctx context.Context) ([]models.SystemConfig, error)
	UpsertSystemConfig(ctx context.Context, key, value, valueType string, description, updatedBy *string) (*models.SystemConfig, error)
	Ping(ctx context.Context) error
}

// Ingester accepts raw metric batches and serves them back.
type Ingester interface {
	Ingest(ctx context.Context, snapshots []models.MetricSnapshot) (*models.IngestResult, error)
	History(ctx context.Context, serviceID int64, hours, limit int) ([]models.Metric, error)
	Aggregated(ctx context.Context, serviceID int64, windowMinutes int) (*models.AggregatedMetrics, error)
	Cleanup(ctx context.Context, retentionDays int) (int64, error)
}

// BurnEngine serves burn-rate computations and their persisted history.
type BurnEngine interface {
	Compute(ctx context.Context, serviceID int64, windowMinutes int) (*models.BurnRateComputation, error)
	Weighted(ctx context.Context, serviceID int64) (*models.WeightedBurnRate, error)
	HistoryReport(ctx context.Context, serviceID int64, hours int) (*models.BurnHistoryReport, error)
	Statistics(ctx context.Context, serviceID int64, hours int) (*models.BurnStatistics, error)
}

// SLOEngine serves compliance reports.
type SLOEngine interface {
	ServiceStatus(ctx context.Context, serviceID int64) (*models.ServiceSLOStatus, error)
	GlobalCompliance(ctx context.Context) (*models.GlobalCompliance, error)
	CreateDefaultTargets(ctx context.Context, serviceID int64) ([]models.SLOTarget, error)
}

// ForecastEngine projects budget exhaustion.
type ForecastEngine interface {
	Forecast(ctx context.Context, serviceID int64) (*models.Forecast, error)
	AllForecasts(ctx context.Context) ([]models.Forecast, error)
	NearestExhaustion(ctx context.Context) (*models.NearestExhaustion, error)
}

// ReleaseGate decides deployments.
type ReleaseGate interface {
	Check(ctx context.Context, req *models.ReleaseCheckRequest) (*models.ReleaseCheckResponse, error)
	History(ctx context.Context, serviceID *int64, limit int) ([]models.Deployment, error)
	Statistics(ctx context.Context, days int) (*models.GateStatistics, error)
}

// AlertManager serves and acknowledges persisted alerts.
type AlertManager interface {
	List(ctx context.Context, f storage.AlertFilter) ([]models.AlertWithService, error)
	Feed(ctx context.Context, hours, limit int) (*models.AlertFeed, error)
	Acknowledge(ctx context.Context, id int64, by string) (*models.Alert, error)
	AcknowledgeBatch(ctx context.Context, ids []int64, by string) (int64, error)
	Statistics(ctx context.Context, days int) (*models.AlertStatistics, error)
}

// Dashboard assembles the fleet views.
type Dashboard interface {
	Overview(ctx context.Context) (*models.DashboardOverview, error)
	Heatmap(ctx context.Context, hours, intervalHours int) (*models.Heatmap, error)
}

// Narrator renders human-readable health summaries.
type Narrator interface {
	Summary(ctx context.Context) (*models.SummaryReport, error)
	ServiceSummary(ctx context.Context, serviceID int64) (*models.ServiceNarrative, error)
	Report(ctx context.Context, serviceID int64) (string, error)
}

// Deps bundles everything the server routes to.
type Deps struct {
	App config.AppConfig

	Store     Store
	Ingest    Ingester
	Burn      BurnEngine
	SLO       SLOEngine
	Forecast  ForecastEngine
	Gate      ReleaseGate
	Alerts    AlertManager
	Dashboard Dashboard
	Narrative Narrator

	Cache   *storage.SnapshotCache
	Runtime *config.Runtime
	Metrics *telemetry.Metrics
}

// Server is the platform's HTTP front end.
type Server struct {
	deps     Deps
	cfg      config.HTTPConfig
	logger   *zap.Logger
	validate *validator.Validate

	httpServer *http.Server

	// Flipped at shutdown so the readiness probe fails before the
	// listener drains.
	isShuttingDown atomic.Bool
}

// New builds a Server. The handler is constructed lazily so tests can
// mount Handler() on httptest without binding a port.
func New(deps Deps, cfg config.HTTPConfig, logger *zap.Logger) *Server {
	return &Server{
		deps:     deps,
		cfg:      cfg,
		logger:   logger.Named("api"),
		validate: validator.New(),
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
	}
}

// Handler returns the fully routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)
	r.Get("/health/ready", s.handleReadiness)
	r.Get("/health/live", s.handleLiveness)
	r.Handle("/metrics", promhttp.HandlerFor(s.deps.Metrics.Gatherer(), promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/services", func(r chi.Router) {
			r.Post("/", s.handleCreateService)
			r.Get("/", s.handleListServices)
			r.Get("/{serviceID}", s.handleGetService)
			r.Patch("/{serviceID}", s.handlePatchService)
			r.Delete("/{serviceID}", s.handleDeleteService)
			r.Get("/{serviceID}/slo-targets", s.handleServiceSLOTargets)
		})

		r.Route("/metrics", func(r chi.Router) {
			r.Post("/ingest", s.handleIngestMetrics)
			r.Post("/simulate", s.handleSimulate)
			r.Post("/simulate/snapshot", s.handleSimulateSnapshot)
			r.Delete("/cleanup", s.handleCleanupMetrics)
			r.Get("/{serviceID}/history", s.handleMetricHistory)
			r.Get("/{serviceID}/aggregated", s.handleMetricAggregated)
		})

		r.Route("/burn", func(r chi.Router) {
			r.Get("/", s.handleFleetBurn)
			r.Get("/{serviceID}/current", s.handleBurnCurrent)
			r.Get("/{serviceID}/history", s.handleBurnHistory)
			r.Get("/{serviceID}/weighted", s.handleBurnWeighted)
			r.Get("/{serviceID}/statistics", s.handleBurnStatistics)
		})

		r.Route("/slo", func(r chi.Router) {
			r.Get("/compliance", s.handleGlobalCompliance)
			r.Get("/{serviceID}/status", s.handleSLOStatus)
		})

		r.Route("/forecast", func(r chi.Router) {
			r.Get("/", s.handleAllForecasts)
			r.Get("/nearest-exhaustion", s.handleNearestExhaustion)
			r.Get("/{serviceID}", s.handleForecast)
		})

		r.Route("/release", func(r chi.Router) {
			r.Post("/check", s.handleReleaseCheck)
			r.Get("/history/{serviceID}", s.handleReleaseHistory)
			r.Get("/statistics", s.handleReleaseStatistics)
		})

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", s.handleListAlerts)
			r.Get("/feed", s.handleAlertFeed)
			r.Get("/statistics", s.handleAlertStatistics)
			r.Post("/acknowledge-bulk", s.handleAcknowledgeBulk)
			r.Post("/{alertID}/acknowledge", s.handleAcknowledgeAlert)
		})

		r.Route("/dashboard", func(r chi.Router) {
			r.Get("/overview", s.handleDashboardOverview)
			r.Get("/heatmap", s.handleDashboardHeatmap)
		})

		r.Route("/narrative", func(r chi.Router) {
			r.Get("/executive", s.handleExecutiveSummary)
			r.Get("/{serviceID}/summary", s.handleServiceNarrative)
			r.Get("/{serviceID}/report", s.handleNarrativeReport)
		})

		r.Route("/config", func(r chi.Router) {
			r.Get("/", s.handleGetConfig)
			r.Get("/risk-thresholds", s.handleRiskThresholds)
			r.Patch("/{key}", s.handlePatchConfig)
		})
	})

	return r
}

// Start binds the listener and serves until Shutdown.
func (s *Server) Start() error {
	s.httpServer.Handler = s.Handler()
	s.logger.Info("Starting API server", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown fails the readiness probe, then drains in-flight requests.
// Closing the store and cache stays with their owner.
func (s *Server) Shutdown(ctx context.Context) error {
	s.isShuttingDown.Store(true)
	s.logger.Info("Draining API server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to drain http server: %w", err)
	}
	s.logger.Info("API server drained")
	return nil
}

// handleIndex describes the API surface for anyone poking the bare root.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"name":        s.deps.App.Name,
		"version":     s.deps.App.Version,
		"environment": s.deps.App.Environment,
		"api_prefix":  "/api/v1",
		"endpoints": map[string]string{
			"services":  "/api/v1/services",
			"metrics":   "/api/v1/metrics",
			"burn":      "/api/v1/burn",
			"slo":       "/api/v1/slo",
			"forecast":  "/api/v1/forecast",
			"release":   "/api/v1/release",
			"alerts":    "/api/v1/alerts",
			"dashboard": "/api/v1/dashboard",
			"narrative": "/api/v1/narrative",
			"config":    "/api/v1/config",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.isShuttingDown.Load() {
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "shutting_down",
		})
		return
	}

	status := http.StatusOK
	database := "ready"
	if err := s.deps.Store.Ping(r.Context()); err != nil {
		status = http.StatusServiceUnavailable
		database = "not_ready"
		s.logger.Warn("Database not ready", zap.Error(err))
	}

	// The cache is an accelerator; losing it degrades reads but never
	// readiness.
	cache := "disabled"
	if s.deps.Cache != nil {
		cache = "ready"
		if err := s.deps.Cache.Ping(r.Context()); err != nil {
			cache = "not_ready"
			s.logger.Warn("Cache not ready", zap.Error(err))
		}
	}

	s.respondJSON(w, status, map[string]string{
		"database": database,
		"cache":    cache,
		"time":     time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK")) //nolint:errcheck
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)

		// The matched chi pattern keeps the metric label cardinality
		// bounded; unrouted paths fall back to the raw path.
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		if s.deps.Metrics != nil {
			s.deps.Metrics.HTTPRequestDuration.
				WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).
				Observe(elapsed.Seconds())
		}

		s.logger.Info("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", elapsed),
			zap.String("remote", r.RemoteAddr),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// problem is the RFC 7807 error body every failed request renders.
type problem struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Detail    string `json:"detail"`
	Status    int    `json:"status"`
	Instance  string `json:"instance"`
	RequestID string `json:"request_id,omitempty"`
}

const problemBase = "https://reliability-platform.dev/problems/"

func problemType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return problemBase + "validation-error"
	case http.StatusNotFound:
		return problemBase + "not-found"
	case http.StatusConflict:
		return problemBase + "conflict"
	case http.StatusServiceUnavailable:
		return problemBase + "service-unavailable"
	default:
		return problemBase + "internal-error"
	}
}

func statusForKind(kind models.ErrorKind) int {
	switch kind {
	case models.ErrKindUnknownService, models.ErrKindNotFound:
		return http.StatusNotFound
	case models.ErrKindInvalidInput:
		return http.StatusBadRequest
	case models.ErrKindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) respondProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	p := problem{
		Type:      problemType(status),
		Title:     http.StatusText(status),
		Detail:    detail,
		Status:    status,
		Instance:  r.URL.Path,
		RequestID: middleware.GetReqID(r.Context()),
	}
	if err := json.NewEncoder(w).Encode(p); err != nil {
		http.Error(w, detail, status)
	}
}

// respondError maps a domain error onto a problem response. Internal
// causes are logged, never echoed to the caller.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForKind(models.KindOf(err))
	detail := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		detail = "internal error"
	}
	s.respondProblem(w, r, status, detail)
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close() //nolint:errcheck
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return models.InvalidInput("request body is not valid JSON: %v", err)
	}
	return nil
}

// validateStruct folds validator failures into the domain error space so
// respondError renders them as 400s.
func (s *Server) validateStruct(v any) error {
	if err := s.validate.Struct(v); err != nil {
		return models.InvalidInput("invalid request: %v", err)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, models.InvalidInput("%s must be a positive integer", name)
	}
	return id, nil
}

func queryInt(r *http.Request, name string, def, lo, hi int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, models.InvalidInput("%s must be an integer", name)
	}
	if v < lo || v > hi {
		return 0, models.InvalidInput("%s must be between %d and %d", name, lo, hi)
	}
	return v, nil
}

func queryFloat(r *http.Request, name string, def, lo, hi float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, models.InvalidInput("%s must be a number", name)
	}
	if v < lo || v > hi {
		return 0, models.InvalidInput("%s must be between %g and %g", name, lo, hi)
	}
	return v, nil
}

func queryBool(r *http.Request, name string, def bool) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, models.InvalidInput("%s must be a boolean", name)
	}
	return v, nil
}
