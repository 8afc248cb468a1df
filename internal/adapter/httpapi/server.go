// Package httpapi exposes the dataset and aggregate endpoints consumed by
// dashboard shells, plus health, readiness, and metrics routes.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/recall-analytics/internal/analytics"
	"github.com/couchcryptid/recall-analytics/internal/domain"
	"github.com/couchcryptid/recall-analytics/internal/pipeline"
)

// DatasetProvider builds (or serves from cache) the recall dataset.
type DatasetProvider interface {
	BuildDataset(ctx context.Context, start, end time.Time, limit int) (*pipeline.Dataset, error)
}

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Defaults are applied to requests that omit query parameters.
type Defaults struct {
	Limit         int
	LookbackYears int
}

// Server exposes the JSON API over a stdlib mux.
type Server struct {
	httpServer *http.Server
	provider   DatasetProvider
	forecaster analytics.Forecaster
	defaults   Defaults
	logger     *slog.Logger
}

// NewServer creates the HTTP server with all routes registered.
func NewServer(addr string, provider DatasetProvider, ready ReadinessChecker, forecaster analytics.Forecaster, defaults Defaults, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		provider:   provider,
		forecaster: forecaster,
		defaults:   defaults,
		logger:     logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/dataset", s.handleDataset)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/trends", s.handleTrends)
	mux.HandleFunc("GET /api/crosstab", s.handleCrossTab)
	mux.HandleFunc("GET /api/forecast", s.handleForecast)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// datasetQuery holds validated query parameters shared by the API routes.
type datasetQuery struct {
	start time.Time
	end   time.Time
	limit int
}

var errBadQuery = errors.New("bad query")

func (s *Server) parseQuery(r *http.Request) (datasetQuery, error) {
	q := r.URL.Query()

	end := time.Now().UTC().Truncate(24 * time.Hour)
	start := end.AddDate(-s.defaults.LookbackYears, 0, 0)
	limit := s.defaults.Limit

	var err error
	if raw := q.Get("start"); raw != "" {
		if start, err = time.Parse("2006-01-02", raw); err != nil {
			return datasetQuery{}, fmt.Errorf("%w: invalid start date %q", errBadQuery, raw)
		}
	}
	if raw := q.Get("end"); raw != "" {
		if end, err = time.Parse("2006-01-02", raw); err != nil {
			return datasetQuery{}, fmt.Errorf("%w: invalid end date %q", errBadQuery, raw)
		}
	}
	if raw := q.Get("limit"); raw != "" {
		if _, err := fmt.Sscanf(raw, "%d", &limit); err != nil || limit <= 0 {
			return datasetQuery{}, fmt.Errorf("%w: invalid limit %q", errBadQuery, raw)
		}
	}
	if start.After(end) {
		return datasetQuery{}, fmt.Errorf("%w: start date after end date", errBadQuery)
	}

	return datasetQuery{start: start, end: end, limit: limit}, nil
}

// buildFor handles the shared parse-and-build prologue. A nil dataset return
// means the response has already been written.
func (s *Server) buildFor(w http.ResponseWriter, r *http.Request) *pipeline.Dataset {
	query, err := s.parseQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return nil
	}

	ds, err := s.provider.BuildDataset(r.Context(), query.start, query.end, query.limit)
	if err != nil {
		s.logger.Error("dataset build failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "dataset unavailable"})
		return nil
	}
	return ds
}

func (s *Server) handleDataset(w http.ResponseWriter, r *http.Request) {
	ds := s.buildFor(w, r)
	if ds == nil {
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

type summaryResponse struct {
	Summary      analytics.Summary `json:"summary"`
	Correlation  *float64          `json:"quantity_severity_correlation,omitempty"`
	DroppedCount int               `json:"dropped_count"`
	UsedFallback bool              `json:"used_fallback"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	ds := s.buildFor(w, r)
	if ds == nil {
		return
	}

	resp := summaryResponse{
		Summary:      analytics.Summarize(ds.Records),
		DroppedCount: ds.DroppedCount,
		UsedFallback: ds.UsedFallback,
	}
	if corr, ok := analytics.QuantitySeverityCorrelation(ds.Records); ok {
		resp.Correlation = &corr
	}
	writeJSON(w, http.StatusOK, resp)
}

type trendsResponse struct {
	Bucket       analytics.Bucket       `json:"bucket"`
	Points       []analytics.TrendPoint `json:"points"`
	UsedFallback bool                   `json:"used_fallback"`
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	bucket, ok := parseBucket(w, r)
	if !ok {
		return
	}
	ds := s.buildFor(w, r)
	if ds == nil {
		return
	}

	writeJSON(w, http.StatusOK, trendsResponse{
		Bucket:       bucket,
		Points:       analytics.BucketCounts(ds.Records, bucket),
		UsedFallback: ds.UsedFallback,
	})
}

type crossTabResponse struct {
	By           string                    `json:"by"`
	Table        *analytics.CrossTab       `json:"table"`
	ChiSquare    analytics.ChiSquareResult `json:"chi_square"`
	UsedFallback bool                      `json:"used_fallback"`
}

func (s *Server) handleCrossTab(w http.ResponseWriter, r *http.Request) {
	by := r.URL.Query().Get("by")
	if by == "" {
		by = "reason"
	}

	var category func(domain.CleanRecord) string
	switch by {
	case "reason":
		category = analytics.ReasonCategory
	case "product":
		category = func(rec domain.CleanRecord) string { return rec.ProductType }
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("invalid by %q: want reason or product", by),
		})
		return
	}

	ds := s.buildFor(w, r)
	if ds == nil {
		return
	}

	table := analytics.CrossTabBySeverity(ds.Records, category)
	writeJSON(w, http.StatusOK, crossTabResponse{
		By:           by,
		Table:        table,
		ChiSquare:    analytics.ChiSquare(table),
		UsedFallback: ds.UsedFallback,
	})
}

type forecastResponse struct {
	Bucket       analytics.Bucket          `json:"bucket"`
	Horizon      int                       `json:"horizon"`
	Points       []analytics.ForecastPoint `json:"points"`
	Valid        bool                      `json:"valid"`
	UsedFallback bool                      `json:"used_fallback"`
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	bucket, ok := parseBucket(w, r)
	if !ok {
		return
	}

	horizon := 14
	if raw := r.URL.Query().Get("horizon"); raw != "" {
		if _, err := fmt.Sscanf(raw, "%d", &horizon); err != nil || horizon <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": fmt.Sprintf("invalid horizon %q", raw),
			})
			return
		}
	}

	ds := s.buildFor(w, r)
	if ds == nil {
		return
	}

	resp := forecastResponse{
		Bucket:       bucket,
		Horizon:      horizon,
		UsedFallback: ds.UsedFallback,
	}
	series := analytics.BucketCounts(ds.Records, bucket)
	points, err := s.forecaster.Forecast(series, bucket, horizon)
	if err != nil {
		// Too little data to forecast is a defined empty state, not a failure.
		s.logger.Debug("forecast unavailable", "error", err)
		writeJSON(w, http.StatusOK, resp)
		return
	}
	resp.Points = points
	resp.Valid = true
	writeJSON(w, http.StatusOK, resp)
}

func parseBucket(w http.ResponseWriter, r *http.Request) (analytics.Bucket, bool) {
	raw := r.URL.Query().Get("bucket")
	switch raw {
	case "", string(analytics.Daily):
		return analytics.Daily, true
	case string(analytics.Monthly):
		return analytics.Monthly, true
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("invalid bucket %q: want daily or monthly", raw),
		})
		return "", false
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response write
}
