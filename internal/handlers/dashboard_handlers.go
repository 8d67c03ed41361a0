package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"sala-situacao/internal/aggregation"
	"sala-situacao/internal/repository"
	"sala-situacao/internal/services"
	"sala-situacao/pkg/logging"
	"sala-situacao/pkg/metrics"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	minYear         = 1900
	maxYear         = 2100
)

// MonthlyService produces the monthly summaries of a series
type MonthlyService interface {
	Series() []services.SeriesInfo
	Monthly(ctx context.Context, series string, filter repository.RangeFilter) (*aggregation.Output, error)
}

// ComparativeService produces the month-to-date comparison of a series
type ComparativeService interface {
	Compare(ctx context.Context, series string) (*aggregation.Comparison, error)
}

// WorkbookWriter renders monthly summaries as a spreadsheet
type WorkbookWriter interface {
	WriteMonthlyXLSX(ctx context.Context, w io.Writer, series string, output *aggregation.Output) error
}

// HealthChecker reports whether the backing store is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// DashboardHandler handles the situation room API endpoints
type DashboardHandler struct {
	monthly     MonthlyService
	comparative ComparativeService
	workbooks   WorkbookWriter
	health      HealthChecker
	location    *time.Location
	logger      *logging.StructuredLogger
	metrics     *metrics.Collector
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(
	monthly MonthlyService,
	comparative ComparativeService,
	workbooks WorkbookWriter,
	health HealthChecker,
	location *time.Location,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *DashboardHandler {
	if location == nil {
		location = time.UTC
	}
	return &DashboardHandler{
		monthly:     monthly,
		comparative: comparative,
		workbooks:   workbooks,
		health:      health,
		location:    location,
		logger:      logger,
		metrics:     metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// SeriesListResponse is returned by GET /api/series
type SeriesListResponse struct {
	Data []services.SeriesInfo `json:"data"`
}

// ListSeries handles GET /api/series
func (h *DashboardHandler) ListSeries(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, SeriesListResponse{Data: h.monthly.Series()}, http.StatusOK)
}

// GetMonthly handles GET /api/series/{series}/mensal
func (h *DashboardHandler) GetMonthly(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	series := mux.Vars(r)["series"]

	filter, err := h.parseYearRange(r)
	if err != nil {
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	out, err := h.monthly.Monthly(ctx, series, filter)
	if err != nil {
		h.handleServiceError(w, r, "[API_MONTHLY_ERROR] Failed to aggregate series", series, err)
		return
	}

	h.sendJSON(w, out, http.StatusOK)
}

// ExportMonthly handles GET /api/series/{series}/mensal.xlsx
func (h *DashboardHandler) ExportMonthly(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	series := mux.Vars(r)["series"]

	filter, err := h.parseYearRange(r)
	if err != nil {
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	out, err := h.monthly.Monthly(ctx, series, filter)
	if err != nil {
		h.handleServiceError(w, r, "[API_EXPORT_ERROR] Failed to aggregate series", series, err)
		return
	}

	// headers are not written until the workbook is complete
	var buf bytes.Buffer
	if err := h.workbooks.WriteMonthlyXLSX(ctx, &buf, series, out); err != nil {
		h.handleServiceError(w, r, "[API_EXPORT_ERROR] Failed to render workbook", series, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", series+"-mensal.xlsx"))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warn(ctx, "[API_EXPORT_WRITE] Client went away during export", logging.Fields{
			"series": series,
			"error":  err.Error(),
		})
	}
}

// GetComparative handles GET /api/series/{series}/comparativo
func (h *DashboardHandler) GetComparative(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	series := mux.Vars(r)["series"]

	comparison, err := h.comparative.Compare(ctx, series)
	if err != nil {
		h.handleServiceError(w, r, "[API_COMPARATIVE_ERROR] Failed to compare series", series, err)
		return
	}

	h.sendJSON(w, comparison, http.StatusOK)
}

// HealthCheck handles GET /health
func (h *DashboardHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{
		"status":    "healthy",
		"database":  "up",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := h.health.HealthCheck(ctx); err != nil {
		h.logger.Warn(ctx, "[HEALTH_CHECK] Database unreachable", logging.Fields{
			"error": err.Error(),
		})
		status["status"] = "unhealthy"
		status["database"] = "down"
		h.sendJSON(w, status, http.StatusServiceUnavailable)
		return
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{})
	h.sendJSON(w, status, http.StatusOK)
}

// parseYearRange reads start_year and end_year into an inclusive range
// of whole calendar years in the dashboard location
func (h *DashboardHandler) parseYearRange(r *http.Request) (repository.RangeFilter, error) {
	var filter repository.RangeFilter

	startYear, err := parseYear(r, "start_year")
	if err != nil {
		return filter, err
	}
	endYear, err := parseYear(r, "end_year")
	if err != nil {
		return filter, err
	}
	if startYear != nil && endYear != nil && *startYear > *endYear {
		return filter, errors.New("start_year must not be after end_year")
	}

	if startYear != nil {
		start := time.Date(*startYear, time.January, 1, 0, 0, 0, 0, h.location)
		filter.Start = &start
	}
	if endYear != nil {
		end := time.Date(*endYear+1, time.January, 1, 0, 0, 0, 0, h.location).Add(-time.Nanosecond)
		filter.End = &end
	}
	return filter, nil
}

func parseYear(r *http.Request, name string) (*int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	year, err := strconv.Atoi(raw)
	if err != nil || year < minYear || year > maxYear {
		return nil, fmt.Errorf("invalid %s, expected integer between %d and %d", name, minYear, maxYear)
	}
	return &year, nil
}

// handleServiceError maps domain errors to HTTP status codes
func (h *DashboardHandler) handleServiceError(w http.ResponseWriter, r *http.Request, message, series string, err error) {
	var (
		unknown     *services.UnknownSeriesError
		unsupported *services.UnsupportedError
		notFound    *repository.NotFoundError
	)

	switch {
	case errors.As(err, &unknown), errors.As(err, &notFound):
		h.sendError(w, r, err.Error(), http.StatusNotFound)
	case errors.As(err, &unsupported):
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
	case errors.Is(err, context.Canceled):
		h.metrics.RecordAPIError("canceled", routeName(r))
	default:
		h.logger.Error(r.Context(), message, logging.Fields{
			"series": series,
		}, err)
		h.sendError(w, r, "failed to process series", http.StatusInternalServerError)
	}
}

// sendJSON sends a JSON response
func (h *DashboardHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error(context.Background(), "[API_ENCODE_ERROR] Failed to encode response", logging.Fields{}, err)
	}
}

// sendError sends an error response
func (h *DashboardHandler) sendError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	errorType := "internal_error"
	switch {
	case statusCode == http.StatusNotFound:
		errorType = "not_found"
	case statusCode < http.StatusInternalServerError:
		errorType = "bad_request"
	}
	h.metrics.RecordAPIError(errorType, routeName(r))

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	h.sendJSON(w, response, statusCode)
}

// RegisterRoutes registers all dashboard API routes
func (h *DashboardHandler) RegisterRoutes(router *mux.Router) {
	router.Use(RequestID, Instrument(h.metrics))

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/series", h.ListSeries).Methods(http.MethodGet)
	api.HandleFunc("/series/{series}/mensal", h.GetMonthly).Methods(http.MethodGet)
	api.HandleFunc("/series/{series}/mensal.xlsx", h.ExportMonthly).Methods(http.MethodGet)
	api.HandleFunc("/series/{series}/comparativo", h.GetComparative).Methods(http.MethodGet)
	api.HandleFunc("/docs", SwaggerUI).Methods(http.MethodGet)
	api.HandleFunc("/docs/openapi.json", OpenAPISpec).Methods(http.MethodGet)

	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
}
