package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"

	"sala-situacao/internal/aggregation"
	"sala-situacao/internal/models"
	"sala-situacao/pkg/database"
	"sala-situacao/pkg/logging"
	"sala-situacao/pkg/metrics"
)

// SeriesRepository provides data access for the monitoring series
type SeriesRepository interface {
	// Monthly aggregation sources
	ListTurbidityReadings(ctx context.Context, filter RangeFilter) ([]models.TurbidityReading, error)
	ListRiverReadings(ctx context.Context, filter RangeFilter) ([]models.RiverReading, error)
	ListFireHotspots(ctx context.Context, filter RangeFilter) ([]models.FireHotspot, error)
	ListDeforestationAlerts(ctx context.Context, filter RangeFilter) ([]models.DeforestationAlert, error)

	// Comparative sources
	ListSampleValues(ctx context.Context, series string, from, to time.Time) ([]models.SampleValue, error)
	LatestTimestamp(ctx context.Context, series string) (any, error)

	// Ingestion
	InsertRows(ctx context.Context, series string, rows []models.ImportRow) error
	Analyze(ctx context.Context, series string) error

	HealthCheck(ctx context.Context) error
}

// seriesRepository implements SeriesRepository on PostgreSQL/PostGIS
type seriesRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewSeriesRepository creates a new series repository
func NewSeriesRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) SeriesRepository {
	return &seriesRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

func (r *seriesRepository) table(series string) (Table, error) {
	t, ok := TableFor(series)
	if !ok {
		return Table{}, &NotFoundError{Resource: "series", ID: series}
	}
	return t, nil
}

// ListTurbidityReadings lists Deque de Pedras readings
func (r *seriesRepository) ListTurbidityReadings(ctx context.Context, filter RangeFilter) ([]models.TurbidityReading, error) {
	t, _ := TableFor(aggregation.SeriesTurbidity)
	query, args := buildListQuery(t, []string{"id", "data_hora", "chuva", "turbidez"}, filter)

	var rows []models.TurbidityReading
	if err := r.db.SelectContext(ctx, "list_turbidity", &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list turbidity readings: %w", err)
	}
	return rows, nil
}

// ListRiverReadings lists Ponte do Cure readings
func (r *seriesRepository) ListRiverReadings(ctx context.Context, filter RangeFilter) ([]models.RiverReading, error) {
	t, _ := TableFor(aggregation.SeriesRiverLevel)
	query, args := buildListQuery(t, []string{"id", "data_hora", "chuva", "nivel", "visibilidade"}, filter)

	var rows []models.RiverReading
	if err := r.db.SelectContext(ctx, "list_river", &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list river readings: %w", err)
	}
	return rows, nil
}

// ListFireHotspots lists FIRMS detections
func (r *seriesRepository) ListFireHotspots(ctx context.Context, filter RangeFilter) ([]models.FireHotspot, error) {
	t, _ := TableFor(aggregation.SeriesFire)
	query, args := buildListQuery(t, []string{"id", "latitude", "longitude", "acq_date", "acq_time", "satelite", "confianca"}, filter)

	var rows []models.FireHotspot
	if err := r.db.SelectContext(ctx, "list_fire", &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list fire hotspots: %w", err)
	}
	return rows, nil
}

// ListDeforestationAlerts lists deforestation alerts
func (r *seriesRepository) ListDeforestationAlerts(ctx context.Context, filter RangeFilter) ([]models.DeforestationAlert, error) {
	t, _ := TableFor(aggregation.SeriesDeforestation)
	query, args := buildListQuery(t, []string{"id", "data_deteccao", "area_ha", "fonte"}, filter)

	var rows []models.DeforestationAlert
	if err := r.db.SelectContext(ctx, "list_deforestation", &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list deforestation alerts: %w", err)
	}
	return rows, nil
}

// ListSampleValues lists (timestamp, sampled value) pairs in [from, to)
func (r *seriesRepository) ListSampleValues(ctx context.Context, series string, from, to time.Time) ([]models.SampleValue, error) {
	t, err := r.table(series)
	if err != nil {
		return nil, err
	}
	if t.SampleColumn == "" {
		return nil, fmt.Errorf("series %s has no sampled column", series)
	}

	var values []models.SampleValue
	if err := r.db.SelectContext(ctx, "list_samples", &values, buildSampleQuery(t), from, to); err != nil {
		return nil, fmt.Errorf("failed to list samples: %w", err)
	}
	return values, nil
}

// LatestTimestamp returns the newest timestamp of a series, nil when empty
func (r *seriesRepository) LatestTimestamp(ctx context.Context, series string) (any, error) {
	t, err := r.table(series)
	if err != nil {
		return nil, err
	}

	var latest any
	if err := r.db.GetContext(ctx, "latest_timestamp", &latest, buildLatestQuery(t)); err != nil {
		return nil, fmt.Errorf("failed to get latest timestamp: %w", err)
	}
	return latest, nil
}

// InsertRows bulk inserts rows in a single transaction using COPY
func (r *seriesRepository) InsertRows(ctx context.Context, series string, rows []models.ImportRow) error {
	if len(rows) == 0 {
		return nil
	}

	t, err := r.table(series)
	if err != nil {
		return err
	}

	timer := time.Now()
	defer func() {
		duration := time.Since(timer)
		r.metrics.IngestionBatchSize.Observe(float64(len(rows)))
		r.logger.Debug(ctx, "[REPO_BATCH_INSERT] Batch insert completed", logging.Fields{
			"series":      series,
			"count":       len(rows),
			"duration_ms": duration.Milliseconds(),
		})
	}()

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	cols := t.ColumnNames()
	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(t.Name, cols...))
	if err != nil {
		return fmt.Errorf("failed to prepare copy: %w", err)
	}
	defer stmt.Close()

	values := make([]interface{}, len(cols))
	for _, row := range rows {
		for i, c := range cols {
			values[i] = row[c]
		}
		if _, err := stmt.ExecContext(ctx, values...); err != nil {
			r.metrics.RecordDBError("copy_error")
			return fmt.Errorf("failed to copy row: %w", err)
		}
	}

	// flush buffered rows
	if _, err := stmt.ExecContext(ctx); err != nil {
		r.metrics.RecordDBError("copy_error")
		return fmt.Errorf("failed to flush copy: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.metrics.IngestionRecordsTotal.WithLabelValues(series).Add(float64(len(rows)))

	return nil
}

// Analyze refreshes the planner statistics of a series table after a bulk load
func (r *seriesRepository) Analyze(ctx context.Context, series string) error {
	t, err := r.table(series)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, "analyze", buildAnalyzeQuery(t)); err != nil {
		return fmt.Errorf("failed to analyze %s: %w", t.Name, err)
	}
	return nil
}

// HealthCheck performs a repository health check
func (r *seriesRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) IsTransient() bool {
	return false
}
