package services

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sala-situacao/internal/aggregation"
	"sala-situacao/internal/models"
	"sala-situacao/internal/repository"
	"sala-situacao/pkg/logging"
	"sala-situacao/pkg/metrics"
)

const (
	utf8BOM       = "\ufeff"
	maxFileErrors = 20
)

// IngestionService imports field data exports (CSV) into the series tables
type IngestionService struct {
	repo       repository.SeriesRepository
	normalizer aggregation.Normalizer
	logger     *logging.StructuredLogger
	metrics    *metrics.Collector
}

// IngestionResult contains ingestion statistics
type IngestionResult struct {
	TotalFiles        int
	TotalRecords      int
	SuccessfulRecords int
	FailedRecords     int
	Duration          time.Duration
	Files             []*FileIngestionResult
	Errors            []string
}

// FileIngestionResult contains per-file ingestion statistics
type FileIngestionResult struct {
	File              string
	TotalRecords      int
	SuccessfulRecords int
	FailedRecords     int
	// Rejected holds the first rejected rows of the file
	Rejected []*models.ValidationError
}

// PreviewResult is the in-memory aggregation of a file that was not imported
type PreviewResult struct {
	File   *FileIngestionResult
	Output *aggregation.Output
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(repo repository.SeriesRepository, normalizer aggregation.Normalizer, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *IngestionService {
	return &IngestionService{
		repo:       repo,
		normalizer: normalizer,
		logger:     logger,
		metrics:    metricsCollector,
	}
}

// IngestDirectory ingests every CSV file of dir into series
func (s *IngestionService) IngestDirectory(ctx context.Context, series, dataDir string, batchSize int) (*IngestionResult, error) {
	startTime := time.Now()
	ctx = logging.WithSeries(ctx, series)

	s.logger.Info(ctx, "[INGEST_START] Starting data ingestion", logging.Fields{
		"data_dir":   dataDir,
		"batch_size": batchSize,
		"stage":      "INITIALIZATION",
	})

	files, err := filepath.Glob(filepath.Join(dataDir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no data files found in %s", dataDir)
	}

	result := &IngestionResult{
		TotalFiles: len(files),
		Errors:     make([]string, 0),
	}

	s.logger.Info(ctx, "[INGEST_FILES] Found data files", logging.Fields{
		"file_count": len(files),
		"stage":      "FILE_DISCOVERY",
	})

	for _, filePath := range files {
		fileResult, err := s.IngestFile(ctx, series, filePath, batchSize)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to ingest %s: %v", filePath, err))
			s.logger.Error(ctx, "[INGEST_FILE_ERROR] File ingestion failed", logging.Fields{
				"file_path": filePath,
				"stage":     "FILE_PROCESSING",
			}, err)
			s.metrics.RecordIngestionError("file_error")
			continue
		}

		result.Files = append(result.Files, fileResult)
		result.TotalRecords += fileResult.TotalRecords
		result.SuccessfulRecords += fileResult.SuccessfulRecords
		result.FailedRecords += fileResult.FailedRecords
	}

	if result.SuccessfulRecords > 0 {
		if err := s.RefreshStatistics(ctx, series); err != nil {
			s.logger.Warn(ctx, "[INGEST_ANALYZE_ERROR] Failed to refresh table statistics", logging.Fields{
				"error": err.Error(),
				"stage": "ANALYZE",
			})
		}
	}

	result.Duration = time.Since(startTime)
	s.metrics.IngestionDuration.Observe(result.Duration.Seconds())

	s.logger.Info(ctx, "[INGEST_COMPLETE] Data ingestion completed", logging.Fields{
		"total_files":        result.TotalFiles,
		"total_records":      result.TotalRecords,
		"successful_records": result.SuccessfulRecords,
		"failed_records":     result.FailedRecords,
		"duration_seconds":   result.Duration.Seconds(),
		"error_count":        len(result.Errors),
		"stage":              "COMPLETE",
	})

	return result, nil
}

// IngestFile imports one CSV file in batches of batchSize rows.
// Rows that fail validation are counted and skipped.
func (s *IngestionService) IngestFile(ctx context.Context, series, filePath string, batchSize int) (*FileIngestionResult, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	ctx = logging.WithSeries(ctx, series)

	table, ok := repository.TableFor(series)
	if !ok {
		return nil, &UnknownSeriesError{Series: series}
	}

	fileLog := s.logger.WithFields(logging.Fields{
		"file_path": filePath,
		"series":    series,
	})

	records, result, err := s.readFile(table, filePath)
	if err != nil {
		return nil, err
	}
	if result.FailedRecords > 0 {
		fileLog.Warn(ctx, "[INGEST_FILE_REJECTED] Rows failed validation", logging.Fields{
			"failed_records": result.FailedRecords,
			"first_error":    result.Rejected[0].Error(),
			"stage":          "VALIDATION",
		})
	}

	batch := make([]models.ImportRow, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.repo.InsertRows(ctx, series, batch); err != nil {
			s.metrics.RecordIngestionError("insert_error")
			fileLog.Error(ctx, "[INGEST_BATCH_ERROR] Batch insert failed", logging.Fields{
				"batch_size":     len(batch),
				"already_stored": result.SuccessfulRecords,
				"stage":          "INSERT",
			}, err)
			return fmt.Errorf("failed to insert batch: %w", err)
		}
		result.SuccessfulRecords += len(batch)
		fileLog.Debug(ctx, "[INGEST_BATCH] Batch stored", logging.Fields{
			"batch_size": len(batch),
			"stored":     result.SuccessfulRecords,
		})
		batch = batch[:0]
		return nil
	}

	for _, rec := range records {
		batch = append(batch, rec.Row)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}

	fileLog.Info(ctx, "[INGEST_FILE_SUCCESS] File ingested successfully", logging.Fields{
		"total_records":      result.TotalRecords,
		"successful_records": result.SuccessfulRecords,
		"failed_records":     result.FailedRecords,
		"stage":              "FILE_COMPLETE",
	})

	return result, nil
}

// RefreshStatistics analyzes the series table so the query planner sees
// freshly loaded rows
func (s *IngestionService) RefreshStatistics(ctx context.Context, series string) error {
	if err := s.repo.Analyze(ctx, series); err != nil {
		s.metrics.RecordIngestionError("analyze_error")
		return err
	}
	return nil
}

// PreviewFile parses a CSV file and aggregates it without touching the database
func (s *IngestionService) PreviewFile(series, filePath string) (*PreviewResult, error) {
	table, ok := repository.TableFor(series)
	if !ok {
		return nil, &UnknownSeriesError{Series: series}
	}

	records, result, err := s.readFile(table, filePath)
	if err != nil {
		return nil, err
	}
	result.SuccessfulRecords = len(records)

	rows := make([]models.ImportRow, len(records))
	for i, rec := range records {
		rows[i] = rec.Row
	}

	var out *aggregation.Output
	switch series {
	case aggregation.SeriesTurbidity:
		out = aggregation.TurbidityAdapter.Aggregate(s.normalizer, convertRows(rows, func(r models.ImportRow) models.TurbidityReading {
			return models.TurbidityReading{Timestamp: r["data_hora"], Rainfall: r["chuva"], Turbidity: r["turbidez"]}
		}))
	case aggregation.SeriesRiverLevel:
		out = aggregation.RiverLevelAdapter.Aggregate(s.normalizer, convertRows(rows, func(r models.ImportRow) models.RiverReading {
			return models.RiverReading{Timestamp: r["data_hora"], Rainfall: r["chuva"], Level: r["nivel"], Visibility: r["visibilidade"]}
		}))
	case aggregation.SeriesFire:
		out = aggregation.FireAdapter.Aggregate(s.normalizer, convertRows(rows, func(r models.ImportRow) models.FireHotspot {
			return models.FireHotspot{
				Latitude:        r["latitude"],
				Longitude:       r["longitude"],
				AcquisitionDate: r["acq_date"],
				AcquisitionTime: r["acq_time"],
				Satellite:       r["satelite"],
				Confidence:      r["confianca"],
			}
		}))
	case aggregation.SeriesDeforestation:
		out = aggregation.DeforestationAdapter.Aggregate(s.normalizer, convertRows(rows, func(r models.ImportRow) models.DeforestationAlert {
			return models.DeforestationAlert{DetectedAt: r["data_deteccao"], AreaHectares: r["area_ha"], Source: r["fonte"]}
		}))
	default:
		return nil, &UnknownSeriesError{Series: series}
	}

	return &PreviewResult{File: result, Output: out}, nil
}

func convertRows[R any](rows []models.ImportRow, fn func(models.ImportRow) R) []R {
	out := make([]R, len(rows))
	for i, r := range rows {
		out[i] = fn(r)
	}
	return out
}

// readFile parses every data row of filePath, returning the valid ones
func (s *IngestionService) readFile(table repository.Table, filePath string) ([]models.ImportRecord, *FileIngestionResult, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	reader, header, err := newCSVReader(file)
	if err != nil {
		return nil, nil, err
	}

	index, err := mapHeader(table, header)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", filepath.Base(filePath), err)
	}

	result := &FileIngestionResult{File: filePath}
	var records []models.ImportRecord

	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				result.TotalRecords++
				s.reject(result, &models.ValidationError{Line: parseErr.Line, Message: parseErr.Err.Error()}, "parse_error")
				continue
			}
			return nil, nil, fmt.Errorf("error reading file: %w", err)
		}
		if blank(fields) {
			continue
		}
		line, _ := reader.FieldPos(0)

		result.TotalRecords++
		row, verr := s.parseRow(table, index, fields, line)
		if verr != nil {
			s.reject(result, verr, "validation_error")
			continue
		}
		records = append(records, models.ImportRecord{Line: line, Row: row})
	}

	return records, result, nil
}

func (s *IngestionService) reject(result *FileIngestionResult, verr *models.ValidationError, kind string) {
	result.FailedRecords++
	s.metrics.RecordIngestionError(kind)
	if len(result.Rejected) < maxFileErrors {
		result.Rejected = append(result.Rejected, verr)
	}
}

// parseRow coerces each mapped cell to its column kind. Empty cells are
// stored as NULL, except the time column which is required.
func (s *IngestionService) parseRow(table repository.Table, index map[string]int, fields []string, line int) (models.ImportRow, *models.ValidationError) {
	row := make(models.ImportRow, len(table.Columns))

	for _, col := range table.Columns {
		row[col.Name] = nil

		i, ok := index[col.Name]
		if !ok || i >= len(fields) {
			continue
		}
		cell := strings.TrimSpace(fields[i])
		if cell == "" {
			continue
		}

		switch col.Kind {
		case repository.KindTime:
			ts := s.normalizer.ParseTimestamp(cell)
			if ts == nil {
				return nil, &models.ValidationError{Field: col.Name, Value: cell, Line: line, Message: fmt.Sprintf("invalid timestamp in %s: %q", col.Name, cell)}
			}
			row[col.Name] = *ts
		case repository.KindNumber:
			n := aggregation.Number(cell)
			if n == nil {
				return nil, &models.ValidationError{Field: col.Name, Value: cell, Line: line, Message: fmt.Sprintf("invalid number in %s: %q", col.Name, cell)}
			}
			row[col.Name] = *n
		default:
			row[col.Name] = cell
		}
	}

	if row[table.TimeColumn] == nil {
		return nil, &models.ValidationError{Field: table.TimeColumn, Line: line, Message: fmt.Sprintf("missing %s", table.TimeColumn)}
	}
	return row, nil
}

// newCSVReader reads the header line and picks ';' or ',' as delimiter,
// whichever occurs more often in it.
func newCSVReader(r io.Reader) (*csv.Reader, []string, error) {
	br := bufio.NewReader(r)
	first, err := br.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("failed to read header: %w", err)
	}
	first = strings.TrimPrefix(first, utf8BOM)
	if strings.TrimSpace(first) == "" {
		return nil, nil, errors.New("empty file")
	}

	reader := csv.NewReader(io.MultiReader(strings.NewReader(first), br))
	if strings.Count(first, ";") > strings.Count(first, ",") {
		reader.Comma = ';'
	}
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse header: %w", err)
	}
	return reader, header, nil
}

// mapHeader resolves each table column to a CSV field index by name or alias
func mapHeader(table repository.Table, header []string) (map[string]int, error) {
	positions := make(map[string]int, len(header))
	for i, h := range header {
		key := headerKey(h)
		if _, seen := positions[key]; !seen {
			positions[key] = i
		}
	}

	index := make(map[string]int, len(table.Columns))
	for _, col := range table.Columns {
		for _, name := range append([]string{col.Name}, col.Aliases...) {
			if i, ok := positions[headerKey(name)]; ok {
				index[col.Name] = i
				break
			}
		}
	}

	if _, ok := index[table.TimeColumn]; !ok {
		return nil, fmt.Errorf("header has no %s column", table.TimeColumn)
	}
	return index, nil
}

func headerKey(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.Join(strings.Fields(h), "_")
}

func blank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
