package services

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/xuri/excelize/v2"

	"sala-situacao/internal/aggregation"
	"sala-situacao/pkg/logging"
	"sala-situacao/pkg/metrics"
)

var monthNames = [12]string{"Jan", "Fev", "Mar", "Abr", "Mai", "Jun", "Jul", "Ago", "Set", "Out", "Nov", "Dez"}

const (
	monthHeader  = "Mes"
	defaultSheet = "Sheet1"
	emptySheet   = "Sem dados"
)

// ExportService renders monthly summaries as spreadsheets
type ExportService struct {
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewExportService creates a new export service
func NewExportService(logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *ExportService {
	return &ExportService{
		logger:  logger,
		metrics: metricsCollector,
	}
}

// WriteMonthlyXLSX writes one sheet per year, one row per month and one
// column per output key. Keys absent from a month are left blank.
func (s *ExportService) WriteMonthlyXLSX(ctx context.Context, w io.Writer, series string, output *aggregation.Output) error {
	layout, ok := aggregation.LayoutOf(series)
	if !ok {
		return &UnknownSeriesError{Series: series}
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	years := make([]int, 0, len(output.Years))
	for y := range output.Years {
		years = append(years, y)
	}
	sort.Ints(years)

	if len(years) == 0 {
		if err := f.SetSheetName(defaultSheet, emptySheet); err != nil {
			return fmt.Errorf("failed to name sheet: %w", err)
		}
		if err := writeHeader(f, emptySheet, layout.Keys(), headerStyle); err != nil {
			return err
		}
	}

	for i, year := range years {
		sheet := strconv.Itoa(year)
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, sheet); err != nil {
				return fmt.Errorf("failed to name sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
		}

		if err := writeYear(f, sheet, layout.Keys(), output.Years[year], headerStyle); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	s.metrics.ExportsTotal.WithLabelValues(series).Inc()
	s.logger.Info(ctx, "[EXPORT_COMPLETE] Workbook written", logging.Fields{
		"series": series,
		"sheets": len(years),
	})

	return nil
}

func writeHeader(f *excelize.File, sheet string, keys []string, style int) error {
	header := make([]interface{}, 0, len(keys)+1)
	header = append(header, monthHeader)
	for _, k := range keys {
		header = append(header, k)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, style)
}

func writeYear(f *excelize.File, sheet string, keys []string, year *aggregation.Year, style int) error {
	if err := writeHeader(f, sheet, keys, style); err != nil {
		return err
	}

	for m, month := range year {
		row := m + 2
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetCellStr(sheet, cell, monthNames[m]); err != nil {
			return fmt.Errorf("failed to write month: %w", err)
		}

		for c, key := range keys {
			v, ok := month.Value(key)
			if !ok {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(c+2, row)
			if err := f.SetCellFloat(sheet, cell, v, -1, 64); err != nil {
				return fmt.Errorf("failed to write %s: %w", key, err)
			}
		}
	}

	return nil
}
