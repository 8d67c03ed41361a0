package services

import (
	"context"
	"fmt"

	"sala-situacao/internal/aggregation"
	"sala-situacao/internal/repository"
	"sala-situacao/pkg/logging"
	"sala-situacao/pkg/metrics"
)

// SeriesInfo describes a series to API clients
type SeriesInfo struct {
	ID         string   `json:"id"`
	Keys       []string `json:"keys"`
	Comparable bool     `json:"comparable"`
}

// AggregationService serves the monthly year→month summaries
type AggregationService struct {
	repo       repository.SeriesRepository
	normalizer aggregation.Normalizer
	logger     *logging.StructuredLogger
	metrics    *metrics.Collector
}

// NewAggregationService creates a new aggregation service
func NewAggregationService(repo repository.SeriesRepository, normalizer aggregation.Normalizer, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *AggregationService {
	return &AggregationService{
		repo:       repo,
		normalizer: normalizer,
		logger:     logger,
		metrics:    metricsCollector,
	}
}

// Series lists the served series
func (s *AggregationService) Series() []SeriesInfo {
	infos := make([]SeriesInfo, 0, len(aggregation.SeriesNames))
	for _, id := range aggregation.SeriesNames {
		layout, _ := aggregation.LayoutOf(id)
		table, _ := repository.TableFor(id)
		infos = append(infos, SeriesInfo{
			ID:         id,
			Keys:       layout.Keys(),
			Comparable: table.SampleColumn != "",
		})
	}
	return infos
}

// Monthly fetches a series and aggregates it by year and month
func (s *AggregationService) Monthly(ctx context.Context, series string, filter repository.RangeFilter) (*aggregation.Output, error) {
	ctx = logging.WithSeries(ctx, series)

	switch series {
	case aggregation.SeriesTurbidity:
		return monthly(ctx, s, aggregation.TurbidityAdapter, s.repo.ListTurbidityReadings, filter)
	case aggregation.SeriesRiverLevel:
		return monthly(ctx, s, aggregation.RiverLevelAdapter, s.repo.ListRiverReadings, filter)
	case aggregation.SeriesFire:
		return monthly(ctx, s, aggregation.FireAdapter, s.repo.ListFireHotspots, filter)
	case aggregation.SeriesDeforestation:
		return monthly(ctx, s, aggregation.DeforestationAdapter, s.repo.ListDeforestationAlerts, filter)
	}
	return nil, &UnknownSeriesError{Series: series}
}

type fetchFunc[R any] func(context.Context, repository.RangeFilter) ([]R, error)

func monthly[R any](ctx context.Context, s *AggregationService, adapter aggregation.Adapter[R], fetch fetchFunc[R], filter repository.RangeFilter) (*aggregation.Output, error) {
	rows, err := fetch(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", adapter.Name, err)
	}

	timer := s.metrics.NewTimer(s.metrics.AggregationDuration.WithLabelValues(adapter.Name))
	out := adapter.Aggregate(s.normalizer, rows)
	duration := timer.ObserveDuration()

	s.metrics.RecordAggregation(adapter.Name, out.Folded, out.SkippedTimestamp, out.UnmatchedCategory)

	fields := logging.Fields{
		"rows":               len(rows),
		"years":              len(out.Years),
		"folded":             out.Folded,
		"skipped_timestamp":  out.SkippedTimestamp,
		"unmatched_category": out.UnmatchedCategory,
		"duration_us":        duration.Microseconds(),
	}
	if out.SkippedTimestamp > 0 || out.UnmatchedCategory > 0 {
		s.logger.Warn(ctx, "[AGG_DATA_GAPS] Records excluded from aggregation", fields)
	} else {
		s.logger.Debug(ctx, "[AGG_COMPLETE] Series aggregated", fields)
	}

	return out, nil
}
