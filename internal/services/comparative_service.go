package services

import (
	"context"
	"fmt"
	"time"

	"sala-situacao/internal/aggregation"
	"sala-situacao/internal/repository"
	"sala-situacao/pkg/logging"
	"sala-situacao/pkg/metrics"
)

// ComparativeService compares the current month-to-date with the same
// window one year earlier
type ComparativeService struct {
	repo       repository.SeriesRepository
	normalizer aggregation.Normalizer
	logger     *logging.StructuredLogger
	metrics    *metrics.Collector
	now        func() time.Time
}

// NewComparativeService creates a new comparative service
func NewComparativeService(repo repository.SeriesRepository, normalizer aggregation.Normalizer, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *ComparativeService {
	return &ComparativeService{
		repo:       repo,
		normalizer: normalizer,
		logger:     logger,
		metrics:    metricsCollector,
		now:        time.Now,
	}
}

// Compare builds the comparison of the sampled field of series
func (s *ComparativeService) Compare(ctx context.Context, series string) (*aggregation.Comparison, error) {
	ctx = logging.WithSeries(ctx, series)

	table, ok := repository.TableFor(series)
	if !ok {
		return nil, &UnknownSeriesError{Series: series}
	}
	if table.SampleColumn == "" {
		return nil, &UnsupportedError{Series: series, Operation: "comparison"}
	}

	now := s.now()
	current, prior := s.normalizer.Windows(now)

	// End bounds are calendar dates, so query up to the following midnight
	priorValues, err := s.repo.ListSampleValues(ctx, series, prior.Start, prior.End.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prior window: %w", err)
	}
	currentValues, err := s.repo.ListSampleValues(ctx, series, current.Start, current.End.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch current window: %w", err)
	}

	latestRaw, err := s.repo.LatestTimestamp(ctx, series)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch latest timestamp: %w", err)
	}

	records := s.normalizer.SampleRecords(append(priorValues, currentValues...))
	comparison := s.normalizer.Compare(records, s.normalizer.ParseTimestamp(latestRaw), now)
	comparison.Series = series
	comparison.Field = table.SampleColumn

	s.logger.Debug(ctx, "[COMPARE_COMPLETE] Comparison built", logging.Fields{
		"field":          table.SampleColumn,
		"prior_count":    len(priorValues),
		"current_count":  len(currentValues),
		"is_stale":       comparison.Staleness.IsStale,
		"has_delta":      comparison.DeltaPct != nil,
		"current_window": current.Start.Format("2006-01-02"),
	})

	return &comparison, nil
}
