package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"sala-situacao/internal/aggregation"
	"sala-situacao/internal/models"
)

func newComparativeService(repo *mockRepository, now time.Time) *ComparativeService {
	logger, collector := testDeps()
	svc := NewComparativeService(repo, aggregation.NewNormalizer(time.UTC), logger, collector)
	svc.now = func() time.Time { return now }
	return svc
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestComparativeService_Compare(t *testing.T) {
	repo := &mockRepository{}
	now := time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)

	repo.On("ListSampleValues", mock.Anything, aggregation.SeriesRiverLevel, day(2023, 3, 1), day(2023, 3, 11)).Return([]models.SampleValue{
		{Timestamp: "2023-03-02 08:00:00", Value: 2.0},
		{Timestamp: "2023-03-09 08:00:00", Value: "2,0"},
	}, nil)
	repo.On("ListSampleValues", mock.Anything, aggregation.SeriesRiverLevel, day(2024, 3, 1), day(2024, 3, 11)).Return([]models.SampleValue{
		{Timestamp: time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC), Value: 2.5},
		{Timestamp: time.Date(2024, 3, 6, 8, 0, 0, 0, time.UTC), Value: nil},
	}, nil)
	repo.On("LatestTimestamp", mock.Anything, aggregation.SeriesRiverLevel).Return(time.Date(2024, 3, 6, 8, 0, 0, 0, time.UTC), nil)

	got, err := newComparativeService(repo, now).Compare(context.Background(), aggregation.SeriesRiverLevel)
	require.NoError(t, err)
	repo.AssertExpectations(t)

	assert.Equal(t, aggregation.SeriesRiverLevel, got.Series)
	assert.Equal(t, "nivel", got.Field)
	require.NotNil(t, got.MeanPrior)
	require.NotNil(t, got.MeanCurrent)
	assert.InDelta(t, 2.0, *got.MeanPrior, 1e-9)
	assert.InDelta(t, 2.5, *got.MeanCurrent, 1e-9)
	require.NotNil(t, got.DeltaPct)
	assert.InDelta(t, 25.0, *got.DeltaPct, 1e-9)

	require.NotNil(t, got.Staleness)
	assert.True(t, got.Staleness.IsStale)
	assert.Equal(t, "2024-03-06", *got.Staleness.LastDate)
	assert.Equal(t, 4, *got.Staleness.DaysStale)
}

func TestComparativeService_EmptySeries(t *testing.T) {
	repo := &mockRepository{}
	now := time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)

	repo.On("ListSampleValues", mock.Anything, aggregation.SeriesTurbidity, mock.Anything, mock.Anything).Return([]models.SampleValue{}, nil)
	repo.On("LatestTimestamp", mock.Anything, aggregation.SeriesTurbidity).Return(nil, nil)

	got, err := newComparativeService(repo, now).Compare(context.Background(), aggregation.SeriesTurbidity)
	require.NoError(t, err)

	assert.Equal(t, "turbidez", got.Field)
	assert.Nil(t, got.MeanCurrent)
	assert.Nil(t, got.MeanPrior)
	assert.Nil(t, got.DeltaPct)
	assert.True(t, got.Staleness.IsStale)
	assert.Nil(t, got.Staleness.LastDate)
	assert.Nil(t, got.Staleness.DaysStale)
}

func TestComparativeService_LeapDay(t *testing.T) {
	repo := &mockRepository{}
	now := time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC)

	repo.On("ListSampleValues", mock.Anything, aggregation.SeriesTurbidity, day(2023, 2, 1), day(2023, 3, 1)).Return([]models.SampleValue{}, nil)
	repo.On("ListSampleValues", mock.Anything, aggregation.SeriesTurbidity, day(2024, 2, 1), day(2024, 3, 1)).Return([]models.SampleValue{}, nil)
	repo.On("LatestTimestamp", mock.Anything, aggregation.SeriesTurbidity).Return("2024-02-29 06:00:00", nil)

	got, err := newComparativeService(repo, now).Compare(context.Background(), aggregation.SeriesTurbidity)
	require.NoError(t, err)
	repo.AssertExpectations(t)

	assert.Equal(t, day(2023, 2, 28), got.Prior.End)
	assert.False(t, got.Staleness.IsStale)
}

func TestComparativeService_Errors(t *testing.T) {
	svc := newComparativeService(&mockRepository{}, time.Now())

	_, err := svc.Compare(context.Background(), "nope")
	var unknown *UnknownSeriesError
	assert.ErrorAs(t, err, &unknown)

	_, err = svc.Compare(context.Background(), aggregation.SeriesFire)
	var unsupported *UnsupportedError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "comparison", unsupported.Operation)
}
