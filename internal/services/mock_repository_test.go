package services

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"

	"sala-situacao/internal/models"
	"sala-situacao/internal/repository"
	"sala-situacao/pkg/logging"
	"sala-situacao/pkg/metrics"
)

type mockRepository struct {
	mock.Mock
}

var _ repository.SeriesRepository = (*mockRepository)(nil)

func (m *mockRepository) ListTurbidityReadings(ctx context.Context, filter repository.RangeFilter) ([]models.TurbidityReading, error) {
	args := m.Called(ctx, filter)
	rows, _ := args.Get(0).([]models.TurbidityReading)
	return rows, args.Error(1)
}

func (m *mockRepository) ListRiverReadings(ctx context.Context, filter repository.RangeFilter) ([]models.RiverReading, error) {
	args := m.Called(ctx, filter)
	rows, _ := args.Get(0).([]models.RiverReading)
	return rows, args.Error(1)
}

func (m *mockRepository) ListFireHotspots(ctx context.Context, filter repository.RangeFilter) ([]models.FireHotspot, error) {
	args := m.Called(ctx, filter)
	rows, _ := args.Get(0).([]models.FireHotspot)
	return rows, args.Error(1)
}

func (m *mockRepository) ListDeforestationAlerts(ctx context.Context, filter repository.RangeFilter) ([]models.DeforestationAlert, error) {
	args := m.Called(ctx, filter)
	rows, _ := args.Get(0).([]models.DeforestationAlert)
	return rows, args.Error(1)
}

func (m *mockRepository) ListSampleValues(ctx context.Context, series string, from, to time.Time) ([]models.SampleValue, error) {
	args := m.Called(ctx, series, from, to)
	rows, _ := args.Get(0).([]models.SampleValue)
	return rows, args.Error(1)
}

func (m *mockRepository) LatestTimestamp(ctx context.Context, series string) (any, error) {
	args := m.Called(ctx, series)
	return args.Get(0), args.Error(1)
}

func (m *mockRepository) InsertRows(ctx context.Context, series string, rows []models.ImportRow) error {
	// the caller reuses its batch buffer
	snapshot := append([]models.ImportRow(nil), rows...)
	return m.Called(ctx, series, snapshot).Error(0)
}

func (m *mockRepository) Analyze(ctx context.Context, series string) error {
	return m.Called(ctx, series).Error(0)
}

func (m *mockRepository) HealthCheck(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func testDeps() (*logging.StructuredLogger, *metrics.Collector) {
	return logging.NewNopLogger(), metrics.NewCollector("test", prometheus.NewRegistry())
}
