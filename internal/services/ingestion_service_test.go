package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"sala-situacao/internal/aggregation"
	"sala-situacao/internal/models"
	"sala-situacao/pkg/logging"
)

func newIngestionService(repo *mockRepository) *IngestionService {
	logger, collector := testDeps()
	return NewIngestionService(repo, aggregation.NewNormalizer(time.UTC), logger, collector)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const riverCSV = "\ufeffData;Chuva mm;Nivel_rio;Visibilidade\n" +
	"02/03/2024 08:00;1,5;2,10;Turvo\n" +
	"03/03/2024 08:00;;2,30;cristalino\n" +
	";0;1;turvo\n" +
	"04/03/2024 08:00;abc;1;turvo\n" +
	"\n" +
	"05/03/2024 08:00;0;;muito turvo\n"

func TestIngestionService_IngestFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "ponte.csv", riverCSV)

	repo := &mockRepository{}
	var batches [][]models.ImportRow
	repo.On("InsertRows", mock.Anything, aggregation.SeriesRiverLevel, mock.Anything).
		Run(func(args mock.Arguments) {
			batches = append(batches, args.Get(2).([]models.ImportRow))
		}).
		Return(nil)

	result, err := newIngestionService(repo).IngestFile(context.Background(), aggregation.SeriesRiverLevel, path, 2)
	require.NoError(t, err)

	assert.Equal(t, 5, result.TotalRecords)
	assert.Equal(t, 3, result.SuccessfulRecords)
	assert.Equal(t, 2, result.FailedRecords)
	require.Len(t, result.Rejected, 2)
	assert.Equal(t, "data_hora", result.Rejected[0].Field)
	assert.Equal(t, 4, result.Rejected[0].Line)
	assert.Equal(t, "chuva", result.Rejected[1].Field)
	assert.Equal(t, "abc", result.Rejected[1].Value)

	require.Len(t, batches, 2)
	assert.Len(t, batches[0], 2)
	assert.Len(t, batches[1], 1)

	first := batches[0][0]
	assert.True(t, time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC).Equal(first["data_hora"].(time.Time)))
	assert.Equal(t, 1.5, first["chuva"])
	assert.Equal(t, 2.1, first["nivel"])
	assert.Equal(t, "Turvo", first["visibilidade"])

	assert.Nil(t, batches[0][1]["chuva"])
	assert.Nil(t, batches[1][0]["nivel"])
}

func TestIngestionService_IngestFile_MissingTimeColumn(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.csv", "chuva,turbidez\n1,2\n")

	_, err := newIngestionService(&mockRepository{}).IngestFile(context.Background(), aggregation.SeriesTurbidity, path, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data_hora")
}

func TestIngestionService_IngestFile_InsertError(t *testing.T) {
	path := writeFile(t, t.TempDir(), "fire.csv", "latitude,longitude,acq_date,acq_time,satellite,confidence\n-15.1,-56.2,2024-08-10,0312,N,nominal\n")

	repo := &mockRepository{}
	boom := errors.New("copy failed")
	repo.On("InsertRows", mock.Anything, aggregation.SeriesFire, mock.Anything).Return(boom)

	_, err := newIngestionService(repo).IngestFile(context.Background(), aggregation.SeriesFire, path, 10)
	assert.ErrorIs(t, err, boom)
}

func TestIngestionService_IngestFile_InvalidArguments(t *testing.T) {
	svc := newIngestionService(&mockRepository{})

	_, err := svc.IngestFile(context.Background(), aggregation.SeriesFire, "x.csv", 0)
	assert.Error(t, err)

	_, err = svc.IngestFile(context.Background(), "nope", "x.csv", 10)
	var unknown *UnknownSeriesError
	assert.ErrorAs(t, err, &unknown)
}

func TestIngestionService_IngestDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "2023.csv", "data_deteccao,area_ha,fonte\n2023-05-01,10.5,DETER\n2023-05-02,4,DETER\n")
	writeFile(t, dir, "2024.csv", "detected_at,area,source\n2024-01-10,1.25,MapBiomas\n")
	writeFile(t, dir, "empty.csv", "")
	writeFile(t, dir, "notes.txt", "ignored")

	repo := &mockRepository{}
	repo.On("InsertRows", mock.Anything, aggregation.SeriesDeforestation, mock.Anything).Return(nil)
	repo.On("Analyze", mock.Anything, aggregation.SeriesDeforestation).Return(nil)

	result, err := newIngestionService(repo).IngestDirectory(context.Background(), aggregation.SeriesDeforestation, dir, 100)
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalFiles)
	assert.Equal(t, 3, result.TotalRecords)
	assert.Equal(t, 3, result.SuccessfulRecords)
	assert.Len(t, result.Files, 2)
	assert.Len(t, result.Errors, 1)
	repo.AssertNumberOfCalls(t, "InsertRows", 2)
	repo.AssertNumberOfCalls(t, "Analyze", 1)
}

func TestIngestionService_IngestDirectory_Analyze(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		analyzeErr error
		wantCalls  int
	}{
		{"stored rows", "data_deteccao,area_ha\n2024-01-10,2\n", nil, 1},
		{"analyze failure is not fatal", "data_deteccao,area_ha\n2024-01-10,2\n", errors.New("permission denied"), 1},
		{"nothing stored", "data_deteccao,area_ha\n,2\n", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, "alerts.csv", tt.content)

			repo := &mockRepository{}
			repo.On("InsertRows", mock.Anything, aggregation.SeriesDeforestation, mock.Anything).Return(nil)
			repo.On("Analyze", mock.Anything, aggregation.SeriesDeforestation).Return(tt.analyzeErr)

			result, err := newIngestionService(repo).IngestDirectory(context.Background(), aggregation.SeriesDeforestation, dir, 10)
			require.NoError(t, err)
			assert.Empty(t, result.Errors)
			repo.AssertNumberOfCalls(t, "Analyze", tt.wantCalls)
		})
	}
}

func TestIngestionService_RefreshStatistics(t *testing.T) {
	repo := &mockRepository{}
	boom := errors.New("permission denied")
	repo.On("Analyze", mock.Anything, aggregation.SeriesFire).Return(boom)

	err := newIngestionService(repo).RefreshStatistics(context.Background(), aggregation.SeriesFire)
	assert.ErrorIs(t, err, boom)
}

func TestIngestionService_IngestFile_LogsCarryFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "ponte.csv", riverCSV)

	var buf bytes.Buffer
	logger := logging.NewStructuredLogger("test", "1.0.0", logging.DebugLevel)
	logger.SetOutput(&buf)
	_, collector := testDeps()

	repo := &mockRepository{}
	repo.On("InsertRows", mock.Anything, aggregation.SeriesRiverLevel, mock.Anything).Return(nil)

	svc := NewIngestionService(repo, aggregation.NewNormalizer(time.UTC), logger, collector)
	_, err := svc.IngestFile(context.Background(), aggregation.SeriesRiverLevel, path, 2)
	require.NoError(t, err)

	messages := map[string]logging.LogEntry{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var e logging.LogEntry
		require.NoError(t, json.Unmarshal([]byte(line), &e))
		assert.Equal(t, path, e.Fields["file_path"], e.Message)
		assert.Equal(t, aggregation.SeriesRiverLevel, e.Fields["series"], e.Message)
		messages[e.Message] = e
	}

	require.Contains(t, messages, "[INGEST_FILE_REJECTED] Rows failed validation")
	assert.Equal(t, "WARN", messages["[INGEST_FILE_REJECTED] Rows failed validation"].Level)
	assert.Equal(t, 2.0, messages["[INGEST_FILE_REJECTED] Rows failed validation"].Fields["failed_records"])
	assert.Contains(t, messages, "[INGEST_BATCH] Batch stored")
	assert.Contains(t, messages, "[INGEST_FILE_SUCCESS] File ingested successfully")
}

func TestIngestionService_IngestDirectory_NoFiles(t *testing.T) {
	_, err := newIngestionService(&mockRepository{}).IngestDirectory(context.Background(), aggregation.SeriesFire, t.TempDir(), 10)
	assert.Error(t, err)
}

func TestIngestionService_PreviewFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "ponte.csv", riverCSV)
	repo := &mockRepository{}

	preview, err := newIngestionService(repo).PreviewFile(aggregation.SeriesRiverLevel, path)
	require.NoError(t, err)
	repo.AssertNotCalled(t, "InsertRows", mock.Anything, mock.Anything, mock.Anything)

	assert.Equal(t, 3, preview.File.SuccessfulRecords)
	assert.Equal(t, 2, preview.File.FailedRecords)

	march := preview.Output.Years[2024][2]
	assert.InDelta(t, 1.5, march.Sum, 1e-9)
	assert.Equal(t, 3, march.Counter)
	require.NotNil(t, march.Stats)
	assert.InDelta(t, 2.3, march.Stats.Max, 1e-9)
	assert.Equal(t, 1, march.Counts["turvo"])
	assert.Equal(t, 1, march.Counts["cristalino"])
	assert.Equal(t, 1, march.Counts["muitoTurvo"])
}

func TestHeaderKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Data", "data"},
		{"  Chuva   mm ", "chuva_mm"},
		{"NIVEL_RIO", "nivel_rio"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, headerKey(tt.in))
		})
	}
}
