package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sala-situacao/internal/aggregation"
)

func TestTableFor_EverySeriesHasATable(t *testing.T) {
	for _, series := range aggregation.SeriesNames {
		table, ok := TableFor(series)
		require.True(t, ok, series)
		assert.NotEmpty(t, table.Name)
		assert.Contains(t, table.ColumnNames(), table.TimeColumn)
	}

	_, ok := TableFor("unknown")
	assert.False(t, ok)
}

func TestBuildListQuery(t *testing.T) {
	table, _ := TableFor(aggregation.SeriesTurbidity)
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC)

	tests := []struct {
		name     string
		filter   RangeFilter
		wantSQL  string
		wantArgs []interface{}
	}{
		{
			name:     "open",
			filter:   RangeFilter{},
			wantSQL:  "SELECT id, data_hora FROM estacao_deque_pedras WHERE 1=1 ORDER BY data_hora NULLS LAST, id",
			wantArgs: []interface{}{},
		},
		{
			name:     "start only",
			filter:   RangeFilter{Start: &start},
			wantSQL:  "SELECT id, data_hora FROM estacao_deque_pedras WHERE 1=1 AND data_hora >= $1 ORDER BY data_hora NULLS LAST, id",
			wantArgs: []interface{}{start},
		},
		{
			name:     "bounded",
			filter:   RangeFilter{Start: &start, End: &end},
			wantSQL:  "SELECT id, data_hora FROM estacao_deque_pedras WHERE 1=1 AND data_hora >= $1 AND data_hora <= $2 ORDER BY data_hora NULLS LAST, id",
			wantArgs: []interface{}{start, end},
		},
		{
			name:     "end only",
			filter:   RangeFilter{End: &end},
			wantSQL:  "SELECT id, data_hora FROM estacao_deque_pedras WHERE 1=1 AND data_hora <= $1 ORDER BY data_hora NULLS LAST, id",
			wantArgs: []interface{}{end},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := buildListQuery(table, []string{"id", "data_hora"}, tt.filter)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestBuildSampleAndLatestQueries(t *testing.T) {
	table, _ := TableFor(aggregation.SeriesRiverLevel)

	assert.Equal(t,
		"SELECT data_hora AS ts, nivel AS value FROM estacao_ponte_cure WHERE data_hora >= $1 AND data_hora < $2 ORDER BY data_hora",
		buildSampleQuery(table))
	assert.Equal(t, "SELECT MAX(data_hora) FROM estacao_ponte_cure", buildLatestQuery(table))
	assert.Equal(t, "ANALYZE estacao_ponte_cure", buildAnalyzeQuery(table))
}

func TestNotFoundError(t *testing.T) {
	err := &NotFoundError{Resource: "series", ID: "x"}
	assert.Equal(t, "series not found: x", err.Error())
	assert.False(t, err.IsTransient())
}
