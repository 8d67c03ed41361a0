package repository

import (
	"fmt"
	"strings"
	"time"

	"sala-situacao/internal/aggregation"
)

// ColumnKind tells ingestion how to coerce a CSV cell
type ColumnKind int

const (
	KindText ColumnKind = iota
	KindNumber
	KindTime
)

// Column is an insertable column of a series table
type Column struct {
	Name string
	Kind ColumnKind
	// Aliases are alternative CSV header names
	Aliases []string
}

// Table describes where a series lives. Tables are created and migrated
// outside this service.
type Table struct {
	Name         string
	TimeColumn   string
	SampleColumn string // empty for series without a sampled value
	Columns      []Column
}

var tables = map[string]Table{
	aggregation.SeriesTurbidity: {
		Name:         "estacao_deque_pedras",
		TimeColumn:   "data_hora",
		SampleColumn: "turbidez",
		Columns: []Column{
			{Name: "data_hora", Kind: KindTime, Aliases: []string{"data", "date", "datetime"}},
			{Name: "chuva", Kind: KindNumber, Aliases: []string{"chuva_mm", "rainfall"}},
			{Name: "turbidez", Kind: KindNumber, Aliases: []string{"turbidez_ntu", "turbidity"}},
		},
	},
	aggregation.SeriesRiverLevel: {
		Name:         "estacao_ponte_cure",
		TimeColumn:   "data_hora",
		SampleColumn: "nivel",
		Columns: []Column{
			{Name: "data_hora", Kind: KindTime, Aliases: []string{"data", "date", "datetime"}},
			{Name: "chuva", Kind: KindNumber, Aliases: []string{"chuva_mm", "rainfall"}},
			{Name: "nivel", Kind: KindNumber, Aliases: []string{"nivel_rio", "nivel_m", "level"}},
			{Name: "visibilidade", Kind: KindText, Aliases: []string{"visibility"}},
		},
	},
	aggregation.SeriesFire: {
		Name:       "focos_calor",
		TimeColumn: "acq_date",
		Columns: []Column{
			{Name: "latitude", Kind: KindNumber},
			{Name: "longitude", Kind: KindNumber},
			{Name: "acq_date", Kind: KindTime},
			{Name: "acq_time", Kind: KindText},
			{Name: "satelite", Kind: KindText, Aliases: []string{"satellite"}},
			{Name: "confianca", Kind: KindText, Aliases: []string{"confidence"}},
		},
	},
	aggregation.SeriesDeforestation: {
		Name:       "alertas_desmatamento",
		TimeColumn: "data_deteccao",
		Columns: []Column{
			{Name: "data_deteccao", Kind: KindTime, Aliases: []string{"detectat", "detected_at", "data"}},
			{Name: "area_ha", Kind: KindNumber, Aliases: []string{"areaha", "area"}},
			{Name: "fonte", Kind: KindText, Aliases: []string{"source"}},
		},
	},
}

// TableFor returns the table of a series
func TableFor(series string) (Table, bool) {
	t, ok := tables[series]
	return t, ok
}

// ColumnNames lists the insertable column names in declared order
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// RangeFilter bounds a listing by the series timestamp. Both ends are inclusive.
type RangeFilter struct {
	Start *time.Time
	End   *time.Time
}

// buildListQuery selects cols from t, optionally bounded by filter.
// Rows without a timestamp are kept when the filter is open, so the
// aggregation can account for them.
func buildListQuery(t Table, cols []string, filter RangeFilter) (string, []interface{}) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE 1=1", strings.Join(cols, ", "), t.Name)
	args := []interface{}{}
	argNum := 1

	if filter.Start != nil {
		query += fmt.Sprintf(" AND %s >= $%d", t.TimeColumn, argNum)
		args = append(args, *filter.Start)
		argNum++
	}

	if filter.End != nil {
		query += fmt.Sprintf(" AND %s <= $%d", t.TimeColumn, argNum)
		args = append(args, *filter.End)
		argNum++
	}

	query += fmt.Sprintf(" ORDER BY %s NULLS LAST, id", t.TimeColumn)
	return query, args
}

// buildSampleQuery selects (timestamp, sample) pairs within [from, to)
func buildSampleQuery(t Table) string {
	return fmt.Sprintf(
		"SELECT %s AS ts, %s AS value FROM %s WHERE %s >= $1 AND %s < $2 ORDER BY %s",
		t.TimeColumn, t.SampleColumn, t.Name, t.TimeColumn, t.TimeColumn, t.TimeColumn,
	)
}

func buildLatestQuery(t Table) string {
	return fmt.Sprintf("SELECT MAX(%s) FROM %s", t.TimeColumn, t.Name)
}

func buildAnalyzeQuery(t Table) string {
	return "ANALYZE " + t.Name
}
