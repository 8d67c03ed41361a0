package models

import (
	"fmt"
)

// Column values below are kept as the raw driver values (time.Time, []byte,
// string, float64, nil). Field data arrives with gaps and typos; coercion is
// owned by the aggregation normalizer, not by the scanner.

// TurbidityReading is a row of the Deque de Pedras station (rainfall + turbidity)
type TurbidityReading struct {
	ID        int64 `json:"id" db:"id"`
	Timestamp any   `json:"data_hora" db:"data_hora"`
	Rainfall  any   `json:"chuva" db:"chuva"`
	Turbidity any   `json:"turbidez" db:"turbidez"`
}

// RiverReading is a row of the Ponte do Cure station (rainfall + river level + visibility)
type RiverReading struct {
	ID         int64 `json:"id" db:"id"`
	Timestamp  any   `json:"data_hora" db:"data_hora"`
	Rainfall   any   `json:"chuva" db:"chuva"`
	Level      any   `json:"nivel" db:"nivel"`
	Visibility any   `json:"visibilidade" db:"visibilidade"`
}

// FireHotspot is a single FIRMS detection
type FireHotspot struct {
	ID              int64 `json:"id" db:"id"`
	Latitude        any   `json:"latitude" db:"latitude"`
	Longitude       any   `json:"longitude" db:"longitude"`
	AcquisitionDate any   `json:"acq_date" db:"acq_date"`
	AcquisitionTime any   `json:"acq_time" db:"acq_time"`
	Satellite       any   `json:"satelite" db:"satelite"`
	Confidence      any   `json:"confianca" db:"confianca"`
}

// DeforestationAlert is a single deforestation alert polygon summary
type DeforestationAlert struct {
	ID           int64 `json:"id" db:"id"`
	DetectedAt   any   `json:"data_deteccao" db:"data_deteccao"`
	AreaHectares any   `json:"area_ha" db:"area_ha"`
	Source       any   `json:"fonte" db:"fonte"`
}

// SampleValue is a (timestamp, value) pair used by the comparative endpoints
type SampleValue struct {
	Timestamp any `json:"timestamp" db:"ts"`
	Value     any `json:"value" db:"value"`
}

// ImportRow is one normalized CSV row ready for insertion, keyed by column name
type ImportRow map[string]any

// ImportRecord ties an import row to its position in the source file
type ImportRecord struct {
	Line int
	Row  ImportRow
}

// ValidationError represents a data validation error raised during ingestion
type ValidationError struct {
	Field   string
	Value   string
	Line    int
	Message string
}

func (e *ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}
