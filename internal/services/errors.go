package services

import "fmt"

// UnknownSeriesError is returned for a series id the dashboard does not serve
type UnknownSeriesError struct {
	Series string
}

func (e *UnknownSeriesError) Error() string {
	return fmt.Sprintf("unknown series: %s", e.Series)
}

func (e *UnknownSeriesError) IsTransient() bool {
	return false
}

// UnsupportedError is returned when an operation does not apply to a series
type UnsupportedError struct {
	Series    string
	Operation string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s is not available for series %s", e.Operation, e.Series)
}

func (e *UnsupportedError) IsTransient() bool {
	return false
}
