package aggregation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/montanaflynn/stats"
)

// SampleStats are derived from a month's non-null samples
type SampleStats struct {
	Max  float64
	Min  float64
	Mean float64
}

// Month is the finalized output of one calendar month.
// Stats is nil when the month had no samples.
type Month struct {
	Sum     float64
	Counter int
	Stats   *SampleStats
	Counts  map[string]int
	layout  Layout
}

// Year holds twelve months, index 0 = January
type Year [12]Month

// Result maps a calendar year to its months
type Result map[int]*Year

func finalize(acc *accumulator, layout Layout) Month {
	m := Month{
		Sum:     clampFinite(acc.sum),
		Counter: acc.counter,
		layout:  layout,
	}

	if len(acc.counts) > 0 {
		m.Counts = make(map[string]int, len(acc.counts))
		for k, v := range acc.counts {
			m.Counts[k] = v
		}
	}

	if len(acc.samples) > 0 {
		m.Stats = summarize(acc.samples)
	}
	acc.samples = nil

	return m
}

func summarize(samples []float64) *SampleStats {
	data := stats.Float64Data(samples)

	hi, err := data.Max()
	if err != nil {
		return nil
	}
	lo, err := data.Min()
	if err != nil {
		return nil
	}
	mean, err := data.Mean()
	if err != nil {
		return nil
	}

	return &SampleStats{Max: hi, Min: lo, Mean: clampFinite(mean)}
}

// clampFinite saturates an overflowed total at the largest float64
func clampFinite(v float64) float64 {
	switch {
	case math.IsInf(v, 1):
		return math.MaxFloat64
	case math.IsInf(v, -1):
		return -math.MaxFloat64
	}
	return v
}

func (b *buckets) finalize() Result {
	out := make(Result, len(b.years))
	for year, months := range b.years {
		var y Year
		for i, acc := range months {
			y[i] = finalize(acc, b.layout)
		}
		out[year] = &y
	}
	return out
}

// Value returns the month's value for an output key, and whether it is present
func (m Month) Value(key string) (float64, bool) {
	l := m.layout
	switch {
	case key == "":
		return 0, false
	case key == l.SumKey:
		return m.Sum, true
	case key == l.CounterKey:
		return float64(m.Counter), true
	case l.SampleKey != "" && key == l.MaxKey():
		if m.Stats == nil {
			return 0, false
		}
		return m.Stats.Max, true
	case l.SampleKey != "" && key == l.MinKey():
		if m.Stats == nil {
			return 0, false
		}
		return m.Stats.Min, true
	case l.SampleKey != "" && key == l.MeanKey():
		if m.Stats == nil {
			return 0, false
		}
		return m.Stats.Mean, true
	}

	if v, ok := m.Counts[key]; ok {
		return float64(v), true
	}
	return 0, false
}

// Keys lists the keys present on this month, in output order
func (m Month) Keys() []string {
	all := m.layout.Keys()
	keys := all[:0:0]
	for _, k := range all {
		if _, ok := m.Value(k); ok {
			keys = append(keys, k)
		}
	}
	return keys
}

// MarshalJSON writes the layout keys in declared order. Sample-derived keys
// are omitted entirely when the month had no samples.
func (m Month) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, k := range m.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')

		v, _ := m.Value(k)
		if math.IsNaN(v) {
			return nil, fmt.Errorf("month value %s is not a number", k)
		}
		buf.WriteString(strconv.FormatFloat(clampFinite(v), 'f', -1, 64))
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}
