package aggregation

import (
	"encoding/json"
	"math"
	"time"

	"github.com/montanaflynn/stats"

	"sala-situacao/internal/models"
)

const dateLayout = "2006-01-02"

// DateRange is an inclusive range of calendar dates
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t's calendar date lies within the range
func (r DateRange) Contains(t time.Time) bool {
	d := civil(t)
	return !d.Before(civil(r.Start)) && !d.After(civil(r.End))
}

func (r DateRange) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Start string `json:"start"`
		End   string `json:"end"`
	}{r.Start.Format(dateLayout), r.End.Format(dateLayout)})
}

// civil drops the time of day, keeping the calendar date as seen in t's location
func civil(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Today truncates now to a calendar date in the normalizer location
func (n Normalizer) Today(now time.Time) time.Time {
	local := now.In(n.location())
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, n.location())
}

// Windows returns the current month-to-date window and the same window one year earlier.
func (n Normalizer) Windows(now time.Time) (current, prior DateRange) {
	today := n.Today(now)
	loc := n.location()

	current = DateRange{
		Start: time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, loc),
		End:   today,
	}

	year := today.Year() - 1
	day := today.Day()
	if last := daysIn(year, today.Month()); day > last {
		day = last
	}
	prior = DateRange{
		Start: time.Date(year, today.Month(), 1, 0, 0, 0, 0, loc),
		End:   time.Date(year, today.Month(), day, 0, 0, 0, 0, loc),
	}
	return current, prior
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// SampleRecords normalizes (timestamp, value) pairs
func (n Normalizer) SampleRecords(values []models.SampleValue) []Record {
	records := make([]Record, 0, len(values))
	for _, v := range values {
		records = append(records, Record{
			Timestamp: n.ParseTimestamp(v.Timestamp),
			Sample:    Number(v.Value),
		})
	}
	return records
}

// MeanInRange averages the non-null samples dated within r. Nil when there are none.
func MeanInRange(records []Record, r DateRange) *float64 {
	var samples stats.Float64Data
	for _, rec := range records {
		if rec.Timestamp == nil || rec.Sample == nil {
			continue
		}
		if r.Contains(*rec.Timestamp) {
			samples = append(samples, *rec.Sample)
		}
	}

	if len(samples) == 0 {
		return nil
	}
	mean, err := samples.Mean()
	if err != nil || math.IsNaN(mean) || math.IsInf(mean, 0) {
		return nil
	}
	return &mean
}

// DeltaPct is the signed percentage change from prior to current.
// Nil unless both means exist and prior is finite and non-zero.
func DeltaPct(current, prior *float64) *float64 {
	if current == nil || prior == nil {
		return nil
	}
	if *prior == 0 || math.IsNaN(*prior) || math.IsInf(*prior, 0) {
		return nil
	}

	delta := (*current - *prior) / *prior * 100
	if math.IsNaN(delta) || math.IsInf(delta, 0) {
		return nil
	}
	return &delta
}

// Staleness describes how old the newest record of a series is
type Staleness struct {
	IsStale   bool    `json:"isStale"`
	LastDate  *string `json:"lastDate"`
	DaysStale *int    `json:"daysStale"`
}

// StalenessOf compares the calendar date of latest with today's date.
// Fresh exactly when they are the same date.
func (n Normalizer) StalenessOf(latest *time.Time, now time.Time) Staleness {
	if latest == nil {
		return Staleness{IsStale: true}
	}

	loc := n.location()
	last := civil(latest.In(loc))
	today := civil(now.In(loc))

	date := last.Format(dateLayout)
	days := int(today.Sub(last).Hours() / 24)

	return Staleness{
		IsStale:   !last.Equal(today),
		LastDate:  &date,
		DaysStale: &days,
	}
}

// Comparison is the month-to-date versus prior-year report of one field
type Comparison struct {
	Series      string     `json:"series"`
	Field       string     `json:"field"`
	Current     DateRange  `json:"current"`
	Prior       DateRange  `json:"prior"`
	MeanCurrent *float64   `json:"meanCurrent"`
	MeanPrior   *float64   `json:"meanPrior"`
	DeltaPct    *float64   `json:"deltaPct"`
	Staleness   *Staleness `json:"staleness,omitempty"`
}

// Compare averages each window and derives the delta. latest may be nil.
func (n Normalizer) Compare(records []Record, latest *time.Time, now time.Time) Comparison {
	current, prior := n.Windows(now)

	c := Comparison{
		Current:     current,
		Prior:       prior,
		MeanCurrent: MeanInRange(records, current),
		MeanPrior:   MeanInRange(records, prior),
	}
	c.DeltaPct = DeltaPct(c.MeanCurrent, c.MeanPrior)

	staleness := n.StalenessOf(latest, now)
	c.Staleness = &staleness

	return c
}
