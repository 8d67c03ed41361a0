package aggregation

import "time"

// accumulator is the mutable reduction target of one month
type accumulator struct {
	sum     float64
	counter int
	samples []float64
	counts  map[string]int
}

func newAccumulator(layout Layout) *accumulator {
	acc := &accumulator{}
	if len(layout.Categories) > 0 {
		acc.counts = make(map[string]int, len(layout.Categories))
		for _, c := range layout.Categories {
			acc.counts[c.Key] = 0
		}
	}
	return acc
}

// fold applies one record. Called only for records with a timestamp.
func (a *accumulator) fold(r Record) {
	a.counter++
	if r.Sum != nil {
		a.sum += *r.Sum
	}
	if r.Sample != nil {
		a.samples = append(a.samples, *r.Sample)
	}
	if r.Category != nil {
		if _, ok := a.counts[*r.Category]; ok {
			a.counts[*r.Category]++
		}
	}
}

// buckets maps a calendar year to its twelve month accumulators
type buckets struct {
	layout Layout
	years  map[int]*[12]*accumulator
}

func newBuckets(layout Layout) *buckets {
	return &buckets{
		layout: layout,
		years:  make(map[int]*[12]*accumulator),
	}
}

// slot returns the accumulator of t's month, allocating its year on first use.
func (b *buckets) slot(t time.Time) *accumulator {
	year := t.Year()
	months, ok := b.years[year]
	if !ok {
		months = new([12]*accumulator)
		for i := range months {
			months[i] = newAccumulator(b.layout)
		}
		b.years[year] = months
	}
	return months[int(t.Month())-1]
}
