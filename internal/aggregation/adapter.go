package aggregation

// Output is the result of one aggregation run
type Output struct {
	Series            string `json:"series"`
	Years             Result `json:"years"`
	Folded            int    `json:"folded"`
	SkippedTimestamp  int    `json:"skippedTimestamp"`
	UnmatchedCategory int    `json:"unmatchedCategory"`
}

// Adapter binds a row type to a layout and a normalization policy
type Adapter[R any] struct {
	Name      string
	Layout    Layout
	Normalize func(Normalizer, R) Record

	// Categorized reports whether the raw row carried a categorical value,
	// so unmatched labels can be told apart from empty ones.
	Categorized func(R) bool
}

// Aggregate runs normalize, bucket, fold and finalize over rows.
// It owns its buckets exclusively and never mutates rows.
func (a Adapter[R]) Aggregate(n Normalizer, rows []R) *Output {
	b := newBuckets(a.Layout)
	out := &Output{Series: a.Name}

	for _, row := range rows {
		rec := a.Normalize(n, row)
		if rec.Timestamp == nil {
			out.SkippedTimestamp++
			continue
		}

		if rec.Category == nil && a.Categorized != nil && a.Categorized(row) {
			out.UnmatchedCategory++
		}

		b.slot(*rec.Timestamp).fold(rec)
		out.Folded++
	}

	out.Years = b.finalize()
	return out
}
