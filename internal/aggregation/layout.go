package aggregation

// Category is one fixed bucket of a categorical field
type Category struct {
	Label string // value as written in the field data
	Key   string // output key
}

// Layout names the output keys of a series. Empty keys are not emitted.
type Layout struct {
	SumKey     string
	CounterKey string
	// SampleKey prefixes the derived keys: <prefix>Max, <prefix>Min, <prefix>Media
	SampleKey  string
	Categories []Category
}

// Keys lists every key a finalized month of this layout can carry, in output order
func (l Layout) Keys() []string {
	keys := make([]string, 0, 4+len(l.Categories))
	if l.SumKey != "" {
		keys = append(keys, l.SumKey)
	}
	if l.CounterKey != "" {
		keys = append(keys, l.CounterKey)
	}
	if l.SampleKey != "" {
		keys = append(keys, l.MaxKey(), l.MinKey(), l.MeanKey())
	}
	for _, c := range l.Categories {
		keys = append(keys, c.Key)
	}
	return keys
}

func (l Layout) MaxKey() string  { return l.SampleKey + "Max" }
func (l Layout) MinKey() string  { return l.SampleKey + "Min" }
func (l Layout) MeanKey() string { return l.SampleKey + "Media" }
