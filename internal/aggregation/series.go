package aggregation

import "sala-situacao/internal/models"

// Series identifiers as exposed by the API
const (
	SeriesTurbidity     = "deque-de-pedras"
	SeriesRiverLevel    = "ponte-do-cure"
	SeriesFire          = "focos-calor"
	SeriesDeforestation = "desmatamento"
)

// SeriesNames lists every series in display order
var SeriesNames = []string{
	SeriesTurbidity,
	SeriesRiverLevel,
	SeriesFire,
	SeriesDeforestation,
}

// VisibilityCategories are the water visibility classes recorded at Ponte do Cure
var VisibilityCategories = []Category{
	{Label: "cristalino", Key: "cristalino"},
	{Label: "turvo", Key: "turvo"},
	{Label: "muito turvo", Key: "muitoTurvo"},
}

// TurbidityAdapter: rainfall sum, turbidity samples
var TurbidityAdapter = Adapter[models.TurbidityReading]{
	Name: SeriesTurbidity,
	Layout: Layout{
		SumKey:    "chuva",
		SampleKey: "turbidez",
	},
	Normalize: func(n Normalizer, r models.TurbidityReading) Record {
		return Record{
			Timestamp: n.ParseTimestamp(r.Timestamp),
			Sum:       Number(r.Rainfall),
			Sample:    Number(r.Turbidity),
		}
	},
}

// RiverLevelAdapter: rainfall sum, river level samples, visibility counts
var RiverLevelAdapter = Adapter[models.RiverReading]{
	Name: SeriesRiverLevel,
	Layout: Layout{
		SumKey:     "chuva",
		SampleKey:  "nivel",
		Categories: VisibilityCategories,
	},
	Normalize: func(n Normalizer, r models.RiverReading) Record {
		return Record{
			Timestamp: n.ParseTimestamp(r.Timestamp),
			Sum:       Number(r.Rainfall),
			Sample:    Number(r.Level),
			Category:  MatchCategory(r.Visibility, VisibilityCategories),
		}
	},
	Categorized: func(r models.RiverReading) bool {
		return Text(r.Visibility) != nil
	},
}

// FireAdapter counts detections by acquisition month
var FireAdapter = Adapter[models.FireHotspot]{
	Name: SeriesFire,
	Layout: Layout{
		CounterKey: "focos",
	},
	Normalize: func(n Normalizer, r models.FireHotspot) Record {
		return Record{
			Timestamp: n.ParseTimestamp(r.AcquisitionDate),
		}
	},
}

// DeforestationAdapter sums alert area and counts alerts by detection month
var DeforestationAdapter = Adapter[models.DeforestationAlert]{
	Name: SeriesDeforestation,
	Layout: Layout{
		SumKey:     "areaHa",
		CounterKey: "alertas",
	},
	Normalize: func(n Normalizer, r models.DeforestationAlert) Record {
		return Record{
			Timestamp: n.ParseTimestamp(r.DetectedAt),
			Sum:       Number(r.AreaHectares),
		}
	},
}

// LayoutOf returns the layout of a series
func LayoutOf(series string) (Layout, bool) {
	switch series {
	case SeriesTurbidity:
		return TurbidityAdapter.Layout, true
	case SeriesRiverLevel:
		return RiverLevelAdapter.Layout, true
	case SeriesFire:
		return FireAdapter.Layout, true
	case SeriesDeforestation:
		return DeforestationAdapter.Layout, true
	}
	return Layout{}, false
}
