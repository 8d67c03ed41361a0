package handlers

import (
	"encoding/json"
	"net/http"

	"sala-situacao/internal/aggregation"
)

func seriesParam() map[string]interface{} {
	return map[string]interface{}{
		"name":        "series",
		"in":          "path",
		"description": "Series id",
		"required":    true,
		"schema": map[string]interface{}{
			"type": "string",
			"enum": aggregation.SeriesNames,
		},
	}
}

func yearParams() []map[string]interface{} {
	return []map[string]interface{}{
		seriesParam(),
		{
			"name":        "start_year",
			"in":          "query",
			"description": "First calendar year to include",
			"required":    false,
			"schema":      map[string]string{"type": "integer"},
		},
		{
			"name":        "end_year",
			"in":          "query",
			"description": "Last calendar year to include",
			"required":    false,
			"schema":      map[string]string{"type": "integer"},
		},
	}
}

func jsonContent(schema map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"application/json": map[string]interface{}{"schema": schema},
	}
}

func errorResponses() map[string]interface{} {
	errRef := jsonContent(map[string]interface{}{"$ref": "#/components/schemas/ErrorResponse"})
	return map[string]interface{}{
		"400": map[string]interface{}{"description": "Invalid parameters", "content": errRef},
		"404": map[string]interface{}{"description": "Unknown series", "content": errRef},
		"500": map[string]interface{}{"description": "Internal error", "content": errRef},
	}
}

func withResponse(code string, response map[string]interface{}) map[string]interface{} {
	responses := errorResponses()
	responses[code] = response
	return responses
}

var nullableNumber = map[string]interface{}{"type": "number", "nullable": true}

// OpenAPISpec returns the OpenAPI 3.0 specification for the situation room API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	spec := map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "Sala de Situação API",
			"description": "Monthly summaries, spreadsheet exports and year-over-year comparisons of the environmental monitoring series",
			"version":     "1.0.0",
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"paths": map[string]interface{}{
			"/api/series": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "List series",
					"description": "Series ids, the keys each month carries and whether a comparison is available",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Successful response",
							"content": jsonContent(map[string]interface{}{
								"type": "object",
								"properties": map[string]interface{}{
									"data": map[string]interface{}{
										"type": "array",
										"items": map[string]interface{}{
											"type": "object",
											"properties": map[string]interface{}{
												"id":         map[string]string{"type": "string"},
												"keys":       map[string]interface{}{"type": "array", "items": map[string]string{"type": "string"}},
												"comparable": map[string]string{"type": "boolean"},
											},
										},
									},
								},
							}),
						},
					},
				},
			},
			"/api/series/{series}/mensal": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Monthly summary",
					"description": "Twelve months per year. Max, min and mean keys are omitted for months without samples.",
					"parameters":  yearParams(),
					"responses": withResponse("200", map[string]interface{}{
						"description": "Successful response",
						"content":     jsonContent(map[string]interface{}{"$ref": "#/components/schemas/MonthlyOutput"}),
					}),
				},
			},
			"/api/series/{series}/mensal.xlsx": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Monthly summary spreadsheet",
					"description": "One sheet per year, one row per month",
					"parameters":  yearParams(),
					"responses": withResponse("200", map[string]interface{}{
						"description": "XLSX workbook",
						"content": map[string]interface{}{
							xlsxContentType: map[string]interface{}{
								"schema": map[string]string{"type": "string", "format": "binary"},
							},
						},
					}),
				},
			},
			"/api/series/{series}/comparativo": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Month-to-date comparison",
					"description": "Mean of the sampled field this month to date against the same window one year earlier",
					"parameters":  []map[string]interface{}{seriesParam()},
					"responses": withResponse("200", map[string]interface{}{
						"description": "Successful response",
						"content":     jsonContent(map[string]interface{}{"$ref": "#/components/schemas/Comparison"}),
					}),
				},
			},
			"/health": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Health check",
					"description": "Check if the API and its database are reachable",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "API is healthy",
							"content": jsonContent(map[string]interface{}{
								"type": "object",
								"properties": map[string]interface{}{
									"status":   map[string]string{"type": "string"},
									"database": map[string]string{"type": "string"},
								},
							}),
						},
						"503": map[string]interface{}{"description": "Database unreachable"},
					},
				},
			},
			"/metrics": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Prometheus metrics",
					"description": "Prometheus metrics endpoint for monitoring",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Prometheus metrics in text format",
							"content": map[string]interface{}{
								"text/plain": map[string]interface{}{
									"schema": map[string]string{"type": "string"},
								},
							},
						},
					},
				},
			},
		},
		"components": map[string]interface{}{
			"schemas": map[string]interface{}{
				"ErrorResponse": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"error":   map[string]string{"type": "string"},
						"message": map[string]string{"type": "string"},
						"code":    map[string]string{"type": "integer"},
					},
				},
				"MonthlyOutput": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"series": map[string]string{"type": "string"},
						"years": map[string]interface{}{
							"type":        "object",
							"description": "Keyed by year; each value is an array of 12 months, January first",
							"additionalProperties": map[string]interface{}{
								"type":     "array",
								"minItems": 12,
								"maxItems": 12,
								"items": map[string]interface{}{
									"type":                 "object",
									"additionalProperties": map[string]string{"type": "number"},
								},
							},
						},
						"folded":            map[string]string{"type": "integer"},
						"skippedTimestamp":  map[string]string{"type": "integer"},
						"unmatchedCategory": map[string]string{"type": "integer"},
					},
				},
				"DateRange": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"start": map[string]string{"type": "string", "format": "date"},
						"end":   map[string]string{"type": "string", "format": "date"},
					},
				},
				"Comparison": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"series":      map[string]string{"type": "string"},
						"field":       map[string]string{"type": "string"},
						"current":     map[string]string{"$ref": "#/components/schemas/DateRange"},
						"prior":       map[string]string{"$ref": "#/components/schemas/DateRange"},
						"meanCurrent": nullableNumber,
						"meanPrior":   nullableNumber,
						"deltaPct":    nullableNumber,
						"staleness": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"isStale":   map[string]string{"type": "boolean"},
								"lastDate":  map[string]interface{}{"type": "string", "format": "date", "nullable": true},
								"daysStale": map[string]interface{}{"type": "integer", "nullable": true},
							},
						},
					},
				},
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(spec)
}
