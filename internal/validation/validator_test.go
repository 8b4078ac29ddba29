package validation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexwday/report-designer/internal/registry"
)

func newValidator() *Validator {
	return New(registry.NewDefaultStatic())
}

func financialsConfig(params map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"inputs": []interface{}{
			map[string]interface{}{
				"source_id":  "financials",
				"method_id":  "by_quarter",
				"parameters": params,
			},
		},
	}
}

// ==== Structural Validation ====

func TestValidateConfigRejectsNonObjectShapes(t *testing.T) {
	v := newValidator()

	res := v.ValidateConfig(context.Background(), map[string]interface{}{
		"inputs": "not an array",
	}, true)
	require.False(t, res.Valid)
	assert.Contains(t, res.Errors[0], "inputs")

	res = v.ValidateConfig(context.Background(), nil, true)
	require.False(t, res.Valid)
	assert.Equal(t, "Data source configuration must be an object", res.Errors[0])
}

func TestValidateConfigRequiresInputs(t *testing.T) {
	v := newValidator()

	res := v.ValidateConfig(context.Background(), map[string]interface{}{}, true)
	require.False(t, res.Valid)
	assert.Contains(t, res.Errors, "Data source configuration must include a non-empty 'inputs' array")

	res = v.ValidateConfig(context.Background(), map[string]interface{}{
		"inputs": []interface{}{},
	}, true)
	assert.False(t, res.Valid)
}

// ==== Registry Lookups ====

func TestValidateConfigUnknownSourceAndMethod(t *testing.T) {
	v := newValidator()

	tests := []struct {
		name     string
		sourceID string
		methodID string
		wantErr  string
	}{
		{"unknown source", "crystal_ball", "by_quarter", "inputs[0]: Unknown data source 'crystal_ball'"},
		{"unknown method", "financials", "astrology", "inputs[0]: Method 'astrology' is not valid for data source 'financials'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := map[string]interface{}{
				"inputs": []interface{}{
					map[string]interface{}{"source_id": tt.sourceID, "method_id": tt.methodID},
				},
			}
			res := v.ValidateConfig(context.Background(), cfg, true)
			require.False(t, res.Valid)
			assert.Contains(t, res.Errors, tt.wantErr)
		})
	}
}

// ==== Parameter Rules ====

func TestValidateConfigParameterRules(t *testing.T) {
	v := newValidator()

	tests := []struct {
		name    string
		params  map[string]interface{}
		wantErr string
	}{
		{
			name:    "missing required parameter",
			params:  map[string]interface{}{"bank_id": "RY", "fiscal_year": 2024},
			wantErr: "inputs[0]: Missing required parameter 'fiscal_quarter'",
		},
		{
			name: "unknown parameter",
			params: map[string]interface{}{
				"bank_id": "RY", "fiscal_year": 2024, "fiscal_quarter": "Q1", "vintage": 1998,
			},
			wantErr: "inputs[0]: Unknown parameter 'vintage' for method 'by_quarter'",
		},
		{
			name: "enum out of range",
			params: map[string]interface{}{
				"bank_id": "HSBC", "fiscal_year": 2024, "fiscal_quarter": "Q1",
			},
			wantErr: "inputs[0]: Parameter 'bank_id' must be one of RY, TD, BMO, BNS, CM, NA",
		},
		{
			name: "integer type mismatch",
			params: map[string]interface{}{
				"bank_id": "RY", "fiscal_year": "twenty24", "fiscal_quarter": "Q1",
			},
			wantErr: "inputs[0]: Parameter 'fiscal_year' must be an integer",
		},
		{
			name: "array item enum violation",
			params: map[string]interface{}{
				"bank_id": "RY", "fiscal_year": 2024, "fiscal_quarter": "Q1",
				"metrics": []interface{}{"net_income", 42},
			},
			wantErr: "inputs[0]: Parameter 'metrics' items must be strings",
		},
		{
			name: "empty string counts as missing",
			params: map[string]interface{}{
				"bank_id": "", "fiscal_year": 2024, "fiscal_quarter": "Q1",
			},
			wantErr: "inputs[0]: Missing required parameter 'bank_id'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.ValidateConfig(context.Background(), financialsConfig(tt.params), true)
			require.False(t, res.Valid)
			assert.Contains(t, res.Errors, tt.wantErr)
		})
	}
}

func TestValidateConfigArrayItemEnum(t *testing.T) {
	v := newValidator()
	cfg := map[string]interface{}{
		"inputs": []interface{}{
			map[string]interface{}{
				"source_id": "financials",
				"method_id": "compare_banks",
				"parameters": map[string]interface{}{
					"bank_ids":       []interface{}{"RY", "XYZ"},
					"fiscal_year":    2024,
					"fiscal_quarter": "Q1",
				},
			},
		},
	}
	res := v.ValidateConfig(context.Background(), cfg, true)
	require.False(t, res.Valid)
	assert.Contains(t, res.Errors, "inputs[0]: Parameter 'bank_ids' items must be one of RY, TD, BMO, BNS, CM, NA")
}

func TestValidateConfigAppliesDefaults(t *testing.T) {
	v := newValidator()
	cfg := map[string]interface{}{
		"inputs": []interface{}{
			map[string]interface{}{
				"source_id": "transcripts",
				"method_id": "by_quarter",
				"parameters": map[string]interface{}{
					"bank_id":        "RY",
					"fiscal_year":    2024,
					"fiscal_quarter": "Q1",
				},
			},
		},
	}
	res := v.ValidateConfig(context.Background(), cfg, true)
	require.True(t, res.Valid, "errors: %v", res.Errors)

	inputs := ExtractInputs(res.Normalized)
	require.Len(t, inputs, 1)
	assert.Equal(t, "both", inputs[0].Parameters["section"])
}

// ==== Binding Modes ====

func TestValidateConfigBindingModes(t *testing.T) {
	v := newValidator()
	cfg := financialsConfig(map[string]interface{}{
		"bank_id":        map[string]interface{}{"$var": "company"},
		"fiscal_year":    map[string]interface{}{"$period": "current.fiscal_year"},
		"fiscal_quarter": map[string]interface{}{"$period": "current.fiscal_quarter"},
	})

	pre := v.ValidateConfig(context.Background(), cfg, true)
	assert.True(t, pre.Valid, "errors: %v", pre.Errors)

	post := v.ValidateConfig(context.Background(), cfg, false)
	require.False(t, post.Valid)
	assert.Contains(t, post.Errors, "inputs[0]: Parameter 'bank_id' contains an unresolved binding")
}

func TestValidateConfigRejectsBadPeriodCount(t *testing.T) {
	v := newValidator()

	for _, count := range []interface{}{float64(0), float64(-2), "lots"} {
		cfg := map[string]interface{}{
			"inputs": []interface{}{
				map[string]interface{}{
					"source_id": "stock_prices",
					"method_id": "trend",
					"parameters": map[string]interface{}{
						"bank_id": "RY",
						"periods": map[string]interface{}{"$period": "trailing_quarters", "$count": count},
					},
				},
			},
		}
		res := v.ValidateConfig(context.Background(), cfg, true)
		require.False(t, res.Valid, "count %v accepted", count)
		assert.Contains(t, res.Errors, "inputs[0]: Period binding '$count' must be a positive integer")
	}

	// A positive count still validates.
	cfg := map[string]interface{}{
		"inputs": []interface{}{
			map[string]interface{}{
				"source_id": "stock_prices",
				"method_id": "trend",
				"parameters": map[string]interface{}{
					"bank_id": "RY",
					"periods": map[string]interface{}{"$period": "trailing_quarters", "$count": float64(8)},
				},
			},
		},
	}
	res := v.ValidateConfig(context.Background(), cfg, true)
	assert.True(t, res.Valid, "errors: %v", res.Errors)
}

func TestValidateConfigPeriodShapeCompatibility(t *testing.T) {
	v := newValidator()

	// A full period object cannot fill an integer slot.
	cfg := financialsConfig(map[string]interface{}{
		"bank_id":        "RY",
		"fiscal_year":    map[string]interface{}{"$period": "yoy"},
		"fiscal_quarter": "Q1",
	})
	res := v.ValidateConfig(context.Background(), cfg, true)
	require.False(t, res.Valid)
	assert.Contains(t, res.Errors, "inputs[0]: Period selector 'yoy' produces object, but parameter 'fiscal_year' expects integer")

	// The scalar projection can.
	cfg = financialsConfig(map[string]interface{}{
		"bank_id":        "RY",
		"fiscal_year":    map[string]interface{}{"$period": "yoy.fiscal_year"},
		"fiscal_quarter": map[string]interface{}{"$period": "yoy.fiscal_quarter"},
	})
	res = v.ValidateConfig(context.Background(), cfg, true)
	assert.True(t, res.Valid, "errors: %v", res.Errors)
}

// ==== Dependencies and Visualization ====

func TestValidateConfigNormalizesDependencies(t *testing.T) {
	v := newValidator()
	cfg := financialsConfig(map[string]interface{}{
		"bank_id": "RY", "fiscal_year": 2024, "fiscal_quarter": "Q1",
	})
	cfg["dependencies"] = map[string]interface{}{
		"subsection_ids": []interface{}{"sub-b", "sub-a", "sub-b", "sub-a"},
	}

	res := v.ValidateConfig(context.Background(), cfg, true)
	require.True(t, res.Valid, "errors: %v", res.Errors)

	deps := ExtractDependencies(res.Normalized)
	assert.Equal(t, []string{"sub-b", "sub-a"}, deps.SubsectionIDs)
}

func TestValidateConfigVisualization(t *testing.T) {
	v := newValidator()
	cfg := financialsConfig(map[string]interface{}{
		"bank_id": "RY", "fiscal_year": 2024, "fiscal_quarter": "Q1",
	})
	cfg["visualization"] = map[string]interface{}{
		"chart_type": "pie",
	}

	res := v.ValidateConfig(context.Background(), cfg, true)
	require.False(t, res.Valid)
	assert.Contains(t, res.Errors, "'visualization.chart_type' must be one of bar, line")

	cfg["visualization"] = map[string]interface{}{
		"chart_type": "line",
		"metric_id":  "net_income",
	}
	res = v.ValidateConfig(context.Background(), cfg, true)
	require.True(t, res.Valid, "errors: %v", res.Errors)
	viz := ExtractVisualization(res.Normalized)
	require.NotNil(t, viz)
	assert.Equal(t, "line", viz.ChartType)
	assert.Equal(t, "net_income", viz.MetricID)
}

// ==== Resolution ====

func TestResolveConfigSubstitutesBindings(t *testing.T) {
	v := newValidator()
	cfg := financialsConfig(map[string]interface{}{
		"bank_id":        map[string]interface{}{"$var": "company"},
		"fiscal_year":    map[string]interface{}{"$period": "current.fiscal_year"},
		"fiscal_quarter": map[string]interface{}{"$period": "current.fiscal_quarter"},
	})

	res := v.ResolveConfig(context.Background(), cfg, map[string]interface{}{
		"company":               "TD",
		"period_fiscal_year":    2025,
		"period_fiscal_quarter": "Q1",
	}, "")
	require.True(t, res.Valid, "errors: %v", res.Errors)

	inputs := ExtractInputs(res.Resolved)
	require.Len(t, inputs, 1)
	assert.Equal(t, "TD", inputs[0].Parameters["bank_id"])
	assert.Equal(t, 2025, inputs[0].Parameters["fiscal_year"])
	assert.Equal(t, "Q1", inputs[0].Parameters["fiscal_quarter"])
}

func TestResolveConfigReportsMissingInputs(t *testing.T) {
	v := newValidator()
	cfg := financialsConfig(map[string]interface{}{
		"bank_id":        map[string]interface{}{"$var": "company"},
		"fiscal_year":    2024,
		"fiscal_quarter": "Q1",
	})

	res := v.ResolveConfig(context.Background(), cfg, map[string]interface{}{}, "")
	require.False(t, res.Valid)
	assert.Equal(t, []string{"company"}, res.MissingInputs)
	assert.Contains(t, res.Errors, "Missing run input 'company'")
}
