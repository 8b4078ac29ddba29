package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexwday/report-designer/internal/retrievers"
	"github.com/alexwday/report-designer/internal/validation"
)

// ==== Query Building ====

func TestBuildQueriesPreBuiltQueries(t *testing.T) {
	input := validation.InputConfig{
		SourceID: "financials",
		MethodID: "custom_batch",
		Parameters: map[string]interface{}{
			"queries": []interface{}{
				map[string]interface{}{"bank_id": "RY", "fiscal_year": 2024, "fiscal_quarter": "Q3"},
				map[string]interface{}{"bank_id": "TD", "fiscal_year": float64(2025), "fiscal_quarter": "q1"},
				"not an object",
				map[string]interface{}{"bank_id": "", "fiscal_year": 2024, "fiscal_quarter": "Q3"},
			},
		},
	}

	queries := buildQueries(input)
	require.Len(t, queries, 2)
	assert.Equal(t, retrievers.PeriodQuery{BankID: "RY", FiscalYear: 2024, FiscalQuarter: "Q3"}, queries[0])
	assert.Equal(t, retrievers.PeriodQuery{BankID: "TD", FiscalYear: 2025, FiscalQuarter: "Q1"}, queries[1])
}

func TestBuildQueriesTrendIgnoresPeriodsForNonStockSources(t *testing.T) {
	// trend periods only apply to stock prices; other sources fall through
	// to the pre-built queries path.
	input := validation.InputConfig{
		SourceID: "financials",
		MethodID: "trend",
		Parameters: map[string]interface{}{
			"bank_id": "RY",
			"periods": []interface{}{
				map[string]interface{}{"fiscal_year": 2024, "fiscal_quarter": "Q1"},
			},
			"queries": []interface{}{
				map[string]interface{}{"bank_id": "BMO", "fiscal_year": 2024, "fiscal_quarter": "Q2"},
			},
		},
	}

	queries := buildQueries(input)
	require.Len(t, queries, 1)
	assert.Equal(t, "BMO", queries[0].BankID)
}

func TestBuildQueriesUnknownMethodWithoutQueries(t *testing.T) {
	input := validation.InputConfig{
		SourceID:   "financials",
		MethodID:   "custom_batch",
		Parameters: map[string]interface{}{"bank_id": "RY"},
	}
	assert.Empty(t, buildQueries(input))
}

// ==== Context Formatting ====

func TestTruncateKeepsRunesIntact(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{"short string untouched", "revenue", 10, "revenue"},
		{"ascii cut at limit", "revenue", 3, "rev"},
		{"multibyte cut backs up to rune start", "café", 4, "caf"},
		{"multibyte fits exactly", "café", 5, "café"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.limit)
			assert.Equal(t, tt.want, got)
			assert.True(t, len(got) <= tt.limit)
		})
	}
}
