package registry

import (
	"context"

	"github.com/alexwday/report-designer/internal/common/errors"
)

// StaticRegistry serves a fixed set of sources from memory. Used in tests
// and as the seed for a fresh database.
type StaticRegistry struct {
	sources map[string]DataSource
}

func NewStatic(sources ...DataSource) *StaticRegistry {
	m := make(map[string]DataSource, len(sources))
	for _, s := range sources {
		m[s.ID] = s
	}
	return &StaticRegistry{sources: m}
}

func (r *StaticRegistry) GetDataSource(_ context.Context, sourceID string) (*DataSource, error) {
	s, ok := r.sources[sourceID]
	if !ok || !s.IsActive {
		return nil, errors.NewDataSourceNotFoundError(sourceID)
	}
	return &s, nil
}

func (r *StaticRegistry) MethodDetails(ctx context.Context, sourceID, methodID string) (*DataSource, *RetrievalMethod, error) {
	return methodDetails(ctx, r, sourceID, methodID)
}

func (r *StaticRegistry) ListDataSources(_ context.Context) ([]DataSource, error) {
	out := make([]DataSource, 0, len(r.sources))
	for _, id := range []string{"financials", "stock_prices", "transcripts"} {
		if s, ok := r.sources[id]; ok && s.IsActive {
			out = append(out, s)
		}
	}
	for id, s := range r.sources {
		switch id {
		case "financials", "stock_prices", "transcripts":
		default:
			if s.IsActive {
				out = append(out, s)
			}
		}
	}
	return out, nil
}

var bankOptions = []string{"RY", "TD", "BMO", "BNS", "CM", "NA"}

var quarterOptions = []string{"Q1", "Q2", "Q3", "Q4"}

func bankParam() ParameterDef {
	return ParameterDef{Key: "bank_id", Type: "enum", Options: bankOptions, Required: true, Prompt: "Which bank?"}
}

func banksParam() ParameterDef {
	return ParameterDef{
		Key: "bank_ids", Type: "array", Required: true, Prompt: "Which banks to compare?",
		Items: &ItemConstraint{Type: "enum", Options: bankOptions},
	}
}

func yearParam() ParameterDef {
	return ParameterDef{Key: "fiscal_year", Type: "integer", Required: true, Prompt: "Which fiscal year?"}
}

func quarterParam() ParameterDef {
	return ParameterDef{Key: "fiscal_quarter", Type: "enum", Options: quarterOptions, Required: true, Prompt: "Which quarter?"}
}

// DefaultSources returns the built-in bank data catalog: earnings call
// transcripts, the top-25 financial metrics, and end-of-quarter stock
// prices for the Canadian Big 6.
func DefaultSources() []DataSource {
	sectionParam := ParameterDef{
		Key: "section", Type: "enum",
		Options:  []string{"management_discussion", "qa", "both"},
		Required: false, Default: "both", Prompt: "Which section?",
	}
	metricsParam := ParameterDef{
		Key: "metrics", Type: "array", Required: false,
		Items:  &ItemConstraint{Type: "string"},
		Prompt: "Which metrics? (leave empty for all 25)",
	}

	return []DataSource{
		{
			ID:       "transcripts",
			Name:     "Earnings Call Transcripts",
			Category: "bank_data",
			IsActive: true,
			RetrievalMethods: []RetrievalMethod{
				{
					MethodID:    "by_quarter",
					Name:        "By Quarter",
					Description: "Get transcript section for a specific bank/quarter",
					Parameters:  []ParameterDef{bankParam(), yearParam(), quarterParam(), sectionParam},
					Returns:     "Full transcript section text with metadata",
				},
				{
					MethodID:    "compare_banks",
					Name:        "Compare Banks",
					Description: "Get transcripts for multiple banks in the same quarter",
					Parameters:  []ParameterDef{banksParam(), yearParam(), quarterParam(), sectionParam},
					Returns:     "Transcripts for each bank",
				},
			},
			SuggestedWidgets: []string{"summary", "key_points", "comparison", "custom"},
		},
		{
			ID:       "financials",
			Name:     "Financial Metrics",
			Category: "bank_data",
			IsActive: true,
			RetrievalMethods: []RetrievalMethod{
				{
					MethodID:    "by_quarter",
					Name:        "By Quarter",
					Description: "Get financial metrics for a specific bank/quarter",
					Parameters:  []ParameterDef{bankParam(), yearParam(), quarterParam(), metricsParam},
					Returns:     "Metric values with formatted display strings",
				},
				{
					MethodID:    "compare_banks",
					Name:        "Compare Banks",
					Description: "Compare financial metrics across multiple banks",
					Parameters:  []ParameterDef{banksParam(), yearParam(), quarterParam(), metricsParam},
					Returns:     "Metrics for each bank for comparison",
				},
			},
			SuggestedWidgets: []string{"table", "comparison", "chart", "key_points"},
		},
		{
			ID:       "stock_prices",
			Name:     "Stock Prices",
			Category: "bank_data",
			IsActive: true,
			RetrievalMethods: []RetrievalMethod{
				{
					MethodID:    "by_quarter",
					Name:        "By Quarter",
					Description: "Get stock price for a specific bank/quarter",
					Parameters:  []ParameterDef{bankParam(), yearParam(), quarterParam()},
					Returns:     "Stock price with QoQ and YoY changes",
				},
				{
					MethodID:    "compare_banks",
					Name:        "Compare Banks",
					Description: "Compare stock performance across multiple banks",
					Parameters:  []ParameterDef{banksParam(), yearParam(), quarterParam()},
					Returns:     "Stock prices for each bank",
				},
				{
					MethodID:    "trend",
					Name:        "Price Trend",
					Description: "Get stock price trend over multiple quarters",
					Parameters: []ParameterDef{
						bankParam(),
						{
							Key: "periods", Type: "array", Required: true, Prompt: "Which periods?",
							Items: &ItemConstraint{Type: "object"},
						},
					},
					Returns: "Stock prices across specified periods",
				},
			},
			SuggestedWidgets: []string{"table", "chart", "comparison"},
		},
	}
}

// NewDefaultStatic is NewStatic(DefaultSources()...).
func NewDefaultStatic() *StaticRegistry {
	return NewStatic(DefaultSources()...)
}
