package generation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexwday/report-designer/internal/retrievers"
	"github.com/alexwday/report-designer/internal/validation"
)

func fptr(f float64) *float64 { return &f }

func stockTrendGroup() RetrievedGroup {
	return RetrievedGroup{
		SourceID: "stock_prices",
		MethodID: "trend",
		Input:    validation.InputConfig{SourceID: "stock_prices", MethodID: "trend"},
		StockPrices: []retrievers.StockPriceResult{
			{BankID: "RY", Period: "2024 Q3", ClosePrice: fptr(151.20)},
			{BankID: "RY", Period: "2024 Q1", ClosePrice: fptr(132.50)},
			{BankID: "RY", Period: "2024 Q2", ClosePrice: fptr(140.10)},
			{BankID: "TD", Period: "2024 Q1", ClosePrice: fptr(80.00)},
			{BankID: "TD", Period: "2024 Q3", ClosePrice: fptr(78.25)},
		},
	}
}

func TestStockTrendBecomesLineChartSortedByPeriod(t *testing.T) {
	doc := buildChartForGroup(stockTrendGroup(), validation.Visualization{}, "Markets", "Share Price Trend")
	require.NotNil(t, doc)

	assert.Equal(t, "chart", doc.Kind)
	assert.Equal(t, 1, doc.SchemaVersion)
	assert.Equal(t, "Share Price Trend", doc.Title)
	assert.Equal(t, "line", doc.Chart.ChartType)
	assert.Equal(t, "Period", doc.Chart.XLabel)
	assert.Equal(t, "close_price", doc.Chart.YLabel)

	require.Len(t, doc.Chart.Series, 2)
	assert.Equal(t, "RY", doc.Chart.Series[0].Name)
	require.Len(t, doc.Chart.Series[0].Points, 3)
	assert.Equal(t, "2024 Q1", doc.Chart.Series[0].Points[0].X)
	assert.Equal(t, "2024 Q2", doc.Chart.Series[0].Points[1].X)
	assert.Equal(t, "2024 Q3", doc.Chart.Series[0].Points[2].X)

	require.NotNil(t, doc.Source)
	assert.Equal(t, "stock_prices", doc.Source.SourceID)
}

func TestLineChartInsightsNameMomentumExtremes(t *testing.T) {
	doc := buildChartForGroup(stockTrendGroup(), validation.Visualization{}, "Markets", "")
	require.NotNil(t, doc)

	require.Len(t, doc.Insights, 3)
	assert.Equal(t, "Covers 2 series across 5 plotted points.", doc.Insights[0])
	assert.Equal(t, "Strongest momentum: RY (+18.70 over the shown horizon).", doc.Insights[1])
	assert.Equal(t, "Weakest momentum: TD (-1.75 over the shown horizon).", doc.Insights[2])
}

func TestStockComparisonBecomesBarChart(t *testing.T) {
	group := RetrievedGroup{
		SourceID: "stock_prices",
		MethodID: "compare_banks",
		StockPrices: []retrievers.StockPriceResult{
			{BankID: "RY", Period: "2024 Q3", ClosePrice: fptr(151.20)},
			{BankID: "TD", Period: "2024 Q3", ClosePrice: fptr(78.25)},
			{BankID: "BMO", Period: "2024 Q3", Err: "No stock price data found for this period"},
		},
	}

	doc := buildChartForGroup(group, validation.Visualization{}, "Markets", "")
	require.NotNil(t, doc)

	assert.Equal(t, "bar", doc.Chart.ChartType)
	assert.Equal(t, "Bank", doc.Chart.XLabel)
	require.Len(t, doc.Chart.Series, 1)
	require.Len(t, doc.Chart.Series[0].Points, 2)
	assert.Equal(t, "RY", doc.Chart.Series[0].Points[0].X)

	assert.Contains(t, doc.Insights, "Highest in close_price: RY (151.20).")
	assert.Contains(t, doc.Insights, "Lowest in close_price: TD (78.25).")
}

func TestYKeyHintSelectsStockField(t *testing.T) {
	group := RetrievedGroup{
		SourceID: "stock_prices",
		MethodID: "compare_banks",
		StockPrices: []retrievers.StockPriceResult{
			{BankID: "RY", Period: "2024 Q3", ClosePrice: fptr(151.20), YoYChangePct: fptr(12.4)},
			{BankID: "TD", Period: "2024 Q3", ClosePrice: fptr(78.25)},
		},
	}

	doc := buildChartForGroup(group, validation.Visualization{YKey: "yoy_change_pct"}, "Markets", "")
	require.NotNil(t, doc)
	assert.Equal(t, "yoy_change_pct", doc.Chart.YLabel)
	// TD has no YoY value and is dropped.
	require.Len(t, doc.Chart.Series[0].Points, 1)
	assert.Equal(t, 12.4, doc.Chart.Series[0].Points[0].Y)
}

func financialsGroup(metrics []interface{}, results []retrievers.FinancialResult) RetrievedGroup {
	return RetrievedGroup{
		SourceID: "financials",
		MethodID: "compare_banks",
		Input: validation.InputConfig{
			SourceID:   "financials",
			MethodID:   "compare_banks",
			Parameters: map[string]interface{}{"metrics": metrics},
		},
		Financials: results,
	}
}

func TestMultipleMetricsBecomeGroupedBarSeries(t *testing.T) {
	group := financialsGroup([]interface{}{"roe", "cet1_ratio"}, []retrievers.FinancialResult{
		{BankID: "RY", Period: "2024 Q3", Metrics: []retrievers.MetricValue{
			{ID: "roe", Name: "Return on Equity", Value: fptr(15.8)},
			{ID: "cet1_ratio", Name: "CET1 Ratio", Value: fptr(13.2)},
		}},
		{BankID: "TD", Period: "2024 Q3", Metrics: []retrievers.MetricValue{
			{ID: "roe", Name: "Return on Equity", Value: fptr(13.1)},
			{ID: "cet1_ratio", Name: "CET1 Ratio", Value: fptr(12.8)},
		}},
	})

	doc := buildChartForGroup(group, validation.Visualization{}, "Capital", "")
	require.NotNil(t, doc)

	assert.Equal(t, "bar", doc.Chart.ChartType)
	require.Len(t, doc.Chart.Series, 2)
	assert.Equal(t, "Return on Equity", doc.Chart.Series[0].Name)
	assert.Equal(t, "CET1 Ratio", doc.Chart.Series[1].Name)
	require.Len(t, doc.Chart.Series[0].Points, 2)
}

func TestSingleMetricOnePeriodBecomesBarAcrossBanks(t *testing.T) {
	group := financialsGroup([]interface{}{"roe"}, []retrievers.FinancialResult{
		{BankID: "RY", Period: "2024 Q3", Metrics: []retrievers.MetricValue{
			{ID: "roe", Name: "Return on Equity", Value: fptr(15.8)},
		}},
		{BankID: "TD", Period: "2024 Q3", Metrics: []retrievers.MetricValue{
			{ID: "roe", Name: "Return on Equity", Value: fptr(13.1)},
		}},
	})

	doc := buildChartForGroup(group, validation.Visualization{}, "Profitability", "")
	require.NotNil(t, doc)

	assert.Equal(t, "bar", doc.Chart.ChartType)
	require.Len(t, doc.Chart.Series, 1)
	assert.Equal(t, "Return on Equity", doc.Chart.Series[0].Name)
	assert.Equal(t, "Return on Equity", doc.Chart.YLabel)
	assert.Equal(t, []ChartPoint{{X: "RY", Y: 15.8}, {X: "TD", Y: 13.1}}, doc.Chart.Series[0].Points)
}

func TestSingleMetricAcrossPeriodsBecomesLinePerBank(t *testing.T) {
	group := financialsGroup([]interface{}{"net_income"}, []retrievers.FinancialResult{
		{BankID: "RY", Period: "2024 Q2", Metrics: []retrievers.MetricValue{
			{ID: "net_income", Name: "Net Income", Value: fptr(4100)},
		}},
		{BankID: "RY", Period: "2024 Q3", Metrics: []retrievers.MetricValue{
			{ID: "net_income", Name: "Net Income", Value: fptr(4400)},
		}},
	})

	doc := buildChartForGroup(group, validation.Visualization{}, "Earnings", "")
	require.NotNil(t, doc)

	assert.Equal(t, "line", doc.Chart.ChartType)
	assert.Equal(t, "Period", doc.Chart.XLabel)
	require.Len(t, doc.Chart.Series, 1)
	assert.Equal(t, "RY", doc.Chart.Series[0].Name)
}

func TestFormattedValuesParseWhenNumericValueMissing(t *testing.T) {
	group := financialsGroup([]interface{}{"total_revenue"}, []retrievers.FinancialResult{
		{BankID: "RY", Period: "2024 Q3", Metrics: []retrievers.MetricValue{
			{ID: "total_revenue", Name: "Total Revenue", Formatted: "$14,231.00"},
		}},
		{BankID: "TD", Period: "2024 Q3", Metrics: []retrievers.MetricValue{
			{ID: "total_revenue", Name: "Total Revenue", Formatted: "not a number"},
		}},
	})

	doc := buildChartForGroup(group, validation.Visualization{}, "Revenue", "")
	require.NotNil(t, doc)
	require.Len(t, doc.Chart.Series[0].Points, 1)
	assert.Equal(t, 14231.00, doc.Chart.Series[0].Points[0].Y)
}

func TestTranscriptGroupsYieldNoChart(t *testing.T) {
	group := RetrievedGroup{
		SourceID: "transcripts",
		MethodID: "by_quarter",
		Transcripts: []retrievers.TranscriptResult{
			{BankID: "RY", Period: "2024 Q3", Content: "Management remarks."},
		},
	}
	assert.Nil(t, buildChartForGroup(group, validation.Visualization{}, "Commentary", ""))
}

func TestBuildChartContentPrefersRicherGroup(t *testing.T) {
	single := financialsGroup([]interface{}{"roe"}, []retrievers.FinancialResult{
		{BankID: "RY", Period: "2024 Q3", Metrics: []retrievers.MetricValue{
			{ID: "roe", Name: "Return on Equity", Value: fptr(15.8)},
		}},
	})
	richer := stockTrendGroup()

	content, title, err := BuildChartContent(
		[]RetrievedGroup{single, richer},
		validation.Visualization{},
		"Markets", "Share Price Trend",
	)
	require.NoError(t, err)
	assert.Equal(t, "Share Price Trend", title)

	var doc ChartDocument
	require.NoError(t, json.Unmarshal([]byte(content), &doc))
	assert.Equal(t, "stock_prices", doc.Source.SourceID)
	assert.Len(t, doc.Chart.Series, 2)
}

func TestBuildChartContentFallsBackWhenNothingPlottable(t *testing.T) {
	empty := RetrievedGroup{SourceID: "financials", MethodID: "by_quarter"}

	content, title, err := BuildChartContent(
		[]RetrievedGroup{empty},
		validation.Visualization{},
		"Capital", "",
	)
	require.NoError(t, err)
	assert.Equal(t, "Capital chart", title)

	var doc ChartDocument
	require.NoError(t, json.Unmarshal([]byte(content), &doc))
	assert.Empty(t, doc.Chart.Series)
	assert.Equal(t, []string{
		"No chartable numeric data found from the configured inputs.",
		"Review data source parameters or choose a different retrieval method.",
	}, doc.Insights)
	assert.Nil(t, doc.Source)
}

func TestScoreChartWeighsSeriesOverPoints(t *testing.T) {
	twoSeries := &ChartDocument{Chart: ChartBody{Series: []ChartSeries{
		{Name: "a", Points: []ChartPoint{{X: "1", Y: 1}}},
		{Name: "b", Points: []ChartPoint{{X: "1", Y: 2}}},
	}}}
	oneBigSeries := &ChartDocument{Chart: ChartBody{Series: []ChartSeries{
		{Name: "a", Points: make([]ChartPoint, 50)},
	}}}

	assert.Equal(t, 202, scoreChart(twoSeries))
	assert.Equal(t, 150, scoreChart(oneBigSeries))
	assert.Greater(t, scoreChart(twoSeries), scoreChart(oneBigSeries))
	assert.Equal(t, 0, scoreChart(nil))
}

func TestParseNumeric(t *testing.T) {
	tests := []struct {
		in   string
		want *float64
	}{
		{"$1,234.50", fptr(1234.50)},
		{"13.2%", fptr(13.2)},
		{" 42 ", fptr(42)},
		{"", nil},
		{"n/a", nil},
	}
	for _, tt := range tests {
		got := parseNumeric(tt.in)
		if tt.want == nil {
			assert.Nil(t, got, tt.in)
		} else {
			require.NotNil(t, got, tt.in)
			assert.Equal(t, *tt.want, *got, tt.in)
		}
	}
}
