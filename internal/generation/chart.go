package generation

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/alexwday/report-designer/internal/retrievers"
	"github.com/alexwday/report-designer/internal/validation"
)

// ChartPoint is one plotted value.
type ChartPoint struct {
	X string  `json:"x"`
	Y float64 `json:"y"`
}

// ChartSeries is one named series of points.
type ChartSeries struct {
	Name   string       `json:"name"`
	Points []ChartPoint `json:"points"`
}

// ChartBody holds the renderable chart description.
type ChartBody struct {
	ChartType string        `json:"chart_type"`
	XLabel    string        `json:"x_label"`
	YLabel    string        `json:"y_label"`
	Series    []ChartSeries `json:"series"`
}

// ChartSource records which data input produced the chart.
type ChartSource struct {
	SourceID string `json:"source_id"`
	MethodID string `json:"method_id"`
}

// ChartDocument is the JSON payload stored as chart subsection content.
type ChartDocument struct {
	Kind          string       `json:"kind"`
	SchemaVersion int          `json:"schema_version"`
	Title         string       `json:"title"`
	Chart         ChartBody    `json:"chart"`
	Source        *ChartSource `json:"source,omitempty"`
	Insights      []string     `json:"insights"`
}

// RetrievedGroup is the merged raw output of every data input sharing a
// (source_id, method_id) pair, with the first input kept as representative.
type RetrievedGroup struct {
	SourceID    string
	MethodID    string
	Input       validation.InputConfig
	Financials  []retrievers.FinancialResult
	StockPrices []retrievers.StockPriceResult
	Transcripts []retrievers.TranscriptResult
}

// BuildChartContent builds the best chart payload across the retrieved
// groups and returns it serialized, together with the chart title. When no
// group yields plottable numbers, an empty fallback document explains why.
func BuildChartContent(groups []RetrievedGroup, viz validation.Visualization, sectionTitle, subsectionTitle string) (string, string, error) {
	var best *ChartDocument
	bestScore := 0
	for _, group := range groups {
		doc := buildChartForGroup(group, viz, sectionTitle, subsectionTitle)
		if score := scoreChart(doc); score > bestScore {
			best = doc
			bestScore = score
		}
	}

	if best == nil {
		best = fallbackChart(viz, sectionTitle, subsectionTitle)
	}

	body, err := json.Marshal(best)
	if err != nil {
		return "", "", err
	}
	return string(body), best.Title, nil
}

func fallbackChart(viz validation.Visualization, sectionTitle, subsectionTitle string) *ChartDocument {
	chartType := viz.ChartType
	if chartType == "" {
		chartType = "bar"
	}
	return &ChartDocument{
		Kind:          "chart",
		SchemaVersion: 1,
		Title:         chartTitle(viz, sectionTitle, subsectionTitle),
		Chart: ChartBody{
			ChartType: chartType,
			XLabel:    "Category",
			YLabel:    "Value",
			Series:    []ChartSeries{},
		},
		Insights: []string{
			"No chartable numeric data found from the configured inputs.",
			"Review data source parameters or choose a different retrieval method.",
		},
	}
}

func chartTitle(viz validation.Visualization, sectionTitle, subsectionTitle string) string {
	if viz.Title != "" {
		return viz.Title
	}
	if subsectionTitle != "" {
		return subsectionTitle
	}
	return sectionTitle + " chart"
}

func buildChartForGroup(group RetrievedGroup, viz validation.Visualization, sectionTitle, subsectionTitle string) *ChartDocument {
	switch group.SourceID {
	case "stock_prices":
		return buildStockChart(group, viz, sectionTitle, subsectionTitle)
	case "financials":
		return buildFinancialsChart(group, viz, sectionTitle, subsectionTitle)
	}
	return nil
}

func buildStockChart(group RetrievedGroup, viz validation.Visualization, sectionTitle, subsectionTitle string) *ChartDocument {
	yKey := viz.YKey
	if yKey == "" {
		yKey = "close_price"
	}

	if group.MethodID == "trend" {
		perBank := newOrderedSeries()
		for _, row := range group.StockPrices {
			if row.Err != "" {
				continue
			}
			value := row.NumericField(yKey)
			if value == nil {
				continue
			}
			perBank.append(row.BankID, ChartPoint{X: row.Period, Y: *value})
		}
		series := perBank.sorted()
		if len(series) == 0 {
			return nil
		}
		chartType := viz.ChartType
		if chartType == "" {
			chartType = "line"
		}
		return &ChartDocument{
			Kind:          "chart",
			SchemaVersion: 1,
			Title:         chartTitle(viz, sectionTitle, subsectionTitle),
			Chart:         ChartBody{ChartType: chartType, XLabel: "Period", YLabel: yKey, Series: series},
			Source:        &ChartSource{SourceID: group.SourceID, MethodID: group.MethodID},
			Insights:      buildChartInsights(chartType, series),
		}
	}

	var points []ChartPoint
	for _, row := range group.StockPrices {
		if row.Err != "" {
			continue
		}
		value := row.NumericField(yKey)
		if value == nil {
			continue
		}
		points = append(points, ChartPoint{X: row.BankID, Y: *value})
	}
	if len(points) == 0 {
		return nil
	}
	chartType := viz.ChartType
	if chartType == "" {
		chartType = "bar"
	}
	series := []ChartSeries{{Name: yKey, Points: points}}
	return &ChartDocument{
		Kind:          "chart",
		SchemaVersion: 1,
		Title:         chartTitle(viz, sectionTitle, subsectionTitle),
		Chart:         ChartBody{ChartType: chartType, XLabel: "Bank", YLabel: yKey, Series: series},
		Source:        &ChartSource{SourceID: group.SourceID, MethodID: group.MethodID},
		Insights:      buildChartInsights(chartType, series),
	}
}

func buildFinancialsChart(group RetrievedGroup, viz validation.Visualization, sectionTitle, subsectionTitle string) *ChartDocument {
	configuredMetrics := configuredMetricIDs(group.Input)
	selectedMetricID := viz.MetricID
	if selectedMetricID == "" && len(configuredMetrics) > 0 {
		selectedMetricID = configuredMetrics[0]
	}

	// Several configured metrics with no explicit visualization pick:
	// grouped multi-series comparison across banks.
	if viz.MetricID == "" && len(configuredMetrics) > 1 {
		if doc := buildGroupedMetricsChart(group, configuredMetrics, viz, sectionTitle, subsectionTitle); doc != nil {
			return doc
		}
	}

	perBank := newOrderedSeries()
	var singletons []ChartPoint
	metricName := selectedMetricID
	if metricName == "" {
		metricName = "metric"
	}

	for _, row := range group.Financials {
		if row.Err != "" {
			continue
		}
		metric := pickMetric(row.Metrics, selectedMetricID)
		if metric == nil {
			continue
		}
		if metric.Name != "" {
			metricName = metric.Name
		} else if metric.ID != "" {
			metricName = metric.ID
		}
		value := metricFloat(*metric)
		if value == nil {
			continue
		}
		perBank.append(row.BankID, ChartPoint{X: row.Period, Y: *value})
		singletons = append(singletons, ChartPoint{X: row.BankID, Y: *value})
	}
	if perBank.len() == 0 {
		return nil
	}

	// One shared period across multiple banks reads better as a bar chart.
	if perBank.uniquePeriods() == 1 && len(singletons) > 1 {
		chartType := viz.ChartType
		if chartType == "" {
			chartType = "bar"
		}
		series := []ChartSeries{{Name: metricName, Points: singletons}}
		return &ChartDocument{
			Kind:          "chart",
			SchemaVersion: 1,
			Title:         chartTitle(viz, sectionTitle, subsectionTitle),
			Chart:         ChartBody{ChartType: chartType, XLabel: "Bank", YLabel: metricName, Series: series},
			Source:        &ChartSource{SourceID: group.SourceID, MethodID: group.MethodID},
			Insights:      buildChartInsights(chartType, series),
		}
	}

	series := perBank.sorted()
	chartType := viz.ChartType
	if chartType == "" {
		chartType = "line"
	}
	return &ChartDocument{
		Kind:          "chart",
		SchemaVersion: 1,
		Title:         chartTitle(viz, sectionTitle, subsectionTitle),
		Chart:         ChartBody{ChartType: chartType, XLabel: "Period", YLabel: metricName, Series: series},
		Source:        &ChartSource{SourceID: group.SourceID, MethodID: group.MethodID},
		Insights:      buildChartInsights(chartType, series),
	}
}

func buildGroupedMetricsChart(group RetrievedGroup, metricIDs []string, viz validation.Visualization, sectionTitle, subsectionTitle string) *ChartDocument {
	var series []ChartSeries
	for _, metricID := range metricIDs {
		name := metricID
		var points []ChartPoint
		for _, row := range group.Financials {
			if row.Err != "" {
				continue
			}
			metric := findMetric(row.Metrics, metricID)
			if metric == nil {
				continue
			}
			if metric.Name != "" {
				name = metric.Name
			}
			value := metricFloat(*metric)
			if value == nil {
				continue
			}
			points = append(points, ChartPoint{X: row.BankID, Y: *value})
		}
		if len(points) > 0 {
			series = append(series, ChartSeries{Name: name, Points: points})
		}
	}
	if len(series) == 0 {
		return nil
	}

	chartType := viz.ChartType
	if chartType == "" {
		chartType = "bar"
	}
	return &ChartDocument{
		Kind:          "chart",
		SchemaVersion: 1,
		Title:         chartTitle(viz, sectionTitle, subsectionTitle),
		Chart:         ChartBody{ChartType: chartType, XLabel: "Bank", YLabel: "Value", Series: series},
		Source:        &ChartSource{SourceID: group.SourceID, MethodID: group.MethodID},
		Insights:      buildChartInsights(chartType, series),
	}
}

func configuredMetricIDs(input validation.InputConfig) []string {
	raw, ok := input.Parameters["metrics"].([]interface{})
	if !ok {
		return nil
	}
	var ids []string
	for _, item := range raw {
		if s, ok := item.(string); ok && s != "" {
			ids = append(ids, s)
		}
	}
	return ids
}

func findMetric(metrics []retrievers.MetricValue, id string) *retrievers.MetricValue {
	for i := range metrics {
		if metrics[i].ID == id {
			return &metrics[i]
		}
	}
	return nil
}

// pickMetric returns the configured metric when present, otherwise the
// first metric on the row.
func pickMetric(metrics []retrievers.MetricValue, id string) *retrievers.MetricValue {
	if id != "" {
		if m := findMetric(metrics, id); m != nil {
			return m
		}
	}
	if len(metrics) > 0 {
		return &metrics[0]
	}
	return nil
}

// metricFloat prefers the numeric value, falling back to parsing the
// formatted display string.
func metricFloat(m retrievers.MetricValue) *float64 {
	if m.Value != nil {
		return m.Value
	}
	return parseNumeric(m.Formatted)
}

// parseNumeric strips display punctuation and parses the remainder.
func parseNumeric(s string) *float64 {
	cleaned := strings.NewReplacer(",", "", "$", "", "%", "").Replace(s)
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return nil
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &f
}

// orderedSeries accumulates points per series name while remembering the
// order names first appeared, so output stays deterministic.
type orderedSeries struct {
	names  []string
	points map[string][]ChartPoint
}

func newOrderedSeries() *orderedSeries {
	return &orderedSeries{points: make(map[string][]ChartPoint)}
}

func (o *orderedSeries) append(name string, p ChartPoint) {
	if _, ok := o.points[name]; !ok {
		o.names = append(o.names, name)
	}
	o.points[name] = append(o.points[name], p)
}

func (o *orderedSeries) len() int { return len(o.names) }

func (o *orderedSeries) uniquePeriods() int {
	seen := make(map[string]struct{})
	for _, points := range o.points {
		for _, p := range points {
			seen[p.X] = struct{}{}
		}
	}
	return len(seen)
}

// sorted returns each series with its points in chronological period order.
func (o *orderedSeries) sorted() []ChartSeries {
	series := make([]ChartSeries, 0, len(o.names))
	for _, name := range o.names {
		points := append([]ChartPoint(nil), o.points[name]...)
		sort.SliceStable(points, func(i, j int) bool {
			return periodLess(points[i].X, points[j].X)
		})
		series = append(series, ChartSeries{Name: name, Points: points})
	}
	return series
}

// periodLess orders "2024 Q3" style labels; unparseable labels sort last
// by their text.
func periodLess(a, b string) bool {
	ay, aq, aok := parsePeriodLabel(a)
	by, bq, bok := parsePeriodLabel(b)
	if aok != bok {
		return aok
	}
	if !aok {
		return a < b
	}
	if ay != by {
		return ay < by
	}
	if aq != bq {
		return aq < bq
	}
	return a < b
}

func parsePeriodLabel(label string) (year, quarter int, ok bool) {
	fields := strings.Fields(label)
	if len(fields) != 2 {
		return 0, 0, false
	}
	year, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, false
	}
	q := strings.ToUpper(fields[1])
	if len(q) != 2 || q[0] != 'Q' {
		return 0, 0, false
	}
	quarter = int(q[1] - '0')
	if quarter < 1 || quarter > 4 {
		return 0, 0, false
	}
	return year, quarter, true
}

// scoreChart favors richer charts: each series is worth more than any
// number of extra points.
func scoreChart(doc *ChartDocument) int {
	if doc == nil || len(doc.Chart.Series) == 0 {
		return 0
	}
	points := 0
	for _, s := range doc.Chart.Series {
		points += len(s.Points)
	}
	return len(doc.Chart.Series)*100 + points
}

// buildChartInsights produces short reader-facing takeaways. Line charts
// get momentum framing; bar charts get top/bottom framing off the first
// series.
func buildChartInsights(chartType string, series []ChartSeries) []string {
	if len(series) == 0 {
		return nil
	}

	totalPoints := 0
	for _, s := range series {
		totalPoints += len(s.Points)
	}
	insights := []string{fmt.Sprintf("Covers %d series across %d plotted points.", len(series), totalPoints)}

	if strings.ToLower(chartType) == "line" {
		type delta struct {
			name  string
			value float64
		}
		var deltas []delta
		for _, s := range series {
			if len(s.Points) < 2 {
				continue
			}
			name := s.Name
			if name == "" {
				name = "Series"
			}
			deltas = append(deltas, delta{name, s.Points[len(s.Points)-1].Y - s.Points[0].Y})
		}
		if len(deltas) > 0 {
			strongest, weakest := deltas[0], deltas[0]
			for _, d := range deltas[1:] {
				if d.value > strongest.value {
					strongest = d
				}
				if d.value < weakest.value {
					weakest = d
				}
			}
			insights = append(insights, fmt.Sprintf("Strongest momentum: %s (%+.2f over the shown horizon).", strongest.name, strongest.value))
			if weakest.name != strongest.name {
				insights = append(insights, fmt.Sprintf("Weakest momentum: %s (%+.2f over the shown horizon).", weakest.name, weakest.value))
			}
		}
		return insights
	}

	first := series[0]
	if len(first.Points) == 0 {
		return insights
	}
	top, bottom := first.Points[0], first.Points[0]
	for _, p := range first.Points[1:] {
		if p.Y > top.Y {
			top = p
		}
		if p.Y < bottom.Y {
			bottom = p
		}
	}
	name := first.Name
	if name == "" {
		name = "Primary series"
	}
	insights = append(insights, fmt.Sprintf("Highest in %s: %s (%.2f).", name, top.X, top.Y))
	if top.X != bottom.X {
		insights = append(insights, fmt.Sprintf("Lowest in %s: %s (%.2f).", name, bottom.X, bottom.Y))
	}
	return insights
}

// summarizeChart renders the one-line cross-subsection context summary for
// a chart document.
func summarizeChart(doc ChartDocument) string {
	title := doc.Title
	if title == "" {
		title = "Untitled"
	}
	chartType := doc.Chart.ChartType
	if chartType == "" {
		chartType = "bar"
	}
	return fmt.Sprintf("Chart '%s' (%s, %d series)", title, chartType, len(doc.Chart.Series))
}
