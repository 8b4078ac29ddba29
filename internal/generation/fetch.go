package generation

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/alexwday/report-designer/internal/binding"
	"github.com/alexwday/report-designer/internal/retrievers"
	"github.com/alexwday/report-designer/internal/validation"
)

// Row caps keep prompt context within budget; charts consume the full
// result sets instead.
const (
	maxTranscriptRows    = 4
	maxFinancialRows     = 8
	maxStockRows         = 10
	transcriptExcerptLen = 1400
)

// buildQueries converts resolved method parameters into period queries.
// Parameters that survived post-resolution validation are literals, so any
// leftover malformed entry is silently skipped rather than failed.
func buildQueries(input validation.InputConfig) []retrievers.PeriodQuery {
	params := input.Parameters

	switch input.MethodID {
	case "by_quarter":
		if q, ok := toPeriodQuery(params["bank_id"], params["fiscal_year"], params["fiscal_quarter"]); ok {
			return []retrievers.PeriodQuery{q}
		}
		return nil

	case "compare_banks":
		bankIDs, ok := params["bank_ids"].([]interface{})
		if !ok {
			return nil
		}
		var queries []retrievers.PeriodQuery
		for _, bankID := range bankIDs {
			if q, ok := toPeriodQuery(bankID, params["fiscal_year"], params["fiscal_quarter"]); ok {
				queries = append(queries, q)
			}
		}
		return queries

	case "trend":
		if input.SourceID != "stock_prices" {
			break
		}
		periods, ok := params["periods"].([]interface{})
		if !ok {
			return nil
		}
		var queries []retrievers.PeriodQuery
		for _, raw := range periods {
			period, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			if q, ok := toPeriodQuery(params["bank_id"], period["fiscal_year"], period["fiscal_quarter"]); ok {
				queries = append(queries, q)
			}
		}
		return queries
	}

	// Generic path for configs carrying pre-built query objects.
	raw, ok := params["queries"].([]interface{})
	if !ok {
		return nil
	}
	var queries []retrievers.PeriodQuery
	for _, item := range raw {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if q, ok := toPeriodQuery(obj["bank_id"], obj["fiscal_year"], obj["fiscal_quarter"]); ok {
			queries = append(queries, q)
		}
	}
	return queries
}

func toPeriodQuery(bankID, fiscalYear, fiscalQuarter interface{}) (retrievers.PeriodQuery, bool) {
	bank, ok := bankID.(string)
	if !ok || bank == "" {
		return retrievers.PeriodQuery{}, false
	}
	year, ok := binding.NormalizeYear(fiscalYear)
	if !ok {
		return retrievers.PeriodQuery{}, false
	}
	quarter, ok := binding.NormalizeQuarter(fiscalQuarter)
	if !ok {
		return retrievers.PeriodQuery{}, false
	}
	return retrievers.PeriodQuery{BankID: bank, FiscalYear: year, FiscalQuarter: quarter}, true
}

func transcriptSection(params map[string]interface{}) string {
	section, _ := params["section"].(string)
	switch section {
	case "management_discussion", "qa", "both":
		return section
	}
	return "both"
}

func metricFilter(params map[string]interface{}) []string {
	raw, ok := params["metrics"].([]interface{})
	if !ok {
		return nil
	}
	var metrics []string
	for _, item := range raw {
		if s, ok := item.(string); ok && s != "" {
			metrics = append(metrics, s)
		}
	}
	return metrics
}

// fetchGroups retrieves raw results for every input, merged by
// (source_id, method_id) with the first input of each pair kept as the
// representative. Retrieval failures empty the group rather than abort.
func (o *Orchestrator) fetchGroups(ctx context.Context, inputs []validation.InputConfig) []RetrievedGroup {
	index := make(map[string]int)
	var groups []RetrievedGroup

	for _, input := range inputs {
		if input.SourceID == "" || input.MethodID == "" {
			continue
		}
		key := input.SourceID + "." + input.MethodID
		pos, ok := index[key]
		if !ok {
			pos = len(groups)
			index[key] = pos
			groups = append(groups, RetrievedGroup{
				SourceID: input.SourceID,
				MethodID: input.MethodID,
				Input:    input,
			})
		}

		queries := buildQueries(input)
		if len(queries) == 0 {
			continue
		}

		switch input.SourceID {
		case "transcripts":
			results, err := o.retrievers.SearchTranscripts(ctx, queries, transcriptSection(input.Parameters))
			if err != nil {
				o.log.WithError(err).Warn("transcript retrieval failed", map[string]interface{}{"method_id": input.MethodID})
				continue
			}
			groups[pos].Transcripts = append(groups[pos].Transcripts, results...)
		case "financials":
			results, err := o.retrievers.SearchFinancials(ctx, queries, metricFilter(input.Parameters))
			if err != nil {
				o.log.WithError(err).Warn("financials retrieval failed", map[string]interface{}{"method_id": input.MethodID})
				continue
			}
			groups[pos].Financials = append(groups[pos].Financials, results...)
		case "stock_prices":
			results, err := o.retrievers.SearchStockPrices(ctx, queries)
			if err != nil {
				o.log.WithError(err).Warn("stock price retrieval failed", map[string]interface{}{"method_id": input.MethodID})
				continue
			}
			groups[pos].StockPrices = append(groups[pos].StockPrices, results...)
		}
	}
	return groups
}

// fetchDataContext renders retriever data for every configured input as
// prompt context blocks.
func (o *Orchestrator) fetchDataContext(ctx context.Context, resolved map[string]interface{}) string {
	inputs := validation.ExtractInputs(resolved)
	if len(inputs) == 0 {
		return ""
	}

	var blocks []string
	for i, input := range inputs {
		block := o.fetchInputContext(ctx, input)
		if block == "" {
			continue
		}
		header := fmt.Sprintf("## Data Input %d: %s.%s", i+1, input.SourceID, input.MethodID)
		blocks = append(blocks, header+"\n"+block)
	}
	return strings.Join(blocks, "\n\n")
}

func (o *Orchestrator) fetchInputContext(ctx context.Context, input validation.InputConfig) string {
	queries := buildQueries(input)
	if len(queries) == 0 {
		return ""
	}

	switch input.SourceID {
	case "transcripts":
		section := transcriptSection(input.Parameters)
		results, err := o.retrievers.SearchTranscripts(ctx, queries, section)
		if err != nil {
			return ""
		}
		return formatTranscriptContext(results, section)
	case "financials":
		metrics := metricFilter(input.Parameters)
		results, err := o.retrievers.SearchFinancials(ctx, queries, metrics)
		if err != nil {
			return ""
		}
		return formatFinancialContext(results, metrics)
	case "stock_prices":
		results, err := o.retrievers.SearchStockPrices(ctx, queries)
		if err != nil {
			return ""
		}
		return formatStockContext(results)
	}
	return ""
}

func formatTranscriptContext(results []retrievers.TranscriptResult, section string) string {
	lines := []string{fmt.Sprintf("### Transcript Data (section: %s)", section)}
	added := 0
	for i, result := range results {
		if i >= maxTranscriptRows {
			break
		}
		if result.Err != "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s %s", result.BankID, result.Period))
		content := result.Content
		if content == "" {
			content = result.ManagementDiscussion
		}
		if content != "" {
			lines = append(lines, truncate(content, transcriptExcerptLen))
			added++
		}
	}
	if added == 0 {
		return ""
	}
	return strings.Join(lines, "\n")
}

func formatFinancialContext(results []retrievers.FinancialResult, metrics []string) string {
	label := "default metrics"
	if len(metrics) > 0 {
		label = strings.Join(metrics, ", ")
	}
	lines := []string{fmt.Sprintf("### Financial Metrics (%s)", label)}
	added := 0
	for i, result := range results {
		if i >= maxFinancialRows {
			break
		}
		if result.Err != "" {
			continue
		}
		for j, metric := range result.Metrics {
			if j >= 6 {
				break
			}
			name := metric.Name
			if name == "" {
				name = metric.ID
			}
			value := metric.Formatted
			if value == "" && metric.Value != nil {
				value = fmt.Sprintf("%g", *metric.Value)
			}
			lines = append(lines, fmt.Sprintf("- %s %s %s: %s", result.BankID, result.Period, name, value))
			added++
		}
	}
	if added == 0 {
		return ""
	}
	return strings.Join(lines, "\n")
}

func formatStockContext(results []retrievers.StockPriceResult) string {
	lines := []string{"### Stock Prices"}
	added := 0
	for i, result := range results {
		if i >= maxStockRows {
			break
		}
		if result.Err != "" || result.ClosePrice == nil {
			continue
		}
		lines = append(lines, fmt.Sprintf(
			"- %s %s: $%.2f (QoQ: %s, YoY: %s)",
			result.BankID, result.Period, *result.ClosePrice,
			changeDisplay(result.QoQChangePct), changeDisplay(result.YoYChangePct),
		))
		added++
	}
	if added == 0 {
		return ""
	}
	return strings.Join(lines, "\n")
}

func changeDisplay(pct *float64) string {
	if pct == nil {
		return "n/a"
	}
	return fmt.Sprintf("%+.1f%%", *pct)
}

// truncate trims s to at most limit bytes without splitting a UTF-8 rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
