package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/alexwday/report-designer/internal/retrievers"
)

// Legacy subsections predate data source configuration. When instructions
// mention banks, periods, or metrics but no configured input produced
// context, a keyword scan over the instructions picks what to fetch.

var fallbackTriggerKeywords = []string{
	"earnings", "transcript", "revenue", "profit", "eps", "roe",
	"capital", "cet1", "stock", "price", "financial", "compare",
	"bank", "quarter", "q1", "q2", "q3", "q4", "fy2024", "fy2025",
}

var fallbackBankKeywords = []struct {
	keyword string
	bankID  string
}{
	{"royal", "RY"}, {"ry", "RY"},
	{"td", "TD"}, {"toronto-dominion", "TD"},
	{"bmo", "BMO"}, {"montreal", "BMO"},
	{"scotiabank", "BNS"}, {"bns", "BNS"}, {"scotia", "BNS"},
	{"cibc", "CM"}, {"cm", "CM"},
	{"national", "NA"}, {"na", "NA"},
}

func needsFallbackData(instructions string) bool {
	lower := strings.ToLower(instructions)
	for _, kw := range fallbackTriggerKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func containsAny(s string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// keywordDataContext fetches data based on instruction keywords alone.
func (o *Orchestrator) keywordDataContext(ctx context.Context, instructions string) string {
	lower := strings.ToLower(instructions)

	var banks []string
	seen := map[string]bool{}
	for _, entry := range fallbackBankKeywords {
		if strings.Contains(lower, entry.keyword) && !seen[entry.bankID] {
			seen[entry.bankID] = true
			banks = append(banks, entry.bankID)
		}
	}
	if len(banks) == 0 {
		banks = []string{"RY", "TD", "BMO"}
	}

	quarter := "Q4"
	switch {
	case strings.Contains(lower, "q1"):
		quarter = "Q1"
	case strings.Contains(lower, "q2"):
		quarter = "Q2"
	case strings.Contains(lower, "q3"):
		quarter = "Q3"
	}

	fiscalYear := 2024
	if strings.Contains(lower, "2025") {
		fiscalYear = 2025
	}

	queries := make([]retrievers.PeriodQuery, 0, len(banks))
	for _, bankID := range banks {
		queries = append(queries, retrievers.PeriodQuery{
			BankID:        bankID,
			FiscalYear:    fiscalYear,
			FiscalQuarter: quarter,
		})
	}

	var parts []string

	if containsAny(lower, "transcript", "earnings", "call", "management", "ceo", "cfo") {
		transcriptQueries := queries
		if len(transcriptQueries) > 2 {
			transcriptQueries = transcriptQueries[:2]
		}
		results, err := o.retrievers.SearchTranscripts(ctx, transcriptQueries, "management_discussion")
		if err == nil {
			for _, result := range results {
				if result.Err != "" {
					continue
				}
				parts = append(parts, fmt.Sprintf("### %s FY%d %s - Management Discussion", result.BankID, fiscalYear, quarter))
				content := result.Content
				if content == "" {
					content = result.ManagementDiscussion
				}
				if content != "" {
					parts = append(parts, truncate(content, 1500))
				}
			}
		}
	}

	if containsAny(lower, "revenue", "profit", "eps", "roe", "capital", "ratio", "financial", "metric") {
		var metricIDs []string
		if strings.Contains(lower, "revenue") {
			metricIDs = append(metricIDs, "total_revenue")
		}
		if strings.Contains(lower, "eps") {
			metricIDs = append(metricIDs, "diluted_eps")
		}
		if strings.Contains(lower, "roe") {
			metricIDs = append(metricIDs, "roe")
		}
		if strings.Contains(lower, "capital") || strings.Contains(lower, "cet1") {
			metricIDs = append(metricIDs, "cet1_ratio")
		}
		if len(metricIDs) == 0 {
			metricIDs = []string{"total_revenue", "diluted_eps", "roe"}
		}
		if len(metricIDs) > 3 {
			metricIDs = metricIDs[:3]
		}

		results, err := o.retrievers.SearchFinancials(ctx, queries, metricIDs)
		if err == nil {
			parts = append(parts, fmt.Sprintf("### Financial Metrics (FY%d %s)", fiscalYear, quarter))
			for _, result := range results {
				if result.Err != "" {
					continue
				}
				for i, metric := range result.Metrics {
					if i >= 3 {
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
					parts = append(parts, fmt.Sprintf("- %s %s: %s", result.BankID, name, value))
				}
			}
		}
	}

	if containsAny(lower, "stock", "price", "share", "performance") {
		results, err := o.retrievers.SearchStockPrices(ctx, queries)
		if err == nil {
			parts = append(parts, fmt.Sprintf("### Stock Prices (FY%d %s)", fiscalYear, quarter))
			for _, result := range results {
				if result.Err != "" || result.ClosePrice == nil {
					continue
				}
				qoq := 0.0
				if result.QoQChangePct != nil {
					qoq = *result.QoQChangePct
				}
				yoy := 0.0
				if result.YoYChangePct != nil {
					yoy = *result.YoYChangePct
				}
				parts = append(parts, fmt.Sprintf("- %s: $%.2f (QoQ: %+.1f%%, YoY: %+.1f%%)", result.BankID, *result.ClosePrice, qoq, yoy))
			}
		}
	}

	return strings.Join(parts, "\n")
}
