// Package retrievers turns resolved data source parameters into raw
// financial, transcript, and stock price records for the Canadian Big 6
// banks. Each query yields exactly one result row; row-level failures are
// reported on the row itself so one empty period never aborts a batch.
package retrievers

import (
	"context"
	"fmt"
)

// PeriodQuery addresses one bank/period combination.
type PeriodQuery struct {
	BankID        string
	FiscalYear    int
	FiscalQuarter string
}

// Period renders the canonical "2024 Q3" label used across results.
func (q PeriodQuery) Period() string {
	return fmt.Sprintf("%d %s", q.FiscalYear, q.FiscalQuarter)
}

// MetricValue is one financial metric on one result row.
type MetricValue struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Value     *float64 `json:"value"`
	Unit      string   `json:"unit,omitempty"`
	Formatted string   `json:"formatted,omitempty"`
}

// FinancialResult is the outcome of one financials query.
type FinancialResult struct {
	BankID   string        `json:"bank_id"`
	BankName string        `json:"bank_name"`
	Period   string        `json:"period"`
	Metrics  []MetricValue `json:"metrics,omitempty"`
	Err      string        `json:"error,omitempty"`
}

// TranscriptResult is the outcome of one transcripts query. With section
// "both", ManagementDiscussion and QA are populated instead of Content.
type TranscriptResult struct {
	BankID               string `json:"bank_id"`
	BankName             string `json:"bank_name"`
	Period               string `json:"period"`
	CallDate             string `json:"call_date,omitempty"`
	Section              string `json:"section,omitempty"`
	Content              string `json:"content,omitempty"`
	ManagementDiscussion string `json:"management_discussion,omitempty"`
	QA                   string `json:"qa,omitempty"`
	Err                  string `json:"error,omitempty"`
}

// StockPriceResult is the outcome of one stock price query.
type StockPriceResult struct {
	BankID        string   `json:"bank_id"`
	BankName      string   `json:"bank_name"`
	Ticker        string   `json:"ticker,omitempty"`
	Period        string   `json:"period"`
	PeriodEndDate string   `json:"period_end_date,omitempty"`
	ClosePrice    *float64 `json:"close_price"`
	QoQChangePct  *float64 `json:"qoq_change_pct"`
	YoYChangePct  *float64 `json:"yoy_change_pct"`
	Err           string   `json:"error,omitempty"`
}

// NumericField returns a stock row's value for the given y_key hint.
func (r StockPriceResult) NumericField(key string) *float64 {
	switch key {
	case "", "close_price":
		return r.ClosePrice
	case "qoq_change_pct":
		return r.QoQChangePct
	case "yoy_change_pct":
		return r.YoYChangePct
	}
	return nil
}

// Service is the retrieval collaborator consumed by the orchestrator.
type Service interface {
	// SearchFinancials returns metric values per query. An empty metrics
	// list means all catalog metrics.
	SearchFinancials(ctx context.Context, queries []PeriodQuery, metrics []string) ([]FinancialResult, error)

	// SearchTranscripts returns earnings call transcript sections.
	// Section is management_discussion, qa, or both.
	SearchTranscripts(ctx context.Context, queries []PeriodQuery, section string) ([]TranscriptResult, error)

	// SearchStockPrices returns end-of-quarter prices with period-over-
	// period changes.
	SearchStockPrices(ctx context.Context, queries []PeriodQuery) ([]StockPriceResult, error)
}
