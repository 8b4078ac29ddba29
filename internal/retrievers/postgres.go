package retrievers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/alexwday/report-designer/internal/common/database"
	"github.com/alexwday/report-designer/internal/common/errors"
	"github.com/alexwday/report-designer/internal/common/logger"
	"github.com/alexwday/report-designer/internal/common/metrics"
)

// PostgresRetriever serves financials and stock prices from the warehouse
// tables.
type PostgresRetriever struct {
	db  *database.PostgresClient
	log logger.Logger
}

func NewPostgresRetriever(db *database.PostgresClient, log logger.Logger) *PostgresRetriever {
	return &PostgresRetriever{db: db, log: log}
}

func (r *PostgresRetriever) SearchFinancials(ctx context.Context, queries []PeriodQuery, metricIDs []string) ([]FinancialResult, error) {
	if len(metricIDs) == 0 {
		metricIDs = MetricIDs()
	}

	results := make([]FinancialResult, 0, len(queries))
	for _, q := range queries {
		result := FinancialResult{
			BankID:   q.BankID,
			BankName: BankName(q.BankID),
			Period:   q.Period(),
		}

		placeholders := make([]string, len(metricIDs))
		args := []interface{}{q.BankID, q.FiscalYear, q.FiscalQuarter}
		for i, id := range metricIDs {
			placeholders[i] = fmt.Sprintf("$%d", len(args)+1)
			args = append(args, id)
		}

		rows, err := r.db.Query(ctx, fmt.Sprintf(`
			SELECT metric_id, metric_name, value, unit, formatted_value
			FROM financials
			WHERE bank_id = $1
			  AND fiscal_year = $2
			  AND fiscal_quarter = $3
			  AND metric_id IN (%s)
			ORDER BY metric_id`, strings.Join(placeholders, ",")), args...)
		if err != nil {
			metrics.RetrievalRequests.WithLabelValues("financials", "error").Inc()
			return nil, errors.NewQueryExecutionFailedError("financials", err)
		}

		for rows.Next() {
			var (
				m         MetricValue
				value     sql.NullFloat64
				unit      sql.NullString
				formatted sql.NullString
			)
			if err := rows.Scan(&m.ID, &m.Name, &value, &unit, &formatted); err != nil {
				rows.Close()
				return nil, errors.NewQueryExecutionFailedError("financials", err)
			}
			if value.Valid {
				v := value.Float64
				m.Value = &v
			}
			m.Unit = unit.String
			m.Formatted = formatted.String
			result.Metrics = append(result.Metrics, m)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, errors.NewQueryExecutionFailedError("financials", err)
		}

		if len(result.Metrics) == 0 {
			result.Err = "No financial data found for this period"
		}
		metrics.RetrievalRequests.WithLabelValues("financials", "ok").Inc()
		results = append(results, result)
	}
	return results, nil
}

func (r *PostgresRetriever) SearchStockPrices(ctx context.Context, queries []PeriodQuery) ([]StockPriceResult, error) {
	results := make([]StockPriceResult, 0, len(queries))
	for _, q := range queries {
		result := StockPriceResult{
			BankID:   q.BankID,
			BankName: BankName(q.BankID),
			Ticker:   BankTickers[q.BankID],
			Period:   q.Period(),
		}

		row := r.db.QueryRow(ctx, `
			SELECT period_end_date, close_price, qoq_change_pct, yoy_change_pct
			FROM stock_prices
			WHERE bank_id = $1
			  AND fiscal_year = $2
			  AND fiscal_quarter = $3`, q.BankID, q.FiscalYear, q.FiscalQuarter)

		var (
			endDate sql.NullTime
			close   sql.NullFloat64
			qoq     sql.NullFloat64
			yoy     sql.NullFloat64
		)
		err := row.Scan(&endDate, &close, &qoq, &yoy)
		if err == sql.ErrNoRows {
			result.Err = "No stock price data found for this period"
			metrics.RetrievalRequests.WithLabelValues("stock_prices", "ok").Inc()
			results = append(results, result)
			continue
		}
		if err != nil {
			metrics.RetrievalRequests.WithLabelValues("stock_prices", "error").Inc()
			return nil, errors.NewQueryExecutionFailedError("stock_prices", err)
		}

		if endDate.Valid {
			result.PeriodEndDate = endDate.Time.Format("2006-01-02")
		}
		result.ClosePrice = nullableFloat(close)
		result.QoQChangePct = nullableFloat(qoq)
		result.YoYChangePct = nullableFloat(yoy)
		metrics.RetrievalRequests.WithLabelValues("stock_prices", "ok").Inc()
		results = append(results, result)
	}
	return results, nil
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
