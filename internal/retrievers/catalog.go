package retrievers

// Metric is a catalog entry for one of the 25 tracked financial metrics.
type Metric struct {
	ID       string
	Name     string
	Category string
}

// AvailableMetrics is the full metric catalog, grouped by category.
var AvailableMetrics = []Metric{
	// Profitability
	{"total_revenue", "Total Revenue", "profitability"},
	{"net_income", "Net Income", "profitability"},
	{"diluted_eps", "Diluted EPS", "profitability"},
	{"roe", "Return on Equity", "profitability"},
	{"roa", "Return on Assets", "profitability"},
	// Capital
	{"cet1_ratio", "CET1 Ratio", "capital"},
	{"tier1_ratio", "Tier 1 Capital Ratio", "capital"},
	{"total_capital_ratio", "Total Capital Ratio", "capital"},
	{"book_value_per_share", "Book Value per Share", "capital"},
	// Efficiency
	{"nim", "Net Interest Margin", "efficiency"},
	{"efficiency_ratio", "Efficiency Ratio", "efficiency"},
	{"operating_leverage", "Operating Leverage", "efficiency"},
	{"net_interest_income", "Net Interest Income", "efficiency"},
	// Credit
	{"pcl", "Provision for Credit Losses", "credit"},
	{"pcl_ratio", "PCL Ratio", "credit"},
	{"gross_impaired_loans", "Gross Impaired Loans", "credit"},
	{"gil_ratio", "Gross Impaired Loan Ratio", "credit"},
	// Balance Sheet
	{"total_assets", "Total Assets", "balance_sheet"},
	{"total_loans", "Total Loans", "balance_sheet"},
	{"total_deposits", "Total Deposits", "balance_sheet"},
	{"loan_to_deposit_ratio", "Loan-to-Deposit Ratio", "balance_sheet"},
	{"common_equity", "Common Equity", "balance_sheet"},
	// Other
	{"non_interest_revenue", "Non-Interest Revenue", "other"},
	{"aum", "Assets Under Management", "other"},
	{"dividend_per_share", "Dividend per Share", "other"},
}

// MetricIDs returns every catalog metric id, in catalog order.
func MetricIDs() []string {
	ids := make([]string, len(AvailableMetrics))
	for i, m := range AvailableMetrics {
		ids[i] = m.ID
	}
	return ids
}
