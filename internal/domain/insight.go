package domain

// InsightType tags a business-level observation.
type InsightType string

const (
	InsightCashFlow         InsightType = "cash_flow"
	InsightCreditClients    InsightType = "credit_clients"
	InsightMonthlyTarget    InsightType = "monthly_target"
	InsightBestDay          InsightType = "best_day"
	InsightTopClients       InsightType = "top_clients"
	InsightCreditDependency InsightType = "credit_dependency"
	InsightGrowth           InsightType = "growth"
	InsightDecline          InsightType = "decline"
)

// Insight is one ranked observation for the dashboard.
type Insight struct {
	Type     InsightType `json:"type"`
	Title    string      `json:"title"`
	Message  string      `json:"message"`
	Action   string      `json:"action,omitempty"`
	Priority int         `json:"priority"`
}
