package domain

// OpportunityType tags a sales opportunity.
type OpportunityType string

const (
	OpportunityWinBack  OpportunityType = "win_back"
	OpportunityThankYou OpportunityType = "thank_you"
)

// WarningType tags a coaching warning.
type WarningType string

const (
	WarningCreditExposure  WarningType = "credit_exposure"
	WarningRevenueDrop     WarningType = "revenue_drop"
	WarningInactiveClients WarningType = "inactive_clients"
)

// Opportunity is a suggested action on one client.
type Opportunity struct {
	Type       OpportunityType `json:"type"`
	ClientID   string          `json:"clientId"`
	ClientName string          `json:"clientName"`
	Message    string          `json:"message"`
	Priority   int             `json:"priority"`
}

// Warning is a business-level alert.
type Warning struct {
	Type     WarningType `json:"type"`
	Severity Severity    `json:"severity"`
	Message  string      `json:"message"`
}

// WeeklySummary covers the trailing seven days.
type WeeklySummary struct {
	Revenue          float64 `json:"revenue"`
	SalesCount       int     `json:"salesCount"`
	BestDay          string  `json:"bestDay,omitempty"`
	BestDayRevenue   float64 `json:"bestDayRevenue"`
	WorstDay         string  `json:"worstDay,omitempty"`
	WorstDayRevenue  float64 `json:"worstDayRevenue"`
	TopClientID      string  `json:"topClientId,omitempty"`
	TopClientName    string  `json:"topClientName,omitempty"`
	TopClientRevenue float64 `json:"topClientRevenue"`
}

// Coaching bundles the advisor output.
type Coaching struct {
	DailyTip      string        `json:"dailyTip"`
	WeeklySummary WeeklySummary `json:"weeklySummary"`
	Opportunities []Opportunity `json:"opportunities"`
	Warnings      []Warning     `json:"warnings"`
}
