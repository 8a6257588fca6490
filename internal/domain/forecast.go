package domain

// Confidence grades how much history backs a forecast.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Trend classifies the multi-month sales direction.
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendStable     Trend = "stable"
	TrendDecreasing Trend = "decreasing"
)

// Forecast projects the current month's revenue.
type Forecast struct {
	CurrentTotal      float64    `json:"currentTotal"`
	SalesCount        int        `json:"salesCount"`
	DaysElapsed       int        `json:"daysElapsed"`
	DaysRemaining     int        `json:"daysRemaining"`
	DailyAverage      float64    `json:"dailyAverage"`
	EstimatedTotal    float64    `json:"estimatedTotal"`
	EstimatedLow      float64    `json:"estimatedLow"`
	EstimatedHigh     float64    `json:"estimatedHigh"`
	LastMonthTotal    float64    `json:"lastMonthTotal"`
	GrowthVsLastMonth float64    `json:"growthVsLastMonth"`
	Confidence        Confidence `json:"confidence"`
	Trend             Trend      `json:"trend"`
	Message           string     `json:"message"`
	Recommendation    string     `json:"recommendation"`
}
