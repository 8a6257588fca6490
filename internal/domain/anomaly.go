package domain

import "fmt"

// Severity grades anomaly flags and coaching warnings.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rank returns a sortable weight, higher is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		panic(fmt.Sprintf("unknown severity %q", string(s)))
	}
}

// AnomalyKind identifies what an anomaly flag detected.
type AnomalyKind string

const (
	AnomalyUnusualAmount       AnomalyKind = "unusual_amount"
	AnomalyHighCreditNewClient AnomalyKind = "high_credit_new_client"
	AnomalyDuplicate           AnomalyKind = "duplicate"
)

// ProposedSale is a sale about to be recorded.
type ProposedSale struct {
	ClientID string        `json:"clientId"`
	Total    float64       `json:"total"`
	Status   PaymentStatus `json:"status"`
}

// AnomalyFlag is one detector finding with the data it was based on.
type AnomalyFlag struct {
	Kind     AnomalyKind        `json:"kind"`
	Severity Severity           `json:"severity"`
	Message  string             `json:"message"`
	Data     map[string]float64 `json:"data"`
}

// AnomalyCheck is the detector output for one proposed sale.
type AnomalyCheck struct {
	Sale  ProposedSale  `json:"sale"`
	Flags []AnomalyFlag `json:"flags"`
}

// Flagged reports whether any flag fired.
func (c *AnomalyCheck) Flagged() bool {
	return len(c.Flags) > 0
}
