package domain

import "fmt"

// RiskLevel is the categorical credit risk of a client.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// RiskLevelFor maps a 0-100 score to its level band.
func RiskLevelFor(score float64) RiskLevel {
	switch {
	case score < 35:
		return RiskLow
	case score < 65:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// Recommendation returns the fixed advice attached to the level.
func (l RiskLevel) Recommendation() string {
	switch l {
	case RiskLow:
		return "Client fiable : le crédit peut être accordé normalement."
	case RiskMedium:
		return "Surveiller ce client : limiter le montant des nouveaux crédits."
	case RiskHigh:
		return "Risque élevé : exiger un paiement comptant ou un acompte avant tout nouveau crédit."
	default:
		panic(fmt.Sprintf("unknown risk level %q", string(l)))
	}
}

// RiskScore is the credit risk assessment of one client with outstanding credit.
type RiskScore struct {
	ClientID       string       `json:"clientId"`
	ClientName     string       `json:"clientName"`
	Score          float64      `json:"score"`
	Level          RiskLevel    `json:"riskLevel"`
	Reasons        []string     `json:"reasons"`
	Recommendation string       `json:"recommendation"`
	Outstanding    float64      `json:"outstanding"`
	Adjustments    []Adjustment `json:"adjustments,omitempty"`
}
