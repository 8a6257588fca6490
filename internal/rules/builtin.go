package rules

import (
	"github.com/google/cel-go/cel"
	"github.com/opensource-finance/tally/internal/domain"
)

// Risk scoring variables, computed per client by the risk scorer.
const (
	VarSalesCount       = "sales_count"
	VarPaidRatio        = "paid_ratio"
	VarTenureDays       = "tenure_days"
	VarExposure         = "exposure"
	VarMeanSale         = "mean_sale"
	VarDelinquentCount  = "delinquent_count"
	VarIntervalMean     = "interval_mean"
	VarIntervalVariance = "interval_variance"
)

// RiskBaseScore is the neutral credit risk score before adjustments.
const RiskBaseScore = 50.0

// RiskVariables declares the variables available to credit risk rules.
func RiskVariables() Variables {
	return Variables{
		VarSalesCount:       cel.IntType,
		VarPaidRatio:        cel.DoubleType,
		VarTenureDays:       cel.IntType,
		VarExposure:         cel.DoubleType,
		VarMeanSale:         cel.DoubleType,
		VarDelinquentCount:  cel.IntType,
		VarIntervalMean:     cel.DoubleType,
		VarIntervalVariance: cel.DoubleType,
	}
}

// RiskRules returns the five credit risk adjustments, in reason order.
func RiskRules() []*domain.ScoringRule {
	return []*domain.ScoringRule{
		{
			ID:          "payment-history",
			Name:        "Payment history",
			Description: "Share of the client's sales that are fully settled",
			Guard:       "sales_count >= 3",
			Cases: []domain.RuleCase{
				{When: "paid_ratio >= 0.9", Delta: -20, Reason: "Excellent historique de paiement (90 % ou plus des achats réglés)"},
				{When: "paid_ratio >= 0.7", Delta: -10, Reason: "Bon historique de paiement (70 % ou plus des achats réglés)"},
				{When: "paid_ratio < 0.5", Delta: 25, Reason: "Historique de paiement faible (moins de la moitié des achats réglés)"},
			},
			Enabled: true,
		},
		{
			ID:          "tenure",
			Name:        "Tenure",
			Description: "Days since the client's first sale",
			Cases: []domain.RuleCase{
				{When: "tenure_days > 180", Delta: -15, Reason: "Client fidèle depuis plus de 6 mois"},
				{When: "tenure_days < 30", Delta: 10, Reason: "Nouveau client (moins de 30 jours)"},
			},
			Enabled: true,
		},
		{
			ID:          "exposure",
			Name:        "Current exposure",
			Description: "Outstanding credit against the client's mean sale amount",
			Guard:       "mean_sale > 0.0",
			Cases: []domain.RuleCase{
				{When: "exposure > 3.0 * mean_sale", Delta: 20, Reason: "Crédit en cours supérieur à 3 fois l'achat moyen"},
				{When: "exposure < mean_sale", Delta: -10, Reason: "Crédit en cours inférieur à l'achat moyen"},
			},
			Enabled: true,
		},
		{
			ID:          "delinquency",
			Name:        "Delinquency",
			Description: "Unpaid credit sales older than the delinquency age",
			Cases: []domain.RuleCase{
				{When: "delinquent_count > 3", Delta: 25, Reason: "Plus de 3 crédits impayés depuis plus de 30 jours"},
				{When: "delinquent_count >= 1", Delta: 10, Reason: "Crédit impayé depuis plus de 30 jours"},
			},
			Enabled: true,
		},
		{
			ID:          "regularity",
			Name:        "Purchase regularity",
			Description: "Variance of inter-purchase intervals relative to their mean",
			Guard:       "sales_count >= 5 && interval_mean > 0.0",
			Cases: []domain.RuleCase{
				{When: "interval_variance < 0.3 * interval_mean", Delta: -10, Reason: "Achats réguliers"},
			},
			Enabled: true,
		},
	}
}
