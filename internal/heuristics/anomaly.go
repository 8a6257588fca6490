package heuristics

import (
	"fmt"
	"time"

	"github.com/opensource-finance/tally/internal/domain"
	"github.com/opensource-finance/tally/internal/ledger"
)

// minHistoryForStats is the history size below which amounts are not compared.
const minHistoryForStats = 5

// DetectAnomalies checks a proposed sale against the recorded history.
// Flags are returned in discovery order.
func DetectAnomalies(snap *ledger.Snapshot, sale domain.ProposedSale, now time.Time, policy domain.PolicyConfig) domain.AnomalyCheck {
	check := domain.AnomalyCheck{Sale: sale, Flags: make([]domain.AnomalyFlag, 0)}

	if flag, ok := unusualAmount(snap, sale); ok {
		check.Flags = append(check.Flags, flag)
	}

	if sale.ClientID == "" {
		return check
	}

	if flag, ok := highCreditNewClient(snap, sale, policy); ok {
		check.Flags = append(check.Flags, flag)
	}
	if flag, ok := duplicate(snap, sale, now, policy); ok {
		check.Flags = append(check.Flags, flag)
	}

	return check
}

func unusualAmount(snap *ledger.Snapshot, sale domain.ProposedSale) (domain.AnomalyFlag, bool) {
	if len(snap.Sales) < minHistoryForStats {
		return domain.AnomalyFlag{}, false
	}

	totals := make([]float64, 0, len(snap.Sales))
	for _, s := range snap.Sales {
		totals = append(totals, s.Total)
	}
	mean := ledger.Mean(totals)
	stddev := ledger.StdDev(totals)
	threshold := mean + 3*stddev

	if sale.Total <= threshold {
		return domain.AnomalyFlag{}, false
	}

	return domain.AnomalyFlag{
		Kind:     domain.AnomalyUnusualAmount,
		Severity: domain.SeverityHigh,
		Message: fmt.Sprintf("Montant inhabituel : %s alors que la vente moyenne est de %s.",
			ledger.FormatCFA(sale.Total), ledger.FormatCFA(mean)),
		Data: map[string]float64{
			"total":     sale.Total,
			"mean":      mean,
			"stddev":    stddev,
			"threshold": threshold,
			"history":   float64(len(totals)),
		},
	}, true
}

func highCreditNewClient(snap *ledger.Snapshot, sale domain.ProposedSale, policy domain.PolicyConfig) (domain.AnomalyFlag, bool) {
	prior := len(snap.SalesOf(sale.ClientID))
	if prior >= policy.NewClientSales || !sale.Status.IsCredit() || sale.Total <= policy.NewClientCreditLimit {
		return domain.AnomalyFlag{}, false
	}

	return domain.AnomalyFlag{
		Kind:     domain.AnomalyHighCreditNewClient,
		Severity: domain.SeverityMedium,
		Message: fmt.Sprintf("Crédit élevé (%s) pour un client avec seulement %d achat(s).",
			ledger.FormatCFA(sale.Total), prior),
		Data: map[string]float64{
			"total":       sale.Total,
			"priorSales":  float64(prior),
			"creditLimit": policy.NewClientCreditLimit,
		},
	}, true
}

func duplicate(snap *ledger.Snapshot, sale domain.ProposedSale, now time.Time, policy domain.PolicyConfig) (domain.AnomalyFlag, bool) {
	var latest *domain.Sale
	for _, s := range snap.SalesOf(sale.ClientID) {
		age := now.Sub(s.Date)
		if age < 0 || age > policy.DuplicateWindow {
			continue
		}
		if latest == nil || s.Date.After(latest.Date) {
			latest = s
		}
	}
	if latest == nil {
		return domain.AnomalyFlag{}, false
	}

	seconds := now.Sub(latest.Date).Seconds()
	return domain.AnomalyFlag{
		Kind:     domain.AnomalyDuplicate,
		Severity: domain.SeverityHigh,
		Message: fmt.Sprintf("Doublon possible : une vente de %s a été enregistrée pour ce client il y a %.0f secondes.",
			ledger.FormatCFA(latest.Total), seconds),
		Data: map[string]float64{
			"secondsSinceLast": seconds,
			"previousTotal":    latest.Total,
			"windowSeconds":    policy.DuplicateWindow.Seconds(),
		},
	}, true
}
