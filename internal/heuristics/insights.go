package heuristics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/opensource-finance/tally/internal/domain"
	"github.com/opensource-finance/tally/internal/ledger"
)

// Insight priorities, higher is shown first.
const (
	priorityCashFlow         = 90
	priorityDecline          = 85
	priorityCreditClients    = 80
	priorityCreditDependency = 75
	priorityMonthlyTarget    = 70
	priorityGrowth           = 65
	priorityTopClients       = 50
	priorityBestDay          = 40
)

// Insight gates.
const (
	cashFlowCreditLimit    = 50000
	minCreditClients       = 5
	targetProgressFloor    = 30.0
	minSalesForWeekday     = 10
	minSalesForCreditShare = 20
	creditShareFactor      = 1.5
	growthThreshold        = 10.0
)

// insightMetrics are the global figures the insight rules read.
type insightMetrics struct {
	totalCredit       float64
	activeCreditSales int
	creditClients     int
	monthTotal        float64
	monthCount        int
	prevMonthTotal    float64
	prevMonthCount    int
	targetProgress    float64
	bestDay           time.Weekday
	bestDayRevenue    float64
	bigClients        int
	salesCount        int
	creditShare       float64
	cashShare         float64
}

// GenerateInsights returns the triggered business insights, highest priority first.
func GenerateInsights(snap *ledger.Snapshot, now time.Time, policy domain.PolicyConfig) []domain.Insight {
	m := computeInsightMetrics(snap, now, policy)
	insights := make([]domain.Insight, 0)

	if m.totalCredit > cashFlowCreditLimit {
		insights = append(insights, domain.Insight{
			Type:     domain.InsightCashFlow,
			Title:    "Trésorerie sous tension",
			Message:  fmt.Sprintf("%s de crédit en cours sur %d ventes.", ledger.FormatCFA(m.totalCredit), m.activeCreditSales),
			Action:   "Voir les relances",
			Priority: priorityCashFlow,
		})
	}

	if m.creditClients >= minCreditClients {
		insights = append(insights, domain.Insight{
			Type:     domain.InsightCreditClients,
			Title:    "Beaucoup de clients à crédit",
			Message:  fmt.Sprintf("%d clients ont un crédit en cours.", m.creditClients),
			Action:   "Voir les scores de risque",
			Priority: priorityCreditClients,
		})
	}

	if m.monthCount > 0 && m.targetProgress < targetProgressFloor {
		insights = append(insights, domain.Insight{
			Type:  domain.InsightMonthlyTarget,
			Title: "Objectif mensuel loin",
			Message: fmt.Sprintf("%s vendus ce mois, soit %.0f %% de l'objectif de %s.",
				ledger.FormatCFA(m.monthTotal), m.targetProgress, ledger.FormatCFA(policy.MonthlyTarget)),
			Action:   "Voir la prévision",
			Priority: priorityMonthlyTarget,
		})
	}

	if m.salesCount >= minSalesForWeekday {
		insights = append(insights, domain.Insight{
			Type:  domain.InsightBestDay,
			Title: "Meilleur jour de vente",
			Message: fmt.Sprintf("Le %s est votre meilleur jour avec %s de ventes au total.",
				ledger.WeekdayName(m.bestDay), ledger.FormatCFA(m.bestDayRevenue)),
			Priority: priorityBestDay,
		})
	}

	if m.bigClients > 0 {
		insights = append(insights, domain.Insight{
			Type:  domain.InsightTopClients,
			Title: "Clients importants",
			Message: fmt.Sprintf("%d client(s) ont dépensé plus de %s chez vous.",
				m.bigClients, ledger.FormatCFA(policy.BigClientSpend)),
			Action:   "Voir les clients VIP",
			Priority: priorityTopClients,
		})
	}

	if m.salesCount >= minSalesForCreditShare && m.creditShare > creditShareFactor*m.cashShare {
		insights = append(insights, domain.Insight{
			Type:  domain.InsightCreditDependency,
			Title: "Trop de ventes à crédit",
			Message: fmt.Sprintf("%.0f %% de vos ventes sont à crédit contre %.0f %% au comptant.",
				m.creditShare*100, m.cashShare*100),
			Action:   "Encourager le paiement comptant",
			Priority: priorityCreditDependency,
		})
	}

	if m.monthCount > 0 && m.prevMonthCount > 0 {
		growth := ledger.Growth(m.monthTotal, m.prevMonthTotal)
		switch {
		case growth > growthThreshold:
			insights = append(insights, domain.Insight{
				Type:     domain.InsightGrowth,
				Title:    "Ventes en hausse",
				Message:  fmt.Sprintf("Vos ventes progressent de %.0f %% par rapport au mois dernier.", growth),
				Priority: priorityGrowth,
			})
		case growth < -growthThreshold:
			insights = append(insights, domain.Insight{
				Type:     domain.InsightDecline,
				Title:    "Ventes en baisse",
				Message:  fmt.Sprintf("Vos ventes reculent de %.0f %% par rapport au mois dernier.", math.Abs(growth)),
				Action:   "Voir les conseils",
				Priority: priorityDecline,
			})
		}
	}

	sort.SliceStable(insights, func(i, j int) bool {
		return insights[i].Priority > insights[j].Priority
	})
	return insights
}

func computeInsightMetrics(snap *ledger.Snapshot, now time.Time, policy domain.PolicyConfig) insightMetrics {
	m := insightMetrics{salesCount: len(snap.Sales)}

	creditClients := make(map[string]bool)
	var creditCount, cashCount int
	var byWeekday [7]float64

	for _, sale := range snap.Sales {
		if sale.Status.IsCredit() {
			creditCount++
			if balance := snap.Outstanding(sale); balance > 0 {
				m.totalCredit += balance
				m.activeCreditSales++
				if sale.ClientID != "" {
					creditClients[sale.ClientID] = true
				}
			}
		} else {
			cashCount++
		}
		byWeekday[sale.Date.Weekday()] += sale.Total
	}
	m.creditClients = len(creditClients)

	if m.salesCount > 0 {
		m.creditShare = float64(creditCount) / float64(m.salesCount)
		m.cashShare = float64(cashCount) / float64(m.salesCount)
	}

	for d := time.Sunday; d <= time.Saturday; d++ {
		if byWeekday[d] > m.bestDayRevenue {
			m.bestDay, m.bestDayRevenue = d, byWeekday[d]
		}
	}

	current := ledger.Month(now, 0).Filter(snap.Sales)
	previous := ledger.Month(now, -1).Filter(snap.Sales)
	m.monthTotal, m.monthCount = ledger.Sum(current), len(current)
	m.prevMonthTotal, m.prevMonthCount = ledger.Sum(previous), len(previous)
	if policy.MonthlyTarget > 0 {
		m.targetProgress = m.monthTotal / policy.MonthlyTarget * 100
	}

	for _, c := range snap.Clients {
		if snap.LifetimeSpend(c.ID) > policy.BigClientSpend {
			m.bigClients++
		}
	}

	return m
}
