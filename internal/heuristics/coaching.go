package heuristics

import (
	"fmt"
	"sort"
	"time"

	"github.com/opensource-finance/tally/internal/domain"
	"github.com/opensource-finance/tally/internal/ledger"
)

const (
	priorityWinBack  = 85
	priorityThankYou = 70
	maxOpportunities = 5
	maxThankYous     = 3
)

// dailyTips is indexed by time.Weekday.
var dailyTips = [7]string{
	"Dimanche : faites le point sur la semaine et préparez vos relances de demain.",
	"Lundi : commencez la semaine en relançant les crédits les plus anciens.",
	"Mardi : appelez un client régulier que vous n'avez pas vu depuis un moment.",
	"Mercredi : vérifiez votre stock sur les produits qui se vendent le mieux.",
	"Jeudi : proposez le paiement comptant avec un petit geste commercial.",
	"Vendredi : remerciez vos meilleurs clients, ils reviendront ce week-end.",
	"Samedi : journée chargée, notez chaque vente pour garder des chiffres justes.",
}

// DailyTip returns the tip of the day.
func DailyTip(now time.Time) string {
	return dailyTips[now.Weekday()]
}

// Coach assembles the daily coaching bundle.
func Coach(snap *ledger.Snapshot, now time.Time, policy domain.PolicyConfig) domain.Coaching {
	return domain.Coaching{
		DailyTip:      DailyTip(now),
		WeeklySummary: WeeklySummaryFor(snap, now),
		Opportunities: Opportunities(snap, now, policy),
		Warnings:      Warnings(snap, now),
	}
}

// WeeklySummaryFor summarizes the 7 calendar days ending today.
func WeeklySummaryFor(snap *ledger.Snapshot, now time.Time) domain.WeeklySummary {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	week := ledger.Window{From: today.AddDate(0, 0, -6), To: today.AddDate(0, 0, 1)}
	sales := week.Filter(snap.Sales)

	summary := domain.WeeklySummary{
		Revenue:    ledger.Sum(sales),
		SalesCount: len(sales),
	}
	if len(sales) == 0 {
		return summary
	}

	var byWeekday [7]float64
	byClient := make(map[string]float64)
	for _, s := range sales {
		byWeekday[s.Date.Weekday()] += s.Total
		if s.ClientID != "" {
			byClient[s.ClientID] += s.Total
		}
	}

	// Walk the week in calendar order so ties go to the earlier day.
	first := true
	for d := week.From; d.Before(week.To); d = d.AddDate(0, 0, 1) {
		wd := d.Weekday()
		rev := byWeekday[wd]
		if first || rev > summary.BestDayRevenue {
			summary.BestDay, summary.BestDayRevenue = ledger.WeekdayName(wd), rev
		}
		if first || rev < summary.WorstDayRevenue {
			summary.WorstDay, summary.WorstDayRevenue = ledger.WeekdayName(wd), rev
		}
		first = false
	}

	for _, s := range sales {
		if rev := byClient[s.ClientID]; s.ClientID != "" && rev > summary.TopClientRevenue {
			summary.TopClientID = s.ClientID
			summary.TopClientName = snap.ClientName(s.ClientID)
			summary.TopClientRevenue = rev
		}
	}

	return summary
}

// Opportunities lists clients worth contacting, highest priority first.
func Opportunities(snap *ledger.Snapshot, now time.Time, policy domain.PolicyConfig) []domain.Opportunity {
	opps := make([]domain.Opportunity, 0)

	for _, c := range snap.Clients {
		sales := snap.SalesOf(c.ID)
		if len(sales) < 3 {
			continue
		}
		days := ledger.DaysBetween(sales[len(sales)-1].Date, now)
		if days < 30 || days > 60 {
			continue
		}
		opps = append(opps, domain.Opportunity{
			Type:       domain.OpportunityWinBack,
			ClientID:   c.ID,
			ClientName: snap.ClientName(c.ID),
			Message: fmt.Sprintf("%s n'a rien acheté depuis %d jours. Un appel peut relancer la relation.",
				snap.ClientName(c.ID), days),
			Priority: priorityWinBack,
		})
	}

	type spender struct {
		client *domain.Client
		spend  float64
	}
	big := make([]spender, 0)
	for _, c := range snap.Clients {
		if spend := snap.LifetimeSpend(c.ID); spend >= policy.BigClientSpend {
			big = append(big, spender{client: c, spend: spend})
		}
	}
	sort.SliceStable(big, func(i, j int) bool { return big[i].spend > big[j].spend })

	thanked := make(map[string]bool)
	for _, b := range big {
		if len(thanked) == maxThankYous {
			break
		}
		if thanked[b.client.ID] {
			continue
		}
		thanked[b.client.ID] = true
		opps = append(opps, domain.Opportunity{
			Type:       domain.OpportunityThankYou,
			ClientID:   b.client.ID,
			ClientName: snap.ClientName(b.client.ID),
			Message: fmt.Sprintf("%s a dépensé %s chez vous. Un petit merci renforce la fidélité.",
				snap.ClientName(b.client.ID), ledger.FormatCFA(b.spend)),
			Priority: priorityThankYou,
		})
	}

	sort.SliceStable(opps, func(i, j int) bool { return opps[i].Priority > opps[j].Priority })
	if len(opps) > maxOpportunities {
		opps = opps[:maxOpportunities]
	}
	return opps
}

// Warnings lists business risks, most severe first.
func Warnings(snap *ledger.Snapshot, now time.Time) []domain.Warning {
	warnings := make([]domain.Warning, 0)

	outstanding := snap.TotalOutstanding()
	switch {
	case outstanding > 100000:
		warnings = append(warnings, domain.Warning{
			Type:     domain.WarningCreditExposure,
			Severity: domain.SeverityHigh,
			Message:  fmt.Sprintf("%s de crédits non encaissés. Priorisez les relances.", ledger.FormatCFA(outstanding)),
		})
	case outstanding > 50000:
		warnings = append(warnings, domain.Warning{
			Type:     domain.WarningCreditExposure,
			Severity: domain.SeverityMedium,
			Message:  fmt.Sprintf("%s de crédits en cours. Surveillez les échéances.", ledger.FormatCFA(outstanding)),
		})
	}

	recent := ledger.Trailing(now, 30)
	prior := ledger.Trailing(recent.From, 30)
	recentSales := recent.Filter(snap.Sales)
	priorSales := prior.Filter(snap.Sales)

	if priorTotal := ledger.Sum(priorSales); priorTotal > 0 {
		if drop := -ledger.Growth(ledger.Sum(recentSales), priorTotal); drop > 30 {
			warnings = append(warnings, domain.Warning{
				Type:     domain.WarningRevenueDrop,
				Severity: domain.SeverityHigh,
				Message:  fmt.Sprintf("Vos ventes des 30 derniers jours ont baissé de %.0f %%.", drop),
			})
		}
	}

	active := make(map[string]bool)
	for _, s := range recentSales {
		active[s.ClientID] = true
	}
	lapsed := make(map[string]bool)
	for _, s := range priorSales {
		if s.ClientID != "" && !active[s.ClientID] {
			lapsed[s.ClientID] = true
		}
	}
	if len(lapsed) >= 3 {
		warnings = append(warnings, domain.Warning{
			Type:     domain.WarningInactiveClients,
			Severity: domain.SeverityMedium,
			Message:  fmt.Sprintf("%d clients réguliers ne sont pas revenus depuis 30 jours.", len(lapsed)),
		})
	}

	sort.SliceStable(warnings, func(i, j int) bool {
		return warnings[i].Severity.Rank() > warnings[j].Severity.Rank()
	})
	return warnings
}
