package heuristics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/opensource-finance/tally/internal/domain"
	"github.com/opensource-finance/tally/internal/ledger"
)

// SuggestReminders proposes one collection contact per reachable client
// with outstanding credit, most urgent first.
func SuggestReminders(snap *ledger.Snapshot, now time.Time) []domain.ReminderSuggestion {
	window := ContactWindow(now)
	suggestions := make([]domain.ReminderSuggestion, 0)

	for _, c := range snap.Clients {
		if !c.HasPhone() {
			continue
		}
		outstanding := snap.ClientOutstanding(c.ID)
		if outstanding <= 0 {
			continue
		}
		unpaid := snap.UnpaidCredits(c.ID)
		if len(unpaid) == 0 {
			continue
		}

		oldest := unpaid[0]
		days := ledger.DaysBetween(oldest.Date, now)

		suggestions = append(suggestions, domain.ReminderSuggestion{
			ClientID:        c.ID,
			ClientName:      snap.ClientName(c.ID),
			Phone:           strings.TrimSpace(c.Phone),
			Outstanding:     outstanding,
			Priority:        ReminderPriority(days, outstanding),
			ContactWindow:   window,
			Message:         ReminderMessage(firstName(c), outstanding, days),
			DaysSinceOldest: days,
			OldestSaleID:    oldest.ID,
		})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		pi, pj := suggestions[i].Priority.Rank(), suggestions[j].Priority.Rank()
		if pi != pj {
			return pi > pj
		}
		return suggestions[i].Outstanding > suggestions[j].Outstanding
	})
	return suggestions
}

// ReminderPriority grades urgency from the oldest debt age and the amount owed.
func ReminderPriority(days int, outstanding float64) domain.Priority {
	switch {
	case days > 30 || outstanding > 50000:
		return domain.PriorityHigh
	case days > 14 || outstanding > 20000:
		return domain.PriorityMedium
	default:
		return domain.PriorityLow
	}
}

// ContactWindow suggests when to call, from the current hour only.
func ContactWindow(now time.Time) string {
	switch h := now.Hour(); {
	case h < 12:
		return "Ce matin (9h-12h)"
	case h < 17:
		return "Cet après-midi (14h-17h)"
	case h < 20:
		return "Ce soir (18h-20h)"
	default:
		return "Demain matin (9h-12h)"
	}
}

// ReminderMessage writes the contact message, firmer as the debt ages.
func ReminderMessage(name string, outstanding float64, days int) string {
	amount := ledger.FormatCFA(outstanding)
	switch {
	case days < 7:
		return fmt.Sprintf("Bonjour %s, petit rappel amical : il reste %s à régler sur vos achats. Merci pour votre confiance !", name, amount)
	case days < 14:
		return fmt.Sprintf("Bonjour %s, nous vous rappelons qu'un solde de %s reste à régler. Merci de passer à la boutique dès que possible.", name, amount)
	case days < 30:
		return fmt.Sprintf("Bonjour %s, votre solde de %s est en attente depuis %d jours. Merci de régulariser votre situation cette semaine.", name, amount, days)
	default:
		return fmt.Sprintf("Bonjour %s, votre solde de %s est impayé depuis %d jours. Merci de nous contacter rapidement pour convenir d'un règlement.", name, amount, days)
	}
}

func firstName(c *domain.Client) string {
	if c == nil {
		return "cher client"
	}
	if name := strings.TrimSpace(c.FirstName); name != "" {
		return name
	}
	if name := c.FullName(); name != "" {
		return name
	}
	return "cher client"
}
