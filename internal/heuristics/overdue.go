package heuristics

import (
	"time"

	"github.com/opensource-finance/tally/internal/domain"
	"github.com/opensource-finance/tally/internal/ledger"
)

// PlanOverdueReminders returns the reminders to create for credit sales older
// than the overdue age that have no unresolved reminder yet. Planning against
// the reminders it would create makes repeated scans idempotent.
func PlanOverdueReminders(snap *ledger.Snapshot, existing []*domain.Reminder, now time.Time, policy domain.PolicyConfig) []*domain.Reminder {
	open := make(map[string]bool, len(existing))
	for _, r := range existing {
		if !r.Resolved {
			open[r.SaleID] = true
		}
	}

	var planned []*domain.Reminder
	for _, sale := range snap.Sales {
		if sale.ClientID == "" || !sale.Status.IsCredit() || open[sale.ID] {
			continue
		}
		if now.Sub(sale.Date) <= policy.OverdueReminderAfter {
			continue
		}
		outstanding := snap.Outstanding(sale)
		if outstanding <= 0 {
			continue
		}

		days := ledger.DaysBetween(sale.Date, now)
		planned = append(planned, &domain.Reminder{
			ClientID:  sale.ClientID,
			SaleID:    sale.ID,
			Message:   ReminderMessage(firstName(snap.Client(sale.ClientID)), outstanding, days),
			DueAt:     now,
			CreatedAt: now,
		})
		open[sale.ID] = true
	}
	return planned
}
