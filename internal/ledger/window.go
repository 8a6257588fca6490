package ledger

import (
	"time"

	"github.com/opensource-finance/tally/internal/domain"
)

const day = 24 * time.Hour

// Window is a half-open time range [From, To).
type Window struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && t.Before(w.To)
}

// Filter returns the sales dated inside the window, preserving order.
func (w Window) Filter(sales []*domain.Sale) []*domain.Sale {
	var in []*domain.Sale
	for _, sale := range sales {
		if w.Contains(sale.Date) {
			in = append(in, sale)
		}
	}
	return in
}

// MonthStart returns midnight on the first day of t's month, in t's location.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// Month returns the calendar month offset months away from t's month
// (0 = current, -1 = previous).
func Month(t time.Time, offset int) Window {
	start := MonthStart(t).AddDate(0, offset, 0)
	return Window{From: start, To: start.AddDate(0, 1, 0)}
}

// DaysInMonth returns the number of days in t's month.
func DaysInMonth(t time.Time) int {
	return MonthStart(t).AddDate(0, 1, -1).Day()
}

// Trailing returns the window of the given number of days ending at end.
func Trailing(end time.Time, days int) Window {
	return Window{From: end.Add(-time.Duration(days) * day), To: end}
}

// DaysBetween returns the whole days elapsed from from to to, never negative.
func DaysBetween(from, to time.Time) int {
	d := to.Sub(from)
	if d <= 0 {
		return 0
	}
	return int(d / day)
}

var weekdayNames = [7]string{"Dimanche", "Lundi", "Mardi", "Mercredi", "Jeudi", "Vendredi", "Samedi"}

// WeekdayName returns the French name of a weekday.
func WeekdayName(d time.Weekday) string {
	return weekdayNames[d]
}
