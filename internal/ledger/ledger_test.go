package ledger

import (
	"math"
	"testing"
	"time"

	"github.com/opensource-finance/tally/internal/domain"
)

var ref = time.Date(2026, time.March, 20, 10, 0, 0, 0, time.UTC)

func TestSnapshotBalances(t *testing.T) {
	clients := []*domain.Client{{ID: "c1", FirstName: "Awa", LastName: "Diop"}}
	sales := []*domain.Sale{
		{ID: "s1", ClientID: "c1", Total: 10000, AmountPaid: 10000, Status: domain.StatusPaid, Date: ref.AddDate(0, 0, -3)},
		{ID: "s2", ClientID: "c1", Total: 15000, AmountPaid: 5000, Status: domain.StatusPartial, Date: ref.AddDate(0, 0, -10)},
		{ID: "s3", ClientID: "c1", Total: 8000, Status: domain.StatusCredit, Date: ref.AddDate(0, 0, -1)},
		{ID: "s4", ClientID: "c1", Total: 2000, Status: domain.StatusCredit, Date: ref.AddDate(0, 0, -2)},
	}
	payments := []*domain.Payment{
		{ID: "p1", SaleID: "s2", Amount: 2500},
		{ID: "p2", SaleID: "s4", Amount: 3000},
		{ID: "p3", SaleID: "unknown", Amount: 999},
	}

	snap := New(clients, sales, payments)

	t.Run("Outstanding", func(t *testing.T) {
		cases := map[string]float64{"s1": 0, "s2": 7500, "s3": 8000, "s4": 0}
		for _, sale := range sales {
			if got := snap.Outstanding(sale); got != cases[sale.ID] {
				t.Errorf("sale %s: expected outstanding %.0f, got %.0f", sale.ID, cases[sale.ID], got)
			}
		}
	})

	t.Run("Settled", func(t *testing.T) {
		if got := snap.Settled(sales[1]); got != 7500 {
			t.Errorf("expected settled 7500, got %.0f", got)
		}
	})

	t.Run("ClientOutstanding", func(t *testing.T) {
		if got := snap.ClientOutstanding("c1"); got != 15500 {
			t.Errorf("expected 15500, got %.0f", got)
		}
		if got := snap.TotalOutstanding(); got != 15500 {
			t.Errorf("expected total 15500, got %.0f", got)
		}
	})

	t.Run("SalesOrderedByDate", func(t *testing.T) {
		ordered := snap.SalesOf("c1")
		for i := 1; i < len(ordered); i++ {
			if ordered[i].Date.Before(ordered[i-1].Date) {
				t.Fatalf("sales not sorted at index %d", i)
			}
		}
		if sales[0].ID != "s1" {
			t.Error("input slice was reordered")
		}
	})

	t.Run("UnpaidCredits", func(t *testing.T) {
		unpaid := snap.UnpaidCredits("c1")
		if len(unpaid) != 2 || unpaid[0].ID != "s2" || unpaid[1].ID != "s3" {
			t.Errorf("unexpected unpaid credits: %+v", unpaid)
		}
	})

	t.Run("ClientName", func(t *testing.T) {
		if got := snap.ClientName("c1"); got != "Awa Diop" {
			t.Errorf("expected full name, got %q", got)
		}
		if got := snap.ClientName("ghost"); got != "ghost" {
			t.Errorf("expected ID fallback, got %q", got)
		}
	})

	t.Run("LifetimeSpend", func(t *testing.T) {
		if got := snap.LifetimeSpend("c1"); got != 35000 {
			t.Errorf("expected 35000, got %.0f", got)
		}
	})
}

func TestWindows(t *testing.T) {
	t.Run("Month", func(t *testing.T) {
		cur := Month(ref, 0)
		if !cur.From.Equal(time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("unexpected month start %v", cur.From)
		}
		prev := Month(ref, -1)
		if !prev.To.Equal(cur.From) {
			t.Errorf("previous month should end where current starts")
		}
		if !prev.Contains(time.Date(2026, time.February, 28, 23, 59, 0, 0, time.UTC)) {
			t.Error("expected last day of february in previous window")
		}
		if prev.Contains(cur.From) {
			t.Error("window end must be exclusive")
		}
	})

	t.Run("DaysInMonth", func(t *testing.T) {
		cases := []struct {
			at   time.Time
			want int
		}{
			{time.Date(2026, time.February, 10, 0, 0, 0, 0, time.UTC), 28},
			{time.Date(2028, time.February, 10, 0, 0, 0, 0, time.UTC), 29},
			{time.Date(2026, time.April, 30, 0, 0, 0, 0, time.UTC), 30},
			{time.Date(2026, time.December, 31, 0, 0, 0, 0, time.UTC), 31},
		}
		for _, tc := range cases {
			if got := DaysInMonth(tc.at); got != tc.want {
				t.Errorf("%v: expected %d days, got %d", tc.at, tc.want, got)
			}
		}
	})

	t.Run("DaysBetween", func(t *testing.T) {
		if got := DaysBetween(ref.Add(-47*time.Hour), ref); got != 1 {
			t.Errorf("expected 1 whole day, got %d", got)
		}
		if got := DaysBetween(ref.Add(time.Hour), ref); got != 0 {
			t.Errorf("future dates should give 0, got %d", got)
		}
	})

	t.Run("Trailing", func(t *testing.T) {
		w := Trailing(ref, 7)
		if !w.Contains(ref.AddDate(0, 0, -6)) || w.Contains(ref.AddDate(0, 0, -8)) {
			t.Error("unexpected trailing window bounds")
		}
	})
}

func TestStats(t *testing.T) {
	xs := []float64{2, 4, 4, 4, 5, 5, 7, 9}

	if got := Mean(xs); got != 5 {
		t.Errorf("expected mean 5, got %v", got)
	}
	if got := Variance(xs); got != 4 {
		t.Errorf("expected population variance 4, got %v", got)
	}
	if got := StdDev(xs); got != 2 {
		t.Errorf("expected stddev 2, got %v", got)
	}
	if Mean(nil) != 0 || Variance(nil) != 0 {
		t.Error("empty input should give zero")
	}

	gaps := Intervals([]time.Time{ref, ref.Add(48 * time.Hour), ref.Add(60 * time.Hour)})
	if len(gaps) != 2 || gaps[0] != 2 || gaps[1] != 0.5 {
		t.Errorf("unexpected intervals %v", gaps)
	}

	if got := Growth(300000, 180000); math.Abs(got-66.6667) > 0.001 {
		t.Errorf("expected ~66.67%%, got %v", got)
	}
	if Growth(10, 0) != 0 {
		t.Error("growth against zero must be 0")
	}
}

func TestFormatCFA(t *testing.T) {
	cases := map[float64]string{
		0:         "0 FCFA",
		950:       "950 FCFA",
		25000:     "25 000 FCFA",
		1234567.6: "1 234 568 FCFA",
	}
	for in, want := range cases {
		if got := FormatCFA(in); got != want {
			t.Errorf("FormatCFA(%v) = %q, want %q", in, got, want)
		}
	}
}
