package main

import (
	"math/rand/v2"
	"testing"
	"time"
)

func TestGenerate(t *testing.T) {
	now := time.Date(2026, time.April, 20, 10, 0, 0, 0, time.UTC)
	data := generate(rand.New(rand.NewPCG(7, 3)), 25, 90, now)

	if len(data.clients) != 25 {
		t.Fatalf("expected 25 clients, got %d", len(data.clients))
	}
	if len(data.sales) < 25 {
		t.Fatalf("expected at least one sale per client, got %d", len(data.sales))
	}

	clients := make(map[string]bool)
	for _, c := range data.clients {
		clients[c.ID] = true
	}

	sales := make(map[string]float64)
	oldest := now.Add(-90 * 24 * time.Hour)
	for _, s := range data.sales {
		if !clients[s.ClientID] {
			t.Errorf("sale %s references unknown client", s.ID)
		}
		if s.Date.After(now) || s.Date.Before(oldest) {
			t.Errorf("sale %s dated %v outside the window", s.ID, s.Date)
		}
		if s.Total <= 0 || s.AmountPaid < 0 || s.AmountPaid > s.Total {
			t.Errorf("sale %s has inconsistent amounts: total=%v paid=%v", s.ID, s.Total, s.AmountPaid)
		}
		if !s.Status.IsCredit() && s.AmountPaid != s.Total {
			t.Errorf("paid sale %s not fully settled", s.ID)
		}
		sales[s.ID] = s.Total - s.AmountPaid
	}

	for _, p := range data.payments {
		owed, ok := sales[p.SaleID]
		if !ok {
			t.Errorf("payment %s references unknown sale", p.ID)
			continue
		}
		if p.Amount <= 0 || p.Amount > owed {
			t.Errorf("payment %s amount %v exceeds owed %v", p.ID, p.Amount, owed)
		}
		if p.Date.After(now) {
			t.Errorf("payment %s dated in the future", p.ID)
		}
	}
}

func TestGenerateDeterministic(t *testing.T) {
	now := time.Date(2026, time.April, 20, 10, 0, 0, 0, time.UTC)
	a := generate(rand.New(rand.NewPCG(1, 2)), 10, 30, now)
	b := generate(rand.New(rand.NewPCG(1, 2)), 10, 30, now)

	if len(a.sales) != len(b.sales) || len(a.payments) != len(b.payments) {
		t.Fatalf("same seed produced different shapes: %d/%d vs %d/%d",
			len(a.sales), len(a.payments), len(b.sales), len(b.payments))
	}
	for i := range a.sales {
		if a.sales[i].Total != b.sales[i].Total || !a.sales[i].Date.Equal(b.sales[i].Date) {
			t.Fatalf("sale %d differs between runs", i)
		}
	}
}
