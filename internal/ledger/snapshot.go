// Package ledger indexes a read-only snapshot of clients, sales and payments
// and derives balances, windows and statistics from it.
package ledger

import (
	"sort"

	"github.com/opensource-finance/tally/internal/domain"
	"github.com/shopspring/decimal"
)

// Snapshot is an indexed, immutable view of the store at one point in time.
type Snapshot struct {
	Clients  []*domain.Client
	Sales    []*domain.Sale
	Payments []*domain.Payment

	clients       map[string]*domain.Client
	salesByClient map[string][]*domain.Sale
	settled       map[string]decimal.Decimal
}

// New indexes the given records. Input slices are not modified.
func New(clients []*domain.Client, sales []*domain.Sale, payments []*domain.Payment) *Snapshot {
	s := &Snapshot{
		Clients:       clients,
		Sales:         sales,
		Payments:      payments,
		clients:       make(map[string]*domain.Client, len(clients)),
		salesByClient: make(map[string][]*domain.Sale),
		settled:       make(map[string]decimal.Decimal, len(sales)),
	}

	for _, c := range clients {
		s.clients[c.ID] = c
	}

	for _, sale := range sales {
		s.settled[sale.ID] = decimal.NewFromFloat(sale.AmountPaid)
		if sale.ClientID != "" {
			s.salesByClient[sale.ClientID] = append(s.salesByClient[sale.ClientID], sale)
		}
	}

	for _, p := range payments {
		if paid, ok := s.settled[p.SaleID]; ok {
			s.settled[p.SaleID] = paid.Add(decimal.NewFromFloat(p.Amount))
		}
	}

	for id := range s.salesByClient {
		byDate := s.salesByClient[id]
		sort.SliceStable(byDate, func(i, j int) bool {
			return byDate[i].Date.Before(byDate[j].Date)
		})
	}

	return s
}

// Client returns the client with the given ID, or nil.
func (s *Snapshot) Client(id string) *domain.Client {
	return s.clients[id]
}

// ClientName returns the display name of a client, falling back to its ID.
func (s *Snapshot) ClientName(id string) string {
	if c := s.clients[id]; c != nil {
		if name := c.FullName(); name != "" {
			return name
		}
	}
	return id
}

// SalesOf returns the client's sales, oldest first.
func (s *Snapshot) SalesOf(clientID string) []*domain.Sale {
	return s.salesByClient[clientID]
}

// Settled returns the amount paid at sale time plus every later payment.
func (s *Snapshot) Settled(sale *domain.Sale) float64 {
	return s.settled[sale.ID].InexactFloat64()
}

// Outstanding returns the unpaid balance of a sale, never negative.
// A sale marked Paid has no balance.
func (s *Snapshot) Outstanding(sale *domain.Sale) float64 {
	if sale.Status == domain.StatusPaid {
		return 0
	}
	paid, ok := s.settled[sale.ID]
	if !ok {
		paid = decimal.NewFromFloat(sale.AmountPaid)
	}
	balance := decimal.NewFromFloat(sale.Total).Sub(paid)
	if !balance.IsPositive() {
		return 0
	}
	return balance.InexactFloat64()
}

// IsSettled reports whether nothing remains to be paid on the sale.
func (s *Snapshot) IsSettled(sale *domain.Sale) bool {
	return s.Outstanding(sale) == 0
}

// UnpaidCredits returns the client's Credit/Partial sales with a balance, oldest first.
func (s *Snapshot) UnpaidCredits(clientID string) []*domain.Sale {
	var unpaid []*domain.Sale
	for _, sale := range s.salesByClient[clientID] {
		if sale.Status.IsCredit() && s.Outstanding(sale) > 0 {
			unpaid = append(unpaid, sale)
		}
	}
	return unpaid
}

// ClientOutstanding sums the balances of the client's Credit/Partial sales.
func (s *Snapshot) ClientOutstanding(clientID string) float64 {
	total := decimal.Zero
	for _, sale := range s.salesByClient[clientID] {
		if sale.Status.IsCredit() {
			total = total.Add(decimal.NewFromFloat(s.Outstanding(sale)))
		}
	}
	return total.InexactFloat64()
}

// TotalOutstanding sums the balances of every Credit/Partial sale.
func (s *Snapshot) TotalOutstanding() float64 {
	total := decimal.Zero
	for _, sale := range s.Sales {
		if sale.Status.IsCredit() {
			total = total.Add(decimal.NewFromFloat(s.Outstanding(sale)))
		}
	}
	return total.InexactFloat64()
}

// LifetimeSpend sums the totals of every sale of the client.
func (s *Snapshot) LifetimeSpend(clientID string) float64 {
	return Sum(s.salesByClient[clientID])
}

// Sum adds sale totals with exact decimal arithmetic.
func Sum(sales []*domain.Sale) float64 {
	total := decimal.Zero
	for _, sale := range sales {
		total = total.Add(decimal.NewFromFloat(sale.Total))
	}
	return total.InexactFloat64()
}
