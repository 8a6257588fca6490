package heuristics

import (
	"math"
	"sort"
	"time"

	"github.com/opensource-finance/tally/internal/domain"
	"github.com/opensource-finance/tally/internal/ledger"
)

// step maps a threshold to the points awarded at or beyond it.
type step struct {
	at     float64
	points float64
}

var (
	spendSteps     = []step{{500000, 40}, {300000, 32}, {150000, 25}, {50000, 18}}
	frequencySteps = []step{{50, 30}, {30, 25}, {15, 20}, {8, 15}}
	basketSteps    = []step{{50000, 10}, {30000, 8}, {15000, 6}, {8000, 4}}
	recencySteps   = []step{{7, 20}, {14, 15}, {30, 10}, {60, 5}}
)

// stepped returns the points of the first step v reaches, or the linear
// fallback when none is reached.
func stepped(v float64, steps []step, fallback func(float64) float64) float64 {
	for _, s := range steps {
		if v >= s.at {
			return s.points
		}
	}
	return fallback(v)
}

// VIPComponentsFor scores each loyalty dimension independently.
func VIPComponentsFor(totalSpent float64, purchases int, lastPurchaseDays int) domain.VIPComponents {
	var avg float64
	if purchases > 0 {
		avg = totalSpent / float64(purchases)
	}

	recency := 0.0
	for _, s := range recencySteps {
		if float64(lastPurchaseDays) <= s.at {
			recency = s.points
			break
		}
	}

	return domain.VIPComponents{
		Spend: stepped(totalSpent, spendSteps, func(v float64) float64 {
			return math.Min(10, v/50000*10)
		}),
		Frequency: stepped(float64(purchases), frequencySteps, func(v float64) float64 {
			return math.Min(10, v/8*10)
		}),
		Recency: recency,
		Basket: stepped(avg, basketSteps, func(v float64) float64 {
			return math.Min(3, v/8000*3)
		}),
	}
}

// VIPScores ranks every client with at least one sale, best first.
func VIPScores(snap *ledger.Snapshot, now time.Time) []domain.VIPScore {
	scores := make([]domain.VIPScore, 0)
	for _, c := range snap.Clients {
		if s := VIPFor(snap, c.ID, now); s != nil {
			scores = append(scores, *s)
		}
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score > scores[j].Score
	})
	return scores
}

// VIPFor scores a single client. Clients without sales return nil.
func VIPFor(snap *ledger.Snapshot, clientID string, now time.Time) *domain.VIPScore {
	sales := snap.SalesOf(clientID)
	if len(sales) == 0 {
		return nil
	}

	total := ledger.Sum(sales)
	last := sales[len(sales)-1].Date
	days := ledger.DaysBetween(last, now)
	components := VIPComponentsFor(total, len(sales), days)
	score := components.Sum()
	tier := domain.TierFor(score)

	v := &domain.VIPScore{
		ClientID:         clientID,
		ClientName:       snap.ClientName(clientID),
		Tier:             tier,
		Score:            score,
		Components:       components,
		TotalSpent:       total,
		NbPurchases:      len(sales),
		AvgPurchase:      total / float64(len(sales)),
		LastPurchaseDays: days,
		Benefits:         tier.Benefits(),
	}
	if next, ok := tier.Next(); ok {
		v.NextTier = next
		v.NextTierScore = next.MinScore()
	}
	return v
}
