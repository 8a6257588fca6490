package rules

import "github.com/opensource-finance/tally/internal/domain"

// Reduce adds every adjustment to base, clamps the sum to [lo, hi]
// and returns the reasons in rule order.
func Reduce(base float64, adjustments []domain.Adjustment, lo, hi float64) (float64, []string) {
	score := base
	reasons := make([]string, 0, len(adjustments))
	for _, adj := range adjustments {
		score += adj.Delta
		if adj.Reason != "" {
			reasons = append(reasons, adj.Reason)
		}
	}
	return Clamp(score, lo, hi), reasons
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
