package heuristics

import (
	"fmt"
	"math"
	"time"

	"github.com/opensource-finance/tally/internal/domain"
	"github.com/opensource-finance/tally/internal/ledger"
)

// trendThreshold is the relative move (in percent) that separates a trend from noise.
const trendThreshold = 10.0

// ForecastSales projects the current month's closing revenue from its run rate.
func ForecastSales(snap *ledger.Snapshot, now time.Time) domain.Forecast {
	current := ledger.Month(now, 0).Filter(snap.Sales)
	lastMonth := ledger.Sum(ledger.Month(now, -1).Filter(snap.Sales))

	f := domain.Forecast{
		CurrentTotal:   ledger.Sum(current),
		SalesCount:     len(current),
		DaysElapsed:    now.Day(),
		DaysRemaining:  ledger.DaysInMonth(now) - now.Day(),
		LastMonthTotal: lastMonth,
	}

	if f.DaysElapsed > 0 {
		f.DailyAverage = f.CurrentTotal / float64(f.DaysElapsed)
	}
	f.EstimatedTotal = f.CurrentTotal + f.DailyAverage*float64(f.DaysRemaining)
	f.GrowthVsLastMonth = ledger.Growth(f.EstimatedTotal, lastMonth)
	f.Confidence = forecastConfidence(f.DaysElapsed, f.SalesCount)
	f.EstimatedLow, f.EstimatedHigh = confidenceBand(f.EstimatedTotal, f.CurrentTotal, f.Confidence)
	f.Trend = salesTrend(snap, now)
	f.Message = forecastMessage(f)
	f.Recommendation = forecastRecommendation(f)

	return f
}

func forecastConfidence(daysElapsed, salesCount int) domain.Confidence {
	switch {
	case daysElapsed >= 15 && salesCount >= 10:
		return domain.ConfidenceHigh
	case daysElapsed >= 7 && salesCount >= 5:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}

func confidenceBand(estimate, floor float64, c domain.Confidence) (float64, float64) {
	var margin float64
	switch c {
	case domain.ConfidenceHigh:
		margin = 0.10
	case domain.ConfidenceMedium:
		margin = 0.20
	case domain.ConfidenceLow:
		margin = 0.35
	default:
		panic(fmt.Sprintf("heuristics: unknown confidence %q", c))
	}
	return math.Max(floor, estimate*(1-margin)), estimate * (1 + margin)
}

// salesTrend compares the average of the two most recent full months
// with the month before them.
func salesTrend(snap *ledger.Snapshot, now time.Time) domain.Trend {
	m1 := ledger.Sum(ledger.Month(now, -1).Filter(snap.Sales))
	m2 := ledger.Sum(ledger.Month(now, -2).Filter(snap.Sales))
	m3 := ledger.Sum(ledger.Month(now, -3).Filter(snap.Sales))
	if m3 <= 0 {
		return domain.TrendStable
	}

	change := ledger.Growth((m1+m2)/2, m3)
	switch {
	case change > trendThreshold:
		return domain.TrendIncreasing
	case change < -trendThreshold:
		return domain.TrendDecreasing
	default:
		return domain.TrendStable
	}
}

func forecastMessage(f domain.Forecast) string {
	estimate := ledger.FormatCFA(f.EstimatedTotal)
	switch {
	case f.SalesCount == 0:
		return "Aucune vente enregistrée ce mois-ci pour le moment."
	case f.LastMonthTotal == 0:
		return fmt.Sprintf("Vous devriez terminer le mois autour de %s.", estimate)
	case f.GrowthVsLastMonth >= 20:
		return fmt.Sprintf("Excellent mois en vue : environ %s, soit +%.0f %% par rapport au mois dernier.", estimate, f.GrowthVsLastMonth)
	case f.GrowthVsLastMonth > 0:
		return fmt.Sprintf("Vous êtes en avance : environ %s attendus (+%.0f %%).", estimate, f.GrowthVsLastMonth)
	case f.GrowthVsLastMonth > -20:
		return fmt.Sprintf("Mois comparable au précédent : environ %s attendus (%.0f %%).", estimate, f.GrowthVsLastMonth)
	default:
		return fmt.Sprintf("Attention, le mois s'annonce en baisse : environ %s attendus (%.0f %%).", estimate, f.GrowthVsLastMonth)
	}
}

func forecastRecommendation(f domain.Forecast) string {
	if f.GrowthVsLastMonth < 0 && f.DaysRemaining >= 10 {
		return "Il reste du temps pour rattraper : relancez vos meilleurs clients et proposez une offre."
	}
	if f.GrowthVsLastMonth < 0 {
		return "Concentrez-vous sur l'encaissement des crédits pour finir le mois."
	}

	switch f.Trend {
	case domain.TrendIncreasing:
		return "La tendance est bonne : pensez à renforcer votre stock pour suivre la demande."
	case domain.TrendDecreasing:
		return "Les derniers mois ralentissent : fidélisez vos clients réguliers."
	case domain.TrendStable:
		return "Continuez ainsi et gardez un œil sur vos crédits en cours."
	default:
		panic(fmt.Sprintf("heuristics: unknown trend %q", f.Trend))
	}
}
