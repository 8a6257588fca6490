// Package heuristics derives business intelligence from a ledger snapshot:
// credit risk, collection reminders, anomalies, insights, forecasts,
// loyalty tiers and coaching. Every function is deterministic in its inputs.
package heuristics

import (
	"fmt"
	"sort"
	"time"

	"github.com/opensource-finance/tally/internal/domain"
	"github.com/opensource-finance/tally/internal/ledger"
	"github.com/opensource-finance/tally/internal/rules"
)

// RiskScorer computes credit risk scores through the CEL rule engine.
type RiskScorer struct {
	engine *rules.Engine
	policy domain.PolicyConfig
}

// NewRiskScorer compiles the built-in risk rules.
func NewRiskScorer(policy domain.PolicyConfig) (*RiskScorer, error) {
	engine, err := rules.NewEngine(rules.RiskVariables())
	if err != nil {
		return nil, err
	}
	if err := engine.LoadRules(rules.RiskRules()); err != nil {
		return nil, fmt.Errorf("failed to load risk rules: %w", err)
	}
	return &RiskScorer{engine: engine, policy: policy}, nil
}

// LoadedRules returns the rules currently applied, in evaluation order.
func (r *RiskScorer) LoadedRules() []*domain.ScoringRule {
	return r.engine.GetLoadedRules()
}

// Validate compiles rule against the risk variables without loading it.
func (r *RiskScorer) Validate(rule *domain.ScoringRule) error {
	return r.engine.ValidateRule(rule)
}

// RuleCount is the number of rules applied.
func (r *RiskScorer) RuleCount() int {
	return r.engine.RulesCount()
}

// Reload swaps the whole rule set; on error the previous set stays in place.
func (r *RiskScorer) Reload(set []*domain.ScoringRule) error {
	return r.engine.ReloadRules(set)
}

// ScoreAll scores every client with outstanding credit, most at-risk first.
// Ties keep client order.
func (r *RiskScorer) ScoreAll(snap *ledger.Snapshot, now time.Time) ([]domain.RiskScore, error) {
	scores := make([]domain.RiskScore, 0)
	for _, c := range snap.Clients {
		score, err := r.Score(snap, c.ID, now)
		if err != nil {
			return nil, err
		}
		if score != nil {
			scores = append(scores, *score)
		}
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score > scores[j].Score
	})
	return scores, nil
}

// Score returns the risk score of one client, or nil when it owes nothing.
func (r *RiskScorer) Score(snap *ledger.Snapshot, clientID string, now time.Time) (*domain.RiskScore, error) {
	outstanding := snap.ClientOutstanding(clientID)
	if outstanding <= 0 {
		return nil, nil
	}

	adjustments, err := r.engine.Evaluate(RiskFeatures(snap, clientID, now, r.policy.DelinquentAfter))
	if err != nil {
		return nil, fmt.Errorf("client %s: %w", clientID, err)
	}

	score, reasons := rules.Reduce(rules.RiskBaseScore, adjustments, 0, 100)
	level := domain.RiskLevelFor(score)

	return &domain.RiskScore{
		ClientID:       clientID,
		ClientName:     snap.ClientName(clientID),
		Score:          score,
		Level:          level,
		Reasons:        reasons,
		Recommendation: level.Recommendation(),
		Outstanding:    outstanding,
		Adjustments:    adjustments,
	}, nil
}

// RiskFeatures computes the rule variables for one client.
func RiskFeatures(snap *ledger.Snapshot, clientID string, now time.Time, delinquentAfter time.Duration) map[string]any {
	sales := snap.SalesOf(clientID)

	var settled int
	totals := make([]float64, 0, len(sales))
	dates := make([]time.Time, 0, len(sales))
	for _, sale := range sales {
		if snap.IsSettled(sale) {
			settled++
		}
		totals = append(totals, sale.Total)
		dates = append(dates, sale.Date)
	}

	var paidRatio float64
	var tenure int
	if len(sales) > 0 {
		paidRatio = float64(settled) / float64(len(sales))
		tenure = ledger.DaysBetween(sales[0].Date, now)
	}

	var delinquent int
	for _, sale := range snap.UnpaidCredits(clientID) {
		if now.Sub(sale.Date) > delinquentAfter {
			delinquent++
		}
	}

	intervals := ledger.Intervals(dates)

	return map[string]any{
		rules.VarSalesCount:       int64(len(sales)),
		rules.VarPaidRatio:        paidRatio,
		rules.VarTenureDays:       int64(tenure),
		rules.VarExposure:         snap.ClientOutstanding(clientID),
		rules.VarMeanSale:         ledger.Mean(totals),
		rules.VarDelinquentCount:  int64(delinquent),
		rules.VarIntervalMean:     ledger.Mean(intervals),
		rules.VarIntervalVariance: ledger.Variance(intervals),
	}
}
