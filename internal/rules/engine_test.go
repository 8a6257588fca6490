package rules

import (
	"testing"

	"github.com/google/cel-go/cel"
	"github.com/opensource-finance/tally/internal/domain"
)

func newRiskEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine(RiskVariables())
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	if err := engine.LoadRules(RiskRules()); err != nil {
		t.Fatalf("failed to load risk rules: %v", err)
	}
	return engine
}

// riskVars returns a neutral activation that triggers no risk rule.
func riskVars() map[string]any {
	return map[string]any{
		VarSalesCount:       int64(4),
		VarPaidRatio:        0.6,
		VarTenureDays:       int64(90),
		VarExposure:         1500.0,
		VarMeanSale:         1000.0,
		VarDelinquentCount:  int64(0),
		VarIntervalMean:     10.0,
		VarIntervalVariance: 50.0,
	}
}

func TestEngineCreation(t *testing.T) {
	engine, err := NewEngine(RiskVariables())
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	if engine.RulesCount() != 0 {
		t.Errorf("expected 0 rules, got %d", engine.RulesCount())
	}
}

func TestLoadRiskRules(t *testing.T) {
	engine := newRiskEngine(t)

	if engine.RulesCount() != 5 {
		t.Fatalf("expected 5 rules, got %d", engine.RulesCount())
	}

	want := []string{"payment-history", "tenure", "exposure", "delinquency", "regularity"}
	for i, rule := range engine.GetLoadedRules() {
		if rule.ID != want[i] {
			t.Errorf("rule %d: expected %s, got %s", i, want[i], rule.ID)
		}
	}
}

func TestLoadInvalidRule(t *testing.T) {
	engine, _ := NewEngine(RiskVariables())

	cases := map[string]*domain.ScoringRule{
		"syntax": {
			ID:    "invalid-syntax",
			Cases: []domain.RuleCase{{When: "this is not valid CEL !!!"}},
		},
		"non-bool": {
			ID:    "non-bool",
			Cases: []domain.RuleCase{{When: "paid_ratio * 2.0"}},
		},
		"unknown-variable": {
			ID:    "unknown-variable",
			Cases: []domain.RuleCase{{When: "missing > 1"}},
		},
		"no-cases": {
			ID: "no-cases",
		},
		"bad-guard": {
			ID:    "bad-guard",
			Guard: "sales_count",
			Cases: []domain.RuleCase{{When: "true"}},
		},
	}

	for name, rule := range cases {
		t.Run(name, func(t *testing.T) {
			if err := engine.ValidateRule(rule); err == nil {
				t.Error("expected validation error")
			}
			if err := engine.LoadRule(rule); err == nil {
				t.Error("expected load error")
			}
		})
	}

	if engine.RulesCount() != 0 {
		t.Errorf("invalid rules must not be loaded, got %d", engine.RulesCount())
	}
}

func TestLoadRuleReplacesByID(t *testing.T) {
	engine, _ := NewEngine(Variables{"x": cel.IntType})

	first := &domain.ScoringRule{ID: "r", Cases: []domain.RuleCase{{When: "x > 1", Delta: 1}}, Enabled: true}
	second := &domain.ScoringRule{ID: "r", Cases: []domain.RuleCase{{When: "x > 1", Delta: 2}}, Enabled: true}

	_ = engine.LoadRule(first)
	_ = engine.LoadRule(second)

	if engine.RulesCount() != 1 {
		t.Fatalf("expected 1 rule, got %d", engine.RulesCount())
	}

	adjustments, err := engine.Evaluate(map[string]any{"x": int64(5)})
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	if len(adjustments) != 1 || adjustments[0].Delta != 2 {
		t.Errorf("expected replaced rule to apply, got %+v", adjustments)
	}
}

func TestEvaluateNeutral(t *testing.T) {
	engine := newRiskEngine(t)

	adjustments, err := engine.Evaluate(riskVars())
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	if len(adjustments) != 0 {
		t.Errorf("expected no adjustments, got %+v", adjustments)
	}
}

func TestRiskRuleCases(t *testing.T) {
	engine := newRiskEngine(t)

	tests := []struct {
		name   string
		set    map[string]any
		rule   string
		delta  float64
		absent bool
	}{
		{"ratio excellent", map[string]any{VarPaidRatio: 0.9}, "payment-history", -20, false},
		{"ratio good", map[string]any{VarPaidRatio: 0.75}, "payment-history", -10, false},
		{"ratio poor", map[string]any{VarPaidRatio: 0.4}, "payment-history", 25, false},
		{"ratio guarded by history", map[string]any{VarPaidRatio: 0.0, VarSalesCount: int64(1)}, "payment-history", 0, true},
		{"tenure long", map[string]any{VarTenureDays: int64(181)}, "tenure", -15, false},
		{"tenure exactly 180", map[string]any{VarTenureDays: int64(180)}, "tenure", 0, true},
		{"tenure new", map[string]any{VarTenureDays: int64(29)}, "tenure", 10, false},
		{"exposure high", map[string]any{VarExposure: 3001.0}, "exposure", 20, false},
		{"exposure exactly 3x", map[string]any{VarExposure: 3000.0}, "exposure", 0, true},
		{"exposure low", map[string]any{VarExposure: 999.0}, "exposure", -10, false},
		{"exposure without mean", map[string]any{VarMeanSale: 0.0, VarExposure: 10.0}, "exposure", 0, true},
		{"delinquent many", map[string]any{VarDelinquentCount: int64(4)}, "delinquency", 25, false},
		{"delinquent one", map[string]any{VarDelinquentCount: int64(1)}, "delinquency", 10, false},
		{"delinquent three", map[string]any{VarDelinquentCount: int64(3)}, "delinquency", 10, false},
		{"regular", map[string]any{VarIntervalVariance: 2.9}, "regularity", -10, false},
		{"regular needs 5 sales", map[string]any{VarIntervalVariance: 0.0}, "regularity", 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			vars := riskVars()
			if tc.rule == "regularity" && !tc.absent {
				vars[VarSalesCount] = int64(5)
			}
			for k, v := range tc.set {
				vars[k] = v
			}

			adjustments, err := engine.Evaluate(vars)
			if err != nil {
				t.Fatalf("evaluation failed: %v", err)
			}

			var found *domain.Adjustment
			for i := range adjustments {
				if adjustments[i].RuleID == tc.rule {
					found = &adjustments[i]
				}
			}

			if tc.absent {
				if found != nil {
					t.Errorf("expected %s not to fire, got %+v", tc.rule, *found)
				}
				return
			}
			if found == nil {
				t.Fatalf("expected %s to fire, got %+v", tc.rule, adjustments)
			}
			if found.Delta != tc.delta {
				t.Errorf("expected delta %.0f, got %.0f", tc.delta, found.Delta)
			}
			if found.Reason == "" {
				t.Error("expected a reason")
			}
		})
	}
}

func TestReloadRules(t *testing.T) {
	engine := newRiskEngine(t)

	rules := RiskRules()
	rules[0].Enabled = false

	if err := engine.ReloadRules(rules); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if engine.RulesCount() != 4 {
		t.Errorf("expected 4 rules after reload, got %d", engine.RulesCount())
	}

	broken := append(RiskRules(), &domain.ScoringRule{ID: "broken", Cases: []domain.RuleCase{{When: "("}}, Enabled: true})
	if err := engine.ReloadRules(broken); err == nil {
		t.Error("expected reload error")
	}
	if engine.RulesCount() != 4 {
		t.Errorf("failed reload must keep previous rules, got %d", engine.RulesCount())
	}
}

func TestReduce(t *testing.T) {
	adjustments := []domain.Adjustment{
		{RuleID: "a", Delta: -20, Reason: "a"},
		{RuleID: "b", Delta: -15, Reason: "b"},
		{RuleID: "c", Delta: -10, Reason: "c"},
	}

	score, reasons := Reduce(RiskBaseScore, adjustments, 0, 100)
	if score != 5 {
		t.Errorf("expected 5, got %v", score)
	}
	if len(reasons) != 3 || reasons[0] != "a" || reasons[2] != "c" {
		t.Errorf("unexpected reasons %v", reasons)
	}

	adjustments = append(adjustments, domain.Adjustment{RuleID: "d", Delta: -10})
	if score, _ := Reduce(RiskBaseScore, adjustments, 0, 100); score != 0 {
		t.Errorf("expected clamp to 0, got %v", score)
	}

	high := []domain.Adjustment{{Delta: 25}, {Delta: 25}, {Delta: 20}}
	if score, _ := Reduce(RiskBaseScore, high, 0, 100); score != 100 {
		t.Errorf("expected clamp to 100, got %v", score)
	}
}
