// Package rules provides the CEL-Go based scoring rule engine.
package rules

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/opensource-finance/tally/internal/domain"
)

// Variables declares the CEL variables a rule set may reference.
type Variables map[string]*cel.Type

// Engine evaluates an ordered set of scoring rules.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules []*CompiledRule
}

// CompiledRule holds pre-compiled CEL programs for one rule.
type CompiledRule struct {
	Config *domain.ScoringRule
	Guard  cel.Program // nil when the rule has no guard
	Cases  []cel.Program
}

// NewEngine creates a rule engine over the declared variables.
func NewEngine(vars Variables) (*Engine, error) {
	opts := make([]cel.EnvOption, 0, len(vars))
	for name, typ := range vars {
		opts = append(opts, cel.Variable(name, typ))
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{env: env}, nil
}

// ValidateRule compiles and validates a rule without mutating loaded engine rules.
func (e *Engine) ValidateRule(cfg *domain.ScoringRule) error {
	if cfg == nil {
		return fmt.Errorf("rule config is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(cfg)
	return err
}

// LoadRule compiles a rule and appends it, or replaces the rule with the same ID in place.
func (e *Engine) LoadRule(cfg *domain.ScoringRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}

	for i, existing := range e.compiledRules {
		if existing.Config.ID == cfg.ID {
			e.compiledRules[i] = compiled
			return nil
		}
	}
	e.compiledRules = append(e.compiledRules, compiled)

	return nil
}

// LoadRules compiles and loads multiple rules in order.
func (e *Engine) LoadRules(configs []*domain.ScoringRule) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadRule(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadRules replaces every loaded rule atomically.
func (e *Engine) ReloadRules(configs []*domain.ScoringRule) error {
	compiled := make([]*CompiledRule, 0, len(configs))

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		c, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		compiled = append(compiled, c)
	}

	e.compiledRules = compiled
	return nil
}

// Evaluate runs every loaded rule against the activation, in load order.
// Each rule contributes at most one adjustment: its first matching case.
func (e *Engine) Evaluate(activation map[string]any) ([]domain.Adjustment, error) {
	e.mu.RLock()
	rules := make([]*CompiledRule, len(e.compiledRules))
	copy(rules, e.compiledRules)
	e.mu.RUnlock()

	var adjustments []domain.Adjustment
	for _, rule := range rules {
		adj, ok, err := evaluateRule(rule, activation)
		if err != nil {
			return nil, err
		}
		if ok {
			adjustments = append(adjustments, adj)
		}
	}
	return adjustments, nil
}

// evaluateRule returns the adjustment of the first matching case, if any.
func evaluateRule(rule *CompiledRule, activation map[string]any) (domain.Adjustment, bool, error) {
	if rule.Guard != nil {
		pass, err := evalBool(rule.Guard, activation)
		if err != nil {
			return domain.Adjustment{}, false, fmt.Errorf("rule %s guard: %w", rule.Config.ID, err)
		}
		if !pass {
			return domain.Adjustment{}, false, nil
		}
	}

	for i, prg := range rule.Cases {
		match, err := evalBool(prg, activation)
		if err != nil {
			return domain.Adjustment{}, false, fmt.Errorf("rule %s case %d: %w", rule.Config.ID, i, err)
		}
		if match {
			c := rule.Config.Cases[i]
			return domain.Adjustment{
				RuleID: rule.Config.ID,
				Delta:  c.Delta,
				Reason: c.Reason,
			}, true, nil
		}
	}

	return domain.Adjustment{}, false, nil
}

func evalBool(prg cel.Program, activation map[string]any) (bool, error) {
	out, _, err := prg.Eval(activation)
	if err != nil {
		return false, err
	}
	b, ok := out.(types.Bool)
	if !ok {
		return false, fmt.Errorf("expected bool result, got %v", out.Type())
	}
	return bool(b), nil
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// GetLoadedRules returns the currently loaded rule configurations, in order.
func (e *Engine) GetLoadedRules() []*domain.ScoringRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.ScoringRule, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		rules = append(rules, compiled.Config)
	}
	return rules
}

func (e *Engine) compileRule(cfg *domain.ScoringRule) (*CompiledRule, error) {
	if len(cfg.Cases) == 0 {
		return nil, fmt.Errorf("rule %s: at least one case is required", cfg.ID)
	}

	compiled := &CompiledRule{Config: cfg}

	if cfg.Guard != "" {
		prg, err := e.compileBool(cfg.Guard)
		if err != nil {
			return nil, fmt.Errorf("rule %s guard: %w", cfg.ID, err)
		}
		compiled.Guard = prg
	}

	for i, c := range cfg.Cases {
		prg, err := e.compileBool(c.When)
		if err != nil {
			return nil, fmt.Errorf("rule %s case %d: %w", cfg.ID, i, err)
		}
		compiled.Cases = append(compiled.Cases, prg)
	}

	return compiled, nil
}

func (e *Engine) compileBool(expr string) (cel.Program, error) {
	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile %q: %w", expr, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("expression %q must return bool, got %s", expr, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for %q: %w", expr, err)
	}
	return program, nil
}
