package domain

// ScoringRule is one named, independently testable adjustment of a scorer.
// Guard and every case condition are CEL boolean expressions over the
// scorer's variables.
type ScoringRule struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`

	// Guard must hold for any case to be considered. Empty means always.
	Guard string `json:"guard,omitempty"`

	// Cases are tried in order; the first matching case wins.
	Cases []RuleCase `json:"cases"`

	// Whether rule is active
	Enabled bool `json:"enabled"`
}

// RuleCase maps a condition to a score delta and a human-readable reason.
type RuleCase struct {
	When   string  `json:"when"`
	Delta  float64 `json:"delta"`
	Reason string  `json:"reason"`
}

// Adjustment is the output of one triggered rule.
type Adjustment struct {
	RuleID string  `json:"ruleId"`
	Delta  float64 `json:"delta"`
	Reason string  `json:"reason"`
}
