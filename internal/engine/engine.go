// Package engine is the single entry point to the business heuristics.
// Every operation reads a fresh snapshot from the gateway; nothing is cached.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/tally/internal/domain"
	"github.com/opensource-finance/tally/internal/heuristics"
	"github.com/opensource-finance/tally/internal/ledger"
)

var (
	// ErrNoGateway is returned when the data gateway could not be acquired.
	ErrNoGateway = errors.New("engine: gateway unavailable")

	// ErrClientNotFound is returned by per-client operations for unknown IDs.
	ErrClientNotFound = errors.New("engine: client not found")

	// ErrInvalidRule is returned when a replacement risk rule set is rejected.
	ErrInvalidRule = errors.New("engine: invalid risk rule")
)

var tracer = otel.Tracer("tally-engine")

// Opener acquires the gateway on first use.
type Opener func() (domain.Gateway, error)

// Engine exposes one operation per consumer feature.
type Engine struct {
	gateway func() (domain.Gateway, error)
	policy  domain.PolicyConfig
	scorer  *heuristics.RiskScorer
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithPolicy overrides the default business thresholds.
func WithPolicy(policy domain.PolicyConfig) Option {
	return func(e *Engine) { e.policy = policy }
}

// WithClock sets the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine over an already opened gateway.
func New(gw domain.Gateway, opts ...Option) (*Engine, error) {
	if gw == nil {
		return nil, ErrNoGateway
	}
	return build(func() (domain.Gateway, error) { return gw, nil }, opts)
}

// NewLazy creates an engine that opens its gateway on the first operation.
// Concurrent first calls share one open. A failed open is not remembered:
// the next operation tries again, and only a successful gateway is reused.
func NewLazy(open Opener, opts ...Option) (*Engine, error) {
	if open == nil {
		return nil, ErrNoGateway
	}
	return build((&lazyGateway{open: open}).get, opts)
}

type lazyGateway struct {
	mu   sync.Mutex
	open Opener
	gw   domain.Gateway
}

func (l *lazyGateway) get() (domain.Gateway, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.gw != nil {
		return l.gw, nil
	}
	gw, err := l.open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoGateway, err)
	}
	if gw == nil {
		return nil, ErrNoGateway
	}
	l.gw = gw
	return gw, nil
}

func build(gateway func() (domain.Gateway, error), opts []Option) (*Engine, error) {
	e := &Engine{
		gateway: gateway,
		policy:  domain.DefaultPolicy(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	scorer, err := heuristics.NewRiskScorer(e.policy)
	if err != nil {
		return nil, err
	}
	e.scorer = scorer
	return e, nil
}

// Policy returns the thresholds in effect.
func (e *Engine) Policy() domain.PolicyConfig {
	return e.policy
}

// RiskRules lists the risk rules in effect, in evaluation order.
func (e *Engine) RiskRules() []*domain.ScoringRule {
	return e.scorer.LoadedRules()
}

// ReloadRiskRules replaces the risk rule set. Every rule must have a unique
// ID and compile; otherwise nothing changes and the error wraps ErrInvalidRule.
func (e *Engine) ReloadRiskRules(ctx context.Context, set []*domain.ScoringRule) (err error) {
	_, span := e.start(ctx, "ReloadRiskRules", attribute.Int("rules.submitted", len(set)))
	defer func() {
		span.SetAttributes(attribute.Int("rules.loaded", e.scorer.RuleCount()))
		end(span, err)
	}()

	if len(set) == 0 {
		return fmt.Errorf("%w: at least one rule is required", ErrInvalidRule)
	}
	seen := make(map[string]bool, len(set))
	for i, rule := range set {
		switch {
		case rule == nil || rule.ID == "":
			return fmt.Errorf("%w: rule %d has no id", ErrInvalidRule, i)
		case seen[rule.ID]:
			return fmt.Errorf("%w: duplicate rule id %q", ErrInvalidRule, rule.ID)
		}
		seen[rule.ID] = true
		if err := e.scorer.Validate(rule); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRule, err)
		}
	}
	return e.scorer.Reload(set)
}

// RiskScores scores every client with outstanding credit.
func (e *Engine) RiskScores(ctx context.Context) (scores []domain.RiskScore, err error) {
	ctx, span := e.start(ctx, "RiskScores")
	defer func() { end(span, err) }()

	snap, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return e.scorer.ScoreAll(snap, e.now())
}

// ClientRisk scores one client. It returns nil when the client owes nothing.
func (e *Engine) ClientRisk(ctx context.Context, clientID string) (score *domain.RiskScore, err error) {
	ctx, span := e.start(ctx, "ClientRisk", attribute.String("client.id", clientID))
	defer func() { end(span, err) }()

	if err := e.requireClient(ctx, clientID); err != nil {
		return nil, err
	}
	snap, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return e.scorer.Score(snap, clientID, e.now())
}

// ReminderSuggestions proposes collection contacts, most urgent first.
func (e *Engine) ReminderSuggestions(ctx context.Context) (s []domain.ReminderSuggestion, err error) {
	ctx, span := e.start(ctx, "ReminderSuggestions")
	defer func() { end(span, err) }()

	snap, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return heuristics.SuggestReminders(snap, e.now()), nil
}

// CheckSale runs the anomaly detector on a sale about to be recorded.
func (e *Engine) CheckSale(ctx context.Context, sale domain.ProposedSale) (check *domain.AnomalyCheck, err error) {
	ctx, span := e.start(ctx, "CheckSale", attribute.String("client.id", sale.ClientID))
	defer func() { end(span, err) }()

	snap, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	result := heuristics.DetectAnomalies(snap, sale, e.now(), e.policy)
	span.SetAttributes(attribute.Int("anomaly.flags", len(result.Flags)))
	return &result, nil
}

// Insights returns the triggered business insights.
func (e *Engine) Insights(ctx context.Context) (insights []domain.Insight, err error) {
	ctx, span := e.start(ctx, "Insights")
	defer func() { end(span, err) }()

	snap, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return heuristics.GenerateInsights(snap, e.now(), e.policy), nil
}

// Forecast projects the current month's revenue.
func (e *Engine) Forecast(ctx context.Context) (f *domain.Forecast, err error) {
	ctx, span := e.start(ctx, "Forecast")
	defer func() { end(span, err) }()

	snap, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	result := heuristics.ForecastSales(snap, e.now())
	return &result, nil
}

// VIPScores ranks every client with at least one sale.
func (e *Engine) VIPScores(ctx context.Context) (scores []domain.VIPScore, err error) {
	ctx, span := e.start(ctx, "VIPScores")
	defer func() { end(span, err) }()

	snap, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return heuristics.VIPScores(snap, e.now()), nil
}

// ClientVIP scores one client. It returns nil when the client has no sales.
func (e *Engine) ClientVIP(ctx context.Context, clientID string) (score *domain.VIPScore, err error) {
	ctx, span := e.start(ctx, "ClientVIP", attribute.String("client.id", clientID))
	defer func() { end(span, err) }()

	if err := e.requireClient(ctx, clientID); err != nil {
		return nil, err
	}
	snap, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return heuristics.VIPFor(snap, clientID, e.now()), nil
}

// Coaching assembles the daily coaching bundle.
func (e *Engine) Coaching(ctx context.Context) (c *domain.Coaching, err error) {
	ctx, span := e.start(ctx, "Coaching")
	defer func() { end(span, err) }()

	snap, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	result := heuristics.Coach(snap, e.now(), e.policy)
	return &result, nil
}

// ScanOverdueCredits creates a reminder for every overdue credit sale that has
// no unresolved reminder yet, and returns the created reminders. Running it
// again on unchanged data creates nothing.
func (e *Engine) ScanOverdueCredits(ctx context.Context) (created []*domain.Reminder, err error) {
	ctx, span := e.start(ctx, "ScanOverdueCredits")
	defer func() { end(span, err) }()

	gw, err := e.gateway()
	if err != nil {
		return nil, err
	}
	snap, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	existing, err := gw.ListReminders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}

	planned := heuristics.PlanOverdueReminders(snap, existing, e.now(), e.policy)
	created = make([]*domain.Reminder, 0, len(planned))
	for _, r := range planned {
		id, err := gw.CreateReminder(ctx, r)
		if err != nil {
			return created, fmt.Errorf("failed to create reminder for sale %s: %w", r.SaleID, err)
		}
		r.ID = id
		created = append(created, r)
	}

	span.SetAttributes(attribute.Int("reminders.created", len(created)))
	return created, nil
}

// snapshot reads the full record set from the gateway.
func (e *Engine) snapshot(ctx context.Context) (*ledger.Snapshot, error) {
	gw, err := e.gateway()
	if err != nil {
		return nil, err
	}

	clients, err := gw.ListClients(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	sales, err := gw.ListSales(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sales: %w", err)
	}
	payments, err := gw.ListPayments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}

	return ledger.New(clients, sales, payments), nil
}

func (e *Engine) requireClient(ctx context.Context, clientID string) error {
	gw, err := e.gateway()
	if err != nil {
		return err
	}
	client, err := gw.GetClient(ctx, clientID)
	if err != nil {
		return fmt.Errorf("failed to get client %s: %w", clientID, err)
	}
	if client == nil {
		return fmt.Errorf("%w: %s", ErrClientNotFound, clientID)
	}
	return nil
}

func (e *Engine) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, "engine."+op, trace.WithAttributes(attrs...))
}

func end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
