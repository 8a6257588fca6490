package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/opensource-finance/tally/internal/domain"
	"github.com/opensource-finance/tally/internal/engine"
	"github.com/opensource-finance/tally/internal/ledger"
	"github.com/opensource-finance/tally/internal/worker"
)

// Service is the analysis surface the handlers expose. *engine.Engine satisfies it.
type Service interface {
	RiskScores(ctx context.Context) ([]domain.RiskScore, error)
	ClientRisk(ctx context.Context, clientID string) (*domain.RiskScore, error)
	ReminderSuggestions(ctx context.Context) ([]domain.ReminderSuggestion, error)
	ScanOverdueCredits(ctx context.Context) ([]*domain.Reminder, error)
	CheckSale(ctx context.Context, sale domain.ProposedSale) (*domain.AnomalyCheck, error)
	Insights(ctx context.Context) ([]domain.Insight, error)
	Forecast(ctx context.Context) (*domain.Forecast, error)
	VIPScores(ctx context.Context) ([]domain.VIPScore, error)
	ClientVIP(ctx context.Context, clientID string) (*domain.VIPScore, error)
	Coaching(ctx context.Context) (*domain.Coaching, error)
	RiskRules() []*domain.ScoringRule
	ReloadRiskRules(ctx context.Context, set []*domain.ScoringRule) error
}

// Scanner runs the overdue scan under the scheduler lease.
type Scanner interface {
	RunOnce(ctx context.Context) ([]*domain.Reminder, error)
}

// Handler holds dependencies for API handlers.
type Handler struct {
	service Service
	scanner Scanner
	repo    domain.Repository
	cache   domain.Cache
	bus     domain.EventBus
	version string
}

// NewHandler creates a new API handler. scanner may be nil, in which case
// POST /reminders/scan calls the service directly.
func NewHandler(service Service, scanner Scanner, repo domain.Repository, cache domain.Cache, bus domain.EventBus, version string) *Handler {
	return &Handler{
		service: service,
		scanner: scanner,
		repo:    repo,
		cache:   cache,
		bus:     bus,
		version: version,
	}
}

// Health returns the health status of the service.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready reports whether the record store can be reached.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"ready": "false",
				"error": "record store unavailable",
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// RiskEntry is a risk score with its outstanding amount formatted for display.
type RiskEntry struct {
	domain.RiskScore
	OutstandingDisplay string `json:"outstandingDisplay"`
}

func riskEntry(s domain.RiskScore) RiskEntry {
	return RiskEntry{RiskScore: s, OutstandingDisplay: ledger.FormatCFA(s.Outstanding)}
}

// ListRisk handles GET /risk.
func (h *Handler) ListRisk(w http.ResponseWriter, r *http.Request) {
	scores, err := h.service.RiskScores(r.Context())
	if err != nil {
		writeError(w, "risk scores", err)
		return
	}

	entries := make([]RiskEntry, 0, len(scores))
	for _, s := range scores {
		entries = append(entries, riskEntry(s))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"scores": entries,
		"count":  len(entries),
	})
}

// GetClientRisk handles GET /risk/{clientID}.
func (h *Handler) GetClientRisk(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")

	score, err := h.service.ClientRisk(r.Context(), clientID)
	if err != nil {
		writeError(w, "client risk", err)
		return
	}
	if score == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "client has no credit history",
		})
		return
	}

	writeJSON(w, http.StatusOK, riskEntry(*score))
}

// RiskRulesRequest is the body of PUT /risk/rules: the complete new rule set.
type RiskRulesRequest struct {
	Rules []*domain.ScoringRule `json:"rules"`
}

// ListRiskRules handles GET /risk/rules.
func (h *Handler) ListRiskRules(w http.ResponseWriter, r *http.Request) {
	loaded := h.service.RiskRules()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules": loaded,
		"count": len(loaded),
	})
}

// ReplaceRiskRules handles PUT /risk/rules. The set is validated as a whole
// and applied atomically; disabled rules are accepted but not loaded.
func (h *Handler) ReplaceRiskRules(w http.ResponseWriter, r *http.Request) {
	var req RiskRulesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON: " + err.Error(),
		})
		return
	}

	if err := h.service.ReloadRiskRules(r.Context(), req.Rules); err != nil {
		writeError(w, "reload risk rules", err)
		return
	}

	loaded := h.service.RiskRules()
	slog.Info("risk rules reloaded", "submitted", len(req.Rules), "loaded", len(loaded))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules": loaded,
		"count": len(loaded),
	})
}

// ReminderSuggestions handles GET /reminders/suggestions.
func (h *Handler) ReminderSuggestions(w http.ResponseWriter, r *http.Request) {
	suggestions, err := h.service.ReminderSuggestions(r.Context())
	if err != nil {
		writeError(w, "reminder suggestions", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"suggestions": suggestions,
		"count":       len(suggestions),
	})
}

// ScanReminders handles POST /reminders/scan.
func (h *Handler) ScanReminders(w http.ResponseWriter, r *http.Request) {
	scan := h.service.ScanOverdueCredits
	if h.scanner != nil {
		scan = h.scanner.RunOnce
	}

	created, err := scan(r.Context())
	if err != nil {
		writeError(w, "overdue scan", err)
		return
	}
	if created == nil {
		created = []*domain.Reminder{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"created": created,
		"count":   len(created),
	})
}

// CheckSaleRequest is the request body for POST /anomalies/check.
type CheckSaleRequest struct {
	SaleID   string               `json:"saleId,omitempty"`
	ClientID string               `json:"clientId,omitempty"`
	Total    float64              `json:"total"`
	Status   domain.PaymentStatus `json:"status"`
}

func (req CheckSaleRequest) validate() error {
	if req.Total <= 0 {
		return errors.New("total must be positive")
	}
	switch req.Status {
	case domain.StatusPaid, domain.StatusCredit, domain.StatusPartial:
		return nil
	default:
		return fmt.Errorf("status must be one of %s, %s, %s", domain.StatusPaid, domain.StatusCredit, domain.StatusPartial)
	}
}

// CheckSale handles POST /anomalies/check. With ?async=true the sale is
// handed to the sale worker over the bus and 202 is returned.
func (h *Handler) CheckSale(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CheckSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if err := req.validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	if r.URL.Query().Get("async") == "true" {
		h.publishSale(w, r, req)
		return
	}

	check, err := h.service.CheckSale(ctx, domain.ProposedSale{
		ClientID: req.ClientID,
		Total:    req.Total,
		Status:   req.Status,
	})
	if err != nil {
		writeError(w, "sale check", err)
		return
	}

	writeJSON(w, http.StatusOK, check)
}

func (h *Handler) publishSale(w http.ResponseWriter, r *http.Request, req CheckSaleRequest) {
	if h.bus == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "event bus not available",
		})
		return
	}

	saleID := req.SaleID
	if saleID == "" {
		saleID = uuid.New().String()
	}

	payload, err := json.Marshal(worker.SaleMessage{
		SaleID:   saleID,
		ClientID: req.ClientID,
		Total:    req.Total,
		Status:   req.Status,
		TraceID:  GetTraceID(r.Context()),
	})
	if err != nil {
		writeError(w, "sale message", err)
		return
	}

	if err := h.bus.Publish(r.Context(), domain.TopicSaleRecorded, payload); err != nil {
		writeError(w, "publish sale", err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"saleId": saleID,
		"status": "queued",
	})
}

// Insights handles GET /insights.
func (h *Handler) Insights(w http.ResponseWriter, r *http.Request) {
	insights, err := h.service.Insights(r.Context())
	if err != nil {
		writeError(w, "insights", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"insights": insights,
		"count":    len(insights),
	})
}

// ForecastResponse is the forecast with its money fields formatted for display.
type ForecastResponse struct {
	*domain.Forecast
	CurrentTotalDisplay   string `json:"currentTotalDisplay"`
	EstimatedTotalDisplay string `json:"estimatedTotalDisplay"`
	EstimatedRangeDisplay string `json:"estimatedRangeDisplay"`
}

// Forecast handles GET /forecast.
func (h *Handler) Forecast(w http.ResponseWriter, r *http.Request) {
	f, err := h.service.Forecast(r.Context())
	if err != nil {
		writeError(w, "forecast", err)
		return
	}

	writeJSON(w, http.StatusOK, ForecastResponse{
		Forecast:              f,
		CurrentTotalDisplay:   ledger.FormatCFA(f.CurrentTotal),
		EstimatedTotalDisplay: ledger.FormatCFA(f.EstimatedTotal),
		EstimatedRangeDisplay: ledger.FormatCFA(f.EstimatedLow) + " - " + ledger.FormatCFA(f.EstimatedHigh),
	})
}

// ListVIP handles GET /vip.
func (h *Handler) ListVIP(w http.ResponseWriter, r *http.Request) {
	scores, err := h.service.VIPScores(r.Context())
	if err != nil {
		writeError(w, "vip scores", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"scores": scores,
		"count":  len(scores),
	})
}

// GetClientVIP handles GET /vip/{clientID}.
func (h *Handler) GetClientVIP(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")

	score, err := h.service.ClientVIP(r.Context(), clientID)
	if err != nil {
		writeError(w, "client vip", err)
		return
	}
	if score == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "client has no sales",
		})
		return
	}

	writeJSON(w, http.StatusOK, score)
}

// CoachingResponse is the advisor output with the weekly revenue formatted for display.
type CoachingResponse struct {
	*domain.Coaching
	WeeklyRevenueDisplay string `json:"weeklyRevenueDisplay"`
}

// Coaching handles GET /coaching.
func (h *Handler) Coaching(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.Coaching(r.Context())
	if err != nil {
		writeError(w, "coaching", err)
		return
	}

	writeJSON(w, http.StatusOK, CoachingResponse{
		Coaching:             c,
		WeeklyRevenueDisplay: ledger.FormatCFA(c.WeeklySummary.Revenue),
	})
}

// writeError maps service errors to HTTP statuses and logs the unexpected ones.
func writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, engine.ErrInvalidRule):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, engine.ErrClientNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "client not found"})
	case errors.Is(err, engine.ErrNoGateway):
		slog.Error("record store unavailable", "op", op, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "record store unavailable"})
	case errors.Is(err, worker.ErrScanInProgress):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "overdue scan already running"})
	case errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusGatewayTimeout, map[string]string{"error": op + " timed out"})
	default:
		slog.Error("request failed", "op", op, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": op + " failed"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Debug("failed to encode response", "error", err)
	}
}

// requestTimeout bounds analysis requests that read the whole record store.
const requestTimeout = 15 * time.Second
