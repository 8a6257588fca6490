// Package worker runs Tally's background jobs: checking sales published on
// the bus and the scheduled overdue-credit scan.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opensource-finance/tally/internal/domain"
)

// SaleChecker runs the anomaly detector on a sale.
type SaleChecker interface {
	CheckSale(ctx context.Context, sale domain.ProposedSale) (*domain.AnomalyCheck, error)
}

// SaleMessage is the payload published on TopicSaleRecorded.
type SaleMessage struct {
	SaleID   string               `json:"saleId,omitempty"`
	ClientID string               `json:"clientId,omitempty"`
	Total    float64              `json:"total"`
	Status   domain.PaymentStatus `json:"status"`
	TraceID  string               `json:"traceId,omitempty"`
}

// FlaggedSale is the payload published on TopicSaleFlagged.
type FlaggedSale struct {
	SaleID  string              `json:"saleId,omitempty"`
	TraceID string              `json:"traceId,omitempty"`
	Check   domain.AnomalyCheck `json:"check"`
}

// Stats counts sales handled since the worker was created.
type Stats struct {
	Running bool  `json:"running"`
	Checked int64 `json:"checked"`
	Flagged int64 `json:"flagged"`
	Failed  int64 `json:"failed"`
}

// Worker checks every sale published on TopicSaleRecorded and republishes
// the flagged ones on TopicSaleFlagged.
type Worker struct {
	bus     domain.EventBus
	checker SaleChecker

	mu     sync.Mutex
	sub    domain.Subscription
	cancel context.CancelFunc

	checked, flagged, failed atomic.Int64
}

func NewWorker(bus domain.EventBus, checker SaleChecker) *Worker {
	return &Worker{bus: bus, checker: checker}
}

// Start subscribes the worker. Calling it on a running worker is an error.
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.sub != nil {
		return errors.New("sale worker already running")
	}
	ctx, cancel := context.WithCancel(context.Background())
	sub, err := w.bus.Subscribe(ctx, domain.TopicSaleRecorded, w.handle)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe to %s: %w", domain.TopicSaleRecorded, err)
	}
	w.sub, w.cancel = sub, cancel

	slog.Info("sale worker started", "topic", domain.TopicSaleRecorded)
	return nil
}

// Stop unsubscribes and cancels checks in flight. The worker can be
// started again afterwards.
func (w *Worker) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.sub == nil {
		return nil
	}
	w.cancel()
	err := w.sub.Unsubscribe()
	w.sub, w.cancel = nil, nil

	slog.Info("sale worker stopped",
		"checked", w.checked.Load(),
		"flagged", w.flagged.Load(),
	)
	return err
}

func (w *Worker) Stats() Stats {
	w.mu.Lock()
	running := w.sub != nil
	w.mu.Unlock()
	return Stats{
		Running: running,
		Checked: w.checked.Load(),
		Flagged: w.flagged.Load(),
		Failed:  w.failed.Load(),
	}
}

func (w *Worker) handle(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var sm SaleMessage
	if err := json.Unmarshal(msg.Payload, &sm); err != nil {
		w.failed.Add(1)
		return fmt.Errorf("malformed sale message %s: %w", msg.ID, err)
	}
	traceID := traceOf(&sm, msg)

	check, err := w.checker.CheckSale(ctx, domain.ProposedSale{
		ClientID: sm.ClientID,
		Total:    sm.Total,
		Status:   sm.Status,
	})
	if err != nil {
		w.failed.Add(1)
		return fmt.Errorf("check of sale %q (trace %s) failed: %w", sm.SaleID, traceID, err)
	}
	w.checked.Add(1)

	if check.Flagged() {
		w.flagged.Add(1)
		w.publishFlagged(ctx, FlaggedSale{SaleID: sm.SaleID, TraceID: traceID, Check: *check})
	}

	slog.Debug("sale checked",
		"sale_id", sm.SaleID,
		"client_id", sm.ClientID,
		"flags", len(check.Flags),
		"trace_id", traceID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// publishFlagged logs rather than fails: the check itself succeeded.
func (w *Worker) publishFlagged(ctx context.Context, f FlaggedSale) {
	payload, err := json.Marshal(f)
	if err == nil {
		err = w.bus.Publish(ctx, domain.TopicSaleFlagged, payload)
	}
	if err != nil {
		slog.Error("failed to publish flagged sale",
			"sale_id", f.SaleID,
			"trace_id", f.TraceID,
			"error", err,
		)
	}
}

// traceOf prefers the trace ID the producer put in the payload, then the one
// the bus propagated, then the message ID.
func traceOf(sm *SaleMessage, msg *domain.Message) string {
	for _, id := range []string{sm.TraceID, msg.Metadata[domain.MetadataTraceID]} {
		if id != "" {
			return id
		}
	}
	return msg.ID
}
