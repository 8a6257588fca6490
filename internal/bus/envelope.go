package bus

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/opensource-finance/tally/internal/domain"
	"go.opentelemetry.io/otel/trace"
)

// NATS header names. The message ID reuses the JetStream dedup header.
const (
	headerMsgID     = nats.MsgIdHdr
	headerTimestamp = "Tally-Timestamp"
	headerTraceID   = "Tally-Trace-Id"
)

// newMessage wraps a payload, tagging it with the trace active in ctx.
func newMessage(ctx context.Context, topic string, payload []byte) *domain.Message {
	msg := &domain.Message{
		ID:        uuid.NewString(),
		Topic:     topic,
		Payload:   payload,
		Metadata:  make(map[string]string),
		Timestamp: time.Now().UnixNano(),
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		msg.Metadata[domain.MetadataTraceID] = sc.TraceID().String()
	}
	return msg
}

// toNATS puts the envelope in headers so the body stays the raw payload.
func toNATS(subject string, msg *domain.Message) *nats.Msg {
	m := nats.NewMsg(subject)
	m.Data = msg.Payload
	m.Header.Set(headerMsgID, msg.ID)
	m.Header.Set(headerTimestamp, strconv.FormatInt(msg.Timestamp, 10))
	if traceID := msg.Metadata[domain.MetadataTraceID]; traceID != "" {
		m.Header.Set(headerTraceID, traceID)
	}
	return m
}

// fromNATS rebuilds the envelope published by toNATS.
func fromNATS(topic string, m *nats.Msg) (*domain.Message, error) {
	msg := &domain.Message{
		Topic:    topic,
		Payload:  m.Data,
		Metadata: make(map[string]string),
	}
	if m.Header == nil {
		return nil, fmt.Errorf("message on %s has no headers", m.Subject)
	}

	msg.ID = m.Header.Get(headerMsgID)
	if msg.ID == "" {
		return nil, fmt.Errorf("message on %s has no id", m.Subject)
	}
	if ts := m.Header.Get(headerTimestamp); ts != "" {
		n, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad timestamp on %s: %w", m.Subject, err)
		}
		msg.Timestamp = n
	}
	if traceID := m.Header.Get(headerTraceID); traceID != "" {
		msg.Metadata[domain.MetadataTraceID] = traceID
	}
	return msg, nil
}
