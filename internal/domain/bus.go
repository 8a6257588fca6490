package domain

import (
	"context"
)

// EventBus moves domain events between the API, the workers and any other
// Tally instance sharing the bus. Delivery is at most once.
type EventBus interface {
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe delivers every later message on topic to handler until the
	// subscription is cancelled or the bus closes.
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (Subscription, error)

	Ping(ctx context.Context) error
	Close() error
}

// MessageHandler errors are logged by the bus; the message is not redelivered.
type MessageHandler func(ctx context.Context, msg *Message) error

// MetadataTraceID is the Message.Metadata key carrying the publisher's trace ID.
const MetadataTraceID = "trace_id"

// Message is the envelope around a published payload. Timestamp is in
// Unix nanoseconds.
type Message struct {
	ID        string            `json:"id"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp int64             `json:"timestamp"`
}

type Subscription interface {
	// Unsubscribe may be called more than once.
	Unsubscribe() error
	Topic() string
}

// EventBusConfig selects "channel" or "nats".
type EventBusConfig struct {
	Type              string
	ChannelBufferSize int

	NATSUrl           string
	NATSToken         string
	NATSMaxReconnects int
	NATSReconnectWait int // seconds

	// NATSQueueGroup, when set, load-balances each topic across Tally
	// instances instead of fanning out to all of them.
	NATSQueueGroup string
}

// Topics published by Tally.
const (
	// TopicSaleRecorded carries a proposed or freshly recorded sale to check.
	TopicSaleRecorded = "tally.sale.recorded"

	// TopicSaleFlagged carries an AnomalyCheck with at least one flag.
	TopicSaleFlagged = "tally.sale.flagged"

	// TopicReminderCreated carries a Reminder created by the overdue scan.
	TopicReminderCreated = "tally.reminder.created"
)
