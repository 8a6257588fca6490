package bus

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/opensource-finance/tally/internal/domain"
	"go.opentelemetry.io/otel/trace"
)

// collect subscribes to topic and forwards every delivered message.
func collect(t *testing.T, b domain.EventBus, topic string) (<-chan *domain.Message, domain.Subscription) {
	t.Helper()
	out := make(chan *domain.Message, 64)
	sub, err := b.Subscribe(context.Background(), topic, func(ctx context.Context, msg *domain.Message) error {
		out <- msg
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	return out, sub
}

func receive(t *testing.T, ch <-chan *domain.Message) *domain.Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
		return nil
	}
}

func expectNone(t *testing.T, ch <-chan *domain.Message) {
	t.Helper()
	select {
	case msg := <-ch:
		t.Fatalf("unexpected message %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func tracedContext() (context.Context, trace.TraceID) {
	traceID := trace.TraceID{0x4b, 0xf9, 0x2f, 0x35, 0x77, 0xb3, 0x4d, 0xa6, 0xa3, 0xce, 0x92, 0x9d, 0x0e, 0x0e, 0x47, 0x36}
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  trace.SpanID{0x00, 0xf0, 0x67, 0xaa, 0x0b, 0xa9, 0x02, 0xb7},
	})
	return trace.ContextWithSpanContext(context.Background(), sc), traceID
}

func TestChannelBus(t *testing.T) {
	b := NewChannelBus(100)
	defer b.Close()

	t.Run("Delivery", func(t *testing.T) {
		ch, _ := collect(t, b, domain.TopicSaleRecorded)

		ctx, traceID := tracedContext()
		if err := b.Publish(ctx, domain.TopicSaleRecorded, []byte(`{"clientId":"c1"}`)); err != nil {
			t.Fatalf("publish failed: %v", err)
		}

		msg := receive(t, ch)
		if string(msg.Payload) != `{"clientId":"c1"}` {
			t.Errorf("unexpected payload %s", msg.Payload)
		}
		if msg.ID == "" || msg.Topic != domain.TopicSaleRecorded || msg.Timestamp == 0 {
			t.Errorf("incomplete envelope %+v", msg)
		}
		if msg.Metadata[domain.MetadataTraceID] != traceID.String() {
			t.Errorf("expected trace id %s, got %q", traceID, msg.Metadata[domain.MetadataTraceID])
		}
	})

	t.Run("TopicIsolation", func(t *testing.T) {
		flagged, _ := collect(t, b, domain.TopicSaleFlagged)
		reminders, _ := collect(t, b, domain.TopicReminderCreated)

		b.Publish(context.Background(), domain.TopicReminderCreated, []byte(`{}`))

		receive(t, reminders)
		expectNone(t, flagged)
	})

	t.Run("FanOut", func(t *testing.T) {
		first, _ := collect(t, b, "fanout")
		second, _ := collect(t, b, "fanout")

		b.Publish(context.Background(), "fanout", []byte("x"))

		a, c := receive(t, first), receive(t, second)
		if a.ID != c.ID {
			t.Errorf("subscribers saw different messages: %s vs %s", a.ID, c.ID)
		}
	})

	t.Run("UnsubscribeTwice", func(t *testing.T) {
		ch, sub := collect(t, b, "unsub")

		b.Publish(context.Background(), "unsub", []byte("1"))
		receive(t, ch)

		if err := sub.Unsubscribe(); err != nil {
			t.Fatalf("unsubscribe failed: %v", err)
		}
		if err := sub.Unsubscribe(); err != nil {
			t.Fatalf("second unsubscribe failed: %v", err)
		}

		b.Publish(context.Background(), "unsub", []byte("2"))
		expectNone(t, ch)
		if sub.Topic() != "unsub" {
			t.Errorf("expected topic unsub, got %s", sub.Topic())
		}
	})

	t.Run("HandlerErrorKeepsSubscription", func(t *testing.T) {
		var calls atomic.Int32
		done := make(chan struct{}, 2)
		b.Subscribe(context.Background(), "failing", func(ctx context.Context, msg *domain.Message) error {
			calls.Add(1)
			done <- struct{}{}
			return errors.New("boom")
		})

		b.Publish(context.Background(), "failing", nil)
		b.Publish(context.Background(), "failing", nil)
		for i := 0; i < 2; i++ {
			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatalf("handler ran %d times, expected 2", calls.Load())
			}
		}
	})
}

func TestChannelBusFullQueueDrops(t *testing.T) {
	b := NewChannelBus(1)
	defer b.Close()

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	var handled atomic.Int32
	b.Subscribe(context.Background(), "slow", func(ctx context.Context, msg *domain.Message) error {
		handled.Add(1)
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil
	})

	b.Publish(context.Background(), "slow", nil)
	<-started
	// One message waits in the queue, the third is dropped.
	b.Publish(context.Background(), "slow", nil)
	b.Publish(context.Background(), "slow", nil)
	close(release)

	time.Sleep(50 * time.Millisecond)
	if got := handled.Load(); got != 2 {
		t.Errorf("expected 2 handled messages, got %d", got)
	}
}

func TestChannelBusClose(t *testing.T) {
	b := NewChannelBus(10)
	ctx := context.Background()

	inHandler := make(chan struct{})
	var finished atomic.Bool
	b.Subscribe(ctx, "close", func(ctx context.Context, msg *domain.Message) error {
		close(inHandler)
		time.Sleep(30 * time.Millisecond)
		finished.Store(true)
		return nil
	})

	b.Publish(ctx, "close", nil)
	<-inHandler

	if err := b.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if !finished.Load() {
		t.Error("Close returned before the running handler finished")
	}
	if err := b.Close(); err != nil {
		t.Errorf("second close failed: %v", err)
	}

	if err := b.Publish(ctx, "close", nil); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from Publish, got %v", err)
	}
	if _, err := b.Subscribe(ctx, "close", nil); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from Subscribe, got %v", err)
	}
	if err := b.Ping(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from Ping, got %v", err)
	}
}

func TestNewBus(t *testing.T) {
	t.Run("ChannelType", func(t *testing.T) {
		b, err := New(domain.EventBusConfig{Type: "channel", ChannelBufferSize: 50})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer b.Close()

		if _, ok := b.(*ChannelBus); !ok {
			t.Errorf("expected *ChannelBus, got %T", b)
		}
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		if _, err := New(domain.EventBusConfig{Type: "kafka"}); err == nil {
			t.Error("expected error for unsupported type")
		}
	})
}

func TestNATSEnvelope(t *testing.T) {
	ctx, traceID := tracedContext()
	sent := newMessage(ctx, domain.TopicSaleFlagged, []byte(`{"saleId":"s1"}`))

	m := toNATS(subjectFor(sent.Topic), sent)
	if m.Subject != "tally.sale.flagged" {
		t.Errorf("unexpected subject %s", m.Subject)
	}
	if string(m.Data) != `{"saleId":"s1"}` {
		t.Errorf("body should be the raw payload, got %s", m.Data)
	}

	got, err := fromNATS(sent.Topic, m)
	if err != nil {
		t.Fatalf("fromNATS failed: %v", err)
	}
	if got.ID != sent.ID || got.Timestamp != sent.Timestamp || got.Topic != sent.Topic {
		t.Errorf("envelope mismatch: sent %+v, got %+v", sent, got)
	}
	if got.Metadata[domain.MetadataTraceID] != traceID.String() {
		t.Errorf("trace id lost in transit: %+v", got.Metadata)
	}

	t.Run("MissingHeaders", func(t *testing.T) {
		if _, err := fromNATS("x", &nats.Msg{Subject: "tally.x", Data: []byte("{}")}); err == nil {
			t.Error("expected error for message without headers")
		}
	})

	t.Run("BadTimestamp", func(t *testing.T) {
		bad := nats.NewMsg("tally.x")
		bad.Header.Set(headerMsgID, "m1")
		bad.Header.Set(headerTimestamp, "yesterday")
		if _, err := fromNATS("x", bad); err == nil {
			t.Error("expected error for malformed timestamp")
		}
	})
}

func TestNATSSubject(t *testing.T) {
	tests := map[string]string{
		domain.TopicSaleRecorded: "tally.sale.recorded",
		"custom.event":           "tally.custom.event",
	}
	for topic, expected := range tests {
		if got := subjectFor(topic); got != expected {
			t.Errorf("subjectFor(%q) = %q, expected %q", topic, got, expected)
		}
	}
}
