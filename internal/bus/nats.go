package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/opensource-finance/tally/internal/domain"
)

const (
	subjectPrefix = "tally."

	// drainTimeout exceeds the client's default drain timeout of 30s.
	drainTimeout = 35 * time.Second
)

// NATSBus implements EventBus over a NATS connection. It is the pro tier bus:
// several Tally instances share one server, and with a queue group each sale
// event is checked by exactly one of them.
type NATSBus struct {
	conn       *nats.Conn
	queueGroup string
	closed     chan struct{}

	mu   sync.Mutex
	subs []*natsSubscription
}

type natsSubscription struct {
	topic  string
	sub    *nats.Subscription
	cancel context.CancelFunc
}

// NewNATSBus connects to NATS, retrying the initial dial with a linear backoff.
func NewNATSBus(cfg domain.EventBusConfig) (*NATSBus, error) {
	url := cfg.NATSUrl
	if url == "" {
		url = nats.DefaultURL
	}
	attempts := cfg.NATSMaxReconnects
	if attempts <= 0 {
		attempts = 10
	}
	wait := time.Duration(cfg.NATSReconnectWait) * time.Second
	if wait <= 0 {
		wait = 5 * time.Second
	}

	opts := []nats.Option{
		nats.Name("tally"),
		nats.MaxReconnects(attempts),
		nats.ReconnectWait(wait),
		nats.ReconnectBufSize(8 * 1024 * 1024),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			slog.Warn("nats disconnected", "error", err, "will_reconnect", !nc.IsClosed())
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			slog.Error("nats async error", "subject", subject, "error", err)
		}),
	}
	if cfg.NATSToken != "" {
		opts = append(opts, nats.Token(cfg.NATSToken))
	}

	var conn *nats.Conn
	var closed chan struct{}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		// Each attempt gets its own closed signal so a failed dial cannot
		// fire the one Close waits on.
		ch := make(chan struct{})
		var once sync.Once
		onClosed := nats.ClosedHandler(func(*nats.Conn) { once.Do(func() { close(ch) }) })
		if conn, err = nats.Connect(url, append(opts, onClosed)...); err == nil {
			closed = ch
			break
		}
		slog.Warn("nats connect failed", "attempt", attempt, "max_attempts", attempts, "error", err)
		if attempt < attempts {
			time.Sleep(wait * time.Duration(attempt))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}

	slog.Info("nats connected", "url", conn.ConnectedUrl(), "queue_group", cfg.NATSQueueGroup)
	return &NATSBus{conn: conn, queueGroup: cfg.NATSQueueGroup, closed: closed}, nil
}

// Publish sends payload on the topic's subject with the envelope in headers.
func (b *NATSBus) Publish(ctx context.Context, topic string, payload []byte) error {
	msg := newMessage(ctx, topic, payload)
	if err := b.conn.PublishMsg(toNATS(subjectFor(topic), msg)); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe delivers messages for topic to handler until Unsubscribe, Close,
// or cancellation of ctx.
func (b *NATSBus) Subscribe(ctx context.Context, topic string, handler domain.MessageHandler) (domain.Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)

	deliver := func(m *nats.Msg) {
		if subCtx.Err() != nil {
			return
		}
		msg, err := fromNATS(topic, m)
		if err != nil {
			slog.Error("dropping malformed nats message", "subject", m.Subject, "error", err)
			return
		}
		if err := handler(subCtx, msg); err != nil {
			slog.Error("handler error", "topic", topic, "message_id", msg.ID, "error", err)
		}
	}

	var natsSub *nats.Subscription
	var err error
	if b.queueGroup != "" {
		natsSub, err = b.conn.QueueSubscribe(subjectFor(topic), b.queueGroup, deliver)
	} else {
		natsSub, err = b.conn.Subscribe(subjectFor(topic), deliver)
	}
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	sub := &natsSubscription{topic: topic, sub: natsSub, cancel: cancel}
	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()
	return sub, nil
}

// Ping round-trips to the server.
func (b *NATSBus) Ping(ctx context.Context) error {
	if !b.conn.IsConnected() {
		return errors.New("nats not connected")
	}
	return b.conn.FlushWithContext(ctx)
}

// Close drains the connection so in-flight handlers finish, then cancels
// the handler contexts.
func (b *NATSBus) Close() error {
	b.mu.Lock()
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()

	defer func() {
		for _, s := range subs {
			s.cancel()
		}
	}()

	if err := b.conn.Drain(); err != nil {
		if errors.Is(err, nats.ErrConnectionClosed) {
			return nil
		}
		b.conn.Close()
		return err
	}

	select {
	case <-b.closed:
		return nil
	case <-time.After(drainTimeout):
		b.conn.Close()
		return errors.New("nats drain timed out")
	}
}

// Stats returns NATS connection statistics.
func (b *NATSBus) Stats() nats.Statistics {
	return b.conn.Stats()
}

// subjectFor maps a topic to its NATS subject, adding the tally. prefix when missing.
func subjectFor(topic string) string {
	if strings.HasPrefix(topic, subjectPrefix) {
		return topic
	}
	return subjectPrefix + topic
}

func (s *natsSubscription) Unsubscribe() error {
	s.cancel()
	return s.sub.Unsubscribe()
}

func (s *natsSubscription) Topic() string {
	return s.topic
}
