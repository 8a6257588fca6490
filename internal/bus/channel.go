// Package bus carries Tally's domain events: sales to check, flagged sales and
// created reminders.
package bus

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/opensource-finance/tally/internal/domain"
)

// ErrClosed is returned by Publish and Subscribe after Close.
var ErrClosed = errors.New("bus is closed")

// ChannelBus is the in-process bus of the local tier. Each subscription has a
// buffered queue drained by its own goroutine; a full queue drops the message.
type ChannelBus struct {
	mu     sync.RWMutex
	buffer int
	topics map[string][]*channelSubscription
	closed bool

	running sync.WaitGroup
}

type channelSubscription struct {
	bus     *ChannelBus
	topic   string
	handler domain.MessageHandler
	queue   chan *domain.Message
	ctx     context.Context
	cancel  context.CancelFunc
	once    sync.Once
}

// NewChannelBus creates a bus whose subscriptions buffer bufferSize messages.
func NewChannelBus(bufferSize int) *ChannelBus {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	return &ChannelBus{
		buffer: bufferSize,
		topics: make(map[string][]*channelSubscription),
	}
}

// Publish fans the payload out to every subscriber of topic without blocking.
func (b *ChannelBus) Publish(ctx context.Context, topic string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}

	msg := newMessage(ctx, topic, payload)
	for _, sub := range b.topics[topic] {
		select {
		case sub.queue <- msg:
		default:
			slog.Warn("subscriber queue full, dropping message",
				"topic", topic,
				"message_id", msg.ID,
			)
		}
	}
	return nil
}

// Subscribe starts delivering topic messages to handler.
func (b *ChannelBus) Subscribe(ctx context.Context, topic string, handler domain.MessageHandler) (domain.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &channelSubscription{
		bus:     b,
		topic:   topic,
		handler: handler,
		queue:   make(chan *domain.Message, b.buffer),
		ctx:     subCtx,
		cancel:  cancel,
	}
	b.topics[topic] = append(b.topics[topic], sub)

	b.running.Add(1)
	go sub.run()

	return sub, nil
}

// Ping fails once the bus is closed.
func (b *ChannelBus) Ping(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	return nil
}

// Close stops every subscription and waits for running handlers to return.
// Messages still queued are discarded.
func (b *ChannelBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	topics := b.topics
	b.topics = make(map[string][]*channelSubscription)
	b.mu.Unlock()

	for _, subs := range topics {
		for _, sub := range subs {
			sub.cancel()
		}
	}
	b.running.Wait()
	return nil
}

func (b *ChannelBus) remove(sub *channelSubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.topics[sub.topic]
	for i, s := range subs {
		if s == sub {
			b.topics[sub.topic] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

func (s *channelSubscription) run() {
	defer s.bus.running.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case msg := <-s.queue:
			if err := s.handler(s.ctx, msg); err != nil {
				slog.Error("handler error",
					"topic", msg.Topic,
					"message_id", msg.ID,
					"error", err,
				)
			}
		}
	}
}

// Unsubscribe stops delivery; it is safe to call more than once.
func (s *channelSubscription) Unsubscribe() error {
	s.once.Do(func() {
		s.cancel()
		s.bus.remove(s)
	})
	return nil
}

func (s *channelSubscription) Topic() string {
	return s.topic
}
