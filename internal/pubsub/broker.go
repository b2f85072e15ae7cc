package pubsub

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/librarycatalog/catalog-server/internal/id"
)

type subscriber struct {
	id          string
	topic       string
	ch          chan []byte
	connectedAt time.Time
}

// Broker is an in-process Bus. Publish pushes into each subscriber's buffer
// before returning and never blocks on a slow subscriber.
type Broker struct {
	logger     *slog.Logger
	bufferSize int

	mu     sync.RWMutex
	topics map[string]map[string]*subscriber
	closed bool
	done   chan struct{}
}

// NewBroker creates a Broker with DefaultBufferSize buffers.
func NewBroker(logger *slog.Logger) *Broker {
	return NewBrokerSize(logger, DefaultBufferSize)
}

// NewBrokerSize creates a Broker whose subscribers buffer size events.
func NewBrokerSize(logger *slog.Logger, size int) *Broker {
	if size < 1 {
		size = 1
	}
	return &Broker{
		logger:     logger,
		bufferSize: size,
		topics:     make(map[string]map[string]*subscriber),
		done:       make(chan struct{}),
	}
}

// Publish implements Bus.
func (b *Broker) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Hold the read lock through the sends so remove cannot close a channel mid-send.
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}

	var delivered, dropped int
	for _, sub := range b.topics[topic] {
		select {
		case sub.ch <- payload:
			delivered++
		default:
			dropped++
			b.logger.Warn("dropped event for slow subscriber",
				slog.String("subscriber_id", sub.id),
				slog.String("topic", topic))
		}
	}

	b.logger.Debug("event published",
		slog.String("topic", topic),
		slog.Group("stats",
			slog.Int("delivered", delivered),
			slog.Int("dropped", dropped)))
	return nil
}

// Subscribe implements Bus.
func (b *Broker) Subscribe(ctx context.Context, topic string) (<-chan []byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	subID, err := id.Generate("sub")
	if err != nil {
		return nil, err
	}
	sub := &subscriber{
		id:          subID,
		topic:       topic,
		ch:          make(chan []byte, b.bufferSize),
		connectedAt: time.Now(),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	if b.topics[topic] == nil {
		b.topics[topic] = make(map[string]*subscriber)
	}
	b.topics[topic][sub.id] = sub
	total := len(b.topics[topic])
	b.mu.Unlock()

	b.logger.Info("subscriber connected",
		slog.String("subscriber_id", sub.id),
		slog.String("topic", topic),
		slog.Int("total_subscribers", total))

	go func() {
		select {
		case <-ctx.Done():
			b.remove(topic, sub.id)
		case <-b.done:
		}
	}()

	return sub.ch, nil
}

func (b *Broker) remove(topic, subID string) {
	b.mu.Lock()
	sub, ok := b.topics[topic][subID]
	if !ok {
		b.mu.Unlock()
		return
	}
	delete(b.topics[topic], subID)
	if len(b.topics[topic]) == 0 {
		delete(b.topics, topic)
	}
	close(sub.ch)
	b.mu.Unlock()

	b.logger.Info("subscriber disconnected",
		slog.String("subscriber_id", subID),
		slog.String("topic", topic),
		slog.Duration("duration", time.Since(sub.connectedAt)))
}

// SubscriberCount implements Bus.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for _, subs := range b.topics {
		n += len(subs)
	}
	return n
}

// Ping implements Bus. It fails only after Close.
func (b *Broker) Ping(context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	return nil
}

// Close disconnects every subscriber. Later calls are no-ops.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	close(b.done)

	for _, subs := range b.topics {
		for _, sub := range subs {
			close(sub.ch)
		}
	}
	b.topics = make(map[string]map[string]*subscriber)

	b.logger.Info("all subscribers disconnected")
	return nil
}

var _ Bus = (*Broker)(nil)
