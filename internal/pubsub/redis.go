package pubsub

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisBus shares topics between server instances through Redis PUBLISH/SUBSCRIBE.
// Publish returns once Redis accepted the message; delivery to subscribers is
// asynchronous and, like the Broker, drops events for subscribers that fall behind.
type RedisBus struct {
	rdb    *redis.Client
	prefix string
	logger *slog.Logger

	mu     sync.Mutex
	subs   map[*redis.PubSub]struct{}
	closed bool
}

// NewRedisClient creates and pings a Redis client with optional password auth.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}

// NewRedisBus wraps rdb. Channel names are prefixed with "catalog:".
func NewRedisBus(rdb *redis.Client, logger *slog.Logger) *RedisBus {
	return &RedisBus{
		rdb:    rdb,
		prefix: "catalog:",
		logger: logger,
		subs:   make(map[*redis.PubSub]struct{}),
	}
}

// Publish implements Bus.
func (b *RedisBus) Publish(ctx context.Context, topic string, payload []byte) error {
	if b.isClosed() {
		return ErrClosed
	}
	if err := b.rdb.Publish(ctx, b.prefix+topic, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe implements Bus. It returns after Redis confirmed the subscription,
// so no message published afterwards is missed.
func (b *RedisBus) Subscribe(ctx context.Context, topic string) (<-chan []byte, error) {
	ps := b.rdb.Subscribe(ctx, b.prefix+topic)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", topic, err)
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		_ = ps.Close()
		return nil, ErrClosed
	}
	b.subs[ps] = struct{}{}
	b.mu.Unlock()

	out := make(chan []byte, DefaultBufferSize)
	msgs := ps.Channel()

	go func() {
		defer close(out)
		defer b.release(ps)

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				default:
					b.logger.Warn("dropped event for slow subscriber", slog.String("topic", topic))
				}
			}
		}
	}()

	return out, nil
}

func (b *RedisBus) release(ps *redis.PubSub) {
	b.mu.Lock()
	delete(b.subs, ps)
	b.mu.Unlock()
	_ = ps.Close()
}

func (b *RedisBus) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Ping implements Bus.
func (b *RedisBus) Ping(ctx context.Context) error {
	if b.isClosed() {
		return ErrClosed
	}
	return b.rdb.Ping(ctx).Err()
}

// SubscriberCount implements Bus.
func (b *RedisBus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close ends every subscription and closes the client.
func (b *RedisBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := make([]*redis.PubSub, 0, len(b.subs))
	for ps := range b.subs {
		subs = append(subs, ps)
	}
	b.mu.Unlock()

	for _, ps := range subs {
		_ = ps.Close()
	}
	return b.rdb.Close()
}

var _ Bus = (*RedisBus)(nil)
