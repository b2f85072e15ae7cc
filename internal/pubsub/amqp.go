package pubsub

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
)

// AMQPBus maps each topic to a RabbitMQ fanout exchange. Every subscriber
// gets its own exclusive, auto-deleted queue bound to that exchange.
type AMQPBus struct {
	conn   *amqp.Connection
	logger *slog.Logger

	// Publishing shares one channel; amqp channels are not safe for concurrent publishes.
	pubMu    sync.Mutex
	pub      *amqp.Channel
	declared map[string]bool

	subscribers atomic.Int64
	closed      atomic.Bool
}

// DialAMQP connects to url and opens the publishing channel.
func DialAMQP(url string, logger *slog.Logger) (*AMQPBus, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open RabbitMQ channel: %w", err)
	}
	return &AMQPBus{
		conn:     conn,
		logger:   logger,
		pub:      ch,
		declared: make(map[string]bool),
	}, nil
}

func exchangeName(topic string) string {
	return "catalog." + topic
}

func declareExchange(ch *amqp.Channel, topic string) error {
	return ch.ExchangeDeclare(
		exchangeName(topic), // name
		amqp.ExchangeFanout, // kind
		true,                // durable
		false,               // delete when unused
		false,               // internal
		false,               // no-wait
		nil,                 // arguments
	)
}

// Publish implements Bus.
func (b *AMQPBus) Publish(ctx context.Context, topic string, payload []byte) error {
	if b.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	b.pubMu.Lock()
	defer b.pubMu.Unlock()

	if !b.declared[topic] {
		if err := declareExchange(b.pub, topic); err != nil {
			return fmt.Errorf("declare exchange for %s: %w", topic, err)
		}
		b.declared[topic] = true
	}

	err := b.pub.Publish(
		exchangeName(topic), // exchange
		"",                  // routing key, ignored by fanout
		false,               // mandatory
		false,               // immediate
		amqp.Publishing{
			ContentType: "application/json",
			MessageId:   uuid.NewString(),
			Timestamp:   time.Now(),
			Body:        payload,
		})
	if err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe implements Bus.
func (b *AMQPBus) Subscribe(ctx context.Context, topic string) (<-chan []byte, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}

	ch, err := b.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open RabbitMQ channel: %w", err)
	}
	fail := func(step string, err error) (<-chan []byte, error) {
		_ = ch.Close()
		return nil, fmt.Errorf("%s for %s: %w", step, topic, err)
	}

	if err := declareExchange(ch, topic); err != nil {
		return fail("declare exchange", err)
	}
	q, err := ch.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fail("declare queue", err)
	}
	if err := ch.QueueBind(q.Name, "", exchangeName(topic), false, nil); err != nil {
		return fail("bind queue", err)
	}

	tag := "catalog-" + uuid.NewString()
	deliveries, err := ch.Consume(
		q.Name, // queue
		tag,    // consumer
		true,   // auto-ack
		true,   // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		return fail("consume", err)
	}

	b.subscribers.Add(1)
	out := make(chan []byte, DefaultBufferSize)

	go func() {
		defer func() {
			b.subscribers.Add(-1)
			_ = ch.Cancel(tag, false)
			_ = ch.Close()
			close(out)
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				select {
				case out <- d.Body:
				default:
					b.logger.Warn("dropped event for slow subscriber",
						slog.String("topic", topic),
						slog.String("consumer", tag))
				}
			}
		}
	}()

	return out, nil
}

// Ping implements Bus.
func (b *AMQPBus) Ping(context.Context) error {
	if b.closed.Load() {
		return ErrClosed
	}
	if b.conn.IsClosed() {
		return fmt.Errorf("RabbitMQ connection lost")
	}
	return nil
}

// SubscriberCount implements Bus.
func (b *AMQPBus) SubscriberCount() int {
	return int(b.subscribers.Load())
}

// Close closes the connection, which ends every subscription.
func (b *AMQPBus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	b.pubMu.Lock()
	_ = b.pub.Close()
	b.pubMu.Unlock()
	return b.conn.Close()
}

var _ Bus = (*AMQPBus)(nil)
