// Package pubsub carries catalog events between the mutation that produces
// them and every subscriber listening for them.
//
// A Bus moves opaque payloads on named topics. Broker fans out inside one
// process; RedisBus and AMQPBus let several server instances share a feed.
// Topic adds typed JSON encoding on top of any Bus.
package pubsub

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a closed bus.
var ErrClosed = errors.New("pubsub: bus closed")

// DefaultBufferSize is the per-subscriber buffer. A subscriber that falls
// this far behind starts losing events.
const DefaultBufferSize = 100

// Bus is a topic-parameterized publish/subscribe transport.
type Bus interface {
	// Publish hands payload to every current subscriber of topic.
	Publish(ctx context.Context, topic string, payload []byte) error
	// Subscribe registers a subscriber that receives every payload published
	// on topic after Subscribe returns. The channel is closed once ctx is done
	// or the bus is closed.
	Subscribe(ctx context.Context, topic string) (<-chan []byte, error)
	// SubscriberCount reports the subscribers registered through this process.
	SubscriberCount() int
	// Ping checks that the transport is usable.
	Ping(ctx context.Context) error
	Close() error
}
