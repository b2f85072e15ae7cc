package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// Topic is a typed view of one bus topic with JSON payloads.
type Topic[T any] struct {
	bus    Bus
	name   string
	logger *slog.Logger
}

// NewTopic binds name on bus to values of type T.
func NewTopic[T any](bus Bus, name string, logger *slog.Logger) *Topic[T] {
	return &Topic[T]{bus: bus, name: name, logger: logger}
}

// Name returns the topic name.
func (t *Topic[T]) Name() string { return t.name }

// Publish encodes v and publishes it.
func (t *Topic[T]) Publish(ctx context.Context, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", t.name, err)
	}
	return t.bus.Publish(ctx, t.name, data)
}

// Subscribe returns decoded values published after the call. Payloads that
// fail to decode are logged and skipped.
func (t *Topic[T]) Subscribe(ctx context.Context) (<-chan T, error) {
	raw, err := t.bus.Subscribe(ctx, t.name)
	if err != nil {
		return nil, err
	}

	out := make(chan T, DefaultBufferSize)
	go func() {
		defer close(out)
		for data := range raw {
			var v T
			if err := json.Unmarshal(data, &v); err != nil {
				t.logger.Warn("skipping undecodable event",
					slog.String("topic", t.name),
					slog.String("error", err.Error()))
				continue
			}
			select {
			case out <- v:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
