package redis

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
	"github.com/skillforge/watchroom/internal/broker"
)

// Broker relays over Redis Pub/Sub. The client is shared and owned by the
// caller.
type Broker struct {
	rc     *redis.Client
	logger *slog.Logger
	closed atomic.Bool
}

func New(rc *redis.Client, logger *slog.Logger) *Broker {
	return &Broker{
		rc:     rc,
		logger: logger,
	}
}

func (b *Broker) Publish(ctx context.Context, topic string, data []byte) error {
	if b.closed.Load() {
		return broker.ErrClosed
	}

	if err := b.rc.Publish(ctx, topic, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}

	return nil
}

func (b *Broker) Subscribe(ctx context.Context, topic string, handler broker.Handler) (broker.Subscription, error) {
	if b.closed.Load() {
		return nil, broker.ErrClosed
	}

	ps := b.rc.Subscribe(ctx, topic)
	// the first reply is the subscription confirmation
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	sub := &subscription{ps: ps}
	ch := ps.Channel()
	go func() {
		for msg := range ch {
			handler([]byte(msg.Payload))
		}
		b.logger.Debug("subscription finished", "topic", topic)
	}()

	return sub, nil
}

func (b *Broker) Close() error {
	b.closed.Store(true)
	return nil
}

type subscription struct {
	ps   *redis.PubSub
	once sync.Once
	err  error
}

func (s *subscription) Unsubscribe() error {
	s.once.Do(func() {
		s.err = s.ps.Close()
	})

	return s.err
}
