package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/skillforge/watchroom/internal/broker"
)

const flushTimeout = 5 * time.Second

// Broker relays over NATS core subjects.
type Broker struct {
	nc     *nats.Conn
	logger *slog.Logger
	// owned connections are closed by Close
	owned bool
}

func New(nc *nats.Conn, logger *slog.Logger) *Broker {
	return &Broker{
		nc:     nc,
		logger: logger,
	}
}

func Connect(url string, logger *slog.Logger) (*Broker, error) {
	opts := []nats.Option{
		nats.Name("watchroom"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			logger.Error("nats error", "subject", subject, "error", err)
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	return &Broker{
		nc:     nc,
		logger: logger,
		owned:  true,
	}, nil
}

func (b *Broker) Publish(ctx context.Context, topic string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := b.nc.Publish(topic, data); err != nil {
		if errors.Is(err, nats.ErrConnectionClosed) {
			return broker.ErrClosed
		}
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}

	return nil
}

func (b *Broker) Subscribe(ctx context.Context, topic string, handler broker.Handler) (broker.Subscription, error) {
	sub, err := b.nc.Subscribe(topic, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		if errors.Is(err, nats.ErrConnectionClosed) {
			return nil, broker.ErrClosed
		}
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	// the server has registered the interest once the flush round-trips
	flushCtx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()
	if err := b.nc.FlushWithContext(flushCtx); err != nil {
		sub.Unsubscribe()
		return nil, fmt.Errorf("failed to flush subscription to %s: %w", topic, err)
	}

	return &subscription{sub: sub}, nil
}

func (b *Broker) Close() error {
	if b.owned {
		b.nc.Close()
	}

	return nil
}

type subscription struct {
	sub  *nats.Subscription
	once sync.Once
	err  error
}

func (s *subscription) Unsubscribe() error {
	s.once.Do(func() {
		if err := s.sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			s.err = err
		}
	})

	return s.err
}
