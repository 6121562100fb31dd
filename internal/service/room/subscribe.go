package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/skillforge/watchroom/internal/broker"
	"github.com/skillforge/watchroom/pkg/playback"
)

// Handlers receive the live feeds of one room. Nil handlers are skipped.
type Handlers struct {
	OnSyncEvent   func(ctx context.Context, ev playback.SyncEvent)
	OnRoomUpdated func(ctx context.Context, r Room)
	OnMessage     func(ctx context.Context, m Message)
	OnParticipant func(ctx context.Context, p Participant)
}

type subscriber struct {
	ctx      context.Context
	handlers Handlers
	logger   *slog.Logger

	// mu serializes callbacks across the three subscriptions and fences
	// teardown against callbacks in flight.
	mu     sync.Mutex
	closed bool
	subs   []broker.Subscription
	once   sync.Once
}

// Subscribe opens the message, participant and playback feeds of a room and
// returns a teardown func. Teardown is idempotent; once it returns no handler
// will be invoked again. It must not be called from inside a handler.
func (s service) Subscribe(ctx context.Context, roomID string, handlers Handlers) (func(), error) {
	sub := &subscriber{
		ctx:      ctx,
		handlers: handlers,
		logger:   s.logger,
	}

	topics := []string{
		broker.MessagesTopic(roomID),
		broker.ParticipantsTopic(roomID),
		broker.PlaybackTopic(roomID),
	}
	for _, topic := range topics {
		bs, err := s.broker.Subscribe(ctx, topic, sub.dispatch)
		if err != nil {
			sub.teardown()
			s.logger.InfoContext(ctx, "failed to subscribe", "topic", topic, "error", err)
			return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}
		sub.mu.Lock()
		sub.subs = append(sub.subs, bs)
		sub.mu.Unlock()
	}

	return sub.teardown, nil
}

func (sub *subscriber) teardown() {
	sub.once.Do(func() {
		sub.mu.Lock()
		sub.closed = true
		subs := sub.subs
		sub.subs = nil
		sub.mu.Unlock()

		var errs []error
		for _, bs := range subs {
			errs = append(errs, bs.Unsubscribe())
		}
		if err := errors.Join(errs...); err != nil {
			sub.logger.WarnContext(sub.ctx, "failed to unsubscribe", "error", err)
		}
	})
}

func (sub *subscriber) dispatch(data []byte) {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	if sub.closed {
		return
	}

	envelope, err := broker.ParseEnvelope(data)
	if err != nil {
		sub.logger.WarnContext(sub.ctx, "dropping malformed broadcast", "error", err)
		return
	}

	ctx := sub.ctx
	h := sub.handlers
	switch envelope.Type {
	case broker.TypeSyncEvent:
		var ev playback.SyncEvent
		if sub.decode(envelope, &ev) && h.OnSyncEvent != nil {
			h.OnSyncEvent(ctx, ev)
		}
	case broker.TypeRoomUpdated:
		var r Room
		if sub.decode(envelope, &r) && h.OnRoomUpdated != nil {
			h.OnRoomUpdated(ctx, r)
		}
	case broker.TypeMessageCreated:
		var m Message
		if sub.decode(envelope, &m) && h.OnMessage != nil {
			h.OnMessage(ctx, m)
		}
	case broker.TypeParticipantUpdated:
		var p Participant
		if sub.decode(envelope, &p) && h.OnParticipant != nil {
			h.OnParticipant(ctx, p)
		}
	default:
		sub.logger.WarnContext(ctx, "dropping unknown broadcast", "type", envelope.Type)
	}
}

func (sub *subscriber) decode(envelope broker.Envelope, v any) bool {
	if err := json.Unmarshal(envelope.Payload, v); err != nil {
		sub.logger.WarnContext(sub.ctx, "dropping malformed broadcast", "type", envelope.Type, "error", err)
		return false
	}
	return true
}
