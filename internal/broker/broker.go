// Package broker is the per-room publish/subscribe channel. Delivery is
// at-most-once and unordered across publishers; nothing is persisted.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrClosed = errors.New("broker is closed")

type Handler func(data []byte)

type Subscription interface {
	Unsubscribe() error
}

// Broker implementations return from Subscribe only once the subscription is
// live, so a publish issued afterwards is observed.
type Broker interface {
	Publish(ctx context.Context, topic string, data []byte) error
	Subscribe(ctx context.Context, topic string, handler Handler) (Subscription, error)
	Close() error
}

const (
	TypeSyncEvent          = "SYNC_EVENT"
	TypeRoomUpdated        = "ROOM_UPDATED"
	TypeMessageCreated     = "MESSAGE_CREATED"
	TypeParticipantUpdated = "PARTICIPANT_UPDATED"
)

type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func NewEnvelope(messageType string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", messageType, err)
	}

	return json.Marshal(Envelope{
		Type:    messageType,
		Payload: data,
	})
}

func ParseEnvelope(data []byte) (Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return Envelope{}, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}

	return envelope, nil
}

func MessagesTopic(roomID string) string {
	return "room." + roomID + ".messages"
}

func ParticipantsTopic(roomID string) string {
	return "room." + roomID + ".participants"
}

// PlaybackTopic carries sync events and room row updates.
func PlaybackTopic(roomID string) string {
	return "room." + roomID + ".playback"
}
