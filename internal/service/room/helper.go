package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/skillforge/watchroom/internal/broker"
	"github.com/skillforge/watchroom/internal/metrics"
	"github.com/skillforge/watchroom/internal/repository/room"
)

func (s service) publish(ctx context.Context, topic, messageType string, payload any) error {
	data, err := broker.NewEnvelope(messageType, payload)
	if err != nil {
		return err
	}

	return s.broker.Publish(ctx, topic, data)
}

// publishBestEffort logs a failed publish instead of returning it.
func (s service) publishBestEffort(ctx context.Context, topic, messageType string, payload any) {
	if err := s.publish(ctx, topic, messageType, payload); err != nil {
		metrics.RecordBestEffortFailure("publish_" + messageType)
		s.logger.WarnContext(ctx, "failed to publish", "topic", topic, "type", messageType, "error", err)
	}
}

func (s service) publishRoomUpdated(ctx context.Context, roomID string) {
	r, err := s.roomRepo.GetRoom(ctx, roomID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to get room for update", "error", err)
		return
	}

	s.publishBestEffort(ctx, broker.PlaybackTopic(roomID), broker.TypeRoomUpdated, r)
}

func (s service) publishParticipantUpdated(ctx context.Context, participantID string) {
	p, err := s.roomRepo.GetParticipant(ctx, participantID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to get participant for update", "error", err)
		return
	}

	s.publishBestEffort(ctx, broker.ParticipantsTopic(p.RoomID), broker.TypeParticipantUpdated, p)
}

// getParticipantInRoom resolves a participant and checks it belongs to the
// room. Foreign participants are reported as missing.
func (s service) getParticipantInRoom(ctx context.Context, roomID, participantID string) (room.Participant, error) {
	p, err := s.roomRepo.GetParticipant(ctx, participantID)
	if err != nil {
		return room.Participant{}, fmt.Errorf("failed to get participant: %w", err)
	}

	if p.RoomID != roomID {
		return room.Participant{}, ErrParticipantNotFound
	}

	return p, nil
}

// getActiveSender returns the room and a sender that is present in it.
func (s service) getActiveSender(ctx context.Context, roomID, senderID string) (room.Room, room.Participant, error) {
	sender, err := s.getParticipantInRoom(ctx, roomID, senderID)
	if err != nil {
		if errors.Is(err, ErrParticipantNotFound) {
			return room.Room{}, room.Participant{}, ErrPermissionDenied
		}
		return room.Room{}, room.Participant{}, err
	}

	if !sender.Active() {
		return room.Room{}, room.Participant{}, ErrPermissionDenied
	}

	r, err := s.roomRepo.GetRoom(ctx, roomID)
	if err != nil {
		return room.Room{}, room.Participant{}, fmt.Errorf("failed to get room: %w", err)
	}

	return r, sender, nil
}

func isHost(r room.Room, p room.Participant) bool {
	return r.HostID == p.UserID
}

func canModerate(r room.Room, p room.Participant) bool {
	return isHost(r, p) || p.IsModerator
}
