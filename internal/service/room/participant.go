package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/skillforge/watchroom/internal/repository/connection"
	"github.com/skillforge/watchroom/internal/repository/room"
)

type ConnectParticipantParams struct {
	RoomID        string
	ParticipantID string
	Conn          connection.Conn
}

// ConnectParticipant marks the participant online and registers its live
// connection, closing any connection it replaces. An offline participant
// coming back is subject to the room capacity; a removed one is refused.
func (s service) ConnectParticipant(ctx context.Context, params *ConnectParticipantParams) (Participant, error) {
	if _, err := s.getParticipantInRoom(ctx, params.RoomID, params.ParticipantID); err != nil {
		s.logger.InfoContext(ctx, "failed to get participant", "error", err)
		return Participant{}, err
	}

	changed, err := s.roomRepo.UpdateParticipantPresence(ctx, &room.UpdateParticipantPresenceParams{
		RoomID:        params.RoomID,
		ParticipantID: params.ParticipantID,
		Presence:      room.PresenceOnline,
		UpdatedAt:     s.now(),
	})
	if err != nil {
		switch {
		case errors.Is(err, room.ErrRoomFull):
			return Participant{}, &JoinError{Reason: ErrRoomFull}
		case errors.Is(err, room.ErrParticipantRemoved):
			return Participant{}, &JoinError{Reason: ErrParticipantRemoved}
		}
		s.logger.InfoContext(ctx, "failed to update presence", "error", err)
		return Participant{}, fmt.Errorf("failed to update presence: %w", err)
	}

	if prev := s.connRepo.Add(params.ParticipantID, params.Conn); prev != nil {
		s.logger.InfoContext(ctx, "replacing participant connection", "participant_id", params.ParticipantID)
		if err := prev.Close(CloseCodeReplaced, "replaced by a new connection"); err != nil {
			s.logger.WarnContext(ctx, "failed to close replaced connection", "error", err)
		}
	}

	p, err := s.roomRepo.GetParticipant(ctx, params.ParticipantID)
	if err != nil {
		s.logger.InfoContext(ctx, "failed to get participant", "error", err)
		return Participant{}, fmt.Errorf("failed to get participant: %w", err)
	}

	if changed {
		s.publishParticipantUpdated(ctx, params.ParticipantID)
	}

	return p, nil
}

type DisconnectParticipantParams struct {
	RoomID        string
	ParticipantID string
	Conn          connection.Conn
}

// DisconnectParticipant marks the participant offline unless conn has
// already been replaced by a newer connection.
func (s service) DisconnectParticipant(ctx context.Context, params *DisconnectParticipantParams) error {
	if err := s.connRepo.Remove(params.ParticipantID, params.Conn); err != nil {
		if errors.Is(err, connection.ErrNotFound) {
			return nil
		}
		return err
	}

	changed, err := s.roomRepo.UpdateParticipantPresence(ctx, &room.UpdateParticipantPresenceParams{
		RoomID:        params.RoomID,
		ParticipantID: params.ParticipantID,
		Presence:      room.PresenceOffline,
		UpdatedAt:     s.now(),
	})
	if err != nil {
		s.logger.InfoContext(ctx, "failed to update presence", "error", err)
		return fmt.Errorf("failed to update presence: %w", err)
	}

	if changed {
		s.publishParticipantUpdated(ctx, params.ParticipantID)
	}

	return nil
}

type UpdatePresenceParams struct {
	RoomID        string
	ParticipantID string
	Presence      Presence
}

// UpdatePresence switches a connected participant between online and away.
func (s service) UpdatePresence(ctx context.Context, params *UpdatePresenceParams) (Participant, error) {
	if params.Presence != room.PresenceOnline && params.Presence != room.PresenceAway {
		return Participant{}, ErrInvalidPresence
	}

	if _, err := s.getParticipantInRoom(ctx, params.RoomID, params.ParticipantID); err != nil {
		s.logger.InfoContext(ctx, "failed to get participant", "error", err)
		return Participant{}, err
	}

	changed, err := s.roomRepo.UpdateParticipantPresence(ctx, &room.UpdateParticipantPresenceParams{
		RoomID:        params.RoomID,
		ParticipantID: params.ParticipantID,
		Presence:      params.Presence,
		UpdatedAt:     s.now(),
	})
	if err != nil {
		switch {
		case errors.Is(err, room.ErrRoomFull):
			return Participant{}, &JoinError{Reason: ErrRoomFull}
		case errors.Is(err, room.ErrParticipantRemoved):
			return Participant{}, &JoinError{Reason: ErrParticipantRemoved}
		}
		s.logger.InfoContext(ctx, "failed to update presence", "error", err)
		return Participant{}, fmt.Errorf("failed to update presence: %w", err)
	}

	p, err := s.roomRepo.GetParticipant(ctx, params.ParticipantID)
	if err != nil {
		return Participant{}, fmt.Errorf("failed to get participant: %w", err)
	}

	if changed {
		s.publishParticipantUpdated(ctx, params.ParticipantID)
	}

	return p, nil
}

type ModerateParticipantParams struct {
	RoomID        string
	SenderID      string
	ParticipantID string
}

// PromoteParticipant grants moderator rights. Only the host may promote.
func (s service) PromoteParticipant(ctx context.Context, params *ModerateParticipantParams) (Participant, error) {
	r, sender, err := s.getActiveSender(ctx, params.RoomID, params.SenderID)
	if err != nil {
		return Participant{}, err
	}

	if !isHost(r, sender) {
		s.logger.InfoContext(ctx, "sender is not host", "sender_id", params.SenderID)
		return Participant{}, ErrPermissionDenied
	}

	target, err := s.getParticipantInRoom(ctx, params.RoomID, params.ParticipantID)
	if err != nil {
		s.logger.InfoContext(ctx, "failed to get participant", "error", err)
		return Participant{}, err
	}

	if target.IsModerator {
		return target, nil
	}

	if err := s.roomRepo.UpdateParticipantIsModerator(ctx, &room.UpdateParticipantIsModeratorParams{
		ParticipantID: params.ParticipantID,
		IsModerator:   true,
	}); err != nil {
		s.logger.InfoContext(ctx, "failed to update is moderator", "error", err)
		return Participant{}, fmt.Errorf("failed to update is moderator: %w", err)
	}
	target.IsModerator = true

	s.publishParticipantUpdated(ctx, params.ParticipantID)

	return target, nil
}

// RemoveParticipant takes a participant offline for good and closes its
// connection: the row can not be joined or connected again. The host or a
// moderator may remove anyone but the host.
func (s service) RemoveParticipant(ctx context.Context, params *ModerateParticipantParams) error {
	r, sender, err := s.getActiveSender(ctx, params.RoomID, params.SenderID)
	if err != nil {
		return err
	}

	if !canModerate(r, sender) {
		s.logger.InfoContext(ctx, "sender can not remove participants", "sender_id", params.SenderID)
		return ErrPermissionDenied
	}

	target, err := s.getParticipantInRoom(ctx, params.RoomID, params.ParticipantID)
	if err != nil {
		s.logger.InfoContext(ctx, "failed to get participant", "error", err)
		return err
	}

	if target.UserID == r.HostID {
		return ErrPermissionDenied
	}

	if target.Removed() {
		return nil
	}

	// marked before the socket closes so a reconnect is already refused
	if err := s.roomRepo.RemoveParticipant(ctx, &room.RemoveParticipantParams{
		ParticipantID: params.ParticipantID,
		RemovedAt:     s.now(),
	}); err != nil {
		s.logger.InfoContext(ctx, "failed to remove participant", "error", err)
		return fmt.Errorf("failed to remove participant: %w", err)
	}

	if conn, err := s.connRepo.Get(params.ParticipantID); err == nil {
		if err := s.connRepo.Remove(params.ParticipantID, conn); err == nil {
			if err := conn.Close(CloseCodeRemoved, "removed from room"); err != nil {
				s.logger.WarnContext(ctx, "failed to close removed connection", "error", err)
			}
		}
	}

	s.publishParticipantUpdated(ctx, params.ParticipantID)

	return nil
}
