package controller

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/skillforge/watchroom/internal/metrics"
	"github.com/skillforge/watchroom/internal/service/room"
	"github.com/skillforge/watchroom/pkg/playback"
)

type EmptyInput struct{}

func (c controller) validateInput(input any) error {
	if validationErrors, ok := c.validate.Validate(input); !ok {
		return fmt.Errorf("%w: %v", errInvalidInput, validationErrors)
	}

	return nil
}

func (c controller) handleAlive(_ context.Context, _ *websocket.Conn, _ EmptyInput) error {
	return nil
}

type SyncEventInput struct {
	Type        playback.EventType `json:"type" validate:"required,oneof=play pause seek sync"`
	Timestamp   int64              `json:"timestamp" validate:"gte=0"`
	CurrentTime float64            `json:"currentTime" validate:"gte=0"`
}

func (c controller) handleSyncEvent(ctx context.Context, _ *websocket.Conn, input SyncEventInput) error {
	if err := c.validateInput(input); err != nil {
		metrics.RecordSyncEventRejected("invalid")
		return err
	}

	roomID := c.getRoomIDFromCtx(ctx)
	participantID := c.getParticipantIDFromCtx(ctx)

	ev, err := c.roomService.SendSyncEvent(ctx, &room.SendSyncEventParams{
		RoomID:   roomID,
		SenderID: participantID,
		Event: playback.SyncEvent{
			Type:        input.Type,
			Timestamp:   input.Timestamp,
			CurrentTime: input.CurrentTime,
			UserID:      c.getUserIDFromCtx(ctx),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send sync event: %w", err)
	}

	if ev.Type != playback.EventSync {
		go c.persistSnapshot(ctx, roomID, participantID, ev)
	}

	return nil
}

// persistSnapshot stores the position carried by a relayed event so late
// joiners load a recent timeline. Writes may land out of order; the store
// drops any that are older than the last stored seq. Failures are logged only.
func (c controller) persistSnapshot(ctx context.Context, roomID, participantID string, ev playback.SyncEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.requestTimeout)
	defer cancel()

	var isPlaying *bool
	switch ev.Type {
	case playback.EventPlay:
		playing := true
		isPlaying = &playing
	case playback.EventPause:
		playing := false
		isPlaying = &playing
	}

	if _, err := c.roomService.UpdatePlaybackState(ctx, &room.UpdatePlaybackStateParams{
		RoomID:      roomID,
		SenderID:    participantID,
		CurrentTime: ev.CurrentTime,
		IsPlaying:   isPlaying,
		Seq:         ev.Seq,
	}); err != nil {
		metrics.RecordBestEffortFailure("persist_snapshot")
		c.logger.WarnContext(ctx, "failed to persist snapshot", "error", err)
	}
}

type UpdatePlaybackStateInput struct {
	CurrentTime float64 `json:"current_time" validate:"gte=0"`
	IsPlaying   *bool   `json:"is_playing"`
}

func (c controller) handleUpdatePlaybackState(ctx context.Context, _ *websocket.Conn, input UpdatePlaybackStateInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	if _, err := c.roomService.UpdatePlaybackState(ctx, &room.UpdatePlaybackStateParams{
		RoomID:      c.getRoomIDFromCtx(ctx),
		SenderID:    c.getParticipantIDFromCtx(ctx),
		CurrentTime: input.CurrentTime,
		IsPlaying:   input.IsPlaying,
	}); err != nil {
		return fmt.Errorf("failed to update playback state: %w", err)
	}

	return nil
}

type SendMessageInput struct {
	Text string `json:"text" validate:"required"`
}

func (c controller) handleSendMessage(ctx context.Context, _ *websocket.Conn, input SendMessageInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	if _, err := c.roomService.SendMessage(ctx, &room.SendMessageParams{
		RoomID:   c.getRoomIDFromCtx(ctx),
		SenderID: c.getParticipantIDFromCtx(ctx),
		Text:     input.Text,
	}); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}

type UpdatePresenceInput struct {
	Presence room.Presence `json:"presence" validate:"required,oneof=online away"`
}

func (c controller) handleUpdatePresence(ctx context.Context, _ *websocket.Conn, input UpdatePresenceInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	if _, err := c.roomService.UpdatePresence(ctx, &room.UpdatePresenceParams{
		RoomID:        c.getRoomIDFromCtx(ctx),
		ParticipantID: c.getParticipantIDFromCtx(ctx),
		Presence:      input.Presence,
	}); err != nil {
		return fmt.Errorf("failed to update presence: %w", err)
	}

	return nil
}

func (c controller) handleStartRoom(ctx context.Context, _ *websocket.Conn, _ EmptyInput) error {
	if _, err := c.roomService.StartRoom(ctx, &room.SetRoomStatusParams{
		RoomID:   c.getRoomIDFromCtx(ctx),
		SenderID: c.getParticipantIDFromCtx(ctx),
	}); err != nil {
		return fmt.Errorf("failed to start room: %w", err)
	}

	return nil
}

func (c controller) handleEndRoom(ctx context.Context, _ *websocket.Conn, _ EmptyInput) error {
	if _, err := c.roomService.EndRoom(ctx, &room.SetRoomStatusParams{
		RoomID:   c.getRoomIDFromCtx(ctx),
		SenderID: c.getParticipantIDFromCtx(ctx),
	}); err != nil {
		return fmt.Errorf("failed to end room: %w", err)
	}

	return nil
}

type ModerateParticipantInput struct {
	ParticipantID string `json:"participant_id" validate:"required"`
}

func (c controller) handlePromoteParticipant(ctx context.Context, _ *websocket.Conn, input ModerateParticipantInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	if _, err := c.roomService.PromoteParticipant(ctx, &room.ModerateParticipantParams{
		RoomID:        c.getRoomIDFromCtx(ctx),
		SenderID:      c.getParticipantIDFromCtx(ctx),
		ParticipantID: input.ParticipantID,
	}); err != nil {
		return fmt.Errorf("failed to promote participant: %w", err)
	}

	return nil
}

func (c controller) handleRemoveParticipant(ctx context.Context, _ *websocket.Conn, input ModerateParticipantInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	if err := c.roomService.RemoveParticipant(ctx, &room.ModerateParticipantParams{
		RoomID:        c.getRoomIDFromCtx(ctx),
		SenderID:      c.getParticipantIDFromCtx(ctx),
		ParticipantID: input.ParticipantID,
	}); err != nil {
		return fmt.Errorf("failed to remove participant: %w", err)
	}

	return nil
}
