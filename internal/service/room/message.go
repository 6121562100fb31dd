package room

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/skillforge/watchroom/internal/broker"
	"github.com/skillforge/watchroom/internal/repository/room"
	"github.com/skillforge/watchroom/pkg/playback"
)

const maxMessageLength = 500

type SendMessageParams struct {
	RoomID   string
	SenderID string
	Text     string
}

func (s service) SendMessage(ctx context.Context, params *SendMessageParams) (Message, error) {
	text := strings.TrimSpace(params.Text)
	if text == "" || utf8.RuneCountInString(text) > maxMessageLength {
		return Message{}, ErrInvalidMessage
	}

	r, sender, err := s.getActiveSender(ctx, params.RoomID, params.SenderID)
	if err != nil {
		return Message{}, err
	}

	if !r.Settings.AllowChat {
		return Message{}, ErrChatDisabled
	}
	if r.Status == playback.StatusEnded {
		return Message{}, ErrRoomEnded
	}

	message := room.Message{
		ID:            uuid.NewString(),
		RoomID:        params.RoomID,
		ParticipantID: sender.ID,
		UserID:        sender.UserID,
		Username:      sender.Username,
		Text:          text,
		CreatedAt:     s.now(),
	}

	if err := s.roomRepo.AddMessage(ctx, &room.AddMessageParams{
		Message: message,
		Limit:   s.messageHistory,
	}); err != nil {
		s.logger.InfoContext(ctx, "failed to add message", "error", err)
		return Message{}, &SendError{Err: fmt.Errorf("failed to add message: %w", err)}
	}

	if err := s.publish(ctx, broker.MessagesTopic(params.RoomID), broker.TypeMessageCreated, message); err != nil {
		s.logger.InfoContext(ctx, "failed to publish message", "error", err)
		return Message{}, &SendError{Err: err}
	}

	return message, nil
}
