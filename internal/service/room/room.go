package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/skillforge/watchroom/internal/broker"
	"github.com/skillforge/watchroom/internal/metrics"
	"github.com/skillforge/watchroom/internal/repository/room"
	"github.com/skillforge/watchroom/pkg/playback"
	"golang.org/x/crypto/bcrypt"
)

type CreateRoomParams struct {
	Name        string
	Description string
	UserID      string
	Username    string
	Visibility  room.Visibility
	Password    string
	// ScheduledStartAt is epoch milliseconds, zero when unscheduled.
	ScheduledStartAt int64
	VideoURL         string
	VideoTitle       string
	VideoDuration    float64
	// MaxParticipants falls back to the configured default when zero.
	MaxParticipants int
	// AllowChat defaults to true when nil.
	AllowChat *bool
	AutoPlay  bool
	// SyncThreshold falls back to the configured default when zero.
	SyncThreshold     float64
	AuthoritativeSeek bool
}

type CreateRoomResponse struct {
	Room        Room        `json:"room"`
	Participant Participant `json:"participant"`
	AuthToken   string      `json:"auth_token"`
}

// CreateRoom stores a new room in the waiting state with its host as the
// first participant.
func (s service) CreateRoom(ctx context.Context, params *CreateRoomParams) (CreateRoomResponse, error) {
	capacity := params.MaxParticipants
	if capacity == 0 {
		capacity = s.defaultCapacity
	}
	if capacity < 1 || capacity > s.maxCapacity {
		return CreateRoomResponse{}, ErrInvalidCapacity
	}

	threshold := params.SyncThreshold
	if threshold == 0 {
		threshold = s.defaultSyncThreshold
	}
	if threshold <= 0 {
		return CreateRoomResponse{}, ErrInvalidSyncThreshold
	}

	visibility := params.Visibility
	if visibility == "" {
		visibility = room.VisibilityPublic
	}

	var passwordHash string
	if visibility == room.VisibilityPrivate && params.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
		if err != nil {
			s.logger.InfoContext(ctx, "failed to hash password", "error", err)
			return CreateRoomResponse{}, fmt.Errorf("failed to hash password: %w", err)
		}
		passwordHash = string(hash)
	}

	allowChat := true
	if params.AllowChat != nil {
		allowChat = *params.AllowChat
	}

	userID := params.UserID
	if userID == "" {
		userID = uuid.NewString()
	}

	now := s.now()
	r := room.Room{
		ID:               uuid.NewString(),
		Name:             params.Name,
		Description:      params.Description,
		HostID:           userID,
		Visibility:       visibility,
		PasswordHash:     passwordHash,
		Status:           playback.StatusWaiting,
		ScheduledStartAt: params.ScheduledStartAt,
		Video: room.Video{
			URL:      params.VideoURL,
			Title:    s.resolveVideoTitle(ctx, params.VideoURL, params.VideoTitle),
			Duration: params.VideoDuration,
		},
		MaxParticipants: capacity,
		Settings: room.Settings{
			AllowChat:         allowChat,
			AutoPlay:          params.AutoPlay,
			SyncThreshold:     threshold,
			AuthoritativeSeek: params.AuthoritativeSeek,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.roomRepo.SetRoom(ctx, &room.SetRoomParams{Room: r}); err != nil {
		s.logger.InfoContext(ctx, "failed to set room", "error", err)
		return CreateRoomResponse{}, fmt.Errorf("failed to set room: %w", err)
	}

	joined, err := s.roomRepo.JoinParticipant(ctx, &room.JoinParticipantParams{
		RoomID:        r.ID,
		ParticipantID: uuid.NewString(),
		UserID:        userID,
		Username:      params.Username,
		IsModerator:   true,
		JoinedAt:      now,
	})
	if err != nil {
		s.logger.InfoContext(ctx, "failed to join host", "error", err)
		if rmErr := s.roomRepo.RemoveRoom(ctx, r.ID); rmErr != nil {
			s.logger.WarnContext(ctx, "failed to remove room", "error", rmErr)
		}
		return CreateRoomResponse{}, fmt.Errorf("failed to join host: %w", err)
	}

	token, err := s.generateJWT(r.ID, joined.Participant.ID, userID)
	if err != nil {
		s.logger.InfoContext(ctx, "failed to generate jwt", "error", err)
		return CreateRoomResponse{}, fmt.Errorf("failed to generate jwt: %w", err)
	}

	return CreateRoomResponse{
		Room:        r,
		Participant: joined.Participant,
		AuthToken:   token,
	}, nil
}

// resolveVideoTitle looks up a missing title. Lookup failures are not fatal.
func (s service) resolveVideoTitle(ctx context.Context, videoURL, title string) string {
	if title != "" || s.videos == nil {
		return title
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	data, err := s.videos.Get(lookupCtx, videoURL)
	if err != nil {
		metrics.RecordBestEffortFailure("video_lookup")
		s.logger.WarnContext(ctx, "failed to resolve video title", "video_url", videoURL, "error", err)
		return ""
	}

	return data.Title
}

type JoinRoomParams struct {
	RoomID   string
	UserID   string
	Username string
	Password string
	// AuthToken is a token issued by an earlier join. It is required to take
	// back the user's existing row.
	AuthToken string
}

type JoinRoomResponse struct {
	Participant Participant `json:"participant"`
	AuthToken   string      `json:"auth_token"`
	// Rejoined is set when an existing row for the user was reused.
	Rejoined bool `json:"rejoined"`
}

// JoinRoom admits a user into a room. A refused join returns *JoinError and
// leaves no participant row behind. A user that already has a row in the room
// gets it back only with a token issued for that row.
func (s service) JoinRoom(ctx context.Context, params *JoinRoomParams) (JoinRoomResponse, error) {
	r, err := s.roomRepo.GetRoom(ctx, params.RoomID)
	if err != nil {
		s.logger.InfoContext(ctx, "failed to get room", "error", err)
		return JoinRoomResponse{}, fmt.Errorf("failed to get room: %w", err)
	}

	if r.Status == playback.StatusEnded {
		metrics.RecordJoin("room_ended")
		return JoinRoomResponse{}, &JoinError{Reason: ErrRoomEnded}
	}

	if r.HasPassword() {
		if err := bcrypt.CompareHashAndPassword([]byte(r.PasswordHash), []byte(params.Password)); err != nil {
			metrics.RecordJoin("wrong_password")
			return JoinRoomResponse{}, &JoinError{Reason: ErrWrongPassword}
		}
	}

	userID := params.UserID
	var rejoinID string
	if params.AuthToken != "" {
		claims, err := s.parseRejoinToken(params.AuthToken)
		if err != nil {
			metrics.RecordJoin("invalid_token")
			return JoinRoomResponse{}, err
		}
		if userID == "" {
			userID = claims.UserID
		}
		if claims.RoomID != r.ID || claims.UserID != userID {
			metrics.RecordJoin("invalid_token")
			return JoinRoomResponse{}, ErrInvalidToken
		}
		rejoinID = claims.ParticipantID
	}
	if userID == "" {
		userID = uuid.NewString()
	}
	// the host row is created with the room, so the host only ever rejoins
	if userID == r.HostID && rejoinID == "" {
		metrics.RecordJoin("already_joined")
		return JoinRoomResponse{}, &JoinError{Reason: ErrAlreadyJoined}
	}

	joined, err := s.roomRepo.JoinParticipant(ctx, &room.JoinParticipantParams{
		RoomID:              r.ID,
		ParticipantID:       uuid.NewString(),
		RejoinParticipantID: rejoinID,
		UserID:              userID,
		Username:            params.Username,
		IsModerator:         userID == r.HostID,
		JoinedAt:            s.now(),
	})
	if err != nil {
		switch {
		case errors.Is(err, room.ErrRoomFull):
			metrics.RecordJoin("room_full")
			return JoinRoomResponse{}, &JoinError{Reason: ErrRoomFull}
		case errors.Is(err, room.ErrParticipantExists):
			metrics.RecordJoin("already_joined")
			return JoinRoomResponse{}, &JoinError{Reason: ErrAlreadyJoined}
		case errors.Is(err, room.ErrParticipantRemoved):
			metrics.RecordJoin("removed")
			return JoinRoomResponse{}, &JoinError{Reason: ErrParticipantRemoved}
		}
		s.logger.InfoContext(ctx, "failed to join participant", "error", err)
		return JoinRoomResponse{}, fmt.Errorf("failed to join participant: %w", err)
	}
	metrics.RecordJoin("joined")

	if joined.Created || joined.Reactivated {
		s.publishBestEffort(ctx, broker.ParticipantsTopic(r.ID), broker.TypeParticipantUpdated, joined.Participant)
	}

	token, err := s.generateJWT(r.ID, joined.Participant.ID, userID)
	if err != nil {
		s.logger.InfoContext(ctx, "failed to generate jwt", "error", err)
		return JoinRoomResponse{}, fmt.Errorf("failed to generate jwt: %w", err)
	}

	return JoinRoomResponse{
		Participant: joined.Participant,
		AuthToken:   token,
		Rejoined:    !joined.Created,
	}, nil
}

// LoadRoom fetches the room, its participants and the recent chat history.
// An unknown room is reported as ErrRoomNotFound, any other failure as
// *LoadError.
func (s service) LoadRoom(ctx context.Context, roomID string) (RoomState, error) {
	r, err := s.roomRepo.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			return RoomState{}, err
		}
		s.logger.InfoContext(ctx, "failed to get room", "error", err)
		return RoomState{}, &LoadError{Err: err}
	}

	participants, err := s.roomRepo.GetParticipants(ctx, roomID)
	if err != nil {
		s.logger.InfoContext(ctx, "failed to get participants", "error", err)
		return RoomState{}, &LoadError{Err: err}
	}

	messages, err := s.roomRepo.GetRecentMessages(ctx, roomID, s.messageHistory)
	if err != nil {
		s.logger.InfoContext(ctx, "failed to get messages", "error", err)
		return RoomState{}, &LoadError{Err: err}
	}

	return RoomState{
		Room:         r,
		Participants: participants,
		Messages:     messages,
	}, nil
}

type SetRoomStatusParams struct {
	RoomID   string
	SenderID string
}

// StartRoom moves a waiting room to playing, releasing non-host controls.
func (s service) StartRoom(ctx context.Context, params *SetRoomStatusParams) (Room, error) {
	return s.transitionRoom(ctx, params, playback.StatusPlaying, func(from playback.Status) bool {
		return from == playback.StatusWaiting
	})
}

// EndRoom moves any room that has not ended to the terminal ended state.
func (s service) EndRoom(ctx context.Context, params *SetRoomStatusParams) (Room, error) {
	return s.transitionRoom(ctx, params, playback.StatusEnded, func(from playback.Status) bool {
		return from != playback.StatusEnded
	})
}

func (s service) transitionRoom(ctx context.Context, params *SetRoomStatusParams, to playback.Status, allowed func(playback.Status) bool) (Room, error) {
	r, sender, err := s.getActiveSender(ctx, params.RoomID, params.SenderID)
	if err != nil {
		return Room{}, err
	}

	if !isHost(r, sender) {
		s.logger.InfoContext(ctx, "sender is not host", "sender_id", params.SenderID)
		return Room{}, ErrPermissionDenied
	}

	if !allowed(r.Status) {
		return Room{}, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, r.Status, to)
	}

	if err := s.roomRepo.UpdateRoomStatus(ctx, &room.UpdateRoomStatusParams{
		RoomID:    params.RoomID,
		Status:    to,
		UpdatedAt: s.now(),
	}); err != nil {
		if errors.Is(err, room.ErrRoomEnded) {
			return Room{}, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, playback.StatusEnded, to)
		}
		s.logger.InfoContext(ctx, "failed to update room status", "error", err)
		return Room{}, fmt.Errorf("failed to update room status: %w", err)
	}

	updated, err := s.roomRepo.GetRoom(ctx, params.RoomID)
	if err != nil {
		s.logger.InfoContext(ctx, "failed to get room", "error", err)
		return Room{}, fmt.Errorf("failed to get room: %w", err)
	}

	s.publishBestEffort(ctx, broker.PlaybackTopic(params.RoomID), broker.TypeRoomUpdated, updated)

	return updated, nil
}
