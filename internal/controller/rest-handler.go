package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	repo "github.com/skillforge/watchroom/internal/repository/room"
	"github.com/skillforge/watchroom/internal/service/room"
	"github.com/skillforge/watchroom/pkg/rest"
)

func (c controller) readRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := rest.ReadJSON(r, dst); err != nil {
		c.logger.DebugContext(r.Context(), "failed to read json", "error", err)
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return false
	}

	if validationErrors, ok := c.validate.Validate(dst); !ok {
		c.logger.DebugContext(r.Context(), "failed to validate request", "errors", validationErrors)
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return false
	}

	return true
}

type createRoomRequest struct {
	Name              string  `json:"name" validate:"required,max=100"`
	Description       string  `json:"description" validate:"max=1000"`
	UserID            string  `json:"user_id" validate:"required,max=64"`
	Username          string  `json:"username" validate:"required,max=32"`
	Visibility        string  `json:"visibility" validate:"omitempty,oneof=public private"`
	Password          string  `json:"password" validate:"required_if=Visibility private,max=72"`
	ScheduledStartAt  int64   `json:"scheduled_start_at" validate:"gte=0"`
	VideoURL          string  `json:"video_url" validate:"required,url"`
	VideoTitle        string  `json:"video_title" validate:"max=200"`
	VideoDuration     float64 `json:"video_duration" validate:"gte=0"`
	MaxParticipants   int     `json:"max_participants" validate:"gte=0"`
	AllowChat         *bool   `json:"allow_chat"`
	AutoPlay          bool    `json:"auto_play"`
	SyncThreshold     float64 `json:"sync_threshold" validate:"gte=0"`
	AuthoritativeSeek bool    `json:"authoritative_seek"`
}

func (c controller) createRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if !c.readRequest(w, r, &req) {
		return
	}

	visibility := repo.VisibilityPublic
	if req.Visibility != "" {
		visibility = repo.Visibility(req.Visibility)
	}

	createRoomResp, err := c.roomService.CreateRoom(r.Context(), &room.CreateRoomParams{
		Name:              req.Name,
		Description:       req.Description,
		UserID:            req.UserID,
		Username:          req.Username,
		Visibility:        visibility,
		Password:          req.Password,
		ScheduledStartAt:  req.ScheduledStartAt,
		VideoURL:          req.VideoURL,
		VideoTitle:        req.VideoTitle,
		VideoDuration:     req.VideoDuration,
		MaxParticipants:   req.MaxParticipants,
		AllowChat:         req.AllowChat,
		AutoPlay:          req.AutoPlay,
		SyncThreshold:     req.SyncThreshold,
		AuthoritativeSeek: req.AuthoritativeSeek,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusCreated, rest.Envelope{"data": createRoomResp})
}

type joinRoomRequest struct {
	UserID   string `json:"user_id" validate:"required,max=64"`
	Username string `json:"username" validate:"required,max=32"`
	Password string `json:"password" validate:"max=72"`
	// AuthToken from an earlier join takes back the user's row.
	AuthToken string `json:"auth_token" validate:"max=2048"`
}

func (c controller) joinRoom(w http.ResponseWriter, r *http.Request) {
	var req joinRoomRequest
	if !c.readRequest(w, r, &req) {
		return
	}

	joinRoomResp, err := c.roomService.JoinRoom(r.Context(), &room.JoinRoomParams{
		RoomID:    chi.URLParam(r, "room-id"),
		UserID:    req.UserID,
		Username:  req.Username,
		Password:  req.Password,
		AuthToken: req.AuthToken,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": joinRoomResp})
}

func (c controller) getRoom(w http.ResponseWriter, r *http.Request) {
	claims := c.getClaimsFromCtx(r.Context())

	roomState, err := c.roomService.LoadRoom(r.Context(), claims.RoomID)
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": roomState})
}

func (c controller) startRoom(w http.ResponseWriter, r *http.Request) {
	claims := c.getClaimsFromCtx(r.Context())

	updated, err := c.roomService.StartRoom(r.Context(), &room.SetRoomStatusParams{
		RoomID:   claims.RoomID,
		SenderID: claims.ParticipantID,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": updated})
}

func (c controller) endRoom(w http.ResponseWriter, r *http.Request) {
	claims := c.getClaimsFromCtx(r.Context())

	updated, err := c.roomService.EndRoom(r.Context(), &room.SetRoomStatusParams{
		RoomID:   claims.RoomID,
		SenderID: claims.ParticipantID,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": updated})
}

type updatePlaybackRequest struct {
	CurrentTime float64 `json:"current_time" validate:"gte=0"`
	IsPlaying   *bool   `json:"is_playing"`
}

func (c controller) updatePlayback(w http.ResponseWriter, r *http.Request) {
	var req updatePlaybackRequest
	if !c.readRequest(w, r, &req) {
		return
	}

	claims := c.getClaimsFromCtx(r.Context())

	updated, err := c.roomService.UpdatePlaybackState(r.Context(), &room.UpdatePlaybackStateParams{
		RoomID:      claims.RoomID,
		SenderID:    claims.ParticipantID,
		CurrentTime: req.CurrentTime,
		IsPlaying:   req.IsPlaying,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": updated})
}

type changeVideoRequest struct {
	VideoURL string  `json:"video_url" validate:"required,url"`
	Title    string  `json:"title" validate:"max=200"`
	Duration float64 `json:"duration" validate:"gte=0"`
}

func (c controller) changeVideo(w http.ResponseWriter, r *http.Request) {
	var req changeVideoRequest
	if !c.readRequest(w, r, &req) {
		return
	}

	claims := c.getClaimsFromCtx(r.Context())

	updated, err := c.roomService.ChangeVideo(r.Context(), &room.ChangeVideoParams{
		RoomID:   claims.RoomID,
		SenderID: claims.ParticipantID,
		VideoURL: req.VideoURL,
		Title:    req.Title,
		Duration: req.Duration,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": updated})
}

type sendMessageRequest struct {
	Text string `json:"text" validate:"required"`
}

func (c controller) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if !c.readRequest(w, r, &req) {
		return
	}

	claims := c.getClaimsFromCtx(r.Context())

	msg, err := c.roomService.SendMessage(r.Context(), &room.SendMessageParams{
		RoomID:   claims.RoomID,
		SenderID: claims.ParticipantID,
		Text:     req.Text,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusCreated, rest.Envelope{"data": msg})
}
