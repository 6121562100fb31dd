package controller

import (
	"errors"
	"net/http"

	"github.com/skillforge/watchroom/internal/service/room"
	"github.com/skillforge/watchroom/pkg/playback"
	"github.com/skillforge/watchroom/pkg/rest"
	"github.com/skillforge/watchroom/pkg/wsrouter"
)

var (
	errRateLimited  = errors.New("too many messages")
	errInvalidInput = errors.New("invalid input")
)

func errorStatus(err error) int {
	var (
		joinErr *room.JoinError
		loadErr *room.LoadError
		sendErr *room.SendError
	)

	switch {
	case errors.As(err, &joinErr):
		if errors.Is(err, room.ErrWrongPassword) || errors.Is(err, room.ErrParticipantRemoved) {
			return http.StatusForbidden
		}
		return http.StatusConflict
	case errors.As(err, &loadErr), errors.As(err, &sendErr):
		return http.StatusBadGateway
	case errors.Is(err, room.ErrRoomNotFound),
		errors.Is(err, room.ErrParticipantNotFound):
		return http.StatusNotFound
	case errors.Is(err, room.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, room.ErrPermissionDenied),
		errors.Is(err, room.ErrControlsLocked),
		errors.Is(err, room.ErrParticipantRemoved),
		errors.Is(err, room.ErrChatDisabled):
		return http.StatusForbidden
	case errors.Is(err, room.ErrRoomEnded),
		errors.Is(err, room.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, room.ErrInvalidCapacity),
		errors.Is(err, room.ErrInvalidSyncThreshold),
		errors.Is(err, room.ErrInvalidMessage),
		errors.Is(err, room.ErrInvalidPresence),
		errors.Is(err, playback.ErrInvalidEvent),
		errors.Is(err, wsrouter.ErrInvalidPayload),
		errors.Is(err, errInvalidInput),
		errors.Is(err, wsrouter.ErrUnknownMessageType):
		return http.StatusBadRequest
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	}

	return http.StatusInternalServerError
}

// errorMessage hides internal failures from clients.
func errorMessage(status int, err error) string {
	if status == http.StatusInternalServerError {
		return http.StatusText(status)
	}

	return err.Error()
}

func (c controller) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		c.logger.WarnContext(r.Context(), "request failed", "status", status, "error", err)
	} else {
		c.logger.DebugContext(r.Context(), "request rejected", "status", status, "error", err)
	}

	rest.WriteJSON(w, status, rest.Envelope{"error": errorMessage(status, err)})
}
