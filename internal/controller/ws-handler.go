package controller

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/skillforge/watchroom/internal/broker"
	"github.com/skillforge/watchroom/internal/metrics"
	"github.com/skillforge/watchroom/internal/service/room"
	"github.com/skillforge/watchroom/pkg/ctxlogger"
	"github.com/skillforge/watchroom/pkg/playback"
	"github.com/skillforge/watchroom/pkg/rest"
	"golang.org/x/time/rate"
)

type errorOutput struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

type roomStateOutput struct {
	RoomState   room.RoomState   `json:"room_state"`
	Participant room.Participant `json:"participant"`
}

// connectRoom upgrades an authenticated participant and serves its socket
// until either side closes it.
func (c controller) connectRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "room-id")

	claims, err := c.roomService.ParseToken(r.URL.Query().Get("token"))
	if err != nil {
		c.logger.DebugContext(r.Context(), "failed to parse token", "error", err)
		rest.WriteJSON(w, http.StatusUnauthorized, rest.Envelope{"error": "invalid token"})
		return
	}

	if claims.RoomID != roomID {
		rest.WriteJSON(w, http.StatusForbidden, rest.Envelope{"error": "token was issued for another room"})
		return
	}

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	ctx := context.WithValue(r.Context(), roomIDCtxKey, roomID)
	ctx = context.WithValue(ctx, participantIDCtxKey, claims.ParticipantID)
	ctx = context.WithValue(ctx, userIDCtxKey, claims.UserID)
	ctx = ctxlogger.AppendCtx(ctx, slog.String("room_id", roomID))
	ctx = ctxlogger.AppendCtx(ctx, slog.String("participant_id", claims.ParticipantID))

	cl := newClient(conn, rate.NewLimiter(c.wsRate, c.wsBurst), c.logger.With("participant_id", claims.ParticipantID))
	ctx = context.WithValue(ctx, clientCtxKey, cl)

	participant, err := c.roomService.ConnectParticipant(ctx, &room.ConnectParticipantParams{
		RoomID:        roomID,
		ParticipantID: claims.ParticipantID,
		Conn:          cl,
	})
	if err != nil {
		c.logger.InfoContext(ctx, "failed to connect participant", "error", err)
		status := errorStatus(err)
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		conn.WriteJSON(&Output{Type: typeError, Payload: errorOutput{Status: status, Message: errorMessage(status, err)}})
		cl.Close(websocket.ClosePolicyViolation, errorMessage(status, err))
		return
	}

	go cl.writePump()
	defer cl.Close(websocket.CloseNormalClosure, "")

	metrics.WSConnections.Inc()
	defer metrics.WSConnections.Dec()

	defer c.disconnect(ctx, roomID, claims.ParticipantID, cl)

	unsubscribe, err := c.roomService.Subscribe(ctx, roomID, c.forwardHandlers(cl, claims.UserID))
	if err != nil {
		c.logger.WarnContext(ctx, "failed to subscribe", "error", err)
		cl.Close(websocket.CloseInternalServerErr, "subscribe failed")
		return
	}
	defer unsubscribe()

	roomState, err := c.roomService.LoadRoom(ctx, roomID)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to load room", "error", err)
		cl.Close(websocket.CloseInternalServerErr, "load failed")
		return
	}

	if err := cl.write(&Output{
		Type: typeRoomState,
		Payload: roomStateOutput{
			RoomState:   roomState,
			Participant: participant,
		},
	}); err != nil {
		c.logger.WarnContext(ctx, "failed to write room state", "error", err)
		return
	}

	if err := c.wsRouter.ServeConn(ctx, conn, c.writeWSError); err != nil {
		var closeErr *websocket.CloseError
		if errors.As(err, &closeErr) {
			c.logger.InfoContext(ctx, "websocket closed", "code", closeErr.Code)
		} else {
			c.logger.DebugContext(ctx, "stopped serving conn", "error", err)
		}
	}
}

// disconnect runs after the request context may already be canceled.
func (c controller) disconnect(ctx context.Context, roomID, participantID string, cl *client) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.requestTimeout)
	defer cancel()

	if err := c.roomService.DisconnectParticipant(ctx, &room.DisconnectParticipantParams{
		RoomID:        roomID,
		ParticipantID: participantID,
		Conn:          cl,
	}); err != nil {
		c.logger.WarnContext(ctx, "failed to disconnect participant", "error", err)
	}
}

func (c controller) writeWSError(ctx context.Context, err error) {
	cl := c.getClientFromCtx(ctx)
	if cl == nil {
		return
	}

	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		c.logger.WarnContext(ctx, "websocket message failed", "error", err)
	}

	if werr := cl.write(&Output{
		Type:    typeError,
		Payload: errorOutput{Status: status, Message: errorMessage(status, err)},
	}); werr != nil {
		c.logger.DebugContext(ctx, "failed to write error", "error", werr)
	}
}

// forwardHandlers relays room feeds to one client. Sync events are not
// echoed back to the user who emitted them.
func (c controller) forwardHandlers(cl *client, userID string) room.Handlers {
	forward := func(ctx context.Context, messageType string, payload any) {
		if err := cl.write(&Output{Type: messageType, Payload: payload}); err != nil {
			c.logger.DebugContext(ctx, "failed to forward", "type", messageType, "error", err)
		}
	}

	return room.Handlers{
		OnSyncEvent: func(ctx context.Context, ev playback.SyncEvent) {
			if ev.UserID == userID {
				return
			}
			forward(ctx, broker.TypeSyncEvent, ev)
		},
		OnRoomUpdated: func(ctx context.Context, r room.Room) {
			forward(ctx, broker.TypeRoomUpdated, r)
		},
		OnMessage: func(ctx context.Context, m room.Message) {
			forward(ctx, broker.TypeMessageCreated, m)
		},
		OnParticipant: func(ctx context.Context, p room.Participant) {
			forward(ctx, broker.TypeParticipantUpdated, p)
		},
	}
}
