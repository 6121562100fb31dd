package controller

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/skillforge/watchroom/pkg/ctxlogger"
	"github.com/skillforge/watchroom/pkg/rest"
)

// generateTimeBasedId returns a UUIDv7, so ids sort by creation time.
func (c controller) generateTimeBasedId() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}

func (c controller) requestIdMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = ctxlogger.AppendCtx(ctx, slog.String("request_id", c.generateTimeBasedId()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (c controller) requestLoggingMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.logger.InfoContext(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"user_agent", r.UserAgent(),
		)
		next.ServeHTTP(w, r)
	})
}

// authMw requires a bearer token issued for the room in the URL.
func (c controller) authMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			rest.WriteJSON(w, http.StatusUnauthorized, rest.Envelope{"error": "missing bearer token"})
			return
		}

		claims, err := c.roomService.ParseToken(token)
		if err != nil {
			c.logger.DebugContext(r.Context(), "failed to parse token", "error", err)
			rest.WriteJSON(w, http.StatusUnauthorized, rest.Envelope{"error": "invalid token"})
			return
		}

		if claims.RoomID != chi.URLParam(r, "room-id") {
			rest.WriteJSON(w, http.StatusForbidden, rest.Envelope{"error": "token was issued for another room"})
			return
		}

		ctx := context.WithValue(r.Context(), claimsCtxKey, claims)
		ctx = ctxlogger.AppendCtx(ctx, slog.String("room_id", claims.RoomID))
		ctx = ctxlogger.AppendCtx(ctx, slog.String("participant_id", claims.ParticipantID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
