package controller

import (
	"context"

	"github.com/skillforge/watchroom/internal/service/room"
)

type contextKey int

const (
	roomIDCtxKey contextKey = iota
	participantIDCtxKey
	userIDCtxKey
	clientCtxKey
	claimsCtxKey
)

func (c controller) getRoomIDFromCtx(ctx context.Context) string {
	roomID, ok := ctx.Value(roomIDCtxKey).(string)
	if !ok {
		return ""
	}

	return roomID
}

func (c controller) getParticipantIDFromCtx(ctx context.Context) string {
	participantID, ok := ctx.Value(participantIDCtxKey).(string)
	if !ok {
		return ""
	}

	return participantID
}

func (c controller) getUserIDFromCtx(ctx context.Context) string {
	userID, ok := ctx.Value(userIDCtxKey).(string)
	if !ok {
		return ""
	}

	return userID
}

func (c controller) getClientFromCtx(ctx context.Context) *client {
	cl, _ := ctx.Value(clientCtxKey).(*client)
	return cl
}

func (c controller) getClaimsFromCtx(ctx context.Context) *room.Claims {
	claims, _ := ctx.Value(claimsCtxKey).(*room.Claims)
	return claims
}
