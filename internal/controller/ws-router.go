package controller

import "github.com/skillforge/watchroom/pkg/wsrouter"

// Inbound message types.
const (
	typeAlive               = "ALIVE"
	typeSyncEvent           = "SYNC_EVENT"
	typeUpdatePlaybackState = "UPDATE_PLAYBACK_STATE"
	typeSendMessage         = "SEND_MESSAGE"
	typeUpdatePresence      = "UPDATE_PRESENCE"
	typeStartRoom           = "START_ROOM"
	typeEndRoom             = "END_ROOM"
	typePromoteParticipant  = "PROMOTE_PARTICIPANT"
	typeRemoveParticipant   = "REMOVE_PARTICIPANT"
)

// Outbound message types not covered by the broker envelopes.
const (
	typeRoomState = "ROOM_STATE"
	typeError     = "ERROR"
)

func (c controller) getWSRouter() *wsrouter.WSRouter {
	r := wsrouter.New()
	r.Use(c.wsRequestIdWSMw())
	r.Use(c.loggerWSMw())
	r.Use(c.rateLimitWSMw())

	wsrouter.Handle(r, typeAlive, c.handleAlive)
	wsrouter.Handle(r, typeSyncEvent, c.handleSyncEvent)
	wsrouter.Handle(r, typeUpdatePlaybackState, c.handleUpdatePlaybackState)
	wsrouter.Handle(r, typeSendMessage, c.handleSendMessage)
	wsrouter.Handle(r, typeUpdatePresence, c.handleUpdatePresence)
	wsrouter.Handle(r, typeStartRoom, c.handleStartRoom)
	wsrouter.Handle(r, typeEndRoom, c.handleEndRoom)
	wsrouter.Handle(r, typePromoteParticipant, c.handlePromoteParticipant)
	wsrouter.Handle(r, typeRemoveParticipant, c.handleRemoveParticipant)

	return r
}
