package watchclient

import (
	"context"

	"github.com/skillforge/watchroom/pkg/playback"
)

// Follow applies the session's initial room state to c and starts listening,
// feeding remote sync events and room snapshots into c. Handlers in h other
// than OnSyncEvent and OnRoomUpdated are kept; those two also still run after
// c has been updated.
func Follow(ctx context.Context, s *Session, c *playback.Controller, h Handlers) {
	c.HandleSnapshot(ctx, s.State().Room.Snapshot())

	onSyncEvent := h.OnSyncEvent
	h.OnSyncEvent = func(ctx context.Context, ev playback.SyncEvent) {
		c.HandleSyncEvent(ctx, ev)
		if onSyncEvent != nil {
			onSyncEvent(ctx, ev)
		}
	}

	onRoomUpdated := h.OnRoomUpdated
	h.OnRoomUpdated = func(ctx context.Context, r Room) {
		c.HandleSnapshot(ctx, r.Snapshot())
		if onRoomUpdated != nil {
			onRoomUpdated(ctx, r)
		}
	}

	s.Listen(ctx, h)
}
