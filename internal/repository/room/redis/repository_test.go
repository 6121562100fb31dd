package redis

import (
	"context"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/skillforge/watchroom/internal/repository/room"
	"github.com/skillforge/watchroom/pkg/playback"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) (*repo, *miniredis.Miniredis) {
	t.Helper()

	s := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	t.Cleanup(func() { rc.Close() })

	return NewRepo(rc, slog.Default(), time.Hour), s
}

func seedRoom(t *testing.T, r *repo, roomID string, capacity int) room.Room {
	t.Helper()

	rm := room.Room{
		ID:              roomID,
		Name:            "Go study group",
		HostID:          "host-user",
		Visibility:      room.VisibilityPublic,
		Status:          playback.StatusWaiting,
		Video:           room.Video{URL: "https://youtu.be/dQw4w9WgXcQ", Title: "Lecture 1", Duration: 120},
		MaxParticipants: capacity,
		Settings: room.Settings{
			AllowChat:     true,
			SyncThreshold: 3,
		},
		CreatedAt: 1000,
		UpdatedAt: 1000,
	}
	require.NoError(t, r.SetRoom(context.Background(), &room.SetRoomParams{Room: rm}))

	return rm
}

func join(t *testing.T, r *repo, roomID, userID string) (room.JoinParticipantResponse, error) {
	t.Helper()

	return r.JoinParticipant(context.Background(), &room.JoinParticipantParams{
		RoomID:              roomID,
		ParticipantID:       "p-" + userID,
		RejoinParticipantID: "p-" + userID,
		UserID:              userID,
		Username:            userID,
		JoinedAt:            2000,
	})
}

func TestSetGetRoom(t *testing.T) {
	r, s := newTestRepo(t)
	ctx := context.Background()

	want := seedRoom(t, r, "room1", 8)
	got, err := r.GetRoom(ctx, "room1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	fields, err := s.HKeys("room:room1")
	require.NoError(t, err)
	assert.NotContains(t, fields, "password_hash", "empty optional fields are not written")
	assert.Greater(t, s.TTL("room:room1"), time.Duration(0))

	_, err = r.GetRoom(ctx, "missing")
	assert.ErrorIs(t, err, room.ErrRoomNotFound)
}

func TestUpdatePlaybackState(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	seedRoom(t, r, "room1", 8)

	playing := playback.StatusPlaying
	require.NoError(t, r.UpdatePlaybackState(ctx, &room.UpdatePlaybackStateParams{
		RoomID:      "room1",
		CurrentTime: 42.5,
		Status:      &playing,
		UpdatedAt:   3000,
	}))

	got, err := r.GetRoom(ctx, "room1")
	require.NoError(t, err)
	assert.Equal(t, 42.5, got.CurrentTime)
	assert.Equal(t, playback.StatusPlaying, got.Status)
	assert.Equal(t, int64(3000), got.UpdatedAt)

	require.NoError(t, r.UpdatePlaybackState(ctx, &room.UpdatePlaybackStateParams{RoomID: "room1", CurrentTime: 500}))
	got, err = r.GetRoom(ctx, "room1")
	require.NoError(t, err)
	assert.Equal(t, 120.0, got.CurrentTime, "position is clamped to duration")
	assert.Equal(t, playback.StatusPlaying, got.Status, "nil status is left untouched")

	require.NoError(t, r.UpdatePlaybackState(ctx, &room.UpdatePlaybackStateParams{RoomID: "room1", CurrentTime: -4}))
	got, err = r.GetRoom(ctx, "room1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.CurrentTime)

	err = r.UpdatePlaybackState(ctx, &room.UpdatePlaybackStateParams{RoomID: "missing", CurrentTime: 1})
	assert.ErrorIs(t, err, room.ErrRoomNotFound)
}

func TestEndedRoomIsTerminal(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	seedRoom(t, r, "room1", 8)

	require.NoError(t, r.UpdateRoomStatus(ctx, &room.UpdateRoomStatusParams{RoomID: "room1", Status: playback.StatusEnded}))

	err := r.UpdateRoomStatus(ctx, &room.UpdateRoomStatusParams{RoomID: "room1", Status: playback.StatusPlaying})
	assert.ErrorIs(t, err, room.ErrRoomEnded)

	err = r.UpdatePlaybackState(ctx, &room.UpdatePlaybackStateParams{RoomID: "room1", CurrentTime: 10})
	assert.ErrorIs(t, err, room.ErrRoomEnded)

	got, err := r.GetRoom(ctx, "room1")
	require.NoError(t, err)
	assert.Equal(t, playback.StatusEnded, got.Status)
}

func TestUpdateRoomVideo(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	seedRoom(t, r, "room1", 8)
	require.NoError(t, r.UpdatePlaybackState(ctx, &room.UpdatePlaybackStateParams{RoomID: "room1", CurrentTime: 90}))

	paused := playback.StatusPaused
	require.NoError(t, r.UpdateRoomVideo(ctx, &room.UpdateRoomVideoParams{
		RoomID: "room1",
		Video:  room.Video{URL: "https://youtu.be/abcdefghijk", Title: "Lecture 2", Duration: 30},
		Status: &paused,
	}))

	got, err := r.GetRoom(ctx, "room1")
	require.NoError(t, err)
	assert.Equal(t, "Lecture 2", got.Video.Title)
	assert.Equal(t, 30.0, got.Video.Duration)
	assert.Equal(t, 0.0, got.CurrentTime)
	assert.Equal(t, playback.StatusPaused, got.Status)
}

func TestJoinParticipantCapacity(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	seedRoom(t, r, "room1", 2)

	first, err := join(t, r, "room1", "alice")
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, room.PresenceOnline, first.Participant.Presence)
	assert.Equal(t, "room1", first.Participant.RoomID)

	second, err := join(t, r, "room1", "bob")
	require.NoError(t, err)
	assert.True(t, second.Created)

	_, err = join(t, r, "room1", "carol")
	assert.ErrorIs(t, err, room.ErrRoomFull)

	participants, err := r.GetParticipants(ctx, "room1")
	require.NoError(t, err)
	assert.Len(t, participants, 2)
	assert.Equal(t, "alice", participants[0].UserID)
	assert.Equal(t, "bob", participants[1].UserID)

	_, err = r.GetParticipant(ctx, "p-carol")
	assert.ErrorIs(t, err, room.ErrParticipantNotFound, "refused join must not create a row")
}

func TestJoinParticipantReusesRow(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	seedRoom(t, r, "room1", 2)

	first, err := join(t, r, "room1", "alice")
	require.NoError(t, err)

	_, err = r.JoinParticipant(ctx, &room.JoinParticipantParams{
		RoomID:        "room1",
		ParticipantID: "another-id",
		UserID:        "alice",
		Username:      "alice",
	})
	assert.ErrorIs(t, err, room.ErrParticipantExists, "an existing row is not handed out without proof")

	again, err := r.JoinParticipant(ctx, &room.JoinParticipantParams{
		RoomID:              "room1",
		ParticipantID:       "another-id",
		RejoinParticipantID: first.Participant.ID,
		UserID:              "alice",
		Username:            "alice",
	})
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.False(t, again.Reactivated)
	assert.Equal(t, first.Participant.ID, again.Participant.ID)

	changed, err := r.UpdateParticipantPresence(ctx, &room.UpdateParticipantPresenceParams{
		RoomID:        "room1",
		ParticipantID: first.Participant.ID,
		Presence:      room.PresenceOffline,
		UpdatedAt:     5000,
	})
	require.NoError(t, err)
	assert.True(t, changed)

	offline, err := r.GetParticipant(ctx, first.Participant.ID)
	require.NoError(t, err)
	assert.Equal(t, room.PresenceOffline, offline.Presence)
	assert.Equal(t, int64(5000), offline.LeftAt)

	back, err := join(t, r, "room1", "alice")
	require.NoError(t, err)
	assert.True(t, back.Reactivated)
	assert.Equal(t, first.Participant.ID, back.Participant.ID)
	assert.Equal(t, room.PresenceOnline, back.Participant.Presence)
	assert.Zero(t, back.Participant.LeftAt)

	participants, err := r.GetParticipants(ctx, "room1")
	require.NoError(t, err)
	assert.Len(t, participants, 1)
}

func TestOfflineParticipantsFreeCapacity(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	seedRoom(t, r, "room1", 2)

	alice, err := join(t, r, "room1", "alice")
	require.NoError(t, err)
	_, err = join(t, r, "room1", "bob")
	require.NoError(t, err)

	_, err = r.UpdateParticipantPresence(ctx, &room.UpdateParticipantPresenceParams{
		RoomID:        "room1",
		ParticipantID: alice.Participant.ID,
		Presence:      room.PresenceOffline,
	})
	require.NoError(t, err)

	_, err = join(t, r, "room1", "carol")
	require.NoError(t, err)

	_, err = r.UpdateParticipantPresence(ctx, &room.UpdateParticipantPresenceParams{
		RoomID:        "room1",
		ParticipantID: alice.Participant.ID,
		Presence:      room.PresenceOnline,
	})
	assert.ErrorIs(t, err, room.ErrRoomFull)

	_, err = join(t, r, "room1", "alice")
	assert.ErrorIs(t, err, room.ErrRoomFull)

	changed, err := r.UpdateParticipantPresence(ctx, &room.UpdateParticipantPresenceParams{
		RoomID:        "room1",
		ParticipantID: "p-bob",
		Presence:      room.PresenceOnline,
	})
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = r.UpdateParticipantPresence(ctx, &room.UpdateParticipantPresenceParams{
		RoomID:        "room1",
		ParticipantID: "missing",
		Presence:      room.PresenceAway,
	})
	assert.ErrorIs(t, err, room.ErrParticipantNotFound)
}

func TestJoinMissingRoom(t *testing.T) {
	r, _ := newTestRepo(t)

	_, err := join(t, r, "missing", "alice")
	assert.ErrorIs(t, err, room.ErrRoomNotFound)
}

func TestUpdateParticipantIsModerator(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	seedRoom(t, r, "room1", 2)

	alice, err := join(t, r, "room1", "alice")
	require.NoError(t, err)
	assert.False(t, alice.Participant.IsModerator)

	require.NoError(t, r.UpdateParticipantIsModerator(ctx, &room.UpdateParticipantIsModeratorParams{
		ParticipantID: alice.Participant.ID,
		IsModerator:   true,
	}))

	got, err := r.GetParticipant(ctx, alice.Participant.ID)
	require.NoError(t, err)
	assert.True(t, got.IsModerator)

	err = r.UpdateParticipantIsModerator(ctx, &room.UpdateParticipantIsModeratorParams{ParticipantID: "missing"})
	assert.ErrorIs(t, err, room.ErrParticipantNotFound)
}

func TestMessages(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		require.NoError(t, r.AddMessage(ctx, &room.AddMessageParams{
			Message: room.Message{
				ID:        "m" + strconv.Itoa(i),
				RoomID:    "room1",
				Text:      "hello " + strconv.Itoa(i),
				CreatedAt: int64(i),
			},
			Limit: 3,
		}))
	}

	messages, err := r.GetRecentMessages(ctx, "room1", 10)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "m3", messages[0].ID)
	assert.Equal(t, "m5", messages[2].ID)

	messages, err = r.GetRecentMessages(ctx, "room1", 2)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "m4", messages[0].ID)

	messages, err = r.GetRecentMessages(ctx, "empty", 10)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestNextSeq(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		seq, err := r.NextSeq(ctx, "room1")
		require.NoError(t, err)
		assert.Equal(t, want, seq)
	}
}

func TestRemoveRoom(t *testing.T) {
	r, s := newTestRepo(t)
	ctx := context.Background()
	seedRoom(t, r, "room1", 2)

	_, err := join(t, r, "room1", "alice")
	require.NoError(t, err)
	require.NoError(t, r.AddMessage(ctx, &room.AddMessageParams{Message: room.Message{ID: "m1", RoomID: "room1"}}))
	_, err = r.NextSeq(ctx, "room1")
	require.NoError(t, err)

	require.NoError(t, r.RemoveRoom(ctx, "room1"))
	assert.Empty(t, s.Keys())

	assert.ErrorIs(t, r.RemoveRoom(ctx, "room1"), room.ErrRoomNotFound)
}

func TestRemoveParticipant(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	seedRoom(t, r, "room1", 4)

	alice, err := join(t, r, "room1", "alice")
	require.NoError(t, err)

	require.NoError(t, r.RemoveParticipant(ctx, &room.RemoveParticipantParams{
		ParticipantID: alice.Participant.ID,
		RemovedAt:     7000,
	}))

	removed, err := r.GetParticipant(ctx, alice.Participant.ID)
	require.NoError(t, err)
	assert.Equal(t, room.PresenceOffline, removed.Presence)
	assert.Equal(t, int64(7000), removed.LeftAt)
	assert.True(t, removed.Removed())

	_, err = r.UpdateParticipantPresence(ctx, &room.UpdateParticipantPresenceParams{
		RoomID:        "room1",
		ParticipantID: alice.Participant.ID,
		Presence:      room.PresenceOnline,
	})
	assert.ErrorIs(t, err, room.ErrParticipantRemoved)

	_, err = join(t, r, "room1", "alice")
	assert.ErrorIs(t, err, room.ErrParticipantRemoved)

	changed, err := r.UpdateParticipantPresence(ctx, &room.UpdateParticipantPresenceParams{
		RoomID:        "room1",
		ParticipantID: alice.Participant.ID,
		Presence:      room.PresenceOffline,
	})
	require.NoError(t, err)
	assert.False(t, changed)

	err = r.RemoveParticipant(ctx, &room.RemoveParticipantParams{ParticipantID: "missing"})
	assert.ErrorIs(t, err, room.ErrParticipantNotFound)
}

func TestUpdatePlaybackStateSkipsStaleSeq(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	seedRoom(t, r, "room1", 8)

	paused := playback.StatusPaused
	playing := playback.StatusPlaying
	require.NoError(t, r.UpdatePlaybackState(ctx, &room.UpdatePlaybackStateParams{
		RoomID:      "room1",
		CurrentTime: 30,
		Status:      &paused,
		Seq:         5,
	}))

	err := r.UpdatePlaybackState(ctx, &room.UpdatePlaybackStateParams{
		RoomID:      "room1",
		CurrentTime: 20,
		Status:      &playing,
		Seq:         4,
	})
	assert.ErrorIs(t, err, room.ErrStaleSnapshot)

	got, err := r.GetRoom(ctx, "room1")
	require.NoError(t, err)
	assert.Equal(t, playback.StatusPaused, got.Status)
	assert.Equal(t, 30.0, got.CurrentTime)

	require.NoError(t, r.UpdatePlaybackState(ctx, &room.UpdatePlaybackStateParams{RoomID: "room1", CurrentTime: 10}),
		"unsequenced writes are not guarded")
	require.NoError(t, r.UpdatePlaybackState(ctx, &room.UpdatePlaybackStateParams{RoomID: "room1", CurrentTime: 40, Seq: 6}))
	got, err = r.GetRoom(ctx, "room1")
	require.NoError(t, err)
	assert.Equal(t, 40.0, got.CurrentTime)
}
