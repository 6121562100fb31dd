package watchclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/skillforge/watchroom/pkg/playback"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wsFrame struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// fakeRoom accepts one socket, replies with first and then forwards frames
// pushed via the returned channel. Frames read from the client are sent to
// received.
func fakeRoom(t *testing.T, first wsFrame) (*httptest.Server, chan<- wsFrame, <-chan frame) {
	t.Helper()

	push := make(chan wsFrame, 16)
	received := make(chan frame, 16)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/ws/room/room-1", r.URL.Path)
		assert.Equal(t, "token", r.URL.Query().Get("token"))

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if err := conn.WriteJSON(first); err != nil {
			return
		}

		go func() {
			for {
				var f frame
				if err := conn.ReadJSON(&f); err != nil {
					return
				}
				received <- f
			}
		}()

		for {
			select {
			case f := <-push:
				if err := conn.WriteJSON(f); err != nil {
					return
				}
			case <-r.Context().Done():
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	return srv, push, received
}

func roomStateFrame(status playback.Status, currentTime float64) wsFrame {
	return wsFrame{Type: "ROOM_STATE", Payload: roomStatePayload{
		RoomState: RoomState{Room: Room{
			ID:          "room-1",
			HostID:      "host",
			Status:      status,
			CurrentTime: currentTime,
			Settings:    Settings{SyncThreshold: 3},
		}},
		Participant: Participant{ID: "p-1", UserID: "bob"},
	}}
}

func TestSubscribeReadsRoomState(t *testing.T) {
	srv, _, _ := fakeRoom(t, roomStateFrame(playback.StatusPaused, 12))

	s, err := New(srv.URL).Subscribe(context.Background(), "room-1", "token")
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, "room-1", s.State().Room.ID)
	assert.Equal(t, "p-1", s.Participant().ID)
}

func TestSubscribeRejected(t *testing.T) {
	srv, _, _ := fakeRoom(t, wsFrame{Type: "ERROR", Payload: errorPayload{Status: http.StatusConflict, Message: "Room is full"}})

	_, err := New(srv.URL).Subscribe(context.Background(), "room-1", "token")

	var joinErr *JoinError
	require.ErrorAs(t, err, &joinErr)
	assert.Equal(t, "Room is full", joinErr.Reason)
}

func TestSubscribeMalformedErrorFrame(t *testing.T) {
	srv, _, _ := fakeRoom(t, wsFrame{Type: "ERROR", Payload: "not an object"})

	_, err := New(srv.URL).Subscribe(context.Background(), "room-1", "token")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode error frame")

	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}

func TestSessionDispatchAndSend(t *testing.T) {
	srv, push, received := fakeRoom(t, roomStateFrame(playback.StatusPlaying, 0))

	s, err := New(srv.URL).Subscribe(context.Background(), "room-1", "token")
	require.NoError(t, err)
	defer s.Close()

	messages := make(chan Message, 1)
	errs := make(chan *APIError, 1)
	s.Listen(context.Background(), Handlers{
		OnMessage: func(_ context.Context, m Message) { messages <- m },
		OnError:   func(_ context.Context, err *APIError) { errs <- err },
	})

	push <- wsFrame{Type: "MESSAGE_CREATED", Payload: Message{ID: "m-1", Text: "hello"}}
	push <- wsFrame{Type: "ERROR", Payload: errorPayload{Status: http.StatusForbidden, Message: "chat is disabled in this room"}}

	select {
	case m := <-messages:
		assert.Equal(t, "hello", m.Text)
	case <-time.After(3 * time.Second):
		t.Fatal("message not dispatched")
	}

	select {
	case err := <-errs:
		assert.Equal(t, http.StatusForbidden, err.Status)
	case <-time.After(3 * time.Second):
		t.Fatal("error not dispatched")
	}

	require.NoError(t, s.SendMessage(context.Background(), "hi"))
	select {
	case f := <-received:
		assert.Equal(t, "SEND_MESSAGE", f.Type)
		assert.JSONEq(t, `{"text":"hi"}`, string(f.Payload))
	case <-time.After(3 * time.Second):
		t.Fatal("message not sent")
	}
}

func TestSessionCloseIdempotent(t *testing.T) {
	srv, push, _ := fakeRoom(t, roomStateFrame(playback.StatusPlaying, 0))

	s, err := New(srv.URL).Subscribe(context.Background(), "room-1", "token")
	require.NoError(t, err)

	var mu sync.Mutex
	calls := 0
	s.Listen(context.Background(), Handlers{
		OnMessage: func(context.Context, Message) {
			mu.Lock()
			calls++
			mu.Unlock()
		},
	})

	require.NoError(t, s.Close())
	assert.NoError(t, s.Close())

	push <- wsFrame{Type: "MESSAGE_CREATED", Payload: Message{ID: "m-1"}}

	select {
	case <-s.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("read loop did not stop")
	}

	mu.Lock()
	assert.Zero(t, calls)
	mu.Unlock()
	assert.ErrorIs(t, s.SendMessage(context.Background(), "late"), ErrSessionClosed)
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []playback.SyncEvent
}

func (e *recordingEmitter) EmitSyncEvent(_ context.Context, ev playback.SyncEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return nil
}

func TestFollow(t *testing.T) {
	srv, push, _ := fakeRoom(t, roomStateFrame(playback.StatusPaused, 30))

	s, err := New(srv.URL).Subscribe(context.Background(), "room-1", "token")
	require.NoError(t, err)
	defer s.Close()

	clock := clockwork.NewFakeClock()
	player := playback.NewSimulatedPlayer(clock, 600)
	ctrl := playback.NewController(player, &recordingEmitter{}, "bob", playback.WithClock(clock))

	synced := make(chan playback.SyncEvent, 1)
	Follow(context.Background(), s, ctrl, Handlers{
		OnSyncEvent: func(_ context.Context, ev playback.SyncEvent) { synced <- ev },
	})

	// the initial snapshot moved the player to the persisted position
	assert.InDelta(t, 30, player.GetCurrentTime(), 0.001)
	assert.Equal(t, playback.StatusPaused, ctrl.Status())
	assert.False(t, ctrl.IsHost())

	push <- wsFrame{Type: "SYNC_EVENT", Payload: playback.SyncEvent{
		Type:        playback.EventPlay,
		CurrentTime: 100,
		UserID:      "host",
		Seq:         1,
	}}

	select {
	case ev := <-synced:
		assert.Equal(t, playback.EventPlay, ev.Type)
	case <-time.After(3 * time.Second):
		t.Fatal("sync event not dispatched")
	}

	assert.Equal(t, playback.PlayerStatePlaying, player.GetPlayerState())
	assert.InDelta(t, 100, player.GetCurrentTime(), 0.001)
}
