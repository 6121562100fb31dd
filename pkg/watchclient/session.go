package watchclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/skillforge/watchroom/pkg/playback"
)

const writeWait = 10 * time.Second

// Handlers receive live room frames. Nil handlers are skipped and handlers
// run one at a time on the session's read goroutine.
type Handlers struct {
	OnSyncEvent   func(ctx context.Context, ev playback.SyncEvent)
	OnRoomUpdated func(ctx context.Context, r Room)
	OnMessage     func(ctx context.Context, m Message)
	OnParticipant func(ctx context.Context, p Participant)
	// OnError receives ERROR frames answering this session's requests.
	OnError func(ctx context.Context, err *APIError)
	// OnClose runs once when the server closes the socket or the read fails.
	OnClose func(err error)
}

// Session is one live websocket connection to a room.
type Session struct {
	conn        *websocket.Conn
	state       RoomState
	participant Participant

	writeMu sync.Mutex

	// mu fences Close against handlers in flight.
	mu        sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once
	listen    sync.Once
	done      chan struct{}
}

// Subscribe opens the room socket and waits for the initial room state. It
// does not dispatch anything until Listen is called.
func (c *Client) Subscribe(ctx context.Context, roomID, token string) (*Session, error) {
	wsURL, err := c.wsURL(roomID, token)
	if err != nil {
		return nil, err
	}

	conn, resp, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			switch resp.StatusCode {
			case http.StatusUnauthorized, http.StatusForbidden:
				return nil, fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
			}
		}
		return nil, fmt.Errorf("failed to dial room: %w", err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
	} else {
		conn.SetReadDeadline(time.Now().Add(defaultTimeout))
	}

	var f frame
	if err := conn.ReadJSON(&f); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to read room state: %w", err)
	}
	conn.SetReadDeadline(time.Time{})

	switch f.Type {
	case "ROOM_STATE":
	case "ERROR":
		conn.Close()
		var p errorPayload
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return nil, fmt.Errorf("failed to decode error frame: %w", err)
		}
		if p.Status == http.StatusConflict || p.Status == http.StatusForbidden {
			return nil, &JoinError{Status: p.Status, Reason: p.Message}
		}
		return nil, &APIError{Status: p.Status, Message: p.Message}
	default:
		conn.Close()
		return nil, fmt.Errorf("unexpected first frame %q", f.Type)
	}

	var p roomStatePayload
	if err := json.Unmarshal(f.Payload, &p); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to decode room state: %w", err)
	}

	return &Session{
		conn:        conn,
		state:       p.RoomState,
		participant: p.Participant,
		done:        make(chan struct{}),
	}, nil
}

// State is the room state received on connect.
func (s *Session) State() RoomState {
	return s.state
}

func (s *Session) Participant() Participant {
	return s.participant
}

// Done is closed once the session stops reading.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Listen starts dispatching frames to h. Only the first call has an effect.
func (s *Session) Listen(ctx context.Context, h Handlers) {
	s.listen.Do(func() {
		go s.readLoop(ctx, h)
	})
}

func (s *Session) readLoop(ctx context.Context, h Handlers) {
	defer close(s.done)

	for {
		var f frame
		if err := s.conn.ReadJSON(&f); err != nil {
			if !s.closed.Load() && h.OnClose != nil {
				h.OnClose(err)
			}
			return
		}

		s.dispatch(ctx, h, f)
	}
}

func (s *Session) dispatch(ctx context.Context, h Handlers, f frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return
	}

	switch f.Type {
	case "SYNC_EVENT":
		var ev playback.SyncEvent
		if json.Unmarshal(f.Payload, &ev) == nil && h.OnSyncEvent != nil {
			h.OnSyncEvent(ctx, ev)
		}
	case "ROOM_UPDATED":
		var r Room
		if json.Unmarshal(f.Payload, &r) == nil && h.OnRoomUpdated != nil {
			h.OnRoomUpdated(ctx, r)
		}
	case "MESSAGE_CREATED":
		var m Message
		if json.Unmarshal(f.Payload, &m) == nil && h.OnMessage != nil {
			h.OnMessage(ctx, m)
		}
	case "PARTICIPANT_UPDATED":
		var p Participant
		if json.Unmarshal(f.Payload, &p) == nil && h.OnParticipant != nil {
			h.OnParticipant(ctx, p)
		}
	case "ERROR":
		var p errorPayload
		if json.Unmarshal(f.Payload, &p) == nil && h.OnError != nil {
			h.OnError(ctx, &APIError{Status: p.Status, Message: p.Message})
		}
	}
}

// Close shuts the session down. It is idempotent and once it returns no
// handler will run again. It must not be called from inside a handler.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		// wait out a handler in flight
		s.mu.Lock()
		s.mu.Unlock() //nolint:staticcheck

		s.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		s.writeMu.Unlock()

		err = s.conn.Close()
	})

	return err
}

func (s *Session) send(ctx context.Context, messageType string, payload any) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(writeWait)
	}
	s.conn.SetWriteDeadline(deadline)

	if err := s.conn.WriteJSON(outFrame{Type: messageType, Payload: payload}); err != nil {
		if errors.Is(err, websocket.ErrCloseSent) {
			return ErrSessionClosed
		}
		return fmt.Errorf("failed to send %s: %w", messageType, err)
	}

	return nil
}

type outFrame struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// EmitSyncEvent sends a playback intent to the room.
func (s *Session) EmitSyncEvent(ctx context.Context, ev playback.SyncEvent) error {
	return s.send(ctx, "SYNC_EVENT", ev)
}

func (s *Session) UpdatePlaybackState(ctx context.Context, currentTime float64, isPlaying *bool) error {
	return s.send(ctx, "UPDATE_PLAYBACK_STATE", map[string]any{
		"current_time": currentTime,
		"is_playing":   isPlaying,
	})
}

func (s *Session) SendMessage(ctx context.Context, text string) error {
	return s.send(ctx, "SEND_MESSAGE", map[string]string{"text": text})
}

func (s *Session) StartRoom(ctx context.Context) error {
	return s.send(ctx, "START_ROOM", nil)
}

func (s *Session) EndRoom(ctx context.Context) error {
	return s.send(ctx, "END_ROOM", nil)
}

// SetPresence switches between "online" and "away".
func (s *Session) SetPresence(ctx context.Context, presence string) error {
	return s.send(ctx, "UPDATE_PRESENCE", map[string]string{"presence": presence})
}

func (s *Session) Alive(ctx context.Context) error {
	return s.send(ctx, "ALIVE", nil)
}
