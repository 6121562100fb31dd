package watchclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestCreateRoom(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/rooms", r.URL.Path)

		var req CreateRoomRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "host", req.UserID)

		writeJSON(w, http.StatusCreated, map[string]any{"data": CreateRoomResponse{
			Room:      Room{ID: "room-1", HostID: "host"},
			AuthToken: "token",
		}})
	}))
	defer srv.Close()

	resp, err := New(srv.URL).CreateRoom(context.Background(), &CreateRoomRequest{
		Name:     "Movie night",
		UserID:   "host",
		Username: "Host",
		VideoURL: "https://youtu.be/dQw4w9WgXcQ",
	})
	require.NoError(t, err)
	assert.Equal(t, "room-1", resp.Room.ID)
	assert.Equal(t, "token", resp.AuthToken)
}

func TestJoinRoomErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   map[string]any
		check  func(t *testing.T, err error)
	}{
		{
			name:   "full",
			status: http.StatusConflict,
			body:   map[string]any{"error": "Room is full"},
			check: func(t *testing.T, err error) {
				var joinErr *JoinError
				require.ErrorAs(t, err, &joinErr)
				assert.Equal(t, "Room is full", joinErr.Reason)
			},
		},
		{
			name:   "wrong password",
			status: http.StatusForbidden,
			body:   map[string]any{"error": "Wrong password"},
			check: func(t *testing.T, err error) {
				var joinErr *JoinError
				require.ErrorAs(t, err, &joinErr)
				assert.Equal(t, "Wrong password", joinErr.Error())
			},
		},
		{
			name:   "not found",
			status: http.StatusNotFound,
			body:   map[string]any{"error": "room not found"},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrNotFound)
			},
		},
		{
			name:   "validation",
			status: http.StatusBadRequest,
			body:   map[string]any{"errors": []map[string]string{{"field": "username", "message": "is required"}}},
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, "username: is required", apiErr.Message)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			}))
			defer srv.Close()

			_, err := New(srv.URL).JoinRoom(context.Background(), "room-1", &JoinRoomRequest{UserID: "bob", Username: "bob"})
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestLoadRoomRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		if calls.Add(1) < 3 {
			writeJSON(w, http.StatusBadGateway, map[string]any{"error": "store unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": RoomState{Room: Room{ID: "room-1"}}})
	}))
	defer srv.Close()

	c := New(srv.URL, WithRetries(2, time.Millisecond))
	state, err := c.LoadRoom(context.Background(), "room-1", "token")
	require.NoError(t, err)
	assert.Equal(t, "room-1", state.Room.ID)
	assert.EqualValues(t, 3, calls.Load())
}

func TestLoadRoomGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": "store unavailable"})
	}))
	defer srv.Close()

	c := New(srv.URL, WithRetries(1, time.Millisecond))
	_, err := c.LoadRoom(context.Background(), "room-1", "token")

	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.EqualValues(t, 2, calls.Load())
}

func TestLoadRoomNotFound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "room not found"})
	}))
	defer srv.Close()

	_, err := New(srv.URL, WithRetries(3, time.Millisecond)).LoadRoom(context.Background(), "room-1", "token")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.EqualValues(t, 1, calls.Load())
}

func TestLoadRoomTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := New(srv.URL,
		WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}),
		WithRetries(1, time.Millisecond),
	)

	start := time.Now()
	_, err := c.LoadRoom(context.Background(), "room-1", "token")

	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr), err)
	assert.Less(t, time.Since(start), 2*time.Second)
}
