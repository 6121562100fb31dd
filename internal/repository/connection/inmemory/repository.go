package inmemory

import (
	"log/slog"
	"sync"

	"github.com/skillforge/watchroom/internal/repository/connection"
)

type repo struct {
	conns map[string]connection.Conn
	mu    sync.RWMutex
}

func NewRepo() *repo {
	return &repo{
		conns: make(map[string]connection.Conn),
	}
}

// Add registers conn for the participant and returns the connection it
// replaced, if any. Closing the replaced connection is up to the caller.
func (r *repo) Add(participantID string, conn connection.Conn) connection.Conn {
	funcName := "connection.inmemory.Add"
	r.mu.Lock()
	defer r.mu.Unlock()

	slog.Debug(funcName, "participant_id", participantID)
	prev := r.conns[participantID]
	r.conns[participantID] = conn

	if prev != nil {
		slog.Debug(funcName, "result", "replaced")
	}
	return prev
}

// Remove drops the participant's connection only if it is still conn, so a
// replaced connection tearing down does not unregister its successor.
func (r *repo) Remove(participantID string, conn connection.Conn) error {
	funcName := "connection.inmemory.Remove"
	r.mu.Lock()
	defer r.mu.Unlock()

	slog.Debug(funcName, "participant_id", participantID)
	current, ok := r.conns[participantID]
	if !ok || current != conn {
		slog.Debug(funcName, "error", connection.ErrNotFound)
		return connection.ErrNotFound
	}

	delete(r.conns, participantID)
	return nil
}

func (r *repo) Get(participantID string) (connection.Conn, error) {
	funcName := "connection.inmemory.Get"
	r.mu.RLock()
	defer r.mu.RUnlock()

	slog.Debug(funcName, "participant_id", participantID)
	conn, ok := r.conns[participantID]
	if !ok {
		slog.Debug(funcName, "error", connection.ErrNotFound)
		return nil, connection.ErrNotFound
	}

	return conn, nil
}

func (r *repo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.conns)
}
