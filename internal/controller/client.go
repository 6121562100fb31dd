package controller

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 64 << 10
	sendBufferSize = 64
)

var errClientClosed = errors.New("client closed")

type Output struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// client owns the write side of one websocket connection. Frames are queued
// and written by a single pump goroutine.
type client struct {
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	once    sync.Once
	limiter *rate.Limiter
	logger  *slog.Logger
}

func newClient(conn *websocket.Conn, limiter *rate.Limiter, logger *slog.Logger) *client {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	return &client{
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		done:    make(chan struct{}),
		limiter: limiter,
		logger:  logger,
	}
}

// write queues a frame. A client that cannot keep up is disconnected.
func (cl *client) write(out *Output) error {
	data, err := json.Marshal(out)
	if err != nil {
		return err
	}

	select {
	case <-cl.done:
		return errClientClosed
	default:
	}

	select {
	case cl.send <- data:
		return nil
	case <-cl.done:
		return errClientClosed
	default:
		cl.logger.Warn("send buffer full, closing connection")
		cl.Close(websocket.ClosePolicyViolation, "too slow")
		return errClientClosed
	}
}

func (cl *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-cl.done:
			return
		case data := <-cl.send:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				cl.logger.Debug("failed to write message", "error", err)
				cl.Close(websocket.CloseAbnormalClosure, "")
				return
			}
		case <-ticker.C:
			if err := cl.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				cl.logger.Debug("failed to write ping", "error", err)
				cl.Close(websocket.CloseAbnormalClosure, "")
				return
			}
		}
	}
}

// Close sends a close frame with code and tears the connection down.
// Only the first call has an effect.
func (cl *client) Close(code int, reason string) error {
	var err error
	cl.once.Do(func() {
		close(cl.done)
		if code != websocket.CloseAbnormalClosure {
			msg := websocket.FormatCloseMessage(code, reason)
			if werr := cl.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); werr != nil {
				cl.logger.Debug("failed to write close message", "error", werr)
			}
		}
		err = cl.conn.Close()
	})

	return err
}

func (cl *client) allow() bool {
	return cl.limiter.Allow()
}
