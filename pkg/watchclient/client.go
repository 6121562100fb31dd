package watchclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultMaxRetries = 2
	defaultRetryDelay = 500 * time.Millisecond
)

// Client talks to a watchroom server over REST and websocket.
type Client struct {
	baseURL    string
	http       *http.Client
	dialer     *websocket.Dialer
	logger     *slog.Logger
	maxRetries int
	retryDelay time.Duration
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.http = client
	}
}

func WithDialer(dialer *websocket.Dialer) Option {
	return func(c *Client) {
		c.dialer = dialer
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRetries sets how many times LoadRoom retries a failed fetch and the
// base delay between attempts. The delay grows linearly.
func WithRetries(maxRetries int, delay time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.retryDelay = delay
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       &http.Client{Timeout: defaultTimeout},
		dialer:     &websocket.Dialer{HandshakeTimeout: defaultTimeout},
		logger:     slog.Default(),
		maxRetries: defaultMaxRetries,
		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

type envelope struct {
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error"`
	Errors []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
}

func (c *Client) do(ctx context.Context, method, path, token string, body, dst any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return &APIError{Status: resp.StatusCode, Message: "malformed response: " + err.Error()}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		msg := env.Error
		if msg == "" && len(env.Errors) > 0 {
			parts := make([]string, 0, len(env.Errors))
			for _, e := range env.Errors {
				parts = append(parts, e.Field+": "+e.Message)
			}
			msg = strings.Join(parts, "; ")
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if dst == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func (c *Client) CreateRoom(ctx context.Context, req *CreateRoomRequest) (CreateRoomResponse, error) {
	var resp CreateRoomResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/rooms", "", req, &resp); err != nil {
		return CreateRoomResponse{}, fmt.Errorf("failed to create room: %w", err)
	}

	return resp, nil
}

// JoinRoom returns *JoinError when the server refuses the join and
// ErrNotFound when the room does not exist.
func (c *Client) JoinRoom(ctx context.Context, roomID string, req *JoinRoomRequest) (JoinRoomResponse, error) {
	var resp JoinRoomResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/rooms/"+url.PathEscape(roomID)+"/join", "", req, &resp)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			switch apiErr.Status {
			case http.StatusForbidden, http.StatusConflict:
				return JoinRoomResponse{}, &JoinError{Status: apiErr.Status, Reason: apiErr.Message}
			case http.StatusNotFound:
				return JoinRoomResponse{}, ErrNotFound
			}
		}
		return JoinRoomResponse{}, fmt.Errorf("failed to join room: %w", err)
	}

	return resp, nil
}

// LoadRoom fetches the room state, retrying transport failures and server
// errors. It returns ErrNotFound, ErrUnauthorized or *LoadError.
func (c *Client) LoadRoom(ctx context.Context, roomID, token string) (RoomState, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return RoomState{}, &LoadError{Err: ctx.Err()}
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			}
		}

		var state RoomState
		err := c.do(ctx, http.MethodGet, "/api/v1/rooms/"+url.PathEscape(roomID), token, nil, &state)
		if err == nil {
			return state, nil
		}

		var apiErr *APIError
		if errors.As(err, &apiErr) {
			switch {
			case apiErr.Status == http.StatusNotFound:
				return RoomState{}, ErrNotFound
			case apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden:
				return RoomState{}, fmt.Errorf("%w: %s", ErrUnauthorized, apiErr.Message)
			case apiErr.Status < http.StatusInternalServerError:
				return RoomState{}, &LoadError{Err: err}
			}
		}

		lastErr = err
		c.logger.WarnContext(ctx, "failed to load room, retrying",
			"room_id", roomID,
			"attempt", attempt+1,
			"error", err,
		)
	}

	return RoomState{}, &LoadError{Err: fmt.Errorf("failed after %d attempts: %w", c.maxRetries+1, lastErr)}
}

func (c *Client) wsURL(roomID, token string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}

	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/v1/ws/room/" + url.PathEscape(roomID)
	u.RawQuery = url.Values{"token": {token}}.Encode()

	return u.String(), nil
}
