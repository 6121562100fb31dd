package wsrouter

import (
	"context"
	"errors"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seekInput struct {
	CurrentTime float64 `json:"current_time"`
}

func TestDispatch(t *testing.T) {
	r := New()

	var got seekInput
	Handle(r, "SEEK", func(ctx context.Context, _ *websocket.Conn, input seekInput) error {
		assert.Equal(t, "SEEK", GetMessageTypeFromCtx(ctx))
		got = input
		return nil
	})

	err := r.Dispatch(context.Background(), nil, []byte(`{"type":"SEEK","payload":{"current_time":80}}`))
	require.NoError(t, err)
	assert.Equal(t, 80.0, got.CurrentTime)
}

func TestDispatchErrors(t *testing.T) {
	r := New()
	Handle(r, "SEEK", func(context.Context, *websocket.Conn, seekInput) error { return nil })

	err := r.Dispatch(context.Background(), nil, []byte(`{"type":"NOPE"}`))
	assert.ErrorIs(t, err, ErrUnknownMessageType)

	err = r.Dispatch(context.Background(), nil, []byte(`{"type":"SEEK","payload":{"current_time":"x"}}`))
	assert.ErrorIs(t, err, ErrInvalidPayload)

	err = r.Dispatch(context.Background(), nil, []byte(`not json`))
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestDispatchEmptyPayload(t *testing.T) {
	r := New()
	called := false
	Handle(r, "ALIVE", func(context.Context, *websocket.Conn, struct{}) error {
		called = true
		return nil
	})

	require.NoError(t, r.Dispatch(context.Background(), nil, []byte(`{"type":"ALIVE"}`)))
	assert.True(t, called)
}

func TestMiddlewareOrder(t *testing.T) {
	r := New()
	var order []string
	mw := func(name string) Middleware {
		return func(next HandlerFunc[any]) HandlerFunc[any] {
			return func(ctx context.Context, conn *websocket.Conn, payload any) error {
				order = append(order, name)
				return next(ctx, conn, payload)
			}
		}
	}

	Handle(r, "SEEK", func(context.Context, *websocket.Conn, seekInput) error {
		order = append(order, "handler")
		return nil
	})
	r.Use(mw("first"), mw("second"))

	require.NoError(t, r.Dispatch(context.Background(), nil, []byte(`{"type":"SEEK","payload":{}}`)))
	assert.Equal(t, []string{"first", "second", "handler"}, order)
}

func TestMiddlewareCanReject(t *testing.T) {
	r := New()
	errLimited := errors.New("limited")
	r.Use(func(next HandlerFunc[any]) HandlerFunc[any] {
		return func(context.Context, *websocket.Conn, any) error {
			return errLimited
		}
	})
	Handle(r, "SEEK", func(context.Context, *websocket.Conn, seekInput) error {
		t.Fatal("handler must not run")
		return nil
	})

	err := r.Dispatch(context.Background(), nil, []byte(`{"type":"SEEK"}`))
	assert.ErrorIs(t, err, errLimited)
}
