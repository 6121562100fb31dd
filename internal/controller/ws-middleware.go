package controller

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/skillforge/watchroom/internal/metrics"
	"github.com/skillforge/watchroom/pkg/ctxlogger"
	"github.com/skillforge/watchroom/pkg/wsrouter"
)

func (c controller) wsRequestIdWSMw() wsrouter.Middleware {
	return func(next wsrouter.HandlerFunc[any]) wsrouter.HandlerFunc[any] {
		return func(ctx context.Context, conn *websocket.Conn, payload any) error {
			ctx = ctxlogger.AppendCtx(ctx, slog.String("ws_request_id", c.generateTimeBasedId()))
			return next(ctx, conn, payload)
		}
	}
}

func (c controller) loggerWSMw() wsrouter.Middleware {
	return func(next wsrouter.HandlerFunc[any]) wsrouter.HandlerFunc[any] {
		return func(ctx context.Context, conn *websocket.Conn, payload any) error {
			messageType := wsrouter.GetMessageTypeFromCtx(ctx)
			ctx = ctxlogger.AppendCtx(ctx, slog.String("message_type", messageType))
			c.logger.DebugContext(ctx, "websocket message received", "payload", payload)

			start := time.Now()

			err := next(ctx, conn, payload)

			elapsed := time.Since(start)
			metrics.ObserveWSMessage(messageType, elapsed)
			c.logger.InfoContext(ctx, "websocket message handled",
				"processing_time_us", elapsed.Microseconds(),
				"error", err,
			)

			return err
		}
	}
}

func (c controller) rateLimitWSMw() wsrouter.Middleware {
	return func(next wsrouter.HandlerFunc[any]) wsrouter.HandlerFunc[any] {
		return func(ctx context.Context, conn *websocket.Conn, payload any) error {
			if cl := c.getClientFromCtx(ctx); cl != nil && !cl.allow() {
				if wsrouter.GetMessageTypeFromCtx(ctx) == typeSyncEvent {
					metrics.RecordSyncEventRejected("rate_limited")
				}
				return errRateLimited
			}
			return next(ctx, conn, payload)
		}
	}
}
