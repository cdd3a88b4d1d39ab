package controller

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/watchroom/server/pkg/ctxlogger"
	"github.com/watchroom/server/pkg/wsrouter"
)

// serializeWSMw processes inbound events one at a time across every
// connection, which keeps registry mutation and broadcast atomic per event.
func (c *controller) serializeWSMw() wsrouter.Middleware {
	return func(next wsrouter.RawHandler) wsrouter.RawHandler {
		return func(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
			c.eventMu.Lock()
			defer c.eventMu.Unlock()

			return next(ctx, conn, payload)
		}
	}
}

func (c *controller) wsRequestIdWSMw() wsrouter.Middleware {
	return func(next wsrouter.RawHandler) wsrouter.RawHandler {
		return func(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
			ctx = ctxlogger.AppendCtx(ctx, slog.String("ws_request_id", uuid.NewString()))
			return next(ctx, conn, payload)
		}
	}
}

func (c *controller) loggerWSMw() wsrouter.Middleware {
	return func(next wsrouter.RawHandler) wsrouter.RawHandler {
		return func(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
			ctx = ctxlogger.AppendCtx(ctx, slog.String("message_type", wsrouter.GetMessageTypeFromCtx(ctx)))
			c.logger.DebugContext(ctx, "websocket message received")

			start := time.Now()
			err := next(ctx, conn, payload)

			c.logger.DebugContext(ctx, "websocket message handled",
				"processing_time_us", time.Since(start).Microseconds(),
			)

			return err
		}
	}
}
