// Package wsrouter routes {"type", "payload"} JSON frames read from a
// websocket connection to typed handlers.
package wsrouter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
)

type message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// HandlerFunc handles one decoded inbound frame.
type HandlerFunc[T any] func(ctx context.Context, conn *websocket.Conn, input T) error

// RawHandler handles a frame before its payload is decoded.
type RawHandler func(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error

// Middleware wraps a raw handler; middlewares registered with Use apply to
// every route added afterwards.
type Middleware func(next RawHandler) RawHandler

type WSRouter struct {
	routes      map[string]RawHandler
	middlewares []Middleware
	notFound    func(ctx context.Context, conn *websocket.Conn, messageType string)
	onError     func(ctx context.Context, messageType string, err error)
}

func New() *WSRouter {
	return &WSRouter{routes: make(map[string]RawHandler)}
}

func (r *WSRouter) Use(mw Middleware) {
	r.middlewares = append(r.middlewares, mw)
}

// NotFound sets the callback for frames whose type has no route. Without one
// such frames are silently dropped.
func (r *WSRouter) NotFound(fn func(ctx context.Context, conn *websocket.Conn, messageType string)) {
	r.notFound = fn
}

// OnError sets the callback invoked when a handler returns an error. Handler
// errors never terminate the connection.
func (r *WSRouter) OnError(fn func(ctx context.Context, messageType string, err error)) {
	r.onError = fn
}

// Handle registers a typed handler for a message type. The payload is
// unmarshalled into T before the handler runs.
func Handle[T any](r *WSRouter, messageType string, handler HandlerFunc[T]) {
	raw := func(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
		var input T
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &input); err != nil {
				return fmt.Errorf("failed to unmarshal %q payload: %w", messageType, err)
			}
		}

		return handler(ctx, conn, input)
	}

	for i := len(r.middlewares) - 1; i >= 0; i-- {
		raw = r.middlewares[i](raw)
	}

	r.routes[messageType] = raw
}

// ServeConn reads frames until the connection errors out, dispatching each
// one to its route. The read error that ended the loop is returned.
func (r *WSRouter) ServeConn(ctx context.Context, conn *websocket.Conn) error {
	for {
		var msg message
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}

		msgCtx := withMessageType(ctx, msg.Type)

		handler, exists := r.routes[msg.Type]
		if !exists {
			if r.notFound != nil {
				r.notFound(msgCtx, conn, msg.Type)
			}
			continue
		}

		if err := handler(msgCtx, conn, msg.Payload); err != nil && r.onError != nil {
			r.onError(msgCtx, msg.Type, err)
		}
	}
}
