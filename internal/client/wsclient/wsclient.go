// Package wsclient is the message channel between a client and the room
// server: one websocket carrying {"type", "payload"} frames both ways.
package wsclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/watchroom/server/internal/domain"
	"github.com/watchroom/server/internal/protocol"
)

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outbound struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Handlers receives the server-to-client events. Nil handlers drop their
// event. All handlers run on the Listen goroutine, one at a time.
type Handlers struct {
	OnRoomState  func(state protocol.RoomState)
	OnSync       func(envelope protocol.SyncEnvelope)
	OnUserJoined func(delta protocol.MembershipDelta)
	OnUserLeft   func(delta protocol.MembershipDelta)
	OnChat       func(message protocol.ChatMessage)
	OnSystem     func(notice string)
	OnError      func(message string)
	OnJoinError  func(message string)
}

type Client struct {
	logger *slog.Logger
	conn   *websocket.Conn

	// gorilla conns allow one concurrent writer; the engine's timers and
	// the caller may emit at the same time
	writeMu sync.Mutex
}

// Dial connects to serverURL (scheme ws or wss, no path).
func Dial(ctx context.Context, serverURL string, logger *slog.Logger) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, serverURL+"/api/v1/ws", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial server: %w", err)
	}

	return &Client{logger: logger, conn: conn}, nil
}

func (c *Client) send(messageType string, payload any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.WriteJSON(outbound{Type: messageType, Payload: payload}); err != nil {
		return fmt.Errorf("failed to send %s: %w", messageType, err)
	}

	return nil
}

func (c *Client) JoinRoom(roomId, username string) error {
	return c.send(protocol.EventJoinRoom, protocol.JoinRoom{RoomId: roomId, Username: username})
}

// EmitAction proposes a playback change to the room.
func (c *Client) EmitAction(action domain.VideoAction) error {
	return c.send(protocol.EventVideoAction, action)
}

func (c *Client) SendChat(message string) error {
	return c.send(protocol.EventChatMessage, protocol.ChatInput{Message: message})
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Listen reads frames and dispatches them until the connection closes or
// ctx is done. It always returns a non-nil read error; when ctx is done
// the error is ctx.Err().
func (c *Client) Listen(ctx context.Context, handlers Handlers) error {
	stop := context.AfterFunc(ctx, func() {
		c.conn.Close()
	})
	defer stop()

	for {
		var f frame
		if err := c.conn.ReadJSON(&f); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to read frame: %w", err)
		}

		c.dispatch(f, handlers)
	}
}

func (c *Client) dispatch(f frame, handlers Handlers) {
	switch f.Type {
	case protocol.EventRoomState:
		dispatchTo(c.logger, f, handlers.OnRoomState)
	case protocol.EventVideoActionSync:
		dispatchTo(c.logger, f, handlers.OnSync)
	case protocol.EventUserJoined:
		dispatchTo(c.logger, f, handlers.OnUserJoined)
	case protocol.EventUserLeft:
		dispatchTo(c.logger, f, handlers.OnUserLeft)
	case protocol.EventChatMessage:
		dispatchTo(c.logger, f, handlers.OnChat)
	case protocol.EventSystemMessage:
		dispatchTo(c.logger, f, handlers.OnSystem)
	case protocol.EventErrorMessage:
		dispatchTo(c.logger, f, handlers.OnError)
	case protocol.EventJoinError:
		dispatchTo(c.logger, f, handlers.OnJoinError)
	default:
		c.logger.Debug("unknown frame type ignored", "message_type", f.Type)
	}
}

func dispatchTo[T any](logger *slog.Logger, f frame, handler func(T)) {
	if handler == nil {
		return
	}

	var payload T
	if err := json.Unmarshal(f.Payload, &payload); err != nil {
		logger.Warn("failed to decode frame payload",
			"message_type", f.Type,
			"error", err,
		)
		return
	}

	handler(payload)
}
