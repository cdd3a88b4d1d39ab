package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/watchroom/server/internal/domain"
	"github.com/watchroom/server/internal/protocol"
	"github.com/watchroom/server/internal/service/room"
	"github.com/watchroom/server/pkg/ctxlogger"
	"github.com/watchroom/server/pkg/wsrouter"
)

func (c *controller) getWSRouter() *wsrouter.WSRouter {
	mux := wsrouter.New()

	mux.Use(c.serializeWSMw())
	mux.Use(c.wsRequestIdWSMw())
	mux.Use(c.loggerWSMw())

	wsrouter.Handle(mux, protocol.EventJoinRoom, c.handleJoinRoom)
	wsrouter.Handle(mux, protocol.EventVideoAction, c.handleVideoAction)
	wsrouter.Handle(mux, protocol.EventChatMessage, c.handleChatMessage)

	mux.NotFound(func(ctx context.Context, _ *websocket.Conn, messageType string) {
		c.logger.WarnContext(ctx, "unknown message type ignored", "message_type", messageType)
	})
	mux.OnError(func(ctx context.Context, messageType string, err error) {
		c.logger.WarnContext(ctx, "failed to handle websocket message",
			"message_type", messageType,
			"error", err,
		)
	})

	return mux
}

func (c *controller) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	connectionId, err := c.roomService.RegisterConnection(r.Context(), conn)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to register connection", "error", err)
		return
	}

	ctx := ctxlogger.AppendCtx(r.Context(), slog.String("connection_id", connectionId))
	c.logger.InfoContext(ctx, "websocket connection opened")

	defer c.handleDisconnect(ctx, conn)

	if err := c.wsmux.ServeConn(ctx, conn); err != nil {
		c.logger.InfoContext(ctx, "websocket connection closed", "reason", err)
	}
}

// handleDisconnect resolves a dropped connection through the leave path; a
// transport failure is never surfaced as an error to the room.
func (c *controller) handleDisconnect(ctx context.Context, conn *websocket.Conn) {
	c.eventMu.Lock()
	defer c.eventMu.Unlock()

	left, err := c.roomService.Disconnect(ctx, conn)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to disconnect member", "error", err)
		return
	}

	if left != nil {
		c.notifyLeft(ctx, left)
	}
}

// notifyLeft sends the membership delta and system notice to whoever remains
// in the room a member just left. An emptied room has no one to notify.
func (c *controller) notifyLeft(ctx context.Context, left *room.LeaveResponse) {
	if left.RoomDeleted {
		return
	}

	c.broadcast(ctx, left.Conns, &Output{
		Type: protocol.EventUserLeft,
		Payload: protocol.MembershipDelta{
			UserId:   left.ConnectionId,
			Username: left.Username,
			Members:  left.Members,
		},
	})
	c.broadcast(ctx, left.Conns, &Output{
		Type:    protocol.EventSystemMessage,
		Payload: fmt.Sprintf("%s left the room.", left.Username),
	})
}

func (c *controller) handleJoinRoom(ctx context.Context, conn *websocket.Conn, input protocol.JoinRoom) error {
	if validationErrors, ok := c.validate.Validate(input); !ok {
		c.logger.DebugContext(ctx, "invalid join payload", "errors", validationErrors)
		c.writeToConn(ctx, conn, &Output{
			Type:    protocol.EventJoinError,
			Payload: "Room id and username are required.",
		})
		return nil
	}

	resp, err := c.roomService.JoinRoom(ctx, &room.JoinRoomParams{
		Conn:     conn,
		RoomId:   input.RoomId,
		Username: input.Username,
	})
	if err != nil {
		c.writeToConn(ctx, conn, &Output{
			Type:    protocol.EventJoinError,
			Payload: "Failed to join room.",
		})
		return fmt.Errorf("failed to join room: %w", err)
	}

	if resp.Left != nil {
		c.notifyLeft(ctx, resp.Left)
	}

	c.writeToConn(ctx, conn, &Output{
		Type:    protocol.EventRoomState,
		Payload: resp.State,
	})

	c.broadcast(ctx, resp.OtherConns, &Output{
		Type: protocol.EventUserJoined,
		Payload: protocol.MembershipDelta{
			UserId:   resp.ConnectionId,
			Username: resp.Username,
			Members:  resp.State.Members,
		},
	})

	c.broadcast(ctx, resp.AllConns, &Output{
		Type:    protocol.EventSystemMessage,
		Payload: fmt.Sprintf("%s joined the room.", resp.Username),
	})

	return nil
}

func (c *controller) handleVideoAction(ctx context.Context, conn *websocket.Conn, input domain.VideoAction) error {
	resp, err := c.roomService.ApplyAction(ctx, &room.ApplyActionParams{
		Conn:   conn,
		Action: input,
	})
	if err != nil {
		if errors.Is(err, room.ErrNotRoomMember) {
			// silent drop: an unrecognized sender learns nothing about the room
			c.logger.WarnContext(ctx, "action from unrecognized sender dropped",
				"action", string(input.Action),
			)
			return nil
		}
		if errors.Is(err, room.ErrInvalidVideoId) {
			c.writeToConn(ctx, conn, &Output{
				Type:    protocol.EventErrorMessage,
				Payload: "Invalid video id (11 characters required).",
			})
			return nil
		}
		return fmt.Errorf("failed to apply action: %w", err)
	}

	if !resp.Changed {
		return nil
	}

	if resp.FullResync {
		c.broadcast(ctx, resp.AllConns, &Output{
			Type:    protocol.EventRoomState,
			Payload: resp.State,
		})
		c.broadcast(ctx, resp.AllConns, &Output{
			Type:    protocol.EventSystemMessage,
			Payload: fmt.Sprintf("%s changed the video.", resp.Username),
		})
		return nil
	}

	c.broadcast(ctx, resp.OtherConns, &Output{
		Type:    protocol.EventVideoActionSync,
		Payload: resp.Envelope,
	})

	return nil
}

func (c *controller) handleChatMessage(ctx context.Context, conn *websocket.Conn, input protocol.ChatInput) error {
	resp, err := c.roomService.ChatMessage(ctx, &room.ChatMessageParams{
		Conn:    conn,
		Message: input.Message,
	})
	if err != nil {
		if errors.Is(err, room.ErrNotRoomMember) || errors.Is(err, room.ErrEmptyMessage) {
			c.logger.DebugContext(ctx, "chat message dropped", "reason", err)
			return nil
		}
		return fmt.Errorf("failed to relay chat message: %w", err)
	}

	c.broadcast(ctx, resp.Conns, &Output{
		Type:    protocol.EventChatMessage,
		Payload: resp.Message,
	})

	return nil
}
