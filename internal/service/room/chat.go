package room

import (
	"context"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/watchroom/server/internal/protocol"
)

type ChatMessageParams struct {
	Conn    *websocket.Conn
	Message string
}

type ChatMessageResponse struct {
	Message protocol.ChatMessage
	Conns   []*websocket.Conn
}

// ChatMessage relays a chat line to every member of the sender's room,
// the sender included.
func (s *service) ChatMessage(ctx context.Context, params *ChatMessageParams) (ChatMessageResponse, error) {
	connectionId, roomId, err := s.validateSender(ctx, params.Conn)
	if err != nil {
		return ChatMessageResponse{}, err
	}

	message := strings.TrimSpace(params.Message)
	if message == "" {
		return ChatMessageResponse{}, ErrEmptyMessage
	}
	if runes := []rune(message); len(runes) > chatMessageMaxLength {
		message = string(runes[:chatMessageMaxLength])
	}

	current, err := s.roomRepo.GetRoom(ctx, roomId)
	if err != nil {
		return ChatMessageResponse{}, err
	}

	username := current.Members[connectionId]
	if username == "" {
		username = fallbackUsername
	}

	return ChatMessageResponse{
		Message: protocol.ChatMessage{
			User:    username,
			Message: message,
		},
		Conns: s.connRepo.GetConnsByRoomId(roomId),
	}, nil
}
