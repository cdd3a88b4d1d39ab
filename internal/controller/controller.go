package controller

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/watchroom/server/internal/protocol"
	"github.com/watchroom/server/internal/service/room"
	"github.com/watchroom/server/pkg/validator"
	"github.com/watchroom/server/pkg/wsrouter"
)

type iRoomService interface {
	RegisterConnection(ctx context.Context, conn *websocket.Conn) (string, error)
	JoinRoom(ctx context.Context, params *room.JoinRoomParams) (room.JoinRoomResponse, error)
	ApplyAction(ctx context.Context, params *room.ApplyActionParams) (room.ApplyActionResponse, error)
	ChatMessage(ctx context.Context, params *room.ChatMessageParams) (room.ChatMessageResponse, error)
	Disconnect(ctx context.Context, conn *websocket.Conn) (*room.LeaveResponse, error)
	GetRoomState(ctx context.Context, roomId string) (protocol.RoomState, error)
}

type controller struct {
	roomService iRoomService
	upgrader    websocket.Upgrader
	validate    *validator.Validator
	logger      *slog.Logger
	wsmux       *wsrouter.WSRouter

	// eventMu serializes inbound event processing across all connections:
	// registry mutation plus broadcast stays atomic per event, and writes to
	// a connection never interleave.
	eventMu sync.Mutex
}

func NewController(roomService iRoomService, logger *slog.Logger) *controller {
	c := controller{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		roomService: roomService,
		validate:    validator.NewValidator(),
		logger:      logger,
	}
	c.wsmux = c.getWSRouter()

	return &c
}
