// Package room is the sync protocol handler: it validates inbound events
// against the room registry, applies them, and decides what gets broadcast
// to whom. It never writes to sockets itself; responses carry the audience
// and the payload for the controller to send.
package room

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	roomRepo "github.com/watchroom/server/internal/repository/room"
)

var (
	ErrNotRoomMember  = errors.New("sender is not a room member")
	ErrInvalidVideoId = roomRepo.ErrInvalidVideoId
	ErrEmptyMessage   = errors.New("empty chat message")
)

const (
	defaultUsernameMaxLength = 20
	chatMessageMaxLength     = 500
	fallbackUsername         = "Guest"
)

type iRoomRepo interface {
	CreateOrGet(ctx context.Context, roomId string) (roomRepo.Room, bool, error)
	AddMember(ctx context.Context, params *roomRepo.AddMemberParams) (roomRepo.Room, error)
	RemoveMember(ctx context.Context, connectionId string) (roomRepo.RemoveMemberResult, error)
	Apply(ctx context.Context, params *roomRepo.ApplyParams) (roomRepo.ApplyResult, error)
	GetRoom(ctx context.Context, roomId string) (roomRepo.Room, error)
	IsMember(ctx context.Context, roomId string, connectionId string) (bool, error)
}

type iConnRepo interface {
	Add(conn *websocket.Conn, connectionId string) error
	RemoveByConn(conn *websocket.Conn) (string, error)
	GetConnectionId(conn *websocket.Conn) (string, error)
	Subscribe(conn *websocket.Conn, roomId string) error
	Unsubscribe(conn *websocket.Conn) error
	GetSubscription(conn *websocket.Conn) (string, error)
	GetConnsByRoomId(roomId string) []*websocket.Conn
}

type Config struct {
	UsernameMaxLength int
}

type service struct {
	roomRepo          iRoomRepo
	connRepo          iConnRepo
	logger            *slog.Logger
	usernameMaxLength int
}

func NewService(roomRepo iRoomRepo, connRepo iConnRepo, cfg *Config, logger *slog.Logger) *service {
	usernameMaxLength := defaultUsernameMaxLength
	if cfg != nil && cfg.UsernameMaxLength > 0 {
		usernameMaxLength = cfg.UsernameMaxLength
	}

	return &service{
		roomRepo:          roomRepo,
		connRepo:          connRepo,
		logger:            logger,
		usernameMaxLength: usernameMaxLength,
	}
}

// RegisterConnection assigns the connection an id for the member roster.
func (s *service) RegisterConnection(ctx context.Context, conn *websocket.Conn) (string, error) {
	connectionId := uuid.NewString()
	if err := s.connRepo.Add(conn, connectionId); err != nil {
		return "", err
	}

	return connectionId, nil
}

// validateSender is the double membership check: the registry's member map
// and the transport's subscription set must both recognize the sender. The
// two can diverge transiently during leave races; in that window the action
// is dropped, not errored.
func (s *service) validateSender(ctx context.Context, conn *websocket.Conn) (connectionId string, roomId string, err error) {
	connectionId, err = s.connRepo.GetConnectionId(conn)
	if err != nil {
		return "", "", ErrNotRoomMember
	}

	roomId, err = s.connRepo.GetSubscription(conn)
	if err != nil {
		return "", "", ErrNotRoomMember
	}

	isMember, err := s.roomRepo.IsMember(ctx, roomId, connectionId)
	if err != nil {
		return "", "", err
	}
	if !isMember {
		return "", "", ErrNotRoomMember
	}

	return connectionId, roomId, nil
}

func (s *service) connsExcept(conns []*websocket.Conn, exclude *websocket.Conn) []*websocket.Conn {
	others := make([]*websocket.Conn, 0, len(conns))
	for _, conn := range conns {
		if conn != exclude {
			others = append(others, conn)
		}
	}

	return others
}
