package room

import (
	"context"
	"fmt"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/watchroom/server/internal/protocol"
	roomRepo "github.com/watchroom/server/internal/repository/room"
)

type JoinRoomParams struct {
	Conn     *websocket.Conn
	RoomId   string
	Username string
}

type JoinRoomResponse struct {
	ConnectionId string
	Username     string
	State        protocol.RoomState
	OtherConns   []*websocket.Conn
	AllConns     []*websocket.Conn

	// Left is set when the connection was already in another room and moved.
	Left *LeaveResponse
}

// JoinRoom adds the connection to a room, creating it on first join. The
// snapshot in the response goes to the joiner only; the membership delta and
// system notice go to the rest of the room.
func (s *service) JoinRoom(ctx context.Context, params *JoinRoomParams) (JoinRoomResponse, error) {
	username := s.cleanUsername(params.Username)

	connectionId, err := s.connRepo.GetConnectionId(params.Conn)
	if err != nil {
		return JoinRoomResponse{}, fmt.Errorf("failed to get connection id: %w", err)
	}

	// a connection belongs to at most one room: leave the previous one first
	var left *LeaveResponse
	if _, err := s.connRepo.GetSubscription(params.Conn); err == nil {
		leaveResp, err := s.leave(ctx, params.Conn, connectionId)
		if err != nil {
			return JoinRoomResponse{}, fmt.Errorf("failed to leave previous room: %w", err)
		}
		left = leaveResp
	}

	if _, _, err := s.roomRepo.CreateOrGet(ctx, params.RoomId); err != nil {
		return JoinRoomResponse{}, fmt.Errorf("failed to create or get room: %w", err)
	}

	current, err := s.roomRepo.AddMember(ctx, &roomRepo.AddMemberParams{
		RoomId:       params.RoomId,
		ConnectionId: connectionId,
		Username:     username,
	})
	if err != nil {
		return JoinRoomResponse{}, fmt.Errorf("failed to add member: %w", err)
	}

	if err := s.connRepo.Subscribe(params.Conn, params.RoomId); err != nil {
		return JoinRoomResponse{}, fmt.Errorf("failed to subscribe connection: %w", err)
	}

	allConns := s.connRepo.GetConnsByRoomId(params.RoomId)

	s.logger.InfoContext(ctx, "member joined",
		"room_id", params.RoomId,
		"connection_id", connectionId,
		"username", username,
	)

	return JoinRoomResponse{
		ConnectionId: connectionId,
		Username:     username,
		State:        snapshotToState(current),
		OtherConns:   s.connsExcept(allConns, params.Conn),
		AllConns:     allConns,
		Left:         left,
	}, nil
}

type LeaveResponse struct {
	RoomId       string
	ConnectionId string
	Username     string
	RoomDeleted  bool
	Members      map[string]string
	Conns        []*websocket.Conn
}

// Disconnect resolves a dropped or closing connection through the leave
// path. A nil response means the connection was in no room.
func (s *service) Disconnect(ctx context.Context, conn *websocket.Conn) (*LeaveResponse, error) {
	connectionId, err := s.connRepo.RemoveByConn(conn)
	if err != nil {
		return nil, nil
	}

	resp, err := s.removeFromRegistry(ctx, connectionId)
	if err != nil {
		return nil, err
	}

	if resp != nil {
		s.logger.InfoContext(ctx, "member disconnected",
			"room_id", resp.RoomId,
			"connection_id", connectionId,
			"username", resp.Username,
		)
	}

	return resp, nil
}

// leave removes the member from its current room while keeping the
// connection itself alive (used when a connection switches rooms).
func (s *service) leave(ctx context.Context, conn *websocket.Conn, connectionId string) (*LeaveResponse, error) {
	if err := s.connRepo.Unsubscribe(conn); err != nil {
		return nil, nil
	}

	return s.removeFromRegistry(ctx, connectionId)
}

func (s *service) removeFromRegistry(ctx context.Context, connectionId string) (*LeaveResponse, error) {
	result, err := s.roomRepo.RemoveMember(ctx, connectionId)
	if err != nil {
		if err == roomRepo.ErrMemberNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to remove member: %w", err)
	}

	resp := LeaveResponse{
		RoomId:       result.RoomId,
		ConnectionId: connectionId,
		Username:     result.Username,
		RoomDeleted:  result.RoomDeleted,
		Members:      result.Members,
	}
	if !result.RoomDeleted {
		resp.Conns = s.connRepo.GetConnsByRoomId(result.RoomId)
	}

	return &resp, nil
}

// GetRoomState returns a snapshot for read-only consumers.
func (s *service) GetRoomState(ctx context.Context, roomId string) (protocol.RoomState, error) {
	current, err := s.roomRepo.GetRoom(ctx, roomId)
	if err != nil {
		return protocol.RoomState{}, err
	}

	return snapshotToState(current), nil
}

func (s *service) cleanUsername(username string) string {
	username = strings.TrimSpace(username)
	if runes := []rune(username); len(runes) > s.usernameMaxLength {
		username = string(runes[:s.usernameMaxLength])
	}
	if username == "" {
		username = fallbackUsername
	}

	return username
}

func snapshotToState(r roomRepo.Room) protocol.RoomState {
	return protocol.RoomState{
		VideoId: r.VideoId,
		State:   r.State,
		Time:    r.Time,
		Members: r.Members,
		RoomId:  r.RoomId,
	}
}
