package room

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/watchroom/server/internal/domain"
	"github.com/watchroom/server/internal/protocol"
	roomRepo "github.com/watchroom/server/internal/repository/room"
)

type ApplyActionParams struct {
	Conn   *websocket.Conn
	Action domain.VideoAction
}

// ApplyActionResponse tells the controller what to broadcast. Exactly one of
// Envelope (incremental, to OtherConns) or State (full resync, to AllConns)
// is set when Changed is true.
type ApplyActionResponse struct {
	Changed    bool
	FullResync bool
	Username   string
	Envelope   protocol.SyncEnvelope
	State      protocol.RoomState
	OtherConns []*websocket.Conn
	AllConns   []*websocket.Conn
}

// ApplyAction validates the sender and runs the action against the registry.
// Unknown actions and no-ops come back with Changed=false; a sender that
// fails the membership check gets ErrNotRoomMember, which callers drop
// without notifying anyone.
func (s *service) ApplyAction(ctx context.Context, params *ApplyActionParams) (ApplyActionResponse, error) {
	connectionId, roomId, err := s.validateSender(ctx, params.Conn)
	if err != nil {
		return ApplyActionResponse{}, err
	}

	if !params.Action.Action.Known() {
		s.logger.WarnContext(ctx, "unknown action ignored",
			"room_id", roomId,
			"connection_id", connectionId,
			"action", string(params.Action.Action),
		)
		return ApplyActionResponse{}, nil
	}

	result, err := s.roomRepo.Apply(ctx, &roomRepo.ApplyParams{
		RoomId: roomId,
		Action: params.Action,
	})
	if err != nil {
		if err == roomRepo.ErrInvalidVideoId {
			return ApplyActionResponse{}, err
		}
		return ApplyActionResponse{}, fmt.Errorf("failed to apply action: %w", err)
	}

	resp := ApplyActionResponse{
		Changed:    result.Changed,
		FullResync: result.FullResync,
		Username:   result.Room.Members[connectionId],
	}
	if !result.Changed {
		return resp, nil
	}

	resp.AllConns = s.connRepo.GetConnsByRoomId(roomId)
	resp.OtherConns = s.connsExcept(resp.AllConns, params.Conn)

	if result.FullResync {
		resp.State = snapshotToState(result.Room)
	} else {
		resp.Envelope = protocol.SyncEnvelope{
			Action: params.Action.Action,
			Time:   result.Room.Time,
		}
	}

	s.logger.DebugContext(ctx, "action applied",
		"room_id", roomId,
		"connection_id", connectionId,
		"action", string(params.Action.Action),
		"full_resync", result.FullResync,
	)

	return resp, nil
}
