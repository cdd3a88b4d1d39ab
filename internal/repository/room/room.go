package room

import (
	"errors"

	"github.com/watchroom/server/internal/domain"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrMemberNotFound = errors.New("member not found")
	ErrInvalidVideoId = errors.New("invalid video id")
)

// Room is a registry-level snapshot of one synchronized viewing session.
// Members maps connection id to display name.
type Room struct {
	RoomId  string
	VideoId string
	State   domain.PlaybackState
	Time    float64
	Members map[string]string
}

type AddMemberParams struct {
	RoomId       string
	ConnectionId string
	Username     string
}

type ApplyParams struct {
	RoomId string
	Action domain.VideoAction
}

// ApplyResult reports whether an action was effective, how it must be
// broadcast, and the room state it produced. Room is captured under the
// registry lock so mutation and snapshot are atomic per event.
type ApplyResult struct {
	Changed    bool
	FullResync bool
	Room       Room
}

// RemoveMemberResult describes the room a connection was removed from.
type RemoveMemberResult struct {
	RoomId      string
	Username    string
	RoomDeleted bool
	Members     map[string]string
}
