// Package inmemory holds the authoritative room table. Rooms live exactly as
// long as they have members; nothing survives a restart.
package inmemory

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/exp/maps"

	"github.com/watchroom/server/internal/domain"
	"github.com/watchroom/server/internal/repository/room"
)

type roomEntry struct {
	videoId string
	state   domain.PlaybackState
	time    float64
	members map[string]string
}

type repo struct {
	logger         *slog.Logger
	defaultVideoId string

	mu         sync.Mutex
	rooms      map[string]*roomEntry
	memberRoom map[string]string
}

func NewRepo(defaultVideoId string, logger *slog.Logger) *repo {
	if defaultVideoId == "" {
		defaultVideoId = domain.DefaultVideoId
	}

	return &repo{
		logger:         logger,
		defaultVideoId: defaultVideoId,
		rooms:          make(map[string]*roomEntry),
		memberRoom:     make(map[string]string),
	}
}

// CreateOrGet returns the room for roomId, creating a default-seeded one if
// it does not exist. The second return value reports whether it was created.
func (r *repo) CreateOrGet(ctx context.Context, roomId string) (room.Room, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.rooms[roomId]
	if !ok {
		entry = &roomEntry{
			videoId: r.defaultVideoId,
			state:   domain.StatePaused,
			time:    0,
			members: make(map[string]string),
		}
		r.rooms[roomId] = entry
		r.logger.DebugContext(ctx, "room created", "room_id", roomId)
	}

	return r.snapshot(roomId, entry), !ok, nil
}

func (r *repo) AddMember(ctx context.Context, params *room.AddMemberParams) (room.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.rooms[params.RoomId]
	if !ok {
		return room.Room{}, room.ErrRoomNotFound
	}

	if _, exists := entry.members[params.ConnectionId]; !exists {
		entry.members[params.ConnectionId] = params.Username
		r.memberRoom[params.ConnectionId] = params.RoomId
		r.logger.DebugContext(ctx, "member added",
			"room_id", params.RoomId,
			"connection_id", params.ConnectionId,
			"username", params.Username,
		)
	}

	return r.snapshot(params.RoomId, entry), nil
}

// RemoveMember locates the (at most one) room containing the connection and
// removes it; the room is destroyed when its last member leaves.
func (r *repo) RemoveMember(ctx context.Context, connectionId string) (room.RemoveMemberResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomId, ok := r.memberRoom[connectionId]
	if !ok {
		return room.RemoveMemberResult{}, room.ErrMemberNotFound
	}

	entry := r.rooms[roomId]
	username := entry.members[connectionId]
	delete(entry.members, connectionId)
	delete(r.memberRoom, connectionId)

	result := room.RemoveMemberResult{
		RoomId:   roomId,
		Username: username,
		Members:  maps.Clone(entry.members),
	}

	if len(entry.members) == 0 {
		delete(r.rooms, roomId)
		result.RoomDeleted = true
		r.logger.DebugContext(ctx, "room deleted", "room_id", roomId)
	}

	return result, nil
}

func (r *repo) GetRoom(ctx context.Context, roomId string) (room.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.rooms[roomId]
	if !ok {
		return room.Room{}, room.ErrRoomNotFound
	}

	return r.snapshot(roomId, entry), nil
}

func (r *repo) IsMember(ctx context.Context, roomId string, connectionId string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.rooms[roomId]
	if !ok {
		return false, nil
	}

	_, ok = entry.members[connectionId]
	return ok, nil
}

// Apply is the only mutator of playback fields. It runs the per-action rules
// against the current room state and reports how the outcome must be
// broadcast.
func (r *repo) Apply(ctx context.Context, params *room.ApplyParams) (room.ApplyResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.rooms[params.RoomId]
	if !ok {
		return room.ApplyResult{}, room.ErrRoomNotFound
	}

	action := params.Action
	var result room.ApplyResult

	switch action.Action {
	case domain.ActionPlay:
		// Time is left untouched: receivers resume from their own position.
		if entry.state != domain.StatePlaying {
			entry.state = domain.StatePlaying
			result.Changed = true
		}

	case domain.ActionPause:
		// An explicit time counts as a change even when already paused, so
		// every deliberate pause forces a position resync.
		if entry.state != domain.StatePaused || action.Time != nil {
			entry.state = domain.StatePaused
			if action.Time != nil {
				entry.time = *action.Time
			}
			result.Changed = true
		}

	case domain.ActionSeek:
		entry.time = 0
		if action.Time != nil {
			entry.time = *action.Time
		}
		result.Changed = true

	case domain.ActionChangeVideo:
		if !domain.ValidVideoId(action.VideoId) {
			return room.ApplyResult{}, room.ErrInvalidVideoId
		}
		if entry.videoId == action.VideoId {
			break
		}
		entry.videoId = action.VideoId
		entry.state = domain.StatePaused
		entry.time = 0
		result.Changed = true
		result.FullResync = true

	default:
		r.logger.WarnContext(ctx, "unknown action ignored", "action", string(action.Action))
	}

	result.Room = r.snapshot(params.RoomId, entry)
	return result, nil
}

// snapshot must be called with the lock held.
func (r *repo) snapshot(roomId string, entry *roomEntry) room.Room {
	return room.Room{
		RoomId:  roomId,
		VideoId: entry.videoId,
		State:   entry.state,
		Time:    entry.time,
		Members: maps.Clone(entry.members),
	}
}
