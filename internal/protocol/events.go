// Package protocol defines the wire vocabulary shared by the server and the
// client: event names and the JSON payloads they carry. Every websocket frame
// is a {"type": ..., "payload": ...} envelope routed by event name.
package protocol

import "github.com/watchroom/server/internal/domain"

// Client-to-server events.
const (
	EventJoinRoom    = "join_room"
	EventVideoAction = "video_action"
	EventChatMessage = "chat_message"
)

// Server-to-client events.
const (
	EventRoomState       = "room_state"
	EventVideoActionSync = "video_action_sync"
	EventUserJoined      = "user_joined"
	EventUserLeft        = "user_left"
	EventSystemMessage   = "system_message"
	EventErrorMessage    = "error_message"
	EventJoinError       = "join_error"
)

type JoinRoom struct {
	RoomId   string `json:"roomId" validate:"required"`
	Username string `json:"username" validate:"required"`
}

// RoomState is the full snapshot sent to a joiner and broadcast on video
// change. Members maps connection id to display name.
type RoomState struct {
	VideoId string               `json:"videoId"`
	State   domain.PlaybackState `json:"state"`
	Time    float64              `json:"time"`
	Members map[string]string    `json:"users"`
	RoomId  string               `json:"roomId"`
}

// SyncEnvelope is the minimal incremental broadcast for one playback action.
// Time always carries the server's best-known position.
type SyncEnvelope struct {
	Action domain.Action `json:"action"`
	Time   float64       `json:"time"`
}

// MembershipDelta notifies remaining members about a join or leave.
type MembershipDelta struct {
	UserId   string            `json:"userId"`
	Username string            `json:"username"`
	Members  map[string]string `json:"users"`
}

type ChatInput struct {
	Message string `json:"message"`
}

type ChatMessage struct {
	User    string `json:"user"`
	Message string `json:"message"`
}
