package domain

// Action is one playback operation a member can propose for its room.
type Action string

const (
	ActionPlay        Action = "play"
	ActionPause       Action = "pause"
	ActionSeek        Action = "seek"
	ActionChangeVideo Action = "change_video"
)

func (a Action) Known() bool {
	switch a {
	case ActionPlay, ActionPause, ActionSeek, ActionChangeVideo:
		return true
	}

	return false
}

// VideoAction is a proposed playback change as it travels on the wire.
// Time is a pointer because "no time supplied" and "time zero" have
// different pause semantics.
type VideoAction struct {
	Action  Action   `json:"action"`
	Time    *float64 `json:"time,omitempty"`
	VideoId string   `json:"videoId,omitempty"`
}
