package domain

// PlaybackState mirrors the numeric state codes reported by the embedded
// player widget, so snapshots can be fed back to it without translation.
type PlaybackState int

const (
	StateUnstarted PlaybackState = -1
	StateEnded     PlaybackState = 0
	StatePlaying   PlaybackState = 1
	StatePaused    PlaybackState = 2
	StateBuffering PlaybackState = 3
	StateCued      PlaybackState = 5
)

func (s PlaybackState) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateEnded:
		return "ended"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateBuffering:
		return "buffering"
	case StateCued:
		return "cued"
	default:
		return "unknown"
	}
}
