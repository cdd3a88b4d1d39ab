// Package player defines the playback capability the sync engine drives.
// Implementations report every state change through a single callback,
// whatever caused the change.
package player

import "github.com/watchroom/server/internal/domain"

type Player interface {
	// Load swaps the current video. Loading is asynchronous: commands
	// issued before the player reports a stable state may be dropped.
	Load(videoId string)
	Play()
	Pause()
	SeekTo(seconds float64)
	CurrentTime() float64
	Duration() float64
	State() domain.PlaybackState
	OnStateChange(fn func(state domain.PlaybackState))
	OnError(fn func(err error))
}
