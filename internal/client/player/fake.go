package player

import (
	"sync"

	"github.com/watchroom/server/internal/domain"
)

// Command records a single call issued to the Fake.
type Command struct {
	Name    string
	VideoId string
	Seconds float64
}

// Fake is a deterministic Player for tests. It records every command and
// delivers state-change notifications only when the test calls Notify, so
// tests control the exact interleaving of commands and notifications. Safe
// for concurrent use; timer callbacks may issue commands off the test
// goroutine.
type Fake struct {
	mu       sync.Mutex
	videoId  string
	position float64
	length   float64
	current  domain.PlaybackState
	commands []Command
	onState  func(domain.PlaybackState)
	onError  func(error)
}

func NewFake() *Fake {
	return &Fake{current: domain.StateUnstarted, length: 600}
}

func (f *Fake) Load(videoId string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, Command{Name: "load", VideoId: videoId})
	f.videoId = videoId
	f.position = 0
	f.current = domain.StateUnstarted
}

func (f *Fake) Play() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, Command{Name: "play"})
}

func (f *Fake) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, Command{Name: "pause"})
}

func (f *Fake) SeekTo(seconds float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, Command{Name: "seek", Seconds: seconds})
	f.position = seconds
}

func (f *Fake) CurrentTime() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.position
}

func (f *Fake) Duration() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.length
}

func (f *Fake) State() domain.PlaybackState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *Fake) VideoId() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.videoId
}

func (f *Fake) OnStateChange(fn func(domain.PlaybackState)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onState = fn
}

func (f *Fake) OnError(fn func(error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onError = fn
}

// SetPosition places the playhead without recording a seek command.
func (f *Fake) SetPosition(seconds float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.position = seconds
}

// SetState sets the reported state without firing the callback.
func (f *Fake) SetState(state domain.PlaybackState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = state
}

// Notify sets the current state and fires the state-change callback, the way
// a real player would after a command lands or a user touches the controls.
// The callback runs outside the Fake's lock.
func (f *Fake) Notify(state domain.PlaybackState) {
	f.mu.Lock()
	f.current = state
	fn := f.onState
	f.mu.Unlock()

	if fn != nil {
		fn(state)
	}
}

// Fail fires the error callback.
func (f *Fake) Fail(err error) {
	f.mu.Lock()
	fn := f.onError
	f.mu.Unlock()

	if fn != nil {
		fn(err)
	}
}

// Commands returns a snapshot of the recorded commands.
func (f *Fake) Commands() []Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Command, len(f.commands))
	copy(out, f.commands)
	return out
}

// Reset clears the command record.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = nil
}
