package player

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/watchroom/server/internal/domain"
)

const (
	tickInterval = 250 * time.Millisecond

	// every simulated video gets the same length; there is no real
	// metadata source to ask
	simulatedDuration = 600.0
)

// Headless simulates a video player for terminal clients. Playback position
// advances on a clock tick while playing, and state-change notifications are
// delivered from the run loop rather than inside command calls, so a caller
// holding its own lock while issuing commands cannot deadlock on its callback.
type Headless struct {
	logger *slog.Logger
	clock  clockwork.Clock

	mu       sync.Mutex
	videoId  string
	position float64
	state    domain.PlaybackState
	onState  func(domain.PlaybackState)
	onError  func(error)

	notifications chan domain.PlaybackState
}

func NewHeadless(clock clockwork.Clock, logger *slog.Logger) *Headless {
	return &Headless{
		logger:        logger,
		clock:         clock,
		state:         domain.StateUnstarted,
		notifications: make(chan domain.PlaybackState, 16),
	}
}

// Run drives playback and notification delivery until ctx is done.
func (p *Headless) Run(ctx context.Context) {
	ticker := p.clock.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case state := <-p.notifications:
			p.mu.Lock()
			fn := p.onState
			p.mu.Unlock()
			if fn != nil {
				fn(state)
			}
		case <-ticker.Chan():
			p.tick()
		}
	}
}

func (p *Headless) tick() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != domain.StatePlaying {
		return
	}

	p.position += tickInterval.Seconds()
	if p.position >= simulatedDuration {
		p.position = simulatedDuration
		p.state = domain.StateEnded
		p.queue(domain.StateEnded)
	}
}

// queue hands a notification to the run loop. Caller holds mu; a full
// buffer drops the notification, the sync engine recovers via its timeout.
func (p *Headless) queue(state domain.PlaybackState) {
	select {
	case p.notifications <- state:
	default:
		p.logger.Warn("player notification dropped", "state", state.String())
	}
}

func (p *Headless) Load(videoId string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.videoId = videoId
	p.position = 0
	p.state = domain.StateCued
	p.queue(domain.StateCued)
}

func (p *Headless) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == domain.StatePlaying {
		return
	}

	p.state = domain.StatePlaying
	p.queue(domain.StatePlaying)
}

func (p *Headless) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != domain.StatePlaying && p.state != domain.StateBuffering {
		return
	}

	p.state = domain.StatePaused
	p.queue(domain.StatePaused)
}

func (p *Headless) SeekTo(seconds float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if seconds < 0 {
		seconds = 0
	}
	if seconds > simulatedDuration {
		seconds = simulatedDuration
	}
	p.position = seconds

	// a real widget re-reports its state after the seek lands
	p.queue(p.state)
}

func (p *Headless) CurrentTime() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

func (p *Headless) Duration() float64 {
	return simulatedDuration
}

func (p *Headless) State() domain.PlaybackState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Headless) VideoId() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.videoId
}

func (p *Headless) OnStateChange(fn func(domain.PlaybackState)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onState = fn
}

func (p *Headless) OnError(fn func(error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onError = fn
}
