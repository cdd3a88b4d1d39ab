// Package engine reconciles server sync events with the local player. The
// player reports every state change through one undifferentiated callback,
// so the engine has to decide whether a notification is the echo of a sync
// it just applied or a genuine local action that must reach the server.
package engine

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/watchroom/server/internal/client/player"
	"github.com/watchroom/server/internal/domain"
	"github.com/watchroom/server/internal/protocol"
)

// Emitter carries a locally originated playback action to the server.
type Emitter interface {
	EmitAction(action domain.VideoAction) error
}

type Config struct {
	// SeekThreshold is the minimum divergence before a synced seek
	// commands the player to move. Smaller gaps are jitter, not drift.
	SeekThreshold float64

	// PauseSeekThreshold is the looser divergence bound used when applying
	// a synced pause or a same-video snapshot, and when judging whether a
	// seek landed.
	PauseSeekThreshold float64

	// PostLoadThreshold is the divergence bound used when applying a
	// snapshot right after a video load.
	PostLoadThreshold float64

	// SettleDelay bounds how long the engine waits for a confirming player
	// notification before forcing itself back to idle.
	SettleDelay time.Duration

	// PostSeekDelay is how long a commanded seek is given to land before
	// the follow-up play or pause command is issued.
	PostSeekDelay time.Duration
}

func DefaultConfig() Config {
	return Config{
		SeekThreshold:      1.0,
		PauseSeekThreshold: 1.5,
		PostLoadThreshold:  0.5,
		SettleDelay:        100 * time.Millisecond,
		PostSeekDelay:      150 * time.Millisecond,
	}
}

type syncState int

const (
	stateIdle syncState = iota
	stateApplyingSync
)

type appliedSync struct {
	action domain.Action
	time   float64
}

type pendingIntent struct {
	state domain.PlaybackState
	time  float64
}

// Engine is the per-connection reconciliation state machine. All entry
// points share one mutex; timers carry the generation they were armed
// under, so a timer outlived by a newer sync can never flip its state.
type Engine struct {
	logger  *slog.Logger
	clock   clockwork.Clock
	player  player.Player
	emitter Emitter
	cfg     Config

	mu            sync.Mutex
	state         syncState
	generation    uint64
	lastApplied   appliedSync
	pending       *pendingIntent
	loadedVideoId string
	settleTimer   clockwork.Timer
}

func New(p player.Player, emitter Emitter, clock clockwork.Clock, cfg *Config, logger *slog.Logger) *Engine {
	if cfg == nil {
		def := DefaultConfig()
		cfg = &def
	}

	e := &Engine{
		logger:  logger,
		clock:   clock,
		player:  p,
		emitter: emitter,
		cfg:     *cfg,
	}

	p.OnStateChange(e.HandlePlayerStateChange)
	p.OnError(func(err error) {
		// playback trouble stays local, the room never hears about it
		logger.Warn("player error", "error", err)
	})

	return e
}

// HandleSync applies an incremental action broadcast from the server.
func (e *Engine) HandleSync(envelope protocol.SyncEnvelope) {
	e.mu.Lock()
	defer e.mu.Unlock()

	gen := e.begin()
	e.lastApplied = appliedSync{action: envelope.Action, time: envelope.Time}

	switch envelope.Action {
	case domain.ActionPlay:
		// no seek: receivers resume from their own position, the envelope
		// time on play is the server's last pause or seek and goes stale
		// during playback
		current := e.player.State()
		if current == domain.StatePlaying || current == domain.StateBuffering {
			e.forceIdle()
			return
		}
		e.player.Play()
		e.armSettle(gen, e.cfg.SettleDelay)

	case domain.ActionPause:
		if e.diverges(envelope.Time, e.cfg.PauseSeekThreshold) {
			e.player.SeekTo(envelope.Time)
		}
		if e.player.State() != domain.StatePlaying {
			e.forceIdle()
			return
		}
		e.player.Pause()
		e.armSettle(gen, e.cfg.SettleDelay)

	case domain.ActionSeek:
		if !e.diverges(envelope.Time, e.cfg.SeekThreshold) {
			e.forceIdle()
			return
		}
		e.player.SeekTo(envelope.Time)
		e.armSettle(gen, e.cfg.SettleDelay)

	default:
		e.logger.Warn("unknown sync action ignored", "action", string(envelope.Action))
		e.forceIdle()
	}
}

// HandleRoomState applies a full snapshot: the join handshake and every
// video change arrive this way.
func (e *Engine) HandleRoomState(state protocol.RoomState) {
	e.mu.Lock()
	defer e.mu.Unlock()

	gen := e.begin()

	if state.VideoId != e.loadedVideoId {
		// loading is asynchronous, position and playback state can only
		// be applied once the player reports the load landed
		e.pending = &pendingIntent{state: state.State, time: state.Time}
		e.loadedVideoId = state.VideoId
		e.player.Load(state.VideoId)
		e.armSettle(gen, e.cfg.SettleDelay+e.cfg.PostSeekDelay)
		return
	}

	e.applyTarget(gen, state.State, state.Time, e.cfg.PauseSeekThreshold)
}

// HandlePlayerStateChange is the single notification entry point for the
// player, covering both sync echoes and genuine user interaction.
func (e *Engine) HandlePlayerStateChange(state domain.PlaybackState) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == stateIdle {
		e.emitLocal(state)
		return
	}

	if e.pending != nil {
		switch state {
		case domain.StateCued, domain.StatePlaying, domain.StatePaused:
			target := *e.pending
			e.pending = nil
			e.applyTarget(e.generation, target.state, target.time, e.cfg.PostLoadThreshold)
		}
		return
	}

	if e.confirmed(state) {
		e.forceIdle()
	}
}

// confirmed checks the notification against the in-flight action. Caller
// holds mu.
func (e *Engine) confirmed(state domain.PlaybackState) bool {
	switch e.lastApplied.action {
	case domain.ActionPlay:
		return state == domain.StatePlaying || state == domain.StateBuffering
	case domain.ActionPause:
		return state == domain.StatePaused
	case domain.ActionSeek:
		return !e.diverges(e.lastApplied.time, e.cfg.PauseSeekThreshold)
	}

	return false
}

// emitLocal translates an idle-state notification into an outbound action.
// Play goes bare; only pause carries the position. Caller holds mu.
func (e *Engine) emitLocal(state domain.PlaybackState) {
	var action domain.VideoAction
	switch state {
	case domain.StatePlaying:
		action = domain.VideoAction{Action: domain.ActionPlay}
	case domain.StatePaused:
		at := e.player.CurrentTime()
		action = domain.VideoAction{Action: domain.ActionPause, Time: &at}
	default:
		// buffering, ended and load states are informational
		return
	}

	if err := e.emitter.EmitAction(action); err != nil {
		e.logger.Warn("failed to emit action", "action", string(action.Action), "error", err)
	}
}

// applyTarget drives the player toward a snapshot's playback state and
// position. The threshold is loose for a same-video snapshot and tight
// right after a load. Caller holds mu and has already entered the applying
// state.
func (e *Engine) applyTarget(gen uint64, target domain.PlaybackState, at, threshold float64) {
	targetAction := domain.ActionPause
	if target == domain.StatePlaying {
		targetAction = domain.ActionPlay
	}
	e.lastApplied = appliedSync{action: targetAction, time: at}

	if e.player.State() == target && !e.diverges(at, threshold) {
		e.forceIdle()
		return
	}

	settle := e.cfg.SettleDelay
	if e.diverges(at, threshold) {
		e.player.SeekTo(at)
		settle += e.cfg.PostSeekDelay
		e.clock.AfterFunc(e.cfg.PostSeekDelay, func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			if gen != e.generation {
				return
			}
			e.commandState(target)
		})
	} else {
		e.commandState(target)
	}

	e.armSettle(gen, settle)
}

// commandState issues the play or pause matching target. Caller holds mu.
func (e *Engine) commandState(target domain.PlaybackState) {
	if target == domain.StatePlaying {
		e.player.Play()
	} else {
		e.player.Pause()
	}
}

// begin opens a new sync attempt, superseding whatever was in flight.
// Caller holds mu.
func (e *Engine) begin() uint64 {
	e.generation++
	e.state = stateApplyingSync
	e.pending = nil
	e.stopSettle()
	return e.generation
}

// forceIdle ends the current attempt and invalidates its timers. Caller
// holds mu.
func (e *Engine) forceIdle() {
	e.generation++
	e.state = stateIdle
	e.pending = nil
	e.stopSettle()
}

func (e *Engine) stopSettle() {
	if e.settleTimer != nil {
		e.settleTimer.Stop()
		e.settleTimer = nil
	}
}

// armSettle bounds the wait for a confirming notification, replacing any
// timer armed earlier in the same attempt. Caller holds mu.
func (e *Engine) armSettle(gen uint64, delay time.Duration) {
	e.stopSettle()
	e.settleTimer = e.clock.AfterFunc(delay, func() {
		e.mu.Lock()
		defer e.mu.Unlock()

		if gen != e.generation || e.state != stateApplyingSync {
			return
		}
		if e.pending != nil {
			e.logger.Warn("settle timeout with unapplied snapshot target",
				"video_id", e.loadedVideoId,
			)
		}
		e.forceIdle()
	})
}

func (e *Engine) diverges(target, threshold float64) bool {
	return math.Abs(e.player.CurrentTime()-target) > threshold
}

// Idle reports whether no sync is in flight.
func (e *Engine) Idle() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == stateIdle
}
