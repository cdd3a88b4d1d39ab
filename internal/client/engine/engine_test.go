package engine

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchroom/server/internal/client/player"
	"github.com/watchroom/server/internal/domain"
	"github.com/watchroom/server/internal/protocol"
)

type recordingEmitter struct {
	mu      sync.Mutex
	actions []domain.VideoAction
}

func (r *recordingEmitter) EmitAction(action domain.VideoAction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, action)
	return nil
}

func (r *recordingEmitter) Actions() []domain.VideoAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.VideoAction, len(r.actions))
	copy(out, r.actions)
	return out
}

func newTestEngine(t *testing.T) (*Engine, *player.Fake, *recordingEmitter, *clockwork.FakeClock) {
	t.Helper()
	fake := player.NewFake()
	emitter := &recordingEmitter{}
	clock := clockwork.NewFakeClock()
	eng := New(fake, emitter, clock, nil, slog.Default())
	return eng, fake, emitter, clock
}

func commandNames(f *player.Fake) []string {
	commands := f.Commands()
	names := make([]string, 0, len(commands))
	for _, c := range commands {
		names = append(names, c.Name)
	}
	return names
}

func TestSeekWithinThresholdIsNoOp(t *testing.T) {
	eng, fake, emitter, _ := newTestEngine(t)
	fake.SetState(domain.StatePlaying)
	fake.SetPosition(10)

	eng.HandleSync(protocol.SyncEnvelope{Action: domain.ActionSeek, Time: 10.5})

	assert.Empty(t, fake.Commands())
	assert.Empty(t, emitter.Actions())
	assert.True(t, eng.Idle())
}

func TestSeekBeyondThresholdCommandsPlayer(t *testing.T) {
	eng, fake, emitter, _ := newTestEngine(t)
	fake.SetState(domain.StatePlaying)
	fake.SetPosition(10)

	eng.HandleSync(protocol.SyncEnvelope{Action: domain.ActionSeek, Time: 42})

	require.Equal(t, []string{"seek"}, commandNames(fake))
	assert.False(t, eng.Idle())

	// the player re-reports its state once the seek lands
	fake.Notify(domain.StatePlaying)

	assert.True(t, eng.Idle())
	assert.Empty(t, emitter.Actions(), "a confirmed sync must not echo")
}

func TestPlaySyncDoesNotEcho(t *testing.T) {
	eng, fake, emitter, _ := newTestEngine(t)
	fake.SetState(domain.StatePaused)
	fake.SetPosition(5)

	eng.HandleSync(protocol.SyncEnvelope{Action: domain.ActionPlay, Time: 5.2})

	require.Equal(t, []string{"play"}, commandNames(fake))

	fake.Notify(domain.StatePlaying)

	assert.True(t, eng.Idle())
	assert.Empty(t, emitter.Actions())

	// a later genuine pause must still reach the server
	fake.Notify(domain.StatePaused)

	actions := emitter.Actions()
	require.Len(t, actions, 1)
	assert.Equal(t, domain.ActionPause, actions[0].Action)
	require.NotNil(t, actions[0].Time)
	assert.Equal(t, 5.0, *actions[0].Time)
}

func TestPlaySyncNeverSeeks(t *testing.T) {
	eng, fake, emitter, _ := newTestEngine(t)
	fake.SetState(domain.StatePaused)
	fake.SetPosition(300)

	// the envelope time on play is the server's last pause or seek and may
	// lag far behind a playing receiver; resuming must not move the playhead
	eng.HandleSync(protocol.SyncEnvelope{Action: domain.ActionPlay, Time: 0})

	assert.Equal(t, []string{"play"}, commandNames(fake))
	assert.Equal(t, 300.0, fake.CurrentTime())

	fake.Notify(domain.StatePlaying)

	assert.True(t, eng.Idle())
	assert.Empty(t, emitter.Actions())
}

func TestPlaySyncWhileAlreadyPlayingIsNoOp(t *testing.T) {
	eng, fake, emitter, _ := newTestEngine(t)
	fake.SetState(domain.StatePlaying)
	fake.SetPosition(30)

	eng.HandleSync(protocol.SyncEnvelope{Action: domain.ActionPlay, Time: 30.1})

	assert.Empty(t, fake.Commands())
	assert.Empty(t, emitter.Actions())
	assert.True(t, eng.Idle())
}

func TestPauseSyncWhileCloseAndPausedIsNoOp(t *testing.T) {
	eng, fake, _, _ := newTestEngine(t)
	fake.SetState(domain.StatePaused)
	fake.SetPosition(20)

	eng.HandleSync(protocol.SyncEnvelope{Action: domain.ActionPause, Time: 20.5})

	assert.Empty(t, fake.Commands())
	assert.True(t, eng.Idle())
}

func TestPauseSyncSeeksAndPauses(t *testing.T) {
	eng, fake, emitter, _ := newTestEngine(t)
	fake.SetState(domain.StatePlaying)
	fake.SetPosition(10)

	eng.HandleSync(protocol.SyncEnvelope{Action: domain.ActionPause, Time: 20})

	require.Equal(t, []string{"seek", "pause"}, commandNames(fake))

	fake.Notify(domain.StatePaused)

	assert.True(t, eng.Idle())
	assert.Empty(t, emitter.Actions())
}

func TestUnknownSyncActionIgnored(t *testing.T) {
	eng, fake, _, _ := newTestEngine(t)

	eng.HandleSync(protocol.SyncEnvelope{Action: domain.Action("warp"), Time: 3})

	assert.Empty(t, fake.Commands())
	assert.True(t, eng.Idle())
}

func TestSettleTimeoutForcesIdle(t *testing.T) {
	eng, fake, emitter, clock := newTestEngine(t)
	fake.SetState(domain.StatePaused)
	fake.SetPosition(0)

	eng.HandleSync(protocol.SyncEnvelope{Action: domain.ActionPlay, Time: 0.2})

	require.Equal(t, []string{"play"}, commandNames(fake))
	require.False(t, eng.Idle())

	// no confirming notification ever arrives
	clock.Advance(DefaultConfig().SettleDelay)

	require.Eventually(t, eng.Idle, time.Second, time.Millisecond)

	// the engine recovered: genuine actions flow again
	fake.Notify(domain.StatePlaying)

	actions := emitter.Actions()
	require.Len(t, actions, 1)
	assert.Equal(t, domain.ActionPlay, actions[0].Action)
	assert.Nil(t, actions[0].Time, "play goes bare, receivers keep their own position")
}

func TestVideoChangeAppliesPendingTargetAfterLoad(t *testing.T) {
	eng, fake, emitter, _ := newTestEngine(t)
	fake.SetState(domain.StatePlaying)
	fake.SetPosition(100)

	eng.HandleRoomState(protocol.RoomState{
		VideoId: "a-b_c1D2e3F",
		State:   domain.StatePaused,
		Time:    0,
		RoomId:  "abc123",
	})

	require.Equal(t, []string{"load"}, commandNames(fake))

	// load completion reports a stable state, the stored target applies
	fake.Notify(domain.StateCued)

	require.Equal(t, []string{"load", "pause"}, commandNames(fake))

	fake.Notify(domain.StatePaused)

	assert.True(t, eng.Idle())
	assert.Empty(t, emitter.Actions())
}

func TestVideoChangeSeeksThenFlipsStateAfterDelay(t *testing.T) {
	eng, fake, emitter, clock := newTestEngine(t)
	fake.SetState(domain.StatePaused)
	fake.SetPosition(0)

	eng.HandleRoomState(protocol.RoomState{
		VideoId: "a-b_c1D2e3F",
		State:   domain.StatePlaying,
		Time:    42,
		RoomId:  "abc123",
	})

	fake.Notify(domain.StateCued)

	require.Equal(t, []string{"load", "seek"}, commandNames(fake))

	// the play command waits for the seek to land
	clock.Advance(DefaultConfig().PostSeekDelay)

	require.Eventually(t, func() bool {
		names := commandNames(fake)
		return len(names) == 3 && names[2] == "play"
	}, time.Second, time.Millisecond)

	fake.Notify(domain.StatePlaying)

	assert.True(t, eng.Idle())
	assert.Empty(t, emitter.Actions())
}

func TestSameVideoSnapshotUsesLooseThreshold(t *testing.T) {
	eng, fake, emitter, _ := newTestEngine(t)
	fake.SetState(domain.StatePaused)
	fake.SetPosition(0)

	eng.HandleRoomState(protocol.RoomState{
		VideoId: "a-b_c1D2e3F",
		State:   domain.StatePaused,
		Time:    0,
		RoomId:  "abc123",
	})
	fake.Notify(domain.StateCued)
	fake.Notify(domain.StatePaused)
	require.True(t, eng.Idle())
	fake.Reset()

	// a 1.0s gap on the already-loaded video is jitter, not drift
	eng.HandleRoomState(protocol.RoomState{
		VideoId: "a-b_c1D2e3F",
		State:   domain.StatePaused,
		Time:    1.0,
		RoomId:  "abc123",
	})

	assert.Empty(t, fake.Commands())
	assert.True(t, eng.Idle())

	// beyond the pause threshold the snapshot still snaps
	eng.HandleRoomState(protocol.RoomState{
		VideoId: "a-b_c1D2e3F",
		State:   domain.StatePaused,
		Time:    5,
		RoomId:  "abc123",
	})

	assert.Equal(t, []string{"seek"}, commandNames(fake))
	assert.Empty(t, emitter.Actions())
}

func TestSupersededSyncInvalidatesScheduledCommands(t *testing.T) {
	eng, fake, _, clock := newTestEngine(t)
	fake.SetState(domain.StatePaused)
	fake.SetPosition(0)

	eng.HandleRoomState(protocol.RoomState{
		VideoId: "a-b_c1D2e3F",
		State:   domain.StatePlaying,
		Time:    42,
		RoomId:  "abc123",
	})
	fake.Notify(domain.StateCued)
	require.Equal(t, []string{"load", "seek"}, commandNames(fake))

	// a newer envelope supersedes the in-flight snapshot before the
	// scheduled play fires
	eng.HandleSync(protocol.SyncEnvelope{Action: domain.ActionPause, Time: 42})
	require.True(t, eng.Idle())

	clock.Advance(time.Second)

	assert.Never(t, func() bool {
		for _, name := range commandNames(fake) {
			if name == "play" {
				return true
			}
		}
		return false
	}, 200*time.Millisecond, 10*time.Millisecond)
}

func TestInformationalStatesNotEmitted(t *testing.T) {
	eng, fake, emitter, _ := newTestEngine(t)
	require.True(t, eng.Idle())

	fake.Notify(domain.StateBuffering)
	fake.Notify(domain.StateEnded)
	fake.Notify(domain.StateCued)

	assert.Empty(t, emitter.Actions())
}
