package inmemory

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchroom/server/internal/domain"
	"github.com/watchroom/server/internal/repository/room"
)

func ptr(f float64) *float64 { return &f }

func newTestRepo() *repo {
	return NewRepo("", slog.Default())
}

func TestCreateOrGetSeedsDefaults(t *testing.T) {
	r := newTestRepo()
	ctx := context.Background()

	created, isNew, err := r.CreateOrGet(ctx, "abc123")
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.Equal(t, domain.DefaultVideoId, created.VideoId)
	assert.Equal(t, domain.StatePaused, created.State)
	assert.Zero(t, created.Time)
	assert.Empty(t, created.Members)

	again, isNew, err := r.CreateOrGet(ctx, "abc123")
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, created.VideoId, again.VideoId)
}

func TestApplyLastEffectiveActionWins(t *testing.T) {
	r := newTestRepo()
	ctx := context.Background()
	r.CreateOrGet(ctx, "abc123")

	apply := func(a domain.VideoAction) room.ApplyResult {
		res, err := r.Apply(ctx, &room.ApplyParams{RoomId: "abc123", Action: a})
		require.NoError(t, err)
		return res
	}

	res := apply(domain.VideoAction{Action: domain.ActionPlay})
	assert.True(t, res.Changed)
	assert.Equal(t, domain.StatePlaying, res.Room.State)

	// duplicate play is a no-op
	res = apply(domain.VideoAction{Action: domain.ActionPlay})
	assert.False(t, res.Changed)

	res = apply(domain.VideoAction{Action: domain.ActionSeek, Time: ptr(42)})
	assert.True(t, res.Changed)
	assert.Equal(t, 42.0, res.Room.Time)

	res = apply(domain.VideoAction{Action: domain.ActionPause, Time: ptr(43.5)})
	assert.True(t, res.Changed)
	assert.Equal(t, domain.StatePaused, res.Room.State)
	assert.Equal(t, 43.5, res.Room.Time)

	// pause without a time while already paused does not re-broadcast
	res = apply(domain.VideoAction{Action: domain.ActionPause})
	assert.False(t, res.Changed)

	// pause with a time while already paused does
	res = apply(domain.VideoAction{Action: domain.ActionPause, Time: ptr(10)})
	assert.True(t, res.Changed)
	assert.Equal(t, 10.0, res.Room.Time)
}

func TestApplySeekAlwaysBroadcasts(t *testing.T) {
	r := newTestRepo()
	ctx := context.Background()
	r.CreateOrGet(ctx, "abc123")

	res, err := r.Apply(ctx, &room.ApplyParams{RoomId: "abc123", Action: domain.VideoAction{Action: domain.ActionSeek}})
	require.NoError(t, err)
	assert.True(t, res.Changed, "seek without time defaults to 0 and still broadcasts")
	assert.Zero(t, res.Room.Time)
}

func TestApplyChangeVideo(t *testing.T) {
	r := newTestRepo()
	ctx := context.Background()
	r.CreateOrGet(ctx, "abc123")
	r.Apply(ctx, &room.ApplyParams{RoomId: "abc123", Action: domain.VideoAction{Action: domain.ActionPlay}})
	r.Apply(ctx, &room.ApplyParams{RoomId: "abc123", Action: domain.VideoAction{Action: domain.ActionSeek, Time: ptr(42)}})

	// malformed id mutates nothing
	_, err := r.Apply(ctx, &room.ApplyParams{RoomId: "abc123", Action: domain.VideoAction{Action: domain.ActionChangeVideo, VideoId: "nope"}})
	assert.ErrorIs(t, err, room.ErrInvalidVideoId)
	got, err := r.GetRoom(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, domain.StatePlaying, got.State)
	assert.Equal(t, 42.0, got.Time)

	// same id is a no-op
	res, err := r.Apply(ctx, &room.ApplyParams{RoomId: "abc123", Action: domain.VideoAction{Action: domain.ActionChangeVideo, VideoId: domain.DefaultVideoId}})
	require.NoError(t, err)
	assert.False(t, res.Changed)

	// a new id resets the room and requires a full resync
	res, err = r.Apply(ctx, &room.ApplyParams{RoomId: "abc123", Action: domain.VideoAction{Action: domain.ActionChangeVideo, VideoId: "a-b_c1D2e3F"}})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.True(t, res.FullResync)
	assert.Equal(t, "a-b_c1D2e3F", res.Room.VideoId)
	assert.Equal(t, domain.StatePaused, res.Room.State)
	assert.Zero(t, res.Room.Time)
}

func TestApplyUnknownActionIgnored(t *testing.T) {
	r := newTestRepo()
	ctx := context.Background()
	r.CreateOrGet(ctx, "abc123")

	res, err := r.Apply(ctx, &room.ApplyParams{RoomId: "abc123", Action: domain.VideoAction{Action: "rewind"}})
	require.NoError(t, err)
	assert.False(t, res.Changed)
}

func TestRoomLifecycle(t *testing.T) {
	r := newTestRepo()
	ctx := context.Background()

	r.CreateOrGet(ctx, "abc123")
	_, err := r.AddMember(ctx, &room.AddMemberParams{RoomId: "abc123", ConnectionId: "c1", Username: "alice"})
	require.NoError(t, err)
	_, err = r.AddMember(ctx, &room.AddMemberParams{RoomId: "abc123", ConnectionId: "c2", Username: "bob"})
	require.NoError(t, err)

	// mutate the room so a recreation is observable
	r.Apply(ctx, &room.ApplyParams{RoomId: "abc123", Action: domain.VideoAction{Action: domain.ActionSeek, Time: ptr(42)}})

	res, err := r.RemoveMember(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, res.RoomDeleted)
	assert.Equal(t, "alice", res.Username)
	assert.Equal(t, map[string]string{"c2": "bob"}, res.Members)

	res, err = r.RemoveMember(ctx, "c2")
	require.NoError(t, err)
	assert.True(t, res.RoomDeleted)

	_, err = r.GetRoom(ctx, "abc123")
	assert.ErrorIs(t, err, room.ErrRoomNotFound)

	// a removed connection belongs to no room
	_, err = r.RemoveMember(ctx, "c1")
	assert.ErrorIs(t, err, room.ErrMemberNotFound)

	// rejoining the same id creates a fresh default room
	fresh, isNew, err := r.CreateOrGet(ctx, "abc123")
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.Equal(t, domain.DefaultVideoId, fresh.VideoId)
	assert.Equal(t, domain.StatePaused, fresh.State)
	assert.Zero(t, fresh.Time)
}

func TestAddMemberIdempotent(t *testing.T) {
	r := newTestRepo()
	ctx := context.Background()
	r.CreateOrGet(ctx, "abc123")

	r.AddMember(ctx, &room.AddMemberParams{RoomId: "abc123", ConnectionId: "c1", Username: "alice"})
	got, err := r.AddMember(ctx, &room.AddMemberParams{RoomId: "abc123", ConnectionId: "c1", Username: "other"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"c1": "alice"}, got.Members)
}
