package redis

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karajam/server/internal/repository/jam"
)

func newTestRepo(t *testing.T) (*repo, *redis.Client) {
	t.Helper()

	s := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	t.Cleanup(func() { rc.Close() })

	return NewRepo(rc, time.Second, slog.Default()), rc
}

func ptr[T any](v T) *T {
	return &v
}

func TestGetDefaults(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	state, err := r.Get(ctx, "room1")
	require.NoError(t, err)

	assert.Equal(t, "room1", state.Id)
	assert.Equal(t, 0.8, state.Volume)
	assert.False(t, state.Playing)
	assert.False(t, state.IsOn)
	assert.Nil(t, state.QueueIdx)
}

func TestExists(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	exists, err := r.Exists(ctx, "room1")
	require.NoError(t, err)
	assert.False(t, exists, "reading defaults must not initialize the room")

	_, err = r.Upsert(ctx, "room1", jam.Patch{IsOn: ptr(true)})
	require.NoError(t, err)

	exists, err = r.Exists(ctx, "room1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestPartialMerge(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	state, err := r.Upsert(ctx, "room1", jam.Patch{
		Playing:     ptr(true),
		CurrentTime: ptr(42.5),
	})
	require.NoError(t, err)

	assert.True(t, state.Playing)
	assert.Equal(t, 42.5, state.CurrentTime)
	assert.Equal(t, 0.8, state.Volume, "untouched fields keep their values")

	state, err = r.Upsert(ctx, "room1", jam.Patch{Volume: ptr(0.3)})
	require.NoError(t, err)

	assert.Equal(t, 0.3, state.Volume)
	assert.True(t, state.Playing, "a patch never resets other fields")
	assert.Equal(t, 42.5, state.CurrentTime)
}

func TestWriteRateLimit(t *testing.T) {
	r, rc := newTestRepo(t)
	ctx := context.Background()

	clock := time.Unix(1000, 0)
	r.now = func() time.Time { return clock }

	_, err := r.Upsert(ctx, "room1", jam.Patch{CurrentTime: ptr(1.0)})
	require.NoError(t, err)

	stored, err := rc.HGet(ctx, r.getJamKey("room1"), "current_time").Result()
	require.NoError(t, err)
	assert.Equal(t, "1", stored, "the first write goes straight through")

	// inside the interval: merged in memory, not written
	clock = clock.Add(100 * time.Millisecond)
	state, err := r.Upsert(ctx, "room1", jam.Patch{CurrentTime: ptr(2.0)})
	require.NoError(t, err)
	assert.Equal(t, 2.0, state.CurrentTime, "reads always see the latest merge")

	stored, err = rc.HGet(ctx, r.getJamKey("room1"), "current_time").Result()
	require.NoError(t, err)
	assert.Equal(t, "1", stored, "the store must lag within the write interval")

	// past the interval: the next upsert persists the merged state
	clock = clock.Add(time.Second)
	_, err = r.Upsert(ctx, "room1", jam.Patch{CurrentTime: ptr(3.0)})
	require.NoError(t, err)

	stored, err = rc.HGet(ctx, r.getJamKey("room1"), "current_time").Result()
	require.NoError(t, err)
	assert.Equal(t, "3", stored)
}

func TestStateSurvivesReload(t *testing.T) {
	r, rc := newTestRepo(t)
	ctx := context.Background()

	_, err := r.Upsert(ctx, "room1", jam.Patch{
		Playing:  ptr(true),
		QueueIdx: ptr(2),
	})
	require.NoError(t, err)

	// a fresh repo hydrates from the store
	fresh := NewRepo(rc, time.Second, slog.Default())
	state, err := fresh.Get(ctx, "room1")
	require.NoError(t, err)

	assert.True(t, state.Playing)
	require.NotNil(t, state.QueueIdx)
	assert.Equal(t, 2, *state.QueueIdx)
}
