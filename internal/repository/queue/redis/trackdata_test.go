package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karajam/server/internal/repository/queue"
)

func TestTrackData(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	track := queue.Track{Id: "t1", Name: "track one"}

	ready, err := r.IsTrackDataReady(ctx, track)
	require.NoError(t, err)
	assert.False(t, ready)

	got, err := r.GetTrackData(ctx, "t1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, r.StoreTrackData(ctx, track))

	ready, err = r.IsTrackDataReady(ctx, track)
	require.NoError(t, err)
	assert.True(t, ready)

	got, err = r.GetTrackData(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, track.Name, got.Name)
}

func TestTrackDelay(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	delay, err := r.GetTrackDelay(ctx, "t1")
	require.NoError(t, err)
	assert.Nil(t, delay)

	require.NoError(t, r.StoreTrackDelay(ctx, "t1", -0.25))

	delay, err = r.GetTrackDelay(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, delay)
	assert.Equal(t, -0.25, *delay)
}

func TestDedupeTrackData(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	// queue appends record every stamped copy in the global set
	track := queue.Track{Id: "t1", Name: "track one"}
	_, _, err := r.Append(ctx, &queue.AppendParams{RoomId: "room1", Track: track})
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	_, _, err = r.Append(ctx, &queue.AppendParams{RoomId: "room2", Track: track})
	require.NoError(t, err)

	members, err := r.rc.SMembers(ctx, trackDataSetKey).Result()
	require.NoError(t, err)
	assert.Len(t, members, 2)

	// reads dedupe by id regardless
	tracks, err := r.GetAllTrackData(ctx)
	require.NoError(t, err)
	assert.Len(t, tracks, 1)

	require.NoError(t, r.DedupeTrackData(ctx))

	members, err = r.rc.SMembers(ctx, trackDataSetKey).Result()
	require.NoError(t, err)
	assert.Len(t, members, 1)
}
