package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/karajam/server/internal/repository/queue"
)

// Append stamps the track's time_added, pushes it to the tail of the
// room's queue and records it in the global track-data set. Returns the
// stamped track and the new queue length.
func (r repo) Append(ctx context.Context, params *queue.AppendParams) (queue.Track, int, error) {
	track := params.Track
	track.TimeAdded = time.Now().UnixNano()

	trackJSON, err := json.Marshal(track)
	if err != nil {
		return queue.Track{}, 0, fmt.Errorf("failed to marshal track: %w", err)
	}

	pipe := r.rc.TxPipeline()
	lenCmd := pipe.RPush(ctx, r.getQueueKey(params.RoomId), trackJSON)
	pipe.SAdd(ctx, trackDataSetKey, trackJSON)
	if err := r.executePipe(ctx, pipe); err != nil {
		return queue.Track{}, 0, fmt.Errorf("failed to append track: %w", err)
	}

	return track, int(lenCmd.Val()), nil
}

// InsertNext stamps the track and inserts it immediately after the
// currently playing index, or at the head when no cursor is set. The
// relative order of all other entries is preserved. Returns the
// stamped track and the index it landed at.
func (r repo) InsertNext(ctx context.Context, params *queue.InsertNextParams) (queue.Track, int, error) {
	track := params.Track
	track.TimeAdded = time.Now().UnixNano()

	tracks, err := r.Get(ctx, params.RoomId)
	if err != nil {
		return queue.Track{}, 0, err
	}

	pos := 0
	if params.CurrentIdx != nil {
		pos = *params.CurrentIdx + 1
	}
	if pos > len(tracks) {
		pos = len(tracks)
	}

	tracks = append(tracks, queue.Track{})
	copy(tracks[pos+1:], tracks[pos:])
	tracks[pos] = track

	if err := r.Replace(ctx, &queue.ReplaceParams{
		RoomId: params.RoomId,
		Tracks: tracks,
	}); err != nil {
		return queue.Track{}, 0, err
	}

	trackJSON, err := json.Marshal(track)
	if err != nil {
		return queue.Track{}, 0, fmt.Errorf("failed to marshal track: %w", err)
	}
	if err := r.rc.SAdd(ctx, trackDataSetKey, trackJSON).Err(); err != nil {
		return queue.Track{}, 0, fmt.Errorf("failed to add track data: %w", err)
	}

	return track, pos, nil
}

// Remove scans the room's queue for the first entry matching the
// (id, time_added) composite key and removes exactly that one.
func (r repo) Remove(ctx context.Context, params *queue.RemoveParams) (queue.Track, error) {
	queueKey := r.getQueueKey(params.RoomId)
	entries, err := r.rc.LRange(ctx, queueKey, 0, -1).Result()
	if err != nil {
		return queue.Track{}, fmt.Errorf("failed to read queue: %w", err)
	}

	for _, entry := range entries {
		var stored queue.Track
		if err := json.Unmarshal([]byte(entry), &stored); err != nil {
			r.logger.DebugContext(ctx, "skipping unreadable queue entry", "error", err)
			continue
		}

		if stored.SameEntry(params.Track) {
			if err := r.rc.LRem(ctx, queueKey, 1, entry).Err(); err != nil {
				return queue.Track{}, fmt.Errorf("failed to remove track: %w", err)
			}

			return stored, nil
		}
	}

	return queue.Track{}, queue.ErrTrackNotFound
}

// Get returns the room's queue in order.
func (r repo) Get(ctx context.Context, roomId string) ([]queue.Track, error) {
	entries, err := r.rc.LRange(ctx, r.getQueueKey(roomId), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read queue: %w", err)
	}

	tracks := make([]queue.Track, 0, len(entries))
	for _, entry := range entries {
		var track queue.Track
		if err := json.Unmarshal([]byte(entry), &track); err != nil {
			r.logger.DebugContext(ctx, "skipping unreadable queue entry", "error", err)
			continue
		}

		tracks = append(tracks, track)
	}

	return tracks, nil
}

// Replace atomically swaps the room's queue for the given sequence.
// Readers never observe the intermediate empty state.
func (r repo) Replace(ctx context.Context, params *queue.ReplaceParams) error {
	queueKey := r.getQueueKey(params.RoomId)

	pipe := r.rc.TxPipeline()
	pipe.Del(ctx, queueKey)
	for _, track := range params.Tracks {
		trackJSON, err := json.Marshal(track)
		if err != nil {
			return fmt.Errorf("failed to marshal track: %w", err)
		}
		pipe.RPush(ctx, queueKey, trackJSON)
	}

	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to replace queue: %w", err)
	}

	return nil
}

// UpdateStatus locates the entry by (id, time_added) and overwrites its
// status and progress in place.
func (r repo) UpdateStatus(ctx context.Context, params *queue.UpdateStatusParams) error {
	queueKey := r.getQueueKey(params.RoomId)
	entries, err := r.rc.LRange(ctx, queueKey, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("failed to read queue: %w", err)
	}

	for i, entry := range entries {
		var stored queue.Track
		if err := json.Unmarshal([]byte(entry), &stored); err != nil {
			continue
		}

		if stored.SameEntry(params.Track) {
			stored.Status = params.Track.Status
			stored.Progress = params.Track.Progress

			trackJSON, err := json.Marshal(stored)
			if err != nil {
				return fmt.Errorf("failed to marshal track: %w", err)
			}

			if err := r.rc.LSet(ctx, queueKey, int64(i), trackJSON).Err(); err != nil {
				return fmt.Errorf("failed to update track status: %w", err)
			}

			return nil
		}
	}

	return queue.ErrTrackNotFound
}

// Clear truncates the queue to [0, current_idx]. When no cursor was
// ever set the call is a no-op.
func (r repo) Clear(ctx context.Context, roomId string) error {
	currentIdx, err := r.GetCurrentIndex(ctx, roomId)
	if err != nil {
		return err
	}

	if currentIdx == nil {
		return nil
	}

	if err := r.rc.LTrim(ctx, r.getQueueKey(roomId), 0, int64(*currentIdx)).Err(); err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}

	return nil
}

func (r repo) SetCurrentIndex(ctx context.Context, roomId string, idx int) error {
	if err := r.rc.Set(ctx, r.getCurrentIdxKey(roomId), idx, 0).Err(); err != nil {
		return fmt.Errorf("failed to set current index: %w", err)
	}

	return nil
}

// GetCurrentIndex returns nil when no cursor has ever been set.
func (r repo) GetCurrentIndex(ctx context.Context, roomId string) (*int, error) {
	idx, err := r.rc.Get(ctx, r.getCurrentIdxKey(roomId)).Int()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to get current index: %w", err)
	}

	return &idx, nil
}
