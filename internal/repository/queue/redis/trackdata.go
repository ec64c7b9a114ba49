package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/karajam/server/internal/repository/queue"
)

// StoreTrackData caches track metadata under its own key, independent
// of any room queue.
func (r repo) StoreTrackData(ctx context.Context, track queue.Track) error {
	trackJSON, err := json.Marshal(track)
	if err != nil {
		return fmt.Errorf("failed to marshal track: %w", err)
	}

	if err := r.rc.Set(ctx, r.getTrackDataKey(track.Id), trackJSON, 0).Err(); err != nil {
		return fmt.Errorf("failed to store track data: %w", err)
	}

	return nil
}

// GetTrackData returns nil when no metadata is cached for the id.
func (r repo) GetTrackData(ctx context.Context, trackId string) (*queue.Track, error) {
	data, err := r.rc.Get(ctx, r.getTrackDataKey(trackId)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to get track data: %w", err)
	}

	var track queue.Track
	if err := json.Unmarshal([]byte(data), &track); err != nil {
		return nil, fmt.Errorf("failed to unmarshal track data: %w", err)
	}

	return &track, nil
}

func (r repo) IsTrackDataReady(ctx context.Context, track queue.Track) (bool, error) {
	res, err := r.rc.Exists(ctx, r.getTrackDataKey(track.Id)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check track data: %w", err)
	}

	return res > 0, nil
}

// GetAllTrackData returns the global track-data set, deduplicated by
// track id. Order is unspecified: the set backs availability checks,
// not playback.
func (r repo) GetAllTrackData(ctx context.Context) ([]queue.Track, error) {
	entries, err := r.rc.SMembers(ctx, trackDataSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read track data set: %w", err)
	}

	seen := make(map[string]struct{}, len(entries))
	tracks := make([]queue.Track, 0, len(entries))
	for _, entry := range entries {
		var track queue.Track
		if err := json.Unmarshal([]byte(entry), &track); err != nil {
			continue
		}

		if _, ok := seen[track.Id]; ok {
			continue
		}
		seen[track.Id] = struct{}{}

		tracks = append(tracks, track)
	}

	return tracks, nil
}

// DedupeTrackData drops entries with an already-seen track id from the
// global set. Duplicates accumulate because queue appends record every
// stamped copy.
func (r repo) DedupeTrackData(ctx context.Context) error {
	entries, err := r.rc.SMembers(ctx, trackDataSetKey).Result()
	if err != nil {
		return fmt.Errorf("failed to read track data set: %w", err)
	}

	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		var track queue.Track
		if err := json.Unmarshal([]byte(entry), &track); err != nil {
			continue
		}

		if _, ok := seen[track.Id]; ok {
			if err := r.rc.SRem(ctx, trackDataSetKey, entry).Err(); err != nil {
				return fmt.Errorf("failed to remove duplicate track data: %w", err)
			}
			continue
		}
		seen[track.Id] = struct{}{}
	}

	return nil
}

func (r repo) StoreTrackDelay(ctx context.Context, trackId string, delay float64) error {
	if err := r.rc.Set(ctx, r.getTrackDelayKey(trackId), delay, 0).Err(); err != nil {
		return fmt.Errorf("failed to store track delay: %w", err)
	}

	return nil
}

// GetTrackDelay returns nil when no delay is stored for the id.
func (r repo) GetTrackDelay(ctx context.Context, trackId string) (*float64, error) {
	delay, err := r.rc.Get(ctx, r.getTrackDelayKey(trackId)).Float64()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to get track delay: %w", err)
	}

	return &delay, nil
}
