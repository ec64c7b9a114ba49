package redis

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const trackDataSetKey = "track_data:"

type repo struct {
	rc     *redis.Client
	logger *slog.Logger
}

func NewRepo(rc *redis.Client, logger *slog.Logger) *repo {
	return &repo{
		rc:     rc,
		logger: logger,
	}
}

func (r repo) getQueueKey(roomId string) string {
	return "room:" + roomId + ":queue"
}

func (r repo) getCurrentIdxKey(roomId string) string {
	return "room:" + roomId + ":queue:current_idx"
}

func (r repo) getTrackDataKey(trackId string) string {
	return "track_data:" + trackId
}

func (r repo) getTrackDelayKey(trackId string) string {
	return "track_delay:" + trackId
}

func (r repo) executePipe(ctx context.Context, pipe redis.Pipeliner) error {
	cmds, err := pipe.Exec(ctx)
	if err != nil {
		for _, cmd := range cmds {
			if err := cmd.Err(); err != nil {
				return err
			}
		}

		return err
	}

	return nil
}
