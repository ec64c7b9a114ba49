package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/karajam/server/internal/repository/jam"
)

// repo keeps the authoritative copy of every referenced jam state in
// process and writes it back to Redis at most once per writeInterval
// per room. The cache is write-through for readers: Get always sees the
// latest merge even when the durable write is still pending.
type repo struct {
	rc            *redis.Client
	logger        *slog.Logger
	writeInterval time.Duration
	now           func() time.Time

	mu        sync.Mutex
	states    map[string]jam.State
	lastWrite map[string]time.Time
}

func NewRepo(rc *redis.Client, writeInterval time.Duration, logger *slog.Logger) *repo {
	return &repo{
		rc:            rc,
		logger:        logger,
		writeInterval: writeInterval,
		now:           time.Now,
		states:        make(map[string]jam.State),
		lastWrite:     make(map[string]time.Time),
	}
}

func (r *repo) getJamKey(roomId string) string {
	return "jam:" + roomId
}

// Get returns the cached state, loading it from Redis on first
// reference. A room with no stored state yields a fresh default; that
// is not an error.
func (r *repo) Get(ctx context.Context, roomId string) (jam.State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.getLocked(ctx, roomId)
}

func (r *repo) getLocked(ctx context.Context, roomId string) (jam.State, error) {
	if state, ok := r.states[roomId]; ok {
		return state, nil
	}

	raw, err := r.rc.HGetAll(ctx, r.getJamKey(roomId)).Result()
	if err != nil {
		return jam.State{}, fmt.Errorf("failed to load jam state: %w", err)
	}

	state := jam.Default(roomId)
	for field, value := range raw {
		if err := unmarshalField(&state, field, value); err != nil {
			r.logger.DebugContext(ctx, "skipping unreadable jam field",
				"room_id", roomId,
				"field", field,
				"error", err,
			)
		}
	}

	r.states[roomId] = state

	return state, nil
}

// Exists distinguishes "never initialized" from "initialized with
// defaults": it checks the store, not the cache.
func (r *repo) Exists(ctx context.Context, roomId string) (bool, error) {
	res, err := r.rc.Exists(ctx, r.getJamKey(roomId)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check jam state: %w", err)
	}

	return res > 0, nil
}

// Upsert merges the patch into the cached state and writes the full
// merged state back to Redis at most once per writeInterval per room.
// The returned state always reflects the merge.
func (r *repo) Upsert(ctx context.Context, roomId string, patch jam.Patch) (jam.State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, err := r.getLocked(ctx, roomId)
	if err != nil {
		return jam.State{}, err
	}

	merged := jam.Merge(state, patch)
	r.states[roomId] = merged

	now := r.now()
	if now.Sub(r.lastWrite[roomId]) < r.writeInterval {
		return merged, nil
	}

	fields, err := marshalFields(merged)
	if err != nil {
		return jam.State{}, err
	}

	if err := r.rc.HSet(ctx, r.getJamKey(roomId), fields).Err(); err != nil {
		return jam.State{}, fmt.Errorf("failed to write jam state: %w", err)
	}
	r.lastWrite[roomId] = now

	return merged, nil
}

// Jam state is persisted as a hash with one JSON-encoded value per
// field.
func marshalFields(state jam.State) (map[string]string, error) {
	values := map[string]any{
		"id":           state.Id,
		"current_time": state.CurrentTime,
		"playing":      state.Playing,
		"volume":       state.Volume,
		"vocal_on":     state.VocalOn,
		"is_on":        state.IsOn,
		"queue_idx":    state.QueueIdx,
	}

	fields := make(map[string]string, len(values))
	for field, value := range values {
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal jam field %s: %w", field, err)
		}
		fields[field] = string(encoded)
	}

	return fields, nil
}

func unmarshalField(state *jam.State, field, value string) error {
	switch field {
	case "id":
		return json.Unmarshal([]byte(value), &state.Id)
	case "current_time":
		return json.Unmarshal([]byte(value), &state.CurrentTime)
	case "playing":
		return json.Unmarshal([]byte(value), &state.Playing)
	case "volume":
		return json.Unmarshal([]byte(value), &state.Volume)
	case "vocal_on":
		return json.Unmarshal([]byte(value), &state.VocalOn)
	case "is_on":
		return json.Unmarshal([]byte(value), &state.IsOn)
	case "queue_idx":
		return json.Unmarshal([]byte(value), &state.QueueIdx)
	}

	// unknown fields are ignored for forward compatibility
	return nil
}
