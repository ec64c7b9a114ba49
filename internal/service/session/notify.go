package session

import (
	"context"
	"encoding/json"

	"github.com/karajam/server/internal/repository/queue"
)

// notifyEvent is a progress update from the acquisition pipeline,
// published on the track's channel and relayed to every client.
type notifyEvent struct {
	Action string      `json:"action"`
	Track  queue.Track `json:"track"`
	Status string      `json:"status,omitempty"`
	Value  float64     `json:"value,omitempty"`
	Total  float64     `json:"total,omitempty"`
}

// watchTrackProgress subscribes to the track's progress channel and
// funnels updates into the notifier. Subscriptions live on subCtx, not
// the request context: the pipeline keeps reporting long after the add
// request returned.
// Subscriptions are deduplicated by track id: re-adding a track that is
// still in the pipeline reuses the existing listener.
func (s *Service) watchTrackProgress(track queue.Track) {
	s.watchMu.Lock()
	if _, ok := s.watching[track.Id]; ok {
		s.watchMu.Unlock()
		return
	}
	s.watching[track.Id] = struct{}{}
	s.watchMu.Unlock()

	s.queueRepo.Subscribe(s.subCtx, track.Id, func(payload []byte) {
		var event notifyEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			s.logger.Debug("failed to decode progress message", "error", err, "track_id", track.Id)
			return
		}

		if event.Track.Id == "" {
			event.Track = track
		}
		if event.Action == "" {
			event.Action = "progress"
		}

		select {
		case s.notifyCh <- event:
		default:
			s.logger.Warn("notify channel full, dropping progress event", "track_id", track.Id)
		}
	})
}

// Start binds the service's background work to ctx: the notifier that
// drains progress events and broadcasts them to every connection.
func (s *Service) Start(ctx context.Context) {
	s.subCtx = ctx

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event := <-s.notifyCh:
				if err := s.Broadcast(ctx, &Event{
					Type: "notify",
					Data: event,
				}); err != nil {
					s.logger.InfoContext(ctx, "failed to broadcast notify event", "error", err)
				}
			}
		}
	}()
}
