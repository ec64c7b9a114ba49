package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/karajam/server/internal/repository/queue"
)

type AddTrackParams struct {
	RoomId string
	Track  queue.Track
}

type AddTrackResponse struct {
	Track  queue.Track
	Length int
}

// AddTrack appends a track to a room's queue and announces it. When
// the track's media is not ready yet, the acquisition pipeline is
// kicked off and its progress channel watched.
func (s *Service) AddTrack(ctx context.Context, params *AddTrackParams) (AddTrackResponse, error) {
	if err := s.requireRoom(ctx, params.RoomId); err != nil {
		return AddTrackResponse{}, err
	}

	params.Track.Status = queue.TrackStatusSubmitted

	track, length, err := s.queueRepo.Append(ctx, &queue.AppendParams{
		RoomId: params.RoomId,
		Track:  params.Track,
	})
	if err != nil {
		return AddTrackResponse{}, fmt.Errorf("failed to append track: %w", err)
	}

	ready, err := s.queueRepo.IsTrackDataReady(ctx, track)
	if err != nil {
		s.logger.InfoContext(ctx, "failed to check track data", "error", err)
	}

	if ready {
		track.Status = queue.TrackStatusReady
		if err := s.queueRepo.UpdateStatus(ctx, &queue.UpdateStatusParams{
			RoomId: params.RoomId,
			Track:  track,
		}); err != nil {
			s.logger.InfoContext(ctx, "failed to mark track ready", "error", err)
		}
	} else {
		if _, err := s.processor.SendProcessRequest(ctx, track); err != nil {
			s.logger.InfoContext(ctx, "failed to request track processing", "error", err)
		}
		s.watchTrackProgress(track)
	}

	if err := s.Multicast(ctx, params.RoomId, nil, &Event{
		Type: "queue",
		Data: map[string]any{
			"action": "added",
			"track":  track,
			"length": length,
		},
	}); err != nil {
		s.logger.InfoContext(ctx, "failed to multicast added event", "error", err)
	}

	return AddTrackResponse{Track: track, Length: length}, nil
}

type RemoveTrackParams struct {
	RoomId string
	Track  queue.Track
}

func (s *Service) RemoveTrack(ctx context.Context, params *RemoveTrackParams) (queue.Track, error) {
	if err := s.requireRoom(ctx, params.RoomId); err != nil {
		return queue.Track{}, err
	}

	track, err := s.queueRepo.Remove(ctx, &queue.RemoveParams{
		RoomId: params.RoomId,
		Track:  params.Track,
	})
	if err != nil {
		if errors.Is(err, queue.ErrTrackNotFound) {
			return queue.Track{}, ErrTrackNotFound
		}
		return queue.Track{}, fmt.Errorf("failed to remove track: %w", err)
	}

	if err := s.Multicast(ctx, params.RoomId, nil, &Event{
		Type: "queue",
		Data: map[string]any{
			"action": "removed",
			"track":  track,
		},
	}); err != nil {
		s.logger.InfoContext(ctx, "failed to multicast removed event", "error", err)
	}

	return track, nil
}

type InsertNextTrackParams struct {
	RoomId string
	Track  queue.Track
}

type InsertNextTrackResponse struct {
	Track queue.Track
	Index int
}

// InsertNextTrack places a track directly after the playback cursor,
// jumping the rest of the queue.
func (s *Service) InsertNextTrack(ctx context.Context, params *InsertNextTrackParams) (InsertNextTrackResponse, error) {
	if err := s.requireRoom(ctx, params.RoomId); err != nil {
		return InsertNextTrackResponse{}, err
	}

	currentIdx, err := s.queueRepo.GetCurrentIndex(ctx, params.RoomId)
	if err != nil {
		return InsertNextTrackResponse{}, fmt.Errorf("failed to get current index: %w", err)
	}

	params.Track.Status = queue.TrackStatusSubmitted

	track, idx, err := s.queueRepo.InsertNext(ctx, &queue.InsertNextParams{
		RoomId:     params.RoomId,
		CurrentIdx: currentIdx,
		Track:      params.Track,
	})
	if err != nil {
		return InsertNextTrackResponse{}, fmt.Errorf("failed to insert track: %w", err)
	}

	ready, err := s.queueRepo.IsTrackDataReady(ctx, track)
	if err != nil {
		s.logger.InfoContext(ctx, "failed to check track data", "error", err)
	}

	if ready {
		track.Status = queue.TrackStatusReady
		if err := s.queueRepo.UpdateStatus(ctx, &queue.UpdateStatusParams{
			RoomId: params.RoomId,
			Track:  track,
		}); err != nil {
			s.logger.InfoContext(ctx, "failed to mark track ready", "error", err)
		}
	} else {
		if _, err := s.processor.SendProcessRequest(ctx, track); err != nil {
			s.logger.InfoContext(ctx, "failed to request track processing", "error", err)
		}
		s.watchTrackProgress(track)
	}

	if err := s.Multicast(ctx, params.RoomId, nil, &Event{
		Type: "queue",
		Data: map[string]any{
			"action": "inserted",
			"track":  track,
			"index":  idx,
		},
	}); err != nil {
		s.logger.InfoContext(ctx, "failed to multicast inserted event", "error", err)
	}

	return InsertNextTrackResponse{Track: track, Index: idx}, nil
}

type ReorderQueueParams struct {
	RoomId string
	From   int
	To     int
}

// ReorderQueue moves the track at From to position To, shifting the
// tracks in between. The whole list is rewritten atomically.
func (s *Service) ReorderQueue(ctx context.Context, params *ReorderQueueParams) ([]queue.Track, error) {
	if err := s.requireRoom(ctx, params.RoomId); err != nil {
		return nil, err
	}

	tracks, err := s.queueRepo.Get(ctx, params.RoomId)
	if err != nil {
		return nil, fmt.Errorf("failed to get queue: %w", err)
	}

	if params.From < 0 || params.From >= len(tracks) ||
		params.To < 0 || params.To >= len(tracks) {
		return nil, ErrIndexOutOfRange
	}

	if params.From != params.To {
		track := tracks[params.From]
		tracks = append(tracks[:params.From], tracks[params.From+1:]...)
		tracks = append(tracks[:params.To], append([]queue.Track{track}, tracks[params.To:]...)...)

		if err := s.queueRepo.Replace(ctx, &queue.ReplaceParams{
			RoomId: params.RoomId,
			Tracks: tracks,
		}); err != nil {
			return nil, fmt.Errorf("failed to replace queue: %w", err)
		}
	}

	if err := s.Multicast(ctx, params.RoomId, nil, &Event{
		Type: "queue",
		Data: map[string]any{
			"action": "reordered",
			"queue":  tracks,
		},
	}); err != nil {
		s.logger.InfoContext(ctx, "failed to multicast reordered event", "error", err)
	}

	return tracks, nil
}

type ReplaceQueueParams struct {
	RoomId string
	Tracks []queue.Track
}

func (s *Service) ReplaceQueue(ctx context.Context, params *ReplaceQueueParams) error {
	if err := s.requireRoom(ctx, params.RoomId); err != nil {
		return err
	}

	if err := s.queueRepo.Replace(ctx, &queue.ReplaceParams{
		RoomId: params.RoomId,
		Tracks: params.Tracks,
	}); err != nil {
		return fmt.Errorf("failed to replace queue: %w", err)
	}

	if err := s.Multicast(ctx, params.RoomId, nil, &Event{
		Type: "queue",
		Data: map[string]any{
			"action": "reordered",
			"queue":  params.Tracks,
		},
	}); err != nil {
		s.logger.InfoContext(ctx, "failed to multicast reordered event", "error", err)
	}

	return nil
}

// ClearQueue drops every track up to and including the playback
// cursor. A room that never set a cursor is left untouched.
func (s *Service) ClearQueue(ctx context.Context, roomId string) error {
	if err := s.requireRoom(ctx, roomId); err != nil {
		return err
	}

	if err := s.queueRepo.Clear(ctx, roomId); err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}

	tracks, err := s.queueRepo.Get(ctx, roomId)
	if err != nil {
		return fmt.Errorf("failed to get queue: %w", err)
	}

	if err := s.Multicast(ctx, roomId, nil, &Event{
		Type: "queue",
		Data: map[string]any{
			"action": "cleared",
			"queue":  tracks,
		},
	}); err != nil {
		s.logger.InfoContext(ctx, "failed to multicast cleared event", "error", err)
	}

	return nil
}

type UpdateTrackStatusParams struct {
	RoomId string
	Track  queue.Track
}

// UpdateTrackStatus rewrites a queue entry in place, matching on the
// (id, time_added) composite key.
func (s *Service) UpdateTrackStatus(ctx context.Context, params *UpdateTrackStatusParams) error {
	if err := s.requireRoom(ctx, params.RoomId); err != nil {
		return err
	}

	if err := s.queueRepo.UpdateStatus(ctx, &queue.UpdateStatusParams{
		RoomId: params.RoomId,
		Track:  params.Track,
	}); err != nil {
		if errors.Is(err, queue.ErrTrackNotFound) {
			return ErrTrackNotFound
		}
		return fmt.Errorf("failed to update track status: %w", err)
	}

	if err := s.Multicast(ctx, params.RoomId, nil, &Event{
		Type: "queue",
		Data: map[string]any{
			"action": "updated",
			"track":  params.Track,
		},
	}); err != nil {
		s.logger.InfoContext(ctx, "failed to multicast updated event", "error", err)
	}

	return nil
}

func (s *Service) GetQueue(ctx context.Context, roomId string) ([]queue.Track, error) {
	if err := s.requireRoom(ctx, roomId); err != nil {
		return nil, err
	}

	tracks, err := s.queueRepo.Get(ctx, roomId)
	if err != nil {
		return nil, fmt.Errorf("failed to get queue: %w", err)
	}

	return tracks, nil
}

func (s *Service) SetCurrentIndex(ctx context.Context, roomId string, idx int) error {
	if err := s.requireRoom(ctx, roomId); err != nil {
		return err
	}

	if idx < 0 {
		return ErrIndexOutOfRange
	}

	if err := s.queueRepo.SetCurrentIndex(ctx, roomId, idx); err != nil {
		return fmt.Errorf("failed to set current index: %w", err)
	}

	return nil
}

func (s *Service) GetCurrentIndex(ctx context.Context, roomId string) (*int, error) {
	if err := s.requireRoom(ctx, roomId); err != nil {
		return nil, err
	}

	idx, err := s.queueRepo.GetCurrentIndex(ctx, roomId)
	if err != nil {
		return nil, fmt.Errorf("failed to get current index: %w", err)
	}

	return idx, nil
}

func (s *Service) GetAllTrackData(ctx context.Context) ([]queue.Track, error) {
	tracks, err := s.queueRepo.GetAllTrackData(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get track data: %w", err)
	}

	return tracks, nil
}

func (s *Service) GetTrackData(ctx context.Context, trackId string) (*queue.Track, error) {
	track, err := s.queueRepo.GetTrackData(ctx, trackId)
	if err != nil {
		return nil, fmt.Errorf("failed to get track data: %w", err)
	}
	if track == nil {
		return nil, ErrTrackNotFound
	}

	return track, nil
}

func (s *Service) GetTrackDelay(ctx context.Context, trackId string) (float64, error) {
	delay, err := s.queueRepo.GetTrackDelay(ctx, trackId)
	if err != nil {
		return 0, fmt.Errorf("failed to get track delay: %w", err)
	}
	if delay == nil {
		return 0, nil
	}

	return *delay, nil
}

func (s *Service) SetTrackDelay(ctx context.Context, trackId string, delay float64) error {
	if err := s.queueRepo.StoreTrackDelay(ctx, trackId, delay); err != nil {
		return fmt.Errorf("failed to store track delay: %w", err)
	}

	return nil
}

func (s *Service) requireRoom(ctx context.Context, roomId string) error {
	exists, err := s.jamRepo.Exists(ctx, roomId)
	if err != nil {
		return fmt.Errorf("failed to check room: %w", err)
	}
	if !exists {
		return ErrRoomNotFound
	}

	return nil
}
