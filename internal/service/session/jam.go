package session

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/karajam/server/internal/repository/jam"
)

type ApplyJamUpdateParams struct {
	Conn  *websocket.Conn
	Patch jam.Patch
	// Raw is the frame as it arrived. It is echoed to the rest of the
	// room verbatim so clients see exactly what the sender sent.
	Raw []byte
}

// ApplyJamUpdate merges a playback patch into the sender's room state
// and relays the frame to every other member. The sender is excluded:
// it already applied the change locally.
func (s *Service) ApplyJamUpdate(ctx context.Context, params *ApplyJamUpdateParams) (jam.State, error) {
	membership, err := s.connRepo.GetMembership(params.Conn)
	if err != nil {
		return jam.State{}, ErrConnectionUnknown
	}
	if membership == nil {
		return jam.State{}, ErrNotJoined
	}

	state, err := s.jamRepo.Upsert(ctx, membership.RoomId, params.Patch)
	if err != nil {
		return jam.State{}, fmt.Errorf("failed to upsert jam state: %w", err)
	}

	s.multicastRaw(ctx, membership.RoomId, params.Conn, params.Raw)

	return state, nil
}

type GetJamStateResponse struct {
	State jam.State
}

func (s *Service) GetJamState(ctx context.Context, roomId string) (GetJamStateResponse, error) {
	exists, err := s.jamRepo.Exists(ctx, roomId)
	if err != nil {
		return GetJamStateResponse{}, fmt.Errorf("failed to check room: %w", err)
	}
	if !exists {
		return GetJamStateResponse{}, ErrRoomNotFound
	}

	state, err := s.jamRepo.Get(ctx, roomId)
	if err != nil {
		return GetJamStateResponse{}, fmt.Errorf("failed to get jam state: %w", err)
	}

	return GetJamStateResponse{State: state}, nil
}
