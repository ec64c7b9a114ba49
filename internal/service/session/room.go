package session

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/karajam/server/internal/repository/connection"
	"github.com/karajam/server/internal/repository/jam"
	"github.com/karajam/server/internal/repository/queue"
)

// Accept registers a freshly upgraded connection in the global set.
func (s *Service) Accept(ctx context.Context, conn *websocket.Conn) error {
	if err := s.connRepo.Add(conn); err != nil {
		s.logger.InfoContext(ctx, "failed to accept conn", "error", err)
		return err
	}

	return nil
}

type CreateRoomParams struct {
	RoomId string
}

type CreateRoomResponse struct {
	RoomId string
	State  jam.State
}

// CreateRoom initializes a room's jam state and switches it on. An
// empty room id asks the server to generate one.
func (s *Service) CreateRoom(ctx context.Context, params *CreateRoomParams) (CreateRoomResponse, error) {
	roomId := params.RoomId
	if roomId == "" {
		roomId = s.generator.GenerateRandomString(roomIdLength)
	}

	isOn := true
	state, err := s.jamRepo.Upsert(ctx, roomId, jam.Patch{IsOn: &isOn})
	if err != nil {
		return CreateRoomResponse{}, fmt.Errorf("failed to create room: %w", err)
	}

	return CreateRoomResponse{
		RoomId: roomId,
		State:  state,
	}, nil
}

type JoinRoomParams struct {
	Conn        *websocket.Conn
	RoomId      string
	Participant connection.Participant
}

type JoinRoomResponse struct {
	State        jam.State
	Queue        []queue.Track
	Participants []connection.Participant
}

// JoinRoom binds the connection to the room and announces the new
// participant to every member, the joiner included. A join to a room
// that was never initialized succeeds only when the participant's id
// equals the room id (everyone owns the room named after them);
// anything else is ErrRoomNotFound.
func (s *Service) JoinRoom(ctx context.Context, params *JoinRoomParams) (JoinRoomResponse, error) {
	exists, err := s.jamRepo.Exists(ctx, params.RoomId)
	if err != nil {
		return JoinRoomResponse{}, fmt.Errorf("failed to check room: %w", err)
	}

	if !exists {
		if params.Participant.Id != params.RoomId {
			return JoinRoomResponse{}, ErrRoomNotFound
		}

		isOn := true
		if _, err := s.jamRepo.Upsert(ctx, params.RoomId, jam.Patch{IsOn: &isOn}); err != nil {
			return JoinRoomResponse{}, fmt.Errorf("failed to create room: %w", err)
		}
	}

	if err := s.connRepo.Join(params.Conn, params.RoomId, params.Participant); err != nil {
		s.logger.InfoContext(ctx, "failed to join conn to room", "error", err)
		switch err {
		case connection.ErrAlreadyJoined:
			return JoinRoomResponse{}, ErrAlreadyJoined
		case connection.ErrNotFound:
			return JoinRoomResponse{}, ErrConnectionUnknown
		}
		return JoinRoomResponse{}, err
	}

	if err := s.Multicast(ctx, params.RoomId, nil, &Event{
		Type:   "jam",
		Action: "joined",
		Data: map[string]any{
			"participant": params.Participant,
		},
	}); err != nil {
		s.logger.InfoContext(ctx, "failed to multicast joined event", "error", err)
	}

	state, err := s.GetRoomState(ctx, params.RoomId)
	if err != nil {
		return JoinRoomResponse{}, err
	}

	return JoinRoomResponse(state), nil
}

type LeaveRoomParams struct {
	RoomId      string
	Participant connection.Participant
}

// LeaveRoom announces a participant's departure without touching any
// connection: the REST surface drives it for clients whose socket is
// still open.
func (s *Service) LeaveRoom(ctx context.Context, params *LeaveRoomParams) error {
	exists, err := s.jamRepo.Exists(ctx, params.RoomId)
	if err != nil {
		return fmt.Errorf("failed to check room: %w", err)
	}
	if !exists {
		return ErrRoomNotFound
	}

	if err := s.Multicast(ctx, params.RoomId, nil, &Event{
		Type:   "jam",
		Action: "left",
		Data: map[string]any{
			"participant": params.Participant,
		},
	}); err != nil {
		s.logger.InfoContext(ctx, "failed to multicast left event", "error", err)
	}

	return nil
}

// Disconnect tears a connection down: membership cleanup plus a left
// event when the connection had joined a room.
func (s *Service) Disconnect(ctx context.Context, conn *websocket.Conn) {
	s.dropConn(ctx, conn)
}

type RoomState struct {
	State        jam.State
	Queue        []queue.Track
	Participants []connection.Participant
}

func (s *Service) GetRoomState(ctx context.Context, roomId string) (RoomState, error) {
	if err := s.requireRoom(ctx, roomId); err != nil {
		return RoomState{}, err
	}

	state, err := s.jamRepo.Get(ctx, roomId)
	if err != nil {
		return RoomState{}, fmt.Errorf("failed to get jam state: %w", err)
	}

	tracks, err := s.queueRepo.Get(ctx, roomId)
	if err != nil {
		return RoomState{}, fmt.Errorf("failed to get queue: %w", err)
	}

	return RoomState{
		State:        state,
		Queue:        tracks,
		Participants: s.connRepo.GetParticipants(roomId),
	}, nil
}
