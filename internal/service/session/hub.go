package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/karajam/server/pkg/keyfmt"
)

// Event is the outbound envelope. Data is declared snake_case and
// camelized on the way out.
type Event struct {
	Type   string `json:"type"`
	Action string `json:"action,omitempty"`
	Data   any    `json:"data,omitempty"`
}

func (s *Service) encodeEvent(event *Event) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	camel, err := keyfmt.CamelizeJSON(data)
	if err != nil {
		return nil, fmt.Errorf("failed to camelize event: %w", err)
	}

	return camel, nil
}

// Multicast sends an event to every live member of a room, optionally
// excluding one connection.
func (s *Service) Multicast(ctx context.Context, roomId string, exclude *websocket.Conn, event *Event) error {
	data, err := s.encodeEvent(event)
	if err != nil {
		return err
	}

	s.multicastRaw(ctx, roomId, exclude, data)

	return nil
}

// Broadcast sends an event to every connected client regardless of
// room.
func (s *Service) Broadcast(ctx context.Context, event *Event) error {
	data, err := s.encodeEvent(event)
	if err != nil {
		return err
	}

	s.fanout(ctx, s.connRepo.GetAllConns(), data)

	return nil
}

// Send delivers an event to a single connection under the same send
// lock the fan-out holds. The transport forbids concurrent writers, so
// every write to a registered connection has to go through here.
func (s *Service) Send(ctx context.Context, conn *websocket.Conn, event *Event) error {
	data, err := s.encodeEvent(event)
	if err != nil {
		return err
	}

	s.sendMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	s.sendMu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to write to conn: %w", err)
	}

	return nil
}

func (s *Service) multicastRaw(ctx context.Context, roomId string, exclude *websocket.Conn, data []byte) {
	s.fanout(ctx, s.connRepo.GetRoomConns(roomId, exclude), data)
}

// fanout delivers data to each connection in turn. A failed send never
// aborts delivery to the rest: dead connections are collected during
// the loop and removed after it, each removal emitting a left event.
func (s *Service) fanout(ctx context.Context, conns []*websocket.Conn, data []byte) {
	var failed []*websocket.Conn

	s.sendMu.Lock()
	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			s.logger.DebugContext(ctx, "failed to write to conn", "error", err)
			failed = append(failed, conn)
		}
	}
	s.sendMu.Unlock()

	for _, conn := range failed {
		s.dropConn(ctx, conn)
	}
}

// dropConn removes a dead connection and tells its room the participant
// left. Recursion through the left-event multicast terminates because
// the connection is removed before the event is sent.
func (s *Service) dropConn(ctx context.Context, conn *websocket.Conn) {
	membership, err := s.connRepo.Remove(conn)
	if err != nil {
		return
	}
	conn.Close()

	if membership == nil {
		return
	}

	if err := s.Multicast(ctx, membership.RoomId, nil, &Event{
		Type:   "jam",
		Action: "left",
		Data: map[string]any{
			"participant": membership.Participant,
		},
	}); err != nil {
		s.logger.InfoContext(ctx, "failed to multicast left event", "error", err)
	}
}
