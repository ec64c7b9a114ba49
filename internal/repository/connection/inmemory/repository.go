package inmemory

import (
	"sync"

	"github.com/gorilla/websocket"
	"golang.org/x/exp/maps"

	"github.com/karajam/server/internal/repository/connection"
)

type member struct {
	conn        *websocket.Conn
	participant connection.Participant
}

// repo owns connection lifecycle and room membership. One lock covers
// both collections so a broadcast snapshot can never observe a
// half-applied join or leave.
type repo struct {
	mu    sync.RWMutex
	conns map[*websocket.Conn]*connection.Membership
	rooms map[string][]member
}

func NewRepo() *repo {
	return &repo{
		conns: make(map[*websocket.Conn]*connection.Membership),
		rooms: make(map[string][]member),
	}
}

// Add registers an accepted connection in the global connected set.
func (r *repo) Add(conn *websocket.Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[conn]; ok {
		return connection.ErrAlreadyExists
	}

	r.conns[conn] = nil

	return nil
}

// Join binds a connection to a room. A connection joins at most one
// room in its lifetime; rejoining requires a fresh connection.
func (r *repo) Join(conn *websocket.Conn, roomId string, participant connection.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	membership, ok := r.conns[conn]
	if !ok {
		return connection.ErrNotFound
	}
	if membership != nil {
		return connection.ErrAlreadyJoined
	}

	r.conns[conn] = &connection.Membership{
		RoomId:      roomId,
		Participant: participant,
	}
	r.rooms[roomId] = append(r.rooms[roomId], member{
		conn:        conn,
		participant: participant,
	})

	return nil
}

// Remove drops a connection from the global set and, when joined, from
// its room. The membership it had is returned so the caller can emit a
// left event; nil means the connection never joined a room.
func (r *repo) Remove(conn *websocket.Conn) (*connection.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	membership, ok := r.conns[conn]
	if !ok {
		return nil, connection.ErrNotFound
	}

	delete(r.conns, conn)

	if membership != nil {
		members := r.rooms[membership.RoomId]
		for i, m := range members {
			if m.conn == conn {
				r.rooms[membership.RoomId] = append(members[:i], members[i+1:]...)
				break
			}
		}
		if len(r.rooms[membership.RoomId]) == 0 {
			delete(r.rooms, membership.RoomId)
		}
	}

	return membership, nil
}

func (r *repo) GetMembership(conn *websocket.Conn) (*connection.Membership, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	membership, ok := r.conns[conn]
	if !ok {
		return nil, connection.ErrNotFound
	}

	return membership, nil
}

// GetRoomConns snapshots the room's live connections, optionally
// excluding one. The snapshot keeps a fan-out loop safe against
// concurrent joins and leaves.
func (r *repo) GetRoomConns(roomId string, exclude *websocket.Conn) []*websocket.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[roomId]
	conns := make([]*websocket.Conn, 0, len(members))
	for _, m := range members {
		if m.conn == exclude {
			continue
		}
		conns = append(conns, m.conn)
	}

	return conns
}

// GetAllConns snapshots every connected connection regardless of room.
func (r *repo) GetAllConns() []*websocket.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return maps.Keys(r.conns)
}

// GetParticipants lists a room's participants deduplicated by
// participant id, keeping the earliest join. The same identity may hold
// several live connections during a reconnect window; clients must see
// it once.
func (r *repo) GetParticipants(roomId string) []connection.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[roomId]
	seen := make(map[string]struct{}, len(members))
	participants := make([]connection.Participant, 0, len(members))
	for _, m := range members {
		if _, ok := seen[m.participant.Id]; ok {
			continue
		}
		seen[m.participant.Id] = struct{}{}

		participants = append(participants, m.participant)
	}

	return participants
}
