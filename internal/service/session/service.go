package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/karajam/server/internal/repository/connection"
	"github.com/karajam/server/internal/repository/jam"
	"github.com/karajam/server/internal/repository/queue"
	"github.com/karajam/server/pkg/randstr"
)

var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrTrackNotFound     = errors.New("track not found")
	ErrIndexOutOfRange   = errors.New("index out of range")
	ErrAlreadyJoined     = errors.New("connection already joined a room")
	ErrNotJoined         = errors.New("connection has not joined a room")
	ErrConnectionUnknown = errors.New("connection is not registered")
)

type iQueueRepo interface {
	Append(context.Context, *queue.AppendParams) (queue.Track, int, error)
	InsertNext(context.Context, *queue.InsertNextParams) (queue.Track, int, error)
	Remove(context.Context, *queue.RemoveParams) (queue.Track, error)
	Get(ctx context.Context, roomId string) ([]queue.Track, error)
	Replace(context.Context, *queue.ReplaceParams) error
	UpdateStatus(context.Context, *queue.UpdateStatusParams) error
	Clear(ctx context.Context, roomId string) error
	SetCurrentIndex(ctx context.Context, roomId string, idx int) error
	GetCurrentIndex(ctx context.Context, roomId string) (*int, error)
	// track data side table
	StoreTrackData(context.Context, queue.Track) error
	GetTrackData(ctx context.Context, trackId string) (*queue.Track, error)
	IsTrackDataReady(context.Context, queue.Track) (bool, error)
	GetAllTrackData(context.Context) ([]queue.Track, error)
	// delay side table
	StoreTrackDelay(ctx context.Context, trackId string, delay float64) error
	GetTrackDelay(ctx context.Context, trackId string) (*float64, error)
	// pub/sub
	Publish(ctx context.Context, channel string, message any) error
	Subscribe(ctx context.Context, channel string, callback func(payload []byte))
}

type iJamRepo interface {
	Get(ctx context.Context, roomId string) (jam.State, error)
	Exists(ctx context.Context, roomId string) (bool, error)
	Upsert(ctx context.Context, roomId string, patch jam.Patch) (jam.State, error)
}

type iConnRepo interface {
	Add(conn *websocket.Conn) error
	Join(conn *websocket.Conn, roomId string, participant connection.Participant) error
	Remove(conn *websocket.Conn) (*connection.Membership, error)
	GetMembership(conn *websocket.Conn) (*connection.Membership, error)
	GetRoomConns(roomId string, exclude *websocket.Conn) []*websocket.Conn
	GetAllConns() []*websocket.Conn
	GetParticipants(roomId string) []connection.Participant
}

// iProcessor is the contract to the out-of-scope acquisition and
// separation pipeline. The returned job handle is opaque to the core.
type iProcessor interface {
	SendProcessRequest(ctx context.Context, track queue.Track) (string, error)
}

type iGenerator interface {
	GenerateRandomString(length int) string
}

const roomIdLength = 8

type Service struct {
	queueRepo iQueueRepo
	jamRepo   iJamRepo
	connRepo  iConnRepo
	processor iProcessor
	generator iGenerator
	logger    *slog.Logger

	// sendMu serializes every fan-out so two concurrent broadcasts can
	// never interleave writes to the same connection.
	sendMu sync.Mutex

	notifyCh chan notifyEvent
	// subCtx bounds the lifetime of pub/sub listeners; Start replaces
	// it with the process context.
	subCtx context.Context

	// watching holds the track ids with a live progress subscription so
	// re-adding an unready track never stacks a second listener.
	watchMu  sync.Mutex
	watching map[string]struct{}
}

func NewService(queueRepo iQueueRepo, jamRepo iJamRepo, connRepo iConnRepo, processor iProcessor, logger *slog.Logger) *Service {
	s := Service{
		queueRepo: queueRepo,
		jamRepo:   jamRepo,
		connRepo:  connRepo,
		processor: processor,
		logger:    logger,
		notifyCh:  make(chan notifyEvent, 64),
		subCtx:    context.Background(),
		watching:  make(map[string]struct{}),
	}

	letterBytes := []byte("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")
	s.generator = randstr.New(letterBytes)

	return &s
}
