package controller

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/karajam/server/internal/repository/connection"
	"github.com/karajam/server/internal/repository/jam"
	"github.com/karajam/server/internal/repository/queue"
	"github.com/karajam/server/internal/service/session"
	"github.com/karajam/server/pkg/validator"
)

type iSessionService interface {
	Accept(ctx context.Context, conn *websocket.Conn) error
	Disconnect(ctx context.Context, conn *websocket.Conn)
	Send(ctx context.Context, conn *websocket.Conn, event *session.Event) error
	CreateRoom(context.Context, *session.CreateRoomParams) (session.CreateRoomResponse, error)
	JoinRoom(context.Context, *session.JoinRoomParams) (session.JoinRoomResponse, error)
	LeaveRoom(context.Context, *session.LeaveRoomParams) error
	GetRoomState(ctx context.Context, roomId string) (session.RoomState, error)
	GetJamState(ctx context.Context, roomId string) (session.GetJamStateResponse, error)
	ApplyJamUpdate(context.Context, *session.ApplyJamUpdateParams) (jam.State, error)
	AddTrack(context.Context, *session.AddTrackParams) (session.AddTrackResponse, error)
	RemoveTrack(context.Context, *session.RemoveTrackParams) (queue.Track, error)
	InsertNextTrack(context.Context, *session.InsertNextTrackParams) (session.InsertNextTrackResponse, error)
	ReorderQueue(context.Context, *session.ReorderQueueParams) ([]queue.Track, error)
	ReplaceQueue(context.Context, *session.ReplaceQueueParams) error
	ClearQueue(ctx context.Context, roomId string) error
	UpdateTrackStatus(context.Context, *session.UpdateTrackStatusParams) error
	GetQueue(ctx context.Context, roomId string) ([]queue.Track, error)
	SetCurrentIndex(ctx context.Context, roomId string, idx int) error
	GetCurrentIndex(ctx context.Context, roomId string) (*int, error)
	GetAllTrackData(ctx context.Context) ([]queue.Track, error)
	GetTrackData(ctx context.Context, trackId string) (*queue.Track, error)
	GetTrackDelay(ctx context.Context, trackId string) (float64, error)
	SetTrackDelay(ctx context.Context, trackId string, delay float64) error
}

type controller struct {
	sessionService iSessionService
	upgrader       websocket.Upgrader
	validate       *validator.Validator
	logger         *slog.Logger
}

func NewController(sessionService iSessionService, logger *slog.Logger) *controller {
	return &controller{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		sessionService: sessionService,
		validate:       validator.NewValidator(),
		logger:         logger,
	}
}

// participantInput is the joiner identity as clients send it.
type participantInput struct {
	Id     string `json:"id" validate:"required"`
	Name   string `json:"name" validate:"required,max=64"`
	Avatar string `json:"avatar"`
}

func (p participantInput) toParticipant() connection.Participant {
	return connection.Participant{
		Id:     p.Id,
		Name:   p.Name,
		Avatar: p.Avatar,
	}
}
