package controller

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/karajam/server/internal/repository/jam"
	"github.com/karajam/server/internal/repository/queue"
	"github.com/karajam/server/internal/service/session"
	"github.com/karajam/server/pkg/keyfmt"
	"github.com/karajam/server/pkg/wsrouter"
)

// serveWs runs the session protocol: upgrade, register, send init,
// wait for a valid join, then dispatch messages until the transport
// closes. Malformed frames never kill the connection.
func (c controller) serveWs(w http.ResponseWriter, r *http.Request) {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.InfoContext(r.Context(), "failed to upgrade conn", "error", err)
		return
	}

	ctx := r.Context()

	if err := c.sessionService.Accept(ctx, conn); err != nil {
		conn.Close()
		return
	}
	defer c.sessionService.Disconnect(ctx, conn)

	if err := c.sessionService.Send(ctx, conn, &session.Event{Type: "init"}); err != nil {
		c.logger.InfoContext(ctx, "failed to send init", "error", err)
		return
	}

	if !c.awaitJoin(ctx, conn) {
		return
	}

	router := c.newWsRouter()
	if err := router.ServeConn(ctx, conn); err != nil {
		c.logger.DebugContext(ctx, "conn closed", "error", err)
	}
}

// awaitJoin reads frames until a valid join arrives. The join's data
// is the joining participant. Anything else is dropped. Returns false
// when the transport died first.
func (c controller) awaitJoin(ctx context.Context, conn *websocket.Conn) bool {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return false
		}

		var msg wsrouter.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.logger.DebugContext(ctx, "dropping malformed frame", "error", err)
			continue
		}
		if msg.Type != "join" {
			c.logger.DebugContext(ctx, "dropping message before join", "message_type", msg.Type)
			continue
		}

		var participant participantInput
		if err := c.decodeWsData(msg.Data, &participant); err != nil {
			c.logger.DebugContext(ctx, "failed to decode join", "error", err)
			continue
		}

		if validationErrors, ok := c.validate.Validate(participant); !ok {
			c.sessionService.Send(ctx, conn, &session.Event{
				Type: "error",
				Data: map[string]any{"errors": validationErrors},
			})
			continue
		}

		joinResp, err := c.sessionService.JoinRoom(ctx, &session.JoinRoomParams{
			Conn:        conn,
			RoomId:      msg.RoomId,
			Participant: participant.toParticipant(),
		})
		if err != nil {
			c.logger.InfoContext(ctx, "failed to join room", "error", err)
			c.sessionService.Send(ctx, conn, &session.Event{
				Type: "error",
				Data: map[string]any{"message": err.Error()},
			})
			continue
		}

		c.sessionService.Send(ctx, conn, &session.Event{
			Type: "room",
			Data: map[string]any{
				"jam":          joinResp.State,
				"queue":        joinResp.Queue,
				"participants": joinResp.Participants,
			},
		})

		return true
	}
}

func (c controller) newWsRouter() *wsrouter.WSRouter {
	router := wsrouter.New()
	router.Use(c.wsLoggingMw)
	router.Handle("jam", c.handleJamMessage)
	router.Handle("queue", c.handleQueueMessage)

	return router
}

func (c controller) wsLoggingMw(next wsrouter.HandlerFunc) wsrouter.HandlerFunc {
	return func(ctx context.Context, conn *websocket.Conn, msg wsrouter.Message) error {
		if err := next(ctx, conn, msg); err != nil {
			c.logger.InfoContext(ctx, "failed to handle message",
				"message_type", wsrouter.GetMessageTypeFromCtx(ctx),
				"error", err,
			)
		}

		return nil
	}
}

// handleJamMessage merges the playback patch and relays the frame to
// the rest of the room.
func (c controller) handleJamMessage(ctx context.Context, conn *websocket.Conn, msg wsrouter.Message) error {
	if msg.RoomId == "" {
		c.logger.DebugContext(ctx, "dropping jam message without room id")
		return nil
	}

	var patch jam.Patch
	if err := c.decodeWsData(msg.Data, &patch); err != nil {
		return err
	}

	if _, err := c.sessionService.ApplyJamUpdate(ctx, &session.ApplyJamUpdateParams{
		Conn:  conn,
		Patch: patch,
		Raw:   msg.Raw,
	}); err != nil {
		return err
	}

	return nil
}

type queueWsInput struct {
	Action string      `json:"action"`
	Track  queue.Track `json:"track"`
	From   int         `json:"from"`
	To     int         `json:"to"`
}

// handleQueueMessage drives queue operations over the socket. The
// service multicasts the resulting queue event to the whole room.
func (c controller) handleQueueMessage(ctx context.Context, conn *websocket.Conn, msg wsrouter.Message) error {
	if msg.RoomId == "" {
		c.logger.DebugContext(ctx, "dropping queue message without room id")
		return nil
	}

	var input queueWsInput
	if err := c.decodeWsData(msg.Data, &input); err != nil {
		return err
	}

	switch input.Action {
	case "add":
		_, err := c.sessionService.AddTrack(ctx, &session.AddTrackParams{
			RoomId: msg.RoomId,
			Track:  input.Track,
		})
		return err
	case "remove":
		_, err := c.sessionService.RemoveTrack(ctx, &session.RemoveTrackParams{
			RoomId: msg.RoomId,
			Track:  input.Track,
		})
		return err
	case "next":
		_, err := c.sessionService.InsertNextTrack(ctx, &session.InsertNextTrackParams{
			RoomId: msg.RoomId,
			Track:  input.Track,
		})
		return err
	case "reorder":
		_, err := c.sessionService.ReorderQueue(ctx, &session.ReorderQueueParams{
			RoomId: msg.RoomId,
			From:   input.From,
			To:     input.To,
		})
		return err
	case "status":
		return c.sessionService.UpdateTrackStatus(ctx, &session.UpdateTrackStatusParams{
			RoomId: msg.RoomId,
			Track:  input.Track,
		})
	case "clear":
		return c.sessionService.ClearQueue(ctx, msg.RoomId)
	default:
		c.logger.DebugContext(ctx, "dropping unknown queue action", "action", input.Action)
		return nil
	}
}

// decodeWsData snake-izes an inbound camelCase payload before
// unmarshaling it into a snake-tagged struct.
func (c controller) decodeWsData(data json.RawMessage, dst any) error {
	if len(data) == 0 {
		return nil
	}

	snake, err := keyfmt.SnakeizeJSON(data)
	if err != nil {
		return err
	}

	return json.Unmarshal(snake, dst)
}
