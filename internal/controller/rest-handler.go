package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/karajam/server/internal/service/session"
	"github.com/karajam/server/pkg/rest"
)

type createRoomInput struct {
	RoomId string `json:"room_id"`
}

func (c controller) createRoom(w http.ResponseWriter, r *http.Request) {
	var input createRoomInput
	if err := c.readInput(r, &input); err != nil {
		c.logger.InfoContext(r.Context(), "failed to read create room input", "error", err)
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	createRoomResp, err := c.sessionService.CreateRoom(r.Context(), &session.CreateRoomParams{
		RoomId: input.RoomId,
	})
	if err != nil {
		c.logger.InfoContext(r.Context(), "failed to create room", "error", err)
		c.writeError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusCreated, rest.Envelope{"data": map[string]any{
		"room_id": createRoomResp.RoomId,
		"jam":     createRoomResp.State,
	}})
}

func (c controller) getRoom(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "room-id")

	roomState, err := c.sessionService.GetRoomState(r.Context(), roomId)
	if err != nil {
		c.logger.InfoContext(r.Context(), "failed to get room state", "error", err)
		c.writeError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": map[string]any{
		"jam":          roomState.State,
		"queue":        roomState.Queue,
		"participants": roomState.Participants,
	}})
}

func (c controller) getJamState(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "room-id")

	jamState, err := c.sessionService.GetJamState(r.Context(), roomId)
	if err != nil {
		c.logger.InfoContext(r.Context(), "failed to get jam state", "error", err)
		c.writeError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": map[string]any{
		"jam": jamState.State,
	}})
}

type leaveRoomInput struct {
	Participant participantInput `json:"participant"`
}

func (c controller) leaveRoom(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "room-id")

	var input leaveRoomInput
	if err := c.readInput(r, &input); err != nil {
		c.logger.InfoContext(r.Context(), "failed to read leave room input", "error", err)
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(input.Participant); !ok {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	if err := c.sessionService.LeaveRoom(r.Context(), &session.LeaveRoomParams{
		RoomId:      roomId,
		Participant: input.Participant.toParticipant(),
	}); err != nil {
		c.logger.InfoContext(r.Context(), "failed to leave room", "error", err)
		c.writeError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": "ok"})
}
