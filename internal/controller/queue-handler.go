package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/karajam/server/internal/repository/queue"
	"github.com/karajam/server/internal/service/session"
	"github.com/karajam/server/pkg/rest"
)

func (c controller) getQueue(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "room-id")

	tracks, err := c.sessionService.GetQueue(r.Context(), roomId)
	if err != nil {
		c.logger.InfoContext(r.Context(), "failed to get queue", "error", err)
		c.writeError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": map[string]any{
		"queue": tracks,
	}})
}

type trackInput struct {
	Track queue.Track `json:"track" validate:"required"`
}

func (c controller) addTrack(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "room-id")

	var input trackInput
	if err := c.readInput(r, &input); err != nil {
		c.logger.InfoContext(r.Context(), "failed to read add track input", "error", err)
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	addTrackResp, err := c.sessionService.AddTrack(r.Context(), &session.AddTrackParams{
		RoomId: roomId,
		Track:  input.Track,
	})
	if err != nil {
		c.logger.InfoContext(r.Context(), "failed to add track", "error", err)
		c.writeError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusCreated, rest.Envelope{"data": map[string]any{
		"track":  addTrackResp.Track,
		"length": addTrackResp.Length,
	}})
}

func (c controller) removeTrack(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "room-id")

	var input trackInput
	if err := c.readInput(r, &input); err != nil {
		c.logger.InfoContext(r.Context(), "failed to read remove track input", "error", err)
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	track, err := c.sessionService.RemoveTrack(r.Context(), &session.RemoveTrackParams{
		RoomId: roomId,
		Track:  input.Track,
	})
	if err != nil {
		c.logger.InfoContext(r.Context(), "failed to remove track", "error", err)
		c.writeError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": map[string]any{
		"track": track,
	}})
}

func (c controller) insertNextTrack(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "room-id")

	var input trackInput
	if err := c.readInput(r, &input); err != nil {
		c.logger.InfoContext(r.Context(), "failed to read insert next input", "error", err)
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	insertResp, err := c.sessionService.InsertNextTrack(r.Context(), &session.InsertNextTrackParams{
		RoomId: roomId,
		Track:  input.Track,
	})
	if err != nil {
		c.logger.InfoContext(r.Context(), "failed to insert next track", "error", err)
		c.writeError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusCreated, rest.Envelope{"data": map[string]any{
		"track": insertResp.Track,
		"index": insertResp.Index,
	}})
}

type replaceQueueInput struct {
	Queue []queue.Track `json:"queue"`
}

func (c controller) replaceQueue(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "room-id")

	var input replaceQueueInput
	if err := c.readInput(r, &input); err != nil {
		c.logger.InfoContext(r.Context(), "failed to read replace queue input", "error", err)
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if err := c.sessionService.ReplaceQueue(r.Context(), &session.ReplaceQueueParams{
		RoomId: roomId,
		Tracks: input.Queue,
	}); err != nil {
		c.logger.InfoContext(r.Context(), "failed to replace queue", "error", err)
		c.writeError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": map[string]any{
		"queue": input.Queue,
	}})
}

type reorderQueueInput struct {
	From int `json:"from"`
	To   int `json:"to"`
}

func (c controller) reorderQueue(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "room-id")

	var input reorderQueueInput
	if err := c.readInput(r, &input); err != nil {
		c.logger.InfoContext(r.Context(), "failed to read reorder input", "error", err)
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	tracks, err := c.sessionService.ReorderQueue(r.Context(), &session.ReorderQueueParams{
		RoomId: roomId,
		From:   input.From,
		To:     input.To,
	})
	if err != nil {
		c.logger.InfoContext(r.Context(), "failed to reorder queue", "error", err)
		c.writeError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": map[string]any{
		"queue": tracks,
	}})
}

func (c controller) clearQueue(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "room-id")

	if err := c.sessionService.ClearQueue(r.Context(), roomId); err != nil {
		c.logger.InfoContext(r.Context(), "failed to clear queue", "error", err)
		c.writeError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": "ok"})
}

func (c controller) updateTrackStatus(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "room-id")

	var input trackInput
	if err := c.readInput(r, &input); err != nil {
		c.logger.InfoContext(r.Context(), "failed to read update status input", "error", err)
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if err := c.sessionService.UpdateTrackStatus(r.Context(), &session.UpdateTrackStatusParams{
		RoomId: roomId,
		Track:  input.Track,
	}); err != nil {
		c.logger.InfoContext(r.Context(), "failed to update track status", "error", err)
		c.writeError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": map[string]any{
		"track": input.Track,
	}})
}

func (c controller) getCurrentIndex(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "room-id")

	idx, err := c.sessionService.GetCurrentIndex(r.Context(), roomId)
	if err != nil {
		c.logger.InfoContext(r.Context(), "failed to get current index", "error", err)
		c.writeError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": map[string]any{
		"current_index": idx,
	}})
}

type setCurrentIndexInput struct {
	CurrentIndex int `json:"current_index"`
}

func (c controller) setCurrentIndex(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "room-id")

	var input setCurrentIndexInput
	if err := c.readInput(r, &input); err != nil {
		c.logger.InfoContext(r.Context(), "failed to read set current index input", "error", err)
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if err := c.sessionService.SetCurrentIndex(r.Context(), roomId, input.CurrentIndex); err != nil {
		c.logger.InfoContext(r.Context(), "failed to set current index", "error", err)
		c.writeError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": map[string]any{
		"current_index": input.CurrentIndex,
	}})
}
