package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/karajam/server/pkg/rest"
)

func (c controller) getAllTrackData(w http.ResponseWriter, r *http.Request) {
	tracks, err := c.sessionService.GetAllTrackData(r.Context())
	if err != nil {
		c.logger.InfoContext(r.Context(), "failed to get track data", "error", err)
		c.writeError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": map[string]any{
		"tracks": tracks,
	}})
}

func (c controller) getTrackData(w http.ResponseWriter, r *http.Request) {
	trackId := chi.URLParam(r, "track-id")

	track, err := c.sessionService.GetTrackData(r.Context(), trackId)
	if err != nil {
		c.logger.InfoContext(r.Context(), "failed to get track data", "error", err)
		c.writeError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": map[string]any{
		"track": track,
	}})
}

func (c controller) getTrackDelay(w http.ResponseWriter, r *http.Request) {
	trackId := chi.URLParam(r, "track-id")

	delay, err := c.sessionService.GetTrackDelay(r.Context(), trackId)
	if err != nil {
		c.logger.InfoContext(r.Context(), "failed to get track delay", "error", err)
		c.writeError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": map[string]any{
		"delay": delay,
	}})
}

type setTrackDelayInput struct {
	Delay float64 `json:"delay"`
}

func (c controller) setTrackDelay(w http.ResponseWriter, r *http.Request) {
	trackId := chi.URLParam(r, "track-id")

	var input setTrackDelayInput
	if err := c.readInput(r, &input); err != nil {
		c.logger.InfoContext(r.Context(), "failed to read set delay input", "error", err)
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if err := c.sessionService.SetTrackDelay(r.Context(), trackId, input.Delay); err != nil {
		c.logger.InfoContext(r.Context(), "failed to set track delay", "error", err)
		c.writeError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": map[string]any{
		"delay": input.Delay,
	}})
}
