package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/karajam/server/internal/service/session"
	"github.com/karajam/server/pkg/keyfmt"
	"github.com/karajam/server/pkg/rest"
)

const maxBodySize = 1 << 20

// readInput decodes a camelCase request body into a snake-tagged
// struct by snake-izing the raw JSON first.
func (c controller) readInput(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("failed to read body: %w", err)
	}

	snake, err := keyfmt.SnakeizeJSON(body)
	if err != nil {
		return fmt.Errorf("failed to decode body: %w", err)
	}

	if err := json.Unmarshal(snake, dst); err != nil {
		return fmt.Errorf("failed to decode body: %w", err)
	}

	return nil
}

// writeError maps service errors onto REST status codes.
func (c controller) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrRoomNotFound),
		errors.Is(err, session.ErrTrackNotFound):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrIndexOutOfRange):
		status = http.StatusBadRequest
	case errors.Is(err, session.ErrAlreadyJoined):
		status = http.StatusConflict
	}

	rest.WriteJSON(w, status, rest.Envelope{"error": err.Error()})
}
