package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/karajam/server/internal/repository/queue"
)

// Processor talks to the external acquisition and separation pipeline.
// The pipeline is a plain HTTP service: POST a track, get back a job
// handle, then listen for progress on the track's pub/sub channel.
type Processor struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func New(baseURL string, logger *slog.Logger) *Processor {
	return &Processor{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

type processResponse struct {
	JobId string `json:"job_id"`
}

// SendProcessRequest submits a track for processing and returns the
// pipeline's opaque job handle. An empty base URL disables submission,
// which keeps the server usable against a pre-populated track store.
func (p *Processor) SendProcessRequest(ctx context.Context, track queue.Track) (string, error) {
	if p.baseURL == "" {
		p.logger.DebugContext(ctx, "processor disabled, skipping submission", "track_id", track.Id)
		return "", nil
	}

	body, err := json.Marshal(track)
	if err != nil {
		return "", fmt.Errorf("failed to marshal track: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/process", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send process request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("process request rejected: %s", resp.Status)
	}

	var processResp processResponse
	if err := json.NewDecoder(resp.Body).Decode(&processResp); err != nil {
		return "", fmt.Errorf("failed to decode process response: %w", err)
	}

	return processResp.JobId, nil
}
