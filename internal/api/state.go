package api

import (
	"context"
	"encoding/json"
	"time"

	"github.com/orc2626-tech/botwatch/internal/model"
)

// stateResponse is the wire shape of GET /api/state.
type stateResponse struct {
	StateVersion int64           `json:"state_version"`
	Timestamp    int64           `json:"timestamp"`
	Payload      json.RawMessage `json:"payload"`
}

// GetState fetches the full state snapshot over the fallback channel.
func (c *Client) GetState(ctx context.Context) (*model.Snapshot, error) {
	var resp stateResponse
	if err := c.get(ctx, "/api/state", &resp); err != nil {
		return nil, err
	}

	return &model.Snapshot{
		StateVersion: resp.StateVersion,
		Timestamp:    resp.Timestamp,
		ReceivedAt:   time.Now(),
		Source:       "rest",
		Payload:      resp.Payload,
	}, nil
}
