// Package event builds normalized events from finished provider calls.
package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/tjfontaine/genai-monitor/internal/core/domain"
	"github.com/tjfontaine/genai-monitor/internal/jsonvalue"
)

// IDPrefix marks identifiers minted for events.
const IDPrefix = "evt_"

// NewID returns a time-ordered, globally unique event identifier.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails when the random source does.
		id = uuid.New()
	}
	return IDPrefix + id.String()
}

// New builds the event describing one completed call. It does not touch
// storage or the network. Metadata holds JSON values: integers as int64,
// other numbers as float64.
func New(provider string, req *domain.Request, resp *domain.Response, latency time.Duration) *domain.Event {
	if req == nil {
		req = &domain.Request{}
	}
	if resp == nil {
		resp = &domain.Response{}
	}

	model := resp.Model
	if model == "" {
		model = req.Model
	}

	metadata := map[string]any{
		domain.MetaRequestType: domain.RequestTypeCompletion,
	}
	if req.Temperature != nil {
		metadata[domain.MetaTemperature] = *req.Temperature
	}
	if req.MaxTokens != nil {
		metadata[domain.MetaMaxTokens] = *req.MaxTokens
	}
	if len(req.Extra) > 0 {
		metadata[domain.MetaExtra] = req.Extra
	}
	if canonical, err := jsonvalue.Canonical(metadata); err == nil {
		// Stores decode numbers the same way, so the event reads back equal.
		metadata = canonical.(map[string]any)
	}

	return &domain.Event{
		ID:        NewID(),
		Provider:  provider,
		Model:     model,
		Timestamp: time.Now().UnixMilli(),
		LatencyMs: max(latency.Milliseconds(), 0),
		Usage:     resp.Usage,
		Metadata:  metadata,
		Input:     req.Prompt,
		Output:    resp.Text,
	}
}
