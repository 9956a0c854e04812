// Package domain holds the provider-agnostic types shared by the capture
// pipeline: requests, responses, usage, events and the provider contract.
package domain

import (
	"context"
	"time"
)

// Method names of the generation calls the monitor intercepts. They double
// as the requestType recorded on events.
const (
	MethodComplete     = "complete"
	MethodChatComplete = "chatComplete"
	MethodEmbed        = "embed"
)

// RequestTypeCompletion is the request kind a builder records before the
// monitor overwrites it with the intercepted method name.
const RequestTypeCompletion = "completion"

// Metadata keys written on events.
const (
	MetaRequestType          = "requestType"
	MetaTemperature          = "temperature"
	MetaMaxTokens            = "maxTokens"
	MetaExtra                = "extra"
	MetaPromptHash           = "promptHash"
	MetaPromptTokensEstimate = "promptTokensEstimate"
)

// Usage represents token usage and optional cost for one call.
type Usage struct {
	PromptTokens     int      `json:"promptTokens"`
	CompletionTokens int      `json:"completionTokens"`
	TotalTokens      int      `json:"totalTokens"`
	Cost             *float64 `json:"cost,omitempty"` // USD
}

// IsZero reports whether no token counts were recorded.
func (u Usage) IsZero() bool {
	return u.PromptTokens == 0 && u.CompletionTokens == 0 && u.TotalTokens == 0
}

// Event is the normalized record of one LLM call.
type Event struct {
	ID        string         `json:"id"`
	Provider  string         `json:"provider"`
	Model     string         `json:"model"`
	Timestamp int64          `json:"timestamp"` // epoch milliseconds
	LatencyMs int64          `json:"latencyMs"`
	Usage     Usage          `json:"usage"`
	Metadata  map[string]any `json:"metadata"`
	Input     any            `json:"input,omitempty"`
	Output    any            `json:"output,omitempty"`
}

// Request is the caller-supplied generation request.
type Request struct {
	Prompt      string   `json:"prompt"`
	Model       string   `json:"model,omitempty"`
	MaxTokens   *int     `json:"maxTokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`

	// Extra carries provider-specific parameters.
	Extra map[string]any `json:"extra,omitempty"`
}

// Response is the provider-returned result of a generation call.
type Response struct {
	Text  string `json:"text"`
	Model string `json:"model"`
	Usage Usage  `json:"usage"`

	// RawResponse is the decoded provider payload, kept for usage extraction.
	RawResponse any `json:"-"`
}

// ProviderOptions configures a provider during Initialize.
type ProviderOptions struct {
	APIKey       string
	BaseURL      string
	DefaultModel string

	// Extra carries provider-specific options.
	Extra map[string]any
}

// Provider is the capability set every monitored LLM client exposes.
type Provider interface {
	Name() string

	// Initialize prepares the client. Generation calls made before it
	// returns fail with a ProviderError coded ErrCodeNotInitialized.
	Initialize(ctx context.Context, opts ProviderOptions) error

	// Complete handles plain text completion.
	Complete(ctx context.Context, req *Request) (*Response, error)

	// ExtractUsage maps a raw provider payload to Usage. It never fails.
	ExtractUsage(raw any) Usage

	// CreateEvent builds the event describing a finished call.
	CreateEvent(req *Request, resp *Response, latency time.Duration) *Event
}

// ChatCompleter is implemented by providers with a chat API.
type ChatCompleter interface {
	ChatComplete(ctx context.Context, req *Request) (*Response, error)
}

// Embedder is implemented by providers that can produce embeddings.
type Embedder interface {
	Embed(ctx context.Context, req *Request) (*Response, error)
}
