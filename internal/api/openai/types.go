// Package openai provides the wire types and HTTP client for the OpenAI
// completions, chat completions and embeddings endpoints.
package openai

import (
	"encoding/json"
	"net/http"

	"github.com/tjfontaine/genai-monitor/internal/core/domain"
)

// ProviderName identifies OpenAI in errors and events.
const ProviderName = "openai"

// CompletionRequest represents a legacy text completion request.
type CompletionRequest struct {
	Model       string   `json:"model"`
	Prompt      string   `json:"prompt"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	User        string   `json:"user,omitempty"`
}

// CompletionResponse represents a legacy text completion response.
type CompletionResponse struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []CompletionChoice `json:"choices"`
	Usage   *Usage             `json:"usage,omitempty"`
}

// CompletionChoice is one generated completion.
type CompletionChoice struct {
	Index        int    `json:"index"`
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason"`
}

// ChatCompletionRequest represents an OpenAI chat completion request.
type ChatCompletionRequest struct {
	Model       string                  `json:"model"`
	Messages    []ChatCompletionMessage `json:"messages"`
	MaxTokens   int                     `json:"max_tokens,omitempty"`
	Temperature *float64                `json:"temperature,omitempty"`
	User        string                  `json:"user,omitempty"`
	Seed        *int                    `json:"seed,omitempty"`
}

// ChatCompletionMessage represents a message in the chat completion request/response.
type ChatCompletionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionResponse represents an OpenAI chat completion response.
type ChatCompletionResponse struct {
	ID                string   `json:"id"`
	Object            string   `json:"object"`
	Created           int64    `json:"created"`
	Model             string   `json:"model"`
	SystemFingerprint string   `json:"system_fingerprint,omitempty"`
	Choices           []Choice `json:"choices"`
	Usage             *Usage   `json:"usage,omitempty"`
}

// Choice represents a chat completion choice.
type Choice struct {
	Index        int                   `json:"index"`
	Message      ChatCompletionMessage `json:"message"`
	FinishReason string                `json:"finish_reason"`
}

// EmbeddingRequest asks for the embedding of one input string.
type EmbeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
	User  string `json:"user,omitempty"`
}

// EmbeddingResponse carries the embedding vectors.
type EmbeddingResponse struct {
	Object string      `json:"object"`
	Data   []Embedding `json:"data"`
	Model  string      `json:"model"`
	Usage  *Usage      `json:"usage,omitempty"`
}

// Embedding is one embedding vector.
type Embedding struct {
	Object    string    `json:"object"`
	Index     int       `json:"index"`
	Embedding []float64 `json:"embedding"`
}

// Usage represents token usage information. Embeddings report no
// completion tokens.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens"`
}

func (u *Usage) counts() (int, int, int) {
	if u == nil {
		return 0, 0, 0
	}
	return u.PromptTokens, u.CompletionTokens, u.TotalTokens
}

// TokenUsage reports the response's token counts.
func (r *CompletionResponse) TokenUsage() (prompt, completion, total int) {
	return r.Usage.counts()
}

// TokenUsage reports the response's token counts.
func (r *ChatCompletionResponse) TokenUsage() (prompt, completion, total int) {
	return r.Usage.counts()
}

// TokenUsage reports the response's token counts.
func (r *EmbeddingResponse) TokenUsage() (prompt, completion, total int) {
	return r.Usage.counts()
}

// ErrorResponse represents an OpenAI API error response.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// APIError contains error details.
type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param,omitempty"`
	Code    string `json:"code,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

// ToProviderError converts the API error into a domain.ProviderError,
// keeping the HTTP status.
func (e *APIError) ToProviderError(status int) *domain.ProviderError {
	return domain.NewProviderError(ProviderName, e.Message).
		WithCode(errorCode(status, e.Type, e.Code)).
		WithStatusCode(status).
		WithCause(e)
}

func errorCode(status int, errType, code string) domain.ErrorCode {
	if status == http.StatusTooManyRequests {
		return domain.ErrCodeRateLimited
	}
	switch {
	case code == "rate_limit_exceeded",
		errType == "rate_limit_error",
		errType == "rate_limit_exceeded":
		return domain.ErrCodeRateLimited
	}
	return domain.ErrCodeAPIError
}

// ParseErrorResponse attempts to parse an error response from JSON.
func ParseErrorResponse(data []byte) (*APIError, error) {
	var errResp ErrorResponse
	if err := json.Unmarshal(data, &errResp); err != nil {
		return nil, err
	}
	if errResp.Error == nil {
		return nil, nil
	}
	return errResp.Error, nil
}
