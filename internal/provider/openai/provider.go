// Package openai implements domain.Provider for the OpenAI HTTP API.
package openai

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	openaiapi "github.com/tjfontaine/genai-monitor/internal/api/openai"
	"github.com/tjfontaine/genai-monitor/internal/core/domain"
	"github.com/tjfontaine/genai-monitor/internal/event"
	"github.com/tjfontaine/genai-monitor/internal/usage"
)

// Default models per endpoint, used when neither the request nor the
// provider options name one.
const (
	DefaultCompletionModel = "gpt-3.5-turbo-instruct"
	DefaultChatModel       = "gpt-3.5-turbo"
	DefaultEmbeddingModel  = "text-embedding-3-small"
)

// Request.Extra keys understood by the provider.
const (
	ExtraSystem = "system"
	ExtraUser   = "user"
	ExtraSeed   = "seed"
)

// ProviderOption configures the provider.
type ProviderOption func(*Provider)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ProviderOption {
	return func(p *Provider) {
		p.httpClient = httpClient
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ProviderOption {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Provider implements domain.Provider, domain.ChatCompleter and
// domain.Embedder using our custom OpenAI client.
type Provider struct {
	httpClient *http.Client
	logger     *slog.Logger

	mu           sync.RWMutex
	client       *openaiapi.Client
	defaultModel string
}

var (
	_ domain.Provider      = (*Provider)(nil)
	_ domain.ChatCompleter = (*Provider)(nil)
	_ domain.Embedder      = (*Provider)(nil)
)

// New creates an uninitialized OpenAI provider.
func New(opts ...ProviderOption) *Provider {
	p := &Provider{logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(slog.String("component", "provider"), slog.String("provider", openaiapi.ProviderName))
	return p
}

func (p *Provider) Name() string {
	return openaiapi.ProviderName
}

// Initialize builds the API client. It fails with a ConfigurationError
// when no API key is given.
func (p *Provider) Initialize(ctx context.Context, opts domain.ProviderOptions) error {
	if opts.APIKey == "" {
		return domain.NewConfigurationError("api_key", "OpenAI API key is required")
	}

	client := openaiapi.NewClient(opts.APIKey,
		openaiapi.WithBaseURL(opts.BaseURL),
		openaiapi.WithHTTPClient(p.httpClient),
	)

	p.mu.Lock()
	p.client = client
	p.defaultModel = opts.DefaultModel
	p.mu.Unlock()

	p.logger.Info("OpenAI provider initialized", slog.String("base_url", client.BaseURL()))
	return nil
}

func (p *Provider) ready(req *domain.Request) (*openaiapi.Client, string, error) {
	if req == nil {
		return nil, "", domain.NewProviderError(openaiapi.ProviderName, "nil request")
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.client == nil {
		return nil, "", domain.NewProviderError(openaiapi.ProviderName, "OpenAI provider not initialized; call Initialize first").
			WithCode(domain.ErrCodeNotInitialized)
	}
	return p.client, p.defaultModel, nil
}

// Complete uses the legacy text completions endpoint.
func (p *Provider) Complete(ctx context.Context, req *domain.Request) (*domain.Response, error) {
	client, defaultModel, err := p.ready(req)
	if err != nil {
		return nil, err
	}

	apiReq := &openaiapi.CompletionRequest{
		Model:       pickModel(req.Model, defaultModel, DefaultCompletionModel),
		Prompt:      req.Prompt,
		MaxTokens:   intValue(req.MaxTokens),
		Temperature: req.Temperature,
		User:        stringExtra(req.Extra, ExtraUser),
	}

	resp, err := client.CreateCompletion(ctx, apiReq)
	if err != nil {
		p.logger.Error("OpenAI completion request failed", slog.String("error", err.Error()))
		return nil, err
	}

	text := ""
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Text
	}
	return &domain.Response{
		Text:        text,
		Model:       resp.Model,
		Usage:       p.ExtractUsage(resp),
		RawResponse: resp,
	}, nil
}

// ChatComplete sends the prompt as a single user message, preceded by a
// system message when Extra["system"] is set.
func (p *Provider) ChatComplete(ctx context.Context, req *domain.Request) (*domain.Response, error) {
	client, defaultModel, err := p.ready(req)
	if err != nil {
		return nil, err
	}

	var messages []openaiapi.ChatCompletionMessage
	if system := stringExtra(req.Extra, ExtraSystem); system != "" {
		messages = append(messages, openaiapi.ChatCompletionMessage{Role: "system", Content: system})
	}
	messages = append(messages, openaiapi.ChatCompletionMessage{Role: "user", Content: req.Prompt})

	apiReq := &openaiapi.ChatCompletionRequest{
		Model:       pickModel(req.Model, defaultModel, DefaultChatModel),
		Messages:    messages,
		MaxTokens:   intValue(req.MaxTokens),
		Temperature: req.Temperature,
		User:        stringExtra(req.Extra, ExtraUser),
		Seed:        intExtra(req.Extra, ExtraSeed),
	}

	resp, err := client.CreateChatCompletion(ctx, apiReq)
	if err != nil {
		p.logger.Error("OpenAI chat completion request failed", slog.String("error", err.Error()))
		return nil, err
	}

	text := ""
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
	}
	return &domain.Response{
		Text:        text,
		Model:       resp.Model,
		Usage:       p.ExtractUsage(resp),
		RawResponse: resp,
	}, nil
}

// Embed embeds the prompt. The response text is empty; the vector is in
// RawResponse.
func (p *Provider) Embed(ctx context.Context, req *domain.Request) (*domain.Response, error) {
	client, _, err := p.ready(req)
	if err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = DefaultEmbeddingModel
	}

	resp, err := client.CreateEmbedding(ctx, &openaiapi.EmbeddingRequest{
		Model: model,
		Input: req.Prompt,
		User:  stringExtra(req.Extra, ExtraUser),
	})
	if err != nil {
		p.logger.Error("OpenAI embedding request failed", slog.String("error", err.Error()))
		return nil, err
	}

	return &domain.Response{
		Model:       resp.Model,
		Usage:       p.ExtractUsage(resp),
		RawResponse: resp,
	}, nil
}

func (p *Provider) ExtractUsage(raw any) domain.Usage {
	return usage.Extract(raw)
}

func (p *Provider) CreateEvent(req *domain.Request, resp *domain.Response, latency time.Duration) *domain.Event {
	return event.New(p.Name(), req, resp, latency)
}

func pickModel(candidates ...string) string {
	for _, m := range candidates {
		if m != "" {
			return m
		}
	}
	return ""
}

func intValue(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func stringExtra(extra map[string]any, key string) string {
	s, _ := extra[key].(string)
	return s
}

func intExtra(extra map[string]any, key string) *int {
	switch v := extra[key].(type) {
	case int:
		return &v
	case float64:
		n := int(v)
		return &n
	}
	return nil
}
