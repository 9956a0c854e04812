package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	openaiapi "github.com/tjfontaine/genai-monitor/internal/api/openai"
	"github.com/tjfontaine/genai-monitor/internal/core/domain"
	"github.com/tjfontaine/genai-monitor/internal/testutil"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p := New()
	if err := p.Initialize(context.Background(), domain.ProviderOptions{APIKey: "sk-test", BaseURL: server.URL}); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	return p
}

func TestProvider_ChatComplete_VCR(t *testing.T) {
	if os.Getenv("OPENAI_API_KEY") == "" && testutil.Recording() {
		t.Skip("Skipping test: OPENAI_API_KEY not set")
	}

	recorder := testutil.NewVCRRecorder(t, "openai_chat_complete")

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		apiKey = "test-key"
	}

	p := New(WithHTTPClient(testutil.VCRHTTPClient(recorder)))
	if err := p.Initialize(context.Background(), domain.ProviderOptions{APIKey: apiKey}); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	resp, err := p.ChatComplete(context.Background(), &domain.Request{
		Prompt: "Explain the concept of observability in software engineering in one sentence",
		Extra:  map[string]any{ExtraSystem: "You are a helpful tech lead"},
	})
	if err != nil {
		t.Fatalf("ChatComplete() error = %v", err)
	}

	if resp.Text == "" {
		t.Error("Expected content in response")
	}
	if resp.Model != "gpt-3.5-turbo-0125" {
		t.Errorf("Model = %q, want gpt-3.5-turbo-0125", resp.Model)
	}
	want := domain.Usage{PromptTokens: 29, CompletionTokens: 27, TotalTokens: 56}
	if resp.Usage != want {
		t.Errorf("Usage = %+v, want %+v", resp.Usage, want)
	}
	if _, ok := resp.RawResponse.(*openaiapi.ChatCompletionResponse); !ok {
		t.Errorf("RawResponse = %T, want *ChatCompletionResponse", resp.RawResponse)
	}
}

func TestProvider_Complete(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/completions" {
			t.Errorf("path = %s, want /completions", r.URL.Path)
		}
		var req openaiapi.CompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		if req.Model != DefaultCompletionModel {
			t.Errorf("model = %q, want %q", req.Model, DefaultCompletionModel)
		}
		if req.MaxTokens != 16 {
			t.Errorf("max_tokens = %d, want 16", req.MaxTokens)
		}
		w.Write([]byte(`{"id":"cmpl-1","object":"text_completion","model":"gpt-3.5-turbo-instruct",
			"choices":[{"index":0,"text":" world","finish_reason":"stop"}],
			"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}`))
	})

	maxTokens := 16
	resp, err := p.Complete(context.Background(), &domain.Request{Prompt: "hello", MaxTokens: &maxTokens})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Text != " world" {
		t.Errorf("Text = %q, want \" world\"", resp.Text)
	}
	if resp.Usage.TotalTokens != 2 {
		t.Errorf("TotalTokens = %d, want 2", resp.Usage.TotalTokens)
	}
}

func TestProvider_DefaultModel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openaiapi.ChatCompletionRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "gpt-4o-mini" {
			t.Errorf("model = %q, want gpt-4o-mini", req.Model)
		}
		w.Write([]byte(`{"id":"x","model":"gpt-4o-mini","choices":[]}`))
	}))
	defer server.Close()

	p := New()
	if err := p.Initialize(context.Background(), domain.ProviderOptions{APIKey: "k", BaseURL: server.URL, DefaultModel: "gpt-4o-mini"}); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	resp, err := p.ChatComplete(context.Background(), &domain.Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("ChatComplete() error = %v", err)
	}
	if resp.Text != "" || !resp.Usage.IsZero() {
		t.Errorf("resp = %+v, want empty text and zero usage", resp)
	}
}

func TestProvider_Embed(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("path = %s, want /embeddings", r.URL.Path)
		}
		w.Write([]byte(`{"object":"list","model":"text-embedding-3-small",
			"data":[{"object":"embedding","index":0,"embedding":[0.1,0.2,0.3]}],
			"usage":{"prompt_tokens":4,"total_tokens":4}}`))
	})

	resp, err := p.Embed(context.Background(), &domain.Request{Prompt: "embed me"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	raw, ok := resp.RawResponse.(*openaiapi.EmbeddingResponse)
	if !ok || len(raw.Data) != 1 || len(raw.Data[0].Embedding) != 3 {
		t.Fatalf("RawResponse = %+v", resp.RawResponse)
	}
	want := domain.Usage{PromptTokens: 4, TotalTokens: 4}
	if resp.Usage != want {
		t.Errorf("Usage = %+v, want %+v", resp.Usage, want)
	}
}

func TestProvider_Error(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`))
	})

	_, err := p.ChatComplete(context.Background(), &domain.Request{Prompt: "hi"})
	var provErr *domain.ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("error = %v, want ProviderError", err)
	}
	if provErr.Code != domain.ErrCodeRateLimited {
		t.Errorf("Code = %q, want rate_limited", provErr.Code)
	}
}

func TestProvider_NotInitialized(t *testing.T) {
	p := New()
	ctx := context.Background()
	req := &domain.Request{Prompt: "hi"}

	calls := map[string]func() (*domain.Response, error){
		"Complete":     func() (*domain.Response, error) { return p.Complete(ctx, req) },
		"ChatComplete": func() (*domain.Response, error) { return p.ChatComplete(ctx, req) },
		"Embed":        func() (*domain.Response, error) { return p.Embed(ctx, req) },
	}

	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			_, err := call()
			var provErr *domain.ProviderError
			if !errors.As(err, &provErr) {
				t.Fatalf("error = %v, want ProviderError", err)
			}
			if provErr.Code != domain.ErrCodeNotInitialized {
				t.Errorf("Code = %q, want not_initialized", provErr.Code)
			}
		})
	}
}

func TestProvider_InitializeRequiresKey(t *testing.T) {
	err := New().Initialize(context.Background(), domain.ProviderOptions{})
	var cfgErr *domain.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Initialize() error = %v, want ConfigurationError", err)
	}
}

func TestProvider_CreateEvent(t *testing.T) {
	p := New()
	temp := 0.5
	ev := p.CreateEvent(
		&domain.Request{Prompt: "q", Temperature: &temp},
		&domain.Response{Text: "a", Model: "gpt-4o", Usage: domain.Usage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2}},
		30*time.Millisecond,
	)

	if ev.Provider != "openai" || ev.Model != "gpt-4o" || ev.LatencyMs != 30 {
		t.Errorf("event = %+v", ev)
	}
	if ev.Metadata[domain.MetaRequestType] != domain.RequestTypeCompletion {
		t.Errorf("requestType = %v, want completion", ev.Metadata[domain.MetaRequestType])
	}
	if ev.Metadata[domain.MetaTemperature] != 0.5 {
		t.Errorf("temperature = %v, want 0.5", ev.Metadata[domain.MetaTemperature])
	}
}

func TestProvider_ExtractUsage(t *testing.T) {
	p := New()
	got := p.ExtractUsage(map[string]any{"usage": map[string]any{"prompt_tokens": 5, "completion_tokens": 7, "total_tokens": 12}})
	want := domain.Usage{PromptTokens: 5, CompletionTokens: 7, TotalTokens: 12}
	if got != want {
		t.Errorf("ExtractUsage() = %+v, want %+v", got, want)
	}
	if u := p.ExtractUsage(nil); !u.IsZero() {
		t.Errorf("ExtractUsage(nil) = %+v, want zero", u)
	}
}
