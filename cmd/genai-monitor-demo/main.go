// Command genai-monitor-demo makes one monitored OpenAI chat call and
// prints the event that was recorded for it.
package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/genai-monitor/internal/config"
	"github.com/tjfontaine/genai-monitor/internal/core/domain"
	"github.com/tjfontaine/genai-monitor/internal/core/ports"
	"github.com/tjfontaine/genai-monitor/internal/observability"
	"github.com/tjfontaine/genai-monitor/internal/provider/openai"
	"github.com/tjfontaine/genai-monitor/internal/telemetry"
)

const prompt = "Explain the concept of observability in software engineering in one sentence"

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.OpenAI.APIKey == "" {
		log.Fatal("Set GENAI_OPENAI__API_KEY (or openai.api_key in config.yaml) to run the demo")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	shutdownTracer, err := telemetry.InitTracer("genai-monitor-demo", logger, telemetry.WithWriter(os.Stderr))
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer shutdownTracer(context.Background())

	obs, err := observability.New(cfg.Monitor, observability.WithLogger(logger))
	if err != nil {
		log.Fatalf("Invalid monitor configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	defer obs.Close(context.Background())

	httpClient := &http.Client{
		Timeout:   time.Minute,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	provider := openai.New(openai.WithHTTPClient(httpClient), openai.WithLogger(logger))
	if err := provider.Initialize(ctx, domain.ProviderOptions{
		APIKey:       cfg.OpenAI.APIKey,
		BaseURL:      cfg.OpenAI.BaseURL,
		DefaultModel: cfg.OpenAI.DefaultModel,
	}); err != nil {
		log.Fatalf("Failed to initialize OpenAI provider: %v", err)
	}

	monitored := obs.Monitor(provider)
	chat, ok := monitored.(domain.ChatCompleter)
	if !ok {
		log.Fatal("monitored provider does not support chat")
	}

	maxTokens := 100
	temperature := 0.7
	resp, err := chat.ChatComplete(ctx, &domain.Request{
		Prompt:      prompt,
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
		Extra:       map[string]any{openai.ExtraSystem: "You are a helpful assistant."},
	})
	if err != nil {
		log.Fatalf("Chat completion failed: %v", err)
	}

	logger.Info("chat completion",
		slog.String("model", resp.Model),
		slog.String("text", resp.Text),
		slog.Int("total_tokens", resp.Usage.TotalTokens))

	if err := obs.Flush(ctx); err != nil {
		log.Fatalf("Flush failed: %v", err)
	}

	store := obs.Store()
	if store == nil {
		log.Fatalf("Event storage is %s; nothing was recorded", obs.State())
	}
	events, err := store.GetEvents(ctx, ports.EventFilter{"provider": provider.Name(), "model": resp.Model})
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	if len(events) == 0 {
		log.Fatal("No event recorded")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(events[0]); err != nil {
		log.Fatalf("Encode failed: %v", err)
	}
}
