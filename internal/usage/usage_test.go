package usage

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/tjfontaine/genai-monitor/internal/core/domain"
)

type reporterPayload struct{}

func (reporterPayload) TokenUsage() (int, int, int) { return 7, 3, 0 }

type openAIStyle struct {
	ID    string `json:"id"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type cyclic struct {
	Self *cyclic
}

func TestExtract(t *testing.T) {
	oa := openAIStyle{ID: "chatcmpl-1"}
	oa.Usage.PromptTokens = 12
	oa.Usage.CompletionTokens = 30
	oa.Usage.TotalTokens = 42

	loop := &cyclic{}
	loop.Self = loop

	tests := []struct {
		name string
		raw  any
		want domain.Usage
	}{
		{
			name: "nil",
			raw:  nil,
			want: domain.Usage{},
		},
		{
			name: "openai struct",
			raw:  oa,
			want: domain.Usage{PromptTokens: 12, CompletionTokens: 30, TotalTokens: 42},
		},
		{
			name: "openai map",
			raw: map[string]any{
				"usage": map[string]any{"prompt_tokens": 3.0, "completion_tokens": 2.0, "total_tokens": 5.0},
			},
			want: domain.Usage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5},
		},
		{
			name: "anthropic json",
			raw:  json.RawMessage(`{"usage":{"input_tokens":10,"output_tokens":4}}`),
			want: domain.Usage{PromptTokens: 10, CompletionTokens: 4, TotalTokens: 14},
		},
		{
			name: "gemini usage metadata",
			raw:  []byte(`{"usageMetadata":{"promptTokenCount":5,"candidatesTokenCount":6,"totalTokenCount":11}}`),
			want: domain.Usage{PromptTokens: 5, CompletionTokens: 6, TotalTokens: 11},
		},
		{
			name: "top level camel case",
			raw:  map[string]any{"promptTokens": 1, "completionTokens": int64(2)},
			want: domain.Usage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3},
		},
		{
			name: "missing completion defaults to zero",
			raw:  map[string]any{"usage": map[string]any{"prompt_tokens": 9}},
			want: domain.Usage{PromptTokens: 9, TotalTokens: 9},
		},
		{
			name: "total only is kept",
			raw:  map[string]any{"usage": map[string]any{"total_tokens": 8}},
			want: domain.Usage{TotalTokens: 8},
		},
		{
			name: "negative counts clamp",
			raw:  map[string]any{"usage": map[string]any{"prompt_tokens": -4, "completion_tokens": 2}},
			want: domain.Usage{CompletionTokens: 2, TotalTokens: 2},
		},
		{
			name: "reporter",
			raw:  reporterPayload{},
			want: domain.Usage{PromptTokens: 7, CompletionTokens: 3, TotalTokens: 10},
		},
		{
			name: "domain usage",
			raw:  &domain.Usage{PromptTokens: 2, CompletionTokens: 2, TotalTokens: 99},
			want: domain.Usage{PromptTokens: 2, CompletionTokens: 2, TotalTokens: 4},
		},
		{
			name: "no usage present",
			raw:  map[string]any{"choices": []any{}},
			want: domain.Usage{},
		},
		{
			name: "usage is not an object",
			raw:  map[string]any{"usage": "n/a"},
			want: domain.Usage{},
		},
		{
			name: "not json",
			raw:  "plain text",
			want: domain.Usage{},
		},
		{
			name: "unmarshalable value",
			raw:  func() {},
			want: domain.Usage{},
		},
		{
			name: "cyclic value",
			raw:  loop,
			want: domain.Usage{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.raw)
			if got.PromptTokens != tt.want.PromptTokens ||
				got.CompletionTokens != tt.want.CompletionTokens ||
				got.TotalTokens != tt.want.TotalTokens {
				t.Errorf("Extract() = %+v, want %+v", got, tt.want)
			}
			if got.PromptTokens < 0 || got.CompletionTokens < 0 || got.TotalTokens < 0 {
				t.Errorf("Extract() returned negative counts: %+v", got)
			}
		})
	}
}

func TestExtract_Cost(t *testing.T) {
	got := Extract(map[string]any{"usage": map[string]any{"input_tokens": 1, "output_tokens": 1, "cost_usd": 0.0025}})
	if got.Cost == nil || *got.Cost != 0.0025 {
		t.Fatalf("Cost = %v, want 0.0025", got.Cost)
	}

	got = Extract(map[string]any{"usage": map[string]any{"cost": -1.0}})
	if got.Cost != nil {
		t.Errorf("negative cost should be dropped, got %v", *got.Cost)
	}

	got = Extract(map[string]any{"usage": map[string]any{"cost": math.Inf(1)}})
	if got.Cost != nil {
		t.Errorf("infinite cost should be dropped, got %v", *got.Cost)
	}
}
