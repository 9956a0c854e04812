// Package usage normalizes heterogeneous provider payloads into domain.Usage.
package usage

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/tjfontaine/genai-monitor/internal/core/domain"
)

// Reporter is implemented by payload types that know their own token counts.
type Reporter interface {
	TokenUsage() (prompt, completion, total int)
}

// Keys are tried in order; the first present key wins.
var (
	containerKeys  = []string{"usage", "usageMetadata", "usage_metadata"}
	promptKeys     = []string{"prompt_tokens", "input_tokens", "promptTokens", "inputTokens", "promptTokenCount"}
	completionKeys = []string{"completion_tokens", "output_tokens", "completionTokens", "outputTokens", "candidatesTokenCount"}
	totalKeys      = []string{"total_tokens", "totalTokens", "totalTokenCount"}
	costKeys       = []string{"cost", "cost_usd", "costUsd"}
)

// Extract maps a raw provider response to Usage. It never fails: payloads
// without recognizable usage yield a zero Usage.
func Extract(raw any) (u domain.Usage) {
	defer func() {
		if r := recover(); r != nil {
			u = domain.Usage{}
		}
	}()

	switch v := raw.(type) {
	case nil:
		return domain.Usage{}
	case domain.Usage:
		return normalize(v, v.PromptTokens != 0 || v.CompletionTokens != 0)
	case *domain.Usage:
		if v == nil {
			return domain.Usage{}
		}
		return normalize(*v, v.PromptTokens != 0 || v.CompletionTokens != 0)
	case Reporter:
		p, c, t := v.TokenUsage()
		return normalize(domain.Usage{PromptTokens: p, CompletionTokens: c, TotalTokens: t}, p != 0 || c != 0)
	case map[string]any:
		return fromMap(v)
	case json.RawMessage:
		return fromJSON(v)
	case []byte:
		return fromJSON(v)
	case string:
		return fromJSON([]byte(v))
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return domain.Usage{}
	}
	return fromJSON(data)
}

func fromJSON(data []byte) domain.Usage {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return domain.Usage{}
	}
	return fromMap(m)
}

func fromMap(m map[string]any) domain.Usage {
	for _, key := range containerKeys {
		if inner, ok := m[key].(map[string]any); ok {
			return fromFields(inner)
		}
	}
	return fromFields(m)
}

func fromFields(m map[string]any) domain.Usage {
	prompt, hasPrompt := lookupInt(m, promptKeys)
	completion, hasCompletion := lookupInt(m, completionKeys)
	total, _ := lookupInt(m, totalKeys)

	u := domain.Usage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      total,
	}
	if cost, ok := lookupFloat(m, costKeys); ok {
		u.Cost = &cost
	}
	return normalize(u, hasPrompt || hasCompletion)
}

// normalize clamps counts to non-negative values and, when granular counts
// were supplied, makes the total their sum.
func normalize(u domain.Usage, granular bool) domain.Usage {
	u.PromptTokens = max(u.PromptTokens, 0)
	u.CompletionTokens = max(u.CompletionTokens, 0)
	u.TotalTokens = max(u.TotalTokens, 0)
	if granular {
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
	}
	if u.Cost != nil && (*u.Cost < 0 || math.IsNaN(*u.Cost) || math.IsInf(*u.Cost, 0)) {
		u.Cost = nil
	}
	return u
}

func lookupInt(m map[string]any, keys []string) (int, bool) {
	for _, key := range keys {
		v, ok := m[key]
		if !ok || v == nil {
			continue
		}
		if f, ok := toFloat(v); ok {
			f = math.Min(math.Max(f, 0), math.MaxInt32)
			return int(f), true
		}
	}
	return 0, false
}

func lookupFloat(m map[string]any, keys []string) (float64, bool) {
	for _, key := range keys {
		v, ok := m[key]
		if !ok || v == nil {
			continue
		}
		if f, ok := toFloat(v); ok {
			return f, true
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
