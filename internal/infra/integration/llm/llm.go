// Package llm talks to the text generation backends.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Completer returns raw model text for a system and user prompt.
// Callers own any JSON extraction or repair.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error)
}

type Config struct {
	Backend string // "ollama" or "openai"
	BaseURL string
	Model   string
	APIKey  string
	Timeout time.Duration
}

// PodBaseURL is the OpenAI-compatible proxy address of a Runpod vLLM pod.
func PodBaseURL(podID string) string {
	return fmt.Sprintf("https://%s-8000.proxy.runpod.net", podID)
}

func New(cfg Config) (Completer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "ollama":
		return NewOllama(cfg.BaseURL, cfg.Model, cfg.Timeout), nil
	case "openai":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("llm: base url required for openai backend")
		}
		return NewOpenAICompat(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("llm: unknown backend %q", cfg.Backend)
	}
}
