package summarize

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anatolykoptev/go-kit/llm"
	"github.com/anatolykoptev/go_digest/internal/engine"
)

// completeCloud calls the configured cloud provider. A missing API key is a
// credential error and a blank response is a bad-response error.
func completeCloud(ctx context.Context, system, prompt, model string) (string, error) {
	if engine.Cfg.LLMAPIKey == "" {
		return "", fmt.Errorf("%w: cloud LLM API key is not configured", engine.ErrCredentialMissing)
	}

	client := engine.Cfg.LLMClient
	if model != "" && model != engine.Cfg.LLMModel {
		client = llm.NewClient(engine.Cfg.LLMAPIBase, engine.Cfg.LLMAPIKey, model,
			llm.WithFallbackKeys(engine.Cfg.LLMAPIKeyFallbacks),
			llm.WithMaxTokens(engine.Cfg.LLMMaxTokens),
			llm.WithTemperature(engine.Cfg.LLMTemperature),
			llm.WithHTTPClient(&http.Client{Timeout: 60 * time.Second}),
		)
	}
	if client == nil {
		return "", fmt.Errorf("%w: cloud LLM client is not configured", engine.ErrCredentialMissing)
	}

	resp, err := client.Complete(ctx, system, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: cloud LLM: %v", engine.ErrProviderUnavailable, err)
	}
	text := strings.TrimSpace(resp)
	if text == "" {
		return "", fmt.Errorf("%w: cloud LLM returned an empty response", engine.ErrBadProviderOutput)
	}
	return text, nil
}
