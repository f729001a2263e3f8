package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/anatolykoptev/go_digest/internal/engine"
)

const (
	defaultLocalBaseURL = "http://localhost:11434/v1"
	localBodyLimit      = 2 * 1024 * 1024
)

// localTimeout caps a single local LLM call. Variable so tests can shrink it.
var localTimeout = 60 * time.Second

// localHTTP has no client-level timeout; the per-call deadline is enforced
// through context cancellation so a timeout is distinguishable from a
// connection failure.
var localHTTP = &http.Client{}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// completeLocal calls a caller-supplied OpenAI-compatible endpoint.
func completeLocal(ctx context.Context, baseURL, model, system, prompt string) (string, error) {
	base, err := normalizeBaseURL(baseURL)
	if err != nil {
		return "", err
	}

	if !engine.Cfg.Development {
		// Server-side code path: only loopback hosts are allowed outside
		// development, so the endpoint cannot be pointed at an arbitrary
		// external address.
		if host := hostname(base); !isLoopbackHost(host) {
			return "", fmt.Errorf("%w: non-loopback LLM host %q is not allowed in production", engine.ErrProviderUnavailable, host)
		}
	}

	messages := make([]chatMessage, 0, 2)
	if system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	body, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: 0.2,
		MaxTokens:   900,
		Stream:      false,
	})
	if err != nil {
		return "", err
	}

	callCtx, cancel := context.WithTimeout(ctx, localTimeout)
	defer cancel()

	endpoint := strings.TrimSuffix(base, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer local-llm")

	resp, err := localHTTP.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() != nil {
			return "", fmt.Errorf("%w: local LLM timed out after %s", engine.ErrProviderUnavailable, localTimeout)
		}
		return "", fmt.Errorf("%w: cannot reach local LLM (is Ollama/LM Studio running?): %v", engine.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	bodyText, err := io.ReadAll(io.LimitReader(resp.Body, localBodyLimit))
	if err != nil {
		if callCtx.Err() != nil {
			return "", fmt.Errorf("%w: local LLM timed out after %s", engine.ErrProviderUnavailable, localTimeout)
		}
		return "", fmt.Errorf("%w: read local LLM response: %v", engine.ErrProviderUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: local LLM request failed: %d %s",
			engine.ErrProviderUnavailable, resp.StatusCode, errorMessage(bodyText, resp.Status))
	}

	var parsed chatResponse
	if err := json.Unmarshal(bodyText, &parsed); err != nil {
		return "", fmt.Errorf("%w: decode local LLM response: %v", engine.ErrBadProviderOutput, err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: local LLM response has no choices", engine.ErrBadProviderOutput)
	}
	text := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("%w: local LLM returned an empty response", engine.ErrBadProviderOutput)
	}
	return text, nil
}

// normalizeBaseURL validates and normalizes a local LLM base URL:
// defaults when blank, http(s) only, path defaults to /v1.
func normalizeBaseURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return defaultLocalBaseURL, nil
	}

	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: local LLM URL is not valid", engine.ErrProviderUnavailable)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: local LLM URL must use http(s)", engine.ErrProviderUnavailable)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/v1"
	}
	return strings.TrimSuffix(u.String(), "/"), nil
}

func hostname(base string) string {
	u, err := url.Parse(base)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func isLoopbackHost(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// errorMessage extracts a human-readable message from a provider error
// payload, probing the conventional shapes: error (string or {message}),
// message, detail. Falls back to the raw status line.
func errorMessage(body []byte, statusLine string) string {
	var parsed struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
		Detail  string          `json:"detail"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if len(parsed.Error) > 0 {
			var s string
			if json.Unmarshal(parsed.Error, &s) == nil && s != "" {
				return s
			}
			var obj struct {
				Message string `json:"message"`
			}
			if json.Unmarshal(parsed.Error, &obj) == nil && obj.Message != "" {
				return obj.Message
			}
		}
		if parsed.Message != "" {
			return parsed.Message
		}
		if parsed.Detail != "" {
			return parsed.Detail
		}
	}
	return statusLine
}
