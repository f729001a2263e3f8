package summarize

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/time/rate"

	"github.com/anatolykoptev/go_digest/internal/engine"
)

// Provider calls are paced by a shared limiter and issued strictly
// sequentially within a job, to respect the per-provider rate/timeout budget.
var callLimiter = rate.NewLimiter(rate.Limit(2), 4)

// SetCallRate reconfigures the shared provider-call limiter.
func SetCallRate(perSecond float64, burst int) {
	callLimiter = rate.NewLimiter(rate.Limit(perSecond), burst)
}

// Result is the outcome of a free-text summarization.
type Result struct {
	SummaryText string
	WasChunked  bool
}

// Summarize drives one or more provider calls for the transcript: a single
// pass when it fits in one chunk, otherwise map-then-reduce — each chunk is
// summarized sequentially and the partials are merged by one final call.
func Summarize(ctx context.Context, req Request) (Result, error) {
	engine.IncrSummarize()

	chunks, err := boundedChunks(req.Transcript())
	if err != nil {
		return Result{}, err
	}

	if len(chunks) == 1 {
		text, err := completeOnce(ctx, req, "", fmt.Sprintf(engine.SummarizeSinglePrompt, chunks[0]))
		if err != nil {
			return Result{}, err
		}
		return Result{SummaryText: text, WasChunked: false}, nil
	}

	partials := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		partial, err := completeOnce(ctx, req, "", fmt.Sprintf(engine.SummarizeChunkPrompt, chunk))
		if err != nil {
			return Result{}, err
		}
		partials = append(partials, partial)
	}

	combined := strings.Join(partials, "\n\n")
	final, err := completeOnce(ctx, req, "", fmt.Sprintf(engine.SummarizeMergePrompt, combined))
	if err != nil {
		return Result{}, err
	}
	return Result{SummaryText: final, WasChunked: true}, nil
}

// Digest produces the persisted structured summary. Multi-chunk transcripts
// go through the same map phase as Summarize; the strict-JSON call always
// happens exactly once, last.
func Digest(ctx context.Context, req Request) (SummaryContent, error) {
	chunks, err := boundedChunks(req.Transcript())
	if err != nil {
		return SummaryContent{}, err
	}

	source := chunks[0]
	if len(chunks) > 1 {
		partials := make([]string, 0, len(chunks))
		for _, chunk := range chunks {
			partial, err := completeOnce(ctx, req, "", fmt.Sprintf(engine.SummarizeChunkPrompt, chunk))
			if err != nil {
				return SummaryContent{}, err
			}
			partials = append(partials, partial)
		}
		source = strings.Join(partials, "\n\n")
	}

	raw, err := completeOnce(ctx, req, engine.DigestSystemPrompt, fmt.Sprintf(engine.DigestUserPrompt, source))
	if err != nil {
		return SummaryContent{}, err
	}
	return ParseStructuredSummary(raw)
}

// boundedChunks splits the transcript and enforces the chunk-count ceiling
// before any provider call is issued.
func boundedChunks(text string) ([]string, error) {
	maxChars := engine.Cfg.ChunkMaxChars
	if maxChars <= 0 {
		maxChars = 8000
	}
	maxChunks := engine.Cfg.MaxChunks
	if maxChunks <= 0 {
		maxChunks = 12
	}

	chunks := SplitChunks(text, maxChars)
	if len(chunks) > maxChunks {
		return nil, fmt.Errorf("%w: transcript needs %d chunks (limit %d)", engine.ErrTooLarge, len(chunks), maxChunks)
	}
	return chunks, nil
}

// completeOnce is the single dispatch site over the request sum type.
func completeOnce(ctx context.Context, req Request, system, prompt string) (string, error) {
	if err := callLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", engine.ErrProviderUnavailable, err)
	}

	engine.IncrLLMCall()
	var text string
	var err error
	switch r := req.(type) {
	case CloudRequest:
		text, err = completeCloud(ctx, system, prompt, r.Model)
	case LocalRequest:
		text, err = completeLocal(ctx, r.BaseURL, r.Model, system, prompt)
	default:
		err = fmt.Errorf("unsupported request variant %T", req)
	}
	if err != nil {
		engine.IncrLLMError()
		return "", err
	}
	return stripFences(text), nil
}

// stripFences removes markdown code fences from LLM output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
