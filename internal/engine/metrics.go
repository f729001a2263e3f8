package engine

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Metrics tracks operational counters across the engine.
var metrics struct {
	TranscriptFetches atomic.Int64
	TranscriptErrors  atomic.Int64
	LLMCalls          atomic.Int64
	LLMErrors         atomic.Int64
	JobsEnqueued      atomic.Int64
	JobsProcessed     atomic.Int64
	JobsFailed        atomic.Int64
	ParseRecoveries   atomic.Int64
	SummarizeRequests atomic.Int64
}

func IncrTranscriptFetch() { metrics.TranscriptFetches.Add(1) }
func IncrTranscriptError() { metrics.TranscriptErrors.Add(1) }
func IncrLLMCall()         { metrics.LLMCalls.Add(1) }
func IncrLLMError()        { metrics.LLMErrors.Add(1) }
func IncrJobEnqueued()     { metrics.JobsEnqueued.Add(1) }
func IncrJobProcessed()    { metrics.JobsProcessed.Add(1) }
func IncrJobFailed()       { metrics.JobsFailed.Add(1) }
func IncrParseRecovery()   { metrics.ParseRecoveries.Add(1) }
func IncrSummarize()       { metrics.SummarizeRequests.Add(1) }

// GetMetrics returns a snapshot of all metrics including cache stats.
func GetMetrics() map[string]int64 {
	hits, misses := CacheStats()
	return map[string]int64{
		"transcript_fetches": metrics.TranscriptFetches.Load(),
		"transcript_errors":  metrics.TranscriptErrors.Load(),
		"llm_calls":          metrics.LLMCalls.Load(),
		"llm_errors":         metrics.LLMErrors.Load(),
		"jobs_enqueued":      metrics.JobsEnqueued.Load(),
		"jobs_processed":     metrics.JobsProcessed.Load(),
		"jobs_failed":        metrics.JobsFailed.Load(),
		"parse_recoveries":   metrics.ParseRecoveries.Load(),
		"summarize_requests": metrics.SummarizeRequests.Load(),
		"cache_hits":         hits,
		"cache_misses":       misses,
	}
}

// FormatMetrics returns metrics as a simple text format for HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	keys := []string{
		"summarize_requests",
		"transcript_fetches", "transcript_errors",
		"llm_calls", "llm_errors",
		"jobs_enqueued", "jobs_processed", "jobs_failed",
		"parse_recoveries",
		"cache_hits", "cache_misses",
	}
	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}
