package engine

import (
	"net/http"

	"github.com/anatolykoptev/go-kit/llm"
	stealth "github.com/anatolykoptev/go-stealth"
)

// Config holds all engine configuration, injected from main.
type Config struct {
	LLMAPIKey          string
	LLMAPIKeyFallbacks []string
	LLMAPIBase         string
	LLMModel           string
	LLMTemperature     float64
	LLMMaxTokens       int

	// Caption extraction settings.
	PreferredLanguages []string // e.g. ["ko", "en"]
	MaxTranscriptChars int      // hard ceiling on normalized transcript size
	ChunkMaxChars      int      // per-chunk character budget for summarization
	MaxChunks          int      // chunk-count ceiling before failing fast

	// Development relaxes the local-provider host restriction.
	Development bool

	HTTPClient    *http.Client
	BrowserClient *stealth.BrowserClient // nil = platform calls use HTTPClient
	LLMClient     *llm.Client            // cloud provider client
}

var cfg Config

// Cfg exposes the engine configuration for sub-packages.
// Always points to the current cfg value.
var Cfg = &cfg

// Init initializes the engine with the given configuration.
func Init(c Config) {
	cfg = c
	Cfg = &cfg
}
