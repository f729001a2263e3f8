package engine

import "errors"

// Error taxonomy. Components wrap one of these sentinels with %w; the
// httpapi and worker layers classify with errors.Is exactly once.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrNotFound            = errors.New("not found")
	ErrCredentialMissing   = errors.New("credential missing")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrBadProviderOutput   = errors.New("bad provider output")
	ErrTooLarge            = errors.New("too large to process")
)

// Wire error codes for the synchronous summarize surface.
const (
	CodeValidation        = "VALIDATION"
	CodeURLInvalid        = "YOUTUBE_URL_INVALID"
	CodeSubtitlesNotFound = "SUBTITLES_NOT_FOUND"
	CodeCloudKeyMissing   = "CLOUD_KEY_MISSING"
	CodeLLMUnavailable    = "LLM_UNAVAILABLE"
	CodeLLMBadResponse    = "LLM_BAD_RESPONSE"
	CodeUnknown           = "UNKNOWN"
)

// ErrorCode maps a classified error to its wire code.
// The chunk-count ceiling surfaces as LLM_BAD_RESPONSE on this boundary.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return CodeURLInvalid
	case errors.Is(err, ErrNotFound):
		return CodeSubtitlesNotFound
	case errors.Is(err, ErrCredentialMissing):
		return CodeCloudKeyMissing
	case errors.Is(err, ErrProviderUnavailable):
		return CodeLLMUnavailable
	case errors.Is(err, ErrBadProviderOutput), errors.Is(err, ErrTooLarge):
		return CodeLLMBadResponse
	default:
		return CodeUnknown
	}
}
