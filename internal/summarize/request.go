package summarize

import (
	"fmt"

	"github.com/anatolykoptev/go_digest/internal/engine"
)

// Request is the closed sum over provider variants. Exactly one variant is
// active per request; the only place that branches on the variant is the
// dispatch in completeOnce.
type Request interface {
	Transcript() string
	sealed()
}

// CloudRequest targets the cloud LLM provider configured in the engine.
// Model overrides the configured default when non-empty.
type CloudRequest struct {
	Text  string
	Model string
}

func (r CloudRequest) Transcript() string { return r.Text }
func (r CloudRequest) sealed()            {}

// LocalRequest targets a caller-supplied OpenAI-compatible endpoint.
type LocalRequest struct {
	Text    string
	BaseURL string
	Model   string
}

func (r LocalRequest) Transcript() string { return r.Text }
func (r LocalRequest) sealed()            {}

// BuildRequest maps a provider name ("cloud" or "local") onto the matching
// request variant. Unknown providers are rejected before any work starts.
func BuildRequest(provider, text, model, baseURL string) (Request, error) {
	switch provider {
	case "", "cloud":
		return CloudRequest{Text: text, Model: model}, nil
	case "local":
		return LocalRequest{Text: text, BaseURL: baseURL, Model: model}, nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", engine.ErrInvalidInput, provider)
	}
}
