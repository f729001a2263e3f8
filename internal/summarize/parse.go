package summarize

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/anatolykoptev/go_digest/internal/engine"
)

// Evidence is one timestamped citation backing the digest.
type Evidence struct {
	TSec  int    `json:"tSec"`
	Label string `json:"label"`
}

// SummaryContent is the persisted structured digest, one per video.
type SummaryContent struct {
	Bullets        []string   `json:"bullets"`
	Evidence       []Evidence `json:"evidence"`
	DecisionHint   string     `json:"decisionHint"`
	CategoryLabel  string     `json:"categoryLabel"`
	OutputLanguage string     `json:"outputLanguage"`
}

var fencedBlockRe = regexp.MustCompile("```(?:json)?\\s*\\n([\\s\\S]*?)\\n```")

// ParseStructuredSummary parses LLM output into a SummaryContent through a
// three-stage fallback chain: direct parse, then the substring between the
// first '{' and the last '}', then a fenced code block. Malformed output is
// a hard failure, never a partial result. Frequent fallback-stage usage
// signals prompt drift, so the stage that succeeded is logged.
func ParseStructuredSummary(raw string) (SummaryContent, error) {
	if content, err := decodeSummary(raw); err == nil {
		return content, nil
	}

	if first, last := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); first != -1 && last > first {
		if content, err := decodeSummary(raw[first : last+1]); err == nil {
			engine.IncrParseRecovery()
			slog.Warn("structured summary recovered", slog.String("stage", "brace_scan"))
			return content, nil
		}
	}

	if m := fencedBlockRe.FindStringSubmatch(raw); m != nil {
		if content, err := decodeSummary(m[1]); err == nil {
			engine.IncrParseRecovery()
			slog.Warn("structured summary recovered", slog.String("stage", "fenced_block"))
			return content, nil
		}
	}

	return SummaryContent{}, fmt.Errorf("%w: cannot parse structured summary JSON", engine.ErrBadProviderOutput)
}

func decodeSummary(s string) (SummaryContent, error) {
	var content SummaryContent
	if err := json.Unmarshal([]byte(s), &content); err != nil {
		return SummaryContent{}, err
	}
	if len(content.Bullets) == 0 {
		return SummaryContent{}, fmt.Errorf("summary has no bullets")
	}
	// Evidence offsets are seconds into the video; negative values from a
	// confused model are floored rather than failing the whole digest.
	for i := range content.Evidence {
		if content.Evidence[i].TSec < 0 {
			content.Evidence[i].TSec = 0
		}
	}
	return content, nil
}
