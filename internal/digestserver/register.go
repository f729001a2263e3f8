// Package digestserver registers the MCP tools for the digest pipeline:
// summarize_video (synchronous pipeline run) and video_status (lifecycle
// readback for submitted videos).
package digestserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_digest/internal/engine"
	"github.com/anatolykoptev/go_digest/internal/store"
	"github.com/anatolykoptev/go_digest/internal/summarize"
	"github.com/anatolykoptev/go_digest/internal/youtube"
)

type SummarizeVideoInput struct {
	URL      string `json:"url" jsonschema:"YouTube video URL (youtube.com/watch, youtu.be, embed)"`
	Provider string `json:"provider,omitempty" jsonschema:"LLM provider: cloud (default) or local"`
	Model    string `json:"model,omitempty" jsonschema:"Model override for the chosen provider"`
	BaseURL  string `json:"baseUrl,omitempty" jsonschema:"Base URL of a local OpenAI-compatible endpoint (local provider only)"`
}

type SummarizeVideoOutput struct {
	VideoID      string `json:"videoId"`
	LanguageCode string `json:"languageCode"`
	TrackName    string `json:"trackName,omitempty"`
	Summary      string `json:"summary"`
	WasChunked   bool   `json:"wasChunked"`
	ErrorCode    string `json:"errorCode,omitempty"`
}

type VideoStatusInput struct {
	VideoID int64 `json:"videoId" jsonschema:"Internal numeric id returned when the video was submitted"`
}

type VideoStatusOutput struct {
	VideoID    int64                     `json:"videoId"`
	Status     string                    `json:"status"`
	FailReason string                    `json:"failReason,omitempty"`
	Summary    *summarize.SummaryContent `json:"summary,omitempty"`
}

// RegisterTools registers the digest tools on the given MCP server.
// The store may be nil when the server runs in stateless summarize-only mode;
// video_status then reports that persistence is disabled.
func RegisterTools(server *mcp.Server, st store.Store) {
	registerSummarizeVideo(server)
	registerVideoStatus(server, st)
}

func registerSummarizeVideo(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "summarize_video",
		Description: "Extract the best available subtitle track from a YouTube video and summarize it with an LLM. Returns the summary text, the subtitle language used, and whether the transcript had to be chunked. Provider is cloud by default; pass provider=local with a baseUrl to use a local OpenAI-compatible endpoint.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, input SummarizeVideoInput) (*mcp.CallToolResult, SummarizeVideoOutput, error) {
		if input.URL == "" {
			return nil, SummarizeVideoOutput{}, fmt.Errorf("url is required")
		}

		started := time.Now()
		transcript, err := youtube.FetchTranscript(ctx, input.URL)
		if err != nil {
			return nil, SummarizeVideoOutput{ErrorCode: engine.ErrorCode(err)}, err
		}

		provReq, err := summarize.BuildRequest(input.Provider, transcript.Text, input.Model, input.BaseURL)
		if err != nil {
			return nil, SummarizeVideoOutput{ErrorCode: engine.ErrorCode(err)}, err
		}

		result, err := summarize.Summarize(ctx, provReq)
		if err != nil {
			return nil, SummarizeVideoOutput{ErrorCode: engine.ErrorCode(err)}, err
		}

		slog.Info("summarize_video completed",
			slog.String("video_id", transcript.VideoID),
			slog.Bool("chunked", result.WasChunked),
			slog.Duration("took", time.Since(started)))

		return nil, SummarizeVideoOutput{
			VideoID:      transcript.VideoID,
			LanguageCode: transcript.LanguageCode,
			TrackName:    transcript.TrackName,
			Summary:      result.SummaryText,
			WasChunked:   result.WasChunked,
		}, nil
	})
}

func registerVideoStatus(server *mcp.Server, st store.Store) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "video_status",
		Description: "Look up the lifecycle status of a submitted video (PENDING, READY, FAILED, or a DECIDED_* terminal) together with its structured digest once READY.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, input VideoStatusInput) (*mcp.CallToolResult, VideoStatusOutput, error) {
		if st == nil {
			return nil, VideoStatusOutput{}, fmt.Errorf("video persistence is not configured")
		}
		if input.VideoID <= 0 {
			return nil, VideoStatusOutput{}, fmt.Errorf("videoId is required")
		}

		video, err := st.GetVideo(ctx, input.VideoID)
		if errors.Is(err, store.ErrNoRow) {
			return nil, VideoStatusOutput{}, fmt.Errorf("video %d not found", input.VideoID)
		}
		if err != nil {
			return nil, VideoStatusOutput{}, err
		}

		out := VideoStatusOutput{
			VideoID:    video.ID,
			Status:     string(video.Status),
			FailReason: video.FailReason,
		}
		if sum, err := st.GetSummary(ctx, video.ID); err == nil {
			out.Summary = &sum.Content
		}
		return nil, out, nil
	})
}
