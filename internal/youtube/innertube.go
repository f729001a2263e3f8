package youtube

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/anatolykoptev/go_digest/internal/engine"
)

// YouTube Innertube API — low-level constants, types, and HTTP primitives.
// The request shape (client identity, endpoint path, payload schema) lives
// here so it can be versioned without touching downstream components.

const (
	ytPlayerURL  = "https://www.youtube.com/youtubei/v1/player"
	ytWebVersion = "2.20250222.10.00"

	playerBodyLimit  = 3 * 1024 * 1024
	captionBodyLimit = 512 * 1024
)

type innertubeReq struct {
	VideoID string       `json:"videoId"`
	Context innertubeCtx `json:"context"`
}

type innertubeCtx struct {
	Client innertubeClient `json:"client"`
}

type innertubeClient struct {
	ClientName    string `json:"clientName"`
	ClientVersion string `json:"clientVersion"`
	Hl            string `json:"hl,omitempty"`
	Gl            string `json:"gl,omitempty"`
}

type innertubePlayerResp struct {
	Captions *struct {
		PlayerCaptionsTracklistRenderer struct {
			CaptionTracks []rawCaptionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
}

type rawCaptionTrack struct {
	BaseURL string `json:"baseUrl"`
	Name    struct {
		SimpleText string `json:"simpleText"`
	} `json:"name"`
	VssID          string `json:"vssId"`
	LanguageCode   string `json:"languageCode"`
	Kind           string `json:"kind"` // "asr" = auto-generated
	IsTranslatable bool   `json:"isTranslatable"`
}

// postPlayer POSTs the fixed WEB client identity to the Innertube /player
// endpoint. One request, no retries — transient-failure policy belongs to
// the caller.
func postPlayer(ctx context.Context, body []byte) ([]byte, error) {
	headers := map[string]string{
		"Content-Type":             "application/json",
		"Accept":                   "*/*",
		"X-Youtube-Client-Name":    "1",
		"X-Youtube-Client-Version": ytWebVersion,
		"Origin":                   "https://www.youtube.com",
		"Referer":                  "https://www.youtube.com/",
	}
	endpoint := ytPlayerURL + "?prettyPrint=false"

	if bc := engine.Cfg.BrowserClient; bc != nil {
		data, _, status, err := bc.Do(http.MethodPost, endpoint, headers, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("innertube player: %w", err)
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("innertube player: HTTP %d", status)
		}
		if len(data) > playerBodyLimit {
			data = data[:playerBodyLimit]
		}
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := engine.Cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("innertube player: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("innertube player: HTTP %d: %s", resp.StatusCode, snippet)
	}
	return io.ReadAll(io.LimitReader(resp.Body, playerBodyLimit))
}
