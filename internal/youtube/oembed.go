package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/anatolykoptev/go_digest/internal/engine"
)

const (
	oembedEndpoint  = "https://www.youtube.com/oembed"
	oembedBodyLimit = 64 * 1024
)

// OEmbed is the public metadata YouTube exposes for a video.
type OEmbed struct {
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// FetchOEmbed looks up a video's title/channel/thumbnail via the oembed
// endpoint. No API key required; failures are non-fatal for callers that
// only enrich their records with it.
func FetchOEmbed(ctx context.Context, youtubeURL string) (OEmbed, error) {
	endpoint := oembedEndpoint + "?format=json&url=" + url.QueryEscape(youtubeURL)

	var data []byte
	if bc := engine.Cfg.BrowserClient; bc != nil {
		body, _, status, err := bc.Do(http.MethodGet, endpoint, nil, nil)
		if err != nil {
			return OEmbed{}, fmt.Errorf("fetch oembed: %w", err)
		}
		if status != http.StatusOK {
			return OEmbed{}, fmt.Errorf("fetch oembed: HTTP %d", status)
		}
		data = body
	} else {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return OEmbed{}, err
		}
		resp, err := engine.Cfg.HTTPClient.Do(req)
		if err != nil {
			return OEmbed{}, fmt.Errorf("fetch oembed: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return OEmbed{}, fmt.Errorf("fetch oembed: HTTP %d", resp.StatusCode)
		}
		data, err = io.ReadAll(io.LimitReader(resp.Body, oembedBodyLimit))
		if err != nil {
			return OEmbed{}, err
		}
	}

	var meta OEmbed
	if err := json.Unmarshal(data, &meta); err != nil {
		return OEmbed{}, fmt.Errorf("decode oembed: %w", err)
	}
	return meta, nil
}
