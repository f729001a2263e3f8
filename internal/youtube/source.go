package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"

	"github.com/anatolykoptev/go_digest/internal/engine"
)

// CaptionTrack is one subtitle stream for a video, immutable and scoped to
// a single extraction call.
type CaptionTrack struct {
	SourceURL      string
	DisplayName    string
	TrackID        string
	LanguageCode   string
	Kind           string // "asr" = auto-generated, "" = manual
	IsTranslatable bool
}

// Manual reports whether the track is human-authored.
func (t CaptionTrack) Manual() bool { return t.Kind != "asr" }

// videoIDRe matches the 11-character video id in every accepted URL shape:
// watch?v=, youtu.be/, embed/, v/.
var videoIDRe = regexp.MustCompile(`(?:youtube\.com/(?:[^/]+/.+/|(?:v|e(?:mbed)?)/|.*[?&]v=)|youtu\.be/)([^"&?/\s]{11})`)

// ResolveVideoID extracts the video id from a YouTube URL.
// Fails closed (ok=false) on any non-matching input; no network call.
func ResolveVideoID(url string) (string, bool) {
	m := videoIDRe.FindStringSubmatch(url)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ListTracks issues a single request to the Innertube /player endpoint and
// returns the available caption tracks. A playable video without captions
// yields an empty slice and no error; an unplayable one (age gate, login
// wall, region block) fails with the player's stated reason, since the
// missing captions are a symptom rather than the cause.
func ListTracks(ctx context.Context, videoID string) ([]CaptionTrack, error) {
	body, err := json.Marshal(innertubeReq{
		VideoID: videoID,
		Context: innertubeCtx{
			Client: innertubeClient{
				ClientName:    "WEB",
				ClientVersion: ytWebVersion,
				Hl:            "en",
				Gl:            "US",
			},
		},
	})
	if err != nil {
		return nil, err
	}

	data, err := postPlayer(ctx, body)
	if err != nil {
		return nil, err
	}
	return parsePlayerResponse(data)
}

// parsePlayerResponse decodes a /player payload into caption tracks.
func parsePlayerResponse(data []byte) ([]CaptionTrack, error) {
	var playerResp innertubePlayerResp
	if err := json.Unmarshal(data, &playerResp); err != nil {
		return nil, fmt.Errorf("decode player response: %w", err)
	}
	if playerResp.Captions == nil {
		if ps := playerResp.PlayabilityStatus; ps != nil && ps.Status != "" && ps.Status != "OK" {
			reason := ps.Reason
			if reason == "" {
				reason = ps.Status
			}
			return nil, fmt.Errorf("%w: video is not playable: %s", engine.ErrNotFound, reason)
		}
		return nil, nil
	}

	raw := playerResp.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks
	tracks := make([]CaptionTrack, 0, len(raw))
	for _, t := range raw {
		tracks = append(tracks, CaptionTrack{
			SourceURL:      t.BaseURL,
			DisplayName:    t.Name.SimpleText,
			TrackID:        t.VssID,
			LanguageCode:   t.LanguageCode,
			Kind:           t.Kind,
			IsTranslatable: t.IsTranslatable,
		})
	}
	return tracks, nil
}

// FetchTrackContent retrieves the raw subtitle body for a track in the
// cue-based VTT format. Any non-success HTTP status is a hard failure
// carrying the status code.
func FetchTrackContent(ctx context.Context, track CaptionTrack) (string, error) {
	url := track.SourceURL + "&fmt=vtt"

	if bc := engine.Cfg.BrowserClient; bc != nil {
		data, _, status, err := bc.Do(http.MethodGet, url, nil, nil)
		if err != nil {
			return "", fmt.Errorf("fetch captions: %w", err)
		}
		if status != http.StatusOK {
			return "", fmt.Errorf("fetch captions: HTTP %d", status)
		}
		if len(data) > captionBodyLimit {
			data = data[:captionBodyLimit]
		}
		return string(data), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := engine.Cfg.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch captions: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch captions: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, captionBodyLimit))
	if err != nil {
		return "", err
	}
	return string(data), nil
}
