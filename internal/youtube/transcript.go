package youtube

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/anatolykoptev/go_digest/internal/engine"
)

// TranscriptResult is the normalized spoken-word track of one video.
type TranscriptResult struct {
	VideoID      string `json:"video_id"`
	LanguageCode string `json:"language_code"`
	TrackName    string `json:"track_name"`
	Text         string `json:"text"`
}

// FetchTranscript runs the full extraction pipeline for a YouTube URL:
// resolve id → list tracks → select track → fetch VTT → normalize.
// Successful results are cached by video id and language preference; the
// cache never masks errors.
func FetchTranscript(ctx context.Context, youtubeURL string) (TranscriptResult, error) {
	videoID, ok := ResolveVideoID(youtubeURL)
	if !ok {
		return TranscriptResult{}, fmt.Errorf("%w: not a valid YouTube URL", engine.ErrInvalidInput)
	}

	langs := engine.Cfg.PreferredLanguages
	cacheKey := engine.CacheKey("transcript", videoID, fmt.Sprint(langs))
	if cached, ok := engine.CacheGetJSON[TranscriptResult](ctx, cacheKey); ok {
		return cached, nil
	}

	engine.IncrTranscriptFetch()

	tracks, err := ListTracks(ctx, videoID)
	if err != nil {
		engine.IncrTranscriptError()
		return TranscriptResult{}, err
	}
	if len(tracks) == 0 {
		return TranscriptResult{}, fmt.Errorf("%w: video has no subtitles (may be absent or private)", engine.ErrNotFound)
	}

	track, err := SelectTrack(tracks, langs)
	if err != nil {
		return TranscriptResult{}, err
	}

	raw, err := FetchTrackContent(ctx, track)
	if err != nil {
		engine.IncrTranscriptError()
		return TranscriptResult{}, err
	}

	text := CleanVTT(raw)
	if text == "" {
		return TranscriptResult{}, fmt.Errorf("%w: no usable subtitle content", engine.ErrNotFound)
	}

	if max := engine.Cfg.MaxTranscriptChars; max > 0 && len(text) > max {
		return TranscriptResult{}, fmt.Errorf("%w: transcript too long (%d chars, limit %d)", engine.ErrNotFound, len(text), max)
	}

	result := TranscriptResult{
		VideoID:      videoID,
		LanguageCode: track.LanguageCode,
		TrackName:    track.DisplayName,
		Text:         text,
	}
	engine.CacheSetJSON(ctx, cacheKey, result)

	slog.Debug("transcript fetched",
		slog.String("video_id", videoID),
		slog.String("lang", track.LanguageCode),
		slog.Int("chars", len(text)))
	return result, nil
}
