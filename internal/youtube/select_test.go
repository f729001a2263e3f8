package youtube

import (
	"errors"
	"testing"

	"github.com/anatolykoptev/go_digest/internal/engine"
)

func TestSelectTrack(t *testing.T) {
	prefs := []string{"ko", "en"}

	t.Run("no tracks", func(t *testing.T) {
		_, err := SelectTrack(nil, prefs)
		if !errors.Is(err, engine.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("manual bonus flips adjacent preference", func(t *testing.T) {
		tracks := []CaptionTrack{
			{TrackID: "en-manual", LanguageCode: "en"},
			{TrackID: "ko-asr", LanguageCode: "ko", Kind: "asr"},
		}
		// en manual (950 + 100) edges out ko auto (1000).
		got, err := SelectTrack(tracks, prefs)
		if err != nil {
			t.Fatal(err)
		}
		if got.TrackID != "en-manual" {
			t.Errorf("selected %q, want en-manual", got.TrackID)
		}
	})

	t.Run("language dominates beyond adjacent ranks", func(t *testing.T) {
		tracks := []CaptionTrack{
			{TrackID: "en-manual", LanguageCode: "en"},
			{TrackID: "ko-asr", LanguageCode: "ko", Kind: "asr"},
		}
		// Three ranks down (850 + 100) the manual bonus cannot flip the order.
		got, err := SelectTrack(tracks, []string{"ko", "de", "fr", "en"})
		if err != nil {
			t.Fatal(err)
		}
		if got.TrackID != "ko-asr" {
			t.Errorf("selected %q, want ko-asr", got.TrackID)
		}
	})

	t.Run("manual breaks same-language tie", func(t *testing.T) {
		tracks := []CaptionTrack{
			{TrackID: "ko-asr", LanguageCode: "ko", Kind: "asr"},
			{TrackID: "ko-manual", LanguageCode: "ko"},
		}
		got, err := SelectTrack(tracks, prefs)
		if err != nil {
			t.Fatal(err)
		}
		if got.TrackID != "ko-manual" {
			t.Errorf("selected %q, want ko-manual", got.TrackID)
		}
	})

	t.Run("region variant matches base preference", func(t *testing.T) {
		tracks := []CaptionTrack{
			{TrackID: "fr", LanguageCode: "fr"},
			{TrackID: "en-GB", LanguageCode: "en-GB"},
		}
		got, err := SelectTrack(tracks, prefs)
		if err != nil {
			t.Fatal(err)
		}
		if got.TrackID != "en-GB" {
			t.Errorf("selected %q, want en-GB", got.TrackID)
		}
	})

	t.Run("case insensitive", func(t *testing.T) {
		tracks := []CaptionTrack{
			{TrackID: "fr", LanguageCode: "fr"},
			{TrackID: "upper", LanguageCode: "KO"},
		}
		got, err := SelectTrack(tracks, prefs)
		if err != nil {
			t.Fatal(err)
		}
		if got.TrackID != "upper" {
			t.Errorf("selected %q, want upper", got.TrackID)
		}
	})

	t.Run("tie keeps first listed", func(t *testing.T) {
		tracks := []CaptionTrack{
			{TrackID: "first", LanguageCode: "ja"},
			{TrackID: "second", LanguageCode: "de"},
		}
		got, err := SelectTrack(tracks, prefs)
		if err != nil {
			t.Fatal(err)
		}
		if got.TrackID != "first" {
			t.Errorf("selected %q, want first", got.TrackID)
		}
	})

	t.Run("deterministic across runs", func(t *testing.T) {
		tracks := []CaptionTrack{
			{TrackID: "a", LanguageCode: "en", Kind: "asr"},
			{TrackID: "b", LanguageCode: "en"},
			{TrackID: "c", LanguageCode: "ko", Kind: "asr"},
		}
		first, err := SelectTrack(tracks, prefs)
		if err != nil {
			t.Fatal(err)
		}
		for i := 0; i < 20; i++ {
			got, err := SelectTrack(tracks, prefs)
			if err != nil {
				t.Fatal(err)
			}
			if got.TrackID != first.TrackID {
				t.Fatalf("run %d selected %q, first run selected %q", i, got.TrackID, first.TrackID)
			}
		}
	})
}
