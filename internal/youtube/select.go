package youtube

import (
	"fmt"
	"strings"

	"github.com/anatolykoptev/go_digest/internal/engine"
)

// Track scoring: a preferred-language match is worth 1000 minus 50 per
// preference rank, a human-authored track adds 100. A track outside the
// preference list can never win on the manual bonus alone.
const (
	langBaseScore = 1000
	langRankStep  = 50
	manualBonus   = 100
)

// SelectTrack scores and ranks the available tracks by language preference
// and manual-vs-auto quality. Ties break by original list order, so two
// independent runs over the same input always select the same track.
func SelectTrack(tracks []CaptionTrack, preferredLanguages []string) (CaptionTrack, error) {
	if len(tracks) == 0 {
		return CaptionTrack{}, fmt.Errorf("%w: no caption tracks available", engine.ErrNotFound)
	}

	best := 0
	bestScore := scoreTrack(tracks[0], preferredLanguages)
	for i := 1; i < len(tracks); i++ {
		if s := scoreTrack(tracks[i], preferredLanguages); s > bestScore {
			best, bestScore = i, s
		}
	}
	return tracks[best], nil
}

func scoreTrack(track CaptionTrack, preferredLanguages []string) int {
	lang := strings.ToLower(track.LanguageCode)

	languageScore := 0
	for i, p := range preferredLanguages {
		pref := strings.ToLower(p)
		if lang == pref || strings.HasPrefix(lang, pref+"-") {
			languageScore = langBaseScore - i*langRankStep
			break
		}
	}

	manualScore := 0
	if track.Manual() {
		manualScore = manualBonus
	}
	return languageScore + manualScore
}
