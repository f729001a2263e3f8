package store

import (
	"context"
	"errors"
	"time"

	"github.com/anatolykoptev/go_digest/internal/summarize"
)

// VideoStatus is the video state machine. PENDING moves to READY or FAILED
// on job completion; FAILED moves back to PENDING on explicit retry; READY
// moves to one of the DECIDED_* terminals on user action.
type VideoStatus string

const (
	StatusPending          VideoStatus = "PENDING"
	StatusReady            VideoStatus = "READY"
	StatusFailed           VideoStatus = "FAILED"
	StatusDecidedWatch     VideoStatus = "DECIDED_WATCH"
	StatusDecidedPass      VideoStatus = "DECIDED_PASS"
	StatusDecidedScheduled VideoStatus = "DECIDED_SCHEDULED"
)

// Decision is a user's terminal choice for a ready digest.
type Decision string

const (
	DecisionWatch    Decision = "WATCH"
	DecisionPass     Decision = "PASS"
	DecisionSchedule Decision = "SCHEDULE"
)

// StatusForDecision maps a decision to its terminal status.
func StatusForDecision(d Decision) (VideoStatus, bool) {
	switch d {
	case DecisionWatch:
		return StatusDecidedWatch, true
	case DecisionPass:
		return StatusDecidedPass, true
	case DecisionSchedule:
		return StatusDecidedScheduled, true
	}
	return "", false
}

// Video is the persisted video record.
type Video struct {
	ID             int64       `json:"id"`
	YouTubeVideoID string      `json:"youtube_video_id"`
	Title          string      `json:"title"`
	Status         VideoStatus `json:"status"`
	FailReason     string      `json:"fail_reason,omitempty"`
	Transcript     string      `json:"transcript,omitempty"`
	TranscriptLang string      `json:"transcript_lang,omitempty"`
	TrackName      string      `json:"track_name,omitempty"`
	DecidedAt      *time.Time  `json:"decided_at,omitempty"`
	ScheduledAt    *time.Time  `json:"scheduled_at,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

// Summary is the one-per-video structured digest.
type Summary struct {
	VideoID   int64                    `json:"video_id"`
	Content   summarize.SummaryContent `json:"content"`
	CreatedAt time.Time                `json:"created_at"`
}

// ErrNoRow is returned when a lookup matches nothing.
var ErrNoRow = errors.New("store: no such row")

// ErrBadTransition is returned when a guarded status transition does not
// apply to the video's current status.
var ErrBadTransition = errors.New("store: status transition not allowed")

// Store persists videos and summaries. SaveSummary is the only operation
// with a transactional boundary: the summary upsert and the PENDING→READY
// transition commit together or not at all.
type Store interface {
	CreateVideo(ctx context.Context, youtubeVideoID, title string) (Video, error)
	GetVideo(ctx context.Context, id int64) (Video, error)
	SetTranscript(ctx context.Context, id int64, text, lang, trackName string) error
	SaveSummary(ctx context.Context, videoID int64, content summarize.SummaryContent) error
	MarkFailed(ctx context.Context, videoID int64, reason string) error
	ResetForRetry(ctx context.Context, videoID int64) error
	Decide(ctx context.Context, videoID int64, d Decision, scheduledAt *time.Time) error
	GetSummary(ctx context.Context, videoID int64) (Summary, error)
	Close() error
}
