// Package httpapi exposes the digest pipeline over HTTP: a synchronous
// summarize endpoint plus the async video lifecycle (submit, retry, decide).
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/anatolykoptev/go_digest/internal/engine"
	"github.com/anatolykoptev/go_digest/internal/store"
	"github.com/anatolykoptev/go_digest/internal/summarize"
	"github.com/anatolykoptev/go_digest/internal/youtube"
)

// jobQueue is the enqueue-side of the work queue; satisfied by *queue.Queue.
type jobQueue interface {
	Enqueue(ctx context.Context, videoID int64, transcript string) (string, error)
}

// Server wires the pipeline dependencies into an http.Handler.
type Server struct {
	store store.Store
	queue jobQueue
	mux   *http.ServeMux
}

// NewServer builds the API handler. The queue may be nil, in which case the
// async endpoints report LLM_UNAVAILABLE-style unavailability at submit time.
func NewServer(st store.Store, q jobQueue) *Server {
	s := &Server{store: st, queue: q, mux: http.NewServeMux()}

	s.mux.HandleFunc("POST /api/summarize", s.handleSummarize)
	s.mux.HandleFunc("POST /api/videos", s.handleSubmitVideo)
	s.mux.HandleFunc("GET /api/videos/{id}", s.handleGetVideo)
	s.mux.HandleFunc("POST /api/videos/{id}/retry", s.handleRetry)
	s.mux.HandleFunc("POST /api/videos/{id}/decision", s.handleDecision)
	s.mux.HandleFunc("GET /metrics", s.handleMetrics)

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// summarizeRequest is the body shared by the sync endpoint and video submit.
type summarizeRequest struct {
	YouTubeURL      string `json:"youtubeUrl"`
	Provider        string `json:"provider"` // "cloud" (default) or "local"
	ProviderModel   string `json:"providerModel"`
	ProviderBaseURL string `json:"providerBaseUrl"`
	Title           string `json:"title"`
}

type apiError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type envelope struct {
	OK    bool      `json:"ok"`
	Data  any       `json:"data,omitempty"`
	Error *apiError `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("httpapi: encode response", slog.Any("error", err))
	}
}

func writeOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{OK: true, Data: data})
}

func writeErr(w http.ResponseWriter, err error) {
	code := engine.ErrorCode(err)
	writeJSON(w, statusForCode(code), envelope{OK: false, Error: &apiError{
		Code:    code,
		Message: err.Error(),
	}})
}

func writeValidation(w http.ResponseWriter, fields map[string]string) {
	writeJSON(w, http.StatusBadRequest, envelope{OK: false, Error: &apiError{
		Code:    engine.CodeValidation,
		Message: "request validation failed",
		Fields:  fields,
	}})
}

func statusForCode(code string) int {
	switch code {
	case engine.CodeValidation, engine.CodeURLInvalid, engine.CodeCloudKeyMissing:
		return http.StatusBadRequest
	case engine.CodeSubtitlesNotFound:
		return http.StatusNotFound
	case engine.CodeLLMUnavailable, engine.CodeLLMBadResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	return dec.Decode(v)
}

func validateSummarize(req summarizeRequest) map[string]string {
	fields := map[string]string{}
	if strings.TrimSpace(req.YouTubeURL) == "" {
		fields["youtubeUrl"] = "required"
	}
	switch req.Provider {
	case "", "cloud", "local":
	default:
		fields["provider"] = "must be cloud or local"
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// handleSummarize runs the full pipeline inline and returns the free-text
// summary. Nothing is persisted.
func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidation(w, map[string]string{"body": "malformed JSON"})
		return
	}
	if fields := validateSummarize(req); fields != nil {
		writeValidation(w, fields)
		return
	}

	started := time.Now()
	transcript, err := youtube.FetchTranscript(r.Context(), req.YouTubeURL)
	if err != nil {
		writeErr(w, err)
		return
	}

	provReq, err := summarize.BuildRequest(req.Provider, transcript.Text, req.ProviderModel, req.ProviderBaseURL)
	if err != nil {
		writeErr(w, err)
		return
	}

	result, err := summarize.Summarize(r.Context(), provReq)
	if err != nil {
		writeErr(w, err)
		return
	}

	slog.Info("summarize completed",
		slog.String("video_id", transcript.VideoID),
		slog.Bool("chunked", result.WasChunked),
		slog.Duration("took", time.Since(started)))

	writeOK(w, map[string]any{
		"videoId":      transcript.VideoID,
		"languageCode": transcript.LanguageCode,
		"trackName":    transcript.TrackName,
		"summary":      result.SummaryText,
		"wasChunked":   result.WasChunked,
	})
}

// handleSubmitVideo extracts the transcript up front, persists the video as
// PENDING, and enqueues the digest job. The caller polls GET /api/videos/{id}.
func (s *Server) handleSubmitVideo(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidation(w, map[string]string{"body": "malformed JSON"})
		return
	}
	if fields := validateSummarize(req); fields != nil {
		writeValidation(w, fields)
		return
	}
	if s.store == nil || s.queue == nil {
		writeErr(w, fmt.Errorf("%w: async pipeline is not configured", engine.ErrProviderUnavailable))
		return
	}

	transcript, err := youtube.FetchTranscript(r.Context(), req.YouTubeURL)
	if err != nil {
		writeErr(w, err)
		return
	}

	title := req.Title
	if title == "" {
		// Best effort; a video without oembed metadata still gets digested.
		if meta, err := youtube.FetchOEmbed(r.Context(), req.YouTubeURL); err == nil {
			title = meta.Title
		} else {
			slog.Warn("oembed lookup failed", slog.String("video_id", transcript.VideoID), slog.Any("error", err))
		}
	}

	video, err := s.store.CreateVideo(r.Context(), transcript.VideoID, title)
	if err != nil {
		writeErr(w, err)
		return
	}

	// Resubmitting a processed or decided video is a no-op; a FAILED one goes
	// back through the explicit retry endpoint.
	if video.Status != store.StatusPending {
		writeOK(w, map[string]any{
			"videoId":        video.ID,
			"youtubeVideoId": video.YouTubeVideoID,
			"status":         video.Status,
		})
		return
	}

	if err := s.store.SetTranscript(r.Context(), video.ID,
		transcript.Text, transcript.LanguageCode, transcript.TrackName); err != nil {
		writeErr(w, err)
		return
	}

	jobID, err := s.queue.Enqueue(r.Context(), video.ID, transcript.Text)
	if err != nil {
		// PENDING has no exit without a job, so a failed enqueue rolls the
		// video to FAILED where the explicit retry endpoint can reach it.
		s.failEnqueue(r.Context(), video.ID, err)
		writeErr(w, fmt.Errorf("%w: enqueue: %v", engine.ErrProviderUnavailable, err))
		return
	}

	writeOK(w, map[string]any{
		"videoId":        video.ID,
		"youtubeVideoId": video.YouTubeVideoID,
		"jobId":          jobID,
		"status":         video.Status,
	})
}

func (s *Server) videoID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	if s.store == nil {
		writeErr(w, fmt.Errorf("%w: video persistence is not configured", engine.ErrProviderUnavailable))
		return 0, false
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeValidation(w, map[string]string{"id": "must be a positive integer"})
		return 0, false
	}
	return id, true
}

func (s *Server) handleGetVideo(w http.ResponseWriter, r *http.Request) {
	id, ok := s.videoID(w, r)
	if !ok {
		return
	}

	video, err := s.store.GetVideo(r.Context(), id)
	if errors.Is(err, store.ErrNoRow) {
		writeErr(w, fmt.Errorf("%w: video %d", engine.ErrNotFound, id))
		return
	}
	if err != nil {
		writeErr(w, err)
		return
	}

	data := map[string]any{"video": video}
	if sum, err := s.store.GetSummary(r.Context(), id); err == nil {
		data["summary"] = sum
	}
	writeOK(w, data)
}

// handleRetry re-queues a FAILED video using its stored transcript.
// Retry is the only path back to PENDING; it is never automatic.
func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	id, ok := s.videoID(w, r)
	if !ok {
		return
	}
	if s.queue == nil {
		writeErr(w, fmt.Errorf("%w: job queue is not configured", engine.ErrProviderUnavailable))
		return
	}

	video, err := s.store.GetVideo(r.Context(), id)
	if errors.Is(err, store.ErrNoRow) {
		writeErr(w, fmt.Errorf("%w: video %d", engine.ErrNotFound, id))
		return
	}
	if err != nil {
		writeErr(w, err)
		return
	}
	if video.Transcript == "" {
		writeErr(w, fmt.Errorf("%w: video %d has no stored transcript", engine.ErrInvalidInput, id))
		return
	}

	if err := s.store.ResetForRetry(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrBadTransition) {
			writeJSON(w, http.StatusConflict, envelope{OK: false, Error: &apiError{
				Code:    engine.CodeValidation,
				Message: err.Error(),
			}})
			return
		}
		writeErr(w, err)
		return
	}

	jobID, err := s.queue.Enqueue(r.Context(), id, video.Transcript)
	if err != nil {
		s.failEnqueue(r.Context(), id, err)
		writeErr(w, fmt.Errorf("%w: enqueue: %v", engine.ErrProviderUnavailable, err))
		return
	}

	writeOK(w, map[string]any{
		"videoId": id,
		"jobId":   jobID,
		"status":  store.StatusPending,
	})
}

// failEnqueue moves a PENDING video back to FAILED after the queue rejected
// its job, so it never gets stuck in a PENDING state no worker will visit.
func (s *Server) failEnqueue(ctx context.Context, videoID int64, cause error) {
	reason := fmt.Sprintf("%s: enqueue failed: %v", engine.CodeLLMUnavailable, cause)
	if err := s.store.MarkFailed(ctx, videoID, reason); err != nil {
		slog.Error("httpapi: mark failed after enqueue error",
			slog.Int64("video_id", videoID),
			slog.Any("error", err))
	}
}

type decisionRequest struct {
	Decision    string     `json:"decision"` // WATCH | PASS | SCHEDULE
	ScheduledAt *time.Time `json:"scheduledAt"`
}

func (s *Server) handleDecision(w http.ResponseWriter, r *http.Request) {
	id, ok := s.videoID(w, r)
	if !ok {
		return
	}

	var req decisionRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidation(w, map[string]string{"body": "malformed JSON"})
		return
	}

	d := store.Decision(strings.ToUpper(strings.TrimSpace(req.Decision)))
	status, valid := store.StatusForDecision(d)
	if !valid {
		writeValidation(w, map[string]string{"decision": "must be WATCH, PASS or SCHEDULE"})
		return
	}
	if d == store.DecisionSchedule && req.ScheduledAt == nil {
		writeValidation(w, map[string]string{"scheduledAt": "required for SCHEDULE"})
		return
	}

	if err := s.store.Decide(r.Context(), id, d, req.ScheduledAt); err != nil {
		if errors.Is(err, store.ErrBadTransition) {
			writeJSON(w, http.StatusConflict, envelope{OK: false, Error: &apiError{
				Code:    engine.CodeValidation,
				Message: err.Error(),
			}})
			return
		}
		writeErr(w, err)
		return
	}

	writeOK(w, map[string]any{"videoId": id, "status": status})
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, engine.FormatMetrics())
}
