package worker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anatolykoptev/go_digest/internal/engine"
	"github.com/anatolykoptev/go_digest/internal/queue"
	"github.com/anatolykoptev/go_digest/internal/store"
	"github.com/anatolykoptev/go_digest/internal/summarize"
)

// memStore is a minimal in-memory Store for worker tests.
type memStore struct {
	status     map[int64]store.VideoStatus
	failReason map[int64]string
	summaries  map[int64]summarize.SummaryContent
}

func newMemStore() *memStore {
	return &memStore{
		status:     map[int64]store.VideoStatus{},
		failReason: map[int64]string{},
		summaries:  map[int64]summarize.SummaryContent{},
	}
}

func (m *memStore) CreateVideo(_ context.Context, _, _ string) (store.Video, error) {
	return store.Video{}, nil
}

func (m *memStore) GetVideo(_ context.Context, id int64) (store.Video, error) {
	st, ok := m.status[id]
	if !ok {
		return store.Video{}, store.ErrNoRow
	}
	return store.Video{ID: id, Status: st, FailReason: m.failReason[id]}, nil
}

func (m *memStore) SetTranscript(_ context.Context, _ int64, _, _, _ string) error { return nil }

func (m *memStore) SaveSummary(_ context.Context, videoID int64, content summarize.SummaryContent) error {
	if m.status[videoID] != store.StatusPending {
		return store.ErrBadTransition
	}
	m.summaries[videoID] = content
	m.status[videoID] = store.StatusReady
	return nil
}

func (m *memStore) MarkFailed(_ context.Context, videoID int64, reason string) error {
	if m.status[videoID] != store.StatusPending {
		return store.ErrBadTransition
	}
	m.status[videoID] = store.StatusFailed
	m.failReason[videoID] = reason
	return nil
}

func (m *memStore) ResetForRetry(_ context.Context, videoID int64) error {
	if m.status[videoID] != store.StatusFailed {
		return store.ErrBadTransition
	}
	m.status[videoID] = store.StatusPending
	m.failReason[videoID] = ""
	return nil
}

func (m *memStore) Decide(_ context.Context, _ int64, _ store.Decision, _ *time.Time) error {
	return nil
}

func (m *memStore) GetSummary(_ context.Context, videoID int64) (store.Summary, error) {
	content, ok := m.summaries[videoID]
	if !ok {
		return store.Summary{}, store.ErrNoRow
	}
	return store.Summary{VideoID: videoID, Content: content}, nil
}

func (m *memStore) Close() error { return nil }

const digestJSON = `{
	"bullets": ["요점 하나"],
	"evidence": [{"tSec": 30, "label": "근거"}],
	"decisionHint": "watch",
	"categoryLabel": "tech",
	"outputLanguage": "ko"
}`

func newDigestProvider(t *testing.T, ok bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error": "provider down"}`))
			return
		}
		body, _ := json.Marshal(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": digestJSON}},
			},
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func initWorkerEngine(t *testing.T) {
	t.Helper()
	summarize.SetCallRate(1000, 1000)
	engine.Init(engine.Config{
		ChunkMaxChars: 8000,
		MaxChunks:     12,
		Development:   true,
		HTTPClient:    &http.Client{},
	})
}

func localFactory(baseURL string) func(transcript string) summarize.Request {
	return func(transcript string) summarize.Request {
		return summarize.LocalRequest{Text: transcript, BaseURL: baseURL}
	}
}

func newTestProcessor(t *testing.T, st store.Store, baseURL string) *Processor {
	t.Helper()
	initWorkerEngine(t)
	return New(st, nil, WithRequestFactory(localFactory(baseURL)))
}

func TestProcessSuccess(t *testing.T) {
	st := newMemStore()
	st.status[7] = store.StatusPending
	srv := newDigestProvider(t, true)
	p := newTestProcessor(t, st, srv.URL)

	job := queue.Job{ID: "job-1", VideoID: 7, Transcript: "a talk about databases"}
	if err := p.Process(context.Background(), job); err != nil {
		t.Fatal(err)
	}

	if st.status[7] != store.StatusReady {
		t.Errorf("status = %q, want READY", st.status[7])
	}
	sum, err := st.GetSummary(context.Background(), 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(sum.Content.Bullets) != 1 || sum.Content.DecisionHint != "watch" {
		t.Errorf("persisted content: %+v", sum.Content)
	}
}

func TestProcessProviderFailure(t *testing.T) {
	st := newMemStore()
	st.status[8] = store.StatusPending
	srv := newDigestProvider(t, false)
	p := newTestProcessor(t, st, srv.URL)

	job := queue.Job{ID: "job-2", VideoID: 8, Transcript: "a talk about failure"}
	if err := p.Process(context.Background(), job); err == nil {
		t.Fatal("expected an error")
	}

	if st.status[8] != store.StatusFailed {
		t.Fatalf("status = %q, want FAILED", st.status[8])
	}
	if !strings.HasPrefix(st.failReason[8], engine.CodeLLMUnavailable) {
		t.Errorf("fail reason %q does not carry %s", st.failReason[8], engine.CodeLLMUnavailable)
	}
	if _, err := st.GetSummary(context.Background(), 8); err == nil {
		t.Error("failed job must not persist a summary")
	}
}

func TestProcessEmptyTranscript(t *testing.T) {
	st := newMemStore()
	st.status[9] = store.StatusPending
	p := newTestProcessor(t, st, "http://127.0.0.1:1")

	job := queue.Job{ID: "job-3", VideoID: 9}
	if err := p.Process(context.Background(), job); err == nil {
		t.Fatal("expected an error")
	}
	if st.status[9] != store.StatusFailed {
		t.Errorf("status = %q, want FAILED", st.status[9])
	}
}

// chanSource feeds jobs from a channel and blocks like BRPop otherwise.
type chanSource struct {
	jobs chan queue.Job
}

func (s *chanSource) Dequeue(ctx context.Context) (queue.Job, error) {
	select {
	case job := <-s.jobs:
		return job, nil
	case <-ctx.Done():
		return queue.Job{}, ctx.Err()
	}
}

func TestRunDrainsInFlightJobOnShutdown(t *testing.T) {
	st := newMemStore()
	st.status[11] = store.StatusPending
	initWorkerEngine(t)

	started := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		body, _ := json.Marshal(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": digestJSON}},
			},
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}))
	t.Cleanup(srv.Close)

	source := &chanSource{jobs: make(chan queue.Job, 1)}
	source.jobs <- queue.Job{ID: "job-6", VideoID: 11, Transcript: "a talk interrupted by shutdown"}

	p := New(st, source, WithWorkers(1), WithRequestFactory(localFactory(srv.URL)))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	// Shutdown arrives while the provider call is in flight. The job was
	// already consumed from the queue, so it must still run to completion.
	<-started
	cancel()
	close(release)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	if st.status[11] != store.StatusReady {
		t.Errorf("status = %q, want READY (in-flight job lost on shutdown)", st.status[11])
	}
}

// brokenSource fails every dequeue, like an unreachable queue backend.
type brokenSource struct {
	calls atomic.Int64
}

func (s *brokenSource) Dequeue(context.Context) (queue.Job, error) {
	s.calls.Add(1)
	return queue.Job{}, errors.New("connection refused")
}

func TestRunBacksOffOnDequeueError(t *testing.T) {
	st := newMemStore()
	initWorkerEngine(t)

	source := &brokenSource{}
	p := New(st, source, WithWorkers(1))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	// Well inside the backoff window; without one the loop would have spun
	// through thousands of dequeue attempts by now.
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	if n := source.calls.Load(); n != 1 {
		t.Errorf("dequeue attempts = %d, want 1", n)
	}
}

func TestProcessFailureThenRetryPath(t *testing.T) {
	st := newMemStore()
	st.status[10] = store.StatusPending
	bad := newDigestProvider(t, false)
	good := newDigestProvider(t, true)

	p := newTestProcessor(t, st, bad.URL)
	job := queue.Job{ID: "job-4", VideoID: 10, Transcript: "flaky provider"}
	if err := p.Process(context.Background(), job); err == nil {
		t.Fatal("expected first run to fail")
	}

	// Explicit user retry resets the row; a fresh job then succeeds.
	if err := st.ResetForRetry(context.Background(), 10); err != nil {
		t.Fatal(err)
	}
	p2 := newTestProcessor(t, st, good.URL)
	if err := p2.Process(context.Background(), queue.Job{ID: "job-5", VideoID: 10, Transcript: "flaky provider"}); err != nil {
		t.Fatal(err)
	}
	if st.status[10] != store.StatusReady {
		t.Errorf("status = %q, want READY", st.status[10])
	}
}
