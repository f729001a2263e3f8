// Package worker consumes queued summary jobs, drives structured digest
// generation, and persists results through the video status state machine.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/anatolykoptev/go_digest/internal/engine"
	"github.com/anatolykoptev/go_digest/internal/queue"
	"github.com/anatolykoptev/go_digest/internal/store"
	"github.com/anatolykoptev/go_digest/internal/summarize"
)

// JobSource yields jobs to process; satisfied by *queue.Queue.
type JobSource interface {
	Dequeue(ctx context.Context) (queue.Job, error)
}

// Processor turns queued transcripts into persisted summaries.
// All dependencies are injected; the processor owns no connections.
type Processor struct {
	store   store.Store
	source  JobSource
	workers int

	// NewRequest builds the provider request for a background job.
	newRequest func(transcript string) summarize.Request
}

// Option configures a Processor.
type Option func(*Processor)

// WithWorkers sets the number of concurrent worker goroutines.
func WithWorkers(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithRequestFactory overrides how provider requests are built per job.
func WithRequestFactory(f func(transcript string) summarize.Request) Option {
	return func(p *Processor) { p.newRequest = f }
}

// New creates a Processor. The default provider for background jobs is the
// configured cloud LLM.
func New(st store.Store, source JobSource, opts ...Option) *Processor {
	p := &Processor{
		store:   st,
		source:  source,
		workers: 2,
		newRequest: func(transcript string) summarize.Request {
			return summarize.CloudRequest{Text: transcript}
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run starts the worker goroutines and blocks until ctx is canceled and all
// in-flight jobs have drained. Jobs for different videos may be processed
// concurrently; there is no cross-job ordering guarantee.
func (p *Processor) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.loop(ctx, id)
		}(i)
	}
	wg.Wait()
	slog.Info("worker drained", slog.Int("workers", p.workers))
}

// dequeueBackoff throttles the loop when the queue backend is erroring, so
// an unreachable Redis does not turn the worker into a hot loop.
const dequeueBackoff = time.Second

func (p *Processor) loop(ctx context.Context, id int) {
	for {
		job, err := p.source.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("worker: dequeue failed", slog.Int("worker", id), slog.Any("error", err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(dequeueBackoff):
			}
			continue
		}
		// A dequeued job is already consumed from the queue, so shutdown must
		// not abort it mid-flight; the job runs to completion on a context
		// detached from the cancellation signal.
		if err := p.Process(context.WithoutCancel(ctx), job); err != nil {
			slog.Error("worker: job failed",
				slog.Int("worker", id),
				slog.String("job_id", job.ID),
				slog.Int64("video_id", job.VideoID),
				slog.Any("error", err))
		}
	}
}

// Process runs one job to completion: structured digest generation, then the
// atomic summary-upsert + PENDING→READY transition. Any failure marks the
// video FAILED with a reason derived from the error; the failure is never
// silently swallowed. Retry is user-driven, never automatic.
func (p *Processor) Process(ctx context.Context, job queue.Job) error {
	if job.Transcript == "" {
		p.fail(ctx, job, fmt.Errorf("%w: job has an empty transcript", engine.ErrInvalidInput))
		return fmt.Errorf("job %s: empty transcript", job.ID)
	}

	slog.Info("processing job",
		slog.String("job_id", job.ID),
		slog.Int64("video_id", job.VideoID),
		slog.Int("chars", len(job.Transcript)))

	content, err := summarize.Digest(ctx, p.newRequest(job.Transcript))
	if err != nil {
		p.fail(ctx, job, err)
		return fmt.Errorf("job %s: %w", job.ID, err)
	}

	if err := p.store.SaveSummary(ctx, job.VideoID, content); err != nil {
		p.fail(ctx, job, err)
		return fmt.Errorf("job %s: persist: %w", job.ID, err)
	}

	engine.IncrJobProcessed()
	slog.Info("job completed",
		slog.String("job_id", job.ID),
		slog.Int64("video_id", job.VideoID),
		slog.Int("bullets", len(content.Bullets)))
	return nil
}

// fail records the FAILED transition with a machine-readable reason code
// plus the human-readable message.
func (p *Processor) fail(ctx context.Context, job queue.Job, cause error) {
	engine.IncrJobFailed()
	reason := fmt.Sprintf("%s: %v", engine.ErrorCode(cause), cause)
	if err := p.store.MarkFailed(ctx, job.VideoID, reason); err != nil &&
		!errors.Is(err, store.ErrBadTransition) {
		slog.Error("worker: mark failed",
			slog.Int64("video_id", job.VideoID),
			slog.Any("error", err))
	}
}
