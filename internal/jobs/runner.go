// Package jobs is the background job runner: three in-memory queues
// (persist-bid, update-auction-mirror, finalize-auction), each retried with
// exponential backoff. Queued jobs live in buffered channels and are not
// persisted; jobs still queued when the process exits are lost. Jobs are
// write-down pipelines only — they never make authorization or admission
// decisions.
package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// Handler processes one job. A returned error triggers a retry with
// backoff, up to the queue's configured attempt limit.
type Handler func(ctx context.Context, job Job) error

// QueueConfig configures one named queue's retry behavior.
type QueueConfig struct {
	Name        Kind
	MaxAttempts uint64
	BackoffBase time.Duration
	Workers     int
	Handler     Handler
}

type queue struct {
	cfg     QueueConfig
	jobs    chan Job
	pending sync.Map // Key -> struct{}, coalesces redelivery of identical jobs
}

// Runner owns the set of configured queues and their worker goroutines.
type Runner struct {
	log    zerolog.Logger
	queues map[Kind]*queue
	wg     sync.WaitGroup
}

// NewRunner builds a Runner from a list of queue configurations.
func NewRunner(log zerolog.Logger, configs ...QueueConfig) *Runner {
	r := &Runner{
		log:    log.With().Str("component", "jobs").Logger(),
		queues: make(map[Kind]*queue, len(configs)),
	}
	for _, cfg := range configs {
		if cfg.Workers <= 0 {
			cfg.Workers = 1
		}
		r.queues[cfg.Name] = &queue{cfg: cfg, jobs: make(chan Job, 256)}
	}
	return r
}

// Start launches the worker goroutines for every configured queue. Call
// once, before Enqueue is used.
func (r *Runner) Start(ctx context.Context) {
	for _, q := range r.queues {
		for i := 0; i < q.cfg.Workers; i++ {
			r.wg.Add(1)
			go r.worker(ctx, q)
		}
	}
}

// Stop waits for in-flight jobs to drain after ctx is cancelled.
func (r *Runner) Stop() {
	r.wg.Wait()
}

// Enqueue submits a job to its named queue. If a job with the same Key is
// already pending or in flight, this enqueue is coalesced (dropped) rather
// than run twice — the natural-key dedup described in SPEC_FULL.md §4.8.
func (r *Runner) Enqueue(ctx context.Context, job Job) bool {
	q, ok := r.queues[job.Kind]
	if !ok {
		r.log.Error().Str("kind", string(job.Kind)).Msg("enqueue to unknown queue kind")
		return false
	}
	if _, loaded := q.pending.LoadOrStore(job.Key, struct{}{}); loaded {
		return false
	}
	select {
	case q.jobs <- job:
		return true
	case <-ctx.Done():
		q.pending.Delete(job.Key)
		return false
	}
}

func (r *Runner) worker(ctx context.Context, q *queue) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-q.jobs:
			if !ok {
				return
			}
			r.run(ctx, q, job)
			q.pending.Delete(job.Key)
		}
	}
}

func (r *Runner) run(ctx context.Context, q *queue, job Job) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = q.cfg.BackoffBase
	policy := backoff.WithMaxRetries(bo, q.cfg.MaxAttempts-1)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		return q.cfg.Handler(ctx, job)
	}, backoff.WithContext(policy, ctx))

	if err != nil {
		r.log.Error().
			Err(err).
			Str("queue", string(job.Kind)).
			Str("key", job.Key).
			Int("attempts", attempt).
			Msg("job failed permanently")
		return
	}
	r.log.Debug().
		Str("queue", string(job.Kind)).
		Str("key", job.Key).
		Int("attempts", attempt).
		Msg("job completed")
}
