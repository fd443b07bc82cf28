package jobs_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/nexusengine/liveauction/internal/jobs"
)

func TestRunner_RetriesUntilSuccess(t *testing.T) {
	var attempts int32
	r := jobs.NewRunner(zerolog.Nop(), jobs.QueueConfig{
		Name:        jobs.KindPersistBid,
		MaxAttempts: 3,
		BackoffBase: time.Millisecond,
		Handler: func(ctx context.Context, job jobs.Job) error {
			n := atomic.AddInt32(&attempts, 1)
			if n < 2 {
				return errors.New("transient failure")
			}
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)

	ok := r.Enqueue(ctx, jobs.Job{Kind: jobs.KindPersistBid, Key: "bid-A-u1-1"})
	if !ok {
		t.Fatal("expected enqueue to succeed")
	}

	deadline := time.After(time.Second)
	for atomic.LoadInt32(&attempts) < 2 {
		select {
		case <-deadline:
			t.Fatal("handler never reached its second attempt")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestRunner_DedupsSameKeyWhilePending(t *testing.T) {
	release := make(chan struct{})
	var calls int32
	r := jobs.NewRunner(zerolog.Nop(), jobs.QueueConfig{
		Name:        jobs.KindFinalizeAuction,
		MaxAttempts: 1,
		BackoffBase: time.Millisecond,
		Handler: func(ctx context.Context, job jobs.Job) error {
			atomic.AddInt32(&calls, 1)
			<-release
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)

	if ok := r.Enqueue(ctx, jobs.Job{Kind: jobs.KindFinalizeAuction, Key: "finalize-A"}); !ok {
		t.Fatal("first enqueue should succeed")
	}
	// Give the worker time to pick up the first job before the duplicate arrives.
	time.Sleep(20 * time.Millisecond)
	if ok := r.Enqueue(ctx, jobs.Job{Kind: jobs.KindFinalizeAuction, Key: "finalize-A"}); ok {
		t.Fatal("duplicate enqueue with the same key should be coalesced")
	}
	close(release)

	time.Sleep(20 * time.Millisecond)
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("handler called %d times, want 1", n)
	}
}
