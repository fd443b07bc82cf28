// Package finalize is the Finalization Coordinator: exactly-once-observable
// end-of-auction settlement driven by two independent triggers (a
// scheduled timer and hot-state expiry notification) that both funnel into
// hotstate's primitive P3. Whichever trigger calls P3 first wins; every
// other caller gets ALREADY_FINAL and is a no-op.
package finalize

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nexusengine/liveauction/internal/clock"
	"github.com/nexusengine/liveauction/internal/domain"
	"github.com/nexusengine/liveauction/internal/fanout"
	"github.com/nexusengine/liveauction/internal/hotstate"
	"github.com/nexusengine/liveauction/internal/jobs"
)

// ColdWriter is the cold-store surface the Coordinator needs: the
// finalization mirror write and the startup recovery read. Satisfied by
// *coldstore.AuctionRepo.
type ColdWriter interface {
	MarkEnded(ctx context.Context, a domain.Auction) error
	ListActive(ctx context.Context) ([]domain.Auction, error)
}

// Publisher is the fan-out surface the Coordinator needs. Satisfied by
// *fanout.Bus.
type Publisher interface {
	PublishAuctionEnded(ctx context.Context, ev fanout.AuctionEndedEvent) error
}

// Recorder is the metrics surface the Coordinator emits to. Satisfied by
// *metrics.Metrics. May be nil to disable metrics (used in tests).
type Recorder interface {
	RecordFinalize(trigger string, latency time.Duration)
}

const (
	// TriggerTimer labels a finalization driven by Trigger A (the
	// scheduled per-auction timer).
	TriggerTimer = "timer"
	// TriggerExpiry labels a finalization driven by Trigger B (hot-state
	// keyspace-expiry notification).
	TriggerExpiry = "expiry"
	// TriggerRecovery labels a finalization performed immediately at
	// startup recovery, for an auction whose endTime had already passed.
	TriggerRecovery = "recovery"
)

// Coordinator owns Trigger A's timers and reacts to Trigger B's expiry
// notifications, both calling hotstate's P3.
type Coordinator struct {
	hot     *hotstate.Store
	cold    ColdWriter
	bus     Publisher
	runner  *jobs.Runner
	metrics Recorder
	clk     clock.Clock
	log     zerolog.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// New builds a Coordinator. metrics may be nil to disable metrics (used in
// tests).
func New(hot *hotstate.Store, cold ColdWriter, bus Publisher, runner *jobs.Runner, metrics Recorder, clk clock.Clock, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		hot:     hot,
		cold:    cold,
		bus:     bus,
		runner:  runner,
		metrics: metrics,
		clk:     clk,
		log:     log.With().Str("component", "finalize").Logger(),
		timers:  make(map[string]*time.Timer),
	}
}

// Schedule implements admission.Scheduler: it (re)arms Trigger A's timer
// to fire at endTime, replacing any previously scheduled timer for this
// auction (used on extension).
func (c *Coordinator) Schedule(auctionID string, endTime time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.timers[auctionID]; ok {
		old.Stop()
	}

	delay := endTime.Sub(c.clk.Now())
	if delay < 0 {
		delay = 0
	}
	c.timers[auctionID] = time.AfterFunc(delay, func() {
		ctx := context.Background()
		c.runner.Enqueue(ctx, jobs.Job{
			Kind: jobs.KindFinalizeAuction,
			Key:  jobs.FinalizeKey(auctionID),
			Payload: jobs.FinalizeAuctionPayload{
				AuctionID:  auctionID,
				ServerTime: endTime.UTC().Format(time.RFC3339Nano),
				Trigger:    TriggerTimer,
			},
		})
	})
}

// WatchExpirations runs Trigger B: it consumes hotstate's expiry
// notifications and enqueues a finalize job for each one. Call once, in a
// goroutine, for the process lifetime.
func (c *Coordinator) WatchExpirations(ctx context.Context) error {
	expired, err := c.hot.WatchExpirations(ctx)
	if err != nil {
		return fmt.Errorf("finalize: watching expirations: %w", err)
	}
	for auctionID := range expired {
		c.runner.Enqueue(ctx, jobs.Job{
			Kind: jobs.KindFinalizeAuction,
			Key:  jobs.FinalizeKey(auctionID),
			Payload: jobs.FinalizeAuctionPayload{
				AuctionID: auctionID,
				Trigger:   TriggerExpiry,
			},
		})
	}
	return nil
}

// Finalize invokes P3 and, on success, mirrors the outcome to coldstore and
// publishes auction-ended. ALREADY_FINAL from a racing trigger is treated
// as success (it is a no-op by construction). trigger labels which path
// (TriggerTimer, TriggerExpiry, TriggerRecovery) drove this call, for
// metrics only.
func (c *Coordinator) Finalize(ctx context.Context, auctionID, trigger string) error {
	start := c.clk.Now()
	result, err := c.hot.Finalize(ctx, auctionID, start)
	if admErr, ok := err.(*domain.AdmissionError); ok && admErr.Code == domain.ErrAlreadyFinal {
		return nil
	}
	if admErr, ok := err.(*domain.AdmissionError); ok && admErr.Code == domain.ErrNotFound {
		// The auction was never hot (e.g. restart raced recovery); recovery
		// will re-hydrate and re-schedule it, nothing more to do here.
		return nil
	}
	if err != nil {
		return fmt.Errorf("finalize: P3 for %s: %w", auctionID, err)
	}

	mirror := domain.Auction{
		ID:              auctionID,
		CurrentBid:      result.WinningBid,
		HighestBidderID: result.WinnerID,
		TotalBids:       result.TotalBids,
		EndTime:         result.EndTime,
		UpdatedAt:       c.clk.Now(),
	}
	if err := c.cold.MarkEnded(ctx, mirror); err != nil {
		return fmt.Errorf("finalize: mirroring end of %s: %w", auctionID, err)
	}

	if c.metrics != nil {
		c.metrics.RecordFinalize(trigger, c.clk.Now().Sub(start))
	}

	ev := fanout.AuctionEndedEvent{
		AuctionID:  auctionID,
		WinnerID:   result.WinnerID,
		WinningBid: result.WinningBid,
		TotalBids:  result.TotalBids,
		EndTime:    result.EndTime.UTC().Format(time.RFC3339Nano),
	}
	if err := c.bus.PublishAuctionEnded(ctx, ev); err != nil {
		c.log.Warn().Err(err).Str("auction_id", auctionID).Msg("failed to publish auction-ended event")
	}
	return nil
}

// Recover runs at startup: load every status=active auction from
// coldstore, re-hydrate it into hotstate if missing, and re-schedule its
// timer. Auctions whose endTime has already passed are finalized
// immediately rather than scheduled.
func (c *Coordinator) Recover(ctx context.Context, retention time.Duration) error {
	active, err := c.cold.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("finalize: loading active auctions: %w", err)
	}
	now := c.clk.Now()
	for _, auc := range active {
		if _, ok := c.hot.Get(ctx, auc.ID); !ok {
			if err := c.hot.Install(ctx, auc, retention); err != nil {
				c.log.Error().Err(err).Str("auction_id", auc.ID).Msg("recovery: failed to re-hydrate auction")
				continue
			}
		}
		if !now.Before(auc.EndTime) {
			if err := c.Finalize(ctx, auc.ID, TriggerRecovery); err != nil {
				c.log.Error().Err(err).Str("auction_id", auc.ID).Msg("recovery: immediate finalize failed")
			}
			continue
		}
		c.Schedule(auc.ID, auc.EndTime)
	}
	return nil
}
