// Package admission is the bid-admission orchestrator: rate limiting,
// atomic admission through hotstate's primitive P1 (with lazy hydration on
// a cache miss), job enqueueing, extension-policy invocation, and fan-out
// publication — ordered so that nothing is persisted or published before
// hotstate has already committed the bid.
package admission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/nexusengine/liveauction/internal/clock"
	"github.com/nexusengine/liveauction/internal/domain"
	"github.com/nexusengine/liveauction/internal/fanout"
	"github.com/nexusengine/liveauction/internal/hotstate"
	"github.com/nexusengine/liveauction/internal/jobs"
	"github.com/nexusengine/liveauction/internal/money"
)

// Scheduler is the only call admission makes toward the Finalization
// Coordinator: "schedule (or re-schedule) finalization for this auction at
// this end time." The Coordinator never calls back into admission — this
// one-directional interface is what breaks the admission/hydration/
// coordinator cycle described in SPEC_FULL.md §9.
type Scheduler interface {
	Schedule(auctionID string, endTime time.Time)
}

// ColdReader is the cold-store read path admission needs for lazy
// hydration. Satisfied by *coldstore.AuctionRepo.
type ColdReader interface {
	GetByID(ctx context.Context, id string) (domain.Auction, error)
}

// JobEnqueuer is the write-down path admission needs. Satisfied by
// *jobs.Runner.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, job jobs.Job) bool
}

// Publisher is the fan-out path admission needs. Satisfied by *fanout.Bus.
type Publisher interface {
	PublishBidPlaced(ctx context.Context, ev fanout.BidPlacedEvent) error
}

// RateLimiter gates one bid per bidder per interval using put-if-absent
// semantics. Satisfied by a thin wrapper over *redis.Client's SetNX.
type RateLimiter interface {
	// Allow attempts to acquire the token for key with the given TTL,
	// reporting whether the caller won it.
	Allow(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Recorder is the metrics surface admission emits to. Satisfied by
// *metrics.Metrics. May be nil to disable metrics (used in tests).
type Recorder interface {
	RecordBidRejected(code string)
	RecordExtension(auctionID string)
}

// BidRequest is the inbound shape from the Gateway.
type BidRequest struct {
	AuctionID string
	BidderID  string
	Amount    money.Amount
	IPAddress string
	UserAgent string
}

// BidOutcome is returned to the Gateway for unicasting to the originator.
type BidOutcome struct {
	Result    hotstate.PlaceBidResult
	Extended  bool
	Extension hotstate.ExtendResult
}

// Service orchestrates the admission path.
type Service struct {
	hot       *hotstate.Store
	cold      ColdReader
	runner    JobEnqueuer
	bus       Publisher
	scheduler Scheduler
	rate      RateLimiter
	metrics   Recorder
	clk       clock.Clock
	log       zerolog.Logger

	rateLimitPerSec int
	extThresholdSec int
	extDurationSec  int
	retention       time.Duration
}

// Config bundles the tunables consumed by Service.
type Config struct {
	RateLimitPerSec int
	ExtThresholdSec int
	ExtDurationSec  int
	Retention       time.Duration
}

// New builds an admission Service. rate and metrics may both be nil to
// disable rate limiting / metrics (used in tests).
func New(hot *hotstate.Store, cold ColdReader, runner JobEnqueuer, bus Publisher, scheduler Scheduler, rate RateLimiter, metrics Recorder, clk clock.Clock, log zerolog.Logger, cfg Config) *Service {
	return &Service{
		hot:             hot,
		cold:            cold,
		runner:          runner,
		bus:             bus,
		scheduler:       scheduler,
		rate:            rate,
		metrics:         metrics,
		clk:             clk,
		log:             log.With().Str("component", "admission").Logger(),
		rateLimitPerSec: cfg.RateLimitPerSec,
		extThresholdSec: cfg.ExtThresholdSec,
		extDurationSec:  cfg.ExtDurationSec,
		retention:       cfg.Retention,
	}
}

// PlaceBid runs the full admission path for one bid request.
func (s *Service) PlaceBid(ctx context.Context, req BidRequest) (BidOutcome, error) {
	if err := s.rateGate(ctx, req.BidderID); err != nil {
		s.recordRejection(err)
		return BidOutcome{}, err
	}

	serverTime := s.clk.Now()
	result, err := s.hot.PlaceBid(ctx, req.AuctionID, req.BidderID, req.Amount, serverTime, money.Zero)
	if admErr, ok := err.(*domain.AdmissionError); ok && admErr.Code == domain.ErrNotFound {
		if hydrateErr := s.lazyHydrate(ctx, req.AuctionID); hydrateErr != nil {
			s.recordRejection(hydrateErr)
			return BidOutcome{}, hydrateErr
		}
		result, err = s.hot.PlaceBid(ctx, req.AuctionID, req.BidderID, req.Amount, serverTime, money.Zero)
	}
	if err != nil {
		s.recordRejection(err)
		return BidOutcome{}, err
	}

	// Never publish or persist before this point: P1 has already returned OK.
	bidTime := serverTime
	s.enqueuePersistBid(ctx, req, result, bidTime)
	s.enqueueMirrorUpdate(ctx, req.AuctionID, result, serverTime)

	extResult, extended := s.evaluateExtension(ctx, req.AuctionID, serverTime)
	if extended {
		s.enqueueMirrorUpdateEndTime(ctx, req.AuctionID, extResult.NewEndTime)
		s.scheduler.Schedule(req.AuctionID, extResult.NewEndTime)
		if s.metrics != nil {
			s.metrics.RecordExtension(req.AuctionID)
		}
	}

	s.publishBidPlaced(ctx, req, result, extended, extResult)

	return BidOutcome{Result: result, Extended: extended, Extension: extResult}, nil
}

// recordRejection labels the rejection by its admission error code, or
// "INTERNAL" for an error that didn't originate as one (e.g. a coldstore
// failure during lazy hydration).
func (s *Service) recordRejection(err error) {
	if s.metrics == nil {
		return
	}
	var admErr *domain.AdmissionError
	if errors.As(err, &admErr) {
		s.metrics.RecordBidRejected(string(admErr.Code))
		return
	}
	s.metrics.RecordBidRejected("INTERNAL")
}

// CancelStub is the admin-path stand-in for cancelling an auction. No
// operation in this repo drives an auction into StatusCancelled, and this
// stub does not either: it changes no state and always rejects with the
// same NOT_ACTIVE error a bid against a non-active auction gets.
func (s *Service) CancelStub(ctx context.Context, auctionID string) error {
	return domain.NewError(domain.ErrNotActive, "cancellation is not a supported operation")
}

func (s *Service) rateGate(ctx context.Context, bidderID string) error {
	if s.rate == nil {
		return nil
	}
	key := fmt.Sprintf("ratelimit:bid:%s", bidderID)
	ttl := time.Second
	if s.rateLimitPerSec > 0 {
		ttl = time.Second / time.Duration(s.rateLimitPerSec)
	}
	ok, err := s.rate.Allow(ctx, key, ttl)
	if err != nil {
		return fmt.Errorf("admission: rate gate: %w", err)
	}
	if !ok {
		return domain.NewError(domain.ErrRateLimitExceeded, "one bid per second per bidder")
	}
	return nil
}

// lazyHydrate loads an auction from coldstore and installs it into
// hotstate, then schedules its finalization. Exactly one caller wins the
// install race: Store.Install is put-if-absent, so a second caller's
// Install leaves the first caller's actor, and any bid already committed on
// it, in place. Every caller schedules finalization at the cold row's end
// time.
func (s *Service) lazyHydrate(ctx context.Context, auctionID string) error {
	auc, err := s.cold.GetByID(ctx, auctionID)
	if err != nil {
		return domain.NewError(domain.ErrNotFound, "auction not found in cold store")
	}
	if err := s.hot.Install(ctx, auc, s.retention); err != nil {
		return fmt.Errorf("admission: hydrating %s: %w", auctionID, err)
	}
	if auc.Status == domain.StatusActive {
		s.scheduler.Schedule(auctionID, auc.EndTime)
	}
	return nil
}

func (s *Service) evaluateExtension(ctx context.Context, auctionID string, serverTime time.Time) (hotstate.ExtendResult, bool) {
	res, err := s.hot.Extend(ctx, auctionID, serverTime, s.extThresholdSec, s.extDurationSec)
	if err != nil {
		var admErr *domain.AdmissionError
		if !errors.As(err, &admErr) {
			s.log.Warn().Err(err).Str("auction_id", auctionID).Msg("extension evaluation failed")
		}
		return hotstate.ExtendResult{}, false
	}
	return res, res.Extended
}

func (s *Service) enqueuePersistBid(ctx context.Context, req BidRequest, result hotstate.PlaceBidResult, bidTime time.Time) {
	micros := fmt.Sprintf("%d", bidTime.UnixMicro())
	job := jobs.Job{
		Kind: jobs.KindPersistBid,
		Key:  jobs.PersistBidKey(req.AuctionID, req.BidderID, micros),
		Payload: jobs.PersistBidPayload{
			AuctionID:   req.AuctionID,
			BidderID:    req.BidderID,
			Amount:      req.Amount.String(),
			ServerTime:  bidTime.UTC().Format(time.RFC3339Nano),
			PreviousBid: result.PreviousBid.String(),
			TotalBids:   result.TotalBids,
			IPAddress:   req.IPAddress,
			UserAgent:   req.UserAgent,
		},
	}
	s.runner.Enqueue(ctx, job)
}

func (s *Service) enqueueMirrorUpdate(ctx context.Context, auctionID string, result hotstate.PlaceBidResult, serverTime time.Time) {
	// EndTime is deliberately left unset: a plain bid never changes the
	// auction's close time, and updateMirrorHandler only touches end_time
	// when the payload carries one. Setting it to serverTime here would
	// drag end_time backwards to the bid's admission time and could race
	// an in-flight extension's mirror update.
	job := jobs.Job{
		Kind: jobs.KindUpdateAuctionMirror,
		Key:  fmt.Sprintf("mirror-%s-%d", auctionID, result.TotalBids),
		Payload: jobs.UpdateAuctionMirrorPayload{
			AuctionID:       auctionID,
			CurrentBid:      result.CurrentBid.String(),
			HighestBidderID: result.HighestBidderID,
			TotalBids:       result.TotalBids,
		},
	}
	s.runner.Enqueue(ctx, job)
}

func (s *Service) enqueueMirrorUpdateEndTime(ctx context.Context, auctionID string, newEndTime time.Time) {
	job := jobs.Job{
		Kind: jobs.KindUpdateAuctionMirror,
		Key:  fmt.Sprintf("mirror-extend-%s-%d", auctionID, newEndTime.Unix()),
		Payload: jobs.UpdateAuctionMirrorPayload{
			AuctionID: auctionID,
			EndTime:   newEndTime.UTC().Format(time.RFC3339Nano),
		},
	}
	s.runner.Enqueue(ctx, job)
}

func (s *Service) publishBidPlaced(ctx context.Context, req BidRequest, result hotstate.PlaceBidResult, extended bool, ext hotstate.ExtendResult) {
	ev := fanout.BidPlacedEvent{
		AuctionID: req.AuctionID,
		Bidder:    req.BidderID,
		Amount:    result.CurrentBid,
		TotalBids: result.TotalBids,
		Extended:  extended,
	}
	if extended {
		ev.Extension = &fanout.ExtensionData{
			OldEndTime: ext.OldEndTime.UTC().Format(time.RFC3339Nano),
			NewEndTime: ext.NewEndTime.UTC().Format(time.RFC3339Nano),
			ExtendedBy: int64(ext.ExtendedBy.Seconds()),
		}
	}
	if err := s.bus.PublishBidPlaced(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("auction_id", req.AuctionID).Msg("failed to publish bid-placed event")
	}
}
