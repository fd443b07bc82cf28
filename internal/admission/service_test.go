package admission_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/nexusengine/liveauction/internal/admission"
	"github.com/nexusengine/liveauction/internal/clock"
	"github.com/nexusengine/liveauction/internal/domain"
	"github.com/nexusengine/liveauction/internal/fanout"
	"github.com/nexusengine/liveauction/internal/hotstate"
	"github.com/nexusengine/liveauction/internal/jobs"
	"github.com/nexusengine/liveauction/internal/money"
)

type fakeColdReader struct {
	auction domain.Auction
	found   bool
}

func (f *fakeColdReader) GetByID(ctx context.Context, id string) (domain.Auction, error) {
	if !f.found {
		return domain.Auction{}, domain.NewError(domain.ErrNotFound, "not in cold store")
	}
	return f.auction, nil
}

type fakeEnqueuer struct {
	jobs []jobs.Job
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, job jobs.Job) bool {
	f.jobs = append(f.jobs, job)
	return true
}

type fakePublisher struct {
	events []fanout.BidPlacedEvent
}

func (f *fakePublisher) PublishBidPlaced(ctx context.Context, ev fanout.BidPlacedEvent) error {
	f.events = append(f.events, ev)
	return nil
}

type fakeScheduler struct {
	scheduled map[string]time.Time
}

func (f *fakeScheduler) Schedule(auctionID string, endTime time.Time) {
	if f.scheduled == nil {
		f.scheduled = make(map[string]time.Time)
	}
	f.scheduled[auctionID] = endTime
}

func TestPlaceBid_HappyPath_PersistsAndPublishes(t *testing.T) {
	clk := &clock.Mock{T: time.Unix(900, 0).UTC()}
	hot := hotstate.NewStore(nil, nil, zerolog.Nop())
	auc := domain.Auction{
		ID:            "A",
		SellerID:      "seller-1",
		StartingPrice: money.MustParseAmount("100.00"),
		BidIncrement:  money.MustParseAmount("5.00"),
		CurrentBid:    money.MustParseAmount("100.00"),
		EndTime:       time.Unix(1000, 0).UTC(),
		Status:        domain.StatusActive,
	}
	if err := hot.Install(context.Background(), auc, time.Hour); err != nil {
		t.Fatal(err)
	}

	enq := &fakeEnqueuer{}
	pub := &fakePublisher{}
	sched := &fakeScheduler{}
	svc := admission.New(hot, &fakeColdReader{}, enq, pub, sched, nil, nil, clk, zerolog.Nop(), admission.Config{
		ExtThresholdSec: 30,
		ExtDurationSec:  30,
		Retention:       time.Hour,
	})

	outcome, err := svc.PlaceBid(context.Background(), admission.BidRequest{
		AuctionID: "A",
		BidderID:  "u1",
		Amount:    money.MustParseAmount("100.00"),
	})
	if err != nil {
		t.Fatalf("PlaceBid: %v", err)
	}
	if outcome.Result.TotalBids != 1 {
		t.Errorf("TotalBids = %d, want 1", outcome.Result.TotalBids)
	}
	if len(enq.jobs) != 2 {
		t.Fatalf("expected persist-bid + mirror-update jobs, got %d: %+v", len(enq.jobs), enq.jobs)
	}
	if len(pub.events) != 1 {
		t.Fatalf("expected one published bid-placed event, got %d", len(pub.events))
	}
	if pub.events[0].Extended {
		t.Error("did not expect an extension at serverTime=900 with endTime=1000")
	}
}

func TestPlaceBid_LazyHydration_OnNotFound(t *testing.T) {
	clk := &clock.Mock{T: time.Unix(900, 0).UTC()}
	hot := hotstate.NewStore(nil, nil, zerolog.Nop())
	cold := &fakeColdReader{
		found: true,
		auction: domain.Auction{
			ID:            "E",
			SellerID:      "seller-1",
			StartingPrice: money.MustParseAmount("50.00"),
			BidIncrement:  money.MustParseAmount("5.00"),
			CurrentBid:    money.MustParseAmount("50.00"),
			EndTime:       time.Unix(1000, 0).UTC(),
			Status:        domain.StatusActive,
		},
	}
	enq := &fakeEnqueuer{}
	pub := &fakePublisher{}
	sched := &fakeScheduler{}
	svc := admission.New(hot, cold, enq, pub, sched, nil, nil, clk, zerolog.Nop(), admission.Config{
		ExtThresholdSec: 30,
		ExtDurationSec:  30,
		Retention:       time.Hour,
	})

	outcome, err := svc.PlaceBid(context.Background(), admission.BidRequest{
		AuctionID: "E",
		BidderID:  "u1",
		Amount:    money.MustParseAmount("50.00"),
	})
	if err != nil {
		t.Fatalf("PlaceBid after lazy hydration: %v", err)
	}
	if outcome.Result.TotalBids != 1 {
		t.Errorf("TotalBids = %d, want 1", outcome.Result.TotalBids)
	}
	if _, scheduled := sched.scheduled["E"]; !scheduled {
		t.Error("expected finalization to be scheduled after hydration")
	}
}

func TestPlaceBid_RateLimited(t *testing.T) {
	clk := &clock.Mock{T: time.Unix(900, 0).UTC()}
	hot := hotstate.NewStore(nil, nil, zerolog.Nop())
	svc := admission.New(hot, &fakeColdReader{}, &fakeEnqueuer{}, &fakePublisher{}, &fakeScheduler{}, alwaysDeny{}, nil, clk, zerolog.Nop(), admission.Config{
		RateLimitPerSec: 1,
	})
	_, err := svc.PlaceBid(context.Background(), admission.BidRequest{AuctionID: "A", BidderID: "u1", Amount: money.MustParseAmount("1.00")})
	admErr, ok := err.(*domain.AdmissionError)
	if !ok || admErr.Code != domain.ErrRateLimitExceeded {
		t.Fatalf("expected RATE_LIMIT_EXCEEDED, got %v", err)
	}
}

type alwaysDeny struct{}

func (alwaysDeny) Allow(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return false, nil
}
