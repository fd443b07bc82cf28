package gateway

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/nexusengine/liveauction/internal/admission"
	"github.com/nexusengine/liveauction/internal/domain"
	"github.com/nexusengine/liveauction/internal/fanout"
	"github.com/nexusengine/liveauction/internal/money"
)

func tooLowError() error {
	return domain.NewError(domain.ErrTooLow, "bid does not meet the minimum")
}

func rawBidPayload(t *testing.T, auctionID, amount string) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(bidPlacedPayload{AuctionID: auctionID, Amount: money.MustParseAmount(amount)})
	if err != nil {
		t.Fatal(err)
	}
	return data
}

type fakeAdmitter struct {
	outcome admission.BidOutcome
	err     error
}

func (f *fakeAdmitter) PlaceBid(ctx context.Context, req admission.BidRequest) (admission.BidOutcome, error) {
	return f.outcome, f.err
}

func newTestClient(hub *Hub) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		ID:       "c1",
		Identity: Identity{UserID: "u1"},
		hub:      hub,
		log:      zerolog.Nop(),
		send:     make(chan outboundEnvelope, 8),
		rooms:    make(map[string]bool),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func drain(t *testing.T, ch chan outboundEnvelope) outboundEnvelope {
	t.Helper()
	select {
	case env := <-ch:
		return env
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for outbound message")
		return outboundEnvelope{}
	}
}

func TestHub_JoinReceivesRoomBroadcast(t *testing.T) {
	hub := NewHub(context.Background(), &fakeAdmitter{}, zerolog.Nop())
	hub.Start()
	defer hub.Stop()

	c := newTestClient(hub)
	hub.Register(c)
	hub.Join(c, "A")
	time.Sleep(20 * time.Millisecond) // let the event loop process the join

	hub.BroadcastToRoom("A", OutboundUpdateBid, updateBidPayload{AuctionID: "A"})
	env := drain(t, c.send)
	if env.Type != OutboundUpdateBid {
		t.Fatalf("Type = %q, want %q", env.Type, OutboundUpdateBid)
	}
}

func TestHub_LeaveStopsRoomBroadcast(t *testing.T) {
	hub := NewHub(context.Background(), &fakeAdmitter{}, zerolog.Nop())
	hub.Start()
	defer hub.Stop()

	c := newTestClient(hub)
	hub.Register(c)
	hub.Join(c, "A")
	hub.Leave(c, "A")

	// Give the single-goroutine event loop time to process Leave before
	// the broadcast that should now miss this client.
	time.Sleep(50 * time.Millisecond)
	hub.BroadcastToRoom("A", OutboundUpdateBid, updateBidPayload{AuctionID: "A"})

	select {
	case env := <-c.send:
		t.Fatalf("expected no message after leaving room, got %+v", env)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_UnicastDoesNotReachOtherClients(t *testing.T) {
	hub := NewHub(context.Background(), &fakeAdmitter{}, zerolog.Nop())
	hub.Start()
	defer hub.Stop()

	a := newTestClient(hub)
	b := newTestClient(hub)
	hub.Register(a)
	hub.Register(b)
	hub.Join(a, "A")
	hub.Join(b, "A")

	hub.Unicast(a, OutboundBidAccepted, bidAcceptedPayload{AuctionID: "A"})
	env := drain(t, a.send)
	if env.Type != OutboundBidAccepted {
		t.Fatalf("Type = %q, want %q", env.Type, OutboundBidAccepted)
	}

	select {
	case got := <-b.send:
		t.Fatalf("unicast leaked to other client: %+v", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHandleBid_RejectedSendsBidRejected(t *testing.T) {
	hub := NewHub(context.Background(), &fakeAdmitter{}, zerolog.Nop())
	hub.Start()
	defer hub.Stop()

	c := newTestClient(hub)
	hub.Register(c)

	admit := &fakeAdmitter{err: tooLowError()}
	c.handleBid(admit, rawBidPayload(t, "A", "10.00"))

	env := drain(t, c.send)
	if env.Type != OutboundBidRejected {
		t.Fatalf("Type = %q, want %q", env.Type, OutboundBidRejected)
	}
}

func TestHandleBid_AcceptedSendsBidAccepted(t *testing.T) {
	hub := NewHub(context.Background(), &fakeAdmitter{}, zerolog.Nop())
	hub.Start()
	defer hub.Stop()

	c := newTestClient(hub)
	hub.Register(c)

	admit := &fakeAdmitter{outcome: admission.BidOutcome{}}
	c.handleBid(admit, rawBidPayload(t, "A", "10.00"))

	env := drain(t, c.send)
	if env.Type != OutboundBidAccepted {
		t.Fatalf("Type = %q, want %q", env.Type, OutboundBidAccepted)
	}
}

func TestFanoutLoop_BroadcastsUpdateBidAndExtension(t *testing.T) {
	hub := NewHub(context.Background(), &fakeAdmitter{}, zerolog.Nop())
	hub.Start()
	defer hub.Stop()

	c := newTestClient(hub)
	hub.Register(c)
	hub.Join(c, "A")

	bidCh := make(chan fanout.BidPlacedEvent, 1)
	endedCh := make(chan fanout.AuctionEndedEvent, 1)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.FanoutLoop(ctx, bidCh, endedCh)

	bidCh <- fanout.BidPlacedEvent{
		AuctionID: "A",
		Amount:    money.MustParseAmount("10.00"),
		Extended:  true,
		Extension: &fanout.ExtensionData{OldEndTime: "t0", NewEndTime: "t1", ExtendedBy: 30},
	}

	first := drain(t, c.send)
	if first.Type != OutboundUpdateBid {
		t.Fatalf("first Type = %q, want %q", first.Type, OutboundUpdateBid)
	}
	second := drain(t, c.send)
	if second.Type != OutboundAuctionExtended {
		t.Fatalf("second Type = %q, want %q", second.Type, OutboundAuctionExtended)
	}
	cancel()
}
