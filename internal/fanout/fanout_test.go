package fanout

import (
	"encoding/json"
	"testing"

	"github.com/nexusengine/liveauction/internal/money"
)

func TestBidPlacedEvent_JSONShape(t *testing.T) {
	ev := BidPlacedEvent{
		AuctionID: "A",
		Bidder:    "u1",
		Amount:    money.MustParseAmount("105.00"),
		TotalBids: 2,
		Extended:  true,
		Extension: &ExtensionData{
			OldEndTime: "2026-01-01T00:00:00Z",
			NewEndTime: "2026-01-01T00:00:30Z",
			ExtendedBy: 30,
		},
	}
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}

	var decoded BidPlacedEvent
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Amount.String() != "105.00" {
		t.Fatalf("Amount round-trip = %s, want 105.00", decoded.Amount)
	}
	if !decoded.Extended || decoded.Extension == nil || decoded.Extension.ExtendedBy != 30 {
		t.Fatalf("extension data did not round-trip: %+v", decoded)
	}
}

func TestAuctionEndedEvent_JSONShape_NoWinner(t *testing.T) {
	ev := AuctionEndedEvent{
		AuctionID:  "A",
		WinningBid: money.Zero,
		TotalBids:  0,
		EndTime:    "2026-01-01T00:00:00Z",
	}
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	var decoded AuctionEndedEvent
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.WinnerID != "" {
		t.Fatalf("WinnerID = %q, want empty for a no-winner auction", decoded.WinnerID)
	}
}
