package hotstate

import (
	"time"

	"github.com/nexusengine/liveauction/internal/domain"
	"github.com/nexusengine/liveauction/internal/money"
)

// PlaceBidResult is the success payload of primitive P1.
type PlaceBidResult struct {
	PreviousBid     money.Amount
	PreviousBidder  string
	TotalBids       int
	CurrentBid      money.Amount
	HighestBidderID string
}

// ExtendResult is the payload of primitive P2, success or not.
type ExtendResult struct {
	Extended     bool
	OldEndTime   time.Time
	NewEndTime   time.Time
	ExtendedBy   time.Duration
	TimeRemaining time.Duration
}

// FinalizeResult is the success payload of primitive P3.
type FinalizeResult struct {
	WinnerID   string // empty means no winner
	WinningBid money.Amount
	TotalBids  int
	EndTime    time.Time
}

func tooLowErr(d domain.TooLowDetails) *domain.AdmissionError {
	return &domain.AdmissionError{
		Code:    domain.ErrTooLow,
		Message: "bid does not meet the minimum",
		Details: d,
	}
}
