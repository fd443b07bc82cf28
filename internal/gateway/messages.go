package gateway

import (
	"encoding/json"

	"github.com/nexusengine/liveauction/internal/money"
)

// Inbound message types, per SPEC_FULL.md §6.
const (
	InboundJoin  = "auction:join"
	InboundLeave = "auction:leave"
	InboundBid   = "BID_PLACED"
)

// Outbound message types, per SPEC_FULL.md §6.
const (
	OutboundJoined          = "auction:joined"
	OutboundError           = "error"
	OutboundServerTime      = "SERVER_TIME"
	OutboundBidAccepted     = "BID_ACCEPTED"
	OutboundBidRejected     = "BID_REJECTED"
	OutboundUpdateBid       = "UPDATE_BID"
	OutboundAuctionExtended = "AUCTION_EXTENDED"
	OutboundAuctionEnded    = "AUCTION_ENDED"
)

// inboundEnvelope is the wire shape every inbound client frame is parsed
// into before type-specific decoding of Payload.
type inboundEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// outboundEnvelope is the wire shape of every frame sent to a client.
type outboundEnvelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type joinPayload struct {
	AuctionID string `json:"auctionId"`
}

type bidPlacedPayload struct {
	AuctionID string       `json:"auctionId"`
	Amount    money.Amount `json:"amount"`
}

type errorPayload struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type bidSummary struct {
	Amount         money.Amount `json:"amount"`
	BidderID       string       `json:"bidderId"`
	BidderUsername string       `json:"bidderUsername,omitempty"`
	Timestamp      string       `json:"timestamp"`
	TotalBids      int          `json:"totalBids"`
}

type bidAcceptedPayload struct {
	AuctionID string     `json:"auctionId"`
	Bid       bidSummary `json:"bid"`
}

type bidRejectedPayload struct {
	AuctionID string       `json:"auctionId"`
	Error     errorPayload `json:"error"`
}

type updateBidPayload struct {
	AuctionID string     `json:"auctionId"`
	Bid       bidSummary `json:"bid"`
}

type auctionExtendedPayload struct {
	AuctionID  string `json:"auctionId"`
	OldEndTime string `json:"oldEndTime"`
	NewEndTime string `json:"newEndTime"`
	ExtendedBy int64  `json:"extendedBy"`
}

type auctionEndedPayload struct {
	AuctionID  string        `json:"auctionId"`
	WinnerID   *string       `json:"winnerId"`
	WinningBid *money.Amount `json:"winningBid"`
	TotalBids  int           `json:"totalBids"`
	EndTime    string        `json:"endTime"`
}

type serverTimePayload struct {
	ServerTime int64 `json:"serverTime"`
}
