// Package domain holds the shared value types for the bidding engine:
// auctions, bids, and the closed set of admission error kinds. Every other
// package (hotstate, coldstore, admission, fanout, gateway, jobs) imports
// this package rather than redeclaring these shapes.
package domain

import (
	"time"

	"github.com/nexusengine/liveauction/internal/money"
)

// Status is the auction lifecycle state. Terminal once Ended or Cancelled.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusScheduled Status = "scheduled"
	StatusActive    Status = "active"
	StatusEnded     Status = "ended"
	StatusCancelled Status = "cancelled"
)

// Auction is the mutable-plus-immutable auction record. Money fields use
// internal/money.Amount for exact decimal arithmetic.
type Auction struct {
	ID              string
	SellerID        string
	Title           string
	Description     string
	Category        string
	StartingPrice   money.Amount
	BidIncrement    money.Amount
	ReservePrice    *money.Amount
	CurrentBid      money.Amount
	HighestBidderID string // empty means unset
	TotalBids       int
	StartTime       time.Time
	OriginalEndTime time.Time
	EndTime         time.Time
	Status          Status
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Bid is an append-only cold record; every accepted bid produces exactly
// one of these.
type Bid struct {
	ID          string
	AuctionID   string
	BidderID    string
	Amount      money.Amount
	BidTime     time.Time
	PreviousBid money.Amount
	IsWinning   bool
	IPAddress   string
	UserAgent   string
}

// AuctionSummary is the read-only catalogue projection described in
// SPEC_FULL.md §3 — produced by coldstore for the external catalogue
// surface, not a public contract of this repo.
type AuctionSummary struct {
	ID         string
	Title      string
	CurrentBid money.Amount
	EndTime    time.Time
	Status     Status
	TotalBids  int
}
