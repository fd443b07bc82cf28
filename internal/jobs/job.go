package jobs

import "fmt"

// Kind names one of the three durable queues.
type Kind string

const (
	KindPersistBid          Kind = "persist-bid"
	KindUpdateAuctionMirror Kind = "update-auction-mirror"
	KindFinalizeAuction     Kind = "finalize-auction"
)

// Job is one unit of write-down work. Jobs never make authorization or
// admission decisions — the truth is already committed in hotstate by the
// time a job is enqueued; a job only replays that truth into coldstore or
// invokes finalization.
type Job struct {
	Kind    Kind
	Key     string // natural key; redelivery with the same Key is coalesced
	Payload interface{}
}

// PersistBidPayload is the persist-bid job payload.
type PersistBidPayload struct {
	AuctionID   string
	BidderID    string
	Amount      string
	ServerTime  string
	PreviousBid string
	TotalBids   int
	IPAddress   string
	UserAgent   string
}

// UpdateAuctionMirrorPayload is the update-auction-mirror job payload.
type UpdateAuctionMirrorPayload struct {
	AuctionID       string
	CurrentBid      string
	HighestBidderID string
	TotalBids       int
	EndTime         string
}

// FinalizeAuctionPayload is the finalize-auction job payload.
type FinalizeAuctionPayload struct {
	AuctionID  string
	ServerTime string
	// Trigger records which of the two finalization triggers (timer or
	// hot-state expiry) enqueued this job, purely for metrics labeling.
	Trigger string
}

// PersistBidKey builds the natural key for a persist-bid job.
func PersistBidKey(auctionID, bidderID, serverTimeMicros string) string {
	return fmt.Sprintf("bid-%s-%s-%s", auctionID, bidderID, serverTimeMicros)
}

// FinalizeKey builds the natural key for a finalize-auction job.
func FinalizeKey(auctionID string) string {
	return fmt.Sprintf("finalize-%s", auctionID)
}
