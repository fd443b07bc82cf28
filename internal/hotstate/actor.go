package hotstate

import (
	"time"

	"github.com/nexusengine/liveauction/internal/domain"
	"github.com/nexusengine/liveauction/internal/money"
)

// bidRecord is one entry in an auction's in-memory bid-history sequence.
// Entries are appended in commit order; the slice is not sorted or indexed
// by amount.
type bidRecord struct {
	bidderID    string
	amount      money.Amount
	serverTime  time.Time
	previousBid money.Amount
}

// auctionState is the actor's private, single-goroutine-owned mutable
// state. Nothing outside the actor's run loop ever touches these fields.
type auctionState struct {
	auction domain.Auction
	history []bidRecord
}

// command is one unit of work submitted to an actor's serialized loop. fn
// mutates state (or only reads it) and signals done when finished; this is
// the actor's RPC shape, the concurrency primitive that gives P1/P2/P3 their
// linearizability without locks.
type command struct {
	fn   func(*auctionState)
	done chan struct{}
}

// actor owns one auction's state and processes commands one at a time off
// its channel, which is what makes P1/P2/P3 indivisible per auctionId.
type actor struct {
	id    string
	cmds  chan command
	state auctionState
	stop  chan struct{}
}

func newActor(auction domain.Auction) *actor {
	return &actor{
		id:    auction.ID,
		cmds:  make(chan command, 64),
		state: auctionState{auction: auction},
		stop:  make(chan struct{}),
	}
}

func (a *actor) run() {
	for {
		select {
		case c := <-a.cmds:
			c.fn(&a.state)
			close(c.done)
		case <-a.stop:
			return
		}
	}
}

// submit sends fn to the actor and blocks until it has run, or ctxDone
// fires first (e.g. the caller's context was cancelled). Returns false if
// the actor was already stopped or the wait was cancelled.
func (a *actor) submit(fn func(*auctionState), ctxDone <-chan struct{}) bool {
	done := make(chan struct{})
	select {
	case a.cmds <- command{fn: fn, done: done}:
	case <-a.stop:
		return false
	case <-ctxDone:
		return false
	}
	select {
	case <-done:
		return true
	case <-ctxDone:
		return false
	}
}

func (a *actor) close() {
	close(a.stop)
}
