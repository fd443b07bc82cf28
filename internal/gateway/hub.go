// Package gateway is the real-time websocket surface: per-connection
// bearer-token auth, per-auction "rooms" (SPEC_FULL.md §4.7's
// connection -> set<auctionId> membership), and the inbound/outbound
// message shapes from SPEC_FULL.md §6. The Hub/Client split and the
// ReadPump/WritePump goroutine pair follow the teacher's websocket hub;
// the single global broadcast channel is replaced with per-room
// broadcasting since updates belong to one auction, never to every
// connected client.
package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nexusengine/liveauction/internal/admission"
	"github.com/nexusengine/liveauction/internal/fanout"
	"github.com/nexusengine/liveauction/internal/money"
)

// Admitter is the admission surface the gateway drives inbound bids
// through. Satisfied by *admission.Service.
type Admitter interface {
	PlaceBid(ctx context.Context, req admission.BidRequest) (admission.BidOutcome, error)
}

type roomOp struct {
	client    *Client
	auctionID string
}

type roomMessage struct {
	auctionID string
	envelope  outboundEnvelope
}

type unicastMessage struct {
	client   *Client
	envelope outboundEnvelope
}

// Hub owns every live connection and the per-auction room memberships.
// One Hub per process.
type Hub struct {
	admit Admitter
	log   zerolog.Logger

	clients    map[*Client]bool
	rooms      map[string]map[*Client]bool
	clientsMu  sync.RWMutex

	register   chan *Client
	unregister chan *Client
	join       chan roomOp
	leave      chan roomOp
	roomMsg    chan roomMessage
	unicastMsg chan unicastMessage

	ctx    context.Context
	cancel context.CancelFunc

	totalConnections   int64
	currentConnections int
}

// NewHub builds a Hub. Call Start to begin its processing loop.
func NewHub(ctx context.Context, admit Admitter, log zerolog.Logger) *Hub {
	hubCtx, cancel := context.WithCancel(ctx)
	return &Hub{
		admit:      admit,
		log:        log.With().Str("component", "gateway").Logger(),
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		join:       make(chan roomOp, 64),
		leave:      make(chan roomOp, 64),
		roomMsg:    make(chan roomMessage, 256),
		unicastMsg: make(chan unicastMessage, 256),
		ctx:        hubCtx,
		cancel:     cancel,
	}
}

// Start runs the hub's single-goroutine event loop. All client/room state
// mutation happens here, so no locking is needed for the room maps
// themselves; clientsMu only guards the stats snapshot in Stats().
func (h *Hub) Start() {
	go func() {
		for {
			select {
			case c := <-h.register:
				h.clientsMu.Lock()
				h.clients[c] = true
				h.currentConnections = len(h.clients)
				h.totalConnections++
				h.clientsMu.Unlock()
				h.log.Info().Str("client_id", c.ID).Str("user_id", c.Identity.UserID).Msg("client connected")

			case c := <-h.unregister:
				h.clientsMu.Lock()
				if _, ok := h.clients[c]; ok {
					delete(h.clients, c)
					close(c.send)
					h.currentConnections = len(h.clients)
				}
				h.clientsMu.Unlock()
				for auctionID := range c.rooms {
					h.removeFromRoom(c, auctionID)
				}
				h.log.Info().Str("client_id", c.ID).Msg("client disconnected")

			case op := <-h.join:
				if _, ok := h.rooms[op.auctionID]; !ok {
					h.rooms[op.auctionID] = make(map[*Client]bool)
				}
				h.rooms[op.auctionID][op.client] = true
				op.client.rooms[op.auctionID] = true

			case op := <-h.leave:
				h.removeFromRoom(op.client, op.auctionID)

			case msg := <-h.roomMsg:
				room := h.rooms[msg.auctionID]
				for c := range room {
					h.deliver(c, msg.envelope)
				}

			case msg := <-h.unicastMsg:
				h.deliver(msg.client, msg.envelope)

			case <-h.ctx.Done():
				h.clientsMu.Lock()
				for c := range h.clients {
					close(c.send)
				}
				h.clients = make(map[*Client]bool)
				h.clientsMu.Unlock()
				return
			}
		}
	}()
}

// Stop shuts down the hub's event loop and every connection.
func (h *Hub) Stop() { h.cancel() }

func (h *Hub) removeFromRoom(c *Client, auctionID string) {
	if room, ok := h.rooms[auctionID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, auctionID)
		}
	}
	delete(c.rooms, auctionID)
}

func (h *Hub) deliver(c *Client, envelope outboundEnvelope) {
	select {
	case c.send <- envelope:
	default:
		h.log.Warn().Str("client_id", c.ID).Msg("client send buffer full, dropping message")
	}
}

// BroadcastToRoom sends envelope to every client joined to auctionID,
// including whichever client originated the triggering action.
func (h *Hub) BroadcastToRoom(auctionID string, msgType string, payload interface{}) {
	select {
	case h.roomMsg <- roomMessage{auctionID: auctionID, envelope: outboundEnvelope{Type: msgType, Payload: payload}}:
	default:
		h.log.Warn().Str("auction_id", auctionID).Msg("room broadcast channel full, dropping message")
	}
}

// Unicast sends envelope to exactly one client.
func (h *Hub) Unicast(c *Client, msgType string, payload interface{}) {
	select {
	case h.unicastMsg <- unicastMessage{client: c, envelope: outboundEnvelope{Type: msgType, Payload: payload}}:
	default:
		h.log.Warn().Str("client_id", c.ID).Msg("unicast channel full, dropping message")
	}
}

// Register admits a new client into the hub.
func (h *Hub) Register(c *Client) { h.register <- c }

// Unregister removes a client from the hub and every room it had joined.
func (h *Hub) Unregister(c *Client) { h.unregister <- c }

// Join adds a client to an auction's room.
func (h *Hub) Join(c *Client, auctionID string) { h.join <- roomOp{client: c, auctionID: auctionID} }

// Leave removes a client from an auction's room.
func (h *Hub) Leave(c *Client, auctionID string) { h.leave <- roomOp{client: c, auctionID: auctionID} }

// Stats reports the current and total connection counts.
func (h *Hub) Stats() (current int, total int64) {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return h.currentConnections, h.totalConnections
}

// FanoutLoop re-emits bus events into the matching room. Run once, in a
// goroutine, for the process lifetime; it returns when ctx is done or when
// either input channel is closed.
func (h *Hub) FanoutLoop(ctx context.Context, bidPlaced <-chan fanout.BidPlacedEvent, auctionEnded <-chan fanout.AuctionEndedEvent) {
	for {
		select {
		case ev, ok := <-bidPlaced:
			if !ok {
				return
			}
			h.BroadcastToRoom(ev.AuctionID, OutboundUpdateBid, updateBidPayload{
				AuctionID: ev.AuctionID,
				Bid: bidSummary{
					Amount:    ev.Amount,
					BidderID:  ev.Bidder,
					Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
					TotalBids: ev.TotalBids,
				},
			})
			if ev.Extended && ev.Extension != nil {
				h.BroadcastToRoom(ev.AuctionID, OutboundAuctionExtended, auctionExtendedPayload{
					AuctionID:  ev.AuctionID,
					OldEndTime: ev.Extension.OldEndTime,
					NewEndTime: ev.Extension.NewEndTime,
					ExtendedBy: ev.Extension.ExtendedBy,
				})
			}
		case ev, ok := <-auctionEnded:
			if !ok {
				return
			}
			var winnerID *string
			var winningBid *money.Amount
			if ev.WinnerID != "" {
				id := ev.WinnerID
				winnerID = &id
				amt := ev.WinningBid
				winningBid = &amt
			}
			h.BroadcastToRoom(ev.AuctionID, OutboundAuctionEnded, auctionEndedPayload{
				AuctionID:  ev.AuctionID,
				WinnerID:   winnerID,
				WinningBid: winningBid,
				TotalBids:  ev.TotalBids,
				EndTime:    ev.EndTime,
			})
		case <-ctx.Done():
			return
		}
	}
}
