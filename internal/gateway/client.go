package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/nexusengine/liveauction/internal/admission"
	"github.com/nexusengine/liveauction/internal/domain"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// Client is one authenticated websocket connection.
type Client struct {
	ID       string
	Identity Identity
	conn     *websocket.Conn
	hub      *Hub
	log      zerolog.Logger

	send  chan outboundEnvelope
	rooms map[string]bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewClient wraps an upgraded connection as a hub client.
func NewClient(conn *websocket.Conn, identity Identity, hub *Hub, log zerolog.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	return &Client{
		ID:       id,
		Identity: identity,
		conn:     conn,
		hub:      hub,
		log:      log.With().Str("client_id", id).Str("user_id", identity.UserID).Logger(),
		send:     make(chan outboundEnvelope, 32),
		rooms:    make(map[string]bool),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// ReadPump pumps inbound frames from the connection, dispatching them to
// room join/leave or the admission path. Runs until the connection errors
// or closes; always exits by unregistering itself from the hub.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
		c.cancel()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Debug().Err(err).Msg("unexpected websocket close")
			}
			return
		}

		var env inboundEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.sendError("", domain.ErrInvalidInput, "malformed message")
			continue
		}

		switch env.Type {
		case InboundJoin:
			c.handleJoin(env.Payload)
		case InboundLeave:
			c.handleLeave(env.Payload)
		case InboundBid:
			c.handleBid(c.hub.admit, env.Payload)
		default:
			c.log.Debug().Str("type", env.Type).Msg("unhandled inbound message type")
		}
	}
}

// WritePump pumps outbound envelopes from the hub to the connection, and
// keeps the connection alive with periodic pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.cancel()
	}()

	for {
		select {
		case env, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data, err := json.Marshal(env)
			if err != nil {
				c.log.Error().Err(err).Msg("failed to marshal outbound message")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// SendServerTime unicasts the current server time, sent immediately after
// a successful auth per SPEC_FULL.md §4.7.
func (c *Client) SendServerTime(now time.Time) {
	c.hub.Unicast(c, OutboundServerTime, serverTimePayload{ServerTime: now.UnixMilli()})
}

func (c *Client) handleJoin(raw json.RawMessage) {
	var p joinPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.AuctionID == "" {
		c.sendError("", domain.ErrInvalidInput, "auction:join requires auctionId")
		return
	}
	c.hub.Join(c, p.AuctionID)
	c.hub.Unicast(c, OutboundJoined, joinPayload{AuctionID: p.AuctionID})
}

func (c *Client) handleLeave(raw json.RawMessage) {
	var p joinPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.AuctionID == "" {
		c.sendError("", domain.ErrInvalidInput, "auction:leave requires auctionId")
		return
	}
	c.hub.Leave(c, p.AuctionID)
}

func (c *Client) handleBid(admit Admitter, raw json.RawMessage) {
	var p bidPlacedPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.AuctionID == "" {
		c.sendError("", domain.ErrInvalidInput, "BID_PLACED requires auctionId and amount")
		return
	}

	outcome, err := admit.PlaceBid(c.ctx, admission.BidRequest{
		AuctionID: p.AuctionID,
		BidderID:  c.Identity.UserID,
		Amount:    p.Amount,
	})
	if err != nil {
		admErr, ok := err.(*domain.AdmissionError)
		if !ok {
			c.sendError(p.AuctionID, domain.ErrInvalidInput, "bid could not be processed")
			return
		}
		c.hub.Unicast(c, OutboundBidRejected, bidRejectedPayload{
			AuctionID: p.AuctionID,
			Error: errorPayload{
				Code:    string(admErr.Code),
				Message: admErr.Message,
				Details: admErr.Details,
			},
		})
		return
	}

	c.hub.Unicast(c, OutboundBidAccepted, bidAcceptedPayload{
		AuctionID: p.AuctionID,
		Bid: bidSummary{
			Amount:         outcome.Result.CurrentBid,
			BidderID:       c.Identity.UserID,
			BidderUsername: c.Identity.Username,
			Timestamp:      time.Now().UTC().Format(time.RFC3339Nano),
			TotalBids:      outcome.Result.TotalBids,
		},
	})
}

func (c *Client) sendError(auctionID string, code domain.ErrorCode, message string) {
	c.hub.Unicast(c, OutboundError, bidRejectedPayload{
		AuctionID: auctionID,
		Error:     errorPayload{Code: string(code), Message: message},
	})
}
