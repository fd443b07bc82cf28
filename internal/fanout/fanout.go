// Package fanout is the cross-instance publish/subscribe bus: every server
// instance publishes bid/extend/end events here and every instance's
// gateway subscribes, re-emitting into its local per-auction rooms. This is
// a latency optimisation only — losing an event never corrupts the truth
// in coldstore/hotstate, it only delays a watcher's view until it next
// re-reads the catalogue.
package fanout

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/nexusengine/liveauction/internal/money"
)

const (
	// TopicBidPlaced carries both plain bids and piggybacked extensions.
	TopicBidPlaced   = "liveauction:bid-placed"
	TopicAuctionEnded = "liveauction:auction-ended"
)

// BidPlacedEvent is published after P1 returns OK (never before).
type BidPlacedEvent struct {
	AuctionID string        `json:"auction_id"`
	Bidder    string        `json:"bidder_id"`
	Amount    money.Amount  `json:"amount"`
	TotalBids int           `json:"total_bids"`
	Extended  bool          `json:"extended"`
	Extension *ExtensionData `json:"extension_data,omitempty"`
}

// ExtensionData piggybacks an auction-extended notice on a bid-placed
// event, per SPEC_FULL.md §4.6.
type ExtensionData struct {
	OldEndTime string `json:"old_end_time"`
	NewEndTime string `json:"new_end_time"`
	ExtendedBy int64  `json:"extended_by_seconds"`
}

// AuctionEndedEvent is published after P3 returns OK.
type AuctionEndedEvent struct {
	AuctionID  string       `json:"auction_id"`
	WinnerID   string       `json:"winner_id,omitempty"`
	WinningBid money.Amount `json:"winning_bid"`
	TotalBids  int          `json:"total_bids"`
	EndTime    string       `json:"end_time"`
}

// Recorder is the metrics surface the Bus emits to. Satisfied by
// *metrics.Metrics. May be nil to disable metrics (used in tests).
type Recorder interface {
	RecordFanoutPublish(topic string)
}

// Bus wraps a Redis client as a topic publisher/subscriber.
type Bus struct {
	redis   *redis.Client
	metrics Recorder
	log     zerolog.Logger
}

// New builds a Bus. metrics may be nil to disable metrics (used in tests).
func New(redisClient *redis.Client, metrics Recorder, log zerolog.Logger) *Bus {
	return &Bus{redis: redisClient, metrics: metrics, log: log.With().Str("component", "fanout").Logger()}
}

// PublishBidPlaced publishes a bid-placed event. Only call this after the
// hot-state primitive that produced it has already returned OK.
func (b *Bus) PublishBidPlaced(ctx context.Context, ev BidPlacedEvent) error {
	return b.publish(ctx, TopicBidPlaced, ev)
}

// PublishAuctionEnded publishes an auction-ended event.
func (b *Bus) PublishAuctionEnded(ctx context.Context, ev AuctionEndedEvent) error {
	return b.publish(ctx, TopicAuctionEnded, ev)
}

func (b *Bus) publish(ctx context.Context, topic string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("fanout: marshaling %s event: %w", topic, err)
	}
	if err := b.redis.Publish(ctx, topic, data).Err(); err != nil {
		return fmt.Errorf("fanout: publishing to %s: %w", topic, err)
	}
	if b.metrics != nil {
		b.metrics.RecordFanoutPublish(topic)
	}
	return nil
}

// SubscribeBidPlaced returns a channel of decoded bid-placed events. Every
// gateway instance calls this once at startup. The channel closes when ctx
// is cancelled.
func (b *Bus) SubscribeBidPlaced(ctx context.Context) <-chan BidPlacedEvent {
	return subscribe[BidPlacedEvent](ctx, b, TopicBidPlaced)
}

// SubscribeAuctionEnded returns a channel of decoded auction-ended events.
func (b *Bus) SubscribeAuctionEnded(ctx context.Context) <-chan AuctionEndedEvent {
	return subscribe[AuctionEndedEvent](ctx, b, TopicAuctionEnded)
}

func subscribe[T any](ctx context.Context, b *Bus, topic string) <-chan T {
	out := make(chan T, 128)
	sub := b.redis.Subscribe(ctx, topic)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev T
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.log.Warn().Err(err).Str("topic", topic).Msg("dropping malformed fanout message")
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
