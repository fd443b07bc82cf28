// Package hotstate implements the bidding engine's authoritative live
// store: one actor goroutine per auctionId serializing the three atomic
// primitives placeBid, extend and finalize. Redis is used only as a TTL/
// expiry-notification and index mirror, never as the source of truth while
// an auction is active — the actor's in-memory state is authoritative.
package hotstate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/nexusengine/liveauction/internal/clock"
	"github.com/nexusengine/liveauction/internal/domain"
)

// activeIndexKey is the Redis sorted set backing the Active-Auctions Index
// (SPEC_FULL.md §3): member=auctionId, score=endTime (unix seconds).
const activeIndexKey = "hotstate:active-index"

// ttlKeyPrefix namespaces the per-auction expiry-mirror keys that Trigger B
// of the Finalization Coordinator subscribes to via keyspace notifications.
const ttlKeyPrefix = "hotstate:ttl:"

func ttlKey(auctionID string) string { return ttlKeyPrefix + auctionID }

// Store holds one actor per active auctionId plus the Redis mirror used for
// TTL/expiry signaling and the active-auctions index.
type Store struct {
	redis *redis.Client
	clk   clock.Clock
	log   zerolog.Logger

	mu     sync.Mutex
	actors map[string]*actor
}

// NewStore builds a Store. redisClient may be nil in tests that don't
// exercise TTL mirroring or the active index.
func NewStore(redisClient *redis.Client, clk clock.Clock, log zerolog.Logger) *Store {
	return &Store{
		redis:  redisClient,
		clk:    clk,
		log:    log.With().Str("component", "hotstate").Logger(),
		actors: make(map[string]*actor),
	}
}

func (s *Store) lookup(auctionID string) (*actor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actors[auctionID]
	return a, ok
}

// Install places an auction's hot-state record and is the only way an
// auctionId gets an actor. Used both for fresh creation and for lazy
// hydration from the cold store. It is put-if-absent: if an actor for
// auction.ID already exists, Install keeps it (with every bid already
// committed on it) and returns nil without touching Redis, so racing
// hydrations end with a single actor. retention is the post-end grace
// period added to the TTL mirror's expiry (SPEC_FULL.md §4.5).
func (s *Store) Install(ctx context.Context, auction domain.Auction, retention time.Duration) error {
	s.mu.Lock()
	if _, ok := s.actors[auction.ID]; ok {
		s.mu.Unlock()
		return nil
	}
	a := newActor(auction)
	s.actors[auction.ID] = a
	s.mu.Unlock()

	go a.run()

	if s.redis == nil {
		return nil
	}

	now := s.clk.Now()
	ttl := auction.EndTime.Sub(now) + retention
	if ttl <= 0 {
		ttl = retention
	}
	if err := s.redis.Set(ctx, ttlKey(auction.ID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("hotstate: mirroring ttl for %s: %w", auction.ID, err)
	}
	if auction.Status == domain.StatusActive {
		if err := s.redis.ZAdd(ctx, activeIndexKey, redis.Z{
			Score:  float64(auction.EndTime.Unix()),
			Member: auction.ID,
		}).Err(); err != nil {
			return fmt.Errorf("hotstate: indexing %s: %w", auction.ID, err)
		}
	}
	return nil
}

// Evict drops an auction's actor and index entries without touching the
// TTL mirror key, which is left to expire naturally (retention window).
func (s *Store) Evict(ctx context.Context, auctionID string) {
	s.mu.Lock()
	a, ok := s.actors[auctionID]
	delete(s.actors, auctionID)
	s.mu.Unlock()
	if ok {
		a.close()
	}
	if s.redis != nil {
		s.redis.ZRem(ctx, activeIndexKey, auctionID)
	}
}

// Get returns a snapshot of the auction record, or false if not hot.
func (s *Store) Get(ctx context.Context, auctionID string) (domain.Auction, bool) {
	a, ok := s.lookup(auctionID)
	if !ok {
		return domain.Auction{}, false
	}
	var snap domain.Auction
	ok = a.submit(func(st *auctionState) {
		snap = st.auction
	}, ctx.Done())
	return snap, ok
}

// WatchExpirations subscribes to Redis keyspace notifications for expired
// TTL-mirror keys and emits the bare auctionId for each one. This is
// Trigger B of the Finalization Coordinator (SPEC_FULL.md §4.5); the
// server must have `notify-keyspace-events Ex` enabled for this to fire.
// The returned channel is closed when ctx is cancelled.
func (s *Store) WatchExpirations(ctx context.Context) (<-chan string, error) {
	if s.redis == nil {
		return nil, fmt.Errorf("hotstate: no redis client configured")
	}

	pattern := "__keyevent@" + fmt.Sprint(s.redis.Options().DB) + "__:expired"
	sub := s.redis.Subscribe(ctx, pattern)
	if _, err := sub.Receive(ctx); err != nil {
		return nil, fmt.Errorf("hotstate: subscribing to expirations: %w", err)
	}

	out := make(chan string, 32)
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
				auctionID, found := trimTTLPrefix(msg.Payload)
				if !found {
					continue
				}
				select {
				case out <- auctionID:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func trimTTLPrefix(key string) (string, bool) {
	if len(key) <= len(ttlKeyPrefix) || key[:len(ttlKeyPrefix)] != ttlKeyPrefix {
		return "", false
	}
	return key[len(ttlKeyPrefix):], true
}
