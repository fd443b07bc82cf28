package coldstore

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/nexusengine/liveauction/internal/config"
)

// Store bundles the cold-store repositories behind a single connection.
type Store struct {
	DB       *sqlx.DB
	Auctions *AuctionRepo
	Bids     *BidRepo
}

// Open connects to Postgres and wires up the repositories.
func Open(ctx context.Context, cfg config.ColdStoreConfig) (*Store, error) {
	db, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{
		DB:       db,
		Auctions: NewAuctionRepo(db),
		Bids:     NewBidRepo(db),
	}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.DB.Close()
}
