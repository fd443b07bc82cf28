package coldstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nexusengine/liveauction/internal/domain"
	"github.com/nexusengine/liveauction/internal/money"
)

// BidRepo persists the append-only bids table. Nothing in this repo ever
// issues an UPDATE or DELETE against bids.
type BidRepo struct {
	db *sqlx.DB
}

// NewBidRepo returns a new BidRepo.
func NewBidRepo(db *sqlx.DB) *BidRepo {
	return &BidRepo{db: db}
}

// Insert appends one bid row. A duplicate bidId (redelivered persist-bid
// job) is treated as success rather than an error — idempotent insert.
func (r *BidRepo) Insert(ctx context.Context, b domain.Bid) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO bids (
			id, auction_id, bidder_id, amount, bid_time, previous_bid,
			is_winning, ip_address, user_agent
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO NOTHING`,
		b.ID, b.AuctionID, b.BidderID, b.Amount, b.BidTime, b.PreviousBid,
		b.IsWinning, nullIfEmpty(b.IPAddress), nullIfEmpty(b.UserAgent),
	)
	if err != nil {
		return fmt.Errorf("coldstore: inserting bid %s: %w", b.ID, err)
	}
	return nil
}

// CountByAuction returns the number of bid rows recorded for an auction,
// used to check the append-only-bids-vs-totalBids invariant.
func (r *BidRepo) CountByAuction(ctx context.Context, auctionID string) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM bids WHERE auction_id = $1`, auctionID)
	if err != nil {
		return 0, fmt.Errorf("coldstore: counting bids for %s: %w", auctionID, err)
	}
	return n, nil
}

// ListByAuction returns an auction's bids, most recent first.
func (r *BidRepo) ListByAuction(ctx context.Context, auctionID string, limit int) ([]domain.Bid, error) {
	var rows []bidRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, auction_id, bidder_id, amount, bid_time, previous_bid,
		       is_winning, ip_address, user_agent
		FROM bids WHERE auction_id = $1 ORDER BY bid_time DESC LIMIT $2`,
		auctionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("coldstore: listing bids for %s: %w", auctionID, err)
	}
	out := make([]domain.Bid, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

type bidRow struct {
	ID          string         `db:"id"`
	AuctionID   string         `db:"auction_id"`
	BidderID    string         `db:"bidder_id"`
	Amount      money.Amount   `db:"amount"`
	BidTime     time.Time      `db:"bid_time"`
	PreviousBid money.Amount   `db:"previous_bid"`
	IsWinning   bool           `db:"is_winning"`
	IPAddress   sql.NullString `db:"ip_address"`
	UserAgent   sql.NullString `db:"user_agent"`
}

func (r bidRow) toDomain() domain.Bid {
	return domain.Bid{
		ID:          r.ID,
		AuctionID:   r.AuctionID,
		BidderID:    r.BidderID,
		Amount:      r.Amount,
		BidTime:     r.BidTime,
		PreviousBid: r.PreviousBid,
		IsWinning:   r.IsWinning,
		IPAddress:   r.IPAddress.String,
		UserAgent:   r.UserAgent.String,
	}
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
