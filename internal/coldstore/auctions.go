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

// auctionRow is the sqlx scan target for the auctions table.
type auctionRow struct {
	ID              string         `db:"id"`
	SellerID        string         `db:"seller_id"`
	Title           string         `db:"title"`
	Description     string         `db:"description"`
	Category        string         `db:"category"`
	StartingPrice   money.Amount   `db:"starting_price"`
	BidIncrement    money.Amount   `db:"bid_increment"`
	ReservePrice    sql.NullString `db:"reserve_price"`
	CurrentBid      money.Amount   `db:"current_bid"`
	HighestBidderID sql.NullString `db:"highest_bidder_id"`
	TotalBids       int            `db:"total_bids"`
	StartTime       time.Time      `db:"start_time"`
	OriginalEndTime time.Time      `db:"original_end_time"`
	EndTime         time.Time      `db:"end_time"`
	Status          string         `db:"status"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

func (r auctionRow) toDomain() domain.Auction {
	a := domain.Auction{
		ID:              r.ID,
		SellerID:        r.SellerID,
		Title:           r.Title,
		Description:     r.Description,
		Category:        r.Category,
		StartingPrice:   r.StartingPrice,
		BidIncrement:    r.BidIncrement,
		CurrentBid:      r.CurrentBid,
		TotalBids:       r.TotalBids,
		StartTime:       r.StartTime,
		OriginalEndTime: r.OriginalEndTime,
		EndTime:         r.EndTime,
		Status:          domain.Status(r.Status),
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if r.ReservePrice.Valid {
		p, err := money.ParseAmount(r.ReservePrice.String)
		if err == nil {
			a.ReservePrice = &p
		}
	}
	if r.HighestBidderID.Valid {
		a.HighestBidderID = r.HighestBidderID.String
	}
	return a
}

// AuctionRepo persists the mirrored auctions row.
type AuctionRepo struct {
	db *sqlx.DB
}

// NewAuctionRepo returns a new AuctionRepo.
func NewAuctionRepo(db *sqlx.DB) *AuctionRepo {
	return &AuctionRepo{db: db}
}

// Create inserts a brand-new auction row (used by the external catalogue
// surface, out of this system's core scope but needed to seed test state).
func (r *AuctionRepo) Create(ctx context.Context, a domain.Auction) error {
	var reserve sql.NullString
	if a.ReservePrice != nil {
		reserve = sql.NullString{String: a.ReservePrice.String(), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO auctions (
			id, seller_id, title, description, category,
			starting_price, bid_increment, reserve_price, current_bid,
			total_bids, start_time, original_end_time, end_time, status,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		a.ID, a.SellerID, a.Title, a.Description, a.Category,
		a.StartingPrice, a.BidIncrement, reserve, a.CurrentBid,
		a.TotalBids, a.StartTime, a.OriginalEndTime, a.EndTime, string(a.Status),
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("coldstore: creating auction: %w", err)
	}
	return nil
}

// GetByID loads one auction by id.
func (r *AuctionRepo) GetByID(ctx context.Context, id string) (domain.Auction, error) {
	var row auctionRow
	err := r.db.GetContext(ctx, &row, `
		SELECT id, seller_id, title, description, category,
		       starting_price, bid_increment, reserve_price, current_bid,
		       highest_bidder_id, total_bids, start_time, original_end_time,
		       end_time, status, created_at, updated_at
		FROM auctions WHERE id = $1`, id)
	if err != nil {
		return domain.Auction{}, fmt.Errorf("coldstore: loading auction %s: %w", id, err)
	}
	return row.toDomain(), nil
}

// ListActive returns every auction whose mirrored status is active, used by
// the Finalization Coordinator's startup recovery sweep.
func (r *AuctionRepo) ListActive(ctx context.Context) ([]domain.Auction, error) {
	var rows []auctionRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, seller_id, title, description, category,
		       starting_price, bid_increment, reserve_price, current_bid,
		       highest_bidder_id, total_bids, start_time, original_end_time,
		       end_time, status, created_at, updated_at
		FROM auctions WHERE status = 'active'`)
	if err != nil {
		return nil, fmt.Errorf("coldstore: listing active auctions: %w", err)
	}
	out := make([]domain.Auction, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// UpdateMirror writes the bid-path fields updated by an accepted bid.
// Conditional on status='active' so a late-arriving job can never resurrect
// an already-finalized auction.
func (r *AuctionRepo) UpdateMirror(ctx context.Context, a domain.Auction) error {
	var bidder sql.NullString
	if a.HighestBidderID != "" {
		bidder = sql.NullString{String: a.HighestBidderID, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE auctions
		SET current_bid = $1, highest_bidder_id = $2, total_bids = $3,
		    end_time = $4, updated_at = $5
		WHERE id = $6 AND status = 'active'`,
		a.CurrentBid, bidder, a.TotalBids, a.EndTime, a.UpdatedAt, a.ID,
	)
	if err != nil {
		return fmt.Errorf("coldstore: mirroring auction %s: %w", a.ID, err)
	}
	return nil
}

// MarkEnded is the finalization write: unconditional on the old status (the
// whole point is to transition out of active), but guarded against
// regressing an already-ended row by the WHERE clause, so redelivery of the
// same finalize job is a no-op rather than a second write.
func (r *AuctionRepo) MarkEnded(ctx context.Context, a domain.Auction) error {
	var bidder sql.NullString
	if a.HighestBidderID != "" {
		bidder = sql.NullString{String: a.HighestBidderID, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE auctions
		SET status = 'ended', current_bid = $1, highest_bidder_id = $2,
		    total_bids = $3, end_time = $4, updated_at = $5
		WHERE id = $6 AND status != 'ended'`,
		a.CurrentBid, bidder, a.TotalBids, a.EndTime, a.UpdatedAt, a.ID,
	)
	if err != nil {
		return fmt.Errorf("coldstore: finalizing auction %s: %w", a.ID, err)
	}
	return nil
}

// ListSummaries backs the external catalogue surface (§6): a paginated,
// filterable read projection. Not part of the core bidding path.
func (r *AuctionRepo) ListSummaries(ctx context.Context, status domain.Status, category string, limit, offset int) ([]domain.AuctionSummary, error) {
	query := `SELECT id, title, current_bid, end_time, status, total_bids FROM auctions WHERE 1=1`
	args := []interface{}{}
	arg := 1
	if status != "" {
		query += fmt.Sprintf(" AND status = $%d", arg)
		args = append(args, string(status))
		arg++
	}
	if category != "" {
		query += fmt.Sprintf(" AND category = $%d", arg)
		args = append(args, category)
		arg++
	}
	query += fmt.Sprintf(" ORDER BY end_time ASC LIMIT $%d OFFSET $%d", arg, arg+1)
	args = append(args, limit, offset)

	var rows []struct {
		ID         string       `db:"id"`
		Title      string       `db:"title"`
		CurrentBid money.Amount `db:"current_bid"`
		EndTime    time.Time    `db:"end_time"`
		Status     string       `db:"status"`
		TotalBids  int          `db:"total_bids"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("coldstore: listing summaries: %w", err)
	}
	out := make([]domain.AuctionSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.AuctionSummary{
			ID:         row.ID,
			Title:      row.Title,
			CurrentBid: row.CurrentBid,
			EndTime:    row.EndTime,
			Status:     domain.Status(row.Status),
			TotalBids:  row.TotalBids,
		})
	}
	return out, nil
}
