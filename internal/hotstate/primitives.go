package hotstate

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nexusengine/liveauction/internal/domain"
	"github.com/nexusengine/liveauction/internal/extension"
	"github.com/nexusengine/liveauction/internal/money"
)

// PlaceBid is primitive P1: admit or reject a bid, atomically, against the
// named auction's actor. incrementHint overrides the stored bidIncrement
// when positive; pass money.Zero to always use the stored increment.
func (s *Store) PlaceBid(ctx context.Context, auctionID, bidderID string, amount money.Amount, serverTime time.Time, incrementHint money.Amount) (PlaceBidResult, error) {
	a, ok := s.lookup(auctionID)
	if !ok {
		return PlaceBidResult{}, domain.NewError(domain.ErrNotFound, "auction not in hot state")
	}

	var (
		result PlaceBidResult
		admErr *domain.AdmissionError
	)

	ok = a.submit(func(st *auctionState) {
		auc := &st.auction

		if !amount.IsPositive() {
			admErr = domain.NewError(domain.ErrInvalidAmount, "amount must be positive")
			return
		}
		if auc.Status != domain.StatusActive {
			admErr = domain.NewError(domain.ErrNotActive, "auction is not active")
			return
		}
		if !serverTime.Before(auc.EndTime) {
			admErr = domain.NewError(domain.ErrEnded, "auction has ended")
			return
		}
		if bidderID == auc.SellerID {
			admErr = domain.NewError(domain.ErrSellerCannotBid, "seller cannot bid on own auction")
			return
		}

		isFirstBid := auc.HighestBidderID == ""
		var minimumBid money.Amount
		if isFirstBid {
			minimumBid = auc.StartingPrice
		} else {
			effectiveIncrement := auc.BidIncrement
			if incrementHint.IsPositive() {
				effectiveIncrement = incrementHint
			}
			minimumBid = auc.CurrentBid.Add(effectiveIncrement)
		}

		if !amount.GreaterThanOrEqual(minimumBid) {
			admErr = tooLowErr(domain.TooLowDetails{
				CurrentBid: auc.CurrentBid,
				MinimumBid: minimumBid,
				YourBid:    amount,
				IsFirstBid: isFirstBid,
			})
			return
		}

		previousBid := auc.CurrentBid
		previousBidder := auc.HighestBidderID

		auc.CurrentBid = amount
		auc.HighestBidderID = bidderID
		auc.TotalBids++
		auc.UpdatedAt = serverTime

		st.history = append(st.history, bidRecord{
			bidderID:    bidderID,
			amount:      amount,
			serverTime:  serverTime,
			previousBid: previousBid,
		})

		result = PlaceBidResult{
			PreviousBid:     previousBid,
			PreviousBidder:  previousBidder,
			TotalBids:       auc.TotalBids,
			CurrentBid:      auc.CurrentBid,
			HighestBidderID: auc.HighestBidderID,
		}
	}, ctx.Done())

	if !ok {
		return PlaceBidResult{}, ctx.Err()
	}
	if admErr != nil {
		return PlaceBidResult{}, admErr
	}
	return result, nil
}

// Extend is primitive P2: push endTime out by durationSec if serverTime is
// within thresholdSec of the current endTime.
func (s *Store) Extend(ctx context.Context, auctionID string, serverTime time.Time, thresholdSec, durationSec int) (ExtendResult, error) {
	a, ok := s.lookup(auctionID)
	if !ok {
		return ExtendResult{}, domain.NewError(domain.ErrNotFound, "auction not in hot state")
	}

	var (
		result ExtendResult
		admErr *domain.AdmissionError
	)

	ok = a.submit(func(st *auctionState) {
		auc := &st.auction

		if auc.Status != domain.StatusActive {
			admErr = domain.NewError(domain.ErrNotActive, "auction is not active")
			return
		}

		decision := extension.Evaluate(auc.EndTime, serverTime, thresholdSec, durationSec)
		if decision.Extended {
			auc.EndTime = decision.NewEndTime
			auc.UpdatedAt = serverTime
			result = ExtendResult{
				Extended:   true,
				OldEndTime: decision.OldEndTime,
				NewEndTime: decision.NewEndTime,
				ExtendedBy: decision.ExtendedBy,
			}
			return
		}

		result = ExtendResult{
			Extended:      false,
			OldEndTime:    auc.EndTime,
			NewEndTime:    auc.EndTime,
			TimeRemaining: auc.EndTime.Sub(serverTime),
		}
	}, ctx.Done())

	if !ok {
		return ExtendResult{}, ctx.Err()
	}
	if admErr != nil {
		return ExtendResult{}, admErr
	}
	if s.redis != nil && result.Extended {
		z := redis.Z{Score: float64(result.NewEndTime.Unix()), Member: auctionID}
		if err := s.redis.ZAdd(ctx, activeIndexKey, z).Err(); err != nil {
			s.log.Warn().Err(err).Str("auction_id", auctionID).Msg("failed to update active index after extension")
		}
	}
	return result, nil
}

// Finalize is primitive P3: transition the auction to ended, exactly once.
// Callers from either trigger (scheduled timer or hot-state expiry) race
// here; only the first call returns OK, the rest get ALREADY_FINAL.
func (s *Store) Finalize(ctx context.Context, auctionID string, serverTime time.Time) (FinalizeResult, error) {
	a, ok := s.lookup(auctionID)
	if !ok {
		return FinalizeResult{}, domain.NewError(domain.ErrNotFound, "auction not in hot state")
	}

	var (
		result FinalizeResult
		admErr *domain.AdmissionError
	)

	ok = a.submit(func(st *auctionState) {
		auc := &st.auction

		if auc.Status == domain.StatusEnded {
			admErr = domain.NewError(domain.ErrAlreadyFinal, "auction already finalized")
			return
		}
		if serverTime.Before(auc.EndTime) {
			admErr = domain.NewError(domain.ErrNotEnded, "auction has not reached its end time")
			return
		}

		auc.Status = domain.StatusEnded
		auc.UpdatedAt = serverTime

		result = FinalizeResult{
			WinnerID:   auc.HighestBidderID,
			WinningBid: auc.CurrentBid,
			TotalBids:  auc.TotalBids,
			EndTime:    auc.EndTime,
		}
	}, ctx.Done())

	if !ok {
		return FinalizeResult{}, ctx.Err()
	}
	if admErr != nil {
		return FinalizeResult{}, admErr
	}
	if s.redis != nil {
		s.redis.ZRem(ctx, activeIndexKey, auctionID)
	}
	return result, nil
}
