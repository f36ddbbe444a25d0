package bidding

import (
	"context"
	"fmt"

	"auction-core/internal/biddingerrors"
	"auction-core/internal/models"
)

// DefaultRecentBids is the page size for the recent bids view
const DefaultRecentBids = 10

// GetBidsForAuction returns the full ledger of an auction, oldest first
func (s *BiddingService) GetBidsForAuction(ctx context.Context, auctionID string) ([]models.Bid, error) {
	if auctionID == "" {
		return nil, fmt.Errorf("service: %w - empty auctionID", biddingerrors.ErrValidation)
	}
	bids, err := s.repo.GetBidsByAuction(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for auction %s: %w", auctionID, err)
	}
	return bids, nil
}

// GetRecentBids returns up to limit bids, newest first
func (s *BiddingService) GetRecentBids(ctx context.Context, auctionID string, limit int) ([]models.Bid, error) {
	if auctionID == "" {
		return nil, fmt.Errorf("service: %w - empty auctionID", biddingerrors.ErrValidation)
	}
	if limit <= 0 {
		limit = DefaultRecentBids
	}
	bids, err := s.repo.GetRecentBids(ctx, auctionID, limit)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get recent bids for auction %s: %w", auctionID, err)
	}
	return bids, nil
}

// GetHighestBid returns the auction's winning bid
func (s *BiddingService) GetHighestBid(ctx context.Context, auctionID string) (models.Bid, error) {
	if auctionID == "" {
		return models.Bid{}, fmt.Errorf("service: %w - empty auctionID", biddingerrors.ErrValidation)
	}
	bid, err := s.repo.GetWinningBid(ctx, auctionID)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service: failed to get highest bid for auction %s: %w", auctionID, err)
	}
	return bid, nil
}

// GetPriceTrend returns the auction's price history, oldest first
func (s *BiddingService) GetPriceTrend(ctx context.Context, auctionID string) ([]models.PricePoint, error) {
	if auctionID == "" {
		return nil, fmt.Errorf("service: %w - empty auctionID", biddingerrors.ErrValidation)
	}
	trend, err := s.repo.GetPriceTrend(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get price trend for auction %s: %w", auctionID, err)
	}
	return trend, nil
}

// CountBids returns how many bids an auction has accepted
func (s *BiddingService) CountBids(ctx context.Context, auctionID string) (int, error) {
	if auctionID == "" {
		return 0, fmt.Errorf("service: %w - empty auctionID", biddingerrors.ErrValidation)
	}
	a, err := s.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return 0, fmt.Errorf("service: failed to count bids for auction %s: %w", auctionID, err)
	}
	return a.TotalBids, nil
}

// GetBidsByBidder returns a bidder's bids across all auctions, newest first
func (s *BiddingService) GetBidsByBidder(ctx context.Context, bidderID string) ([]models.Bid, error) {
	if bidderID == "" {
		return nil, fmt.Errorf("service: %w - empty bidderID", biddingerrors.ErrValidation)
	}
	bids, err := s.repo.GetBidsByBidder(ctx, bidderID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for bidder %s: %w", bidderID, err)
	}
	return bids, nil
}

// GetWinningBidsByBidder returns the bids a bidder currently leads with or has won
func (s *BiddingService) GetWinningBidsByBidder(ctx context.Context, bidderID string) ([]models.Bid, error) {
	bids, err := s.GetBidsByBidder(ctx, bidderID)
	if err != nil {
		return nil, err
	}

	winning := make([]models.Bid, 0)
	for _, b := range bids {
		if b.Status == models.BidWinning {
			winning = append(winning, b)
		}
	}
	return winning, nil
}
