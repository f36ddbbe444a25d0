package perftests

import (
	"fmt"
	"time"

	auction "auction-core/internal/auctionService"
	"auction-core/internal/auctionlock"
	bidding "auction-core/internal/biddingService"
	"auction-core/internal/models"
	"auction-core/internal/notification"
	"auction-core/internal/repository"
	"auction-core/internal/settlement"

	"github.com/shopspring/decimal"
)

// newBench wires the bidding service over an in-memory store holding
// numAuctions open auctions named auction_<i>, each starting at startPrice
func newBench(numAuctions int, startPrice int64) (*repository.MemoryRepo, *bidding.BiddingService) {
	repo := repository.NewMemoryRepo()
	hub := notification.NewHub(256)
	locks := auctionlock.NewTable(5 * time.Second)
	engine := settlement.NewEngine(repo, hub)
	auctions := auction.NewAuctionService(repo, locks, engine, hub, auction.Options{})
	svc := bidding.NewBiddingService(repo, locks, auctions, hub, bidding.Options{})

	now := time.Now().UTC()
	for i := 0; i < numAuctions; i++ {
		repo.AddAuction(models.Auction{
			ID:            auctionID(i),
			SellerID:      "bench_seller",
			Title:         fmt.Sprintf("Benchmark auction %d", i),
			Description:   "Benchmark auction",
			StartingPrice: decimal.NewFromInt(startPrice),
			CurrentPrice:  decimal.NewFromInt(startPrice),
			Status:        models.AuctionActive,
			StartTime:     now,
			EndTime:       now.Add(24 * time.Hour),
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}
	return repo, svc
}

func auctionID(i int) string {
	return fmt.Sprintf("auction_%d", i)
}

func bid(auctionID, bidderID string, amount int64) models.BidRequest {
	return models.BidRequest{AuctionID: auctionID, BidderID: bidderID, Amount: decimal.NewFromInt(amount)}
}
