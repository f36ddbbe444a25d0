package handler

import (
	"context"
	"net/http"

	"auction-core/internal/models"
	"auction-core/services/helpers"
	"auction-core/utils"

	"github.com/gin-gonic/gin"
)

//go:generate mockgen -source=bidding_handler.go -destination=mock_service.go -package=handler

type BiddingServiceInterface interface {
	PlaceBid(ctx context.Context, req models.BidRequest) (models.Bid, error)
	CancelBid(ctx context.Context, bidID, requesterID string) (models.Bid, error)
	GetBidsForAuction(ctx context.Context, auctionID string) ([]models.Bid, error)
	GetRecentBids(ctx context.Context, auctionID string, limit int) ([]models.Bid, error)
	GetHighestBid(ctx context.Context, auctionID string) (models.Bid, error)
	GetPriceTrend(ctx context.Context, auctionID string) ([]models.PricePoint, error)
	CountBids(ctx context.Context, auctionID string) (int, error)
	GetBidsByBidder(ctx context.Context, bidderID string) ([]models.Bid, error)
	GetWinningBidsByBidder(ctx context.Context, bidderID string) ([]models.Bid, error)
}

type BiddingHandler struct {
	service BiddingServiceInterface
}

func NewBiddingHandler(service BiddingServiceInterface) *BiddingHandler {
	return &BiddingHandler{service: service}
}

// PlaceBidHandler handles POST /bids/auction/:auction_id
func (h *BiddingHandler) PlaceBidHandler(c *gin.Context) {
	var req helpers.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "PlaceBidHandler", err)
		return
	}

	auctionID := c.Param("auction_id")
	bid, err := h.service.PlaceBid(c.Request.Context(), models.BidRequest{
		AuctionID:  auctionID,
		BidderID:   req.BidderID,
		BidderName: req.DisplayName(),
		Amount:     req.Amount,
	})
	if err != nil {
		helpers.RespondError(c, "PlaceBidHandler", err, map[string]any{
			"auction_id": auctionID,
			"bidder_id":  req.BidderID,
			"amount":     req.Amount.String(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, bid, "bid placed successfully")
	helpers.LogSuccess("PlaceBidHandler", "bid placed successfully", map[string]any{
		"bid_id":     bid.ID,
		"auction_id": bid.AuctionID,
		"bidder_id":  bid.BidderID,
		"amount":     bid.Amount.String(),
	})
}

// CancelBidHandler handles PATCH /bids/:bid_id/cancel
func (h *BiddingHandler) CancelBidHandler(c *gin.Context) {
	requester, ok := helpers.Requester(c, "CancelBidHandler")
	if !ok {
		return
	}

	bidID := c.Param("bid_id")
	bid, err := h.service.CancelBid(c.Request.Context(), bidID, requester)
	if err != nil {
		helpers.RespondError(c, "CancelBidHandler", err, map[string]any{"bid_id": bidID, "requester_id": requester})
		return
	}

	utils.JSONResponse(c, http.StatusOK, bid, "bid cancelled successfully")
	helpers.LogSuccess("CancelBidHandler", "bid cancelled successfully", map[string]any{"bid_id": bidID})
}

// GetBidsByAuctionHandler handles GET /bids/auction/:auction_id
func (h *BiddingHandler) GetBidsByAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	bids, err := h.service.GetBidsForAuction(c.Request.Context(), auctionID)
	if err != nil {
		helpers.RespondError(c, "GetBidsByAuctionHandler", err, map[string]any{"auction_id": auctionID})
		return
	}
	if bids == nil {
		bids = []models.Bid{}
	}

	utils.JSONResponse(c, http.StatusOK, bids, "bids retrieved successfully")
	helpers.LogSuccess("GetBidsByAuctionHandler", "bids retrieved successfully", map[string]any{
		"auction_id": auctionID,
		"count":      len(bids),
	})
}

// GetRecentBidsHandler handles GET /bids/auction/:auction_id/recent?limit=
func (h *BiddingHandler) GetRecentBidsHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	limit, err := helpers.QueryInt(c, "limit", 0)
	if err != nil {
		helpers.RespondError(c, "GetRecentBidsHandler", err, map[string]any{"auction_id": auctionID})
		return
	}

	bids, err := h.service.GetRecentBids(c.Request.Context(), auctionID, limit)
	if err != nil {
		helpers.RespondError(c, "GetRecentBidsHandler", err, map[string]any{"auction_id": auctionID})
		return
	}
	if bids == nil {
		bids = []models.Bid{}
	}

	utils.JSONResponse(c, http.StatusOK, bids, "recent bids retrieved successfully")
}

// GetHighestBidHandler handles GET /bids/auction/:auction_id/highest
func (h *BiddingHandler) GetHighestBidHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	bid, err := h.service.GetHighestBid(c.Request.Context(), auctionID)
	if err != nil {
		helpers.RespondError(c, "GetHighestBidHandler", err, map[string]any{"auction_id": auctionID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, bid, "highest bid retrieved successfully")
}

// GetPriceTrendHandler handles GET /bids/auction/:auction_id/trends
func (h *BiddingHandler) GetPriceTrendHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	trend, err := h.service.GetPriceTrend(c.Request.Context(), auctionID)
	if err != nil {
		helpers.RespondError(c, "GetPriceTrendHandler", err, map[string]any{"auction_id": auctionID})
		return
	}
	if trend == nil {
		trend = []models.PricePoint{}
	}

	utils.JSONResponse(c, http.StatusOK, trend, "price trend retrieved successfully")
}

// CountBidsHandler handles GET /bids/auction/:auction_id/count
func (h *BiddingHandler) CountBidsHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	count, err := h.service.CountBids(c.Request.Context(), auctionID)
	if err != nil {
		helpers.RespondError(c, "CountBidsHandler", err, map[string]any{"auction_id": auctionID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.CountResponse{AuctionID: auctionID, Count: count}, "bid count retrieved successfully")
}

// GetBidsByBidderHandler handles GET /bids/bidder/:bidder_id
func (h *BiddingHandler) GetBidsByBidderHandler(c *gin.Context) {
	bidderID := c.Param("bidder_id")
	bids, err := h.service.GetBidsByBidder(c.Request.Context(), bidderID)
	if err != nil {
		helpers.RespondError(c, "GetBidsByBidderHandler", err, map[string]any{"bidder_id": bidderID})
		return
	}
	if bids == nil {
		bids = []models.Bid{}
	}

	utils.JSONResponse(c, http.StatusOK, bids, "bids retrieved successfully")
	helpers.LogSuccess("GetBidsByBidderHandler", "bids retrieved successfully", map[string]any{
		"bidder_id": bidderID,
		"count":     len(bids),
	})
}

// GetWinningBidsByBidderHandler handles GET /bids/bidder/:bidder_id/winning
func (h *BiddingHandler) GetWinningBidsByBidderHandler(c *gin.Context) {
	bidderID := c.Param("bidder_id")
	bids, err := h.service.GetWinningBidsByBidder(c.Request.Context(), bidderID)
	if err != nil {
		helpers.RespondError(c, "GetWinningBidsByBidderHandler", err, map[string]any{"bidder_id": bidderID})
		return
	}
	if bids == nil {
		bids = []models.Bid{}
	}

	utils.JSONResponse(c, http.StatusOK, bids, "winning bids retrieved successfully")
}
