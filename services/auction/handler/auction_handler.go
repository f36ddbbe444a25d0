package handler

import (
	"context"
	"net/http"

	auction "auction-core/internal/auctionService"
	"auction-core/internal/models"
	"auction-core/services/helpers"
	"auction-core/utils"

	"github.com/gin-gonic/gin"
)

//go:generate mockgen -source=auction_handler.go -destination=mock_service.go -package=handler

type AuctionServiceInterface interface {
	Create(ctx context.Context, spec models.AuctionSpec) (models.Auction, error)
	Get(ctx context.Context, auctionID string) (models.Auction, error)
	List(ctx context.Context, req auction.PageRequest) (models.Page[models.Auction], error)
	Active(ctx context.Context) ([]models.Auction, error)
	EndingSoon(ctx context.Context) ([]models.Auction, error)
	Recent(ctx context.Context, limit int) ([]models.Auction, error)
	TopByPrice(ctx context.Context, limit int) ([]models.Auction, error)
	ByCategory(ctx context.Context, category string) ([]models.Auction, error)
	BySeller(ctx context.Context, sellerID string) ([]models.Auction, error)
	Search(ctx context.Context, query string) ([]models.Auction, error)
	Start(ctx context.Context, auctionID, requesterID string) (models.Auction, error)
	End(ctx context.Context, auctionID, requesterID string) (models.Auction, error)
	Cancel(ctx context.Context, auctionID, requesterID string) (models.Auction, error)
}

type AuctionHandler struct {
	service AuctionServiceInterface
}

func NewAuctionHandler(service AuctionServiceInterface) *AuctionHandler {
	return &AuctionHandler{service: service}
}

// CreateAuctionHandler handles POST /auctions
func (h *AuctionHandler) CreateAuctionHandler(c *gin.Context) {
	var req helpers.CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "CreateAuctionHandler", err)
		return
	}

	a, err := h.service.Create(c.Request.Context(), req.Spec())
	if err != nil {
		helpers.RespondError(c, "CreateAuctionHandler", err, map[string]any{"seller_id": req.SellerID})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, a, "auction created successfully")
	helpers.LogSuccess("CreateAuctionHandler", "auction created successfully", map[string]any{
		"auction_id": a.ID,
		"seller_id":  a.SellerID,
		"status":     a.Status,
	})
}

// GetAuctionHandler handles GET /auctions/:auction_id
func (h *AuctionHandler) GetAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	a, err := h.service.Get(c.Request.Context(), auctionID)
	if err != nil {
		helpers.RespondError(c, "GetAuctionHandler", err, map[string]any{"auction_id": auctionID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, a, "auction retrieved successfully")
}

// ListAuctionsHandler handles GET /auctions?page&size&sortBy&sortDir
func (h *AuctionHandler) ListAuctionsHandler(c *gin.Context) {
	page, err := helpers.QueryInt(c, "page", 0)
	if err != nil {
		helpers.RespondError(c, "ListAuctionsHandler", err, nil)
		return
	}
	size, err := helpers.QueryInt(c, "size", 0)
	if err != nil {
		helpers.RespondError(c, "ListAuctionsHandler", err, nil)
		return
	}

	result, err := h.service.List(c.Request.Context(), auction.PageRequest{
		Page:    page,
		Size:    size,
		SortBy:  c.Query("sortBy"),
		SortDir: c.Query("sortDir"),
	})
	if err != nil {
		helpers.RespondError(c, "ListAuctionsHandler", err, map[string]any{"page": page, "size": size})
		return
	}

	utils.JSONResponse(c, http.StatusOK, result, "auctions retrieved successfully")
}

// listing writes a plain auction list, never null
func listing(c *gin.Context, handlerName string, auctions []models.Auction, err error, ctx map[string]any) {
	if err != nil {
		helpers.RespondError(c, handlerName, err, ctx)
		return
	}
	if auctions == nil {
		auctions = []models.Auction{}
	}
	utils.JSONResponse(c, http.StatusOK, auctions, "auctions retrieved successfully")
}

// ActiveAuctionsHandler handles GET /auctions/active
func (h *AuctionHandler) ActiveAuctionsHandler(c *gin.Context) {
	auctions, err := h.service.Active(c.Request.Context())
	listing(c, "ActiveAuctionsHandler", auctions, err, nil)
}

// EndingSoonHandler handles GET /auctions/ending-soon
func (h *AuctionHandler) EndingSoonHandler(c *gin.Context) {
	auctions, err := h.service.EndingSoon(c.Request.Context())
	listing(c, "EndingSoonHandler", auctions, err, nil)
}

// RecentAuctionsHandler handles GET /auctions/recent?limit=
func (h *AuctionHandler) RecentAuctionsHandler(c *gin.Context) {
	limit, err := helpers.QueryInt(c, "limit", 0)
	if err != nil {
		helpers.RespondError(c, "RecentAuctionsHandler", err, nil)
		return
	}
	auctions, err := h.service.Recent(c.Request.Context(), limit)
	listing(c, "RecentAuctionsHandler", auctions, err, map[string]any{"limit": limit})
}

// TopByPriceHandler handles GET /auctions/top-by-price?limit=
func (h *AuctionHandler) TopByPriceHandler(c *gin.Context) {
	limit, err := helpers.QueryInt(c, "limit", 0)
	if err != nil {
		helpers.RespondError(c, "TopByPriceHandler", err, nil)
		return
	}
	auctions, err := h.service.TopByPrice(c.Request.Context(), limit)
	listing(c, "TopByPriceHandler", auctions, err, map[string]any{"limit": limit})
}

// ByCategoryHandler handles GET /auctions/category/:category
func (h *AuctionHandler) ByCategoryHandler(c *gin.Context) {
	category := c.Param("category")
	auctions, err := h.service.ByCategory(c.Request.Context(), category)
	listing(c, "ByCategoryHandler", auctions, err, map[string]any{"category": category})
}

// BySellerHandler handles GET /auctions/seller/:seller_id
func (h *AuctionHandler) BySellerHandler(c *gin.Context) {
	sellerID := c.Param("seller_id")
	auctions, err := h.service.BySeller(c.Request.Context(), sellerID)
	listing(c, "BySellerHandler", auctions, err, map[string]any{"seller_id": sellerID})
}

// SearchHandler handles GET /auctions/search?query=
func (h *AuctionHandler) SearchHandler(c *gin.Context) {
	query := c.Query("query")
	auctions, err := h.service.Search(c.Request.Context(), query)
	listing(c, "SearchHandler", auctions, err, map[string]any{"query": query})
}

type lifecycleAction func(ctx context.Context, auctionID, requesterID string) (models.Auction, error)

func (h *AuctionHandler) lifecycle(c *gin.Context, handlerName, done string, action lifecycleAction) {
	requester, ok := helpers.Requester(c, handlerName)
	if !ok {
		return
	}

	auctionID := c.Param("auction_id")
	a, err := action(c.Request.Context(), auctionID, requester)
	if err != nil {
		helpers.RespondError(c, handlerName, err, map[string]any{"auction_id": auctionID, "requester_id": requester})
		return
	}

	utils.JSONResponse(c, http.StatusOK, a, done)
	helpers.LogSuccess(handlerName, done, map[string]any{"auction_id": auctionID, "status": a.Status})
}

// StartAuctionHandler handles PATCH /auctions/:auction_id/start
func (h *AuctionHandler) StartAuctionHandler(c *gin.Context) {
	h.lifecycle(c, "StartAuctionHandler", "auction started successfully", h.service.Start)
}

// EndAuctionHandler handles PATCH /auctions/:auction_id/end
func (h *AuctionHandler) EndAuctionHandler(c *gin.Context) {
	h.lifecycle(c, "EndAuctionHandler", "auction ended successfully", h.service.End)
}

// CancelAuctionHandler handles PATCH /auctions/:auction_id/cancel
func (h *AuctionHandler) CancelAuctionHandler(c *gin.Context) {
	h.lifecycle(c, "CancelAuctionHandler", "auction cancelled successfully", h.service.Cancel)
}
