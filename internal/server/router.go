package server

import (
	"net/http"

	auction "auction-core/internal/auctionService"
	bidding "auction-core/internal/biddingService"
	"auction-core/internal/notification"
	auctionhandler "auction-core/services/auction/handler"
	biddinghandler "auction-core/services/bidding/handler"
	"auction-core/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter configures all Gin routes for the application
func SetupRouter(auctionService *auction.AuctionService, biddingService *bidding.BiddingService, hub *notification.Hub) *gin.Engine {
	router := gin.New() // New router without default middleware for full control over middleware and logging

	router.Use(gin.Recovery())          // recover from panics
	router.Use(RequestLoggerMiddleware) // custom request logging
	router.Use(MetricsMiddleware)

	router.GET("/health", func(c *gin.Context) {
		utils.JSONResponse(c, http.StatusOK, gin.H{"status": "ok"}, "healthy")
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auctionHandler := auctionhandler.NewAuctionHandler(auctionService)
	biddingHandler := biddinghandler.NewBiddingHandler(biddingService)
	streams := NewStreamHandler(hub)

	api := router.Group("/api")

	auctions := api.Group("/auctions")
	{
		auctions.POST("", auctionHandler.CreateAuctionHandler)
		auctions.GET("", auctionHandler.ListAuctionsHandler)
		auctions.GET("/active", auctionHandler.ActiveAuctionsHandler)
		auctions.GET("/ending-soon", auctionHandler.EndingSoonHandler)
		auctions.GET("/recent", auctionHandler.RecentAuctionsHandler)
		auctions.GET("/top-by-price", auctionHandler.TopByPriceHandler)
		auctions.GET("/search", auctionHandler.SearchHandler)
		auctions.GET("/category/:category", auctionHandler.ByCategoryHandler)
		auctions.GET("/seller/:seller_id", auctionHandler.BySellerHandler)
		auctions.GET("/:auction_id", auctionHandler.GetAuctionHandler)
		auctions.PATCH("/:auction_id/start", auctionHandler.StartAuctionHandler)
		auctions.PATCH("/:auction_id/end", auctionHandler.EndAuctionHandler)
		auctions.PATCH("/:auction_id/cancel", auctionHandler.CancelAuctionHandler)
	}

	bids := api.Group("/bids")
	{
		bids.POST("/auction/:auction_id", biddingHandler.PlaceBidHandler)
		bids.GET("/auction/:auction_id", biddingHandler.GetBidsByAuctionHandler)
		bids.GET("/auction/:auction_id/recent", biddingHandler.GetRecentBidsHandler)
		bids.GET("/auction/:auction_id/highest", biddingHandler.GetHighestBidHandler)
		bids.GET("/auction/:auction_id/trends", biddingHandler.GetPriceTrendHandler)
		bids.GET("/auction/:auction_id/count", biddingHandler.CountBidsHandler)
		bids.GET("/bidder/:bidder_id", biddingHandler.GetBidsByBidderHandler)
		bids.GET("/bidder/:bidder_id/winning", biddingHandler.GetWinningBidsByBidderHandler)
		bids.PATCH("/:bid_id/cancel", biddingHandler.CancelBidHandler)
	}

	ws := router.Group("/ws")
	{
		ws.GET("/topic/auction/:auction_id", streams.AuctionStream)
		ws.GET("/user/:user_id/notifications", streams.UserStream)
	}

	return router
}
