package helpers

import (
	"strings"
	"time"

	"auction-core/internal/models"

	"github.com/shopspring/decimal"
)

// Request/Response DTOs
type PlaceBidRequest struct {
	BidderID        string          `json:"bidderId" binding:"required"`
	BidderName      string          `json:"bidderName"`
	BidderFirstName string          `json:"bidderFirstName"`
	BidderLastName  string          `json:"bidderLastName"`
	Amount          decimal.Decimal `json:"amount"`
}

// DisplayName prefers first and last name over bidderName when either is set
func (r PlaceBidRequest) DisplayName() string {
	full := strings.TrimSpace(strings.TrimSpace(r.BidderFirstName) + " " + strings.TrimSpace(r.BidderLastName))
	if full != "" {
		return full
	}
	return strings.TrimSpace(r.BidderName)
}

type CreateAuctionRequest struct {
	SellerID      string          `json:"sellerId" binding:"required"`
	Title         string          `json:"title" binding:"required"`
	Description   string          `json:"description"`
	Category      string          `json:"category"`
	StartingPrice decimal.Decimal `json:"startingPrice"`
	ReservePrice  decimal.Decimal `json:"reservePrice"`
	StartTime     *time.Time      `json:"startTime"`
	EndTime       time.Time       `json:"endTime" binding:"required"`
	Draft         bool            `json:"draft"`
}

// Spec converts the request into the service's creation input
func (r CreateAuctionRequest) Spec() models.AuctionSpec {
	spec := models.AuctionSpec{
		SellerID:      r.SellerID,
		Title:         r.Title,
		Description:   r.Description,
		Category:      r.Category,
		StartingPrice: r.StartingPrice,
		ReservePrice:  r.ReservePrice,
		EndTime:       r.EndTime,
		Draft:         r.Draft,
	}
	if r.StartTime != nil {
		spec.StartTime = *r.StartTime
	}
	return spec
}

type CountResponse struct {
	AuctionID string `json:"auctionId"`
	Count     int    `json:"count"`
}
