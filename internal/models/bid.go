package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BidStatus is the standing of a bid within its auction
type BidStatus string

const (
	BidActive    BidStatus = "ACTIVE"
	BidOutbid    BidStatus = "OUTBID"
	BidWinning   BidStatus = "WINNING"
	BidCancelled BidStatus = "CANCELLED"
)

// Bid represents an accepted offer against an auction
type Bid struct {
	ID         string          `json:"id" db:"id"`
	AuctionID  string          `json:"auctionId" db:"auction_id"`
	BidderID   string          `json:"bidderId" db:"bidder_id"`
	BidderName string          `json:"bidderName" db:"bidder_name"`
	Amount     decimal.Decimal `json:"amount" db:"amount"`
	Timestamp  time.Time       `json:"timestamp" db:"placed_at"`
	Sequence   int64           `json:"sequence" db:"seq"`
	Status     BidStatus       `json:"status" db:"status"`
}

// PricePoint is one step of an auction's price history
type PricePoint struct {
	Amount     decimal.Decimal `json:"amount"`
	Timestamp  time.Time       `json:"timestamp"`
	BidderName string          `json:"bidderName"`
}

// BidRequest is a bidder's offer before admission
type BidRequest struct {
	AuctionID  string
	BidderID   string
	BidderName string
	Amount     decimal.Decimal
}

// BidRejection describes a bid turned down at admission
type BidRejection struct {
	AuctionID string          `json:"auctionId"`
	BidderID  string          `json:"bidderId"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason"`
}
