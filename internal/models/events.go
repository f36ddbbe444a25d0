package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// EventType names a notification or integration event
type EventType string

const (
	EventNewBid           EventType = "NEW_BID"
	EventBidPlaced        EventType = "BID_PLACED"
	EventBidOutbid        EventType = "BID_OUTBID"
	EventBidRejected      EventType = "BID_REJECTED"
	EventAuctionStarted   EventType = "AUCTION_STARTED"
	EventAuctionCancelled EventType = "AUCTION_CANCELLED"
	EventAuctionEnded     EventType = "AUCTION_ENDED"
	EventAuctionWon       EventType = "AUCTION_WON"
	EventPaymentConfirmed EventType = "PAYMENT_CONFIRMED"
)

// Event is a single fan-out message addressed to one topic
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Topic     string    `json:"topic"`
	AuctionID string    `json:"auctionId"`
	Message   string    `json:"message,omitempty"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// BidderRef identifies who placed a broadcast bid
type BidderRef struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// NewBidderRef splits a display name at its first space into first and
// last name. A bidder without a name is shown by id.
func NewBidderRef(bidderID, displayName string) BidderRef {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return BidderRef{ID: bidderID, FirstName: bidderID}
	}
	first, last, _ := strings.Cut(displayName, " ")
	return BidderRef{ID: bidderID, FirstName: first, LastName: strings.TrimSpace(last)}
}

// BidBroadcast is the live payload sent to an auction's watchers
type BidBroadcast struct {
	BidID     string          `json:"bidId"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
	Bidder    BidderRef       `json:"bidder"`
	TotalBids int             `json:"totalBids"`
}

// Settlement is the terminal outcome of an auction.
// WinnerID and FinalPrice are set only for OutcomeWon.
type Settlement struct {
	AuctionID    string           `json:"auctionId"`
	SellerID     string           `json:"sellerId"`
	Outcome      Outcome          `json:"outcome"`
	WinnerID     string           `json:"winnerId,omitempty"`
	FinalPrice   *decimal.Decimal `json:"finalPrice,omitempty"`
	HighestBid   decimal.Decimal  `json:"highestBid"`
	ReservePrice decimal.Decimal  `json:"reservePrice"`
	TotalBids    int              `json:"totalBids"`
	SettledAt    time.Time        `json:"settledAt"`
}

// PaymentConfirmation is consumed from the payment collaborator
type PaymentConfirmation struct {
	EventID   string          `json:"eventId"`
	EventType string          `json:"eventType"`
	AuctionID string          `json:"auctionId"`
	PayerID   string          `json:"payerId"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference"`
	PaidAt    time.Time       `json:"paidAt"`
}

// Integration event type names on the auction-events topic
const (
	IntegrationBidAccepted    = "BidAccepted"
	IntegrationBidRejected    = "BidRejected"
	IntegrationAuctionSettled = "AuctionSettled"
	IntegrationPaymentConfirm = "PaymentConfirmation"
)

// IntegrationEvent is the envelope written to the auction-events topic
type IntegrationEvent struct {
	EventID   string    `json:"eventId"`
	EventType string    `json:"eventType"`
	AuctionID string    `json:"auctionId"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// AuctionTopic is the fan-out key of an auction's public stream
func AuctionTopic(auctionID string) string {
	return "auction:" + auctionID
}

// UserTopic is the fan-out key of a user's private queue
func UserTopic(userID string) string {
	return "user:" + userID
}
