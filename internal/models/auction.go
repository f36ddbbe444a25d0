package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// amounts travel as JSON numbers on the wire
	decimal.MarshalJSONWithoutQuotes = true
}

// AuctionStatus is the lifecycle state of an auction
type AuctionStatus string

const (
	AuctionDraft     AuctionStatus = "DRAFT"
	AuctionScheduled AuctionStatus = "SCHEDULED"
	AuctionActive    AuctionStatus = "ACTIVE"
	AuctionEnded     AuctionStatus = "ENDED"
	AuctionCancelled AuctionStatus = "CANCELLED"
)

// Terminal reports whether no further transition is possible
func (s AuctionStatus) Terminal() bool {
	return s == AuctionEnded || s == AuctionCancelled
}

// Valid reports whether s is one of the known statuses
func (s AuctionStatus) Valid() bool {
	switch s {
	case AuctionDraft, AuctionScheduled, AuctionActive, AuctionEnded, AuctionCancelled:
		return true
	}
	return false
}

// Outcome is the settlement result of an ended auction
type Outcome string

const (
	OutcomeNone          Outcome = ""
	OutcomeWon           Outcome = "WON"
	OutcomeReserveNotMet Outcome = "RESERVE_NOT_MET"
	OutcomeNoBids        Outcome = "NO_BIDS"
)

// Auction represents a time-bounded listing
type Auction struct {
	ID              string          `json:"id" db:"id"`
	SellerID        string          `json:"sellerId" db:"seller_id"`
	Title           string          `json:"title" db:"title"`
	Description     string          `json:"description" db:"description"`
	Category        string          `json:"category" db:"category"`
	StartingPrice   decimal.Decimal `json:"startingPrice" db:"starting_price"`
	ReservePrice    decimal.Decimal `json:"reservePrice" db:"reserve_price"`
	CurrentPrice    decimal.Decimal `json:"currentPrice" db:"current_price"`
	CurrentWinnerID *string         `json:"currentWinnerId" db:"current_winner_id"`
	Status          AuctionStatus   `json:"status" db:"status"`
	StartTime       time.Time       `json:"startTime" db:"start_time"`
	EndTime         time.Time       `json:"endTime" db:"end_time"`
	TotalBids       int             `json:"totalBids" db:"total_bids"`
	Outcome         Outcome         `json:"outcome,omitempty" db:"outcome"`
	Paid            bool            `json:"paid" db:"paid"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time       `json:"updatedAt" db:"updated_at"`
}

// HasReserve reports whether a reserve price was set
func (a Auction) HasReserve() bool {
	return a.ReservePrice.IsPositive()
}

// WinnerID returns the current winner or "" when there are no bids
func (a Auction) WinnerID() string {
	if a.CurrentWinnerID == nil {
		return ""
	}
	return *a.CurrentWinnerID
}

// ApplyAcceptedBid moves the price and winner to an accepted bid.
// Callers must hold the auction's serialization unit.
func (a *Auction) ApplyAcceptedBid(bid Bid) {
	winner := bid.BidderID
	a.CurrentPrice = bid.Amount
	a.CurrentWinnerID = &winner
	a.TotalBids++
	a.UpdatedAt = bid.Timestamp
}

// DueStatus returns the status the clock says the auction should be in.
// DRAFT and terminal auctions are never moved by time alone.
func (a Auction) DueStatus(now time.Time) AuctionStatus {
	switch a.Status {
	case AuctionScheduled:
		if !now.Before(a.EndTime) {
			return AuctionEnded
		}
		if !now.Before(a.StartTime) {
			return AuctionActive
		}
	case AuctionActive:
		if !now.Before(a.EndTime) {
			return AuctionEnded
		}
	}
	return a.Status
}

// AuctionSpec carries the seller supplied fields of a new auction
type AuctionSpec struct {
	SellerID      string
	Title         string
	Description   string
	Category      string
	StartingPrice decimal.Decimal
	ReservePrice  decimal.Decimal
	StartTime     time.Time
	EndTime       time.Time
	Draft         bool
}

// AuctionFilter narrows auction listings. Zero fields match everything.
type AuctionFilter struct {
	Status      AuctionStatus
	Category    string
	SellerID    string
	Search      string
	EndsBefore  time.Time
	NonTerminal bool
}

// Matches reports whether a satisfies every set field of f
func (f AuctionFilter) Matches(a Auction) bool {
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.NonTerminal && a.Status.Terminal() {
		return false
	}
	if f.Category != "" && !strings.EqualFold(a.Category, f.Category) {
		return false
	}
	if f.SellerID != "" && a.SellerID != f.SellerID {
		return false
	}
	if !f.EndsBefore.IsZero() && !a.EndTime.Before(f.EndsBefore) {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(a.Title), q) && !strings.Contains(strings.ToLower(a.Description), q) {
			return false
		}
	}
	return true
}

// Page is one slice of a sorted listing
type Page[T any] struct {
	Content       []T `json:"content"`
	Page          int `json:"page"`
	Size          int `json:"size"`
	TotalElements int `json:"totalElements"`
	TotalPages    int `json:"totalPages"`
}
