package biddingerrors

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Repository-level errors
var (
	ErrAuctionNotFound = errors.New("auction not found")
	ErrBidNotFound     = errors.New("bid not found")
	ErrNoBids          = errors.New("no bids found for auction")
	ErrStorage         = errors.New("storage failure")
	ErrStaleState      = errors.New("auction changed concurrently")
)

// business logic errors
var (
	ErrValidation        = errors.New("invalid request")
	ErrBidTooLow         = errors.New("bid amount too low")
	ErrAuctionNotActive  = errors.New("auction is not active")
	ErrSelfBid           = errors.New("sellers cannot bid on their own auction")
	ErrUnauthorized      = errors.New("not allowed for this user")
	ErrInvalidTransition = errors.New("invalid auction state change")
	ErrTimeout           = errors.New("auction is busy, try again")
	ErrPaymentMismatch   = errors.New("payment does not match auction outcome")
)

// BidTooLowError carries the price a rejected bid had to beat
type BidTooLowError struct {
	// Minimum is the lowest acceptable amount when an increment applies,
	// otherwise the current price the bid had to exceed.
	Minimum   decimal.Decimal
	Increment bool
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("%s - %s", ErrBidTooLow, e.Message())
}

// Message is the user facing explanation
func (e *BidTooLowError) Message() string {
	if e.Increment {
		return "minimum bid is " + e.Minimum.StringFixed(2)
	}
	return "bid amount must be higher than the current price of " + e.Minimum.StringFixed(2)
}

func (e *BidTooLowError) Unwrap() error {
	return ErrBidTooLow
}
