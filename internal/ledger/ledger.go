// Package ledger keeps the append-only, totally ordered bid log of one auction.
// A Ledger is not safe for concurrent use; its owner serializes access.
package ledger

import (
	"fmt"
	"time"

	"auction-core/internal/biddingerrors"
	"auction-core/internal/models"
	"auction-core/utils"
)

// Ledger holds the accepted bids of a single auction in acceptance order
type Ledger struct {
	auctionID string
	bids      []models.Bid
	byID      map[string]int
	winning   int
	seq       int64
	last      time.Time
}

// New creates an empty ledger for auctionID
func New(auctionID string) *Ledger {
	return &Ledger{
		auctionID: auctionID,
		byID:      make(map[string]int),
		winning:   -1,
	}
}

// Restore rebuilds a ledger from bids already ordered by sequence
func Restore(auctionID string, bids []models.Bid) *Ledger {
	l := New(auctionID)
	for _, b := range bids {
		l.byID[b.ID] = len(l.bids)
		if b.Status == models.BidWinning {
			l.winning = len(l.bids)
		}
		l.bids = append(l.bids, b)
		if b.Sequence > l.seq {
			l.seq = b.Sequence
		}
		if b.Timestamp.After(l.last) {
			l.last = b.Timestamp
		}
	}
	return l
}

// Append records bid, assigning its id, sequence and a timestamp that is
// strictly later than every earlier bid of the auction.
func (l *Ledger) Append(bid models.Bid, at time.Time) models.Bid {
	l.seq, l.last = NextStamp(l.seq, l.last, at)

	if bid.ID == "" {
		bid.ID = utils.GenerateID()
	}
	bid.AuctionID = l.auctionID
	bid.Timestamp = l.last
	bid.Sequence = l.seq
	bid.Status = models.BidActive

	l.byID[bid.ID] = len(l.bids)
	l.bids = append(l.bids, bid)
	return bid
}

// NextStamp returns the sequence and timestamp of the bid following one
// stamped (lastSeq, last). Timestamps advance by at least a microsecond so
// they stay unique at database precision.
func NextStamp(lastSeq int64, last, at time.Time) (int64, time.Time) {
	at = at.UTC().Truncate(time.Microsecond)
	if !at.After(last) {
		at = last.Add(time.Microsecond)
	}
	return lastSeq + 1, at
}

// MarkPriorOutbid makes exceptBidID the single WINNING bid and flips every
// other ACTIVE or WINNING bid to OUTBID.
func (l *Ledger) MarkPriorOutbid(exceptBidID string) error {
	idx, ok := l.byID[exceptBidID]
	if !ok {
		return fmt.Errorf("mark outbid on %s: %w", l.auctionID, biddingerrors.ErrBidNotFound)
	}
	for i := range l.bids {
		if i == idx {
			continue
		}
		if s := l.bids[i].Status; s == models.BidActive || s == models.BidWinning {
			l.bids[i].Status = models.BidOutbid
		}
	}
	l.bids[idx].Status = models.BidWinning
	l.winning = idx
	return nil
}

// Cancel withdraws a non-winning bid
func (l *Ledger) Cancel(bidID string) (models.Bid, error) {
	idx, ok := l.byID[bidID]
	if !ok {
		return models.Bid{}, fmt.Errorf("cancel bid %s: %w", bidID, biddingerrors.ErrBidNotFound)
	}
	switch l.bids[idx].Status {
	case models.BidWinning:
		return models.Bid{}, fmt.Errorf("cancel bid %s: %w - winning bid cannot be cancelled", bidID, biddingerrors.ErrInvalidTransition)
	case models.BidCancelled:
		return l.bids[idx], nil
	}
	l.bids[idx].Status = models.BidCancelled
	return l.bids[idx], nil
}

// Highest returns the WINNING bid
func (l *Ledger) Highest() (models.Bid, bool) {
	if l.winning < 0 {
		return models.Bid{}, false
	}
	return l.bids[l.winning], true
}

// Get returns the bid with the given id
func (l *Ledger) Get(bidID string) (models.Bid, bool) {
	idx, ok := l.byID[bidID]
	if !ok {
		return models.Bid{}, false
	}
	return l.bids[idx], true
}

// All returns a copy of every bid, oldest first
func (l *Ledger) All() []models.Bid {
	return append([]models.Bid(nil), l.bids...)
}

// Recent returns up to n bids, newest first
func (l *Ledger) Recent(n int) []models.Bid {
	if n <= 0 || n > len(l.bids) {
		n = len(l.bids)
	}
	out := make([]models.Bid, 0, n)
	for i := len(l.bids) - 1; i >= len(l.bids)-n; i-- {
		out = append(out, l.bids[i])
	}
	return out
}

// ByBidder returns the bids placed by bidderID, oldest first
func (l *Ledger) ByBidder(bidderID string) []models.Bid {
	var out []models.Bid
	for _, b := range l.bids {
		if b.BidderID == bidderID {
			out = append(out, b)
		}
	}
	return out
}

// PriceTrend returns the accepted prices in timestamp order.
// Cancelled bids stay in the trend since they moved the price when accepted.
func (l *Ledger) PriceTrend() []models.PricePoint {
	out := make([]models.PricePoint, 0, len(l.bids))
	for _, b := range l.bids {
		out = append(out, models.PricePoint{
			Amount:     b.Amount,
			Timestamp:  b.Timestamp,
			BidderName: b.BidderName,
		})
	}
	return out
}

// Len returns the number of accepted bids
func (l *Ledger) Len() int {
	return len(l.bids)
}
