package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"auction-core/internal/biddingerrors"
	"auction-core/internal/ledger"
	"auction-core/internal/models"

	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=repository.go -destination=mock_repository.go -package=repository

// AuctionDB defines the auction and bid storage interface.
// CommitBid, CancelBid and TransitionAuction are all-or-nothing.
type AuctionDB interface {
	CreateAuction(ctx context.Context, auction models.Auction) error
	GetAuction(ctx context.Context, auctionID string) (models.Auction, error)
	ListAuctions(ctx context.Context, filter models.AuctionFilter) ([]models.Auction, error)
	TransitionAuction(ctx context.Context, auctionID string, from, to models.AuctionStatus, outcome models.Outcome, at time.Time) (models.Auction, error)
	MarkPaid(ctx context.Context, auctionID string, at time.Time) (models.Auction, bool, error)

	CommitBid(ctx context.Context, bid models.Bid, expectedPrice decimal.Decimal, at time.Time) (models.Bid, models.Auction, error)
	CancelBid(ctx context.Context, auctionID, bidID string) (models.Bid, error)
	FindBid(ctx context.Context, bidID string) (models.Bid, error)
	GetBidsByAuction(ctx context.Context, auctionID string) ([]models.Bid, error)
	GetRecentBids(ctx context.Context, auctionID string, limit int) ([]models.Bid, error)
	GetWinningBid(ctx context.Context, auctionID string) (models.Bid, error)
	GetPriceTrend(ctx context.Context, auctionID string) ([]models.PricePoint, error)
	GetBidsByBidder(ctx context.Context, bidderID string) ([]models.Bid, error)
}

type auctionRecord struct {
	mu      sync.RWMutex
	auction models.Auction
	ledger  *ledger.Ledger
}

// MemoryRepo is a concurrency-safe in-memory implementation of AuctionDB.
// The outer lock only guards the record map; each auction has its own lock.
type MemoryRepo struct {
	mu      sync.RWMutex
	records map[string]*auctionRecord
}

// NewMemoryRepo creates a new in-memory repository instance
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		records: make(map[string]*auctionRecord),
	}
}

func (r *MemoryRepo) record(auctionID string) (*auctionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[auctionID]
	if !ok {
		return nil, fmt.Errorf("auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	return rec, nil
}

func (r *MemoryRepo) snapshot() []*auctionRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	recs := make([]*auctionRecord, 0, len(r.records))
	for _, rec := range r.records {
		recs = append(recs, rec)
	}
	return recs
}

// CreateAuction stores a new auction
func (r *MemoryRepo) CreateAuction(_ context.Context, auction models.Auction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[auction.ID]; exists {
		return fmt.Errorf("create auction %s: %w - duplicate id", auction.ID, biddingerrors.ErrValidation)
	}
	r.records[auction.ID] = &auctionRecord{auction: auction, ledger: ledger.New(auction.ID)}
	return nil
}

// AddAuction stores or replaces an auction. This method is intended for tests and seeding only.
func (r *MemoryRepo) AddAuction(auction models.Auction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[auction.ID] = &auctionRecord{auction: auction, ledger: ledger.New(auction.ID)}
}

// GetAuction returns a snapshot of an auction
func (r *MemoryRepo) GetAuction(_ context.Context, auctionID string) (models.Auction, error) {
	rec, err := r.record(auctionID)
	if err != nil {
		return models.Auction{}, err
	}
	rec.mu.RLock()
	defer rec.mu.RUnlock()
	return rec.auction, nil
}

// ListAuctions returns the auctions matching filter, oldest first
func (r *MemoryRepo) ListAuctions(_ context.Context, filter models.AuctionFilter) ([]models.Auction, error) {
	out := make([]models.Auction, 0)
	for _, rec := range r.snapshot() {
		rec.mu.RLock()
		a := rec.auction
		rec.mu.RUnlock()
		if filter.Matches(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// TransitionAuction moves an auction from one status to another
func (r *MemoryRepo) TransitionAuction(_ context.Context, auctionID string, from, to models.AuctionStatus, outcome models.Outcome, at time.Time) (models.Auction, error) {
	rec, err := r.record(auctionID)
	if err != nil {
		return models.Auction{}, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.auction.Status != from {
		return rec.auction, fmt.Errorf("transition auction %s from %s: %w - status is %s", auctionID, from, biddingerrors.ErrStaleState, rec.auction.Status)
	}
	rec.auction.Status = to
	if outcome != models.OutcomeNone {
		rec.auction.Outcome = outcome
	}
	rec.auction.UpdatedAt = at
	return rec.auction, nil
}

// MarkPaid flags an auction as paid, reporting whether anything changed
func (r *MemoryRepo) MarkPaid(_ context.Context, auctionID string, at time.Time) (models.Auction, bool, error) {
	rec, err := r.record(auctionID)
	if err != nil {
		return models.Auction{}, false, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.auction.Paid {
		return rec.auction, false, nil
	}
	rec.auction.Paid = true
	rec.auction.UpdatedAt = at
	return rec.auction, true, nil
}

// CommitBid appends bid to the auction's ledger, makes it the winning bid
// and applies it to the auction in one step. It fails with ErrStaleState if
// the auction's price is no longer expectedPrice.
func (r *MemoryRepo) CommitBid(_ context.Context, bid models.Bid, expectedPrice decimal.Decimal, at time.Time) (models.Bid, models.Auction, error) {
	rec, err := r.record(bid.AuctionID)
	if err != nil {
		return models.Bid{}, models.Auction{}, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.auction.Status != models.AuctionActive {
		return models.Bid{}, rec.auction, fmt.Errorf("commit bid on %s: %w", bid.AuctionID, biddingerrors.ErrAuctionNotActive)
	}
	if !rec.auction.CurrentPrice.Equal(expectedPrice) {
		return models.Bid{}, rec.auction, fmt.Errorf("commit bid on %s: %w", bid.AuctionID, biddingerrors.ErrStaleState)
	}

	stored := rec.ledger.Append(bid, at)
	if err := rec.ledger.MarkPriorOutbid(stored.ID); err != nil {
		return models.Bid{}, rec.auction, err
	}
	stored.Status = models.BidWinning
	rec.auction.ApplyAcceptedBid(stored)
	return stored, rec.auction, nil
}

// CancelBid withdraws a non-winning bid
func (r *MemoryRepo) CancelBid(_ context.Context, auctionID, bidID string) (models.Bid, error) {
	rec, err := r.record(auctionID)
	if err != nil {
		return models.Bid{}, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.ledger.Cancel(bidID)
}

// FindBid looks a bid up by id across all auctions
func (r *MemoryRepo) FindBid(_ context.Context, bidID string) (models.Bid, error) {
	for _, rec := range r.snapshot() {
		rec.mu.RLock()
		b, ok := rec.ledger.Get(bidID)
		rec.mu.RUnlock()
		if ok {
			return b, nil
		}
	}
	return models.Bid{}, fmt.Errorf("find bid %s: %w", bidID, biddingerrors.ErrBidNotFound)
}

// GetBidsByAuction returns every bid of an auction, oldest first
func (r *MemoryRepo) GetBidsByAuction(_ context.Context, auctionID string) ([]models.Bid, error) {
	rec, err := r.record(auctionID)
	if err != nil {
		return nil, err
	}
	rec.mu.RLock()
	defer rec.mu.RUnlock()
	return rec.ledger.All(), nil
}

// GetRecentBids returns up to limit bids, newest first
func (r *MemoryRepo) GetRecentBids(_ context.Context, auctionID string, limit int) ([]models.Bid, error) {
	rec, err := r.record(auctionID)
	if err != nil {
		return nil, err
	}
	rec.mu.RLock()
	defer rec.mu.RUnlock()
	return rec.ledger.Recent(limit), nil
}

// GetWinningBid returns the bid currently marked WINNING
func (r *MemoryRepo) GetWinningBid(_ context.Context, auctionID string) (models.Bid, error) {
	rec, err := r.record(auctionID)
	if err != nil {
		return models.Bid{}, err
	}
	rec.mu.RLock()
	defer rec.mu.RUnlock()

	b, ok := rec.ledger.Highest()
	if !ok {
		return models.Bid{}, fmt.Errorf("get winning bid for auction %s: %w", auctionID, biddingerrors.ErrNoBids)
	}
	return b, nil
}

// GetPriceTrend returns the auction's price history in timestamp order
func (r *MemoryRepo) GetPriceTrend(_ context.Context, auctionID string) ([]models.PricePoint, error) {
	rec, err := r.record(auctionID)
	if err != nil {
		return nil, err
	}
	rec.mu.RLock()
	defer rec.mu.RUnlock()
	return rec.ledger.PriceTrend(), nil
}

// GetBidsByBidder returns all bids of a bidder, newest first
func (r *MemoryRepo) GetBidsByBidder(_ context.Context, bidderID string) ([]models.Bid, error) {
	out := make([]models.Bid, 0)
	for _, rec := range r.snapshot() {
		rec.mu.RLock()
		out = append(out, rec.ledger.ByBidder(bidderID)...)
		rec.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}
