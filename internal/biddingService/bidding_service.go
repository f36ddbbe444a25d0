package bidding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auction-core/internal/auctionlock"
	"auction-core/internal/biddingerrors"
	"auction-core/internal/models"
	"auction-core/internal/notification"
	"auction-core/internal/repository"
	"auction-core/utils"

	"github.com/shopspring/decimal"
)

// maxCommitAttempts bounds the compare-and-swap retries against a store
// that another process may also write to
const maxCommitAttempts = 3

// Lifecycle applies due time based transitions while the caller holds the
// auction's lock
type Lifecycle interface {
	ApplyDueLocked(ctx context.Context, a models.Auction, now time.Time) (models.Auction, error)
}

// Options holds bid admission policy
type Options struct {
	// MinIncrement is the smallest step over the current price. Zero only
	// requires a strictly higher amount.
	MinIncrement decimal.Decimal
}

// BiddingService admits bids and serves the ledger read views
type BiddingService struct {
	repo      repository.AuctionDB
	locks     *auctionlock.Table
	lifecycle Lifecycle
	publisher notification.Publisher
	opts      Options
	clock     func() time.Time
}

// NewBiddingService creates a new BiddingService instance. locks must be the
// table shared with the lifecycle owner so transitions and bids exclude each other.
func NewBiddingService(repo repository.AuctionDB, locks *auctionlock.Table, lifecycle Lifecycle, publisher notification.Publisher, opts Options) *BiddingService {
	return &BiddingService{
		repo:      repo,
		locks:     locks,
		lifecycle: lifecycle,
		publisher: publisher,
		opts:      opts,
		clock:     time.Now,
	}
}

// SetClock replaces the service's time source
func (s *BiddingService) SetClock(clock func() time.Time) {
	s.clock = clock
}

// PlaceBid validates req and, under the auction's lock, records it as the
// new winning bid. The ledger append, the outbid marking and the auction's
// price update are applied as one step, and watchers are notified before
// the lock is released so their stream follows ledger order.
func (s *BiddingService) PlaceBid(ctx context.Context, req models.BidRequest) (models.Bid, error) {
	start := time.Now()
	defer func() { utils.BidAdmissionLatency.Observe(time.Since(start).Seconds()) }()

	ctx, span := utils.StartSpan(ctx, "bidding.PlaceBid")
	defer span.End()

	if err := validateRequest(req); err != nil {
		s.rejected(req, err)
		return models.Bid{}, err
	}

	release, err := s.locks.Acquire(ctx, req.AuctionID)
	if err != nil {
		s.rejected(req, err)
		return models.Bid{}, fmt.Errorf("service: %w", err)
	}
	defer release()

	for attempt := 1; ; attempt++ {
		a, err := s.repo.GetAuction(ctx, req.AuctionID)
		if err != nil {
			s.rejected(req, err)
			return models.Bid{}, fmt.Errorf("service: failed to load auction %s: %w", req.AuctionID, err)
		}

		now := s.clock().UTC()
		if a, err = s.lifecycle.ApplyDueLocked(ctx, a, now); err != nil {
			s.rejected(req, err)
			return models.Bid{}, fmt.Errorf("service: failed to refresh auction %s: %w", req.AuctionID, err)
		}

		if err := s.checkAdmission(a, req); err != nil {
			s.rejected(req, err)
			return models.Bid{}, err
		}

		candidate := models.Bid{
			ID:         utils.GenerateID(),
			AuctionID:  req.AuctionID,
			BidderID:   req.BidderID,
			BidderName: req.BidderName,
			Amount:     req.Amount,
		}
		bid, updated, err := s.repo.CommitBid(ctx, candidate, a.CurrentPrice, now)
		if errors.Is(err, biddingerrors.ErrStaleState) && attempt < maxCommitAttempts {
			utils.Warn("bid commit raced with another writer, retrying", map[string]any{
				"auction_id": req.AuctionID,
				"attempt":    attempt,
			})
			continue
		}
		if err != nil {
			err = commitError(req.AuctionID, err)
			s.rejected(req, err)
			return models.Bid{}, err
		}

		s.accepted(bid, updated, a.WinnerID())
		return bid, nil
	}
}

func validateRequest(req models.BidRequest) error {
	if req.AuctionID == "" || req.BidderID == "" {
		return fmt.Errorf("service: %w - missing auctionID or bidderID", biddingerrors.ErrValidation)
	}
	if !req.Amount.IsPositive() {
		return fmt.Errorf("service: %w - non-positive bid amount", biddingerrors.ErrValidation)
	}
	return nil
}

// checkAdmission applies the business rules against the fresh auction state
func (s *BiddingService) checkAdmission(a models.Auction, req models.BidRequest) error {
	if a.Status != models.AuctionActive {
		return fmt.Errorf("service: %w - auction %s is %s", biddingerrors.ErrAuctionNotActive, a.ID, a.Status)
	}
	if req.BidderID == a.SellerID {
		return fmt.Errorf("service: %w", biddingerrors.ErrSelfBid)
	}
	if !req.Amount.GreaterThan(a.CurrentPrice) {
		return fmt.Errorf("service: %w", &biddingerrors.BidTooLowError{Minimum: a.CurrentPrice})
	}
	if s.opts.MinIncrement.IsPositive() {
		minimum := a.CurrentPrice.Add(s.opts.MinIncrement)
		if req.Amount.LessThan(minimum) {
			return fmt.Errorf("service: %w", &biddingerrors.BidTooLowError{Minimum: minimum, Increment: true})
		}
	}
	return nil
}

// commitError keeps business failures and turns anything else into a storage failure
func commitError(auctionID string, err error) error {
	switch {
	case errors.Is(err, biddingerrors.ErrAuctionNotActive),
		errors.Is(err, biddingerrors.ErrAuctionNotFound),
		errors.Is(err, biddingerrors.ErrStorage):
		return fmt.Errorf("service: failed to record bid for auction %s: %w", auctionID, err)
	case errors.Is(err, biddingerrors.ErrStaleState):
		return fmt.Errorf("service: %w - auction %s kept changing", biddingerrors.ErrTimeout, auctionID)
	default:
		return fmt.Errorf("service: failed to record bid for auction %s: %w: %w", auctionID, biddingerrors.ErrStorage, err)
	}
}

func (s *BiddingService) accepted(bid models.Bid, a models.Auction, previousWinner string) {
	utils.BidsAcceptedTotal.Inc()
	utils.Info("bid accepted", map[string]any{
		"bid_id":     bid.ID,
		"auction_id": bid.AuctionID,
		"bidder_id":  bid.BidderID,
		"amount":     bid.Amount.String(),
		"sequence":   bid.Sequence,
	})

	s.publisher.Publish(models.Event{
		Type:      models.EventNewBid,
		Topic:     models.AuctionTopic(bid.AuctionID),
		AuctionID: bid.AuctionID,
		Timestamp: bid.Timestamp,
		Data: models.BidBroadcast{
			BidID:     bid.ID,
			Amount:    bid.Amount,
			Timestamp: bid.Timestamp,
			Bidder:    models.NewBidderRef(bid.BidderID, bid.BidderName),
			TotalBids: a.TotalBids,
		},
	})
	s.publisher.Publish(models.Event{
		Type:      models.EventBidPlaced,
		Topic:     models.UserTopic(bid.BidderID),
		AuctionID: bid.AuctionID,
		Timestamp: bid.Timestamp,
		Message:   fmt.Sprintf("Your bid of %s is winning", bid.Amount.StringFixed(2)),
		Data:      bid,
	})
	if previousWinner != "" && previousWinner != bid.BidderID {
		s.publisher.Publish(models.Event{
			Type:      models.EventBidOutbid,
			Topic:     models.UserTopic(previousWinner),
			AuctionID: bid.AuctionID,
			Timestamp: bid.Timestamp,
			Message:   fmt.Sprintf("You have been outbid. New price is %s", bid.Amount.StringFixed(2)),
			Data:      models.BidBroadcast{BidID: bid.ID, Amount: bid.Amount, Timestamp: bid.Timestamp, TotalBids: a.TotalBids},
		})
	}
}

func (s *BiddingService) rejected(req models.BidRequest, err error) {
	reason := RejectionReason(err)
	utils.BidsRejectedTotal.WithLabelValues(reason).Inc()

	fields := map[string]any{
		"auction_id": req.AuctionID,
		"bidder_id":  req.BidderID,
		"amount":     req.Amount.String(),
		"reason":     reason,
		"error":      err.Error(),
	}
	if reason == "storage" {
		utils.Error("bid rejected", fields)
	} else {
		utils.Warn("bid rejected", fields)
	}

	if req.BidderID == "" || reason == "validation" {
		return
	}
	s.publisher.Publish(models.Event{
		Type:      models.EventBidRejected,
		Topic:     models.UserTopic(req.BidderID),
		AuctionID: req.AuctionID,
		Message:   rejectionMessage(err),
		Data: models.BidRejection{
			AuctionID: req.AuctionID,
			BidderID:  req.BidderID,
			Amount:    req.Amount,
			Reason:    reason,
		},
	})
}

// RejectionReason labels an admission failure for metrics and events
func RejectionReason(err error) string {
	switch {
	case errors.Is(err, biddingerrors.ErrValidation):
		return "validation"
	case errors.Is(err, biddingerrors.ErrBidTooLow):
		return "too_low"
	case errors.Is(err, biddingerrors.ErrAuctionNotActive):
		return "not_active"
	case errors.Is(err, biddingerrors.ErrSelfBid):
		return "self_bid"
	case errors.Is(err, biddingerrors.ErrAuctionNotFound):
		return "not_found"
	case errors.Is(err, biddingerrors.ErrTimeout):
		return "timeout"
	default:
		return "storage"
	}
}

// rejectionMessage is the bidder facing text of an admission failure
func rejectionMessage(err error) string {
	var tooLow *biddingerrors.BidTooLowError
	if errors.As(err, &tooLow) {
		return tooLow.Message()
	}
	for _, known := range []error{
		biddingerrors.ErrBidTooLow,
		biddingerrors.ErrAuctionNotActive,
		biddingerrors.ErrSelfBid,
		biddingerrors.ErrAuctionNotFound,
		biddingerrors.ErrTimeout,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "bid could not be recorded"
}

// CancelBid withdraws one of the requester's own non-winning bids
func (s *BiddingService) CancelBid(ctx context.Context, bidID, requesterID string) (models.Bid, error) {
	if bidID == "" || requesterID == "" {
		return models.Bid{}, fmt.Errorf("service: %w - missing bidID or requesterID", biddingerrors.ErrValidation)
	}

	bid, err := s.repo.FindBid(ctx, bidID)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service: failed to find bid %s: %w", bidID, err)
	}
	if bid.BidderID != requesterID {
		return models.Bid{}, fmt.Errorf("service: %w - bid %s belongs to another bidder", biddingerrors.ErrUnauthorized, bidID)
	}

	release, err := s.locks.Acquire(ctx, bid.AuctionID)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service: %w", err)
	}
	defer release()

	cancelled, err := s.repo.CancelBid(ctx, bid.AuctionID, bidID)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service: failed to cancel bid %s: %w", bidID, err)
	}

	utils.Info("bid cancelled", map[string]any{"bid_id": bidID, "auction_id": bid.AuctionID, "bidder_id": requesterID})
	return cancelled, nil
}
