package auction

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
	"auction-core/internal/settlement"
	"auction-core/utils"
)

// Settler finalizes an auction that has just ended
type Settler interface {
	Settle(ctx context.Context, a models.Auction) (models.Settlement, bool)
}

// Options holds lifecycle policy switches
type Options struct {
	// AllowCancelWithBids lets sellers cancel auctions that already have bids
	AllowCancelWithBids bool
}

// AuctionService owns auction records and their lifecycle state machine
type AuctionService struct {
	repo      repository.AuctionDB
	locks     *auctionlock.Table
	settler   Settler
	publisher notification.Publisher
	opts      Options
	clock     func() time.Time
}

// NewAuctionService creates a new AuctionService instance. locks must be
// the table shared with the bidding service.
func NewAuctionService(repo repository.AuctionDB, locks *auctionlock.Table, settler Settler, publisher notification.Publisher, opts Options) *AuctionService {
	return &AuctionService{
		repo:      repo,
		locks:     locks,
		settler:   settler,
		publisher: publisher,
		opts:      opts,
		clock:     time.Now,
	}
}

// SetClock replaces the service's time source
func (s *AuctionService) SetClock(clock func() time.Time) {
	s.clock = clock
}

func (s *AuctionService) now() time.Time {
	return s.clock().UTC()
}

// Create validates spec and stores a DRAFT or SCHEDULED auction. A start
// time that is unset or already past means the auction opens immediately.
func (s *AuctionService) Create(ctx context.Context, spec models.AuctionSpec) (models.Auction, error) {
	now := s.now()
	if err := validateSpec(spec, now); err != nil {
		return models.Auction{}, err
	}

	start := spec.StartTime.UTC()
	if start.IsZero() || start.Before(now) {
		start = now
	}

	status := models.AuctionScheduled
	if spec.Draft {
		status = models.AuctionDraft
	}

	a := models.Auction{
		ID:            utils.GenerateID(),
		SellerID:      spec.SellerID,
		Title:         spec.Title,
		Description:   spec.Description,
		Category:      spec.Category,
		StartingPrice: spec.StartingPrice,
		ReservePrice:  spec.ReservePrice,
		CurrentPrice:  spec.StartingPrice,
		Status:        status,
		StartTime:     start,
		EndTime:       spec.EndTime.UTC(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.CreateAuction(ctx, a); err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to create auction: %w", err)
	}

	utils.Info("auction created", map[string]any{
		"auction_id": a.ID,
		"seller_id":  a.SellerID,
		"status":     a.Status,
	})

	if status == models.AuctionScheduled {
		return s.TransitionIfDue(ctx, a.ID)
	}
	return a, nil
}

func validateSpec(spec models.AuctionSpec, now time.Time) error {
	switch {
	case spec.SellerID == "":
		return fmt.Errorf("service: %w - seller is required", biddingerrors.ErrValidation)
	case spec.Title == "":
		return fmt.Errorf("service: %w - title is required", biddingerrors.ErrValidation)
	case !spec.StartingPrice.IsPositive():
		return fmt.Errorf("service: %w - starting price must be positive", biddingerrors.ErrValidation)
	case spec.ReservePrice.IsNegative():
		return fmt.Errorf("service: %w - reserve price cannot be negative", biddingerrors.ErrValidation)
	case spec.ReservePrice.IsPositive() && spec.ReservePrice.LessThan(spec.StartingPrice):
		return fmt.Errorf("service: %w - reserve price must not be below starting price", biddingerrors.ErrValidation)
	case spec.EndTime.IsZero() || !spec.EndTime.After(now):
		return fmt.Errorf("service: %w - end time must be in the future", biddingerrors.ErrValidation)
	case !spec.StartTime.IsZero() && !spec.EndTime.After(spec.StartTime):
		return fmt.Errorf("service: %w - end time must be after start time", biddingerrors.ErrValidation)
	}
	return nil
}

// Get returns an auction, first applying any transition its clock makes due
func (s *AuctionService) Get(ctx context.Context, auctionID string) (models.Auction, error) {
	if auctionID == "" {
		return models.Auction{}, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrValidation)
	}
	a, err := s.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to get auction %s: %w", auctionID, err)
	}
	if a.DueStatus(s.now()) != a.Status {
		return s.TransitionIfDue(ctx, auctionID)
	}
	return a, nil
}

// TransitionIfDue applies every time based transition that is due. It is a
// no-op for DRAFT and terminal auctions.
func (s *AuctionService) TransitionIfDue(ctx context.Context, auctionID string) (models.Auction, error) {
	release, err := s.locks.Acquire(ctx, auctionID)
	if err != nil {
		return models.Auction{}, err
	}
	defer release()

	a, err := s.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to get auction %s: %w", auctionID, err)
	}
	return s.ApplyDueLocked(ctx, a, s.now())
}

// ApplyDueLocked moves a to the status now calls for. The caller must hold
// a's slot in the shared lock table.
func (s *AuctionService) ApplyDueLocked(ctx context.Context, a models.Auction, now time.Time) (models.Auction, error) {
	for {
		next := a.DueStatus(now)
		if next == a.Status {
			return a, nil
		}
		// a scheduled auction whose window already closed still opens first
		if a.Status == models.AuctionScheduled && next == models.AuctionEnded {
			next = models.AuctionActive
		}
		var err error
		if a, err = s.move(ctx, a, next, now); err != nil {
			return a, err
		}
	}
}

// move performs a single transition and its side effects
func (s *AuctionService) move(ctx context.Context, a models.Auction, to models.AuctionStatus, now time.Time) (models.Auction, error) {
	ctx, span := utils.StartSpan(ctx, "auction.transition")
	defer span.End()

	outcome := models.OutcomeNone
	if to == models.AuctionEnded {
		outcome = settlement.Decide(a, now).Outcome
	}

	updated, err := s.repo.TransitionAuction(ctx, a.ID, a.Status, to, outcome, now)
	if err != nil {
		return a, fmt.Errorf("service: failed to move auction %s to %s: %w", a.ID, to, err)
	}

	utils.AuctionTransitionsTotal.WithLabelValues(string(to)).Inc()
	utils.Info("auction transitioned", map[string]any{
		"auction_id": a.ID,
		"from":       a.Status,
		"to":         to,
	})

	switch to {
	case models.AuctionActive:
		s.publisher.Publish(models.Event{
			Type:      models.EventAuctionStarted,
			Topic:     models.AuctionTopic(a.ID),
			AuctionID: a.ID,
			Message:   "Auction is now open for bidding",
			Data:      updated,
		})
	case models.AuctionCancelled:
		s.publisher.Publish(models.Event{
			Type:      models.EventAuctionCancelled,
			Topic:     models.AuctionTopic(a.ID),
			AuctionID: a.ID,
			Message:   "Auction was cancelled by the seller",
			Data:      updated,
		})
		if winner := updated.WinnerID(); winner != "" {
			s.publisher.Publish(models.Event{
				Type:      models.EventAuctionCancelled,
				Topic:     models.UserTopic(winner),
				AuctionID: a.ID,
				Message:   "An auction you were winning was cancelled",
			})
		}
	case models.AuctionEnded:
		s.settler.Settle(ctx, updated)
	}
	return updated, nil
}

// sellerAction runs fn on the fresh, due-adjusted auction under its lock
// after checking that requesterID owns it.
func (s *AuctionService) sellerAction(ctx context.Context, auctionID, requesterID string, fn func(models.Auction, time.Time) (models.Auction, error)) (models.Auction, error) {
	if auctionID == "" || requesterID == "" {
		return models.Auction{}, fmt.Errorf("service: %w - missing auction or requester ID", biddingerrors.ErrValidation)
	}

	release, err := s.locks.Acquire(ctx, auctionID)
	if err != nil {
		return models.Auction{}, err
	}
	defer release()

	a, err := s.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to get auction %s: %w", auctionID, err)
	}
	if a.SellerID != requesterID {
		return models.Auction{}, fmt.Errorf("service: %w - only the seller can change auction %s", biddingerrors.ErrUnauthorized, auctionID)
	}

	now := s.now()
	if a, err = s.ApplyDueLocked(ctx, a, now); err != nil {
		return a, err
	}
	return fn(a, now)
}

// Start publishes a DRAFT auction, or opens a SCHEDULED one early
func (s *AuctionService) Start(ctx context.Context, auctionID, requesterID string) (models.Auction, error) {
	return s.sellerAction(ctx, auctionID, requesterID, func(a models.Auction, now time.Time) (models.Auction, error) {
		switch a.Status {
		case models.AuctionDraft:
			a, err := s.move(ctx, a, models.AuctionScheduled, now)
			if err != nil {
				return a, err
			}
			return s.ApplyDueLocked(ctx, a, now)
		case models.AuctionScheduled:
			return s.move(ctx, a, models.AuctionActive, now)
		default:
			return a, fmt.Errorf("service: %w - cannot start a %s auction", biddingerrors.ErrInvalidTransition, a.Status)
		}
	})
}

// End closes an ACTIVE auction before its end time and settles it
func (s *AuctionService) End(ctx context.Context, auctionID, requesterID string) (models.Auction, error) {
	return s.sellerAction(ctx, auctionID, requesterID, func(a models.Auction, now time.Time) (models.Auction, error) {
		if a.Status != models.AuctionActive {
			return a, fmt.Errorf("service: %w - cannot end a %s auction", biddingerrors.ErrInvalidTransition, a.Status)
		}
		return s.move(ctx, a, models.AuctionEnded, now)
	})
}

// Cancel withdraws an auction. Auctions with bids can only be cancelled
// when the policy allows it.
func (s *AuctionService) Cancel(ctx context.Context, auctionID, requesterID string) (models.Auction, error) {
	return s.sellerAction(ctx, auctionID, requesterID, func(a models.Auction, now time.Time) (models.Auction, error) {
		if a.Status.Terminal() {
			return a, fmt.Errorf("service: %w - auction is already %s", biddingerrors.ErrInvalidTransition, a.Status)
		}
		if a.TotalBids > 0 && !s.opts.AllowCancelWithBids {
			return a, fmt.Errorf("service: %w - auction already has bids", biddingerrors.ErrInvalidTransition)
		}
		return s.move(ctx, a, models.AuctionCancelled, now)
	})
}

// SweepDue applies due transitions to every live auction and returns how
// many auctions changed status
func (s *AuctionService) SweepDue(ctx context.Context) int {
	live, err := s.repo.ListAuctions(ctx, models.AuctionFilter{NonTerminal: true})
	if err != nil {
		utils.Error("scheduler: failed to list auctions", map[string]any{"error": err.Error()})
		return 0
	}

	now := s.now()
	moved := 0
	for _, a := range live {
		if a.DueStatus(now) == a.Status {
			continue
		}
		updated, err := s.TransitionIfDue(ctx, a.ID)
		if err != nil {
			if !errors.Is(err, biddingerrors.ErrTimeout) {
				utils.Error("scheduler: transition failed", map[string]any{"auction_id": a.ID, "error": err.Error()})
			}
			continue
		}
		if updated.Status != a.Status {
			moved++
		}
	}
	return moved
}

// RunScheduler sweeps due auctions every interval until ctx is done
func (s *AuctionService) RunScheduler(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	utils.Info("auction scheduler started", map[string]any{"interval": interval.String()})

	for {
		select {
		case <-ctx.Done():
			utils.Info("auction scheduler stopped", nil)
			return
		case <-ticker.C:
			if n := s.SweepDue(ctx); n > 0 {
				utils.Debug("scheduler: auctions transitioned", map[string]any{"count": n})
			}
		}
	}
}
