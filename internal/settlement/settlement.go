// Package settlement finalizes auctions once they end and tracks payment.
package settlement

import (
	"context"
	"fmt"
	"sync"
	"time"

	"auction-core/internal/biddingerrors"
	"auction-core/internal/models"
	"auction-core/internal/notification"
	"auction-core/internal/repository"
	"auction-core/utils"

	"github.com/shopspring/decimal"
)

const sinkTimeout = 10 * time.Second

// Sink receives settlement results for collaborators such as payments
type Sink interface {
	PublishSettlement(ctx context.Context, s models.Settlement) error
}

// Decide computes the outcome of an auction from its final state.
// A winner exists only when there was a bid and the reserve, if any, was met.
func Decide(a models.Auction, at time.Time) models.Settlement {
	s := models.Settlement{
		AuctionID:    a.ID,
		SellerID:     a.SellerID,
		HighestBid:   a.CurrentPrice,
		ReservePrice: a.ReservePrice,
		TotalBids:    a.TotalBids,
		SettledAt:    at.UTC(),
	}

	switch {
	case a.CurrentWinnerID == nil:
		s.Outcome = models.OutcomeNoBids
		s.HighestBid = decimal.Zero
	case a.HasReserve() && a.CurrentPrice.LessThan(a.ReservePrice):
		s.Outcome = models.OutcomeReserveNotMet
	default:
		price := a.CurrentPrice
		s.Outcome = models.OutcomeWon
		s.WinnerID = *a.CurrentWinnerID
		s.FinalPrice = &price
	}
	return s
}

// Engine emits settlement events for ended auctions.
//
// Settle-once across instances and restarts comes from the repository: only
// the caller whose TransitionAuction moved the auction from ACTIVE to ENDED
// settles it. The settled map only suppresses a repeat call within this
// process and keeps at most maxRemembered results, oldest evicted first.
type Engine struct {
	repo      repository.AuctionDB
	publisher notification.Publisher
	sinks     []Sink
	clock     func() time.Time

	mu      sync.Mutex
	settled map[string]models.Settlement
	order   []string
	wg      sync.WaitGroup
}

// maxRemembered bounds the in-process settlement results kept for Result
const maxRemembered = 10000

// NewEngine creates a settlement engine
func NewEngine(repo repository.AuctionDB, publisher notification.Publisher, sinks ...Sink) *Engine {
	return &Engine{
		repo:      repo,
		publisher: publisher,
		sinks:     sinks,
		clock:     time.Now,
		settled:   make(map[string]models.Settlement),
	}
}

// SetClock replaces the engine's time source
func (e *Engine) SetClock(clock func() time.Time) {
	e.clock = clock
}

// Settle finalizes an ENDED auction. It reports false, returning the
// earlier result, when the auction was already settled.
func (e *Engine) Settle(ctx context.Context, a models.Auction) (models.Settlement, bool) {
	ctx, span := utils.StartSpan(ctx, "settlement.Settle")
	defer span.End()

	if a.Status != models.AuctionEnded {
		return models.Settlement{}, false
	}

	e.mu.Lock()
	if prev, ok := e.settled[a.ID]; ok {
		e.mu.Unlock()
		return prev, false
	}
	s := Decide(a, e.clock())
	e.remember(s)
	e.mu.Unlock()

	utils.AuctionsSettledTotal.WithLabelValues(string(s.Outcome)).Inc()
	utils.Info("auction settled", map[string]any{
		"auction_id": a.ID,
		"outcome":    s.Outcome,
		"winner_id":  s.WinnerID,
		"total_bids": s.TotalBids,
	})

	e.notify(s)
	e.dispatch(ctx, s)
	return s, true
}

// remember records s, evicting the oldest result past maxRemembered.
// Callers hold e.mu.
func (e *Engine) remember(s models.Settlement) {
	e.settled[s.AuctionID] = s
	e.order = append(e.order, s.AuctionID)
	if len(e.order) > maxRemembered {
		delete(e.settled, e.order[0])
		e.order = e.order[1:]
	}
}

// Result returns the settlement recorded by this process for an auction.
// Older results may have been evicted.
func (e *Engine) Result(auctionID string) (models.Settlement, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.settled[auctionID]
	return s, ok
}

// Wait blocks until every in-flight sink delivery has finished
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) notify(s models.Settlement) {
	e.publisher.Publish(models.Event{
		Type:      models.EventAuctionEnded,
		Topic:     models.AuctionTopic(s.AuctionID),
		AuctionID: s.AuctionID,
		Message:   endMessage(s),
		Data:      s,
	})
	e.publisher.Publish(models.Event{
		Type:      models.EventAuctionEnded,
		Topic:     models.UserTopic(s.SellerID),
		AuctionID: s.AuctionID,
		Message:   endMessage(s),
		Data:      s,
	})
	if s.Outcome == models.OutcomeWon {
		e.publisher.Publish(models.Event{
			Type:      models.EventAuctionWon,
			Topic:     models.UserTopic(s.WinnerID),
			AuctionID: s.AuctionID,
			Message:   fmt.Sprintf("You won the auction for %s", s.FinalPrice.StringFixed(2)),
			Data:      s,
		})
	}
}

func endMessage(s models.Settlement) string {
	switch s.Outcome {
	case models.OutcomeWon:
		return fmt.Sprintf("Auction sold for %s", s.FinalPrice.StringFixed(2))
	case models.OutcomeReserveNotMet:
		return "Auction ended without meeting the reserve price"
	default:
		return "Auction ended with no bids"
	}
}

// dispatch hands the result to the sinks off the caller's critical section
func (e *Engine) dispatch(ctx context.Context, s models.Settlement) {
	if len(e.sinks) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, sinkTimeout)
		defer cancel()
		for _, sink := range e.sinks {
			if err := sink.PublishSettlement(ctx, s); err != nil {
				utils.Error("failed to publish settlement", map[string]any{
					"auction_id": s.AuctionID,
					"outcome":    s.Outcome,
					"error":      err.Error(),
				})
			}
		}
	}()
}

// ConfirmPayment records the winner's payment for a won auction.
// Repeated confirmations are accepted without emitting new events.
func (e *Engine) ConfirmPayment(ctx context.Context, conf models.PaymentConfirmation) (models.Auction, error) {
	a, err := e.repo.GetAuction(ctx, conf.AuctionID)
	if err != nil {
		return models.Auction{}, fmt.Errorf("settlement: failed to load auction %s: %w", conf.AuctionID, err)
	}
	if a.Status != models.AuctionEnded || a.Outcome != models.OutcomeWon {
		return a, fmt.Errorf("settlement: %w - auction %s has no winner to pay", biddingerrors.ErrPaymentMismatch, a.ID)
	}
	if a.WinnerID() != conf.PayerID {
		return a, fmt.Errorf("settlement: %w - payer %s is not the winner", biddingerrors.ErrPaymentMismatch, conf.PayerID)
	}
	if !conf.Amount.IsZero() && !conf.Amount.Equal(a.CurrentPrice) {
		return a, fmt.Errorf("settlement: %w - paid %s, owed %s", biddingerrors.ErrPaymentMismatch, conf.Amount, a.CurrentPrice)
	}

	updated, changed, err := e.repo.MarkPaid(ctx, a.ID, e.clock().UTC())
	if err != nil {
		return models.Auction{}, fmt.Errorf("settlement: failed to mark auction %s paid: %w", a.ID, err)
	}
	if !changed {
		return updated, nil
	}

	utils.Info("payment confirmed", map[string]any{
		"auction_id": a.ID,
		"payer_id":   conf.PayerID,
		"reference":  conf.Reference,
	})
	for _, userID := range []string{updated.WinnerID(), updated.SellerID} {
		e.publisher.Publish(models.Event{
			Type:      models.EventPaymentConfirmed,
			Topic:     models.UserTopic(userID),
			AuctionID: a.ID,
			Message:   "Payment received",
			Data:      conf,
		})
	}
	return updated, nil
}
