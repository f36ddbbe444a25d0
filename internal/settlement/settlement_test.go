package settlement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"auction-core/internal/biddingerrors"
	"auction-core/internal/models"
	"auction-core/internal/repository"

	"github.com/golang/mock/gomock"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.Event
}

func (p *recordingPublisher) Publish(evt models.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *recordingPublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, string(e.Type)+"@"+e.Topic)
	}
	return out
}

type recordingSink struct {
	mu   sync.Mutex
	got  []models.Settlement
	fail bool
}

func (s *recordingSink) PublishSettlement(_ context.Context, st models.Settlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, st)
	if s.fail {
		return errors.New("broker down")
	}
	return nil
}

func endedAuction(starting, reserve, current int64, winner string, bids int) models.Auction {
	a := models.Auction{
		ID:            "a1",
		SellerID:      "seller",
		StartingPrice: decimal.NewFromInt(starting),
		ReservePrice:  decimal.NewFromInt(reserve),
		CurrentPrice:  decimal.NewFromInt(current),
		Status:        models.AuctionEnded,
		TotalBids:     bids,
	}
	if winner != "" {
		a.CurrentWinnerID = &winner
	}
	return a
}

func TestDecide(t *testing.T) {
	at := time.Now()

	tests := []struct {
		name    string
		auction models.Auction
		outcome models.Outcome
		winner  string
	}{
		{name: "no_bids", auction: endedAuction(100, 0, 100, "", 0), outcome: models.OutcomeNoBids},
		{name: "won_without_reserve", auction: endedAuction(100, 0, 200, "u2", 2), outcome: models.OutcomeWon, winner: "u2"},
		{name: "won_reserve_met_exactly", auction: endedAuction(100, 600, 600, "u1", 3), outcome: models.OutcomeWon, winner: "u1"},
		{name: "reserve_not_met", auction: endedAuction(100, 600, 500, "u1", 4), outcome: models.OutcomeReserveNotMet},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s := Decide(tc.auction, at)
			check.Equal(t, tc.outcome, s.Outcome)
			check.Equal(t, tc.winner, s.WinnerID)
			check.Equal(t, tc.auction.TotalBids, s.TotalBids)
			if tc.outcome == models.OutcomeWon {
				check.True(t, s.FinalPrice != nil)
				check.True(t, s.FinalPrice.Equal(tc.auction.CurrentPrice))
			} else {
				check.True(t, s.FinalPrice == nil)
			}
		})
	}
}

func TestEngine_SettleOnce(t *testing.T) {
	pub := &recordingPublisher{}
	sink := &recordingSink{}
	engine := NewEngine(repository.NewMemoryRepo(), pub, sink)

	a := endedAuction(100, 0, 200, "u2", 2)

	s, first := engine.Settle(context.Background(), a)
	check.True(t, first)
	check.Equal(t, models.OutcomeWon, s.Outcome)

	again, second := engine.Settle(context.Background(), a)
	check.False(t, second)
	check.Equal(t, s.Outcome, again.Outcome)

	engine.Wait()
	check.Equal(t, 1, len(sink.got))
	check.Equal(t, []string{
		"AUCTION_ENDED@auction:a1",
		"AUCTION_ENDED@user:seller",
		"AUCTION_WON@user:u2",
	}, pub.topics())

	got, ok := engine.Result("a1")
	check.True(t, ok)
	check.Equal(t, "u2", got.WinnerID)
}

func TestEngine_SettleReserveNotMetHasNoWinnerEvent(t *testing.T) {
	pub := &recordingPublisher{}
	engine := NewEngine(repository.NewMemoryRepo(), pub)

	s, ok := engine.Settle(context.Background(), endedAuction(100, 600, 500, "u1", 3))
	check.True(t, ok)
	check.Equal(t, models.OutcomeReserveNotMet, s.Outcome)
	for _, topic := range pub.topics() {
		check.NotEqual(t, "AUCTION_WON@user:u1", topic)
	}
}

func TestEngine_SettleIgnoresLiveAuction(t *testing.T) {
	pub := &recordingPublisher{}
	engine := NewEngine(repository.NewMemoryRepo(), pub)

	a := endedAuction(100, 0, 100, "", 0)
	a.Status = models.AuctionActive

	_, ok := engine.Settle(context.Background(), a)
	check.False(t, ok)
	check.Equal(t, 0, len(pub.topics()))
}

func TestEngine_SinkFailureIsLogged(t *testing.T) {
	sink := &recordingSink{fail: true}
	engine := NewEngine(repository.NewMemoryRepo(), &recordingPublisher{}, sink)

	_, ok := engine.Settle(context.Background(), endedAuction(100, 0, 100, "", 0))
	check.True(t, ok)
	engine.Wait()
	check.Equal(t, 1, len(sink.got))
}

func TestEngine_ConfirmPayment(t *testing.T) {
	repo := repository.NewMemoryRepo()
	won := endedAuction(100, 0, 200, "u2", 2)
	won.Outcome = models.OutcomeWon
	repo.AddAuction(won)

	noBids := endedAuction(100, 0, 100, "", 0)
	noBids.ID = "a2"
	noBids.Outcome = models.OutcomeNoBids
	repo.AddAuction(noBids)

	pub := &recordingPublisher{}
	engine := NewEngine(repo, pub)
	ctx := context.Background()

	_, err := engine.ConfirmPayment(ctx, models.PaymentConfirmation{AuctionID: "a1", PayerID: "u1"})
	check.True(t, errors.Is(err, biddingerrors.ErrPaymentMismatch))

	_, err = engine.ConfirmPayment(ctx, models.PaymentConfirmation{AuctionID: "a1", PayerID: "u2", Amount: decimal.NewFromInt(150)})
	check.True(t, errors.Is(err, biddingerrors.ErrPaymentMismatch))

	_, err = engine.ConfirmPayment(ctx, models.PaymentConfirmation{AuctionID: "a2", PayerID: "u2"})
	check.True(t, errors.Is(err, biddingerrors.ErrPaymentMismatch))

	_, err = engine.ConfirmPayment(ctx, models.PaymentConfirmation{AuctionID: "missing", PayerID: "u2"})
	check.True(t, errors.Is(err, biddingerrors.ErrAuctionNotFound))

	paid, err := engine.ConfirmPayment(ctx, models.PaymentConfirmation{AuctionID: "a1", PayerID: "u2", Amount: decimal.NewFromInt(200), Reference: "pay-1"})
	check.NoError(t, err)
	check.True(t, paid.Paid)
	check.Equal(t, []string{"PAYMENT_CONFIRMED@user:u2", "PAYMENT_CONFIRMED@user:seller"}, pub.topics())

	_, err = engine.ConfirmPayment(ctx, models.PaymentConfirmation{AuctionID: "a1", PayerID: "u2"})
	check.NoError(t, err)
	check.Equal(t, 2, len(pub.topics()))
}

func TestEngine_ConfirmPaymentStorageError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := repository.NewMockAuctionDB(ctrl)
	won := endedAuction(100, 0, 200, "u2", 2)
	won.Outcome = models.OutcomeWon

	repo.EXPECT().GetAuction(gomock.Any(), "a1").Return(won, nil)
	repo.EXPECT().MarkPaid(gomock.Any(), "a1", gomock.Any()).Return(models.Auction{}, false, biddingerrors.ErrStorage)

	pub := &recordingPublisher{}
	engine := NewEngine(repo, pub)

	_, err := engine.ConfirmPayment(context.Background(), models.PaymentConfirmation{AuctionID: "a1", PayerID: "u2"})
	check.True(t, errors.Is(err, biddingerrors.ErrStorage))
	check.Equal(t, 0, len(pub.topics()))
}

func TestEngine_RememberIsBounded(t *testing.T) {
	e := NewEngine(nil, &recordingPublisher{})

	e.mu.Lock()
	for i := 0; i <= maxRemembered; i++ {
		e.remember(models.Settlement{AuctionID: fmt.Sprintf("a%d", i), Outcome: models.OutcomeNoBids})
	}
	e.mu.Unlock()

	_, ok := e.Result("a0")
	check.False(t, ok)
	last, ok := e.Result(fmt.Sprintf("a%d", maxRemembered))
	check.True(t, ok)
	check.Equal(t, models.OutcomeNoBids, last.Outcome)
	check.Equal(t, maxRemembered, len(e.settled))
}
