package worker

import (
	"context"
	"errors"

	"auction-core/internal/biddingerrors"
	"auction-core/internal/broker"
	"auction-core/internal/models"
	"auction-core/utils"
)

// PaymentConfirmer records a payment against a settled auction
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, conf models.PaymentConfirmation) (models.Auction, error)
}

// PaymentWorker applies PaymentConfirmation events from the payments topic
type PaymentWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	confirmer    PaymentConfirmer
}

// NewPaymentWorker creates a new payment worker
func NewPaymentWorker(consumer *broker.Consumer, confirmer PaymentConfirmer) *PaymentWorker {
	w := &PaymentWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		confirmer:    confirmer,
	}
	w.eventHandler.OnPaymentConfirmation(w.HandlePaymentConfirmation)
	return w
}

// HandlePaymentConfirmation confirms one payment. Confirmations that can
// never apply are logged and acknowledged so they do not block the partition.
func (w *PaymentWorker) HandlePaymentConfirmation(ctx context.Context, conf *models.PaymentConfirmation) error {
	a, err := w.confirmer.ConfirmPayment(ctx, *conf)
	switch {
	case err == nil:
		utils.Info("payment applied", map[string]any{"auction_id": a.ID, "payer_id": conf.PayerID, "paid": a.Paid})
		return nil
	case errors.Is(err, biddingerrors.ErrPaymentMismatch), errors.Is(err, biddingerrors.ErrAuctionNotFound):
		utils.Warn("payment confirmation discarded", map[string]any{
			"auction_id": conf.AuctionID,
			"event_id":   conf.EventID,
			"error":      err.Error(),
		})
		return nil
	default:
		return err
	}
}

// Start consumes until ctx is done
func (w *PaymentWorker) Start(ctx context.Context) error {
	utils.Info("starting payment worker", nil)
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the payment worker
func (w *PaymentWorker) Stop() error {
	utils.Info("stopping payment worker", nil)
	return w.consumer.Close()
}
