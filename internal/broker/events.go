package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"auction-core/internal/models"
	"auction-core/utils"

	"github.com/segmentio/kafka-go"
)

// forwardTimeout bounds one write of a forwarded hub event
const forwardTimeout = 5 * time.Second

func auctionKey(auctionID string) string {
	return "auction-" + auctionID
}

// EventPublisher writes integration events to the auction-events topic
type EventPublisher struct {
	producer *Producer
	clock    func() time.Time
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer, clock: time.Now}
}

func (ep *EventPublisher) envelope(eventType, auctionID string, payload any) models.IntegrationEvent {
	return models.IntegrationEvent{
		EventID:   utils.GenerateID(),
		EventType: eventType,
		AuctionID: auctionID,
		Payload:   payload,
		Timestamp: ep.clock().UTC(),
	}
}

// PublishSettlement publishes the AuctionSettled event for the payment flow
func (ep *EventPublisher) PublishSettlement(ctx context.Context, s models.Settlement) error {
	return ep.producer.PublishEvent(ctx, auctionKey(s.AuctionID), ep.envelope(models.IntegrationAuctionSettled, s.AuctionID, s))
}

// PublishBidAccepted publishes a BidAccepted event
func (ep *EventPublisher) PublishBidAccepted(ctx context.Context, auctionID string, bid models.BidBroadcast) error {
	return ep.producer.PublishEvent(ctx, auctionKey(auctionID), ep.envelope(models.IntegrationBidAccepted, auctionID, bid))
}

// PublishBidRejected publishes a BidRejected event
func (ep *EventPublisher) PublishBidRejected(ctx context.Context, rejection models.BidRejection) error {
	return ep.producer.PublishEvent(ctx, auctionKey(rejection.AuctionID), ep.envelope(models.IntegrationBidRejected, rejection.AuctionID, rejection))
}

// Forward is a hub handler that mirrors bid outcomes onto Kafka. The hub
// calls it from a single goroutine so per-auction order is preserved.
func (ep *EventPublisher) Forward(evt models.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), forwardTimeout)
	defer cancel()

	var err error
	switch data := evt.Data.(type) {
	case models.BidBroadcast:
		if evt.Type != models.EventNewBid {
			return
		}
		err = ep.PublishBidAccepted(ctx, evt.AuctionID, data)
	case models.BidRejection:
		err = ep.PublishBidRejected(ctx, data)
	default:
		return
	}
	if err != nil {
		utils.Error("failed to forward event to kafka", map[string]any{
			"event_type": evt.Type,
			"auction_id": evt.AuctionID,
			"error":      err.Error(),
		})
	}
}

// EventHandler routes incoming integration events
type EventHandler struct {
	onPaymentConfirmation func(context.Context, *models.PaymentConfirmation) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnPaymentConfirmation registers a handler for PaymentConfirmation events
func (eh *EventHandler) OnPaymentConfirmation(handler func(context.Context, *models.PaymentConfirmation) error) {
	eh.onPaymentConfirmation = handler
}

// HandleMessage routes messages to the registered handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var base struct {
		EventID   string `json:"eventId"`
		EventType string `json:"eventType"`
	}
	if err := json.Unmarshal(msg.Value, &base); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	utils.Debug("handling event", map[string]any{"event_type": base.EventType, "event_id": base.EventID})

	switch base.EventType {
	case models.IntegrationPaymentConfirm:
		if eh.onPaymentConfirmation != nil {
			var event models.PaymentConfirmation
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal PaymentConfirmation event: %w", err)
			}
			return eh.onPaymentConfirmation(ctx, &event)
		}
	default:
		utils.Warn("unhandled event type", map[string]any{"event_type": base.EventType})
	}

	return nil
}
