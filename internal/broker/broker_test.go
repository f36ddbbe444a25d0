package broker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"auction-core/internal/models"

	"github.com/go-redis/redismock/v9"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func decode(t *testing.T, msg kafka.Message) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &out))
	return out
}

func TestEventPublisher_PublishSettlement(t *testing.T) {
	w := &fakeWriter{}
	ep := NewEventPublisher(&Producer{writer: w, topic: "auction-events"})

	price := decimal.NewFromInt(150)
	err := ep.PublishSettlement(context.Background(), models.Settlement{
		AuctionID:  "a1",
		SellerID:   "seller1",
		Outcome:    models.OutcomeWon,
		WinnerID:   "U1",
		FinalPrice: &price,
		TotalBids:  2,
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	require.Equal(t, "auction-a1", string(w.msgs[0].Key))

	body := decode(t, w.msgs[0])
	require.Equal(t, models.IntegrationAuctionSettled, body["eventType"])
	require.Equal(t, "a1", body["auctionId"])
	require.NotEmpty(t, body["eventId"])
	payload := body["payload"].(map[string]any)
	require.Equal(t, "WON", payload["outcome"])
	require.Equal(t, float64(150), payload["finalPrice"])
}

func TestEventPublisher_WriteFailure(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	ep := NewEventPublisher(&Producer{writer: w, topic: "auction-events"})

	err := ep.PublishSettlement(context.Background(), models.Settlement{AuctionID: "a1"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "leader not available")
}

func TestEventPublisher_Forward(t *testing.T) {
	w := &fakeWriter{}
	ep := NewEventPublisher(&Producer{writer: w, topic: "auction-events"})

	ep.Forward(models.Event{
		Type:      models.EventNewBid,
		Topic:     models.AuctionTopic("a1"),
		AuctionID: "a1",
		Data:      models.BidBroadcast{BidID: "b1", Amount: decimal.NewFromInt(150), Bidder: models.NewBidderRef("U1", "Alice Smith"), TotalBids: 1},
	})
	ep.Forward(models.Event{
		Type:      models.EventBidOutbid,
		Topic:     models.UserTopic("U0"),
		AuctionID: "a1",
		Data:      models.BidBroadcast{BidID: "b1"},
	})
	ep.Forward(models.Event{
		Type:      models.EventBidRejected,
		Topic:     models.UserTopic("U2"),
		AuctionID: "a1",
		Data:      models.BidRejection{AuctionID: "a1", BidderID: "U2", Amount: decimal.NewFromInt(120), Reason: "too_low"},
	})
	ep.Forward(models.Event{Type: models.EventAuctionStarted, Topic: models.AuctionTopic("a1"), AuctionID: "a1"})

	require.Len(t, w.msgs, 2)
	require.Equal(t, models.IntegrationBidAccepted, decode(t, w.msgs[0])["eventType"])
	require.Equal(t, models.IntegrationBidRejected, decode(t, w.msgs[1])["eventType"])
	for _, m := range w.msgs {
		require.Equal(t, "auction-a1", string(m.Key))
	}
}

func TestEventHandler_HandleMessage(t *testing.T) {
	eh := NewEventHandler()

	var got *models.PaymentConfirmation
	eh.OnPaymentConfirmation(func(_ context.Context, conf *models.PaymentConfirmation) error {
		got = conf
		return nil
	})

	value := []byte(`{"eventId":"e1","eventType":"PaymentConfirmation","auctionId":"a1","payerId":"U1","amount":150,"reference":"tx-9"}`)
	require.NoError(t, eh.HandleMessage(context.Background(), kafka.Message{Value: value}))
	require.NotNil(t, got)
	require.Equal(t, "a1", got.AuctionID)
	require.Equal(t, "U1", got.PayerID)
	require.True(t, got.Amount.Equal(decimal.NewFromInt(150)))

	require.NoError(t, eh.HandleMessage(context.Background(), kafka.Message{Value: []byte(`{"eventType":"Refund"}`)}))
	require.Error(t, eh.HandleMessage(context.Background(), kafka.Message{Value: []byte(`not json`)}))
}

type fakeReader struct {
	mu        sync.Mutex
	pending   []kafka.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.pending) > 0 {
		msg := r.pending[0]
		r.pending = r.pending[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func TestConsumer_CommitsOnlyHandledMessages(t *testing.T) {
	reader := &fakeReader{pending: []kafka.Message{{Offset: 1}, {Offset: 2}, {Offset: 3}}}
	c := &Consumer{reader: reader, topic: "payments"}

	ctx, cancel := context.WithCancel(context.Background())
	var handled int
	done := make(chan error, 1)
	go func() {
		done <- c.StartConsuming(ctx, func(_ context.Context, msg kafka.Message) error {
			handled++
			if msg.Offset == 2 {
				return errors.New("bad payload")
			}
			if msg.Offset == 3 {
				cancel()
			}
			return nil
		})
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
	require.Equal(t, 3, handled)
	require.Equal(t, []int64{1, 3}, reader.committed)
}

func TestRedisRelay_Forward(t *testing.T) {
	client, mock := redismock.NewClientMock()
	relay := NewRedisRelay(client, "auction-core:")

	evt := models.Event{
		ID:        "e1",
		Type:      models.EventNewBid,
		Topic:     models.AuctionTopic("a1"),
		AuctionID: "a1",
		Data:      models.BidBroadcast{BidID: "b1", Amount: decimal.NewFromInt(150)},
		Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	payload, err := json.Marshal(evt)
	require.NoError(t, err)

	mock.ExpectPublish("auction-core:auction:a1", string(payload)).SetVal(1)
	relay.Forward(evt)

	require.NoError(t, mock.ExpectationsWereMet())
	require.Equal(t, "auction-core:user:U1", relay.Channel(models.UserTopic("U1")))
}
