// Package notification fans events out to per-auction and per-user subscribers.
//
// Delivery is best effort. Each subscriber owns a bounded queue drained by
// its own goroutine, so a slow or failing handler only ever delays itself.
// Publish never blocks: when a queue is full the event is dropped for that
// subscriber and counted, and nothing is redelivered. Clients that must not
// miss a change poll the read endpoints, which are always current.
package notification

import (
	"sync"
	"time"

	"auction-core/internal/models"
	"auction-core/utils"
)

// AllTopics subscribes to every published event
const AllTopics = "*"

// Handler receives events for one subscription, in publish order
type Handler func(models.Event)

// Publisher is the write side of the hub used by the services
type Publisher interface {
	Publish(evt models.Event)
}

type subscriber struct {
	id      uint64
	topic   string
	queue   chan models.Event
	handler Handler
	done    chan struct{}
	stopped chan struct{}
}

// Hub routes events by topic
type Hub struct {
	mu         sync.RWMutex
	subs       map[string]map[uint64]*subscriber
	next       uint64
	bufferSize int
}

// NewHub creates a hub whose subscribers buffer up to bufferSize events
func NewHub(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &Hub{
		subs:       make(map[string]map[uint64]*subscriber),
		bufferSize: bufferSize,
	}
}

// Subscription is a live registration returned by Subscribe
type Subscription struct {
	hub  *Hub
	sub  *subscriber
	once sync.Once
}

// Subscribe registers handler for topic. Several subscribers per topic are allowed.
func (h *Hub) Subscribe(topic string, handler Handler) *Subscription {
	h.mu.Lock()
	h.next++
	s := &subscriber{
		id:      h.next,
		topic:   topic,
		queue:   make(chan models.Event, h.bufferSize),
		handler: handler,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	if h.subs[topic] == nil {
		h.subs[topic] = make(map[uint64]*subscriber)
	}
	h.subs[topic][s.id] = s
	h.mu.Unlock()

	utils.ActiveSubscriptions.Inc()
	go s.run()
	return &Subscription{hub: h, sub: s}
}

// Unsubscribe removes the subscription and waits for its in-flight handler.
// It must not be called from the subscription's own handler.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		h := s.hub
		h.mu.Lock()
		if topicSubs, ok := h.subs[s.sub.topic]; ok {
			delete(topicSubs, s.sub.id)
			if len(topicSubs) == 0 {
				delete(h.subs, s.sub.topic)
			}
		}
		h.mu.Unlock()

		close(s.sub.done)
		<-s.sub.stopped
		utils.ActiveSubscriptions.Dec()
	})
}

// Publish delivers evt to the subscribers of evt.Topic and of AllTopics
func (h *Hub) Publish(evt models.Event) {
	if evt.ID == "" {
		evt.ID = utils.GenerateID()
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	utils.NotificationsPublishedTotal.Inc()

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, s := range h.subs[evt.Topic] {
		s.offer(evt)
	}
	if evt.Topic != AllTopics {
		for _, s := range h.subs[AllTopics] {
			s.offer(evt)
		}
	}
}

// Subscribers returns the number of subscriptions on topic
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[topic])
}

func (s *subscriber) offer(evt models.Event) {
	select {
	case s.queue <- evt:
	default:
		utils.NotificationsDroppedTotal.Inc()
		utils.Warn("notification dropped for slow subscriber", map[string]any{
			"topic":      s.topic,
			"event_type": evt.Type,
			"auction_id": evt.AuctionID,
		})
	}
}

func (s *subscriber) run() {
	defer close(s.stopped)
	for {
		select {
		case <-s.done:
			return
		case evt := <-s.queue:
			s.deliver(evt)
		}
	}
}

func (s *subscriber) deliver(evt models.Event) {
	defer func() {
		if r := recover(); r != nil {
			utils.Error("notification handler panicked", map[string]any{
				"topic": s.topic,
				"panic": r,
			})
		}
	}()
	s.handler(evt)
}
