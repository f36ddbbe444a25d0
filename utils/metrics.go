package utils

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BidsAcceptedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auction_bids_accepted_total",
		Help: "Total number of accepted bids",
	})

	BidsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auction_bids_rejected_total",
		Help: "Total number of rejected bids",
	}, []string{"reason"})

	BidAdmissionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "auction_bid_admission_seconds",
		Help:    "Latency of bid admission including lock wait",
		Buckets: prometheus.DefBuckets,
	})

	LockWaitTimeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auction_lock_wait_timeouts_total",
		Help: "Total number of auction lock acquisitions that timed out",
	})

	AuctionTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auction_transitions_total",
		Help: "Total number of auction lifecycle transitions",
	}, []string{"to"})

	AuctionsSettledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auction_settlements_total",
		Help: "Total number of settled auctions by outcome",
	}, []string{"outcome"})

	NotificationsPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auction_notifications_published_total",
		Help: "Total number of events published to the fan-out hub",
	})

	NotificationsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auction_notifications_dropped_total",
		Help: "Total number of events dropped for slow subscribers",
	})

	ActiveSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "auction_active_subscriptions",
		Help: "Number of live fan-out subscriptions",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
