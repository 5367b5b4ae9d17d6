package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result label values
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

var (
	// NotificationsTotal counts individual gateway sends by outcome
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loyaltycast_notifications_total",
			Help: "Wallet notifications sent, by result",
		},
		[]string{"result"},
	)

	// DispatchDuration observes the wall time of whole broadcast dispatches
	DispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "loyaltycast_dispatch_duration_seconds",
			Help:    "Duration of broadcast dispatches in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
		},
	)

	// BirthdayOutcomesTotal counts birthday job outcomes per member
	BirthdayOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loyaltycast_birthday_outcomes_total",
			Help: "Birthday job member outcomes, by status",
		},
		[]string{"status"},
	)

	// SegmentEstimateCacheTotal counts estimate cache lookups by outcome
	SegmentEstimateCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loyaltycast_segment_estimate_cache_total",
			Help: "Segment estimate cache lookups, by result",
		},
		[]string{"result"},
	)
)
