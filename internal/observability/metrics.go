package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WavesDispatched = promauto.NewCounter(prometheus.CounterOpts{Namespace: "trip_dispatch", Name: "waves_total", Help: "Total dispatch waves issued"})
	OffersCreated   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "trip_dispatch", Name: "offers_created_total", Help: "Total offers created"})
	OffersExpired   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "trip_dispatch", Name: "offers_expired_total", Help: "Total offers expired by the sweeper"})
	AcceptAttempts  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "trip_dispatch", Name: "offer_accept_attempts_total", Help: "Total offer accept attempts"})
	AcceptWins      = promauto.NewCounter(prometheus.CounterOpts{Namespace: "trip_dispatch", Name: "offer_accept_wins_total", Help: "Total offer accepts that won the trip"})
	TripsRequested  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "trip_dispatch", Name: "trips_requested_total", Help: "Total trips moved to Requested"})
	TripsCompleted  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "trip_dispatch", Name: "trips_completed_total", Help: "Total trips completed"})
	DriversOnline   = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "trip_dispatch", Name: "drivers_online", Help: "Number of online drivers"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "trip_dispatch", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trip_dispatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
