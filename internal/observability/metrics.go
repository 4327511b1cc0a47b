package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReservationsTotal  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "fleet_booking", Name: "reservations_total", Help: "Total reservations created"})
	CancellationsTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "fleet_booking", Name: "cancellations_total", Help: "Total reservations cancelled"})
	VotesTotal         = promauto.NewCounter(prometheus.CounterOpts{Namespace: "fleet_booking", Name: "votes_total", Help: "Total votes recorded"})
	CarsAvailable      = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "fleet_booking", Name: "cars_available", Help: "Number of cars currently available"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "fleet_booking", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fleet_booking",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
