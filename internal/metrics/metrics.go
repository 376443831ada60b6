// Package metrics collects and exposes Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector registers and records the application metrics.
type Collector struct {
	registry *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpLatency     prometheus.Histogram
	bookingsCreated prometheus.Counter
	seatsSold       prometheus.Counter
	eventsPublished prometheus.Counter
	alertsDelivered prometheus.Counter
	alertsFailed    prometheus.Counter
}

// NewCollector creates a Collector with its own registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eventhub_http_requests_total",
			Help: "HTTP responses by status code.",
		}, []string{"status_code"}),
		httpLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "eventhub_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		bookingsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eventhub_bookings_created_total",
			Help: "Total bookings created.",
		}),
		seatsSold: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eventhub_seats_sold_total",
			Help: "Total tickets sold across all bookings.",
		}),
		eventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eventhub_events_published_total",
			Help: "Total events published to the alert broker.",
		}),
		alertsDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eventhub_alerts_delivered_total",
			Help: "Total interest-alert notifications delivered.",
		}),
		alertsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eventhub_alerts_failed_total",
			Help: "Total alert dispatch attempts that failed.",
		}),
	}

	registry.MustRegister(
		c.httpRequests,
		c.httpLatency,
		c.bookingsCreated,
		c.seatsSold,
		c.eventsPublished,
		c.alertsDelivered,
		c.alertsFailed,
	)

	return c
}

// Handler returns the /metrics endpoint handler.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordBookingCreated records a successful booking of the given size.
func (c *Collector) RecordBookingCreated(quantity int) {
	c.bookingsCreated.Inc()
	c.seatsSold.Add(float64(quantity))
}

// RecordEventPublished records an event published to the broker.
func (c *Collector) RecordEventPublished() {
	c.eventsPublished.Inc()
}

// RecordAlertsDelivered records notifications delivered by the alerts worker.
func (c *Collector) RecordAlertsDelivered(count int) {
	c.alertsDelivered.Add(float64(count))
}

// RecordAlertFailure records a failed alert dispatch attempt.
func (c *Collector) RecordAlertFailure() {
	c.alertsFailed.Inc()
}

// Middleware records status codes and latency for every request.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		c.httpRequests.WithLabelValues(strconv.Itoa(recorder.status)).Inc()
		c.httpLatency.Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
