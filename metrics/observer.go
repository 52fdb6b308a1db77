package metrics

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/godamri/helix-audit/audit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ResultDelivered = "delivered"
	ResultRejected  = "rejected" // Collector answered non-2xx
	ResultError     = "error"    // Transport, marshal or panic
	ResultClosed    = "closed"   // Logged after Close
)

// Observer exports audit delivery outcomes as Prometheus metrics.
type Observer struct {
	events   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var _ audit.Observer = (*Observer)(nil)

// NewObserver registers the audit metrics on reg. A nil reg means the default registerer.
func NewObserver(reg prometheus.Registerer) *Observer {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Observer{
		events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audit_events_total",
				Help: "Total number of audit events handed to the collector client, labeled by service, result and status.",
			},
			[]string{"service", "result", "status"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "audit_delivery_duration_seconds",
				Help:    "Duration of successful audit event deliveries in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"service"},
		),
	}
}

func (o *Observer) Delivered(_ context.Context, event audit.Event, status int, elapsed time.Duration) {
	o.events.WithLabelValues(event.ServiceName, ResultDelivered, strconv.Itoa(status)).Inc()
	o.duration.WithLabelValues(event.ServiceName).Observe(elapsed.Seconds())
}

func (o *Observer) Failed(_ context.Context, event audit.Event, err error) {
	result, status := classify(err)
	o.events.WithLabelValues(event.ServiceName, result, status).Inc()
}

// classify keeps the status label bounded: only real HTTP codes or "none".
func classify(err error) (string, string) {
	var se *audit.StatusError
	switch {
	case errors.As(err, &se):
		return ResultRejected, strconv.Itoa(se.StatusCode)
	case errors.Is(err, audit.ErrClosed):
		return ResultClosed, "none"
	default:
		return ResultError, "none"
	}
}
