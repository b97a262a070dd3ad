// Package metrics exposes session activity as Prometheus metrics.
package metrics

import (
	"context"
	"net/http"

	session "github.com/goliatone/go-auth-session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector is a session.ActivitySink that counts session events
type Collector struct {
	events      *prometheus.CounterVec
	transitions *prometheus.CounterVec
	failures    *prometheus.CounterVec
	discarded   prometheus.Counter
	status      *prometheus.GaugeVec
}

var _ session.ActivitySink = (*Collector)(nil)

// NewCollector creates a Collector and registers its metrics with reg
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "session_events_total",
			Help: "Session activity events by type",
		}, []string{"event"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "session_transitions_total",
			Help: "Session status transitions",
		}, []string{"from", "to"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "session_failures_total",
			Help: "Failed session operations by event and error kind",
		}, []string{"event", "kind"}),
		discarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "session_discarded_responses_total",
			Help: "Responses dropped because a newer request had already been applied",
		}),
		status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "session_status",
			Help: "1 for the current session status, 0 otherwise",
		}, []string{"status"}),
	}

	reg.MustRegister(
		c.events,
		c.transitions,
		c.failures,
		c.discarded,
		c.status,
	)

	c.setStatus(session.StatusBootstrapping)

	return c
}

// Record implements session.ActivitySink
func (c *Collector) Record(_ context.Context, event session.ActivityEvent) error {
	c.events.WithLabelValues(string(event.EventType)).Inc()

	switch event.EventType {
	case session.ActivityEventStatusChanged:
		c.transitions.WithLabelValues(string(event.FromStatus), string(event.ToStatus)).Inc()
		c.setStatus(event.ToStatus)
	case session.ActivityEventResponseDiscarded:
		c.discarded.Inc()
	}

	if event.ErrorKind != session.KindNone {
		c.failures.WithLabelValues(string(event.EventType), string(event.ErrorKind)).Inc()
	}

	return nil
}

func (c *Collector) setStatus(current session.Status) {
	for _, s := range []session.Status{
		session.StatusBootstrapping,
		session.StatusAnonymous,
		session.StatusResolving,
		session.StatusActive,
		session.StatusError,
	} {
		val := 0.0
		if s == current {
			val = 1
		}
		c.status.WithLabelValues(string(s)).Set(val)
	}
}

// Handler returns the HTTP handler for Prometheus scrapes
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
