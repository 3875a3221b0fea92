package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultNamespace = "pagebot"

// Collector owns the bot's Prometheus collectors on a private registry
type Collector struct {
	registry *prometheus.Registry

	events          *prometheus.CounterVec
	handlerDuration *prometheus.HistogramVec
	ledgerOps       *prometheus.CounterVec
	compensations   *prometheus.CounterVec
	deliveries      *prometheus.CounterVec
	inFlight        prometheus.Gauge
}

// NewCollector creates and registers all collectors under namespace
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = defaultNamespace
	}

	c := &Collector{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "dispatch",
				Name:      "events_total",
				Help:      "Inbound events by kind and dispatch outcome.",
			},
			[]string{"kind", "outcome"},
		),
		handlerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "dispatch",
				Name:      "handler_duration_seconds",
				Help:      "Duration of command and postback handlers.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
			},
			[]string{"handler"},
		),
		ledgerOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "operations_total",
				Help:      "Ledger operations by type and result.",
			},
			[]string{"op", "result"},
		),
		compensations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "compensations_total",
				Help:      "Transfer rollbacks by result.",
			},
			[]string{"result"},
		),
		deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "messenger",
				Name:      "deliveries_total",
				Help:      "Outbound messages by platform and status.",
			},
			[]string{"platform", "status"},
		),
		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "dispatch",
				Name:      "inflight_events",
				Help:      "Events currently being processed.",
			},
		),
	}

	c.registry.MustRegister(
		c.events,
		c.handlerDuration,
		c.ledgerOps,
		c.compensations,
		c.deliveries,
		c.inFlight,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return c
}

// Handler returns an HTTP handler exposing the registered metrics
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordEvent counts one processed event
func (c *Collector) RecordEvent(kind, outcome string) {
	c.events.WithLabelValues(kind, outcome).Inc()
}

// ObserveHandler records how long a handler ran
func (c *Collector) ObserveHandler(handler string, d time.Duration) {
	c.handlerDuration.WithLabelValues(handler).Observe(d.Seconds())
}

// EventStarted and EventFinished track in-flight events
func (c *Collector) EventStarted() { c.inFlight.Inc() }
func (c *Collector) EventFinished() { c.inFlight.Dec() }

// LedgerOperation counts a ledger call
func (c *Collector) LedgerOperation(op, result string) {
	c.ledgerOps.WithLabelValues(op, result).Inc()
}

// Compensation counts a transfer rollback attempt
func (c *Collector) Compensation(result string) {
	c.compensations.WithLabelValues(result).Inc()
}

// RecordDelivery counts an outbound message
func (c *Collector) RecordDelivery(platform string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.deliveries.WithLabelValues(platform, status).Inc()
}
