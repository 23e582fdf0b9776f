package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"smartserve/internal/models"
)

// Collector exposes the venue's operational counters to Prometheus
type Collector struct {
	registry *prometheus.Registry
	metrics  map[string]prometheus.Collector
}

// NewCollector creates a collector on its own registry
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	ordersPlaced := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartserve_orders_placed_total",
			Help: "Orders placed, by order type",
		},
		[]string{"order_type"},
	)

	stockOuts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartserve_stockouts_total",
			Help: "Checkouts rejected because an item ran out",
		},
		[]string{"item"},
	)

	transitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartserve_status_transitions_total",
			Help: "Order status transitions",
		},
		[]string{"from", "to"},
	)

	serviceRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartserve_service_requests_total",
			Help: "Service requests raised, by kind",
		},
		[]string{"kind"},
	)

	feedback := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartserve_feedback_total",
			Help: "Feedback prompts closed, by outcome",
		},
		[]string{"outcome"},
	)

	activeIncidents := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "smartserve_active_incidents",
			Help: "Incidents currently on the dashboard, by source",
		},
		[]string{"source"},
	)

	readySeconds := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "smartserve_order_ready_seconds",
			Help:    "Time from placement to READY",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
	)

	metrics := map[string]prometheus.Collector{
		"orders_placed":    ordersPlaced,
		"stockouts":        stockOuts,
		"transitions":      transitions,
		"service_requests": serviceRequests,
		"feedback":         feedback,
		"active_incidents": activeIncidents,
		"ready_seconds":    readySeconds,
	}

	for _, metric := range metrics {
		registry.MustRegister(metric)
	}

	return &Collector{
		registry: registry,
		metrics:  metrics,
	}
}

// Registry returns the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) OrderPlaced(orderType models.OrderType) {
	c.metrics["orders_placed"].(*prometheus.CounterVec).WithLabelValues(string(orderType)).Inc()
}

func (c *Collector) StockOut(itemID string) {
	c.metrics["stockouts"].(*prometheus.CounterVec).WithLabelValues(itemID).Inc()
}

func (c *Collector) Transition(from, to models.Status) {
	c.metrics["transitions"].(*prometheus.CounterVec).WithLabelValues(string(from), string(to)).Inc()
}

func (c *Collector) ServiceRequest(kind string) {
	c.metrics["service_requests"].(*prometheus.CounterVec).WithLabelValues(kind).Inc()
}

func (c *Collector) Feedback(outcome string) {
	c.metrics["feedback"].(*prometheus.CounterVec).WithLabelValues(outcome).Inc()
}

// ActiveIncidents replaces the per-source incident gauge
func (c *Collector) ActiveIncidents(bySource map[string]int) {
	gauge := c.metrics["active_incidents"].(*prometheus.GaugeVec)
	for source, n := range bySource {
		gauge.WithLabelValues(source).Set(float64(n))
	}
}

func (c *Collector) ReadyAfter(d time.Duration) {
	c.metrics["ready_seconds"].(prometheus.Histogram).Observe(d.Seconds())
}
