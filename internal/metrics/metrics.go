// Package metrics exposes Prometheus instruments for HTTP traffic and
// registry activity.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"samudra-ledger/registry-backend/internal/notifications"
)

// Metrics holds every instrument the service records.
type Metrics struct {
	registry *prometheus.Registry

	RequestDuration *prometheus.HistogramVec
	RequestsTotal   *prometheus.CounterVec

	// Registry events by type, fed from the notification stream.
	EventsTotal *prometheus.CounterVec
	// tCO2e moved by issuance, purchase and retirement.
	CreditTonnes *prometheus.CounterVec
}

// New registers all instruments on reg. A nil reg gets a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "samudra_http_request_duration_seconds",
			Help:    "Duration of HTTP requests by route and method",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "route"}),
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "samudra_http_requests_total",
			Help: "HTTP requests by route, method and status",
		}, []string{"method", "route", "status"}),
		EventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "samudra_registry_events_total",
			Help: "Registry events by type",
		}, []string{"type"}),
		CreditTonnes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "samudra_credit_tonnes_total",
			Help: "Credit tonnage (tCO2e) by lifecycle action",
		}, []string{"action"}),
	}
}

// Middleware records latency and status for every request. Unmatched routes
// are grouped under "unmatched" to keep label cardinality bounded.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
		m.RequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

var tonnageActions = map[notifications.EventType]string{
	notifications.EventCreditIssued:    "issued",
	notifications.EventCreditPurchased: "purchased",
	notifications.EventCreditRetired:   "retired",
}

// Publish counts registry events; it lets Metrics sit on the notification
// fanout next to the websocket hub.
func (m *Metrics) Publish(_ context.Context, event notifications.Event) {
	if m == nil {
		return
	}
	m.EventsTotal.WithLabelValues(string(event.Type)).Inc()
	action, ok := tonnageActions[event.Type]
	if !ok {
		return
	}
	if amount, ok := event.Data["amount"].(float64); ok && amount > 0 {
		m.CreditTonnes.WithLabelValues(action).Add(amount)
	}
}
