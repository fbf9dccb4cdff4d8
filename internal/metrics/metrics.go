package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

// Metrics holds the application's Prometheus collectors.
type Metrics struct {
	Requests         *prometheus.CounterVec
	LatencyMS        *prometheus.HistogramVec
	OrdersPlaced     prometheus.Counter
	CheckoutFailures *prometheus.CounterVec
	StockDeductions  *prometheus.CounterVec
	EventsPublished  *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"method", "route"}),
		OrdersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_placed_total",
			Help:      "Orders committed by checkout.",
		}),
		CheckoutFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_failures_total",
			Help:      "Checkout attempts that were rolled back, by reason.",
		}, []string{"reason"}),
		StockDeductions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_deductions_total",
			Help:      "Conditional stock deductions, by outcome.",
		}, []string{"outcome"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_total",
			Help:      "Outbox events handed to the broker, by result.",
		}, []string{"result"}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.Requests,
		m.LatencyMS,
		m.OrdersPlaced,
		m.CheckoutFailures,
		m.StockDeductions,
		m.EventsPublished,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.Requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.LatencyMS.WithLabelValues(method, route).Observe(float64(elapsed.Microseconds()) / 1000)
}

// ObserveDeduction records a stock ledger outcome.
func (m *Metrics) ObserveDeduction(outcome string) {
	m.StockDeductions.WithLabelValues(outcome).Inc()
}

// OrderPlaced counts a committed checkout.
func (m *Metrics) OrderPlaced() {
	m.OrdersPlaced.Inc()
}

// CheckoutFailed counts a rolled-back checkout.
func (m *Metrics) CheckoutFailed(reason string) {
	m.CheckoutFailures.WithLabelValues(reason).Inc()
}

// EventsRelayed counts events published or failed by the outbox relay.
func (m *Metrics) EventsRelayed(published, failed int) {
	if published > 0 {
		m.EventsPublished.WithLabelValues("published").Add(float64(published))
	}
	if failed > 0 {
		m.EventsPublished.WithLabelValues("failed").Add(float64(failed))
	}
}
