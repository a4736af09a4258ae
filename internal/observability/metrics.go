package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the service's Prometheus collectors on a dedicated registry.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestErrors   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	joins           *prometheus.CounterVec
	expiries        *prometheus.CounterVec
	promotions      prometheus.Counter
	purchases       prometheus.Counter
	tasks           *prometheus.CounterVec
}

// NewMetrics registers collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by path, method and status",
		}, []string{"path", "method", "status"}),
		requestErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_request_errors_total",
			Help: "HTTP errors by path, method and error code",
		}, []string{"path", "method", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "method"}),
		joins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "waitlist_joins_total",
			Help: "Waiting list joins by outcome",
		}, []string{"outcome"}),
		expiries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "waitlist_offers_expired_total",
			Help: "Offer expiry triggers by outcome",
		}, []string{"outcome"}),
		promotions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "waitlist_promotions_total",
			Help: "Waiting entries promoted to offers",
		}),
		purchases: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "waitlist_purchases_total",
			Help: "Offers converted into tickets",
		}),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduler_tasks_total",
			Help: "Scheduled task executions by reference and result",
		}, []string{"task_ref", "result"}),
	}
	reg.MustRegister(
		m.requests, m.requestErrors, m.requestDuration,
		m.joins, m.expiries, m.promotions, m.purchases, m.tasks,
	)
	return m
}

// Registry exposes the registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.requestErrors.WithLabelValues(path, method, code).Inc()
}

// RecordJoin counts a join attempt by outcome.
func (m *Metrics) RecordJoin(outcome string) {
	if m == nil {
		return
	}
	m.joins.WithLabelValues(outcome).Inc()
}

// RecordExpiry counts an expiry attempt by outcome.
func (m *Metrics) RecordExpiry(outcome string) {
	if m == nil {
		return
	}
	m.expiries.WithLabelValues(outcome).Inc()
}

// RecordPromotions adds n promoted entries.
func (m *Metrics) RecordPromotions(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.promotions.Add(float64(n))
}

// RecordPurchase counts a completed purchase.
func (m *Metrics) RecordPurchase() {
	if m == nil {
		return
	}
	m.purchases.Inc()
}

// RecordTask counts a task execution by ref and result.
func (m *Metrics) RecordTask(ref, result string) {
	if m == nil {
		return
	}
	m.tasks.WithLabelValues(ref, result).Inc()
}
