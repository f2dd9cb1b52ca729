package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the QR directory service.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Validation metrics
	ValidationsTotal   *prometheus.CounterVec
	ValidationDuration prometheus.Histogram

	// Roots notification metrics
	RootsNotifications *prometheus.CounterVec

	// Configuration metrics
	ConfigUpdates      *prometheus.CounterVec
	ObserverDeliveries prometheus.Counter

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSEvents      prometheus.Counter

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot Snapshot

	mu sync.RWMutex
}

// Snapshot holds current metric values for the JSON status API.
type Snapshot struct {
	TotalRequests      int64   `json:"total_requests"`
	TotalValidations   int64   `json:"total_validations"`
	BlockedValidations int64   `json:"blocked_validations"`
	RootsApplied       int64   `json:"roots_applied"`
	RootsRejected      int64   `json:"roots_rejected"`
	ActiveConnections  int64   `json:"active_connections"`
	UptimeSeconds      float64 `json:"uptime_seconds"`
}

// NewMetrics creates a metrics collector backed by its own registry so
// multiple instances can coexist in tests.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		registry:  registry,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qrdir_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "qrdir_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		ValidationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qrdir_validations_total",
				Help: "Directory validation attempts by result and risk level",
			},
			[]string{"result", "risk"},
		),
		ValidationDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "qrdir_validation_duration_seconds",
				Help:    "Directory validation duration in seconds",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
			},
		),
		RootsNotifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qrdir_roots_notifications_total",
				Help: "Roots change notifications by outcome",
			},
			[]string{"outcome"},
		),
		ConfigUpdates: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qrdir_config_updates_total",
				Help: "Configuration updates by source and result",
			},
			[]string{"source", "result"},
		),
		ObserverDeliveries: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "qrdir_observer_deliveries_total",
				Help: "Configuration change events delivered to observers",
			},
		),
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "qrdir_ws_connections",
				Help: "Active WebSocket connections",
			},
		),
		WSEvents: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "qrdir_ws_events_total",
				Help: "Events broadcast over WebSocket",
			},
		),
		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "qrdir_uptime_seconds",
				Help: "Service uptime in seconds",
			},
		),
	}

	return m
}

// Registry exposes the backing registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRequest records an HTTP request.
func (m *Metrics) RecordRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.mu.Unlock()
}

// RecordValidation records a directory validation attempt.
func (m *Metrics) RecordValidation(result, risk string, duration time.Duration) {
	m.ValidationsTotal.WithLabelValues(result, risk).Inc()
	m.ValidationDuration.Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalValidations++
	if result != "allowed" {
		m.snapshot.BlockedValidations++
	}
	m.mu.Unlock()
}

// RecordRootsNotification records the outcome of a roots change.
func (m *Metrics) RecordRootsNotification(outcome string) {
	m.RootsNotifications.WithLabelValues(outcome).Inc()

	m.mu.Lock()
	if outcome == "applied" {
		m.snapshot.RootsApplied++
	} else {
		m.snapshot.RootsRejected++
	}
	m.mu.Unlock()
}

// RecordConfigUpdate records a configuration update attempt.
func (m *Metrics) RecordConfigUpdate(source string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.ConfigUpdates.WithLabelValues(source, result).Inc()
}

// RecordObserverDelivery records one observer invocation.
func (m *Metrics) RecordObserverDelivery() {
	m.ObserverDeliveries.Inc()
}

// WSConnect tracks a new WebSocket connection.
func (m *Metrics) WSConnect() {
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.ActiveConnections++
	m.mu.Unlock()
}

// WSDisconnect tracks a closed WebSocket connection.
func (m *Metrics) WSDisconnect() {
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.ActiveConnections--
	m.mu.Unlock()
}

// RecordWSEvent tracks one broadcast event.
func (m *Metrics) RecordWSEvent() {
	m.WSEvents.Inc()
}

// GetSnapshot returns current metric values for the JSON status API.
func (m *Metrics) GetSnapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := m.snapshot
	snap.UptimeSeconds = time.Since(m.startTime).Seconds()
	return snap
}

// UpdateUptime refreshes the uptime gauge.
func (m *Metrics) UpdateUptime() {
	m.Uptime.Set(time.Since(m.startTime).Seconds())
}
