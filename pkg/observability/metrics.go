// Package observability provides the Prometheus metrics and OpenTelemetry
// tracing collaborators the session client's Health Checker and Supervisor
// report through, grounded on the teacher's pkg/observability package and
// trimmed to the gauges/counters this domain actually emits.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wsdurable/client/pkg/session"
)

// MetricsConfig configures the Metrics collector's naming.
type MetricsConfig struct {
	Namespace string // default: wsclient
	Subsystem string
}

// Metrics is the Prometheus-backed session.MetricsSink implementation.
type Metrics struct {
	connectionState     prometheus.Gauge
	retryCount          prometheus.Gauge
	queueSize           prometheus.Gauge
	queuePressureAlerts prometheus.Counter
	stalenessAlerts     prometheus.Counter
	framesSent          prometheus.Counter
	framesReceived      prometheus.Counter
}

// NewMetrics constructs a Metrics collector and registers it with reg. Pass
// prometheus.NewRegistry() for an isolated registry, or
// prometheus.DefaultRegisterer to publish on the global one.
func NewMetrics(cfg MetricsConfig, reg prometheus.Registerer) (*Metrics, error) {
	if cfg.Namespace == "" {
		cfg.Namespace = "wsclient"
	}

	m := &Metrics{
		connectionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "connection_state",
			Help:      "Supervisor phase at its last Connected or Reconnecting transition (0=Idle,1=Connecting,2=Connected,3=Reconnecting,4=Stopping,5=Stopped); Connecting, Stopping and Stopped are not reported.",
		}),
		retryCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "retry_count",
			Help:      "Consecutive failed reconnect attempts since the last Connected transition.",
		}),
		queueSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "queue_size",
			Help:      "Current depth of the bounded outbound queue.",
		}),
		queuePressureAlerts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "queue_pressure_alerts_total",
			Help:      "Health Checker ticks where queue_size exceeded the pressure threshold.",
		}),
		stalenessAlerts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "staleness_alerts_total",
			Help:      "Health Checker ticks where no inbound frame arrived within health_interval.",
		}),
		framesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "frames_sent_total",
			Help:      "Outbound frames handed to the transport successfully.",
		}),
		framesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "frames_received_total",
			Help:      "Inbound frames delivered by the transport.",
		}),
	}

	collectors := []prometheus.Collector{
		m.connectionState, m.retryCount, m.queueSize,
		m.queuePressureAlerts, m.stalenessAlerts, m.framesSent, m.framesReceived,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// SetConnectionState implements session.MetricsSink.
func (m *Metrics) SetConnectionState(state session.Phase) {
	m.connectionState.Set(float64(state))
}

func (m *Metrics) SetRetryCount(n int)       { m.retryCount.Set(float64(n)) }
func (m *Metrics) SetQueueSize(n int)        { m.queueSize.Set(float64(n)) }
func (m *Metrics) IncQueuePressureAlerts()   { m.queuePressureAlerts.Inc() }
func (m *Metrics) IncStalenessAlerts()       { m.stalenessAlerts.Inc() }
func (m *Metrics) IncFramesSent()            { m.framesSent.Inc() }
func (m *Metrics) IncFramesReceived()        { m.framesReceived.Inc() }
