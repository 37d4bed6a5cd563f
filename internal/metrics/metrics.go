// Package metrics exposes the agent's own Prometheus instrumentation.
//
// Every recording method is safe to call on a nil *Metrics, so loops can be
// built without instrumentation in tests.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "edgeagent"

// Metrics holds the collectors for ingestion, delivery and configuration.
type Metrics struct {
	linesIngested  prometheus.Counter
	deviceErrors   prometheus.Counter
	uartState      prometheus.Gauge
	sent           *prometheus.CounterVec
	sendFailures   *prometheus.CounterVec
	discarded      *prometheus.CounterVec
	sinkState      *prometheus.GaugeVec
	queueDepth     *prometheus.GaugeVec
	configReplaced prometheus.Counter
	apiRequests    *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		linesIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "uart",
			Name:      "lines_total",
			Help:      "Total number of lines read from the serial device",
		}),
		deviceErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "uart",
			Name:      "device_errors_total",
			Help:      "Total number of serial open or read failures",
		}),
		uartState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "uart",
			Name:      "state",
			Help:      "Serial ingestion state (0=idle, 1=configuring, 2=reading, 3=backoff)",
		}),
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "sent_total",
			Help:      "Total number of payloads delivered",
		}, []string{"sink"}),
		sendFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "failures_total",
			Help:      "Total number of connect or send failures",
		}, []string{"sink"}),
		discarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "discarded_total",
			Help:      "Total number of queued envelopes dropped while disabled or backing off",
		}, []string{"sink"}),
		sinkState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "state",
			Help:      "Sink loop state (0=disabled, 1=connecting, 2=active, 3=backoff)",
		}, []string{"sink"}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Envelopes waiting in a delivery queue",
		}, []string{"sink"}),
		configReplaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "config",
			Name:      "replacements_total",
			Help:      "Total number of settings generations accepted",
		}),
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of dashboard API requests by method and status code",
		}, []string{"method", "code"}),
	}

	collectors := []prometheus.Collector{
		m.linesIngested,
		m.deviceErrors,
		m.uartState,
		m.sent,
		m.sendFailures,
		m.discarded,
		m.sinkState,
		m.queueDepth,
		m.configReplaced,
		m.apiRequests,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// LineIngested counts one line taken from the serial device.
func (m *Metrics) LineIngested() {
	if m == nil {
		return
	}
	m.linesIngested.Inc()
}

// DeviceError counts one serial open or read failure.
func (m *Metrics) DeviceError() {
	if m == nil {
		return
	}
	m.deviceErrors.Inc()
}

// UARTState records the ingestion loop state as its ordinal.
func (m *Metrics) UARTState(state int) {
	if m == nil {
		return
	}
	m.uartState.Set(float64(state))
}

// Sent counts one successful delivery by the named sink.
func (m *Metrics) Sent(sink string) {
	if m == nil {
		return
	}
	m.sent.WithLabelValues(sink).Inc()
}

// SendFailure counts one connect or send failure by the named sink.
func (m *Metrics) SendFailure(sink string) {
	if m == nil {
		return
	}
	m.sendFailures.WithLabelValues(sink).Inc()
}

// Discarded counts n envelopes dropped by the named sink.
func (m *Metrics) Discarded(sink string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.discarded.WithLabelValues(sink).Add(float64(n))
}

// SinkState records the loop state of the named sink as its ordinal.
func (m *Metrics) SinkState(sink string, state int) {
	if m == nil {
		return
	}
	m.sinkState.WithLabelValues(sink).Set(float64(state))
}

// QueueDepth records the occupancy of the named sink's queue.
func (m *Metrics) QueueDepth(sink string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(sink).Set(float64(depth))
}

// ConfigReplaced counts one accepted settings generation.
func (m *Metrics) ConfigReplaced() {
	if m == nil {
		return
	}
	m.configReplaced.Inc()
}

// APIRequest counts one dashboard API request.
func (m *Metrics) APIRequest(method string, code int) {
	if m == nil {
		return
	}
	m.apiRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
}
