package coordinator

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "smarthome_bridge"

// Metrics holds the coordinator's prometheus collectors.
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	fetches           *prometheus.CounterVec
	fetchDuration     prometheus.Histogram
	frames            *prometheus.CounterVec
	stateUpdates      *prometheus.CounterVec
	commands          *prometheus.CounterVec
	notifications     prometheus.Counter
	devices           prometheus.Gauge
	lastUpdateSuccess prometheus.Gauge
	streamConnected   prometheus.Gauge
	streamReconnects  prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "snapshot_fetches_total",
			Help:      "Device snapshot fetches by result.",
		}, []string{"result"}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "snapshot_fetch_duration_seconds",
			Help:      "Duration of device snapshot fetches.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "stream_frames_total",
			Help:      "Stream frames received by message type.",
		}, []string{"type"}),
		stateUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "state_updates_total",
			Help:      "Per-device state entries by outcome.",
		}, []string{"outcome"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "commands_total",
			Help:      "Commands sent to the hub by result.",
		}, []string{"result"}),
		notifications: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "notifications_total",
			Help:      "Cache change notifications published.",
		}),
		devices: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "devices",
			Help:      "Enabled devices in the current snapshot.",
		}),
		lastUpdateSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "last_update_success",
			Help:      "1 if the latest snapshot fetch succeeded.",
		}),
		streamConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "stream_connected",
			Help:      "1 while the hub stream is open.",
		}),
		streamReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "stream_disconnects_total",
			Help:      "Stream terminations that scheduled a reconnect.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.fetches, m.fetchDuration, m.frames, m.stateUpdates, m.commands,
			m.notifications, m.devices, m.lastUpdateSuccess,
			m.streamConnected, m.streamReconnects,
		)
	}
	return m
}

func (m *Metrics) observeFetch(ok bool, seconds float64, devices int) {
	if m == nil {
		return
	}
	m.fetchDuration.Observe(seconds)
	if ok {
		m.fetches.WithLabelValues("success").Inc()
		m.lastUpdateSuccess.Set(1)
		m.devices.Set(float64(devices))
		return
	}
	m.fetches.WithLabelValues("failure").Inc()
	m.lastUpdateSuccess.Set(0)
}

func (m *Metrics) observeFrame(msgType string) {
	if m == nil {
		return
	}
	m.frames.WithLabelValues(msgType).Inc()
}

func (m *Metrics) observeStates(applied, dropped int) {
	if m == nil {
		return
	}
	m.stateUpdates.WithLabelValues("applied").Add(float64(applied))
	m.stateUpdates.WithLabelValues("dropped").Add(float64(dropped))
}

func (m *Metrics) observeCommand(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.commands.WithLabelValues("success").Inc()
	} else {
		m.commands.WithLabelValues("failure").Inc()
	}
}

func (m *Metrics) observeNotify() {
	if m == nil {
		return
	}
	m.notifications.Inc()
}

func (m *Metrics) observeStream(connected, disconnected bool) {
	if m == nil {
		return
	}
	if connected {
		m.streamConnected.Set(1)
	} else {
		m.streamConnected.Set(0)
	}
	if disconnected {
		m.streamReconnects.Inc()
	}
}
