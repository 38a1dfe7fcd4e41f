package loader

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Supervisor's Prometheus metrics. A nil *Metrics records
// nothing.
type Metrics struct {
	Starts       *prometheus.CounterVec
	Stops        prometheus.Counter
	Running      prometheus.Gauge
	WakeLocks    prometheus.Gauge
	LoadDuration prometheus.Histogram
	LogicErrors  prometheus.Counter
}

// NewMetrics registers the loader metrics with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Starts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loader",
			Name:      "starts_total",
			Help:      "Start requests by status and error kind",
		}, []string{"status", "kind"}),
		Stops: f.NewCounter(prometheus.CounterOpts{
			Namespace: "loader",
			Name:      "stops_total",
			Help:      "Applications cleaned up after returning",
		}),
		Running: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "loader",
			Name:      "running",
			Help:      "1 while an application occupies the foreground slot",
		}),
		WakeLocks: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "loader",
			Name:      "wake_lock_held",
			Help:      "1 while the running application holds the wake-lock",
		}),
		LoadDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "loader",
			Name:      "image_load_seconds",
			Help:      "Time spent preloading and mapping images",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		LogicErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: "loader",
			Name:      "logic_errors_total",
			Help:      "Notifications that did not match supervisor state",
		}),
	}
}

func (m *Metrics) observeStart(res Result) {
	if m == nil {
		return
	}
	kind := ""
	if res.Status != StatusOK {
		kind = res.Kind.String()
	}
	m.Starts.WithLabelValues(res.Status.String(), kind).Inc()
}

func (m *Metrics) observeRunning(running, wakeLock bool) {
	if m == nil {
		return
	}
	m.Running.Set(boolToFloat(running))
	m.WakeLocks.Set(boolToFloat(wakeLock))
}

func (m *Metrics) observeStop() {
	if m == nil {
		return
	}
	m.Stops.Inc()
}

func (m *Metrics) observeLoad(d time.Duration) {
	if m == nil {
		return
	}
	m.LoadDuration.Observe(d.Seconds())
}

func (m *Metrics) observeLogicError() {
	if m == nil {
		return
	}
	m.LogicErrors.Inc()
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
