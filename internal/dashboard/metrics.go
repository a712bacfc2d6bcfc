package dashboard

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the refresh instrumentation. A nil *Metrics is a no-op.
type Metrics struct {
	Refreshes       prometheus.Counter
	RefreshFailures prometheus.Counter
	RefreshDuration prometheus.Histogram
	Rows            *prometheus.GaugeVec
	ClientMatches   prometheus.Gauge
	LastRefresh     prometheus.Gauge
}

// NewMetrics creates the refresh metrics and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Refreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ponwatch",
			Name:      "refreshes_total",
			Help:      "Completed alarm refreshes.",
		}),
		RefreshFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ponwatch",
			Name:      "refresh_failures_total",
			Help:      "Alarm refreshes that did not publish a snapshot.",
		}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ponwatch",
			Name:      "refresh_duration_seconds",
			Help:      "Time to fetch, merge and store both alarm feeds.",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		Rows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ponwatch",
			Name:      "alarm_rows",
			Help:      "Alarm rows in the current snapshot by gestor.",
		}, []string{"gestor"}),
		ClientMatches: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ponwatch",
			Name:      "client_matches",
			Help:      "Alarm rows joined to an active-client label.",
		}),
		LastRefresh: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ponwatch",
			Name:      "last_refresh_timestamp_seconds",
			Help:      "Unix time of the current snapshot.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Refreshes, m.RefreshFailures, m.RefreshDuration, m.Rows, m.ClientMatches, m.LastRefresh)
	}
	return m
}

func (m *Metrics) observe(s *Snapshot, seconds float64) {
	if m == nil {
		return
	}
	m.Refreshes.Inc()
	m.RefreshDuration.Observe(seconds)
	m.Rows.WithLabelValues("huawei").Set(float64(s.HuaweiRows))
	m.Rows.WithLabelValues("zte").Set(float64(s.ZTERows))
	m.ClientMatches.Set(float64(s.ClientMatches))
	m.LastRefresh.Set(float64(s.FetchedAt.Unix()))
}

func (m *Metrics) failed() {
	if m == nil {
		return
	}
	m.RefreshFailures.Inc()
}
