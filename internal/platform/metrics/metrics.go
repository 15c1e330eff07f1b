package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the notifier.
type Metrics struct {
	MessagesSent        *prometheus.CounterVec
	MessagesFailed      *prometheus.CounterVec
	RegistrationsSynced prometheus.Counter
	LocksReaped         prometheus.Counter
	BroadcastRecipients *prometheus.CounterVec
	DispatchDuration    prometheus.Histogram
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		MessagesSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "regnotify_messages_sent_total",
			Help: "Total number of stage messages delivered, by stage",
		}, []string{"stage"}),
		MessagesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "regnotify_messages_failed_total",
			Help: "Total number of failed stage send attempts, by stage",
		}, []string{"stage"}),
		RegistrationsSynced: promauto.NewCounter(prometheus.CounterOpts{
			Name: "regnotify_registrations_synced_total",
			Help: "Total number of source registrations observed by the sync loop",
		}),
		LocksReaped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "regnotify_stale_locks_reaped_total",
			Help: "Total number of stale processing locks force-cleared by the reaper",
		}),
		BroadcastRecipients: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "regnotify_broadcast_recipients_total",
			Help: "Total number of bulk broadcast recipients processed, by result",
		}, []string{"result"}),
		DispatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "regnotify_dispatch_cycle_seconds",
			Help:    "Duration of a full dispatch cycle",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncrementSent(stage string)   { m.MessagesSent.WithLabelValues(stage).Inc() }
func (m *Metrics) IncrementFailed(stage string) { m.MessagesFailed.WithLabelValues(stage).Inc() }
func (m *Metrics) AddSynced(n int)              { m.RegistrationsSynced.Add(float64(n)) }
func (m *Metrics) AddReaped(n int)              { m.LocksReaped.Add(float64(n)) }

func (m *Metrics) IncrementBroadcast(result string) {
	m.BroadcastRecipients.WithLabelValues(result).Inc()
}
