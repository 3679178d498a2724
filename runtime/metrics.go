package runtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dtaskrt/dtaskrt/reb"
)

// Prometheus collectors for the runtime's internal queues and rebalance
// activity, the same exported-metrics idiom the teacher's stats package
// uses for its Prometheus exporter, scoped here to this package's own
// bookkeeping instead of bucket/xaction counters.
var (
	rebalanceTriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dtaskrt",
		Subsystem: "rebalance",
		Name:      "tries_total",
		Help:      "Balance-loop tries spent across every Rebalance call.",
	})
	rebalanceMaxDiffFraction = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "dtaskrt",
		Subsystem: "rebalance",
		Name:      "max_diff_fraction",
		Help:      "Imbalance fraction reported by the most recently completed Balance pass.",
	})
	migratedElementsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dtaskrt",
		Subsystem: "migrate",
		Name:      "elements_total",
		Help:      "Elements sent to another rank across every migration.",
	})
	migratedBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dtaskrt",
		Subsystem: "migrate",
		Name:      "bytes_total",
		Help:      "Payload bytes sent to another rank across every migration.",
	})
	pendingRequestsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "dtaskrt",
		Subsystem: "engine",
		Name:      "pending_requests",
		Help:      "Outstanding request-table entries at the end of the last migration.",
	})
	readyTasksGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "dtaskrt",
		Subsystem: "engine",
		Name:      "ready_tasks",
		Help:      "Ready-task queue length at the end of the last migration.",
	})
)

func recordRebalance(result reb.Result) {
	rebalanceTriesTotal.Add(float64(result.Tries))
	rebalanceMaxDiffFraction.Set(result.MaxDiffFraction)
}

func recordMigration(toSend []reb.OutgoingMigration) {
	migratedElementsTotal.Add(float64(len(toSend)))
	var bytes int
	for _, m := range toSend {
		bytes += len(m.Data)
	}
	migratedBytesTotal.Add(float64(bytes))
}

func recordQueueDepths(m *Manager) {
	pendingRequestsGauge.Set(float64(m.engine.Requests().Len()))
	readyTasksGauge.Set(float64(m.engine.Tasks().Len()))
}
