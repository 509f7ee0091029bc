package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once             sync.Once
	hashMismatches   *prom.CounterVec
	clientRefreshes  prom.Counter
	snapshotDuration *prom.HistogramVec
	snapshotResults  *prom.CounterVec
	coalesced        prom.Counter
	duplicates       prom.Counter
	snapshotRunning  prom.Gauge
	actionsCompleted *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.hashMismatches = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "packwatch",
			Name:      "hash_mismatches_total",
			Help:      "Detected artifact hash mismatches by artifact kind",
		}, []string{"artifact"})
		pr.clientRefreshes = prom.NewCounter(prom.CounterOpts{
			Namespace: "packwatch",
			Name:      "client_refreshes_total",
			Help:      "Client view refresh notifications emitted",
		})
		pr.snapshotDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "packwatch",
			Name:      "snapshot_duration_seconds",
			Help:      "Duration of auto-snapshot capture jobs",
			Buckets:   prom.DefBuckets,
		}, []string{"result"})
		pr.snapshotResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "packwatch",
			Name:      "snapshot_results_total",
			Help:      "Auto-snapshot job results by success/failure",
		}, []string{"result"})
		pr.coalesced = prom.NewCounter(prom.CounterOpts{
			Namespace: "packwatch",
			Name:      "snapshot_coalesced_total",
			Help:      "Auto-snapshot requests deferred while a job was running",
		})
		pr.duplicates = prom.NewCounter(prom.CounterOpts{
			Namespace: "packwatch",
			Name:      "snapshot_duplicates_total",
			Help:      "Auto-snapshot requests ignored as duplicates of the running job",
		})
		pr.snapshotRunning = prom.NewGauge(prom.GaugeOpts{
			Namespace: "packwatch",
			Name:      "snapshot_running",
			Help:      "Whether an auto-snapshot job is currently running",
		})
		pr.actionsCompleted = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "packwatch",
			Name:      "actions_completed_total",
			Help:      "External manager actions observed to completion",
		}, []string{"action"})
		reg.MustRegister(pr.hashMismatches, pr.clientRefreshes, pr.snapshotDuration,
			pr.snapshotResults, pr.coalesced, pr.duplicates, pr.snapshotRunning, pr.actionsCompleted)
	})
	return pr
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failed"
}

func (p *PrometheusRecorder) IncHashMismatch(artifact string) {
	if p == nil || p.hashMismatches == nil {
		return
	}
	p.hashMismatches.WithLabelValues(artifact).Inc()
}

func (p *PrometheusRecorder) IncClientRefresh() {
	if p == nil || p.clientRefreshes == nil {
		return
	}
	p.clientRefreshes.Inc()
}

func (p *PrometheusRecorder) ObserveSnapshotDuration(d time.Duration, success bool) {
	if p == nil || p.snapshotDuration == nil {
		return
	}
	p.snapshotDuration.WithLabelValues(resultLabel(success)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncSnapshotResult(success bool) {
	if p == nil || p.snapshotResults == nil {
		return
	}
	p.snapshotResults.WithLabelValues(resultLabel(success)).Inc()
}

func (p *PrometheusRecorder) IncSnapshotCoalesced() {
	if p == nil || p.coalesced == nil {
		return
	}
	p.coalesced.Inc()
}

func (p *PrometheusRecorder) IncSnapshotDuplicate() {
	if p == nil || p.duplicates == nil {
		return
	}
	p.duplicates.Inc()
}

func (p *PrometheusRecorder) SetSnapshotRunning(running bool) {
	if p == nil || p.snapshotRunning == nil {
		return
	}
	if running {
		p.snapshotRunning.Set(1)
	} else {
		p.snapshotRunning.Set(0)
	}
}

func (p *PrometheusRecorder) IncActionCompleted(action string) {
	if p == nil || p.actionsCompleted == nil {
		return
	}
	p.actionsCompleted.WithLabelValues(action).Inc()
}
