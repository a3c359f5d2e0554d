package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "arcyd"

type Metrics struct {
	cycles        prometheus.Counter
	cycleDuration prometheus.Histogram
	repos         *prometheus.CounterVec
	branches      *prometheus.CounterVec
	diffs         *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		cycles: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Number of completed polling cycles.",
		}),
		cycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of polling cycles.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		repos: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "repo_results_total",
			Help:      "Repository processing results.",
		}, []string{"repo", "result"}),
		branches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "branch_results_total",
			Help:      "Branch processing results.",
		}, []string{"repo", "result"}),
		diffs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diff_reductions_total",
			Help:      "Diffs prepared for review by reduction level.",
		}, []string{"level"}),
	}
}

func (m *Metrics) ObserveCycle(d time.Duration) {
	m.cycles.Inc()
	m.cycleDuration.Observe(d.Seconds())
}

func (m *Metrics) RepoResult(repo, result string) {
	m.repos.WithLabelValues(repo, result).Inc()
}

func (m *Metrics) BranchResult(repo, result string) {
	m.branches.WithLabelValues(repo, result).Inc()
}

func (m *Metrics) DiffLevel(level string) {
	m.diffs.WithLabelValues(level).Inc()
}
