// Package telemetry collects the prometheus metrics the consensus
// engine exposes about its own operation: round duration, vote tallies,
// and reputation movement. It registers nothing else; exporting these
// over HTTP is a collaborator concern outside this module, per
// spec.md's Non-goals.
package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Registerer is the subset of prometheus.Registerer this package needs,
// named locally so callers outside consensus don't need to import
// prometheus just to pass nil.
type Registerer = prometheus.Registerer

// Metrics holds the engine's collectors. A nil Registerer at New skips
// registration (tests, multiple Engine instances in one process).
type Metrics struct {
	RoundDuration     prometheus.Histogram
	RoundsCompleted   prometheus.Counter
	RoundsFailed      *prometheus.CounterVec
	ActiveValidators  prometheus.Gauge
	ReputationDeltas  *prometheus.CounterVec
	VoteCastWeight    prometheus.Gauge
}

// New builds and, if reg is non-nil, registers the engine's collectors.
func New(reg Registerer) *Metrics {
	m := &Metrics{
		RoundDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "poc_consensus_round_duration_seconds",
			Help:    "Time from round start to terminal state.",
			Buckets: prometheus.DefBuckets,
		}),
		RoundsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "poc_consensus_rounds_completed_total",
			Help: "Rounds that reached Completed.",
		}),
		RoundsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "poc_consensus_rounds_failed_total",
			Help: "Rounds that reached Failed, labeled by reason.",
		}, []string{"reason"}),
		ActiveValidators: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "poc_consensus_active_validators",
			Help: "Current count of active validators.",
		}),
		ReputationDeltas: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "poc_consensus_reputation_deltas_total",
			Help: "Count of reputation deltas applied, labeled by category.",
		}, []string{"category"}),
		VoteCastWeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "poc_consensus_last_vote_cast_weight",
			Help: "Cast voting-power fraction of the most recently evaluated vote.",
		}),
	}
	if reg == nil {
		return m
	}
	for _, c := range []prometheus.Collector{m.RoundDuration, m.RoundsCompleted, m.RoundsFailed, m.ActiveValidators, m.ReputationDeltas, m.VoteCastWeight} {
		_ = reg.Register(c)
	}
	return m
}
