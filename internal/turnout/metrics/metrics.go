// Package metrics exposes per-election reconciliation quality as Prometheus
// series, written to a node-exporter textfile at the end of a run.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/louisbranch/turnout/internal/turnout/recon"
)

// Metrics holds the run's collectors on a private registry, so repeated runs
// in one process never collide on the default registerer.
type Metrics struct {
	registry *prometheus.Registry

	Voted                   *prometheus.GaugeVec
	Registered              *prometheus.GaugeVec
	JoinMismatches          *prometheus.GaugeVec
	CountyMismatches        *prometheus.GaugeVec
	ZeroRegisteredBuckets   *prometheus.GaugeVec
	VotesWithoutDenominator *prometheus.GaugeVec

	SkippedFiles     prometheus.Counter
	ElectionDuration prometheus.Histogram
}

// New creates and registers the turnout metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	gauge := func(name, help string) *prometheus.GaugeVec {
		return factory.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, []string{"election_date"})
	}
	return &Metrics{
		registry:                reg,
		Voted:                   gauge("turnout_voted_total", "Deduplicated vote events per election"),
		Registered:              gauge("turnout_registered_total", "Registered voters per election from the census"),
		JoinMismatches:          gauge("turnout_join_mismatches", "Vote events with no registry row"),
		CountyMismatches:        gauge("turnout_county_mismatches", "Matched vote events cast outside the registered county"),
		ZeroRegisteredBuckets:   gauge("turnout_zero_registered_buckets", "Buckets whose registered count is zero"),
		VotesWithoutDenominator: gauge("turnout_votes_without_denominator", "Votes in buckets missing from the census"),
		SkippedFiles: factory.NewCounter(prometheus.CounterOpts{
			Name: "turnout_skipped_files_total",
			Help: "Census files skipped for an unrecognized name",
		}),
		ElectionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "turnout_election_duration_seconds",
			Help:    "Duration of one election reconciliation pass",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
	}
}

// ObserveElection records one election result.
func (m *Metrics) ObserveElection(res recon.ElectionResult) {
	if m == nil {
		return
	}
	date := res.Election.ISO
	m.Voted.WithLabelValues(date).Set(float64(res.QA.TotalVoted))
	m.Registered.WithLabelValues(date).Set(float64(res.Checks.Statewide.Registered))
	m.JoinMismatches.WithLabelValues(date).Set(float64(res.QA.JoinMismatches))
	m.CountyMismatches.WithLabelValues(date).Set(float64(res.QA.CountyMismatches))
	m.ZeroRegisteredBuckets.WithLabelValues(date).Set(float64(res.Checks.ZeroRegisteredBuckets))
	m.VotesWithoutDenominator.WithLabelValues(date).Set(float64(res.Checks.VotesWithoutDenominator))
}

// ObserveElectionDuration records how long a pass took.
func (m *Metrics) ObserveElectionDuration(d time.Duration) {
	if m != nil {
		m.ElectionDuration.Observe(d.Seconds())
	}
}

// AddSkippedFiles counts census files skipped during discovery.
func (m *Metrics) AddSkippedFiles(n int) {
	if m != nil && n > 0 {
		m.SkippedFiles.Add(float64(n))
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// WriteTextfile writes every series to path in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
