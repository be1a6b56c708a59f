// Package metrics exposes a process's protocol-level activity as prometheus
// collectors: blocks produced, votes cast, QCs formed, finalizations,
// view changes, and the current view/phase.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the interface for Morpheus process metrics.
type Metrics interface {
	BlocksProduced() *prometheus.CounterVec
	VotesCast() *prometheus.CounterVec
	QCsFormed() *prometheus.CounterVec
	BlocksFinalized() prometheus.Counter
	ViewChanges() prometheus.Counter
	Complaints() prometheus.Counter
	CurrentView() prometheus.Gauge
	CurrentPhase() prometheus.Gauge
}

type metrics struct {
	blocksProduced  *prometheus.CounterVec
	votesCast       *prometheus.CounterVec
	qcsFormed       *prometheus.CounterVec
	blocksFinalized prometheus.Counter
	viewChanges     prometheus.Counter
	complaints      prometheus.Counter
	currentView     prometheus.Gauge
	currentPhase    prometheus.Gauge
}

// New creates and registers a Metrics instance under namespace.
func New(namespace string, registerer prometheus.Registerer) (Metrics, error) {
	m := &metrics{
		blocksProduced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_produced_total",
			Help:      "Number of blocks this process has produced, by block type.",
		}, []string{"type"}),
		votesCast: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_cast_total",
			Help:      "Number of votes this process has cast, by vote level.",
		}, []string{"z"}),
		qcsFormed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "qcs_formed_total",
			Help:      "Number of quorum certificates this process has formed, by vote level.",
		}, []string{"z"}),
		blocksFinalized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_finalized_total",
			Help:      "Number of blocks this process has finalized.",
		}),
		viewChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "view_changes_total",
			Help:      "Number of times this process has entered a new view.",
		}),
		complaints: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "complaints_total",
			Help:      "Number of complaint (6Δ timeout) messages this process has sent.",
		}),
		currentView: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_view",
			Help:      "The view this process currently occupies.",
		}),
		currentPhase: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_phase",
			Help:      "The throughput phase of the current view (0 = High, 1 = Low).",
		}),
	}

	collectors := []prometheus.Collector{
		m.blocksProduced, m.votesCast, m.qcsFormed,
		m.blocksFinalized, m.viewChanges, m.complaints,
		m.currentView, m.currentPhase,
	}
	for _, c := range collectors {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *metrics) BlocksProduced() *prometheus.CounterVec { return m.blocksProduced }
func (m *metrics) VotesCast() *prometheus.CounterVec      { return m.votesCast }
func (m *metrics) QCsFormed() *prometheus.CounterVec      { return m.qcsFormed }
func (m *metrics) BlocksFinalized() prometheus.Counter    { return m.blocksFinalized }
func (m *metrics) ViewChanges() prometheus.Counter        { return m.viewChanges }
func (m *metrics) Complaints() prometheus.Counter         { return m.complaints }
func (m *metrics) CurrentView() prometheus.Gauge          { return m.currentView }
func (m *metrics) CurrentPhase() prometheus.Gauge         { return m.currentPhase }

// NoOp returns a Metrics backed by an unregistered, throwaway registry, for
// callers (tests, simulation) that want the interface without wiring a real
// registerer.
func NoOp() Metrics {
	m, err := New("morpheus", prometheus.NewRegistry())
	if err != nil {
		panic(err)
	}
	return m
}
