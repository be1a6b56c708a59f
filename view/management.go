// Package view implements view entry, the complaint/end-view timeout
// escalation, and end-view certificate aggregation (spec §4.6).
package view

import (
	"github.com/luxfi/log"

	"github.com/luxfi/morpheus/codec"
	"github.com/luxfi/morpheus/dag"
	"github.com/luxfi/morpheus/keybook"
	"github.com/luxfi/morpheus/types"
)

// Default timing constants (spec §6.4).
const (
	DefaultDelta              = 10
	ComplainTimeoutMultiplier = 6
	EndViewTimeoutMultiplier  = 12
)

// Phase is the per-view throughput mode (spec §3).
type Phase uint8

const (
	PhaseHigh Phase = iota
	PhaseLow
)

// Lead returns the deterministic leader of view under the round-robin
// schedule lead(v) = 1 + (v mod n).
func Lead(view types.View, n int) types.ProcessID {
	m := int64(view) % int64(n)
	if m < 0 {
		m += int64(n)
	}
	return types.ProcessID(m + 1)
}

// Manager owns view_i, phase_i, end_views, start_views, and the
// complained_qcs dedup set for a single process.
type Manager struct {
	log log.Logger
	book keybook.KeyBook
	n, f int
	delta int64

	self types.ProcessID

	view          types.View
	viewEntryTime int64
	now           int64
	phase         map[types.View]Phase

	endViews       map[types.View]map[types.ProcessID]types.PartialSignature
	endViewCerts   map[types.View]types.ThreshSigned[types.View]
	startViews     map[types.View]map[types.ProcessID]types.Signed[types.StartView]
	complainedQCs  map[types.VoteData]struct{}
}

// NewManager constructs a Manager starting at the genesis view.
func NewManager(logger log.Logger, book keybook.KeyBook, self types.ProcessID, n, f int, delta int64) *Manager {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &Manager{
		log:           logger,
		book:          book,
		n:             n,
		f:             f,
		delta:         delta,
		self:          self,
		view:          types.GenesisView,
		viewEntryTime: 0,
		phase:         map[types.View]Phase{types.GenesisView: PhaseHigh},
		endViews:      make(map[types.View]map[types.ProcessID]types.PartialSignature),
		endViewCerts:  make(map[types.View]types.ThreshSigned[types.View]),
		startViews:    make(map[types.View]map[types.ProcessID]types.Signed[types.StartView]),
		complainedQCs: make(map[types.VoteData]struct{}),
	}
}

// View returns the current view.
func (m *Manager) View() types.View { return m.view }

// Phase returns the throughput phase for view (High if never set).
func (m *Manager) Phase(view types.View) Phase { return m.phase[view] }

// ViewEntryTime returns the logical time the current view was entered.
func (m *Manager) ViewEntryTime() int64 { return m.viewEntryTime }

// Now returns the logical clock's last-advanced value.
func (m *Manager) Now() int64 { return m.now }

// SetLow transitions view to the Low phase; it is never reset to High
// within the same view (spec §3).
func (m *Manager) SetLow(view types.View) { m.phase[view] = PhaseLow }

// StartViews returns the StartView messages collected so far for view.
func (m *Manager) StartViews(view types.View) []types.Signed[types.StartView] {
	set := m.startViews[view]
	out := make([]types.Signed[types.StartView], 0, len(set))
	for _, sv := range set {
		out = append(out, sv)
	}
	return out
}

// RecordStartView ingests a signed StartView message, used as leader-block
// justification once quorum accumulates.
func (m *Manager) RecordStartView(sv types.Signed[types.StartView]) {
	set := m.startViews[sv.Data.View]
	if set == nil {
		set = make(map[types.ProcessID]types.Signed[types.StartView])
		m.startViews[sv.Data.View] = set
	}
	set[sv.Author] = sv
}

// EndView performs the §4.6 view-entry procedure for a certified jump to
// newView, returning the outbound messages this causes (the cause message
// itself is the caller's responsibility to rebroadcast alongside these).
func (m *Manager) EndView(newView types.View, idx *dag.Index) []types.Outbound {
	if newView < m.view {
		panic("view: end_view called with a view older than the current one")
	}
	m.view = newView
	m.viewEntryTime = m.now
	m.phase[newView] = PhaseHigh

	leader := Lead(newView, m.n)
	var out []types.Outbound

	for _, tip := range idx.Tips() {
		if tip.For.Author != m.self {
			continue
		}
		qc, ok := idx.QC(tip)
		if !ok {
			continue
		}
		out = append(out, types.Unicast(types.QCMessage{QC: qc}, leader))
	}

	sig, err := m.book.Sign(codec.Canonical(types.StartView{View: newView, Max1QC: idx.Max1QC()}))
	if err == nil {
		sv := types.Signed[types.StartView]{Data: types.StartView{View: newView, Max1QC: idx.Max1QC()}, Author: m.self, Signature: sig}
		out = append(out, types.Unicast(types.StartViewMessage{StartView: sv}, leader))
	} else {
		m.log.Error("failed to sign start-view message", "err", err)
	}

	return out
}

// Advance sets the logical clock; the view-entry timestamp is set by
// EndView. The caller invokes this once per tick before CheckTimeouts.
func (m *Manager) Advance(now int64) { m.now = now }

// CheckTimeouts implements the 6Δ-complaint / 12Δ-end-view escalation
// (spec §4.6), given the current set of unfinalized QCs and the index's
// observes relation to pick the maximal unfinalized QC.
func (m *Manager) CheckTimeouts(idx *dag.Index) []types.Outbound {
	timeInView := m.now - m.viewEntryTime
	var out []types.Outbound

	if timeInView >= m.delta*ComplainTimeoutMultiplier {
		if maximal, ok := maximalUnfinalized(idx); ok {
			if _, complained := m.complainedQCs[maximal]; !complained {
				m.complainedQCs[maximal] = struct{}{}
				leader := Lead(m.view, m.n)
				if leader != m.self {
					if qc, ok := idx.QC(maximal); ok {
						out = append(out, types.Unicast(types.QCMessage{QC: qc}, leader))
					}
				}
			}
		}
	}

	if timeInView >= m.delta*EndViewTimeoutMultiplier && len(idx.AllUnfinalized()) > 0 {
		sig, err := m.book.Sign(codec.Canonical(m.view))
		if err == nil {
			ev := types.Signed[types.View]{Data: m.view, Author: m.self, Signature: sig}
			out = append(out, types.Broadcast(types.EndViewMessage{EndView: ev}))
		} else {
			m.log.Error("failed to sign end-view message", "err", err)
		}
	}

	return out
}

// maximalUnfinalized picks a ⪰-maximal VoteData among every unfinalized QC
// known to idx. Ties (mutually incomparable maxima) resolve to any one of
// them, matching the reference implementation's note that maximality need
// not be unique.
func maximalUnfinalized(idx *dag.Index) (types.VoteData, bool) {
	all := idx.AllUnfinalized()
	if len(all) == 0 {
		return types.VoteData{}, false
	}
	best := all[0]
	for _, v := range all[1:] {
		if idx.Observes(v, best) {
			best = v
		}
	}
	return best, true
}

// RecordEndView collects a partial EndView vote; once f+1 distinct signers
// for a view >= the current view have voted, it aggregates and returns the
// resulting certificate.
func (m *Manager) RecordEndView(ev types.Signed[types.View]) (types.ThreshSigned[types.View], bool, error) {
	if ev.Data < m.view {
		return types.ThreshSigned[types.View]{}, false, nil
	}
	if cert, ok := m.endViewCerts[ev.Data]; ok {
		return cert, true, nil
	}

	set := m.endViews[ev.Data]
	if set == nil {
		set = make(map[types.ProcessID]types.PartialSignature)
		m.endViews[ev.Data] = set
	}
	set[ev.Author] = ev.Signature

	threshold := m.f + 1
	if len(set) < threshold {
		return types.ThreshSigned[types.View]{}, false, nil
	}

	sig, err := m.book.SignAggregate(threshold, set, codec.Canonical(ev.Data))
	if err != nil {
		return types.ThreshSigned[types.View]{}, false, err
	}
	cert := types.ThreshSigned[types.View]{Data: ev.Data, Signature: sig}
	m.endViewCerts[ev.Data] = cert
	return cert, true, nil
}
