// Package voting implements the three-level (0/1/2) vote cascade, the
// per-view pending-vote queues, and their re-evaluation (spec §4.5).
package voting

import (
	"github.com/luxfi/log"

	"github.com/luxfi/morpheus/codec"
	"github.com/luxfi/morpheus/dag"
	"github.com/luxfi/morpheus/keybook"
	"github.com/luxfi/morpheus/types"
	"github.com/luxfi/morpheus/view"
	"github.com/luxfi/morpheus/votes"
)

// votedKey identifies a single (level, type, slot, author) vote this
// process may cast at most once (spec §4.5: "voted_i").
type votedKey struct {
	Z      uint8
	Type   types.BlockType
	Slot   types.Slot
	Author types.ProcessID
}

// PendingVotes queues block keys awaiting re-check for one view's four vote
// kinds, plus a dirty flag set by any ingestion that might unblock one.
type PendingVotes struct {
	Tr1, Tr2, Lead1, Lead2 map[types.BlockKey]bool
	Dirty                  bool
}

func newPendingVotes() *PendingVotes {
	return &PendingVotes{
		Tr1:   make(map[types.BlockKey]bool),
		Tr2:   make(map[types.BlockKey]bool),
		Lead1: make(map[types.BlockKey]bool),
		Lead2: make(map[types.BlockKey]bool),
	}
}

// Engine drives vote casting, quorum-certificate formation, and pending-vote
// re-evaluation for a single process.
type Engine struct {
	log  log.Logger
	self types.ProcessID
	book keybook.KeyBook
	n, f int

	idx     *dag.Index
	views   *view.Manager
	tracker *votes.Tracker

	votedI      map[votedKey]struct{}
	zeroQCsSent map[types.BlockKey]struct{}
	pending     map[types.View]*PendingVotes
}

// NewEngine constructs a voting Engine bound to idx and views, which must
// belong to the same process.
func NewEngine(logger log.Logger, book keybook.KeyBook, self types.ProcessID, n, f int, idx *dag.Index, views *view.Manager) *Engine {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &Engine{
		log:         logger,
		self:        self,
		book:        book,
		n:           n,
		f:           f,
		idx:         idx,
		views:       views,
		tracker:     votes.NewTracker(logger, book, n-f),
		votedI:      make(map[votedKey]struct{}),
		zeroQCsSent: make(map[types.BlockKey]struct{}),
		pending:     make(map[types.View]*PendingVotes),
	}
}

func (e *Engine) pendingFor(view types.View) *PendingVotes {
	p := e.pending[view]
	if p == nil {
		p = newPendingVotes()
		e.pending[view] = p
	}
	return p
}

// MarkDirty flags a view's pending votes for re-evaluation (any ingestion
// that can enable a vote does this).
func (e *Engine) MarkDirty(view types.View) {
	e.pendingFor(view).Dirty = true
}

// Voted reports whether this process has already cast the given (z, type,
// slot, author) vote, for invariant checking and diagnostics.
func (e *Engine) Voted(z uint8, blockType types.BlockType, slot types.Slot, author types.ProcessID) bool {
	_, ok := e.votedI[votedKey{Z: z, Type: blockType, Slot: slot, Author: author}]
	return ok
}

// Pending returns a read-only snapshot of the four pending-vote queues for
// view, or nil if none are tracked.
func (e *Engine) Pending(view types.View) *PendingVotes {
	p, ok := e.pending[view]
	if !ok {
		return nil
	}
	return p
}

// PendingViews returns every view with tracked pending votes.
func (e *Engine) PendingViews() []types.View {
	out := make([]types.View, 0, len(e.pending))
	for v := range e.pending {
		out = append(out, v)
	}
	return out
}

// EligibleForTr1Vote exposes isEligibleForTr1Vote for invariant checking.
func (e *Engine) EligibleForTr1Vote(key types.BlockKey) bool { return e.isEligibleForTr1Vote(key) }

// EligibleForTr2Vote exposes isEligibleForTr2Vote for invariant checking.
func (e *Engine) EligibleForTr2Vote(key types.BlockKey) bool { return e.isEligibleForTr2Vote(key) }

// Enqueue adds a block key to one of the four pending-vote queues for its
// view.
func (e *Engine) Enqueue(kind string, key types.BlockKey) {
	p := e.pendingFor(key.View)
	switch kind {
	case "tr_1":
		p.Tr1[key] = true
	case "tr_2":
		p.Tr2[key] = true
	case "lead_1":
		p.Lead1[key] = true
	case "lead_2":
		p.Lead2[key] = true
	}
	p.Dirty = true
}

// TryVote casts a z-level vote for block unless this process has already
// cast that exact vote (spec: voted_i is checked, never the same vote
// twice). Returns the outbound NewVote message and whether a new vote was
// cast.
func (e *Engine) TryVote(z uint8, block types.BlockKey, target *types.ProcessID) (types.Outbound, bool) {
	if block.Author == 0 {
		panic("voting: TryVote called for a block with no author (genesis)")
	}
	key := votedKey{Z: z, Type: block.Type, Slot: block.Slot, Author: block.Author}
	if _, already := e.votedI[key]; already {
		return types.Outbound{}, false
	}
	e.votedI[key] = struct{}{}

	vote := types.VoteData{Z: z, For: block}
	sig, err := e.book.Sign(codec.Canonical(vote))
	if err != nil {
		e.log.Error("failed to sign vote", "err", err)
		return types.Outbound{}, false
	}
	signed := types.Signed[types.VoteData]{Data: vote, Author: e.self, Signature: sig}
	msg := types.NewVoteMessage{Vote: signed}
	if target != nil {
		return types.Unicast(msg, *target), true
	}
	return types.Broadcast(msg), true
}

// RecordVote ingests a partial vote, forming and recording a QC once
// quorum is reached. It returns any outbound messages this causes (the
// formed QC, broadcast only the first time a process's own 0-QC forms, per
// the zero_qcs_sent dedup) and any block keys newly finalized as a result.
func (e *Engine) RecordVote(vote types.Signed[types.VoteData]) ([]types.Outbound, []types.BlockKey, error) {
	qc, formed, err := e.tracker.RecordVote(vote)
	if err != nil {
		return nil, nil, err
	}
	if !formed {
		return nil, nil, nil
	}

	var out []types.Outbound
	if qc.Data.Z == 0 && qc.Data.For.Author == e.self {
		if _, sent := e.zeroQCsSent[qc.Data.For]; !sent {
			e.zeroQCsSent[qc.Data.For] = struct{}{}
			out = append(out, types.Broadcast(types.QCMessage{QC: qc}))
		}
	}

	finalized := e.idx.RecordQC(qc)
	if qc.Data.Z == 1 {
		switch qc.Data.For.Type {
		case types.BlockTransaction:
			e.Enqueue("tr_2", qc.Data.For)
		case types.BlockLeader:
			e.Enqueue("lead_2", qc.Data.For)
		}
	}
	for _, key := range finalized {
		e.MarkDirty(key.View)
	}
	return out, finalized, nil
}

// ReevaluatePendingVotes rechecks every queued block key for the current
// view and casts any vote that has become eligible (spec §4.5). It is a
// no-op unless the view's pending votes are dirty.
func (e *Engine) ReevaluatePendingVotes() []types.Outbound {
	current := e.views.View()
	p := e.pendingFor(current)
	if !p.Dirty {
		return nil
	}

	var out []types.Outbound

	containsLead := e.idx.ContainsLeadBlock(current)
	unfinalizedLeadEmpty := e.idx.UnfinalizedLeadEmpty(current)
	if containsLead && unfinalizedLeadEmpty {
		out = append(out, e.processVotes(1, p.Tr1, e.isEligibleForTr1Vote, true)...)
		out = append(out, e.processVotes(2, p.Tr2, e.isEligibleForTr2Vote, true)...)
	}

	if e.views.Phase(current) == view.PhaseHigh {
		sameView := func(key types.BlockKey) bool { return key.View == current }
		out = append(out, e.processVotes(1, p.Lead1, sameView, false)...)
		out = append(out, e.processVotes(2, p.Lead2, sameView, false)...)
	}

	p.Dirty = false
	return out
}

func (e *Engine) processVotes(level uint8, queue map[types.BlockKey]bool, eligible func(types.BlockKey) bool, transitionOnTr bool) []types.Outbound {
	var out []types.Outbound
	for key := range queue {
		if !eligible(key) {
			continue
		}
		outbound, cast := e.TryVote(level, key, nil)
		if !cast {
			panic("voting: pending-vote entry re-cast a vote already recorded in voted_i")
		}
		out = append(out, outbound)
		if transitionOnTr && key.Type == types.BlockTransaction {
			e.views.SetLow(key.View)
		}
		delete(queue, key)
	}
	return out
}

// isEligibleForTr1Vote: the block is the sole block pointing at the DAG's
// single tip and its 1-QC is greater than or equal to every 1-QC seen
// (spec §4.5).
func (e *Engine) isEligibleForTr1Vote(key types.BlockKey) bool {
	if !e.blockIsSingleTip(key) {
		return false
	}
	block, ok := e.idx.Block(key)
	if !ok {
		return false
	}
	for _, qc := range e.idx.All1QCs() {
		if types.CompareQC(block.One.Data, qc.Data) < 0 {
			return false
		}
	}
	return true
}

// isEligibleForTr2Vote: the block's 1-QC is the single tip and no higher
// block exists in the DAG.
func (e *Engine) isEligibleForTr2Vote(key types.BlockKey) bool {
	tips := e.idx.Tips()
	if len(tips) != 1 || tips[0].Z != 1 || tips[0].For != key {
		return false
	}
	maxHeight, _ := e.idx.MaxHeight()
	return maxHeight <= key.Height
}

// blockIsSingleTip reports whether key is the sole block pointing to the
// DAG's single tip.
func (e *Engine) blockIsSingleTip(key types.BlockKey) bool {
	tips := e.idx.Tips()
	if len(tips) != 1 {
		return false
	}
	parents := e.idx.BlockPointedBy(tips[0].For)
	return len(parents) == 1 && parents[0] == key
}
