// Package produce assembles transaction blocks and leader blocks once this
// process becomes eligible to propose them (spec §4.7).
package produce

import (
	"github.com/luxfi/log"

	"github.com/luxfi/morpheus/codec"
	"github.com/luxfi/morpheus/dag"
	"github.com/luxfi/morpheus/keybook"
	"github.com/luxfi/morpheus/mempool"
	"github.com/luxfi/morpheus/types"
	"github.com/luxfi/morpheus/view"
)

// Producer assembles and signs new blocks for a single process (§4.7).
type Producer struct {
	log  log.Logger
	book keybook.KeyBook
	self types.ProcessID
	n, f int

	idx   *dag.Index
	views *view.Manager
	pool  *mempool.Pool

	slotTr   types.Slot
	slotLead types.Slot

	producedLeadInView map[types.View]bool
}

// NewProducer constructs a Producer for self, starting both slot counters
// at zero.
func NewProducer(logger log.Logger, book keybook.KeyBook, self types.ProcessID, n, f int, idx *dag.Index, views *view.Manager, pool *mempool.Pool) *Producer {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &Producer{
		log:                logger,
		book:               book,
		self:                self,
		n:                  n,
		f:                  f,
		idx:                idx,
		views:              views,
		pool:               pool,
		producedLeadInView: make(map[types.View]bool),
	}
}

// TryProduce attempts both a transaction block and a leader block, in that
// order, returning whatever blocks it signed (spec §4.7: "try_produce_blocks").
func (p *Producer) TryProduce() []types.Outbound {
	var out []types.Outbound
	if p.payloadReady() {
		out = append(out, p.makeTransactionBlock())
	}
	if p.self == view.Lead(p.views.View(), p.n) &&
		p.leaderReady() &&
		p.views.Phase(p.views.View()) == view.PhaseHigh &&
		len(p.idx.Tips()) > 1 {
		out = append(out, p.makeLeaderBlock())
	}
	return out
}

func (p *Producer) payloadReady() bool {
	if p.pool.Len() == 0 {
		return false
	}
	if p.slotTr == 0 {
		return true
	}
	qc, ok := p.idx.QCBySlot(types.BlockTransaction, p.self, p.slotTr-1)
	return ok && qc.Data.For.Slot.IsPredecessorOf(p.slotTr)
}

func (p *Producer) makeTransactionBlock() types.Outbound {
	var prev []types.QC
	if p.slotTr == 0 {
		prev = append(prev, genesisQC())
	} else if qc, ok := p.idx.QCBySlot(types.BlockTransaction, p.self, p.slotTr-1); ok {
		prev = append(prev, qc)
	}

	tips := p.idx.Tips()
	if len(tips) == 1 {
		if qc, ok := p.idx.QC(tips[0]); ok && !containsFor(prev, qc.Data.For) {
			prev = append(prev, qc)
		}
	}

	height := maxPrevHeight(prev) + 1
	view := p.views.View()
	key := types.BlockKey{Type: types.BlockTransaction, View: view, Height: height, Author: p.self, Slot: p.slotTr}

	block := &types.Block{
		Key:  key,
		Prev: prev,
		One:  p.idx.Max1QC(),
		Data: types.TransactionData{Transactions: p.pool.Drain()},
	}
	p.slotTr++

	return p.sign(block)
}

func (p *Producer) leaderReady() bool {
	view := p.views.View()
	slot := p.slotLead

	if p.producedLeadInView[view] {
		qc, ok := p.idx.QCBySlot(types.BlockLeader, p.self, slot-1)
		return ok && qc.Data.Z == 1 && qc.Data.For.Slot.IsPredecessorOf(slot)
	}

	haveEnoughStartViews := len(p.views.StartViews(view)) >= p.n-p.f
	if slot == 0 {
		return haveEnoughStartViews
	}
	qc, ok := p.idx.QCBySlot(types.BlockLeader, p.self, slot-1)
	return haveEnoughStartViews && ok && qc.Data.For.Slot.IsPredecessorOf(slot)
}

func (p *Producer) makeLeaderBlock() types.Outbound {
	view := p.views.View()
	slot := p.slotLead

	prev := append([]types.QC{}, tipQCs(p.idx)...)
	if slot != 0 {
		if qc, ok := p.idx.QCBySlot(types.BlockLeader, p.self, slot-1); ok && qc.Data.For.Slot.IsPredecessorOf(slot) && !containsFor(prev, qc.Data.For) {
			prev = append(prev, qc)
		}
	}

	height := maxPrevHeight(prev) + 1

	var one types.QC
	var justification []types.Signed[types.StartView]
	if !p.producedLeadInView[view] {
		startViews := p.views.StartViews(view)
		maxJust := p.idx.Max1QC()
		for _, sv := range startViews {
			if types.CompareQC(sv.Data.Max1QC.Data, maxJust.Data) > 0 {
				maxJust = sv.Data.Max1QC
			}
		}
		one = maxJust
		justification = startViews
	} else {
		qc, ok := p.idx.QCBySlot(types.BlockLeader, p.self, slot-1)
		if ok {
			one = qc
		} else {
			one = p.idx.Max1QC()
		}
	}

	key := types.BlockKey{Type: types.BlockLeader, View: view, Height: height, Author: p.self, Slot: slot}
	block := &types.Block{
		Key:  key,
		Prev: prev,
		One:  one,
		Data: types.LeaderData{Justification: justification},
	}
	p.slotLead++
	p.producedLeadInView[view] = true

	return p.sign(block)
}

func (p *Producer) sign(block *types.Block) types.Outbound {
	sig, err := p.book.Sign(codec.Canonical(block))
	if err != nil {
		p.log.Error("failed to sign produced block", "err", err)
		return types.Outbound{}
	}
	signed := types.Signed[*types.Block]{Data: block, Author: p.self, Signature: sig}
	return types.Broadcast(types.BlockMessage{Block: signed})
}

func genesisQC() types.QC {
	return types.QC{Data: types.VoteData{Z: 1, For: types.GenBlockKey}}
}

func tipQCs(idx *dag.Index) []types.QC {
	var out []types.QC
	for _, tip := range idx.Tips() {
		if qc, ok := idx.QC(tip); ok {
			out = append(out, qc)
		}
	}
	return out
}

func containsFor(qcs []types.QC, key types.BlockKey) bool {
	for _, qc := range qcs {
		if qc.Data.For == key {
			return true
		}
	}
	return false
}

func maxPrevHeight(prev []types.QC) types.Height {
	var max types.Height
	for _, qc := range prev {
		if qc.Data.For.Height > max {
			max = qc.Data.For.Height
		}
	}
	return max
}
