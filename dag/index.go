// Package dag maintains the per-process view of the block DAG: all received
// blocks, their pointers, the observes relation, tips, max-height, the
// maximal 1-QC, the finalized set, and per-view leader-block tracking
// (spec §4.1, §4.3).
package dag

import (
	"github.com/luxfi/log"

	"github.com/luxfi/morpheus/types"
)

type slotKey struct {
	Type   types.BlockType
	Author types.ProcessID
	Slot   types.Slot
}

type viewKey struct {
	Type   types.BlockType
	Author types.ProcessID
	View   types.View
}

// Index is the per-process DAG state: StateIndex in spec §3.
type Index struct {
	log log.Logger

	qcs    map[types.VoteData]types.QC
	all1QC map[types.VoteData]types.QC
	tips   []types.VoteData

	blocks         map[types.BlockKey]*types.Block
	blockPointedBy map[types.BlockKey]map[types.BlockKey]struct{}

	maxView   types.View
	maxViewQC types.VoteData

	maxHeight    types.Height
	maxHeightKey types.BlockKey

	max1QC types.QC

	unfinalized2QC map[types.VoteData]struct{}
	finalized      map[types.BlockKey]bool
	unfinalized    map[types.BlockKey]map[types.VoteData]struct{}

	containsLeadByView     map[types.View]bool
	unfinalizedLeadByView  map[types.View]map[types.BlockKey]struct{}

	qcBySlot map[slotKey]types.QC
	qcByView map[viewKey][]types.QC
}

// New constructs an Index seeded with the well-known genesis block and QC.
func New(logger log.Logger, genesisQC types.QC, genesisBlock *types.Block) *Index {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	idx := &Index{
		log:                   logger,
		qcs:                   make(map[types.VoteData]types.QC),
		all1QC:                make(map[types.VoteData]types.QC),
		tips:                  []types.VoteData{genesisQC.Data},
		blocks:                make(map[types.BlockKey]*types.Block),
		blockPointedBy:        make(map[types.BlockKey]map[types.BlockKey]struct{}),
		maxView:               types.GenesisView,
		maxViewQC:             genesisQC.Data,
		maxHeight:             0,
		maxHeightKey:          types.GenBlockKey,
		max1QC:                genesisQC,
		unfinalized2QC:        make(map[types.VoteData]struct{}),
		finalized:             map[types.BlockKey]bool{types.GenBlockKey: true},
		unfinalized:           make(map[types.BlockKey]map[types.VoteData]struct{}),
		containsLeadByView:    make(map[types.View]bool),
		unfinalizedLeadByView: make(map[types.View]map[types.BlockKey]struct{}),
		qcBySlot:              make(map[slotKey]types.QC),
		qcByView:              make(map[viewKey][]types.QC),
	}
	idx.qcs[genesisQC.Data] = genesisQC
	idx.blocks[types.GenBlockKey] = genesisBlock
	return idx
}

// Block looks up a block by key.
func (idx *Index) Block(key types.BlockKey) (*types.Block, bool) {
	b, ok := idx.blocks[key]
	return b, ok
}

// QC looks up the stored QC for a VoteData, if any.
func (idx *Index) QC(v types.VoteData) (types.QC, bool) {
	q, ok := idx.qcs[v]
	return q, ok
}

// QCBySlot looks up a QC by (type, author, slot).
func (idx *Index) QCBySlot(t types.BlockType, author types.ProcessID, slot types.Slot) (types.QC, bool) {
	q, ok := idx.qcBySlot[slotKey{Type: t, Author: author, Slot: slot}]
	return q, ok
}

// QCsByView looks up QCs by (type, author, view).
func (idx *Index) QCsByView(t types.BlockType, author types.ProcessID, view types.View) []types.QC {
	return idx.qcByView[viewKey{Type: t, Author: author, View: view}]
}

// Tips returns the current maximal antichain of QCs under observes.
func (idx *Index) Tips() []types.VoteData {
	out := make([]types.VoteData, len(idx.tips))
	copy(out, idx.tips)
	return out
}

// Max1QC returns the greatest 1-QC seen under CompareQC.
func (idx *Index) Max1QC() types.QC { return idx.max1QC }

// All1QCs returns every 1-QC seen so far.
func (idx *Index) All1QCs() []types.QC {
	out := make([]types.QC, 0, len(idx.all1QC))
	for _, q := range idx.all1QC {
		out = append(out, q)
	}
	return out
}

// MaxHeight returns the greatest block height seen and its key.
func (idx *Index) MaxHeight() (types.Height, types.BlockKey) {
	return idx.maxHeight, idx.maxHeightKey
}

// MaxView returns the greatest view any known QC's block belongs to.
func (idx *Index) MaxView() (types.View, types.VoteData) {
	return idx.maxView, idx.maxViewQC
}

// Finalized reports whether a block key has been finalized.
func (idx *Index) Finalized(key types.BlockKey) bool {
	return idx.finalized[key]
}

// IsKnown reports whether finalization tracking has been initialized for key
// (i.e. the block has been recorded, even if not yet finalized).
func (idx *Index) IsKnown(key types.BlockKey) bool {
	_, ok := idx.finalized[key]
	return ok
}

// Unfinalized2QCs returns the current set of 2-QCs not yet observed by
// another QC.
func (idx *Index) Unfinalized2QCs() []types.VoteData {
	out := make([]types.VoteData, 0, len(idx.unfinalized2QC))
	for v := range idx.unfinalized2QC {
		out = append(out, v)
	}
	return out
}

// UnfinalizedQCs returns every unfinalized QC known for a block key.
func (idx *Index) UnfinalizedQCs(key types.BlockKey) []types.VoteData {
	set := idx.unfinalized[key]
	out := make([]types.VoteData, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	return out
}

// AllUnfinalized returns every unfinalized QC across every block, for
// timeout scanning (§4.6).
func (idx *Index) AllUnfinalized() []types.VoteData {
	out := make([]types.VoteData, 0)
	for _, set := range idx.unfinalized {
		for v := range set {
			out = append(out, v)
		}
	}
	return out
}

// ContainsLeadBlock reports whether any leader block of view is known.
func (idx *Index) ContainsLeadBlock(view types.View) bool {
	return idx.containsLeadByView[view]
}

// UnfinalizedLeadEmpty reports whether every known leader block of view has
// been finalized.
func (idx *Index) UnfinalizedLeadEmpty(view types.View) bool {
	return len(idx.unfinalizedLeadByView[view]) == 0
}

// FinalizedTwoQCs returns every known 2-QC whose block is finalized, for
// log extraction's choice of the maximal finalized 2-QC (spec §4.8).
func (idx *Index) FinalizedTwoQCs() []types.VoteData {
	var out []types.VoteData
	for v := range idx.qcs {
		if v.Z == 2 && idx.finalized[v.For] {
			out = append(out, v)
		}
	}
	return out
}

// AllBlocks returns every known block, keyed by its key.
func (idx *Index) AllBlocks() map[types.BlockKey]*types.Block {
	out := make(map[types.BlockKey]*types.Block, len(idx.blocks))
	for k, b := range idx.blocks {
		out[k] = b
	}
	return out
}

// AllQCs returns every known QC, keyed by its VoteData.
func (idx *Index) AllQCs() map[types.VoteData]types.QC {
	out := make(map[types.VoteData]types.QC, len(idx.qcs))
	for v, qc := range idx.qcs {
		out[v] = qc
	}
	return out
}

// IsTrackedUnfinalized reports whether key has unfinalized-QC tracking state,
// i.e. the block has been recorded (or a QC for it seen) and not yet finalized.
func (idx *Index) IsTrackedUnfinalized(key types.BlockKey) bool {
	_, ok := idx.unfinalized[key]
	return ok
}

// BlockPointedBy returns the set of block keys whose Prev references key.
func (idx *Index) BlockPointedBy(key types.BlockKey) []types.BlockKey {
	set := idx.blockPointedBy[key]
	out := make([]types.BlockKey, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}
