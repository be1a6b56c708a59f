package dag

import (
	"github.com/luxfi/morpheus/types"
)

// RecordBlock indexes a block that has already passed validation. Ingesting
// a known block is a no-op (§5 idempotence). Any QCs referenced by the
// block (Prev and One) are recorded via RecordQC as well.
//
// Returns true if the block was newly recorded.
func (idx *Index) RecordBlock(block *types.Block) bool {
	if _, known := idx.blocks[block.Key]; known {
		idx.log.Debug("duplicate block ignored", "key", block.Key)
		return false
	}

	if block.Key.Height > idx.maxHeight {
		idx.maxHeight = block.Key.Height
		idx.maxHeightKey = block.Key
	}

	idx.finalized[block.Key] = false
	idx.blocks[block.Key] = block
	if idx.unfinalized[block.Key] == nil {
		idx.unfinalized[block.Key] = make(map[types.VoteData]struct{})
	}

	switch block.Key.Type {
	case types.BlockLeader:
		idx.containsLeadByView[block.Key.View] = true
		if idx.unfinalizedLeadByView[block.Key.View] == nil {
			idx.unfinalizedLeadByView[block.Key.View] = make(map[types.BlockKey]struct{})
		}
		idx.unfinalizedLeadByView[block.Key.View][block.Key] = struct{}{}
	case types.BlockTransaction:
	case types.BlockGenesis:
		panic("dag: RecordBlock called for the genesis block")
	}

	for _, qc := range block.Prev {
		if idx.blockPointedBy[qc.Data.For] == nil {
			idx.blockPointedBy[qc.Data.For] = make(map[types.BlockKey]struct{})
		}
		idx.blockPointedBy[qc.Data.For][block.Key] = struct{}{}
	}

	for _, qc := range append(append([]types.QC{}, block.Prev...), block.One) {
		idx.RecordQC(qc)
	}

	idx.log.Info("recorded block", "key", block.Key)
	return true
}

// RecordQC ingests a QC into every index it participates in, updates tips,
// and runs the finalization scan (§4.3). Ingesting an already-known QC is a
// no-op.
//
// Returns the set of block keys newly finalized as a side effect of this QC
// (possibly empty).
func (idx *Index) RecordQC(qc types.QC) []types.BlockKey {
	if _, known := idx.qcs[qc.Data]; known {
		return nil
	}

	key := qc.Data.For
	if key.Author != 0 {
		sk := slotKey{Type: key.Type, Author: key.Author, Slot: key.Slot}
		idx.qcBySlot[sk] = qc
		vk := viewKey{Type: key.Type, Author: key.Author, View: key.View}
		idx.qcByView[vk] = append(idx.qcByView[vk], qc)
	}

	if idx.unfinalized[key] == nil {
		idx.unfinalized[key] = make(map[types.VoteData]struct{})
	}
	idx.unfinalized[key][qc.Data] = struct{}{}

	if qc.Data.Z == 1 {
		idx.all1QC[qc.Data] = qc
		if types.CompareQC(idx.max1QC.Data, qc.Data) < 0 {
			idx.log.Debug("updating max 1-QC", "from", idx.max1QC.Data.For, "to", qc.Data.For)
			idx.max1QC = qc
		}
	}

	if key.View > idx.maxView {
		idx.maxView = key.View
		idx.maxViewQC = qc.Data
	}

	idx.updateTips(qc.Data)

	idx.qcs[qc.Data] = qc

	finalized := idx.scanFinalization(qc)

	if qc.Data.Z == 1 {
		idx.log.Debug("1-QC formed, enqueuing corresponding 2-vote", "key", key)
	}

	return finalized
}

// updateTips applies the §4.1 tip-maintenance rule for a newly recorded QC.
func (idx *Index) updateTips(q types.VoteData) {
	keep := idx.tips[:0:0]
	observedSomeTip := false
	for _, tip := range idx.tips {
		if idx.Observes(q, tip) && q != tip {
			observedSomeTip = true
			continue
		}
		keep = append(keep, tip)
	}
	idx.tips = keep

	observedByExisting := false
	for _, tip := range idx.tips {
		if tip == q {
			observedByExisting = true
			break
		}
		if idx.Observes(tip, q) {
			observedByExisting = true
			break
		}
	}
	if observedSomeTip || !observedByExisting {
		idx.tips = append(idx.tips, q)
		idx.log.Debug("new tip", "qc", q.For)
	}
}

// scanFinalization implements §4.3 step 6: any unfinalized 2-QC observed by
// the new QC becomes finalized; the new QC is inserted into unfinalized2QC
// *after* the scan if it is itself a 2-QC, so a 2-QC can never finalize
// itself.
func (idx *Index) scanFinalization(qc types.QC) []types.BlockKey {
	var finalizedKeys []types.BlockKey
	var toRemove []types.VoteData
	for u := range idx.unfinalized2QC {
		if u == qc.Data {
			continue
		}
		if idx.Observes(qc.Data, u) {
			toRemove = append(toRemove, u)
		}
	}
	for _, u := range toRemove {
		delete(idx.unfinalized2QC, u)
		idx.finalizeBlock(u.For)
		finalizedKeys = append(finalizedKeys, u.For)
	}

	if qc.Data.Z == 2 {
		idx.unfinalized2QC[qc.Data] = struct{}{}
	}

	return finalizedKeys
}

func (idx *Index) finalizeBlock(key types.BlockKey) {
	idx.log.Info("finalized block", "key", key)
	if set := idx.unfinalizedLeadByView[key.View]; set != nil {
		delete(set, key)
	}
	delete(idx.unfinalized, key)
	idx.finalized[key] = true
}
