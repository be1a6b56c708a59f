package dag

import (
	"github.com/luxfi/morpheus/types"
)

// Prune drops per-view bookkeeping strictly below belowView, as permitted
// (never required) by the Lifecycle note in spec §3. It preserves Max1QC and
// any block still referenced as a predecessor by a retained block, by
// scanning BlockPointedBy before dropping a candidate.
func (idx *Index) Prune(belowView types.View) {
	for key, block := range idx.blocks {
		if key.View >= belowView || key == types.GenBlockKey {
			continue
		}
		if !idx.finalized[key] {
			continue
		}
		if len(idx.blockPointedBy[key]) > 0 {
			continue
		}
		if qc, ok := idx.qcs[types.VoteData{Z: 1, For: key}]; ok && qc == idx.max1QC {
			continue
		}
		delete(idx.blocks, key)
		delete(idx.finalized, key)
		delete(idx.blockPointedBy, key)
		for _, qc := range block.Prev {
			if set := idx.blockPointedBy[qc.Data.For]; set != nil {
				delete(set, key)
			}
		}
	}

	for view := range idx.containsLeadByView {
		if view < belowView {
			delete(idx.containsLeadByView, view)
		}
	}
	for view, set := range idx.unfinalizedLeadByView {
		if view < belowView && len(set) == 0 {
			delete(idx.unfinalizedLeadByView, view)
		}
	}
}
