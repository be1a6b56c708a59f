package dag

import (
	"github.com/luxfi/morpheus/types"
)

// DirectlyObserves implements the three generating rules of the observes
// relation (§4.1, rules 1-3) without transitive closure:
//
//  1. Slot dominance: same type/author, looks.Slot > seen.Slot.
//  2. Level dominance: same type/author/slot, looks.Z >= seen.Z.
//  3. Pointer dominance: a known block for looks.For has seen.For in Prev.
func (idx *Index) DirectlyObserves(looks, seen types.VoteData) bool {
	if looks.For.Type == seen.For.Type && looks.For.Author == seen.For.Author {
		if looks.For.Slot > seen.For.Slot {
			return true
		}
		if looks.For.Slot == seen.For.Slot && looks.Z >= seen.Z {
			return true
		}
	}
	if block, ok := idx.blocks[looks.For]; ok {
		for _, prev := range block.Prev {
			if prev.Data.For == seen.For {
				return true
			}
		}
	}
	return false
}

// Observes decides q >= needle (§4.1) by BFS from q through DirectlyObserves
// and the predecessor pointers of known blocks. Blocks this process has not
// seen are skipped (with a warning); the relation is therefore partial over
// unknown predecessors, which can delay finalization until the full chain is
// known (by design, per spec §9).
func (idx *Index) Observes(root types.VoteData, needle types.VoteData) bool {
	visited := make(map[types.VoteData]struct{})
	queue := []types.VoteData{root}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		if _, seen := visited[node]; seen {
			continue
		}
		visited[node] = struct{}{}

		if idx.DirectlyObserves(node, needle) {
			return true
		}
		block, ok := idx.blocks[node.For]
		if !ok {
			idx.log.Warn("observes: predecessor block unknown, skipping", "key", node.For)
			continue
		}
		for _, prev := range block.Prev {
			queue = append(queue, prev.Data)
		}
	}
	return false
}
