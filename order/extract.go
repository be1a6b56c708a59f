// Package order computes the deterministic total ordering of finalized
// transactions from a process's DAG state (spec §4.8: tau and extract_log).
package order

import (
	"sort"

	"github.com/luxfi/morpheus/dag"
	"github.com/luxfi/morpheus/types"
)

// ExtractLog returns every transaction finalized so far, in the protocol's
// deterministic total order. It is safe to call repeatedly as the DAG
// grows: the result only ever extends with a consistent prefix, since the
// maximal finalized 2-QC only ever increases under CompareQC.
func ExtractLog(idx *dag.Index) []types.Transaction {
	ordered := TotalOrder(idx)
	var log []types.Transaction
	for _, key := range ordered {
		block, ok := idx.Block(key)
		if !ok || block.Key.Type != types.BlockTransaction {
			continue
		}
		data, ok := block.Data.(types.TransactionData)
		if !ok {
			continue
		}
		log = append(log, data.Transactions...)
	}
	return log
}

// TotalOrder returns every block key reachable via Tau from the block with
// the greatest finalized 2-QC, in tau order. It is empty if nothing beyond
// genesis has finalized.
func TotalOrder(idx *dag.Index) []types.BlockKey {
	twoQCs := idx.FinalizedTwoQCs()
	if len(twoQCs) == 0 {
		return nil
	}
	best := twoQCs[0]
	for _, v := range twoQCs[1:] {
		if types.CompareQC(v, best) > 0 {
			best = v
		}
	}
	return Tau(idx, best.For)
}

// Tau computes the block's causal transaction history (spec §4.8):
//
//	tau(genesis) = [genesis]
//	tau(b)       = tau(b') ++ sort([b] \ [b'])
//
// where b' is the block b.One's quorum certificate points to, and [b] is
// the set of blocks b observes (its pointer-reachable ancestors, including
// itself). The result is ordered and duplicate-free.
func Tau(idx *dag.Index, key types.BlockKey) []types.BlockKey {
	if key == types.GenBlockKey {
		return []types.BlockKey{key}
	}
	block, ok := idx.Block(key)
	if !ok {
		return nil
	}

	prior := block.One.Data.For
	result := Tau(idx, prior)

	seen := make(map[types.BlockKey]struct{}, len(result))
	for _, k := range result {
		seen[k] = struct{}{}
	}

	observedB := observedBlocks(idx, key)
	observedPrior := observedBlocks(idx, prior)

	var diff []types.BlockKey
	for k := range observedB {
		if _, inPrior := observedPrior[k]; inPrior {
			continue
		}
		if _, already := seen[k]; already {
			continue
		}
		diff = append(diff, k)
	}
	sortBlockKeys(diff)
	return append(result, diff...)
}

// observedBlocks returns key and every block key reachable from it by
// following Prev pointers transitively: the ancestor closure that gives a
// block's causal position in the DAG.
func observedBlocks(idx *dag.Index, key types.BlockKey) map[types.BlockKey]struct{} {
	seen := make(map[types.BlockKey]struct{})
	queue := []types.BlockKey{key}
	for len(queue) > 0 {
		k := queue[0]
		queue = queue[1:]
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}

		block, ok := idx.Block(k)
		if !ok {
			continue
		}
		for _, qc := range block.Prev {
			queue = append(queue, qc.Data.For)
		}
	}
	return seen
}

// sortBlockKeys orders by (view, type, height), the deterministic order
// from spec §4.8: Genesis < Leader < Transaction, ties broken by height.
func sortBlockKeys(keys []types.BlockKey) {
	sort.Slice(keys, func(i, j int) bool {
		vi := types.VoteData{For: keys[i]}
		vj := types.VoteData{For: keys[j]}
		return types.CompareQC(vi, vj) < 0
	})
}
