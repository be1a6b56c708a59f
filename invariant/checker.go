// Package invariant re-derives key DAG, view-timing, and pending-vote
// invariants from a process's live state and reports any mismatch. It is
// meant for tests and debug-build assertions, not the hot path (spec §8.1).
package invariant

import (
	"fmt"

	"github.com/luxfi/morpheus/dag"
	"github.com/luxfi/morpheus/types"
	"github.com/luxfi/morpheus/view"
	"github.com/luxfi/morpheus/voting"
)

// Kind enumerates the invariant violations this checker can detect,
// mirroring InvariantViolation in the original reference implementation.
type Kind string

const (
	KindViewEntryTimeAfterCurrentTime         Kind = "view_entry_time_after_current_time"
	KindBlockKeyMismatch                      Kind = "block_key_mismatch"
	KindTipsMissingQCs                        Kind = "tips_missing_qcs"
	KindTipsContainsExtraQCs                  Kind = "tips_contains_extra_qcs"
	KindBlockWithObserved2QCNotFinalized      Kind = "block_with_observed_2qc_not_finalized"
	KindFinalizedBlockNot2QCObserved          Kind = "finalized_block_not_2qc_observed"
	KindMaxHeightMismatch                     Kind = "max_height_mismatch"
	KindMaxHeightKeyDoesNotExist               Kind = "max_height_key_does_not_exist"
	KindMax1QCHasWrongZ                       Kind = "max_1qc_has_wrong_z"
	KindFound1QCGreaterThanMax1QC             Kind = "found_1qc_greater_than_max_1qc"
	KindBlockFinalizedButAlsoUnfinalized      Kind = "block_finalized_but_also_unfinalized"
	KindUnfinalizedQCHasWrongZ                Kind = "unfinalized_qc_has_wrong_z"
	KindUnfinalizedQCNotInQCs                 Kind = "unfinalized_qc_not_in_qcs"
	KindBlockForUnfinalizedQCNotInUnfinalized Kind = "block_for_unfinalized_qc_not_in_unfinalized"
	KindPendingVotesBlockNotFound             Kind = "pending_votes_block_not_found"
	KindPendingVotesForFinalizedBlock         Kind = "pending_votes_for_finalized_block"
	KindPendingVotesAlreadyVoted              Kind = "pending_votes_already_voted"
	KindPendingVotesMissingEligibleBlock      Kind = "pending_votes_missing_eligible_block"
)

// Violation is a single detected inconsistency, with kind-specific context
// for logging and test assertions.
type Violation struct {
	Kind   Kind
	Fields map[string]any
}

func (v Violation) String() string {
	return fmt.Sprintf("%s %v", v.Kind, v.Fields)
}

func violation(kind Kind, fields map[string]any) Violation {
	return Violation{Kind: kind, Fields: fields}
}

// Check re-derives every invariant this package knows how to check against
// idx, views, and engine, and returns every violation found. engine may be
// nil to skip the pending-vote checks (e.g. when only DAG state is at hand).
func Check(idx *dag.Index, views *view.Manager, engine *voting.Engine) []Violation {
	var out []Violation

	if views.ViewEntryTime() > views.Now() {
		out = append(out, violation(KindViewEntryTimeAfterCurrentTime, map[string]any{
			"view_entry_time": views.ViewEntryTime(),
			"current_time":    views.Now(),
		}))
	}

	blocks := idx.AllBlocks()
	for key, block := range blocks {
		if block.Key != key {
			out = append(out, violation(KindBlockKeyMismatch, map[string]any{"index_key": key, "block_key": block.Key}))
		}
	}

	qcs := idx.AllQCs()
	out = append(out, checkTips(idx, qcs)...)
	out = append(out, checkFinalization(idx, qcs)...)
	out = append(out, checkMaxHeight(idx, blocks)...)
	out = append(out, checkMax1QC(idx, qcs)...)
	out = append(out, checkFinalizedVsUnfinalized(idx, blocks)...)
	out = append(out, checkUnfinalized2QCs(idx, qcs)...)

	if engine != nil {
		out = append(out, checkPendingVotes(idx, views, engine, blocks, qcs)...)
	}

	return out
}

// checkTips re-derives the tip set from scratch via Observes and compares
// it against the index's maintained tips (spec §4.1).
func checkTips(idx *dag.Index, qcs map[types.VoteData]types.QC) []Violation {
	computed := make(map[types.VoteData]struct{})
	for v := range qcs {
		isTip := true
		for v2 := range qcs {
			if v != v2 && idx.Observes(v2, v) && !idx.Observes(v, v2) {
				isTip = false
				break
			}
		}
		if isTip {
			computed[v] = struct{}{}
		}
	}

	actual := make(map[types.VoteData]struct{})
	for _, t := range idx.Tips() {
		actual[t] = struct{}{}
	}

	var out []Violation
	var missing, extra []types.VoteData
	for v := range computed {
		if _, ok := actual[v]; !ok {
			missing = append(missing, v)
		}
	}
	for v := range actual {
		if _, ok := computed[v]; !ok {
			extra = append(extra, v)
		}
	}
	if len(missing) > 0 {
		out = append(out, violation(KindTipsMissingQCs, map[string]any{"missing_tips": missing}))
	}
	if len(extra) > 0 {
		out = append(out, violation(KindTipsContainsExtraQCs, map[string]any{"extra_tips": extra}))
	}
	return out
}

// checkFinalization re-derives finalization from "observed by some other
// QC" and compares it against the index's finalized set (spec §4.3).
func checkFinalization(idx *dag.Index, qcs map[types.VoteData]types.QC) []Violation {
	var out []Violation
	for v := range qcs {
		if v.Z != 2 {
			continue
		}
		observedByAny := false
		for v2 := range qcs {
			if v2 != v && idx.Observes(v2, v) {
				observedByAny = true
				break
			}
		}
		isFinal := idx.Finalized(v.For)
		if observedByAny && !isFinal {
			out = append(out, violation(KindBlockWithObserved2QCNotFinalized, map[string]any{"block": v.For}))
		}
		if isFinal && !observedByAny {
			out = append(out, violation(KindFinalizedBlockNot2QCObserved, map[string]any{"block": v.For}))
		}
	}
	return out
}

func checkMaxHeight(idx *dag.Index, blocks map[types.BlockKey]*types.Block) []Violation {
	var out []Violation
	maxHeight, maxHeightKey := idx.MaxHeight()

	var actual types.Height
	for key := range blocks {
		if key.Height > actual {
			actual = key.Height
		}
	}
	if maxHeight != actual {
		out = append(out, violation(KindMaxHeightMismatch, map[string]any{"recorded": maxHeight, "actual": actual}))
	}
	if maxHeight > 0 {
		if _, ok := blocks[maxHeightKey]; !ok {
			out = append(out, violation(KindMaxHeightKeyDoesNotExist, map[string]any{"key": maxHeightKey}))
		}
	}
	return out
}

func checkMax1QC(idx *dag.Index, qcs map[types.VoteData]types.QC) []Violation {
	var out []Violation
	max1 := idx.Max1QC()
	if max1.Data.Z != 1 {
		out = append(out, violation(KindMax1QCHasWrongZ, map[string]any{"z": max1.Data.Z}))
	}
	for v := range qcs {
		if v.Z == 1 && types.CompareQC(v, max1.Data) > 0 {
			out = append(out, violation(KindFound1QCGreaterThanMax1QC, map[string]any{"found": v, "max_1qc": max1.Data}))
		}
	}
	return out
}

func checkFinalizedVsUnfinalized(idx *dag.Index, blocks map[types.BlockKey]*types.Block) []Violation {
	var out []Violation
	for key := range blocks {
		if idx.Finalized(key) && idx.IsTrackedUnfinalized(key) {
			out = append(out, violation(KindBlockFinalizedButAlsoUnfinalized, map[string]any{"block": key}))
		}
	}
	return out
}

func checkUnfinalized2QCs(idx *dag.Index, qcs map[types.VoteData]types.QC) []Violation {
	var out []Violation
	for _, v := range idx.Unfinalized2QCs() {
		if v.Z != 2 {
			out = append(out, violation(KindUnfinalizedQCHasWrongZ, map[string]any{"vote_data": v}))
		}
		if _, ok := qcs[v]; !ok {
			out = append(out, violation(KindUnfinalizedQCNotInQCs, map[string]any{"vote_data": v}))
		}
		if !idx.IsTrackedUnfinalized(v.For) {
			out = append(out, violation(KindBlockForUnfinalizedQCNotInUnfinalized, map[string]any{"block": v.For}))
		}
	}
	return out
}

func checkPendingVotes(idx *dag.Index, views *view.Manager, engine *voting.Engine, blocks map[types.BlockKey]*types.Block, qcs map[types.VoteData]types.QC) []Violation {
	var out []Violation
	current := views.View()

	for _, v := range engine.PendingViews() {
		p := engine.Pending(v)
		if p == nil {
			continue
		}
		out = append(out, checkQueue(idx, engine, v, p.Tr1, "tr_1", 1, blocks)...)
		out = append(out, checkQueue(idx, engine, v, p.Tr2, "tr_2", 2, blocks)...)
		out = append(out, checkQueue(idx, engine, v, p.Lead1, "lead_1", 1, blocks)...)
		out = append(out, checkQueue(idx, engine, v, p.Lead2, "lead_2", 2, blocks)...)

		if v != current {
			continue
		}
		for key := range blocks {
			if key.Type == types.BlockTransaction && key.View == v && !idx.Finalized(key) &&
				engine.EligibleForTr1Vote(key) && !p.Tr1[key] {
				out = append(out, violation(KindPendingVotesMissingEligibleBlock, map[string]any{"view": v, "block_key": key, "vote_type": "tr_1"}))
			}
		}
		for vd := range qcs {
			if vd.Z == 1 && vd.For.Type == types.BlockTransaction && vd.For.View == v && !idx.Finalized(vd.For) &&
				engine.EligibleForTr2Vote(vd.For) && !p.Tr2[vd.For] {
				out = append(out, violation(KindPendingVotesMissingEligibleBlock, map[string]any{"view": v, "block_key": vd.For, "vote_type": "tr_2"}))
			}
		}
	}
	return out
}

func checkQueue(idx *dag.Index, engine *voting.Engine, v types.View, queue map[types.BlockKey]bool, label string, z uint8, blocks map[types.BlockKey]*types.Block) []Violation {
	var out []Violation
	for key := range queue {
		if _, ok := blocks[key]; !ok {
			out = append(out, violation(KindPendingVotesBlockNotFound, map[string]any{"view": v, "block_key": key, "vote_type": label}))
			continue
		}
		if idx.Finalized(key) {
			out = append(out, violation(KindPendingVotesForFinalizedBlock, map[string]any{"view": v, "block_key": key, "vote_type": label}))
		}
		if engine.Voted(z, key.Type, key.Slot, key.Author) {
			out = append(out, violation(KindPendingVotesAlreadyVoted, map[string]any{"view": v, "block_key": key, "vote_type": label}))
		}
	}
	return out
}
