package validate

import (
	"github.com/luxfi/morpheus/codec"
	"github.com/luxfi/morpheus/keybook"
	"github.com/luxfi/morpheus/types"
)

// LeaderFunc resolves the deterministic leader for a view (spec §4.6); it is
// injected by the caller, so this package does not import package view.
type LeaderFunc func(view types.View) types.ProcessID

// Validator checks blocks against the Morpheus validity rules (spec §4.4).
type Validator struct {
	book      keybook.KeyBook
	n, f      int
	genesisQC types.QC
	leader    LeaderFunc
}

// NewValidator constructs a Validator for a universe of n processes
// tolerating f Byzantine failures.
func NewValidator(book keybook.KeyBook, n, f int, genesisQC types.QC, leader LeaderFunc) *Validator {
	return &Validator{book: book, n: n, f: f, genesisQC: genesisQC, leader: leader}
}

// Valid checks a signed block end to end, returning the specific *Error on
// the first rule it violates, or nil if the block is valid (spec §4.4).
func (v *Validator) Valid(signed types.Signed[*types.Block]) error {
	block := signed.Data

	if block.Key.Type == types.BlockGenesis {
		if block.Key == types.GenBlockKey &&
			len(block.Prev) == 0 &&
			qcEqual(block.One, v.genesisQC) {
			if _, ok := block.Data.(types.GenesisData); ok {
				return nil
			}
		}
		return newErr(KindInvalidGenesis, map[string]any{"key": block.Key})
	}

	if block.Key.Author == 0 {
		return newErr(KindMissingAuthor, map[string]any{"key": block.Key})
	}
	author := block.Key.Author

	if !v.book.VerifyPartial(signed.Author, codec.Canonical(block), signed.Signature) {
		return newErr(KindInvalidSignature, nil)
	}

	if len(block.Prev) == 0 {
		return newErr(KindEmptyPrev, nil)
	}

	threshold := v.n - v.f
	for _, prev := range block.Prev {
		if prev.Data.For.View > block.Key.View {
			return newErr(KindPrevViewTooHigh, map[string]any{"prev_view": prev.Data.For.View, "block_view": block.Key.View})
		}
		if prev.Data.For.Height >= block.Key.Height {
			return newErr(KindPrevHeightNotLess, map[string]any{"prev_height": prev.Data.For.Height, "block_height": block.Key.Height})
		}
		if !qcEqual(prev, v.genesisQC) && !v.book.VerifyAggregate(threshold, codec.Canonical(prev.Data), prev.Signature) {
			return newErr(KindInvalidPrevQcSignature, nil)
		}
	}

	if block.One.Data.Z != 1 {
		return newErr(KindOneQcNotZ1, map[string]any{"z": block.One.Data.Z})
	}
	if block.One.Data.For.Height >= block.Key.Height {
		return newErr(KindOneQcHeightNotLess, map[string]any{"qc_height": block.One.Data.For.Height, "block_height": block.Key.Height})
	}
	if block.One.Data.For.Type != types.BlockGenesis {
		if !v.book.VerifyAggregate(threshold, codec.Canonical(block.One.Data), block.One.Signature) {
			return newErr(KindInvalidOneQcSignature, nil)
		}
	} else if !qcEqual(block.One, v.genesisQC) {
		return newErr(KindInvalidGenesisOneQc, nil)
	}

	if maxHeight, ok := block.MaxPrevHeight(); ok && block.Key.Height != maxHeight+1 {
		return newErr(KindHeightNotSuccessor, map[string]any{"block_height": block.Key.Height, "max_prev_height": maxHeight})
	}

	switch data := block.Data.(type) {
	case types.GenesisData:
		// Unreachable: genesis blocks returned above.
	case types.TransactionData:
		if block.Key.Type != types.BlockTransaction {
			return newErr(KindTypeDataMismatch, map[string]any{"key_type": block.Key.Type, "data_type": types.BlockTransaction})
		}
		if block.Key.Slot > 0 {
			if !hasPredecessor(block.Prev, types.BlockTransaction, author, block.Key.Slot) {
				return newErr(KindMissingPredecessorTr, map[string]any{"slot": block.Key.Slot})
			}
		}
		if len(data.Transactions) == 0 {
			return newErr(KindEmptyTransactions, nil)
		}

	case types.LeaderData:
		if block.Key.Type != types.BlockLeader {
			return newErr(KindTypeDataMismatch, map[string]any{"key_type": block.Key.Type, "data_type": types.BlockLeader})
		}
		if v.leader(block.Key.View) != author {
			return newErr(KindNotLeader, map[string]any{"leader": author, "view": block.Key.View})
		}

		var prevLeader *types.QC
		for i := range block.Prev {
			p := block.Prev[i]
			if p.Data.For.Type == types.BlockLeader && p.Data.For.Author == author && p.Data.For.Slot.IsPredecessorOf(block.Key.Slot) {
				prevLeader = &block.Prev[i]
				break
			}
		}

		if block.Key.Slot > 0 {
			if prevLeader == nil {
				return newErr(KindMissingPredecessorLead, map[string]any{"slot": block.Key.Slot})
			}
			if prevLeader.Data.For.View == block.Key.View && block.One.Data.For != prevLeader.Data.For {
				return newErr(KindWrongOneQcForLead, map[string]any{"one_qc_for": block.One.Data.For, "expected_for": prevLeader.Data.For})
			}
		}

		if block.Key.Slot == 0 || prevLeader.Data.For.View < block.Key.View {
			threshold := v.n - v.f
			if len(data.Justification) < threshold {
				return newErr(KindJustificationTooSmall, map[string]any{"size": len(data.Justification), "expected": threshold})
			}
			for _, j := range data.Justification {
				if !v.book.VerifyPartial(j.Author, codec.Canonical(j.Data), j.Signature) {
					return newErr(KindInvalidJustificationSignature, nil)
				}
			}
			for _, j := range data.Justification {
				if types.CompareQC(block.One.Data, j.Data.Max1QC.Data) < 0 {
					return newErr(KindJustificationQcGreaterThanOneQc, nil)
				}
			}
		}
	}

	return nil
}

func qcEqual(a, b types.QC) bool {
	return a.Data == b.Data && string(a.Signature) == string(b.Signature)
}

func hasPredecessor(prev []types.QC, t types.BlockType, author types.ProcessID, slot types.Slot) bool {
	for _, qc := range prev {
		if qc.Data.For.Type == t && qc.Data.For.Author == author && qc.Data.For.Slot.IsPredecessorOf(slot) {
			return true
		}
	}
	return false
}
