package dag

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/morpheus/types"
)

func genesisQC() types.QC {
	return types.QC{Data: types.VoteData{Z: 1, For: types.GenBlockKey}}
}

func genesisBlock() *types.Block {
	return &types.Block{Key: types.GenBlockKey, One: genesisQC(), Data: types.GenesisData{}}
}

func newTestIndex() *Index {
	return New(nil, genesisQC(), genesisBlock())
}

func blockKey(author types.ProcessID, t types.BlockType, view types.View, height types.Height, slot types.Slot) types.BlockKey {
	return types.BlockKey{Type: t, View: view, Height: height, Author: author, Slot: slot}
}

func TestNewIndexSeedsGenesis(t *testing.T) {
	idx := newTestIndex()
	require.True(t, idx.Finalized(types.GenBlockKey))
	require.Equal(t, []types.VoteData{genesisQC().Data}, idx.Tips())
	h, key := idx.MaxHeight()
	require.Equal(t, types.Height(0), h)
	require.Equal(t, types.GenBlockKey, key)
}

func TestRecordBlockIsIdempotent(t *testing.T) {
	idx := newTestIndex()
	k := blockKey(1, types.BlockTransaction, 0, 1, 0)
	b := &types.Block{Key: k, Prev: []types.QC{genesisQC()}, One: genesisQC(), Data: types.TransactionData{Transactions: []types.Transaction{[]byte("tx")}}}

	require.True(t, idx.RecordBlock(b))
	require.False(t, idx.RecordBlock(b))

	got, ok := idx.Block(k)
	require.True(t, ok)
	require.Equal(t, b, got)
}

func TestRecordQCUpdatesTipsOnSlotDominance(t *testing.T) {
	idx := newTestIndex()

	k0 := blockKey(1, types.BlockTransaction, 0, 1, 0)
	b0 := &types.Block{Key: k0, Prev: []types.QC{genesisQC()}, One: genesisQC(), Data: types.TransactionData{Transactions: []types.Transaction{[]byte("a")}}}
	idx.RecordBlock(b0)
	qc0 := types.QC{Data: types.VoteData{Z: 0, For: k0}}
	idx.RecordQC(qc0)
	require.Contains(t, idx.Tips(), qc0.Data)

	k1 := blockKey(1, types.BlockTransaction, 0, 2, 1)
	b1 := &types.Block{Key: k1, Prev: []types.QC{qc0}, One: genesisQC(), Data: types.TransactionData{Transactions: []types.Transaction{[]byte("b")}}}
	idx.RecordBlock(b1)
	qc1 := types.QC{Data: types.VoteData{Z: 0, For: k1}}
	idx.RecordQC(qc1)

	tips := idx.Tips()
	require.Contains(t, tips, qc1.Data)
	require.NotContains(t, tips, qc0.Data, "slot-dominant qc1 must replace qc0 as tip")
}

func TestMax1QCTracksGreatest(t *testing.T) {
	idx := newTestIndex()
	require.Equal(t, genesisQC(), idx.Max1QC())

	k := blockKey(1, types.BlockTransaction, 0, 1, 0)
	b := &types.Block{Key: k, Prev: []types.QC{genesisQC()}, One: genesisQC(), Data: types.TransactionData{Transactions: []types.Transaction{[]byte("a")}}}
	idx.RecordBlock(b)
	oneQC := types.QC{Data: types.VoteData{Z: 1, For: k}}
	idx.RecordQC(oneQC)

	require.Equal(t, oneQC, idx.Max1QC())
}

func TestFinalizationScanMarksObservedTwoQC(t *testing.T) {
	idx := newTestIndex()

	k0 := blockKey(1, types.BlockTransaction, 0, 1, 0)
	b0 := &types.Block{Key: k0, Prev: []types.QC{genesisQC()}, One: genesisQC(), Data: types.TransactionData{Transactions: []types.Transaction{[]byte("a")}}}
	idx.RecordBlock(b0)

	twoQC := types.QC{Data: types.VoteData{Z: 2, For: k0}}
	idx.RecordQC(twoQC)
	require.False(t, idx.Finalized(k0))
	require.Contains(t, idx.Unfinalized2QCs(), twoQC.Data)

	k1 := blockKey(1, types.BlockTransaction, 0, 2, 1)
	b1 := &types.Block{Key: k1, Prev: []types.QC{twoQC}, One: genesisQC(), Data: types.TransactionData{Transactions: []types.Transaction{[]byte("b")}}}
	idx.RecordBlock(b1)
	qc1 := types.QC{Data: types.VoteData{Z: 0, For: k1}}
	finalized := idx.RecordQC(qc1)

	require.True(t, idx.Finalized(k0))
	require.Contains(t, finalized, k0)
	require.NotContains(t, idx.Unfinalized2QCs(), twoQC.Data)
}

func TestTwoQCCannotFinalizeItself(t *testing.T) {
	idx := newTestIndex()
	k0 := blockKey(1, types.BlockTransaction, 0, 1, 0)
	b0 := &types.Block{Key: k0, Prev: []types.QC{genesisQC()}, One: genesisQC(), Data: types.TransactionData{Transactions: []types.Transaction{[]byte("a")}}}
	idx.RecordBlock(b0)

	twoQC := types.QC{Data: types.VoteData{Z: 2, For: k0}}
	finalized := idx.RecordQC(twoQC)
	require.Empty(t, finalized)
	require.False(t, idx.Finalized(k0))
}

func TestObservesSlotAndLevelDominance(t *testing.T) {
	idx := newTestIndex()
	base := types.VoteData{Z: 0, For: blockKey(1, types.BlockTransaction, 0, 1, 1)}
	lowerSlot := types.VoteData{Z: 0, For: blockKey(1, types.BlockTransaction, 0, 1, 0)}
	require.True(t, idx.DirectlyObserves(base, lowerSlot))

	sameSlotHigherZ := types.VoteData{Z: 2, For: base.For}
	require.True(t, idx.DirectlyObserves(sameSlotHigherZ, base))
	require.False(t, idx.DirectlyObserves(base, sameSlotHigherZ))
}
