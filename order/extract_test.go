package order

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/morpheus/dag"
	"github.com/luxfi/morpheus/types"
)

func genesisQC() types.QC {
	return types.QC{Data: types.VoteData{Z: 1, For: types.GenBlockKey}}
}

func genesisBlock() *types.Block {
	return &types.Block{Key: types.GenBlockKey, One: genesisQC(), Data: types.GenesisData{}}
}

func TestExtractLogEmptyBeforeAnyFinalization(t *testing.T) {
	idx := dag.New(nil, genesisQC(), genesisBlock())
	require.Empty(t, ExtractLog(idx))
	require.Empty(t, TotalOrder(idx))
}

func TestTauOfGenesisIsGenesisAlone(t *testing.T) {
	idx := dag.New(nil, genesisQC(), genesisBlock())
	require.Equal(t, []types.BlockKey{types.GenBlockKey}, Tau(idx, types.GenBlockKey))
}

func TestExtractLogOrdersFinalizedTransactionChain(t *testing.T) {
	idx := dag.New(nil, genesisQC(), genesisBlock())

	leaderKey := types.BlockKey{Type: types.BlockLeader, View: 0, Author: 1, Height: 1, Slot: 0}
	leaderBlock := &types.Block{Key: leaderKey, Prev: []types.QC{genesisQC()}, One: genesisQC(), Data: types.LeaderData{}}
	idx.RecordBlock(leaderBlock)
	leaderTwoQC := types.QC{Data: types.VoteData{Z: 2, For: leaderKey}}
	idx.RecordQC(leaderTwoQC)

	t1Key := types.BlockKey{Type: types.BlockTransaction, View: 0, Author: 1, Height: 2, Slot: 0}
	t1Block := &types.Block{
		Key:  t1Key,
		Prev: []types.QC{leaderTwoQC},
		One:  leaderTwoQC,
		Data: types.TransactionData{Transactions: []types.Transaction{[]byte("a"), []byte("b")}},
	}
	idx.RecordBlock(t1Block)
	t1OneQC := types.QC{Data: types.VoteData{Z: 1, For: t1Key}}
	finalized := idx.RecordQC(t1OneQC)
	t1TwoQC := types.QC{Data: types.VoteData{Z: 2, For: t1Key}}
	idx.RecordQC(t1TwoQC)
	require.Contains(t, finalized, leaderKey)
	require.True(t, idx.Finalized(leaderKey))

	// t2 extends the chain but its own 2-QC is not yet observed by anything,
	// so it is not finalized and must not appear in the extracted log.
	t2Key := types.BlockKey{Type: types.BlockTransaction, View: 0, Author: 1, Height: 3, Slot: 1}
	t2Block := &types.Block{
		Key:  t2Key,
		Prev: []types.QC{t1TwoQC},
		One:  t1TwoQC,
		Data: types.TransactionData{Transactions: []types.Transaction{[]byte("c")}},
	}
	idx.RecordBlock(t2Block)
	t2TwoQC := types.QC{Data: types.VoteData{Z: 2, For: t2Key}}
	idx.RecordQC(t2TwoQC)
	require.False(t, idx.Finalized(t2Key))

	order := TotalOrder(idx)
	require.Equal(t, []types.BlockKey{types.GenBlockKey, leaderKey, t1Key}, order)

	log := ExtractLog(idx)
	require.Equal(t, []types.Transaction{[]byte("a"), []byte("b")}, log)
}
