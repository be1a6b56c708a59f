package voting

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/morpheus/codec"
	"github.com/luxfi/morpheus/dag"
	"github.com/luxfi/morpheus/keybook"
	"github.com/luxfi/morpheus/types"
	"github.com/luxfi/morpheus/view"
)

func genesisQC() types.QC {
	return types.QC{Data: types.VoteData{Z: 1, For: types.GenBlockKey}}
}

func genesisBlock() *types.Block {
	return &types.Block{Key: types.GenBlockKey, One: genesisQC(), Data: types.GenesisData{}}
}

func newTestEngine(t *testing.T, self types.ProcessID, books []*keybook.Local) (*Engine, *dag.Index, *view.Manager) {
	t.Helper()
	idx := dag.New(nil, genesisQC(), genesisBlock())
	views := view.NewManager(nil, books[self.Index()], self, 4, 1, view.DefaultDelta)
	views.EndView(0, idx)
	e := NewEngine(nil, books[self.Index()], self, 4, 1, idx, views)
	return e, idx, views
}

func TestTryVoteCastsOnceOnly(t *testing.T) {
	books, _, err := keybook.NewLocalUniverse(4)
	require.NoError(t, err)
	e, _, _ := newTestEngine(t, 1, books)

	key := types.BlockKey{Type: types.BlockTransaction, View: 0, Author: 1, Height: 1, Slot: 0}
	_, cast := e.TryVote(0, key, nil)
	require.True(t, cast)
	_, cast = e.TryVote(0, key, nil)
	require.False(t, cast)
}

func TestRecordVoteFormsQCAtQuorum(t *testing.T) {
	books, _, err := keybook.NewLocalUniverse(4)
	require.NoError(t, err)
	e, idx, _ := newTestEngine(t, 1, books)

	key := types.BlockKey{Type: types.BlockTransaction, View: 0, Author: 2, Height: 1, Slot: 0}
	v := types.VoteData{Z: 0, For: key}

	for i := 0; i < 2; i++ {
		sig, err := books[i].Sign(codec.Canonical(v))
		require.NoError(t, err)
		vote := types.Signed[types.VoteData]{Data: v, Author: books[i].Self(), Signature: sig}
		_, _, err = e.RecordVote(vote)
		require.NoError(t, err)
	}

	sig, err := books[2].Sign(codec.Canonical(v))
	require.NoError(t, err)
	vote := types.Signed[types.VoteData]{Data: v, Author: books[2].Self(), Signature: sig}
	_, _, err = e.RecordVote(vote)
	require.NoError(t, err)

	_, ok := idx.QC(v)
	require.True(t, ok)
}

func TestTrBlockSingleTipEligibleForOneVote(t *testing.T) {
	books, _, err := keybook.NewLocalUniverse(4)
	require.NoError(t, err)
	e, idx, views := newTestEngine(t, 1, books)

	leaderKey := types.BlockKey{Type: types.BlockLeader, View: 0, Author: 1, Height: 1, Slot: 0}
	leaderBlock := &types.Block{Key: leaderKey, Prev: []types.QC{genesisQC()}, One: genesisQC(), Data: types.LeaderData{}}
	idx.RecordBlock(leaderBlock)

	leaderTwoQC := types.QC{Data: types.VoteData{Z: 2, For: leaderKey}}
	idx.RecordQC(leaderTwoQC)

	t1Key := types.BlockKey{Type: types.BlockTransaction, View: 0, Author: 1, Height: 2, Slot: 0}
	t1Block := &types.Block{Key: t1Key, Prev: []types.QC{leaderTwoQC}, One: genesisQC(), Data: types.TransactionData{Transactions: []types.Transaction{[]byte("a")}}}
	idx.RecordBlock(t1Block)

	t1Vote := types.VoteData{Z: 0, For: t1Key}
	for i := 0; i < 3; i++ {
		sig, err := books[i].Sign(codec.Canonical(t1Vote))
		require.NoError(t, err)
		vote := types.Signed[types.VoteData]{Data: t1Vote, Author: books[i].Self(), Signature: sig}
		_, _, err = e.RecordVote(vote)
		require.NoError(t, err)
	}
	require.True(t, idx.Finalized(leaderKey), "leader block must finalize once its 2-QC is observed")

	t1QC, ok := idx.QC(t1Vote)
	require.True(t, ok)

	t2Key := types.BlockKey{Type: types.BlockTransaction, View: 0, Author: 1, Height: 3, Slot: 1}
	t2Block := &types.Block{Key: t2Key, Prev: []types.QC{t1QC}, One: genesisQC(), Data: types.TransactionData{Transactions: []types.Transaction{[]byte("b")}}}
	idx.RecordBlock(t2Block)

	require.True(t, idx.ContainsLeadBlock(0))
	require.True(t, idx.UnfinalizedLeadEmpty(0))

	e.Enqueue("tr_1", t2Key)
	out := e.ReevaluatePendingVotes()
	require.NotEmpty(t, out)
	require.Equal(t, view.PhaseLow, views.Phase(0))
}
