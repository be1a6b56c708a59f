package invariant

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/morpheus/codec"
	"github.com/luxfi/morpheus/dag"
	"github.com/luxfi/morpheus/keybook"
	"github.com/luxfi/morpheus/types"
	"github.com/luxfi/morpheus/view"
	"github.com/luxfi/morpheus/voting"
)

func genesisQC() types.QC {
	return types.QC{Data: types.VoteData{Z: 1, For: types.GenBlockKey}}
}

func genesisBlock() *types.Block {
	return &types.Block{Key: types.GenBlockKey, One: genesisQC(), Data: types.GenesisData{}}
}

func TestCheckFindsNoViolationsOnFreshState(t *testing.T) {
	books, _, err := keybook.NewLocalUniverse(4)
	require.NoError(t, err)
	idx := dag.New(nil, genesisQC(), genesisBlock())
	views := view.NewManager(nil, books[0], 1, 4, 1, view.DefaultDelta)
	views.EndView(0, idx)
	views.Advance(0)
	engine := voting.NewEngine(nil, books[0], 1, 4, 1, idx, views)

	require.Empty(t, Check(idx, views, engine))
}

func TestCheckFlagsViewEntryTimeAfterCurrentTime(t *testing.T) {
	books, _, err := keybook.NewLocalUniverse(4)
	require.NoError(t, err)
	idx := dag.New(nil, genesisQC(), genesisBlock())
	views := view.NewManager(nil, books[0], 1, 4, 1, view.DefaultDelta)
	views.Advance(100)
	views.EndView(0, idx)
	views.Advance(50)

	violations := Check(idx, views, nil)
	require.NotEmpty(t, violations)

	found := false
	for _, v := range violations {
		if v.Kind == KindViewEntryTimeAfterCurrentTime {
			found = true
		}
	}
	require.True(t, found)
}

func TestCheckPassesThroughNormalVoteCascade(t *testing.T) {
	books, _, err := keybook.NewLocalUniverse(4)
	require.NoError(t, err)
	idx := dag.New(nil, genesisQC(), genesisBlock())
	views := view.NewManager(nil, books[0], 1, 4, 1, view.DefaultDelta)
	views.EndView(0, idx)
	engine := voting.NewEngine(nil, books[0], 1, 4, 1, idx, views)

	key := types.BlockKey{Type: types.BlockTransaction, View: 0, Author: 1, Height: 1, Slot: 0}
	vote := types.VoteData{Z: 0, For: key}
	for i := 0; i < 3; i++ {
		sig, err := books[i].Sign(codec.Canonical(vote))
		require.NoError(t, err)
		_, _, err = engine.RecordVote(types.Signed[types.VoteData]{Data: vote, Author: books[i].Self(), Signature: sig})
		require.NoError(t, err)
	}

	require.Empty(t, Check(idx, views, engine))
}
