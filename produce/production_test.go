package produce

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/morpheus/dag"
	"github.com/luxfi/morpheus/keybook"
	"github.com/luxfi/morpheus/mempool"
	"github.com/luxfi/morpheus/types"
	"github.com/luxfi/morpheus/view"
)

func genesisBlock() *types.Block {
	return &types.Block{Key: types.GenBlockKey, One: genesisQC(), Data: types.GenesisData{}}
}

func TestPayloadReadyRequiresQueuedTransactions(t *testing.T) {
	books, _, err := keybook.NewLocalUniverse(4)
	require.NoError(t, err)
	idx := dag.New(nil, genesisQC(), genesisBlock())
	views := view.NewManager(nil, books[0], 1, 4, 1, view.DefaultDelta)
	views.EndView(0, idx)
	pool := mempool.New()
	p := NewProducer(nil, books[0], 1, 4, 1, idx, views, pool)

	require.False(t, p.payloadReady())
	pool.Enqueue(types.Transaction("tx"))
	require.True(t, p.payloadReady())
}

func TestTryProduceMakesFirstTransactionBlock(t *testing.T) {
	books, _, err := keybook.NewLocalUniverse(4)
	require.NoError(t, err)
	idx := dag.New(nil, genesisQC(), genesisBlock())
	views := view.NewManager(nil, books[0], 1, 4, 1, view.DefaultDelta)
	views.EndView(0, idx)
	pool := mempool.New()
	pool.Enqueue(types.Transaction("tx"))
	p := NewProducer(nil, books[0], 1, 4, 1, idx, views, pool)

	out := p.TryProduce()
	require.Len(t, out, 1)
	msg, ok := out[0].Message.(types.BlockMessage)
	require.True(t, ok)
	require.Equal(t, types.BlockTransaction, msg.Block.Data.Key.Type)
	require.Equal(t, types.Slot(0), msg.Block.Data.Key.Slot)
	require.Equal(t, types.Height(1), msg.Block.Data.Key.Height)
	require.Equal(t, 0, pool.Len(), "transactions must be drained into the block")
}

func TestLeaderBlockGatedOnStartViewQuorumAndMultipleTips(t *testing.T) {
	books, _, err := keybook.NewLocalUniverse(4)
	require.NoError(t, err)
	idx := dag.New(nil, genesisQC(), genesisBlock())
	views := view.NewManager(nil, books[0], 1, 4, 1, view.DefaultDelta)
	views.EndView(0, idx)
	pool := mempool.New()
	p := NewProducer(nil, books[0], 1, 4, 1, idx, views, pool)

	require.False(t, p.leaderReady(), "no start-views recorded yet")

	for i := 0; i < 3; i++ {
		sv := types.StartView{View: 0, Max1QC: genesisQC()}
		sig, err := books[i].Sign([]byte("placeholder"))
		require.NoError(t, err)
		views.RecordStartView(types.Signed[types.StartView]{Data: sv, Author: books[i].Self(), Signature: sig})
	}
	require.True(t, p.leaderReady())

	out := p.TryProduce()
	require.Empty(t, out, "single tip must not yet permit a leader block")
}
