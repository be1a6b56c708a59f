package view

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/morpheus/codec"
	"github.com/luxfi/morpheus/dag"
	"github.com/luxfi/morpheus/keybook"
	"github.com/luxfi/morpheus/types"
)

func TestLeadIsRoundRobin(t *testing.T) {
	require.Equal(t, types.ProcessID(1), Lead(0, 4))
	require.Equal(t, types.ProcessID(2), Lead(1, 4))
	require.Equal(t, types.ProcessID(4), Lead(3, 4))
	require.Equal(t, types.ProcessID(1), Lead(4, 4))
}

func genesisQC() types.QC {
	return types.QC{Data: types.VoteData{Z: 1, For: types.GenBlockKey}}
}

func genesisBlock() *types.Block {
	return &types.Block{Key: types.GenBlockKey, One: genesisQC(), Data: types.GenesisData{}}
}

func TestEndViewSendsStartViewAndOwnTips(t *testing.T) {
	books, _, err := keybook.NewLocalUniverse(4)
	require.NoError(t, err)
	idx := dag.New(nil, genesisQC(), genesisBlock())
	m := NewManager(nil, books[0], 1, 4, 1, DefaultDelta)

	out := m.EndView(1, idx)
	require.Equal(t, types.View(1), m.View())
	require.Equal(t, PhaseHigh, m.Phase(1))

	foundStartView := false
	for _, o := range out {
		if _, ok := o.Message.(types.StartViewMessage); ok {
			foundStartView = true
		}
	}
	require.True(t, foundStartView)
}

func TestCheckTimeoutsEscalates(t *testing.T) {
	books, _, err := keybook.NewLocalUniverse(4)
	require.NoError(t, err)
	idx := dag.New(nil, genesisQC(), genesisBlock())
	m := NewManager(nil, books[1], 2, 4, 1, DefaultDelta)
	m.EndView(0, idx)

	k := types.BlockKey{Type: types.BlockTransaction, Author: 3, Height: 1, Slot: 0}
	b := &types.Block{Key: k, Prev: []types.QC{genesisQC()}, One: genesisQC(), Data: types.TransactionData{Transactions: []types.Transaction{[]byte("a")}}}
	idx.RecordBlock(b)
	qc := types.QC{Data: types.VoteData{Z: 0, For: k}}
	idx.RecordQC(qc)

	m.Advance(6 * DefaultDelta)
	out := m.CheckTimeouts(idx)
	require.NotEmpty(t, out)

	m.Advance(12 * DefaultDelta)
	out = m.CheckTimeouts(idx)
	foundEndView := false
	for _, o := range out {
		if _, ok := o.Message.(types.EndViewMessage); ok {
			foundEndView = true
		}
	}
	require.True(t, foundEndView)
}

func TestRecordEndViewFormsCertAtFPlus1(t *testing.T) {
	books, _, err := keybook.NewLocalUniverse(4)
	require.NoError(t, err)
	m := NewManager(nil, books[0], 1, 4, 1, DefaultDelta)

	for i := 0; i < 1; i++ {
		sig, err := books[i].Sign(codec.Canonical(types.View(0)))
		require.NoError(t, err)
		ev := types.Signed[types.View]{Data: 0, Author: books[i].Self(), Signature: sig}
		_, formed, err := m.RecordEndView(ev)
		require.NoError(t, err)
		require.False(t, formed)
	}

	sig, err := books[1].Sign(codec.Canonical(types.View(0)))
	require.NoError(t, err)
	ev := types.Signed[types.View]{Data: 0, Author: books[1].Self(), Signature: sig}
	cert, formed, err := m.RecordEndView(ev)
	require.NoError(t, err)
	require.True(t, formed)
	require.Equal(t, types.View(0), cert.Data)
}
