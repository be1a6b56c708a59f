package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func key(view View, t BlockType, height Height) BlockKey {
	return BlockKey{Type: t, View: view, Height: height, Author: 1, Slot: 0}
}

func TestCompareQCIgnoresZ(t *testing.T) {
	a := VoteData{Z: 1, For: key(3, BlockTransaction, 5)}
	b := VoteData{Z: 2, For: key(3, BlockTransaction, 5)}
	require.Equal(t, 0, CompareQC(a, b))
}

func TestCompareQCOrdersByViewThenTypeThenHeight(t *testing.T) {
	lowView := VoteData{For: key(1, BlockTransaction, 100)}
	highView := VoteData{For: key(2, BlockGenesis, 0)}
	require.Equal(t, -1, CompareQC(lowView, highView))

	sameViewLowType := VoteData{For: key(1, BlockGenesis, 9)}
	sameViewHighType := VoteData{For: key(1, BlockTransaction, 0)}
	require.Equal(t, -1, CompareQC(sameViewLowType, sameViewHighType))

	lowHeight := VoteData{For: key(1, BlockLeader, 1)}
	highHeight := VoteData{For: key(1, BlockLeader, 2)}
	require.Equal(t, -1, CompareQC(lowHeight, highHeight))
}

func TestBlockTypeOrder(t *testing.T) {
	require.True(t, BlockGenesis < BlockLeader)
	require.True(t, BlockLeader < BlockTransaction)
}

func TestMaxQCPrefersGreater(t *testing.T) {
	low := VoteData{For: key(1, BlockTransaction, 1)}
	high := VoteData{For: key(2, BlockTransaction, 1)}
	require.Equal(t, high, MaxQC(low, high))
	require.Equal(t, high, MaxQC(high, low))
	require.Equal(t, low, MaxQC(low, low))
}

func TestSlotIsPredecessorOf(t *testing.T) {
	require.True(t, Slot(4).IsPredecessorOf(Slot(5)))
	require.False(t, Slot(4).IsPredecessorOf(Slot(4)))
	require.False(t, Slot(5).IsPredecessorOf(Slot(4)))
}

func TestProcessIDIndex(t *testing.T) {
	require.Equal(t, 0, ProcessID(1).Index())
	require.Equal(t, 2, ProcessID(3).Index())
}
