package keybook

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/morpheus/types"
)

func TestBlsSignAndVerifyPartialRoundTrips(t *testing.T) {
	books, _, err := NewBlsUniverse(4)
	require.NoError(t, err)

	data := []byte("payload")
	sig, err := books[0].Sign(data)
	require.NoError(t, err)

	require.True(t, books[1].VerifyPartial(books[0].Self(), data, sig))
	require.False(t, books[1].VerifyPartial(books[0].Self(), []byte("other payload"), sig))
}

func TestBlsSignAggregateRequiresThreshold(t *testing.T) {
	books, _, err := NewBlsUniverse(4)
	require.NoError(t, err)

	data := []byte("vote")
	partials := make(map[types.ProcessID]types.PartialSignature)
	for i := 0; i < 2; i++ {
		sig, err := books[i].Sign(data)
		require.NoError(t, err)
		partials[books[i].Self()] = sig
	}

	_, err = books[0].SignAggregate(3, partials, data)
	require.ErrorIs(t, err, ErrBelowThreshold)

	sig, err := books[3].Sign(data)
	require.NoError(t, err)
	partials[books[3].Self()] = sig

	agg, err := books[0].SignAggregate(3, partials, data)
	require.NoError(t, err)
	require.True(t, books[0].VerifyAggregate(3, data, agg))
	require.False(t, books[0].VerifyAggregate(4, data, agg))
}

func TestBlsVerifyAggregateRejectsDifferentData(t *testing.T) {
	books, _, err := NewBlsUniverse(4)
	require.NoError(t, err)

	data := []byte("tamper")
	partials := make(map[types.ProcessID]types.PartialSignature)
	for i := 0; i < 3; i++ {
		sig, err := books[i].Sign(data)
		require.NoError(t, err)
		partials[books[i].Self()] = sig
	}

	agg, err := books[0].SignAggregate(3, partials, data)
	require.NoError(t, err)
	require.False(t, books[0].VerifyAggregate(3, []byte("different data"), agg))
}
