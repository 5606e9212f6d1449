package rsakey_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rsatiming/internal/bigint"
	"rsatiming/internal/errs"
	"rsatiming/internal/exp"
	"rsatiming/internal/montgomery"
	"rsatiming/internal/rsakey"
)

func TestNewComputesKnownKey(t *testing.T) {
	p := bigint.FromUint64(1, 97)
	q := bigint.FromUint64(1, 103)
	e := bigint.FromUint64(1, 31)

	key, err := rsakey.New(p, q, e)
	require.NoError(t, err)

	assert.Equal(t, uint64(9991), key.N.WordAt(0))
	assert.Equal(t, uint64(9792), key.Phi.WordAt(0))
	assert.Equal(t, uint64(2527), key.D.WordAt(0))
}

func TestKeyRoundTripsThroughModExp(t *testing.T) {
	p := bigint.FromUint64(1, 97)
	q := bigint.FromUint64(1, 103)
	e := bigint.FromUint64(1, 31)
	key, err := rsakey.New(p, q, e)
	require.NoError(t, err)

	ctx, err := montgomery.NewContext(key.N)
	require.NoError(t, err)

	m := bigint.FromUint64(key.Width(), 1234)
	sig := exp.ModExp(m, key.D, ctx)
	recovered := exp.ModExp(sig, key.E, ctx)
	assert.Equal(t, uint64(1234), recovered.WordAt(0))
}

func TestNewRejectsNonInvertibleExponent(t *testing.T) {
	// phi(91) = phi(7*13) = 6*12 = 72; e=6 shares a factor with 72.
	p := bigint.FromUint64(1, 7)
	q := bigint.FromUint64(1, 13)
	e := bigint.FromUint64(1, 6)

	_, err := rsakey.New(p, q, e)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.NonInvertible))
}

func TestNewRejectsMismatchedPrimeWidths(t *testing.T) {
	p := bigint.FromUint64(1, 97)
	q := bigint.FromUint64(2, 103)
	e := bigint.FromUint64(1, 31)

	_, err := rsakey.New(p, q, e)
	require.Error(t, err)
}

func TestPublicKeyAccessor(t *testing.T) {
	p := bigint.FromUint64(1, 97)
	q := bigint.FromUint64(1, 103)
	e := bigint.FromUint64(1, 31)
	key, err := rsakey.New(p, q, e)
	require.NoError(t, err)

	n, pubE := key.PublicKey()
	assert.Equal(t, uint64(9991), n.WordAt(0))
	assert.Equal(t, uint64(31), pubE.WordAt(0))
}
