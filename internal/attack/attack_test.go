package attack_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rsatiming/internal/attack"
	"rsatiming/internal/bigint"
	"rsatiming/internal/errs"
	"rsatiming/internal/exp"
	"rsatiming/internal/rsakey"
	"rsatiming/internal/signer"
)

func newTestKey(t *testing.T) *rsakey.Key {
	t.Helper()
	p := bigint.FromUint64(1, 97)
	q := bigint.FromUint64(1, 103)
	e := bigint.FromUint64(1, 31)
	key, err := rsakey.New(p, q, e)
	require.NoError(t, err)
	return key
}

// TestRunRecoversKnownExponent builds a small synthetic dataset from a real
// PlainSleep signer (p=11, q=13, e=7, so d=103, a 7-bit exponent) and checks
// that Run recovers exactly those 7 bits in MSB-first order.
func TestRunRecoversKnownExponent(t *testing.T) {
	p := bigint.FromUint64(1, 11)
	q := bigint.FromUint64(1, 13)
	e := bigint.FromUint64(1, 7)
	key, err := rsakey.New(p, q, e)
	require.NoError(t, err)
	require.Equal(t, uint64(103), key.D.WordAt(0))

	const sleep = time.Millisecond
	s, err := signer.New(key, exp.PlainSleep, signer.WithSleep(sleep))
	require.NoError(t, err)

	const numSamples = 240
	samples := make([]attack.TimingSample, numSamples)
	for i := 0; i < numSamples; i++ {
		mv := uint64(2 + (i*29)%140) // spread messages across [2, n)
		m := bigint.FromUint64(key.Width(), mv)
		_, elapsed, err := s.Sign(m)
		require.NoError(t, err)
		samples[i] = attack.TimingSample{M: m, Duration: elapsed}
	}

	numBits := key.D.NumBits()
	state, err := attack.Run(key.N, samples, sleep/3, attack.RunOptions{
		MaxBits:            numBits,
		MinSamplesPerClass: 20,
	})
	require.NoError(t, err)
	require.Len(t, state.RecoveredBits, numBits)

	for i := 0; i < numBits; i++ {
		want := int(key.D.Bit(numBits - 1 - i))
		assert.Equal(t, want, state.RecoveredBits[i], "bit position %d", numBits-1-i)
	}
}

func TestRunReportsInsufficientSamples(t *testing.T) {
	key := newTestKey(t)
	samples := []attack.TimingSample{
		{M: bigint.FromUint64(key.Width(), 5), Duration: time.Millisecond},
		{M: bigint.FromUint64(key.Width(), 6), Duration: 2 * time.Millisecond},
	}
	_, err := attack.Run(key.N, samples, time.Millisecond, attack.RunOptions{MaxBits: 1})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.InsufficientSamples))
}

func TestRunRejectsEvenModulus(t *testing.T) {
	n := bigint.FromUint64(1, 8)
	_, err := attack.Run(n, nil, time.Millisecond, attack.RunOptions{})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.InvalidModulus))
}

func TestRunHonorsCancellation(t *testing.T) {
	key := newTestKey(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	samples := make([]attack.TimingSample, 40)
	for i := range samples {
		samples[i] = attack.TimingSample{
			M:        bigint.FromUint64(key.Width(), uint64(2+i)),
			Duration: time.Duration(i) * time.Microsecond,
		}
	}

	state, err := attack.Run(key.N, samples, time.Millisecond, attack.RunOptions{
		MaxBits:            10,
		MinSamplesPerClass: 1,
		Ctx:                ctx,
	})
	require.NoError(t, err)
	assert.Empty(t, state.RecoveredBits)
}
