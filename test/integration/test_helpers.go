package integration

import (
	"testing"
	"time"

	"rsatiming/internal/attack"
	"rsatiming/internal/bigint"
	"rsatiming/internal/rsakey"
)

// Small keys keep these black-box tests fast: exponentiation cost scales with
// modulus width, and the attack loop runs once per bit of d.
const (
	smallP = 11
	smallQ = 13
	smallE = 7

	mediumP = 97
	mediumQ = 103
	mediumE = 31
)

// newKey builds an *rsakey.Key from small uint64 p, q, e for test fixtures.
func newKey(t *testing.T, p, q, e uint64) *rsakey.Key {
	t.Helper()
	key, err := rsakey.New(bigint.FromUint64(1, p), bigint.FromUint64(1, q), bigint.FromUint64(1, e))
	if err != nil {
		t.Fatalf("rsakey.New(%d, %d, %d) failed: %v", p, q, e, err)
	}
	return key
}

// assertBitsEqual fails the test unless d's top numBits bits equal bits,
// most-significant bit first.
func assertBitsEqual(t *testing.T, d bigint.BigInt, bits []int, numBits int) {
	t.Helper()
	if len(bits) != numBits {
		t.Fatalf("expected %d recovered bits, got %d", numBits, len(bits))
	}
	for i, bit := range bits {
		want := d.Bit(numBits - 1 - i)
		if bit != want {
			t.Errorf("bit %d: expected %d, got %d", i, want, bit)
		}
	}
}

// sampleMessages returns count messages in [2, 141], stepping by 29 modulo
// 140 so they spread across that range; the sequence repeats after 140
// messages, and n is not consulted, so callers pass a modulus above 141.
func sampleMessages(n bigint.BigInt, width, count int) []bigint.BigInt {
	out := make([]bigint.BigInt, count)
	for i := 0; i < count; i++ {
		v := uint64(2 + (i*29)%140)
		out[i] = bigint.FromUint64(width, v)
	}
	return out
}

func timingSample(m bigint.BigInt, d time.Duration) attack.TimingSample {
	return attack.TimingSample{M: m, Duration: d}
}

// bigintFromDecimal parses s into a width-word BigInt, failing the test on
// error.
func bigintFromDecimal(t *testing.T, width int, s string) bigint.BigInt {
	t.Helper()
	v, err := bigint.ParseDecimal(width, s)
	if err != nil {
		t.Fatalf("ParseDecimal(%d, %q) failed: %v", width, s, err)
	}
	return v
}
