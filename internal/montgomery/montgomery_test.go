package montgomery_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rsatiming/internal/bigint"
	"rsatiming/internal/errs"
	"rsatiming/internal/montgomery"
)

func TestNewContextRejectsEvenModulus(t *testing.T) {
	n := bigint.FromUint64(1, 8)
	_, err := montgomery.NewContext(n)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.InvalidModulus))
}

func TestNewContextRejectsZero(t *testing.T) {
	n := bigint.New(1)
	_, err := montgomery.NewContext(n)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.InvalidModulus))
}

func TestToFromMontgomeryRoundTrip(t *testing.T) {
	n := bigint.FromUint64(1, 9991)
	ctx, err := montgomery.NewContext(n)
	require.NoError(t, err)

	for _, v := range []uint64{0, 1, 2, 42, 9990} {
		a := bigint.FromUint64(1, v)
		mont := ctx.ToMontgomery(a)
		back := ctx.FromMontgomery(mont)
		assert.Equal(t, v, back.WordAt(0), "round trip failed for %d", v)
	}
}

func TestProductMatchesDirectModMul(t *testing.T) {
	n := bigint.FromUint64(1, 9991)
	ctx, err := montgomery.NewContext(n)
	require.NoError(t, err)

	for _, v := range []struct{ a, b uint64 }{
		{3, 5}, {9990, 9990}, {1, 9990}, {4999, 5000}, {0, 123},
	} {
		a := bigint.FromUint64(1, v.a)
		b := bigint.FromUint64(1, v.b)
		aMont := ctx.ToMontgomery(a)
		bMont := ctx.ToMontgomery(b)
		prodMont := ctx.Product(aMont, bMont)
		got := ctx.FromMontgomery(prodMont)

		want := directModMul(t, v.a, v.b, 9991)
		assert.Equal(t, want, got.WordAt(0), "%d*%d mod 9991", v.a, v.b)
	}
}

func TestProductAndProductCTAgree(t *testing.T) {
	n := bigint.FromUint64(1, 9991)
	ctx, err := montgomery.NewContext(n)
	require.NoError(t, err)

	for a := uint64(0); a < 9991; a += 733 {
		for b := uint64(0); b < 9991; b += 919 {
			aMont := ctx.ToMontgomery(bigint.FromUint64(1, a))
			bMont := ctx.ToMontgomery(bigint.FromUint64(1, b))
			leaky := ctx.Product(aMont, bMont)
			ct := ctx.ProductCT(aMont, bMont)
			assert.True(t, leaky.Equal(ct), "Product and ProductCT disagree for %d,%d", a, b)
		}
	}
}

// directModMul computes a*b mod n using only bigint primitives, independent
// of the Montgomery machinery under test.
func directModMul(t *testing.T, a, b, n uint64) uint64 {
	t.Helper()
	width := 2
	wa := bigint.FromUint64(width, a)
	wb := bigint.FromUint64(width, b)
	_, lo := bigint.Mul(wa, wb)
	wn := bigint.FromUint64(width, n)
	_, r, err := bigint.DivMod(lo, wn)
	require.NoError(t, err)
	return r.WordAt(0)
}
